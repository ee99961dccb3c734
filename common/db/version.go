package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Version is a server version as major, minor and patch release numbers.
type Version [3]int

func (v1 Version) Cmp(v2 Version) int {
	for i := range v1 {
		if v1[i] < v2[i] {
			return -1
		}
		if v1[i] > v2[i] {
			return 1
		}
	}
	return 0
}

func (v1 Version) LT(v2 Version) bool {
	return v1.Cmp(v2) == -1
}

func (v1 Version) GT(v2 Version) bool {
	return v1.Cmp(v2) == 1
}

func (v1 Version) GTE(v2 Version) bool {
	return v1.Cmp(v2) != -1
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// StrToVersion parses a server version string such as "7.0.12" or
// "8.1.0-rc2". Anything after a build separator is ignored.
func StrToVersion(v string) (Version, error) {
	v = strings.SplitN(v, "-", 2)[0]
	v = strings.SplitN(v, "+", 2)[0]

	parts := strings.SplitN(v, ".", 3)
	if len(parts) != 3 {
		return Version{}, errors.New("invalid version string")
	}

	var result Version
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version string: %q is not a number", part)
		}
		result[i] = n
	}
	return result, nil
}
