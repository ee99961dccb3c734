package password

import (
	"strings"
	"testing"

	"github.com/mongodb-labs/mongomirror/common/testtype"
	"github.com/stretchr/testify/require"
)

func TestReadFromPipe(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"bare password ends at EOF", "hunter2", "hunter2"},
		{"newline terminates", "hunter2\nleftover", "hunter2"},
		{"carriage return terminates", "hunter2\rleftover", "hunter2"},
		{"ctrl-C terminates", "hunter2\x03leftover", "hunter2"},
		{"ctrl-D terminates", "hunter2\x04leftover", "hunter2"},
		{"backspace edits", "hunterX\b2", "hunter2"},
		{"delete edits", "hunterX\x7f2", "hunter2"},
		{"backspace on empty input is ignored", "\b\bhunter2", "hunter2"},
		{"NUL bytes are skipped", "hun\x00ter2", "hunter2"},
		{"empty input reads an empty password", "", ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pass, err := readFromPipe(strings.NewReader(c.input))
			require.NoError(t, err)
			require.Equal(t, c.want, pass)
		})
	}
}
