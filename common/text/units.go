// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package text provides utilities for formatting units and aligned output.
package text

import (
	"fmt"
)

const (
	decimal = 1000
	binary  = 1024
)

var (
	longByteUnits  = []string{"B", "KB", "MB", "GB"}
	shortByteUnits = []string{"B", "K", "M", "G"}
	shortBitUnits  = []string{"b", "k", "m", "g"}
)

// FormatByteAmount takes an int64 representing a size in bytes and returns a
// formatted string of at most three significant digits, e.g. 12.4GB, 0B,
// 124KB.
func FormatByteAmount(size int64) string {
	return formatUnitAmount(binary, size, longByteUnits)
}

// FormatMegabyteAmount is equivalent to FormatByteAmount but expects an
// amount of MB instead of bytes, and formats with short units.
func FormatMegabyteAmount(size int64) string {
	return formatUnitAmount(binary, size*1024*1024, shortByteUnits)
}

// FormatBits takes a bit (not byte) count and formats it with short decimal
// units, e.g. 12.0k, 0b, 124k.
func FormatBits(size int64) string {
	return formatUnitAmount(decimal, size, shortBitUnits)
}

// formatUnitAmount divides the size by the base until it fits the largest
// available unit, then prints it with three significant digits. Sizes that
// fit the smallest unit are printed as plain integers.
func formatUnitAmount(base, size int64, units []string) string {
	result := float64(size)
	divisor := float64(base)

	var shifts int
	for shifts = 0; result >= divisor && shifts < len(units)-1; shifts++ {
		result /= divisor
	}

	if shifts == 0 {
		return fmt.Sprintf("%d%s", size, units[0])
	}

	// thresholds account for rounding up at the format boundary
	switch {
	case result < 9.995:
		return fmt.Sprintf("%.2f%s", result, units[shifts])
	case result < 99.95:
		return fmt.Sprintf("%.1f%s", result, units[shifts])
	default:
		return fmt.Sprintf("%.0f%s", result, units[shifts])
	}
}
