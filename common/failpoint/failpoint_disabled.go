// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

//go:build !failpoints
// +build !failpoints

// Package failpoint implements triggers for custom debugging behavior
package failpoint

// ParseFailpoints does nothing when compiled without failpoint support
func ParseFailpoints(_ string) {
}

// Get always reports a missing failpoint when compiled without failpoint
// support
func Get(_ string) (string, bool) {
	return "", false
}

// Enabled always returns false when compiled without failpoint support
func Enabled(_ string) bool {
	return false
}
