// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package util provides commonly used utilities for the tools.
package util

import "fmt"

// Exit codes returned through os.Exit by the tools.
const (
	ExitSuccess = 0
	ExitFailure = 1
	// ExitBadOptions is returned when the command line could not be parsed
	// or validated.
	ExitBadOptions = 3
	// ExitKill is returned when the process is force-terminated by a second
	// interrupt.
	ExitKill = 4
)

// ShortUsage returns a one-line usage hint for the given tool.
func ShortUsage(tool string) string {
	return fmt.Sprintf("try '%s --help' for more information", tool)
}
