// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package password reads a password from the terminal or from standard
// input without echoing it back.
package password

import (
	"fmt"
	"io"
	"os"

	"github.com/mongodb-labs/mongomirror/common/log"
	"golang.org/x/term"
)

// Control bytes that edit or end a password arriving through a pipe.
const (
	keyBackspace = 8
	keyDelete    = 127
	keyETX       = 3
	keyEOT       = 4
	keyLF        = 10
	keyCR        = 13
)

// IsTerminal reports whether standard input is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Prompt asks on standard error for the password belonging to what and
// reads it back. Terminal input is read in raw mode so nothing echoes;
// piped input is consumed a byte at a time up to the first terminator.
func Prompt(what string) (string, error) {
	interactive := IsTerminal()
	if interactive {
		log.Logv(log.DebugLow, "standard input is a terminal; reading password from terminal")
	} else {
		log.Logv(log.Always, "reading password from standard input")
	}
	fmt.Fprintf(os.Stderr, "Enter password for %s:", what)

	var pass string
	var err error
	if interactive {
		pass, err = readFromTerminal()
	} else {
		pass, err = readFromPipe(os.Stdin)
	}
	if err != nil {
		return "", err
	}
	fmt.Fprintln(os.Stderr)
	return pass, nil
}

func readFromTerminal() (string, error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return "", err
	}
	//nolint:errcheck
	defer term.Restore(fd, oldState)

	screen := struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stderr}
	return term.NewTerminal(screen, "").ReadPassword("")
}

// readFromPipe consumes one password from reader, honoring the control
// bytes a terminal would: backspace and delete edit, and CR, LF, ETX,
// or EOT (or end of input) terminate.
func readFromPipe(reader io.Reader) (string, error) {
	var pass []byte
	var buf [1]byte
	for {
		n, err := reader.Read(buf[:])
		if err == io.EOF || n == 0 {
			return string(pass), nil
		}
		if err != nil {
			return "", err
		}

		switch ch := buf[0]; ch {
		case keyCR, keyLF, keyETX, keyEOT:
			return string(pass), nil
		case keyBackspace, keyDelete:
			if len(pass) > 0 {
				pass = pass[:len(pass)-1]
			}
		case 0: // skip NUL bytes
		default:
			pass = append(pass, ch)
		}
	}
}
