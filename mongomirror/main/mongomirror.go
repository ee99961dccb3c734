// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Main package for the mongomirror tool.
package main

import (
	"os"
	"time"

	"github.com/mongodb-labs/mongomirror/common/log"
	"github.com/mongodb-labs/mongomirror/common/progress"
	"github.com/mongodb-labs/mongomirror/common/signals"
	"github.com/mongodb-labs/mongomirror/common/util"
	"github.com/mongodb-labs/mongomirror/mongomirror"
)

const (
	progressBarLength   = 24
	progressBarWaitTime = time.Second * 3
)

var (
	VersionStr = "built-without-version-string"
	GitCommit  = "build-without-git-commit"
)

func main() {
	// initialize command-line opts
	opts, err := mongomirror.ParseOptions(os.Args[1:], VersionStr, GitCommit)
	if err != nil {
		log.Logvf(log.Always, "error parsing command line options: %s", err.Error())
		log.Logvf(log.Always, util.ShortUsage("mongomirror"))
		os.Exit(util.ExitFailure)
	}

	// print help, if specified
	if opts.PrintHelp(false) {
		return
	}

	// print version, if specified
	if opts.PrintVersion() {
		return
	}

	// init logger
	log.SetVerbosity(opts.Verbosity)

	// kick off the progress bar manager for initial syncs
	progressManager := progress.NewBarWriter(
		log.Writer(0),
		progressBarWaitTime,
		progressBarLength,
		false,
	)
	progressManager.Start()
	defer progressManager.Stop()

	mirror := mongomirror.MongoMirror{
		ToolOptions:     opts.ToolOptions,
		MirrorOptions:   opts.MirrorOptions,
		ProgressManager: progressManager,
	}

	if err = mirror.ValidateCommand(opts.ParsedArgs); err != nil {
		log.Logvf(log.Always, "%v", err)
		log.Logv(log.Always, mongomirror.CommandHelp())
		os.Exit(util.ExitBadOptions)
	}

	finishedChan := signals.HandleWithInterrupt(mirror.HandleInterrupt)
	defer close(finishedChan)

	if err = mirror.Init(); err != nil {
		log.Logvf(log.Always, "Failed: %v", err)
		os.Exit(util.ExitFailure)
	}

	if err = mirror.Run(); err != nil {
		log.Logvf(log.Always, "Failed: %v", err)
		os.Exit(util.ExitFailure)
	}
}
