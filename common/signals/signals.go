// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package signals handles incoming SIGTERM and SIGINT signals.
package signals

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mongodb-labs/mongomirror/common/log"
	"github.com/mongodb-labs/mongomirror/common/util"
)

// Handle is like HandleWithInterrupt, with a no-op interrupt handler.
func Handle() chan struct{} {
	return HandleWithInterrupt(func() {})
}

// HandleWithInterrupt starts a goroutine that runs the given handler on the
// first SIGTERM or SIGINT, and force-exits the process on the second. The
// returned channel should be closed when the process finishes on its own,
// which stops the goroutine.
func HandleWithInterrupt(handler func()) chan struct{} {
	finishedChan := make(chan struct{})
	go handleSignals(handler, finishedChan)
	return finishedChan
}

func handleSignals(handler func(), finishedChan chan struct{}) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Logvf(log.Always, "signal '%s' received; attempting to shut down", sig)
		handler()

		select {
		case sig := <-sigChan:
			log.Logvf(log.Always, "signal '%s' received; forcefully terminating", sig)
			os.Exit(util.ExitKill)
		case <-finishedChan:
			return
		}
	case <-finishedChan:
		return
	}
}
