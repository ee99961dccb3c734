// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package progress exposes tools for periodically printing the progress of
// long-running tasks as simple linear ASCII bars.
package progress

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mongodb-labs/mongomirror/common/text"
)

const (
	// DefaultWaitTime is the time a bar waits between renders unless told
	// otherwise.
	DefaultWaitTime = 3 * time.Second

	BarFilling = "#"
	BarEmpty   = "."
	BarLeft    = "["
	BarRight   = "]"
)

// Bar periodically prints the progress of the Progressor it watches.
type Bar struct {
	// Name is an identifier printed along with the bar.
	Name string

	// BarLength is the number of characters used to print the bar itself.
	BarLength int

	// IsBytes toggles byte-amount formatting of the progress values.
	IsBytes bool

	// Watching is the object whose progress is printed.
	Watching Progressor

	// Writer is where the bar is printed to.
	Writer io.Writer

	// WaitTime is the time to wait between renders. Defaults to
	// DefaultWaitTime when unset.
	WaitTime time.Duration

	isStarted bool
	isStopped bool
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// Start spawns the rendering goroutine. The bar must have a Watching and a
// Writer, and can only be started once.
func (pb *Bar) Start() {
	pb.validate()
	pb.isStarted = true

	pb.stopChan = make(chan struct{})
	pb.doneChan = make(chan struct{})

	go pb.start()
}

func (pb *Bar) validate() {
	if pb.Watching == nil {
		panic("Cannot use a Bar with a nil Watching")
	}
	if pb.Writer == nil {
		panic("Cannot use a Bar with a nil Writer")
	}
	if pb.isStarted {
		panic("Cannot start a Bar more than once")
	}
}

// Stop renders the bar one final time and kills the rendering goroutine.
// Can only be called once, after Start.
func (pb *Bar) Stop() {
	if !pb.isStarted {
		panic("Cannot stop a Bar that was never started")
	}
	if pb.isStopped {
		panic("Cannot stop a Bar more than once")
	}
	pb.isStopped = true

	close(pb.stopChan)
	<-pb.doneChan
}

func (pb *Bar) start() {
	defer close(pb.doneChan)

	if pb.WaitTime <= 0 {
		pb.WaitTime = DefaultWaitTime
	}
	ticker := time.NewTicker(pb.WaitTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pb.renderToWriter()
		case <-pb.stopChan:
			pb.renderToWriter()
			return
		}
	}
}

// renderToWriter writes the current state of the bar in a single write.
func (pb *Bar) renderToWriter() {
	current, max := pb.Watching.Progress()

	if max <= 0 {
		// total unknown, just print the count
		if pb.IsBytes {
			fmt.Fprintf(pb.Writer, "%v\t%v", pb.Name, text.FormatByteAmount(current))
		} else {
			fmt.Fprintf(pb.Writer, "%v\t%v", pb.Name, current)
		}
		return
	}

	percent := float64(current) / float64(max)
	if pb.IsBytes {
		fmt.Fprintf(pb.Writer, "%v %v\t%v/%v (%2.1f%%)",
			pb.Name,
			drawBar(pb.BarLength, percent),
			text.FormatByteAmount(current),
			text.FormatByteAmount(max),
			percent*100,
		)
	} else {
		fmt.Fprintf(pb.Writer, "%v %v\t%v/%v (%2.1f%%)",
			pb.Name,
			drawBar(pb.BarLength, percent),
			current,
			max,
			percent*100,
		)
	}
}

// drawBar returns a bar of the given character length filled to the given
// ratio, which is clamped to [0, 1].
func drawBar(spaces int, percent float64) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 1 {
		percent = 1
	}

	fillingAmount := int(float64(spaces) * percent)
	return BarLeft +
		strings.Repeat(BarFilling, fillingAmount) +
		strings.Repeat(BarEmpty, spaces-fillingAmount) +
		BarRight
}
