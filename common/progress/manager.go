// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// BarWriter renders a set of attached progress bars to a single writer on a
// fixed interval. Bars are rendered in the order they were attached.
type BarWriter struct {
	sync.Mutex

	waitTime  time.Duration
	writer    io.Writer
	bars      []*Bar
	barLength int
	isBytes   bool
	stopChan  chan struct{}
}

// NewBarWriter returns an initialized BarWriter with the given bar length
// and byte-formatting toggle, rendering every waitTime.
func NewBarWriter(w io.Writer, waitTime time.Duration, barLength int, isBytes bool) *BarWriter {
	return &BarWriter{
		waitTime:  waitTime,
		writer:    w,
		barLength: barLength,
		isBytes:   isBytes,
	}
}

// Attach registers the given progressor under the given name. Panics if the
// name is already attached.
func (manager *BarWriter) Attach(name string, progressor Progressor) {
	pb := &Bar{
		Name:      name,
		Watching:  progressor,
		BarLength: manager.barLength,
		IsBytes:   manager.isBytes,
		Writer:    manager.writer,
	}

	manager.Lock()
	defer manager.Unlock()

	for _, bar := range manager.bars {
		if bar.Name == name {
			panic(fmt.Sprintf("progress bar with name '%s' already exists in manager", name))
		}
	}

	manager.bars = append(manager.bars, pb)
}

// Detach removes the progressor with the given name from the manager.
// Non-attached names are ignored.
func (manager *BarWriter) Detach(name string) {
	manager.Lock()
	defer manager.Unlock()

	var newBars []*Bar
	for _, bar := range manager.bars {
		if bar.Name != name {
			newBars = append(newBars, bar)
		}
	}

	manager.bars = newBars
}

// Start spawns a goroutine that renders all attached bars every waitTime.
func (manager *BarWriter) Start() {
	if manager.writer == nil {
		panic("Cannot use a BarWriter with an unset Writer")
	}
	manager.stopChan = make(chan struct{})

	go manager.start()
}

func (manager *BarWriter) start() {
	if manager.waitTime <= 0 {
		manager.waitTime = DefaultWaitTime
	}
	ticker := time.NewTicker(manager.waitTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			manager.renderAllBars()
		case <-manager.stopChan:
			return
		}
	}
}

// Stop kills the rendering goroutine.
func (manager *BarWriter) Stop() {
	close(manager.stopChan)
}

func (manager *BarWriter) renderAllBars() {
	manager.Lock()
	defer manager.Unlock()

	for _, bar := range manager.bars {
		bar.renderToWriter()
	}
	// pad a row when several bars share the writer
	if len(manager.bars) > 1 {
		_, _ = manager.writer.Write([]byte("\n"))
	}
}
