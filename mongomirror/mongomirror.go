// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package mongomirror mirrors collections from a source MongoDB deployment
// into a target document store, resuming from durable checkpoints across
// restarts.
package mongomirror

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mongodb-labs/mongomirror/common/checkpoint"
	"github.com/mongodb-labs/mongomirror/common/db"
	"github.com/mongodb-labs/mongomirror/common/log"
	"github.com/mongodb-labs/mongomirror/common/options"
	"github.com/mongodb-labs/mongomirror/common/progress"
	"github.com/mongodb-labs/mongomirror/common/text"
	"github.com/mongodb-labs/mongomirror/common/util"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/tomb.v2"
)

// List of possible commands for mongomirror.
const (
	MigrateCommand = "migrate"
	LiveCommand    = "live"
)

const statusReportInterval = time.Minute

// Change streams with startAfter resumption arrived in 4.0.
var minSourceVersion = db.Version{4, 0, 0}

// MongoMirror is a container for the user-specified options and internal
// state used for running mongomirror.
type MongoMirror struct {
	ToolOptions   *options.ToolOptions
	MirrorOptions *MirrorOptions

	// ProgressManager renders initial sync progress. May be nil.
	ProgressManager *progress.BarWriter

	// Command is the selected positional command, migrate or live.
	Command string

	conf  *MirrorConfig
	store checkpoint.Store
	runID string

	// The tomb carries the shutdown request from the signal handler to
	// every pipeline. Pipelines are not tomb goroutines: one mapping's
	// failure must never kill its siblings.
	tomb.Tomb
}

// ValidateCommand inspects the positional arguments and records the
// command to run.
func (mm *MongoMirror) ValidateCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command specified")
	}
	if len(args) > 1 {
		return fmt.Errorf("too many positional arguments")
	}
	switch args[0] {
	case MigrateCommand, LiveCommand:
		mm.Command = args[0]
	default:
		return fmt.Errorf("'%v' is not a valid command", args[0])
	}

	if mm.MirrorOptions.ConfigPath == "" {
		return fmt.Errorf("--file can not be blank")
	}
	return nil
}

// Init loads the job file and opens the checkpoint store. Any error here
// is fatal before a single pipeline starts.
func (mm *MongoMirror) Init() error {
	conf, err := LoadMirrorConfig(mm.MirrorOptions.ConfigPath)
	if err != nil {
		return err
	}
	if mm.MirrorOptions.CheckpointPath != "" {
		conf.Checkpoint.Path = mm.MirrorOptions.CheckpointPath
	}

	mm.runID = uuid.NewString()
	store, err := checkpoint.NewStore(context.Background(), conf.Checkpoint, mm.runID)
	if err != nil {
		return errors.Wrap(err, "error opening checkpoint store")
	}

	mm.conf = conf
	mm.store = store
	log.Logvf(log.Always, "run %v mirroring %v database pair(s)", mm.runID, len(conf.Pairs))
	return nil
}

// HandleInterrupt requests a graceful stop: every pipeline finishes its
// in-flight event, writes a final checkpoint, and reports.
func (mm *MongoMirror) HandleInterrupt() {
	mm.Kill(nil)
}

// Run connects every configured pair and drives one pipeline per
// collection mapping to completion. The returned error is the first
// pipeline failure; all mappings run to the end regardless.
func (mm *MongoMirror) Run() error {
	defer mm.store.Close()

	pipelines, cleanup, err := mm.buildPipelines()
	if err != nil {
		return err
	}
	defer cleanup()

	results, groupErr := mm.runPipelines(pipelines)
	reportResults(results)
	return groupErr
}

// buildPipelines connects sources and targets and constructs one pipeline
// per mapping. A connection failure tears down whatever was already opened
// and aborts the run before any pipeline starts.
func (mm *MongoMirror) buildPipelines() ([]*Pipeline, func(), error) {
	var pipelines []*Pipeline
	var closers []func()
	cleanup := func() {
		for _, closer := range closers {
			closer()
		}
	}

	for i := range mm.conf.Pairs {
		pair := &mm.conf.Pairs[i]

		provider, err := connectSource(&pair.Source)
		if err != nil {
			cleanup()
			return nil, nil, errors.Wrapf(err, "error connecting to source %v",
				util.SanitizeURI(pair.Source.URI))
		}
		closers = append(closers, provider.Close)

		version, err := provider.ServerVersionArray()
		if err != nil {
			cleanup()
			return nil, nil, errors.Wrapf(err, "error checking version of source %v",
				util.SanitizeURI(pair.Source.URI))
		}
		if version.LT(minSourceVersion) {
			cleanup()
			return nil, nil, errors.Errorf(
				"source %v runs MongoDB %v, but change streams require %v or newer",
				util.SanitizeURI(pair.Source.URI), version, minSourceVersion)
		}
		log.Logvf(log.Info, "source %v runs MongoDB %v",
			util.SanitizeURI(pair.Source.URI), version)

		writer, err := newTargetWriter(pair.Target, mm.MirrorOptions.DestinationPassword)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := writer.Close(context.Background()); err != nil {
				log.Logvf(log.DebugLow, "error closing target writer: %v", err)
			}
		})

		database := provider.DB(pair.SourceDatabase())
		for _, mapping := range pair.Collections {
			coll := database.Collection(mapping.Source)
			target := mapping.Target
			pipelines = append(pipelines, NewPipeline(PipelineConfig{
				Database: pair.SourceDatabase(),
				Source:   mapping.Source,
				Target:   target,
				Store:    mm.store,
				Writer:   writer,
				Sync: func(ctx context.Context) (int64, error) {
					return syncCollection(ctx, coll, writer, target, mm.ProgressManager)
				},
				OpenFeed: func(ctx context.Context, startAfter checkpoint.Position) (eventFeed, error) {
					return openChangeFeed(ctx, coll, startAfter)
				},
				SaveThreshold: pair.SaveThreshold,
				Migrate:       mm.Command == MigrateCommand,
				AutoResync:    mm.MirrorOptions.AutoResync,
				Dying:         mm.Dying(),
			}))
		}
	}
	return pipelines, cleanup, nil
}

// runPipelines drives every pipeline concurrently and collects their
// reports. There is no shared cancellation: a failed mapping stops alone
// while its siblings run to completion, and the group only remembers the
// first error for the exit status.
func (mm *MongoMirror) runPipelines(pipelines []*Pipeline) ([]Result, error) {
	results := make([]Result, len(pipelines))

	statusDone := make(chan struct{})
	if mm.Command == LiveCommand {
		go mm.reportStatus(pipelines, statusDone)
	}

	var group errgroup.Group
	for i, pipe := range pipelines {
		group.Go(func() error {
			results[i] = pipe.Run(context.Background())
			return results[i].Err
		})
	}
	err := group.Wait()
	close(statusDone)

	return results, err
}

// reportStatus periodically logs one line per pipeline that has not
// stopped yet.
func (mm *MongoMirror) reportStatus(pipelines []*Pipeline, done <-chan struct{}) {
	ticker := time.NewTicker(statusReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, pipe := range pipelines {
				if state := pipe.State(); state != StateStopped {
					log.Logvf(log.Info, "%v: %v, %v events applied",
						pipe.Namespace(), state, pipe.Applied())
				}
			}
		}
	}
}

// reportResults writes the final per-mapping summary table.
func reportResults(results []Result) {
	gw := &text.GridWriter{ColumnPadding: 2}
	gw.WriteCells("namespace", "synced", "applied", "skipped", "saves", "result")
	gw.EndRow()

	for i := range results {
		res := &results[i]
		outcome := "ok"
		switch {
		case res.Err != nil:
			outcome = "failed: " + res.Err.Error()
		case res.AlreadySynced:
			outcome = "already synced"
		}
		gw.WriteCells(
			res.Namespace(),
			strconv.FormatInt(res.Synced, 10),
			strconv.FormatInt(res.Applied, 10),
			strconv.FormatInt(res.Skipped, 10),
			strconv.FormatInt(res.Saves, 10),
			outcome,
		)
		gw.EndRow()
	}
	gw.Flush(log.Writer(0))
}

// connectSource dials a pair's source deployment. TLS material and the
// read preference from the job file are passed through the shared option
// plumbing so they are validated the same way the command line would be.
func connectSource(source *SourceConfig) (*db.SessionProvider, error) {
	args := []string{"--uri", source.URI}
	if source.SSLPEMKeyFile != "" {
		args = append(args, "--ssl", "--sslPEMKeyFile", source.SSLPEMKeyFile)
	}

	toolOpts := options.New("mongomirror", "", "", "",
		options.EnabledOptions{Auth: true, Connection: true, URI: true})
	if _, err := toolOpts.ParseArgs(args); err != nil {
		return nil, errors.Wrap(err, "error parsing source uri")
	}
	toolOpts.URI.LogUnsupportedOptions()

	if source.ReadPreference != "" {
		pref, err := db.NewReadPreference(source.ReadPreference, toolOpts.URI.ParsedConnString())
		if err != nil {
			return nil, errors.Wrap(err, "error parsing source readPreference")
		}
		toolOpts.ReadPreference = pref
	}
	return db.NewSessionProvider(*toolOpts)
}
