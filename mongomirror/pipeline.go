// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongomirror

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mongodb-labs/mongomirror/common/checkpoint"
	"github.com/mongodb-labs/mongomirror/common/log"
	"github.com/mongodb-labs/mongomirror/common/util"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// PipelineState names the phase a collection pipeline is in.
type PipelineState string

const (
	StateInit       PipelineState = "INIT"
	StateSyncing    PipelineState = "SYNCING"
	StateStreaming  PipelineState = "STREAMING"
	StateRecovering PipelineState = "RECOVERING"
	StateStopped    PipelineState = "STOPPED"
)

// Reopen backoff bounds while RECOVERING from transient errors. The attempt
// budget resets once a reopened feed applies an event.
const (
	reopenDelayInitial = time.Second
	reopenDelayMax     = 30 * time.Second
	reopenAttemptLimit = 10
)

// eventFeed is the change stream surface a pipeline consumes. changeFeed
// implements it against a live source; pipeline tests script their own.
type eventFeed interface {
	Next(ctx context.Context) (*ChangeEvent, error)
	ResumeToken() checkpoint.Position
	Close(ctx context.Context) error
}

// feedOpener opens the mapping's change feed. A nil startAfter tails from
// now.
type feedOpener func(ctx context.Context, startAfter checkpoint.Position) (eventFeed, error)

// syncRunner runs the mapping's initial sync and returns the number of
// documents copied.
type syncRunner func(ctx context.Context) (int64, error)

// Result is one pipeline's final report. Pipelines fail independently, so
// the orchestrator collects a Result per mapping and reports them all.
type Result struct {
	Database string
	Source   string
	Target   string

	State         PipelineState
	AlreadySynced bool
	Synced        int64 // documents copied by initial sync
	Applied       int64 // change events applied to the target
	Skipped       int64 // events dropped for missing identifiers
	Saves         int64 // checkpoints written
	SaveErrors    int64 // checkpoint writes that failed

	Err error
}

// Namespace returns the source namespace the result describes.
func (res *Result) Namespace() string {
	return res.Database + "." + res.Source
}

// PipelineConfig wires one collection mapping to its collaborators.
type PipelineConfig struct {
	Database string
	Source   string
	Target   string

	Store    checkpoint.Store
	Writer   TargetWriter
	Sync     syncRunner
	OpenFeed feedOpener

	// SaveThreshold is the number of applied events between checkpoint
	// saves.
	SaveThreshold int

	// Migrate stops the pipeline after initial sync instead of streaming.
	Migrate bool

	// AutoResync resets the checkpoint and re-syncs when the resume
	// position has expired, instead of stopping fatally.
	AutoResync bool

	// Dying signals cooperative shutdown; the pipeline checks it between
	// events, finishes the in-flight apply, and saves a final checkpoint.
	Dying <-chan struct{}
}

// Pipeline mirrors one collection mapping: initial sync at most once, then
// the change feed, checkpointing every SaveThreshold applied events.
type Pipeline struct {
	conf  PipelineConfig
	state *util.DataGuard[PipelineState]

	// anchor is the in-memory resume position: the last saved position
	// until an event is yielded, then the last applied event's token,
	// advanced by post-batch tokens while the stream is idle.
	anchor    checkpoint.Position
	sinceSave int

	// applied is read by the orchestrator's status logger while the
	// pipeline runs.
	applied int64

	result Result
}

// NewPipeline builds a pipeline in INIT.
func NewPipeline(conf PipelineConfig) *Pipeline {
	if conf.SaveThreshold <= 0 {
		conf.SaveThreshold = DefaultSaveThreshold
	}
	return &Pipeline{
		conf:  conf,
		state: util.NewDataGuard(StateInit),
	}
}

// State returns the pipeline's current phase. Safe to call from the
// orchestrator's status logger while the pipeline runs.
func (p *Pipeline) State() PipelineState {
	return p.state.GetValue()
}

// Applied returns the number of change events applied so far. Like State
// it is safe to read while the pipeline runs.
func (p *Pipeline) Applied() int64 {
	return atomic.LoadInt64(&p.applied)
}

// Namespace returns the source namespace the pipeline mirrors.
func (p *Pipeline) Namespace() string {
	return p.conf.Database + "." + p.conf.Source
}

func (p *Pipeline) setState(state PipelineState) {
	p.state.Store(func(PipelineState) PipelineState { return state })
	log.Logvf(log.DebugLow, "%v: entering %v", p.Namespace(), state)
}

// Run drives the mapping until STOPPED and returns its report. The context
// bounds blocking calls; cooperative shutdown arrives on the Dying channel
// between events.
func (p *Pipeline) Run(ctx context.Context) Result {
	p.result = Result{
		Database: p.conf.Database,
		Source:   p.conf.Source,
		Target:   p.conf.Target,
	}

	p.result.Err = p.run(ctx)
	p.result.Applied = atomic.LoadInt64(&p.applied)
	p.setState(StateStopped)
	p.result.State = StateStopped
	if p.result.Err != nil {
		log.Logvf(log.Always, "%v: stopped: %v", p.Namespace(), p.result.Err)
	}
	return p.result
}

func (p *Pipeline) run(ctx context.Context) error {
	pos, existed, err := p.conf.Store.Load(ctx, p.conf.Database, p.conf.Source)
	if err != nil {
		return errors.Wrapf(err, "error loading checkpoint for %s", p.Namespace())
	}

	if existed {
		if p.conf.Migrate {
			p.result.AlreadySynced = true
			log.Logvf(log.Always, "%v: already synced, nothing to do", p.Namespace())
			return nil
		}
		return p.stream(ctx, pos)
	}

	if err = p.sync(ctx); err != nil {
		return err
	}
	if p.conf.Migrate {
		return nil
	}
	// The sync scan has no stream position; tail from now.
	return p.stream(ctx, nil)
}

func (p *Pipeline) sync(ctx context.Context) error {
	p.setState(StateSyncing)
	copied, err := p.conf.Sync(ctx)
	p.result.Synced += copied
	if err != nil {
		return errors.Wrapf(err, "initial sync of %s failed", p.Namespace())
	}
	return nil
}

// stream runs the STREAMING/RECOVERING loop until shutdown or a fatal
// error.
func (p *Pipeline) stream(ctx context.Context, startAfter checkpoint.Position) error {
	p.anchor = startAfter

	delay := reopenDelayInitial
	attempts := 0

	for {
		appliedBefore := atomic.LoadInt64(&p.applied)
		err := p.streamOnce(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if atomic.LoadInt64(&p.applied) > appliedBefore {
			delay = reopenDelayInitial
			attempts = 0
		}

		p.setState(StateRecovering)

		if IsCollectionGone(err) {
			return err
		}
		if IsResumeTokenExpired(err) {
			if !p.conf.AutoResync {
				return err
			}
			if err = p.resync(ctx); err != nil {
				return err
			}
			delay = reopenDelayInitial
			attempts = 0
			continue
		}

		attempts++
		if attempts > reopenAttemptLimit {
			return errors.Wrapf(err, "giving up on %s after %d reopen attempts",
				p.Namespace(), reopenAttemptLimit)
		}
		log.Logvf(log.Always, "%v: %v; reopening in %v (attempt %v of %v)",
			p.Namespace(), err, delay, attempts, reopenAttemptLimit)

		select {
		case <-p.conf.Dying:
			p.saveAnchor(ctx)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > reopenDelayMax {
			delay = reopenDelayMax
		}
	}
}

// streamOnce opens the feed at the current anchor and consumes it until it
// fails or shutdown is requested. A nil return means a clean stop.
func (p *Pipeline) streamOnce(ctx context.Context) error {
	feed, err := p.conf.OpenFeed(ctx, p.anchor)
	if err != nil {
		return err
	}
	defer feed.Close(ctx)

	p.setState(StateStreaming)
	if p.anchor == nil {
		p.anchor = feed.ResumeToken()
	}

	for {
		if p.dying() {
			p.saveAnchor(ctx)
			return nil
		}

		event, err := feed.Next(ctx)
		if err != nil {
			return err
		}
		if event == nil {
			// Idle await window; follow the post-batch position so the
			// anchor cannot age out of the oplog.
			if token := feed.ResumeToken(); token != nil {
				p.anchor = token
			}
			continue
		}

		if err = p.apply(ctx, event); err != nil {
			return err
		}

		p.anchor = event.Token
		p.sinceSave++
		if p.sinceSave >= p.conf.SaveThreshold {
			p.saveAnchor(ctx)
			p.sinceSave = 0
		}
	}
}

// apply translates one event and applies it to the target. Events that
// cannot be translated are reported and dropped; write errors surface to
// the recovery loop.
func (p *Pipeline) apply(ctx context.Context, event *ChangeEvent) error {
	var err error
	switch {
	case event.OperationType == OperationDelete:
		var key string
		key, err = event.Key()
		if err != nil {
			return p.skipEvent(event)
		}
		err = p.conf.Writer.Delete(ctx, p.conf.Target, key)

	case event.OperationType == OperationUpdate && len(event.FullDocument) == 0:
		// The post-image lookup raced a delete; merge the delta and let
		// the trailing delete event settle the final state.
		if event.UpdateDescription == nil {
			return p.skipEvent(event)
		}
		var key string
		key, err = event.Key()
		if err != nil {
			return p.skipEvent(event)
		}
		set, terr := TranslateUpdateFields(event.UpdateDescription.UpdatedFields)
		if terr != nil {
			return p.skipEvent(event)
		}
		err = p.conf.Writer.MergeFields(ctx, p.conf.Target, key, set,
			event.UpdateDescription.RemovedFields)

	default:
		var key string
		var body bson.D
		key, body, err = Translate(event.FullDocument)
		if err != nil {
			return p.skipEvent(event)
		}
		err = p.conf.Writer.Replace(ctx, p.conf.Target, key, body)
	}

	if err != nil {
		return err
	}
	atomic.AddInt64(&p.applied, 1)
	return nil
}

// skipEvent reports an event the pipeline cannot apply and drops it.
func (p *Pipeline) skipEvent(event *ChangeEvent) error {
	p.result.Skipped++
	log.Logvf(log.Always, "%v: cannot apply %v event, skipping",
		p.Namespace(), event.OperationType)
	return nil
}

// resync wipes the mapping's checkpoint and reruns initial sync, then
// leaves the anchor at nil so streaming tails from now.
func (p *Pipeline) resync(ctx context.Context) error {
	log.Logvf(log.Always, "%v: resume position expired, running a full resync", p.Namespace())

	if err := p.conf.Store.Delete(ctx, p.conf.Database, p.conf.Source); err != nil {
		return errors.Wrapf(err, "error resetting checkpoint for %s", p.Namespace())
	}
	// Recreate the record so a restart mid-resync still skips straight to
	// streaming rather than syncing twice.
	if _, _, err := p.conf.Store.Load(ctx, p.conf.Database, p.conf.Source); err != nil {
		return errors.Wrapf(err, "error recreating checkpoint for %s", p.Namespace())
	}

	if err := p.sync(ctx); err != nil {
		return err
	}
	p.anchor = nil
	p.sinceSave = 0
	return nil
}

// saveAnchor writes the current anchor. Save failures widen the replay
// window but never stop the pipeline.
func (p *Pipeline) saveAnchor(ctx context.Context) {
	if p.anchor == nil {
		return
	}
	err := p.conf.Store.Save(ctx, p.conf.Database, p.conf.Source, p.anchor)
	if err != nil {
		p.result.SaveErrors++
		log.Logvf(log.Always, "%v: error saving checkpoint: %v", p.Namespace(), err)
		return
	}
	p.result.Saves++
	log.Logvf(log.DebugHigh, "%v: checkpoint saved", p.Namespace())
}

func (p *Pipeline) dying() bool {
	select {
	case <-p.conf.Dying:
		return true
	default:
		return false
	}
}
