// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package checkpoint persists change stream resume positions, one record
// per (database, collection) mapping, so a mirror can continue from its
// last durable position after a restart.
package checkpoint

import (
	"context"
	"fmt"
	"time"
)

// Position is an opaque change stream resume token, stored as the raw bytes
// of the token document. A nil Position means "no position committed yet".
type Position []byte

// Record is one durable unit of checkpoint state. ResumeToken is nil for
// the placeholder written by the first Load of a mapping that has never
// saved a position.
type Record struct {
	ResumeToken Position  `json:"resumeToken"`
	RunID       string    `json:"runId"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store is the resume position persistence consumed by the collection
// pipelines. Load on a mapping that has never been written must create a
// placeholder record and return existed=false; every later Load returns
// existed=true even while the stored position is still nil, so that
// restarts can tell "ran before, nothing committed" from "never ran".
//
// Implementations must be safe for concurrent use: pipelines share one
// store but each only ever touches its own (database, collection) key.
type Store interface {
	// Load returns the saved position for the mapping, or nil if none has
	// been saved, along with whether the record already existed.
	Load(ctx context.Context, database, collection string) (pos Position, existed bool, err error)

	// Save durably replaces the mapping's position.
	Save(ctx context.Context, database, collection string, pos Position) error

	// Delete removes the mapping's record entirely, so that the next Load
	// reports existed=false. Deleting an absent record is not an error.
	Delete(ctx context.Context, database, collection string) error

	Close() error
}

// Config selects and parameterizes a checkpoint backend.
type Config struct {
	// Backend is one of "sqlite", "s3", or "memory". An empty value
	// defaults to sqlite.
	Backend string `yaml:"backend"`

	// Path is the sqlite database file.
	Path string `yaml:"path"`

	// Bucket, Prefix, and Region parameterize the s3 backend.
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// Backend names accepted in Config.Backend.
const (
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// DefaultSQLitePath is used when the config names no sqlite file.
const DefaultSQLitePath = "mongomirror.checkpoints.db"

// Validate checks that the config names a known backend with the fields
// that backend requires.
func (c *Config) Validate() error {
	switch c.Backend {
	case "", BackendSQLite, BackendMemory:
		return nil
	case BackendS3:
		if c.Bucket == "" {
			return fmt.Errorf("checkpoint backend 's3' requires a bucket")
		}
		return nil
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Backend)
	}
}

// NewStore builds the store the config describes. The run ID is stamped
// into every record the store writes, identifying the writing process.
func NewStore(ctx context.Context, c Config, runID string) (Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Backend {
	case BackendS3:
		return NewS3Store(ctx, c.Bucket, c.Prefix, c.Region, runID)
	case BackendMemory:
		return NewMemoryStore(runID), nil
	default:
		path := c.Path
		if path == "" {
			path = DefaultSQLitePath
		}
		return NewSQLiteStore(path, runID)
	}
}
