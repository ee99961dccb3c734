// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongomirror

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// TargetWriter is the mutation surface a pipeline drives. Every operation
// must be idempotent under retry: replaying a replace or merge leaves the
// target unchanged, and deleting an absent key is a no-op. Implementations
// are safe for use by all of a pair's pipelines concurrently.
type TargetWriter interface {
	// Replace creates or fully replaces the document stored under key.
	Replace(ctx context.Context, coll, key string, body bson.D) error

	// MergeFields sets the given fields and removes the named ones on the
	// document stored under key, creating it if absent.
	MergeFields(ctx context.Context, coll, key string, set bson.D, unset []string) error

	// Delete removes the document stored under key if it exists.
	Delete(ctx context.Context, coll, key string) error

	// BulkReplacer returns a buffered replace path for initial sync.
	BulkReplacer(coll string) (BulkReplacer, error)

	// Close releases the writer's connections.
	Close(ctx context.Context) error
}

// BulkReplacer buffers replace-upserts and writes them in batches. Flush
// must be called once the scan feeding it is finished.
type BulkReplacer interface {
	Replace(key string, body bson.D) error
	Flush() error
}

// newTargetWriter builds the writer for a pair's target descriptor. The
// destination password comes from --destinationPassword or the --config
// secrets file.
func newTargetWriter(target TargetConfig, destinationPassword string) (TargetWriter, error) {
	switch target.Type {
	case TargetMongoDB:
		return newMongoWriter(target, destinationPassword)
	case TargetSurrealDB:
		return newSurrealWriter(target, destinationPassword)
	default:
		return nil, errors.Errorf("unknown target type %q", target.Type)
	}
}
