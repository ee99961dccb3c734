// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package db

import (
	"context"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// The default value of maxMessageSizeBytes
// See: https://docs.mongodb.com/manual/reference/command/hello/#mongodb-data-hello.maxMessageSizeBytes
const MAX_MESSAGE_SIZE_BYTES = 48000000

// BufferedBulkWriter implements a bufio.Writer-like design for queuing up
// replace models and writing them in bulk when the given doc limit (or max
// message size) is reached. Must be flushed at the end to ensure that all
// documents are written.
type BufferedBulkWriter struct {
	collection    *mongo.Collection
	writeModels   []mongo.WriteModel
	docLimit      int
	docCount      int
	byteCount     int
	byteLimit     int
	bulkWriteOpts *options.BulkWriteOptions
	upsert        bool
}

// NewUnorderedBufferedBulkWriter returns an initialized BufferedBulkWriter
// for performing unordered bulk writes.
func NewUnorderedBufferedBulkWriter(
	collection *mongo.Collection,
	docLimit int,
	serverVersion Version,
) *BufferedBulkWriter {
	bulkOpts := options.BulkWrite().SetOrdered(false)

	// Mirrored documents can carry literal zero timestamps; servers that
	// support the bypass flag keep them instead of substituting the
	// current time.
	if MongoCanAcceptLiteralZeroTimestamp(serverVersion) {
		bulkOpts.BypassEmptyTsReplacement = lo.ToPtr(true)
	}

	return &BufferedBulkWriter{
		collection:    collection,
		bulkWriteOpts: bulkOpts,
		docLimit:      docLimit,
		// Slightly lower than maxMessageSizeBytes so a batch fits in one
		// OP_MSG. Replace selectors are not counted in byte totals, but
		// this is close enough to keep memory consumption in check.
		byteLimit:   MAX_MESSAGE_SIZE_BYTES - 100,
		writeModels: make([]mongo.WriteModel, 0, docLimit),
	}
}

// SetUpsert makes every buffered replace an upsert.
func (bw *BufferedBulkWriter) SetUpsert(upsert bool) *BufferedBulkWriter {
	bw.upsert = upsert
	return bw
}

// Replace adds a document to the buffer for bulk replacement. If the buffer
// becomes full, the bulk write is performed, returning any error that occurs.
func (bw *BufferedBulkWriter) Replace(
	selector, replacement bson.D,
) (*mongo.BulkWriteResult, error) {
	rawBytes, err := bson.Marshal(replacement)
	if err != nil {
		return nil, err
	}
	bw.byteCount += len(rawBytes)

	return bw.addModel(
		mongo.NewReplaceOneModel().
			SetFilter(selector).
			SetReplacement(rawBytes).
			SetUpsert(bw.upsert),
	)
}

// addModel adds a WriteModel to the buffer. If the buffer becomes full, the
// bulk write is performed, returning any error that occurs.
func (bw *BufferedBulkWriter) addModel(model mongo.WriteModel) (*mongo.BulkWriteResult, error) {
	bw.docCount++
	bw.writeModels = append(bw.writeModels, model)

	if bw.docCount >= bw.docLimit || bw.byteCount >= bw.byteLimit {
		return bw.Flush()
	}

	return nil, nil
}

// Flush writes all buffered documents in one bulk write and then resets the buffer.
func (bw *BufferedBulkWriter) Flush() (*mongo.BulkWriteResult, error) {
	defer bw.reset()

	if bw.docCount == 0 {
		return nil, nil
	}
	return bw.collection.BulkWrite(context.Background(), bw.writeModels, bw.bulkWriteOpts)
}

func (bw *BufferedBulkWriter) reset() {
	bw.writeModels = bw.writeModels[:0]
	bw.docCount = 0
	bw.byteCount = 0
}
