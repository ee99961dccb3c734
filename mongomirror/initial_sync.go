// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongomirror

import (
	"context"

	"github.com/ccoveille/go-safecast/v2"
	"github.com/mongodb-labs/mongomirror/common/db"
	"github.com/mongodb-labs/mongomirror/common/log"
	"github.com/mongodb-labs/mongomirror/common/progress"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// syncCollection copies every document in source into targetColl through
// the target's buffered replace path and returns the number copied. Every
// write is a replace-upsert keyed by the translated identifier, so rerunning
// a partial sync converges on the same target state. The scan is never
// checkpointed; documents without a top-level _id are logged and skipped.
func syncCollection(
	ctx context.Context,
	source *mongo.Collection,
	target TargetWriter,
	targetColl string,
	progressManager *progress.BarWriter,
) (int64, error) {
	namespace := source.Database().Name() + "." + source.Name()

	query := db.DeferredQuery{Coll: source}
	estimate, err := query.Count()
	if err != nil {
		return 0, errors.Wrapf(err, "error counting %s", namespace)
	}
	log.Logvf(log.Info, "syncing %v documents from %v", estimate, namespace)

	progressor := progress.NewCounter(safecast.MustConvert[int64](estimate))
	if progressManager != nil {
		progressManager.Attach(namespace, progressor)
		defer progressManager.Detach(namespace)
	}

	cursor, err := query.Iter()
	if err != nil {
		return 0, errors.Wrapf(err, "error reading %s", namespace)
	}
	defer cursor.Close(ctx)

	bulk, err := target.BulkReplacer(targetColl)
	if err != nil {
		return 0, errors.Wrapf(err, "error preparing bulk writes to %s", targetColl)
	}

	var copied, skipped int64
	for cursor.Next(ctx) {
		var doc bson.D
		if err = cursor.Decode(&doc); err != nil {
			return copied, errors.Wrapf(err, "error decoding document from %s", namespace)
		}

		key, body, err := Translate(doc)
		if err != nil {
			if errors.Is(err, ErrMissingIdentifier) {
				skipped++
				log.Logvf(log.Always, "skipping document with no _id in %v", namespace)
				continue
			}
			return copied, errors.Wrapf(err, "error translating document from %s", namespace)
		}

		if err = bulk.Replace(key, body); err != nil {
			return copied, err
		}
		copied++
		progressor.Inc(1)
	}
	if err = cursor.Err(); err != nil {
		return copied, errors.Wrapf(err, "error reading %s", namespace)
	}
	if err = bulk.Flush(); err != nil {
		return copied, err
	}

	if skipped > 0 {
		log.Logvf(log.Always, "skipped %v documents with no _id in %v", skipped, namespace)
	}
	log.Logvf(log.Always, "done syncing %v (%v documents)", namespace, copied)
	return copied, nil
}
