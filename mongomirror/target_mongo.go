// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongomirror

import (
	"context"

	"github.com/mongodb-labs/mongomirror/common/db"
	"github.com/mongodb-labs/mongomirror/common/options"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
)

// bulkReplaceLimit caps the number of buffered replace models per bulk
// write during initial sync. The byte limit inside BufferedBulkInserter
// still applies underneath it.
const bulkReplaceLimit = 1000

// MongoWriter applies translated documents to a database on a MongoDB
// target. The session provider defaults to majority write concern, and
// every mutation filters on the translated string key, so replays of the
// same event are no-ops.
type MongoWriter struct {
	provider      *db.SessionProvider
	database      string
	serverVersion db.Version
}

// newMongoWriter dials the deployment named by the target's uri. A
// destination password supplied outside the URI is set on the auth options
// before parsing so it merges into the connection string without appearing
// in any argument list.
func newMongoWriter(target TargetConfig, destinationPassword string) (*MongoWriter, error) {
	toolOpts := options.New("mongomirror", "", "", "", options.EnabledOptions{
		Auth:       true,
		Connection: true,
		URI:        true,
	})
	if destinationPassword != "" {
		toolOpts.Auth.Password = destinationPassword
	}
	if _, err := toolOpts.ParseArgs([]string{"--uri", target.URI}); err != nil {
		return nil, errors.Wrap(err, "error parsing target uri")
	}
	if target.WriteConcern != "" {
		wc, err := db.NewMongoWriteConcern(target.WriteConcern, toolOpts.URI.ParsedConnString())
		if err != nil {
			return nil, errors.Wrap(err, "error parsing target writeConcern")
		}
		toolOpts.WriteConcern = wc
	}

	provider, err := db.NewSessionProvider(*toolOpts)
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to target")
	}
	serverVersion, err := provider.ServerVersionArray()
	if err != nil {
		provider.Close()
		return nil, errors.Wrap(err, "error reading target server version")
	}

	return &MongoWriter{
		provider:      provider,
		database:      target.Database,
		serverVersion: serverVersion,
	}, nil
}

func (writer *MongoWriter) collection(coll string) *mongo.Collection {
	return writer.provider.DB(writer.database).Collection(coll)
}

// Replace upserts body under key. The replacement carries no _id of its
// own; the server takes it from the filter on insert. Duplicate key races
// between replayed upserts are ignorable.
func (writer *MongoWriter) Replace(ctx context.Context, coll, key string, body bson.D) error {
	_, err := writer.collection(coll).ReplaceOne(
		ctx,
		bson.D{{Key: idKey, Value: key}},
		body,
		mopt.Replace().SetUpsert(true),
	)
	if err != nil && !db.CanIgnoreError(err) {
		return errors.Wrapf(err, "error replacing document %q", key)
	}
	return nil
}

// MergeFields applies a $set of the given fields and a $unset of the named
// ones in a single upserting update. Both slices empty is a no-op.
func (writer *MongoWriter) MergeFields(
	ctx context.Context,
	coll, key string,
	set bson.D,
	unset []string,
) error {
	update := mergeUpdateDocument(set, unset)
	if len(update) == 0 {
		return nil
	}

	_, err := writer.collection(coll).UpdateOne(
		ctx,
		bson.D{{Key: idKey, Value: key}},
		update,
		mopt.Update().SetUpsert(true),
	)
	if err != nil && !db.CanIgnoreError(err) {
		return errors.Wrapf(err, "error merging fields into document %q", key)
	}
	return nil
}

// Delete removes the document under key. A zero match count is not an
// error, so deleting an absent key already behaves as a no-op.
func (writer *MongoWriter) Delete(ctx context.Context, coll, key string) error {
	_, err := writer.collection(coll).DeleteOne(ctx, bson.D{{Key: idKey, Value: key}})
	if err != nil {
		return errors.Wrapf(err, "error deleting document %q", key)
	}
	return nil
}

// BulkReplacer returns a buffered upserting replace path over the target
// collection for initial sync.
func (writer *MongoWriter) BulkReplacer(coll string) (BulkReplacer, error) {
	bulk := db.NewUnorderedBufferedBulkWriter(
		writer.collection(coll),
		bulkReplaceLimit,
		writer.serverVersion,
	).SetUpsert(true)
	return &mongoBulk{bulk: bulk}, nil
}

// Close disconnects from the target deployment.
func (writer *MongoWriter) Close(ctx context.Context) error {
	writer.provider.Close()
	return nil
}

// mergeUpdateDocument builds the update document for a field-level merge.
// An empty result means there is nothing to send.
func mergeUpdateDocument(set bson.D, unset []string) bson.D {
	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(unset) > 0 {
		cleared := bson.D{}
		for _, field := range unset {
			cleared = append(cleared, bson.E{Key: field, Value: ""})
		}
		update = append(update, bson.E{Key: "$unset", Value: cleared})
	}
	return update
}

type mongoBulk struct {
	bulk *db.BufferedBulkWriter
}

func (mb *mongoBulk) Replace(key string, body bson.D) error {
	_, err := mb.bulk.Replace(bson.D{{Key: idKey, Value: key}}, body)
	if err != nil && !db.CanIgnoreError(err) {
		return errors.Wrapf(err, "error buffering replace for document %q", key)
	}
	return nil
}

func (mb *mongoBulk) Flush() error {
	_, err := mb.bulk.Flush()
	if err != nil && !db.CanIgnoreError(err) {
		return errors.Wrap(err, "error flushing bulk replaces")
	}
	return nil
}
