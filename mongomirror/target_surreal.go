// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongomirror

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	surrealdb "github.com/surrealdb/surrealdb.go"
	"go.mongodb.org/mongo-driver/bson"
)

// SurrealWriter applies translated documents to a SurrealDB namespace over
// the websocket RPC client. Record ids carry the translated key, so UPDATE,
// CHANGE, and DELETE are idempotent by construction.
type SurrealWriter struct {
	db *surrealdb.DB
}

// newSurrealWriter connects to the RPC endpoint named by the target's url,
// signs in when a username is configured, and selects the target namespace
// and database for the connection.
func newSurrealWriter(target TargetConfig, destinationPassword string) (*SurrealWriter, error) {
	conn, err := surrealdb.New(target.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "error connecting to surrealdb at %s", target.URL)
	}
	if target.Username != "" {
		_, err = conn.Signin(map[string]interface{}{
			"user": target.Username,
			"pass": destinationPassword,
		})
		if err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "error signing in to surrealdb")
		}
	}
	if _, err = conn.Use(target.Namespace, target.Database); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "error selecting namespace %s database %s",
			target.Namespace, target.Database)
	}
	return &SurrealWriter{db: conn}, nil
}

// recordID renders the record id for key within table. Keys are always
// bracket-quoted so a ':' or space inside a stringified identifier cannot
// split the id; a literal closing bracket is escaped.
func recordID(table, key string) string {
	return table + ":⟨" + strings.ReplaceAll(key, "⟩", "\\⟩") + "⟩"
}

// Replace stores body as the full content of the record under key.
func (writer *SurrealWriter) Replace(ctx context.Context, coll, key string, body bson.D) error {
	_, err := writer.db.Update(recordID(coll, key), bsonToMap(body))
	if err != nil {
		return errors.Wrapf(err, "error replacing record %q", key)
	}
	return nil
}

// MergeFields merges the set fields into the record under key and nulls the
// removed ones in a single CHANGE. Both slices empty is a no-op.
func (writer *SurrealWriter) MergeFields(
	ctx context.Context,
	coll, key string,
	set bson.D,
	unset []string,
) error {
	if len(set) == 0 && len(unset) == 0 {
		return nil
	}
	partial := bsonToMap(set)
	for _, field := range unset {
		partial[field] = nil
	}
	_, err := writer.db.Change(recordID(coll, key), partial)
	if err != nil {
		return errors.Wrapf(err, "error merging fields into record %q", key)
	}
	return nil
}

// Delete removes the record under key. SurrealDB deletes are no-ops for
// absent records.
func (writer *SurrealWriter) Delete(ctx context.Context, coll, key string) error {
	if _, err := writer.db.Delete(recordID(coll, key)); err != nil {
		return errors.Wrapf(err, "error deleting record %q", key)
	}
	return nil
}

// BulkReplacer returns a replace path for initial sync. The RPC protocol
// has no batched write, so records go out one UPDATE at a time and Flush
// has nothing to do.
func (writer *SurrealWriter) BulkReplacer(coll string) (BulkReplacer, error) {
	return &surrealBulk{writer: writer, coll: coll}, nil
}

// Close shuts down the websocket connection.
func (writer *SurrealWriter) Close(ctx context.Context) error {
	writer.db.Close()
	return nil
}

type surrealBulk struct {
	writer *SurrealWriter
	coll   string
}

func (bulk *surrealBulk) Replace(key string, body bson.D) error {
	_, err := bulk.writer.db.Update(recordID(bulk.coll, key), bsonToMap(body))
	if err != nil {
		return errors.Wrapf(err, "error replacing record %q", key)
	}
	return nil
}

func (bulk *surrealBulk) Flush() error {
	return nil
}

// bsonToMap converts a translated document into the map form the RPC client
// sends, walking embedded documents and arrays.
func bsonToMap(doc bson.D) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for _, elem := range doc {
		out[elem.Key] = bsonToValue(elem.Value)
	}
	return out
}

func bsonToValue(value interface{}) interface{} {
	switch v := value.(type) {
	case bson.D:
		return bsonToMap(v)
	case bson.A:
		return bsonToSlice(v)
	case []interface{}:
		return bsonToSlice(v)
	default:
		return v
	}
}

func bsonToSlice(arr []interface{}) []interface{} {
	out := make([]interface{}, len(arr))
	for i, item := range arr {
		out[i] = bsonToValue(item)
	}
	return out
}
