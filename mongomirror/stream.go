// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongomirror

import (
	"context"

	"github.com/mongodb-labs/mongomirror/common/bsonutil"
	"github.com/mongodb-labs/mongomirror/common/checkpoint"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
)

// ErrResumeTokenExpired reports that the source can no longer resume from
// the saved position: the oplog rolled past it or the server declared the
// stream non-resumable.
var ErrResumeTokenExpired = errors.New("resume position no longer available on the source")

// ErrCollectionGone reports that the mirrored collection stopped existing
// under its name while streaming (drop, database drop, or rename).
var ErrCollectionGone = errors.New("source collection was dropped or renamed")

// Change event operation kinds, as named by the server.
const (
	OperationInsert  = "insert"
	OperationUpdate  = "update"
	OperationReplace = "replace"
	OperationDelete  = "delete"
)

// Server error codes that invalidate a resume position:
// CappedPositionLost, ChangeStreamFatalError, ChangeStreamHistoryLost.
var resumeLostCodes = []int{136, 280, 286}

const nonResumableLabel = "NonResumableChangeStreamError"

// ChangeEvent is one decoded change stream event together with the stream
// position immediately after it.
type ChangeEvent struct {
	OperationType     string             `bson:"operationType"`
	DocumentKey       bson.D             `bson:"documentKey"`
	FullDocument      bson.D             `bson:"fullDocument"`
	UpdateDescription *UpdateDescription `bson:"updateDescription"`

	Token checkpoint.Position `bson:"-"`
}

// UpdateDescription carries the field-level delta of an update event. It is
// applied directly when the post-image lookup raced a delete and returned
// nothing.
type UpdateDescription struct {
	UpdatedFields bson.D   `bson:"updatedFields"`
	RemovedFields []string `bson:"removedFields"`
}

// Key returns the stringified _id from the event's documentKey. Every event
// kind the feed yields carries one, deletes included.
func (event *ChangeEvent) Key() (string, error) {
	idValue, err := bsonutil.FindValueByKey(idKey, &event.DocumentKey)
	if err != nil {
		return "", ErrMissingIdentifier
	}
	return stringifyIdentifier(idValue)
}

// changeFeed wraps a collection change stream, yielding decoded events and
// classifying terminal errors.
type changeFeed struct {
	stream    *mongo.ChangeStream
	namespace string
}

// openChangeFeed opens a change stream on the given collection with
// post-image lookup enabled. A nil startAfter tails from now; otherwise the
// stream resumes immediately after the given token.
func openChangeFeed(ctx context.Context, coll *mongo.Collection, startAfter checkpoint.Position) (*changeFeed, error) {
	namespace := coll.Database().Name() + "." + coll.Name()

	streamOpts := mopt.ChangeStream().SetFullDocument(mopt.UpdateLookup)
	if startAfter != nil {
		streamOpts.SetStartAfter(bson.Raw(startAfter))
	}

	stream, err := coll.Watch(ctx, mongo.Pipeline{}, streamOpts)
	if err != nil {
		return nil, classifyStreamError(err, namespace)
	}
	return &changeFeed{stream: stream, namespace: namespace}, nil
}

// Next returns the next event from the stream. When the source yields
// nothing within the server's await window it returns (nil, nil) so the
// caller can check for shutdown between polls; the post-batch position
// still advances through ResumeToken. Drop, database-drop, rename, and
// invalidate events terminate the feed with ErrCollectionGone.
func (feed *changeFeed) Next(ctx context.Context) (*ChangeEvent, error) {
	if !feed.stream.TryNext(ctx) {
		err := feed.stream.Err()
		if err == nil {
			err = ctx.Err()
		}
		if err == nil {
			return nil, nil
		}
		return nil, classifyStreamError(err, feed.namespace)
	}

	event := &ChangeEvent{}
	if err := feed.stream.Decode(event); err != nil {
		return nil, errors.Wrapf(err, "error decoding change event on %s", feed.namespace)
	}
	event.Token = checkpoint.Position(feed.stream.ResumeToken())

	switch event.OperationType {
	case OperationInsert, OperationUpdate, OperationReplace, OperationDelete:
		return event, nil
	default:
		return nil, errors.Wrapf(ErrCollectionGone, "%s event on %s", event.OperationType, feed.namespace)
	}
}

// ResumeToken returns the feed's current position: the post-batch token
// right after open, then the token of the last yielded event.
func (feed *changeFeed) ResumeToken() checkpoint.Position {
	token := feed.stream.ResumeToken()
	if token == nil {
		return nil
	}
	return checkpoint.Position(token)
}

func (feed *changeFeed) Close(ctx context.Context) error {
	return feed.stream.Close(ctx)
}

// classifyStreamError separates resume-position loss from transient stream
// failures so the pipeline never retries an unresumable position.
func classifyStreamError(err error, namespace string) error {
	if isResumeLost(err) {
		return errors.Wrapf(ErrResumeTokenExpired, "%s: %v", namespace, err)
	}
	return errors.Wrapf(err, "change stream error on %s", namespace)
}

func isResumeLost(err error) bool {
	var serverErr mongo.ServerError
	if !errors.As(err, &serverErr) {
		return false
	}
	if serverErr.HasErrorLabel(nonResumableLabel) {
		return true
	}
	for _, code := range resumeLostCodes {
		if serverErr.HasErrorCode(code) {
			return true
		}
	}
	return false
}

// IsResumeTokenExpired reports whether the error means the saved resume
// position can no longer be used on the source.
func IsResumeTokenExpired(err error) bool {
	return errors.Is(err, ErrResumeTokenExpired)
}

// IsCollectionGone reports whether the error means the source collection no
// longer exists under its configured name.
func IsCollectionGone(err error) bool {
	return errors.Is(err, ErrCollectionGone)
}
