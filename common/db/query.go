// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// DeferredQuery is a full-collection scan that is described up front and
// executed once the rest of the copy path is ready.
type DeferredQuery struct {
	Coll *mongo.Collection
}

// Count estimates how many documents the scan will return. The estimate
// comes from collection metadata, so it can lag the live count; it sizes
// progress reporting and nothing else.
func (q *DeferredQuery) Count() (int, error) {
	c, err := q.Coll.EstimatedDocumentCount(context.TODO())
	return int(c), err
}

// Iter opens the find cursor over the whole collection.
func (q *DeferredQuery) Iter() (*mongo.Cursor, error) {
	return q.Coll.Find(context.TODO(), bson.D{})
}
