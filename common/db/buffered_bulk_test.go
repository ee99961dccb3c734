// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package db

import (
	"context"
	"testing"

	"github.com/mongodb-labs/mongomirror/common/testtype"
	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestBufferedBulkWriterReplaces(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.IntegrationTestType)

	var bufBulk *BufferedBulkWriter

	Convey("With a valid session", t, func() {
		provider, err := NewSessionProvider(dbToolOptions())
		So(provider, ShouldNotBeNil)
		So(err, ShouldBeNil)
		session, err := provider.GetSession()
		So(session, ShouldNotBeNil)
		So(err, ShouldBeNil)
		serverVersion, err := provider.ServerVersionArray()
		So(err, ShouldBeNil)

		Convey("upserting 10 documents with a doc limit of 3", func() {
			testCol := session.Database("mirror-test").Collection("bulk1")
			bufBulk = NewUnorderedBufferedBulkWriter(testCol, 3, serverVersion).SetUpsert(true)
			So(bufBulk, ShouldNotBeNil)

			flushCount := 0
			for i := 0; i < 10; i++ {
				selector := bson.D{{Key: "_id", Value: i}}
				replacement := bson.D{{Key: "_id", Value: i}, {Key: "n", Value: i}}
				result, err := bufBulk.Replace(selector, replacement)
				So(err, ShouldBeNil)
				if bufBulk.docCount%3 == 0 {
					flushCount++
					So(result, ShouldNotBeNil)
					So(result.UpsertedCount, ShouldEqual, 3)
				} else {
					So(result, ShouldBeNil)
				}
			}

			Convey("should have flushed 3 times with one doc still buffered", func() {
				So(flushCount, ShouldEqual, 3)
				So(bufBulk.docCount, ShouldEqual, 1)

				Convey("and flushing the remainder should upsert it", func() {
					result, err := bufBulk.Flush()
					So(err, ShouldBeNil)
					So(result, ShouldNotBeNil)
					So(result.UpsertedCount, ShouldEqual, 1)

					count, err := testCol.CountDocuments(context.Background(), bson.M{})
					So(err, ShouldBeNil)
					So(count, ShouldEqual, 10)
				})
			})
		})

		Convey("replacing existing documents updates them in place", func() {
			testCol := session.Database("mirror-test").Collection("bulk2")
			for i := 0; i < 5; i++ {
				doc := bson.D{{Key: "_id", Value: i}, {Key: "state", Value: "old"}}
				_, err := testCol.InsertOne(context.Background(), doc)
				So(err, ShouldBeNil)
			}

			bufBulk = NewUnorderedBufferedBulkWriter(testCol, 5, serverVersion).SetUpsert(true)

			var last *mongo.BulkWriteResult
			for i := 0; i < 5; i++ {
				selector := bson.D{{Key: "_id", Value: i}}
				replacement := bson.D{{Key: "_id", Value: i}, {Key: "state", Value: "new"}}
				last, err = bufBulk.Replace(selector, replacement)
				So(err, ShouldBeNil)
			}

			So(last, ShouldNotBeNil)
			So(last.MatchedCount, ShouldEqual, 5)
			So(last.UpsertedCount, ShouldEqual, 0)

			testDoc := bson.M{}
			err := testCol.FindOne(context.Background(), bson.M{"_id": 2}).Decode(&testDoc)
			So(err, ShouldBeNil)
			So(testDoc["state"], ShouldEqual, "new")
		})

		Convey("flushing an empty buffer is a no-op", func() {
			testCol := session.Database("mirror-test").Collection("bulk3")
			bufBulk = NewUnorderedBufferedBulkWriter(testCol, 3, serverVersion)

			result, err := bufBulk.Flush()
			So(err, ShouldBeNil)
			So(result, ShouldBeNil)
			So(bufBulk.docCount, ShouldEqual, 0)
		})

		Convey("with a byte limit of 1 every replace flushes", func() {
			testCol := session.Database("mirror-test").Collection("bulk4")
			bufBulk = NewUnorderedBufferedBulkWriter(testCol, 1000, serverVersion).SetUpsert(true)
			bufBulk.byteLimit = 1

			for i := 0; i < 10; i++ {
				selector := bson.D{{Key: "_id", Value: i}}
				replacement := bson.D{{Key: "_id", Value: i}, {Key: "payload", Value: "x"}}
				result, err := bufBulk.Replace(selector, replacement)
				So(err, ShouldBeNil)
				So(result, ShouldNotBeNil)
				So(result.UpsertedCount, ShouldEqual, 1)
			}
		})

		Reset(func() {
			So(provider.DropDatabase("mirror-test"), ShouldBeNil)
			provider.Close()
		})
	})
}
