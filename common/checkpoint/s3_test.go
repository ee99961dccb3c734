// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package checkpoint

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mongodb-labs/mongomirror/common/testtype"
	. "github.com/smartystreets/goconvey/convey"
)

func TestS3RecordCodec(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	Convey("The on-bucket record layout", t, func() {
		Convey("round-trips a saved position", func() {
			in := &Record{
				ResumeToken: Position("opaque-token-bytes"),
				RunID:       "run-1",
				UpdatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			}
			body, err := encodeRecord(in)
			So(err, ShouldBeNil)

			out, err := decodeRecord(body)
			So(err, ShouldBeNil)
			So(string(out.ResumeToken), ShouldEqual, "opaque-token-bytes")
			So(out.RunID, ShouldEqual, "run-1")
			So(out.UpdatedAt.Equal(in.UpdatedAt), ShouldBeTrue)
		})

		Convey("renders the placeholder's token as null", func() {
			body, err := encodeRecord(&Record{RunID: "run-1", UpdatedAt: time.Now().UTC()})
			So(err, ShouldBeNil)
			So(string(body), ShouldContainSubstring, `"resumeToken":null`)

			out, err := decodeRecord(body)
			So(err, ShouldBeNil)
			So(out.ResumeToken, ShouldBeNil)
		})

		Convey("rejects a corrupt object", func() {
			_, err := decodeRecord([]byte("not json"))
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Object keys group mappings under the prefix", t, func() {
		s := &S3Store{bucket: "bkt", prefix: "mirror/checkpoints"}
		So(s.key("app", "users"), ShouldEqual, "mirror/checkpoints/app/users.json")

		Convey("and an empty prefix puts them at the bucket root", func() {
			s := &S3Store{bucket: "bkt"}
			So(s.key("app", "users"), ShouldEqual, "app/users.json")
		})
	})
}

func TestS3StoreLive(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.AWSAuthTestType)

	bucket := os.Getenv("MONGOMIRROR_TEST_S3_BUCKET")
	if bucket == "" {
		t.Skip("MONGOMIRROR_TEST_S3_BUCKET not set")
	}

	Convey("With a live S3 checkpoint store", t, func() {
		ctx := context.Background()
		prefix := "mongomirror-test/" + uuid.NewString()

		storeContract(t, func() Store {
			store, err := NewS3Store(ctx, bucket, prefix+"/"+uuid.NewString(), os.Getenv("AWS_REGION"), "test-run")
			So(err, ShouldBeNil)
			return store
		})
	})
}
