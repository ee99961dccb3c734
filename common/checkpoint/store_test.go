// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mongodb-labs/mongomirror/common/testtype"
	. "github.com/smartystreets/goconvey/convey"
)

// storeContract runs the behavior every backend must share.
func storeContract(t *testing.T, open func() Store) {
	ctx := context.Background()

	Convey("Load on a mapping that has never been written", func() {
		store := open()
		defer store.Close()

		pos, existed, err := store.Load(ctx, "app", "users")
		So(err, ShouldBeNil)
		So(existed, ShouldBeFalse)
		So(pos, ShouldBeNil)

		Convey("creates a placeholder, so the next Load reports existed", func() {
			pos, existed, err := store.Load(ctx, "app", "users")
			So(err, ShouldBeNil)
			So(existed, ShouldBeTrue)
			So(pos, ShouldBeNil)
		})
	})

	Convey("Save then Load round-trips the position", func() {
		store := open()
		defer store.Close()

		So(store.Save(ctx, "app", "users", Position("token-1")), ShouldBeNil)

		pos, existed, err := store.Load(ctx, "app", "users")
		So(err, ShouldBeNil)
		So(existed, ShouldBeTrue)
		So(string(pos), ShouldEqual, "token-1")

		Convey("and a later Save replaces it", func() {
			So(store.Save(ctx, "app", "users", Position("token-2")), ShouldBeNil)

			pos, _, err := store.Load(ctx, "app", "users")
			So(err, ShouldBeNil)
			So(string(pos), ShouldEqual, "token-2")
		})
	})

	Convey("records are partitioned by (database, collection)", func() {
		store := open()
		defer store.Close()

		So(store.Save(ctx, "app", "users", Position("users-token")), ShouldBeNil)
		So(store.Save(ctx, "app", "orders", Position("orders-token")), ShouldBeNil)
		So(store.Save(ctx, "other", "users", Position("other-token")), ShouldBeNil)

		pos, _, err := store.Load(ctx, "app", "users")
		So(err, ShouldBeNil)
		So(string(pos), ShouldEqual, "users-token")

		pos, _, err = store.Load(ctx, "app", "orders")
		So(err, ShouldBeNil)
		So(string(pos), ShouldEqual, "orders-token")

		pos, _, err = store.Load(ctx, "other", "users")
		So(err, ShouldBeNil)
		So(string(pos), ShouldEqual, "other-token")
	})

	Convey("Delete removes the record entirely", func() {
		store := open()
		defer store.Close()

		So(store.Save(ctx, "app", "users", Position("token")), ShouldBeNil)
		So(store.Delete(ctx, "app", "users"), ShouldBeNil)

		pos, existed, err := store.Load(ctx, "app", "users")
		So(err, ShouldBeNil)
		So(existed, ShouldBeFalse)
		So(pos, ShouldBeNil)

		Convey("and deleting an absent record is not an error", func() {
			So(store.Delete(ctx, "app", "never-written"), ShouldBeNil)
		})
	})
}

func TestMemoryStore(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	Convey("With an in-memory checkpoint store", t, func() {
		storeContract(t, func() Store {
			return NewMemoryStore("test-run")
		})
	})
}

func TestSQLiteStore(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	Convey("With a SQLite checkpoint store on a temp file", t, func() {
		dir := t.TempDir()
		n := 0
		storeContract(t, func() Store {
			n++
			store, err := NewSQLiteStore(filepath.Join(dir, "checkpoints", "cp"+string(rune('a'+n))+".db"), "test-run")
			So(err, ShouldBeNil)
			return store
		})
	})

	Convey("Positions survive closing and reopening the file", t, func() {
		path := filepath.Join(t.TempDir(), "mirror.checkpoints.db")
		ctx := context.Background()

		store, err := NewSQLiteStore(path, "run-1")
		So(err, ShouldBeNil)
		So(store.Save(ctx, "app", "users", Position("durable-token")), ShouldBeNil)
		So(store.Close(), ShouldBeNil)

		reopened, err := NewSQLiteStore(path, "run-2")
		So(err, ShouldBeNil)
		defer reopened.Close()

		pos, existed, err := reopened.Load(ctx, "app", "users")
		So(err, ShouldBeNil)
		So(existed, ShouldBeTrue)
		So(string(pos), ShouldEqual, "durable-token")
	})
}

func TestConfigValidate(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	Convey("Validating checkpoint configs", t, func() {
		Convey("an empty backend defaults to sqlite and is valid", func() {
			So((&Config{}).Validate(), ShouldBeNil)
		})

		Convey("known backends are valid", func() {
			So((&Config{Backend: BackendSQLite}).Validate(), ShouldBeNil)
			So((&Config{Backend: BackendMemory}).Validate(), ShouldBeNil)
			So((&Config{Backend: BackendS3, Bucket: "b"}).Validate(), ShouldBeNil)
		})

		Convey("s3 without a bucket is invalid", func() {
			So((&Config{Backend: BackendS3}).Validate(), ShouldNotBeNil)
		})

		Convey("an unknown backend is invalid", func() {
			So((&Config{Backend: "etcd"}).Validate(), ShouldNotBeNil)
		})
	})
}
