// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongomirror

import (
	"context"
	"testing"

	"github.com/mongodb-labs/mongomirror/common/checkpoint"
	"github.com/mongodb-labs/mongomirror/common/testtype"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMongoMirrorValidateCommand(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	Convey("With a MongoMirror instance", t, func() {
		mm := &MongoMirror{MirrorOptions: &MirrorOptions{ConfigPath: "job.yaml"}}

		Convey("no command is rejected", func() {
			err := mm.ValidateCommand([]string{})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldEqual, "no command specified")
		})

		Convey("extra positional arguments are rejected", func() {
			err := mm.ValidateCommand([]string{LiveCommand, "extra"})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldEqual, "too many positional arguments")
		})

		Convey("unknown commands are rejected", func() {
			err := mm.ValidateCommand([]string{"replicate"})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldEqual, "'replicate' is not a valid command")
		})

		Convey("migrate is accepted", func() {
			So(mm.ValidateCommand([]string{MigrateCommand}), ShouldBeNil)
			So(mm.Command, ShouldEqual, MigrateCommand)
		})

		Convey("live is accepted", func() {
			So(mm.ValidateCommand([]string{LiveCommand}), ShouldBeNil)
			So(mm.Command, ShouldEqual, LiveCommand)
		})

		Convey("a missing job file path is rejected", func() {
			mm.MirrorOptions.ConfigPath = ""
			err := mm.ValidateCommand([]string{LiveCommand})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldEqual, "--file can not be blank")
		})
	})
}

func TestMappingsFailIndependently(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	Convey("One mapping's sync failure leaves its sibling untouched", t, func() {
		store := checkpoint.NewMemoryStore("run-test")

		broken := NewPipeline(PipelineConfig{
			Database: "app",
			Source:   "broken",
			Target:   "broken",
			Store:    store,
			Writer:   newFakeTarget(),
			Sync: func(ctx context.Context) (int64, error) {
				return 0, errors.New("source cursor died")
			},
			Migrate: true,
		})
		healthy := NewPipeline(PipelineConfig{
			Database: "app",
			Source:   "healthy",
			Target:   "healthy",
			Store:    store,
			Writer:   newFakeTarget(),
			Sync: func(ctx context.Context) (int64, error) {
				return 3, nil
			},
			Migrate: true,
		})

		mm := &MongoMirror{Command: MigrateCommand}
		results, err := mm.runPipelines([]*Pipeline{broken, healthy})

		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "initial sync of app.broken failed")

		So(results, ShouldHaveLength, 2)
		So(results[0].Err, ShouldNotBeNil)
		So(results[0].Namespace(), ShouldEqual, "app.broken")
		So(results[1].Err, ShouldBeNil)
		So(results[1].Synced, ShouldEqual, 3)

		Convey("and both mappings ended up stopped", func() {
			So(broken.State(), ShouldEqual, StateStopped)
			So(healthy.State(), ShouldEqual, StateStopped)
		})

		Convey("and only the healthy mapping recorded a completed sync", func() {
			_, existed, loadErr := store.Load(context.Background(), "app", "healthy")
			So(loadErr, ShouldBeNil)
			So(existed, ShouldBeTrue)
		})
	})
}

func TestMigrateRunEndToEnd(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	Convey("A migrate run copies every mapping once and is a no-op after", t, func() {
		store := checkpoint.NewMemoryStore("run-test")
		target := newFakeTarget()

		build := func() []*Pipeline {
			var pipelines []*Pipeline
			for _, name := range []string{"users", "orders"} {
				coll := name
				pipelines = append(pipelines, NewPipeline(PipelineConfig{
					Database: "app",
					Source:   coll,
					Target:   coll,
					Store:    store,
					Writer:   target,
					Sync: func(ctx context.Context) (int64, error) {
						bulk, err := target.BulkReplacer(coll)
						if err != nil {
							return 0, err
						}
						if err := bulk.Replace("1", nil); err != nil {
							return 0, err
						}
						return 1, bulk.Flush()
					},
					Migrate: true,
				}))
			}
			return pipelines
		}

		mm := &MongoMirror{Command: MigrateCommand}
		results, err := mm.runPipelines(build())

		So(err, ShouldBeNil)
		So(results, ShouldHaveLength, 2)
		So(results[0].Synced+results[1].Synced, ShouldEqual, 2)
		So(target.docs["users"], ShouldContainKey, "1")
		So(target.docs["orders"], ShouldContainKey, "1")

		Convey("a second run touches nothing", func() {
			opsBefore := len(target.ops)
			results, err = mm.runPipelines(build())
			So(err, ShouldBeNil)
			So(results[0].AlreadySynced, ShouldBeTrue)
			So(results[1].AlreadySynced, ShouldBeTrue)
			So(target.ops, ShouldHaveLength, opsBefore)
		})
	})
}
