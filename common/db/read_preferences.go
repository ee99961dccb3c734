// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package db

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/tag"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

type readPrefDoc struct {
	Mode                string              `bson:"mode"`
	TagSets             []map[string]string `bson:"tagSets"`
	MaxStalenessSeconds *int                `bson:"maxStalenessSeconds"`
}

// NewReadPreference builds the read preference for a source deployment.
// The readPreference key of the source block takes precedence over any
// read preference in the source's connection string; with neither, reads
// go to the primary.
func NewReadPreference(rp string, cs *connstring.ConnString) (*readpref.ReadPref, error) {
	if rp == "" && (cs == nil || cs.ReadPreference == "") {
		return readpref.Primary(), nil
	}

	var doc readPrefDoc
	switch {
	case rp == "":
		doc.Mode = cs.ReadPreference
		doc.TagSets = cs.ReadPreferenceTagSets
		if cs.MaxStalenessSet {
			seconds := int(cs.MaxStaleness / time.Second)
			doc.MaxStalenessSeconds = &seconds
		}
	case !strings.HasPrefix(rp, "{"):
		doc.Mode = rp
	default:
		// A JSON document; field names must be quoted
		if err := bson.UnmarshalExtJSON([]byte(rp), false, &doc); err != nil {
			return nil, fmt.Errorf("invalid readPreference json object: %v", err)
		}
	}

	mode, err := readpref.ModeFromString(doc.Mode)
	if err != nil {
		return nil, fmt.Errorf("invalid readPreference mode '%v'", doc.Mode)
	}

	var opts []readpref.Option
	if len(doc.TagSets) > 0 {
		opts = append(opts, readpref.WithTagSets(tag.NewTagSetsFromMaps(doc.TagSets)...))
	}
	if doc.MaxStalenessSeconds != nil {
		opts = append(opts,
			readpref.WithMaxStaleness(time.Duration(*doc.MaxStalenessSeconds)*time.Second))
	}

	pref, err := readpref.New(mode, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid readPreference: %v", err)
	}
	return pref, nil
}
