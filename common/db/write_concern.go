// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package db

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mongodb-labs/mongomirror/common/log"
	"github.com/mongodb-labs/mongomirror/common/util"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// NewMongoWriteConcern builds the write concern for a mongodb target. The
// writeConcern key of the target block takes precedence over any write
// concern in the target's connection string; with neither, writes use
// majority.
func NewMongoWriteConcern(
	writeConcern string,
	cs *connstring.ConnString,
) (*writeconcern.WriteConcern, error) {
	var wc *writeconcern.WriteConcern
	var err error

	if writeConcern == "" && cs != nil {
		wc, err = writeConcernFromConnString(cs)
	} else {
		wc, err = writeConcernFromString(writeConcern)
	}
	if err != nil {
		return nil, err
	}

	log.Logvf(log.Info, "using write concern: %v", wc)
	return wc, nil
}

func writeConcernFromConnString(cs *connstring.ConnString) (*writeconcern.WriteConcern, error) {
	opts := make([]writeconcern.Option, 0, 3)

	switch {
	case cs.WNumberSet:
		if cs.WNumber < 0 {
			return nil, fmt.Errorf("invalid 'w' argument: %v", cs.WNumber)
		}
		opts = append(opts, writeconcern.W(cs.WNumber))
	case cs.WString != "":
		opts = append(opts, writeconcern.WTagSet(cs.WString))
	default:
		opts = append(opts, writeconcern.WMajority())
	}

	if cs.JSet {
		opts = append(opts, writeconcern.J(cs.J))
	}
	if cs.WTimeoutSet {
		opts = append(opts, writeconcern.WTimeout(cs.WTimeout))
	}

	return writeconcern.New(opts...), nil
}

// writeConcernFromString accepts either a bare w mode ("majority", "2")
// or an extended JSON document such as {"w": 2, "j": true, "wtimeout": 500}
// with field names quoted.
func writeConcernFromString(spec string) (*writeconcern.WriteConcern, error) {
	if spec == "" {
		return writeconcern.New(writeconcern.WMajority()), nil
	}

	doc := map[string]interface{}{}
	if err := bson.UnmarshalExtJSON([]byte(spec), false, &doc); err == nil {
		return writeConcernFromDocument(doc)
	}

	// Not a document, so the whole value names the w mode.
	wOpt, err := wFromString(spec)
	if err != nil {
		return nil, err
	}

	return writeconcern.New(wOpt), nil
}

func writeConcernFromDocument(doc map[string]interface{}) (*writeconcern.WriteConcern, error) {
	opts := make([]writeconcern.Option, 0, 3)

	if wVal, ok := doc["w"]; ok {
		wOpt, err := wFromValue(wVal)
		if err != nil {
			return nil, err
		}
		opts = append(opts, wOpt)
	} else {
		opts = append(opts, writeconcern.WMajority())
	}

	if jVal, ok := doc["j"]; ok && util.IsTruthy(jVal) {
		opts = append(opts, writeconcern.J(true))
	}

	if wtVal, ok := doc["wtimeout"]; ok {
		// The wtimeout field counts milliseconds.
		ms, err := util.ToInt(wtVal)
		if err != nil {
			return nil, fmt.Errorf("invalid 'wtimeout' argument: %v", wtVal)
		}
		opts = append(opts, writeconcern.WTimeout(time.Duration(ms)*time.Millisecond))
	}

	return writeconcern.New(opts...), nil
}

func wFromValue(wVal interface{}) (writeconcern.Option, error) {
	if wNumber, err := util.ToInt(wVal); err == nil {
		return wFromNumber(wNumber)
	}
	if wString, ok := wVal.(string); ok {
		return wFromString(wString)
	}
	return nil, fmt.Errorf("invalid 'w' argument type: %v has type %T", wVal, wVal)
}

func wFromNumber(wNumber int) (writeconcern.Option, error) {
	if wNumber < 0 {
		return nil, fmt.Errorf("invalid 'w' argument: %v", wNumber)
	}
	return writeconcern.W(wNumber), nil
}

func wFromString(wString string) (writeconcern.Option, error) {
	if wString == "" {
		return writeconcern.WMajority(), nil
	}
	if wNumber, err := strconv.Atoi(wString); err == nil {
		return wFromNumber(wNumber)
	}
	return writeconcern.WTagSet(wString), nil
}
