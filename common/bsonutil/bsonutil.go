// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package bsonutil provides utilities for manipulating BSON documents.
package bsonutil

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

// ErrNoSuchField is returned by FindValueByKey when the requested key is not
// present in the document.
var ErrNoSuchField = errors.New("no such field")

// FindValueByKey returns the value of keyName in document. If keyName is not
// found in the top-level of the document, ErrNoSuchField is returned as the
// error.
func FindValueByKey(keyName string, document *bson.D) (interface{}, error) {
	for _, key := range *document {
		if key.Key == keyName {
			return key.Value, nil
		}
	}
	return nil, ErrNoSuchField
}

// RemoveKey removes the given key from the document, returning the removed
// value and whether the key was found in the top-level of the document.
func RemoveKey(key string, document *bson.D) (interface{}, bool) {
	if document == nil {
		return nil, false
	}
	doc := *document
	for i, elem := range doc {
		if elem.Key == key {
			*document = append(doc[:i], doc[i+1:]...)
			return elem.Value, true
		}
	}
	return nil, false
}
