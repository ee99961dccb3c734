// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongomirror

import (
	"strconv"
	"strings"

	"github.com/mongodb-labs/mongomirror/common/bsonutil"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrMissingIdentifier is returned by Translate for a document that carries
// no top-level _id field.
var ErrMissingIdentifier = errors.New("document has no _id field")

const idKey = "_id"

// Translate converts a source document into its target form. The returned
// key is the stringified top-level _id; the body is a copy of the document
// with that field removed and any nested _id fields stringified in place.
// The input is never modified, so a retried batch can re-read it.
func Translate(doc bson.D) (string, bson.D, error) {
	idValue, err := bsonutil.FindValueByKey(idKey, &doc)
	if err != nil {
		return "", nil, ErrMissingIdentifier
	}
	key, err := stringifyIdentifier(idValue)
	if err != nil {
		return "", nil, err
	}

	body, err := translateDocument(doc)
	if err != nil {
		return "", nil, err
	}
	bsonutil.RemoveKey(idKey, &body)

	return key, body, nil
}

// TranslateUpdateFields normalizes an update-description fragment. Values
// are walked like document bodies, and fields addressing an _id through a
// dotted path are stringified the same way nested _id fields are.
func TranslateUpdateFields(fields bson.D) (bson.D, error) {
	out := make(bson.D, 0, len(fields))
	for _, elem := range fields {
		if elem.Key == idKey || strings.HasSuffix(elem.Key, "."+idKey) {
			key, err := stringifyIdentifier(elem.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: elem.Key, Value: key})
			continue
		}
		value, err := translateValue(elem.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, bson.E{Key: elem.Key, Value: value})
	}
	return out, nil
}

func translateDocument(doc bson.D) (bson.D, error) {
	out := make(bson.D, 0, len(doc))
	for _, elem := range doc {
		if elem.Key == idKey {
			key, err := stringifyIdentifier(elem.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: idKey, Value: key})
			continue
		}
		value, err := translateValue(elem.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, bson.E{Key: elem.Key, Value: value})
	}
	return out, nil
}

func translateValue(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case bson.D:
		return translateDocument(v)
	case bson.A:
		return translateArray(v)
	case []interface{}:
		return translateArray(bson.A(v))
	default:
		return value, nil
	}
}

func translateArray(array bson.A) (bson.A, error) {
	out := make(bson.A, len(array))
	for i, item := range array {
		translated, err := translateValue(item)
		if err != nil {
			return nil, err
		}
		out[i] = translated
	}
	return out, nil
}

// stringifyIdentifier renders a native _id value as the string key used on
// the target. ObjectIDs use their hex form, strings pass through, and
// numbers render bare; BSON compares numeric _ids across types, so numeric
// collisions here cannot occur within one source collection. Everything
// else renders as canonical extended JSON, which is unambiguous across the
// remaining BSON types.
func stringifyIdentifier(value interface{}) (string, error) {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex(), nil
	case string:
		return v, nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case primitive.Decimal128:
		return v.String(), nil
	}

	raw, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: value}}, true, false)
	if err != nil {
		return "", errors.Wrapf(err, "error rendering identifier of type %T", value)
	}
	// MarshalExtJSON only emits whole documents; unwrap the {"v":...} shell.
	rendered := string(raw)
	return rendered[len(`{"v":`) : len(rendered)-1], nil
}
