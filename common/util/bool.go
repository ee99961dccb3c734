// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package util

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IsTruthy returns true for values the server will interpret as "true".
// True values include {}, [], "", true, and any numbers != 0.
func IsTruthy(val interface{}) bool {
	if val == nil {
		return false
	}
	if val == (primitive.Undefined{}) {
		return false
	}

	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.String, reflect.Struct:
		return true
	default:
		z := reflect.Zero(v.Type())
		return v.Interface() != z.Interface()
	}
}

// ToInt converts any numeric value into an int, or errors for any other type.
func ToInt(number interface{}) (int, error) {
	switch num := number.(type) {
	case int:
		return num, nil
	case int32:
		return int(num), nil
	case int64:
		return int(num), nil
	case float32:
		return int(num), nil
	case float64:
		return int(num), nil
	default:
		return 0, fmt.Errorf("cannot convert type %T to an int", number)
	}
}
