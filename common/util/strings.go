// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package util

import "regexp"

var uriUserInfoRE = regexp.MustCompile(`^(mongodb(?:\+srv)?://)[^@/?]*@`)

// SanitizeURI redacts the userinfo component of a MongoDB connection string
// so it is safe to log.
func SanitizeURI(u string) string {
	return uriUserInfoRE.ReplaceAllString(u, `$1[**REDACTED**]@`)
}
