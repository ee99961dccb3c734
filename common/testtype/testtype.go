// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package testtype implements the gating used to separate unit tests from
// tests that need live servers or cloud credentials.
package testtype

import (
	"os"
	"strings"
	"testing"
)

const (
	// UnitTestType tests require no outside services, though they may
	// still do file I/O.
	UnitTestType = "unit"

	// IntegrationTestType tests require a live mongod.
	IntegrationTestType = "integration"

	// KerberosTestType tests require a kerberos-enabled deployment.
	KerberosTestType = "kerberos"

	// SSLTestType tests require a TLS-enabled mongod.
	SSLTestType = "ssl"

	// AuthTestType tests require an auth-enabled mongod.
	AuthTestType = "auth"

	// AWSAuthTestType tests require AWS credentials in the environment.
	AWSAuthTestType = "aws_auth"

	// SRVConnectionStringTestType tests require an Atlas-like deployment
	// reachable through an SRV connection string.
	SRVConnectionStringTestType = "srv_connection_string"
)

// HasTestType returns true if the given test type is enabled through the
// TOOLS_TESTING_<TYPE> environment variables.
func HasTestType(testType string) bool {
	envVar := "TOOLS_TESTING_" + strings.ToUpper(testType)
	return os.Getenv(envVar) != ""
}

// SkipUnlessTestType skips the test unless the given test type is enabled.
func SkipUnlessTestType(t *testing.T, testType string) {
	if !HasTestType(testType) {
		t.Skipf("skipping %s test", testType)
	}
}

// SkipUnlessBothTestTypes skips the test unless both given test types are
// enabled.
func SkipUnlessBothTestTypes(t *testing.T, testType1, testType2 string) {
	if !HasTestType(testType1) || !HasTestType(testType2) {
		t.Skipf("skipping %s %s test", testType1, testType2)
	}
}
