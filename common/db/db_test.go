// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package db

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/mongodb-labs/mongomirror/common/options"
	"github.com/mongodb-labs/mongomirror/common/testtype"
	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Environment names and helpers duplicated from testutil to avoid an
// import cycle.
var (
	createdUserNameEnv     = "TOOLS_TESTING_AUTH_USERNAME"
	createdUserPasswordEnv = "TOOLS_TESTING_AUTH_PASSWORD"
	pkcs8PasswordEnv       = "TOOLS_TESTING_PKCS8_PASSWORD"
	testURIEnv             = "TOOLS_TESTING_MONGOD"
	kerberosUsername       = "drivers%40LDAPTEST.10GEN.CC"
	kerberosConnection     = "ldaptest.10gen.cc:27017"
)

func dbTestURI() string {
	if uri := os.Getenv(testURIEnv); uri != "" {
		return uri
	}
	return "mongodb://localhost:" + DefaultTestPort + "/"
}

func dbAuthOptions() options.Auth {
	if testtype.HasTestType(testtype.AuthTestType) {
		return options.Auth{
			Username: os.Getenv(createdUserNameEnv),
			Password: os.Getenv(createdUserPasswordEnv),
			Source:   "admin",
		}
	}

	return options.Auth{}
}

func dbSSLOptions() options.SSL {
	if testtype.HasTestType(testtype.SSLTestType) {
		return options.SSL{
			UseSSL:        true,
			SSLCAFile:     "testdata/ca-ia.pem",
			SSLPEMKeyFile: "testdata/test-client.pem",
		}
	}

	return options.SSL{}
}

func dbToolOptions() options.ToolOptions {
	auth := dbAuthOptions()
	ssl := dbSSLOptions()
	return options.ToolOptions{
		URI:        &options.URI{ConnectionString: dbTestURI()},
		Connection: &options.Connection{},
		SSL:        &ssl,
		Auth:       &auth,
	}
}

func TestNewSessionProvider(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.IntegrationTestType)

	Convey("When initializing a session provider", t, func() {
		provider, err := NewSessionProvider(dbToolOptions())
		So(err, ShouldBeNil)

		Convey("the shared client should be connected and pingable", func() {
			client, err := provider.GetSession()
			So(err, ShouldBeNil)
			So(client.Ping(context.Background(), nil), ShouldBeNil)
		})

		Convey("closing it should invalidate further sessions", func() {
			provider.Close()
			_, err := provider.GetSession()
			So(err, ShouldNotBeNil)
		})
	})
}

func TestDropDatabase(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.IntegrationTestType)

	Convey("With a session provider and a scratch database", t, func() {
		provider, err := NewSessionProvider(dbToolOptions())
		So(err, ShouldBeNil)
		defer provider.Close()

		session, err := provider.GetSession()
		So(err, ShouldBeNil)

		_, err = provider.DB("mirror_scratch").Collection("pairs").
			InsertOne(context.Background(), bson.D{{Key: "_id", Value: 1}})
		So(err, ShouldBeNil)

		Convey("dropping it should remove it from the listing", func() {
			So(provider.DropDatabase("mirror_scratch"), ShouldBeNil)

			names, err := session.ListDatabaseNames(context.Background(), bson.D{})
			So(err, ShouldBeNil)
			So(names, ShouldNotContain, "mirror_scratch")
		})

		Convey("dropping a database that does not exist should succeed", func() {
			So(provider.DropDatabase("mirror_scratch_missing"), ShouldBeNil)
		})
	})
}

func TestServerVersionArray(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.IntegrationTestType)

	Convey("With a valid session provider", t, func() {
		provider, err := NewSessionProvider(dbToolOptions())
		So(err, ShouldBeNil)
		defer provider.Close()

		version, err := provider.ServerVersionArray()
		So(err, ShouldBeNil)
		So(version.GT(Version{}), ShouldBeTrue)
	})
}

func TestConfigureClient(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	Convey("Configuring a client from tool options", t, func() {
		enabled := options.EnabledOptions{Auth: true, Connection: true, URI: true}

		Convey("a URI with multiple hosts should succeed", func() {
			toolOptions := options.New("mongomirror", "", "", "", enabled)
			_, err := toolOptions.ParseArgs(
				[]string{"--uri", "mongodb://db0.example.com:27017,db1.example.com:27017/?replicaSet=rs0"})
			So(err, ShouldBeNil)

			_, err = configureClient(*toolOptions)
			So(err, ShouldBeNil)
		})

		Convey("a URI with an authSource and flag credentials should succeed", func() {
			toolOptions := options.New("mongomirror", "", "", "", enabled)
			_, err := toolOptions.ParseArgs([]string{
				"--username", "alice", "--password", "secret",
				"--uri", "mongodb://db0.example.com/?authSource=admin",
			})
			So(err, ShouldBeNil)

			_, err = configureClient(*toolOptions)
			So(err, ShouldBeNil)
		})

		Convey("options without a connection string should fail", func() {
			auth := options.Auth{}
			ssl := options.SSL{}
			opts := options.ToolOptions{
				URI:        &options.URI{},
				Connection: &options.Connection{},
				SSL:        &ssl,
				Auth:       &auth,
			}
			_, err := configureClient(opts)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "connection string is required")
		})

		Convey("a missing CA file should fail to load", func() {
			auth := options.Auth{}
			ssl := options.SSL{UseSSL: true, SSLCAFile: "testdata/does-not-exist.pem"}
			opts := options.ToolOptions{
				URI:        &options.URI{ConnectionString: dbTestURI()},
				Connection: &options.Connection{},
				SSL:        &ssl,
				Auth:       &auth,
			}
			_, err := configureClient(opts)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "can't load CA file")
		})

		Convey("FIPS mode should be rejected", func() {
			auth := options.Auth{}
			ssl := options.SSL{UseSSL: true, SSLFipsMode: true}
			opts := options.ToolOptions{
				URI:        &options.URI{ConnectionString: dbTestURI()},
				Connection: &options.Connection{},
				SSL:        &ssl,
				Auth:       &auth,
			}
			_, err := configureClient(opts)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "FIPS")
		})
	})
}

func TestCanIgnoreError(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.UnitTestType)

	Convey("With write errors from the target deployment", t, func() {
		Convey("a nil error can be ignored", func() {
			So(CanIgnoreError(nil), ShouldBeTrue)
		})

		Convey("duplicate key errors can be ignored", func() {
			So(CanIgnoreError(mongo.WriteError{Code: ErrDuplicateKeyCode}), ShouldBeTrue)
		})

		Convey("document validation failures can be ignored", func() {
			So(CanIgnoreError(mongo.WriteError{Code: ErrFailedDocumentValidation}), ShouldBeTrue)
		})

		Convey("other write errors cannot be ignored", func() {
			So(CanIgnoreError(mongo.WriteError{Code: 11601}), ShouldBeFalse)
		})

		Convey("bulk writes with only ignorable errors can be ignored", func() {
			err := mongo.BulkWriteException{
				WriteErrors: []mongo.BulkWriteError{
					{WriteError: mongo.WriteError{Code: ErrDuplicateKeyCode}},
					{WriteError: mongo.WriteError{Code: ErrFailedDocumentValidation}},
				},
			}
			So(CanIgnoreError(err), ShouldBeTrue)
		})

		Convey("bulk writes with any other error cannot be ignored", func() {
			err := mongo.BulkWriteException{
				WriteErrors: []mongo.BulkWriteError{
					{WriteError: mongo.WriteError{Code: ErrDuplicateKeyCode}},
					{WriteError: mongo.WriteError{Code: 11601}},
				},
			}
			So(CanIgnoreError(err), ShouldBeFalse)
		})

		Convey("bulk writes with a write concern error cannot be ignored", func() {
			err := mongo.BulkWriteException{
				WriteConcernError: &mongo.WriteConcernError{
					Message: "waiting for replication timed out",
				},
			}
			So(CanIgnoreError(err), ShouldBeFalse)
		})

		Convey("command errors follow the same codes", func() {
			So(CanIgnoreError(mongo.CommandError{Code: ErrDuplicateKeyCode}), ShouldBeTrue)
			So(CanIgnoreError(mongo.CommandError{Code: 2}), ShouldBeFalse)
		})

		Convey("arbitrary errors cannot be ignored", func() {
			So(CanIgnoreError(errors.New("connection reset by peer")), ShouldBeFalse)
		})
	})
}

func TestServerCertificateVerification(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.IntegrationTestType)
	testtype.SkipUnlessTestType(t, testtype.SSLTestType)

	auth := dbAuthOptions()

	Convey("When connecting with only the intermediate certificate", t, func() {
		ssl := options.SSL{
			UseSSL:        true,
			SSLCAFile:     "testdata/ia.pem",
			SSLPEMKeyFile: "testdata/test-client.pem",
		}
		opts := options.ToolOptions{
			URI:        &options.URI{ConnectionString: dbTestURI()},
			Connection: &options.Connection{Timeout: 10},
			SSL:        &ssl,
			Auth:       &auth,
		}

		provider, err := NewSessionProvider(opts)
		So(err, ShouldBeNil)

		client, err := provider.GetSession()
		So(err, ShouldBeNil)
		So(client.Ping(context.Background(), nil), ShouldBeNil)

		provider.Close()
	})
}

func TestPKCS8ClientCertificates(t *testing.T) {
	testtype.SkipUnlessTestType(t, testtype.IntegrationTestType)
	testtype.SkipUnlessTestType(t, testtype.SSLTestType)

	auth := dbAuthOptions()

	newOpts := func(keyFile, keyPassword string) options.ToolOptions {
		ssl := options.SSL{
			UseSSL:            true,
			SSLCAFile:         "testdata/ca-ia.pem",
			SSLPEMKeyFile:     keyFile,
			SSLPEMKeyPassword: keyPassword,
		}
		return options.ToolOptions{
			URI:        &options.URI{ConnectionString: dbTestURI()},
			Connection: &options.Connection{Timeout: 10},
			SSL:        &ssl,
			Auth:       &auth,
		}
	}

	Convey("When the client key is in PKCS#8 format", t, func() {
		Convey("an unencrypted key should connect", func() {
			opts := newOpts("testdata/test-client-pkcs8-unencrypted.pem", "")

			provider, err := NewSessionProvider(opts)
			So(err, ShouldBeNil)

			client, err := provider.GetSession()
			So(err, ShouldBeNil)
			So(client.Ping(context.Background(), nil), ShouldBeNil)

			provider.Close()
		})

		Convey("an encrypted key should connect with its password", func() {
			opts := newOpts("testdata/test-client-pkcs8-encrypted.pem", os.Getenv(pkcs8PasswordEnv))

			provider, err := NewSessionProvider(opts)
			So(err, ShouldBeNil)

			client, err := provider.GetSession()
			So(err, ShouldBeNil)
			So(client.Ping(context.Background(), nil), ShouldBeNil)

			provider.Close()
		})
	})
}

func TestAuthConnection(t *testing.T) {
	if !testtype.HasTestType(testtype.AWSAuthTestType) && !testtype.HasTestType(testtype.KerberosTestType) {
		t.SkipNow()
	}

	Convey("With an AWS or Kerberos auth URI", t, func() {
		uri := os.Getenv(testURIEnv)
		if !testtype.HasTestType(testtype.AWSAuthTestType) {
			uri = "mongodb://" + kerberosUsername + "@" + kerberosConnection +
				"/kerberos?authSource=$external&authMechanism=GSSAPI"
		}

		enabled := options.EnabledOptions{Auth: true, Connection: true, URI: true}
		toolOptions := options.New("mongomirror", "", "", "", enabled)
		_, err := toolOptions.ParseArgs([]string{"--uri=" + uri})
		So(err, ShouldBeNil)

		Convey("a connection should succeed", func() {
			_, err = NewSessionProvider(*toolOptions)
			So(err, ShouldBeNil)
		})
	})
}
