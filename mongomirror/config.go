// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongomirror

import (
	"io"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/mongodb-labs/mongomirror/common/checkpoint"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"gopkg.in/yaml.v3"
)

// DefaultSaveThreshold is the number of applied change events between
// checkpoint saves when a pair does not set its own.
const DefaultSaveThreshold = 1000

// Supported target store types.
const (
	TargetMongoDB   = "mongodb"
	TargetSurrealDB = "surrealdb"
)

// MirrorConfig is the parsed job file: a checkpoint backend descriptor plus
// the list of database pairs to mirror. It is loaded once at startup and
// immutable afterwards.
type MirrorConfig struct {
	Checkpoint checkpoint.Config `yaml:"checkpoint"`
	Pairs      []DatabasePair    `yaml:"pairs"`
}

// DatabasePair binds one source database to one target store and lists the
// collections mirrored between them.
type DatabasePair struct {
	Source        SourceConfig        `yaml:"source"`
	Target        TargetConfig        `yaml:"target"`
	Collections   []CollectionMapping `yaml:"collections"`
	SaveThreshold int                 `yaml:"saveThreshold"`

	// sourceDB is derived from the source URI during validation.
	sourceDB string
}

// SourceDatabase returns the database named by the pair's source URI. Only
// valid after the config has been validated.
func (pair *DatabasePair) SourceDatabase() string {
	return pair.sourceDB
}

// SourceConfig describes the connection to a source MongoDB deployment. The
// URI carries host, auth, and database; the extra fields cover TLS material
// and read routing that cannot be expressed in a connection string.
type SourceConfig struct {
	URI           string `yaml:"uri"`
	SSLPEMKeyFile string `yaml:"sslPEMKeyFile"`

	// ReadPreference names a mode ("secondaryPreferred") or holds an
	// extended JSON document with mode and tag sets. It applies to the
	// initial copy and the change streams alike.
	ReadPreference string `yaml:"readPreference"`
}

// TargetConfig describes the destination store for one pair. Type selects
// the backend; the remaining fields are backend-specific.
type TargetConfig struct {
	Type string `yaml:"type"`

	// mongodb targets.
	URI string `yaml:"uri"`

	// WriteConcern overrides the majority default on mongodb targets,
	// either as a mode string or as a JSON document such as
	// {"w": 2, "j": true}.
	WriteConcern string `yaml:"writeConcern"`

	// surrealdb targets.
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"`
	Username  string `yaml:"username"`

	// Database is the destination database for either backend.
	Database string `yaml:"database"`
}

// CollectionMapping names one source collection and the target collection it
// mirrors into. Each mapping runs as its own pipeline.
type CollectionMapping struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// LoadMirrorConfig reads and validates the job file at the given path.
func LoadMirrorConfig(path string) (*MirrorConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening job file %s", path)
	}
	defer file.Close()

	conf, err := ReadMirrorConfig(file)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid job file %s", path)
	}
	return conf, nil
}

// ReadMirrorConfig parses a job file from the given reader, rejecting
// unknown keys, and validates the result.
func ReadMirrorConfig(reader io.Reader) (*MirrorConfig, error) {
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	conf := &MirrorConfig{}
	if err := decoder.Decode(conf); err != nil {
		return nil, errors.Wrap(err, "error parsing YAML")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks the parsed job file, fills in defaults, and derives the
// per-pair source database names. Any error here is fatal at startup and no
// pipeline is started.
func (conf *MirrorConfig) Validate() error {
	if err := conf.Checkpoint.Validate(); err != nil {
		return err
	}
	if len(conf.Pairs) == 0 {
		return errors.New("job file configures no database pairs")
	}

	seen := mapset.NewSet[string]()
	for i := range conf.Pairs {
		pair := &conf.Pairs[i]
		if err := pair.validate(); err != nil {
			return errors.Wrapf(err, "pair %d", i+1)
		}
		for _, mapping := range pair.Collections {
			namespace := pair.sourceDB + "." + mapping.Source
			if !seen.Add(namespace) {
				return errors.Errorf("duplicate mapping for source collection %s", namespace)
			}
		}
	}
	return nil
}

func (pair *DatabasePair) validate() error {
	if pair.Source.URI == "" {
		return errors.New("source uri is required")
	}
	cs, err := connstring.Parse(pair.Source.URI)
	if err != nil {
		return errors.Wrap(err, "invalid source uri")
	}
	if cs.Database == "" {
		return errors.New("source uri must name a database")
	}
	pair.sourceDB = cs.Database

	switch pair.Target.Type {
	case TargetMongoDB:
		if pair.Target.URI == "" || pair.Target.Database == "" {
			return errors.New("mongodb targets require uri and database")
		}
	case TargetSurrealDB:
		if pair.Target.URL == "" || pair.Target.Namespace == "" || pair.Target.Database == "" {
			return errors.New("surrealdb targets require url, namespace, and database")
		}
		if pair.Target.WriteConcern != "" {
			return errors.New("writeConcern only applies to mongodb targets")
		}
	default:
		return errors.Errorf("unknown target type %q", pair.Target.Type)
	}

	if len(pair.Collections) == 0 {
		return errors.New("no collection mappings")
	}
	for _, mapping := range pair.Collections {
		if mapping.Source == "" || mapping.Target == "" {
			return errors.New("collection mappings require source and target names")
		}
	}

	if pair.SaveThreshold < 0 {
		return errors.Errorf("saveThreshold cannot be negative (got %d)", pair.SaveThreshold)
	}
	if pair.SaveThreshold == 0 {
		pair.SaveThreshold = DefaultSaveThreshold
	}
	return nil
}
