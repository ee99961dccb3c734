// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package checkpoint

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
    db TEXT NOT NULL,
    coll TEXT NOT NULL,
    resume_token BLOB,
    run_id TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (db, coll)
);
`

// SQLiteStore keeps one row per mapping in a local SQLite file. It is the
// default backend: a single file, no server, durable across restarts.
type SQLiteStore struct {
	db    *sql.DB
	runID string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if necessary) the checkpoint file and
// ensures the schema exists.
func NewSQLiteStore(path, runID string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "error creating checkpoint directory %s", dir)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening checkpoint file %s", path)
	}
	// A single connection sidesteps SQLITE_BUSY between pipeline saves.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "error creating checkpoint schema in %s", path)
	}
	return &SQLiteStore{db: db, runID: runID}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, database, collection string) (Position, bool, error) {
	var token []byte
	row := s.db.QueryRowContext(ctx,
		`SELECT resume_token FROM checkpoints WHERE db = ? AND coll = ?`,
		database, collection)
	err := row.Scan(&token)
	if err == nil {
		return Position(token), true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, errors.Wrapf(err, "error loading checkpoint for %s.%s", database, collection)
	}

	// First sight of this mapping: write the placeholder so later runs can
	// tell it has run before.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (db, coll, resume_token, run_id, updated_at)
		 VALUES (?, ?, NULL, ?, ?)
		 ON CONFLICT (db, coll) DO NOTHING`,
		database, collection, s.runID, time.Now().UTC())
	if err != nil {
		return nil, false, errors.Wrapf(err, "error creating checkpoint placeholder for %s.%s", database, collection)
	}
	return nil, false, nil
}

func (s *SQLiteStore) Save(ctx context.Context, database, collection string, pos Position) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (db, coll, resume_token, run_id, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (db, coll) DO UPDATE
		 SET resume_token = excluded.resume_token,
		     run_id = excluded.run_id,
		     updated_at = excluded.updated_at`,
		database, collection, []byte(pos), s.runID, time.Now().UTC())
	return errors.Wrapf(err, "error saving checkpoint for %s.%s", database, collection)
}

func (s *SQLiteStore) Delete(ctx context.Context, database, collection string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE db = ? AND coll = ?`,
		database, collection)
	return errors.Wrapf(err, "error deleting checkpoint for %s.%s", database, collection)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
