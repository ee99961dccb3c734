// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package checkpoint

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in a map. It satisfies the Store contract for
// unit tests and dry runs; nothing survives the process.
type MemoryStore struct {
	mu      sync.Mutex
	runID   string
	records map[string]*Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(runID string) *MemoryStore {
	return &MemoryStore{
		runID:   runID,
		records: make(map[string]*Record),
	}
}

func memoryKey(database, collection string) string {
	return database + "\x00" + collection
}

func (s *MemoryStore) Load(ctx context.Context, database, collection string) (Position, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(database, collection)
	if rec, ok := s.records[key]; ok {
		return clonePosition(rec.ResumeToken), true, nil
	}
	s.records[key] = &Record{RunID: s.runID, UpdatedAt: time.Now().UTC()}
	return nil, false, nil
}

func (s *MemoryStore) Save(ctx context.Context, database, collection string, pos Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[memoryKey(database, collection)] = &Record{
		ResumeToken: clonePosition(pos),
		RunID:       s.runID,
		UpdatedAt:   time.Now().UTC(),
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, database, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, memoryKey(database, collection))
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func clonePosition(pos Position) Position {
	if pos == nil {
		return nil
	}
	out := make(Position, len(pos))
	copy(out, pos)
	return out
}
