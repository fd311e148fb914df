// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/datatypes"
)

// Key layout:
//
//	run#<id>                  -> TestRun JSON
//	seq#<unix-nano>#<id>      -> run id (listing index, reverse-iterated)
//	res#<run-id>#<counter>    -> TestResult JSON (counter preserves order)
const (
	runPrefix = "run#"
	seqPrefix = "seq#"
	resPrefix = "res#"
)

// BadgerStore persists runs in an embedded BadgerDB. All values are JSON;
// write volume is low enough that encoding cost is irrelevant next to the
// model calls a run makes.
type BadgerStore struct {
	db *badger.DB
}

// BadgerConfig holds the knobs the service exposes for its embedded store.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory disables disk persistence. Used by tests.
	InMemory bool
	// SyncWrites trades write latency for durability.
	SyncWrites bool
}

// NewBadgerStore opens (or creates) the embedded database.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	slog.Info("Opened badger run store", "path", cfg.Path, "in_memory", cfg.InMemory)
	return &BadgerStore{db: db}, nil
}

func runKey(id string) []byte { return []byte(runPrefix + id) }

func seqKey(createdAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d#%s", seqPrefix, createdAt.UnixNano(), id))
}

func resKey(runID string, n int) []byte {
	return []byte(fmt.Sprintf("%s%s#%08d", resPrefix, runID, n))
}

// CreateRun implements RunStore.
func (s *BadgerStore) CreateRun(_ context.Context, run *datatypes.TestRun) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal test run: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := runKey(run.ID)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("test run %s already exists", run.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, raw); err != nil {
			return err
		}
		return txn.Set(seqKey(run.CreatedAt, run.ID), []byte(run.ID))
	})
}

// GetRun implements RunStore.
func (s *BadgerStore) GetRun(_ context.Context, runID string) (*datatypes.TestRun, error) {
	var run datatypes.TestRun
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRunNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns implements RunStore. The sequence index sorts by creation time;
// reverse iteration yields newest-first.
func (s *BadgerStore) ListRuns(_ context.Context, skip, limit int) ([]*datatypes.TestRun, error) {
	out := make([]*datatypes.TestRun, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Reverse = true
		iopts.Prefix = []byte(seqPrefix)
		it := txn.NewIterator(iopts)
		defer it.Close()

		// Reverse iteration needs a seek target past every seq key.
		seekTo := append([]byte(seqPrefix), 0xFF)
		skipped := 0
		for it.Seek(seekTo); it.ValidForPrefix([]byte(seqPrefix)) && len(out) < limit; it.Next() {
			if skipped < skip {
				skipped++
				continue
			}
			var runID string
			if err := it.Item().Value(func(val []byte) error {
				runID = string(val)
				return nil
			}); err != nil {
				return err
			}
			item, err := txn.Get(runKey(runID))
			if err != nil {
				return fmt.Errorf("dangling run index for %s: %w", runID, err)
			}
			var run datatypes.TestRun
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				return err
			}
			out = append(out, &run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRun implements RunStore.
func (s *BadgerStore) UpdateRun(_ context.Context, run *datatypes.TestRun) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal test run: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := runKey(run.ID)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRunNotFound
		} else if err != nil {
			return err
		}
		return txn.Set(key, raw)
	})
}

// AppendResult implements RunStore. The per-run counter is derived by
// scanning existing result keys; runs cap out at tens of results, so the
// scan stays cheap and keeps appends transactional.
func (s *BadgerStore) AppendResult(_ context.Context, result *datatypes.TestResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal test result: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(runKey(result.TestRunID)); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRunNotFound
		} else if err != nil {
			return err
		}
		prefix := []byte(resPrefix + result.TestRunID + "#")
		iopts := badger.DefaultIteratorOptions
		iopts.PrefetchValues = false
		iopts.Prefix = prefix
		it := txn.NewIterator(iopts)
		n := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		it.Close()
		return txn.Set(resKey(result.TestRunID, n), raw)
	})
}

// ResultsForRun implements RunStore. Keys sort by the zero-padded append
// counter, so forward iteration is execution order.
func (s *BadgerStore) ResultsForRun(_ context.Context, runID string) ([]*datatypes.TestResult, error) {
	var out []*datatypes.TestResult
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(runKey(runID)); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRunNotFound
		} else if err != nil {
			return err
		}
		prefix := []byte(resPrefix + runID + "#")
		iopts := badger.DefaultIteratorOptions
		iopts.Prefix = prefix
		it := txn.NewIterator(iopts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var result datatypes.TestResult
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &result)
			}); err != nil {
				return err
			}
			out = append(out, &result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*datatypes.TestResult{}
	}
	return out, nil
}

// Close implements RunStore.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
