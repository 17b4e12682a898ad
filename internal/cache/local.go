// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// LocalFallback is the bounded local tier consulted when the primary
// RemoteStore errors or is unreachable (spec.md §4.7). It is backed by
// BadgerDB so cached slates and profiles survive a process restart,
// grounded on the teacher's BadgerSessionStore in internal/auth, adapted
// from session records to arbitrary byte-valued cache entries with
// per-key TTL via badger.Entry.WithTTL.
type LocalFallback struct {
	db *badger.DB
}

// NewLocalFallback opens (or creates) a Badger store rooted at dir. An
// empty dir uses Badger's in-memory mode, suitable for tests.
func NewLocalFallback(dir string) (*LocalFallback, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open local fallback store: %w", err)
	}
	return &LocalFallback{db: db}, nil
}

// Close releases the underlying Badger handle.
func (l *LocalFallback) Close() error {
	return l.db.Close()
}

// Get implements RemoteStore.
func (l *LocalFallback) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("local fallback get: %w", err)
	}
	return value, value != nil, nil
}

// Set implements RemoteStore. A zero ttl stores the entry without
// expiration.
func (l *LocalFallback) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("local fallback set: %w", err)
	}
	return nil
}

// Del implements RemoteStore.
func (l *LocalFallback) Del(_ context.Context, key string) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("local fallback delete: %w", err)
	}
	return nil
}

// Scan implements RemoteStore.
func (l *LocalFallback) Scan(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("local fallback scan: %w", err)
	}
	return keys, nil
}

var _ RemoteStore = (*LocalFallback)(nil)
