// Marquee - Similar-Movie Recommendations with Poster Artwork
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package poster

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const storeKeyPrefix = "poster:"

// Store persists resolved image URLs across restarts. Only successful
// resolutions are stored.
type Store interface {
	Get(ctx context.Context, movieID int) (url string, ok bool, err error)
	Put(ctx context.Context, movieID int, url string) error
}

type storedPoster struct {
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
}

// BadgerStore implements Store on BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an open database. The caller keeps ownership of db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadgerStore opens (or creates) a database directory at path.
// Close releases it.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open poster store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func storeKey(movieID int) []byte {
	return []byte(storeKeyPrefix + strconv.Itoa(movieID))
}

// Get returns the stored URL for movieID.
func (s *BadgerStore) Get(_ context.Context, movieID int) (string, bool, error) {
	var rec storedPoster

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(movieID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get poster %d: %w", movieID, err)
	}
	return rec.URL, rec.URL != "", nil
}

// Put stores url for movieID.
func (s *BadgerStore) Put(_ context.Context, movieID int, url string) error {
	data, err := json.Marshal(storedPoster{URL: url, FetchedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal poster: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(storeKey(movieID), data); err != nil {
			return fmt.Errorf("set poster %d: %w", movieID, err)
		}
		return nil
	})
}

// RunGC compacts the value log until badger reports nothing left to rewrite
// or another GC run is already in progress.
// In-memory databases have no value log and return nil.
func (s *BadgerStore) RunGC(discardRatio float64) error {
	for {
		err := s.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) || errors.Is(err, badger.ErrRejected) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run value log GC: %w", err)
		}
	}
}

// Len counts stored posters.
func (s *BadgerStore) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(storeKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
