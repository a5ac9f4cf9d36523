// SPDX-License-Identifier: MIT

package memo

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/jmoldow/lazykit/internal/log"
)

// BadgerStore is a Badger-backed implementation of Store. Values survive
// process restarts, so memoized results are still warm after a redeploy.
type BadgerStore struct {
	db     *badger.DB
	logger zerolog.Logger
	stats  counters
}

// OpenBadgerStore opens (or creates) a Badger database at path.
func OpenBadgerStore(path string, logger zerolog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

// Get retrieves a value from the database.
func (s *BadgerStore) Get(key string) ([]byte, bool) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Warn().Err(err).Str(log.FieldKey, key).Msg("badger get failed")
		}
		s.stats.misses.Add(1)
		return nil, false
	}

	s.stats.hits.Add(1)
	return val, true
}

// Set stores a value with TTL. Badger evicts expired entries itself.
// A non-positive ttl stores the value without expiry.
func (s *BadgerStore) Set(key string, value []byte, ttl time.Duration) {
	err := s.db.Update(func(txn *badger.Txn) error {
		if ttl > 0 {
			e := badger.NewEntry([]byte(key), value).WithTTL(ttl)
			return txn.SetEntry(e)
		}
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		s.logger.Warn().Err(err).Str(log.FieldKey, key).Msg("badger set failed")
		return
	}

	s.stats.sets.Add(1)
}

// Delete removes a value from the database.
func (s *BadgerStore) Delete(key string) {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		s.logger.Warn().Err(err).Str(log.FieldKey, key).Msg("badger delete failed")
	}
}

// Clear removes all values from the database.
func (s *BadgerStore) Clear() {
	if err := s.db.DropAll(); err != nil {
		s.logger.Warn().Err(err).Msg("badger drop failed")
	}
}

// Stats returns store statistics. CurrentSize counts live keys, which
// requires an iteration and may be slow on very large databases.
func (s *BadgerStore) Stats() Stats {
	size := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			size++
		}
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("badger key count failed")
	}

	return Stats{
		Hits:        s.stats.hits.Load(),
		Misses:      s.stats.misses.Load(),
		Sets:        s.stats.sets.Load(),
		Evictions:   s.stats.evictions.Load(),
		CurrentSize: size,
	}
}

// Name identifies the store in spans and logs.
func (s *BadgerStore) Name() string { return "badger" }

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
