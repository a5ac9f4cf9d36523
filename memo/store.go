// SPDX-License-Identifier: MIT

package memo

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store provides thread-safe storage for memoized results.
//
// Values are opaque byte slices so every backend round-trips them the same
// way. Returned slices must be treated as read-only.
type Store interface {
	// Get retrieves a value. Returns false if not found or expired.
	Get(key string) ([]byte, bool)
	// Set stores a value with the specified TTL.
	// A non-positive ttl stores the value without expiry.
	Set(key string, value []byte, ttl time.Duration)
	// Delete removes a value.
	Delete(key string)
	// Clear removes all values.
	Clear()
	// Stats returns store statistics.
	Stats() Stats
}

// Stats holds store performance metrics.
type Stats struct {
	Hits        int64 // Number of successful Get operations
	Misses      int64 // Number of failed Get operations (not found or expired)
	Sets        int64 // Number of Set operations
	Evictions   int64 // Number of expired entries cleaned up
	CurrentSize int   // Current number of stored entries
}

type counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

// entry represents a stored value with expiration time.
// A zero expiration means the entry never expires.
type entry struct {
	value      []byte
	expiration time.Time
}

func (e *entry) isExpired() bool {
	return !e.expiration.IsZero() && time.Now().After(e.expiration)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	janitor *janitor
	stats   counters
}

// NewMemoryStore creates a new in-memory store with automatic cleanup.
// The cleanupInterval determines how often expired entries are removed;
// zero disables the cleanup goroutine.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*entry),
	}

	if cleanupInterval > 0 {
		s.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go s.janitor.run(s)
	}

	return s
}

// Get retrieves a value from the store.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	e, found := s.entries[key]
	s.mu.RUnlock()

	if !found || e.isExpired() {
		s.stats.misses.Add(1)
		return nil, false
	}

	s.stats.hits.Add(1)
	return e.value, true
}

// Set stores a value in the store.
func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration) {
	var expiration time.Time
	if ttl > 0 {
		expiration = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = &entry{
		value:      value,
		expiration: expiration,
	}
	s.mu.Unlock()
	s.stats.sets.Add(1)
}

// Delete removes a value from the store.
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Clear removes all values from the store.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
}

// Stats returns store statistics.
func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	size := len(s.entries)
	s.mu.RUnlock()

	return Stats{
		Hits:        s.stats.hits.Load(),
		Misses:      s.stats.misses.Load(),
		Sets:        s.stats.sets.Load(),
		Evictions:   s.stats.evictions.Load(),
		CurrentSize: size,
	}
}

// Name identifies the store in spans and logs.
func (s *MemoryStore) Name() string { return "memory" }

// deleteExpired removes all expired entries from the store.
// Returns the number of entries deleted.
func (s *MemoryStore) deleteExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key, e := range s.entries {
		if e.isExpired() {
			delete(s.entries, key)
			count++
		}
	}

	s.stats.evictions.Add(int64(count))
	return count
}

// Stop stops the background cleanup goroutine.
func (s *MemoryStore) Stop() {
	if s.janitor != nil {
		s.janitor.stop <- struct{}{}
	}
}

// janitor performs periodic cleanup of expired entries.
type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(s *MemoryStore) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

// NopStore is a store that retains nothing, disabling memoization.
type NopStore struct{}

// NewNopStore creates a store that doesn't store anything.
func NewNopStore() *NopStore {
	return &NopStore{}
}

func (s *NopStore) Get(key string) ([]byte, bool)                 { return nil, false }
func (s *NopStore) Set(key string, value []byte, t time.Duration) {}
func (s *NopStore) Delete(key string)                             {}
func (s *NopStore) Clear()                                        {}
func (s *NopStore) Stats() Stats                                  { return Stats{} }
func (s *NopStore) Name() string                                  { return "nop" }
