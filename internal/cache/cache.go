// Package cache provides the best-effort, in-process read-through TTL
// cache described in §4.7: handlers read it before delegating to the
// routing engine or state store, and populate it on miss. Correctness
// never depends on it — a cold or evicted cache degrades to the
// underlying component, never to an error.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// entry pairs a cached payload with its absolute expiry.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// Store is an in-memory, mutex-guarded TTL cache implementing
// domain.Cache. Expired entries read as misses and are removed
// periodically by Janitor.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// New builds an empty cache.
func New() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value for key, or (nil, false) on miss or
// expiry.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || s.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with a ttlSeconds lifetime.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttlSeconds int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{
		value:     value,
		expiresAt: s.now().Add(time.Duration(ttlSeconds) * time.Second),
	}
	return nil
}

// Delete removes one entry, used when its backing state is known to have
// changed (e.g. an offer upsert affecting an already-cached orderbook).
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Len reports the current entry count, including not-yet-reaped expired
// entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Janitor blocks, sweeping expired entries at the given interval, until
// ctx is cancelled. Run it in its own goroutine from cmd/server.
func (s *Store) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// Encode msgpack-encodes v for storage; handlers call this before Set.
func Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode msgpack-decodes a cached payload into dest; handlers call this
// after a Get hit.
func Decode(data []byte, dest any) error {
	return msgpack.Unmarshal(data, dest)
}
