// Package cache keeps the last successfully fetched post list per feed in memory.
// Entries are replaced on every successful fetch and never evicted, so an expired
// entry stays available as a fallback when the upstream is down.
package cache

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/umputun/folio/pkg/domain"
)

// DefaultTTL is the freshness window of a cache entry
const DefaultTTL = 10 * time.Minute

// Entry is a cached post list with its fetch time and expiration
type Entry struct {
	Posts     []domain.Post
	Timestamp time.Time
	ExpiresAt time.Time
}

// Fresh reports whether the entry is still within its TTL at the given moment
func (e Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Store maps cache keys to entries. Safe for concurrent use, last writer wins.
type Store struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]Entry
}

// New makes a store with the given TTL, non-positive ttl means DefaultTTL
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{ttl: ttl, entries: make(map[string]Entry)}
}

// TTL returns the freshness window used for new entries
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get returns the entry for key, fresh or not
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Put replaces the entry for key with a copy of posts fetched at now
func (s *Store) Put(key string, posts []domain.Post, now time.Time) Entry {
	e := Entry{
		Posts:     slices.Clone(posts),
		Timestamp: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if e.Posts == nil {
		e.Posts = []domain.Post{}
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return e
}

// Keys returns all stored keys, sorted
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]string, 0, len(s.entries))
	for k := range s.entries {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}
