// Package memory provides the in-memory storage engine for memkv.
package memory

import (
	"container/heap"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/memkv/pkg/glob"
)

// DefaultSweepInterval is the default period of the active expiration sweep.
const DefaultSweepInterval = time.Second

// TTL sentinels returned by Store.TTL.
const (
	TTLMissing   int64 = -2
	TTLPersisted int64 = -1
)

// entry is one stored record. A zero expireAt means no expiration.
type entry struct {
	value    string
	expireAt time.Time
}

func (e *entry) expiredAt(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// Stats is a point-in-time view of store bookkeeping.
type Stats struct {
	// Entries is the raw key map size, including not-yet-purged expired keys.
	Entries int
	// IndexSize is the number of pairs in the expiration heap (stale included).
	IndexSize int
	// ExpiredLazy counts keys removed by read paths.
	ExpiredLazy uint64
	// ExpiredActive counts keys removed by the sweeper.
	ExpiredActive uint64
}

// Store is a TTL-aware in-memory key-value store.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	index   expiryHeap

	expiredLazy   uint64
	expiredActive uint64

	now           func() time.Time
	sweepInterval time.Duration
	logger        *slog.Logger

	sweeper *Sweeper
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithSweepInterval sets the active expiration period.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithLogger sets the logger used by the sweeper.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		entries:       make(map[string]*entry),
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.sweeper = newSweeper(s, s.sweepInterval, s.logger)
	return s
}

// Set stores value under key, replacing any existing entry.
// A positive ttl sets an absolute expiration of now+ttl; otherwise the key
// never expires.
func (s *Store) Set(key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{value: value}
	if ttl > 0 {
		e.expireAt = s.now().Add(ttl)
		heap.Push(&s.index, expiryPair{at: e.expireAt, key: key})
	}
	s.entries[key] = e
}

// Get returns the value for key if it is live.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.liveLocked(key, s.now())
	if !ok {
		return "", false
	}
	return e.value, true
}

// Delete removes key. It reports whether the key was present, regardless of
// whether it had already expired.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

// Exists reports whether key is live.
func (s *Store) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.liveLocked(key, s.now())
	return ok
}

// TTL returns the remaining lifetime of key in whole seconds, floored at 0.
// It returns TTLMissing if the key is absent or expired and TTLPersisted if
// the key has no expiration.
func (s *Store) TTL(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.liveLocked(key, now)
	if !ok {
		return TTLMissing
	}
	if e.expireAt.IsZero() {
		return TTLPersisted
	}

	remaining := int64(e.expireAt.Sub(now) / time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expire sets a new expiration of now+ttl on a live key.
// It returns false, leaving the store unchanged, if the key is absent,
// already expired, or ttl is not positive. Expirations cannot be removed.
func (s *Store) Expire(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.liveLocked(key, now)
	if !ok || ttl <= 0 {
		return false
	}

	// Entries are replaced, not mutated, so a value handed out by Get never
	// observes a later change.
	renewed := &entry{value: e.value, expireAt: now.Add(ttl)}
	s.entries[key] = renewed
	heap.Push(&s.index, expiryPair{at: renewed.expireAt, key: key})
	return true
}

// Keys purges expired entries and returns the live keys matching pattern,
// sorted. Pattern "*" matches every key.
func (s *Store) Keys(pattern string) []string {
	p := glob.Compile(pattern)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked(s.now())

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		if p.Match(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Size purges expired entries and returns the number of live keys.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked(s.now())
	return len(s.entries)
}

// Clear removes every entry and resets the expiration index.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*entry)
	s.index = nil
}

// SweepExpired runs one active expiration pass and returns the number of
// keys removed. A popped pair only deletes its key if it still matches the
// entry's current expiration; stale pairs are dropped.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for {
		top, ok := s.index.peek()
		if !ok || top.at.After(now) {
			break
		}
		heap.Pop(&s.index)

		e, exists := s.entries[top.key]
		if !exists || !e.expireAt.Equal(top.at) {
			continue
		}
		delete(s.entries, top.key)
		removed++
	}

	s.expiredActive += uint64(removed)
	return removed
}

// Stats returns bookkeeping counters without purging.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Entries:       len(s.entries),
		IndexSize:     len(s.index),
		ExpiredLazy:   s.expiredLazy,
		ExpiredActive: s.expiredActive,
	}
}

// liveLocked returns the entry for key if it is live at now, deleting it
// when it is observed expired. Callers must hold s.mu.
func (s *Store) liveLocked(key string, now time.Time) (*entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if e.expiredAt(now) {
		delete(s.entries, key)
		s.expiredLazy++
		return nil, false
	}
	return e, true
}

// purgeLocked deletes every entry expired at now. Callers must hold s.mu.
func (s *Store) purgeLocked(now time.Time) {
	for k, e := range s.entries {
		if e.expiredAt(now) {
			delete(s.entries, k)
			s.expiredLazy++
		}
	}
}
