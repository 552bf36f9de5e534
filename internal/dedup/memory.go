package dedup

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore is a bounded, TTL-based in-process store. Records are kept
// in insertion order so both expiry and capacity eviction pop from the
// front. The `now` function is injectable for deterministic testing.
type MemoryStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	order      *list.List
	index      map[string]*list.Element

	now func() time.Time
}

type memEntry struct {
	key    string
	seenAt time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding at most maxEntries live keys.
func NewMemoryStore(ttl time.Duration, maxEntries int) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryStore{
		ttl:        ttl,
		maxEntries: maxEntries,
		order:      list.New(),
		index:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

// Seen implements Store.
func (s *MemoryStore) Seen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(s.now())
	_, ok := s.index[key]
	return ok, nil
}

// MarkSeen implements Store.
func (s *MemoryStore) MarkSeen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(now)
	if _, ok := s.index[key]; ok {
		return false, nil
	}

	for s.order.Len() >= s.maxEntries {
		s.removeLocked(s.order.Front())
	}
	s.index[key] = s.order.PushBack(&memEntry{key: key, seenAt: now})
	return true, nil
}

// Forget implements Store.
func (s *MemoryStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.index[key]; ok {
		s.removeLocked(e)
	}
	return nil
}

// Prune implements Store.
func (s *MemoryStore) Prune(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expireLocked(s.now()), nil
}

// Len returns the number of records currently held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) expireLocked(now time.Time) int {
	cutoff := now.Add(-s.ttl)
	n := 0
	for e := s.order.Front(); e != nil; e = s.order.Front() {
		if e.Value.(*memEntry).seenAt.After(cutoff) {
			break
		}
		s.removeLocked(e)
		n++
	}
	return n
}

func (s *MemoryStore) removeLocked(e *list.Element) {
	s.order.Remove(e)
	delete(s.index, e.Value.(*memEntry).key)
}
