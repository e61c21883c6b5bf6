package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const DefaultMemoryCapacity = 100 << 20 // 100MB

// memoryEntry is the LRU node payload. size counts key + value bytes.
type memoryEntry struct {
	key   string
	entry Entry
	size  int64
}

// MemoryStore is the in-process L1: a byte-capacity bounded LRU with lazy TTL
// expiry and a tag index. When capacity is exceeded an eviction pass frees a
// quarter of the capacity in one sweep instead of evicting entry by entry.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	ll       *list.List // front = most recently used
	items    map[string]*list.Element
	tags     map[string]map[string]struct{} // tag -> keys
	now      func() time.Time
}

func NewMemoryStore(capacityBytes int64) *MemoryStore {
	if capacityBytes <= 0 {
		capacityBytes = DefaultMemoryCapacity
	}
	return &MemoryStore{
		capacity: capacityBytes,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		tags:     make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	me := el.Value.(*memoryEntry)
	if me.entry.Expired(s.now()) {
		s.removeElement(el)
		return nil, nil
	}
	s.ll.MoveToFront(el)

	entry := me.entry
	return &entry, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	size := int64(len(key) + len(value))
	if size > s.capacity {
		// A value that cannot fit is silently not cached.
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if el, ok := s.items[key]; ok {
		s.removeElement(el)
	}

	me := &memoryEntry{
		key: key,
		entry: Entry{
			Value:     value,
			Tags:      tags,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		},
		size: size,
	}
	el := s.ll.PushFront(me)
	s.items[key] = el
	s.used += size
	for _, tag := range tags {
		keys, ok := s.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}

	if s.used > s.capacity {
		s.evict()
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		s.removeElement(el)
	}
	return nil
}

func (s *MemoryStore) InvalidateByTag(_ context.Context, tag string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, ok := s.tags[tag]
	if !ok {
		return 0, nil
	}
	count := 0
	for key := range keys {
		if el, ok := s.items[key]; ok {
			s.removeElement(el)
			count++
		}
	}
	delete(s.tags, tag)
	return count, nil
}

// UsedBytes reports current size accounting, for observability and tests.
func (s *MemoryStore) UsedBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}

// evict drops least-recently-used entries until a quarter of the capacity is
// free, amortizing eviction cost over many sets. Caller holds the lock.
func (s *MemoryStore) evict() {
	target := s.capacity - s.capacity/4
	for s.used > target {
		el := s.ll.Back()
		if el == nil {
			return
		}
		s.removeElement(el)
	}
}

// removeElement unlinks an entry from the list, map, tag index and size
// accounting. Caller holds the lock.
func (s *MemoryStore) removeElement(el *list.Element) {
	me := el.Value.(*memoryEntry)
	s.ll.Remove(el)
	delete(s.items, me.key)
	s.used -= me.size
	for _, tag := range me.entry.Tags {
		if keys, ok := s.tags[tag]; ok {
			delete(keys, me.key)
			if len(keys) == 0 {
				delete(s.tags, tag)
			}
		}
	}
}
