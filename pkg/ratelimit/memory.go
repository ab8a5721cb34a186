package ratelimit

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is a process-local Store implementation with the same
// semantics as the Redis one. Used in tests and when Redis is not
// configured. Key expiry is tracked but only enforced lazily.
type MemoryStore struct {
	mu     sync.Mutex
	zsets  map[string][]Member
	hashes map[string]map[string]string
	expiry map[string]time.Time
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		zsets:  make(map[string][]Member),
		hashes: make(map[string]map[string]string),
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
}

// SetClock overrides the time source used for key expiry. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// dropExpired removes a key whose TTL has elapsed. Caller holds the lock.
func (s *MemoryStore) dropExpired(key string) {
	if deadline, ok := s.expiry[key]; ok && s.now().After(deadline) {
		delete(s.zsets, key)
		delete(s.hashes, key)
		delete(s.expiry, key)
	}
}

func (s *MemoryStore) ZRemRangeByScore(_ context.Context, key string, min, max float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	kept := s.zsets[key][:0]
	for _, m := range s.zsets[key] {
		if m.Score < min || m.Score > max {
			kept = append(kept, m)
		}
	}
	s.zsets[key] = kept
	return nil
}

func (s *MemoryStore) ZCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	return int64(len(s.zsets[key])), nil
}

func (s *MemoryStore) ZRangeWithScores(_ context.Context, key string, start, stop int64) ([]Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	set := s.zsets[key]
	n := int64(len(set))
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return nil, nil
	}
	out := make([]Member, stop-start+1)
	copy(out, set[start:stop+1])
	return out, nil
}

func (s *MemoryStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	set := s.zsets[key]
	for i, m := range set {
		if m.Member == member {
			set[i].Score = score
			s.sortSet(key)
			return nil
		}
	}
	s.zsets[key] = append(set, Member{Member: member, Score: score})
	s.sortSet(key)
	return nil
}

// sortSet keeps members ordered by score. Caller holds the lock.
func (s *MemoryStore) sortSet(key string) {
	set := s.zsets[key]
	sort.SliceStable(set, func(i, j int) bool { return set[i].Score < set[j].Score })
}

func (s *MemoryStore) ZCount(_ context.Context, key string, min, max float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	var count int64
	for _, m := range s.zsets[key] {
		if m.Score >= min && m.Score <= max {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiry[key] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) HIncrBy(_ context.Context, key, field string, incr int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	h := s.hashes[key]
	if h == nil {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	cur, _ := strconv.ParseInt(h[field], 10, 64)
	h[field] = strconv.FormatInt(cur+incr, 10)
	return nil
}

func (s *MemoryStore) HIncrByFloat(_ context.Context, key, field string, incr float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	h := s.hashes[key]
	if h == nil {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	cur, _ := strconv.ParseFloat(h[field], 64)
	h[field] = strconv.FormatFloat(cur+incr, 'f', -1, 64)
	return nil
}

func (s *MemoryStore) HGet(_ context.Context, key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	h, ok := s.hashes[key]
	if !ok {
		return "", false, nil
	}
	val, ok := h[field]
	return val, ok, nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.zsets, key)
		delete(s.hashes, key)
		delete(s.expiry, key)
	}
	return nil
}
