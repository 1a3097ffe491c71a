// Package querycache provides a bounded LRU cache with TTL expiry for
// search responses.
package querycache

import (
	"container/list"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scientia/internal/common"
	"github.com/ternarybob/scientia/internal/interfaces"
	"github.com/ternarybob/scientia/internal/models"
)

type entry struct {
	key      string
	resp     *models.SearchResponse
	expires  time.Time
	lruPoint *list.Element
}

// Service caches search responses keyed by the normalized query hash.
// Capacity is enforced with LRU eviction; staleness with a fixed TTL
// checked lazily on Get and proactively on Sweep.
type Service struct {
	mu       sync.Mutex
	entries  map[string]*entry
	lru      *list.List
	capacity int
	ttl      time.Duration
	now      func() time.Time
	logger   arbor.ILogger
}

// NewService creates a cache. Non-positive capacity or TTL fall back to
// the configured defaults.
func NewService(capacity int, ttl time.Duration, logger arbor.ILogger) *Service {
	if capacity <= 0 {
		capacity = common.DefaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = common.DefaultCacheTTL
	}
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		entries:  make(map[string]*entry),
		lru:      list.New(),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// Get returns the cached response, or false on miss or expiry. A hit
// refreshes the entry's LRU position but not its TTL.
func (s *Service) Get(key string) (*models.SearchResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().After(e.expires) {
		s.removeLocked(e)
		return nil, false
	}
	s.lru.MoveToFront(e.lruPoint)
	return e.resp, true
}

// Put stores a response under key, evicting the least-recently-used
// entry when the cache is full. Re-putting an existing key replaces the
// value and resets its TTL.
func (s *Service) Put(key string, resp *models.SearchResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.resp = resp
		e.expires = s.now().Add(s.ttl)
		s.lru.MoveToFront(e.lruPoint)
		return
	}

	for len(s.entries) >= s.capacity {
		oldest := s.lru.Back()
		if oldest == nil {
			break
		}
		s.removeLocked(oldest.Value.(*entry))
	}

	e := &entry{key: key, resp: resp, expires: s.now().Add(s.ttl)}
	e.lruPoint = s.lru.PushFront(e)
	s.entries[key] = e
}

// Sweep drops every expired entry and returns the count removed.
func (s *Service) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, e := range s.entries {
		if now.After(e.expires) {
			s.removeLocked(e)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("Query cache sweep")
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Service) removeLocked(e *entry) {
	s.lru.Remove(e.lruPoint)
	delete(s.entries, e.key)
}

var _ interfaces.QueryCache = (*Service)(nil)
