package retrieval

import (
	"container/list"
	"sync"
	"time"

	"github.com/jetgogoing/sage/pkg/model"
)

// No LRU library appears anywhere in the example pack; this is a
// small, standard container/list-backed LRU, the idiomatic Go shape
// for a bounded cache absent a dedicated dependency.
type cacheEntry struct {
	key       string
	results   []model.RetrievalResult
	sessions  map[string]bool
	expiresAt time.Time
}

type lruCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List
	items    map[string]*list.Element
}

func newLRUCache(capacity int, ttl time.Duration) *lruCache {
	if capacity <= 0 {
		capacity = 512
	}
	return &lruCache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) ([]model.RetrievalResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.ll.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return entry.results, true
}

func (c *lruCache) set(key string, results []model.RetrievalResult, sessions map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*cacheEntry).results = results
		el.Value.(*cacheEntry).sessions = sessions
		el.Value.(*cacheEntry).expiresAt = time.Now().Add(c.ttl)
		return
	}

	entry := &cacheEntry{key: key, results: results, sessions: sessions, expiresAt: time.Now().Add(c.ttl)}
	el := c.ll.PushFront(entry)
	c.items[key] = el

	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
}

// invalidateSession drops every cached entry whose surfaced results
// touched sessionID. Best-effort per spec §4.11: correctness does not
// depend on this running promptly or at all.
func (c *lruCache) invalidateSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for el := c.ll.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*cacheEntry)
		if entry.sessions[sessionID] {
			toRemove = append(toRemove, el)
		}
	}
	for _, el := range toRemove {
		c.ll.Remove(el)
		delete(c.items, el.Value.(*cacheEntry).key)
	}
}
