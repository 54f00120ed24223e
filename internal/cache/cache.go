// Package cache provides the narrow get/set-with-TTL capability the keyword
// matching engine caches results through. The interface is deliberately small
// so any backing (the in-process map here, or an external cache) can satisfy
// it; positive and negative results share the interface and are told apart by
// the stored value, not the key shape.
package cache

import (
	"sync"
	"time"
)

// Cache is the match-result cache capability.
type Cache interface {
	// TryGet returns the value stored under key and whether it was present
	// and unexpired.
	TryGet(key string) (interface{}, bool)
	// Set stores value under key for ttl. A non-positive ttl stores nothing.
	Set(key string, value interface{}, ttl time.Duration)
}

// entry is a stored value with its expiry deadline.
type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Memory is an in-process TTL cache safe for concurrent use across request
// goroutines. Expired entries are dropped lazily on read and swept
// periodically by a janitor goroutine.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemory creates a Memory cache. sweepInterval controls how often the
// janitor removes expired entries; zero disables the janitor (reads still
// honor TTLs).
func NewMemory(sweepInterval time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go m.janitor(sweepInterval)
	}
	return m
}

// TryGet implements Cache.
func (m *Memory) TryGet(key string) (interface{}, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; another goroutine may have replaced
		// the entry with a fresh one.
		if cur, ok := m.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set implements Cache.
func (m *Memory) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the janitor goroutine.
func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for k, e := range m.entries {
				if now.After(e.expiresAt) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
