package ratelimiter

import (
	"errors"
	"sync"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache stores bucket state per source key with a sliding expiry.
type Cache interface {
	Get(key string) (bucketState, error)
	Set(key string, state bucketState, expiration time.Duration) error
	Close() error
}

type inMemoryEntry struct {
	state     bucketState
	expiresAt time.Time
}

type InMemory struct {
	cache     map[string]inMemoryEntry
	mu        sync.RWMutex
	stopClean chan struct{}
	cleanOnce sync.Once
}

func NewInMemory(cleanupInterval time.Duration) *InMemory {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	im := &InMemory{
		cache:     make(map[string]inMemoryEntry),
		stopClean: make(chan struct{}),
	}
	go im.cleanupExpired(cleanupInterval)
	return im
}

func (i *InMemory) Get(key string) (bucketState, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	entry, ok := i.cache[key]
	if !ok {
		return bucketState{}, ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return bucketState{}, ErrCacheMiss
	}
	return entry.state, nil
}

func (i *InMemory) Set(key string, state bucketState, expiration time.Duration) error {
	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}

	i.mu.Lock()
	i.cache[key] = inMemoryEntry{state: state, expiresAt: expiresAt}
	i.mu.Unlock()
	return nil
}

func (i *InMemory) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.cache)
}

func (i *InMemory) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			i.removeExpired(time.Now())
		case <-i.stopClean:
			return
		}
	}
}

func (i *InMemory) removeExpired(now time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for key, entry := range i.cache {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(i.cache, key)
		}
	}
}

func (i *InMemory) Close() error {
	i.cleanOnce.Do(func() {
		close(i.stopClean)
	})
	return nil
}
