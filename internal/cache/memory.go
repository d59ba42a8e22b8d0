package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// Memory is an in-process Store used when Redis is not configured or not
// reachable. A janitor goroutine sweeps expired entries.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	janitor *time.Ticker
	done    chan struct{}
}

// NewMemory constructs the store and starts its janitor.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		janitor: time.NewTicker(30 * time.Second),
		done:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

func (m *Memory) sweep() {
	for {
		select {
		case <-m.janitor.C:
			now := time.Now()
			m.mu.Lock()
			for k, e := range m.entries {
				if !e.expires.IsZero() && e.expires.Before(now) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			m.janitor.Stop()
			return
		}
	}
}

// Get unmarshals the value stored under key into dest.
func (m *Memory) Get(_ context.Context, key string, dest any) error {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return ErrMiss
	}
	if !e.expires.IsZero() && e.expires.Before(time.Now()) {
		return ErrMiss
	}
	return json.Unmarshal(e.data, dest)
}

// Set stores value as JSON. A non-positive TTL keeps the entry until Close.
func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = memoryEntry{data: data, expires: expires}
	m.mu.Unlock()
	return nil
}

// Close stops the janitor.
func (m *Memory) Close() error {
	close(m.done)
	return nil
}

var _ Store = (*Memory)(nil)
