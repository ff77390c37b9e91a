package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Memory keeps sessions in process.
type Memory struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]memoryItem
}

type memoryItem struct {
	data    []byte
	expires time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates a store whose entries expire after ttl (0 = DefaultTTL).
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, items: make(map[string]memoryItem)}
}

func (m *Memory) Save(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", rec.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
	m.items[rec.ID] = memoryItem{data: data, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) Load(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	item, ok := m.items[id]
	if ok && !m.now().Before(item.expires) {
		delete(m.items, id)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return decode(id, item.data)
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// Len returns the number of live sessions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
	return len(m.items)
}

func (m *Memory) evictLocked() {
	now := m.now()
	for id, item := range m.items {
		if !now.Before(item.expires) {
			delete(m.items, id)
		}
	}
}

func decode(id string, data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	if rec.Session == nil {
		return nil, fmt.Errorf("session %s has no distribution", id)
	}
	if err := rec.Session.Validate(); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return &rec, nil
}
