package progress

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	snapshot  Snapshot
	expiresAt time.Time
}

// MemoryStore keeps snapshots in process memory. A janitor goroutine
// evicts expired entries until Close is called.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemoryStore creates a store whose entries live for ttl after each write.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return newMemoryStore(ttl, time.Now)
}

func newMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     now,
		stop:    make(chan struct{}),
	}
	go m.janitor(min(ttl, time.Minute))
	return m
}

// Set stores a copy of s, replacing any previous snapshot for the import.
func (m *MemoryStore) Set(_ context.Context, s Snapshot) error {
	s.Errors = append([]ErrorItem(nil), s.Errors...)
	if s.Summary != nil {
		summary := make(map[string]int, len(s.Summary))
		for k, v := range s.Summary {
			summary[k] = v
		}
		s.Summary = summary
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[s.ImportID] = memoryEntry{snapshot: s, expiresAt: m.now().Add(m.ttl)}
	return nil
}

// Get returns the snapshot for importID or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, importID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[importID]
	if !ok || !m.now().Before(e.expiresAt) {
		return Snapshot{}, ErrNotFound
	}
	return e.snapshot, nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the janitor. The store remains readable.
func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *MemoryStore) evictExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, id)
		}
	}
}
