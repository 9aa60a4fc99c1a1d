// Package cache provides the TTL key-value store used for resolved identities
// and built post collections. Entries are evicted lazily on read; there is no
// background sweeper. Callers must treat the cache as advisory, never
// authoritative.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// DefaultTTL is used when callers have no better idea how long a value
// should live.
const DefaultTTL = time.Hour

// Store is a TTL-keyed byte store.
type Store interface {
	// Get returns the payload stored under key, or ok=false if the key is
	// absent or expired. Expired entries are evicted before returning.
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)

	// Set stores payload under key until now+ttl, replacing any previous
	// entry.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error

	// Delete removes key if present.
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// Memory is an in-process Store. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return entry.payload, true, nil
}

func (m *Memory) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{
		payload:   payload,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Nop is a Store for execution contexts without local storage. Get always
// misses and Set and Delete do nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (Nop) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (Nop) Delete(context.Context, string) error {
	return nil
}

// Typed wraps a Store with JSON encoding for a single value type.
type Typed[T any] struct {
	store Store
}

// NewTyped returns a typed view over store.
func NewTyped[T any](store Store) *Typed[T] {
	return &Typed[T]{store: store}
}

// Get returns the decoded value for key. A missing, expired, or undecodable
// entry reports ok=false.
func (t *Typed[T]) Get(ctx context.Context, key string) (T, bool) {
	var value T
	payload, ok, err := t.store.Get(ctx, key)
	if err != nil || !ok {
		return value, false
	}
	if err := json.Unmarshal(payload, &value); err != nil {
		return value, false
	}
	return value, true
}

// Set stores value under key for ttl.
func (t *Typed[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, key, payload, ttl)
}

// Delete removes key.
func (t *Typed[T]) Delete(ctx context.Context, key string) error {
	return t.store.Delete(ctx, key)
}
