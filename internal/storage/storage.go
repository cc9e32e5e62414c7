package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Package storage provides the persistent key/value store the request client
// reads its access token from.

// Store is a small string key/value store with optional per-key expiry.
type Store interface {
	Close() error
	Get(key string) (string, bool, error)
	Set(key, value string, ttl time.Duration) error
	Delete(key string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	CleanupInterval time.Duration
}

const defaultCleanupInterval = time.Hour

// Supported store types.
const (
	TypeBBolt  = "bbolt"
	TypeMemory = "memory"
	TypeNone   = "none"
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", TypeNone, "disabled":
		return noopStore{}, nil
	case TypeMemory:
		return NewMemoryStore(), nil
	case TypeBBolt:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                            { return nil }
func (noopStore) Get(string) (string, bool, error)        { return "", false, nil }
func (noopStore) Set(string, string, time.Duration) error { return nil }
func (noopStore) Delete(string) error                     { return nil }

// MemoryStore keeps values in process memory. Useful for tests and one-shot runs.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]memoryEntry
}

type memoryEntry struct {
	value  string
	expiry time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	entry, ok := m.values[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !entry.expiry.IsZero() && !entry.expiry.After(time.Now()) {
		_ = m.Delete(key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryStore) Set(key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiry = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.values[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

// TokenReader exposes a single store key as a read-only access token source.
type TokenReader struct {
	store Store
	key   string
}

// NewTokenReader binds key in store as the token source. It never writes to the store.
func NewTokenReader(store Store, key string) *TokenReader {
	if store == nil {
		store = noopStore{}
	}
	return &TokenReader{store: store, key: key}
}

// Token returns the stored token or an empty string when none is stored.
func (t *TokenReader) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	val, ok, err := t.store.Get(t.key)
	if err != nil {
		return "", fmt.Errorf("read token %q: %w", t.key, err)
	}
	if !ok {
		return "", nil
	}
	return strings.TrimSpace(val), nil
}
