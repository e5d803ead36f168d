package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DocumentStore is the persistence boundary for the organization document:
// a key-value store with whole-document replace semantics. Any durable
// backend can sit behind it.
type DocumentStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// RedisDocuments persists documents as single Redis string values.
type RedisDocuments struct {
	client *redis.Client
}

// NewRedisDocuments creates a Redis-backed document store.
func NewRedisDocuments(client *redis.Client) *RedisDocuments {
	return &RedisDocuments{client: client}
}

// Load returns the document bytes, or ErrNoDocument when the key is absent.
func (d *RedisDocuments) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := d.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Save replaces the document atomically (single SET, no TTL).
func (d *RedisDocuments) Save(ctx context.Context, key string, data []byte) error {
	if err := d.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// MemoryDocuments is an in-process DocumentStore for tests and offline runs.
type MemoryDocuments struct {
	mu   sync.Mutex
	docs map[string][]byte

	// FailNextSaves makes the next N Save calls fail, for exercising the
	// retry and last-known-good behavior.
	FailNextSaves int
}

// NewMemoryDocuments creates an empty in-memory document store.
func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{docs: make(map[string][]byte)}
}

// Load returns the stored bytes or ErrNoDocument.
func (m *MemoryDocuments) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[key]
	if !ok {
		return nil, ErrNoDocument
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Save replaces the stored bytes.
func (m *MemoryDocuments) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNextSaves > 0 {
		m.FailNextSaves--
		return fmt.Errorf("simulated write failure")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.docs[key] = cp
	return nil
}
