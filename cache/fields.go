package cache

import (
	"context"
	"sync"

	"gorm.io/microorm/internal/lru"
	"gorm.io/microorm/logger"
	"gorm.io/microorm/schema"
)

// FieldStore persists field descriptors by key
type FieldStore interface {
	Get(ctx context.Context, key string) (schema.DbFields, bool, error)
	Set(ctx context.Context, key string, fields schema.DbFields) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore an in-process FieldStore
type MemoryStore struct {
	lru *lru.LRU[string, schema.DbFields]
}

// NewMemoryStore returns a store holding at most size tables, 0 for no limit
func NewMemoryStore(size int) *MemoryStore {
	return &MemoryStore{lru: lru.NewLRU[string, schema.DbFields](size, nil)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (schema.DbFields, bool, error) {
	fields, ok := s.lru.Get(key)
	return fields, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, fields schema.DbFields) error {
	s.lru.Add(key, fields)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.lru.Remove(key)
	return nil
}

type pending struct {
	fields schema.DbFields
	err    error
	ready  chan struct{}
}

// DbFieldCache get-or-compute cache of table field descriptors
type DbFieldCache struct {
	store  FieldStore
	logger logger.Interface

	mu       sync.Mutex
	inflight map[string]*pending
}

// NewDbFieldCache returns a cache over store, a MemoryStore when store is nil
func NewDbFieldCache(store FieldStore, log logger.Interface) *DbFieldCache {
	if store == nil {
		store = NewMemoryStore(0)
	}
	if log == nil {
		log = logger.Discard
	}
	return &DbFieldCache{store: store, logger: log, inflight: map[string]*pending{}}
}

// Get returns the fields stored under key or computes, stores and returns them.
// Concurrent misses on one key compute once. Store failures are logged, a
// failed read falls back to compute and a failed write still returns the fields.
func (c *DbFieldCache) Get(ctx context.Context, key string, compute func(ctx context.Context) (schema.DbFields, error)) (schema.DbFields, error) {
	fields, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn(ctx, "field cache read %s: %v", key, err)
	} else if ok {
		return fields, nil
	}

	c.mu.Lock()
	if p, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		<-p.ready
		return p.fields, p.err
	}
	p := &pending{ready: make(chan struct{})}
	c.inflight[key] = p
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
		close(p.ready)
	}()

	p.fields, p.err = compute(ctx)
	if p.err != nil {
		return nil, p.err
	}
	if err := c.store.Set(ctx, key, p.fields); err != nil {
		c.logger.Warn(ctx, "field cache write %s: %v", key, err)
	}
	return p.fields, nil
}

// Delete forgets the fields of key
func (c *DbFieldCache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}
