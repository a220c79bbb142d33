// Package cache holds the compiled function cache and the caches of field
// descriptors and command text used by the orchestrators.
package cache

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"gorm.io/microorm/internal/lru"
	"gorm.io/microorm/logger"
	"gorm.io/microorm/utils"
)

// Shape of a compiled function
type Shape int

const (
	ReaderToEntity Shape = iota + 1
	ReaderToMap
	EntityToParameters
	EntitiesToParameters
	ObjectToParameters
	ObjectsToParameters
)

var shapeNames = map[Shape]string{
	ReaderToEntity:       "reader->entity",
	ReaderToMap:          "reader->map",
	EntityToParameters:   "entity->parameters",
	EntitiesToParameters: "entities->parameters",
	ObjectToParameters:   "object->parameters",
	ObjectsToParameters:  "objects->parameters",
}

func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// Key identifies a compiled function. Fields is the ordered field signature,
// so two field lists differing only in order are different keys.
type Key struct {
	Type      reflect.Type
	Shape     Shape
	Name      string
	Fields    string
	BatchSize int
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s [%s] %s #%d", k.Shape, utils.TypeName(k.Type), k.Name, k.Fields, k.BatchSize)
}

// Signature joins field names in order
func Signature(names ...string) string {
	return strings.Join(names, ",")
}

type compiled struct {
	value interface{}
	err   error
	ready chan struct{}
}

// FunctionCache compiles each key at most once. Callers racing on a key wait
// for the first caller's compilation and share its result; failures are
// removed so a later call compiles again.
type FunctionCache struct {
	mu           sync.Mutex
	lru          *lru.LRU[Key, *compiled]
	compilations atomic.Int64
	logger       logger.Interface
}

// NewFunctionCache returns a cache holding at most size functions, 0 for no limit
func NewFunctionCache(size int, log logger.Interface) *FunctionCache {
	if log == nil {
		log = logger.Discard
	}
	c := &FunctionCache{logger: log}
	c.lru = lru.NewLRU[Key, *compiled](size, func(key Key, _ *compiled) {
		c.logger.Info(context.Background(), "evicted compiled function %s", key)
	})
	return c
}

// GetOrCompile returns the function cached for key, compiling it with compile on a miss
func (c *FunctionCache) GetOrCompile(key Key, compile func() (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	if fn, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		<-fn.ready
		return fn.value, fn.err
	}
	fn := &compiled{ready: make(chan struct{})}
	c.lru.Add(key, fn)
	c.mu.Unlock()

	c.compilations.Add(1)
	c.run(fn, key, compile)
	if fn.err != nil {
		c.mu.Lock()
		if current, ok := c.lru.Peek(key); ok && current == fn {
			c.lru.Remove(key)
		}
		c.mu.Unlock()
		return nil, fn.err
	}

	c.logger.Info(context.Background(), "compiled %s", key)
	return fn.value, nil
}

func (c *FunctionCache) run(fn *compiled, key Key, compile func() (interface{}, error)) {
	defer close(fn.ready)
	defer func() {
		if r := recover(); r != nil {
			fn.value, fn.err = nil, fmt.Errorf("compile %s: %v", key, r)
		}
	}()
	fn.value, fn.err = compile()
}

// Compilations counts compile invocations since creation
func (c *FunctionCache) Compilations() int64 {
	return c.compilations.Load()
}

func (c *FunctionCache) Len() int {
	return c.lru.Len()
}

// Keys returns the cached keys, least recently used first
func (c *FunctionCache) Keys() []Key {
	return c.lru.Keys()
}

// Flush drops every compiled function
func (c *FunctionCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
