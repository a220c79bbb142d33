package dbtype

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrMappingExists is returned when a mapping is added twice without force
var ErrMappingExists = errors.New("mapping already exists")

// Mapper holds explicit Go type to DbType mappings, consulted before ClientTypeToDbType
type Mapper struct {
	mappings sync.Map
}

// DefaultMapper process wide mapper used when no other is configured
var DefaultMapper = &Mapper{}

// Add maps t to dbType; an existing mapping is only replaced when force is set
func (m *Mapper) Add(t reflect.Type, dbType DbType, force bool) error {
	if t == nil {
		return errors.New("mapped type is nil")
	}
	if force {
		m.mappings.Store(t, dbType)
		return nil
	}
	if existing, loaded := m.mappings.LoadOrStore(t, dbType); loaded {
		return fmt.Errorf("%w: %v is mapped to %v", ErrMappingExists, t, existing)
	}
	return nil
}

// Get returns the explicit mapping of t
func (m *Mapper) Get(t reflect.Type) (DbType, bool) {
	if m == nil || t == nil {
		return Unknown, false
	}
	if v, ok := m.mappings.Load(t); ok {
		return v.(DbType), true
	}
	return Unknown, false
}

// Remove deletes the mapping of t
func (m *Mapper) Remove(t reflect.Type) {
	m.mappings.Delete(t)
}

// Clear removes every mapping
func (m *Mapper) Clear() {
	m.mappings.Range(func(k, _ interface{}) bool {
		m.mappings.Delete(k)
		return true
	})
}
