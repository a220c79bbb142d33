// Package dynamic provides Object, an ordered string keyed map whose keys match
// ignoring case. Rows read without an entity type materialise as Objects.
package dynamic

import (
	"bytes"
	"encoding/json"
	"sort"

	"golang.org/x/text/cases"
)

// Object ordered, case-insensitive map
type Object struct {
	keys   []string
	values map[string]interface{}
	index  map[string]int // folded key -> position in keys
}

// New returns an empty object with room for size members
func New(size int) *Object {
	return &Object{
		keys:   make([]string, 0, size),
		values: make(map[string]interface{}, size),
		index:  make(map[string]int, size),
	}
}

// FromMap copies m into a new object, keys sorted
func FromMap(m map[string]interface{}) *Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	o := New(len(keys))
	for _, k := range keys {
		o.Set(k, m[k])
	}
	return o
}

func fold(name string) string {
	return cases.Fold().String(name)
}

func (o *Object) init() {
	if o.index == nil {
		o.values = map[string]interface{}{}
		o.index = map[string]int{}
	}
}

// Set sets a member; an existing member keeps its position and original spelling
func (o *Object) Set(name string, value interface{}) {
	o.init()
	key := fold(name)
	if idx, ok := o.index[key]; ok {
		o.values[o.keys[idx]] = value
		return
	}
	o.index[key] = len(o.keys)
	o.keys = append(o.keys, name)
	o.values[name] = value
}

// Get returns a member by name, ignoring case
func (o *Object) Get(name string) (interface{}, bool) {
	if o == nil || o.index == nil {
		return nil, false
	}
	idx, ok := o.index[fold(name)]
	if !ok {
		return nil, false
	}
	return o.values[o.keys[idx]], true
}

// Has reports whether name is a member
func (o *Object) Has(name string) bool {
	_, ok := o.Get(name)
	return ok
}

// Delete removes a member
func (o *Object) Delete(name string) {
	if o == nil || o.index == nil {
		return
	}
	key := fold(name)
	idx, ok := o.index[key]
	if !ok {
		return
	}
	delete(o.values, o.keys[idx])
	delete(o.index, key)
	o.keys = append(o.keys[:idx], o.keys[idx+1:]...)
	for i := idx; i < len(o.keys); i++ {
		o.index[fold(o.keys[i])] = i
	}
}

// Keys member names in insertion order
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Range calls fn for every member in order until fn returns false
func (o *Object) Range(fn func(name string, value interface{}) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.values[k]) {
			return
		}
	}
}

// Map copies the members into a plain map
func (o *Object) Map() map[string]interface{} {
	m := make(map[string]interface{}, o.Len())
	o.Range(func(name string, value interface{}) bool {
		m[name] = value
		return true
	})
	return m
}

// MarshalJSON encodes members in order
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for idx, k := range o.keys {
		if idx > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keeping the member order of the input
func (o *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = Object{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return err
		}
		o.Set(name, value)
	}
	_, err := dec.Token()
	return err
}
