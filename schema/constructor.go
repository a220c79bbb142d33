package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"gorm.io/microorm/utils"
)

// ErrInvalidConstructor is returned when registering a function that cannot build an entity
var ErrInvalidConstructor = errors.New("invalid constructor")

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// ConstructorParam is a named constructor argument
type ConstructorParam struct {
	Name  string
	Type  reflect.Type
	Index int
}

// Constructor is a registered function building an entity from named arguments,
// one of func(...) E, func(...) *E, func(...) (E, error) or func(...) (*E, error)
type Constructor struct {
	Type           reflect.Type
	Func           reflect.Value
	Params         []ConstructorParam
	ReturnsPointer bool
	ReturnsError   bool
}

// Call invokes the constructor, returning a pointer to the built entity
func (c *Constructor) Call(args []reflect.Value) (reflect.Value, error) {
	out := c.Func.Call(args)
	if c.ReturnsError && !out[1].IsNil() {
		return reflect.Value{}, out[1].Interface().(error)
	}
	if c.ReturnsPointer {
		if out[0].IsNil() {
			return reflect.Value{}, fmt.Errorf("constructor of %v returned nil", utils.TypeName(c.Type))
		}
		return out[0], nil
	}
	ptr := reflect.New(c.Type)
	ptr.Elem().Set(out[0])
	return ptr, nil
}

// Constructors registry of entity constructors, keyed by struct type
type Constructors struct {
	mu     sync.RWMutex
	byType map[reflect.Type][]*Constructor
}

// DefaultConstructors process wide constructor registry
var DefaultConstructors = &Constructors{}

// RegisterConstructor registers fn with DefaultConstructors
func RegisterConstructor(fn interface{}, names ...string) error {
	return DefaultConstructors.Register(fn, names...)
}

// Register registers fn as a constructor of the struct type it returns. names are
// the parameter names, matched against column names like fields are.
func (r *Constructors) Register(fn interface{}, names ...string) error {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return fmt.Errorf("%w: %T is not a function", ErrInvalidConstructor, fn)
	}

	ft := fv.Type()
	if ft.IsVariadic() {
		return fmt.Errorf("%w: %v is variadic", ErrInvalidConstructor, ft)
	}
	if ft.NumIn() != len(names) {
		return fmt.Errorf("%w: %v takes %d parameters, %d names given", ErrInvalidConstructor, ft, ft.NumIn(), len(names))
	}

	c := &Constructor{Func: fv}
	switch ft.NumOut() {
	case 2:
		if ft.Out(1) != errorType {
			return fmt.Errorf("%w: second result of %v must be error", ErrInvalidConstructor, ft)
		}
		c.ReturnsError = true
	case 1:
	default:
		return fmt.Errorf("%w: %v must return the entity", ErrInvalidConstructor, ft)
	}

	c.Type = ft.Out(0)
	if c.Type.Kind() == reflect.Ptr {
		c.Type = c.Type.Elem()
		c.ReturnsPointer = true
	}
	if c.Type.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %v does not build a struct", ErrInvalidConstructor, ft)
	}

	seen := map[string]bool{}
	for i, name := range names {
		key := NormalizeName(name)
		if key == "" || seen[key] {
			return fmt.Errorf("%w: parameter name %q is empty or repeated", ErrInvalidConstructor, name)
		}
		seen[key] = true
		c.Params = append(c.Params, ConstructorParam{Name: name, Type: ft.In(i), Index: i})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byType == nil {
		r.byType = map[reflect.Type][]*Constructor{}
	}
	r.byType[c.Type] = append(r.byType[c.Type], c)
	return nil
}

// Primary returns the registered constructor of t with the most parameters,
// the earliest registered on ties
func (r *Constructors) Primary(t reflect.Type) *Constructor {
	if r == nil || t == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var primary *Constructor
	for _, c := range r.byType[utils.Indirect(t)] {
		if primary == nil || len(c.Params) > len(primary.Params) {
			primary = c
		}
	}
	return primary
}

// Remove drops every constructor registered for t
func (r *Constructors) Remove(t reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byType, utils.Indirect(t))
}
