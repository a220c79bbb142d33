package convert

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// Integer is the constraint of enum underlying types
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// EnumValue is an integer enum naming its values through String
type EnumValue interface {
	Integer
	fmt.Stringer
}

// ParseError is returned when text does not name a value of an enum
type ParseError struct {
	Type  reflect.Type
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("requested value %q was not found in enum %v", e.Value, e.Type)
}

// Enum describes one registered enum type
type Enum struct {
	Type   reflect.Type
	values []reflect.Value
	byName map[string]reflect.Value
}

// Values returns the registered values in registration order
func (e *Enum) Values() []reflect.Value {
	return append([]reflect.Value(nil), e.values...)
}

// Parse resolves a name, ignoring case, or a number to an enum value
func (e *Enum) Parse(s string) (reflect.Value, error) {
	text := strings.TrimSpace(s)
	if v, ok := e.byName[cases.Fold().String(text)]; ok {
		return v, nil
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return e.FromUnderlying(reflect.ValueOf(n))
	}
	if n, err := strconv.ParseUint(text, 10, 64); err == nil {
		return e.FromUnderlying(reflect.ValueOf(n))
	}
	return reflect.Value{}, &ParseError{Type: e.Type, Value: s}
}

// Name returns the name of v through its String method
func (e *Enum) Name(v reflect.Value) string {
	return v.Interface().(fmt.Stringer).String()
}

// FromUnderlying converts a numeric or boolean value to the enum type
func (e *Enum) FromUnderlying(v reflect.Value) (reflect.Value, error) {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return reflect.ValueOf(1).Convert(e.Type), nil
		}
		return reflect.Zero(e.Type), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return v.Convert(e.Type), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %v to enum %v", v.Type(), e.Type)
}

// Underlying converts an enum value to its predeclared integer type
func (e *Enum) Underlying(v reflect.Value, to reflect.Type) reflect.Value {
	return v.Convert(to)
}

// Enums registry of enum types
type Enums struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Enum
}

// DefaultEnums process wide enum registry
var DefaultEnums = &Enums{}

// RegisterEnum registers the values of E with DefaultEnums
func RegisterEnum[E EnumValue](values ...E) {
	RegisterEnumWith(DefaultEnums, values...)
}

// RegisterEnumWith registers the values of E with r; registering again adds values
func RegisterEnumWith[E EnumValue](r *Enums, values ...E) {
	t := reflect.TypeOf((*E)(nil)).Elem()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byType == nil {
		r.byType = map[reflect.Type]*Enum{}
	}
	enum := r.byType[t]
	if enum == nil {
		enum = &Enum{Type: t, byName: map[string]reflect.Value{}}
		r.byType[t] = enum
	}
	folder := cases.Fold()
	for _, value := range values {
		rv := reflect.ValueOf(value)
		enum.values = append(enum.values, rv)
		enum.byName[folder.String(value.String())] = rv
	}
}

// Lookup returns the enum registered for t, nil if t is not an enum
func (r *Enums) Lookup(t reflect.Type) *Enum {
	if r == nil || t == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[t]
}
