// Package handler holds class and property handlers: user transforms applied to
// whole entities and to single property values on their way from and to the
// database. Handlers are plain values whose Get and Set methods are discovered
// by reflection.
package handler

import (
	"errors"
	"fmt"
	"reflect"

	"gorm.io/microorm/command"
	"gorm.io/microorm/reader"
	"gorm.io/microorm/schema"
)

var (
	// ErrInvalidHandler is returned for values that have no usable Get or Set method
	ErrInvalidHandler = errors.New("invalid handler")
	// ErrHandlerTypeMismatch is returned when a handler's signature does not fit the type it is bound to
	ErrHandlerTypeMismatch = errors.New("handler type mismatch")
)

// PropertyHandlerGetOptions passed to a property handler's Get
type PropertyHandlerGetOptions struct {
	Field   *schema.Field
	Reader  reader.DataReader
	Ordinal int
}

// PropertyHandlerSetOptions passed to a property handler's Set
type PropertyHandlerSetOptions struct {
	Field     *schema.Field
	Parameter command.Parameter
}

// ClassHandlerGetOptions passed to a class handler's Get
type ClassHandlerGetOptions struct {
	Reader reader.DataReader
}

// ClassHandlerSetOptions passed to a class handler's Set
type ClassHandlerSetOptions struct {
	Command command.Command
}

// PropertyHandler transforms a property value. Get turns the column value
// (TInput) into the property value (TResult), Set does the reverse.
// Handlers may also implement Get and Set returning an additional error.
type PropertyHandler[TInput, TResult any] interface {
	Get(input TInput, options *PropertyHandlerGetOptions) TResult
	Set(input TResult, options *PropertyHandlerSetOptions) TInput
}

// ClassHandler transforms an entity after it is read (Get) and before it is
// written (Set). T is the entity type or a pointer to it.
type ClassHandler[T any] interface {
	Get(entity T, options *ClassHandlerGetOptions) T
	Set(entity T, options *ClassHandlerSetOptions) T
}

var (
	errorType              = reflect.TypeOf((*error)(nil)).Elem()
	propertyGetOptionsType = reflect.TypeOf(&PropertyHandlerGetOptions{})
	propertySetOptionsType = reflect.TypeOf(&PropertyHandlerSetOptions{})
	classGetOptionsType    = reflect.TypeOf(&ClassHandlerGetOptions{})
	classSetOptionsType    = reflect.TypeOf(&ClassHandlerSetOptions{})
)

// method a discovered Get or Set
type method struct {
	fn      reflect.Value
	in      reflect.Type
	out     reflect.Type
	options bool
	err     bool
}

// inspect finds the method name on v with one of the signatures
//
//	func(in) out
//	func(in, options) out
//	func(in) (out, error)
//	func(in, options) (out, error)
func inspect(v reflect.Value, name string, optionsType reflect.Type) (*method, error) {
	fn := v.MethodByName(name)
	if !fn.IsValid() {
		return nil, nil
	}

	ft := fn.Type()
	if ft.IsVariadic() || ft.NumIn() < 1 || ft.NumIn() > 2 || ft.NumOut() < 1 || ft.NumOut() > 2 {
		return nil, fmt.Errorf("%w: %v.%s has signature %v", ErrInvalidHandler, v.Type(), name, ft)
	}
	if ft.NumIn() == 2 && ft.In(1) != optionsType {
		return nil, fmt.Errorf("%w: %v.%s second argument must be %v", ErrInvalidHandler, v.Type(), name, optionsType)
	}
	if ft.NumOut() == 2 && ft.Out(1) != errorType {
		return nil, fmt.Errorf("%w: %v.%s second result must be error", ErrInvalidHandler, v.Type(), name)
	}

	return &method{
		fn:      fn,
		in:      ft.In(0),
		out:     ft.Out(0),
		options: ft.NumIn() == 2,
		err:     ft.NumOut() == 2,
	}, nil
}

func (m *method) call(in reflect.Value, options reflect.Value) (reflect.Value, error) {
	if !in.IsValid() {
		in = reflect.Zero(m.in)
	} else if in.Type() != m.in {
		if !in.Type().AssignableTo(m.in) {
			return reflect.Value{}, fmt.Errorf("%w: %v passed where %v is expected", ErrHandlerTypeMismatch, in.Type(), m.in)
		}
		arg := reflect.New(m.in).Elem()
		arg.Set(in)
		in = arg
	}

	args := []reflect.Value{in}
	if m.options {
		args = append(args, options)
	}
	results := m.fn.Call(args)
	if m.err {
		if err, _ := results[1].Interface().(error); err != nil {
			return reflect.Value{}, err
		}
	}
	return results[0], nil
}
