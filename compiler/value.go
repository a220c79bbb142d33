package compiler

import (
	"fmt"
	"reflect"

	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/handler"
	"gorm.io/microorm/reader"
	"gorm.io/microorm/schema"
	"gorm.io/microorm/utils"
)

// valueFunc produces the value of one column for the current row
type valueFunc func(r reader.DataReader) (reflect.Value, error)

// target is where a column value is stored: a property or a constructor parameter
type target struct {
	Type    reflect.Type
	Field   *schema.Field
	Handler *handler.Property
}

// accessor picks the reader method for a column: the specific accessor, then
// the typed generic one, then GetValue for nullable columns only
func accessor(col readerField) (reader.Accessor, bool) {
	if a, ok := reader.AccessorOf(col.Type); ok {
		return a, true
	}
	if a, ok := reader.GenericAccessor(col.Type); ok {
		return a, true
	}
	if col.nullable() {
		return reader.ValueAccessor(), true
	}
	return reader.Accessor{}, false
}

// value compiles the read of col into tgt. Nullable columns branch on IsDBNull
// and produce the zero value of the target, passed through the handler's Get.
// Other columns are read, converted, wrapped into a pointer when the target is
// one, transformed by the handler and cast to the declared type.
func (p *plan) value(col readerField, tgt target) (valueFunc, error) {
	acc, ok := accessor(col)
	if !ok {
		return nil, fmt.Errorf("%w: %s for column %s of type %v", ErrMissingAccessor, reader.AccessorName(col.Type), col.Name, col.Type)
	}
	rawType := col.Type
	if acc.Name == "GetValue" {
		rawType = dbtype.AnyType
	}

	valueType := tgt.Type
	if tgt.Handler.HasGet() {
		valueType = tgt.Handler.GetInput()
	}
	baseType, wrap := valueType, false
	if valueType.Kind() == reflect.Ptr {
		baseType, wrap = valueType.Elem(), true
	}

	conv, err := p.converters.Build(rawType, baseType)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", col.Name, err)
	}
	finish, err := p.finish(tgt, col.Ordinal, valueType)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", col.Name, err)
	}

	ord := col.Ordinal
	read := func(r reader.DataReader) (reflect.Value, error) {
		raw, err := acc.Read(r, ord)
		if err != nil {
			return reflect.Value{}, err
		}
		v, err := conv(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if wrap {
			ptr := reflect.New(baseType)
			ptr.Elem().Set(v)
			v = ptr
		}
		return finish(r, v)
	}
	if !col.nullable() {
		return read, nil
	}

	zero := reflect.Zero(valueType)
	return func(r reader.DataReader) (reflect.Value, error) {
		if r.IsDBNull(ord) {
			return finish(r, zero)
		}
		return read(r)
	}, nil
}

// finish applies the property handler's Get, then casts to the declared type
func (p *plan) finish(tgt target, ord int, valueType reflect.Type) (func(reader.DataReader, reflect.Value) (reflect.Value, error), error) {
	h := tgt.Handler
	from := valueType
	if h.HasGet() {
		if err := h.Check(tgt.Type); err != nil {
			return nil, err
		}
		from = h.GetOutput()
	}
	cast, err := castFunc(from, tgt.Type)
	if err != nil {
		return nil, err
	}

	if !h.HasGet() {
		return func(_ reader.DataReader, v reflect.Value) (reflect.Value, error) {
			return cast(v), nil
		}, nil
	}
	field := tgt.Field
	return func(r reader.DataReader, v reflect.Value) (reflect.Value, error) {
		out, err := h.Get(v, &handler.PropertyHandlerGetOptions{Field: field, Reader: r, Ordinal: ord})
		if err != nil {
			return reflect.Value{}, err
		}
		return cast(out), nil
	}, nil
}

// castFunc stores values of from into to: assignment, pointer wrapping or
// unwrapping, or a Go conversion other than number to string
func castFunc(from, to reflect.Type) (func(reflect.Value) reflect.Value, error) {
	switch {
	case from == to:
		return func(v reflect.Value) reflect.Value { return v }, nil
	case from.AssignableTo(to):
		return func(v reflect.Value) reflect.Value {
			out := reflect.New(to).Elem()
			if v.IsValid() {
				out.Set(v)
			}
			return out
		}, nil
	case to.Kind() == reflect.Ptr && from.ConvertibleTo(to.Elem()) && !numberToString(from, to.Elem()):
		elem := to.Elem()
		return func(v reflect.Value) reflect.Value {
			ptr := reflect.New(elem)
			ptr.Elem().Set(v.Convert(elem))
			return ptr
		}, nil
	case from.Kind() == reflect.Ptr && from.Elem().ConvertibleTo(to) && !numberToString(from.Elem(), to):
		return func(v reflect.Value) reflect.Value {
			if v.IsNil() {
				return reflect.Zero(to)
			}
			return v.Elem().Convert(to)
		}, nil
	case from.ConvertibleTo(to) && !numberToString(from, to):
		return func(v reflect.Value) reflect.Value { return v.Convert(to) }, nil
	}
	return nil, fmt.Errorf("%w: %s can not be stored into %s", ErrHandlerTypeMismatch, utils.TypeName(from), utils.TypeName(to))
}

func numberToString(from, to reflect.Type) bool {
	if to.Kind() != reflect.String {
		return false
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
