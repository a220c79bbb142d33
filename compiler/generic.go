package compiler

import (
	"reflect"

	"gorm.io/microorm/command"
	"gorm.io/microorm/dynamic"
	"gorm.io/microorm/reader"
	"gorm.io/microorm/schema"
)

// ReaderToEntity compiles the materialisation of rows of r into T, a struct or
// a pointer to one
func ReaderToEntity[T any](c *Compiler, r reader.DataReader, fields schema.DbFields) (func(reader.DataReader) (T, error), error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	fn, err := c.EntityReader(t, r, fields)
	if err != nil {
		return nil, err
	}

	pointer := t.Kind() == reflect.Ptr
	return func(r reader.DataReader) (T, error) {
		var entity T
		v, err := fn(r)
		if err != nil {
			return entity, err
		}
		if pointer {
			return v.Interface().(T), nil
		}
		return v.Elem().Interface().(T), nil
	}, nil
}

// ReaderToMap compiles the materialisation of rows of r into dynamic objects
func ReaderToMap(c *Compiler, r reader.DataReader, fields schema.DbFields) (func(reader.DataReader) (*dynamic.Object, error), error) {
	fn, err := c.ObjectReader(r, fields)
	if err != nil {
		return nil, err
	}
	return fn, nil
}

// EntityToParameters compiles the parameter setter of one T
func EntityToParameters[T any](c *Compiler, name string, input, output schema.DbFields) (func(command.Command, T) error, error) {
	fn, err := c.EntityParameters(reflect.TypeOf((*T)(nil)).Elem(), name, input, output)
	if err != nil {
		return nil, err
	}
	return func(cmd command.Command, entity T) error {
		return fn(cmd, valueOf(entity))
	}, nil
}

// EntitiesToParameters compiles the parameter setter of up to batchSize T
func EntitiesToParameters[T any](c *Compiler, name string, input, output schema.DbFields, batchSize int) (func(command.Command, []T) error, error) {
	fn, err := c.BatchParameters(reflect.TypeOf((*T)(nil)).Elem(), name, input, output, batchSize)
	if err != nil {
		return nil, err
	}
	return func(cmd command.Command, entities []T) error {
		return fn(cmd, reflect.ValueOf(entities))
	}, nil
}

// Object is a plain or dynamic object whose members are looked up by name
type Object interface {
	map[string]interface{} | *dynamic.Object
}

// ObjectToParameters compiles the parameter setter of one object
func ObjectToParameters[O Object](c *Compiler, name string, input, output schema.DbFields) (func(command.Command, O) error, error) {
	return EntityToParameters[O](c, name, input, output)
}

// ObjectsToParameters compiles the parameter setter of up to batchSize objects
func ObjectsToParameters[O Object](c *Compiler, name string, input, output schema.DbFields, batchSize int) (func(command.Command, []O) error, error) {
	return EntitiesToParameters[O](c, name, input, output, batchSize)
}

// valueOf keeps the static type of entity when it is a nil interface or map
func valueOf[T any](entity T) reflect.Value {
	v := reflect.ValueOf(&entity).Elem()
	if v.Kind() == reflect.Interface {
		return v.Elem()
	}
	return v
}
