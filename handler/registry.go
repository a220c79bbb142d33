package handler

import (
	"fmt"
	"reflect"
	"sync"

	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/schema"
	"gorm.io/microorm/utils"
)

// ErrMappingExists is returned when a handler is already bound and force is not set
var ErrMappingExists = dbtype.ErrMappingExists

type fieldKey struct {
	entity reflect.Type
	name   string
}

// Registry resolves class and property handlers. Property handlers are bound
// to a single entity field, to a name referenced by the handler tag, or to a
// property type; PropertyHandler tries them in that order.
type Registry struct {
	classes sync.Map // map[reflect.Type]*Class
	types   sync.Map // map[reflect.Type]*Property
	fields  sync.Map // map[fieldKey]*Property
	named   sync.Map // map[string]*Property
}

// Default process wide registry
var Default = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{}
}

func store(m *sync.Map, key, value interface{}, force bool, what string) error {
	if force {
		m.Store(key, value)
		return nil
	}
	if _, loaded := m.LoadOrStore(key, value); loaded {
		return fmt.Errorf("%w: %s", ErrMappingExists, what)
	}
	return nil
}

// AddClassHandler binds h to entityType
func (r *Registry) AddClassHandler(entityType reflect.Type, h interface{}, force bool) error {
	c, err := InspectClass(h, entityType)
	if err != nil {
		return err
	}
	return store(&r.classes, c.Type, c, force, "class handler for "+utils.TypeName(c.Type))
}

// ClassHandler returns the class handler bound to entityType, nil if none
func (r *Registry) ClassHandler(entityType reflect.Type) *Class {
	if r == nil || entityType == nil {
		return nil
	}
	if v, ok := r.classes.Load(utils.Indirect(entityType)); ok {
		return v.(*Class)
	}
	return nil
}

func (r *Registry) RemoveClassHandler(entityType reflect.Type) {
	r.classes.Delete(utils.Indirect(entityType))
}

// AddPropertyHandler binds h to every property of type t
func (r *Registry) AddPropertyHandler(t reflect.Type, h interface{}, force bool) error {
	p, err := InspectProperty(h)
	if err != nil {
		return err
	}
	return store(&r.types, t, p, force, "property handler for "+utils.TypeName(t))
}

// AddFieldHandler binds h to one field of entityType, named by Go or column name
func (r *Registry) AddFieldHandler(entityType reflect.Type, field string, h interface{}, force bool) error {
	p, err := InspectProperty(h)
	if err != nil {
		return err
	}
	key := fieldKey{entity: utils.Indirect(entityType), name: schema.NormalizeName(field)}
	return store(&r.fields, key, p, force, "property handler for "+utils.TypeName(key.entity)+"."+field)
}

// Register names h so fields can reference it with the handler tag
func (r *Registry) Register(name string, h interface{}) error {
	p, err := InspectProperty(h)
	if err != nil {
		return err
	}
	r.named.Store(schema.NormalizeName(name), p)
	return nil
}

// Named returns the handler registered under name
func (r *Registry) Named(name string) *Property {
	if r == nil {
		return nil
	}
	if v, ok := r.named.Load(schema.NormalizeName(name)); ok {
		return v.(*Property)
	}
	return nil
}

// TypeHandler returns the handler bound to properties of type t
func (r *Registry) TypeHandler(t reflect.Type) *Property {
	if r == nil || t == nil {
		return nil
	}
	if v, ok := r.types.Load(t); ok {
		return v.(*Property)
	}
	return nil
}

func (r *Registry) RemovePropertyHandler(t reflect.Type) {
	r.types.Delete(t)
}

func (r *Registry) RemoveFieldHandler(entityType reflect.Type, field string) {
	r.fields.Delete(fieldKey{entity: utils.Indirect(entityType), name: schema.NormalizeName(field)})
}

// PropertyHandler resolves the handler of field: a field binding first, then the
// handler named by the field's tag, then the field's type and its pointed to type
func (r *Registry) PropertyHandler(entityType reflect.Type, field *schema.Field) *Property {
	if r == nil || field == nil {
		return nil
	}

	entity := utils.Indirect(entityType)
	for _, name := range []string{field.Name, field.DBName} {
		if name == "" {
			continue
		}
		if v, ok := r.fields.Load(fieldKey{entity: entity, name: schema.NormalizeName(name)}); ok {
			return v.(*Property)
		}
	}

	if field.HandlerName != "" {
		if p := r.Named(field.HandlerName); p != nil {
			return p
		}
	}

	if p := r.TypeHandler(field.FieldType); p != nil {
		return p
	}
	if field.IndirectFieldType != field.FieldType {
		return r.TypeHandler(field.IndirectFieldType)
	}
	return nil
}

// Clear removes every binding
func (r *Registry) Clear() {
	for _, m := range []*sync.Map{&r.classes, &r.types, &r.fields, &r.named} {
		m.Range(func(key, _ interface{}) bool {
			m.Delete(key)
			return true
		})
	}
}

// AddClass binds a typed class handler to T
func AddClass[T any](r *Registry, h ClassHandler[T], force bool) error {
	return r.AddClassHandler(reflect.TypeOf((*T)(nil)).Elem(), h, force)
}

// AddProperty binds a typed property handler to every property of type TResult
func AddProperty[TInput, TResult any](r *Registry, h PropertyHandler[TInput, TResult], force bool) error {
	return r.AddPropertyHandler(reflect.TypeOf((*TResult)(nil)).Elem(), h, force)
}
