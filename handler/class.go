package handler

import (
	"fmt"
	"reflect"

	"gorm.io/microorm/utils"
)

// Class an inspected class handler bound to an entity type
type Class struct {
	Handler interface{}
	// Type the entity struct type
	Type reflect.Type
	get  *method
	set  *method
}

// InspectClass discovers the Get and Set methods of h for entityType. Get takes
// and returns the entity or a pointer to it; Set may also take and return a
// slice of either, in which case it is invoked once per list.
func InspectClass(h interface{}, entityType reflect.Type) (*Class, error) {
	v := reflect.ValueOf(h)
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: nil", ErrInvalidHandler)
	}
	et := utils.Indirect(entityType)

	get, err := inspect(v, "Get", classGetOptionsType)
	if err != nil {
		return nil, err
	}
	set, err := inspect(v, "Set", classSetOptionsType)
	if err != nil {
		return nil, err
	}
	if get == nil && set == nil {
		return nil, fmt.Errorf("%w: %T has neither Get nor Set", ErrInvalidHandler, h)
	}

	entity := func(t reflect.Type) bool {
		return t == et || (t.Kind() == reflect.Ptr && t.Elem() == et)
	}
	if get != nil && (!entity(get.in) || get.out != get.in) {
		return nil, fmt.Errorf("%w: %T.Get must take and return %v or *%v, got %v -> %v",
			ErrHandlerTypeMismatch, h, et, et, get.in, get.out)
	}
	if set != nil && (!(entity(set.in) || (set.in.Kind() == reflect.Slice && entity(set.in.Elem()))) || set.out != set.in) {
		return nil, fmt.Errorf("%w: %T.Set must take and return %v, *%v or a slice of them, got %v -> %v",
			ErrHandlerTypeMismatch, h, et, et, set.in, set.out)
	}
	return &Class{Handler: h, Type: et, get: get, set: set}, nil
}

func (c *Class) HasGet() bool { return c != nil && c.get != nil }

func (c *Class) HasSet() bool { return c != nil && c.set != nil }

// SetTakesList reports whether Set is invoked with the whole list of type listType
func (c *Class) SetTakesList(listType reflect.Type) bool {
	return c.HasSet() && c.set.in.Kind() == reflect.Slice && c.set.in == listType
}

// Get invokes Get on the entity pointed to by entity; the result is a pointer
// to the entity, nil if the handler returned a nil pointer
func (c *Class) Get(entity reflect.Value, options *ClassHandlerGetOptions) (reflect.Value, error) {
	return c.apply(c.get, entity, reflect.ValueOf(options))
}

// Set invokes Set on the entity pointed to by entity
func (c *Class) Set(entity reflect.Value, options *ClassHandlerSetOptions) (reflect.Value, error) {
	if c.set.in.Kind() == reflect.Slice {
		list := reflect.MakeSlice(c.set.in, 1, 1)
		if c.set.in.Elem().Kind() == reflect.Ptr {
			list.Index(0).Set(entity)
		} else {
			list.Index(0).Set(entity.Elem())
		}
		out, err := c.set.call(list, reflect.ValueOf(options))
		if err != nil || out.Len() == 0 {
			return reflect.Zero(reflect.PtrTo(c.Type)), err
		}
		return c.pointer(out.Index(0)), nil
	}
	return c.apply(c.set, entity, reflect.ValueOf(options))
}

// SetList invokes a list taking Set with list
func (c *Class) SetList(list reflect.Value, options *ClassHandlerSetOptions) (reflect.Value, error) {
	return c.set.call(list, reflect.ValueOf(options))
}

func (c *Class) apply(m *method, entity reflect.Value, options reflect.Value) (reflect.Value, error) {
	arg := entity
	if m.in.Kind() != reflect.Ptr {
		arg = entity.Elem()
	}
	out, err := m.call(arg, options)
	if err != nil {
		return reflect.Value{}, err
	}
	return c.pointer(out), nil
}

func (c *Class) pointer(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Ptr {
		return v
	}
	ptr := reflect.New(c.Type)
	ptr.Elem().Set(v)
	return ptr
}
