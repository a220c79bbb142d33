package handler

import (
	"fmt"
	"reflect"
)

// Property an inspected property handler
type Property struct {
	Handler interface{}
	get     *method
	set     *method
}

// InspectProperty discovers the Get and Set methods of h; at least one is required
func InspectProperty(h interface{}) (*Property, error) {
	v := reflect.ValueOf(h)
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: nil", ErrInvalidHandler)
	}

	get, err := inspect(v, "Get", propertyGetOptionsType)
	if err != nil {
		return nil, err
	}
	set, err := inspect(v, "Set", propertySetOptionsType)
	if err != nil {
		return nil, err
	}
	if get == nil && set == nil {
		return nil, fmt.Errorf("%w: %T has neither Get nor Set", ErrInvalidHandler, h)
	}
	return &Property{Handler: h, get: get, set: set}, nil
}

// HasGet reports whether the handler transforms values read from the database
func (p *Property) HasGet() bool { return p != nil && p.get != nil }

// HasSet reports whether the handler transforms values written to the database
func (p *Property) HasSet() bool { return p != nil && p.set != nil }

// GetInput the type Get accepts, nil without Get
func (p *Property) GetInput() reflect.Type {
	if !p.HasGet() {
		return nil
	}
	return p.get.in
}

// GetOutput the type Get returns
func (p *Property) GetOutput() reflect.Type {
	if !p.HasGet() {
		return nil
	}
	return p.get.out
}

// SetInput the type Set accepts
func (p *Property) SetInput() reflect.Type {
	if !p.HasSet() {
		return nil
	}
	return p.set.in
}

// SetOutput the type Set returns
func (p *Property) SetOutput() reflect.Type {
	if !p.HasSet() {
		return nil
	}
	return p.set.out
}

// Get invokes the handler's Get
func (p *Property) Get(input reflect.Value, options *PropertyHandlerGetOptions) (reflect.Value, error) {
	return p.get.call(input, reflect.ValueOf(options))
}

// Set invokes the handler's Set
func (p *Property) Set(input reflect.Value, options *PropertyHandlerSetOptions) (reflect.Value, error) {
	return p.set.call(input, reflect.ValueOf(options))
}

// Check verifies that Get produces and Set accepts values of fieldType or, for
// pointer fields, of the pointed to type
func (p *Property) Check(fieldType reflect.Type) error {
	fits := func(t reflect.Type) bool {
		if t == fieldType || t.AssignableTo(fieldType) || t.ConvertibleTo(fieldType) {
			return true
		}
		return fieldType.Kind() == reflect.Ptr && (t == fieldType.Elem() || t.ConvertibleTo(fieldType.Elem()))
	}
	if p.HasGet() && !fits(p.get.out) {
		return fmt.Errorf("%w: %T.Get returns %v for a %v property", ErrHandlerTypeMismatch, p.Handler, p.get.out, fieldType)
	}
	if p.HasSet() {
		in := p.set.in
		if !(fieldType == in || fieldType.AssignableTo(in) || fieldType.ConvertibleTo(in) ||
			(fieldType.Kind() == reflect.Ptr && (fieldType.Elem() == in || fieldType.Elem().ConvertibleTo(in)))) {
			return fmt.Errorf("%w: %T.Set accepts %v for a %v property", ErrHandlerTypeMismatch, p.Handler, in, fieldType)
		}
	}
	return nil
}
