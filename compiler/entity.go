package compiler

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gorm.io/microorm/cache"
	"gorm.io/microorm/handler"
	"gorm.io/microorm/reader"
	"gorm.io/microorm/schema"
	"gorm.io/microorm/utils"
)

// EntityFunc materialises the current row; the result is a pointer to the entity
type EntityFunc func(r reader.DataReader) (reflect.Value, error)

// binding one column matched to a property, a constructor parameter or both
type binding struct {
	column readerField
	field  *schema.Field
	param  *schema.ConstructorParam
}

type assignment struct {
	field *schema.Field
	value valueFunc
}

// EntityReader returns the function materialising rows of r as entities of
// type t, compiling it on first use. fields describe the table the rows come
// from; columns without a descriptor are treated as nullable.
func (c *Compiler) EntityReader(t reflect.Type, r reader.DataReader, fields schema.DbFields) (EntityFunc, error) {
	st, err := entityType(t)
	if err != nil {
		return nil, err
	}
	columns := readerFields(r, fields)
	key := cache.Key{Type: st, Shape: cache.ReaderToEntity, Fields: readerSignature(columns)}

	fn, err := c.functions.GetOrCompile(key, func() (interface{}, error) {
		return c.plan().entity(st, columns)
	})
	if err != nil {
		return nil, err
	}
	return fn.(EntityFunc), nil
}

// match pairs columns with properties and with the parameters of the primary
// constructor. Each property and parameter takes the first column naming it.
func (p *plan) match(sch *schema.Schema, ctor *schema.Constructor, columns []readerField) []binding {
	params := map[string]*schema.ConstructorParam{}
	if ctor != nil {
		for i := range ctor.Params {
			params[schema.NormalizeName(ctor.Params[i].Name)] = &ctor.Params[i]
		}
	}

	var bindings []binding
	usedFields := map[*schema.Field]bool{}
	usedParams := map[*schema.ConstructorParam]bool{}
	for _, col := range columns {
		b := binding{column: col}
		if field := sch.LookUpField(col.Name); field != nil && field.Readable && !usedFields[field] {
			b.field = field
			usedFields[field] = true
		}
		if param := params[schema.NormalizeName(col.Name)]; param != nil && !usedParams[param] {
			b.param = param
			usedParams[param] = true
		}
		if b.field != nil || b.param != nil {
			bindings = append(bindings, b)
		}
	}
	return bindings
}

func (p *plan) entity(t reflect.Type, columns []readerField) (EntityFunc, error) {
	sch, err := p.Schema(t)
	if err != nil {
		return nil, err
	}
	ctor := p.opts.Constructors.Primary(t)
	bindings := p.match(sch, ctor, columns)
	if len(bindings) == 0 {
		names := make([]string, len(columns))
		for i, col := range columns {
			names[i] = col.Name
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%w: no column of [%s] maps to %s", ErrNoMatchingBindings, strings.Join(names, ", "), utils.TypeName(t))
	}

	matchedFields := 0
	for _, b := range bindings {
		if b.field != nil {
			matchedFields++
		}
	}
	// the side with more members drives: parameters only when they outnumber
	// the matched properties. A column matching both is then bound once as an
	// argument; otherwise it is also assigned, and the assignment wins.
	paramsFirst := ctor != nil && len(ctor.Params) > matchedFields

	var (
		args        []valueFunc
		bound       []bool
		assignments []assignment
	)
	if ctor != nil {
		args = make([]valueFunc, len(ctor.Params))
		bound = make([]bool, len(ctor.Params))
	}

	for _, b := range bindings {
		var fieldHandler *handler.Property
		if b.field != nil {
			fieldHandler = p.opts.Handlers.PropertyHandler(t, b.field)
		}

		if b.param != nil {
			h := fieldHandler
			if h == nil {
				h = p.opts.Handlers.TypeHandler(b.param.Type)
			}
			fn, err := p.value(b.column, target{Type: b.param.Type, Field: b.field, Handler: h})
			if err != nil {
				return nil, fmt.Errorf("%s parameter %s: %w", utils.TypeName(t), b.param.Name, err)
			}
			args[b.param.Index] = fn
			bound[b.param.Index] = true
			if paramsFirst {
				continue
			}
		}

		if b.field != nil {
			fn, err := p.value(b.column, target{Type: b.field.FieldType, Field: b.field, Handler: fieldHandler})
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", utils.TypeName(t), b.field.Name, err)
			}
			assignments = append(assignments, assignment{field: b.field, value: fn})
		}
	}

	var unbound []string
	for i, ok := range bound {
		if !ok {
			unbound = append(unbound, ctor.Params[i].Name)
		}
	}
	if len(unbound) > 0 {
		return nil, fmt.Errorf("%w: %s needs %s", ErrUnmatchedConstructorParameters, utils.TypeName(t), strings.Join(unbound, ", "))
	}

	if len(assignments) == 0 && (ctor == nil || len(ctor.Params) == 0) {
		return nil, fmt.Errorf("%w: nothing to assign on %s", ErrNoMatchingBindings, utils.TypeName(t))
	}

	class := p.opts.Handlers.ClassHandler(t)
	if class != nil && class.Type != t {
		return nil, fmt.Errorf("%w: class handler %T is bound to %s, not %s",
			ErrHandlerTypeMismatch, class.Handler, utils.TypeName(class.Type), utils.TypeName(t))
	}
	if !class.HasGet() {
		class = nil
	}

	construct := func(r reader.DataReader) (reflect.Value, error) {
		return reflect.New(t), nil
	}
	if ctor != nil && len(ctor.Params) > 0 {
		construct = func(r reader.DataReader) (reflect.Value, error) {
			values := make([]reflect.Value, len(args))
			for i, arg := range args {
				v, err := arg(r)
				if err != nil {
					return reflect.Value{}, err
				}
				values[i] = v
			}
			return ctor.Call(values)
		}
	} else if ctor != nil {
		construct = func(reader.DataReader) (reflect.Value, error) {
			return ctor.Call(nil)
		}
	}

	return func(r reader.DataReader) (reflect.Value, error) {
		ptr, err := construct(r)
		if err != nil {
			return reflect.Value{}, err
		}
		elem := ptr.Elem()
		for _, a := range assignments {
			v, err := a.value(r)
			if err != nil {
				return reflect.Value{}, err
			}
			a.field.ReflectValueOf(elem).Set(v)
		}

		if class != nil {
			out, err := class.Get(ptr, &handler.ClassHandlerGetOptions{Reader: r})
			if err != nil {
				return reflect.Value{}, err
			}
			if !out.IsValid() || out.IsNil() {
				return reflect.Value{}, fmt.Errorf("%w: %T.Get returned no %s, it must return the entity it is given or a replacement",
					ErrNullClassHandlerResult, class.Handler, utils.TypeName(t))
			}
			ptr = out
		}
		return ptr, nil
	}, nil
}
