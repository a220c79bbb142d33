package compiler

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"gorm.io/microorm/cache"
	"gorm.io/microorm/command"
	"gorm.io/microorm/convert"
	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/dynamic"
	"gorm.io/microorm/handler"
	"gorm.io/microorm/schema"
	"gorm.io/microorm/utils"
)

// ParametersFunc writes the parameters of one entity into cmd
type ParametersFunc func(cmd command.Command, entity reflect.Value) error

// BatchFunc writes the parameters of a slice of entities into cmd, the
// parameters of the entity at index i suffixed with _i from 1 on
type BatchFunc func(cmd command.Command, entities reflect.Value) error

// paramField a field written as a parameter
type paramField struct {
	db        *schema.DbField
	direction command.Direction
}

// fieldPlan the compiled assignments of one parameter
type fieldPlan struct {
	name          string
	value         func(entity reflect.Value, param command.Parameter) (interface{}, error)
	dbType        dbtype.DbType
	hasDbType     bool
	providerTypes [][2]string
	direction     command.Direction
	setDirection  bool
	size          int
	precision     int
	scale         int
}

func (f *fieldPlan) apply(cmd command.Command, entity reflect.Value, name string) error {
	param := cmd.CreateParameter()
	param.SetParameterName(name)
	if f.value != nil {
		v, err := f.value(entity, param)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		param.SetValue(v)
	}
	if f.hasDbType {
		param.SetDbType(f.dbType)
	}
	if len(f.providerTypes) > 0 {
		if setter, ok := param.(command.ProviderTypeSetter); ok {
			for _, pt := range f.providerTypes {
				setter.SetProviderType(pt[0], pt[1])
			}
		}
	}
	if f.setDirection {
		param.SetDirection(f.direction)
	}
	if f.size > 0 {
		param.SetSize(f.size)
	}
	if f.precision > 0 {
		param.SetPrecision(f.precision)
	}
	if f.scale > 0 {
		param.SetScale(f.scale)
	}
	cmd.Parameters().Add(param)
	return nil
}

// ParameterName the name of field's parameter for the entity at index
func ParameterName(field string, index int) string {
	if index == 0 {
		return field
	}
	return field + "_" + strconv.Itoa(index)
}

// isDynamic reports whether values of t are looked up by key at run time
func isDynamic(t reflect.Type) bool {
	return t == objectType || (t.Kind() == reflect.Map && t.Key().Kind() == reflect.String)
}

// paramFields orders input fields first, then output only fields
func paramFields(input, output schema.DbFields) []paramField {
	fields := make([]paramField, 0, len(input)+len(output))
	for _, f := range input {
		direction := command.Input
		if output.Get(f.Name) != nil {
			direction = command.InputOutput
		}
		fields = append(fields, paramField{db: f, direction: direction})
	}
	for _, f := range output {
		if input.Get(f.Name) == nil {
			fields = append(fields, paramField{db: f, direction: command.Output})
		}
	}
	return fields
}

func parameterKey(t reflect.Type, shape cache.Shape, name string, input, output schema.DbFields, batchSize int) cache.Key {
	fields := "in:" + fieldsSignature(input) + "|out:" + fieldsSignature(output)
	return cache.Key{Type: t, Shape: shape, Name: name, Fields: fields, BatchSize: batchSize}
}

// fieldsSignature describes every field the plans depend on; a reloaded table
// whose columns changed compiles new functions
func fieldsSignature(fields schema.DbFields) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = fmt.Sprintf("%s:%v:%s:%d.%d.%d", f.Name, f.Type, f.DatabaseType, f.Size, f.Precision, f.Scale)
		if f.IsNullable {
			names[i] += "?"
		}
	}
	return cache.Signature(names...)
}

// EntityParameters returns the function writing the parameters of one entity
// of type t: a struct, a pointer to one, a string keyed map or *dynamic.Object.
// name identifies the table or operation. Output fields become output
// parameters without a value; fields in both lists are input-output.
func (c *Compiler) EntityParameters(t reflect.Type, name string, input, output schema.DbFields) (ParametersFunc, error) {
	t, shape, err := parameterType(t, cache.EntityToParameters, cache.ObjectToParameters)
	if err != nil {
		return nil, err
	}
	key := parameterKey(t, shape, name, input, output, 1)

	fn, err := c.functions.GetOrCompile(key, func() (interface{}, error) {
		p := c.plan()
		setters, _, err := p.setters(t, paramFields(input, output), 1, false)
		if err != nil {
			return nil, err
		}
		setter := setters[0]
		return ParametersFunc(func(cmd command.Command, entity reflect.Value) error {
			cmd.Parameters().Clear()
			return setter(cmd, entity)
		}), nil
	})
	if err != nil {
		return nil, err
	}
	return fn.(ParametersFunc), nil
}

// BatchParameters returns the function writing the parameters of up to
// batchSize entities of element type t
func (c *Compiler) BatchParameters(t reflect.Type, name string, input, output schema.DbFields, batchSize int) (BatchFunc, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("%w: batch size %d", ErrBatchSizeExceeded, batchSize)
	}
	t, shape, err := parameterType(t, cache.EntitiesToParameters, cache.ObjectsToParameters)
	if err != nil {
		return nil, err
	}
	key := parameterKey(t, shape, name, input, output, batchSize)

	fn, err := c.functions.GetOrCompile(key, func() (interface{}, error) {
		return c.plan().batch(t, paramFields(input, output), batchSize)
	})
	if err != nil {
		return nil, err
	}
	return fn.(BatchFunc), nil
}

// parameterType returns the type compiled for t and the shape of its functions
func parameterType(t reflect.Type, static, dynamicShape cache.Shape) (reflect.Type, cache.Shape, error) {
	if t == nil {
		return nil, 0, fmt.Errorf("%w: <nil>", ErrUnsupportedEntity)
	}
	if isDynamic(t) {
		return t, dynamicShape, nil
	}
	st, err := entityType(t)
	return st, static, err
}

func (p *plan) batch(t reflect.Type, fields []paramField, batchSize int) (BatchFunc, error) {
	setters, class, err := p.setters(t, fields, batchSize, true)
	if err != nil {
		return nil, err
	}

	// a list taking Set runs once on the whole list, in the list type it declares
	var handlerList reflect.Type
	if class != nil {
		for _, lt := range []reflect.Type{reflect.SliceOf(t), reflect.SliceOf(reflect.PtrTo(t))} {
			if class.SetTakesList(lt) {
				handlerList = lt
			}
		}
	}

	return func(cmd command.Command, entities reflect.Value) error {
		if entities.Kind() == reflect.Interface {
			entities = entities.Elem()
		}
		if entities.Kind() != reflect.Slice {
			return fmt.Errorf("%w: %s is not a slice", ErrUnsupportedEntity, entities.Kind())
		}
		if entities.Len() > batchSize {
			return fmt.Errorf("%w: %d entities for a batch of %d", ErrBatchSizeExceeded, entities.Len(), batchSize)
		}

		cmd.Parameters().Clear()
		if handlerList != nil {
			out, err := class.SetList(convertList(entities, handlerList), &handler.ClassHandlerSetOptions{Command: cmd})
			if err != nil {
				return err
			}
			if !out.IsValid() || out.IsNil() {
				return fmt.Errorf("%w: %T.Set returned no list of %s, check that Set returns the list it is given",
					ErrNullClassHandlerResult, class.Handler, utils.TypeName(t))
			}
			entities = out
		}

		n := entities.Len()
		if n > batchSize {
			n = batchSize
		}
		for i := 0; i < n; i++ {
			if err := setters[i](cmd, entities.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

// convertList returns list as a slice of listType, whose elements are the
// entities or pointers to them
func convertList(list reflect.Value, listType reflect.Type) reflect.Value {
	if list.Type() == listType {
		return list
	}
	out := reflect.MakeSlice(listType, list.Len(), list.Len())
	pointers := listType.Elem().Kind() == reflect.Ptr
	for i := 0; i < list.Len(); i++ {
		v := list.Index(i)
		if v.Kind() == reflect.Interface {
			v = v.Elem()
		}
		switch {
		case !v.IsValid():
		case pointers && v.Kind() != reflect.Ptr:
			if v.CanAddr() {
				v = v.Addr()
			} else {
				ptr := reflect.New(v.Type())
				ptr.Elem().Set(v)
				v = ptr
			}
			out.Index(i).Set(v)
		case !pointers && v.Kind() == reflect.Ptr:
			if !v.IsNil() {
				out.Index(i).Set(v.Elem())
			}
		default:
			out.Index(i).Set(v)
		}
	}
	return out
}

// setters compiles the fields once and returns one setter per entity index,
// each with its parameter names resolved. In a batch, the class handler's Set
// is left to the batch function when it takes the whole list.
func (p *plan) setters(t reflect.Type, fields []paramField, count int, batch bool) ([]func(command.Command, reflect.Value) error, *handler.Class, error) {
	var (
		plans   []*fieldPlan
		prepare func(cmd command.Command, entity reflect.Value) (reflect.Value, error)
		class   *handler.Class
		err     error
	)

	if isDynamic(t) {
		plans, err = p.dynamicPlans(t, fields)
		prepare = func(_ command.Command, entity reflect.Value) (reflect.Value, error) {
			if entity.Kind() == reflect.Interface {
				entity = entity.Elem()
			}
			return entity, nil
		}
	} else {
		class = p.opts.Handlers.ClassHandler(t)
		if class != nil && class.Type != t {
			return nil, nil, fmt.Errorf("%w: class handler %T is bound to %s, not %s",
				ErrHandlerTypeMismatch, class.Handler, utils.TypeName(class.Type), utils.TypeName(t))
		}
		if !class.HasSet() {
			class = nil
		}
		plans, err = p.staticPlans(t, fields)
		prepare = p.prepare(t, class, batch)
	}
	if err != nil {
		return nil, nil, err
	}

	setters := make([]func(command.Command, reflect.Value) error, count)
	for i := range setters {
		names := make([]string, len(plans))
		for j, f := range plans {
			names[j] = ParameterName(f.name, i)
		}
		setters[i] = func(cmd command.Command, entity reflect.Value) error {
			e, err := prepare(cmd, entity)
			if err != nil {
				return err
			}
			for j, f := range plans {
				if err := f.apply(cmd, e, names[j]); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return setters, class, nil
}

// prepare returns a pointer to the entity, passed through the class handler's
// Set. A batch applies list taking handlers itself.
func (p *plan) prepare(t reflect.Type, class *handler.Class, batch bool) func(command.Command, reflect.Value) (reflect.Value, error) {
	listType := reflect.SliceOf(t)
	listOfPointers := reflect.SliceOf(reflect.PtrTo(t))

	return func(cmd command.Command, entity reflect.Value) (reflect.Value, error) {
		if entity.Kind() == reflect.Interface {
			entity = entity.Elem()
		}
		var ptr reflect.Value
		switch {
		case !entity.IsValid():
			return reflect.Value{}, fmt.Errorf("%w: nil %s", ErrUnsupportedEntity, utils.TypeName(t))
		case entity.Kind() == reflect.Ptr:
			if entity.IsNil() {
				return reflect.Value{}, fmt.Errorf("%w: nil %s", ErrUnsupportedEntity, utils.TypeName(t))
			}
			ptr = entity
		case entity.CanAddr():
			ptr = entity.Addr()
		case entity.Type() != t:
			return reflect.Value{}, fmt.Errorf("%w: %v passed for %s", ErrUnsupportedEntity, entity.Type(), utils.TypeName(t))
		default:
			ptr = reflect.New(t)
			ptr.Elem().Set(entity)
		}
		if ptr.Type().Elem() != t {
			return reflect.Value{}, fmt.Errorf("%w: %v passed for %s", ErrUnsupportedEntity, ptr.Type(), utils.TypeName(t))
		}

		if class == nil || (batch && (class.SetTakesList(listType) || class.SetTakesList(listOfPointers))) {
			return ptr, nil
		}
		out, err := class.Set(ptr, &handler.ClassHandlerSetOptions{Command: cmd})
		if err != nil {
			return reflect.Value{}, err
		}
		if !out.IsValid() || out.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: %T.Set returned no %s, check that Set returns the entity it is given or a replacement",
				ErrNullClassHandlerResult, class.Handler, utils.TypeName(t))
		}
		return out, nil
	}
}

func (p *plan) staticPlans(t reflect.Type, fields []paramField) ([]*fieldPlan, error) {
	sch, err := p.Schema(t)
	if err != nil {
		return nil, err
	}

	plans := make([]*fieldPlan, 0, len(fields))
	for _, pf := range fields {
		field := sch.LookUpField(pf.db.Name)
		if field == nil && pf.direction != command.Output {
			return nil, fmt.Errorf("%w: %s has no property for field %s", ErrMissingProperty, utils.TypeName(t), pf.db.Name)
		}

		f := p.newPlan(pf)
		valueType := pf.db.Type
		if field != nil {
			var h *handler.Property
			if pf.direction != command.Output {
				h = p.opts.Handlers.PropertyHandler(t, field)
			}
			valueType = field.IndirectFieldType
			if h.HasSet() {
				valueType = utils.Indirect(h.SetOutput())
			}
			asText := p.enumAsText(field, pf.db)
			if f.dbType, f.hasDbType, err = p.dbType(field, valueType, asText); err != nil {
				return nil, fmt.Errorf("%s.%s: %w", utils.TypeName(t), field.Name, err)
			}
			f.providerTypes = field.ProviderTypeNames()
			if field.Size > 0 {
				f.size = field.Size
			}
			if field.Precision > 0 {
				f.precision = field.Precision
			}
			if field.Scale > 0 {
				f.scale = field.Scale
			}
			if pf.direction != command.Output {
				if f.value, err = p.staticValue(field, h, asText); err != nil {
					return nil, fmt.Errorf("%s.%s: %w", utils.TypeName(t), field.Name, err)
				}
			}
		} else if d, ok := p.typeDbType(valueType); ok {
			f.dbType, f.hasDbType = d, true
		}
		plans = append(plans, f)
	}
	return plans, nil
}

func (p *plan) dynamicPlans(t reflect.Type, fields []paramField) ([]*fieldPlan, error) {
	lookup := dynamicLookup(t)
	plans := make([]*fieldPlan, 0, len(fields))
	for _, pf := range fields {
		f := p.newPlan(pf)
		if d, ok := p.typeDbType(pf.db.Type); ok {
			f.dbType, f.hasDbType = d, true
		}
		if pf.direction != command.Output {
			f.value = p.dynamicValue(lookup, pf.db, p.enumAsText(nil, pf.db))
		}
		plans = append(plans, f)
	}
	return plans, nil
}

// newPlan the descriptor driven part of a plan
func (p *plan) newPlan(pf paramField) *fieldPlan {
	return &fieldPlan{
		name:         pf.db.UnquotedName(),
		direction:    pf.direction,
		setDirection: p.opts.DirectionSupported,
		size:         pf.db.Size,
		precision:    pf.db.Precision,
		scale:        pf.db.Scale,
	}
}

// enumAsText decides whether enums are sent by name: by the column type when
// known, then by the property's DbType, then by the policy
func (p *plan) enumAsText(field *schema.Field, db *schema.DbField) bool {
	if db != nil && db.Type != nil {
		switch kind := utils.Indirect(db.Type).Kind(); {
		case kind == reflect.String:
			return true
		case kind == reflect.Bool || (kind >= reflect.Int && kind <= reflect.Float64):
			return false
		}
	}
	if field != nil && field.DbType != dbtype.Unknown {
		return field.DbType.IsText()
	}
	return p.policy.EnumDefaultDatabaseType.IsText()
}

// dbType resolves the DbType of a property: its dbtype tag, the mapper, the
// enum policy, then the Go type
func (p *plan) dbType(field *schema.Field, valueType reflect.Type, asText bool) (dbtype.DbType, bool, error) {
	if field.DbType != dbtype.Unknown {
		return field.DbType, true, nil
	}
	if d, ok := p.opts.Mapper.Get(valueType); ok {
		return d, true, nil
	}
	if enum := p.opts.Enums.Lookup(valueType); enum != nil {
		if asText {
			if p.policy.EnumDefaultDatabaseType.IsText() {
				return p.policy.EnumDefaultDatabaseType, true, nil
			}
			return dbtype.String, true, nil
		}
		underlying := dbtype.KindType(valueType.Kind())
		d, ok := p.opts.Mapper.Get(underlying)
		if !ok {
			d, ok = dbtype.ClientTypeToDbType(underlying)
		}
		if !ok || d == dbtype.Unknown {
			return dbtype.Unknown, false, fmt.Errorf("%w: enum %s of %v", ErrNoDbTypeResolution, utils.TypeName(valueType), underlying)
		}
		return d, true, nil
	}
	d, ok := p.typeDbType(valueType)
	return d, ok, nil
}

func (p *plan) typeDbType(t reflect.Type) (dbtype.DbType, bool) {
	if t == nil {
		return dbtype.Unknown, false
	}
	if d, ok := p.opts.Mapper.Get(t); ok {
		return d, true
	}
	return dbtype.ClientTypeToDbType(t)
}

// staticValue compiles the read of a property. A nil pointer property whose
// handler takes values is NULL without calling the handler.
func (p *plan) staticValue(field *schema.Field, h *handler.Property, asText bool) (func(reflect.Value, command.Parameter) (interface{}, error), error) {
	read := fieldReader(field)
	valueType := field.FieldType

	var set func(reflect.Value, command.Parameter) (reflect.Value, bool, error)
	if h.HasSet() {
		if err := h.Check(field.FieldType); err != nil {
			return nil, err
		}
		in := h.SetInput()
		deref := field.FieldType.Kind() == reflect.Ptr && in.Kind() != reflect.Ptr
		set = func(v reflect.Value, param command.Parameter) (reflect.Value, bool, error) {
			if deref {
				if v.IsNil() {
					return reflect.Value{}, false, nil
				}
				v = v.Elem()
			}
			if v.Type() != in && v.Type().ConvertibleTo(in) && !v.Type().AssignableTo(in) {
				v = v.Convert(in)
			}
			out, err := h.Set(v, &handler.PropertyHandlerSetOptions{Field: field, Parameter: param})
			return out, true, err
		}
		valueType = h.SetOutput()
	}

	toDB := p.dbValue(valueType, asText)
	return func(entity reflect.Value, param command.Parameter) (interface{}, error) {
		v, ok := read(entity)
		if !ok {
			v = reflect.Zero(field.FieldType)
		}
		if set != nil {
			out, ok, err := set(v, param)
			if err != nil || !ok {
				return nil, err
			}
			v = out
		}
		return toDB(v), nil
	}, nil
}

// dbValue converts a property value to a parameter value: nil pointers, maps,
// slices and interfaces become NULL, pointers are dereferenced and registered
// enums are sent by name or number
func (p *plan) dbValue(t reflect.Type, asText bool) func(reflect.Value) interface{} {
	var enum *convert.Enum
	if t != nil {
		enum = p.opts.Enums.Lookup(utils.Indirect(t))
	}
	return func(v reflect.Value) interface{} {
		v, ok := deref(v)
		if !ok {
			return nil
		}
		if enum != nil && v.Type() == enum.Type {
			return enumValue(enum, v, asText)
		}
		return v.Interface()
	}
}

// deref strips pointers and interfaces, false for nil
func deref(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() {
		switch v.Kind() {
		case reflect.Ptr, reflect.Interface:
			if v.IsNil() {
				return v, false
			}
			v = v.Elem()
			continue
		case reflect.Map, reflect.Slice:
			if v.IsNil() {
				return v, false
			}
		}
		return v, true
	}
	return v, false
}

func enumValue(enum *convert.Enum, v reflect.Value, asText bool) interface{} {
	if asText {
		return enum.Name(v)
	}
	return enum.Underlying(v, dbtype.KindType(v.Kind())).Interface()
}

// fieldReader reads a property without allocating nil embedded parents; ok is
// false when a parent is nil
func fieldReader(field *schema.Field) func(reflect.Value) (reflect.Value, bool) {
	index := field.StructField.Index
	return func(entity reflect.Value) (reflect.Value, bool) {
		v := reflect.Indirect(entity)
		for n, idx := range index {
			v = v.Field(idx)
			if n < len(index)-1 && v.Kind() == reflect.Ptr {
				if v.IsNil() {
					return reflect.Value{}, false
				}
				v = v.Elem()
			}
		}
		return v, true
	}
}

// dynamicLookup resolves a member of a map or dynamic object by name, exactly
// first, then ignoring case
func dynamicLookup(t reflect.Type) func(entity reflect.Value, name string) (reflect.Value, bool) {
	if t == objectType {
		return func(entity reflect.Value, name string) (reflect.Value, bool) {
			if !entity.IsValid() || entity.IsNil() {
				return reflect.Value{}, false
			}
			v, ok := entity.Interface().(*dynamic.Object).Get(name)
			return reflect.ValueOf(v), ok
		}
	}

	keyType := t.Key()
	return func(entity reflect.Value, name string) (reflect.Value, bool) {
		if !entity.IsValid() || entity.IsNil() {
			return reflect.Value{}, false
		}
		if v := entity.MapIndex(reflect.ValueOf(name).Convert(keyType)); v.IsValid() {
			return v, true
		}
		iter := entity.MapRange()
		for iter.Next() {
			if strings.EqualFold(iter.Key().String(), name) {
				return iter.Value(), true
			}
		}
		return reflect.Value{}, false
	}
}

// dynamicValue compiles the lookup of a member. A missing member is NULL for
// nullable fields and the zero value of the field type otherwise.
func (p *plan) dynamicValue(lookup func(reflect.Value, string) (reflect.Value, bool), db *schema.DbField, asText bool) func(reflect.Value, command.Parameter) (interface{}, error) {
	name := db.UnquotedName()
	var missing interface{}
	if !db.IsNullable {
		missing = dbtype.DefaultValue(db.Type)
	}
	enums := p.opts.Enums

	return func(entity reflect.Value, _ command.Parameter) (interface{}, error) {
		v, ok := lookup(entity, name)
		if !ok {
			return missing, nil
		}
		v, ok = deref(v)
		if !ok {
			return nil, nil
		}
		if enum := enums.Lookup(v.Type()); enum != nil {
			return enumValue(enum, v, asText), nil
		}
		return v.Interface(), nil
	}
}
