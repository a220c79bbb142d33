package microorm

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"gorm.io/microorm/builder"
	"gorm.io/microorm/compiler"
	"gorm.io/microorm/dynamic"
	"gorm.io/microorm/schema"
	"gorm.io/microorm/utils"
)

var objectType = reflect.TypeOf((*dynamic.Object)(nil))

// isDynamic reports whether members of t are looked up by key
func isDynamic(t reflect.Type) bool {
	return t == objectType || (t.Kind() == reflect.Map && t.Key().Kind() == reflect.String)
}

type access int

const (
	readAccess access = iota
	createAccess
	updateAccess
)

// target an entity, map or dynamic object taking part in an operation
type target struct {
	value  reflect.Value
	typ    reflect.Type
	schema *schema.Schema
}

func (db *DB) targetOf(entity interface{}) (*target, error) {
	return db.targetOfValue(reflect.ValueOf(entity))
}

func (db *DB) targetOfValue(v reflect.Value) (*target, error) {
	for v.IsValid() && v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: <nil>", compiler.ErrUnsupportedEntity)
	}

	t := v.Type()
	if isDynamic(t) {
		if t == objectType && v.IsNil() {
			return nil, fmt.Errorf("%w: nil %s", compiler.ErrUnsupportedEntity, utils.TypeName(t))
		}
		return &target{value: v, typ: t}, nil
	}
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return nil, fmt.Errorf("%w: nil %s", compiler.ErrUnsupportedEntity, utils.TypeName(t))
	}
	sch, err := db.compiler.Schema(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", compiler.ErrUnsupportedEntity, err)
	}
	return &target{value: v, typ: t, schema: sch}, nil
}

// table resolves the table of op: WithTable, then the entity's
func (t *target) table(op *operation) (string, error) {
	if op.table != "" {
		return op.table, nil
	}
	if t != nil && t.schema != nil {
		return t.schema.Table, nil
	}
	return "", fmt.Errorf("%w: use WithTable for %s", ErrMissingTable, op.traceKey)
}

// has reports whether the target carries column name with the access
func (t *target) has(name string, mode access) bool {
	if t.schema != nil {
		field := t.schema.LookUpField(name)
		if field == nil {
			return false
		}
		switch mode {
		case createAccess:
			return field.Creatable
		case updateAccess:
			return field.Updatable
		}
		return field.Readable
	}
	_, ok := t.member(name)
	return ok
}

// member reads the value of column name
func (t *target) member(name string) (interface{}, bool) {
	if t.schema != nil {
		field := t.schema.LookUpField(name)
		if field == nil {
			return nil, false
		}
		v, _ := field.ValueOf(t.value)
		return v, true
	}
	if t.typ == objectType {
		return t.value.Interface().(*dynamic.Object).Get(name)
	}
	if t.value.IsNil() {
		return nil, false
	}
	if v := t.value.MapIndex(reflect.ValueOf(name).Convert(t.typ.Key())); v.IsValid() {
		return v.Interface(), true
	}
	iter := t.value.MapRange()
	for iter.Next() {
		if strings.EqualFold(iter.Key().String(), name) {
			return iter.Value().Interface(), true
		}
	}
	return nil, false
}

// columns returns the table fields the target carries, in table order,
// restricted to names when given and without excluded ones
func (t *target) columns(fields schema.DbFields, mode access, names []string, excluded ...string) (schema.DbFields, error) {
	var restrict schema.DbFields
	if len(names) > 0 {
		for _, name := range names {
			if f := fields.Get(name); f != nil {
				restrict = append(restrict, f)
			}
		}
	}

	out := make(schema.DbFields, 0, len(fields))
	for _, f := range fields {
		if len(names) > 0 && restrict.Get(f.Name) == nil {
			continue
		}
		if contains(excluded, f.Name) || !t.has(f.Name, mode) {
			continue
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingFields, t.describe())
	}
	return out, nil
}

func (t *target) describe() string {
	if t.schema != nil {
		return t.schema.String()
	}
	return utils.TypeName(t.typ)
}

func contains(names []string, name string) bool {
	key := schema.NormalizeName(name)
	for _, n := range names {
		if schema.NormalizeName(n) == key {
			return true
		}
	}
	return false
}

// qualifiers resolves the qualifier fields of op: WithQualifiers, then the
// primary key columns of the table
func qualifiers(op *operation, fields schema.DbFields) (schema.DbFields, error) {
	var out schema.DbFields
	if len(op.qualifiers) > 0 {
		for _, name := range op.qualifiers {
			f := fields.Get(name)
			if f == nil {
				return nil, fmt.Errorf("%w: %s is not a column", ErrMissingQualifiers, name)
			}
			out = append(out, f)
		}
		return out, nil
	}
	for _, f := range fields {
		if f.IsPrimary {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s has no primary key", ErrMissingQualifiers, op.traceKey)
	}
	return out, nil
}

// qualify returns the equalities on the qualifier values of the target
func (t *target) qualify(qualifiers schema.DbFields) ([]builder.QueryField, error) {
	where := make([]builder.QueryField, 0, len(qualifiers))
	for _, q := range qualifiers {
		v, ok := t.member(q.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no %s", ErrMissingQualifiers, t.describe(), q.Name)
		}
		where = append(where, builder.Eq(q.Name, v))
	}
	return where, nil
}

// conditions turns where into query fields. Query fields are taken as is,
// maps and dynamic objects become equalities on their members and entities
// equalities on their qualifiers.
func (db *DB) conditions(op *operation, fields schema.DbFields, where interface{}) ([]builder.QueryField, error) {
	switch w := where.(type) {
	case nil:
		return nil, nil
	case []builder.QueryField:
		return w, nil
	case builder.QueryField:
		return []builder.QueryField{w}, nil
	case map[string]interface{}:
		keys := make([]string, 0, len(w))
		for k := range w {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]builder.QueryField, 0, len(keys))
		for _, k := range keys {
			out = append(out, builder.Eq(k, w[k]))
		}
		return out, nil
	case *dynamic.Object:
		out := make([]builder.QueryField, 0, w.Len())
		w.Range(func(name string, value interface{}) bool {
			out = append(out, builder.Eq(name, value))
			return true
		})
		return out, nil
	}

	t, err := db.targetOf(where)
	if err != nil {
		return nil, err
	}
	q, err := qualifiers(op, fields)
	if err != nil {
		return nil, err
	}
	return t.qualify(q)
}

// whereSignature identifies the statement text where renders
func whereSignature(where []builder.QueryField) string {
	var b strings.Builder
	for _, qf := range where {
		b.WriteString(qf.Field)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(int(qf.Operation)))
		switch {
		case qf.Operation == builder.In || qf.Operation == builder.NotIn:
			if v := reflect.ValueOf(qf.Value); v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
				b.WriteString("#" + strconv.Itoa(v.Len()))
			}
		case qf.Value == nil:
			b.WriteString(":null")
		}
		b.WriteByte('|')
	}
	return b.String()
}

// setIdentity writes an identity read back from the database into the entity
// at v. Entities not passed by pointer or slice element are left alone.
func (db *DB) setIdentity(v reflect.Value, sch *schema.Schema, identity *schema.DbField, value interface{}) error {
	for v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if value == nil || !v.IsValid() {
		return nil
	}

	switch {
	case v.Type() == objectType:
		v.Interface().(*dynamic.Object).Set(identity.Name, value)
		return nil
	case v.Kind() == reflect.Map:
		if v.IsNil() {
			return nil
		}
		iv := reflect.ValueOf(value)
		if !iv.Type().AssignableTo(v.Type().Elem()) {
			return nil
		}
		key := reflect.ValueOf(identity.Name).Convert(v.Type().Key())
		iter := v.MapRange()
		for iter.Next() {
			if strings.EqualFold(iter.Key().String(), identity.Name) {
				key = iter.Key()
				break
			}
		}
		v.SetMapIndex(key, iv)
		return nil
	}

	if sch == nil {
		return nil
	}
	field := sch.LookUpField(identity.Name)
	if field == nil {
		return nil
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
	} else if !v.CanAddr() {
		return nil
	}

	fv := field.ReflectValueOf(v)
	to := fv.Type()
	if to.Kind() == reflect.Ptr {
		to = to.Elem()
	}
	converted, err := db.converters.Load().Convert(value, to)
	if err != nil {
		return fmt.Errorf("identity %s: %w", field.Name, err)
	}
	cv := reflect.ValueOf(converted)
	if fv.Kind() == reflect.Ptr {
		ptr := reflect.New(to)
		ptr.Elem().Set(cv)
		cv = ptr
	}
	fv.Set(cv)
	return nil
}
