package microorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"gorm.io/microorm/cache"
	"gorm.io/microorm/command"
	"gorm.io/microorm/dynamic"
	"gorm.io/microorm/reader"
	"gorm.io/microorm/schema"
)

var mapType = reflect.TypeOf(map[string]interface{}{})

// destination validates dest, a pointer to a slice of structs, struct
// pointers, map[string]interface{} or *dynamic.Object
func destination(dest interface{}) (reflect.Value, reflect.Type, error) {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Slice {
		return reflect.Value{}, nil, fmt.Errorf("%w: %T is not a pointer to a slice", ErrInvalidDestination, dest)
	}
	out := v.Elem()
	elem := out.Type().Elem()
	if elem != objectType && elem != mapType {
		if st := elem; st.Kind() != reflect.Struct && (st.Kind() != reflect.Ptr || st.Elem().Kind() != reflect.Struct) {
			return reflect.Value{}, nil, fmt.Errorf("%w: %T", ErrInvalidDestination, dest)
		}
	}
	return out, elem, nil
}

// read appends the rows to out, materialised as elem
func (db *DB) read(rows *sql.Rows, elem reflect.Type, fields schema.DbFields, out reflect.Value) (int64, error) {
	r, err := reader.NewRowsReader(rows, db.names)
	if err != nil {
		return 0, err
	}

	var next func() (reflect.Value, error)
	if elem == objectType || elem == mapType {
		fn, err := db.compiler.ObjectReader(r, fields)
		if err != nil {
			return 0, err
		}
		next = func() (reflect.Value, error) {
			obj, err := fn(r)
			if err != nil || elem == objectType {
				return reflect.ValueOf(obj), err
			}
			return reflect.ValueOf(obj.Map()), nil
		}
	} else {
		fn, err := db.compiler.EntityReader(elem, r, fields)
		if err != nil {
			return 0, err
		}
		next = func() (reflect.Value, error) {
			v, err := fn(r)
			if err != nil || elem.Kind() == reflect.Ptr {
				return v, err
			}
			return v.Elem(), nil
		}
	}

	var n int64
	for {
		ok, err := r.Read()
		if err != nil || !ok {
			return n, err
		}
		v, err := next()
		if err != nil {
			return n, err
		}
		out.Set(reflect.Append(out, v))
		n++
	}
}

func orderSignature(op *operation) string {
	var b strings.Builder
	for _, o := range op.orderBy {
		b.WriteString(o.Name)
		if o.Descending {
			b.WriteString(" desc")
		}
		b.WriteByte(',')
	}
	return b.String()
}

// Query reads the rows matching where into dest, a pointer to a slice of
// entities, maps or dynamic objects. where is a map, dynamic object, entity
// or []builder.QueryField; nil reads every row.
func (db *DB) Query(ctx context.Context, dest interface{}, where interface{}, opts ...OperationOption) error {
	return db.query(ctx, newOperation("Query", opts), dest, where)
}

// QueryAll reads every row of the table into dest
func (db *DB) QueryAll(ctx context.Context, dest interface{}, opts ...OperationOption) error {
	return db.query(ctx, newOperation("QueryAll", opts), dest, nil)
}

// Take reads the first row matching where into dest, a pointer to an entity,
// map or dynamic object, and returns ErrRecordNotFound when none matches
func (db *DB) Take(ctx context.Context, dest interface{}, where interface{}, opts ...OperationOption) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("%w: %T is not a pointer", ErrInvalidDestination, dest)
	}
	list := reflect.New(reflect.SliceOf(v.Elem().Type()))
	op := newOperation("Take", opts)
	op.top = 1
	if err := db.query(ctx, op, list.Interface(), where); err != nil {
		return err
	}
	if list.Elem().Len() == 0 {
		return ErrRecordNotFound
	}
	v.Elem().Set(list.Elem().Index(0))
	return nil
}

func (db *DB) query(ctx context.Context, op *operation, dest interface{}, where interface{}) error {
	out, elem, err := destination(dest)
	if err != nil {
		return err
	}

	var t *target
	if elem != objectType && elem != mapType {
		sch, err := db.compiler.Schema(elem)
		if err != nil {
			return err
		}
		t = &target{typ: elem, schema: sch}
	}
	table, err := t.table(op)
	if err != nil {
		return err
	}
	fields, err := db.Fields(ctx, table)
	if err != nil {
		return err
	}

	columns := fields
	if t != nil {
		columns, err = t.columns(fields, readAccess, op.fields)
	} else if len(op.fields) > 0 {
		columns = restrict(fields, op.fields)
	}
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return fmt.Errorf("%w: %s", ErrMissingFields, table)
	}
	conditions, err := db.conditions(op, fields, where)
	if err != nil {
		return err
	}

	names := columns.Names()
	key := fmt.Sprintf("query:%s:%s:%s:%s:%d", table, cache.Signature(names...), whereSignature(conditions), orderSignature(op), op.top)
	text, err := db.texts.Get(key, func() (string, error) {
		return db.builder.Query(table, names, conditions, op.orderBy, op.top)
	})
	if err != nil {
		return err
	}
	cmd := command.New(text)
	if err := db.whereParameters(cmd, table, fields, conditions); err != nil {
		return err
	}

	_, err = db.run(ctx, op.traceKey, text, cmd, db.named(), func(args []interface{}) (int64, interface{}, error) {
		rows, err := db.conn.QueryContext(ctx, text, args...)
		if err != nil {
			return 0, nil, err
		}
		defer rows.Close()
		n, err := db.read(rows, elem, fields, out)
		return n, n, err
	})
	return err
}

// restrict returns the fields named by names, in table order
func restrict(fields schema.DbFields, names []string) schema.DbFields {
	out := make(schema.DbFields, 0, len(names))
	for _, f := range fields {
		if contains(names, f.Name) {
			out = append(out, f)
		}
	}
	return out
}

// rawCommand binds param to the statement text. A []interface{} is bound by
// position as p1, p2 ...; entities, maps and dynamic objects by member name.
// Positional dialects bind members in field order, map keys sorted.
func (db *DB) rawCommand(text string, param interface{}) (*command.Cmd, bool, error) {
	cmd := command.New(text)
	switch p := param.(type) {
	case nil:
		return cmd, db.named(), nil
	case []interface{}:
		for i, v := range p {
			prm := cmd.CreateParameter()
			prm.SetParameterName("p" + strconv.Itoa(i+1))
			prm.SetValue(v)
			cmd.Parameters().Add(prm)
		}
		return cmd, false, nil
	}

	t, err := db.targetOf(param)
	if err != nil {
		return nil, false, err
	}
	var input schema.DbFields
	switch {
	case t.schema != nil:
		for _, f := range t.schema.Fields {
			if f.Readable && t.schema.FieldsByDBName[f.DBName] == f {
				input = append(input, &schema.DbField{Name: f.DBName, IsNullable: true})
			}
		}
	case t.typ == objectType:
		for _, name := range t.value.Interface().(*dynamic.Object).Keys() {
			input = append(input, &schema.DbField{Name: name, IsNullable: true})
		}
	default:
		keys := make([]string, 0, t.value.Len())
		for _, k := range t.value.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		for _, name := range keys {
			input = append(input, &schema.DbField{Name: name, IsNullable: true})
		}
	}

	setter, err := db.compiler.EntityParameters(t.typ, text, input, nil)
	if err != nil {
		return nil, false, err
	}
	if err := setter(cmd, t.value); err != nil {
		return nil, false, err
	}
	return cmd, db.named(), nil
}

// ExecuteQuery runs a raw statement and reads its rows into dest, a pointer
// to a slice of entities, maps or dynamic objects
func (db *DB) ExecuteQuery(ctx context.Context, dest interface{}, text string, param interface{}, opts ...OperationOption) error {
	op := newOperation("ExecuteQuery", opts)
	out, elem, err := destination(dest)
	if err != nil {
		return err
	}
	cmd, named, err := db.rawCommand(text, param)
	if err != nil {
		return err
	}

	_, err = db.run(ctx, op.traceKey, text, cmd, named, func(args []interface{}) (int64, interface{}, error) {
		rows, err := db.conn.QueryContext(ctx, text, args...)
		if err != nil {
			return 0, nil, err
		}
		defer rows.Close()
		n, err := db.read(rows, elem, nil, out)
		return n, n, err
	})
	return err
}

// ExecuteNonQuery runs a raw statement and returns the rows affected
func (db *DB) ExecuteNonQuery(ctx context.Context, text string, param interface{}, opts ...OperationOption) (int64, error) {
	op := newOperation("ExecuteNonQuery", opts)
	cmd, named, err := db.rawCommand(text, param)
	if err != nil {
		return 0, err
	}
	return db.exec(ctx, op.traceKey, text, cmd, named)
}

// ExecuteScalar runs a raw statement and returns the first column of its
// first row, ErrRecordNotFound without rows
func (db *DB) ExecuteScalar(ctx context.Context, text string, param interface{}, opts ...OperationOption) (interface{}, error) {
	op := newOperation("ExecuteScalar", opts)
	cmd, named, err := db.rawCommand(text, param)
	if err != nil {
		return nil, err
	}

	var value interface{}
	_, err = db.run(ctx, op.traceKey, text, cmd, named, func(args []interface{}) (int64, interface{}, error) {
		err := db.conn.QueryRowContext(ctx, text, args...).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, ErrRecordNotFound
		}
		return 1, value, err
	})
	return value, err
}

// QueryAs reads the rows matching where as T
func QueryAs[T any](ctx context.Context, db *DB, where interface{}, opts ...OperationOption) ([]T, error) {
	var out []T
	if err := db.query(ctx, newOperation("QueryAs", opts), &out, where); err != nil {
		return nil, err
	}
	return out, nil
}

// ExecuteQueryAs runs a raw statement and reads its rows as T
func ExecuteQueryAs[T any](ctx context.Context, db *DB, text string, param interface{}, opts ...OperationOption) ([]T, error) {
	var out []T
	if err := db.ExecuteQuery(ctx, &out, text, param, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
