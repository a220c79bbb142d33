package microorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"gorm.io/microorm/builder"
	"gorm.io/microorm/cache"
	"gorm.io/microorm/command"
	"gorm.io/microorm/compiler"
	"gorm.io/microorm/dialect"
	"gorm.io/microorm/dynamic"
	"gorm.io/microorm/schema"
)

func identityName(identity *schema.DbField) string {
	if identity == nil {
		return ""
	}
	return identity.Name
}

// Insert inserts entity, a struct pointer, map or dynamic object, and returns
// the identity generated for it or nil when the table has none. The identity
// is written back into the entity.
func (db *DB) Insert(ctx context.Context, entity interface{}, opts ...OperationOption) (interface{}, error) {
	op := newOperation("Insert", opts)
	t, err := db.targetOf(entity)
	if err != nil {
		return nil, err
	}
	table, err := t.table(op)
	if err != nil {
		return nil, err
	}
	fields, err := db.Fields(ctx, table)
	if err != nil {
		return nil, err
	}

	identity := fields.Identity()
	input, err := t.columns(fields, createAccess, op.fields, identityName(identity))
	if err != nil {
		return nil, err
	}
	names := input.Names()
	key := "insert:" + table + ":" + cache.Signature(names...) + ":" + identityName(identity)
	text, err := db.texts.Get(key, func() (string, error) {
		return db.builder.Insert(table, names, identityName(identity))
	})
	if err != nil {
		return nil, err
	}

	setter, err := db.compiler.EntityParameters(t.typ, table, input, nil)
	if err != nil {
		return nil, err
	}
	cmd := command.New(text)
	if err := setter(cmd, t.value); err != nil {
		return nil, err
	}

	ids, _, err := db.insert(ctx, op.traceKey, text, cmd, identity, 1)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return ids[0], db.setIdentity(t.value, t.schema, identity, ids[0])
}

// InsertAll inserts a slice of entities, maps or dynamic objects in batches
// of WithBatchSize rows, Config.DefaultBatchSize by default. Columns are those
// of the first element. Generated identities are written back into the
// elements. It returns the rows inserted.
func (db *DB) InsertAll(ctx context.Context, entities interface{}, opts ...OperationOption) (int64, error) {
	op := newOperation("InsertAll", opts)
	list := reflect.Indirect(reflect.ValueOf(entities))
	if list.Kind() != reflect.Slice {
		return 0, fmt.Errorf("%w: %T is not a slice", compiler.ErrUnsupportedEntity, entities)
	}
	if list.Len() == 0 {
		return 0, nil
	}

	t, err := db.targetOfValue(list.Index(0))
	if err != nil {
		return 0, err
	}
	table, err := t.table(op)
	if err != nil {
		return 0, err
	}
	fields, err := db.Fields(ctx, table)
	if err != nil {
		return 0, err
	}

	identity := fields.Identity()
	input, err := t.columns(fields, createAccess, op.fields, identityName(identity))
	if err != nil {
		return 0, err
	}
	names := input.Names()
	batchSize := op.batchSize
	if batchSize <= 0 {
		batchSize = db.DefaultBatchSize
	}

	elem := list.Type().Elem()
	var total int64
	for start := 0; start < list.Len(); start += batchSize {
		end := start + batchSize
		if end > list.Len() {
			end = list.Len()
		}
		rows := end - start

		// the last batch may be shorter and is compiled for its own size
		key := fmt.Sprintf("insertall:%s:%s:%s:%d", table, cache.Signature(names...), identityName(identity), rows)
		text, err := db.texts.Get(key, func() (string, error) {
			return db.builder.InsertAll(table, names, rows, identityName(identity))
		})
		if err != nil {
			return total, err
		}
		setter, err := db.compiler.BatchParameters(elem, table, input, nil, rows)
		if err != nil {
			return total, err
		}
		cmd := command.New(text)
		if err := setter(cmd, list.Slice(start, end)); err != nil {
			return total, err
		}

		ids, affected, err := db.insert(ctx, op.traceKey, text, cmd, identity, rows)
		total += affected
		if err != nil {
			return total, err
		}
		for i, id := range ids {
			if err := db.setIdentity(list.Index(start+i), t.schema, identity, id); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// insert executes an insert of rows rows. When the table has an identity it
// returns the identities generated, one per row in order.
func (db *DB) insert(ctx context.Context, key, text string, cmd *command.Cmd, identity *schema.DbField, rows int) ([]interface{}, int64, error) {
	var (
		ids      []interface{}
		affected int64
		strategy = db.dialect.Setting().Identity
	)
	_, err := db.run(ctx, key, text, cmd, db.named(), func(args []interface{}) (int64, interface{}, error) {
		if identity != nil && strategy == dialect.Returning {
			var err error
			ids, err = db.queryColumn(ctx, text, args)
			affected = int64(len(ids))
			return affected, ids, err
		}

		res, err := db.conn.ExecContext(ctx, text, args...)
		if err != nil {
			return 0, nil, err
		}
		if affected, err = res.RowsAffected(); err != nil || identity == nil {
			return affected, nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return affected, nil, err
		}
		first := id
		if strategy == dialect.LastInsertID {
			first = id - int64(rows) + 1
		}
		ids = make([]interface{}, rows)
		for i := range ids {
			ids[i] = first + int64(i)
		}
		return affected, ids, nil
	})
	return ids, affected, err
}

// queryColumn reads the first column of every row text returns
func (db *DB) queryColumn(ctx context.Context, text string, args []interface{}) ([]interface{}, error) {
	rows, err := db.conn.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []interface{}
	for rows.Next() {
		var v interface{}
		if err := rows.Scan(&v); err != nil {
			return values, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// exec executes text and returns the rows affected
func (db *DB) exec(ctx context.Context, key, text string, cmd *command.Cmd, named bool) (int64, error) {
	var affected int64
	_, err := db.run(ctx, key, text, cmd, named, func(args []interface{}) (int64, interface{}, error) {
		res, err := db.conn.ExecContext(ctx, text, args...)
		if err != nil {
			return 0, nil, err
		}
		affected, err = res.RowsAffected()
		return affected, affected, err
	})
	return affected, err
}

// Update updates the row of entity matched on its qualifiers, WithQualifiers
// or the primary key. Qualifiers and the identity are not updated.
func (db *DB) Update(ctx context.Context, entity interface{}, opts ...OperationOption) (int64, error) {
	op := newOperation("Update", opts)
	t, err := db.targetOf(entity)
	if err != nil {
		return 0, err
	}
	table, err := t.table(op)
	if err != nil {
		return 0, err
	}
	fields, err := db.Fields(ctx, table)
	if err != nil {
		return 0, err
	}

	q, err := qualifiers(op, fields)
	if err != nil {
		return 0, err
	}
	qnames := q.Names()
	for _, name := range qnames {
		if !t.has(name, readAccess) {
			return 0, fmt.Errorf("%w: %s has no %s", ErrMissingQualifiers, t.describe(), name)
		}
	}
	set, err := t.columns(fields, updateAccess, op.fields, append(qnames, identityName(fields.Identity()))...)
	if err != nil {
		return 0, err
	}
	names := set.Names()

	key := "update:" + table + ":" + cache.Signature(names...) + ":" + cache.Signature(qnames...)
	text, err := db.texts.Get(key, func() (string, error) {
		return db.builder.Update(table, names, qnames)
	})
	if err != nil {
		return 0, err
	}

	// SET parameters first, then the qualifiers, in the order of their markers
	input := append(append(schema.DbFields{}, set...), q...)
	setter, err := db.compiler.EntityParameters(t.typ, table, input, nil)
	if err != nil {
		return 0, err
	}
	cmd := command.New(text)
	if err := setter(cmd, t.value); err != nil {
		return 0, err
	}
	return db.exec(ctx, op.traceKey, text, cmd, db.named())
}

// Merge inserts entity or, when a row with the same qualifiers exists,
// updates it. It returns the identity of the row, written back into the entity.
func (db *DB) Merge(ctx context.Context, entity interface{}, opts ...OperationOption) (interface{}, error) {
	op := newOperation("Merge", opts)
	t, err := db.targetOf(entity)
	if err != nil {
		return nil, err
	}
	table, err := t.table(op)
	if err != nil {
		return nil, err
	}
	fields, err := db.Fields(ctx, table)
	if err != nil {
		return nil, err
	}

	q, err := qualifiers(op, fields)
	if err != nil {
		return nil, err
	}
	qnames := q.Names()
	identity := fields.Identity()
	// an identity used as qualifier is written like any other column
	identityQualifies := identity != nil && contains(qnames, identity.Name)
	var excluded []string
	if identity != nil && !identityQualifies {
		excluded = append(excluded, identity.Name)
	}
	input, err := t.columns(fields, createAccess, op.fields, excluded...)
	if err != nil {
		return nil, err
	}
	for _, name := range qnames {
		if input.Get(name) == nil {
			return nil, fmt.Errorf("%w: %s has no %s", ErrMissingQualifiers, t.describe(), name)
		}
	}
	names := input.Names()

	key := "merge:" + table + ":" + cache.Signature(names...) + ":" + cache.Signature(qnames...) + ":" + identityName(identity)
	text, err := db.texts.Get(key, func() (string, error) {
		return db.builder.Merge(table, names, qnames, identityName(identity))
	})
	if err != nil {
		return nil, err
	}
	setter, err := db.compiler.EntityParameters(t.typ, table, input, nil)
	if err != nil {
		return nil, err
	}
	cmd := command.New(text)
	if err := setter(cmd, t.value); err != nil {
		return nil, err
	}

	switch {
	case identity == nil:
		_, err := db.exec(ctx, op.traceKey, text, cmd, db.named())
		return nil, err
	case identityQualifies:
		if _, err := db.exec(ctx, op.traceKey, text, cmd, db.named()); err != nil {
			return nil, err
		}
		id, _ := t.member(identity.Name)
		return id, nil
	case db.dialect.Setting().Identity == dialect.Returning:
		ids, _, err := db.insert(ctx, op.traceKey, text, cmd, identity, 1)
		if err != nil || len(ids) == 0 {
			return nil, err
		}
		return ids[0], db.setIdentity(t.value, t.schema, identity, ids[0])
	}

	// last insert ids are not reliable for updates, read the identity back
	if _, err := db.exec(ctx, op.traceKey, text, cmd, db.named()); err != nil {
		return nil, err
	}
	where, err := t.qualify(q)
	if err != nil {
		return nil, err
	}
	id, err := db.selectValue(ctx, op.traceKey, table, fields, identity.Name, where)
	if err != nil {
		return nil, err
	}
	return id, db.setIdentity(t.value, t.schema, identity, id)
}

// selectValue reads column of the first row matching where
func (db *DB) selectValue(ctx context.Context, key, table string, fields schema.DbFields, column string, where []builder.QueryField) (interface{}, error) {
	text, err := db.texts.Get("value:"+table+":"+column+":"+whereSignature(where), func() (string, error) {
		return db.builder.Query(table, []string{column}, where, nil, 1)
	})
	if err != nil {
		return nil, err
	}
	cmd := command.New(text)
	if err := db.whereParameters(cmd, table, fields, where); err != nil {
		return nil, err
	}

	var value interface{}
	_, err = db.run(ctx, key, text, cmd, db.named(), func(args []interface{}) (int64, interface{}, error) {
		err := db.conn.QueryRowContext(ctx, text, args...).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, ErrRecordNotFound
		}
		return 1, value, err
	})
	return value, err
}

// whereParameters appends the parameters bound by where to cmd. They are
// compiled like entity parameters, so enums and mapped types are converted
// per column.
func (db *DB) whereParameters(cmd *command.Cmd, table string, fields schema.DbFields, where []builder.QueryField) error {
	params, err := builder.Parameters(where)
	if err != nil || len(params) == 0 {
		return err
	}

	values := dynamic.New(len(params))
	input := make(schema.DbFields, 0, len(params))
	for _, p := range params {
		values.Set(p.Name, p.Value)
		field := schema.DbField{Name: p.Name, IsNullable: true}
		if column := fields.Get(p.Field); column != nil {
			field = *column
			field.Name, field.IsNullable, field.IsPrimary, field.IsIdentity = p.Name, true, false, false
		}
		input = append(input, &field)
	}

	setter, err := compiler.ObjectToParameters[*dynamic.Object](db.compiler, "where:"+table, input, nil)
	if err != nil {
		return err
	}
	bound := command.New(cmd.Text)
	if err := setter(bound, values); err != nil {
		return err
	}
	for _, p := range bound.Parameters().All() {
		cmd.Parameters().Add(p)
	}
	return nil
}

// modelTarget the target naming the table of a call, nil without model
func (db *DB) modelTarget(model interface{}) (*target, error) {
	if model == nil {
		return nil, nil
	}
	return db.targetOf(model)
}

// Delete deletes the rows matching where. A nil where deletes the row of
// model matched on its qualifiers; use DeleteAll to delete every row.
func (db *DB) Delete(ctx context.Context, model interface{}, where interface{}, opts ...OperationOption) (int64, error) {
	op := newOperation("Delete", opts)
	t, err := db.modelTarget(model)
	if err != nil {
		return 0, err
	}
	table, err := t.table(op)
	if err != nil {
		return 0, err
	}
	fields, err := db.Fields(ctx, table)
	if err != nil {
		return 0, err
	}

	if where == nil {
		where = model
	}
	conditions, err := db.conditions(op, fields, where)
	if err != nil {
		return 0, err
	}
	if len(conditions) == 0 {
		return 0, fmt.Errorf("%w: delete from %s", ErrMissingQualifiers, table)
	}
	return db.delete(ctx, op, table, fields, conditions)
}

// DeleteAll deletes every row of the table of model
func (db *DB) DeleteAll(ctx context.Context, model interface{}, opts ...OperationOption) (int64, error) {
	op := newOperation("DeleteAll", opts)
	t, err := db.modelTarget(model)
	if err != nil {
		return 0, err
	}
	table, err := t.table(op)
	if err != nil {
		return 0, err
	}
	return db.delete(ctx, op, table, nil, nil)
}

func (db *DB) delete(ctx context.Context, op *operation, table string, fields schema.DbFields, where []builder.QueryField) (int64, error) {
	text, err := db.texts.Get("delete:"+table+":"+whereSignature(where), func() (string, error) {
		return db.builder.Delete(table, where)
	})
	if err != nil {
		return 0, err
	}
	cmd := command.New(text)
	if err := db.whereParameters(cmd, table, fields, where); err != nil {
		return 0, err
	}
	return db.exec(ctx, op.traceKey, text, cmd, db.named())
}

// Count counts the rows of the table of model matching where, all rows when
// where is nil
func (db *DB) Count(ctx context.Context, model interface{}, where interface{}, opts ...OperationOption) (int64, error) {
	op := newOperation("Count", opts)
	t, err := db.modelTarget(model)
	if err != nil {
		return 0, err
	}
	table, err := t.table(op)
	if err != nil {
		return 0, err
	}
	fields, err := db.Fields(ctx, table)
	if err != nil {
		return 0, err
	}
	conditions, err := db.conditions(op, fields, where)
	if err != nil {
		return 0, err
	}

	text, err := db.texts.Get("count:"+table+":"+whereSignature(conditions), func() (string, error) {
		return db.builder.Count(table, conditions)
	})
	if err != nil {
		return 0, err
	}
	cmd := command.New(text)
	if err := db.whereParameters(cmd, table, fields, conditions); err != nil {
		return 0, err
	}

	var count int64
	_, err = db.run(ctx, op.traceKey, text, cmd, db.named(), func(args []interface{}) (int64, interface{}, error) {
		err := db.conn.QueryRowContext(ctx, text, args...).Scan(&count)
		return count, count, err
	})
	return count, err
}
