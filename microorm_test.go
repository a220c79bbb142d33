package microorm_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/microorm"
	"gorm.io/microorm/builder"
	"gorm.io/microorm/convert"
	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/dialects/sqlite"
	"gorm.io/microorm/dynamic"
	"gorm.io/microorm/handler"
	"gorm.io/microorm/logger"
	"gorm.io/microorm/schema"
)

type Status int

const (
	Active Status = iota + 1
	Blocked
)

func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case Blocked:
		return "Blocked"
	}
	return "Unknown"
}

type Customer struct {
	ID     int
	Name   string
	Email  *string
	Status Status
	Age    *int
}

type Nameless struct {
	Nickname string
}

func ptr[T any](v T) *T { return &v }

const customersTable = `CREATE TABLE customers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name VARCHAR(64) NOT NULL,
	email TEXT UNIQUE,
	status TEXT,
	age INT
)`

func options(opts ...microorm.Option) []microorm.Option {
	enums := &convert.Enums{}
	convert.RegisterEnumWith(enums, Active, Blocked)
	return append([]microorm.Option{
		microorm.WithLogger(logger.Discard),
		microorm.WithEnums(enums),
		microorm.WithHandlers(handler.NewRegistry()),
		microorm.WithTypeMapper(&dbtype.Mapper{}),
		microorm.WithConstructors(&schema.Constructors{}),
	}, opts...)
}

func openSQLite(t *testing.T, opts ...microorm.Option) *microorm.DB {
	t.Helper()
	db, err := microorm.Open(sqlite.New(), ":memory:", options(opts...)...)
	require.NoError(t, err)
	// every connection has its own in-memory database
	db.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecuteNonQuery(context.Background(), customersTable, nil)
	require.NoError(t, err)
	return db
}

func seed(t *testing.T, db *microorm.DB) []Customer {
	t.Helper()
	customers := []Customer{
		{Name: "Ada", Email: ptr("ada@example.com"), Status: Active, Age: ptr(36)},
		{Name: "Grace", Email: ptr("grace@example.com"), Status: Active, Age: ptr(45)},
		{Name: "Alan", Email: ptr("alan@example.com"), Status: Blocked, Age: ptr(41)},
		{Name: "Edsger", Status: Active},
		{Name: "Barbara", Email: ptr("barbara@example.com"), Status: Blocked, Age: ptr(29)},
	}
	n, err := db.InsertAll(context.Background(), customers, microorm.WithBatchSize(2))
	require.NoError(t, err)
	require.EqualValues(t, len(customers), n)
	return customers
}

func TestInsertWritesIdentityBack(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	ada := &Customer{Name: "Ada", Email: ptr("ada@example.com"), Status: Active, Age: ptr(36)}
	id, err := db.Insert(ctx, ada)
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)
	assert.Equal(t, 1, ada.ID)

	grace := &Customer{Name: "Grace", Status: Blocked}
	id, err = db.Insert(ctx, grace)
	require.NoError(t, err)
	assert.EqualValues(t, 2, id)
	assert.Equal(t, 2, grace.ID)

	var found Customer
	require.NoError(t, db.Take(ctx, &found, map[string]interface{}{"id": 2}))
	assert.Equal(t, Customer{ID: 2, Name: "Grace", Status: Blocked}, found)

	err = db.Take(ctx, &found, map[string]interface{}{"id": 3})
	assert.ErrorIs(t, err, microorm.ErrRecordNotFound)
}

func TestEnumsAreStoredByName(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	_, err := db.Insert(ctx, &Customer{Name: "Ada", Status: Blocked})
	require.NoError(t, err)

	rows, err := microorm.ExecuteQueryAs[map[string]interface{}](ctx, db, "SELECT status FROM customers", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Blocked", rows[0]["status"])
}

func TestInsertAllBatches(t *testing.T) {
	ctx := context.Background()
	var statements int32
	db := openSQLite(t, microorm.WithTracer(microorm.TracerFuncs{
		Before: func(ctx context.Context, log *microorm.TraceLog) {
			if log.Key == "InsertAll" {
				atomic.AddInt32(&statements, 1)
			}
		},
	}))

	customers := seed(t, db)
	// 2 + 2 + 1
	assert.EqualValues(t, 3, atomic.LoadInt32(&statements))
	for i, c := range customers {
		assert.Equal(t, i+1, c.ID, c.Name)
	}

	count, err := db.Count(ctx, Customer{}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)

	all, err := microorm.QueryAs[Customer](ctx, db, nil, microorm.WithOrderBy(builder.Asc("id")))
	require.NoError(t, err)
	assert.Equal(t, customers, all)
}

func TestQueryConditions(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	seed(t, db)

	names := func(customers []*Customer) []string {
		out := make([]string, len(customers))
		for i, c := range customers {
			out[i] = c.Name
		}
		return out
	}

	t.Run("equality map", func(t *testing.T) {
		var out []*Customer
		require.NoError(t, db.Query(ctx, &out, map[string]interface{}{"status": Blocked}, microorm.WithOrderBy(builder.Asc("name"))))
		assert.Equal(t, []string{"Alan", "Barbara"}, names(out))
	})

	t.Run("operators", func(t *testing.T) {
		var out []*Customer
		where := []builder.QueryField{builder.Gte("age", 36), builder.Contains("name", "A%")}
		require.NoError(t, db.Query(ctx, &out, where, microorm.WithOrderBy(builder.Desc("age"))))
		assert.Equal(t, []string{"Alan", "Ada"}, names(out))
	})

	t.Run("in and top", func(t *testing.T) {
		var out []*Customer
		where := builder.AnyOf("id", []int{1, 2, 3})
		require.NoError(t, db.Query(ctx, &out, where, microorm.WithOrderBy(builder.Desc("id")), microorm.WithTop(2)))
		assert.Equal(t, []string{"Alan", "Grace"}, names(out))
	})

	t.Run("empty in", func(t *testing.T) {
		var out []*Customer
		require.NoError(t, db.Query(ctx, &out, builder.AnyOf("id", []int{})))
		assert.Empty(t, out)
	})

	t.Run("null", func(t *testing.T) {
		var out []*Customer
		require.NoError(t, db.Query(ctx, &out, builder.Eq("email", nil)))
		assert.Equal(t, []string{"Edsger"}, names(out))
	})

	t.Run("entity qualifiers", func(t *testing.T) {
		var out []Customer
		require.NoError(t, db.Query(ctx, &out, &Customer{ID: 3}))
		require.Len(t, out, 1)
		assert.Equal(t, "Alan", out[0].Name)
	})

	t.Run("fields", func(t *testing.T) {
		var out []Customer
		require.NoError(t, db.Query(ctx, &out, builder.Eq("id", 1), microorm.WithFields("id", "name")))
		require.Len(t, out, 1)
		assert.Equal(t, Customer{ID: 1, Name: "Ada"}, out[0])
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	customers := seed(t, db)

	ada := customers[0]
	ada.Name, ada.Status, ada.Age = "Ada Lovelace", Blocked, nil
	n, err := db.Update(ctx, &ada)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var found Customer
	require.NoError(t, db.Take(ctx, &found, &Customer{ID: ada.ID}))
	assert.Equal(t, ada, found)

	// qualified by email, name only
	n, err = db.Update(ctx, map[string]interface{}{"email": "grace@example.com", "name": "Grace Hopper"},
		microorm.WithTable("customers"), microorm.WithQualifiers("email"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	require.NoError(t, db.Take(ctx, &found, builder.Eq("id", 2)))
	assert.Equal(t, "Grace Hopper", found.Name)
	assert.Equal(t, ptr(45), found.Age)

	_, err = db.Update(ctx, map[string]interface{}{"name": "nobody"}, microorm.WithTable("customers"))
	assert.ErrorIs(t, err, microorm.ErrMissingQualifiers)
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	seed(t, db)

	dennis := &Customer{Name: "Dennis", Email: ptr("dennis@example.com"), Status: Active}
	id, err := db.Merge(ctx, dennis, microorm.WithQualifiers("email"))
	require.NoError(t, err)
	assert.EqualValues(t, 6, id)
	assert.Equal(t, 6, dennis.ID)

	again := &Customer{Name: "Dennis Ritchie", Email: ptr("dennis@example.com"), Status: Blocked}
	id, err = db.Merge(ctx, again, microorm.WithQualifiers("email"))
	require.NoError(t, err)
	assert.EqualValues(t, 6, id)
	assert.Equal(t, 6, again.ID)

	count, err := db.Count(ctx, Customer{}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 6, count)

	var found Customer
	require.NoError(t, db.Take(ctx, &found, builder.Eq("id", 6)))
	assert.Equal(t, "Dennis Ritchie", found.Name)
	assert.Equal(t, Blocked, found.Status)

	// by primary key
	found.Age = ptr(70)
	id, err = db.Merge(ctx, &found)
	require.NoError(t, err)
	assert.EqualValues(t, 6, id)
	require.NoError(t, db.Take(ctx, &found, builder.Eq("id", 6)))
	assert.Equal(t, ptr(70), found.Age)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	customers := seed(t, db)

	n, err := db.Delete(ctx, &customers[0], nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = db.Delete(ctx, Customer{}, []builder.QueryField{builder.Gt("age", 40)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = db.Delete(ctx, nil, nil, microorm.WithTable("customers"))
	assert.ErrorIs(t, err, microorm.ErrMissingQualifiers)

	count, err := db.Count(ctx, nil, nil, microorm.WithTable("customers"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	n, err = db.DeleteAll(ctx, Customer{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestDynamicObjects(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	row := map[string]interface{}{"name": "Ada", "status": "Active", "age": 36}
	id, err := db.Insert(ctx, row, microorm.WithTable("customers"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)
	assert.EqualValues(t, 1, row["id"])

	obj := dynamic.New(2)
	obj.Set("Name", "Grace")
	obj.Set("Status", "Blocked")
	id, err = db.Insert(ctx, obj, microorm.WithTable("customers"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, id)
	got, ok := obj.Get("id")
	assert.True(t, ok)
	assert.EqualValues(t, 2, got)

	objects, err := microorm.QueryAs[*dynamic.Object](ctx, db, nil,
		microorm.WithTable("customers"), microorm.WithOrderBy(builder.Asc("id")), microorm.WithFields("id", "name"))
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, []string{"id", "name"}, objects[0].Keys())
	name, _ := objects[1].Get("NAME")
	assert.Equal(t, "Grace", name)

	_, err = db.Insert(ctx, map[string]interface{}{"name": "Alan"})
	assert.ErrorIs(t, err, microorm.ErrMissingTable)
}

func TestExecuteRaw(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	seed(t, db)

	var out []Customer
	err := db.ExecuteQuery(ctx, &out, "SELECT id, name FROM customers WHERE age > @age ORDER BY id",
		map[string]interface{}{"age": 40})
	require.NoError(t, err)
	assert.Equal(t, []Customer{{ID: 2, Name: "Grace"}, {ID: 3, Name: "Alan"}}, out)

	count, err := db.ExecuteScalar(ctx, "SELECT COUNT(*) FROM customers WHERE status = ?", []interface{}{"Blocked"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	n, err := db.ExecuteNonQuery(ctx, "UPDATE customers SET age = @age WHERE name = @name",
		&Customer{Name: "Edsger", Age: ptr(72)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = db.ExecuteScalar(ctx, "SELECT id FROM customers WHERE id = 100", nil)
	assert.ErrorIs(t, err, microorm.ErrRecordNotFound)
}

func TestTracerCancellation(t *testing.T) {
	ctx := context.Background()
	var (
		throw    bool
		sessions []string
	)
	tracer := microorm.TracerFuncs{
		Before: func(ctx context.Context, log *microorm.TraceLog) {
			if log.Key == "cancel" {
				log.Cancel(throw)
			}
			sessions = append(sessions, log.SessionID.String())
		},
		After: func(ctx context.Context, log *microorm.TraceLog) {
			assert.Equal(t, sessions[len(sessions)-1], log.SessionID.String())
		},
	}
	db := openSQLite(t, microorm.WithTracer(tracer))

	id, err := db.Insert(ctx, &Customer{Name: "Ada", Status: Active}, microorm.WithTraceKey("cancel"))
	require.NoError(t, err)
	assert.Nil(t, id)

	throw = true
	_, err = db.Insert(ctx, &Customer{Name: "Ada", Status: Active}, microorm.WithTraceKey("cancel"))
	assert.ErrorIs(t, err, microorm.ErrCancelledExecution)

	count, err := db.Count(ctx, Customer{}, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTransaction(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	boom := errors.New("boom")

	err := db.Transaction(ctx, func(tx *microorm.DB) error {
		if _, err := tx.Insert(ctx, &Customer{Name: "Ada", Status: Active}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = db.Transaction(ctx, func(tx *microorm.DB) error {
		_, err := tx.Insert(ctx, &Customer{Name: "Grace", Status: Active})
		return err
	})
	require.NoError(t, err)

	var all []Customer
	require.NoError(t, db.QueryAll(ctx, &all))
	require.Len(t, all, 1)
	assert.Equal(t, "Grace", all[0].Name)
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	var out []Customer
	assert.ErrorIs(t, db.Query(ctx, out, nil), microorm.ErrInvalidDestination)
	assert.ErrorIs(t, db.Query(ctx, &out, nil, microorm.WithTable("missing")), microorm.ErrMissingTable)

	_, err := db.Insert(ctx, &Nameless{Nickname: "x"}, microorm.WithTable("customers"))
	assert.ErrorIs(t, err, microorm.ErrMissingFields)

	_, err = db.Insert(ctx, &Customer{Name: "Ada", Email: ptr("ada@example.com")})
	require.NoError(t, err)
	_, err = db.Insert(ctx, &Customer{Name: "Ada Again", Email: ptr("ada@example.com")})
	assert.ErrorIs(t, err, microorm.ErrDuplicatedKey)
	var sqliteErr sqlite3.Error
	assert.ErrorAs(t, err, &sqliteErr)
}

func TestFieldsAreCachedUntilForgotten(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	fields, err := db.Fields(ctx, "customers")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "email", "status", "age"}, fields.Names())
	assert.True(t, fields.Identity().IsPrimary)

	_, err = db.ExecuteNonQuery(ctx, "ALTER TABLE customers ADD COLUMN note TEXT", nil)
	require.NoError(t, err)
	fields, err = db.Fields(ctx, "customers")
	require.NoError(t, err)
	assert.Len(t, fields, 5)

	require.NoError(t, db.ForgetFields(ctx, "customers"))
	fields, err = db.Fields(ctx, "customers")
	require.NoError(t, err)
	assert.Len(t, fields, 6)
}

func TestCompiledFunctionsAreReused(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	seed(t, db)

	var out []Customer
	require.NoError(t, db.QueryAll(ctx, &out))
	compiled := db.Compiler().Compilations()
	out = nil
	require.NoError(t, db.QueryAll(ctx, &out))
	assert.Equal(t, compiled, db.Compiler().Compilations())

	db.Flush()
	out = nil
	require.NoError(t, db.QueryAll(ctx, &out))
	assert.Greater(t, db.Compiler().Compilations(), compiled)
}
