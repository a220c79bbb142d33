package reader_test

import (
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/reader"
)

func TestMemoryReader(t *testing.T) {
	guid := uuid.New()
	r := reader.NewMemoryReader(reader.Columns("id", "name", "born", "guid", "score"),
		[]interface{}{int64(1), "Ada", "1815-12-10 00:00:00", guid.String(), nil},
		[]interface{}{int64(2), []byte("Grace"), time.Date(1906, 12, 9, 0, 0, 0, 0, time.UTC), guid[:], 2.5},
	)

	_, err := r.GetInt64(0)
	assert.True(t, errors.Is(err, reader.ErrNoRow))

	assert.Equal(t, 5, r.FieldCount())
	assert.Equal(t, "name", r.GetName(1))
	assert.Equal(t, dbtype.Int64Type, r.GetFieldType(0))
	assert.Equal(t, dbtype.StringType, r.GetFieldType(1))
	assert.Equal(t, dbtype.Float64Type, r.GetFieldType(4))

	ok, err := r.Read()
	require.NoError(t, err)
	require.True(t, ok)

	id, err := r.GetInt32(0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), id)

	born, err := r.GetTime(2)
	require.NoError(t, err)
	assert.Equal(t, 1815, born.Year())

	g, err := r.GetUUID(3)
	require.NoError(t, err)
	assert.Equal(t, guid, g)

	assert.True(t, r.IsDBNull(4))
	v, err := r.GetValue(4)
	require.NoError(t, err)
	assert.Nil(t, v)

	ok, err = r.Read()
	require.NoError(t, err)
	require.True(t, ok)

	name, err := r.GetString(1)
	require.NoError(t, err)
	assert.Equal(t, "Grace", name)

	g, err = r.GetUUID(3)
	require.NoError(t, err)
	assert.Equal(t, guid, g)

	_, err = r.GetInt64(9)
	assert.True(t, errors.Is(err, reader.ErrOrdinal))

	ok, err = r.Read()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCast(t *testing.T) {
	tests := []struct {
		value interface{}
		to    reflect.Type
		want  interface{}
	}{
		{int64(7), dbtype.Int16Type, int16(7)},
		{[]byte("42"), dbtype.Int64Type, int64(42)},
		{[]byte("1"), dbtype.BoolType, true},
		{int64(0), dbtype.BoolType, false},
		{"2.5", dbtype.Float64Type, 2.5},
		{int64(3), dbtype.StringType, "3"},
		{float32(1.5), dbtype.Float32Type, float32(1.5)},
		{"abc", dbtype.BytesType, []byte("abc")},
		{nil, dbtype.Int64Type, int64(0)},
		{"x", dbtype.AnyType, "x"},
		{"2024-05-01 10:00:00", dbtype.TimeType, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:00:00Z", dbtype.TimeType, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := reader.Cast(tt.value, tt.to)
		require.NoError(t, err, "%v -> %v", tt.value, tt.to)
		assert.Equal(t, tt.want, got.Interface(), "%v -> %v", tt.value, tt.to)
	}

	_, err := reader.Cast(struct{}{}, dbtype.Int64Type)
	assert.True(t, errors.Is(err, reader.ErrInvalidCast))

	_, err = reader.Cast("not a date", dbtype.TimeType)
	assert.True(t, errors.Is(err, reader.ErrInvalidCast))
}

func TestAccessors(t *testing.T) {
	for _, typ := range []reflect.Type{
		dbtype.BoolType, dbtype.Uint8Type, dbtype.Int16Type, dbtype.Int32Type, dbtype.Int64Type,
		dbtype.IntType, dbtype.Float32Type, dbtype.Float64Type, dbtype.StringType, dbtype.TimeType, dbtype.BytesType,
		dbtype.UUIDType, dbtype.AnyType,
	} {
		a, ok := reader.AccessorOf(typ)
		assert.True(t, ok, typ.String())
		assert.NotEmpty(t, a.Name)
	}

	for _, typ := range []reflect.Type{dbtype.DurationType, dbtype.Int8Type} {
		_, ok := reader.AccessorOf(typ)
		assert.False(t, ok, typ.String())
	}

	_, ok := reader.GenericAccessor(dbtype.DurationType)
	assert.False(t, ok)
	_, ok = reader.GenericAccessor(dbtype.Float32Type)
	assert.False(t, ok)
	generic, ok := reader.GenericAccessor(dbtype.Int8Type)
	require.True(t, ok)

	assert.Equal(t, "GetFloat32", reader.AccessorName(dbtype.Float32Type))
	assert.Equal(t, "GetDuration", reader.AccessorName(dbtype.DurationType))

	r := reader.Row(reader.Columns("n"), int64(5))
	v, err := generic.Read(r, 0)
	require.NoError(t, err)
	assert.Equal(t, int8(5), v.Interface())

	v, err = reader.ValueAccessor().Read(r, 0)
	require.NoError(t, err)
	assert.Equal(t, reflect.Interface, v.Kind())
	assert.Equal(t, int64(5), v.Interface())
}

func TestNarrowAccessorsRejectOverflow(t *testing.T) {
	r := reader.Row(reader.Columns("small", "big", "neg", "real"), int64(200), int64(70000), int64(-3_000_000_000), 2.5)

	n8, err := r.GetUint8(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(200), n8)
	_, err = r.GetUint8(1)
	assert.ErrorIs(t, err, reader.ErrInvalidCast)

	_, err = r.GetInt16(1)
	assert.ErrorIs(t, err, reader.ErrInvalidCast)
	n32, err := r.GetInt32(1)
	require.NoError(t, err)
	assert.Equal(t, int32(70000), n32)
	_, err = r.GetInt32(2)
	assert.ErrorIs(t, err, reader.ErrInvalidCast)

	f, err := r.GetFloat32(3)
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), f)

	r = reader.Row(reader.Columns("huge"), 1e300)
	_, err = r.GetFloat32(0)
	assert.ErrorIs(t, err, reader.ErrInvalidCast)
}

func TestColumnType(t *testing.T) {
	assert.Equal(t, dbtype.Int64Type, reader.ColumnType(reflect.TypeOf(sql.NullInt64{}), "INTEGER", nil))
	assert.Equal(t, dbtype.StringType, reader.ColumnType(reflect.TypeOf(sql.RawBytes{}), "VARCHAR", nil))
	assert.Equal(t, dbtype.BytesType, reader.ColumnType(reflect.TypeOf(sql.RawBytes{}), "BLOB", nil))
	assert.Equal(t, dbtype.AnyType, reader.ColumnType(reflect.TypeOf(new(interface{})), "", nil))
	assert.Equal(t, dbtype.Float64Type, reader.ColumnType(reflect.TypeOf(new(interface{})), "DOUBLE", nil))
	assert.Equal(t, dbtype.AnyType, reader.ColumnType(nil, "", nil))
	assert.Equal(t, dbtype.TimeType, reader.ColumnType(reflect.TypeOf(sql.NullTime{}), "DATETIME", nil))
}

func TestRowsReader(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "Ada").
			AddRow(int64(2), nil),
	)

	rows, err := db.Query("SELECT id, name FROM people")
	require.NoError(t, err)

	r, err := reader.NewRowsReader(rows, nil)
	require.NoError(t, err)
	defer r.Close()

	assert.Len(t, r.Columns(), 2)

	var names []interface{}
	for {
		ok, err := r.Read()
		require.NoError(t, err)
		if !ok {
			break
		}
		id, err := r.GetInt64(0)
		require.NoError(t, err)
		assert.NotZero(t, id)
		v, err := r.GetValue(1)
		require.NoError(t, err)
		names = append(names, v)
	}
	assert.Equal(t, []interface{}{"Ada", nil}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}
