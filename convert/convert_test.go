package convert

import (
	"database/sql"
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/microorm/dbtype"
)

type OrderStatus int

const (
	Pending OrderStatus = iota
	Shipped
	Delivered
)

func (s OrderStatus) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Shipped:
		return "Shipped"
	case Delivered:
		return "Delivered"
	}
	return "OrderStatus(" + strconv.Itoa(int(s)) + ")"
}

func testEnums() *Enums {
	enums := &Enums{}
	RegisterEnumWith(enums, Pending, Shipped, Delivered)
	return enums
}

func convert(t *testing.T, b *Builder, value interface{}, to reflect.Type) (interface{}, error) {
	t.Helper()
	fn, err := b.Build(reflect.TypeOf(value), to)
	if err != nil {
		return nil, err
	}
	out, err := fn(reflect.ValueOf(value))
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

func TestParseConversionType(t *testing.T) {
	c, err := ParseConversionType("Automatic")
	require.NoError(t, err)
	assert.Equal(t, Automatic, c)
	assert.Equal(t, "automatic", c.String())

	c, err = ParseConversionType("")
	require.NoError(t, err)
	assert.Equal(t, Default, c)

	_, err = ParseConversionType("strict")
	assert.Error(t, err)

	assert.Equal(t, dbtype.String, DefaultPolicy().EnumDefaultDatabaseType)
}

func TestEnum(t *testing.T) {
	enum := testEnums().Lookup(reflect.TypeOf(Shipped))
	require.NotNil(t, enum)
	assert.Len(t, enum.Values(), 3)

	v, err := enum.Parse("shipped")
	require.NoError(t, err)
	assert.Equal(t, Shipped, v.Interface())

	v, err = enum.Parse(" DELIVERED ")
	require.NoError(t, err)
	assert.Equal(t, Delivered, v.Interface())

	v, err = enum.Parse("1")
	require.NoError(t, err)
	assert.Equal(t, Shipped, v.Interface())

	_, err = enum.Parse("Lost")
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "Lost", parseErr.Value)

	v, err = enum.FromUnderlying(reflect.ValueOf(true))
	require.NoError(t, err)
	assert.Equal(t, Shipped, v.Interface())

	_, err = enum.FromUnderlying(reflect.ValueOf("x"))
	assert.Error(t, err)

	assert.Equal(t, "Delivered", enum.Name(reflect.ValueOf(Delivered)))
	assert.Equal(t, 2, enum.Underlying(reflect.ValueOf(Delivered), reflect.TypeOf(0)).Interface())
	assert.Nil(t, testEnums().Lookup(reflect.TypeOf(0)))
}

func TestBuildDefault(t *testing.T) {
	b := NewBuilder(DefaultPolicy(), testEnums())

	tests := []struct {
		name  string
		value interface{}
		to    reflect.Type
		want  interface{}
	}{
		{"identity", int64(4), dbtype.Int64Type, int64(4)},
		{"widen", int32(4), dbtype.Int64Type, int64(4)},
		{"narrow", int64(4), dbtype.Int16Type, int16(4)},
		{"float to int", 2.9, dbtype.IntType, 2},
		{"bytes to string", []byte("ada"), dbtype.StringType, "ada"},
		{"string to guid", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", dbtype.UUIDType, uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")},
		{"guid to string", uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), dbtype.StringType, "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"text to enum", "SHIPPED", reflect.TypeOf(Pending), Shipped},
		{"number to enum", int64(2), reflect.TypeOf(Pending), Delivered},
		{"enum to text", Shipped, dbtype.StringType, "Shipped"},
		{"enum to number", Delivered, dbtype.Int64Type, int64(2)},
		{"time of day", time.Date(2024, 5, 1, 13, 30, 15, 0, time.UTC), dbtype.DurationType, 13*time.Hour + 30*time.Minute + 15*time.Second},
		{"interface", interface{}(int64(3)), dbtype.AnyType, int64(3)},
		{"scanner", "ada", reflect.TypeOf(sql.NullString{}), sql.NullString{String: "ada", Valid: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convert(t, b, tt.value, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	guid := uuid.New()
	got, err := convert(t, b, guid[:], dbtype.UUIDType)
	require.NoError(t, err)
	assert.Equal(t, guid, got)

	got, err = convert(t, b, guid, dbtype.BytesType)
	require.NoError(t, err)
	assert.Equal(t, guid[:], got)
}

func TestBuildDefaultRejects(t *testing.T) {
	b := NewBuilder(DefaultPolicy(), testEnums())
	for _, pair := range [][2]reflect.Type{
		{dbtype.Int64Type, dbtype.StringType},
		{dbtype.StringType, dbtype.IntType},
		{dbtype.StringType, dbtype.TimeType},
		{dbtype.TimeType, reflect.TypeOf(Pending)},
		{nil, dbtype.IntType},
	} {
		_, err := b.Build(pair[0], pair[1])
		assert.True(t, errors.Is(err, ErrNoConversion), "%v -> %v: %v", pair[0], pair[1], err)
	}
}

func TestBuildRuntimeErrorsPropagate(t *testing.T) {
	b := NewBuilder(DefaultPolicy(), testEnums())

	_, err := convert(t, b, "Lost", reflect.TypeOf(Pending))
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))

	_, err = convert(t, b, "not-a-guid", dbtype.UUIDType)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoConversion))
}

func TestBuildAutomatic(t *testing.T) {
	b := NewBuilder(Policy{ConversionType: Automatic, EnumDefaultDatabaseType: dbtype.String}, testEnums())

	tests := []struct {
		name  string
		value interface{}
		to    reflect.Type
		want  interface{}
	}{
		{"string to int", "42", dbtype.IntType, 42},
		{"bytes to uint16", []byte("7"), dbtype.Uint16Type, uint16(7)},
		{"string to float", "2.5", dbtype.Float64Type, 2.5},
		{"string to bool", "true", dbtype.BoolType, true},
		{"int to string", int64(-3), dbtype.StringType, "-3"},
		{"uint to string", uint8(3), dbtype.StringType, "3"},
		{"float to string", 1.25, dbtype.StringType, "1.25"},
		{"bool to string", true, dbtype.StringType, "true"},
		{"bool to int", true, dbtype.Int32Type, int32(1)},
		{"int to bool", int64(0), dbtype.BoolType, false},
		{"rfc3339 to time", "2024-05-01T10:00:00Z", dbtype.TimeType, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"string to duration", "1m30s", dbtype.DurationType, 90 * time.Second},
		{"time to string", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), dbtype.StringType, "2024-05-01T10:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convert(t, b, tt.value, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := convert(t, b, "2024-05-01 10:00:00", dbtype.TimeType)
	require.NoError(t, err)
	parsed := got.(time.Time)
	assert.Equal(t, 2024, parsed.Year())
	assert.Equal(t, 10, parsed.Hour())

	_, err = convert(t, b, "forty", dbtype.IntType)
	var numErr *strconv.NumError
	assert.True(t, errors.As(err, &numErr))
}

func TestConvertDynamic(t *testing.T) {
	b := NewBuilder(DefaultPolicy(), testEnums())

	got, err := b.Convert(int32(7), dbtype.Int64Type)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)

	got, err = b.Convert(nil, dbtype.StringType)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = b.Convert("delivered", reflect.TypeOf(Pending))
	require.NoError(t, err)
	assert.Equal(t, Delivered, got)

	fn, err := b.Build(dbtype.AnyType, dbtype.Int64Type)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		var cell interface{} = int32(i)
		out, err := fn(reflect.ValueOf(&cell).Elem())
		require.NoError(t, err)
		assert.Equal(t, int64(i), out.Interface())
	}

	_, err = b.Convert(struct{}{}, dbtype.Int64Type)
	assert.True(t, errors.Is(err, ErrNoConversion))
}
