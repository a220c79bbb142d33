// Package reader defines the row source read by compiled functions and its
// implementations over database/sql rows and in-memory values.
package reader

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"

	"gorm.io/microorm/dbtype"
)

var (
	// ErrNoRow is returned when values are read before the first Read
	ErrNoRow = errors.New("reader is not positioned on a row")
	// ErrOrdinal is returned for a column ordinal out of range
	ErrOrdinal = errors.New("column ordinal out of range")
)

// DataReader a forward-only row source positioned on the current row
type DataReader interface {
	FieldCount() int
	GetName(i int) string
	// GetFieldType returns the Go type values of column i are read as
	GetFieldType(i int) reflect.Type
	IsDBNull(i int) bool
	GetValue(i int) (interface{}, error)

	GetBool(i int) (bool, error)
	GetUint8(i int) (uint8, error)
	GetInt16(i int) (int16, error)
	GetInt32(i int) (int32, error)
	GetInt64(i int) (int64, error)
	GetInt(i int) (int, error)
	GetFloat32(i int) (float32, error)
	GetFloat64(i int) (float64, error)
	GetString(i int) (string, error)
	GetTime(i int) (time.Time, error)
	GetBytes(i int) ([]byte, error)
	GetUUID(i int) (uuid.UUID, error)

	// GetFieldValue reads column i as a value of type t
	GetFieldValue(i int, t reflect.Type) (reflect.Value, error)
}

// Rows a DataReader advanced by Read
type Rows interface {
	DataReader
	// Read moves to the next row, false once rows are exhausted
	Read() (bool, error)
}

// Column describes one resultset column
type Column struct {
	Name         string
	Type         reflect.Type
	DatabaseType string
}

// record implements DataReader over the values of the current row
type record struct {
	columns []Column
	values  []interface{}
}

func (r *record) FieldCount() int { return len(r.columns) }

func (r *record) GetName(i int) string {
	if i < 0 || i >= len(r.columns) {
		return ""
	}
	return r.columns[i].Name
}

func (r *record) GetFieldType(i int) reflect.Type {
	if i < 0 || i >= len(r.columns) || r.columns[i].Type == nil {
		return dbtype.AnyType
	}
	return r.columns[i].Type
}

func (r *record) IsDBNull(i int) bool {
	v, err := r.value(i)
	return err == nil && isNull(v)
}

func (r *record) GetValue(i int) (interface{}, error) {
	v, err := r.value(i)
	if err != nil || isNull(v) {
		return nil, err
	}
	return v, nil
}

func (r *record) value(i int) (interface{}, error) {
	if r.values == nil {
		return nil, ErrNoRow
	}
	if i < 0 || i >= len(r.values) {
		return nil, fmt.Errorf("%w: %d of %d", ErrOrdinal, i, len(r.values))
	}
	return r.values[i], nil
}

func isNull(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map:
		return rv.IsNil()
	}
	return false
}

func (r *record) GetBool(i int) (bool, error) {
	v, err := r.value(i)
	if err != nil {
		return false, err
	}
	return asBool(v)
}

func (r *record) GetUint8(i int) (uint8, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}
	n, err := asUint64(v)
	if err == nil && n > math.MaxUint8 {
		return 0, rangeError(v, "uint8")
	}
	return uint8(n), err
}

func (r *record) GetInt16(i int) (int16, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}
	n, err := asInt64(v)
	if err == nil && (n < math.MinInt16 || n > math.MaxInt16) {
		return 0, rangeError(v, "int16")
	}
	return int16(n), err
}

func (r *record) GetInt32(i int) (int32, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}
	n, err := asInt64(v)
	if err == nil && (n < math.MinInt32 || n > math.MaxInt32) {
		return 0, rangeError(v, "int32")
	}
	return int32(n), err
}

func (r *record) GetInt64(i int) (int64, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}
	return asInt64(v)
}

func (r *record) GetInt(i int) (int, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}
	n, err := asInt64(v)
	return int(n), err
}

func (r *record) GetFloat32(i int) (float32, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}
	f, err := asFloat64(v)
	if err == nil && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
		return 0, rangeError(v, "float32")
	}
	return float32(f), err
}

func (r *record) GetFloat64(i int) (float64, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}
	return asFloat64(v)
}

func (r *record) GetString(i int) (string, error) {
	v, err := r.value(i)
	if err != nil {
		return "", err
	}
	return asString(v)
}

func (r *record) GetTime(i int) (time.Time, error) {
	v, err := r.value(i)
	if err != nil {
		return time.Time{}, err
	}
	return asTime(v)
}

func (r *record) GetBytes(i int) ([]byte, error) {
	v, err := r.value(i)
	if err != nil {
		return nil, err
	}
	return asBytes(v)
}

func (r *record) GetUUID(i int) (uuid.UUID, error) {
	v, err := r.value(i)
	if err != nil {
		return uuid.Nil, err
	}
	return asUUID(v)
}

func (r *record) GetFieldValue(i int, t reflect.Type) (reflect.Value, error) {
	v, err := r.value(i)
	if err != nil {
		return reflect.Value{}, err
	}
	return Cast(v, t)
}
