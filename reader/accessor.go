package reader

import (
	"reflect"
	"strings"

	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/utils"
)

// Accessor reads one column of the current row as a reflect.Value
type Accessor struct {
	// Name of the DataReader method the accessor calls
	Name string
	Read func(r DataReader, i int) (reflect.Value, error)
}

var accessors = map[reflect.Type]Accessor{
	dbtype.BoolType: {"GetBool", func(r DataReader, i int) (reflect.Value, error) {
		v, err := r.GetBool(i)
		return reflect.ValueOf(v), err
	}},
	dbtype.Uint8Type: {"GetUint8", func(r DataReader, i int) (reflect.Value, error) {
		v, err := r.GetUint8(i)
		return reflect.ValueOf(v), err
	}},
	dbtype.Int16Type: {"GetInt16", func(r DataReader, i int) (reflect.Value, error) {
		v, err := r.GetInt16(i)
		return reflect.ValueOf(v), err
	}},
	dbtype.Int32Type: {"GetInt32", func(r DataReader, i int) (reflect.Value, error) {
		v, err := r.GetInt32(i)
		return reflect.ValueOf(v), err
	}},
	dbtype.Int64Type: {"GetInt64", func(r DataReader, i int) (reflect.Value, error) {
		v, err := r.GetInt64(i)
		return reflect.ValueOf(v), err
	}},
	dbtype.IntType: {"GetInt", func(r DataReader, i int) (reflect.Value, error) {
		v, err := r.GetInt(i)
		return reflect.ValueOf(v), err
	}},
	dbtype.Float32Type: {"GetFloat32", func(r DataReader, i int) (reflect.Value, error) {
		v, err := r.GetFloat32(i)
		return reflect.ValueOf(v), err
	}},
	dbtype.Float64Type: {"GetFloat64", func(r DataReader, i int) (reflect.Value, error) {
		v, err := r.GetFloat64(i)
		return reflect.ValueOf(v), err
	}},
	dbtype.StringType: {"GetString", func(r DataReader, i int) (reflect.Value, error) {
		v, err := r.GetString(i)
		return reflect.ValueOf(v), err
	}},
	dbtype.TimeType: {"GetTime", func(r DataReader, i int) (reflect.Value, error) {
		v, err := r.GetTime(i)
		return reflect.ValueOf(v), err
	}},
	dbtype.BytesType: {"GetBytes", func(r DataReader, i int) (reflect.Value, error) {
		v, err := r.GetBytes(i)
		return reflect.ValueOf(v), err
	}},
	dbtype.UUIDType: {"GetUUID", func(r DataReader, i int) (reflect.Value, error) {
		v, err := r.GetUUID(i)
		return reflect.ValueOf(v), err
	}},
	dbtype.AnyType: ValueAccessor(),
}

// AccessorOf returns the specific accessor reading columns of type t
func AccessorOf(t reflect.Type) (Accessor, bool) {
	a, ok := accessors[t]
	return a, ok
}

// GenericAccessor returns the typed GetFieldValue accessor for t; there is none
// for time.Duration and float32
func GenericAccessor(t reflect.Type) (Accessor, bool) {
	if t == nil || t == dbtype.DurationType || t == dbtype.Float32Type {
		return Accessor{}, false
	}
	return Accessor{Name: "GetFieldValue", Read: func(r DataReader, i int) (reflect.Value, error) {
		return r.GetFieldValue(i, t)
	}}, true
}

// ValueAccessor returns the GetValue accessor; values come back typed as interface{}
func ValueAccessor() Accessor {
	return Accessor{Name: "GetValue", Read: func(r DataReader, i int) (reflect.Value, error) {
		v, err := r.GetValue(i)
		out := reflect.New(dbtype.AnyType).Elem()
		if err == nil && v != nil {
			out.Set(reflect.ValueOf(v))
		}
		return out, err
	}}
}

// AccessorName the conventional accessor method name for t, e.g. GetFloat32
func AccessorName(t reflect.Type) string {
	name := "Value"
	switch {
	case t == nil:
	case t == dbtype.DurationType:
		name = "Duration"
	case t.Name() != "":
		name = t.Name()
	default:
		name = utils.TypeName(t)
	}
	return "Get" + strings.ToUpper(name[:1]) + name[1:]
}
