package reader

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gorm.io/microorm/dbtype"
)

// ErrInvalidCast is returned when a column value cannot be read as the requested type
var ErrInvalidCast = errors.New("invalid cast")

// timeFormats accepted for textual date/time columns, sqlite stores these
var timeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

func castError(v interface{}, to string) error {
	return fmt.Errorf("%w: %T to %s", ErrInvalidCast, v, to)
}

func rangeError(v interface{}, to string) error {
	return fmt.Errorf("%w: %v overflows %s", ErrInvalidCast, v, to)
}

func asInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64)
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return int64(rv.Float()), nil
	}
	return 0, castError(v, "int64")
}

func asUint64(v interface{}) (uint64, error) {
	switch x := v.(type) {
	case []byte:
		return strconv.ParseUint(strings.TrimSpace(string(x)), 10, 64)
	case string:
		return strconv.ParseUint(strings.TrimSpace(x), 10, 64)
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return uint64(rv.Float()), nil
	}
	return 0, castError(v, "uint64")
}

func asFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return 0, castError(v, "float64")
}

func asBool(v interface{}) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case []byte:
		return strconv.ParseBool(strings.TrimSpace(string(x)))
	case string:
		return strconv.ParseBool(strings.TrimSpace(x))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return !rv.IsZero(), nil
	}
	return false, castError(v, "bool")
}

func asString(v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, rv.Type().Bits()), nil
	}
	return "", castError(v, "string")
}

func asBytes(v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	case uuid.UUID:
		return append([]byte(nil), x[:]...), nil
	}
	return nil, castError(v, "[]byte")
}

func asTime(v interface{}) (time.Time, error) {
	var text string
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case []byte:
		text = string(x)
	case string:
		text = x
	case int64:
		return time.Unix(x, 0).UTC(), nil
	default:
		return time.Time{}, castError(v, "time.Time")
	}

	text = strings.TrimSuffix(strings.TrimSpace(text), "Z")
	for _, layout := range timeFormats {
		if t, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse %q as time", ErrInvalidCast, text)
}

func asUUID(v interface{}) (uuid.UUID, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, nil
	case string:
		return uuid.Parse(x)
	case []byte:
		if len(x) == 16 {
			return uuid.FromBytes(x)
		}
		return uuid.ParseBytes(x)
	}
	return uuid.Nil, castError(v, "uuid.UUID")
}

// Cast reads v as a value of type t; nil reads as the zero value
func Cast(v interface{}, t reflect.Type) (reflect.Value, error) {
	if isNull(v) {
		return reflect.Zero(t), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type() == t || (t.Kind() != reflect.Interface && rv.Type().AssignableTo(t)) {
		return rv, nil
	}
	if t.Kind() == reflect.Interface && rv.Type().Implements(t) {
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil
	}

	switch t {
	case dbtype.UUIDType:
		u, err := asUUID(v)
		return reflect.ValueOf(u), err
	case dbtype.TimeType:
		tm, err := asTime(v)
		return reflect.ValueOf(tm), err
	}

	var (
		out interface{}
		err error
	)
	switch t.Kind() {
	case reflect.Bool:
		out, err = asBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out, err = asInt64(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out, err = asUint64(v)
	case reflect.Float32, reflect.Float64:
		out, err = asFloat64(v)
	case reflect.String:
		out, err = asString(v)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			out, err = asBytes(v)
		}
	}
	if err != nil {
		return reflect.Value{}, err
	}
	if out != nil {
		return reflect.ValueOf(out).Convert(t), nil
	}

	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, castError(v, t.String())
}
