package convert

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/now"

	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/utils"
)

// ErrNoConversion is returned when no converter exists between two types
var ErrNoConversion = errors.New("no conversion available")

// Func converts one value; the result always has the target type
type Func func(reflect.Value) (reflect.Value, error)

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// Builder builds converters under a policy
type Builder struct {
	Policy Policy
	Enums  *Enums

	runtime sync.Map // map[[2]reflect.Type]Func, used by dynamic sources
}

// NewBuilder returns a builder for policy; a nil registry means DefaultEnums
func NewBuilder(policy Policy, enums *Enums) *Builder {
	if enums == nil {
		enums = DefaultEnums
	}
	return &Builder{Policy: policy, Enums: enums}
}

func identity(v reflect.Value) (reflect.Value, error) { return v, nil }

// IsIdentity reports whether values of from can be stored into to unchanged
func IsIdentity(from, to reflect.Type) bool {
	return from == to || (from != nil && from.AssignableTo(to) && to.Kind() != reflect.Interface)
}

// Build returns a converter from values of type from to values of type to.
// The decision order is: identity, GUID, enum, time of day, automatic coercion,
// Go conversion, sql.Scanner; anything else fails with ErrNoConversion.
func (b *Builder) Build(from, to reflect.Type) (Func, error) {
	if from == nil || to == nil {
		return nil, fmt.Errorf("%w: from %v to %v", ErrNoConversion, utils.TypeName(from), utils.TypeName(to))
	}

	if from == to || from.AssignableTo(to) {
		return identity, nil
	}

	if from.Kind() == reflect.Interface {
		return b.dynamic(to), nil
	}

	if fn := guidConverter(from, to); fn != nil {
		return fn, nil
	}

	if fn, err := b.enumConverter(from, to); fn != nil || err != nil {
		return fn, err
	}

	if from == dbtype.TimeType && to == dbtype.DurationType {
		return timeOfDay, nil
	}

	if b.Policy.ConversionType == Automatic {
		if fn := automaticConverter(from, to); fn != nil {
			return fn, nil
		}
	}

	if from.ConvertibleTo(to) && !numericStringPair(from, to) {
		return func(v reflect.Value) (reflect.Value, error) {
			return v.Convert(to), nil
		}, nil
	}

	if reflect.PtrTo(to).Implements(scannerType) {
		return func(v reflect.Value) (reflect.Value, error) {
			ptr := reflect.New(to)
			if err := ptr.Interface().(sql.Scanner).Scan(v.Interface()); err != nil {
				return reflect.Value{}, err
			}
			return ptr.Elem(), nil
		}, nil
	}

	return nil, fmt.Errorf("%w: from %v to %v", ErrNoConversion, utils.TypeName(from), utils.TypeName(to))
}

// dynamic converts interface values by their runtime type, memoising one converter per type
func (b *Builder) dynamic(to reflect.Type) Func {
	return func(v reflect.Value) (reflect.Value, error) {
		if v.Kind() == reflect.Interface {
			v = v.Elem()
		}
		if !v.IsValid() {
			return reflect.Zero(to), nil
		}
		from := v.Type()
		key := [2]reflect.Type{from, to}
		if fn, ok := b.runtime.Load(key); ok {
			return fn.(Func)(v)
		}
		fn, err := b.Build(from, to)
		if err != nil {
			return reflect.Value{}, err
		}
		b.runtime.Store(key, fn)
		return fn(v)
	}
}

// Convert converts a single value to type to, for callers without a compiled plan
func (b *Builder) Convert(value interface{}, to reflect.Type) (interface{}, error) {
	if value == nil {
		return reflect.Zero(to).Interface(), nil
	}
	out, err := b.dynamic(to)(reflect.ValueOf(value))
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func guidConverter(from, to reflect.Type) Func {
	switch {
	case to == dbtype.UUIDType && from.Kind() == reflect.String:
		return func(v reflect.Value) (reflect.Value, error) {
			u, err := uuid.Parse(v.String())
			return reflect.ValueOf(u), err
		}
	case to == dbtype.UUIDType && isBytes(from):
		return func(v reflect.Value) (reflect.Value, error) {
			data := v.Bytes()
			var (
				u   uuid.UUID
				err error
			)
			if len(data) == 16 {
				u, err = uuid.FromBytes(data)
			} else {
				u, err = uuid.ParseBytes(data)
			}
			return reflect.ValueOf(u), err
		}
	case from == dbtype.UUIDType && to.Kind() == reflect.String:
		return func(v reflect.Value) (reflect.Value, error) {
			return reflect.ValueOf(v.Interface().(uuid.UUID).String()).Convert(to), nil
		}
	case from == dbtype.UUIDType && isBytes(to):
		return func(v reflect.Value) (reflect.Value, error) {
			u := v.Interface().(uuid.UUID)
			return reflect.ValueOf(append([]byte(nil), u[:]...)).Convert(to), nil
		}
	}
	return nil
}

func (b *Builder) enumConverter(from, to reflect.Type) (Func, error) {
	if enum := b.Enums.Lookup(to); enum != nil {
		switch {
		case from.Kind() == reflect.String:
			return func(v reflect.Value) (reflect.Value, error) {
				return enum.Parse(v.String())
			}, nil
		case isBytes(from):
			return func(v reflect.Value) (reflect.Value, error) {
				return enum.Parse(string(v.Bytes()))
			}, nil
		case isNumeric(from.Kind()) || from.Kind() == reflect.Bool:
			return enum.FromUnderlying, nil
		}
		if from.ConvertibleTo(to) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: from %v to enum %v", ErrNoConversion, utils.TypeName(from), utils.TypeName(to))
	}

	if enum := b.Enums.Lookup(from); enum != nil {
		switch {
		case to.Kind() == reflect.String:
			return func(v reflect.Value) (reflect.Value, error) {
				return reflect.ValueOf(enum.Name(v)).Convert(to), nil
			}, nil
		case isNumeric(to.Kind()):
			return func(v reflect.Value) (reflect.Value, error) {
				return v.Convert(to), nil
			}, nil
		}
	}
	return nil, nil
}

// timeOfDay reads a full date/time value into a duration since midnight
func timeOfDay(v reflect.Value) (reflect.Value, error) {
	t := v.Interface().(time.Time)
	d := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
	return reflect.ValueOf(d), nil
}

func isNumeric(k reflect.Kind) bool {
	return isInteger(k) || k == reflect.Float32 || k == reflect.Float64
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// numericStringPair guards against int -> string producing a rune
func numericStringPair(from, to reflect.Type) bool {
	return (isNumeric(from.Kind()) && to.Kind() == reflect.String) ||
		(from.Kind() == reflect.String && isNumeric(to.Kind()))
}

// automaticConverter coerces between text, numbers, booleans and times
func automaticConverter(from, to reflect.Type) Func {
	fk, tk := from.Kind(), to.Kind()
	textual := fk == reflect.String || isBytes(from)
	text := func(v reflect.Value) string {
		if v.Kind() == reflect.String {
			return v.String()
		}
		return string(v.Bytes())
	}

	switch {
	case textual && tk == reflect.Bool:
		return func(v reflect.Value) (reflect.Value, error) {
			b, err := strconv.ParseBool(text(v))
			return reflect.ValueOf(b).Convert(to), err
		}
	case textual && isInteger(tk) && tk >= reflect.Uint && tk <= reflect.Uint64:
		return func(v reflect.Value) (reflect.Value, error) {
			n, err := strconv.ParseUint(text(v), 10, to.Bits())
			return reflect.ValueOf(n).Convert(to), err
		}
	case textual && isInteger(tk):
		return func(v reflect.Value) (reflect.Value, error) {
			n, err := strconv.ParseInt(text(v), 10, to.Bits())
			return reflect.ValueOf(n).Convert(to), err
		}
	case textual && (tk == reflect.Float32 || tk == reflect.Float64):
		return func(v reflect.Value) (reflect.Value, error) {
			f, err := strconv.ParseFloat(text(v), to.Bits())
			return reflect.ValueOf(f).Convert(to), err
		}
	case textual && to == dbtype.TimeType:
		return func(v reflect.Value) (reflect.Value, error) {
			s := text(v)
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return reflect.ValueOf(t), nil
			}
			t, err := now.New(time.Now().UTC()).Parse(s)
			return reflect.ValueOf(t), err
		}
	case textual && to == dbtype.DurationType:
		return func(v reflect.Value) (reflect.Value, error) {
			d, err := time.ParseDuration(text(v))
			return reflect.ValueOf(d), err
		}
	case fk == reflect.Bool && tk == reflect.String:
		return func(v reflect.Value) (reflect.Value, error) {
			return reflect.ValueOf(strconv.FormatBool(v.Bool())).Convert(to), nil
		}
	case isInteger(fk) && tk == reflect.String:
		return func(v reflect.Value) (reflect.Value, error) {
			if fk >= reflect.Uint && fk <= reflect.Uint64 {
				return reflect.ValueOf(strconv.FormatUint(v.Uint(), 10)).Convert(to), nil
			}
			return reflect.ValueOf(strconv.FormatInt(v.Int(), 10)).Convert(to), nil
		}
	case (fk == reflect.Float32 || fk == reflect.Float64) && tk == reflect.String:
		return func(v reflect.Value) (reflect.Value, error) {
			return reflect.ValueOf(strconv.FormatFloat(v.Float(), 'f', -1, from.Bits())).Convert(to), nil
		}
	case from == dbtype.TimeType && tk == reflect.String:
		return func(v reflect.Value) (reflect.Value, error) {
			return reflect.ValueOf(v.Interface().(time.Time).Format(time.RFC3339Nano)).Convert(to), nil
		}
	case fk == reflect.Bool && isNumeric(tk):
		return func(v reflect.Value) (reflect.Value, error) {
			if v.Bool() {
				return reflect.ValueOf(1).Convert(to), nil
			}
			return reflect.Zero(to), nil
		}
	case isNumeric(fk) && tk == reflect.Bool:
		return func(v reflect.Value) (reflect.Value, error) {
			return reflect.ValueOf(!v.IsZero()).Convert(to), nil
		}
	}
	return nil
}
