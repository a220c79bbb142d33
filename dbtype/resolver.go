package dbtype

import (
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// frequently used reflect types
var (
	BoolType     = reflect.TypeOf(false)
	Int8Type     = reflect.TypeOf(int8(0))
	Int16Type    = reflect.TypeOf(int16(0))
	Int32Type    = reflect.TypeOf(int32(0))
	Int64Type    = reflect.TypeOf(int64(0))
	IntType      = reflect.TypeOf(0)
	Uint8Type    = reflect.TypeOf(uint8(0))
	Uint16Type   = reflect.TypeOf(uint16(0))
	Uint32Type   = reflect.TypeOf(uint32(0))
	Uint64Type   = reflect.TypeOf(uint64(0))
	UintType     = reflect.TypeOf(uint(0))
	Float32Type  = reflect.TypeOf(float32(0))
	Float64Type  = reflect.TypeOf(float64(0))
	StringType   = reflect.TypeOf("")
	BytesType    = reflect.TypeOf([]byte(nil))
	TimeType     = reflect.TypeOf(time.Time{})
	DurationType = reflect.TypeOf(time.Duration(0))
	UUIDType     = reflect.TypeOf(uuid.UUID{})
	AnyType      = reflect.TypeOf((*interface{})(nil)).Elem()
)

var clientToDbType = map[reflect.Type]DbType{
	BoolType:     Boolean,
	Int8Type:     SByte,
	Int16Type:    Int16,
	Int32Type:    Int32,
	Int64Type:    Int64,
	IntType:      Int64,
	Uint8Type:    Byte,
	Uint16Type:   UInt16,
	Uint32Type:   UInt32,
	Uint64Type:   UInt64,
	UintType:     UInt64,
	Float32Type:  Single,
	Float64Type:  Double,
	StringType:   String,
	BytesType:    Binary,
	TimeType:     DateTime,
	DurationType: Time,
	UUIDType:     Guid,
	AnyType:      Object,
}

// KindType returns the predeclared type of kind k, nil for composite kinds
func KindType(k reflect.Kind) reflect.Type {
	switch k {
	case reflect.Bool:
		return BoolType
	case reflect.Int:
		return IntType
	case reflect.Int8:
		return Int8Type
	case reflect.Int16:
		return Int16Type
	case reflect.Int32:
		return Int32Type
	case reflect.Int64:
		return Int64Type
	case reflect.Uint:
		return UintType
	case reflect.Uint8:
		return Uint8Type
	case reflect.Uint16:
		return Uint16Type
	case reflect.Uint32:
		return Uint32Type
	case reflect.Uint64:
		return Uint64Type
	case reflect.Float32:
		return Float32Type
	case reflect.Float64:
		return Float64Type
	case reflect.String:
		return StringType
	}
	return nil
}

// ClientTypeToDbType resolves the DbType of a Go type. Pointers are
// dereferenced and named scalar types fall back to their kind.
func ClientTypeToDbType(t reflect.Type) (DbType, bool) {
	if t == nil {
		return Unknown, false
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if d, ok := clientToDbType[t]; ok {
		return d, true
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return Binary, true
	}
	if t.ConvertibleTo(TimeType) && t.Kind() == reflect.Struct {
		return DateTime, true
	}
	if kt := KindType(t.Kind()); kt != nil && kt != t {
		return ClientTypeToDbType(kt)
	}
	return Unknown, false
}

// DbTypeToClientType returns the Go type used to carry values of d
func DbTypeToClientType(d DbType) reflect.Type {
	switch d {
	case AnsiString, String, AnsiStringFixedLength, StringFixedLength, Xml:
		return StringType
	case Binary:
		return BytesType
	case Byte:
		return Uint8Type
	case SByte:
		return Int8Type
	case Boolean:
		return BoolType
	case Currency, Decimal, VarNumeric, Double:
		return Float64Type
	case Single:
		return Float32Type
	case Date, DateTime, DateTime2, DateTimeOffset:
		return TimeType
	case Time:
		return DurationType
	case Guid:
		return UUIDType
	case Int16:
		return Int16Type
	case Int32:
		return Int32Type
	case Int64:
		return Int64Type
	case UInt16:
		return Uint16Type
	case UInt32:
		return Uint32Type
	case UInt64:
		return Uint64Type
	}
	return AnyType
}

// DefaultValue returns the zero value of t, nil for a nil type
func DefaultValue(t reflect.Type) interface{} {
	if t == nil {
		return nil
	}
	return reflect.Zero(t).Interface()
}

// TypeNameResolver resolves provider column type names such as varchar(20) to Go types
type TypeNameResolver struct {
	names map[string]reflect.Type
}

var baseTypeNames = map[string]reflect.Type{
	"bigint": Int64Type, "int8": Int64Type, "bigserial": Int64Type, "serial8": Int64Type,
	"int": Int32Type, "integer": Int32Type, "int4": Int32Type, "mediumint": Int32Type, "serial": Int32Type, "serial4": Int32Type,
	"smallint": Int16Type, "int2": Int16Type, "smallserial": Int16Type,
	"tinyint": Uint8Type,
	"bit": BoolType, "bool": BoolType, "boolean": BoolType,
	"real": Float32Type, "float4": Float32Type,
	"float": Float64Type, "float8": Float64Type, "double": Float64Type, "double precision": Float64Type,
	"decimal": Float64Type, "numeric": Float64Type, "money": Float64Type, "smallmoney": Float64Type,
	"char": StringType, "varchar": StringType, "nchar": StringType, "nvarchar": StringType, "text": StringType,
	"ntext": StringType, "tinytext": StringType, "mediumtext": StringType, "longtext": StringType, "clob": StringType,
	"character": StringType, "character varying": StringType, "citext": StringType, "json": StringType,
	"jsonb": StringType, "xml": StringType, "enum": StringType, "set": StringType,
	"binary": BytesType, "varbinary": BytesType, "blob": BytesType, "tinyblob": BytesType, "mediumblob": BytesType,
	"longblob": BytesType, "bytea": BytesType, "image": BytesType,
	"date": TimeType, "datetime": TimeType, "datetime2": TimeType, "smalldatetime": TimeType, "timestamp": TimeType,
	"timestamp without time zone": TimeType, "timestamp with time zone": TimeType, "timestamptz": TimeType,
	"datetimeoffset": TimeType,
	"time": DurationType, "time without time zone": DurationType, "interval": DurationType,
	"uuid": UUIDType, "uniqueidentifier": UUIDType,
}

// NewTypeNameResolver returns a resolver over the base table extended by overrides
func NewTypeNameResolver(overrides map[string]reflect.Type) *TypeNameResolver {
	r := &TypeNameResolver{names: make(map[string]reflect.Type, len(baseTypeNames)+len(overrides))}
	for k, v := range baseTypeNames {
		r.names[k] = v
	}
	for k, v := range overrides {
		r.names[strings.ToLower(k)] = v
	}
	return r
}

// Resolve returns the Go type for name. The full lower-cased name is tried first,
// then the name stripped of its length arguments and modifiers; unknown names
// resolve to interface{}.
func (r *TypeNameResolver) Resolve(name string) (reflect.Type, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if t, ok := r.names[name]; ok {
		return t, true
	}

	base := name
	if idx := strings.IndexByte(base, '('); idx >= 0 {
		rest := ""
		if end := strings.IndexByte(base[idx:], ')'); end >= 0 {
			rest = base[idx+end+1:]
		}
		base = strings.TrimSpace(base[:idx] + rest)
	}
	for _, modifier := range []string{" unsigned", " zerofill", " identity"} {
		base = strings.ReplaceAll(base, modifier, "")
	}
	base = strings.TrimSpace(base)

	if t, ok := r.names[base]; ok {
		return t, true
	}
	return AnyType, false
}
