// Package compiler builds the functions that move values between readers,
// entities and command parameters.
//
// Each function is compiled once per shape. Compiling resolves a binding plan
// (which column goes to which property, through which accessor, converter and
// handler) and composes it into closures, so a compiled function performs no
// metadata lookups when invoked. Compiled functions are cached by a
// cache.FunctionCache and are safe for concurrent use.
package compiler

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"gorm.io/microorm/cache"
	"gorm.io/microorm/convert"
	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/handler"
	"gorm.io/microorm/logger"
	"gorm.io/microorm/reader"
	"gorm.io/microorm/schema"
	"gorm.io/microorm/utils"
)

// Options configure a Compiler. Registries left nil use the process defaults.
type Options struct {
	Policy       convert.Policy
	Enums        *convert.Enums
	Handlers     *handler.Registry
	Mapper       *dbtype.Mapper
	Constructors *schema.Constructors
	Namer        schema.Namer
	// Schemas caches parsed entities, shared with the caller when set
	Schemas *sync.Map
	// DirectionSupported assigns parameter directions
	DirectionSupported bool
	Logger             logger.Interface
	// CacheSize bounds the compiled function cache, 0 for no limit
	CacheSize int
}

// Compiler compiles and caches marshalling functions
type Compiler struct {
	opts       Options
	converters atomic.Pointer[convert.Builder]
	functions  *cache.FunctionCache
}

// New returns a compiler for opts
func New(opts Options) *Compiler {
	if opts.Enums == nil {
		opts.Enums = convert.DefaultEnums
	}
	if opts.Handlers == nil {
		opts.Handlers = handler.Default
	}
	if opts.Mapper == nil {
		opts.Mapper = dbtype.DefaultMapper
	}
	if opts.Constructors == nil {
		opts.Constructors = schema.DefaultConstructors
	}
	if opts.Namer == nil {
		opts.Namer = schema.NamingStrategy{}
	}
	if opts.Schemas == nil {
		opts.Schemas = &sync.Map{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard
	}
	if opts.Policy.EnumDefaultDatabaseType == dbtype.Unknown {
		opts.Policy.EnumDefaultDatabaseType = dbtype.String
	}

	c := &Compiler{opts: opts, functions: cache.NewFunctionCache(opts.CacheSize, opts.Logger)}
	c.converters.Store(convert.NewBuilder(opts.Policy, opts.Enums))
	return c
}

// Policy returns the conversion policy new compilations use
func (c *Compiler) Policy() convert.Policy {
	return c.converters.Load().Policy
}

// SetPolicy changes the conversion policy of later compilations. Functions
// already compiled keep the policy they were compiled with until Flush.
func (c *Compiler) SetPolicy(policy convert.Policy) {
	if policy.EnumDefaultDatabaseType == dbtype.Unknown {
		policy.EnumDefaultDatabaseType = dbtype.String
	}
	c.converters.Store(convert.NewBuilder(policy, c.opts.Enums))
}

// Flush drops every compiled function
func (c *Compiler) Flush() {
	c.functions.Flush()
}

// Compilations counts the functions compiled so far
func (c *Compiler) Compilations() int64 {
	return c.functions.Compilations()
}

// Functions the compiled function cache
func (c *Compiler) Functions() *cache.FunctionCache {
	return c.functions
}

// Schema parses the entity type t
func (c *Compiler) Schema(t reflect.Type) (*schema.Schema, error) {
	return schema.Parse(t, c.opts.Schemas, c.opts.Namer)
}

// plan carries the registries of one compilation
type plan struct {
	*Compiler
	converters *convert.Builder
	policy     convert.Policy
}

func (c *Compiler) plan() *plan {
	b := c.converters.Load()
	return &plan{Compiler: c, converters: b, policy: b.Policy}
}

// readerField one resultset column and its field descriptor, if any
type readerField struct {
	Name    string
	Ordinal int
	Type    reflect.Type
	DbField *schema.DbField
}

// nullable columns are those without a descriptor or described as nullable
func (f readerField) nullable() bool {
	return f.DbField == nil || f.DbField.IsNullable
}

func readerFields(r reader.DataReader, fields schema.DbFields) []readerField {
	columns := make([]readerField, r.FieldCount())
	for i := range columns {
		t := r.GetFieldType(i)
		if t == nil {
			t = dbtype.AnyType
		}
		name := r.GetName(i)
		columns[i] = readerField{Name: name, Ordinal: i, Type: t, DbField: fields.Get(name)}
	}
	return columns
}

// readerSignature identifies the reader shape: names, types and nullability in order
func readerSignature(columns []readerField) string {
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name + ":" + col.Type.String()
		if col.nullable() {
			names[i] += "?"
		}
	}
	return cache.Signature(names...)
}

// entityType validates t as a struct or pointer to struct and returns the struct type
func entityType(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: <nil>", ErrUnsupportedEntity)
	}
	st := utils.Indirect(t)
	if st.Kind() != reflect.Struct || st == schema.TimeReflectType {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEntity, utils.TypeName(t))
	}
	return st, nil
}
