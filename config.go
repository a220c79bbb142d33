package microorm

import (
	"time"

	"gorm.io/microorm/cache"
	"gorm.io/microorm/convert"
	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/handler"
	"gorm.io/microorm/logger"
	"gorm.io/microorm/schema"
)

// DefaultBatchSize rows per statement of InsertAll
const DefaultBatchSize = 10

// Config microorm config
type Config struct {
	// Logger logs statements through Trace and compilations at Info
	Logger logger.Interface
	// NamingStrategy derives table and column names of entities
	NamingStrategy schema.Namer
	// Conversion the conversion policy compilations start with
	Conversion convert.Policy
	Enums      *convert.Enums
	Handlers   *handler.Registry
	TypeMapper *dbtype.Mapper
	// Constructors registers constructors entities are materialised with
	Constructors *schema.Constructors
	// FunctionCacheSize bounds the compiled functions, 0 for no limit
	FunctionCacheSize int
	// FieldStore keeps table field descriptors, in memory by default
	FieldStore cache.FieldStore
	Tracer     Tracer
	NowFunc    func() time.Time
	// DefaultBatchSize rows per statement of InsertAll without WithBatchSize
	DefaultBatchSize int
}

// Option use functional option for microorm Config.
type Option func(c *Config)

// WithLogger set logger.
func WithLogger(logger logger.Interface) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithNamingStrategy set schema namer.
func WithNamingStrategy(namer schema.Namer) Option {
	return func(c *Config) {
		c.NamingStrategy = namer
	}
}

// WithConversion set conversion policy.
func WithConversion(policy convert.Policy) Option {
	return func(c *Config) {
		c.Conversion = policy
	}
}

// WithEnums set enum registry.
func WithEnums(enums *convert.Enums) Option {
	return func(c *Config) {
		c.Enums = enums
	}
}

// WithHandlers set handler registry.
func WithHandlers(handlers *handler.Registry) Option {
	return func(c *Config) {
		c.Handlers = handlers
	}
}

// WithTypeMapper set type mapper.
func WithTypeMapper(mapper *dbtype.Mapper) Option {
	return func(c *Config) {
		c.TypeMapper = mapper
	}
}

// WithConstructors set constructor registry.
func WithConstructors(constructors *schema.Constructors) Option {
	return func(c *Config) {
		c.Constructors = constructors
	}
}

// WithFunctionCacheSize bound compiled functions.
func WithFunctionCacheSize(size int) Option {
	return func(c *Config) {
		c.FunctionCacheSize = size
	}
}

// WithFieldStore set field descriptor store, e.g. a cache.RedisStore shared by processes.
func WithFieldStore(store cache.FieldStore) Option {
	return func(c *Config) {
		c.FieldStore = store
	}
}

// WithTracer set tracer.
func WithTracer(tracer Tracer) Option {
	return func(c *Config) {
		c.Tracer = tracer
	}
}

// WithNowFunc set now func.
func WithNowFunc(fn func() time.Time) Option {
	return func(c *Config) {
		c.NowFunc = fn
	}
}

// WithDefaultBatchSize set InsertAll batch size.
func WithDefaultBatchSize(size int) Option {
	return func(c *Config) {
		c.DefaultBatchSize = size
	}
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = logger.Default
	}
	if c.NamingStrategy == nil {
		c.NamingStrategy = schema.NamingStrategy{}
	}
	if c.Conversion == (convert.Policy{}) {
		c.Conversion = convert.DefaultPolicy()
	}
	if c.Enums == nil {
		c.Enums = convert.DefaultEnums
	}
	if c.Handlers == nil {
		c.Handlers = handler.Default
	}
	if c.TypeMapper == nil {
		c.TypeMapper = dbtype.DefaultMapper
	}
	if c.Constructors == nil {
		c.Constructors = schema.DefaultConstructors
	}
	if c.FieldStore == nil {
		c.FieldStore = cache.NewMemoryStore(0)
	}
	if c.NowFunc == nil {
		c.NowFunc = func() time.Time { return time.Now().Local() }
	}
	if c.DefaultBatchSize <= 0 {
		c.DefaultBatchSize = DefaultBatchSize
	}
}
