// Package microorm is a micro ORM over database/sql. It maps entities, maps
// and dynamic objects to statements and rows through functions compiled once
// per shape by the compiler package.
package microorm

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"gorm.io/microorm/builder"
	"gorm.io/microorm/cache"
	"gorm.io/microorm/command"
	"gorm.io/microorm/compiler"
	"gorm.io/microorm/convert"
	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/dialect"
	"gorm.io/microorm/logger"
	"gorm.io/microorm/schema"
)

// DB a database handle with its dialect, caches and compiled functions.
// It is safe for concurrent use.
type DB struct {
	*Config
	conn       dialect.Queryer
	sqlDB      *sql.DB
	dialect    dialect.Dialect
	builder    builder.StatementBuilder
	compiler   *compiler.Compiler
	fields     *cache.DbFieldCache
	texts      *cache.CommandTextCache
	names      *dbtype.TypeNameResolver
	converters *atomic.Pointer[convert.Builder]
}

// typeNamer is implemented by dialects resolving their own column type names
type typeNamer interface {
	TypeNames() *dbtype.TypeNameResolver
}

// Open opens the database of dsn with the driver of d and pings it
func Open(d dialect.Dialect, dsn string, opts ...Option) (*DB, error) {
	sqlDB, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return New(sqlDB, d, opts...), nil
}

// New wraps an open *sql.DB
func New(sqlDB *sql.DB, d dialect.Dialect, opts ...Option) *DB {
	config := &Config{}
	for _, opt := range opts {
		opt(config)
	}
	config.setDefaults()

	db := &DB{
		Config:     config,
		conn:       sqlDB,
		sqlDB:      sqlDB,
		dialect:    d,
		texts:      cache.NewCommandTextCache(),
		fields:     cache.NewDbFieldCache(config.FieldStore, config.Logger),
		converters: &atomic.Pointer[convert.Builder]{},
	}
	setting := d.Setting()
	if sb, ok := d.(builder.StatementBuilder); ok {
		db.builder = sb
	} else {
		db.builder = builder.Base{Setting: setting}
	}
	if tn, ok := d.(typeNamer); ok {
		db.names = tn.TypeNames()
	}
	db.compiler = compiler.New(compiler.Options{
		Policy:             config.Conversion,
		Enums:              config.Enums,
		Handlers:           config.Handlers,
		Mapper:             config.TypeMapper,
		Constructors:       config.Constructors,
		Namer:              config.NamingStrategy,
		Schemas:            &sync.Map{},
		DirectionSupported: setting.DirectionSupported,
		Logger:             config.Logger,
		CacheSize:          config.FunctionCacheSize,
	})
	db.converters.Store(convert.NewBuilder(db.compiler.Policy(), config.Enums))
	return db
}

// WithTx returns a handle executing on tx, sharing caches and compiled functions
func (db *DB) WithTx(tx *sql.Tx) *DB {
	clone := *db
	clone.conn = tx
	return &clone
}

// Transaction runs fc in a transaction, committed when fc returns nil
func (db *DB) Transaction(ctx context.Context, fc func(tx *DB) error, opts ...*sql.TxOptions) (err error) {
	var txOpts *sql.TxOptions
	if len(opts) > 0 {
		txOpts = opts[0]
	}
	tx, err := db.sqlDB.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	panicked := true
	defer func() {
		if panicked || err != nil {
			tx.Rollback()
		}
	}()
	err = fc(db.WithTx(tx))
	panicked = false
	if err == nil {
		err = tx.Commit()
	}
	return err
}

// DB returns the underlying *sql.DB
func (db *DB) DB() *sql.DB { return db.sqlDB }

func (db *DB) Close() error { return db.sqlDB.Close() }

func (db *DB) Dialect() dialect.Dialect { return db.dialect }

func (db *DB) Compiler() *compiler.Compiler { return db.compiler }

// Builder renders the statements of the dialect
func (db *DB) Builder() builder.StatementBuilder { return db.builder }

// SetPolicy changes the conversion policy of later compilations; functions
// already compiled keep theirs until Flush
func (db *DB) SetPolicy(policy convert.Policy) {
	db.compiler.SetPolicy(policy)
	db.converters.Store(convert.NewBuilder(db.compiler.Policy(), db.Enums))
}

// Flush drops compiled functions and statement texts
func (db *DB) Flush() {
	db.compiler.Flush()
	db.texts.Flush()
}

// Fields returns the field descriptors of table, reading them once
func (db *DB) Fields(ctx context.Context, table string) (schema.DbFields, error) {
	return db.fields.Get(ctx, db.fieldsKey(table), func(ctx context.Context) (schema.DbFields, error) {
		fields, err := db.dialect.GetFields(ctx, db.conn, table)
		if err == nil && len(fields) == 0 {
			err = fmt.Errorf("%w: %s has no columns", ErrMissingTable, table)
		}
		return fields, err
	})
}

// ForgetFields drops the cached field descriptors of table
func (db *DB) ForgetFields(ctx context.Context, table string) error {
	return db.fields.Delete(ctx, db.fieldsKey(table))
}

func (db *DB) fieldsKey(table string) string {
	return db.dialect.Setting().Name + ":" + schema.NormalizeName(table)
}

// execution runs the statement given its arguments, returning the rows
// affected and the result handed to tracers
type execution func(args []interface{}) (int64, interface{}, error)

// run traces and logs one execution of text. executed is false when a tracer
// cancelled it without asking for an error.
func (db *DB) run(ctx context.Context, key, text string, cmd *command.Cmd, named bool, exec execution) (executed bool, err error) {
	args := cmd.Args(named)

	var trace *TraceLog
	if db.Tracer != nil {
		trace = &TraceLog{
			SessionID:  uuid.New(),
			Key:        key,
			Statement:  text,
			Parameters: cmd.Values(),
			StartTime:  db.NowFunc(),
		}
		db.Tracer.BeforeExecution(ctx, trace)
		if trace.cancelled {
			if trace.throw {
				return false, fmt.Errorf("%w: %s", ErrCancelledExecution, key)
			}
			db.Logger.Info(ctx, "%s cancelled by tracer", key)
			return false, nil
		}
	}

	begin := time.Now()
	rows, result, err := exec(args)
	err = translateErr(db.dialect.Setting().Name, err)
	if trace != nil {
		trace.Elapsed = time.Since(begin)
		trace.RowsAffected = rows
		trace.Result = result
		trace.Err = err
		db.Tracer.AfterExecution(ctx, trace)
	}
	db.Logger.Trace(ctx, begin, func() (string, int64) {
		return db.explain(ctx, text, args), rows
	}, err)
	return true, err
}

func (db *DB) explain(ctx context.Context, text string, args []interface{}) string {
	if filter, ok := db.Logger.(logger.ParamsFilter); ok {
		text, args = filter.ParamsFilter(ctx, text, args...)
	}
	return logger.ExplainSQL(text, `'`, args...)
}

// named reports whether commands bind parameters by name
func (db *DB) named() bool {
	return db.dialect.Setting().NamedParameters()
}
