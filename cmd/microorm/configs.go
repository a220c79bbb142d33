package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/redis/go-redis/v9"
	"github.com/scott-cotton/cli"

	"gorm.io/microorm"
	"gorm.io/microorm/cache"
	"gorm.io/microorm/convert"
	"gorm.io/microorm/dialect"
	"gorm.io/microorm/dialects/mysql"
	"gorm.io/microorm/dialects/postgres"
	"gorm.io/microorm/dialects/sqlite"
	"gorm.io/microorm/logger"
)

type MainConfig struct {
	ConfigFile string `cli:"name=config desc='configuration file (yaml)'"`
	Dialect    string `cli:"name=dialect desc='sqlite, mysql or postgres, overrides the file'"`
	DSN        string `cli:"name=dsn desc='data source name, overrides the file'"`
	LogLevel   string `cli:"name=log desc='silent, error, warn or info'"`

	Main *cli.Command
}

type FieldsConfig struct {
	*MainConfig

	Refresh bool `cli:"name=refresh desc='drop cached descriptors before reading'"`
	Fields  *cli.Command
}

type SQLConfig struct {
	*MainConfig

	Op         string `cli:"name=op desc='insert, update, merge, query, delete or count (default all)'"`
	Qualifiers string `cli:"name=q desc='comma separated qualifier columns (default primary key)'"`
	Batch      int    `cli:"name=batch desc='rows of the batch insert'"`
	SQL        *cli.Command
}

// FileConfig the yaml configuration file
type FileConfig struct {
	Dialect    string      `yaml:"dialect"`
	DSN        string      `yaml:"dsn"`
	LogLevel   string      `yaml:"logLevel"`
	Conversion string      `yaml:"conversion"`
	CacheSize  int         `yaml:"cacheSize"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig shares field descriptors through redis when Addr is set
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`
}

func loadFile(path string) (*FileConfig, error) {
	fc := &FileConfig{}
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fc, nil
}

// resolve merges the command line over the file
func (cfg *MainConfig) resolve() (*FileConfig, error) {
	fc, err := loadFile(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	if cfg.Dialect != "" {
		fc.Dialect = cfg.Dialect
	}
	if cfg.DSN != "" {
		fc.DSN = cfg.DSN
	}
	if cfg.LogLevel != "" {
		fc.LogLevel = cfg.LogLevel
	}
	if fc.DSN == "" {
		return nil, fmt.Errorf("%w: no dsn, use -dsn or a config file", cli.ErrUsage)
	}
	return fc, nil
}

func dialectByName(name string) (dialect.Dialect, error) {
	switch strings.ToLower(name) {
	case "", "sqlite", "sqlite3":
		return sqlite.New(), nil
	case "mysql":
		return mysql.New(), nil
	case "postgres", "postgresql":
		return postgres.New(), nil
	}
	return nil, fmt.Errorf("%w: unknown dialect %q", cli.ErrUsage, name)
}

// options turns the file into microorm options
func (fc *FileConfig) options() ([]microorm.Option, error) {
	level := logger.LevelFromEnv(logger.Warn)
	if fc.LogLevel != "" {
		var err error
		if level, err = logger.ParseLevel(fc.LogLevel); err != nil {
			return nil, fmt.Errorf("%w: %v", cli.ErrUsage, err)
		}
	}
	conversion, err := convert.ParseConversionType(fc.Conversion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cli.ErrUsage, err)
	}
	policy := convert.DefaultPolicy()
	policy.ConversionType = conversion

	opts := []microorm.Option{
		microorm.WithLogger(logger.Default.LogMode(level)),
		microorm.WithConversion(policy),
	}
	if fc.CacheSize > 0 {
		opts = append(opts, microorm.WithFunctionCacheSize(fc.CacheSize))
	}
	if fc.Redis.Addr != "" {
		var ttl time.Duration
		if fc.Redis.TTL != "" {
			if ttl, err = time.ParseDuration(fc.Redis.TTL); err != nil {
				return nil, fmt.Errorf("%w: redis ttl: %v", cli.ErrUsage, err)
			}
		}
		store := cache.NewRedisStoreFromOptions(&redis.Options{
			Addr:     fc.Redis.Addr,
			Password: fc.Redis.Password,
			DB:       fc.Redis.DB,
		}, ttl)
		opts = append(opts, microorm.WithFieldStore(store))
	}
	return opts, nil
}

func (cfg *MainConfig) open() (*microorm.DB, error) {
	fc, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	d, err := dialectByName(fc.Dialect)
	if err != nil {
		return nil, err
	}
	opts, err := fc.options()
	if err != nil {
		return nil, err
	}
	return microorm.Open(d, fc.DSN, opts...)
}
