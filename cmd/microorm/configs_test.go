package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/scott-cotton/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/microorm/dialects/mysql"
	"gorm.io/microorm/dialects/postgres"
	"gorm.io/microorm/dialects/sqlite"
)

const sampleConfig = `dialect: postgres
dsn: postgres://localhost/shop
logLevel: info
conversion: automatic
cacheSize: 200
redis:
  addr: localhost:6379
  db: 2
  ttl: 10m
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "microorm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	fc, err := loadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", fc.Dialect)
	assert.Equal(t, "postgres://localhost/shop", fc.DSN)
	assert.Equal(t, "info", fc.LogLevel)
	assert.Equal(t, "automatic", fc.Conversion)
	assert.Equal(t, 200, fc.CacheSize)
	assert.Equal(t, "localhost:6379", fc.Redis.Addr)
	assert.Equal(t, 2, fc.Redis.DB)
	assert.Equal(t, "10m", fc.Redis.TTL)

	opts, err := fc.options()
	require.NoError(t, err)
	assert.Len(t, opts, 4)

	_, err = loadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "microorm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg := &MainConfig{ConfigFile: path, Dialect: "mysql", LogLevel: "silent"}
	fc, err := cfg.resolve()
	require.NoError(t, err)
	assert.Equal(t, "mysql", fc.Dialect)
	assert.Equal(t, "silent", fc.LogLevel)
	assert.Equal(t, "postgres://localhost/shop", fc.DSN)

	_, err = (&MainConfig{}).resolve()
	assert.ErrorIs(t, err, cli.ErrUsage)
}

func TestOptionsRejectsUnknownValues(t *testing.T) {
	_, err := (&FileConfig{LogLevel: "loud"}).options()
	assert.ErrorIs(t, err, cli.ErrUsage)

	_, err = (&FileConfig{Conversion: "strict"}).options()
	assert.ErrorIs(t, err, cli.ErrUsage)

	_, err = (&FileConfig{Redis: RedisConfig{Addr: "localhost:6379", TTL: "soon"}}).options()
	assert.ErrorIs(t, err, cli.ErrUsage)

	opts, err := (&FileConfig{}).options()
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}

func TestDialectByName(t *testing.T) {
	d, err := dialectByName("")
	require.NoError(t, err)
	assert.IsType(t, sqlite.New(), d)

	d, err = dialectByName("MySQL")
	require.NoError(t, err)
	assert.IsType(t, mysql.New(), d)

	d, err = dialectByName("postgresql")
	require.NoError(t, err)
	assert.IsType(t, postgres.New(), d)

	_, err = dialectByName("oracle")
	assert.ErrorIs(t, err, cli.ErrUsage)
}
