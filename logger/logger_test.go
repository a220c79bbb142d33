package logger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufWriter struct{ buf *bytes.Buffer }

func (w bufWriter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(w.buf, format+"\n", args...)
}

func TestParseLevel(t *testing.T) {
	for s, want := range map[string]LogLevel{"silent": Silent, "ERROR": Error, " warn ": Warn, "warning": Warn, "Info": Info} {
		got, err := ParseLevel(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
	_, err := ParseLevel("debug")
	assert.Error(t, err)
	assert.Equal(t, "warn", Warn.String())
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("MICROORM_LOG_LEVEL", "info")
	assert.Equal(t, Info, LevelFromEnv(Warn))

	t.Setenv("MICROORM_LOG_LEVEL", "loud")
	assert.Equal(t, Warn, LevelFromEnv(Warn))
}

func TestDefaultLogger_Levels(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	l := New(bufWriter{&buf}, Config{LogLevel: Warn})

	l.Info(ctx, "compiled %s", "Person")
	assert.Empty(t, buf.String())

	l.Warn(ctx, "slow compile %s", "Person")
	assert.Contains(t, buf.String(), "[warn] slow compile Person")

	buf.Reset()
	l.LogMode(Info).Info(ctx, "compiled %s", "Person")
	assert.Contains(t, buf.String(), "[info] compiled Person")

	buf.Reset()
	l.LogMode(Silent).Error(ctx, "boom")
	assert.Empty(t, buf.String())
}

func TestDefaultLogger_Trace(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	l := New(bufWriter{&buf}, Config{LogLevel: Info, SlowThreshold: 50 * time.Millisecond})
	sql := func() (string, int64) { return "SELECT * FROM people", 3 }

	l.Trace(ctx, time.Now(), sql, nil)
	assert.Contains(t, buf.String(), "[rows:3] SELECT * FROM people")

	buf.Reset()
	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Contains(t, buf.String(), "SLOW SQL >= 50ms")

	buf.Reset()
	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", -1 }, errors.New("no such table"))
	assert.Contains(t, buf.String(), "no such table")
	assert.Contains(t, buf.String(), "[rows:-]")
}

func TestDefaultLogger_Colorful(t *testing.T) {
	var buf bytes.Buffer
	l := New(bufWriter{&buf}, Config{LogLevel: Info, Colorful: true})
	l.Warn(context.Background(), "coloured")
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		elapsed time.Duration
		err     error
		want    traceKind
	}{
		{"silent", Config{LogLevel: Silent}, 0, errors.New("x"), traceSkip},
		{"error", Config{LogLevel: Error}, 0, errors.New("x"), traceError},
		{"ignored not found", Config{LogLevel: Info, IgnoreRecordNotFoundError: true}, 0, ErrRecordNotFound, traceInfo},
		{"not found", Config{LogLevel: Error}, 0, fmt.Errorf("wrapped: %w", ErrRecordNotFound), traceError},
		{"slow", Config{LogLevel: Warn, SlowThreshold: time.Millisecond}, time.Second, nil, traceSlow},
		{"slow below warn", Config{LogLevel: Error, SlowThreshold: time.Millisecond}, time.Second, nil, traceSkip},
		{"info", Config{LogLevel: Info}, 0, nil, traceInfo},
		{"warn quiet", Config{LogLevel: Warn}, 0, nil, traceSkip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.config, tt.elapsed, tt.err))
		})
	}
}

func TestParamsFilter(t *testing.T) {
	l := New(bufWriter{&bytes.Buffer{}}, Config{ParameterizedQueries: true}).(ParamsFilter)
	sql, params := l.ParamsFilter(context.Background(), "SELECT ?", 1)
	assert.Equal(t, "SELECT ?", sql)
	assert.Nil(t, params)

	l = New(bufWriter{&bytes.Buffer{}}, Config{}).(ParamsFilter)
	_, params = l.ParamsFilter(context.Background(), "SELECT ?", 1)
	assert.Equal(t, []interface{}{1}, params)
}
