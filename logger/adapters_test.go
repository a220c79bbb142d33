package logger

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newZapBuffer(buf *bytes.Buffer) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(buf),
		zapcore.InfoLevel,
	)
	return zap.New(core)
}

func newLogrusBuffer(buf *bytes.Buffer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	return l
}

// adapters under test, each writing into its own buffer
func adapters(config Config) map[string]func(*bytes.Buffer) Interface {
	return map[string]func(*bytes.Buffer) Interface{
		"zap":     func(buf *bytes.Buffer) Interface { return NewZapLogger(newZapBuffer(buf), config) },
		"zerolog": func(buf *bytes.Buffer) Interface { return NewZerologLogger(zerolog.New(buf), config) },
		"logrus":  func(buf *bytes.Buffer) Interface { return NewLogrusLogger(newLogrusBuffer(buf), config) },
	}
}

func TestAdapters_LogMode(t *testing.T) {
	for name, build := range adapters(Config{LogLevel: Error}) {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			l := build(&buf)

			l.Info(context.Background(), "hidden")
			assert.Empty(t, buf.String())

			l.LogMode(Info).Info(context.Background(), "compiled reader", "Person")
			assert.Contains(t, buf.String(), "compiled reader")
			assert.Contains(t, buf.String(), "Person")

			// the original keeps its level
			buf.Reset()
			l.Warn(context.Background(), "still hidden")
			assert.Empty(t, buf.String())
		})
	}
}

func TestAdapters_Trace(t *testing.T) {
	ctx := context.Background()
	config := Config{LogLevel: Info, SlowThreshold: 100 * time.Millisecond, IgnoreRecordNotFoundError: true}

	for name, build := range adapters(config) {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			l := build(&buf)

			l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT * FROM people WHERE id = ?", 5 }, nil)
			assert.Contains(t, buf.String(), "SELECT * FROM people WHERE id = ?")
			assert.Contains(t, buf.String(), "rows")

			buf.Reset()
			l.Trace(ctx, time.Now().Add(-time.Second), func() (string, int64) { return "SELECT * FROM orders", -1 }, nil)
			assert.Contains(t, buf.String(), "SLOW SQL executed")
			assert.Contains(t, buf.String(), "slow_threshold")

			buf.Reset()
			l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT * FROM missing", 0 }, assert.AnError)
			assert.Contains(t, buf.String(), "SELECT * FROM missing")
			assert.Contains(t, buf.String(), "error")

			buf.Reset()
			l.LogMode(Error).Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 0 }, ErrRecordNotFound)
			assert.Empty(t, buf.String())
		})
	}
}

func TestAdapters_ParamsFilter(t *testing.T) {
	for name, build := range adapters(Config{ParameterizedQueries: true}) {
		t.Run(name, func(t *testing.T) {
			f, ok := build(&bytes.Buffer{}).(ParamsFilter)
			if assert.True(t, ok) {
				_, params := f.ParamsFilter(context.Background(), "SELECT ?", 1)
				assert.Nil(t, params)
			}
		})
	}
}

func TestLevelConversions(t *testing.T) {
	assert.Equal(t, zapcore.ErrorLevel, ZapLevel(Error))
	assert.Equal(t, zapcore.InfoLevel, ZapLevel(Info))
	assert.Equal(t, zerolog.Disabled, ZerologLevel(Silent))
	assert.Equal(t, zerolog.WarnLevel, ZerologLevel(Warn))
}
