package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"gorm.io/microorm/utils"
)

// ZerologLogger implements Interface using zerolog
type ZerologLogger struct {
	Logger zerolog.Logger
	Config
}

// NewZerologLogger creates a new logger using zerolog
func NewZerologLogger(logger zerolog.Logger, config Config) Interface {
	return &ZerologLogger{Logger: logger, Config: config}
}

// NewConsoleZerologLogger writes human readable lines to stdout
func NewConsoleZerologLogger(config Config) Interface {
	consoleWriter := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stdout
		w.TimeFormat = time.RFC3339
		w.NoColor = !config.Colorful
	})
	logger := zerolog.New(consoleWriter).Level(ZerologLevel(config.LogLevel)).With().Timestamp().Logger()
	return NewZerologLogger(logger, config)
}

// LogMode sets the log level
func (l *ZerologLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *ZerologLogger) emit(ctx context.Context, event *zerolog.Event, msg string, data []interface{}) {
	event = event.Str("file", utils.FileWithLineNum()).Interface("data", data)
	if ctx != nil {
		event = event.Ctx(ctx)
	}
	event.Msg(msg)
}

// Info logs info messages
func (l *ZerologLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.emit(ctx, l.Logger.Info(), msg, data)
	}
}

// Warn logs warning messages
func (l *ZerologLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.emit(ctx, l.Logger.Warn(), msg, data)
	}
}

// Error logs error messages
func (l *ZerologLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.emit(ctx, l.Logger.Error(), msg, data)
	}
}

// Trace logs statement execution details
func (l *ZerologLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)

	var event *zerolog.Event
	msg := "SQL executed"
	switch classify(l.Config, elapsed, err) {
	case traceError:
		event = l.Logger.Error().Err(err)
	case traceSlow:
		event = l.Logger.Warn().Dur("slow_threshold", l.SlowThreshold)
		msg = "SLOW SQL executed"
	case traceInfo:
		event = l.Logger.Info()
	default:
		return
	}

	sql, rows := fc()
	event = event.Str("file", utils.FileWithLineNum()).Dur("elapsed", elapsed).Str("sql", sql)
	if rows != -1 {
		event = event.Int64("rows", rows)
	}
	if ctx != nil {
		event = event.Ctx(ctx)
	}
	event.Msg(msg)
}

// ParamsFilter drops bound values when ParameterizedQueries is set
func (l *ZerologLogger) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	return filterParams(l.ParameterizedQueries, sql, params)
}

// ZerologLevel converts LogLevel to zerolog.Level
func ZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case Silent:
		return zerolog.Disabled
	case Error:
		return zerolog.ErrorLevel
	case Warn:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
