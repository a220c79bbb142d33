package logger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"gorm.io/microorm/utils"
)

// ErrRecordNotFound record not found error
var ErrRecordNotFound = errors.New("record not found")

// LogLevel log level
type LogLevel int

const (
	// Silent silent log level
	Silent LogLevel = iota + 1
	// Error error log level
	Error
	// Warn warn log level
	Warn
	// Info info log level
	Info
)

// String implements fmt.Stringer
func (l LogLevel) String() string {
	switch l {
	case Silent:
		return "silent"
	case Error:
		return "error"
	case Warn:
		return "warn"
	case Info:
		return "info"
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// ParseLevel parses silent, error, warn or info, ignoring case
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return Silent, nil
	case "error":
		return Error, nil
	case "warn", "warning":
		return Warn, nil
	case "info":
		return Info, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// LevelFromEnv reads MICROORM_LOG_LEVEL, falling back to def when unset or invalid
func LevelFromEnv(def LogLevel) LogLevel {
	if v := os.Getenv("MICROORM_LOG_LEVEL"); v != "" {
		if level, err := ParseLevel(v); err == nil {
			return level
		}
	}
	return def
}

// Writer log writer interface
type Writer interface {
	Printf(string, ...interface{})
}

// Config logger config
type Config struct {
	SlowThreshold             time.Duration
	Colorful                  bool
	IgnoreRecordNotFoundError bool
	ParameterizedQueries      bool
	LogLevel                  LogLevel
}

// Interface logger interface
type Interface interface {
	LogMode(LogLevel) Interface
	Info(context.Context, string, ...interface{})
	Warn(context.Context, string, ...interface{})
	Error(context.Context, string, ...interface{})
	Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error)
}

// ParamsFilter is implemented by loggers that hide bound values from logged statements
type ParamsFilter interface {
	ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{})
}

var (
	// Discard logger will print any log to io.Discard
	Discard = New(log.New(discardWriter{}, "", log.LstdFlags), Config{})
	// Default default logger
	Default = New(log.New(os.Stdout, "\r\n", log.LstdFlags), Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  LevelFromEnv(Warn),
		IgnoreRecordNotFoundError: false,
		Colorful:                  isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
	})
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

type palette struct {
	file, info, warn, err, slow, elapsed, rows func(a ...interface{}) string
}

func plain(a ...interface{}) string { return fmt.Sprint(a...) }

func newPalette(colorful bool) palette {
	if !colorful {
		return palette{plain, plain, plain, plain, plain, plain, plain}
	}
	sprint := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		c.EnableColor()
		return c.SprintFunc()
	}
	return palette{
		file:    sprint(color.FgGreen),
		info:    sprint(color.FgGreen),
		warn:    sprint(color.FgMagenta),
		err:     sprint(color.FgRed),
		slow:    sprint(color.FgRed, color.Bold),
		elapsed: sprint(color.FgYellow),
		rows:    sprint(color.FgBlue, color.Bold),
	}
}

// New initialize logger
func New(writer Writer, config Config) Interface {
	return &logger{Writer: writer, Config: config, palette: newPalette(config.Colorful)}
}

type logger struct {
	Writer
	Config
	palette palette
}

// LogMode log mode
func (l *logger) LogMode(level LogLevel) Interface {
	newlogger := *l
	newlogger.LogLevel = level
	return &newlogger
}

// Info print info
func (l *logger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.Printf("%s %s "+msg, append([]interface{}{l.palette.file(utils.FileWithLineNum()), l.palette.info("[info]")}, data...)...)
	}
}

// Warn print warn messages
func (l *logger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.Printf("%s %s "+msg, append([]interface{}{l.palette.file(utils.FileWithLineNum()), l.palette.warn("[warn]")}, data...)...)
	}
}

// Error print error messages
func (l *logger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.Printf("%s %s "+msg, append([]interface{}{l.palette.file(utils.FileWithLineNum()), l.palette.err("[error]")}, data...)...)
	}
}

// Trace print sql message
func (l *logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch classify(l.Config, elapsed, err) {
	case traceError:
		sql, rows := fc()
		l.Printf("%s %s\n%s %s %s", l.palette.file(utils.FileWithLineNum()), l.palette.err(err.Error()),
			l.palette.elapsed(formatElapsed(elapsed)), l.palette.rows(formatRows(rows)), sql)
	case traceSlow:
		sql, rows := fc()
		slowLog := fmt.Sprintf("SLOW SQL >= %v", l.SlowThreshold)
		l.Printf("%s %s\n%s %s %s", l.palette.file(utils.FileWithLineNum()), l.palette.slow(slowLog),
			l.palette.elapsed(formatElapsed(elapsed)), l.palette.rows(formatRows(rows)), sql)
	case traceInfo:
		sql, rows := fc()
		l.Printf("%s\n%s %s %s", l.palette.file(utils.FileWithLineNum()),
			l.palette.elapsed(formatElapsed(elapsed)), l.palette.rows(formatRows(rows)), sql)
	}
}

// ParamsFilter filter params
func (l *logger) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	return filterParams(l.Config.ParameterizedQueries, sql, params)
}

type traceKind int

const (
	traceSkip traceKind = iota
	traceError
	traceSlow
	traceInfo
)

// classify decides how a finished statement is reported; shared by every adapter
func classify(config Config, elapsed time.Duration, err error) traceKind {
	switch {
	case config.LogLevel <= Silent:
		return traceSkip
	case err != nil && config.LogLevel >= Error && (!errors.Is(err, ErrRecordNotFound) || !config.IgnoreRecordNotFoundError):
		return traceError
	case config.SlowThreshold != 0 && elapsed > config.SlowThreshold && config.LogLevel >= Warn:
		return traceSlow
	case config.LogLevel == Info:
		return traceInfo
	}
	return traceSkip
}

func formatElapsed(elapsed time.Duration) string {
	return fmt.Sprintf("[%.3fms]", float64(elapsed.Nanoseconds())/1e6)
}

func formatRows(rows int64) string {
	if rows == -1 {
		return "[rows:-]"
	}
	return fmt.Sprintf("[rows:%d]", rows)
}

func filterParams(parameterized bool, sql string, params []interface{}) (string, []interface{}) {
	if parameterized {
		return sql, nil
	}
	return sql, params
}
