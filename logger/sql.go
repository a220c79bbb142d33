package logger

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const tmFmtWithMS = "2006-01-02 15:04:05.999"

var numericPlaceholderRe = regexp.MustCompile(`\$(\d+)`)

func isPrintable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// ExplainSQL renders a statement with its bound values inlined, for logging only.
// Placeholders may be `?`, `$n` or `@name` (sql.NamedArg values).
func ExplainSQL(stmt string, escaper string, vars ...interface{}) string {
	named := map[string]string{}
	positional := make([]string, 0, len(vars))

	for _, v := range vars {
		if arg, ok := v.(sql.NamedArg); ok {
			named[arg.Name] = formatValue(arg.Value, escaper)
			continue
		}
		positional = append(positional, formatValue(v, escaper))
	}

	if len(named) > 0 {
		names := make([]string, 0, len(named))
		for name := range named {
			names = append(names, name)
		}
		// longest first so @Name does not clobber @Name_1
		sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
		for _, name := range names {
			stmt = strings.ReplaceAll(stmt, "@"+name, named[name])
		}
	}

	if numericPlaceholderRe.MatchString(stmt) {
		return numericPlaceholderRe.ReplaceAllStringFunc(stmt, func(m string) string {
			idx, err := strconv.Atoi(m[1:])
			if err != nil || idx < 1 || idx > len(positional) {
				return m
			}
			return positional[idx-1]
		})
	}

	var (
		b   strings.Builder
		idx int
	)
	for _, r := range stmt {
		if r == '?' && idx < len(positional) {
			b.WriteString(positional[idx])
			idx++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatValue(v interface{}, escaper string) string {
	if _, ok := v.(sql.Out); ok {
		return escaper + "<out>" + escaper
	}
	if valuer, ok := v.(driver.Valuer); ok && !isNilPointer(v) {
		v, _ = valuer.Value()
	}

	quote := func(s string) string {
		return escaper + strings.ReplaceAll(s, escaper, escaper+escaper) + escaper
	}

	switch v := v.(type) {
	case nil:
		return "NULL"
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		if v.IsZero() {
			return quote("0000-00-00 00:00:00")
		}
		return quote(v.Format(tmFmtWithMS))
	case []byte:
		if s := string(v); isPrintable(s) {
			return quote(s)
		}
		return quote("<binary>")
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return quote(v)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return "NULL"
		}
		return formatValue(rv.Elem().Interface(), escaper)
	}
	return quote(fmt.Sprint(v))
}

func isNilPointer(v interface{}) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
