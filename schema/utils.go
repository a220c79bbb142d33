package schema

import (
	"strings"

	"golang.org/x/text/cases"
)

// TagKey is the struct tag read by Parse
const TagKey = "orm"

// ParseTagSetting splits `key:value;flag` settings, keys upper-cased. A separator
// preceded by a backslash is kept as part of the value.
func ParseTagSetting(str string, sep string) map[string]string {
	settings := map[string]string{}
	names := strings.Split(str, sep)

	for i := 0; i < len(names); i++ {
		setting := names[i]
		for strings.HasSuffix(setting, `\`) && i+1 < len(names) {
			i++
			setting = setting[:len(setting)-1] + sep + names[i]
		}

		values := strings.Split(setting, ":")
		k := strings.TrimSpace(strings.ToUpper(values[0]))
		if len(values) >= 2 {
			settings[k] = strings.TrimSpace(strings.Join(values[1:], ":"))
		} else if k != "" {
			settings[k] = k
		}
	}
	return settings
}

// Unquote removes identifier quoting (`"`, backtick, `[` and `]`) from name
func Unquote(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '"', '`', '[', ']':
			return -1
		}
		return r
	}, strings.TrimSpace(name))
}

// NormalizeName unquotes and case-folds name so that column, property and
// parameter names can be compared regardless of quoting or case.
func NormalizeName(name string) string {
	// a Caser is stateful, never share one between goroutines
	return cases.Fold().String(Unquote(name))
}

// EqualName reports whether a and b name the same column
func EqualName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
