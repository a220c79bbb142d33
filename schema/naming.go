package schema

import (
	"strings"
	"sync"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Namer namer interface
type Namer interface {
	TableName(entity string) string
	ColumnName(table, field string) string
}

// NamingStrategy tables, columns naming strategy
type NamingStrategy struct {
	TablePrefix   string
	SingularTable bool
	NoLowerCase   bool
}

// TableName convert string to table name
func (ns NamingStrategy) TableName(str string) string {
	if ns.SingularTable {
		return ns.TablePrefix + ns.toDBName(str)
	}
	return ns.TablePrefix + inflection.Plural(ns.toDBName(str))
}

// ColumnName convert string to column name
func (ns NamingStrategy) ColumnName(table, field string) string {
	return ns.toDBName(field)
}

func (ns NamingStrategy) toDBName(name string) string {
	if ns.NoLowerCase {
		return name
	}
	return toDBName(name)
}

var (
	dbNames sync.Map
	// https://github.com/golang/lint/blob/master/lint.go#L770
	commonInitialisms         = []string{"API", "ASCII", "CPU", "CSS", "DNS", "EOF", "GUID", "HTML", "HTTP", "HTTPS", "ID", "IP", "JSON", "LHS", "QPS", "RAM", "RHS", "RPC", "SLA", "SMTP", "SSH", "TLS", "TTL", "UID", "UI", "UUID", "URI", "URL", "UTF8", "VM", "XML", "XSRF", "XSS"}
	commonInitialismsReplacer *strings.Replacer
)

func init() {
	title := cases.Title(language.Und)
	pairs := make([]string, 0, len(commonInitialisms)*2)
	for _, initialism := range commonInitialisms {
		pairs = append(pairs, initialism, title.String(strings.ToLower(initialism)))
	}
	commonInitialismsReplacer = strings.NewReplacer(pairs...)
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// toDBName converts CamelCase to snake_case, treating common initialisms as words
func toDBName(name string) string {
	if name == "" {
		return ""
	}
	if v, ok := dbNames.Load(name); ok {
		return v.(string)
	}

	var (
		value    = commonInitialismsReplacer.Replace(name)
		buf      strings.Builder
		lastCase bool
		curCase  = isUpper(value[0])
	)
	buf.Grow(len(value) + 4)

	for i := 0; i < len(value)-1; i++ {
		c := value[i]
		nextCase := isUpper(value[i+1])
		if curCase {
			if !(lastCase && (nextCase || isDigit(value[i+1]))) && i > 0 && value[i-1] != '_' && value[i+1] != '_' {
				buf.WriteByte('_')
			}
			buf.WriteByte(c + 32)
		} else {
			buf.WriteByte(c)
		}
		lastCase, curCase = curCase, nextCase
	}

	last := value[len(value)-1]
	if curCase {
		if !lastCase && len(value) > 1 {
			buf.WriteByte('_')
		}
		buf.WriteByte(last + 32)
	} else {
		buf.WriteByte(last)
	}

	dbName := buf.String()
	dbNames.Store(name, dbName)
	return dbName
}
