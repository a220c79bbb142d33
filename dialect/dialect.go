// Package dialect describes how a database is spoken to: identifier quoting,
// parameter placeholders, identity retrieval and column introspection.
package dialect

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"gorm.io/microorm/schema"
)

// Placeholder style of parameter markers in statement text
type Placeholder int

const (
	// Question positional ? markers
	Question Placeholder = iota
	// Dollar positional $1, $2 markers
	Dollar
	// Named markers built from the parameter prefix and name, bound with sql.Named
	Named
)

// IdentityStrategy how generated identities are read back after an insert
type IdentityStrategy int

const (
	// LastInsertID the result's LastInsertId is the identity of the last row inserted
	LastInsertID IdentityStrategy = iota
	// FirstInsertID the result's LastInsertId is the identity of the first row of a batch
	FirstInsertID
	// Returning the statement returns the identities as rows
	Returning
)

// Setting database specific statement settings
type Setting struct {
	Name               string
	OpeningQuote       string
	ClosingQuote       string
	ParameterPrefix    string
	Placeholder        Placeholder
	DirectionSupported bool
	DefaultSchema      string
	Identity           IdentityStrategy
}

// Quote quotes an identifier; schema qualified names are quoted per part and
// parts already quoted are kept. Stray quote characters are dropped.
func (s Setting) Quote(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "*" || (strings.HasPrefix(part, s.OpeningQuote) && strings.HasSuffix(part, s.ClosingQuote) && len(part) > 1) {
			parts[i] = part
			continue
		}
		parts[i] = s.OpeningQuote + schema.Unquote(part) + s.ClosingQuote
	}
	return strings.Join(parts, ".")
}

// Parameter returns the marker of the parameter name, the index-th of the statement from 1
func (s Setting) Parameter(name string, index int) string {
	switch s.Placeholder {
	case Dollar:
		return "$" + strconv.Itoa(index)
	case Named:
		return s.ParameterPrefix + name
	}
	return "?"
}

// NamedParameters reports whether arguments are bound by name
func (s Setting) NamedParameters() bool {
	return s.Placeholder == Named
}

// SplitTable splits a possibly schema qualified table name, falling back to DefaultSchema
func (s Setting) SplitTable(table string) (string, string) {
	if idx := strings.LastIndexByte(table, '.'); idx >= 0 {
		return schema.Unquote(table[:idx]), schema.Unquote(table[idx+1:])
	}
	return s.DefaultSchema, schema.Unquote(table)
}

// Queryer is satisfied by *sql.DB, *sql.Tx and *sql.Conn
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// FieldProvider reads the column descriptors of a table
type FieldProvider interface {
	GetFields(ctx context.Context, db Queryer, table string) (schema.DbFields, error)
}

// Dialect a database dialect
type Dialect interface {
	FieldProvider
	Setting() Setting
	// DriverName the database/sql driver the dialect opens connections with
	DriverName() string
}
