// Package builder renders the statements the CRUD operations execute.
package builder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/microorm/dialect"
	"gorm.io/microorm/schema"
)

var (
	// ErrNotSupported is returned for statements a dialect can not express
	ErrNotSupported = errors.New("statement not supported")
	// ErrInvalidQueryField is returned for malformed conditions
	ErrInvalidQueryField = errors.New("invalid query field")
	// ErrNoFields is returned when a statement would name no column
	ErrNoFields = errors.New("no fields")
)

// OrderField one ORDER BY term
type OrderField struct {
	Name       string
	Descending bool
}

func Asc(name string) OrderField { return OrderField{Name: name} }

func Desc(name string) OrderField { return OrderField{Name: name, Descending: true} }

// StatementBuilder renders statement text. Field names double as parameter
// names; the rows of a batch insert use ParameterName(field, row).
type StatementBuilder interface {
	Insert(table string, fields []string, identity string) (string, error)
	InsertAll(table string, fields []string, rows int, identity string) (string, error)
	Update(table string, fields, qualifiers []string) (string, error)
	Merge(table string, fields, qualifiers []string, identity string) (string, error)
	Query(table string, fields []string, where []QueryField, orderBy []OrderField, top int) (string, error)
	Delete(table string, where []QueryField) (string, error)
	Count(table string, where []QueryField) (string, error)
}

// Writer accumulates statement text, numbering parameter markers as they are written
type Writer struct {
	strings.Builder
	Setting dialect.Setting
	params  int
}

func NewWriter(setting dialect.Setting) *Writer {
	return &Writer{Setting: setting}
}

// WriteQuoted writes a quoted identifier
func (w *Writer) WriteQuoted(name string) {
	w.WriteString(w.Setting.Quote(name))
}

// WriteParameter writes the marker of the parameter name
func (w *Writer) WriteParameter(name string) {
	w.params++
	w.WriteString(w.Setting.Parameter(name, w.params))
}

// WriteList writes n comma separated items
func (w *Writer) WriteList(n int, item func(i int)) {
	for i := 0; i < n; i++ {
		if i > 0 {
			w.WriteString(", ")
		}
		item(i)
	}
}

// Base ANSI builder. LIMIT is used for top and RETURNING when the dialect
// reads identities back as rows; Merge is left to dialects.
type Base struct {
	Setting dialect.Setting
}

var _ StatementBuilder = Base{}

// WriteInsert writes INSERT INTO table (fields) VALUES with one tuple per row
func (b Base) WriteInsert(w *Writer, table string, fields []string, rows int) {
	w.WriteString("INSERT INTO ")
	w.WriteQuoted(table)
	w.WriteString(" (")
	w.WriteList(len(fields), func(i int) { w.WriteQuoted(fields[i]) })
	w.WriteString(") VALUES ")
	w.WriteList(rows, func(row int) {
		w.WriteString("(")
		w.WriteList(len(fields), func(i int) { w.WriteParameter(ParameterName(fields[i], row)) })
		w.WriteString(")")
	})
}

// WriteReturning appends RETURNING identity when identities are read as rows
func (b Base) WriteReturning(w *Writer, identity string) {
	if identity != "" && b.Setting.Identity == dialect.Returning {
		w.WriteString(" RETURNING ")
		w.WriteQuoted(identity)
	}
}

func (b Base) Insert(table string, fields []string, identity string) (string, error) {
	return b.InsertAll(table, fields, 1, identity)
}

func (b Base) InsertAll(table string, fields []string, rows int, identity string) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: insert into %s", ErrNoFields, table)
	}
	if rows < 1 {
		return "", fmt.Errorf("%w: %d rows", ErrNotSupported, rows)
	}
	w := NewWriter(b.Setting)
	b.WriteInsert(w, table, fields, rows)
	b.WriteReturning(w, identity)
	return w.String(), nil
}

func (b Base) Update(table string, fields, qualifiers []string) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: update %s", ErrNoFields, table)
	}
	w := NewWriter(b.Setting)
	w.WriteString("UPDATE ")
	w.WriteQuoted(table)
	w.WriteString(" SET ")
	w.WriteList(len(fields), func(i int) {
		w.WriteQuoted(fields[i])
		w.WriteString(" = ")
		w.WriteParameter(fields[i])
	})
	if len(qualifiers) > 0 {
		w.WriteString(" WHERE ")
		for i, q := range qualifiers {
			if i > 0 {
				w.WriteString(" AND ")
			}
			w.WriteQuoted(q)
			w.WriteString(" = ")
			w.WriteParameter(q)
		}
	}
	return w.String(), nil
}

func (b Base) Merge(table string, fields, qualifiers []string, identity string) (string, error) {
	return "", fmt.Errorf("%w: merge on %s", ErrNotSupported, b.Setting.Name)
}

func (b Base) Query(table string, fields []string, where []QueryField, orderBy []OrderField, top int) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: select from %s", ErrNoFields, table)
	}
	w := NewWriter(b.Setting)
	w.WriteString("SELECT ")
	w.WriteList(len(fields), func(i int) { w.WriteQuoted(fields[i]) })
	w.WriteString(" FROM ")
	w.WriteQuoted(table)
	if err := b.WriteWhere(w, where); err != nil {
		return "", err
	}
	if len(orderBy) > 0 {
		w.WriteString(" ORDER BY ")
		w.WriteList(len(orderBy), func(i int) {
			w.WriteQuoted(orderBy[i].Name)
			if orderBy[i].Descending {
				w.WriteString(" DESC")
			} else {
				w.WriteString(" ASC")
			}
		})
	}
	if top > 0 {
		w.WriteString(" LIMIT ")
		w.WriteString(strconv.Itoa(top))
	}
	return w.String(), nil
}

func (b Base) Delete(table string, where []QueryField) (string, error) {
	w := NewWriter(b.Setting)
	w.WriteString("DELETE FROM ")
	w.WriteQuoted(table)
	if err := b.WriteWhere(w, where); err != nil {
		return "", err
	}
	return w.String(), nil
}

func (b Base) Count(table string, where []QueryField) (string, error) {
	w := NewWriter(b.Setting)
	w.WriteString("SELECT COUNT(*) FROM ")
	w.WriteQuoted(table)
	if err := b.WriteWhere(w, where); err != nil {
		return "", err
	}
	return w.String(), nil
}

// WriteWhere writes the WHERE clause of where, nothing when it is empty
func (b Base) WriteWhere(w *Writer, where []QueryField) error {
	conditions, err := resolve(where)
	if err != nil || len(conditions) == 0 {
		return err
	}

	w.WriteString(" WHERE ")
	for i, c := range conditions {
		if i > 0 {
			w.WriteString(" AND ")
		}
		switch {
		case c.Operation == In || c.Operation == NotIn:
			if len(c.params) == 0 {
				// nothing is in an empty list
				if c.Operation == In {
					w.WriteString("1 = 0")
				} else {
					w.WriteString("1 = 1")
				}
				continue
			}
			w.WriteQuoted(c.Field)
			w.WriteString(" " + c.Operation.String() + " (")
			w.WriteList(len(c.params), func(j int) { w.WriteParameter(c.params[j].Name) })
			w.WriteString(")")
		case len(c.params) == 0:
			w.WriteQuoted(c.Field)
			if c.Operation == Equal {
				w.WriteString(" IS NULL")
			} else {
				w.WriteString(" IS NOT NULL")
			}
		default:
			w.WriteQuoted(c.Field)
			w.WriteString(" " + c.Operation.String() + " ")
			w.WriteParameter(c.params[0].Name)
		}
	}
	return nil
}

// Exclude returns fields without names, compared ignoring case and quoting
func Exclude(fields []string, names ...string) []string {
	skip := make(map[string]bool, len(names))
	for _, name := range names {
		skip[schema.NormalizeName(name)] = true
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !skip[schema.NormalizeName(f)] {
			out = append(out, f)
		}
	}
	return out
}
