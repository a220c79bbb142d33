// Package sqlite is the SQLite dialect, backed by github.com/mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"gorm.io/microorm/builder"
	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/dialect"
	"gorm.io/microorm/schema"
)

// DriverName the database/sql driver registered by go-sqlite3
const DriverName = "sqlite3"

var setting = dialect.Setting{
	Name:            "sqlite",
	OpeningQuote:    "`",
	ClosingQuote:    "`",
	ParameterPrefix: "@",
	Placeholder:     dialect.Named,
	Identity:        dialect.LastInsertID,
}

// sqlite integers are 64 bit whatever their declared type
var names = dbtype.NewTypeNameResolver(map[string]reflect.Type{
	"int":     dbtype.Int64Type,
	"integer": dbtype.Int64Type,
})

// Dialect SQLite statements and PRAGMA table_info introspection
type Dialect struct {
	builder.Base
}

var (
	_ dialect.Dialect          = (*Dialect)(nil)
	_ builder.StatementBuilder = (*Dialect)(nil)
)

func New() *Dialect {
	return &Dialect{Base: builder.Base{Setting: setting}}
}

func (d *Dialect) Setting() dialect.Setting { return d.Base.Setting }

func (d *Dialect) DriverName() string { return DriverName }

// TypeNames resolves declared column types
func (d *Dialect) TypeNames() *dbtype.TypeNameResolver { return names }

// GetFields reads PRAGMA table_info. An INTEGER primary key that is the only
// key column aliases the rowid and is the identity.
func (d *Dialect) GetFields(ctx context.Context, db dialect.Queryer, table string) (schema.DbFields, error) {
	schemaName, tableName := d.Base.Setting.SplitTable(table)
	pragma := "PRAGMA table_info(" + d.Base.Setting.Quote(tableName) + ")"
	if schemaName != "" {
		pragma = "PRAGMA " + d.Base.Setting.Quote(schemaName) + ".table_info(" + d.Base.Setting.Quote(tableName) + ")"
	}

	rows, err := db.QueryContext(ctx, pragma)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		fields schema.DbFields
		keys   int
	)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typeName   string
			defaultValue     sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typeName, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}
		t, _ := names.Resolve(typeName)
		field := &schema.DbField{
			Name:         name,
			IsPrimary:    pk > 0,
			IsNullable:   notNull == 0 && pk == 0,
			Type:         t,
			DatabaseType: typeName,
			Provider:     schema.ProviderSQLite,
		}
		field.Size, field.Precision, field.Scale = typeArguments(typeName)
		if pk > 0 {
			keys++
			field.IsIdentity = strings.EqualFold(strings.TrimSpace(typeName), "integer")
		}
		fields = append(fields, field)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if keys > 1 {
		for _, f := range fields {
			f.IsIdentity = false
		}
	}
	return fields, nil
}

// typeArguments parses varchar(20) or decimal(18,2)
func typeArguments(typeName string) (size, precision, scale int) {
	open := strings.IndexByte(typeName, '(')
	end := strings.IndexByte(typeName, ')')
	if open < 0 || end < open {
		return
	}
	var a, b int
	switch n, _ := fmt.Sscanf(strings.ReplaceAll(typeName[open+1:end], " ", ""), "%d,%d", &a, &b); n {
	case 1:
		size = a
	case 2:
		precision, scale = a, b
	}
	return
}

// Merge inserts or, on a conflict over qualifiers, updates the other fields
func (d *Dialect) Merge(table string, fields, qualifiers []string, identity string) (string, error) {
	if len(qualifiers) == 0 {
		return "", fmt.Errorf("%w: merge into %s needs qualifiers", builder.ErrNoFields, table)
	}
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: merge into %s", builder.ErrNoFields, table)
	}

	w := builder.NewWriter(d.Base.Setting)
	d.WriteInsert(w, table, fields, 1)
	w.WriteString(" ON CONFLICT (")
	w.WriteList(len(qualifiers), func(i int) { w.WriteQuoted(qualifiers[i]) })
	w.WriteString(") DO ")
	updates := builder.Exclude(builder.Exclude(fields, qualifiers...), identity)
	if len(updates) == 0 {
		w.WriteString("NOTHING")
	} else {
		w.WriteString("UPDATE SET ")
		w.WriteList(len(updates), func(i int) {
			w.WriteQuoted(updates[i])
			w.WriteString(" = excluded.")
			w.WriteQuoted(updates[i])
		})
	}
	return w.String(), nil
}
