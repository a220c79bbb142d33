// Package mysql is the MySQL dialect, backed by github.com/go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"gorm.io/microorm/builder"
	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/dialect"
	"gorm.io/microorm/schema"
)

const DriverName = "mysql"

var setting = dialect.Setting{
	Name:         "mysql",
	OpeningQuote: "`",
	ClosingQuote: "`",
	Placeholder:  dialect.Question,
	Identity:     dialect.FirstInsertID,
}

var names = dbtype.NewTypeNameResolver(map[string]reflect.Type{
	"tinyint(1)": dbtype.BoolType,
	"year":       dbtype.Int16Type,
})

const columnsQuery = "SELECT COLUMN_NAME, COLUMN_KEY, IS_NULLABLE, COLUMN_TYPE, EXTRA, " +
	"CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, NUMERIC_SCALE " +
	"FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = %s AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION"

// Dialect MySQL statements and information_schema introspection
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

func (d *Dialect) TypeNames() *dbtype.TypeNameResolver { return names }

// GetFields reads information_schema.COLUMNS of the table in the current
// database unless the name is qualified. auto_increment columns are identities.
func (d *Dialect) GetFields(ctx context.Context, db dialect.Queryer, table string) (schema.DbFields, error) {
	schemaName, tableName := d.Base.Setting.SplitTable(table)
	query, args := fmt.Sprintf(columnsQuery, "DATABASE()"), []interface{}{tableName}
	if schemaName != "" {
		query, args = fmt.Sprintf(columnsQuery, "?"), []interface{}{schemaName, tableName}
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields schema.DbFields
	for rows.Next() {
		var (
			name, key, nullable, columnType, extra string
			size, precision, scale                 sql.NullInt64
		)
		if err := rows.Scan(&name, &key, &nullable, &columnType, &extra, &size, &precision, &scale); err != nil {
			return nil, err
		}
		t, _ := names.Resolve(columnType)
		fields = append(fields, &schema.DbField{
			Name:         name,
			IsPrimary:    key == "PRI",
			IsIdentity:   strings.Contains(strings.ToLower(extra), "auto_increment"),
			IsNullable:   nullable == "YES",
			Type:         t,
			Size:         int(size.Int64),
			Precision:    int(precision.Int64),
			Scale:        int(scale.Int64),
			DatabaseType: columnType,
			Provider:     schema.ProviderMySQL,
		})
	}
	return fields, rows.Err()
}

// Merge inserts or updates the non-qualifier fields on a duplicate key.
// MySQL resolves the conflict on any unique key; qualifiers only keep their values.
func (d *Dialect) Merge(table string, fields, qualifiers []string, identity string) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: merge into %s", builder.ErrNoFields, table)
	}

	w := builder.NewWriter(d.Base.Setting)
	d.WriteInsert(w, table, fields, 1)
	w.WriteString(" ON DUPLICATE KEY UPDATE ")
	updates := builder.Exclude(builder.Exclude(fields, qualifiers...), identity)
	if len(updates) == 0 {
		// a no-op assignment keeps the statement valid
		w.WriteQuoted(fields[0])
		w.WriteString(" = ")
		w.WriteQuoted(fields[0])
		return w.String(), nil
	}
	w.WriteList(len(updates), func(i int) {
		w.WriteQuoted(updates[i])
		w.WriteString(" = VALUES(")
		w.WriteQuoted(updates[i])
		w.WriteString(")")
	})
	return w.String(), nil
}
