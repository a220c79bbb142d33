// Package postgres is the PostgreSQL dialect, backed by github.com/lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	_ "github.com/lib/pq"

	"gorm.io/microorm/builder"
	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/dialect"
	"gorm.io/microorm/schema"
)

const DriverName = "postgres"

var setting = dialect.Setting{
	Name:          "postgres",
	OpeningQuote:  `"`,
	ClosingQuote:  `"`,
	Placeholder:   dialect.Dollar,
	Identity:      dialect.Returning,
	DefaultSchema: "public",
}

var names = dbtype.NewTypeNameResolver(map[string]reflect.Type{
	"oid":  dbtype.Uint32Type,
	"name": dbtype.StringType,
})

const columnsQuery = `SELECT c.column_name, c.is_nullable, c.data_type, c.udt_name,
	c.character_maximum_length, c.numeric_precision, c.numeric_scale,
	c.is_identity, COALESCE(c.column_default, ''),
	EXISTS (
		SELECT 1 FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = c.table_schema
			AND tc.table_name = c.table_name AND kcu.column_name = c.column_name
	)
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

// Dialect PostgreSQL statements and information_schema introspection.
// Identities are read back with RETURNING.
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

// GetFields reads information_schema.columns; identity columns and serial
// columns (a nextval default) are identities
func (d *Dialect) GetFields(ctx context.Context, db dialect.Queryer, table string) (schema.DbFields, error) {
	schemaName, tableName := d.Base.Setting.SplitTable(table)
	rows, err := db.QueryContext(ctx, columnsQuery, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields schema.DbFields
	for rows.Next() {
		var (
			name, nullable, dataType, udtName, identity, defaultValue string
			size, precision, scale                                    sql.NullInt64
			primary                                                   bool
		)
		if err := rows.Scan(&name, &nullable, &dataType, &udtName, &size, &precision, &scale, &identity, &defaultValue, &primary); err != nil {
			return nil, err
		}
		databaseType := dataType
		t, ok := names.Resolve(dataType)
		if !ok {
			t, _ = names.Resolve(udtName)
			databaseType = udtName
		}
		fields = append(fields, &schema.DbField{
			Name:         name,
			IsPrimary:    primary,
			IsIdentity:   identity == "YES" || strings.HasPrefix(defaultValue, "nextval("),
			IsNullable:   nullable == "YES",
			Type:         t,
			Size:         int(size.Int64),
			Precision:    int(precision.Int64),
			Scale:        int(scale.Int64),
			DatabaseType: databaseType,
			Provider:     schema.ProviderPostgres,
		})
	}
	return fields, rows.Err()
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
	updates := builder.Exclude(builder.Exclude(fields, qualifiers...), identity)
	if len(updates) == 0 {
		// DO NOTHING would return no row to read the identity from
		w.WriteString(") DO UPDATE SET ")
		w.WriteQuoted(qualifiers[0])
		w.WriteString(" = EXCLUDED.")
		w.WriteQuoted(qualifiers[0])
	} else {
		w.WriteString(") DO UPDATE SET ")
		w.WriteList(len(updates), func(i int) {
			w.WriteQuoted(updates[i])
			w.WriteString(" = EXCLUDED.")
			w.WriteQuoted(updates[i])
		})
	}
	d.WriteReturning(w, identity)
	return w.String(), nil
}
