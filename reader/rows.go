package reader

import (
	"database/sql"
	"reflect"

	"gorm.io/microorm/dbtype"
)

// scan types reported by drivers mapped to the type values are read as
var nullTypes = map[reflect.Type]reflect.Type{
	reflect.TypeOf(sql.NullInt64{}):   dbtype.Int64Type,
	reflect.TypeOf(sql.NullInt32{}):   dbtype.Int32Type,
	reflect.TypeOf(sql.NullInt16{}):   dbtype.Int16Type,
	reflect.TypeOf(sql.NullByte{}):    dbtype.Uint8Type,
	reflect.TypeOf(sql.NullFloat64{}): dbtype.Float64Type,
	reflect.TypeOf(sql.NullBool{}):    dbtype.BoolType,
	reflect.TypeOf(sql.NullString{}):  dbtype.StringType,
	reflect.TypeOf(sql.NullTime{}):    dbtype.TimeType,
	reflect.TypeOf(sql.RawBytes{}):    dbtype.BytesType,
}

var defaultNames = dbtype.NewTypeNameResolver(nil)

// ColumnType decides the Go type of a column from the driver scan type, falling
// back to the database type name when the driver reports raw bytes or nothing
func ColumnType(scanType reflect.Type, databaseType string, names *dbtype.TypeNameResolver) reflect.Type {
	if names == nil {
		names = defaultNames
	}
	for scanType != nil && scanType.Kind() == reflect.Ptr {
		scanType = scanType.Elem()
	}
	if t, ok := nullTypes[scanType]; ok {
		scanType = t
	}

	if scanType == nil || scanType == dbtype.AnyType || scanType == dbtype.BytesType {
		if databaseType != "" {
			if t, ok := names.Resolve(databaseType); ok {
				return t
			}
		}
	}
	if scanType == nil {
		return dbtype.AnyType
	}
	return scanType
}

// RowsReader reads *sql.Rows; every row is scanned into driver values once and
// the typed accessors cast from those
type RowsReader struct {
	record
	rows *sql.Rows
}

// NewRowsReader wraps rows, resolving column types with names (nil = base table)
func NewRowsReader(rows *sql.Rows, names *dbtype.TypeNameResolver) (*RowsReader, error) {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	columns := make([]Column, len(columnTypes))
	for idx, ct := range columnTypes {
		columns[idx] = Column{
			Name:         ct.Name(),
			Type:         ColumnType(ct.ScanType(), ct.DatabaseTypeName(), names),
			DatabaseType: ct.DatabaseTypeName(),
		}
	}
	return &RowsReader{record: record{columns: columns}, rows: rows}, nil
}

// Read scans the next row
func (r *RowsReader) Read() (bool, error) {
	if !r.rows.Next() {
		return false, r.rows.Err()
	}

	values := make([]interface{}, len(r.columns))
	dest := make([]interface{}, len(r.columns))
	for idx := range values {
		dest[idx] = &values[idx]
	}
	if err := r.rows.Scan(dest...); err != nil {
		return false, err
	}
	r.values = values
	return true, nil
}

// Columns the resultset columns
func (r *RowsReader) Columns() []Column {
	return append([]Column(nil), r.columns...)
}

// Close closes the underlying rows
func (r *RowsReader) Close() error {
	return r.rows.Close()
}

// MemoryReader a DataReader over rows held in memory
type MemoryReader struct {
	record
	rows [][]interface{}
	pos  int
}

// NewMemoryReader returns a reader over rows; a column without a type takes the
// type of its first non-nil value
func NewMemoryReader(columns []Column, rows ...[]interface{}) *MemoryReader {
	columns = append([]Column(nil), columns...)
	for idx := range columns {
		if columns[idx].Type != nil {
			continue
		}
		columns[idx].Type = dbtype.AnyType
		for _, row := range rows {
			if idx < len(row) && !isNull(row[idx]) {
				columns[idx].Type = reflect.TypeOf(row[idx])
				break
			}
		}
	}
	return &MemoryReader{record: record{columns: columns}, rows: rows}
}

// Read moves to the next row
func (r *MemoryReader) Read() (bool, error) {
	if r.pos >= len(r.rows) {
		r.values = nil
		return false, nil
	}
	r.values = r.rows[r.pos]
	r.pos++
	return true, nil
}

// Reset rewinds the reader to before the first row
func (r *MemoryReader) Reset() {
	r.pos = 0
	r.values = nil
}

// Columns builds untyped columns from names
func Columns(names ...string) []Column {
	columns := make([]Column, len(names))
	for idx, name := range names {
		columns[idx] = Column{Name: name}
	}
	return columns
}

// Row returns a reader positioned on a single row, used to materialise maps
func Row(columns []Column, values ...interface{}) *MemoryReader {
	r := NewMemoryReader(columns, values)
	_, _ = r.Read()
	return r
}
