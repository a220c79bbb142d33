package schema

import (
	"database/sql/driver"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gorm.io/microorm/dbtype"
	"gorm.io/microorm/utils"
)

// provider keys of Field.ProviderTypes
const (
	ProviderPostgres  = "postgres"
	ProviderMySQL     = "mysql"
	ProviderSQLServer = "sqlserver"
	ProviderSQLite    = "sqlite"
)

// tag setting -> provider, in the order they are applied to parameters
var providerTypeTags = [...][2]string{
	{"PGTYPE", ProviderPostgres},
	{"MYSQLTYPE", ProviderMySQL},
	{"MSSQLTYPE", ProviderSQLServer},
	{"SQLITETYPE", ProviderSQLite},
}

// TimeReflectType reflect type of time.Time
var TimeReflectType = reflect.TypeOf(time.Time{})

// Field is the mapping of one exported struct field
type Field struct {
	Name              string
	DBName            string
	BindNames         []string
	FieldType         reflect.Type
	IndirectFieldType reflect.Type
	Nullable          bool
	PrimaryKey        bool
	Identity          bool
	Readable          bool
	Creatable         bool
	Updatable         bool
	Size              int
	Precision         int
	Scale             int
	DbType            dbtype.DbType
	ProviderTypes     map[string]string
	HandlerName       string
	StructField       reflect.StructField
	Tag               reflect.StructTag
	TagSettings       map[string]string
	Schema            *Schema
	ReflectValueOf    func(reflect.Value) reflect.Value
	ValueOf           func(reflect.Value) (value interface{}, zero bool)
}

// ProviderType returns the provider specific type name configured by tag
func (field *Field) ProviderType(provider string) (string, bool) {
	v, ok := field.ProviderTypes[provider]
	return v, ok
}

// ProviderTypeNames lists configured provider types in the pg, mysql, mssql, sqlite order
func (field *Field) ProviderTypeNames() [][2]string {
	var out [][2]string
	for _, tag := range providerTypeTags {
		if v, ok := field.ProviderTypes[tag[1]]; ok {
			out = append(out, [2]string{tag[1], v})
		}
	}
	return out
}

func (schema *Schema) parseField(fieldStruct reflect.StructField) *Field {
	field := &Field{
		Name:              fieldStruct.Name,
		BindNames:         []string{fieldStruct.Name},
		FieldType:         fieldStruct.Type,
		IndirectFieldType: utils.Indirect(fieldStruct.Type),
		StructField:       fieldStruct,
		Readable:          true,
		Creatable:         true,
		Updatable:         true,
		Tag:               fieldStruct.Tag,
		TagSettings:       ParseTagSetting(fieldStruct.Tag.Get(TagKey), ";"),
		Schema:            schema,
	}

	switch fieldStruct.Type.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map:
		field.Nullable = true
	case reflect.Slice:
		field.Nullable = fieldStruct.Type.Elem().Kind() == reflect.Uint8
	}
	if val, ok := field.TagSettings["NULL"]; ok && utils.CheckTruth(val) {
		field.Nullable = true
	} else if val, ok := field.TagSettings["NOT NULL"]; ok && utils.CheckTruth(val) {
		field.Nullable = false
	}

	if dbName, ok := field.TagSettings["COLUMN"]; ok {
		field.DBName = dbName
	}

	if val, ok := field.TagSettings["PRIMARYKEY"]; ok && utils.CheckTruth(val) {
		field.PrimaryKey = true
	} else if val, ok := field.TagSettings["PRIMARY_KEY"]; ok && utils.CheckTruth(val) {
		field.PrimaryKey = true
	}

	if val, ok := field.TagSettings["IDENTITY"]; ok && utils.CheckTruth(val) {
		field.Identity = true
	} else if val, ok := field.TagSettings["AUTOINCREMENT"]; ok && utils.CheckTruth(val) {
		field.Identity = true
	}

	if num, ok := field.TagSettings["SIZE"]; ok {
		if size, err := strconv.Atoi(num); err == nil {
			field.Size = size
		} else {
			schema.err = fieldError(schema, field, "size", num, err)
		}
	}
	if p, ok := field.TagSettings["PRECISION"]; ok {
		if precision, err := strconv.Atoi(p); err == nil {
			field.Precision = precision
		} else {
			schema.err = fieldError(schema, field, "precision", p, err)
		}
	}
	if s, ok := field.TagSettings["SCALE"]; ok {
		if scale, err := strconv.Atoi(s); err == nil {
			field.Scale = scale
		} else {
			schema.err = fieldError(schema, field, "scale", s, err)
		}
	}

	if name, ok := field.TagSettings["DBTYPE"]; ok {
		if d, err := dbtype.Parse(name); err == nil {
			field.DbType = d
		} else {
			schema.err = fieldError(schema, field, "dbtype", name, err)
		}
	}

	for _, tag := range providerTypeTags {
		if v, ok := field.TagSettings[tag[0]]; ok && v != "" {
			if field.ProviderTypes == nil {
				field.ProviderTypes = map[string]string{}
			}
			field.ProviderTypes[tag[1]] = v
		}
	}

	if name, ok := field.TagSettings["HANDLER"]; ok {
		field.HandlerName = name
	}

	// setup permission
	if _, ok := field.TagSettings["-"]; ok {
		field.Readable = false
		field.Creatable = false
		field.Updatable = false
	}

	if v, ok := field.TagSettings["->"]; ok {
		field.Creatable = false
		field.Updatable = false
		field.Readable = !strings.EqualFold(v, "false")
	}

	if v, ok := field.TagSettings["<-"]; ok {
		field.Creatable = true
		field.Updatable = true
		if v != "<-" {
			field.Creatable = strings.Contains(v, "create")
			field.Updatable = strings.Contains(v, "update")
		}
	}

	return field
}

// isEmbedded reports whether an anonymous field should be flattened into its owner
func isEmbedded(fieldStruct reflect.StructField, settings map[string]string) bool {
	if _, ok := settings["-"]; ok {
		return false
	}
	if _, ok := settings["EMBEDDED"]; !ok && !fieldStruct.Anonymous {
		return false
	}
	t := utils.Indirect(fieldStruct.Type)
	if t.Kind() != reflect.Struct || t.ConvertibleTo(TimeReflectType) {
		return false
	}
	if reflect.PtrTo(t).Implements(valuerType) || t.Implements(valuerType) {
		return false
	}
	return true
}

var valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()

// create valuer and reflect accessor once, on parse
func (field *Field) setupValuerAndSetter() {
	index := field.StructField.Index

	if len(index) == 1 {
		i := index[0]
		field.ValueOf = func(value reflect.Value) (interface{}, bool) {
			fieldValue := reflect.Indirect(value).Field(i)
			return fieldValue.Interface(), fieldValue.IsZero()
		}
		field.ReflectValueOf = func(value reflect.Value) reflect.Value {
			return reflect.Indirect(value).Field(i)
		}
		return
	}

	// embedded path: nil pointer parents read as zero and are allocated on write
	field.ValueOf = func(value reflect.Value) (interface{}, bool) {
		v := reflect.Indirect(value)
		for n, idx := range index {
			v = v.Field(idx)
			if n < len(index)-1 && v.Kind() == reflect.Ptr {
				if v.IsNil() {
					return reflect.Zero(field.FieldType).Interface(), true
				}
				v = v.Elem()
			}
		}
		return v.Interface(), v.IsZero()
	}
	field.ReflectValueOf = func(value reflect.Value) reflect.Value {
		v := reflect.Indirect(value)
		for n, idx := range index {
			v = v.Field(idx)
			if n < len(index)-1 && v.Kind() == reflect.Ptr {
				if v.IsNil() {
					v.Set(reflect.New(v.Type().Elem()))
				}
				v = v.Elem()
			}
		}
		return v
	}
}
