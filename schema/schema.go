package schema

import (
	"errors"
	"fmt"
	"go/ast"
	"reflect"
	"sync"

	"gorm.io/microorm/utils"
)

// ErrUnsupportedDataType unsupported data type
var ErrUnsupportedDataType = errors.New("unsupported data type")

// Tabler overrides the table name derived by the naming strategy
type Tabler interface {
	TableName() string
}

// Schema is the mapping of one entity type
type Schema struct {
	Name                    string
	ModelType               reflect.Type
	Table                   string
	PrioritizedPrimaryField *Field
	PrimaryFields           []*Field
	Identity                *Field
	Fields                  []*Field
	FieldsByName            map[string]*Field
	FieldsByDBName          map[string]*Field
	err                     error
	namer                   Namer
	lookup                  map[string]*Field
}

func (schema Schema) String() string {
	if schema.ModelType.Name() == "" {
		return fmt.Sprintf("%s(%s)", schema.Name, schema.Table)
	}
	return fmt.Sprintf("%s.%s", schema.ModelType.PkgPath(), schema.ModelType.Name())
}

// LookUpField finds a field by column then field name, ignoring case and quoting
func (schema Schema) LookUpField(name string) *Field {
	if field, ok := schema.FieldsByDBName[name]; ok {
		return field
	}
	if field, ok := schema.FieldsByName[name]; ok {
		return field
	}
	return schema.lookup[NormalizeName(name)]
}

// Parse returns the cached schema of dest's struct type, parsing it on first use.
// dest may be a value, pointer, slice or reflect.Type of the struct.
func Parse(dest interface{}, cacheStore *sync.Map, namer Namer) (*Schema, error) {
	if dest == nil {
		return nil, fmt.Errorf("%w: %+v", ErrUnsupportedDataType, dest)
	}

	modelType, ok := dest.(reflect.Type)
	if !ok {
		modelType = reflect.TypeOf(dest)
	}
	for modelType.Kind() == reflect.Slice || modelType.Kind() == reflect.Array || modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}

	if modelType.Kind() != reflect.Struct || modelType.ConvertibleTo(TimeReflectType) {
		if modelType.PkgPath() == "" {
			return nil, fmt.Errorf("%w: %+v", ErrUnsupportedDataType, dest)
		}
		return nil, fmt.Errorf("%w: %s.%s", ErrUnsupportedDataType, modelType.PkgPath(), modelType.Name())
	}

	if v, ok := cacheStore.Load(modelType); ok {
		return v.(*Schema), nil
	}

	if namer == nil {
		namer = NamingStrategy{}
	}

	modelValue := reflect.New(modelType)
	tableName := namer.TableName(modelType.Name())
	if tabler, ok := modelValue.Interface().(Tabler); ok {
		tableName = tabler.TableName()
	}

	schema := &Schema{
		Name:           modelType.Name(),
		ModelType:      modelType,
		Table:          tableName,
		FieldsByName:   map[string]*Field{},
		FieldsByDBName: map[string]*Field{},
		lookup:         map[string]*Field{},
		namer:          namer,
	}

	schema.Fields = schema.parseFields(modelType, nil, nil)
	if schema.err != nil {
		return nil, schema.err
	}

	for _, field := range schema.Fields {
		if field.DBName == "" {
			field.DBName = namer.ColumnName(schema.Table, field.Name)
		}

		// shortest path or first appear wins
		if v, ok := schema.FieldsByDBName[field.DBName]; !ok || len(field.BindNames) < len(v.BindNames) {
			schema.FieldsByDBName[field.DBName] = field
			schema.FieldsByName[field.Name] = field
		}
		if _, ok := schema.FieldsByName[field.Name]; !ok {
			schema.FieldsByName[field.Name] = field
		}
	}

	for _, field := range schema.Fields {
		if schema.FieldsByDBName[field.DBName] != field {
			continue
		}
		if field.PrimaryKey {
			if schema.PrioritizedPrimaryField == nil {
				schema.PrioritizedPrimaryField = field
			}
			schema.PrimaryFields = append(schema.PrimaryFields, field)
		}
		if field.Identity && schema.Identity == nil {
			schema.Identity = field
		}
		// field names first so a column named like another field does not shadow it
		if key := NormalizeName(field.Name); schema.lookup[key] == nil {
			schema.lookup[key] = field
		}
	}
	for _, field := range schema.Fields {
		if schema.FieldsByDBName[field.DBName] == field {
			schema.lookup[NormalizeName(field.DBName)] = field
		}
	}

	if f := schema.LookUpField("id"); f != nil {
		if f.PrimaryKey {
			schema.PrioritizedPrimaryField = f
		} else if len(schema.PrimaryFields) == 0 {
			f.PrimaryKey = true
			schema.PrioritizedPrimaryField = f
			schema.PrimaryFields = append(schema.PrimaryFields, f)
		}
	}

	for _, field := range schema.Fields {
		field.setupValuerAndSetter()
	}

	if v, loaded := cacheStore.LoadOrStore(modelType, schema); loaded {
		return v.(*Schema), nil
	}
	return schema, nil
}

func (schema *Schema) parseFields(t reflect.Type, parentIndex []int, parentNames []string) []*Field {
	var fields []*Field
	for i := 0; i < t.NumField(); i++ {
		fieldStruct := t.Field(i)
		if !ast.IsExported(fieldStruct.Name) {
			continue
		}

		settings := ParseTagSetting(fieldStruct.Tag.Get(TagKey), ";")
		index := append(append([]int{}, parentIndex...), fieldStruct.Index...)
		if isEmbedded(fieldStruct, settings) {
			names := append(append([]string{}, parentNames...), fieldStruct.Name)
			embedded := schema.parseFields(utils.Indirect(fieldStruct.Type), index, names)
			if prefix, ok := settings["EMBEDDEDPREFIX"]; ok {
				for _, ef := range embedded {
					ef.DBName = prefix + schema.namer.ColumnName(schema.Table, ef.Name)
					if dbName, ok := ef.TagSettings["COLUMN"]; ok {
						ef.DBName = prefix + dbName
					}
				}
			}
			fields = append(fields, embedded...)
			continue
		}

		field := schema.parseField(fieldStruct)
		field.StructField.Index = index
		field.BindNames = append(append([]string{}, parentNames...), fieldStruct.Name)
		if _, ok := field.TagSettings["-"]; ok {
			continue
		}
		fields = append(fields, field)
	}
	return fields
}

// DbFields describes the schema as field descriptors, for tables whose columns
// follow the entity exactly
func (schema *Schema) DbFields() DbFields {
	fields := make(DbFields, 0, len(schema.Fields))
	for _, field := range schema.Fields {
		if schema.FieldsByDBName[field.DBName] != field {
			continue
		}
		fields = append(fields, &DbField{
			Name:       field.DBName,
			IsPrimary:  field.PrimaryKey,
			IsIdentity: field.Identity,
			IsNullable: field.Nullable,
			Type:       field.IndirectFieldType,
			Size:       field.Size,
			Precision:  field.Precision,
			Scale:      field.Scale,
		})
	}
	return fields
}

func fieldError(schema *Schema, field *Field, setting, value string, err error) error {
	return fmt.Errorf("invalid %s %q on %s.%s: %w", setting, value, schema.Name, field.Name, err)
}
