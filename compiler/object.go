package compiler

import (
	"reflect"

	"gorm.io/microorm/cache"
	"gorm.io/microorm/dynamic"
	"gorm.io/microorm/reader"
	"gorm.io/microorm/schema"
)

// ObjectFunc materialises the current row as an ordered map
type ObjectFunc func(r reader.DataReader) (*dynamic.Object, error)

var objectType = reflect.TypeOf((*dynamic.Object)(nil))

// ObjectReader returns the function materialising rows of r as dynamic objects
// keyed by column name. Null cells are stored as nil; other cells keep the type
// the reader reports for their column.
func (c *Compiler) ObjectReader(r reader.DataReader, fields schema.DbFields) (ObjectFunc, error) {
	columns := readerFields(r, fields)
	key := cache.Key{Type: objectType, Shape: cache.ReaderToMap, Fields: readerSignature(columns)}

	fn, err := c.functions.GetOrCompile(key, func() (interface{}, error) {
		return c.plan().object(columns), nil
	})
	if err != nil {
		return nil, err
	}
	return fn.(ObjectFunc), nil
}

func (p *plan) object(columns []readerField) ObjectFunc {
	type entry struct {
		name string
		ord  int
		read reader.Accessor
	}
	entries := make([]entry, len(columns))
	for i, col := range columns {
		// every cell of a map may be null
		col.DbField = nil
		acc, _ := accessor(col)
		entries[i] = entry{name: col.Name, ord: col.Ordinal, read: acc}
	}

	return func(r reader.DataReader) (*dynamic.Object, error) {
		obj := dynamic.New(len(entries))
		for _, e := range entries {
			if r.IsDBNull(e.ord) {
				obj.Set(e.name, nil)
				continue
			}
			v, err := e.read.Read(r, e.ord)
			if err != nil {
				return nil, err
			}
			obj.Set(e.name, v.Interface())
		}
		return obj, nil
	}
}
