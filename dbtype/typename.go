package dbtype

import (
	"fmt"
	"reflect"
	"sync"

	"gorm.io/microorm/utils"
)

// registered types, by name and name by type, used to serialise field descriptors
var (
	typesByName sync.Map
	namesByType sync.Map
)

func init() {
	for t := range clientToDbType {
		RegisterType(t)
	}
}

// RegisterType makes t resolvable by TypeByName
func RegisterType(t reflect.Type) string {
	name := utils.TypeName(t)
	typesByName.Store(name, t)
	namesByType.Store(t, name)
	return name
}

// TypeName returns the serialisable name of t, "" for nil
func TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if name, ok := namesByType.Load(t); ok {
		return name.(string)
	}
	return utils.TypeName(t)
}

// TypeByName resolves a name produced by TypeName. Only registered types resolve.
func TypeByName(name string) (reflect.Type, error) {
	if name == "" {
		return nil, nil
	}
	if t, ok := typesByName.Load(name); ok {
		return t.(reflect.Type), nil
	}
	return nil, fmt.Errorf("type %q is not registered", name)
}
