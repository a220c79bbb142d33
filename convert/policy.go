// Package convert builds value converters between column and field types.
package convert

import (
	"fmt"
	"strings"

	"gorm.io/microorm/dbtype"
)

// ConversionType selects how mismatched types are coerced
type ConversionType int

const (
	// Default converts only where Go allows a direct conversion, plus enums
	Default ConversionType = iota
	// Automatic also parses and formats between text, numbers, booleans and times
	Automatic
)

func (c ConversionType) String() string {
	if c == Automatic {
		return "automatic"
	}
	return "default"
}

// ParseConversionType parses default or automatic, ignoring case
func ParseConversionType(s string) (ConversionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return Default, nil
	case "automatic":
		return Automatic, nil
	}
	return Default, fmt.Errorf("unknown conversion type %q", s)
}

// Policy conversion switches read at compile time
type Policy struct {
	ConversionType ConversionType
	// EnumDefaultDatabaseType decides how enums bound to columns without a
	// descriptor are sent; textual types send the name, others the number
	EnumDefaultDatabaseType dbtype.DbType
}

// DefaultPolicy enums as names, no automatic coercion
func DefaultPolicy() Policy {
	return Policy{ConversionType: Default, EnumDefaultDatabaseType: dbtype.String}
}
