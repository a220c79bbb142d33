// Package dbtype maps Go types to database parameter types and back.
package dbtype

import (
	"fmt"
	"strings"
)

// DbType is the provider independent type of a command parameter
type DbType int

// Unknown is the zero value, it means no type was resolved
const (
	Unknown DbType = iota
	AnsiString
	Binary
	Byte
	Boolean
	Currency
	Date
	DateTime
	Decimal
	Double
	Guid
	Int16
	Int32
	Int64
	Object
	SByte
	Single
	String
	Time
	UInt16
	UInt32
	UInt64
	VarNumeric
	AnsiStringFixedLength
	StringFixedLength
	Xml
	DateTime2
	DateTimeOffset
)

var names = [...]string{
	Unknown:               "Unknown",
	AnsiString:            "AnsiString",
	Binary:                "Binary",
	Byte:                  "Byte",
	Boolean:               "Boolean",
	Currency:              "Currency",
	Date:                  "Date",
	DateTime:              "DateTime",
	Decimal:               "Decimal",
	Double:                "Double",
	Guid:                  "Guid",
	Int16:                 "Int16",
	Int32:                 "Int32",
	Int64:                 "Int64",
	Object:                "Object",
	SByte:                 "SByte",
	Single:                "Single",
	String:                "String",
	Time:                  "Time",
	UInt16:                "UInt16",
	UInt32:                "UInt32",
	UInt64:                "UInt64",
	VarNumeric:            "VarNumeric",
	AnsiStringFixedLength: "AnsiStringFixedLength",
	StringFixedLength:     "StringFixedLength",
	Xml:                   "Xml",
	DateTime2:             "DateTime2",
	DateTimeOffset:        "DateTimeOffset",
}

func (d DbType) String() string {
	if d >= 0 && int(d) < len(names) {
		return names[d]
	}
	return fmt.Sprintf("DbType(%d)", int(d))
}

// IsText reports whether values of d are sent as text
func (d DbType) IsText() bool {
	switch d {
	case AnsiString, String, AnsiStringFixedLength, StringFixedLength, Xml:
		return true
	}
	return false
}

// Parse returns the DbType named name, ignoring case
func Parse(name string) (DbType, error) {
	for i, n := range names {
		if i > 0 && strings.EqualFold(n, strings.TrimSpace(name)) {
			return DbType(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown db type %q", name)
}
