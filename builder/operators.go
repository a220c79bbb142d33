package builder

import (
	"fmt"
	"reflect"
	"strconv"
)

// Operation compares a field with a value
type Operation int

const (
	Equal Operation = iota
	NotEqual
	GreaterThan
	GreaterThanOrEqual
	LessThan
	LessThanOrEqual
	Like
	NotLike
	In
	NotIn
)

var operators = [...]string{
	Equal:              "=",
	NotEqual:           "<>",
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
	LessThan:           "<",
	LessThanOrEqual:    "<=",
	Like:               "LIKE",
	NotLike:            "NOT LIKE",
	In:                 "IN",
	NotIn:              "NOT IN",
}

func (o Operation) String() string {
	if o >= 0 && int(o) < len(operators) {
		return operators[o]
	}
	return "Operation(" + strconv.Itoa(int(o)) + ")"
}

// QueryField one condition of a WHERE clause. Conditions are joined with AND;
// a nil value compared with Equal or NotEqual tests for NULL, In and NotIn
// take a slice.
type QueryField struct {
	Field     string
	Operation Operation
	Value     interface{}
}

func Eq(field string, value interface{}) QueryField { return QueryField{field, Equal, value} }

func Neq(field string, value interface{}) QueryField { return QueryField{field, NotEqual, value} }

func Gt(field string, value interface{}) QueryField { return QueryField{field, GreaterThan, value} }

func Gte(field string, value interface{}) QueryField {
	return QueryField{field, GreaterThanOrEqual, value}
}

func Lt(field string, value interface{}) QueryField { return QueryField{field, LessThan, value} }

func Lte(field string, value interface{}) QueryField {
	return QueryField{field, LessThanOrEqual, value}
}

func Contains(field string, pattern string) QueryField { return QueryField{field, Like, pattern} }

func AnyOf(field string, values interface{}) QueryField { return QueryField{field, In, values} }

// Parameter a value bound by a WHERE clause
type Parameter struct {
	Name  string
	Field string
	Value interface{}
}

// condition a QueryField with its parameter names resolved
type condition struct {
	QueryField
	params []Parameter
}

// ParameterName names the n-th parameter bound to field: field, field_1, field_2 ...
func ParameterName(field string, n int) string {
	if n == 0 {
		return field
	}
	return field + "_" + strconv.Itoa(n)
}

func resolve(where []QueryField) ([]condition, error) {
	seen := map[string]int{}
	next := func(field string) string {
		n := seen[field]
		seen[field] = n + 1
		return ParameterName(field, n)
	}

	conditions := make([]condition, len(where))
	for i, qf := range where {
		if qf.Field == "" {
			return nil, fmt.Errorf("%w: condition %d has no field", ErrInvalidQueryField, i)
		}
		if qf.Operation < Equal || qf.Operation > NotIn {
			return nil, fmt.Errorf("%w: %s %s", ErrInvalidQueryField, qf.Field, qf.Operation)
		}
		c := condition{QueryField: qf}
		switch {
		case qf.Operation == In || qf.Operation == NotIn:
			v := reflect.ValueOf(qf.Value)
			if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
				return nil, fmt.Errorf("%w: %s %s needs a slice, got %T", ErrInvalidQueryField, qf.Field, qf.Operation, qf.Value)
			}
			for j := 0; j < v.Len(); j++ {
				c.params = append(c.params, Parameter{Name: next(qf.Field), Field: qf.Field, Value: v.Index(j).Interface()})
			}
		case qf.Value == nil && (qf.Operation == Equal || qf.Operation == NotEqual):
		default:
			c.params = []Parameter{{Name: next(qf.Field), Field: qf.Field, Value: qf.Value}}
		}
		conditions[i] = c
	}
	return conditions, nil
}

// Parameters returns the parameters bound by where, in the order their
// markers appear in the statement
func Parameters(where []QueryField) ([]Parameter, error) {
	conditions, err := resolve(where)
	if err != nil {
		return nil, err
	}
	var params []Parameter
	for _, c := range conditions {
		params = append(params, c.params...)
	}
	return params, nil
}
