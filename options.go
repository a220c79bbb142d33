package microorm

import (
	"gorm.io/microorm/builder"
)

// OperationOption configures one CRUD call
type OperationOption func(*operation)

type operation struct {
	table      string
	fields     []string
	qualifiers []string
	batchSize  int
	orderBy    []builder.OrderField
	top        int
	traceKey   string
}

func newOperation(name string, opts []OperationOption) *operation {
	op := &operation{traceKey: name}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

// WithTable names the table instead of deriving it from the entity type
func WithTable(table string) OperationOption {
	return func(op *operation) {
		op.table = table
	}
}

// WithFields restricts the columns written or read
func WithFields(fields ...string) OperationOption {
	return func(op *operation) {
		op.fields = append(op.fields, fields...)
	}
}

// WithQualifiers the columns identifying rows of an update, merge or delete,
// the primary key by default
func WithQualifiers(qualifiers ...string) OperationOption {
	return func(op *operation) {
		op.qualifiers = append(op.qualifiers, qualifiers...)
	}
}

// WithBatchSize rows per statement of InsertAll
func WithBatchSize(size int) OperationOption {
	return func(op *operation) {
		op.batchSize = size
	}
}

func WithOrderBy(orderBy ...builder.OrderField) OperationOption {
	return func(op *operation) {
		op.orderBy = append(op.orderBy, orderBy...)
	}
}

// WithTop limits the rows of a query
func WithTop(top int) OperationOption {
	return func(op *operation) {
		op.top = top
	}
}

// WithTraceKey the key tracers see, the operation name by default
func WithTraceKey(key string) OperationOption {
	return func(op *operation) {
		op.traceKey = key
	}
}
