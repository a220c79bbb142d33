package compiler

import (
	"errors"

	"gorm.io/microorm/convert"
	"gorm.io/microorm/handler"
)

var (
	// ErrNoMatchingBindings no resultset column matched a property or constructor parameter
	ErrNoMatchingBindings = errors.New("no matching bindings")
	// ErrUnmatchedConstructorParameters some constructor parameters have no column
	ErrUnmatchedConstructorParameters = errors.New("unmatched constructor parameters")
	// ErrMissingAccessor the reader has no accessor for a column type
	ErrMissingAccessor = errors.New("missing reader accessor")
	// ErrNoConversion no converter exists between a column type and its target
	ErrNoConversion = convert.ErrNoConversion
	// ErrNoDbTypeResolution the DbType of an enum could not be resolved
	ErrNoDbTypeResolution = errors.New("no db type resolution")
	// ErrHandlerTypeMismatch a handler does not fit the type it is bound to
	ErrHandlerTypeMismatch = handler.ErrHandlerTypeMismatch
	// ErrNullClassHandlerResult a class handler returned nil
	ErrNullClassHandlerResult = errors.New("class handler returned nil")
	// ErrBatchSizeExceeded more entities were passed than the function was compiled for
	ErrBatchSizeExceeded = errors.New("batch size exceeded")
	// ErrUnsupportedEntity the type can not be compiled
	ErrUnsupportedEntity = errors.New("unsupported entity")
	// ErrMissingProperty a field has no property on the entity
	ErrMissingProperty = errors.New("missing property")
)
