package microorm

import (
	"errors"
	"fmt"

	"gorm.io/microorm/builder"
	"gorm.io/microorm/errtranslator"
	"gorm.io/microorm/logger"
)

var (
	// ErrRecordNotFound record not found error
	ErrRecordNotFound = logger.ErrRecordNotFound
	// ErrMissingFields no entity field matches a column of the table
	ErrMissingFields = errors.New("no matching fields")
	// ErrMissingTable the table could not be resolved or has no columns
	ErrMissingTable = errors.New("missing table")
	// ErrMissingQualifiers an update, merge or delete without qualifiers
	ErrMissingQualifiers = errors.New("qualifiers required")
	// ErrCancelledExecution a tracer cancelled the execution and asked for an error
	ErrCancelledExecution = errors.New("execution cancelled")
	// ErrNotSupported the dialect can not express the statement
	ErrNotSupported = builder.ErrNotSupported
	// ErrInvalidDestination query results need a pointer to a slice
	ErrInvalidDestination = errors.New("invalid destination")
	// ErrDuplicatedKey a unique constraint rejected the statement
	ErrDuplicatedKey = errors.New("duplicated key not allowed")
)

// translateErr wraps unique constraint violations of the dialect's driver
// into ErrDuplicatedKey, keeping the driver error in the chain
func translateErr(dialect string, err error) error {
	if err == nil {
		return nil
	}
	if tr := errtranslator.For(dialect); tr != nil {
		var dup errtranslator.ErrDuplicatedKey
		if errors.As(tr.Translate(err), &dup) {
			return fmt.Errorf("%w: %w", ErrDuplicatedKey, err)
		}
	}
	return err
}
