// Package errtranslator recognises unique constraint violations in the errors
// of the supported drivers.
package errtranslator

import "fmt"

type ErrTranslator interface {
	Translate(err error) error
}

// ErrDuplicatedKey a unique constraint violation, Err is the driver error
type ErrDuplicatedKey struct {
	Code    interface{}
	Message string
	Err     error
}

func (e ErrDuplicatedKey) Error() string {
	return fmt.Sprintf("duplicated key not allowed, code: %v, message: %s", e.Code, e.Message)
}

func (e ErrDuplicatedKey) Unwrap() error { return e.Err }

// For returns the translator of the dialect name, nil when there is none
func For(dialect string) ErrTranslator {
	switch dialect {
	case "sqlite", "sqlite3":
		return SqliteErrTranslator{}
	case "postgres":
		return PostgresErrTranslator{}
	case "mysql":
		return MysqlErrTranslator{}
	}
	return nil
}
