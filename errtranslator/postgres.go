package errtranslator

import (
	"errors"

	"github.com/lib/pq"
)

// unique_violation
const postgresUniqueViolation = pq.ErrorCode("23505")

type PostgresErrTranslator struct{}

func (PostgresErrTranslator) Translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == postgresUniqueViolation {
		return ErrDuplicatedKey{Code: string(pqErr.Code), Message: pqErr.Message, Err: err}
	}
	return err
}
