package errtranslator

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

type SqliteErrTranslator struct{}

func (SqliteErrTranslator) Translate(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return ErrDuplicatedKey{Code: int(sqliteErr.ExtendedCode), Message: sqliteErr.Error(), Err: err}
	}
	return err
}
