package errtranslator

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

type MysqlErrTranslator struct{}

func (MysqlErrTranslator) Translate(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return ErrDuplicatedKey{Code: mysqlErr.Number, Message: mysqlErr.Message, Err: err}
	}
	return err
}
