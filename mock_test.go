package microorm_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/microorm"
	"gorm.io/microorm/builder"
	"gorm.io/microorm/dialect"
	"gorm.io/microorm/dialects/mysql"
	"gorm.io/microorm/dialects/postgres"
)

func mockDB(t *testing.T, d dialect.Dialect, opts ...microorm.Option) (*microorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		sqlDB.Close()
	})
	return microorm.New(sqlDB, d, options(opts...)...), mock
}

func expectPostgresColumns(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("public", "customers").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "is_nullable", "data_type", "udt_name",
			"character_maximum_length", "numeric_precision", "numeric_scale", "is_identity", "column_default", "primary"}).
			AddRow("id", "NO", "integer", "int4", nil, 32, 0, "YES", "", true).
			AddRow("name", "NO", "character varying", "varchar", 64, nil, nil, "NO", "", false).
			AddRow("email", "YES", "text", "text", nil, nil, nil, "NO", "", false).
			AddRow("status", "YES", "text", "text", nil, nil, nil, "NO", "", false).
			AddRow("age", "YES", "integer", "int4", nil, 32, 0, "NO", "", false))
}

func TestPostgresInsertReturning(t *testing.T) {
	ctx := context.Background()
	db, mock := mockDB(t, postgres.New())
	expectPostgresColumns(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "customers" ("name", "email", "status", "age") VALUES ($1, $2, $3, $4) RETURNING "id"`)).
		WithArgs("Ada", "ada@example.com", "Active", 36).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	ada := &Customer{Name: "Ada", Email: ptr("ada@example.com"), Status: Active, Age: ptr(36)}
	id, err := db.Insert(ctx, ada)
	require.NoError(t, err)
	assert.EqualValues(t, 7, id)
	assert.Equal(t, 7, ada.ID)
}

func TestPostgresUpdateParameterOrder(t *testing.T) {
	ctx := context.Background()
	db, mock := mockDB(t, postgres.New())
	expectPostgresColumns(mock)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "customers" SET "name" = $1, "email" = $2, "status" = $3, "age" = $4 WHERE "id" = $5`)).
		WithArgs("Ada", nil, "Blocked", nil, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := db.Update(ctx, &Customer{ID: 7, Name: "Ada", Status: Blocked})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPostgresMergeReturning(t *testing.T) {
	ctx := context.Background()
	db, mock := mockDB(t, postgres.New())
	expectPostgresColumns(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "customers" ("name", "email", "status", "age") VALUES ($1, $2, $3, $4) ON CONFLICT ("email") DO UPDATE SET "name" = EXCLUDED."name", "status" = EXCLUDED."status", "age" = EXCLUDED."age" RETURNING "id"`)).
		WithArgs("Ada", "ada@example.com", "Active", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	ada := &Customer{Name: "Ada", Email: ptr("ada@example.com"), Status: Active}
	id, err := db.Merge(ctx, ada, microorm.WithQualifiers("email"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, id)
	assert.Equal(t, 3, ada.ID)
}

func TestPostgresDeleteAndCount(t *testing.T) {
	ctx := context.Background()
	db, mock := mockDB(t, postgres.New())
	expectPostgresColumns(mock)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "customers" WHERE "status" = $1 AND "id" IN ($2, $3)`)).
		WithArgs("Blocked", 1, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "customers" WHERE "age" > $1`)).
		WithArgs(30).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))

	n, err := db.Delete(ctx, Customer{}, []builder.QueryField{builder.Eq("status", Blocked), builder.AnyOf("id", []int{1, 2})})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	count, err := db.Count(ctx, Customer{}, builder.Gt("age", 30))
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
}

func TestPostgresTracerSeesParameters(t *testing.T) {
	ctx := context.Background()
	var logs []*microorm.TraceLog
	db, mock := mockDB(t, postgres.New(), microorm.WithTracer(microorm.TracerFuncs{
		After: func(ctx context.Context, log *microorm.TraceLog) { logs = append(logs, log) },
	}))
	expectPostgresColumns(mock)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "customers" WHERE "id" = $1`)).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := db.Delete(ctx, &Customer{ID: 9}, nil, microorm.WithTraceKey("purge"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "purge", logs[0].Key)
	assert.Equal(t, map[string]interface{}{"id": 9}, logs[0].Parameters)
	assert.EqualValues(t, 1, logs[0].RowsAffected)
	assert.NoError(t, logs[0].Err)
}

func TestMySQLInsertAllFirstInsertID(t *testing.T) {
	ctx := context.Background()
	db, mock := mockDB(t, mysql.New())

	mock.ExpectQuery("FROM information_schema.COLUMNS").
		WithArgs("customers").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_KEY", "IS_NULLABLE", "COLUMN_TYPE", "EXTRA",
			"CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION", "NUMERIC_SCALE"}).
			AddRow("id", "PRI", "NO", "int", "auto_increment", nil, 10, 0).
			AddRow("name", "", "NO", "varchar(64)", "", 64, nil, nil).
			AddRow("status", "", "YES", "varchar(16)", "", 16, nil, nil))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `customers` (`name`, `status`) VALUES (?, ?), (?, ?), (?, ?)")).
		WithArgs("Ada", "Active", "Grace", "Active", "Alan", "Blocked").
		WillReturnResult(sqlmock.NewResult(10, 3))

	customers := []*Customer{
		{Name: "Ada", Status: Active},
		{Name: "Grace", Status: Active},
		{Name: "Alan", Status: Blocked},
	}
	n, err := db.InsertAll(ctx, customers, microorm.WithFields("name", "status"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, 10, customers[0].ID)
	assert.Equal(t, 11, customers[1].ID)
	assert.Equal(t, 12, customers[2].ID)
}

func TestMySQLMergeReadsIdentityBack(t *testing.T) {
	ctx := context.Background()
	db, mock := mockDB(t, mysql.New())

	mock.ExpectQuery("FROM information_schema.COLUMNS").
		WithArgs("customers").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_KEY", "IS_NULLABLE", "COLUMN_TYPE", "EXTRA",
			"CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION", "NUMERIC_SCALE"}).
			AddRow("id", "PRI", "NO", "int", "auto_increment", nil, 10, 0).
			AddRow("email", "UNI", "NO", "varchar(64)", "", 64, nil, nil).
			AddRow("name", "", "NO", "varchar(64)", "", 64, nil, nil))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `customers` (`email`, `name`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)")).
		WithArgs("ada@example.com", "Ada").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id` FROM `customers` WHERE `email` = ? LIMIT 1")).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	ada := &Customer{Name: "Ada", Email: ptr("ada@example.com")}
	id, err := db.Merge(ctx, ada, microorm.WithQualifiers("email"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, id)
	assert.Equal(t, 5, ada.ID)
}
