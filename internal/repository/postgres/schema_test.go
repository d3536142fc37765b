package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsCoverTables(t *testing.T) {
	ms, err := EmbeddedMigrations()
	require.NoError(t, err)
	require.Len(t, ms, 3)
	assert.Equal(t, "001_employees.sql", ms[0].Name)

	all := ""
	for _, m := range ms {
		all += m.SQL
	}
	for _, table := range Tables {
		assert.Contains(t, all, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, all, "UNIQUE (workspace_id, role_id, location_id, level_id, effective_date)")
	assert.Contains(t, all, "salary_effective_date")
}

func TestMigrationsOrderAndSkip(t *testing.T) {
	fsys := fstest.MapFS{
		"002_b.sql": {Data: []byte("SELECT 2;")},
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"003_c.sql": {Data: []byte("  \n")},
		"README.md": {Data: []byte("notes")},
		"sub/x.sql": {Data: []byte("SELECT 3;")},
	}
	ms, err := Migrations(fsys)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "001_a.sql", ms[0].Name)
	assert.Equal(t, "002_b.sql", ms[1].Name)
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ms := []Migration{{"001_a.sql", "CREATE A"}, {"002_b.sql", "CREATE B"}, {"003_c.sql", "CREATE C"}}
	mock.ExpectBegin()
	mock.ExpectExec("CREATE A").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("CREATE B").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	var applied []string
	err = Apply(context.Background(), db, ms, func(name string) { applied = append(applied, name) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "002_b.sql")
	assert.Equal(t, []string{"001_a.sql"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT tablename FROM pg_tables")).
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}).AddRow("benchmarks").AddRow("employees"))

	tables, err := ListTables(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"benchmarks", "employees"}, tables)
	assert.NoError(t, mock.ExpectationsWereMet())
}
