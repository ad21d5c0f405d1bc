package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestTermRepositorySetCurrentUnsetsOthersFirst(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET is_current = FALSE, updated_at = $1 WHERE is_current = TRUE AND id <> $2")).
		WithArgs(sqlmock.AnyArg(), "term-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET is_current = TRUE, updated_at = $2 WHERE id = $1")).
		WithArgs("term-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetCurrent(context.Background(), "term-2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositorySetCurrentRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET is_current = FALSE")).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	require.Error(t, repo.SetCurrent(context.Background(), "term-2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryFindCurrent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	start := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "name", "academic_year", "start_date", "is_current"}).
		AddRow("term-1", "Spring", "2025-2026", start, true)
	mock.ExpectQuery(regexp.QuoteMeta("FROM terms WHERE is_current = TRUE LIMIT 1")).
		WillReturnRows(rows)

	term, err := repo.FindCurrent(context.Background())
	require.NoError(t, err)
	require.Equal(t, "term-1", term.ID)
	require.True(t, term.IsCurrent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryExistsByYearAndNameExcludes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE academic_year = $1 AND name = $2 AND id <> $3")).
		WithArgs("2025-2026", "Spring", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	exists, err := repo.ExistsByYearAndName(context.Background(), "2025-2026", "Spring", "term-1")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
