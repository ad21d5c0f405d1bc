package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/unipanel/unipanel-api/internal/models"
)

func TestStudentRepositoryListFiltersDeleted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_number", "full_name", "academic_standing"}).
		AddRow("stu-1", "S-1001", "Dana Velez", models.StandingGood)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE deleted_at IS NULL")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE deleted_at IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs("stu-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), "stu-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateAcademicRecord(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET cumulative_gpa = $2")).
		WithArgs("stu-1", 3.42, 45.0, 48.0, models.StandingGood, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateAcademicRecord(context.Background(), "stu-1", models.AcademicRecord{
		CumulativeGPA:         3.42,
		TotalCreditsEarned:    45,
		TotalCreditsAttempted: 48,
		Standing:              models.StandingGood,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
