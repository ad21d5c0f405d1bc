package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/unipanel/unipanel-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryExistsNonTerminal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND section_id = $2")).
		WithArgs("stu-1", "sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsNonTerminal(context.Background(), "stu-1", "sec-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsNonTerminalNoRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments")).
		WithArgs("stu-1", "sec-1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsNonTerminal(context.Background(), "stu-1", "sec-1")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithCounterEnrolled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_sections SET current_enrollment = current_enrollment + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CreateWithCounter(context.Background(), &models.Enrollment{
		StudentID: "stu-1",
		SectionID: "sec-1",
		Status:    models.EnrollmentStatusEnrolled,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithCounterWaitlisted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_sections SET waitlist_count = waitlist_count + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CreateWithCounter(context.Background(), &models.Enrollment{
		StudentID: "stu-1",
		SectionID: "sec-1",
		Status:    models.EnrollmentStatusWaitlisted,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDropEnrolledPromotesFIFO(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	at := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = 'DROPPED'")).
		WithArgs("enr-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_sections SET current_enrollment = current_enrollment - 1")).
		WithArgs("sec-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	rows := sqlmock.NewRows([]string{"id", "student_id", "section_id", "status", "enrollment_date"}).
		AddRow("enr-2", "stu-2", "sec-1", models.EnrollmentStatusWaitlisted, at.AddDate(0, 0, -3))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY e.enrollment_date ASC LIMIT 1 FOR UPDATE")).
		WithArgs("sec-1").
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = 'ENROLLED'")).
		WithArgs("enr-2", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("waitlist_count = waitlist_count - 1")).
		WithArgs("sec-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	promoted, err := repo.DropEnrolled(context.Background(), "enr-1", "sec-1", at)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	require.Equal(t, "enr-2", promoted.ID)
	require.Equal(t, models.EnrollmentStatusEnrolled, promoted.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDropEnrolledEmptyWaitlist(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	at := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = 'DROPPED'")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("current_enrollment = current_enrollment - 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 1 FOR UPDATE")).
		WithArgs("sec-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	promoted, err := repo.DropEnrolled(context.Background(), "enr-1", "sec-1", at)
	require.NoError(t, err)
	require.Nil(t, promoted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryWithdrawRecordsW(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = 'WITHDRAWN'")).
		WithArgs("enr-1", at, models.GradeWithdrawn).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("current_enrollment = current_enrollment - 1")).
		WithArgs("sec-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Withdraw(context.Background(), "enr-1", "sec-1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateGradeFinalizedGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("AND is_grade_finalized = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	points := 4.0
	err := repo.UpdateGrade(context.Background(), "enr-1", "A", &points, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFinalizeBulkSkipsFinalized(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	at := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET is_grade_finalized = TRUE")).
		WithArgs("enr-1", models.EnrollmentStatusCompleted, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET is_grade_finalized = TRUE")).
		WithArgs("enr-2", models.EnrollmentStatusFailed, at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	count, err := repo.FinalizeBulk(context.Background(), []models.GradeFinalization{
		{EnrollmentID: "enr-1", StudentID: "stu-1", Status: models.EnrollmentStatusCompleted, FinalizedAt: at},
		{EnrollmentID: "enr-2", StudentID: "stu-2", Status: models.EnrollmentStatusFailed, FinalizedAt: at},
	})
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFinalizeBulkEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	count, err := repo.FinalizeBulk(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListDetailBySection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "student_id", "section_id", "status", "is_grade_finalized",
		"enrollment_date", "created_at", "updated_at",
		"student_name", "student_number", "course_code", "course_title", "credit_hours", "term_name",
	}).
		AddRow("e1", "stu-1", "sec-1", "ENROLLED", false, now, now, now,
			"Ada Lovelace", "S-001", "CS101", "Intro", 3.0, "Fall 2026").
		AddRow("e2", "stu-2", "sec-1", "WAITLISTED", false, now, now, now,
			"Grace Hopper", "S-002", "CS101", "Intro", 3.0, "Fall 2026")

	mock.ExpectQuery("ORDER BY st.full_name ASC").
		WithArgs("sec-1").
		WillReturnRows(rows)

	details, err := repo.ListDetailBySection(context.Background(), "sec-1")
	require.NoError(t, err)
	require.Len(t, details, 2)
	require.Equal(t, "Ada Lovelace", details[0].StudentName)
	require.Equal(t, models.EnrollmentStatusWaitlisted, details[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
