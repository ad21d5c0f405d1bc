package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unipanel/unipanel-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments. Writes that
// touch the denormalized section counters run inside one transaction with
// the enrollment mutation so the counters never drift within a request.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `e.id, e.student_id, e.section_id, e.status, e.grade, e.grade_points,
        e.numeric_grade, e.is_grade_finalized, e.enrollment_date, e.drop_date, e.withdrawal_date,
        e.grade_submitted_at, e.notes, e.created_at, e.updated_at`

const enrollmentDetailJoin = `FROM enrollments e
LEFT JOIN students st ON st.id = e.student_id
LEFT JOIN course_sections s ON s.id = e.section_id
LEFT JOIN courses c ON c.id = s.course_id
LEFT JOIN terms t ON t.id = s.term_id`

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("s.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrollment_date": "e.enrollment_date",
		"student_name":    "st.full_name",
		"course_code":     "c.code",
	}
	sortBy := allowedSorts[filter.SortBy]
	if sortBy == "" {
		sortBy = "e.enrollment_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s, st.full_name AS student_name, st.student_number AS student_number,
        c.code AS course_code, c.title AS course_title, c.credit_hours AS credit_hours, t.name AS term_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, enrollmentColumns, enrollmentDetailJoin+clause, sortBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + enrollmentDetailJoin + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments e WHERE e.id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, st.full_name AS student_name, st.student_number AS student_number,
        c.code AS course_code, c.title AS course_title, c.credit_hours AS credit_hours, t.name AS term_name
        %s WHERE e.id = $1`, enrollmentColumns, enrollmentDetailJoin)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsNonTerminal checks whether the (student, section) pair already has
// a live enrollment row.
func (r *EnrollmentRepository) ExistsNonTerminal(ctx context.Context, studentID, sectionID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND section_id = $2
        AND status IN ('ENROLLED', 'WAITLISTED') LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, sectionID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check non-terminal enrollment: %w", err)
	}
	return true, nil
}

// CreateWithCounter inserts the enrollment and bumps the matching section
// counter in the same transaction. The enrollment's Status decides which
// counter moves.
func (r *EnrollmentRepository) CreateWithCounter(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = now
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO enrollments (id, student_id, section_id, status, grade, grade_points,
        numeric_grade, is_grade_finalized, enrollment_date, drop_date, withdrawal_date,
        grade_submitted_at, notes, created_at, updated_at)
        VALUES (:id, :student_id, :section_id, :status, :grade, :grade_points,
        :numeric_grade, :is_grade_finalized, :enrollment_date, :drop_date, :withdrawal_date,
        :grade_submitted_at, :notes, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}

	var counter string
	switch enrollment.Status {
	case models.EnrollmentStatusEnrolled:
		counter = `UPDATE course_sections SET current_enrollment = current_enrollment + 1, updated_at = $2 WHERE id = $1`
	case models.EnrollmentStatusWaitlisted:
		counter = `UPDATE course_sections SET waitlist_count = waitlist_count + 1, updated_at = $2 WHERE id = $1`
	default:
		err = fmt.Errorf("create enrollment: unexpected status %s", enrollment.Status)
		return err
	}
	if _, err = tx.ExecContext(ctx, counter, enrollment.SectionID, now); err != nil {
		return fmt.Errorf("bump section counter: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	return nil
}

// DropEnrolled marks an ENROLLED row dropped, frees the seat and promotes
// the earliest WAITLISTED row of the section, FIFO by enrollment date.
// The whole move is one transaction; the promoted enrollment is returned
// when a promotion happened.
func (r *EnrollmentRepository) DropEnrolled(ctx context.Context, id, sectionID string, at time.Time) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin drop tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`UPDATE enrollments SET status = 'DROPPED', drop_date = $2, updated_at = $2 WHERE id = $1`,
		id, at); err != nil {
		return nil, fmt.Errorf("drop enrollment: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE course_sections SET current_enrollment = current_enrollment - 1, updated_at = $2 WHERE id = $1`,
		sectionID, at); err != nil {
		return nil, fmt.Errorf("release section seat: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM enrollments e WHERE e.section_id = $1 AND e.status = 'WAITLISTED'
        ORDER BY e.enrollment_date ASC LIMIT 1 FOR UPDATE`, enrollmentColumns)
	var promoted models.Enrollment
	if err = tx.GetContext(ctx, &promoted, query, sectionID); err != nil {
		if err == sql.ErrNoRows {
			err = tx.Commit()
			if err != nil {
				return nil, fmt.Errorf("commit drop tx: %w", err)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("find waitlisted enrollment: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE enrollments SET status = 'ENROLLED', updated_at = $2 WHERE id = $1`,
		promoted.ID, at); err != nil {
		return nil, fmt.Errorf("promote waitlisted enrollment: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE course_sections SET current_enrollment = current_enrollment + 1,
         waitlist_count = waitlist_count - 1, updated_at = $2 WHERE id = $1`,
		sectionID, at); err != nil {
		return nil, fmt.Errorf("shift section counters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit drop tx: %w", err)
	}
	promoted.Status = models.EnrollmentStatusEnrolled
	return &promoted, nil
}

// DropWaitlisted marks a WAITLISTED row dropped and frees its waitlist
// slot. No promotion applies.
func (r *EnrollmentRepository) DropWaitlisted(ctx context.Context, id, sectionID string, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin drop tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`UPDATE enrollments SET status = 'DROPPED', drop_date = $2, updated_at = $2 WHERE id = $1`,
		id, at); err != nil {
		return fmt.Errorf("drop waitlisted enrollment: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE course_sections SET waitlist_count = waitlist_count - 1, updated_at = $2 WHERE id = $1`,
		sectionID, at); err != nil {
		return fmt.Errorf("release waitlist slot: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit drop tx: %w", err)
	}
	return nil
}

// Withdraw marks the row withdrawn with grade W and frees the seat. The
// vacated seat is not refilled from the waitlist past the add/drop window.
func (r *EnrollmentRepository) Withdraw(ctx context.Context, id, sectionID string, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin withdraw tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`UPDATE enrollments SET status = 'WITHDRAWN', withdrawal_date = $2, grade = $3,
         grade_points = NULL, updated_at = $2 WHERE id = $1`,
		id, at, models.GradeWithdrawn); err != nil {
		return fmt.Errorf("withdraw enrollment: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE course_sections SET current_enrollment = current_enrollment - 1, updated_at = $2 WHERE id = $1`,
		sectionID, at); err != nil {
		return fmt.Errorf("release section seat: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit withdraw tx: %w", err)
	}
	return nil
}

// UpdateGrade stores grade fields on a non-finalized enrollment. The
// finalized guard is in the predicate so a racing finalize cannot be
// overwritten.
func (r *EnrollmentRepository) UpdateGrade(ctx context.Context, id string, grade string, gradePoints, numericGrade *float64) error {
	const query = `UPDATE enrollments SET grade = $2, grade_points = $3, numeric_grade = $4,
        updated_at = $5 WHERE id = $1 AND is_grade_finalized = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, grade, gradePoints, numericGrade, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update grade rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListBySection returns all enrollments of one section.
func (r *EnrollmentRepository) ListBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments e WHERE e.section_id = $1 ORDER BY e.enrollment_date ASC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section enrollments: %w", err)
	}
	return enrollments, nil
}

// ListDetailBySection returns the section's enrollments with student and
// course context, ordered by student name for roster output.
func (r *EnrollmentRepository) ListDetailBySection(ctx context.Context, sectionID string) ([]models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, st.full_name AS student_name, st.student_number AS student_number,
        c.code AS course_code, c.title AS course_title, c.credit_hours AS credit_hours, t.name AS term_name
        %s WHERE e.section_id = $1 ORDER BY st.full_name ASC`, enrollmentColumns, enrollmentDetailJoin)
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section roster: %w", err)
	}
	return details, nil
}

// FinalizeBulk applies the computed finalizations in one transaction.
// Rows already finalized are skipped by the predicate, which makes a
// repeated finalize a no-op. Returns the number of rows moved.
func (r *EnrollmentRepository) FinalizeBulk(ctx context.Context, finals []models.GradeFinalization) (int, error) {
	if len(finals) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin finalize tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE enrollments SET is_grade_finalized = TRUE, status = $2,
        grade_submitted_at = $3, updated_at = $3 WHERE id = $1 AND is_grade_finalized = FALSE`
	finalized := 0
	for _, final := range finals {
		var result sql.Result
		result, err = tx.ExecContext(ctx, query, final.EnrollmentID, final.Status, final.FinalizedAt)
		if err != nil {
			return 0, fmt.Errorf("finalize enrollment %s: %w", final.EnrollmentID, err)
		}
		var affected int64
		affected, err = result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("finalize rows affected: %w", err)
		}
		finalized += int(affected)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit finalize tx: %w", err)
	}
	return finalized, nil
}

// TranscriptRows returns the student's finalized and withdrawn rows in
// term order, the input to GPA aggregation and transcript rendering.
func (r *EnrollmentRepository) TranscriptRows(ctx context.Context, studentID string) ([]models.TranscriptRow, error) {
	const query = `SELECT e.id AS enrollment_id, t.id AS term_id, t.name AS term_name,
        c.code AS course_code, c.title AS course_title, c.credit_hours AS credit_hours,
        e.grade, e.grade_points
        FROM enrollments e
        JOIN course_sections s ON s.id = e.section_id
        JOIN courses c ON c.id = s.course_id
        JOIN terms t ON t.id = s.term_id
        WHERE e.student_id = $1 AND e.grade IS NOT NULL
          AND (e.is_grade_finalized = TRUE OR e.status = 'WITHDRAWN')
        ORDER BY t.start_date ASC, c.code ASC`
	var rows []models.TranscriptRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("transcript rows: %w", err)
	}
	return rows, nil
}
