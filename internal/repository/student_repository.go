package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unipanel/unipanel-api/internal/models"
)

// StudentRepository handles persistence of student records. Students are
// soft deleted: every read carries an explicit deleted_at IS NULL
// predicate rather than relying on a hidden global filter.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, student_number, full_name, email, program, department,
        cumulative_gpa, total_credits_earned, total_credits_attempted, academic_standing,
        financial_hold, academic_hold, account_balance, admitted_at, created_at, updated_at, deleted_at`

// List returns students filtered by the provided criteria.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR student_number ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Program != "" {
		conditions = append(conditions, fmt.Sprintf("program = $%d", len(args)+1))
		args = append(args, filter.Program)
	}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Standing != "" {
		conditions = append(conditions, fmt.Sprintf("academic_standing = $%d", len(args)+1))
		args = append(args, filter.Standing)
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"full_name":      "full_name",
		"student_number": "student_number",
		"admitted_at":    "admitted_at",
		"cumulative_gpa": "cumulative_gpa",
	}
	sortBy := allowedSorts[filter.SortBy]
	if sortBy == "" {
		sortBy = "full_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT %s FROM students%s ORDER BY %s %s LIMIT %d OFFSET %d",
		studentColumns, clause, sortBy, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM students" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a non-deleted student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1 AND deleted_at IS NULL", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByNumber checks student-number uniqueness among live rows.
func (r *StudentRepository) ExistsByNumber(ctx context.Context, studentNumber, excludeID string) (bool, error) {
	query := "SELECT COUNT(*) FROM students WHERE student_number = $1 AND deleted_at IS NULL"
	args := []interface{}{studentNumber}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("check student number: %w", err)
	}
	return count > 0, nil
}

// Create persists a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.AdmittedAt.IsZero() {
		student.AdmittedAt = now
	}
	if student.AcademicStanding == "" {
		student.AcademicStanding = models.StandingGood
	}
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, student_number, full_name, email, program, department,
        cumulative_gpa, total_credits_earned, total_credits_attempted, academic_standing,
        financial_hold, academic_hold, account_balance, admitted_at, created_at, updated_at)
        VALUES (:id, :student_number, :full_name, :email, :program, :department,
        :cumulative_gpa, :total_credits_earned, :total_credits_attempted, :academic_standing,
        :financial_hold, :academic_hold, :account_balance, :admitted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update persists mutable profile fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET full_name = :full_name, email = :email, program = :program,
        department = :department, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// SoftDelete marks the student deleted; the row survives for enrollment
// history.
func (r *StudentRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE students SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete student: %w", err)
	}
	return nil
}

// UpdateAcademicRecord writes the recomputed GPA aggregates.
func (r *StudentRepository) UpdateAcademicRecord(ctx context.Context, id string, record models.AcademicRecord) error {
	const query = `UPDATE students SET cumulative_gpa = $2, total_credits_earned = $3,
        total_credits_attempted = $4, academic_standing = $5, updated_at = $6
        WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, record.CumulativeGPA, record.TotalCreditsEarned,
		record.TotalCreditsAttempted, record.Standing, time.Now().UTC()); err != nil {
		return fmt.Errorf("update academic record: %w", err)
	}
	return nil
}

// SetHolds updates the hold flags.
func (r *StudentRepository) SetHolds(ctx context.Context, id string, financial, academic bool) error {
	const query = `UPDATE students SET financial_hold = $2, academic_hold = $3, updated_at = $4
        WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, financial, academic, time.Now().UTC()); err != nil {
		return fmt.Errorf("set student holds: %w", err)
	}
	return nil
}
