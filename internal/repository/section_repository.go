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

// SectionRepository handles persistence of course sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

const sectionColumns = `s.id, s.course_id, s.term_id, s.section_number, s.instructor, s.room_id,
        s.days_of_week, s.start_time, s.end_time, s.max_enrollment, s.current_enrollment,
        s.waitlist_capacity, s.waitlist_count, s.is_open, s.is_cancelled, s.created_at, s.updated_at`

// List returns section details filtered by the provided criteria.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error) {
	base := `FROM course_sections s
LEFT JOIN courses c ON c.id = s.course_id
LEFT JOIN terms t ON t.id = s.term_id`
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("s.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("s.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.IsOpen != nil {
		conditions = append(conditions, fmt.Sprintf("s.is_open = $%d", len(args)+1))
		args = append(args, *filter.IsOpen)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"course_code":    "c.code",
		"section_number": "s.section_number",
		"created_at":     "s.created_at",
	}
	sortBy := allowedSorts[filter.SortBy]
	if sortBy == "" {
		sortBy = "c.code"
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

	query := fmt.Sprintf(`SELECT %s, c.code AS course_code, c.title AS course_title,
        c.credit_hours AS credit_hours, t.name AS term_name
        %s ORDER BY %s %s, s.section_number ASC LIMIT %d OFFSET %d`,
		sectionColumns, base+clause, sortBy, order, size, offset)

	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// FindByID returns a section by its ID.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.CourseSection, error) {
	query := fmt.Sprintf("SELECT %s FROM course_sections s WHERE s.id = $1", sectionColumns)
	var section models.CourseSection
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindDetailByID returns a section with course and term context.
func (r *SectionRepository) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	query := fmt.Sprintf(`SELECT %s, c.code AS course_code, c.title AS course_title,
        c.credit_hours AS credit_hours, t.name AS term_name
        FROM course_sections s
        LEFT JOIN courses c ON c.id = s.course_id
        LEFT JOIN terms t ON t.id = s.term_id
        WHERE s.id = $1`, sectionColumns)
	var detail models.SectionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new section.
func (r *SectionRepository) Create(ctx context.Context, section *models.CourseSection) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	section.CreatedAt = now
	section.UpdatedAt = now
	const query = `INSERT INTO course_sections (id, course_id, term_id, section_number, instructor,
        room_id, days_of_week, start_time, end_time, max_enrollment, current_enrollment,
        waitlist_capacity, waitlist_count, is_open, is_cancelled, created_at, updated_at)
        VALUES (:id, :course_id, :term_id, :section_number, :instructor,
        :room_id, :days_of_week, :start_time, :end_time, :max_enrollment, :current_enrollment,
        :waitlist_capacity, :waitlist_count, :is_open, :is_cancelled, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// Update persists mutable section fields. Counters are owned by the
// enrollment repository and are not written here.
func (r *SectionRepository) Update(ctx context.Context, section *models.CourseSection) error {
	section.UpdatedAt = time.Now().UTC()
	const query = `UPDATE course_sections SET section_number = :section_number, instructor = :instructor,
        room_id = :room_id, days_of_week = :days_of_week, start_time = :start_time, end_time = :end_time,
        max_enrollment = :max_enrollment, waitlist_capacity = :waitlist_capacity,
        is_open = :is_open, is_cancelled = :is_cancelled, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return nil
}

// CounterDrift compares the denormalized counters with the enrollment
// rows and returns every section where they disagree.
func (r *SectionRepository) CounterDrift(ctx context.Context) ([]models.CounterDrift, error) {
	const query = `SELECT s.id AS section_id, s.current_enrollment, s.waitlist_count,
        COALESCE(e.enrolled, 0) AS actual_enrolled, COALESCE(e.waitlisted, 0) AS actual_waitlisted
        FROM course_sections s
        LEFT JOIN (
            SELECT section_id,
                COUNT(*) FILTER (WHERE status = 'ENROLLED') AS enrolled,
                COUNT(*) FILTER (WHERE status = 'WAITLISTED') AS waitlisted
            FROM enrollments GROUP BY section_id
        ) e ON e.section_id = s.id
        WHERE s.current_enrollment <> COALESCE(e.enrolled, 0)
           OR s.waitlist_count <> COALESCE(e.waitlisted, 0)`
	var drift []models.CounterDrift
	if err := r.db.SelectContext(ctx, &drift, query); err != nil {
		return nil, fmt.Errorf("counter drift: %w", err)
	}
	return drift, nil
}

// RepairCounters rewrites the counters of a section from the enrollment
// rows, the source of truth.
func (r *SectionRepository) RepairCounters(ctx context.Context, sectionID string) error {
	const query = `UPDATE course_sections s SET
        current_enrollment = (SELECT COUNT(*) FROM enrollments WHERE section_id = s.id AND status = 'ENROLLED'),
        waitlist_count = (SELECT COUNT(*) FROM enrollments WHERE section_id = s.id AND status = 'WAITLISTED'),
        updated_at = $2
        WHERE s.id = $1`
	if _, err := r.db.ExecContext(ctx, query, sectionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("repair section counters: %w", err)
	}
	return nil
}
