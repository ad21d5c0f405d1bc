package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Allowed transitions: ENROLLED -> {DROPPED, WITHDRAWN, COMPLETED, FAILED};
// WAITLISTED -> {ENROLLED, DROPPED}. Terminal states do not transition.
const (
	EnrollmentStatusEnrolled   EnrollmentStatus = "ENROLLED"
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
	EnrollmentStatusWithdrawn  EnrollmentStatus = "WITHDRAWN"
	EnrollmentStatusCompleted  EnrollmentStatus = "COMPLETED"
	EnrollmentStatusFailed     EnrollmentStatus = "FAILED"
)

// IsTerminal reports whether the status permits no further transitions.
func (s EnrollmentStatus) IsTerminal() bool {
	switch s {
	case EnrollmentStatusDropped, EnrollmentStatusWithdrawn,
		EnrollmentStatusCompleted, EnrollmentStatusFailed:
		return true
	}
	return false
}

// Enrollment links a student to a course section. A (student, section)
// pair has at most one non-terminal row. Grade fields become immutable
// once IsGradeFinalized is set.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	SectionID        string           `db:"section_id" json:"section_id"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	Grade            *string          `db:"grade" json:"grade,omitempty"`
	GradePoints      *float64         `db:"grade_points" json:"grade_points,omitempty"`
	NumericGrade     *float64         `db:"numeric_grade" json:"numeric_grade,omitempty"`
	IsGradeFinalized bool             `db:"is_grade_finalized" json:"is_grade_finalized"`
	EnrollmentDate   time.Time        `db:"enrollment_date" json:"enrollment_date"`
	DropDate         *time.Time       `db:"drop_date" json:"drop_date,omitempty"`
	WithdrawalDate   *time.Time       `db:"withdrawal_date" json:"withdrawal_date,omitempty"`
	GradeSubmittedAt *time.Time       `db:"grade_submitted_at" json:"grade_submitted_at,omitempty"`
	Notes            *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student, course and term info.
type EnrollmentDetail struct {
	Enrollment
	StudentName   string  `db:"student_name" json:"student_name"`
	StudentNumber string  `db:"student_number" json:"student_number"`
	CourseCode    string  `db:"course_code" json:"course_code"`
	CourseTitle   string  `db:"course_title" json:"course_title"`
	CreditHours   float64 `db:"credit_hours" json:"credit_hours"`
	TermName      string  `db:"term_name" json:"term_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	SectionID string
	TermID    string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
