package models

import "time"

// AcademicStanding classifies a student's GPA health.
type AcademicStanding string

const (
	StandingGood      AcademicStanding = "GOOD_STANDING"
	StandingWarning   AcademicStanding = "ACADEMIC_WARNING"
	StandingProbation AcademicStanding = "PROBATION"
	StandingDismissed AcademicStanding = "DISMISSED"
)

// Student represents a learner admitted to the institution. Rows are soft
// deleted; every read predicate carries deleted_at IS NULL so enrollment
// history keeps its referent.
type Student struct {
	ID                     string           `db:"id" json:"id"`
	StudentNumber          string           `db:"student_number" json:"student_number"`
	FullName               string           `db:"full_name" json:"full_name"`
	Email                  string           `db:"email" json:"email"`
	Program                string           `db:"program" json:"program"`
	Department             string           `db:"department" json:"department"`
	CumulativeGPA          float64          `db:"cumulative_gpa" json:"cumulative_gpa"`
	TotalCreditsEarned     float64          `db:"total_credits_earned" json:"total_credits_earned"`
	TotalCreditsAttempted  float64          `db:"total_credits_attempted" json:"total_credits_attempted"`
	AcademicStanding       AcademicStanding `db:"academic_standing" json:"academic_standing"`
	FinancialHold          bool             `db:"financial_hold" json:"financial_hold"`
	AcademicHold           bool             `db:"academic_hold" json:"academic_hold"`
	AccountBalance         float64          `db:"account_balance" json:"account_balance"`
	AdmittedAt             time.Time        `db:"admitted_at" json:"admitted_at"`
	CreatedAt              time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time        `db:"updated_at" json:"updated_at"`
	DeletedAt              *time.Time       `db:"deleted_at" json:"deleted_at,omitempty"`
}

// HasBlockingHold reports whether any hold prevents registration actions.
func (s *Student) HasBlockingHold() bool {
	return s.FinancialHold || s.AcademicHold
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search     string
	Program    string
	Department string
	Standing   AcademicStanding
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// AcademicRecord carries the recomputed aggregates written back to the
// student row after each finalization pass.
type AcademicRecord struct {
	CumulativeGPA         float64
	TotalCreditsEarned    float64
	TotalCreditsAttempted float64
	Standing              AcademicStanding
}
