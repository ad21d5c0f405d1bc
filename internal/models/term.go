package models

import "time"

// Term models an academic period with its ordered deadline dates.
type Term struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	AcademicYear       string    `db:"academic_year" json:"academic_year"`
	StartDate          time.Time `db:"start_date" json:"start_date"`
	EndDate            time.Time `db:"end_date" json:"end_date"`
	RegistrationStart  time.Time `db:"registration_start" json:"registration_start"`
	RegistrationEnd    time.Time `db:"registration_end" json:"registration_end"`
	AddDropDeadline    time.Time `db:"add_drop_deadline" json:"add_drop_deadline"`
	WithdrawalDeadline time.Time `db:"withdrawal_deadline" json:"withdrawal_deadline"`
	GradesDeadline     time.Time `db:"grades_deadline" json:"grades_deadline"`
	IsCurrent          bool      `db:"is_current" json:"is_current"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// CanDrop reports whether a drop is still permitted at the given time.
func (t *Term) CanDrop(at time.Time) bool {
	return !at.After(t.AddDropDeadline)
}

// CanWithdraw reports whether a withdrawal is permitted at the given time:
// past the add/drop deadline but not past the withdrawal deadline.
func (t *Term) CanWithdraw(at time.Time) bool {
	return at.After(t.AddDropDeadline) && !at.After(t.WithdrawalDeadline)
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	AcademicYear string
	IsCurrent    *bool
	IsActive     *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
