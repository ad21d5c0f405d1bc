package models

import "time"

// Course is a catalog entry independent of any term.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Title       string    `db:"title" json:"title"`
	Department  string    `db:"department" json:"department"`
	CreditHours float64   `db:"credit_hours" json:"credit_hours"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter supports catalog listing.
type CourseFilter struct {
	Search     string
	Department string
	Active     *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// CourseSection is one offered instance of a Course within a Term.
// CurrentEnrollment and WaitlistCount are denormalized counters; the
// enrollment rows remain the source of truth and the reconciliation
// routine asserts the two agree.
type CourseSection struct {
	ID                string     `db:"id" json:"id"`
	CourseID          string     `db:"course_id" json:"course_id"`
	TermID            string     `db:"term_id" json:"term_id"`
	SectionNumber     string     `db:"section_number" json:"section_number"`
	Instructor        string     `db:"instructor" json:"instructor"`
	RoomID            *string    `db:"room_id" json:"room_id,omitempty"`
	DaysOfWeek        string     `db:"days_of_week" json:"days_of_week"`
	StartTime         string     `db:"start_time" json:"start_time"`
	EndTime           string     `db:"end_time" json:"end_time"`
	MaxEnrollment     int        `db:"max_enrollment" json:"max_enrollment"`
	CurrentEnrollment int        `db:"current_enrollment" json:"current_enrollment"`
	WaitlistCapacity  int        `db:"waitlist_capacity" json:"waitlist_capacity"`
	WaitlistCount     int        `db:"waitlist_count" json:"waitlist_count"`
	IsOpen            bool       `db:"is_open" json:"is_open"`
	IsCancelled       bool       `db:"is_cancelled" json:"is_cancelled"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// HasSeat reports whether a regular seat is available.
func (s *CourseSection) HasSeat() bool {
	return s.CurrentEnrollment < s.MaxEnrollment
}

// HasWaitlistSeat reports whether the waitlist can take another student.
func (s *CourseSection) HasWaitlistSeat() bool {
	return s.WaitlistCount < s.WaitlistCapacity
}

// SectionDetail enriches CourseSection with course and term info.
type SectionDetail struct {
	CourseSection
	CourseCode  string  `db:"course_code" json:"course_code"`
	CourseTitle string  `db:"course_title" json:"course_title"`
	CreditHours float64 `db:"credit_hours" json:"credit_hours"`
	TermName    string  `db:"term_name" json:"term_name"`
}

// SectionFilter supports section listing.
type SectionFilter struct {
	CourseID  string
	TermID    string
	IsOpen    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CounterDrift reports a section whose denormalized counters disagree with
// the enrollment rows.
type CounterDrift struct {
	SectionID         string `db:"section_id" json:"section_id"`
	CurrentEnrollment int    `db:"current_enrollment" json:"current_enrollment"`
	ActualEnrolled    int    `db:"actual_enrolled" json:"actual_enrolled"`
	WaitlistCount     int    `db:"waitlist_count" json:"waitlist_count"`
	ActualWaitlisted  int    `db:"actual_waitlisted" json:"actual_waitlisted"`
}
