package models

import "time"

// Fixed letter-grade scale. W, I, P and NP are recorded but excluded from
// GPA; WF counts as a zero like F.
var gradeScale = map[string]float64{
	"A": 4.0, "A-": 3.7,
	"B+": 3.3, "B": 3.0, "B-": 2.7,
	"C+": 2.3, "C": 2.0, "C-": 1.7,
	"D+": 1.3, "D": 1.0,
	"F": 0.0, "WF": 0.0,
}

var gpaExcludedGrades = map[string]struct{}{
	"W": {}, "I": {}, "P": {}, "NP": {},
}

// GradeWithdrawn is recorded on withdrawal and never enters the GPA fold.
const GradeWithdrawn = "W"

// IsValidGrade reports whether the letter belongs to the grade scale.
func IsValidGrade(letter string) bool {
	if _, ok := gradeScale[letter]; ok {
		return true
	}
	_, ok := gpaExcludedGrades[letter]
	return ok
}

// GradePointsFor returns the point value for a letter. The second return
// is false for letters excluded from GPA computation.
func GradePointsFor(letter string) (float64, bool) {
	points, ok := gradeScale[letter]
	return points, ok
}

// IsFailingGrade reports whether the letter maps the enrollment to FAILED
// on finalization. Only F and WF qualify; D-range grades complete.
func IsFailingGrade(letter string) bool {
	return letter == "F" || letter == "WF"
}

// IsEarningGrade reports whether the letter earns credit hours.
func IsEarningGrade(letter string) bool {
	if IsFailingGrade(letter) {
		return false
	}
	if _, excluded := gpaExcludedGrades[letter]; excluded {
		return letter == "P"
	}
	return true
}

// TranscriptRow is one finalized enrollment as it appears on a transcript.
type TranscriptRow struct {
	EnrollmentID string   `db:"enrollment_id" json:"enrollment_id"`
	TermID       string   `db:"term_id" json:"term_id"`
	TermName     string   `db:"term_name" json:"term_name"`
	CourseCode   string   `db:"course_code" json:"course_code"`
	CourseTitle  string   `db:"course_title" json:"course_title"`
	CreditHours  float64  `db:"credit_hours" json:"credit_hours"`
	Grade        string   `db:"grade" json:"grade"`
	GradePoints  *float64 `db:"grade_points" json:"grade_points,omitempty"`
}

// TranscriptTerm folds one term's rows into a term GPA.
type TranscriptTerm struct {
	TermID           string          `json:"term_id"`
	TermName         string          `json:"term_name"`
	Rows             []TranscriptRow `json:"rows"`
	TermGPA          *float64        `json:"term_gpa,omitempty"`
	CreditsAttempted float64         `json:"credits_attempted"`
	CreditsEarned    float64         `json:"credits_earned"`
}

// Transcript is the full academic history for one student.
type Transcript struct {
	StudentID             string           `json:"student_id"`
	StudentNumber         string           `json:"student_number"`
	StudentName           string           `json:"student_name"`
	Terms                 []TranscriptTerm `json:"terms"`
	CumulativeGPA         *float64         `json:"cumulative_gpa,omitempty"`
	TotalCreditsAttempted float64          `json:"total_credits_attempted"`
	TotalCreditsEarned    float64          `json:"total_credits_earned"`
	GeneratedAt           time.Time        `json:"generated_at"`
}

// GradeFinalization captures one enrollment's transition during a bulk
// section finalize.
type GradeFinalization struct {
	EnrollmentID string
	StudentID    string
	Status       EnrollmentStatus
	FinalizedAt  time.Time
}
