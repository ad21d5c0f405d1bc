package models

import "time"

// TransactionType distinguishes account movements.
type TransactionType string

const (
	TransactionTypeCharge  TransactionType = "CHARGE"
	TransactionTypePayment TransactionType = "PAYMENT"
)

// AccountTransaction is one movement on a student's account. Charges
// raise the balance, payments lower it.
type AccountTransaction struct {
	ID           string          `db:"id" json:"id"`
	StudentID    string          `db:"student_id" json:"student_id"`
	Type         TransactionType `db:"type" json:"type"`
	Amount       float64         `db:"amount" json:"amount"`
	Description  string          `db:"description" json:"description"`
	EnrollmentID *string         `db:"enrollment_id" json:"enrollment_id,omitempty"`
	PostedAt     time.Time       `db:"posted_at" json:"posted_at"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// TransactionFilter supports billing history listing.
type TransactionFilter struct {
	StudentID string
	Type      TransactionType
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
