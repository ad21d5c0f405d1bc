package models

import "time"

// NotificationType identifies the event that produced a notification.
type NotificationType string

const (
	NotificationEnrollmentConfirmed NotificationType = "ENROLLMENT_CONFIRMED"
	NotificationWaitlisted          NotificationType = "WAITLISTED"
	NotificationWaitlistPromoted    NotificationType = "WAITLIST_PROMOTED"
	NotificationGradesFinalized     NotificationType = "GRADES_FINALIZED"
	NotificationChargePosted        NotificationType = "CHARGE_POSTED"
	NotificationHoldPlaced          NotificationType = "HOLD_PLACED"
)

// Notification is an in-app message delivered to a student. Rows are
// written off the request path by the dispatcher queue.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Body      string           `db:"body" json:"body"`
	ReadAt    *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter supports notification listing.
type NotificationFilter struct {
	StudentID string
	Unread    *bool
	Page      int
	PageSize  int
}
