package models

import "time"

// Room is a bookable physical space.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Building  string    `db:"building" json:"building"`
	Number    string    `db:"number" json:"number"`
	Capacity  int       `db:"capacity" json:"capacity"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BookingStatus is the lifecycle of a room booking.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// RoomBooking reserves a room for a [StartTime, EndTime) interval on one
// date. Recurring requests are expanded into individual date rows sharing
// a RecurrenceID; each row is conflict-checked on its own.
type RoomBooking struct {
	ID           string        `db:"id" json:"id"`
	RoomID       string        `db:"room_id" json:"room_id"`
	BookingDate  time.Time     `db:"booking_date" json:"booking_date"`
	StartTime    string        `db:"start_time" json:"start_time"`
	EndTime      string        `db:"end_time" json:"end_time"`
	Purpose      string        `db:"purpose" json:"purpose"`
	BookedBy     string        `db:"booked_by" json:"booked_by"`
	Status       BookingStatus `db:"status" json:"status"`
	RecurrenceID *string       `db:"recurrence_id" json:"recurrence_id,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether two half-open [start, end) time ranges on the
// same date intersect. Times are HH:MM strings, comparable lexically.
func Overlaps(aStart, aEnd, bStart, bEnd string) bool {
	return aStart < bEnd && bStart < aEnd
}

// BookingFilter supports booking listing.
type BookingFilter struct {
	RoomID    string
	Date      *time.Time
	Status    BookingStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
