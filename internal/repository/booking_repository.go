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

// BookingRepository handles persistence of rooms and room bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, room_id, booking_date, start_time, end_time, purpose, booked_by,
        status, recurrence_id, created_at, updated_at`

// FindRoom returns a room by its ID.
func (r *BookingRepository) FindRoom(ctx context.Context, id string) (*models.Room, error) {
	const query = `SELECT id, building, number, capacity, active, created_at, updated_at FROM rooms WHERE id = $1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRooms returns all active rooms.
func (r *BookingRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, building, number, capacity, active, created_at, updated_at
        FROM rooms WHERE active = TRUE ORDER BY building, number`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// List returns bookings filtered by the provided criteria.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.RoomBooking, int, error) {
	var conditions []string
	var args []interface{}

	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.Date != nil {
		conditions = append(conditions, fmt.Sprintf("booking_date = $%d", len(args)+1))
		args = append(args, *filter.Date)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s FROM room_bookings%s ORDER BY booking_date ASC, start_time ASC LIMIT %d OFFSET %d",
		bookingColumns, clause, size, offset)

	var bookings []models.RoomBooking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM room_bookings" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// FindByID returns a booking by its ID.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.RoomBooking, error) {
	query := fmt.Sprintf("SELECT %s FROM room_bookings WHERE id = $1", bookingColumns)
	var booking models.RoomBooking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindOverlapping returns non-cancelled bookings on the same room and
// date whose [start, end) interval intersects the candidate's.
func (r *BookingRepository) FindOverlapping(ctx context.Context, roomID string, date time.Time, startTime, endTime string) ([]models.RoomBooking, error) {
	query := fmt.Sprintf(`SELECT %s FROM room_bookings
        WHERE room_id = $1 AND booking_date = $2 AND status <> 'CANCELLED'
          AND start_time < $4 AND end_time > $3
        ORDER BY start_time ASC`, bookingColumns)
	var bookings []models.RoomBooking
	if err := r.db.SelectContext(ctx, &bookings, query, roomID, date, startTime, endTime); err != nil {
		return nil, fmt.Errorf("find overlapping bookings: %w", err)
	}
	return bookings, nil
}

// CreateBatch inserts a set of bookings in one transaction. A recurring
// request expands to many rows and lands all-or-nothing.
func (r *BookingRepository) CreateBatch(ctx context.Context, bookings []models.RoomBooking) error {
	if len(bookings) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO room_bookings (id, room_id, booking_date, start_time, end_time,
        purpose, booked_by, status, recurrence_id, created_at, updated_at)
        VALUES (:id, :room_id, :booking_date, :start_time, :end_time,
        :purpose, :booked_by, :status, :recurrence_id, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range bookings {
		if bookings[i].ID == "" {
			bookings[i].ID = uuid.NewString()
		}
		if bookings[i].Status == "" {
			bookings[i].Status = models.BookingStatusConfirmed
		}
		bookings[i].CreatedAt = now
		bookings[i].UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, query, bookings[i]); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

// Cancel marks a booking cancelled, freeing its interval.
func (r *BookingRepository) Cancel(ctx context.Context, id string) error {
	const query = `UPDATE room_bookings SET status = 'CANCELLED', updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	return nil
}
