package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unipanel/unipanel-api/internal/models"
	appErrors "github.com/unipanel/unipanel-api/pkg/errors"
)

type bookingRepository interface {
	FindRoom(ctx context.Context, id string) (*models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.RoomBooking, int, error)
	FindByID(ctx context.Context, id string) (*models.RoomBooking, error)
	FindOverlapping(ctx context.Context, roomID string, date time.Time, startTime, endTime string) ([]models.RoomBooking, error)
	CreateBatch(ctx context.Context, bookings []models.RoomBooking) error
	Cancel(ctx context.Context, id string) error
}

// CreateBookingRequest reserves a room for one date, or weekly for
// RecurWeeks consecutive weeks.
type CreateBookingRequest struct {
	RoomID     string    `json:"room_id" validate:"required"`
	Date       time.Time `json:"date" validate:"required"`
	StartTime  string    `json:"start_time" validate:"required,len=5"`
	EndTime    string    `json:"end_time" validate:"required,len=5"`
	Purpose    string    `json:"purpose" validate:"required"`
	BookedBy   string    `json:"booked_by" validate:"required"`
	RecurWeeks int       `json:"recur_weeks" validate:"omitempty,gte=0"`
}

// BookingService manages room reservations and their conflict checks.
type BookingService struct {
	repo               bookingRepository
	maxRecurrenceWeeks int
	validator          *validator.Validate
	logger             *zap.Logger
}

// NewBookingService constructs BookingService.
func NewBookingService(repo bookingRepository, maxRecurrenceWeeks int, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRecurrenceWeeks <= 0 {
		maxRecurrenceWeeks = 26
	}
	return &BookingService{repo: repo, maxRecurrenceWeeks: maxRecurrenceWeeks, validator: validate, logger: logger}
}

// ListRooms returns the bookable rooms.
func (s *BookingService) ListRooms(ctx context.Context) ([]models.Room, error) {
	rooms, err := s.repo.ListRooms(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	return rooms, nil
}

// List returns bookings with pagination metadata.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.RoomBooking, *models.Pagination, error) {
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return bookings, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create reserves a room after checking every expanded date for interval
// conflicts. A recurring request either books all weeks or none.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) ([]models.RoomBooking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if req.StartTime >= req.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	if req.RecurWeeks > s.maxRecurrenceWeeks {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("recurrence exceeds the %d week limit", s.maxRecurrenceWeeks))
	}

	room, err := s.repo.FindRoom(ctx, req.RoomID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if !room.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "room is not bookable")
	}

	dates := []time.Time{req.Date}
	for week := 1; week <= req.RecurWeeks; week++ {
		dates = append(dates, req.Date.AddDate(0, 0, 7*week))
	}

	for _, date := range dates {
		overlapping, err := s.repo.FindOverlapping(ctx, req.RoomID, date, req.StartTime, req.EndTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check booking conflicts")
		}
		if len(overlapping) > 0 {
			return nil, appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("room is already booked on %s between %s and %s",
					date.Format("2006-01-02"), overlapping[0].StartTime, overlapping[0].EndTime))
		}
	}

	var recurrenceID *string
	if len(dates) > 1 {
		id := uuid.NewString()
		recurrenceID = &id
	}
	bookings := make([]models.RoomBooking, 0, len(dates))
	for _, date := range dates {
		bookings = append(bookings, models.RoomBooking{
			RoomID:       req.RoomID,
			BookingDate:  date,
			StartTime:    req.StartTime,
			EndTime:      req.EndTime,
			Purpose:      req.Purpose,
			BookedBy:     req.BookedBy,
			Status:       models.BookingStatusConfirmed,
			RecurrenceID: recurrenceID,
		})
	}
	if err := s.repo.CreateBatch(ctx, bookings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}
	return bookings, nil
}

// Cancel releases a booking's interval.
func (s *BookingService) Cancel(ctx context.Context, id string) error {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if booking.Status == models.BookingStatusCancelled {
		return appErrors.Clone(appErrors.ErrInvalidState, "booking is already cancelled")
	}
	if err := s.repo.Cancel(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}
	return nil
}

// CheckRoomConflict reports whether the given interval collides with an
// existing booking, used by section scheduling.
func (s *BookingService) CheckRoomConflict(ctx context.Context, roomID string, date time.Time, startTime, endTime string) (bool, error) {
	overlapping, err := s.repo.FindOverlapping(ctx, roomID, date, startTime, endTime)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check booking conflicts")
	}
	return len(overlapping) > 0, nil
}
