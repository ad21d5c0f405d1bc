package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unipanel/unipanel-api/internal/models"
	appErrors "github.com/unipanel/unipanel-api/pkg/errors"
)

type mockBookingRepo struct {
	rooms     map[string]*models.Room
	bookings  map[string]*models.RoomBooking
	existing  []models.RoomBooking
	created   []models.RoomBooking
	cancelled []string
}

func (m *mockBookingRepo) FindRoom(ctx context.Context, id string) (*models.Room, error) {
	if r, ok := m.rooms[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookingRepo) ListRooms(ctx context.Context) ([]models.Room, error) {
	rooms := make([]models.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, *r)
	}
	return rooms, nil
}

func (m *mockBookingRepo) List(ctx context.Context, filter models.BookingFilter) ([]models.RoomBooking, int, error) {
	return m.existing, len(m.existing), nil
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*models.RoomBooking, error) {
	if b, ok := m.bookings[id]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookingRepo) FindOverlapping(ctx context.Context, roomID string, date time.Time, startTime, endTime string) ([]models.RoomBooking, error) {
	var hits []models.RoomBooking
	for _, b := range m.existing {
		if b.RoomID == roomID && b.BookingDate.Equal(date) && b.Status == models.BookingStatusConfirmed &&
			models.Overlaps(startTime, endTime, b.StartTime, b.EndTime) {
			hits = append(hits, b)
		}
	}
	return hits, nil
}

func (m *mockBookingRepo) CreateBatch(ctx context.Context, bookings []models.RoomBooking) error {
	m.created = append(m.created, bookings...)
	return nil
}

func (m *mockBookingRepo) Cancel(ctx context.Context, id string) error {
	m.cancelled = append(m.cancelled, id)
	return nil
}

func newBookingFixture() (*BookingService, *mockBookingRepo) {
	repo := &mockBookingRepo{rooms: map[string]*models.Room{
		"r1": {ID: "r1", Building: "Science", Number: "204", Active: true},
		"r2": {ID: "r2", Building: "Annex", Number: "10", Active: false},
	}}
	svc := NewBookingService(repo, 4, validator.New(), zap.NewNop())
	return svc, repo
}

func bookingDate() time.Time {
	return time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
}

func TestBookingServiceCreateSingle(t *testing.T) {
	svc, repo := newBookingFixture()

	bookings, err := svc.Create(context.Background(), CreateBookingRequest{
		RoomID:    "r1",
		Date:      bookingDate(),
		StartTime: "10:00",
		EndTime:   "12:00",
		Purpose:   "Seminar",
		BookedBy:  "u1",
	})
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.BookingStatusConfirmed, bookings[0].Status)
	assert.Nil(t, bookings[0].RecurrenceID)
	assert.Len(t, repo.created, 1)
}

func TestBookingServiceCreateRejectsOverlap(t *testing.T) {
	svc, repo := newBookingFixture()
	repo.existing = []models.RoomBooking{
		{ID: "b1", RoomID: "r1", BookingDate: bookingDate(), StartTime: "11:00", EndTime: "13:00", Status: models.BookingStatusConfirmed},
	}

	_, err := svc.Create(context.Background(), CreateBookingRequest{
		RoomID:    "r1",
		Date:      bookingDate(),
		StartTime: "10:00",
		EndTime:   "12:00",
		Purpose:   "Seminar",
		BookedBy:  "u1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestBookingServiceCreateAllowsAdjacentIntervals(t *testing.T) {
	svc, repo := newBookingFixture()
	repo.existing = []models.RoomBooking{
		{ID: "b1", RoomID: "r1", BookingDate: bookingDate(), StartTime: "08:00", EndTime: "10:00", Status: models.BookingStatusConfirmed},
	}

	_, err := svc.Create(context.Background(), CreateBookingRequest{
		RoomID:    "r1",
		Date:      bookingDate(),
		StartTime: "10:00",
		EndTime:   "12:00",
		Purpose:   "Lab",
		BookedBy:  "u1",
	})
	require.NoError(t, err)
	assert.Len(t, repo.created, 1)
}

func TestBookingServiceCreateRecurrence(t *testing.T) {
	svc, repo := newBookingFixture()

	bookings, err := svc.Create(context.Background(), CreateBookingRequest{
		RoomID:     "r1",
		Date:       bookingDate(),
		StartTime:  "09:00",
		EndTime:    "10:30",
		Purpose:    "Weekly colloquium",
		BookedBy:   "u1",
		RecurWeeks: 3,
	})
	require.NoError(t, err)
	require.Len(t, bookings, 4)
	require.NotNil(t, bookings[0].RecurrenceID)
	for i, b := range bookings {
		assert.Equal(t, *bookings[0].RecurrenceID, *b.RecurrenceID)
		assert.Equal(t, bookingDate().AddDate(0, 0, 7*i), b.BookingDate)
	}
	assert.Len(t, repo.created, 4)
}

func TestBookingServiceRecurrenceAllOrNothing(t *testing.T) {
	svc, repo := newBookingFixture()
	// Conflict on the third week only.
	repo.existing = []models.RoomBooking{
		{ID: "b1", RoomID: "r1", BookingDate: bookingDate().AddDate(0, 0, 14), StartTime: "09:00", EndTime: "11:00", Status: models.BookingStatusConfirmed},
	}

	_, err := svc.Create(context.Background(), CreateBookingRequest{
		RoomID:     "r1",
		Date:       bookingDate(),
		StartTime:  "09:00",
		EndTime:    "10:30",
		Purpose:    "Weekly colloquium",
		BookedBy:   "u1",
		RecurWeeks: 3,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestBookingServiceRecurrenceCap(t *testing.T) {
	svc, repo := newBookingFixture()

	_, err := svc.Create(context.Background(), CreateBookingRequest{
		RoomID:     "r1",
		Date:       bookingDate(),
		StartTime:  "09:00",
		EndTime:    "10:30",
		Purpose:    "Marathon",
		BookedBy:   "u1",
		RecurWeeks: 5,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestBookingServiceCreateRejectsInvertedInterval(t *testing.T) {
	svc, _ := newBookingFixture()

	_, err := svc.Create(context.Background(), CreateBookingRequest{
		RoomID:    "r1",
		Date:      bookingDate(),
		StartTime: "12:00",
		EndTime:   "10:00",
		Purpose:   "Seminar",
		BookedBy:  "u1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceCreateRejectsInactiveRoom(t *testing.T) {
	svc, _ := newBookingFixture()

	_, err := svc.Create(context.Background(), CreateBookingRequest{
		RoomID:    "r2",
		Date:      bookingDate(),
		StartTime: "10:00",
		EndTime:   "12:00",
		Purpose:   "Seminar",
		BookedBy:  "u1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceCancel(t *testing.T) {
	svc, repo := newBookingFixture()
	repo.bookings = map[string]*models.RoomBooking{
		"b1": {ID: "b1", Status: models.BookingStatusConfirmed},
		"b2": {ID: "b2", Status: models.BookingStatusCancelled},
	}

	require.NoError(t, svc.Cancel(context.Background(), "b1"))
	assert.Contains(t, repo.cancelled, "b1")

	err := svc.Cancel(context.Background(), "b2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceCheckRoomConflict(t *testing.T) {
	svc, repo := newBookingFixture()
	repo.existing = []models.RoomBooking{
		{ID: "b1", RoomID: "r1", BookingDate: bookingDate(), StartTime: "09:00", EndTime: "11:00", Status: models.BookingStatusConfirmed},
	}

	conflict, err := svc.CheckRoomConflict(context.Background(), "r1", bookingDate(), "10:00", "12:00")
	require.NoError(t, err)
	assert.True(t, conflict)

	conflict, err = svc.CheckRoomConflict(context.Background(), "r1", bookingDate(), "11:00", "12:00")
	require.NoError(t, err)
	assert.False(t, conflict)
}
