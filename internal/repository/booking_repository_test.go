package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/unipanel/unipanel-api/internal/models"
)

func TestBookingRepositoryFindOverlapping(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	date := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "room_id", "booking_date", "start_time", "end_time", "status"}).
		AddRow("bk-1", "room-1", date, "09:00", "11:00", models.BookingStatusConfirmed)
	mock.ExpectQuery(regexp.QuoteMeta("AND start_time < $4 AND end_time > $3")).
		WithArgs("room-1", date, "10:00", "12:00").
		WillReturnRows(rows)

	bookings, err := repo.FindOverlapping(context.Background(), "room-1", date, "10:00", "12:00")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	require.Equal(t, "bk-1", bookings[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateBatchAllOrNothing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	date := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO room_bookings")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO room_bookings")).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := repo.CreateBatch(context.Background(), []models.RoomBooking{
		{RoomID: "room-1", BookingDate: date, StartTime: "09:00", EndTime: "10:00"},
		{RoomID: "room-1", BookingDate: date.AddDate(0, 0, 7), StartTime: "09:00", EndTime: "10:00"},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateBatchEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	require.NoError(t, repo.CreateBatch(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCancel(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE room_bookings SET status = 'CANCELLED'")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Cancel(context.Background(), "bk-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
