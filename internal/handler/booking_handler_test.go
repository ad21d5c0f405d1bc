package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/unipanel/unipanel-api/internal/models"
	"github.com/unipanel/unipanel-api/internal/service"
)

type fakeBookingRepo struct {
	rooms    map[string]*models.Room
	existing []models.RoomBooking
	created  []models.RoomBooking
}

func (f *fakeBookingRepo) FindRoom(ctx context.Context, id string) (*models.Room, error) {
	if r, ok := f.rooms[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeBookingRepo) ListRooms(ctx context.Context) ([]models.Room, error) {
	return nil, nil
}

func (f *fakeBookingRepo) List(ctx context.Context, filter models.BookingFilter) ([]models.RoomBooking, int, error) {
	return f.existing, len(f.existing), nil
}

func (f *fakeBookingRepo) FindByID(ctx context.Context, id string) (*models.RoomBooking, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeBookingRepo) FindOverlapping(ctx context.Context, roomID string, date time.Time, startTime, endTime string) ([]models.RoomBooking, error) {
	var hits []models.RoomBooking
	for _, b := range f.existing {
		if b.RoomID == roomID && b.BookingDate.Equal(date) && models.Overlaps(startTime, endTime, b.StartTime, b.EndTime) {
			hits = append(hits, b)
		}
	}
	return hits, nil
}

func (f *fakeBookingRepo) CreateBatch(ctx context.Context, bookings []models.RoomBooking) error {
	f.created = append(f.created, bookings...)
	return nil
}

func (f *fakeBookingRepo) Cancel(ctx context.Context, id string) error {
	return nil
}

func newBookingTestRouter(repo *fakeBookingRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewBookingService(repo, 0, validator.New(), zap.NewNop())
	handler := NewBookingHandler(svc)
	router := gin.New()
	router.POST("/bookings", handler.Create)
	return router
}

func TestBookingHandlerCreate(t *testing.T) {
	repo := &fakeBookingRepo{rooms: map[string]*models.Room{"r1": {ID: "r1", Active: true}}}
	router := newBookingTestRouter(repo)

	body := `{"room_id":"r1","date":"2026-02-02T00:00:00Z","start_time":"10:00","end_time":"12:00","purpose":"Seminar","booked_by":"u1"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, repo.created, 1)
}

func TestBookingHandlerCreateConflict(t *testing.T) {
	date := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	repo := &fakeBookingRepo{
		rooms: map[string]*models.Room{"r1": {ID: "r1", Active: true}},
		existing: []models.RoomBooking{
			{ID: "b1", RoomID: "r1", BookingDate: date, StartTime: "11:00", EndTime: "13:00", Status: models.BookingStatusConfirmed},
		},
	}
	router := newBookingTestRouter(repo)

	body := `{"room_id":"r1","date":"2026-02-02T00:00:00Z","start_time":"10:00","end_time":"12:00","purpose":"Seminar","booked_by":"u1"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, repo.created)
}

func TestBookingHandlerCreateRejectsMalformedPayload(t *testing.T) {
	repo := &fakeBookingRepo{rooms: map[string]*models.Room{"r1": {ID: "r1", Active: true}}}
	router := newBookingTestRouter(repo)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
