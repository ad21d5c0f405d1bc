package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unipanel/unipanel-api/internal/models"
	"github.com/unipanel/unipanel-api/internal/service"
	appErrors "github.com/unipanel/unipanel-api/pkg/errors"
	"github.com/unipanel/unipanel-api/pkg/response"
)

// BookingHandler exposes room and booking endpoints.
type BookingHandler struct {
	bookings *service.BookingService
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// ListRooms godoc
// @Summary List bookable rooms
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *BookingHandler) ListRooms(c *gin.Context) {
	rooms, err := h.bookings.ListRooms(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// List godoc
// @Summary List room bookings
// @Tags Bookings
// @Produce json
// @Param roomId query string false "Filter by room"
// @Param date query string false "Filter by date (2006-01-02)"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	var filter models.BookingFilter
	filter.RoomID = c.Query("roomId")
	filter.Status = models.BookingStatus(c.Query("status"))
	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be formatted 2006-01-02"))
			return
		}
		filter.Date = &date
	}
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	bookings, pagination, err := h.bookings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Create godoc
// @Summary Book a room
// @Description Reserves a [start, end) interval, optionally weekly for recur_weeks additional weeks; the batch is all-or-nothing
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil && req.BookedBy == "" {
		req.BookedBy = claims.UserID
	}
	bookings, err := h.bookings.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bookings)
}

// Cancel godoc
// @Summary Cancel a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 204
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Cancel(c *gin.Context) {
	if err := h.bookings.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
