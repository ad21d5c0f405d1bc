package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unipanel/unipanel-api/internal/models"
	"github.com/unipanel/unipanel-api/internal/service"
	appErrors "github.com/unipanel/unipanel-api/pkg/errors"
	"github.com/unipanel/unipanel-api/pkg/response"
)

// BillingHandler exposes student account endpoints.
type BillingHandler struct {
	billing *service.BillingService
}

// NewBillingHandler constructs BillingHandler.
func NewBillingHandler(billing *service.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// ListTransactions godoc
// @Summary List a student's account transactions
// @Tags Billing
// @Produce json
// @Param studentId path string true "Student ID"
// @Param type query string false "Filter by transaction type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/transactions [get]
func (h *BillingHandler) ListTransactions(c *gin.Context) {
	var filter models.TransactionFilter
	filter.StudentID = c.Param("studentId")
	filter.Type = models.TransactionType(c.Query("type"))
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	transactions, pagination, err := h.billing.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transactions, pagination)
}

// RecordPayment godoc
// @Summary Record a payment on a student account
// @Description Clears the financial hold when the balance falls back under the threshold
// @Tags Billing
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /students/{studentId}/payments [post]
func (h *BillingHandler) RecordPayment(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	transaction, err := h.billing.RecordPayment(c.Request.Context(), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, transaction)
}
