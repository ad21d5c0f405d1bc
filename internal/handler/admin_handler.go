package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unipanel/unipanel-api/internal/service"
	"github.com/unipanel/unipanel-api/pkg/response"
)

// AdminHandler exposes observability and reconciliation endpoints.
type AdminHandler struct {
	metrics        *service.MetricsService
	reconciliation *service.ReconciliationService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(metrics *service.MetricsService, reconciliation *service.ReconciliationService) *AdminHandler {
	return &AdminHandler{metrics: metrics, reconciliation: reconciliation}
}

// Prometheus serves the Prometheus scrape endpoint.
func (h *AdminHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness probes.
func (h *AdminHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Snapshot godoc
// @Summary System metrics snapshot
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/metrics [get]
func (h *AdminHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

// AuditCounters godoc
// @Summary Audit section enrollment counters
// @Description Reports sections whose denormalized counters disagree with the enrollment rows
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/reconciliation [get]
func (h *AdminHandler) AuditCounters(c *gin.Context) {
	report, err := h.reconciliation.Audit(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// RepairCounters godoc
// @Summary Repair drifted enrollment counters
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/reconciliation [post]
func (h *AdminHandler) RepairCounters(c *gin.Context) {
	report, err := h.reconciliation.Repair(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
