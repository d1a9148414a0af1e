package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/minqi/snaplore/internal/logger"
	"github.com/minqi/snaplore/internal/service"
)

// AdminHandler handles operational endpoints.
type AdminHandler struct {
	enricher    *service.EnrichmentService
	screenshots *service.ScreenshotService

	mu            sync.RWMutex
	lastRunTime   time.Time
	lastRequeued  int
	lastRunStatus string
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(enricher *service.EnrichmentService, screenshots *service.ScreenshotService) *AdminHandler {
	return &AdminHandler{
		enricher:    enricher,
		screenshots: screenshots,
	}
}

// RequeueRequest represents the requeue API request.
type RequeueRequest struct {
	Limit int `json:"limit"`
}

// RequeueResponse represents the requeue API response.
type RequeueResponse struct {
	Message  string `json:"message"`
	Requeued int    `json:"requeued"`
}

// Requeue handles POST /api/v1/admin/requeue. It re-enqueues records stuck
// in pending after a crash or restart.
func (h *AdminHandler) Requeue(c *gin.Context) {
	ctx := c.Request.Context()

	var req RequeueRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logger.CtxInfo(ctx, "Received requeue request: limit=%d, client_ip=%s", req.Limit, c.ClientIP())

	start := time.Now()
	requeued, err := h.enricher.RequeuePending(ctx, req.Limit)

	h.mu.Lock()
	h.lastRunTime = time.Now()
	h.lastRequeued = requeued
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	if err != nil {
		logger.With(logger.Fields{
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Error(ctx, "Requeue failed: error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldCount:      requeued,
	}).Info(ctx, "Requeue completed")

	c.JSON(http.StatusOK, RequeueResponse{
		Message:  "Requeue completed",
		Requeued: requeued,
	})
}

// StatusResponse represents the admin status.
type StatusResponse struct {
	LastRunTime   string `json:"last_run_time,omitempty"`
	LastRunStatus string `json:"last_run_status,omitempty"`
	LastRequeued  int    `json:"last_requeued"`
}

// Status handles GET /api/v1/admin/status.
func (h *AdminHandler) Status(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := StatusResponse{
		LastRunStatus: h.lastRunStatus,
		LastRequeued:  h.lastRequeued,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}

// Stats handles GET /api/v1/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.screenshots.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get stats: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
