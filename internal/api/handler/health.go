package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/minqi/snaplore/internal/repository"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db    *gorm.DB
	index repository.VectorIndex
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db *gorm.DB, index repository.VectorIndex) *HealthHandler {
	return &HealthHandler{db: db, index: index}
}

// Health returns the liveness status of the service.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready reports dependency health. A disconnected vector index degrades the
// response but does not fail it; the service still accepts uploads.
func (h *HealthHandler) Ready(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unavailable",
			"database": "down",
		})
		return
	}

	indexStatus := "connected"
	if !h.index.Connected() {
		indexStatus = "disconnected"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ready",
		"database":     "up",
		"vector_index": indexStatus,
	})
}
