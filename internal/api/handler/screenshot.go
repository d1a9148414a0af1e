package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/minqi/snaplore/internal/api/middleware"
	"github.com/minqi/snaplore/internal/service"
)

// maxUploadBytes caps a single screenshot upload at 20 MB.
const maxUploadBytes = 20 << 20

// ScreenshotHandler handles screenshot endpoints.
type ScreenshotHandler struct {
	screenshots *service.ScreenshotService
}

// NewScreenshotHandler creates a new screenshot handler.
func NewScreenshotHandler(screenshots *service.ScreenshotService) *ScreenshotHandler {
	return &ScreenshotHandler{screenshots: screenshots}
}

// Upload handles POST /api/v1/screenshots.
// Accepts a multipart form with a "file" part and an optional "note" field.
func (h *ScreenshotHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Multipart field 'file' is required",
		})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "File exceeds the 20MB upload limit",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to open upload: " + err.Error(),
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read upload: " + err.Error(),
		})
		return
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "File exceeds the 20MB upload limit",
		})
		return
	}

	shot, err := h.screenshots.Upload(c.Request.Context(), middleware.UserID(c), &service.UploadRequest{
		Data:     data,
		Filename: fileHeader.Filename,
		UserNote: c.PostForm("note"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Upload failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, shot)
}

// List handles GET /api/v1/screenshots.
func (h *ScreenshotHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	shots, err := h.screenshots.List(c.Request.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list screenshots: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": shots,
		"total":   len(shots),
		"limit":   limit,
		"offset":  offset,
	})
}

// Get handles GET /api/v1/screenshots/:id.
func (h *ScreenshotHandler) Get(c *gin.Context) {
	shot, err := h.screenshots.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Screenshot not found",
		})
		return
	}

	c.JSON(http.StatusOK, shot)
}

// Update handles PATCH /api/v1/screenshots/:id.
func (h *ScreenshotHandler) Update(c *gin.Context) {
	var req service.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	shot, err := h.screenshots.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), &req)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Failed to update screenshot: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, shot)
}

// RefreshURL handles POST /api/v1/screenshots/:id/refresh-url.
func (h *ScreenshotHandler) RefreshURL(c *gin.Context) {
	shot, err := h.screenshots.RefreshURLs(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Failed to refresh URLs: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, shot)
}

// Delete handles DELETE /api/v1/screenshots/:id.
func (h *ScreenshotHandler) Delete(c *gin.Context) {
	if err := h.screenshots.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Failed to delete screenshot: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
