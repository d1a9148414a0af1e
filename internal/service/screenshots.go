package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minqi/snaplore/internal/domain"
	"github.com/minqi/snaplore/internal/logger"
	"github.com/minqi/snaplore/internal/repository"
	"github.com/minqi/snaplore/internal/storage"
)

// ScreenshotServiceConfig holds configuration for the screenshot service.
type ScreenshotServiceConfig struct {
	URLTTL time.Duration
}

// ScreenshotService owns the screenshot lifecycle around the enrichment
// pipeline: upload and record creation, listing, user edits, URL refresh,
// and deletion across database, object storage and vector index.
type ScreenshotService struct {
	shots    *repository.ScreenshotRepository
	index    repository.VectorIndex
	store    storage.ObjectStorage
	enricher *EnrichmentService
	urlTTL   time.Duration
}

// NewScreenshotService creates a new ScreenshotService.
func NewScreenshotService(
	shots *repository.ScreenshotRepository,
	index repository.VectorIndex,
	store storage.ObjectStorage,
	enricher *EnrichmentService,
	cfg *ScreenshotServiceConfig,
) *ScreenshotService {
	ttl := 24 * time.Hour
	if cfg != nil && cfg.URLTTL > 0 {
		ttl = cfg.URLTTL
	}
	return &ScreenshotService{
		shots:    shots,
		index:    index,
		store:    store,
		enricher: enricher,
		urlTTL:   ttl,
	}
}

// UploadRequest carries one screenshot upload.
type UploadRequest struct {
	Data     []byte
	Filename string
	UserNote string
}

// Upload stores the image and its thumbnail, creates the pending record and
// queues enrichment. The record is returned immediately; enrichment runs in
// the background.
func (s *ScreenshotService) Upload(ctx context.Context, userID string, req *UploadRequest) (*domain.Screenshot, error) {
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("empty upload")
	}

	meta, err := storage.ProbeImage(req.Data)
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}

	id := uuid.New().String()
	ctx = logger.SetScreenshotID(ctx, id)
	ctx = logger.SetUserID(ctx, userID)

	storageKey := fmt.Sprintf("screenshots/%s/%s.%s", userID, id, meta.Format)
	if err := s.store.Upload(ctx, storageKey, bytes.NewReader(req.Data), int64(len(req.Data)), getMIMEType(meta.Format)); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	thumbKey := ""
	if thumb, err := storage.MakeThumbnail(req.Data); err != nil {
		logger.CtxWarn(ctx, "thumbnail generation failed: %v", err)
	} else {
		thumbKey = fmt.Sprintf("screenshots/%s/%s_thumb.jpg", userID, id)
		if err := s.store.Upload(ctx, thumbKey, bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); err != nil {
			logger.CtxWarn(ctx, "thumbnail upload failed: %v", err)
			thumbKey = ""
		}
	}

	imageURL, thumbnailURL := s.presignPair(ctx, storageKey, thumbKey)

	shot := &domain.Screenshot{
		ID:           id,
		UserID:       userID,
		StorageKey:   storageKey,
		ThumbKey:     thumbKey,
		ImageURL:     imageURL,
		ThumbnailURL: thumbnailURL,
		UserNote:     strings.TrimSpace(req.UserNote),
		Status:       domain.StatusPending,
		VectorID:     domain.VectorRefNone,
		Width:        meta.Width,
		Height:       meta.Height,
		FileSize:     int64(len(req.Data)),
	}
	if err := s.shots.Create(ctx, shot); err != nil {
		// the record is the source of truth; orphaned blobs are cleaned up
		// best effort
		if delErr := s.store.Delete(ctx, storageKey); delErr != nil {
			logger.CtxWarn(ctx, "failed to clean up blob after create failure: %v", delErr)
		}
		return nil, fmt.Errorf("failed to create screenshot record: %w", err)
	}

	s.enricher.Enqueue(EnrichTask{
		ScreenshotID: id,
		UserID:       userID,
		Image:        req.Data,
		Format:       meta.Format,
	})

	logger.With(logger.Fields{
		logger.FieldSize: shot.FileSize,
	}).Info(ctx, "Screenshot uploaded, enrichment queued")

	return shot, nil
}

// Get retrieves one of the caller's screenshots.
func (s *ScreenshotService) Get(ctx context.Context, userID, id string) (*domain.Screenshot, error) {
	return s.shots.GetOwned(ctx, id, userID)
}

// List retrieves the caller's screenshots, newest first.
func (s *ScreenshotService) List(ctx context.Context, userID string, limit, offset int) ([]domain.Screenshot, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.shots.ListByUser(ctx, userID, limit, offset)
}

// UpdateRequest carries the user-editable fields of a screenshot.
type UpdateRequest struct {
	UserNote *string  `json:"user_note,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Update edits the user-owned fields of a screenshot. Derived fields are
// never touched here.
func (s *ScreenshotService) Update(ctx context.Context, userID, id string, req *UpdateRequest) (*domain.Screenshot, error) {
	shot, err := s.shots.GetOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	note := shot.UserNote
	if req.UserNote != nil {
		note = strings.TrimSpace(*req.UserNote)
	}
	tags := []string(shot.Tags)
	if req.Tags != nil {
		tags = req.Tags
	}

	if err := s.shots.UpdateUserFields(ctx, id, note, tags); err != nil {
		return nil, fmt.Errorf("failed to update screenshot: %w", err)
	}
	return s.shots.GetOwned(ctx, id, userID)
}

// RefreshURLs re-presigns the access URLs for a screenshot and persists them.
func (s *ScreenshotService) RefreshURLs(ctx context.Context, userID, id string) (*domain.Screenshot, error) {
	shot, err := s.shots.GetOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	imageURL, thumbnailURL := s.presignPair(ctx, shot.StorageKey, shot.ThumbKey)
	if err := s.shots.UpdateURLs(ctx, id, imageURL, thumbnailURL); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed URLs: %w", err)
	}

	shot.ImageURL = imageURL
	shot.ThumbnailURL = thumbnailURL
	return shot, nil
}

// Delete removes a screenshot everywhere: vector index, object storage and
// database. Blob and vector removal are best effort; the database row is
// authoritative.
func (s *ScreenshotService) Delete(ctx context.Context, userID, id string) error {
	shot, err := s.shots.GetOwned(ctx, id, userID)
	if err != nil {
		return err
	}

	ctx = logger.SetScreenshotID(ctx, id)

	if shot.VectorID != "" && shot.VectorID != domain.VectorRefNone {
		if err := s.index.Remove(ctx, shot.VectorID); err != nil {
			logger.CtxWarn(ctx, "failed to remove vector: %v", err)
		}
	}

	if err := s.store.Delete(ctx, shot.StorageKey); err != nil {
		logger.CtxWarn(ctx, "failed to delete blob %s: %v", shot.StorageKey, err)
	}
	if shot.ThumbKey != "" {
		if err := s.store.Delete(ctx, shot.ThumbKey); err != nil {
			logger.CtxWarn(ctx, "failed to delete thumbnail %s: %v", shot.ThumbKey, err)
		}
	}

	if err := s.shots.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete screenshot record: %w", err)
	}

	logger.CtxInfo(ctx, "Screenshot deleted")
	return nil
}

// Stats returns processing counts for the admin surface.
func (s *ScreenshotService) Stats(ctx context.Context) (map[string]interface{}, error) {
	pending, err := s.shots.CountByStatus(ctx, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	processed, err := s.shots.CountByStatus(ctx, domain.StatusProcessed)
	if err != nil {
		return nil, err
	}
	failed, err := s.shots.CountByStatus(ctx, domain.StatusError)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"total_pending":   pending,
		"total_processed": processed,
		"total_error":     failed,
		"index_connected": s.index.Connected(),
	}, nil
}

func (s *ScreenshotService) presignPair(ctx context.Context, storageKey, thumbKey string) (string, string) {
	imageURL, err := s.store.PresignURL(ctx, storageKey, s.urlTTL)
	if err != nil {
		logger.CtxWarn(ctx, "failed to presign image URL: %v", err)
		imageURL = s.store.GetURL(storageKey)
	}

	thumbnailURL := ""
	if thumbKey != "" {
		thumbnailURL, err = s.store.PresignURL(ctx, thumbKey, s.urlTTL)
		if err != nil {
			logger.CtxWarn(ctx, "failed to presign thumbnail URL: %v", err)
			thumbnailURL = s.store.GetURL(thumbKey)
		}
	}
	return imageURL, thumbnailURL
}
