package repository

import (
	"context"
	"fmt"

	"github.com/minqi/snaplore/internal/domain"
	"gorm.io/gorm"
)

// ScreenshotRepository handles screenshot data operations.
type ScreenshotRepository struct {
	db *gorm.DB
}

// NewScreenshotRepository creates a new ScreenshotRepository.
func NewScreenshotRepository(db *gorm.DB) *ScreenshotRepository {
	return &ScreenshotRepository{db: db}
}

// Create inserts a new screenshot record.
func (r *ScreenshotRepository) Create(ctx context.Context, shot *domain.Screenshot) error {
	return r.db.WithContext(ctx).Create(shot).Error
}

// GetByID retrieves a screenshot by its ID.
func (r *ScreenshotRepository) GetByID(ctx context.Context, id string) (*domain.Screenshot, error) {
	var shot domain.Screenshot
	if err := r.db.WithContext(ctx).First(&shot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &shot, nil
}

// GetOwned retrieves a screenshot by ID, scoped to its owner.
func (r *ScreenshotRepository) GetOwned(ctx context.Context, id, userID string) (*domain.Screenshot, error) {
	var shot domain.Screenshot
	if err := r.db.WithContext(ctx).First(&shot, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &shot, nil
}

// ListByUser retrieves a user's screenshots with pagination, newest first.
func (r *ScreenshotRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Screenshot, error) {
	var shots []domain.Screenshot
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&shots).Error; err != nil {
		return nil, err
	}
	return shots, nil
}

// GetByIDs retrieves screenshots by a list of IDs. Order is not guaranteed;
// callers that care about ranking must reorder by the input list.
func (r *ScreenshotRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Screenshot, error) {
	if len(ids) == 0 {
		return []domain.Screenshot{}, nil
	}
	var shots []domain.Screenshot
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&shots).Error; err != nil {
		return nil, fmt.Errorf("failed to get screenshots by IDs: %w", err)
	}
	return shots, nil
}

// UpdateUserFields updates the user-editable fields of a screenshot.
func (r *ScreenshotRepository) UpdateUserFields(ctx context.Context, id string, note string, tags []string) error {
	updates := map[string]interface{}{
		"user_note": note,
		"tags":      domain.StringArray(tags),
	}
	return r.db.WithContext(ctx).
		Model(&domain.Screenshot{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateURLs refreshes the presigned access URLs of a screenshot.
func (r *ScreenshotRepository) UpdateURLs(ctx context.Context, id, imageURL, thumbnailURL string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Screenshot{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"image_url":     imageURL,
			"thumbnail_url": thumbnailURL,
		}).Error
}

// CompleteEnrichment commits all derived fields and marks the record
// processed in a single write. Only pending records transition; a record
// already marked processed or error is left untouched.
func (r *ScreenshotRepository) CompleteEnrichment(ctx context.Context, id string, e *domain.Enrichment) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Screenshot{}).
		Where("id = ? AND process_status = ?", id, domain.StatusPending).
		Updates(map[string]interface{}{
			"ai_title":       e.Title,
			"ai_description": e.Description,
			"tags":           domain.StringArray(e.Tags),
			"narrative":      e.Narrative,
			"quick_link":     e.QuickLink,
			"vector_id":      e.VectorID,
			"process_status": domain.StatusProcessed,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("screenshot %s is not pending", id)
	}
	return nil
}

// MarkError transitions a pending record to the error state.
func (r *ScreenshotRepository) MarkError(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Screenshot{}).
		Where("id = ? AND process_status = ?", id, domain.StatusPending).
		Update("process_status", domain.StatusError).Error
}

// ListPending retrieves pending records, oldest first.
func (r *ScreenshotRepository) ListPending(ctx context.Context, limit int) ([]domain.Screenshot, error) {
	var shots []domain.Screenshot
	if err := r.db.WithContext(ctx).
		Where("process_status = ?", domain.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&shots).Error; err != nil {
		return nil, err
	}
	return shots, nil
}

// CountByStatus counts screenshots by processing status.
func (r *ScreenshotRepository) CountByStatus(ctx context.Context, status domain.ProcessStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Screenshot{}).
		Where("process_status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Delete removes a screenshot by ID.
func (r *ScreenshotRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.Screenshot{}, "id = ?", id).Error
}
