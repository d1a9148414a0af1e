package repository

import (
	"context"

	"github.com/minqi/snaplore/internal/domain"
	"gorm.io/gorm"
)

// QueryRepository handles query history operations.
type QueryRepository struct {
	db *gorm.DB
}

// NewQueryRepository creates a new QueryRepository.
func NewQueryRepository(db *gorm.DB) *QueryRepository {
	return &QueryRepository{db: db}
}

// Create inserts a new query history record.
func (r *QueryRepository) Create(ctx context.Context, q *domain.Query) error {
	return r.db.WithContext(ctx).Create(q).Error
}

// ListByUser retrieves a user's query history with pagination, newest first.
func (r *QueryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Query, error) {
	var queries []domain.Query
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&queries).Error; err != nil {
		return nil, err
	}
	return queries, nil
}

// CountByUser counts a user's query history rows.
func (r *QueryRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Query{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
