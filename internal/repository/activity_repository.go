package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/domain"
	"gorm.io/gorm"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, entry *domain.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *ActivityRepository) ListByTarget(ctx context.Context, targetKind domain.OwnerKind, targetID uuid.UUID, limit int) ([]domain.ActivityLog, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = 50
	}
	var entries []domain.ActivityLog
	err := r.db.WithContext(ctx).
		Where("target_kind = ? AND target_id = ?", targetKind, targetID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *ActivityRepository) ListRecent(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = 50
	}
	var entries []domain.ActivityLog
	err := r.db.WithContext(ctx).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
