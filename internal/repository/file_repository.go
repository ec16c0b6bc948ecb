package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/domain"
	"gorm.io/gorm"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *domain.File) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.File, error) {
	var file domain.File
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *FileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.File{}, "id = ?", id).Error
}

func (r *FileRepository) ListByOwner(ctx context.Context, ownerKind domain.OwnerKind, ownerID uuid.UUID) ([]domain.File, error) {
	var files []domain.File
	err := r.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ?", ownerKind, ownerID).
		Order("created_at DESC").
		Find(&files).Error
	return files, err
}

func (r *FileRepository) GetByOwnerAndKind(ctx context.Context, ownerKind domain.OwnerKind, ownerID uuid.UUID, kind domain.FileKind) (*domain.File, error) {
	var file domain.File
	err := r.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ? AND kind = ?", ownerKind, ownerID, kind).
		Order("created_at DESC").
		First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}
