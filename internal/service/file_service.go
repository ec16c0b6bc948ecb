package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/mapper"
	"github.com/veloraops/agency-api/internal/repository"
	"github.com/veloraops/agency-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FileService stores uploads (attachments and signature images) against any
// owning entity and keeps the blob store and database in step.
type FileService struct {
	fileRepo   *repository.FileRepository
	quotes     *QuoteService
	activities *ActivityService
	storage    storage.Storage
	logger     *zap.Logger
}

func NewFileService(
	fileRepo *repository.FileRepository,
	quotes *QuoteService,
	activities *ActivityService,
	storage storage.Storage,
	logger *zap.Logger,
) *FileService {
	return &FileService{
		fileRepo:   fileRepo,
		quotes:     quotes,
		activities: activities,
		storage:    storage,
		logger:     logger,
	}
}

// Upload stores a blob and records it against the owner. Signature kinds are
// only meaningful on quotes; uploading one triggers the signature check that
// may flip the quote to signed.
func (s *FileService) Upload(ctx context.Context, ownerKind domain.OwnerKind, ownerID uuid.UUID, kind domain.FileKind, filename, contentType string, data io.Reader) (*domain.FileDTO, error) {
	if !ownerKind.IsValid() {
		return nil, fmt.Errorf("%w: unknown owner kind %q", ErrInvalidInput, ownerKind)
	}
	if kind == "" {
		kind = domain.FileKindAttachment
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown file kind %q", ErrInvalidInput, kind)
	}
	if kind != domain.FileKindAttachment && ownerKind != domain.OwnerQuote {
		return nil, fmt.Errorf("%w: signatures belong to quotes", ErrInvalidInput)
	}

	storagePath, size, err := s.storage.Upload(ctx, string(ownerKind), filename, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	file := &domain.File{
		OwnerKind:   ownerKind,
		OwnerID:     ownerID,
		Kind:        kind,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		StoragePath: storagePath,
	}

	if err := s.fileRepo.Create(ctx, file); err != nil {
		// Best effort cleanup of the orphaned blob
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn("failed to cleanup blob after DB error",
				zap.String("storage_path", storagePath),
				zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	s.activities.Record(ctx, ownerKind, ownerID,
		"File uploaded", fmt.Sprintf("File '%s' was uploaded", filename))

	if kind == domain.FileKindAdminSignature || kind == domain.FileKindClientSignature {
		if _, err := s.quotes.RecordSignature(ctx, ownerID); err != nil {
			s.logger.Warn("signature upload did not advance quote",
				zap.String("quote_id", ownerID.String()),
				zap.Error(err))
		}
	}

	dto := mapper.ToFileDTO(file)
	return &dto, nil
}

func (s *FileService) GetByID(ctx context.Context, id uuid.UUID) (*domain.FileDTO, error) {
	file, err := s.fileRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	dto := mapper.ToFileDTO(file)
	return &dto, nil
}

// Download retrieves a file's content.
// Returns: reader, filename, content-type, error
func (s *FileService) Download(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, string, error) {
	file, err := s.fileRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", "", ErrNotFound
		}
		return nil, "", "", fmt.Errorf("failed to get file: %w", err)
	}

	reader, err := s.storage.Download(ctx, file.StoragePath)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to download file: %w", err)
	}

	return reader, file.Filename, file.ContentType, nil
}

func (s *FileService) ListByOwner(ctx context.Context, ownerKind domain.OwnerKind, ownerID uuid.UUID) ([]domain.FileDTO, error) {
	if !ownerKind.IsValid() {
		return nil, fmt.Errorf("%w: unknown owner kind %q", ErrInvalidInput, ownerKind)
	}

	files, err := s.fileRepo.ListByOwner(ctx, ownerKind, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	dtos := make([]domain.FileDTO, len(files))
	for i := range files {
		dtos[i] = mapper.ToFileDTO(&files[i])
	}
	return dtos, nil
}

// Delete removes a file from both storage and database.
func (s *FileService) Delete(ctx context.Context, id uuid.UUID) error {
	file, err := s.fileRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get file: %w", err)
	}

	// Storage failure is logged, not fatal; the record still goes away
	if err := s.storage.Delete(ctx, file.StoragePath); err != nil {
		s.logger.Warn("failed to delete blob",
			zap.String("storage_path", file.StoragePath),
			zap.String("file_id", id.String()),
			zap.Error(err))
	}

	if err := s.fileRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	s.activities.Record(ctx, file.OwnerKind, file.OwnerID,
		"File deleted", fmt.Sprintf("File '%s' was deleted", file.Filename))

	return nil
}
