package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/auth"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/mapper"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CommentService attaches threaded notes to any owning entity
type CommentService struct {
	commentRepo *repository.CommentRepository
	logger      *zap.Logger
}

func NewCommentService(
	commentRepo *repository.CommentRepository,
	logger *zap.Logger,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		logger:      logger,
	}
}

func (s *CommentService) Create(ctx context.Context, ownerKind domain.OwnerKind, ownerID uuid.UUID, req *domain.CreateCommentRequest) (*domain.CommentDTO, error) {
	if !ownerKind.IsValid() {
		return nil, fmt.Errorf("%w: unknown owner kind %q", ErrInvalidInput, ownerKind)
	}

	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	comment := &domain.Comment{
		OwnerKind:  ownerKind,
		OwnerID:    ownerID,
		AuthorID:   userCtx.UserID,
		AuthorName: userCtx.DisplayName,
		Body:       req.Body,
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	dto := mapper.ToCommentDTO(comment)
	return &dto, nil
}

func (s *CommentService) ListByOwner(ctx context.Context, ownerKind domain.OwnerKind, ownerID uuid.UUID) ([]domain.CommentDTO, error) {
	if !ownerKind.IsValid() {
		return nil, fmt.Errorf("%w: unknown owner kind %q", ErrInvalidInput, ownerKind)
	}

	comments, err := s.commentRepo.ListByOwner(ctx, ownerKind, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	dtos := make([]domain.CommentDTO, len(comments))
	for i := range comments {
		dtos[i] = mapper.ToCommentDTO(&comments[i])
	}
	return dtos, nil
}

// Delete removes a comment. Authors can delete their own; staff can delete any.
func (s *CommentService) Delete(ctx context.Context, id uuid.UUID) error {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get comment: %w", err)
	}

	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	if comment.AuthorID != userCtx.UserID && !userCtx.IsStaff() {
		return ErrPermissionDenied
	}

	if err := s.commentRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}
