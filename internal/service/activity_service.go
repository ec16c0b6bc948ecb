package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/auth"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/mapper"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
)

// ActivityService records and reads the audit trail of domain events
type ActivityService struct {
	activityRepo *repository.ActivityRepository
	logger       *zap.Logger
}

func NewActivityService(
	activityRepo *repository.ActivityRepository,
	logger *zap.Logger,
) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
		logger:       logger,
	}
}

// Record writes an activity entry. The actor is taken from the request
// context when present; background jobs record without one. Failures are
// logged and swallowed so they never fail the business operation.
func (s *ActivityService) Record(ctx context.Context, targetKind domain.OwnerKind, targetID uuid.UUID, title, body string) {
	entry := &domain.ActivityLog{
		TargetKind: targetKind,
		TargetID:   targetID,
		Title:      title,
		Body:       body,
		OccurredAt: time.Now(),
	}
	if userCtx, ok := auth.FromContext(ctx); ok {
		entry.ActorID = &userCtx.UserID
		entry.ActorName = userCtx.DisplayName
	}

	if err := s.activityRepo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record activity",
			zap.String("target_kind", string(targetKind)),
			zap.String("target_id", targetID.String()),
			zap.Error(err))
	}
}

// ListByTarget returns the activity trail of one entity, newest first.
func (s *ActivityService) ListByTarget(ctx context.Context, targetKind domain.OwnerKind, targetID uuid.UUID, limit int) ([]domain.ActivityLogDTO, error) {
	if !targetKind.IsValid() {
		return nil, fmt.Errorf("%w: unknown target kind %q", ErrInvalidInput, targetKind)
	}

	entries, err := s.activityRepo.ListByTarget(ctx, targetKind, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}

	dtos := make([]domain.ActivityLogDTO, len(entries))
	for i := range entries {
		dtos[i] = mapper.ToActivityLogDTO(&entries[i])
	}
	return dtos, nil
}

// ListRecent returns the most recent activity across all entities.
func (s *ActivityService) ListRecent(ctx context.Context, limit int) ([]domain.ActivityLogDTO, error) {
	entries, err := s.activityRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}

	dtos := make([]domain.ActivityLogDTO, len(entries))
	for i := range entries {
		dtos[i] = mapper.ToActivityLogDTO(&entries[i])
	}
	return dtos, nil
}
