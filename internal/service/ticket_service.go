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

// TicketService manages client support requests
type TicketService struct {
	ticketRepo *repository.TicketRepository
	clientRepo *repository.ClientRepository
	activities *ActivityService
	logger     *zap.Logger
}

func NewTicketService(
	ticketRepo *repository.TicketRepository,
	clientRepo *repository.ClientRepository,
	activities *ActivityService,
	logger *zap.Logger,
) *TicketService {
	return &TicketService{
		ticketRepo: ticketRepo,
		clientRepo: clientRepo,
		activities: activities,
		logger:     logger,
	}
}

func (s *TicketService) Create(ctx context.Context, req *domain.CreateTicketRequest) (*domain.TicketDTO, error) {
	// Portal users can only open tickets on their own client
	if userCtx, ok := auth.FromContext(ctx); ok && !userCtx.CanAccessClient(req.ClientID) {
		return nil, ErrPermissionDenied
	}

	client, err := s.clientRepo.GetByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: client not found", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, req.Priority)
	}

	ticket := &domain.Ticket{
		ClientID: client.ID,
		Client:   client,
		Subject:  req.Subject,
		Body:     req.Body,
		Status:   domain.TicketStatusOpen,
		Priority: priority,
	}

	if err := s.ticketRepo.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	s.activities.Record(ctx, domain.OwnerTicket, ticket.ID,
		"Ticket opened", fmt.Sprintf("Ticket '%s' opened for '%s'", ticket.Subject, client.Name))

	dto := mapper.ToTicketDTO(ticket)
	return &dto, nil
}

func (s *TicketService) GetByID(ctx context.Context, id uuid.UUID) (*domain.TicketDTO, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	dto := mapper.ToTicketDTO(ticket)
	return &dto, nil
}

func (s *TicketService) UpdateStatus(ctx context.Context, id uuid.UUID, req *domain.UpdateTicketStatusRequest) (*domain.TicketDTO, error) {
	if !req.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, req.Status)
	}

	ticket, err := s.ticketRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	ticket.Status = req.Status
	if err := s.ticketRepo.Update(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}

	s.activities.Record(ctx, domain.OwnerTicket, ticket.ID,
		"Ticket status changed", fmt.Sprintf("Ticket '%s' is now %s", ticket.Subject, ticket.Status))

	dto := mapper.ToTicketDTO(ticket)
	return &dto, nil
}

func (s *TicketService) List(ctx context.Context, page, pageSize int, status domain.TicketStatus, priority domain.TicketPriority, clientID *uuid.UUID) (*domain.PaginatedResponse, error) {
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > repository.MaxPageSize {
		pageSize = repository.MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	if priority != "" && !priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, priority)
	}

	tickets, total, err := s.ticketRepo.List(ctx, page, pageSize, status, priority, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	dtos := make([]domain.TicketDTO, len(tickets))
	for i := range tickets {
		dtos[i] = mapper.ToTicketDTO(&tickets[i])
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}
