package service

import (
	"context"
	"fmt"
	"time"

	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
)

// DashboardService aggregates the counters shown on the back-office landing
// page. Everything is computed on demand; nothing is cached.
type DashboardService struct {
	clientRepo  *repository.ClientRepository
	quoteRepo   *repository.QuoteRepository
	invoiceRepo *repository.InvoiceRepository
	paymentRepo *repository.PaymentRepository
	subRepo     *repository.SubscriptionRepository
	ticketRepo  *repository.TicketRepository
	logger      *zap.Logger
}

func NewDashboardService(
	clientRepo *repository.ClientRepository,
	quoteRepo *repository.QuoteRepository,
	invoiceRepo *repository.InvoiceRepository,
	paymentRepo *repository.PaymentRepository,
	subRepo *repository.SubscriptionRepository,
	ticketRepo *repository.TicketRepository,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		clientRepo:  clientRepo,
		quoteRepo:   quoteRepo,
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		subRepo:     subRepo,
		ticketRepo:  ticketRepo,
		logger:      logger,
	}
}

// Metrics collects the dashboard counters as of now.
func (s *DashboardService) Metrics(ctx context.Context) (*domain.DashboardMetrics, error) {
	metrics := &domain.DashboardMetrics{}

	var err error
	if metrics.ClientCount, err = s.clientRepo.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count clients: %w", err)
	}

	metrics.OpenQuoteCount, err = s.quoteRepo.CountByStatus(ctx,
		domain.QuoteStatusDraft, domain.QuoteStatusSent, domain.QuoteStatusConfirmed, domain.QuoteStatusSigned)
	if err != nil {
		return nil, fmt.Errorf("failed to count open quotes: %w", err)
	}

	metrics.UnpaidInvoiceCount, err = s.invoiceRepo.CountByStatus(ctx,
		domain.InvoiceStatusSent, domain.InvoiceStatusUnpaid, domain.InvoiceStatusPartiallyPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to count unpaid invoices: %w", err)
	}

	metrics.OverdueInvoiceCount, err = s.invoiceRepo.CountByStatus(ctx, domain.InvoiceStatusOverdue)
	if err != nil {
		return nil, fmt.Errorf("failed to count overdue invoices: %w", err)
	}

	metrics.ActiveSubscriptions, err = s.subRepo.CountByStatus(ctx,
		domain.SubscriptionStatusTrial, domain.SubscriptionStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to count active subscriptions: %w", err)
	}

	metrics.PastDueSubscriptions, err = s.subRepo.CountByStatus(ctx, domain.SubscriptionStatusPastDue)
	if err != nil {
		return nil, fmt.Errorf("failed to count past due subscriptions: %w", err)
	}

	metrics.OpenTicketCount, err = s.ticketRepo.CountByStatus(ctx,
		domain.TicketStatusOpen, domain.TicketStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to count open tickets: %w", err)
	}

	if metrics.TotalOutstanding, err = s.invoiceRepo.SumOutstanding(ctx); err != nil {
		return nil, fmt.Errorf("failed to sum outstanding balances: %w", err)
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)
	if metrics.CollectedThisMonth, err = s.paymentRepo.SumPaidBetween(ctx, monthStart, monthEnd); err != nil {
		return nil, fmt.Errorf("failed to sum collected payments: %w", err)
	}

	return metrics, nil
}
