package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/mail"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SettlementService applies a confirmed payment to its invoice: it splits the
// amount proportionally across the invoice components, advances subscription
// lines toward materialization, updates the balance and, on full payment,
// spawns delivery projects. The whole application is one transaction and is
// idempotent, so a retried webhook cannot double-apply.
type SettlementService struct {
	paymentRepo *repository.PaymentRepository
	activities  *ActivityService
	mailer      *mail.Mailer
	logger      *zap.Logger
}

func NewSettlementService(
	paymentRepo *repository.PaymentRepository,
	activities *ActivityService,
	mailer *mail.Mailer,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		paymentRepo: paymentRepo,
		activities:  activities,
		mailer:      mailer,
		logger:      logger,
	}
}

// ApplyBySession settles the payment owning a checkout session. Provider
// webhooks deliver at least once; an already-settled session is a no-op.
func (s *SettlementService) ApplyBySession(ctx context.Context, sessionID string) error {
	pay, err := s.paymentRepo.GetByProviderSessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: no payment for session %s", ErrNotFound, sessionID)
		}
		return fmt.Errorf("failed to look up session: %w", err)
	}
	return s.Apply(ctx, pay.ID, domain.MethodStripe)
}

// Apply settles one payment. Safe to call twice: the second application
// detects the existing allocations and returns without touching anything.
func (s *SettlementService) Apply(ctx context.Context, paymentID uuid.UUID, method domain.PaymentMethod) error {
	var invoice domain.Invoice
	var pay *domain.Payment
	var duplicate bool

	err := s.paymentRepo.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		pay, err = s.paymentRepo.GetByIDForUpdate(ctx, tx, paymentID)
		if err != nil {
			return fmt.Errorf("failed to lock payment: %w", err)
		}

		if pay.Status == domain.PaymentStatusPaid {
			applied, err := s.paymentRepo.HasAllocations(ctx, tx, pay.ID)
			if err != nil {
				return err
			}
			if applied {
				// Duplicate delivery
				duplicate = true
				return nil
			}
		} else if pay.Status != domain.PaymentStatusPending {
			return fmt.Errorf("%w: payment is %s", ErrInvalidStatus, pay.Status)
		}

		if err := tx.WithContext(ctx).
			Preload("Client").
			Preload("Services.Service").
			Preload("Subscriptions").
			Where("id = ?", pay.InvoiceID).
			First(&invoice).Error; err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}

		allocations := buildAllocations(pay, &invoice)
		if err := s.paymentRepo.CreateAllocations(ctx, tx, allocations); err != nil {
			return fmt.Errorf("failed to create allocations: %w", err)
		}

		if err := s.advanceSubscriptionLines(ctx, tx, pay, &invoice); err != nil {
			return err
		}

		now := time.Now()
		pay.Status = domain.PaymentStatusPaid
		pay.Method = method
		pay.PaidAt = &now
		pay.Version++
		if err := tx.WithContext(ctx).Save(pay).Error; err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}

		balance := decimal.NewFromFloat(invoice.BalanceDue).
			Sub(decimal.NewFromFloat(pay.Amount)).Round(2)
		if balance.IsNegative() {
			balance = decimal.Zero
		}
		invoice.BalanceDue, _ = balance.Float64()
		if balance.IsZero() {
			invoice.Status = domain.InvoiceStatusPaid
		} else {
			invoice.Status = domain.InvoiceStatusPartiallyPaid
		}
		if err := tx.WithContext(ctx).Save(&invoice).Error; err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}

		if invoice.Status == domain.InvoiceStatusPaid {
			if err := s.onInvoicePaid(ctx, tx, &invoice); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if duplicate {
		s.logger.Info("payment already settled, ignoring duplicate",
			zap.String("payment_id", paymentID.String()))
		return nil
	}

	s.activities.Record(ctx, domain.OwnerPayment, pay.ID,
		"Payment settled",
		fmt.Sprintf("%.2f %s settled via %s on invoice %s", pay.Amount, pay.Currency, pay.Method, invoice.Number))
	s.sendReceipt(pay, &invoice)

	return nil
}

// FailBySession marks the payment owning a checkout session as failed. Only
// pending payments move; a settled payment ignores late failure events.
func (s *SettlementService) FailBySession(ctx context.Context, sessionID string) error {
	pay, err := s.paymentRepo.GetByProviderSessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: no payment for session %s", ErrNotFound, sessionID)
		}
		return fmt.Errorf("failed to look up session: %w", err)
	}

	return s.fail(ctx, pay)
}

// Fail marks a pending payment as failed.
func (s *SettlementService) Fail(ctx context.Context, paymentID uuid.UUID) error {
	pay, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get payment: %w", err)
	}
	return s.fail(ctx, pay)
}

func (s *SettlementService) fail(ctx context.Context, pay *domain.Payment) error {
	if pay.Status != domain.PaymentStatusPending {
		s.logger.Info("ignoring failure event for non-pending payment",
			zap.String("payment_id", pay.ID.String()),
			zap.String("status", string(pay.Status)))
		return nil
	}

	expectedVersion := pay.Version
	pay.Status = domain.PaymentStatusFailed
	if err := s.paymentRepo.UpdateVersioned(ctx, pay, expectedVersion); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Settled concurrently; the failure event lost the race
			return nil
		}
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}

	s.activities.Record(ctx, domain.OwnerPayment, pay.ID,
		"Payment failed", "The provider reported the checkout as failed or expired")
	return nil
}

// Revert undoes a settled payment after a refund: the amount returns to the
// invoice balance and projects spawned by the full settlement drop back to
// draft. Allocations stay on record for the audit trail.
func (s *SettlementService) Revert(ctx context.Context, paymentID uuid.UUID) error {
	var pay *domain.Payment

	err := s.paymentRepo.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		pay, err = s.paymentRepo.GetByIDForUpdate(ctx, tx, paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to lock payment: %w", err)
		}
		if pay.Status != domain.PaymentStatusPaid {
			return fmt.Errorf("%w: only paid payments can be refunded", ErrInvalidStatus)
		}

		var invoice domain.Invoice
		if err := tx.WithContext(ctx).Where("id = ?", pay.InvoiceID).First(&invoice).Error; err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}

		wasPaid := invoice.Status == domain.InvoiceStatusPaid

		pay.Status = domain.PaymentStatusRefunded
		pay.Version++
		if err := tx.WithContext(ctx).Save(pay).Error; err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}

		balance := decimal.NewFromFloat(invoice.BalanceDue).
			Add(decimal.NewFromFloat(pay.Amount)).Round(2)
		invoice.BalanceDue, _ = balance.Float64()
		if invoice.BalanceDue >= invoice.TotalAmount {
			invoice.Status = domain.InvoiceStatusUnpaid
		} else {
			invoice.Status = domain.InvoiceStatusPartiallyPaid
		}
		if err := tx.WithContext(ctx).Save(&invoice).Error; err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}

		if wasPaid {
			if err := tx.WithContext(ctx).Model(&domain.Project{}).
				Where("invoice_id = ? AND status = ?", invoice.ID, domain.ProjectStatusActive).
				Update("status", domain.ProjectStatusDraft).Error; err != nil {
				return fmt.Errorf("failed to revert projects: %w", err)
			}
			if invoice.QuoteID != nil {
				if err := tx.WithContext(ctx).Model(&domain.Quote{}).
					Where("id = ?", *invoice.QuoteID).
					Update("status", domain.QuoteStatusBilled).Error; err != nil {
					return fmt.Errorf("failed to reopen quote: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.activities.Record(ctx, domain.OwnerPayment, pay.ID,
		"Payment refunded",
		fmt.Sprintf("%.2f %s returned to the invoice balance", pay.Amount, pay.Currency))
	return nil
}

// buildAllocations splits the payment amount across the invoice's components
// proportionally to their share of the invoice total. The last row absorbs
// the rounding remainder so the rows always sum to the payment amount.
func buildAllocations(pay *domain.Payment, invoice *domain.Invoice) []domain.PaymentAllocation {
	total := decimal.NewFromFloat(invoice.TotalAmount)
	amount := decimal.NewFromFloat(pay.Amount)

	type component struct {
		kind   domain.AllocatableKind
		lineID *uuid.UUID
		share  decimal.Decimal
	}

	var components []component
	if servicesTotal := invoice.ServicesTotal(); servicesTotal > 0 {
		components = append(components, component{
			kind:  domain.AllocatableInvoice,
			share: decimal.NewFromFloat(servicesTotal),
		})
	}
	for i := range invoice.Subscriptions {
		lineID := invoice.Subscriptions[i].ID
		components = append(components, component{
			kind:   domain.AllocatableSubscription,
			lineID: &lineID,
			share:  decimal.NewFromFloat(invoice.Subscriptions[i].PriceSnapshot),
		})
	}
	if len(components) == 0 || total.IsZero() {
		return nil
	}

	allocations := make([]domain.PaymentAllocation, len(components))
	allocated := decimal.Zero
	for i, comp := range components {
		var slice decimal.Decimal
		if i == len(components)-1 {
			slice = amount.Sub(allocated)
		} else {
			slice = amount.Mul(comp.share).Div(total).Round(2)
			allocated = allocated.Add(slice)
		}
		value, _ := slice.Float64()
		allocations[i] = domain.PaymentAllocation{
			PaymentID:             pay.ID,
			Kind:                  comp.kind,
			InvoiceSubscriptionID: comp.lineID,
			Amount:                value,
			PaidPercentage:        pay.Percentage,
		}
	}
	return allocations
}

// advanceSubscriptionLines accumulates the paid percentage on each
// subscription line and materializes the subscription when a line reaches
// 100 percent.
func (s *SettlementService) advanceSubscriptionLines(ctx context.Context, tx *gorm.DB, pay *domain.Payment, invoice *domain.Invoice) error {
	for i := range invoice.Subscriptions {
		line := &invoice.Subscriptions[i]

		paid := decimal.NewFromFloat(line.PaidPercentage).
			Add(decimal.NewFromFloat(pay.Percentage))
		if paid.GreaterThan(decimal.NewFromInt(100)) {
			paid = decimal.NewFromInt(100)
		}
		line.PaidPercentage, _ = paid.Float64()

		if line.PaidPercentage >= 100 && line.SubscriptionID == nil {
			sub, err := s.materializeSubscription(ctx, tx, invoice.ClientID, line)
			if err != nil {
				return err
			}
			line.SubscriptionID = &sub.ID
		}

		if err := tx.WithContext(ctx).Save(line).Error; err != nil {
			return fmt.Errorf("failed to save subscription line: %w", err)
		}
	}
	return nil
}

// materializeSubscription creates the live subscription for a fully paid
// line. Custom field values stay unset until written explicitly.
func (s *SettlementService) materializeSubscription(ctx context.Context, tx *gorm.DB, clientID uuid.UUID, line *domain.InvoiceSubscription) (*domain.Subscription, error) {
	now := time.Now()
	sub := &domain.Subscription{
		ClientID:      clientID,
		PlanID:        line.PlanID,
		PlanPriceID:   line.PlanPriceID,
		Cycle:         line.Cycle,
		Status:        domain.SubscriptionStatusActive,
		StartedAt:     now,
		NextBillingAt: line.Cycle.NextFrom(now),
	}
	if err := tx.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	s.logger.Info("subscription materialized",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("plan_id", sub.PlanID.String()),
		zap.String("client_id", clientID.String()))

	return sub, nil
}

// onInvoicePaid runs the side effects of a fully settled invoice: the source
// quote closes and project-bearing services spawn their delivery projects.
func (s *SettlementService) onInvoicePaid(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	if invoice.QuoteID != nil {
		if err := tx.WithContext(ctx).Model(&domain.Quote{}).
			Where("id = ?", *invoice.QuoteID).
			Update("status", domain.QuoteStatusPaid).Error; err != nil {
			return fmt.Errorf("failed to close quote: %w", err)
		}
	}

	for _, line := range invoice.Services {
		if line.Service == nil || !line.Service.HasProjects {
			continue
		}

		var steps []string
		if len(line.Service.TaskSteps) > 0 {
			if err := json.Unmarshal(line.Service.TaskSteps, &steps); err != nil {
				s.logger.Warn("failed to decode task steps",
					zap.String("service_id", line.Service.ID.String()),
					zap.Error(err))
			}
		}

		serviceID := line.ServiceID
		project := &domain.Project{
			Name:      fmt.Sprintf("%s - %s", line.Service.Name, invoice.Number),
			ClientID:  invoice.ClientID,
			InvoiceID: &invoice.ID,
			ServiceID: &serviceID,
			Status:    domain.ProjectStatusActive,
			Tasks:     tasksWithEqualShares(steps),
			Progress:  &domain.ProjectProgress{},
		}
		if err := tx.WithContext(ctx).Create(project).Error; err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		s.logger.Info("project spawned from paid invoice",
			zap.String("project_id", project.ID.String()),
			zap.String("invoice_id", invoice.ID.String()),
			zap.Int("tasks", len(project.Tasks)))
	}
	return nil
}

// tasksWithEqualShares builds the task list with equal weights summing to
// exactly 100. The last task absorbs the rounding remainder.
func tasksWithEqualShares(titles []string) []domain.Task {
	if len(titles) == 0 {
		return nil
	}

	share := decimal.NewFromInt(100).Div(decimal.NewFromInt(int64(len(titles)))).Round(2)
	tasks := make([]domain.Task, len(titles))
	allocated := decimal.Zero
	for i, title := range titles {
		pct := share
		if i == len(titles)-1 {
			pct = decimal.NewFromInt(100).Sub(allocated)
		} else {
			allocated = allocated.Add(share)
		}
		value, _ := pct.Float64()
		tasks[i] = domain.Task{
			Title:      title,
			Status:     domain.TaskStatusTodo,
			Percentage: value,
		}
	}
	return tasks
}

func (s *SettlementService) sendReceipt(pay *domain.Payment, invoice *domain.Invoice) {
	if invoice.Client == nil || invoice.Client.Email == "" {
		return
	}

	msg := mail.Message{
		To:       invoice.Client.Email,
		Subject:  fmt.Sprintf("Payment received for invoice %s", invoice.Number),
		ClientID: invoice.ClientID.String(),
		Body: fmt.Sprintf("We received your payment of %.2f %s for invoice %s. Remaining balance: %.2f %s.",
			pay.Amount, pay.Currency, invoice.Number, invoice.BalanceDue, invoice.Currency),
	}
	if err := s.mailer.Send(msg); err != nil {
		s.logger.Warn("failed to send payment receipt",
			zap.String("payment_id", pay.ID.String()),
			zap.Error(err))
	}
}
