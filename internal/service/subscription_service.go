package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/config"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/mapper"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubscriptionService manages recurring plans: trials, renewal billing,
// cancellation, plan changes and typed custom field values.
type SubscriptionService struct {
	subRepo     *repository.SubscriptionRepository
	clientRepo  *repository.ClientRepository
	catalogRepo *repository.CatalogRepository
	invoiceRepo *repository.InvoiceRepository
	sequences   *NumberSequenceService
	activities  *ActivityService
	billing     *config.BillingConfig
	logger      *zap.Logger
}

func NewSubscriptionService(
	subRepo *repository.SubscriptionRepository,
	clientRepo *repository.ClientRepository,
	catalogRepo *repository.CatalogRepository,
	invoiceRepo *repository.InvoiceRepository,
	sequences *NumberSequenceService,
	activities *ActivityService,
	billing *config.BillingConfig,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subRepo:     subRepo,
		clientRepo:  clientRepo,
		catalogRepo: catalogRepo,
		invoiceRepo: invoiceRepo,
		sequences:   sequences,
		activities:  activities,
		billing:     billing,
		logger:      logger,
	}
}

// Create starts a subscription directly, outside the quote flow. With
// TrialDays set the subscription starts in trial and first bills when the
// trial ends.
func (s *SubscriptionService) Create(ctx context.Context, req *domain.CreateSubscriptionRequest) (*domain.SubscriptionDTO, error) {
	client, err := s.clientRepo.GetByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: client not found", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	plan, err := s.catalogRepo.GetPlanByID(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: plan not found", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	price, err := s.catalogRepo.GetPlanPriceByID(ctx, req.PlanPriceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: plan price not found", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to get plan price: %w", err)
	}
	if price.PlanID != plan.ID {
		return nil, fmt.Errorf("%w: plan price does not belong to plan", ErrInvalidInput)
	}

	now := time.Now()
	sub := &domain.Subscription{
		ClientID:    client.ID,
		Client:      client,
		PlanID:      plan.ID,
		Plan:        plan,
		PlanPriceID: price.ID,
		Cycle:       price.Cycle,
		StartedAt:   now,
	}
	if req.TrialDays > 0 {
		sub.Status = domain.SubscriptionStatusTrial
		sub.NextBillingAt = now.AddDate(0, 0, req.TrialDays)
	} else {
		sub.Status = domain.SubscriptionStatusActive
		sub.NextBillingAt = price.Cycle.NextFrom(now)
	}
	// Field values stay unset until written explicitly; reads surface null
	// for anything the client never set.
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	s.activities.Record(ctx, domain.OwnerSubscription, sub.ID,
		"Subscription started",
		fmt.Sprintf("Plan '%s' (%s) started for '%s'", plan.Name, price.Cycle, client.Name))

	dto := mapper.ToSubscriptionDTO(sub)
	return &dto, nil
}

func (s *SubscriptionService) GetByID(ctx context.Context, id uuid.UUID) (*domain.SubscriptionDTO, error) {
	sub, err := s.subRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	dto := mapper.ToSubscriptionDTO(sub)
	return &dto, nil
}

func (s *SubscriptionService) List(ctx context.Context, page, pageSize int, status domain.SubscriptionStatus, clientID *uuid.UUID) (*domain.PaginatedResponse, error) {
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

	subs, total, err := s.subRepo.List(ctx, page, pageSize, status, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	dtos := make([]domain.SubscriptionDTO, len(subs))
	for i := range subs {
		dtos[i] = mapper.ToSubscriptionDTO(&subs[i])
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

// Cancel stops a subscription, either immediately or at the end of the
// current billing period.
func (s *SubscriptionService) Cancel(ctx context.Context, id uuid.UUID, req *domain.CancelSubscriptionRequest) (*domain.SubscriptionDTO, error) {
	sub, err := s.subRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	switch sub.Status {
	case domain.SubscriptionStatusCancelled, domain.SubscriptionStatusExpired:
		return nil, fmt.Errorf("%w: subscription is %s", ErrInvalidStatus, sub.Status)
	}

	now := time.Now()
	sub.CancelledAt = &now
	sub.Status = domain.SubscriptionStatusCancelled
	if req != nil && req.AtPeriodEnd {
		periodEnd := sub.NextBillingAt
		sub.EndsAt = &periodEnd
	} else {
		sub.EndsAt = &now
	}

	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	body := "Subscription cancelled immediately"
	if req != nil && req.AtPeriodEnd {
		body = fmt.Sprintf("Subscription runs until %s", sub.NextBillingAt.Format("2006-01-02"))
	}
	s.activities.Record(ctx, domain.OwnerSubscription, sub.ID, "Subscription cancelled", body)

	dto := mapper.ToSubscriptionDTO(sub)
	return &dto, nil
}

// ChangePlan moves a live subscription to another plan or billing option.
// Field values for fields the new plan also declares are kept; fields new to
// the plan are seeded from their defaults.
func (s *SubscriptionService) ChangePlan(ctx context.Context, id uuid.UUID, req *domain.ChangePlanRequest) (*domain.SubscriptionDTO, error) {
	sub, err := s.subRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	if sub.Status != domain.SubscriptionStatusActive && sub.Status != domain.SubscriptionStatusTrial {
		return nil, ErrSubscriptionInactive
	}

	plan, err := s.catalogRepo.GetPlanByID(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: plan not found", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	price, err := s.catalogRepo.GetPlanPriceByID(ctx, req.PlanPriceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: plan price not found", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to get plan price: %w", err)
	}
	if price.PlanID != plan.ID {
		return nil, fmt.Errorf("%w: plan price does not belong to plan", ErrInvalidInput)
	}

	sub.PlanID = plan.ID
	sub.Plan = plan
	sub.PlanPriceID = price.ID
	sub.Cycle = price.Cycle
	// The swap takes effect immediately, so the billing anchor restarts here
	sub.NextBillingAt = price.Cycle.NextFrom(time.Now())

	// Carry over matching field values, seed the rest from defaults
	values := make([]domain.SubscriptionFieldValue, 0, len(plan.Fields))
	for _, field := range plan.Fields {
		value := datatypes.JSON(field.Default)
		if existing := sub.FieldValue(field.Name); existing != nil && existing.Kind == field.Kind {
			value = existing.Value
		}
		if len(value) == 0 {
			value = datatypes.JSON("null")
		}
		values = append(values, domain.SubscriptionFieldValue{
			Name:  field.Name,
			Kind:  field.Kind,
			Value: value,
		})
	}

	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to change plan: %w", err)
	}
	if err := s.subRepo.ReplaceFieldValues(ctx, sub.ID, values); err != nil {
		return nil, fmt.Errorf("failed to seed field values: %w", err)
	}

	s.activities.Record(ctx, domain.OwnerSubscription, sub.ID,
		"Plan changed", fmt.Sprintf("Subscription moved to plan '%s' (%s)", plan.Name, price.Cycle))

	updated, err := s.subRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload subscription: %w", err)
	}
	dto := mapper.ToSubscriptionDTO(updated)
	return &dto, nil
}

// SetFieldValue writes one custom field value. The field must be declared on
// the subscription's plan and the value must match the declared kind.
func (s *SubscriptionService) SetFieldValue(ctx context.Context, id uuid.UUID, req *domain.SetFieldValueRequest) (*domain.SubscriptionDTO, error) {
	sub, err := s.subRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	plan, err := s.catalogRepo.GetPlanByID(ctx, sub.PlanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	var declared *domain.PlanField
	for i := range plan.Fields {
		if plan.Fields[i].Name == req.Name {
			declared = &plan.Fields[i]
			break
		}
	}
	if declared == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, req.Name)
	}
	if err := validateFieldValue(declared.Kind, req.Value); err != nil {
		return nil, err
	}

	value := sub.FieldValue(req.Name)
	if value == nil {
		value = &domain.SubscriptionFieldValue{
			SubscriptionID: sub.ID,
			Name:           declared.Name,
			Kind:           declared.Kind,
		}
	}
	value.Value = datatypes.JSON(req.Value)

	if err := s.subRepo.SaveFieldValue(ctx, value); err != nil {
		return nil, fmt.Errorf("failed to save field value: %w", err)
	}

	updated, err := s.subRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload subscription: %w", err)
	}
	dto := mapper.ToSubscriptionDTO(updated)
	return &dto, nil
}

// RenewDue bills every subscription whose billing date has arrived: an
// unpaid renewal invoice is issued and the anchor advances one cycle from
// the PREVIOUS anchor, so late runs do not drift the schedule. Subscriptions
// cancelled at period end are skipped and left for the expiry sweep.
func (s *SubscriptionService) RenewDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.subRepo.ListDueForRenewal(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due subscriptions: %w", err)
	}

	renewed := 0
	for i := range due {
		sub := &due[i]
		if sub.EndsAt != nil {
			continue
		}
		if err := s.renewOne(ctx, sub); err != nil {
			s.logger.Error("failed to renew subscription",
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err))
			continue
		}
		renewed++
	}
	return renewed, nil
}

func (s *SubscriptionService) renewOne(ctx context.Context, sub *domain.Subscription) error {
	price, err := s.catalogRepo.GetPlanPriceByID(ctx, sub.PlanPriceID)
	if err != nil {
		return fmt.Errorf("failed to get plan price: %w", err)
	}

	number, err := s.sequences.GenerateInvoiceNumber(ctx)
	if err != nil {
		return err
	}

	dueDate := time.Now().AddDate(0, 0, s.billing.DueDays)
	invoice := &domain.Invoice{
		Number:      number,
		ClientID:    sub.ClientID,
		Status:      domain.InvoiceStatusUnpaid,
		Currency:    price.Currency,
		TotalAmount: price.Amount,
		BalanceDue:  price.Amount,
		DueDate:     &dueDate,
		Subscriptions: []domain.InvoiceSubscription{{
			PlanID:         sub.PlanID,
			PlanPriceID:    sub.PlanPriceID,
			Cycle:          sub.Cycle,
			PriceSnapshot:  price.Amount,
			SubscriptionID: &sub.ID,
		}},
	}
	invoice.Checksum = invoiceChecksum(sub.ClientID, uuid.Nil, number, price.Amount, s.billing.ChecksumSecret)

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return fmt.Errorf("failed to create renewal invoice: %w", err)
	}

	// Advance from the previous anchor, not from now
	sub.NextBillingAt = sub.Cycle.NextFrom(sub.NextBillingAt)
	if sub.Status == domain.SubscriptionStatusTrial {
		sub.Status = domain.SubscriptionStatusActive
	}
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return fmt.Errorf("failed to advance billing anchor: %w", err)
	}

	s.activities.Record(ctx, domain.OwnerSubscription, sub.ID,
		"Subscription renewed",
		fmt.Sprintf("Renewal invoice %s issued, next billing %s", number, sub.NextBillingAt.Format("2006-01-02")))

	return nil
}

// SweepEnded expires subscriptions past their end date.
func (s *SubscriptionService) SweepEnded(ctx context.Context, now time.Time) (int, error) {
	ended, err := s.subRepo.ListEnded(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list ended subscriptions: %w", err)
	}

	expired := 0
	for i := range ended {
		sub := &ended[i]
		sub.Status = domain.SubscriptionStatusExpired
		if err := s.subRepo.Update(ctx, sub); err != nil {
			s.logger.Error("failed to expire subscription",
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err))
			continue
		}
		expired++
		s.activities.Record(ctx, domain.OwnerSubscription, sub.ID,
			"Subscription ended", "Subscription is now expired")
	}
	return expired, nil
}

// MarkPastDue flags active subscriptions whose renewal invoice stayed unpaid
// past its due date. Runs before the renewal sweep so a delinquent
// subscription is not handed a fresh invoice first.
func (s *SubscriptionService) MarkPastDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.subRepo.ListWithUnpaidRenewal(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue subscriptions: %w", err)
	}

	flagged := 0
	for i := range due {
		sub := &due[i]
		sub.Status = domain.SubscriptionStatusPastDue
		if err := s.subRepo.Update(ctx, sub); err != nil {
			s.logger.Error("failed to mark subscription past due",
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err))
			continue
		}
		flagged++
	}
	return flagged, nil
}

// validateFieldValue checks a JSON value against the declared field kind.
func validateFieldValue(kind domain.FieldKind, raw []byte) error {
	switch kind {
	case domain.FieldKindNumber:
		var v float64
		if err := jsonUnmarshalStrict(raw, &v); err != nil {
			return fmt.Errorf("%w: expected a number", ErrInvalidInput)
		}
	case domain.FieldKindBoolean:
		var v bool
		if err := jsonUnmarshalStrict(raw, &v); err != nil {
			return fmt.Errorf("%w: expected a boolean", ErrInvalidInput)
		}
	case domain.FieldKindText:
		var v string
		if err := jsonUnmarshalStrict(raw, &v); err != nil {
			return fmt.Errorf("%w: expected a string", ErrInvalidInput)
		}
	case domain.FieldKindJSON:
		// any valid JSON
		var v interface{}
		if err := jsonUnmarshalStrict(raw, &v); err != nil {
			return fmt.Errorf("%w: invalid JSON value", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown field kind %q", ErrInvalidInput, kind)
	}
	return nil
}

// jsonUnmarshalStrict rejects trailing garbage after the value.
func jsonUnmarshalStrict(raw []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected trailing data")
	}
	return nil
}
