package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/mapper"
	"github.com/veloraops/agency-api/internal/payment"
	"github.com/veloraops/agency-api/internal/pdf"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// moroccanCountries are the client country spellings that route to bank
// transfer instead of card checkout.
var moroccanCountries = map[string]bool{
	"morocco": true,
	"maroc":   true,
	"ma":      true,
	"mar":     true,
}

// PaymentService opens and mutates collection attempts against invoices.
// Settlement itself lives in SettlementService.
type PaymentService struct {
	paymentRepo *repository.PaymentRepository
	invoiceRepo *repository.InvoiceRepository
	provider    *payment.StripeClient
	activities  *ActivityService
	settlement  *SettlementService
	renderer    *pdf.Renderer
	logger      *zap.Logger
}

func NewPaymentService(
	paymentRepo *repository.PaymentRepository,
	invoiceRepo *repository.InvoiceRepository,
	provider *payment.StripeClient,
	activities *ActivityService,
	settlement *SettlementService,
	renderer *pdf.Renderer,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		invoiceRepo: invoiceRepo,
		provider:    provider,
		activities:  activities,
		settlement:  settlement,
		renderer:    renderer,
		logger:      logger,
	}
}

// CreatePaymentLink opens a pending payment for a share of an invoice.
// Moroccan clients are routed to bank transfer; everyone else gets a Stripe
// checkout session. The invoice total is frozen on the payment so later
// invoice edits cannot change what an open link collects.
func (s *PaymentService) CreatePaymentLink(ctx context.Context, invoiceID uuid.UUID, req *domain.CreatePaymentLinkRequest) (*domain.PaymentDTO, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	switch invoice.Status {
	case domain.InvoiceStatusDraft:
		return nil, fmt.Errorf("%w: invoice is a draft", ErrInvalidStatus)
	case domain.InvoiceStatusPaid:
		return nil, fmt.Errorf("%w: invoice is already paid", ErrInvalidStatus)
	}

	percentage := 100.0
	if req != nil && req.Percentage > 0 {
		percentage = req.Percentage
	}

	amount := shareOf(invoice.TotalAmount, percentage)
	if amount > invoice.BalanceDue+0.01 {
		return nil, fmt.Errorf("%w: %.2f exceeds balance %.2f", ErrOverpayment, amount, invoice.BalanceDue)
	}

	pay := &domain.Payment{
		InvoiceID:  invoice.ID,
		ClientID:   invoice.ClientID,
		Total:      invoice.TotalAmount,
		Amount:     amount,
		Percentage: percentage,
		Currency:   invoice.Currency,
		Status:     domain.PaymentStatusPending,
		Method:     methodForClient(invoice.Client),
	}

	if err := s.paymentRepo.Create(ctx, pay); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	if pay.Method == domain.MethodStripe {
		session, err := s.openCheckout(ctx, pay, invoice)
		if err != nil {
			// The intent is already persisted; mark it failed so it shows
			// up in reconciliation instead of lingering as pending.
			pay.Status = domain.PaymentStatusFailed
			if saveErr := s.paymentRepo.Update(ctx, pay); saveErr != nil {
				s.logger.Error("failed to mark payment failed after provider error",
					zap.String("payment_id", pay.ID.String()),
					zap.Error(saveErr))
			}
			return nil, err
		}
		pay.ProviderSessionID = session.ID
		pay.CheckoutURL = session.URL
		if err := s.paymentRepo.Update(ctx, pay); err != nil {
			return nil, fmt.Errorf("failed to store checkout session: %w", err)
		}
	}

	s.activities.Record(ctx, domain.OwnerPayment, pay.ID,
		"Payment link created",
		fmt.Sprintf("Collection of %.2f %s (%.0f%%) opened on invoice %s via %s",
			pay.Amount, pay.Currency, pay.Percentage, invoice.Number, pay.Method))

	dto := mapper.ToPaymentDTO(pay)
	return &dto, nil
}

// UpdatePending changes the collected share of a payment that has not
// settled yet. A stale Stripe session is expired and replaced. Concurrent
// settlement wins: the version check aborts the edit.
func (s *PaymentService) UpdatePending(ctx context.Context, id uuid.UUID, req *domain.UpdatePendingPaymentRequest) (*domain.PaymentDTO, error) {
	pay, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	if pay.Status != domain.PaymentStatusPending {
		return nil, ErrPaymentNotPending
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, pay.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	amount := shareOf(pay.Total, req.Percentage)
	if amount > invoice.BalanceDue+0.01 {
		return nil, fmt.Errorf("%w: %.2f exceeds balance %.2f", ErrOverpayment, amount, invoice.BalanceDue)
	}

	expectedVersion := pay.Version
	oldSession := pay.ProviderSessionID

	pay.Percentage = req.Percentage
	pay.Amount = amount

	if pay.Method == domain.MethodStripe {
		session, err := s.openCheckout(ctx, pay, invoice)
		if err != nil {
			return nil, err
		}
		pay.ProviderSessionID = session.ID
		pay.CheckoutURL = session.URL
	}

	if err := s.paymentRepo.UpdateVersioned(ctx, pay, expectedVersion); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotPending
		}
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	// Old session is now orphaned; expire it so the stale link stops working.
	if pay.Method == domain.MethodStripe && oldSession != "" && oldSession != pay.ProviderSessionID {
		if err := s.provider.ExpireSession(ctx, oldSession); err != nil {
			s.logger.Warn("failed to expire stale checkout session",
				zap.String("session_id", oldSession),
				zap.Error(err))
		}
	}

	s.activities.Record(ctx, domain.OwnerPayment, pay.ID,
		"Payment updated",
		fmt.Sprintf("Collected share changed to %.0f%% (%.2f %s)", pay.Percentage, pay.Amount, pay.Currency))

	dto := mapper.ToPaymentDTO(pay)
	return &dto, nil
}

// Settle records an out-of-band settlement (bank transfer, cash, cheque)
// confirmed by the back office.
func (s *PaymentService) Settle(ctx context.Context, id uuid.UUID, req *domain.SettlePaymentRequest) (*domain.PaymentWithAllocationsDTO, error) {
	pay, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	if pay.Status != domain.PaymentStatusPending {
		return nil, ErrPaymentNotPending
	}

	method := pay.Method
	if req != nil && req.Method != "" {
		if !req.Method.IsValid() || req.Method == domain.MethodStripe {
			return nil, fmt.Errorf("%w: method %q cannot be settled manually", ErrInvalidInput, req.Method)
		}
		method = req.Method
	}

	if err := s.settlement.Apply(ctx, pay.ID, method); err != nil {
		return nil, err
	}

	settled, err := s.paymentRepo.GetByID(ctx, pay.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload payment: %w", err)
	}

	dto := mapper.ToPaymentWithAllocationsDTO(settled)
	return &dto, nil
}

// Refund reverses a settled payment. Admin-only; the provider-side refund is
// done in the Stripe dashboard, this records its effect on the books.
func (s *PaymentService) Refund(ctx context.Context, id uuid.UUID) (*domain.PaymentWithAllocationsDTO, error) {
	if err := s.settlement.Revert(ctx, id); err != nil {
		return nil, err
	}

	refunded, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload payment: %w", err)
	}

	dto := mapper.ToPaymentWithAllocationsDTO(refunded)
	return &dto, nil
}

// RenderReceipt produces the receipt document for a settled payment.
func (s *PaymentService) RenderReceipt(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	pay, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to get payment: %w", err)
	}
	if pay.Status != domain.PaymentStatusPaid {
		return nil, "", fmt.Errorf("%w: payment is not settled", ErrInvalidStatus)
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, pay.InvoiceID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get invoice: %w", err)
	}

	issuedAt := pay.CreatedAt
	if pay.PaidAt != nil {
		issuedAt = *pay.PaidAt
	}
	doc := pdf.Document{
		Kind:     "RECEIPT",
		Number:   invoice.Number,
		IssuedAt: issuedAt,
		Currency: pay.Currency,
		Lines: []pdf.Line{{
			Label:     fmt.Sprintf("Payment (%s), %.2f%% of invoice %s", pay.Method, pay.Percentage, invoice.Number),
			Quantity:  1,
			UnitPrice: pay.Amount,
			Total:     pay.Amount,
		}},
	}
	if invoice.Client != nil {
		doc.ClientName = invoice.Client.Name
		doc.ClientLines = []string{
			invoice.Client.CompanyName,
			invoice.Client.Address,
			invoice.Client.City,
			invoice.Client.Country,
		}
	}

	data, err := s.renderer.Render(doc)
	if err != nil {
		return nil, "", err
	}
	return data, fmt.Sprintf("receipt-%s.pdf", invoice.Number), nil
}

func (s *PaymentService) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentWithAllocationsDTO, error) {
	pay, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	dto := mapper.ToPaymentWithAllocationsDTO(pay)
	return &dto, nil
}

func (s *PaymentService) List(ctx context.Context, page, pageSize int, status domain.PaymentStatus, invoiceID *uuid.UUID) (*domain.PaginatedResponse, error) {
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

	payments, total, err := s.paymentRepo.List(ctx, page, pageSize, status, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	dtos := make([]domain.PaymentWithAllocationsDTO, len(payments))
	for i := range payments {
		dtos[i] = mapper.ToPaymentWithAllocationsDTO(&payments[i])
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

func (s *PaymentService) openCheckout(ctx context.Context, pay *domain.Payment, invoice *domain.Invoice) (*payment.CheckoutSession, error) {
	params := payment.CheckoutParams{
		AmountMinor: int64(math.Round(pay.Amount * 100)),
		Currency:    strings.ToLower(pay.Currency),
		Description: fmt.Sprintf("Invoice %s (%.0f%%)", invoice.Number, pay.Percentage),
		PaymentID:   pay.ID.String(),
	}
	if invoice.Client != nil {
		params.CustomerEmail = invoice.Client.Email
	}

	session, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkout session: %w", err)
	}
	return session, nil
}

// methodForClient picks the collection channel from the client's country.
func methodForClient(client *domain.Client) domain.PaymentMethod {
	if client != nil && moroccanCountries[strings.ToLower(strings.TrimSpace(client.Country))] {
		return domain.MethodBank
	}
	return domain.MethodStripe
}

// shareOf computes percentage% of total rounded to cents. decimal keeps the
// arithmetic exact before the final rounding.
func shareOf(total, percentage float64) float64 {
	share := decimal.NewFromFloat(total).
		Mul(decimal.NewFromFloat(percentage)).
		Div(decimal.NewFromInt(100)).
		Round(2)
	f, _ := share.Float64()
	return f
}
