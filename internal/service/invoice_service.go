package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/config"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/mail"
	"github.com/veloraops/agency-api/internal/mapper"
	"github.com/veloraops/agency-api/internal/pdf"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InvoiceService manages invoices created from signed quotes or composed
// directly, renders their PDF and delivers them by email.
type InvoiceService struct {
	invoiceRepo *repository.InvoiceRepository
	clientRepo  *repository.ClientRepository
	catalogRepo *repository.CatalogRepository
	catalog     *CatalogService
	sequences   *NumberSequenceService
	activities  *ActivityService
	renderer    *pdf.Renderer
	mailer      *mail.Mailer
	billing     *config.BillingConfig
	logger      *zap.Logger
}

func NewInvoiceService(
	invoiceRepo *repository.InvoiceRepository,
	clientRepo *repository.ClientRepository,
	catalogRepo *repository.CatalogRepository,
	catalog *CatalogService,
	sequences *NumberSequenceService,
	activities *ActivityService,
	renderer *pdf.Renderer,
	mailer *mail.Mailer,
	billing *config.BillingConfig,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		clientRepo:  clientRepo,
		catalogRepo: catalogRepo,
		catalog:     catalog,
		sequences:   sequences,
		activities:  activities,
		renderer:    renderer,
		mailer:      mailer,
		billing:     billing,
		logger:      logger,
	}
}

// Create composes an invoice directly, without a quote. Lines are priced
// from the catalog exactly like quote lines.
func (s *InvoiceService) Create(ctx context.Context, req *domain.CreateInvoiceRequest) (*domain.InvoiceDTO, error) {
	if len(req.Services) == 0 && len(req.Subscriptions) == 0 {
		return nil, fmt.Errorf("%w: invoice has no line items", ErrInvalidInput)
	}

	client, err := s.clientRepo.GetByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: client not found", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	currency := req.Currency
	if currency == "" {
		currency = s.billing.DefaultCurrency
	}

	number, err := s.sequences.GenerateInvoiceNumber(ctx)
	if err != nil {
		return nil, err
	}

	dueDate := req.DueDate
	if dueDate == nil {
		d := time.Now().AddDate(0, 0, s.billing.DueDays)
		dueDate = &d
	}

	invoice := &domain.Invoice{
		Number:   number,
		ClientID: client.ID,
		Client:   client,
		Status:   domain.InvoiceStatusUnpaid,
		Currency: currency,
		DueDate:  dueDate,
	}

	var total float64
	for _, lineReq := range req.Services {
		svc, err := s.catalogRepo.GetServiceByID(ctx, lineReq.ServiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: service %s not found", ErrInvalidInput, lineReq.ServiceID)
			}
			return nil, fmt.Errorf("failed to get service: %w", err)
		}
		quantity := lineReq.Quantity
		if quantity < 1 {
			quantity = 1
		}
		unitPrice := s.catalog.EffectivePrice(ctx, svc)
		lineTotal := unitPrice * float64(quantity) * (1 + svc.TaxRate/100)
		total += lineTotal
		invoice.Services = append(invoice.Services, domain.InvoiceService{
			ServiceID:       svc.ID,
			Service:         svc,
			Quantity:        quantity,
			UnitPrice:       unitPrice,
			TaxRate:         svc.TaxRate,
			IndividualTotal: lineTotal,
		})
	}
	for _, lineReq := range req.Subscriptions {
		price, err := s.catalogRepo.GetPlanPriceByID(ctx, lineReq.PlanPriceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: plan price %s not found", ErrInvalidInput, lineReq.PlanPriceID)
			}
			return nil, fmt.Errorf("failed to get plan price: %w", err)
		}
		if price.PlanID != lineReq.PlanID {
			return nil, fmt.Errorf("%w: plan price does not belong to plan", ErrInvalidInput)
		}
		total += price.Amount
		invoice.Subscriptions = append(invoice.Subscriptions, domain.InvoiceSubscription{
			PlanID:        lineReq.PlanID,
			PlanPriceID:   price.ID,
			Cycle:         price.Cycle,
			PriceSnapshot: price.Amount,
		})
	}

	invoice.TotalAmount = total
	invoice.BalanceDue = total
	invoice.Checksum = invoiceChecksum(client.ID, uuid.Nil, number, total, s.billing.ChecksumSecret)

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	s.activities.Record(ctx, domain.OwnerInvoice, invoice.ID,
		"Invoice created", fmt.Sprintf("Invoice %s was created for '%s'", invoice.Number, client.Name))

	dto := mapper.ToInvoiceDTO(invoice)
	return &dto, nil
}

func (s *InvoiceService) GetByID(ctx context.Context, id uuid.UUID) (*domain.InvoiceDTO, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	dto := mapper.ToInvoiceDTO(invoice)
	return &dto, nil
}

func (s *InvoiceService) List(ctx context.Context, page, pageSize int, status domain.InvoiceStatus, clientID *uuid.UUID) (*domain.PaginatedResponse, error) {
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

	invoices, total, err := s.invoiceRepo.List(ctx, page, pageSize, status, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	dtos := make([]domain.InvoiceDTO, len(invoices))
	for i := range invoices {
		dtos[i] = mapper.ToInvoiceDTO(&invoices[i])
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

// RenderPDF produces the invoice document for download.
func (s *InvoiceService) RenderPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to get invoice: %w", err)
	}

	data, err := s.renderer.Render(s.buildDocument(invoice))
	if err != nil {
		return nil, "", err
	}
	return data, fmt.Sprintf("%s.pdf", invoice.Number), nil
}

// SendByEmail renders the invoice PDF and mails it to the client. Also flips
// a draft to sent.
func (s *InvoiceService) SendByEmail(ctx context.Context, id uuid.UUID) (*domain.InvoiceDTO, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	if invoice.Client == nil || invoice.Client.Email == "" {
		return nil, fmt.Errorf("%w: client has no email address", ErrInvalidInput)
	}

	data, err := s.renderer.Render(s.buildDocument(invoice))
	if err != nil {
		return nil, err
	}

	msg := mail.Message{
		To:             invoice.Client.Email,
		Subject:        fmt.Sprintf("Invoice %s", invoice.Number),
		Body:           fmt.Sprintf("Please find attached invoice %s for %.2f %s.", invoice.Number, invoice.TotalAmount, invoice.Currency),
		ClientID:       invoice.ClientID.String(),
		AttachmentName: fmt.Sprintf("%s.pdf", invoice.Number),
		Attachment:     data,
	}
	if err := s.mailer.Send(msg); err != nil {
		return nil, err
	}

	if invoice.Status == domain.InvoiceStatusDraft {
		invoice.Status = domain.InvoiceStatusSent
		if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
			return nil, fmt.Errorf("failed to mark invoice sent: %w", err)
		}
	}

	s.activities.Record(ctx, domain.OwnerInvoice, invoice.ID,
		"Invoice sent", fmt.Sprintf("Invoice %s was emailed to %s", invoice.Number, invoice.Client.Email))

	dto := mapper.ToInvoiceDTO(invoice)
	return &dto, nil
}

// SweepOverdue flips past-due invoices to overdue. Called by the scheduler.
func (s *InvoiceService) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.invoiceRepo.ListOverdueCandidates(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue candidates: %w", err)
	}

	flipped := 0
	for i := range candidates {
		candidates[i].Status = domain.InvoiceStatusOverdue
		if err := s.invoiceRepo.Update(ctx, &candidates[i]); err != nil {
			s.logger.Error("failed to mark invoice overdue",
				zap.String("invoice_id", candidates[i].ID.String()),
				zap.Error(err))
			continue
		}
		flipped++
		s.activities.Record(ctx, domain.OwnerInvoice, candidates[i].ID,
			"Invoice overdue", fmt.Sprintf("Invoice %s passed its due date", candidates[i].Number))
	}
	return flipped, nil
}

func (s *InvoiceService) buildDocument(invoice *domain.Invoice) pdf.Document {
	doc := pdf.Document{
		Kind:     "INVOICE",
		Number:   invoice.Number,
		IssuedAt: invoice.CreatedAt,
		DueDate:  invoice.DueDate,
		Currency: invoice.Currency,
	}
	if invoice.Client != nil {
		doc.ClientName = invoice.Client.Name
		doc.ClientLines = []string{
			invoice.Client.CompanyName,
			invoice.Client.Address,
			invoice.Client.City,
			invoice.Client.Country,
			invoice.Client.TaxID,
		}
	}
	for _, line := range invoice.Services {
		label := ""
		if line.Service != nil {
			label = line.Service.Name
		}
		doc.Lines = append(doc.Lines, pdf.Line{
			Label:     label,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			TaxRate:   line.TaxRate,
			Total:     line.IndividualTotal,
		})
	}
	for _, line := range invoice.Subscriptions {
		label := string(line.Cycle) + " subscription"
		if line.Plan != nil {
			label = fmt.Sprintf("%s (%s)", line.Plan.Name, line.Cycle)
		}
		doc.Lines = append(doc.Lines, pdf.Line{
			Label:     label,
			Quantity:  1,
			UnitPrice: line.PriceSnapshot,
			Total:     line.PriceSnapshot,
		})
	}
	return doc
}
