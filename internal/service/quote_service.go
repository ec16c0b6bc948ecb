package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/config"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/mapper"
	"github.com/veloraops/agency-api/internal/pdf"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QuoteService drives the pre-sale lifecycle: a draft is composed from the
// catalog, sent to the client, confirmed, signed by both parties and finally
// converted into an invoice.
type QuoteService struct {
	quoteRepo   *repository.QuoteRepository
	invoiceRepo *repository.InvoiceRepository
	clientRepo  *repository.ClientRepository
	catalogRepo *repository.CatalogRepository
	fileRepo    *repository.FileRepository
	catalog     *CatalogService
	sequences   *NumberSequenceService
	activities  *ActivityService
	renderer    *pdf.Renderer
	billing     *config.BillingConfig
	logger      *zap.Logger
}

func NewQuoteService(
	quoteRepo *repository.QuoteRepository,
	invoiceRepo *repository.InvoiceRepository,
	clientRepo *repository.ClientRepository,
	catalogRepo *repository.CatalogRepository,
	fileRepo *repository.FileRepository,
	catalog *CatalogService,
	sequences *NumberSequenceService,
	activities *ActivityService,
	renderer *pdf.Renderer,
	billing *config.BillingConfig,
	logger *zap.Logger,
) *QuoteService {
	return &QuoteService{
		quoteRepo:   quoteRepo,
		invoiceRepo: invoiceRepo,
		clientRepo:  clientRepo,
		catalogRepo: catalogRepo,
		fileRepo:    fileRepo,
		catalog:     catalog,
		sequences:   sequences,
		activities:  activities,
		renderer:    renderer,
		billing:     billing,
		logger:      logger,
	}
}

func (s *QuoteService) Create(ctx context.Context, req *domain.CreateQuoteRequest) (*domain.QuoteDTO, error) {
	if len(req.Services) == 0 && len(req.Subscriptions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, ErrEmptyQuote)
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

	quote := &domain.Quote{
		ClientID: client.ID,
		Client:   client,
		Status:   domain.QuoteStatusDraft,
		Currency: currency,
		Notes:    req.Notes,
	}

	services, subscriptions, total, err := s.buildLines(ctx, req.Services, req.Subscriptions)
	if err != nil {
		return nil, err
	}
	quote.Services = services
	quote.Subscriptions = subscriptions
	quote.TotalAmount = total

	if err := s.quoteRepo.Create(ctx, quote); err != nil {
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}

	s.activities.Record(ctx, domain.OwnerQuote, quote.ID,
		"Quote created", fmt.Sprintf("Quote for '%s' was created", client.Name))

	return s.toDTO(ctx, quote), nil
}

func (s *QuoteService) GetByID(ctx context.Context, id uuid.UUID) (*domain.QuoteDTO, error) {
	quote, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	return s.toDTO(ctx, quote), nil
}

// Update replaces the draft's line items. Only drafts are editable.
func (s *QuoteService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateQuoteRequest) (*domain.QuoteDTO, error) {
	quote, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	if quote.Status != domain.QuoteStatusDraft {
		return nil, fmt.Errorf("%w: only draft quotes can be edited", ErrInvalidStatus)
	}
	if len(req.Services) == 0 && len(req.Subscriptions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, ErrEmptyQuote)
	}

	services, subscriptions, total, err := s.buildLines(ctx, req.Services, req.Subscriptions)
	if err != nil {
		return nil, err
	}

	quote.Notes = req.Notes
	quote.TotalAmount = total
	if err := s.quoteRepo.ReplaceLines(ctx, quote, services, subscriptions); err != nil {
		return nil, fmt.Errorf("failed to update quote: %w", err)
	}

	updated, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload quote: %w", err)
	}
	return s.toDTO(ctx, updated), nil
}

// Send moves a draft to sent and assigns its document number. Drafts never
// consume a number until they leave draft.
func (s *QuoteService) Send(ctx context.Context, id uuid.UUID) (*domain.QuoteDTO, error) {
	quote, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	if quote.Status != domain.QuoteStatusDraft {
		return nil, fmt.Errorf("%w: quote is %s", ErrInvalidStatus, quote.Status)
	}
	if len(quote.Services) == 0 && len(quote.Subscriptions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, ErrEmptyQuote)
	}

	number, err := s.sequences.GenerateQuoteNumber(ctx)
	if err != nil {
		return nil, err
	}

	quote.Number = number
	quote.Status = domain.QuoteStatusSent
	if err := s.quoteRepo.Update(ctx, quote); err != nil {
		return nil, fmt.Errorf("failed to send quote: %w", err)
	}

	s.activities.Record(ctx, domain.OwnerQuote, quote.ID,
		"Quote sent", fmt.Sprintf("Quote %s was sent to the client", quote.Number))

	return s.toDTO(ctx, quote), nil
}

// Confirm records the client's acceptance of a sent quote.
func (s *QuoteService) Confirm(ctx context.Context, id uuid.UUID) (*domain.QuoteDTO, error) {
	quote, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	if quote.Status != domain.QuoteStatusSent {
		return nil, fmt.Errorf("%w: quote is %s", ErrInvalidStatus, quote.Status)
	}

	quote.Status = domain.QuoteStatusConfirmed
	if err := s.quoteRepo.Update(ctx, quote); err != nil {
		return nil, fmt.Errorf("failed to confirm quote: %w", err)
	}

	s.activities.Record(ctx, domain.OwnerQuote, quote.ID,
		"Quote confirmed", fmt.Sprintf("Quote %s was confirmed", quote.Number))

	return s.toDTO(ctx, quote), nil
}

// RecordSignature is called after a signature file upload. When both the
// admin and the client signature exist on a confirmed quote, it flips to
// signed.
func (s *QuoteService) RecordSignature(ctx context.Context, id uuid.UUID) (*domain.QuoteDTO, error) {
	quote, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	if quote.Status != domain.QuoteStatusConfirmed && quote.Status != domain.QuoteStatusSent {
		return nil, fmt.Errorf("%w: quote is %s", ErrInvalidStatus, quote.Status)
	}

	adminSigned, clientSigned := s.signatureState(ctx, quote.ID)
	if adminSigned && clientSigned && quote.Status == domain.QuoteStatusConfirmed {
		quote.Status = domain.QuoteStatusSigned
		if err := s.quoteRepo.Update(ctx, quote); err != nil {
			return nil, fmt.Errorf("failed to mark quote signed: %w", err)
		}
		s.activities.Record(ctx, domain.OwnerQuote, quote.ID,
			"Quote signed", fmt.Sprintf("Quote %s carries both signatures", quote.Number))
	}

	dto := mapper.ToQuoteDTO(quote, adminSigned, clientSigned)
	return &dto, nil
}

// Reject closes a quote. Allowed from any state before billing.
func (s *QuoteService) Reject(ctx context.Context, id uuid.UUID, req *domain.RejectQuoteRequest) (*domain.QuoteDTO, error) {
	quote, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	switch quote.Status {
	case domain.QuoteStatusBilled, domain.QuoteStatusPaid, domain.QuoteStatusRejected:
		return nil, fmt.Errorf("%w: quote is %s", ErrInvalidStatus, quote.Status)
	}

	quote.Status = domain.QuoteStatusRejected
	if err := s.quoteRepo.Update(ctx, quote); err != nil {
		return nil, fmt.Errorf("failed to reject quote: %w", err)
	}

	body := "Quote was rejected"
	if req != nil && req.Reason != "" {
		body = fmt.Sprintf("Quote was rejected: %s", req.Reason)
	}
	s.activities.Record(ctx, domain.OwnerQuote, quote.ID, "Quote rejected", body)

	return s.toDTO(ctx, quote), nil
}

// ConvertToInvoice turns a signed quote into an invoice. The quote must carry
// both signatures, and each quote produces at most one invoice. The invoice
// freezes the quote's lines and totals and carries an integrity checksum.
func (s *QuoteService) ConvertToInvoice(ctx context.Context, id uuid.UUID) (*domain.ConvertQuoteResponse, error) {
	quote, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	if quote.Status != domain.QuoteStatusSigned {
		if quote.Status == domain.QuoteStatusBilled || quote.Status == domain.QuoteStatusPaid {
			return nil, ErrAlreadyConverted
		}
		return nil, ErrMissingSignature
	}
	adminSigned, clientSigned := s.signatureState(ctx, quote.ID)
	if !adminSigned || !clientSigned {
		return nil, ErrMissingSignature
	}
	if _, err := s.invoiceRepo.GetByQuoteID(ctx, quote.ID); err == nil {
		return nil, ErrAlreadyConverted
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing invoice: %w", err)
	}

	number, err := s.sequences.GenerateInvoiceNumber(ctx)
	if err != nil {
		return nil, err
	}

	dueDate := time.Now().AddDate(0, 0, s.billing.DueDays)
	invoice := &domain.Invoice{
		Number:      number,
		ClientID:    quote.ClientID,
		Client:      quote.Client,
		QuoteID:     &quote.ID,
		Status:      domain.InvoiceStatusUnpaid,
		Currency:    quote.Currency,
		TotalAmount: quote.TotalAmount,
		BalanceDue:  quote.TotalAmount,
		DueDate:     &dueDate,
	}
	invoice.Checksum = invoiceChecksum(quote.ClientID, quote.ID, number, quote.TotalAmount, s.billing.ChecksumSecret)

	for _, line := range quote.Services {
		invoice.Services = append(invoice.Services, domain.InvoiceService{
			ServiceID:       line.ServiceID,
			Service:         line.Service,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			TaxRate:         line.TaxRate,
			IndividualTotal: line.LineTotal,
		})
	}
	for _, line := range quote.Subscriptions {
		invoice.Subscriptions = append(invoice.Subscriptions, domain.InvoiceSubscription{
			PlanID:        line.PlanID,
			Plan:          line.Plan,
			PlanPriceID:   line.PlanPriceID,
			Cycle:         line.Cycle,
			PriceSnapshot: line.PriceSnapshot,
		})
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	quote.Status = domain.QuoteStatusBilled
	if err := s.quoteRepo.Update(ctx, quote); err != nil {
		return nil, fmt.Errorf("failed to mark quote billed: %w", err)
	}

	s.activities.Record(ctx, domain.OwnerQuote, quote.ID,
		"Quote billed", fmt.Sprintf("Quote %s produced invoice %s", quote.Number, invoice.Number))
	s.activities.Record(ctx, domain.OwnerInvoice, invoice.ID,
		"Invoice created", fmt.Sprintf("Invoice %s was created from quote %s", invoice.Number, quote.Number))

	quoteDTO := mapper.ToQuoteDTO(quote, adminSigned, clientSigned)
	invoiceDTO := mapper.ToInvoiceDTO(invoice)
	return &domain.ConvertQuoteResponse{
		Quote:   &quoteDTO,
		Invoice: &invoiceDTO,
	}, nil
}

func (s *QuoteService) List(ctx context.Context, page, pageSize int, status domain.QuoteStatus, clientID *uuid.UUID) (*domain.PaginatedResponse, error) {
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

	quotes, total, err := s.quoteRepo.List(ctx, page, pageSize, status, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}

	dtos := make([]domain.QuoteDTO, len(quotes))
	for i := range quotes {
		adminSigned, clientSigned := s.signatureState(ctx, quotes[i].ID)
		dtos[i] = mapper.ToQuoteDTO(&quotes[i], adminSigned, clientSigned)
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

// buildLines resolves catalog references, snapshots prices and computes the
// quote total. Promotional offers apply at composition time, never later.
func (s *QuoteService) buildLines(ctx context.Context, serviceReqs []domain.CreateQuoteServiceRequest, subscriptionReqs []domain.CreateQuoteSubscriptionRequest) ([]domain.QuoteService, []domain.QuoteSubscription, float64, error) {
	var total float64

	services := make([]domain.QuoteService, 0, len(serviceReqs))
	for _, lineReq := range serviceReqs {
		svc, err := s.catalogRepo.GetServiceByID(ctx, lineReq.ServiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, 0, fmt.Errorf("%w: service %s not found", ErrInvalidInput, lineReq.ServiceID)
			}
			return nil, nil, 0, fmt.Errorf("failed to get service: %w", err)
		}
		if !svc.IsActive {
			return nil, nil, 0, fmt.Errorf("%w: service '%s' is inactive", ErrInvalidInput, svc.Name)
		}

		quantity := lineReq.Quantity
		if quantity < 1 {
			quantity = 1
		}
		unitPrice := s.catalog.EffectivePrice(ctx, svc)
		lineTotal := unitPrice * float64(quantity) * (1 + svc.TaxRate/100)
		total += lineTotal

		services = append(services, domain.QuoteService{
			ServiceID: svc.ID,
			Service:   svc,
			Quantity:  quantity,
			UnitPrice: unitPrice,
			TaxRate:   svc.TaxRate,
			LineTotal: lineTotal,
		})
	}

	subscriptions := make([]domain.QuoteSubscription, 0, len(subscriptionReqs))
	for _, lineReq := range subscriptionReqs {
		price, err := s.catalogRepo.GetPlanPriceByID(ctx, lineReq.PlanPriceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, 0, fmt.Errorf("%w: plan price %s not found", ErrInvalidInput, lineReq.PlanPriceID)
			}
			return nil, nil, 0, fmt.Errorf("failed to get plan price: %w", err)
		}
		if price.PlanID != lineReq.PlanID {
			return nil, nil, 0, fmt.Errorf("%w: plan price does not belong to plan", ErrInvalidInput)
		}

		total += price.Amount
		subscriptions = append(subscriptions, domain.QuoteSubscription{
			PlanID:        lineReq.PlanID,
			PlanPriceID:   price.ID,
			Cycle:         price.Cycle,
			PriceSnapshot: price.Amount,
		})
	}

	return services, subscriptions, total, nil
}

// RenderPDF produces the quote document for download.
func (s *QuoteService) RenderPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	quote, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to get quote: %w", err)
	}

	doc := pdf.Document{
		Kind:     "QUOTE",
		Number:   quote.Number,
		IssuedAt: quote.CreatedAt,
		Currency: quote.Currency,
		Notes:    quote.Notes,
	}
	if quote.Client != nil {
		doc.ClientName = quote.Client.Name
		doc.ClientLines = []string{
			quote.Client.CompanyName,
			quote.Client.Address,
			quote.Client.City,
			quote.Client.Country,
		}
	}
	for _, line := range quote.Services {
		label := ""
		if line.Service != nil {
			label = line.Service.Name
		}
		doc.Lines = append(doc.Lines, pdf.Line{
			Label:     label,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			TaxRate:   line.TaxRate,
			Total:     line.LineTotal,
		})
	}
	for _, line := range quote.Subscriptions {
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

	data, err := s.renderer.Render(doc)
	if err != nil {
		return nil, "", err
	}
	name := quote.Number
	if name == "" {
		name = quote.ID.String()
	}
	return data, fmt.Sprintf("%s.pdf", name), nil
}

func (s *QuoteService) signatureState(ctx context.Context, quoteID uuid.UUID) (adminSigned, clientSigned bool) {
	if _, err := s.fileRepo.GetByOwnerAndKind(ctx, domain.OwnerQuote, quoteID, domain.FileKindAdminSignature); err == nil {
		adminSigned = true
	}
	if _, err := s.fileRepo.GetByOwnerAndKind(ctx, domain.OwnerQuote, quoteID, domain.FileKindClientSignature); err == nil {
		clientSigned = true
	}
	return adminSigned, clientSigned
}

func (s *QuoteService) toDTO(ctx context.Context, quote *domain.Quote) *domain.QuoteDTO {
	adminSigned, clientSigned := s.signatureState(ctx, quote.ID)
	dto := mapper.ToQuoteDTO(quote, adminSigned, clientSigned)
	return &dto
}

// invoiceChecksum binds an invoice to its quote, client and total so tampered
// rows are detectable.
func invoiceChecksum(clientID, quoteID uuid.UUID, number string, total float64, secret string) string {
	payload := fmt.Sprintf("%s|%s|%s|%.2f|%s", clientID, quoteID, number, total, secret)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
