package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/config"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/mail"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Expected CSV headers, in any column order. Optional columns may be left
// empty but the header row must name all of them.
var (
	clientColumns  = []string{"name", "email", "country", "company_name", "phone", "address", "city", "tax_id"}
	invoiceColumns = []string{"client_email", "number", "total", "currency", "due_date"}
)

// ImportService loads clients and historical invoices in bulk from CSV
// exports of other tools.
type ImportService struct {
	clientRepo  *repository.ClientRepository
	invoiceRepo *repository.InvoiceRepository
	activities  *ActivityService
	mailer      *mail.Mailer
	billing     *config.BillingConfig
	logger      *zap.Logger
}

func NewImportService(
	clientRepo *repository.ClientRepository,
	invoiceRepo *repository.InvoiceRepository,
	activities *ActivityService,
	mailer *mail.Mailer,
	billing *config.BillingConfig,
	logger *zap.Logger,
) *ImportService {
	return &ImportService{
		clientRepo:  clientRepo,
		invoiceRepo: invoiceRepo,
		activities:  activities,
		mailer:      mailer,
		billing:     billing,
		logger:      logger,
	}
}

// ImportClients reads a CSV stream and creates one client per valid row.
// Rows whose email already exists are skipped, not errored, so re-running the
// same file is harmless. Malformed rows are reported with their line number.
func (s *ImportService) ImportClients(ctx context.Context, data io.Reader) (*domain.ImportResultDTO, error) {
	reader := csv.NewReader(data)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: missing CSV header", ErrInvalidInput)
	}
	idx, err := columnIndex(header, clientColumns)
	if err != nil {
		return nil, err
	}

	result := &domain.ImportResultDTO{}
	var created []*domain.Client
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			result.Errors = append(result.Errors, domain.ImportRowError{Row: row, Message: "malformed CSV row"})
			continue
		}

		client, rowErr := clientFromRecord(record, idx)
		if rowErr != "" {
			result.Errors = append(result.Errors, domain.ImportRowError{Row: row, Message: rowErr})
			continue
		}

		_, err = s.clientRepo.GetByEmail(ctx, client.Email)
		if err == nil {
			result.Skipped++
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check existing client: %w", err)
		}

		if err := s.clientRepo.Create(ctx, client); err != nil {
			result.Errors = append(result.Errors, domain.ImportRowError{Row: row, Message: "failed to create client"})
			s.logger.Warn("client import row failed",
				zap.Int("row", row),
				zap.String("email", client.Email),
				zap.Error(err))
			continue
		}
		result.Created++
		created = append(created, client)
	}

	// Welcome mails go out only for rows that actually committed
	for _, client := range created {
		s.sendWelcome(client)
	}

	s.logger.Info("client import finished",
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

// ImportInvoices loads historical invoices kept in another system. The row's
// external number feeds the tamper checksum, which doubles as the dedup key:
// importing the same file twice only counts skips the second time.
func (s *ImportService) ImportInvoices(ctx context.Context, data io.Reader) (*domain.ImportResultDTO, error) {
	reader := csv.NewReader(data)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: missing CSV header", ErrInvalidInput)
	}
	idx, err := columnIndex(header, invoiceColumns)
	if err != nil {
		return nil, err
	}

	result := &domain.ImportResultDTO{}
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			result.Errors = append(result.Errors, domain.ImportRowError{Row: row, Message: "malformed CSV row"})
			continue
		}

		if err := s.importInvoiceRow(ctx, record, idx, row, result); err != nil {
			return nil, err
		}
	}

	s.logger.Info("invoice import finished",
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

func (s *ImportService) importInvoiceRow(ctx context.Context, record []string, idx map[string]int, row int, result *domain.ImportResultDTO) error {
	field := recordField(record, idx)

	email := strings.ToLower(field("client_email"))
	number := field("number")
	if email == "" || number == "" {
		result.Errors = append(result.Errors, domain.ImportRowError{Row: row, Message: "client_email and number are required"})
		return nil
	}
	total, err := strconv.ParseFloat(field("total"), 64)
	if err != nil || total <= 0 {
		result.Errors = append(result.Errors, domain.ImportRowError{Row: row, Message: "total must be a positive number"})
		return nil
	}

	client, err := s.clientRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.Errors = append(result.Errors, domain.ImportRowError{Row: row, Message: fmt.Sprintf("no client with email %q", email)})
			return nil
		}
		return fmt.Errorf("failed to look up client: %w", err)
	}

	checksum := invoiceChecksum(client.ID, uuid.Nil, number, total, s.billing.ChecksumSecret)
	if _, err := s.invoiceRepo.GetByChecksum(ctx, checksum); err == nil {
		result.Skipped++
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check existing invoice: %w", err)
	}

	currency := strings.ToUpper(field("currency"))
	if currency == "" {
		currency = s.billing.DefaultCurrency
	}
	dueDate := time.Now().AddDate(0, 0, s.billing.DueDays)
	if raw := field("due_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			result.Errors = append(result.Errors, domain.ImportRowError{Row: row, Message: "due_date must be YYYY-MM-DD"})
			return nil
		}
		dueDate = parsed
	}

	invoice := &domain.Invoice{
		ClientID:    client.ID,
		Number:      number,
		Status:      domain.InvoiceStatusUnpaid,
		Currency:    currency,
		TotalAmount: total,
		BalanceDue:  total,
		DueDate:     &dueDate,
		Checksum:    checksum,
	}
	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		result.Errors = append(result.Errors, domain.ImportRowError{Row: row, Message: "failed to create invoice"})
		s.logger.Warn("invoice import row failed",
			zap.Int("row", row),
			zap.String("number", number),
			zap.Error(err))
		return nil
	}
	result.Created++
	return nil
}

func (s *ImportService) sendWelcome(client *domain.Client) {
	if client.Email == "" {
		return
	}
	msg := mail.Message{
		To:       client.Email,
		Subject:  "Welcome aboard",
		ClientID: client.ID.String(),
		Body: fmt.Sprintf("Hello %s,\n\nYour account has been set up. "+
			"You will receive quotes and invoices at this address.\n", client.Name),
	}
	if err := s.mailer.Send(msg); err != nil {
		s.logger.Warn("failed to send welcome mail",
			zap.String("client_id", client.ID.String()),
			zap.Error(err))
	}
}

func columnIndex(header, expected []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range expected {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalidInput, col)
		}
	}
	return idx, nil
}

func recordField(record []string, idx map[string]int) func(string) string {
	return func(name string) string {
		i := idx[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
}

func clientFromRecord(record []string, idx map[string]int) (*domain.Client, string) {
	field := recordField(record, idx)

	name := field("name")
	email := strings.ToLower(field("email"))
	country := field("country")
	if name == "" {
		return nil, "name is required"
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, "a valid email is required"
	}
	if country == "" {
		return nil, "country is required"
	}

	return &domain.Client{
		Name:        name,
		Email:       email,
		Country:     country,
		CompanyName: field("company_name"),
		Phone:       field("phone"),
		Address:     field("address"),
		City:        field("city"),
		TaxID:       field("tax_id"),
	}, ""
}
