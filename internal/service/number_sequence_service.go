package service

import (
	"context"
	"fmt"
	"time"

	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
)

// Scopes for document numbering. Quotes and invoices keep separate counters
// so each series stays gapless on its own.
const (
	SequenceQuote   = "quote"
	SequenceInvoice = "invoice"
)

var sequencePrefixes = map[string]string{
	SequenceQuote:   "QUO",
	SequenceInvoice: "INVOICE",
}

// NumberSequenceService generates unique, formatted document numbers.
//
// Format: {PREFIX}-{YEAR}-{SEQUENCE}
// Example: QUO-2026-001, INVOICE-2026-042
type NumberSequenceService struct {
	repo   *repository.NumberSequenceRepository
	logger *zap.Logger
}

// NewNumberSequenceService creates a new NumberSequenceService
func NewNumberSequenceService(
	repo *repository.NumberSequenceRepository,
	logger *zap.Logger,
) *NumberSequenceService {
	return &NumberSequenceService{
		repo:   repo,
		logger: logger,
	}
}

// GenerateQuoteNumber generates a unique quote number. Called when a quote
// leaves draft, so abandoned drafts never consume a number.
func (s *NumberSequenceService) GenerateQuoteNumber(ctx context.Context) (string, error) {
	return s.generateNumber(ctx, SequenceQuote)
}

// GenerateInvoiceNumber generates a unique invoice number. Called when the
// invoice row is created.
func (s *NumberSequenceService) GenerateInvoiceNumber(ctx context.Context) (string, error) {
	return s.generateNumber(ctx, SequenceInvoice)
}

func (s *NumberSequenceService) generateNumber(ctx context.Context, scope string) (string, error) {
	prefix, ok := sequencePrefixes[scope]
	if !ok {
		return "", fmt.Errorf("%w: unknown sequence scope %q", ErrInvalidInput, scope)
	}

	year := time.Now().Year()

	// Atomic increment under row lock
	nextSeq, err := s.repo.GetNextNumber(ctx, scope, year)
	if err != nil {
		s.logger.Error("failed to get next sequence number",
			zap.String("scope", scope),
			zap.Int("year", year),
			zap.Error(err))
		return "", fmt.Errorf("failed to generate %s number: %w", scope, err)
	}

	// Format: PREFIX-YYYY-NNN (zero-padded to 3 digits)
	number := fmt.Sprintf("%s-%d-%03d", prefix, year, nextSeq)

	s.logger.Info("generated number",
		zap.String("number", number),
		zap.String("scope", scope),
		zap.Int("year", year),
		zap.Int("sequence", nextSeq))

	return number, nil
}

// GetCurrentSequence returns the current sequence value for a scope/year
// without incrementing it. Returns 0 if no sequence exists.
func (s *NumberSequenceService) GetCurrentSequence(ctx context.Context, scope string, year int) (int, error) {
	return s.repo.GetCurrentSequence(ctx, scope, year)
}

// InitializeSequence sets the sequence to a specific value. Useful for data
// migrations so the counter accounts for pre-existing documents. The value
// should be the LAST USED sequence number.
func (s *NumberSequenceService) InitializeSequence(ctx context.Context, scope string, year int, value int) error {
	return s.repo.SetSequence(ctx, scope, year, value)
}
