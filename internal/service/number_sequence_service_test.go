package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
)

func newSequenceService(t *testing.T) *NumberSequenceService {
	t.Helper()
	db := newTestDB(t)
	return NewNumberSequenceService(repository.NewNumberSequenceRepository(db), zap.NewNop())
}

func TestGenerateNumbersAreSequentialPerScope(t *testing.T) {
	svc := newSequenceService(t)
	year := time.Now().Year()

	first, err := svc.GenerateQuoteNumber(testCtx())
	require.NoError(t, err)
	second, err := svc.GenerateQuoteNumber(testCtx())
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("QUO-%d-001", year), first)
	assert.Equal(t, fmt.Sprintf("QUO-%d-002", year), second)

	// Invoice numbers count independently
	invoice, err := svc.GenerateInvoiceNumber(testCtx())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("INVOICE-%d-001", year), invoice)
}

func TestSequencePaddingGrowsPastThreeDigits(t *testing.T) {
	svc := newSequenceService(t)
	year := time.Now().Year()

	require.NoError(t, svc.InitializeSequence(testCtx(), SequenceInvoice, year, 999))

	number, err := svc.GenerateInvoiceNumber(testCtx())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("INVOICE-%d-1000", year), number)
}

func TestGetCurrentSequence(t *testing.T) {
	svc := newSequenceService(t)
	year := time.Now().Year()

	current, err := svc.GetCurrentSequence(testCtx(), SequenceQuote, year)
	require.NoError(t, err)
	assert.Equal(t, 0, current)

	_, err = svc.GenerateQuoteNumber(testCtx())
	require.NoError(t, err)

	current, err = svc.GetCurrentSequence(testCtx(), SequenceQuote, year)
	require.NoError(t, err)
	assert.Equal(t, 1, current)
}
