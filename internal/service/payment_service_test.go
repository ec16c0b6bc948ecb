package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/pdf"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// newPaymentService wires the service without a provider. Tests stay on the
// bank-transfer path, which never touches Stripe.
func newPaymentService(db *gorm.DB) *PaymentService {
	return NewPaymentService(
		repository.NewPaymentRepository(db),
		repository.NewInvoiceRepository(db),
		nil,
		testActivities(db),
		newSettlementService(db),
		pdf.NewRenderer("Velora"),
		zap.NewNop(),
	)
}

func seedBankInvoice(t *testing.T, db *gorm.DB, total float64) *domain.Invoice {
	t.Helper()
	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	design := createTestService(t, db, "Website Design", total, "")
	return seedInvoice(t, db, client, total,
		[]domain.InvoiceService{{ServiceID: design.ID, Quantity: 1, UnitPrice: total, IndividualTotal: total}},
		nil,
	)
}

func TestMethodForClient(t *testing.T) {
	tests := []struct {
		name     string
		country  string
		expected domain.PaymentMethod
	}{
		{name: "morocco", country: "Morocco", expected: domain.MethodBank},
		{name: "french spelling", country: "maroc", expected: domain.MethodBank},
		{name: "iso alpha2", country: "MA", expected: domain.MethodBank},
		{name: "iso alpha3", country: "MAR", expected: domain.MethodBank},
		{name: "padded", country: "  morocco  ", expected: domain.MethodBank},
		{name: "abroad", country: "France", expected: domain.MethodStripe},
		{name: "empty", country: "", expected: domain.MethodStripe},
		{name: "nil client", expected: domain.MethodStripe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var client *domain.Client
			if tt.name != "nil client" {
				client = &domain.Client{Country: tt.country}
			}
			assert.Equal(t, tt.expected, methodForClient(client))
		})
	}
}

func TestShareOf(t *testing.T) {
	tests := []struct {
		name       string
		total      float64
		percentage float64
		expected   float64
	}{
		{name: "full", total: 1000, percentage: 100, expected: 1000},
		{name: "half", total: 1000, percentage: 50, expected: 500},
		{name: "rounded to cents", total: 999.99, percentage: 33.33, expected: 333.30},
		{name: "thirds", total: 100, percentage: 33.33, expected: 33.33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, shareOf(tt.total, tt.percentage), 0.001)
		})
	}
}

func TestCreatePaymentLinkBankPath(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(db)
	invoice := seedBankInvoice(t, db, 1000)

	dto, err := svc.CreatePaymentLink(testCtx(), invoice.ID, &domain.CreatePaymentLinkRequest{Percentage: 40})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, dto.Status)
	assert.Equal(t, domain.MethodBank, dto.Method)
	assert.InDelta(t, 400, dto.Amount, 0.001)
	assert.InDelta(t, 1000, dto.Total, 0.001)
	assert.Empty(t, dto.CheckoutURL)
}

func TestCreatePaymentLinkDefaultsToFullAmount(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(db)
	invoice := seedBankInvoice(t, db, 750)

	dto, err := svc.CreatePaymentLink(testCtx(), invoice.ID, nil)
	require.NoError(t, err)
	assert.InDelta(t, 100, dto.Percentage, 0.001)
	assert.InDelta(t, 750, dto.Amount, 0.001)
}

func TestCreatePaymentLinkStatusGuards(t *testing.T) {
	tests := []struct {
		name   string
		status domain.InvoiceStatus
	}{
		{name: "draft", status: domain.InvoiceStatusDraft},
		{name: "paid", status: domain.InvoiceStatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			svc := newPaymentService(db)
			invoice := seedBankInvoice(t, db, 500)
			require.NoError(t, db.Model(invoice).Update("status", tt.status).Error)

			_, err := svc.CreatePaymentLink(testCtx(), invoice.ID, nil)
			assert.ErrorIs(t, err, ErrInvalidStatus)
		})
	}
}

func TestCreatePaymentLinkRejectsOverpayment(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(db)
	invoice := seedBankInvoice(t, db, 1000)

	// 60% already collected leaves a 400 balance
	first, err := svc.CreatePaymentLink(testCtx(), invoice.ID, &domain.CreatePaymentLinkRequest{Percentage: 60})
	require.NoError(t, err)
	require.NoError(t, svc.settlement.Apply(testCtx(), first.ID, domain.MethodBank))

	_, err = svc.CreatePaymentLink(testCtx(), invoice.ID, &domain.CreatePaymentLinkRequest{Percentage: 50})
	assert.ErrorIs(t, err, ErrOverpayment)

	// The remaining share still fits
	_, err = svc.CreatePaymentLink(testCtx(), invoice.ID, &domain.CreatePaymentLinkRequest{Percentage: 40})
	assert.NoError(t, err)
}

func TestUpdatePending(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(db)
	invoice := seedBankInvoice(t, db, 1000)

	dto, err := svc.CreatePaymentLink(testCtx(), invoice.ID, &domain.CreatePaymentLinkRequest{Percentage: 30})
	require.NoError(t, err)

	updated, err := svc.UpdatePending(testCtx(), dto.ID, &domain.UpdatePendingPaymentRequest{Percentage: 70})
	require.NoError(t, err)
	assert.InDelta(t, 70, updated.Percentage, 0.001)
	assert.InDelta(t, 700, updated.Amount, 0.001)

	_, err = svc.UpdatePending(testCtx(), dto.ID, &domain.UpdatePendingPaymentRequest{Percentage: 120})
	assert.ErrorIs(t, err, ErrOverpayment)
}

func TestUpdateVersionedLosesRace(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(db)
	invoice := seedBankInvoice(t, db, 1000)

	dto, err := svc.CreatePaymentLink(testCtx(), invoice.ID, &domain.CreatePaymentLinkRequest{Percentage: 30})
	require.NoError(t, err)

	stale, err := svc.paymentRepo.GetByID(testCtx(), dto.ID)
	require.NoError(t, err)

	// A concurrent writer bumps the version after our read; the stale
	// snapshot's write must miss and leave the row untouched
	require.NoError(t, db.Model(&domain.Payment{}).
		Where("id = ?", dto.ID).Update("version", gorm.Expr("version + 1")).Error)

	stale.Percentage = 50
	stale.Amount = 500
	err = svc.paymentRepo.UpdateVersioned(testCtx(), stale, stale.Version)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var stored domain.Payment
	require.NoError(t, db.First(&stored, "id = ?", dto.ID).Error)
	assert.InDelta(t, 30, stored.Percentage, 0.001)
	assert.InDelta(t, 300, stored.Amount, 0.001)
}

func TestSettleManualMethod(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(db)
	invoice := seedBankInvoice(t, db, 500)

	dto, err := svc.CreatePaymentLink(testCtx(), invoice.ID, nil)
	require.NoError(t, err)

	// Provider-backed methods cannot be confirmed by hand
	_, err = svc.Settle(testCtx(), dto.ID, &domain.SettlePaymentRequest{Method: domain.MethodStripe})
	assert.ErrorIs(t, err, ErrInvalidInput)

	settled, err := svc.Settle(testCtx(), dto.ID, &domain.SettlePaymentRequest{Method: domain.MethodCheque, Reference: "CHQ-1042"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, settled.Status)
	assert.Equal(t, domain.MethodCheque, settled.Method)
	require.Len(t, settled.Allocations, 1)
	assert.InDelta(t, 500, settled.Allocations[0].Amount, 0.001)

	// Settling twice is refused
	_, err = svc.Settle(testCtx(), dto.ID, &domain.SettlePaymentRequest{Method: domain.MethodCheque})
	assert.ErrorIs(t, err, ErrPaymentNotPending)
}

func TestRefundReturnsAmountToBalance(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(db)
	invoice := seedBankInvoice(t, db, 500)

	dto, err := svc.CreatePaymentLink(testCtx(), invoice.ID, nil)
	require.NoError(t, err)
	_, err = svc.Settle(testCtx(), dto.ID, nil)
	require.NoError(t, err)

	refunded, err := svc.Refund(testCtx(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, refunded.Status)

	var updated domain.Invoice
	require.NoError(t, db.First(&updated, "id = ?", invoice.ID).Error)
	assert.Equal(t, domain.InvoiceStatusUnpaid, updated.Status)
	assert.InDelta(t, 500, updated.BalanceDue, 0.001)
}

func TestRenderReceiptRequiresSettledPayment(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(db)
	invoice := seedBankInvoice(t, db, 500)

	dto, err := svc.CreatePaymentLink(testCtx(), invoice.ID, nil)
	require.NoError(t, err)

	_, _, err = svc.RenderReceipt(testCtx(), dto.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.Settle(testCtx(), dto.ID, nil)
	require.NoError(t, err)

	data, filename, err := svc.RenderReceipt(testCtx(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, "receipt-"+invoice.Number+".pdf", filename)
	assert.True(t, len(data) > 0)
	assert.Equal(t, "%PDF", string(data[:4]))
}
