package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/pdf"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newQuoteService(db *gorm.DB) *QuoteService {
	catalogRepo := repository.NewCatalogRepository(db)
	return NewQuoteService(
		repository.NewQuoteRepository(db),
		repository.NewInvoiceRepository(db),
		repository.NewClientRepository(db),
		catalogRepo,
		repository.NewFileRepository(db),
		NewCatalogService(catalogRepo, zap.NewNop()),
		NewNumberSequenceService(repository.NewNumberSequenceRepository(db), zap.NewNop()),
		testActivities(db),
		pdf.NewRenderer("Velora"),
		testBilling(),
		zap.NewNop(),
	)
}

// attachSignature stores a signature file row the way the upload handler does.
func attachSignature(t *testing.T, db *gorm.DB, quoteID uuid.UUID, kind domain.FileKind) {
	t.Helper()
	file := &domain.File{
		OwnerKind:   domain.OwnerQuote,
		OwnerID:     quoteID,
		Kind:        kind,
		Filename:    fmt.Sprintf("%s.png", kind),
		ContentType: "image/png",
		Size:        128,
		StoragePath: fmt.Sprintf("quotes/%s/%s.png", quoteID, kind),
	}
	require.NoError(t, db.Create(file).Error)
}

func createDraftQuote(t *testing.T, db *gorm.DB, svc *QuoteService, client *domain.Client) *domain.QuoteDTO {
	t.Helper()
	design := createTestService(t, db, "Website Design", 600, "")
	dto, err := svc.Create(testCtx(), &domain.CreateQuoteRequest{
		ClientID: client.ID,
		Services: []domain.CreateQuoteServiceRequest{{ServiceID: design.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	return dto
}

func TestQuoteCreateRejectsEmptyQuote(t *testing.T) {
	db := newTestDB(t)
	svc := newQuoteService(db)
	client := createTestClient(t, db, "Atlas Studio", "Morocco")

	_, err := svc.Create(testCtx(), &domain.CreateQuoteRequest{ClientID: client.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestQuoteCreateComputesLineTotals(t *testing.T) {
	db := newTestDB(t)
	svc := newQuoteService(db)
	client := createTestClient(t, db, "Atlas Studio", "Morocco")

	design := createTestService(t, db, "Website Design", 600, "")
	require.NoError(t, db.Model(design).Update("tax_rate", 20).Error)
	plan := createTestPlan(t, db, "Hosting Basic", 400)

	dto, err := svc.Create(testCtx(), &domain.CreateQuoteRequest{
		ClientID: client.ID,
		Currency: "",
		Services: []domain.CreateQuoteServiceRequest{{ServiceID: design.ID, Quantity: 2}},
		Subscriptions: []domain.CreateQuoteSubscriptionRequest{{
			PlanID:      plan.ID,
			PlanPriceID: plan.Prices[0].ID,
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.QuoteStatusDraft, dto.Status)
	assert.Empty(t, dto.Number)
	assert.Equal(t, "MAD", dto.Currency)
	// 600 * 2 * 1.20 + 400
	assert.InDelta(t, 1840, dto.TotalAmount, 0.001)
	require.Len(t, dto.Services, 1)
	assert.InDelta(t, 1440, dto.Services[0].LineTotal, 0.001)
}

func TestQuoteCreateAppliesActiveOffer(t *testing.T) {
	db := newTestDB(t)
	svc := newQuoteService(db)
	client := createTestClient(t, db, "Atlas Studio", "Morocco")

	design := createTestService(t, db, "Website Design", 600, "")
	offer := &domain.Offer{
		ServiceID:     design.ID,
		Title:         "Summer launch",
		DiscountPrice: 450,
		StartsAt:      time.Now().AddDate(0, 0, -1),
		IsActive:      true,
	}
	require.NoError(t, db.Create(offer).Error)

	dto, err := svc.Create(testCtx(), &domain.CreateQuoteRequest{
		ClientID: client.ID,
		Services: []domain.CreateQuoteServiceRequest{{ServiceID: design.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, dto.Services, 1)
	assert.InDelta(t, 450, dto.Services[0].UnitPrice, 0.001)
}

func TestQuoteSendAssignsNumber(t *testing.T) {
	db := newTestDB(t)
	svc := newQuoteService(db)
	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	dto := createDraftQuote(t, db, svc, client)

	sent, err := svc.Send(testCtx(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QuoteStatusSent, sent.Status)
	assert.True(t, strings.HasPrefix(sent.Number, "QUO-"), "number %q", sent.Number)

	// Sending twice is refused
	_, err = svc.Send(testCtx(), dto.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestQuoteUpdateOnlyDrafts(t *testing.T) {
	db := newTestDB(t)
	svc := newQuoteService(db)
	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	dto := createDraftQuote(t, db, svc, client)

	_, err := svc.Send(testCtx(), dto.ID)
	require.NoError(t, err)

	other := createTestService(t, db, "SEO Audit", 200, "")
	_, err = svc.Update(testCtx(), dto.ID, &domain.UpdateQuoteRequest{
		Services: []domain.CreateQuoteServiceRequest{{ServiceID: other.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestQuoteConfirmRequiresSent(t *testing.T) {
	db := newTestDB(t)
	svc := newQuoteService(db)
	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	dto := createDraftQuote(t, db, svc, client)

	_, err := svc.Confirm(testCtx(), dto.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.Send(testCtx(), dto.ID)
	require.NoError(t, err)
	confirmed, err := svc.Confirm(testCtx(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QuoteStatusConfirmed, confirmed.Status)
}

func TestQuoteSignatureFlow(t *testing.T) {
	db := newTestDB(t)
	svc := newQuoteService(db)
	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	dto := createDraftQuote(t, db, svc, client)

	_, err := svc.Send(testCtx(), dto.ID)
	require.NoError(t, err)
	_, err = svc.Confirm(testCtx(), dto.ID)
	require.NoError(t, err)

	// One signature is not enough
	attachSignature(t, db, dto.ID, domain.FileKindAdminSignature)
	partial, err := svc.RecordSignature(testCtx(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QuoteStatusConfirmed, partial.Status)
	assert.True(t, partial.AdminSigned)
	assert.False(t, partial.ClientSigned)

	attachSignature(t, db, dto.ID, domain.FileKindClientSignature)
	signed, err := svc.RecordSignature(testCtx(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QuoteStatusSigned, signed.Status)
	assert.True(t, signed.AdminSigned)
	assert.True(t, signed.ClientSigned)
}

func TestQuoteRejectBlockedAfterBilling(t *testing.T) {
	db := newTestDB(t)
	svc := newQuoteService(db)
	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	dto := createDraftQuote(t, db, svc, client)
	require.NoError(t, db.Model(&domain.Quote{}).
		Where("id = ?", dto.ID).Update("status", domain.QuoteStatusBilled).Error)

	_, err := svc.Reject(testCtx(), dto.ID, &domain.RejectQuoteRequest{Reason: "budget cut"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestConvertToInvoice(t *testing.T) {
	db := newTestDB(t)
	svc := newQuoteService(db)
	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	dto := createDraftQuote(t, db, svc, client)

	_, err := svc.Send(testCtx(), dto.ID)
	require.NoError(t, err)

	// Unsigned quotes cannot convert
	_, err = svc.ConvertToInvoice(testCtx(), dto.ID)
	assert.ErrorIs(t, err, ErrMissingSignature)

	_, err = svc.Confirm(testCtx(), dto.ID)
	require.NoError(t, err)
	attachSignature(t, db, dto.ID, domain.FileKindAdminSignature)
	attachSignature(t, db, dto.ID, domain.FileKindClientSignature)
	_, err = svc.RecordSignature(testCtx(), dto.ID)
	require.NoError(t, err)

	resp, err := svc.ConvertToInvoice(testCtx(), dto.ID)
	require.NoError(t, err)

	var invoice domain.Invoice
	require.NoError(t, db.Preload("Services").First(&invoice, "quote_id = ?", dto.ID).Error)
	assert.Equal(t, domain.InvoiceStatusUnpaid, invoice.Status)
	assert.True(t, strings.HasPrefix(invoice.Number, "INVOICE-"))
	assert.InDelta(t, 600, invoice.TotalAmount, 0.001)
	assert.InDelta(t, invoice.TotalAmount, invoice.BalanceDue, 0.001)
	require.Len(t, invoice.Services, 1)
	assert.Equal(t, resp.Invoice.ID, invoice.ID)

	expected := invoiceChecksum(client.ID, dto.ID, invoice.Number, invoice.TotalAmount, testBilling().ChecksumSecret)
	assert.Equal(t, expected, invoice.Checksum)

	var billed domain.Quote
	require.NoError(t, db.First(&billed, "id = ?", dto.ID).Error)
	assert.Equal(t, domain.QuoteStatusBilled, billed.Status)

	// A quote converts at most once
	_, err = svc.ConvertToInvoice(testCtx(), dto.ID)
	assert.ErrorIs(t, err, ErrAlreadyConverted)
}
