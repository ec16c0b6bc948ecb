package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloraops/agency-api/internal/config"
	"github.com/veloraops/agency-api/internal/database"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/mail"
	"github.com/veloraops/agency-api/internal/payment"
	"github.com/veloraops/agency-api/internal/repository"
	"github.com/veloraops/agency-api/internal/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const webhookSecret = "whsec_test"

func newWebhookFixture(t *testing.T) (*WebhookHandler, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	settlement := service.NewSettlementService(
		repository.NewPaymentRepository(db),
		service.NewActivityService(repository.NewActivityRepository(db), zap.NewNop()),
		mail.NewMailer(&config.MailConfig{Enabled: false}, zap.NewNop()),
		zap.NewNop(),
	)
	handler := NewWebhookHandler(settlement, &config.StripeConfig{WebhookSecret: webhookSecret}, zap.NewNop())
	return handler, db
}

// seedSessionPayment stores an unpaid invoice with one pending stripe
// payment bound to the given checkout session.
func seedSessionPayment(t *testing.T, db *gorm.DB, sessionID string) *domain.Payment {
	t.Helper()

	client := &domain.Client{Name: "Atlas Studio", Email: "billing@example.com", Country: "France"}
	require.NoError(t, db.Create(client).Error)

	svc := &domain.Service{Name: "Website Design", Price: 500, IsActive: true}
	require.NoError(t, db.Create(svc).Error)

	invoice := &domain.Invoice{
		Number:      "INVOICE-2026-001",
		ClientID:    client.ID,
		Status:      domain.InvoiceStatusUnpaid,
		Currency:    "MAD",
		TotalAmount: 500,
		BalanceDue:  500,
		Services: []domain.InvoiceService{{
			ServiceID:       svc.ID,
			Quantity:        1,
			UnitPrice:       500,
			IndividualTotal: 500,
		}},
	}
	require.NoError(t, db.Create(invoice).Error)

	pay := &domain.Payment{
		InvoiceID:         invoice.ID,
		ClientID:          client.ID,
		Total:             500,
		Amount:            500,
		Percentage:        100,
		Currency:          "MAD",
		Status:            domain.PaymentStatusPending,
		Method:            domain.MethodStripe,
		ProviderSessionID: sessionID,
	}
	require.NoError(t, db.Create(pay).Error)
	return pay
}

func postWebhook(handler *WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.HandleStripe(rec, req)
	return rec
}

func sessionEvent(eventType, sessionID string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"evt_1","type":"%s","data":{"object":{"id":"%s","status":"complete"}}}`,
		eventType, sessionID))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	handler, db := newWebhookFixture(t)
	pay := seedSessionPayment(t, db, "cs_123")

	body := sessionEvent("checkout.session.completed", "cs_123")

	rec := postWebhook(handler, body, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postWebhook(handler, body, payment.SignPayload(body, "whsec_other", time.Now()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var stored domain.Payment
	require.NoError(t, db.First(&stored, "id = ?", pay.ID).Error)
	assert.Equal(t, domain.PaymentStatusPending, stored.Status)
}

func TestWebhookSettlesCompletedSession(t *testing.T) {
	handler, db := newWebhookFixture(t)
	pay := seedSessionPayment(t, db, "cs_123")

	body := sessionEvent("checkout.session.completed", "cs_123")
	sig := payment.SignPayload(body, webhookSecret, time.Now())

	rec := postWebhook(handler, body, sig)
	assert.Equal(t, http.StatusOK, rec.Code)

	var stored domain.Payment
	require.NoError(t, db.First(&stored, "id = ?", pay.ID).Error)
	assert.Equal(t, domain.PaymentStatusPaid, stored.Status)

	var invoice domain.Invoice
	require.NoError(t, db.First(&invoice, "id = ?", pay.InvoiceID).Error)
	assert.Equal(t, domain.InvoiceStatusPaid, invoice.Status)

	// Replayed delivery is acked without double-applying
	rec = postWebhook(handler, body, payment.SignPayload(body, webhookSecret, time.Now()))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, db.First(&invoice, "id = ?", pay.InvoiceID).Error)
	assert.InDelta(t, 0, invoice.BalanceDue, 0.001)
}

func TestWebhookFailsExpiredSession(t *testing.T) {
	handler, db := newWebhookFixture(t)
	pay := seedSessionPayment(t, db, "cs_123")

	body := sessionEvent("checkout.session.expired", "cs_123")
	rec := postWebhook(handler, body, payment.SignPayload(body, webhookSecret, time.Now()))
	assert.Equal(t, http.StatusOK, rec.Code)

	var stored domain.Payment
	require.NoError(t, db.First(&stored, "id = ?", pay.ID).Error)
	assert.Equal(t, domain.PaymentStatusFailed, stored.Status)
}

func TestWebhookAcksUnknownSession(t *testing.T) {
	handler, _ := newWebhookFixture(t)

	body := sessionEvent("checkout.session.completed", "cs_missing")
	rec := postWebhook(handler, body, payment.SignPayload(body, webhookSecret, time.Now()))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookAcksUnhandledEventTypes(t *testing.T) {
	handler, _ := newWebhookFixture(t)

	body := []byte(`{"id":"evt_1","type":"invoice.created","data":{"object":{}}}`)
	rec := postWebhook(handler, body, payment.SignPayload(body, webhookSecret, time.Now()))
	assert.Equal(t, http.StatusOK, rec.Code)
}
