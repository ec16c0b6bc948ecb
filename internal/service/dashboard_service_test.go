package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newDashboardService(db *gorm.DB) *DashboardService {
	return NewDashboardService(
		repository.NewClientRepository(db),
		repository.NewQuoteRepository(db),
		repository.NewInvoiceRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewSubscriptionRepository(db),
		repository.NewTicketRepository(db),
		zap.NewNop(),
	)
}

func TestDashboardMetrics(t *testing.T) {
	db := newTestDB(t)
	svc := newDashboardService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	design := createTestService(t, db, "Website Design", 600, "")

	require.NoError(t, db.Create(&domain.Quote{
		ClientID: client.ID, Status: domain.QuoteStatusSent, TotalAmount: 600,
	}).Error)
	require.NoError(t, db.Create(&domain.Quote{
		Number: "QUO-2026-001", ClientID: client.ID, Status: domain.QuoteStatusRejected,
	}).Error)

	invoice := seedInvoice(t, db, client, 600,
		[]domain.InvoiceService{{ServiceID: design.ID, Quantity: 1, UnitPrice: 600, IndividualTotal: 600}},
		nil,
	)
	require.NoError(t, db.Create(&domain.Ticket{
		ClientID: client.ID,
		Subject:  "Portal access",
		Status:   domain.TicketStatusOpen,
		Priority: domain.PriorityNormal,
	}).Error)

	metrics, err := svc.Metrics(testCtx())
	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.ClientCount)
	assert.Equal(t, int64(1), metrics.OpenQuoteCount)
	assert.Equal(t, int64(1), metrics.UnpaidInvoiceCount)
	assert.Equal(t, int64(0), metrics.OverdueInvoiceCount)
	assert.Equal(t, int64(1), metrics.OpenTicketCount)
	assert.InDelta(t, 600, metrics.TotalOutstanding, 0.001)
	assert.InDelta(t, 0, metrics.CollectedThisMonth, 0.001)

	// A settled share moves money from outstanding to collected
	pay := seedPendingPayment(t, db, invoice, 50, domain.MethodBank)
	require.NoError(t, newSettlementService(db).Apply(testCtx(), pay.ID, domain.MethodBank))

	metrics, err = svc.Metrics(testCtx())
	require.NoError(t, err)
	assert.InDelta(t, 300, metrics.TotalOutstanding, 0.001)
	assert.InDelta(t, 300, metrics.CollectedThisMonth, 0.001)
}
