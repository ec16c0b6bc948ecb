package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/veloraops/agency-api/internal/config"
	"github.com/veloraops/agency-api/internal/database"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/mail"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func testBilling() *config.BillingConfig {
	return &config.BillingConfig{
		ChecksumSecret:  "test-checksum-secret",
		DueDays:         14,
		DefaultCurrency: "MAD",
	}
}

func testMailer() *mail.Mailer {
	return mail.NewMailer(&config.MailConfig{Enabled: false}, zap.NewNop())
}

func testActivities(db *gorm.DB) *ActivityService {
	return NewActivityService(repository.NewActivityRepository(db), zap.NewNop())
}

func createTestClient(t *testing.T, db *gorm.DB, name, country string) *domain.Client {
	t.Helper()
	client := &domain.Client{
		Name:    name,
		Email:   "billing@example.com",
		Country: country,
	}
	require.NoError(t, db.Create(client).Error)
	return client
}

func createTestService(t *testing.T, db *gorm.DB, name string, price float64, taskSteps string) *domain.Service {
	t.Helper()
	svc := &domain.Service{
		Name:     name,
		Price:    price,
		IsActive: true,
	}
	if taskSteps != "" {
		svc.HasProjects = true
		svc.TaskSteps = []byte(taskSteps)
	}
	require.NoError(t, db.Create(svc).Error)
	return svc
}

// createTestPlan creates an active plan with a monthly price and two typed
// custom fields (a number with a default and a text without one).
func createTestPlan(t *testing.T, db *gorm.DB, name string, monthly float64) *domain.Plan {
	t.Helper()
	plan := &domain.Plan{
		Name:     name,
		IsActive: true,
		Prices: []domain.PlanPrice{{
			Cycle:    domain.CycleMonthly,
			Amount:   monthly,
			Currency: "MAD",
			IsActive: true,
		}},
		Fields: []domain.PlanField{
			{Name: "storage_gb", Kind: domain.FieldKindNumber, Default: []byte("10")},
			{Name: "contact_email", Kind: domain.FieldKindText},
		},
	}
	require.NoError(t, db.Create(plan).Error)
	return plan
}

func newSubscriptionService(db *gorm.DB) *SubscriptionService {
	return NewSubscriptionService(
		repository.NewSubscriptionRepository(db),
		repository.NewClientRepository(db),
		repository.NewCatalogRepository(db),
		repository.NewInvoiceRepository(db),
		NewNumberSequenceService(repository.NewNumberSequenceRepository(db), zap.NewNop()),
		testActivities(db),
		testBilling(),
		zap.NewNop(),
	)
}

func newSettlementService(db *gorm.DB) *SettlementService {
	return NewSettlementService(
		repository.NewPaymentRepository(db),
		testActivities(db),
		testMailer(),
		zap.NewNop(),
	)
}

// seedInvoice stores an unpaid invoice with the given service and
// subscription lines already summed into the total.
func seedInvoice(t *testing.T, db *gorm.DB, client *domain.Client, total float64, services []domain.InvoiceService, subs []domain.InvoiceSubscription) *domain.Invoice {
	t.Helper()
	invoice := &domain.Invoice{
		Number:        "INVOICE-2026-001",
		ClientID:      client.ID,
		Status:        domain.InvoiceStatusUnpaid,
		Currency:      "MAD",
		TotalAmount:   total,
		BalanceDue:    total,
		Services:      services,
		Subscriptions: subs,
	}
	require.NoError(t, db.Create(invoice).Error)
	return invoice
}

func seedPendingPayment(t *testing.T, db *gorm.DB, invoice *domain.Invoice, percentage float64, method domain.PaymentMethod) *domain.Payment {
	t.Helper()
	pay := &domain.Payment{
		InvoiceID:  invoice.ID,
		ClientID:   invoice.ClientID,
		Total:      invoice.TotalAmount,
		Amount:     shareOf(invoice.TotalAmount, percentage),
		Percentage: percentage,
		Currency:   invoice.Currency,
		Status:     domain.PaymentStatusPending,
		Method:     method,
	}
	require.NoError(t, db.Create(pay).Error)
	return pay
}

func testCtx() context.Context {
	return context.Background()
}
