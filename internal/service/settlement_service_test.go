package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloraops/agency-api/internal/domain"
)

func TestApplySplitsAllocationsProportionally(t *testing.T) {
	db := newTestDB(t)
	svc := newSettlementService(db)

	client := createTestClient(t, db, "Atlas Studio", "France")
	design := createTestService(t, db, "Website Design", 600, "")
	plan := createTestPlan(t, db, "Hosting Basic", 400)

	invoice := seedInvoice(t, db, client, 1000,
		[]domain.InvoiceService{{
			ServiceID:       design.ID,
			Quantity:        1,
			UnitPrice:       600,
			IndividualTotal: 600,
		}},
		[]domain.InvoiceSubscription{{
			PlanID:        plan.ID,
			PlanPriceID:   plan.Prices[0].ID,
			Cycle:         domain.CycleMonthly,
			PriceSnapshot: 400,
		}},
	)
	pay := seedPendingPayment(t, db, invoice, 50, domain.MethodBank)

	require.NoError(t, svc.Apply(testCtx(), pay.ID, domain.MethodBank))

	var allocations []domain.PaymentAllocation
	require.NoError(t, db.Where("payment_id = ?", pay.ID).Order("amount DESC").Find(&allocations).Error)
	require.Len(t, allocations, 2)

	// 500 collected over a 600/400 split: 300 to services, 200 to the line.
	assert.Equal(t, domain.AllocatableInvoice, allocations[0].Kind)
	assert.InDelta(t, 300, allocations[0].Amount, 0.001)
	assert.Equal(t, domain.AllocatableSubscription, allocations[1].Kind)
	assert.InDelta(t, 200, allocations[1].Amount, 0.001)
	assert.NotNil(t, allocations[1].InvoiceSubscriptionID)

	var updated domain.Invoice
	require.NoError(t, db.Preload("Subscriptions").First(&updated, "id = ?", invoice.ID).Error)
	assert.Equal(t, domain.InvoiceStatusPartiallyPaid, updated.Status)
	assert.InDelta(t, 500, updated.BalanceDue, 0.001)
	require.Len(t, updated.Subscriptions, 1)
	assert.InDelta(t, 50, updated.Subscriptions[0].PaidPercentage, 0.001)
	assert.Nil(t, updated.Subscriptions[0].SubscriptionID)

	var settled domain.Payment
	require.NoError(t, db.First(&settled, "id = ?", pay.ID).Error)
	assert.Equal(t, domain.PaymentStatusPaid, settled.Status)
	assert.NotNil(t, settled.PaidAt)
	assert.Equal(t, 1, settled.Version)
}

func TestApplyIgnoresDuplicateDelivery(t *testing.T) {
	db := newTestDB(t)
	svc := newSettlementService(db)

	client := createTestClient(t, db, "Atlas Studio", "France")
	design := createTestService(t, db, "Website Design", 500, "")
	invoice := seedInvoice(t, db, client, 500,
		[]domain.InvoiceService{{ServiceID: design.ID, Quantity: 1, UnitPrice: 500, IndividualTotal: 500}},
		nil,
	)
	pay := seedPendingPayment(t, db, invoice, 100, domain.MethodStripe)

	require.NoError(t, svc.Apply(testCtx(), pay.ID, domain.MethodStripe))
	require.NoError(t, svc.Apply(testCtx(), pay.ID, domain.MethodStripe))

	var count int64
	require.NoError(t, db.Model(&domain.PaymentAllocation{}).
		Where("payment_id = ?", pay.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var updated domain.Invoice
	require.NoError(t, db.First(&updated, "id = ?", invoice.ID).Error)
	assert.InDelta(t, 0, updated.BalanceDue, 0.001)
	assert.Equal(t, domain.InvoiceStatusPaid, updated.Status)
}

func TestApplyRejectsNonPendingPayment(t *testing.T) {
	db := newTestDB(t)
	svc := newSettlementService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	design := createTestService(t, db, "SEO Audit", 200, "")
	invoice := seedInvoice(t, db, client, 200,
		[]domain.InvoiceService{{ServiceID: design.ID, Quantity: 1, UnitPrice: 200, IndividualTotal: 200}},
		nil,
	)
	pay := seedPendingPayment(t, db, invoice, 100, domain.MethodBank)
	require.NoError(t, db.Model(pay).Update("status", domain.PaymentStatusFailed).Error)

	err := svc.Apply(testCtx(), pay.ID, domain.MethodBank)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestFullSettlementSpawnsProjectsAndClosesQuote(t *testing.T) {
	db := newTestDB(t)
	svc := newSettlementService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	design := createTestService(t, db, "Website Design", 900, `["Design","Build","Launch"]`)

	quote := &domain.Quote{
		Number:      "QUO-2026-001",
		ClientID:    client.ID,
		Status:      domain.QuoteStatusBilled,
		TotalAmount: 900,
	}
	require.NoError(t, db.Create(quote).Error)

	invoice := seedInvoice(t, db, client, 900,
		[]domain.InvoiceService{{ServiceID: design.ID, Quantity: 1, UnitPrice: 900, IndividualTotal: 900}},
		nil,
	)
	require.NoError(t, db.Model(invoice).Update("quote_id", quote.ID).Error)

	pay := seedPendingPayment(t, db, invoice, 100, domain.MethodBank)
	require.NoError(t, svc.Apply(testCtx(), pay.ID, domain.MethodBank))

	var updatedQuote domain.Quote
	require.NoError(t, db.First(&updatedQuote, "id = ?", quote.ID).Error)
	assert.Equal(t, domain.QuoteStatusPaid, updatedQuote.Status)

	var project domain.Project
	require.NoError(t, db.Preload("Tasks").Preload("Progress").
		First(&project, "invoice_id = ?", invoice.ID).Error)
	assert.Equal(t, "Website Design - INVOICE-2026-001", project.Name)
	assert.Equal(t, domain.ProjectStatusActive, project.Status)
	require.NotNil(t, project.Progress)
	assert.InDelta(t, 0, project.Progress.AccumulatedPercentage, 0.001)

	require.Len(t, project.Tasks, 3)
	var sum float64
	for _, task := range project.Tasks {
		assert.Equal(t, domain.TaskStatusTodo, task.Status)
		sum += task.Percentage
	}
	assert.InDelta(t, 100, sum, 0.001)
}

func TestSubscriptionMaterializesAtFullPercentage(t *testing.T) {
	db := newTestDB(t)
	svc := newSettlementService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	plan := createTestPlan(t, db, "Hosting Basic", 400)

	invoice := seedInvoice(t, db, client, 400, nil,
		[]domain.InvoiceSubscription{{
			PlanID:        plan.ID,
			PlanPriceID:   plan.Prices[0].ID,
			Cycle:         domain.CycleMonthly,
			PriceSnapshot: 400,
		}},
	)

	first := seedPendingPayment(t, db, invoice, 50, domain.MethodBank)
	require.NoError(t, svc.Apply(testCtx(), first.ID, domain.MethodBank))

	var line domain.InvoiceSubscription
	require.NoError(t, db.First(&line, "invoice_id = ?", invoice.ID).Error)
	assert.InDelta(t, 50, line.PaidPercentage, 0.001)
	assert.Nil(t, line.SubscriptionID)

	second := seedPendingPayment(t, db, invoice, 50, domain.MethodBank)
	require.NoError(t, svc.Apply(testCtx(), second.ID, domain.MethodBank))

	require.NoError(t, db.First(&line, "invoice_id = ?", invoice.ID).Error)
	assert.InDelta(t, 100, line.PaidPercentage, 0.001)
	require.NotNil(t, line.SubscriptionID)

	var sub domain.Subscription
	require.NoError(t, db.Preload("FieldValues").First(&sub, "id = ?", line.SubscriptionID).Error)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, plan.ID, sub.PlanID)
	assert.Equal(t, domain.CycleMonthly, sub.Cycle)
	// Values stay unset until written explicitly, defaults notwithstanding.
	assert.Empty(t, sub.FieldValues)
}

func TestRevertRestoresBalanceAndReopensQuote(t *testing.T) {
	db := newTestDB(t)
	svc := newSettlementService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	design := createTestService(t, db, "Website Design", 900, `["Design","Build"]`)

	quote := &domain.Quote{
		Number:      "QUO-2026-002",
		ClientID:    client.ID,
		Status:      domain.QuoteStatusBilled,
		TotalAmount: 900,
	}
	require.NoError(t, db.Create(quote).Error)

	invoice := seedInvoice(t, db, client, 900,
		[]domain.InvoiceService{{ServiceID: design.ID, Quantity: 1, UnitPrice: 900, IndividualTotal: 900}},
		nil,
	)
	require.NoError(t, db.Model(invoice).Update("quote_id", quote.ID).Error)

	pay := seedPendingPayment(t, db, invoice, 100, domain.MethodBank)
	require.NoError(t, svc.Apply(testCtx(), pay.ID, domain.MethodBank))
	require.NoError(t, svc.Revert(testCtx(), pay.ID))

	var refunded domain.Payment
	require.NoError(t, db.First(&refunded, "id = ?", pay.ID).Error)
	assert.Equal(t, domain.PaymentStatusRefunded, refunded.Status)

	var updated domain.Invoice
	require.NoError(t, db.First(&updated, "id = ?", invoice.ID).Error)
	assert.Equal(t, domain.InvoiceStatusUnpaid, updated.Status)
	assert.InDelta(t, 900, updated.BalanceDue, 0.001)

	var project domain.Project
	require.NoError(t, db.First(&project, "invoice_id = ?", invoice.ID).Error)
	assert.Equal(t, domain.ProjectStatusDraft, project.Status)

	var reopened domain.Quote
	require.NoError(t, db.First(&reopened, "id = ?", quote.ID).Error)
	assert.Equal(t, domain.QuoteStatusBilled, reopened.Status)

	// Allocations stay on record for the audit trail.
	var count int64
	require.NoError(t, db.Model(&domain.PaymentAllocation{}).
		Where("payment_id = ?", pay.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRevertRejectsUnsettledPayment(t *testing.T) {
	db := newTestDB(t)
	svc := newSettlementService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	design := createTestService(t, db, "SEO Audit", 200, "")
	invoice := seedInvoice(t, db, client, 200,
		[]domain.InvoiceService{{ServiceID: design.ID, Quantity: 1, UnitPrice: 200, IndividualTotal: 200}},
		nil,
	)
	pay := seedPendingPayment(t, db, invoice, 100, domain.MethodBank)

	err := svc.Revert(testCtx(), pay.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestFailIgnoresSettledPayment(t *testing.T) {
	db := newTestDB(t)
	svc := newSettlementService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	design := createTestService(t, db, "SEO Audit", 200, "")
	invoice := seedInvoice(t, db, client, 200,
		[]domain.InvoiceService{{ServiceID: design.ID, Quantity: 1, UnitPrice: 200, IndividualTotal: 200}},
		nil,
	)
	pay := seedPendingPayment(t, db, invoice, 100, domain.MethodStripe)
	require.NoError(t, svc.Apply(testCtx(), pay.ID, domain.MethodStripe))

	require.NoError(t, svc.Fail(testCtx(), pay.ID))

	var settled domain.Payment
	require.NoError(t, db.First(&settled, "id = ?", pay.ID).Error)
	assert.Equal(t, domain.PaymentStatusPaid, settled.Status)
}

func TestTasksWithEqualShares(t *testing.T) {
	tests := []struct {
		name     string
		titles   []string
		expected []float64
	}{
		{name: "empty", titles: nil, expected: nil},
		{name: "single", titles: []string{"Build"}, expected: []float64{100}},
		{name: "even split", titles: []string{"A", "B", "C", "D"}, expected: []float64{25, 25, 25, 25}},
		{name: "remainder on last", titles: []string{"A", "B", "C"}, expected: []float64{33.33, 33.33, 33.34}},
		{name: "sixths", titles: []string{"A", "B", "C", "D", "E", "F"}, expected: []float64{16.67, 16.67, 16.67, 16.67, 16.67, 16.65}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := tasksWithEqualShares(tt.titles)
			require.Len(t, tasks, len(tt.expected))
			var sum float64
			for i, task := range tasks {
				assert.InDelta(t, tt.expected[i], task.Percentage, 0.001)
				sum += task.Percentage
			}
			if len(tasks) > 0 {
				assert.InDelta(t, 100, sum, 0.001)
			}
		})
	}
}
