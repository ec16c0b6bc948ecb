package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BillingJobName is the name of the recurring billing job
const BillingJobName = "billing_sweep"

// SubscriptionBillingService defines the subscription sweeps the billing job runs.
// This interface allows the job to call the service without importing the service package directly.
type SubscriptionBillingService interface {
	// RenewDue issues a renewal invoice for every active or trial subscription
	// whose billing anchor has passed. Returns the number of subscriptions renewed.
	RenewDue(ctx context.Context, now time.Time) (int, error)

	// MarkPastDue flags subscriptions whose latest renewal invoice went unpaid
	// past its due date. Returns the number of subscriptions flagged.
	MarkPastDue(ctx context.Context, now time.Time) (int, error)

	// SweepEnded expires subscriptions whose end date has passed.
	// Returns the number of subscriptions expired.
	SweepEnded(ctx context.Context, now time.Time) (int, error)
}

// InvoiceSweepService defines the invoice sweep the billing job runs.
type InvoiceSweepService interface {
	// SweepOverdue marks sent and unpaid invoices past their due date as overdue.
	// Returns the number of invoices marked.
	SweepOverdue(ctx context.Context, now time.Time) (int, error)
}

// BillingJob runs the recurring billing sweeps: past-due flagging,
// subscription renewals, expiry, and overdue invoice marking.
type BillingJob struct {
	subscriptions SubscriptionBillingService
	invoices      InvoiceSweepService
	logger        *zap.Logger
	timeout       time.Duration
}

// NewBillingJob creates a new billing job.
// The timeout controls how long one sweep pass is allowed to run.
func NewBillingJob(subscriptions SubscriptionBillingService, invoices InvoiceSweepService, logger *zap.Logger, timeout time.Duration) *BillingJob {
	return &BillingJob{
		subscriptions: subscriptions,
		invoices:      invoices,
		logger:        logger,
		timeout:       timeout,
	}
}

// Run executes one billing sweep pass.
// This is called by the scheduler according to the cron expression.
// A failure in one sweep does not stop the others.
func (j *BillingJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	now := start.UTC()
	j.logger.Info("starting billing sweep")

	// Past-due flagging runs first so a subscription with an open renewal
	// invoice is not issued another one below.
	pastDue, err := j.subscriptions.MarkPastDue(ctx, now)
	if err != nil {
		j.logger.Error("past-due sweep failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
	}

	renewed, err := j.subscriptions.RenewDue(ctx, now)
	if err != nil {
		j.logger.Error("subscription renewal sweep failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
	}

	expired, err := j.subscriptions.SweepEnded(ctx, now)
	if err != nil {
		j.logger.Error("subscription expiry sweep failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
	}

	overdue, err := j.invoices.SweepOverdue(ctx, now)
	if err != nil {
		j.logger.Error("overdue invoice sweep failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
	}

	j.logger.Info("billing sweep completed",
		zap.Int("subscriptions_renewed", renewed),
		zap.Int("subscriptions_past_due", pastDue),
		zap.Int("subscriptions_expired", expired),
		zap.Int("invoices_overdue", overdue),
		zap.Duration("duration", time.Since(start)))
}
