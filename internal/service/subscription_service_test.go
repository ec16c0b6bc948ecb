package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloraops/agency-api/internal/domain"
)

func TestSubscriptionCreateLeavesFieldValuesUnset(t *testing.T) {
	db := newTestDB(t)
	svc := newSubscriptionService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	plan := createTestPlan(t, db, "Hosting Basic", 400)

	dto, err := svc.Create(testCtx(), &domain.CreateSubscriptionRequest{
		ClientID:    client.ID,
		PlanID:      plan.ID,
		PlanPriceID: plan.Prices[0].ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, dto.Status)
	assert.Equal(t, domain.CycleMonthly, dto.Cycle)

	var stored domain.Subscription
	require.NoError(t, db.Preload("FieldValues").First(&stored, "id = ?", dto.ID).Error)
	// Declared defaults do not pre-populate values; reads surface null
	// until a value is written.
	assert.Empty(t, stored.FieldValues)
	assert.InDelta(t, float64(30*24*time.Hour),
		float64(stored.NextBillingAt.Sub(stored.StartedAt)), float64(48*time.Hour))
}

func TestSubscriptionCreateWithTrial(t *testing.T) {
	db := newTestDB(t)
	svc := newSubscriptionService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	plan := createTestPlan(t, db, "Hosting Basic", 400)

	dto, err := svc.Create(testCtx(), &domain.CreateSubscriptionRequest{
		ClientID:    client.ID,
		PlanID:      plan.ID,
		PlanPriceID: plan.Prices[0].ID,
		TrialDays:   14,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusTrial, dto.Status)

	var stored domain.Subscription
	require.NoError(t, db.First(&stored, "id = ?", dto.ID).Error)
	assert.InDelta(t, float64(14*24*time.Hour),
		float64(stored.NextBillingAt.Sub(stored.StartedAt)), float64(time.Hour))
}

func TestSubscriptionCreateValidatesPriceOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := newSubscriptionService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	plan := createTestPlan(t, db, "Hosting Basic", 400)
	other := createTestPlan(t, db, "Maintenance Pro", 900)

	_, err := svc.Create(testCtx(), &domain.CreateSubscriptionRequest{
		ClientID:    client.ID,
		PlanID:      plan.ID,
		PlanPriceID: other.Prices[0].ID,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSubscriptionCancel(t *testing.T) {
	tests := []struct {
		name        string
		atPeriodEnd bool
	}{
		{name: "immediately", atPeriodEnd: false},
		{name: "at period end", atPeriodEnd: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			svc := newSubscriptionService(db)

			client := createTestClient(t, db, "Atlas Studio", "Morocco")
			plan := createTestPlan(t, db, "Hosting Basic", 400)
			dto, err := svc.Create(testCtx(), &domain.CreateSubscriptionRequest{
				ClientID:    client.ID,
				PlanID:      plan.ID,
				PlanPriceID: plan.Prices[0].ID,
			})
			require.NoError(t, err)

			_, err = svc.Cancel(testCtx(), dto.ID, &domain.CancelSubscriptionRequest{AtPeriodEnd: tt.atPeriodEnd})
			require.NoError(t, err)

			var stored domain.Subscription
			require.NoError(t, db.First(&stored, "id = ?", dto.ID).Error)
			assert.Equal(t, domain.SubscriptionStatusCancelled, stored.Status)
			require.NotNil(t, stored.CancelledAt)
			require.NotNil(t, stored.EndsAt)
			if tt.atPeriodEnd {
				// Access runs until the paid-for period ends
				assert.Equal(t, stored.NextBillingAt.Unix(), stored.EndsAt.Unix())
			}

			// Cancelled is terminal
			_, err = svc.Cancel(testCtx(), dto.ID, &domain.CancelSubscriptionRequest{})
			assert.ErrorIs(t, err, ErrInvalidStatus)
		})
	}
}

func TestSubscriptionChangePlanSeedsAndCarriesValues(t *testing.T) {
	db := newTestDB(t)
	svc := newSubscriptionService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	basic := createTestPlan(t, db, "Hosting Basic", 400)
	pro := createTestPlan(t, db, "Maintenance Pro", 900)

	dto, err := svc.Create(testCtx(), &domain.CreateSubscriptionRequest{
		ClientID:    client.ID,
		PlanID:      basic.ID,
		PlanPriceID: basic.Prices[0].ID,
	})
	require.NoError(t, err)

	// A value written on the old plan survives when the new plan declares
	// the same field with the same kind.
	_, err = svc.SetFieldValue(testCtx(), dto.ID, &domain.SetFieldValueRequest{
		Name:  "storage_gb",
		Value: json.RawMessage(`50`),
	})
	require.NoError(t, err)

	updated, err := svc.ChangePlan(testCtx(), dto.ID, &domain.ChangePlanRequest{
		PlanID:      pro.ID,
		PlanPriceID: pro.Prices[0].ID,
	})
	require.NoError(t, err)
	assert.Equal(t, pro.ID, updated.PlanID)

	var stored domain.Subscription
	require.NoError(t, db.Preload("FieldValues").First(&stored, "id = ?", dto.ID).Error)
	require.Len(t, stored.FieldValues, 2)

	storage := stored.FieldValue("storage_gb")
	require.NotNil(t, storage)
	assert.JSONEq(t, `50`, string(storage.Value))

	// Fields without a stored value seed from the new plan's default,
	// falling back to null.
	contact := stored.FieldValue("contact_email")
	require.NotNil(t, contact)
	assert.Equal(t, "null", string(contact.Value))
}

func TestSubscriptionChangePlanRequiresLiveSubscription(t *testing.T) {
	db := newTestDB(t)
	svc := newSubscriptionService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	plan := createTestPlan(t, db, "Hosting Basic", 400)
	dto, err := svc.Create(testCtx(), &domain.CreateSubscriptionRequest{
		ClientID:    client.ID,
		PlanID:      plan.ID,
		PlanPriceID: plan.Prices[0].ID,
	})
	require.NoError(t, err)

	_, err = svc.Cancel(testCtx(), dto.ID, &domain.CancelSubscriptionRequest{})
	require.NoError(t, err)

	_, err = svc.ChangePlan(testCtx(), dto.ID, &domain.ChangePlanRequest{
		PlanID:      plan.ID,
		PlanPriceID: plan.Prices[0].ID,
	})
	assert.ErrorIs(t, err, ErrSubscriptionInactive)
}

func TestSubscriptionSetFieldValueValidation(t *testing.T) {
	db := newTestDB(t)
	svc := newSubscriptionService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	plan := createTestPlan(t, db, "Hosting Basic", 400)
	dto, err := svc.Create(testCtx(), &domain.CreateSubscriptionRequest{
		ClientID:    client.ID,
		PlanID:      plan.ID,
		PlanPriceID: plan.Prices[0].ID,
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		field    string
		value    string
		expected error
	}{
		{name: "number accepts number", field: "storage_gb", value: `25`},
		{name: "number rejects string", field: "storage_gb", value: `"lots"`, expected: ErrInvalidInput},
		{name: "number rejects trailing data", field: "storage_gb", value: `25 true`, expected: ErrInvalidInput},
		{name: "text accepts string", field: "contact_email", value: `"ops@atlas.example"`},
		{name: "text rejects number", field: "contact_email", value: `42`, expected: ErrInvalidInput},
		{name: "undeclared field", field: "bandwidth", value: `1`, expected: ErrUnknownField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetFieldValue(testCtx(), dto.ID, &domain.SetFieldValueRequest{
				Name:  tt.field,
				Value: json.RawMessage(tt.value),
			})
			if tt.expected != nil {
				assert.ErrorIs(t, err, tt.expected)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRenewDueIssuesInvoiceAndAdvancesAnchor(t *testing.T) {
	db := newTestDB(t)
	svc := newSubscriptionService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	plan := createTestPlan(t, db, "Hosting Basic", 400)
	dto, err := svc.Create(testCtx(), &domain.CreateSubscriptionRequest{
		ClientID:    client.ID,
		PlanID:      plan.ID,
		PlanPriceID: plan.Prices[0].ID,
	})
	require.NoError(t, err)

	// Backdate the anchor as if the sweep runs three days late
	anchor := time.Now().AddDate(0, 0, -3).Truncate(time.Second)
	require.NoError(t, db.Model(&domain.Subscription{}).
		Where("id = ?", dto.ID).Update("next_billing_at", anchor).Error)

	renewed, err := svc.RenewDue(testCtx(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, renewed)

	var invoice domain.Invoice
	require.NoError(t, db.Preload("Subscriptions").
		First(&invoice, "client_id = ?", client.ID).Error)
	assert.Equal(t, domain.InvoiceStatusUnpaid, invoice.Status)
	assert.Contains(t, invoice.Number, "INVOICE-")
	assert.InDelta(t, 400, invoice.TotalAmount, 0.001)
	assert.NotEmpty(t, invoice.Checksum)
	require.NotNil(t, invoice.DueDate)
	require.Len(t, invoice.Subscriptions, 1)
	require.NotNil(t, invoice.Subscriptions[0].SubscriptionID)
	assert.Equal(t, dto.ID, *invoice.Subscriptions[0].SubscriptionID)

	// The anchor advances from the previous anchor, not from the run time
	var stored domain.Subscription
	require.NoError(t, db.First(&stored, "id = ?", dto.ID).Error)
	assert.Equal(t, anchor.AddDate(0, 1, 0).Unix(), stored.NextBillingAt.Unix())

	// Nothing left due
	renewed, err = svc.RenewDue(testCtx(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, renewed)
}

func TestRenewDueSkipsPeriodEndCancellations(t *testing.T) {
	db := newTestDB(t)
	svc := newSubscriptionService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	plan := createTestPlan(t, db, "Hosting Basic", 400)
	dto, err := svc.Create(testCtx(), &domain.CreateSubscriptionRequest{
		ClientID:    client.ID,
		PlanID:      plan.ID,
		PlanPriceID: plan.Prices[0].ID,
	})
	require.NoError(t, err)

	_, err = svc.Cancel(testCtx(), dto.ID, &domain.CancelSubscriptionRequest{AtPeriodEnd: true})
	require.NoError(t, err)

	anchor := time.Now().AddDate(0, 0, -1)
	require.NoError(t, db.Model(&domain.Subscription{}).
		Where("id = ?", dto.ID).
		Updates(map[string]any{"next_billing_at": anchor, "ends_at": anchor}).Error)

	renewed, err := svc.RenewDue(testCtx(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, renewed)

	// Once the paid-for period has run out the expiry sweep retires it
	swept, err := svc.SweepEnded(testCtx(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	var stored domain.Subscription
	require.NoError(t, db.First(&stored, "id = ?", dto.ID).Error)
	assert.Equal(t, domain.SubscriptionStatusExpired, stored.Status)

	// Terminal: the sweep does not touch it again
	swept, err = svc.SweepEnded(testCtx(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
}

func TestMarkPastDueFlagsUnpaidRenewals(t *testing.T) {
	db := newTestDB(t)
	svc := newSubscriptionService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	plan := createTestPlan(t, db, "Hosting Basic", 400)

	paying, err := svc.Create(testCtx(), &domain.CreateSubscriptionRequest{
		ClientID:    client.ID,
		PlanID:      plan.ID,
		PlanPriceID: plan.Prices[0].ID,
	})
	require.NoError(t, err)
	delinquent, err := svc.Create(testCtx(), &domain.CreateSubscriptionRequest{
		ClientID:    client.ID,
		PlanID:      plan.ID,
		PlanPriceID: plan.Prices[0].ID,
	})
	require.NoError(t, err)

	require.NoError(t, db.Model(&domain.Subscription{}).
		Where("id IN ?", []any{paying.ID, delinquent.ID}).
		Update("next_billing_at", time.Now().AddDate(0, 0, -1)).Error)
	renewed, err := svc.RenewDue(testCtx(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, renewed)

	// Both renewal invoices blew past their due date; one client paid anyway
	require.NoError(t, db.Exec(
		"UPDATE invoices SET due_date = ? WHERE id IN (SELECT invoice_id FROM invoice_subscriptions WHERE subscription_id IN (?, ?))",
		time.Now().AddDate(0, 0, -1), paying.ID, delinquent.ID).Error)
	require.NoError(t, db.Exec(
		"UPDATE invoices SET status = ?, balance_due = 0 WHERE id IN (SELECT invoice_id FROM invoice_subscriptions WHERE subscription_id = ?)",
		domain.InvoiceStatusPaid, paying.ID).Error)

	flagged, err := svc.MarkPastDue(testCtx(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)

	var storedPaying, storedDelinquent domain.Subscription
	require.NoError(t, db.First(&storedPaying, "id = ?", paying.ID).Error)
	require.NoError(t, db.First(&storedDelinquent, "id = ?", delinquent.ID).Error)
	assert.Equal(t, domain.SubscriptionStatusActive, storedPaying.Status)
	assert.Equal(t, domain.SubscriptionStatusPastDue, storedDelinquent.Status)

	// A past-due subscription is not handed another renewal invoice
	require.NoError(t, db.Model(&domain.Subscription{}).
		Where("id IN ?", []any{paying.ID, delinquent.ID}).
		Update("next_billing_at", time.Now().AddDate(0, 0, -1)).Error)
	renewed, err = svc.RenewDue(testCtx(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, renewed)
}

func TestValidateFieldValue(t *testing.T) {
	tests := []struct {
		name    string
		kind    domain.FieldKind
		value   string
		wantErr bool
	}{
		{name: "boolean true", kind: domain.FieldKindBoolean, value: `true`},
		{name: "boolean rejects number", kind: domain.FieldKindBoolean, value: `1`, wantErr: true},
		{name: "json accepts object", kind: domain.FieldKindJSON, value: `{"a":1}`},
		{name: "json rejects malformed", kind: domain.FieldKindJSON, value: `{"a":`, wantErr: true},
		{name: "number accepts float", kind: domain.FieldKindNumber, value: `3.5`},
		{name: "empty value", kind: domain.FieldKindText, value: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFieldValue(tt.kind, []byte(tt.value))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
