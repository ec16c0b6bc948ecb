package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	var payment domain.Payment
	query := r.db.WithContext(ctx).
		Preload("Invoice").
		Preload("Allocations").
		Where("id = ?", id)
	query = ApplyClientScope(ctx, query)
	if err := query.First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByIDForUpdate loads a payment under a row lock inside tx. Settlement
// serializes on it so a webhook retry cannot double-apply.
func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Payment, error) {
	var payment domain.Payment
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) GetByProviderSessionID(ctx context.Context, sessionID string) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.db.WithContext(ctx).Where("provider_session_id = ?", sessionID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

// UpdateVersioned persists a pending payment only when its version still
// matches, bumping the version on success. Returns gorm.ErrRecordNotFound
// when another writer got there first.
func (r *PaymentRepository) UpdateVersioned(ctx context.Context, payment *domain.Payment, expectedVersion int) error {
	result := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND version = ?", payment.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":              payment.Status,
			"amount":              payment.Amount,
			"percentage":          payment.Percentage,
			"provider_session_id": payment.ProviderSessionID,
			"checkout_url":        payment.CheckoutURL,
			"version":             expectedVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	payment.Version = expectedVersion + 1
	return nil
}

func (r *PaymentRepository) List(ctx context.Context, page, pageSize int, status domain.PaymentStatus, invoiceID *uuid.UUID) ([]domain.Payment, int64, error) {
	var payments []domain.Payment
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Payment{})
	query = ApplyClientScope(ctx, query)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if invoiceID != nil {
		query = query.Where("invoice_id = ?", *invoiceID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Preload("Invoice").Preload("Allocations").
		Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&payments).Error
	return payments, total, err
}

func (r *PaymentRepository) CreateAllocations(ctx context.Context, tx *gorm.DB, allocations []domain.PaymentAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&allocations).Error
}

func (r *PaymentRepository) HasAllocations(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&domain.PaymentAllocation{}).
		Where("payment_id = ?", paymentID).Count(&count).Error
	return count > 0, err
}

func (r *PaymentRepository) SumPaidBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("status = ? AND paid_at >= ? AND paid_at < ?", domain.PaymentStatusPaid, from, to).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error
	return total, err
}

// Transaction exposes the underlying transaction runner for settlement, which
// spans payments, invoices, subscriptions and projects atomically.
func (r *PaymentRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
