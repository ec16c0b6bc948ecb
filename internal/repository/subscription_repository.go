package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/domain"
	"gorm.io/gorm"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	var sub domain.Subscription
	query := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Plan").
		Preload("FieldValues").
		Where("id = ?", id)
	query = ApplyClientScope(ctx, query)
	if err := query.First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *SubscriptionRepository) List(ctx context.Context, page, pageSize int, status domain.SubscriptionStatus, clientID *uuid.UUID) ([]domain.Subscription, int64, error) {
	var subs []domain.Subscription
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Subscription{})
	query = ApplyClientScope(ctx, query)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if clientID != nil {
		query = query.Where("client_id = ?", *clientID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Preload("Client").Preload("Plan").Preload("FieldValues").
		Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&subs).Error
	return subs, total, err
}

// ListDueForRenewal returns active and trial subscriptions whose next billing
// date has passed.
func (r *SubscriptionRepository) ListDueForRenewal(ctx context.Context, now time.Time) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := r.db.WithContext(ctx).
		Preload("Client").Preload("Plan").
		Where("status IN ?", []domain.SubscriptionStatus{domain.SubscriptionStatusTrial, domain.SubscriptionStatusActive}).
		Where("next_billing_at IS NOT NULL AND next_billing_at <= ?", now).
		Find(&subs).Error
	return subs, err
}

// ListWithUnpaidRenewal returns active subscriptions with a renewal invoice
// still open past its due date.
func (r *SubscriptionRepository) ListWithUnpaidRenewal(ctx context.Context, now time.Time) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := r.db.WithContext(ctx).
		Distinct("subscriptions.*").
		Joins("JOIN invoice_subscriptions ON invoice_subscriptions.subscription_id = subscriptions.id").
		Joins("JOIN invoices ON invoices.id = invoice_subscriptions.invoice_id").
		Where("subscriptions.status = ?", domain.SubscriptionStatusActive).
		Where("invoices.status IN ?", []domain.InvoiceStatus{
			domain.InvoiceStatusSent, domain.InvoiceStatusUnpaid,
			domain.InvoiceStatusPartiallyPaid, domain.InvoiceStatusOverdue,
		}).
		Where("invoices.due_date IS NOT NULL AND invoices.due_date < ?", now).
		Find(&subs).Error
	return subs, err
}

// ListEnded returns subscriptions past their end date that have not been
// flipped to expired yet.
func (r *SubscriptionRepository) ListEnded(ctx context.Context, now time.Time) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := r.db.WithContext(ctx).
		Where("status <> ?", domain.SubscriptionStatusExpired).
		Where("ends_at IS NOT NULL AND ends_at <= ?", now).
		Find(&subs).Error
	return subs, err
}

func (r *SubscriptionRepository) CountByStatus(ctx context.Context, statuses ...domain.SubscriptionStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("status IN ?", statuses).Count(&count).Error
	return count, err
}

func (r *SubscriptionRepository) SaveFieldValue(ctx context.Context, value *domain.SubscriptionFieldValue) error {
	return r.db.WithContext(ctx).Save(value).Error
}

func (r *SubscriptionRepository) GetFieldValue(ctx context.Context, subscriptionID uuid.UUID, name string) (*domain.SubscriptionFieldValue, error) {
	var value domain.SubscriptionFieldValue
	err := r.db.WithContext(ctx).
		Where("subscription_id = ? AND name = ?", subscriptionID, name).
		First(&value).Error
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (r *SubscriptionRepository) ReplaceFieldValues(ctx context.Context, subscriptionID uuid.UUID, values []domain.SubscriptionFieldValue) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subscription_id = ?", subscriptionID).Delete(&domain.SubscriptionFieldValue{}).Error; err != nil {
			return err
		}
		for i := range values {
			values[i].SubscriptionID = subscriptionID
		}
		if len(values) > 0 {
			return tx.Create(&values).Error
		}
		return nil
	})
}
