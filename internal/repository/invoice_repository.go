package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/domain"
	"gorm.io/gorm"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	query := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Services.Service").
		Preload("Subscriptions.Plan").
		Where("id = ?", id)
	query = ApplyClientScope(ctx, query)
	if err := query.First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *InvoiceRepository) GetByQuoteID(ctx context.Context, quoteID uuid.UUID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.db.WithContext(ctx).Where("quote_id = ?", quoteID).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *InvoiceRepository) GetByChecksum(ctx context.Context, checksum string) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.db.WithContext(ctx).Where("checksum = ?", checksum).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *InvoiceRepository) Update(ctx context.Context, invoice *domain.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

func (r *InvoiceRepository) GetSubscriptionLine(ctx context.Context, id uuid.UUID) (*domain.InvoiceSubscription, error) {
	var line domain.InvoiceSubscription
	err := r.db.WithContext(ctx).Preload("Plan").Where("id = ?", id).First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *InvoiceRepository) UpdateSubscriptionLine(ctx context.Context, line *domain.InvoiceSubscription) error {
	return r.db.WithContext(ctx).Save(line).Error
}

func (r *InvoiceRepository) List(ctx context.Context, page, pageSize int, status domain.InvoiceStatus, clientID *uuid.UUID) ([]domain.Invoice, int64, error) {
	var invoices []domain.Invoice
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Invoice{})
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
	err := query.Preload("Client").Preload("Services.Service").Preload("Subscriptions.Plan").
		Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&invoices).Error
	return invoices, total, err
}

// ListOverdueCandidates returns sent or partially paid invoices whose due date
// has passed. The sweeper flips them to overdue.
func (r *InvoiceRepository) ListOverdueCandidates(ctx context.Context, now time.Time) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := r.db.WithContext(ctx).
		Where("status IN ?", []domain.InvoiceStatus{domain.InvoiceStatusSent, domain.InvoiceStatusUnpaid, domain.InvoiceStatusPartiallyPaid}).
		Where("due_date IS NOT NULL AND due_date < ?", now).
		Find(&invoices).Error
	return invoices, err
}

func (r *InvoiceRepository) CountByStatus(ctx context.Context, statuses ...domain.InvoiceStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("status IN ?", statuses).Count(&count).Error
	return count, err
}

func (r *InvoiceRepository) SumOutstanding(ctx context.Context) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("status IN ?", []domain.InvoiceStatus{domain.InvoiceStatusSent, domain.InvoiceStatusUnpaid, domain.InvoiceStatusPartiallyPaid, domain.InvoiceStatusOverdue}).
		Select("COALESCE(SUM(balance_due), 0)").Scan(&total).Error
	return total, err
}
