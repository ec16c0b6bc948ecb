package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/domain"
	"gorm.io/gorm"
)

type QuoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

func (r *QuoteRepository) Create(ctx context.Context, quote *domain.Quote) error {
	return r.db.WithContext(ctx).Create(quote).Error
}

func (r *QuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	var quote domain.Quote
	query := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Services.Service").
		Preload("Subscriptions.Plan").
		Where("id = ?", id)
	query = ApplyClientScope(ctx, query)
	if err := query.First(&quote).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *QuoteRepository) Update(ctx context.Context, quote *domain.Quote) error {
	return r.db.WithContext(ctx).Save(quote).Error
}

func (r *QuoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Quote{}, "id = ?", id).Error
}

// ReplaceLines swaps the quote's line items inside one transaction. Used by
// draft edits where the whole composition is resubmitted.
func (r *QuoteRepository) ReplaceLines(ctx context.Context, quote *domain.Quote, services []domain.QuoteService, subscriptions []domain.QuoteSubscription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quote_id = ?", quote.ID).Delete(&domain.QuoteService{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quote_id = ?", quote.ID).Delete(&domain.QuoteSubscription{}).Error; err != nil {
			return err
		}
		for i := range services {
			services[i].QuoteID = quote.ID
		}
		for i := range subscriptions {
			subscriptions[i].QuoteID = quote.ID
		}
		if len(services) > 0 {
			if err := tx.Create(&services).Error; err != nil {
				return err
			}
		}
		if len(subscriptions) > 0 {
			if err := tx.Create(&subscriptions).Error; err != nil {
				return err
			}
		}
		return tx.Save(quote).Error
	})
}

func (r *QuoteRepository) List(ctx context.Context, page, pageSize int, status domain.QuoteStatus, clientID *uuid.UUID) ([]domain.Quote, int64, error) {
	var quotes []domain.Quote
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Quote{})
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
		Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&quotes).Error
	return quotes, total, err
}

func (r *QuoteRepository) CountByStatus(ctx context.Context, statuses ...domain.QuoteStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Quote{}).
		Where("status IN ?", statuses).Count(&count).Error
	return count, err
}
