package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/domain"
	"gorm.io/gorm"
)

type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, client *domain.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *ClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	var client domain.Client
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplyClientScopeWithColumn(ctx, query, "id")
	if err := query.First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *ClientRepository) GetByEmail(ctx context.Context, email string) (*domain.Client, error) {
	var client domain.Client
	err := r.db.WithContext(ctx).
		First(&client, "LOWER(email) = ?", strings.ToLower(email)).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *ClientRepository) Update(ctx context.Context, client *domain.Client) error {
	return r.db.WithContext(ctx).Save(client).Error
}

func (r *ClientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Client{}, "id = ?", id).Error
}

func (r *ClientRepository) List(ctx context.Context, page, pageSize int, search string) ([]domain.Client, int64, error) {
	var clients []domain.Client
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Client{})
	query = ApplyClientScopeWithColumn(ctx, query, "id")

	if search != "" {
		searchPattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(company_name) LIKE ? OR LOWER(email) LIKE ?",
			searchPattern, searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&clients).Error

	return clients, total, err
}

func (r *ClientRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Client{}).Count(&count).Error
	return count, err
}

// Stats aggregates billing counters for one client
func (r *ClientRepository) Stats(ctx context.Context, clientID uuid.UUID) (*domain.ClientStatsDTO, error) {
	stats := &domain.ClientStatsDTO{}
	db := r.db.WithContext(ctx)

	var quoteCount, invoiceCount, subCount, ticketCount int64
	if err := db.Model(&domain.Quote{}).Where("client_id = ?", clientID).Count(&quoteCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&domain.Invoice{}).Where("client_id = ?", clientID).Count(&invoiceCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&domain.Subscription{}).
		Where("client_id = ? AND status IN ?", clientID,
			[]domain.SubscriptionStatus{domain.SubscriptionStatusTrial, domain.SubscriptionStatusActive}).
		Count(&subCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&domain.Ticket{}).
		Where("client_id = ? AND status IN ?", clientID,
			[]domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusPending}).
		Count(&ticketCount).Error; err != nil {
		return nil, err
	}

	type sums struct {
		Invoiced    float64
		Outstanding float64
	}
	var s sums
	err := db.Model(&domain.Invoice{}).
		Select("COALESCE(SUM(total_amount),0) AS invoiced, COALESCE(SUM(balance_due),0) AS outstanding").
		Where("client_id = ?", clientID).
		Scan(&s).Error
	if err != nil {
		return nil, err
	}

	stats.QuoteCount = int(quoteCount)
	stats.InvoiceCount = int(invoiceCount)
	stats.ActiveSubscriptions = int(subCount)
	stats.OpenTickets = int(ticketCount)
	stats.TotalInvoiced = s.Invoiced
	stats.TotalOutstanding = s.Outstanding
	return stats, nil
}
