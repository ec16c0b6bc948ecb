package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/domain"
	"gorm.io/gorm"
)

// CatalogRepository handles services, promotional offers, packs and plans
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Services

func (r *CatalogRepository) CreateService(ctx context.Context, service *domain.Service) error {
	return r.db.WithContext(ctx).Create(service).Error
}

func (r *CatalogRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*domain.Service, error) {
	var service domain.Service
	if err := r.db.WithContext(ctx).First(&service, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

func (r *CatalogRepository) UpdateService(ctx context.Context, service *domain.Service) error {
	return r.db.WithContext(ctx).Save(service).Error
}

func (r *CatalogRepository) DeleteService(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Service{}, "id = ?", id).Error
}

func (r *CatalogRepository) ListServices(ctx context.Context, page, pageSize int, search string, activeOnly bool) ([]domain.Service, int64, error) {
	var services []domain.Service
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Service{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("name ASC").Find(&services).Error
	return services, total, err
}

// Promotional offers

func (r *CatalogRepository) CreateOffer(ctx context.Context, offer *domain.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *CatalogRepository) GetOfferByID(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	var offer domain.Offer
	if err := r.db.WithContext(ctx).Preload("Service").First(&offer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *CatalogRepository) UpdateOffer(ctx context.Context, offer *domain.Offer) error {
	return r.db.WithContext(ctx).Save(offer).Error
}

func (r *CatalogRepository) DeleteOffer(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Offer{}, "id = ?", id).Error
}

func (r *CatalogRepository) ListOffers(ctx context.Context, activeOnly bool) ([]domain.Offer, error) {
	var offers []domain.Offer
	query := r.db.WithContext(ctx).Preload("Service").Order("starts_at DESC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Find(&offers).Error
	return offers, err
}

// Packs

func (r *CatalogRepository) CreatePack(ctx context.Context, pack *domain.Pack) error {
	return r.db.WithContext(ctx).Create(pack).Error
}

func (r *CatalogRepository) GetPackByID(ctx context.Context, id uuid.UUID) (*domain.Pack, error) {
	var pack domain.Pack
	if err := r.db.WithContext(ctx).Preload("Services").First(&pack, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pack, nil
}

func (r *CatalogRepository) UpdatePack(ctx context.Context, pack *domain.Pack) error {
	return r.db.WithContext(ctx).Save(pack).Error
}

func (r *CatalogRepository) ReplacePackServices(ctx context.Context, pack *domain.Pack, services []domain.Service) error {
	return r.db.WithContext(ctx).Model(pack).Association("Services").Replace(services)
}

func (r *CatalogRepository) DeletePack(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Pack{}, "id = ?", id).Error
}

func (r *CatalogRepository) ListPacks(ctx context.Context, activeOnly bool) ([]domain.Pack, error) {
	var packs []domain.Pack
	query := r.db.WithContext(ctx).Preload("Services").Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Find(&packs).Error
	return packs, err
}

// Plans

func (r *CatalogRepository) CreatePlan(ctx context.Context, plan *domain.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *CatalogRepository) GetPlanByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	var plan domain.Plan
	err := r.db.WithContext(ctx).Preload("Prices").Preload("Fields").First(&plan, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *CatalogRepository) GetPlanPriceByID(ctx context.Context, id uuid.UUID) (*domain.PlanPrice, error) {
	var price domain.PlanPrice
	if err := r.db.WithContext(ctx).First(&price, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *CatalogRepository) UpdatePlan(ctx context.Context, plan *domain.Plan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

func (r *CatalogRepository) DeletePlan(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Plan{}, "id = ?", id).Error
}

func (r *CatalogRepository) ListPlans(ctx context.Context, activeOnly bool) ([]domain.Plan, error) {
	var plans []domain.Plan
	query := r.db.WithContext(ctx).Preload("Prices").Preload("Fields").Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Find(&plans).Error
	return plans, err
}
