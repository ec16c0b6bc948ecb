package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/mapper"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CatalogService manages the sellable catalog: services, promotional offers,
// packs and subscription plans.
type CatalogService struct {
	catalogRepo *repository.CatalogRepository
	logger      *zap.Logger
}

func NewCatalogService(
	catalogRepo *repository.CatalogRepository,
	logger *zap.Logger,
) *CatalogService {
	return &CatalogService{
		catalogRepo: catalogRepo,
		logger:      logger,
	}
}

// Services

func (s *CatalogService) CreateService(ctx context.Context, req *domain.CreateServiceRequest) (*domain.ServiceDTO, error) {
	svc := &domain.Service{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		TaxRate:     req.TaxRate,
		HasProjects: req.HasProjects,
		IsActive:    true,
	}
	if len(req.TaskSteps) > 0 {
		steps, err := json.Marshal(req.TaskSteps)
		if err != nil {
			return nil, fmt.Errorf("failed to encode task steps: %w", err)
		}
		svc.TaskSteps = datatypes.JSON(steps)
	}

	if err := s.catalogRepo.CreateService(ctx, svc); err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	dto := mapper.ToServiceDTO(svc)
	return &dto, nil
}

func (s *CatalogService) GetService(ctx context.Context, id uuid.UUID) (*domain.ServiceDTO, error) {
	svc, err := s.catalogRepo.GetServiceByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}

	dto := mapper.ToServiceDTO(svc)
	return &dto, nil
}

func (s *CatalogService) UpdateService(ctx context.Context, id uuid.UUID, req *domain.UpdateServiceRequest) (*domain.ServiceDTO, error) {
	svc, err := s.catalogRepo.GetServiceByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}

	svc.Name = req.Name
	svc.Description = req.Description
	svc.Price = req.Price
	svc.TaxRate = req.TaxRate
	svc.HasProjects = req.HasProjects
	if req.IsActive != nil {
		svc.IsActive = *req.IsActive
	}
	if req.TaskSteps != nil {
		steps, err := json.Marshal(req.TaskSteps)
		if err != nil {
			return nil, fmt.Errorf("failed to encode task steps: %w", err)
		}
		svc.TaskSteps = datatypes.JSON(steps)
	}

	if err := s.catalogRepo.UpdateService(ctx, svc); err != nil {
		return nil, fmt.Errorf("failed to update service: %w", err)
	}

	dto := mapper.ToServiceDTO(svc)
	return &dto, nil
}

func (s *CatalogService) DeleteService(ctx context.Context, id uuid.UUID) error {
	if err := s.catalogRepo.DeleteService(ctx, id); err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	return nil
}

func (s *CatalogService) ListServices(ctx context.Context, page, pageSize int, search string, activeOnly bool) (*domain.PaginatedResponse, error) {
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > repository.MaxPageSize {
		pageSize = repository.MaxPageSize
	}
	if page < 1 {
		page = 1
	}

	services, total, err := s.catalogRepo.ListServices(ctx, page, pageSize, search, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	dtos := make([]domain.ServiceDTO, len(services))
	for i := range services {
		dtos[i] = mapper.ToServiceDTO(&services[i])
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// EffectivePrice returns the price a quote line should use right now: the
// lowest active promotional price inside its window, or the list price.
func (s *CatalogService) EffectivePrice(ctx context.Context, svc *domain.Service) float64 {
	offers, err := s.catalogRepo.ListOffers(ctx, true)
	if err != nil {
		s.logger.Warn("failed to check promotional offers",
			zap.String("service_id", svc.ID.String()),
			zap.Error(err))
		return svc.Price
	}

	now := time.Now()
	price := svc.Price
	for i := range offers {
		if offers[i].ServiceID != svc.ID {
			continue
		}
		if offers[i].StartsAt.After(now) {
			continue
		}
		if offers[i].EndsAt != nil && offers[i].EndsAt.Before(now) {
			continue
		}
		if offers[i].DiscountPrice < price {
			price = offers[i].DiscountPrice
		}
	}
	return price
}

// Promotional offers

func (s *CatalogService) CreateOffer(ctx context.Context, req *domain.CreateOfferRequest) (*domain.OfferDTO, error) {
	svc, err := s.catalogRepo.GetServiceByID(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: service not found", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	if req.EndsAt != nil && !req.EndsAt.After(req.StartsAt) {
		return nil, fmt.Errorf("%w: offer window ends before it starts", ErrInvalidInput)
	}

	offer := &domain.Offer{
		ServiceID:     svc.ID,
		Service:       svc,
		Title:         req.Title,
		DiscountPrice: req.DiscountPrice,
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		IsActive:      true,
	}

	if err := s.catalogRepo.CreateOffer(ctx, offer); err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}

	dto := mapper.ToOfferDTO(offer)
	return &dto, nil
}

func (s *CatalogService) DeleteOffer(ctx context.Context, id uuid.UUID) error {
	if err := s.catalogRepo.DeleteOffer(ctx, id); err != nil {
		return fmt.Errorf("failed to delete offer: %w", err)
	}
	return nil
}

func (s *CatalogService) ListOffers(ctx context.Context, activeOnly bool) ([]domain.OfferDTO, error) {
	offers, err := s.catalogRepo.ListOffers(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}

	dtos := make([]domain.OfferDTO, len(offers))
	for i := range offers {
		dtos[i] = mapper.ToOfferDTO(&offers[i])
	}
	return dtos, nil
}

// Packs

func (s *CatalogService) CreatePack(ctx context.Context, req *domain.CreatePackRequest) (*domain.PackDTO, error) {
	services := make([]domain.Service, 0, len(req.ServiceIDs))
	for _, serviceID := range req.ServiceIDs {
		svc, err := s.catalogRepo.GetServiceByID(ctx, serviceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: service %s not found", ErrInvalidInput, serviceID)
			}
			return nil, fmt.Errorf("failed to get service: %w", err)
		}
		services = append(services, *svc)
	}

	pack := &domain.Pack{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Services:    services,
		IsActive:    true,
	}

	if err := s.catalogRepo.CreatePack(ctx, pack); err != nil {
		return nil, fmt.Errorf("failed to create pack: %w", err)
	}

	dto := mapper.ToPackDTO(pack)
	return &dto, nil
}

func (s *CatalogService) GetPack(ctx context.Context, id uuid.UUID) (*domain.PackDTO, error) {
	pack, err := s.catalogRepo.GetPackByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pack: %w", err)
	}

	dto := mapper.ToPackDTO(pack)
	return &dto, nil
}

func (s *CatalogService) DeletePack(ctx context.Context, id uuid.UUID) error {
	if err := s.catalogRepo.DeletePack(ctx, id); err != nil {
		return fmt.Errorf("failed to delete pack: %w", err)
	}
	return nil
}

func (s *CatalogService) ListPacks(ctx context.Context, activeOnly bool) ([]domain.PackDTO, error) {
	packs, err := s.catalogRepo.ListPacks(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list packs: %w", err)
	}

	dtos := make([]domain.PackDTO, len(packs))
	for i := range packs {
		dtos[i] = mapper.ToPackDTO(&packs[i])
	}
	return dtos, nil
}

// Plans

func (s *CatalogService) CreatePlan(ctx context.Context, req *domain.CreatePlanRequest) (*domain.PlanDTO, error) {
	plan := &domain.Plan{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	for _, price := range req.Prices {
		if !price.Cycle.IsValid() {
			return nil, fmt.Errorf("%w: unknown billing cycle %q", ErrInvalidInput, price.Cycle)
		}
		currency := price.Currency
		if currency == "" {
			currency = "MAD"
		}
		plan.Prices = append(plan.Prices, domain.PlanPrice{
			Cycle:    price.Cycle,
			Amount:   price.Amount,
			Currency: currency,
			IsActive: true,
		})
	}
	for _, field := range req.Fields {
		if !field.Kind.IsValid() {
			return nil, fmt.Errorf("%w: unknown field kind %q", ErrInvalidInput, field.Kind)
		}
		plan.Fields = append(plan.Fields, domain.PlanField{
			Name:    field.Name,
			Kind:    field.Kind,
			Default: datatypes.JSON(field.Default),
		})
	}

	if err := s.catalogRepo.CreatePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	dto := mapper.ToPlanDTO(plan)
	return &dto, nil
}

func (s *CatalogService) GetPlan(ctx context.Context, id uuid.UUID) (*domain.PlanDTO, error) {
	plan, err := s.catalogRepo.GetPlanByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	dto := mapper.ToPlanDTO(plan)
	return &dto, nil
}

func (s *CatalogService) DeletePlan(ctx context.Context, id uuid.UUID) error {
	if err := s.catalogRepo.DeletePlan(ctx, id); err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return nil
}

func (s *CatalogService) ListPlans(ctx context.Context, activeOnly bool) ([]domain.PlanDTO, error) {
	plans, err := s.catalogRepo.ListPlans(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	dtos := make([]domain.PlanDTO, len(plans))
	for i := range plans {
		dtos[i] = mapper.ToPlanDTO(&plans[i])
	}
	return dtos, nil
}
