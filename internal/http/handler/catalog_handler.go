package handler

import (
	"encoding/json"
	"net/http"

	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/service"
	"go.uber.org/zap"
)

// CatalogHandler serves the sellable catalog: services, promotional offers,
// packs and subscription plans.
type CatalogHandler struct {
	catalogService *service.CatalogService
	logger         *zap.Logger
}

func NewCatalogHandler(catalogService *service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

func activeOnly(r *http.Request) bool {
	return r.URL.Query().Get("activeOnly") == "true"
}

// Services

func (h *CatalogHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	result, err := h.catalogService.ListServices(r.Context(), page, pageSize, r.URL.Query().Get("search"), activeOnly(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list services")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *CatalogHandler) GetService(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	svc, err := h.catalogService.GetService(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get service")
		return
	}
	respondJSON(w, http.StatusOK, svc)
}

func (h *CatalogHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	svc, err := h.catalogService.CreateService(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create service")
		return
	}
	respondJSON(w, http.StatusCreated, svc)
}

func (h *CatalogHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.UpdateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	svc, err := h.catalogService.UpdateService(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update service")
		return
	}
	respondJSON(w, http.StatusOK, svc)
}

func (h *CatalogHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.catalogService.DeleteService(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete service")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Offers

func (h *CatalogHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.catalogService.ListOffers(r.Context(), activeOnly(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list offers")
		return
	}
	respondJSON(w, http.StatusOK, offers)
}

func (h *CatalogHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	offer, err := h.catalogService.CreateOffer(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create offer")
		return
	}
	respondJSON(w, http.StatusCreated, offer)
}

func (h *CatalogHandler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.catalogService.DeleteOffer(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete offer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Packs

func (h *CatalogHandler) ListPacks(w http.ResponseWriter, r *http.Request) {
	packs, err := h.catalogService.ListPacks(r.Context(), activeOnly(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list packs")
		return
	}
	respondJSON(w, http.StatusOK, packs)
}

func (h *CatalogHandler) GetPack(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	pack, err := h.catalogService.GetPack(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get pack")
		return
	}
	respondJSON(w, http.StatusOK, pack)
}

func (h *CatalogHandler) CreatePack(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	pack, err := h.catalogService.CreatePack(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create pack")
		return
	}
	respondJSON(w, http.StatusCreated, pack)
}

func (h *CatalogHandler) DeletePack(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.catalogService.DeletePack(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete pack")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Plans

func (h *CatalogHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.catalogService.ListPlans(r.Context(), activeOnly(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list plans")
		return
	}
	respondJSON(w, http.StatusOK, plans)
}

func (h *CatalogHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	plan, err := h.catalogService.GetPlan(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get plan")
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (h *CatalogHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	plan, err := h.catalogService.CreatePlan(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create plan")
		return
	}
	respondJSON(w, http.StatusCreated, plan)
}

func (h *CatalogHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.catalogService.DeletePlan(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete plan")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
