package handler

import (
	"encoding/json"
	"net/http"

	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/service"
	"go.uber.org/zap"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
	logger              *zap.Logger
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		logger:              logger,
	}
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	status := domain.SubscriptionStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		respondWithError(w, http.StatusBadRequest, "Invalid subscription status")
		return
	}

	result, err := h.subscriptionService.List(r.Context(), page, pageSize, status, queryUUID(r, "clientId"))
	if err != nil {
		respondServiceError(w, h.logger, err, "list subscriptions")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *SubscriptionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	sub, err := h.subscriptionService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get subscription")
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	sub, err := h.subscriptionService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create subscription")
		return
	}

	w.Header().Set("Location", "/api/v1/subscriptions/"+sub.ID.String())
	respondJSON(w, http.StatusCreated, sub)
}

func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.CancelSubscriptionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	sub, err := h.subscriptionService.Cancel(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "cancel subscription")
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

// ChangePlan swaps the subscription to another plan or billing option.
func (h *SubscriptionHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.ChangePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	sub, err := h.subscriptionService.ChangePlan(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "change plan")
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

// SetFieldValue writes one typed custom field value.
func (h *SubscriptionHandler) SetFieldValue(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.SetFieldValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	sub, err := h.subscriptionService.SetFieldValue(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "set field value")
		return
	}
	respondJSON(w, http.StatusOK, sub)
}
