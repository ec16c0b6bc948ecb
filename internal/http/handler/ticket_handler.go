package handler

import (
	"encoding/json"
	"net/http"

	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/service"
	"go.uber.org/zap"
)

type TicketHandler struct {
	ticketService *service.TicketService
	logger        *zap.Logger
}

func NewTicketHandler(ticketService *service.TicketService, logger *zap.Logger) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
		logger:        logger,
	}
}

func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	status := domain.TicketStatus(r.URL.Query().Get("status"))
	priority := domain.TicketPriority(r.URL.Query().Get("priority"))

	result, err := h.ticketService.List(r.Context(), page, pageSize, status, priority, queryUUID(r, "clientId"))
	if err != nil {
		respondServiceError(w, h.logger, err, "list tickets")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *TicketHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	ticket, err := h.ticketService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get ticket")
		return
	}
	respondJSON(w, http.StatusOK, ticket)
}

func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	ticket, err := h.ticketService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create ticket")
		return
	}

	w.Header().Set("Location", "/api/v1/tickets/"+ticket.ID.String())
	respondJSON(w, http.StatusCreated, ticket)
}

func (h *TicketHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.UpdateTicketStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	ticket, err := h.ticketService.UpdateStatus(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update ticket status")
		return
	}
	respondJSON(w, http.StatusOK, ticket)
}
