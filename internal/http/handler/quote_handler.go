package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/service"
	"go.uber.org/zap"
)

type QuoteHandler struct {
	quoteService *service.QuoteService
	logger       *zap.Logger
}

func NewQuoteHandler(quoteService *service.QuoteService, logger *zap.Logger) *QuoteHandler {
	return &QuoteHandler{
		quoteService: quoteService,
		logger:       logger,
	}
}

func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	status := domain.QuoteStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		respondWithError(w, http.StatusBadRequest, "Invalid quote status")
		return
	}

	result, err := h.quoteService.List(r.Context(), page, pageSize, status, queryUUID(r, "clientId"))
	if err != nil {
		respondServiceError(w, h.logger, err, "list quotes")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *QuoteHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	quote, err := h.quoteService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get quote")
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	quote, err := h.quoteService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create quote")
		return
	}

	w.Header().Set("Location", "/api/v1/quotes/"+quote.ID.String())
	respondJSON(w, http.StatusCreated, quote)
}

// Update replaces a draft quote's notes and line items.
func (h *QuoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.UpdateQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	quote, err := h.quoteService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update quote")
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

// Send assigns the quote number and moves the quote to sent.
func (h *QuoteHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	quote, err := h.quoteService.Send(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "send quote")
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

// Confirm records the client's acceptance of a sent quote.
func (h *QuoteHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	quote, err := h.quoteService.Confirm(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "confirm quote")
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

func (h *QuoteHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.RejectQuoteRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			respondValidationError(w, err)
			return
		}
	}

	quote, err := h.quoteService.Reject(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "reject quote")
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

// Convert bills a signed quote, producing its invoice.
func (h *QuoteHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.quoteService.ConvertToInvoice(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "convert quote")
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// DownloadPDF streams the rendered quote document.
func (h *QuoteHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	data, filename, err := h.quoteService.RenderPDF(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "render quote PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}
