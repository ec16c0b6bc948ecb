package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/service"
	"go.uber.org/zap"
)

type InvoiceHandler struct {
	invoiceService *service.InvoiceService
	paymentService *service.PaymentService
	logger         *zap.Logger
}

func NewInvoiceHandler(invoiceService *service.InvoiceService, paymentService *service.PaymentService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		paymentService: paymentService,
		logger:         logger,
	}
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	status := domain.InvoiceStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		respondWithError(w, http.StatusBadRequest, "Invalid invoice status")
		return
	}

	result, err := h.invoiceService.List(r.Context(), page, pageSize, status, queryUUID(r, "clientId"))
	if err != nil {
		respondServiceError(w, h.logger, err, "list invoices")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *InvoiceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get invoice")
		return
	}
	respondJSON(w, http.StatusOK, invoice)
}

// Create composes an invoice directly, without a source quote.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	invoice, err := h.invoiceService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create invoice")
		return
	}

	w.Header().Set("Location", "/api/v1/invoices/"+invoice.ID.String())
	respondJSON(w, http.StatusCreated, invoice)
}

// Send emails the invoice PDF to the client.
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.SendByEmail(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "send invoice")
		return
	}
	respondJSON(w, http.StatusOK, invoice)
}

// DownloadPDF streams the rendered invoice document.
func (h *InvoiceHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	data, filename, err := h.invoiceService.RenderPDF(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "render invoice PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}

// CreatePaymentLink opens a collection attempt for a share of the invoice.
func (h *InvoiceHandler) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.CreatePaymentLinkRequest
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

	pay, err := h.paymentService.CreatePaymentLink(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create payment link")
		return
	}
	respondJSON(w, http.StatusCreated, pay)
}
