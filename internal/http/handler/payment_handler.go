package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/service"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
	logger         *zap.Logger
}

func NewPaymentHandler(paymentService *service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	status := domain.PaymentStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		respondWithError(w, http.StatusBadRequest, "Invalid payment status")
		return
	}

	result, err := h.paymentService.List(r.Context(), page, pageSize, status, queryUUID(r, "invoiceId"))
	if err != nil {
		respondServiceError(w, h.logger, err, "list payments")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *PaymentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	pay, err := h.paymentService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get payment")
		return
	}
	respondJSON(w, http.StatusOK, pay)
}

// Update changes the collected share of a pending payment.
func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.UpdatePendingPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	pay, err := h.paymentService.UpdatePending(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update payment")
		return
	}
	respondJSON(w, http.StatusOK, pay)
}

// Settle records an out-of-band settlement confirmed by the back office.
func (h *PaymentHandler) Settle(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.SettlePaymentRequest
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

	pay, err := h.paymentService.Settle(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "settle payment")
		return
	}
	respondJSON(w, http.StatusOK, pay)
}

// Refund reverses a settled payment on the books.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	pay, err := h.paymentService.Refund(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "refund payment")
		return
	}
	respondJSON(w, http.StatusOK, pay)
}

// DownloadReceipt streams the receipt for a settled payment.
func (h *PaymentHandler) DownloadReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	data, filename, err := h.paymentService.RenderReceipt(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "render receipt")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}
