package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/config"
	"github.com/veloraops/agency-api/internal/payment"
	"github.com/veloraops/agency-api/internal/service"
	"go.uber.org/zap"
)

// WebhookHandler receives Stripe events. Signature verification happens on
// the raw body before anything is decoded; a bad signature produces a 400
// with no side effects. Delivery is at-least-once, so every branch tolerates
// replays.
type WebhookHandler struct {
	settlement *service.SettlementService
	secret     string
	logger     *zap.Logger
}

func NewWebhookHandler(settlement *service.SettlementService, cfg *config.StripeConfig, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		settlement: settlement,
		secret:     cfg.WebhookSecret,
		logger:     logger,
	}
}

const maxWebhookBody = 1 << 20

func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Unreadable payload")
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if err := payment.VerifySignature(body, sig, h.secret, time.Now()); err != nil {
		h.logger.Warn("webhook signature rejected",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	event, err := payment.ParseEvent(body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed event")
		return
	}

	h.logger.Info("webhook event received",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type))

	switch event.Type {
	case "checkout.session.completed":
		session, err := event.ParseSession()
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Malformed session object")
			return
		}
		if err := h.settlement.ApplyBySession(r.Context(), session.ID); err != nil {
			h.respondSettlementError(w, err, event)
			return
		}

	case "checkout.session.expired":
		session, err := event.ParseSession()
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Malformed session object")
			return
		}
		if err := h.settlement.FailBySession(r.Context(), session.ID); err != nil {
			h.respondSettlementError(w, err, event)
			return
		}

	case "payment_intent.payment_failed":
		// Payment intents carry our payment id in metadata, not a session id
		session, err := event.ParseSession()
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Malformed event object")
			return
		}
		paymentID, err := uuid.Parse(session.Metadata.PaymentID)
		if err != nil {
			h.logger.Warn("failure event without payment metadata", zap.String("event_id", event.ID))
			break
		}
		if err := h.settlement.Fail(r.Context(), paymentID); err != nil {
			h.respondSettlementError(w, err, event)
			return
		}

	default:
		// Unhandled event types are acked so Stripe stops retrying them
		h.logger.Debug("ignoring webhook event", zap.String("event_type", event.Type))
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) respondSettlementError(w http.ResponseWriter, err error, event *payment.Event) {
	if errors.Is(err, service.ErrNotFound) {
		// Unknown session: likely created against another environment. Ack so
		// the provider stops retrying.
		h.logger.Warn("webhook references unknown payment", zap.String("event_id", event.ID))
		w.WriteHeader(http.StatusOK)
		return
	}

	h.logger.Error("webhook processing failed",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, "Event processing failed")
}
