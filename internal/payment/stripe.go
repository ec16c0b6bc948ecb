package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/veloraops/agency-api/internal/config"
	"go.uber.org/zap"
)

var (
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrSessionRejected     = errors.New("payment provider rejected session")
)

// CheckoutSession is the subset of a Stripe checkout session the API uses
type CheckoutSession struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Status     string `json:"status"`
	PaymentRef string `json:"payment_intent"`
}

// CheckoutParams describes the session to open
type CheckoutParams struct {
	// AmountMinor is the charge amount in the currency's minor unit (centimes)
	AmountMinor int64
	Currency    string
	Description string
	// PaymentID is carried through metadata and comes back on the webhook
	PaymentID string
	// CustomerEmail prefills the checkout form
	CustomerEmail string
}

// StripeClient talks to the Stripe REST API over form-encoded HTTP.
type StripeClient struct {
	secretKey  string
	apiBase    string
	successURL string
	cancelURL  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewStripeClient creates a Stripe client from configuration
func NewStripeClient(cfg *config.StripeConfig, logger *zap.Logger) *StripeClient {
	return &StripeClient{
		secretKey:  cfg.SecretKey,
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// CreateCheckoutSession opens a hosted checkout session and returns its
// ID and redirect URL.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.successURL)
	form.Set("cancel_url", c.cancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(params.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.AmountMinor, 10))
	form.Set("line_items[0][price_data][product_data][name]", params.Description)
	form.Set("metadata[payment_id]", params.PaymentID)
	if params.CustomerEmail != "" {
		form.Set("customer_email", params.CustomerEmail)
	}

	body, err := c.post(ctx, "/v1/checkout/sessions", form)
	if err != nil {
		return nil, err
	}

	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	if session.ID == "" || session.URL == "" {
		return nil, ErrSessionRejected
	}

	c.logger.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("payment_id", params.PaymentID),
		zap.Int64("amount_minor", params.AmountMinor),
		zap.String("currency", params.Currency),
	)
	return &session, nil
}

// ExpireSession invalidates a previously opened checkout session. Used when
// a pending payment's percentage changes and the old link must die.
func (c *StripeClient) ExpireSession(ctx context.Context, sessionID string) error {
	_, err := c.post(ctx, "/v1/checkout/sessions/"+url.PathEscape(sessionID)+"/expire", url.Values{})
	return err
}

func (c *StripeClient) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		c.logger.Warn("stripe request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("error_type", apiErr.Error.Type),
			zap.String("error_message", apiErr.Error.Message),
		)
		if resp.StatusCode >= 500 {
			return nil, ErrProviderUnavailable
		}
		return nil, fmt.Errorf("%w: %s", ErrSessionRejected, apiErr.Error.Message)
	}

	return body, nil
}
