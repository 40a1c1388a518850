package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/safar/congress-merch/internal/config"
)

// APIError is a non-2xx gateway response. Body is kept for logs and never
// returned to callers of this service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago: api returned status %d", e.StatusCode)
}

type Client struct {
	http *resty.Client
}

func NewClient(cfg config.MercadoPagoConfig) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.AccessToken).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: http}
}

// CreatePreference opens a checkout session. The idempotency key lets the
// gateway collapse repeated calls for the same order.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest, idempotencyKey string) (*Preference, error) {
	var pref Preference

	r := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&pref)
	if idempotencyKey != "" {
		r.SetHeader("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := r.Post("/checkout/preferences")
	if err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return &pref, nil
}

// GetPayment fetches the authoritative payment record.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", paymentID).
		Get("/v1/payments/{id}")
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", paymentID, err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var payment Payment
	if err := json.Unmarshal(resp.Body(), &payment); err != nil {
		return nil, fmt.Errorf("decode payment %s: %w", paymentID, err)
	}
	payment.Raw = json.RawMessage(resp.Body())

	return &payment, nil
}
