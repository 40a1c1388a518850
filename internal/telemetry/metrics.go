package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Webhook outcomes recorded on checkout.webhook.notifications.
const (
	OutcomeApplied          = "applied"
	OutcomeIgnoredType      = "ignored_type"
	OutcomeTestPayment      = "test_payment"
	OutcomeMissingID        = "missing_payment_id"
	OutcomeInvalidBody      = "invalid_body"
	OutcomeBadSignature     = "bad_signature"
	OutcomeFetchFailed      = "fetch_failed"
	OutcomeNoReference      = "missing_external_reference"
	OutcomeOrderNotFound    = "order_not_found"
	OutcomeAmountMismatch   = "amount_mismatch"
	OutcomeUpdateFailed     = "update_failed"
	OutcomeLookupFailed     = "lookup_failed"
	OutcomeMethodNotAllowed = "method_not_allowed"
)

type Metrics struct {
	notifications metric.Int64Counter
	preferences   metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	notifications, err := meter.Int64Counter("checkout.webhook.notifications",
		metric.WithDescription("Payment notifications received, by outcome"))
	if err != nil {
		return nil, err
	}

	preferences, err := meter.Int64Counter("checkout.preferences.created",
		metric.WithDescription("Checkout preferences created at the payment gateway"))
	if err != nil {
		return nil, err
	}

	return &Metrics{notifications: notifications, preferences: preferences}, nil
}

func (m *Metrics) Notification(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) PreferenceCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.preferences.Add(ctx, 1)
}
