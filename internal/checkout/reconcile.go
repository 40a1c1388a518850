package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/safar/congress-merch/internal/database"
	"github.com/safar/congress-merch/internal/logger"
	"github.com/safar/congress-merch/internal/mercadopago"
	"github.com/safar/congress-merch/internal/models"
	"github.com/safar/congress-merch/internal/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	notificationTypePayment = "payment"
	testPaymentPrefix       = "test_"
)

// amountTolerance is the largest accepted gap between the charged amount and
// the order total.
var amountTolerance = decimal.RequireFromString("0.01")

type PaymentStore interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ApplyPaymentSnapshot(ctx context.Context, orderID string, snap models.PaymentSnapshot) error
	RecordWebhookEvent(ctx context.Context, event models.WebhookEvent) error
}

type PaymentGateway interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// Delivery is one webhook request as received over HTTP.
type Delivery struct {
	Body      []byte
	Query     url.Values
	Signature string
	RequestID string
}

// Result is the acknowledgement sent back to the gateway. Any non-2xx
// status makes the gateway deliver the notification again.
type Result struct {
	Status    int
	Message   string
	Outcome   string
	PaymentID string
	OrderID   string
}

type Reconciler struct {
	store         PaymentStore
	gateway       PaymentGateway
	webhookSecret string
	metrics       *telemetry.Metrics
	tracer        trace.Tracer
}

// NewReconciler builds the webhook reconciler. An empty webhookSecret
// disables signature verification.
func NewReconciler(store PaymentStore, gateway PaymentGateway, webhookSecret string, metrics *telemetry.Metrics) *Reconciler {
	return &Reconciler{
		store:         store,
		gateway:       gateway,
		webhookSecret: webhookSecret,
		metrics:       metrics,
		tracer:        otel.Tracer("checkout"),
	}
}

// Handle applies a payment notification to its order. The notification body
// is trusted for the payment id only; everything else comes from the
// gateway's payment API.
func (r *Reconciler) Handle(ctx context.Context, d Delivery) Result {
	ctx, span := r.tracer.Start(ctx, "checkout.ReconcilePayment")
	defer span.End()

	n, err := parseNotification(d)

	var res Result
	if err != nil {
		logger.FromContext(ctx).Warnf("[WEBHOOK] invalid notification body: %v", err)
		res = Result{Status: http.StatusBadRequest, Message: "Invalid notification body", Outcome: telemetry.OutcomeInvalidBody}
	} else {
		res = r.handle(ctx, d, n)
	}

	span.SetAttributes(
		attribute.String("payment_id", res.PaymentID),
		attribute.String("order_id", res.OrderID),
		attribute.String("outcome", res.Outcome),
		attribute.Int("http.status_code", res.Status),
	)
	if res.Status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, res.Outcome)
	}

	r.metrics.Notification(ctx, res.Outcome)
	r.record(ctx, d, n, res)

	return res
}

func (r *Reconciler) handle(ctx context.Context, d Delivery, n mercadopago.Notification) Result {
	log := logger.FromContext(ctx)

	paymentID := n.Data.ID.String()
	log.Infof("[WEBHOOK] received type=%q action=%q payment=%q", n.Type, n.Action, paymentID)

	if r.webhookSecret != "" {
		if err := mercadopago.VerifySignature(r.webhookSecret, d.Signature, d.RequestID, paymentID); err != nil {
			log.Warnf("[WEBHOOK] rejected signature for payment %q", paymentID)
			return Result{Status: http.StatusUnauthorized, Message: "Invalid signature", Outcome: telemetry.OutcomeBadSignature, PaymentID: paymentID}
		}
	}

	if n.Type != notificationTypePayment {
		log.Infof("[WEBHOOK] ignoring notification type %q", n.Type)
		return Result{Status: http.StatusOK, Message: "OK", Outcome: telemetry.OutcomeIgnoredType}
	}

	if paymentID == "" {
		log.Warnf("[WEBHOOK] notification without payment id")
		return Result{Status: http.StatusBadRequest, Message: "Missing payment ID", Outcome: telemetry.OutcomeMissingID}
	}

	if strings.HasPrefix(paymentID, testPaymentPrefix) {
		log.Infof("[WEBHOOK] ignoring test payment %s", paymentID)
		return Result{Status: http.StatusOK, Message: "OK", Outcome: telemetry.OutcomeTestPayment, PaymentID: paymentID}
	}

	log = log.WithField("payment_id", paymentID)

	payment, err := r.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		var apiErr *mercadopago.APIError
		if errors.As(err, &apiErr) {
			log.Errorf("[WEBHOOK] [ERROR] gateway returned %d fetching payment: %s", apiErr.StatusCode, apiErr.Body)
		} else {
			log.Errorf("[WEBHOOK] [ERROR] fetching payment: %v", err)
		}
		return Result{Status: http.StatusInternalServerError, Message: "Error fetching payment", Outcome: telemetry.OutcomeFetchFailed, PaymentID: paymentID}
	}

	orderID := payment.ExternalReference
	if orderID == "" {
		log.Warnf("[WEBHOOK] payment has no external_reference")
		return Result{Status: http.StatusBadRequest, Message: "Missing external_reference", Outcome: telemetry.OutcomeNoReference, PaymentID: paymentID}
	}

	log = log.WithField("order_id", orderID)

	order, err := r.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			log.Warnf("[WEBHOOK] order not found")
			return Result{Status: http.StatusNotFound, Message: "Order not found", Outcome: telemetry.OutcomeOrderNotFound, PaymentID: paymentID, OrderID: orderID}
		}
		log.Errorf("[WEBHOOK] [ERROR] fetching order: %v", err)
		return Result{Status: http.StatusInternalServerError, Message: "Error fetching order", Outcome: telemetry.OutcomeLookupFailed, PaymentID: paymentID, OrderID: orderID}
	}

	if !AmountMatches(payment.TransactionAmount, order.TotalAmount) {
		log.Errorf("[WEBHOOK] [FRAUD] amount mismatch: payment %s, order total %s",
			payment.TransactionAmount.StringFixed(2), order.TotalAmount.StringFixed(2))
		return Result{Status: http.StatusBadRequest, Message: "Amount mismatch", Outcome: telemetry.OutcomeAmountMismatch, PaymentID: paymentID, OrderID: orderID}
	}

	snap := Snapshot(payment)
	if snap.PaymentID == "" {
		snap.PaymentID = paymentID
	}
	if snap.Status == "" {
		log.Warnf("[WEBHOOK] unmapped payment status %q, keeping order status %s", payment.Status, order.Status)
	}

	if err := r.store.ApplyPaymentSnapshot(ctx, orderID, snap); err != nil {
		log.Errorf("[WEBHOOK] [ERROR] updating order: %v", err)
		return Result{Status: http.StatusInternalServerError, Message: "Error updating order", Outcome: telemetry.OutcomeUpdateFailed, PaymentID: paymentID, OrderID: orderID}
	}

	log.Infof("[WEBHOOK] order updated: payment status %q, order status %q", payment.Status, effectiveStatus(snap.Status, order.Status))
	return Result{Status: http.StatusOK, Message: "OK", Outcome: telemetry.OutcomeApplied, PaymentID: paymentID, OrderID: orderID}
}

func (r *Reconciler) record(ctx context.Context, d Delivery, n mercadopago.Notification, res Result) {
	event := models.WebhookEvent{
		RequestID:  logger.RequestID(ctx),
		Type:       n.Type,
		Action:     n.Action,
		PaymentID:  res.PaymentID,
		Outcome:    res.Outcome,
		HTTPStatus: res.Status,
		Payload:    d.Body,
	}
	if event.RequestID == "" {
		event.RequestID = d.RequestID
	}

	if err := r.store.RecordWebhookEvent(ctx, event); err != nil {
		logger.FromContext(ctx).Warnf("[WEBHOOK] could not record event: %v", err)
	}
}

// parseNotification decodes the body and falls back to the query string of
// the legacy notification format for whatever the body leaves out.
func parseNotification(d Delivery) (mercadopago.Notification, error) {
	var n mercadopago.Notification
	if len(strings.TrimSpace(string(d.Body))) > 0 {
		if err := json.Unmarshal(d.Body, &n); err != nil {
			return n, err
		}
	}

	if n.Type == "" {
		n.Type = firstNonEmpty(d.Query.Get("type"), d.Query.Get("topic"))
	}
	if n.Data.ID == "" {
		n.Data.ID = mercadopago.ID(firstNonEmpty(d.Query.Get("data.id"), d.Query.Get("id")))
	}

	return n, nil
}

// AmountMatches reports whether the charged amount equals the order total
// within one cent.
func AmountMatches(charged, total decimal.Decimal) bool {
	return charged.Sub(total).Abs().LessThanOrEqual(amountTolerance)
}

// Snapshot converts a gateway payment into the order mirror written by the
// reconciler.
func Snapshot(p *mercadopago.Payment) models.PaymentSnapshot {
	status, _ := mercadopago.OrderStatus(p.Status)

	return models.PaymentSnapshot{
		Status:            status,
		PaymentID:         p.ID.String(),
		GatewayStatus:     p.Status,
		StatusDetail:      p.StatusDetail,
		TransactionAmount: p.TransactionAmount,
		CurrencyID:        p.CurrencyID,
		PaymentMethodID:   p.PaymentMethodID,
		PaymentTypeID:     p.PaymentTypeID,
		DateCreated:       p.DateCreated,
		DateApproved:      p.DateApproved,
		ExternalReference: p.ExternalReference,
		CollectorID:       p.CollectorID.String(),
		OperationType:     p.OperationType,
		Installments:      p.Installments,
		CardLastFour:      p.Card.LastFourDigits,
		CardFirstSix:      p.Card.FirstSixDigits,
		FeeAmount:         p.TotalFee(),
		NetAmount:         p.NetAmount(),
		Raw:               p.Raw,
	}
}

func effectiveStatus(next, current string) string {
	if next == "" {
		return current
	}
	return next
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
