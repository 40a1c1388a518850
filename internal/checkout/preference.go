package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/congress-merch/internal/database"
	"github.com/safar/congress-merch/internal/logger"
	"github.com/safar/congress-merch/internal/mercadopago"
	"github.com/safar/congress-merch/internal/models"
	"github.com/safar/congress-merch/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	currencyBRL      = "BRL"
	defaultPayerName = "Cliente"

	registrationItemID    = "inscricao"
	registrationItemTitle = "Inscrição"
)

type PreferenceStore interface {
	GetPendingOrderWithBuyer(ctx context.Context, id string) (*models.OrderWithBuyer, error)
	GetLineItems(ctx context.Context, orderID string) ([]models.LineItem, error)
	SetPreferenceID(ctx context.Context, orderID, preferenceID string) error
}

type PreferenceGateway interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest, idempotencyKey string) (*mercadopago.Preference, error)
}

// PreferenceSettings are the URLs and labels every preference carries.
// BackURL is used for success, pending and failure alike since the final
// status arrives through the webhook.
type PreferenceSettings struct {
	NotificationURL     string
	BackURL             string
	StatementDescriptor string
}

type PreferenceBuilder struct {
	store    PreferenceStore
	gateway  PreferenceGateway
	settings PreferenceSettings
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
}

func NewPreferenceBuilder(store PreferenceStore, gateway PreferenceGateway, settings PreferenceSettings, metrics *telemetry.Metrics) *PreferenceBuilder {
	return &PreferenceBuilder{
		store:    store,
		gateway:  gateway,
		settings: settings,
		metrics:  metrics,
		tracer:   otel.Tracer("checkout"),
	}
}

// Build opens a gateway checkout session for a pending order and records
// the preference id on it.
func (b *PreferenceBuilder) Build(ctx context.Context, orderID string) (*mercadopago.Preference, error) {
	if orderID == "" {
		return nil, ErrMissingOrderID
	}

	ctx, span := b.tracer.Start(ctx, "checkout.BuildPreference",
		trace.WithAttributes(attribute.String("order_id", orderID)))
	defer span.End()

	log := logger.FromContext(ctx).WithField("order_id", orderID)

	order, err := b.store.GetPendingOrderWithBuyer(ctx, orderID)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			log.Warnf("[PREFERENCE] order not found or not pending")
			span.SetStatus(codes.Error, "order not pending")
			return nil, ErrOrderNotPending
		}
		log.Errorf("[PREFERENCE] [ERROR] fetching order: %v", err)
		span.RecordError(err)
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}

	items, err := b.store.GetLineItems(ctx, orderID)
	if err != nil {
		log.Errorf("[PREFERENCE] [ERROR] fetching items: %v", err)
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrItemsFetch, err)
	}

	req := BuildPreferenceRequest(order, items, b.settings)

	pref, err := b.gateway.CreatePreference(ctx, req, orderID)
	if err != nil {
		var apiErr *mercadopago.APIError
		if errors.As(err, &apiErr) {
			log.Errorf("[PREFERENCE] [ERROR] gateway returned %d: %s", apiErr.StatusCode, apiErr.Body)
		} else {
			log.Errorf("[PREFERENCE] [ERROR] calling gateway: %v", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway error")
		return nil, fmt.Errorf("%w: %w", ErrPreferenceCreate, err)
	}

	if err := b.store.SetPreferenceID(ctx, orderID, pref.ID); err != nil {
		log.Errorf("[PREFERENCE] [ERROR] saving preference %s: %v", pref.ID, err)
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrPreferencePersist, err)
	}

	b.metrics.PreferenceCreated(ctx)
	span.SetAttributes(attribute.String("preference_id", pref.ID))
	log.Infof("[PREFERENCE] created preference %s with %d item(s)", pref.ID, len(req.Items))

	return pref, nil
}

// BuildPreferenceRequest translates an order into the gateway payload. An
// order without line items is charged as a single registration item for its
// declared total.
func BuildPreferenceRequest(order *models.OrderWithBuyer, items []models.LineItem, settings PreferenceSettings) mercadopago.PreferenceRequest {
	name, surname := splitName(order.BuyerName)

	prefItems := make([]mercadopago.PreferenceItem, 0, len(items))
	for _, item := range items {
		prefItems = append(prefItems, mercadopago.PreferenceItem{
			ID:          item.ID,
			Title:       "Camiseta - Tamanho " + item.Size,
			Description: "Camiseta oficial do congresso, tamanho " + item.Size,
			CategoryID:  "fashion",
			Quantity:    item.Quantity,
			CurrencyID:  currencyBRL,
			UnitPrice:   mercadopago.Amount(item.UnitPrice),
		})
	}

	if len(prefItems) == 0 {
		prefItems = append(prefItems, mercadopago.PreferenceItem{
			ID:          registrationItemID,
			Title:       registrationItemTitle,
			Description: "Inscrição no congresso",
			CategoryID:  "services",
			Quantity:    1,
			CurrencyID:  currencyBRL,
			UnitPrice:   mercadopago.Amount(order.TotalAmount),
		})
	}

	return mercadopago.PreferenceRequest{
		Items: prefItems,
		Payer: mercadopago.Payer{
			Name:    name,
			Surname: surname,
			Email:   order.BuyerEmail,
		},
		BackURLs: mercadopago.BackURLs{
			Success: settings.BackURL,
			Pending: settings.BackURL,
			Failure: settings.BackURL,
		},
		AutoReturn:          "approved",
		NotificationURL:     settings.NotificationURL,
		ExternalReference:   order.ID,
		StatementDescriptor: settings.StatementDescriptor,
	}
}

func splitName(full string) (name, surname string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return defaultPayerName, defaultPayerName
	}

	name = parts[0]
	surname = strings.Join(parts[1:], " ")
	if surname == "" {
		surname = defaultPayerName
	}
	return name, surname
}
