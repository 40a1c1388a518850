package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/safar/congress-merch/internal/database"
	"github.com/safar/congress-merch/internal/logger"
	"github.com/safar/congress-merch/internal/mercadopago"
	"github.com/safar/congress-merch/internal/models"
	"github.com/safar/congress-merch/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type OrderWriter interface {
	CreateOrder(ctx context.Context, req store.CreateOrderRequest) (*models.Order, error)
	CreateLineItems(ctx context.Context, orderID string, items []store.LineItemRequest) ([]models.LineItem, error)
	CreateGroupOrder(ctx context.Context, req store.GroupOrderRequest) (*models.Order, error)
	DeletePendingOrder(ctx context.Context, userID, orderID string) error
}

type PreferenceCreator interface {
	Build(ctx context.Context, orderID string) (*mercadopago.Preference, error)
}

type IndividualOrderInput struct {
	UserID string
	Notes  string
	Items  []store.LineItemRequest
}

type GroupOrderInput struct {
	UserID string
	Notes  string
	Items  []store.LineItemRequest
}

// Checkout is what the storefront needs to send the buyer to the gateway.
type Checkout struct {
	OrderID      string `json:"order_id"`
	PreferenceID string `json:"preference_id"`
	CheckoutURL  string `json:"checkout_url"`
}

// OrderService creates orders and hands them straight to the preference
// builder.
type OrderService struct {
	orders      OrderWriter
	preferences PreferenceCreator
	sandbox     bool
	tracer      trace.Tracer
}

// NewOrderService wires the orchestrator. With sandbox set, checkout URLs
// point at the gateway's sandbox init point.
func NewOrderService(orders OrderWriter, preferences PreferenceCreator, sandbox bool) *OrderService {
	return &OrderService{
		orders:      orders,
		preferences: preferences,
		sandbox:     sandbox,
		tracer:      otel.Tracer("checkout"),
	}
}

// CreateIndividualOrder inserts the order and then its line items. When the
// items cannot be written the bare order is removed again.
func (s *OrderService) CreateIndividualOrder(ctx context.Context, in IndividualOrderInput) (*Checkout, error) {
	if in.UserID == "" {
		return nil, ErrSessionExpired
	}
	if err := store.ValidateItems(in.Items, false); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}

	ctx, span := s.tracer.Start(ctx, "checkout.CreateIndividualOrder")
	defer span.End()

	log := logger.FromContext(ctx).WithField("user_id", in.UserID)

	order, err := s.orders.CreateOrder(ctx, store.CreateOrderRequest{
		UserID:      in.UserID,
		Kind:        models.OrderKindIndividual,
		TotalAmount: store.OrderTotal(in.Items),
		Notes:       in.Notes,
	})
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrSessionExpired
		}
		log.Errorf("[ORDER] [ERROR] creating order: %v", err)
		return nil, fmt.Errorf("create order: %w", err)
	}
	span.SetAttributes(attribute.String("order_id", order.ID))

	if _, err := s.orders.CreateLineItems(ctx, order.ID, in.Items); err != nil {
		log.Errorf("[ORDER] [ERROR] creating items for order %s: %v", order.ID, err)
		if delErr := s.orders.DeletePendingOrder(ctx, in.UserID, order.ID); delErr != nil {
			log.Errorf("[ORDER] [ERROR] removing orphaned order %s: %v", order.ID, delErr)
		}
		return nil, fmt.Errorf("create line items: %w", err)
	}

	log.Infof("[ORDER] individual order %s created, total %s", order.ID, order.TotalAmount.StringFixed(2))
	return s.checkout(ctx, order.ID)
}

// CreateGroupOrder writes order, items and participants atomically.
func (s *OrderService) CreateGroupOrder(ctx context.Context, in GroupOrderInput) (*Checkout, error) {
	if in.UserID == "" {
		return nil, ErrSessionExpired
	}
	if err := store.ValidateItems(in.Items, true); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}

	ctx, span := s.tracer.Start(ctx, "checkout.CreateGroupOrder")
	defer span.End()

	log := logger.FromContext(ctx).WithField("user_id", in.UserID)

	order, err := s.orders.CreateGroupOrder(ctx, store.GroupOrderRequest{
		UserID: in.UserID,
		Notes:  in.Notes,
		Items:  in.Items,
	})
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrSessionExpired
		}
		log.Errorf("[ORDER] [ERROR] creating group order: %v", err)
		return nil, fmt.Errorf("create group order: %w", err)
	}
	span.SetAttributes(attribute.String("order_id", order.ID))

	log.Infof("[ORDER] group order %s created, total %s", order.ID, order.TotalAmount.StringFixed(2))
	return s.checkout(ctx, order.ID)
}

func (s *OrderService) checkout(ctx context.Context, orderID string) (*Checkout, error) {
	pref, err := s.preferences.Build(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &Checkout{
		OrderID:      orderID,
		PreferenceID: pref.ID,
		CheckoutURL:  s.CheckoutURL(pref),
	}, nil
}

// CheckoutURL picks the init point matching the environment.
func (s *OrderService) CheckoutURL(pref *mercadopago.Preference) string {
	if s.sandbox && pref.SandboxInitPoint != "" {
		return pref.SandboxInitPoint
	}
	return pref.InitPoint
}
