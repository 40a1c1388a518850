package store

import (
	"context"
	"database/sql"

	"github.com/safar/congress-merch/internal/models"
)

// Repository binds the package functions to one connection pool so the
// checkout services can depend on narrow interfaces.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sql.DB {
	return r.db
}

func (r *Repository) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	return CreateOrder(ctx, r.db, req)
}

func (r *Repository) CreateLineItems(ctx context.Context, orderID string, items []LineItemRequest) ([]models.LineItem, error) {
	return CreateLineItems(ctx, r.db, orderID, items)
}

func (r *Repository) CreateGroupOrder(ctx context.Context, req GroupOrderRequest) (*models.Order, error) {
	return CreateGroupOrder(ctx, r.db, req)
}

func (r *Repository) GetPendingOrderWithBuyer(ctx context.Context, id string) (*models.OrderWithBuyer, error) {
	return GetPendingOrderWithBuyer(ctx, r.db, id)
}

func (r *Repository) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return GetOrder(ctx, r.db, id)
}

func (r *Repository) GetUserOrder(ctx context.Context, userID, id string) (*models.Order, error) {
	return GetUserOrder(ctx, r.db, userID, id)
}

func (r *Repository) GetLineItems(ctx context.Context, orderID string) ([]models.LineItem, error) {
	return GetLineItems(ctx, r.db, orderID)
}

func (r *Repository) SetPreferenceID(ctx context.Context, orderID, preferenceID string) error {
	return SetPreferenceID(ctx, r.db, orderID, preferenceID)
}

func (r *Repository) ApplyPaymentSnapshot(ctx context.Context, orderID string, snap models.PaymentSnapshot) error {
	return ApplyPaymentSnapshot(ctx, r.db, orderID, snap)
}

func (r *Repository) ListOrdersCursor(ctx context.Context, userID, cursor string, limit int) (*CursorPage, error) {
	return ListOrdersCursor(ctx, r.db, userID, cursor, limit)
}

func (r *Repository) ListOrders(ctx context.Context, status string, page, pageSize int) (*OffsetPage, error) {
	return ListOrders(ctx, r.db, status, page, pageSize)
}

func (r *Repository) DeletePendingOrder(ctx context.Context, userID, orderID string) error {
	return DeletePendingOrder(ctx, r.db, userID, orderID)
}

func (r *Repository) RecordWebhookEvent(ctx context.Context, event models.WebhookEvent) error {
	return RecordWebhookEvent(ctx, r.db, event)
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
