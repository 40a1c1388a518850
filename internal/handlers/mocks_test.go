package handlers

import (
	"context"

	"github.com/safar/congress-merch/internal/checkout"
	"github.com/safar/congress-merch/internal/mercadopago"
	"github.com/safar/congress-merch/internal/models"
	"github.com/safar/congress-merch/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockBuilder struct {
	mock.Mock
}

func (m *MockBuilder) Build(ctx context.Context, orderID string) (*mercadopago.Preference, error) {
	args := m.Called(ctx, orderID)
	pref, _ := args.Get(0).(*mercadopago.Preference)
	return pref, args.Error(1)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Handle(ctx context.Context, d checkout.Delivery) checkout.Result {
	args := m.Called(ctx, d)
	return args.Get(0).(checkout.Result)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateIndividualOrder(ctx context.Context, in checkout.IndividualOrderInput) (*checkout.Checkout, error) {
	args := m.Called(ctx, in)
	co, _ := args.Get(0).(*checkout.Checkout)
	return co, args.Error(1)
}

func (m *MockOrderService) CreateGroupOrder(ctx context.Context, in checkout.GroupOrderInput) (*checkout.Checkout, error) {
	args := m.Called(ctx, in)
	co, _ := args.Get(0).(*checkout.Checkout)
	return co, args.Error(1)
}

type MockOrderReader struct {
	mock.Mock
}

func (m *MockOrderReader) ListOrdersCursor(ctx context.Context, userID, cursor string, limit int) (*store.CursorPage, error) {
	args := m.Called(ctx, userID, cursor, limit)
	page, _ := args.Get(0).(*store.CursorPage)
	return page, args.Error(1)
}

func (m *MockOrderReader) GetUserOrder(ctx context.Context, userID, id string) (*models.Order, error) {
	args := m.Called(ctx, userID, id)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *MockOrderReader) DeletePendingOrder(ctx context.Context, userID, orderID string) error {
	args := m.Called(ctx, userID, orderID)
	return args.Error(0)
}

func (m *MockOrderReader) ListOrders(ctx context.Context, status string, page, pageSize int) (*store.OffsetPage, error) {
	args := m.Called(ctx, status, page, pageSize)
	p, _ := args.Get(0).(*store.OffsetPage)
	return p, args.Error(1)
}

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
