package checkout

import (
	"context"

	"github.com/safar/congress-merch/internal/mercadopago"
	"github.com/safar/congress-merch/internal/models"
	"github.com/safar/congress-merch/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockPreferenceStore struct {
	mock.Mock
}

func (m *MockPreferenceStore) GetPendingOrderWithBuyer(ctx context.Context, id string) (*models.OrderWithBuyer, error) {
	args := m.Called(ctx, id)
	order, _ := args.Get(0).(*models.OrderWithBuyer)
	return order, args.Error(1)
}

func (m *MockPreferenceStore) GetLineItems(ctx context.Context, orderID string) ([]models.LineItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]models.LineItem)
	return items, args.Error(1)
}

func (m *MockPreferenceStore) SetPreferenceID(ctx context.Context, orderID, preferenceID string) error {
	args := m.Called(ctx, orderID, preferenceID)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest, idempotencyKey string) (*mercadopago.Preference, error) {
	args := m.Called(ctx, req, idempotencyKey)
	pref, _ := args.Get(0).(*mercadopago.Preference)
	return pref, args.Error(1)
}

func (m *MockGateway) GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error) {
	args := m.Called(ctx, paymentID)
	payment, _ := args.Get(0).(*mercadopago.Payment)
	return payment, args.Error(1)
}

type MockPaymentStore struct {
	mock.Mock
}

func (m *MockPaymentStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *MockPaymentStore) ApplyPaymentSnapshot(ctx context.Context, orderID string, snap models.PaymentSnapshot) error {
	args := m.Called(ctx, orderID, snap)
	return args.Error(0)
}

func (m *MockPaymentStore) RecordWebhookEvent(ctx context.Context, event models.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockOrderWriter struct {
	mock.Mock
}

func (m *MockOrderWriter) CreateOrder(ctx context.Context, req store.CreateOrderRequest) (*models.Order, error) {
	args := m.Called(ctx, req)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *MockOrderWriter) CreateLineItems(ctx context.Context, orderID string, items []store.LineItemRequest) ([]models.LineItem, error) {
	args := m.Called(ctx, orderID, items)
	created, _ := args.Get(0).([]models.LineItem)
	return created, args.Error(1)
}

func (m *MockOrderWriter) CreateGroupOrder(ctx context.Context, req store.GroupOrderRequest) (*models.Order, error) {
	args := m.Called(ctx, req)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *MockOrderWriter) DeletePendingOrder(ctx context.Context, userID, orderID string) error {
	args := m.Called(ctx, userID, orderID)
	return args.Error(0)
}

type MockPreferenceCreator struct {
	mock.Mock
}

func (m *MockPreferenceCreator) Build(ctx context.Context, orderID string) (*mercadopago.Preference, error) {
	args := m.Called(ctx, orderID)
	pref, _ := args.Get(0).(*mercadopago.Preference)
	return pref, args.Error(1)
}
