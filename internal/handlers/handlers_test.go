package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/safar/congress-merch/internal/checkout"
	"github.com/safar/congress-merch/internal/database"
	"github.com/safar/congress-merch/internal/mercadopago"
	"github.com/safar/congress-merch/internal/middleware"
	"github.com/safar/congress-merch/internal/models"
	"github.com/safar/congress-merch/internal/store"
	"github.com/safar/congress-merch/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "handler-secret"
	testUserID = "7b0c2f64-93a2-4d35-8d7a-2f1f3b7e7a10"
	testOrder  = "c9a4e0d2-5b1e-4f3a-9c6d-8e7f6a5b4c3d"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router   *gin.Engine
	builder  *MockBuilder
	reconcil *MockReconciler
	service  *MockOrderService
	orders   *MockOrderReader
	db       *MockPinger
}

func newTestServer() *testServer {
	s := &testServer{
		builder:  new(MockBuilder),
		reconcil: new(MockReconciler),
		service:  new(MockOrderService),
		orders:   new(MockOrderReader),
		db:       new(MockPinger),
	}
	s.router = NewRouter(RouterConfig{
		ServiceName:    "congress-merch-test",
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"*"},
	}, Handlers{
		Preferences: NewPreferenceHandler(s.builder),
		Webhooks:    NewWebhookHandler(s.reconcil),
		Orders:      NewOrderHandler(s.service, s.orders),
		DB:          s.db,
	})
	return s
}

func token(t *testing.T, sub, role string) string {
	t.Helper()

	claims := middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(method, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	s := newTestServer()
	s.db.On("Ping", mock.Anything).Return(nil).Once()

	w := s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	s.db.On("Ping", mock.Anything).Return(errors.New("connection refused")).Once()
	w = s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreatePreference(t *testing.T) {
	s := newTestServer()
	s.builder.On("Build", mock.Anything, testOrder).Return(&mercadopago.Preference{
		ID:               "pref-1",
		InitPoint:        "https://mp.example/init",
		SandboxInitPoint: "https://sandbox.mp.example/init",
	}, nil)

	w := s.do(http.MethodPost, "/functions/v1/create-preference", fmt.Sprintf(`{"orderId":%q}`, testOrder), "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "pref-1", body["id"])
	assert.Equal(t, "https://mp.example/init", body["init_point"])
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCreatePreferenceErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not pending", checkout.ErrOrderNotPending, http.StatusNotFound, "order not found or already processed"},
		{"items", fmt.Errorf("%w: boom", checkout.ErrItemsFetch), http.StatusInternalServerError, "error fetching order items"},
		{"gateway", fmt.Errorf("%w: 400", checkout.ErrPreferenceCreate), http.StatusInternalServerError, "error creating payment preference"},
		{"persist", fmt.Errorf("%w: tx", checkout.ErrPreferencePersist), http.StatusInternalServerError, "error saving payment preference"},
		{"unknown", errors.New("db down"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			s.builder.On("Build", mock.Anything, testOrder).Return(nil, tt.err)

			w := s.do(http.MethodPost, "/functions/v1/create-preference", fmt.Sprintf(`{"orderId":%q}`, testOrder), "")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decode(t, w)["error"])
		})
	}
}

func TestCreatePreferenceRequiresOrderID(t *testing.T) {
	s := newTestServer()

	for _, body := range []string{`{}`, `{"orderId":""}`, `not json`} {
		w := s.do(http.MethodPost, "/functions/v1/create-preference", body, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "orderId is required", decode(t, w)["error"])
	}
	s.builder.AssertNotCalled(t, "Build", mock.Anything, mock.Anything)
}

func TestCreatePreferencePreflight(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodOptions, "/functions/v1/create-preference", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "content-type")
}

func TestWebhookForwardsDelivery(t *testing.T) {
	s := newTestServer()
	payload := `{"type":"payment","data":{"id":"123"}}`

	s.reconcil.On("Handle", mock.Anything, mock.MatchedBy(func(d checkout.Delivery) bool {
		return string(d.Body) == payload &&
			d.Query.Get("data.id") == "123" &&
			d.Signature == "ts=1,v1=abc" &&
			d.RequestID == "req-9"
	})).Return(checkout.Result{Status: http.StatusOK, Message: "OK", Outcome: telemetry.OutcomeApplied})

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/mp-webhook?data.id=123&type=payment", strings.NewReader(payload))
	req.Header.Set("x-signature", "ts=1,v1=abc")
	req.Header.Set("x-request-id", "req-9")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	s.reconcil.AssertExpectations(t)
}

func TestWebhookPassesThroughFailureStatus(t *testing.T) {
	s := newTestServer()
	s.reconcil.On("Handle", mock.Anything, mock.Anything).
		Return(checkout.Result{Status: http.StatusInternalServerError, Message: "Error fetching payment"})

	w := s.do(http.MethodPost, "/functions/v1/mp-webhook", `{"type":"payment","data":{"id":"1"}}`, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error fetching payment", w.Body.String())
}

func TestWebhookRejectsOtherMethods(t *testing.T) {
	s := newTestServer()

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		w := s.do(method, "/functions/v1/mp-webhook", "", "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		assert.Equal(t, "Method not allowed", w.Body.String())
	}
	s.reconcil.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
}

const individualBody = `{
	"notes": "entregar no sábado",
	"items": [{"size": "M", "quantity": 2, "unit_price": 45.00}]
}`

func TestCreateIndividualOrder(t *testing.T) {
	s := newTestServer()
	s.service.On("CreateIndividualOrder", mock.Anything, mock.MatchedBy(func(in checkout.IndividualOrderInput) bool {
		return in.UserID == testUserID &&
			in.Notes == "entregar no sábado" &&
			len(in.Items) == 1 &&
			in.Items[0].Size == "M" &&
			in.Items[0].Quantity == 2 &&
			in.Items[0].UnitPrice.StringFixed(2) == "45.00"
	})).Return(&checkout.Checkout{
		OrderID:      testOrder,
		PreferenceID: "pref-1",
		CheckoutURL:  "https://sandbox.mp.example/init",
	}, nil)

	w := s.do(http.MethodPost, "/api/orders", individualBody, token(t, testUserID, ""))
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	assert.Equal(t, testOrder, body["order_id"])
	assert.Equal(t, "pref-1", body["preference_id"])
	assert.Equal(t, "https://sandbox.mp.example/init", body["checkout_url"])
}

func TestCreateOrderWithoutTokenIsSessionExpired(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodPost, "/api/orders", individualBody, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, middleware.CodeSessionExpired, decode(t, w)["code"])
	s.service.AssertNotCalled(t, "CreateIndividualOrder", mock.Anything, mock.Anything)
}

func TestCreateOrderErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown user", checkout.ErrSessionExpired, http.StatusUnauthorized, middleware.CodeSessionExpired},
		{"invalid", fmt.Errorf("%w: %w", checkout.ErrInvalidOrder, database.ErrInvalidUnitPrice), http.StatusBadRequest, ""},
		{"not pending", checkout.ErrOrderNotPending, http.StatusNotFound, ""},
		{"gateway", fmt.Errorf("%w: 502", checkout.ErrPreferenceCreate), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			s.service.On("CreateIndividualOrder", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := s.do(http.MethodPost, "/api/orders", individualBody, token(t, testUserID, ""))
			assert.Equal(t, tt.status, w.Code)

			body := decode(t, w)
			assert.NotEmpty(t, body["error"])
			if tt.code != "" {
				assert.Equal(t, tt.code, body["code"])
			}
		})
	}
}

func TestCreateOrderRejectsBadPayload(t *testing.T) {
	s := newTestServer()
	bearer := token(t, testUserID, "")

	for _, body := range []string{
		`{"items": []}`,
		`{"items": [{"size": "M", "quantity": 0, "unit_price": 45}]}`,
		`{"items": [{"quantity": 1, "unit_price": 45}]}`,
		`[`,
	} {
		w := s.do(http.MethodPost, "/api/orders", body, bearer)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	s.service.AssertNotCalled(t, "CreateIndividualOrder", mock.Anything, mock.Anything)
}

func TestCreateGroupOrder(t *testing.T) {
	s := newTestServer()
	s.service.On("CreateGroupOrder", mock.Anything, mock.MatchedBy(func(in checkout.GroupOrderInput) bool {
		if in.UserID != testUserID || len(in.Items) != 1 {
			return false
		}
		ps := in.Items[0].Participants
		return len(ps) == 2 &&
			ps[0].Name == "Ana Souza" && ps[0].Church == "Central" &&
			ps[1].Name == "Pedro Lima" && ps[1].Size == "G"
	})).Return(&checkout.Checkout{OrderID: testOrder, PreferenceID: "pref-2", CheckoutURL: "https://mp.example/init"}, nil)

	body := `{
		"items": [{
			"size": "M", "quantity": 2, "unit_price": "45.00",
			"participants": [
				{"name": "Ana Souza", "phone": "11999990000", "city": "Campinas", "church": "Central"},
				{"name": "Pedro Lima", "size": "G"}
			]
		}]
	}`
	w := s.do(http.MethodPost, "/api/orders/group", body, token(t, testUserID, ""))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "pref-2", decode(t, w)["preference_id"])
}

func TestCreateGroupOrderRejectsNamelessParticipant(t *testing.T) {
	s := newTestServer()

	body := `{"items": [{"size": "M", "quantity": 1, "unit_price": 45, "participants": [{"city": "Campinas"}]}]}`
	w := s.do(http.MethodPost, "/api/orders/group", body, token(t, testUserID, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	s.service.AssertNotCalled(t, "CreateGroupOrder", mock.Anything, mock.Anything)
}

func TestListOrders(t *testing.T) {
	s := newTestServer()
	s.orders.On("ListOrdersCursor", mock.Anything, testUserID, "", defaultPageSize).
		Return(&store.CursorPage{Items: []models.Order{{ID: testOrder}}, NextCursor: "abc", HasMore: true}, nil)

	w := s.do(http.MethodGet, "/api/orders?limit=500", "", token(t, testUserID, ""))
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "abc", body["next_cursor"])
	assert.Equal(t, true, body["has_more"])
	s.orders.AssertExpectations(t)
}

func TestListOrdersPassesCursorAndLimit(t *testing.T) {
	s := newTestServer()
	s.orders.On("ListOrdersCursor", mock.Anything, testUserID, "next", 5).
		Return(&store.CursorPage{Items: []models.Order{}}, nil)

	w := s.do(http.MethodGet, "/api/orders?cursor=next&limit=5", "", token(t, testUserID, ""))
	assert.Equal(t, http.StatusOK, w.Code)
	s.orders.AssertExpectations(t)
}

func TestListOrdersInvalidCursor(t *testing.T) {
	s := newTestServer()
	s.orders.On("ListOrdersCursor", mock.Anything, testUserID, "%%%", defaultPageSize).
		Return(nil, fmt.Errorf("decode cursor: %w", store.ErrInvalidCursor))

	w := s.do(http.MethodGet, "/api/orders?cursor=%25%25%25", "", token(t, testUserID, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrder(t *testing.T) {
	s := newTestServer()
	s.orders.On("GetUserOrder", mock.Anything, testUserID, testOrder).
		Return(&models.Order{ID: testOrder, UserID: testUserID, Status: models.OrderStatusPaid}, nil)
	s.orders.On("GetUserOrder", mock.Anything, testUserID, "missing").
		Return(nil, database.ErrOrderNotFound)

	w := s.do(http.MethodGet, "/api/orders/"+testOrder, "", token(t, testUserID, ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderStatusPaid, decode(t, w)["status"])

	w = s.do(http.MethodGet, "/api/orders/missing", "", token(t, testUserID, ""))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelOrder(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"deleted", nil, http.StatusNoContent},
		{"missing", database.ErrOrderNotFound, http.StatusNotFound},
		{"paid", database.ErrOrderNotPending, http.StatusConflict},
		{"db", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			s.orders.On("DeletePendingOrder", mock.Anything, testUserID, testOrder).Return(tt.err)

			w := s.do(http.MethodDelete, "/api/orders/"+testOrder, "", token(t, testUserID, ""))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAdminListRequiresAdminRole(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodGet, "/api/admin/orders", "", token(t, testUserID, ""))
	assert.Equal(t, http.StatusForbidden, w.Code)
	s.orders.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminList(t *testing.T) {
	s := newTestServer()
	s.orders.On("ListOrders", mock.Anything, models.OrderStatusPaid, 2, 50).
		Return(&store.OffsetPage{Items: []models.OrderWithBuyer{}, Total: 60, Page: 2, PageSize: 50, TotalPages: 2}, nil)

	w := s.do(http.MethodGet, "/api/admin/orders?status=paid&page=2&page_size=50", "", token(t, testUserID, middleware.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(60), body["total"])
	assert.Equal(t, float64(2), body["total_pages"])
}

func TestAdminListRejectsUnknownStatus(t *testing.T) {
	s := newTestServer()

	w := s.do(http.MethodGet, "/api/admin/orders?status=shipped", "", token(t, testUserID, middleware.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
