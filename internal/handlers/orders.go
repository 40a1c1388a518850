package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/safar/congress-merch/internal/checkout"
	"github.com/safar/congress-merch/internal/database"
	"github.com/safar/congress-merch/internal/logger"
	"github.com/safar/congress-merch/internal/middleware"
	"github.com/safar/congress-merch/internal/models"
	"github.com/safar/congress-merch/internal/store"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type OrderCreator interface {
	CreateIndividualOrder(ctx context.Context, in checkout.IndividualOrderInput) (*checkout.Checkout, error)
	CreateGroupOrder(ctx context.Context, in checkout.GroupOrderInput) (*checkout.Checkout, error)
}

type OrderReader interface {
	ListOrdersCursor(ctx context.Context, userID, cursor string, limit int) (*store.CursorPage, error)
	GetUserOrder(ctx context.Context, userID, id string) (*models.Order, error)
	DeletePendingOrder(ctx context.Context, userID, orderID string) error
	ListOrders(ctx context.Context, status string, page, pageSize int) (*store.OffsetPage, error)
}

type OrderHandler struct {
	service OrderCreator
	orders  OrderReader
}

func NewOrderHandler(service OrderCreator, orders OrderReader) *OrderHandler {
	return &OrderHandler{service: service, orders: orders}
}

type participantRequest struct {
	Name   string `json:"name" binding:"required"`
	Size   string `json:"size"`
	Phone  string `json:"phone"`
	City   string `json:"city"`
	Church string `json:"church"`
}

type orderItemRequest struct {
	Size         string               `json:"size" binding:"required"`
	Quantity     int                  `json:"quantity" binding:"required,gt=0"`
	UnitPrice    decimal.Decimal      `json:"unit_price"`
	Participants []participantRequest `json:"participants" binding:"dive"`
}

type createOrderRequest struct {
	Notes string             `json:"notes"`
	Items []orderItemRequest `json:"items" binding:"required,min=1,dive"`
}

func (r createOrderRequest) lineItems() []store.LineItemRequest {
	items := make([]store.LineItemRequest, 0, len(r.Items))
	for _, it := range r.Items {
		item := store.LineItemRequest{
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
		for _, p := range it.Participants {
			item.Participants = append(item.Participants, store.ParticipantRequest{
				Name:   p.Name,
				Size:   p.Size,
				Phone:  p.Phone,
				City:   p.City,
				Church: p.Church,
			})
		}
		items = append(items, item)
	}
	return items
}

// CreateIndividual handles POST /api/orders.
func (h *OrderHandler) CreateIndividual(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid order payload")
		return
	}

	co, err := h.service.CreateIndividualOrder(c.Request.Context(), checkout.IndividualOrderInput{
		UserID: middleware.UserID(c),
		Notes:  req.Notes,
		Items:  req.lineItems(),
	})
	if err != nil {
		h.respondCheckoutError(c, err)
		return
	}

	c.JSON(http.StatusCreated, co)
}

// CreateGroup handles POST /api/orders/group.
func (h *OrderHandler) CreateGroup(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid order payload")
		return
	}

	co, err := h.service.CreateGroupOrder(c.Request.Context(), checkout.GroupOrderInput{
		UserID: middleware.UserID(c),
		Notes:  req.Notes,
		Items:  req.lineItems(),
	})
	if err != nil {
		h.respondCheckoutError(c, err)
		return
	}

	c.JSON(http.StatusCreated, co)
}

func (h *OrderHandler) respondCheckoutError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, checkout.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": checkout.ErrSessionExpired.Error(),
			"code":  middleware.CodeSessionExpired,
		})
	case errors.Is(err, checkout.ErrInvalidOrder):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		status, message := preferenceErrorResponse(err)
		if status >= http.StatusInternalServerError {
			logger.FromContext(c.Request.Context()).Errorf("[ORDER] [ERROR] checkout failed: %v", err)
		}
		respondError(c, status, message)
	}
}

// List handles GET /api/orders?cursor=&limit=.
func (h *OrderHandler) List(c *gin.Context) {
	limit := queryInt(c, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	page, err := h.orders.ListOrdersCursor(c.Request.Context(), middleware.UserID(c), c.Query("cursor"), limit)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCursor) || database.IsInvalidInput(err) {
			respondError(c, http.StatusBadRequest, "invalid cursor")
			return
		}
		logger.FromContext(c.Request.Context()).Errorf("[ORDER] [ERROR] listing orders: %v", err)
		respondError(c, http.StatusInternalServerError, "error listing orders")
		return
	}

	c.JSON(http.StatusOK, page)
}

// Get handles GET /api/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.orders.GetUserOrder(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			respondError(c, http.StatusNotFound, "order not found")
			return
		}
		logger.FromContext(c.Request.Context()).Errorf("[ORDER] [ERROR] fetching order: %v", err)
		respondError(c, http.StatusInternalServerError, "error fetching order")
		return
	}

	c.JSON(http.StatusOK, order)
}

// Cancel handles DELETE /api/orders/:id. Only pending orders can go.
func (h *OrderHandler) Cancel(c *gin.Context) {
	err := h.orders.DeletePendingOrder(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, database.ErrOrderNotFound):
		respondError(c, http.StatusNotFound, "order not found")
	case errors.Is(err, database.ErrOrderNotPending):
		respondError(c, http.StatusConflict, "only pending orders can be cancelled")
	default:
		logger.FromContext(c.Request.Context()).Errorf("[ORDER] [ERROR] cancelling order: %v", err)
		respondError(c, http.StatusInternalServerError, "error cancelling order")
	}
}

var orderStatuses = map[string]bool{
	"":                          true,
	models.OrderStatusPending:   true,
	models.OrderStatusPaid:      true,
	models.OrderStatusCancelled: true,
}

// AdminList handles GET /api/admin/orders?page=&page_size=&status=.
func (h *OrderHandler) AdminList(c *gin.Context) {
	status := c.Query("status")
	if !orderStatuses[status] {
		respondError(c, http.StatusBadRequest, "invalid status filter")
		return
	}

	pageSize := queryInt(c, "page_size", defaultPageSize)
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	page, err := h.orders.ListOrders(c.Request.Context(), status, queryInt(c, "page", 1), pageSize)
	if err != nil {
		logger.FromContext(c.Request.Context()).Errorf("[ADMIN] [ERROR] listing orders: %v", err)
		respondError(c, http.StatusInternalServerError, "error listing orders")
		return
	}

	c.JSON(http.StatusOK, page)
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
