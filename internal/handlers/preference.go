package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/congress-merch/internal/checkout"
	"github.com/safar/congress-merch/internal/mercadopago"
)

type PreferenceBuilder interface {
	Build(ctx context.Context, orderID string) (*mercadopago.Preference, error)
}

type PreferenceHandler struct {
	builder PreferenceBuilder
}

func NewPreferenceHandler(builder PreferenceBuilder) *PreferenceHandler {
	return &PreferenceHandler{builder: builder}
}

// Create handles POST /functions/v1/create-preference with {"orderId": "..."}.
func (h *PreferenceHandler) Create(c *gin.Context) {
	var req struct {
		OrderID string `json:"orderId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == "" {
		respondError(c, http.StatusBadRequest, checkout.ErrMissingOrderID.Error())
		return
	}

	pref, err := h.builder.Build(c.Request.Context(), req.OrderID)
	if err != nil {
		status, message := preferenceErrorResponse(err)
		respondError(c, status, message)
		return
	}

	c.JSON(http.StatusOK, pref)
}

func preferenceErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, checkout.ErrMissingOrderID):
		return http.StatusBadRequest, checkout.ErrMissingOrderID.Error()
	case errors.Is(err, checkout.ErrOrderNotPending):
		return http.StatusNotFound, checkout.ErrOrderNotPending.Error()
	case errors.Is(err, checkout.ErrItemsFetch):
		return http.StatusInternalServerError, checkout.ErrItemsFetch.Error()
	case errors.Is(err, checkout.ErrPreferenceCreate):
		return http.StatusInternalServerError, checkout.ErrPreferenceCreate.Error()
	case errors.Is(err, checkout.ErrPreferencePersist):
		return http.StatusInternalServerError, checkout.ErrPreferencePersist.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
