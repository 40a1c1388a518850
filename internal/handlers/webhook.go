package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/congress-merch/internal/checkout"
	"github.com/safar/congress-merch/internal/logger"
)

const maxWebhookBody = 1 << 20

type WebhookReconciler interface {
	Handle(ctx context.Context, d checkout.Delivery) checkout.Result
}

type WebhookHandler struct {
	reconciler WebhookReconciler
}

func NewWebhookHandler(reconciler WebhookReconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// Handle answers the gateway in plain text. Only POST is processed.
func (h *WebhookHandler) Handle(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodOptions:
		c.String(http.StatusOK, "ok")
		return
	case http.MethodPost:
	default:
		c.String(http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		logger.FromContext(c.Request.Context()).Errorf("[WEBHOOK] [ERROR] reading body: %v", err)
		c.String(http.StatusBadRequest, "Invalid notification body")
		return
	}

	res := h.reconciler.Handle(c.Request.Context(), checkout.Delivery{
		Body:      body,
		Query:     c.Request.URL.Query(),
		Signature: c.GetHeader("x-signature"),
		RequestID: c.GetHeader("x-request-id"),
	})

	c.String(res.Status, res.Message)
}
