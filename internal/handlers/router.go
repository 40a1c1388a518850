package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/safar/congress-merch/internal/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type RouterConfig struct {
	ServiceName    string
	JWTSecret      string
	AllowedOrigins []string
}

type Handlers struct {
	Preferences *PreferenceHandler
	Webhooks    *WebhookHandler
	Orders      *OrderHandler
	DB          Pinger
}

func NewRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.GET("/health", Health(h.DB))

	functions := r.Group("/functions/v1")
	{
		functions.POST("/create-preference", h.Preferences.Create)
		functions.Any("/mp-webhook", h.Webhooks.Handle)
	}

	api := r.Group("/api")
	api.Use(middleware.UserAuth(cfg.JWTSecret))
	{
		api.POST("/orders", h.Orders.CreateIndividual)
		api.POST("/orders/group", h.Orders.CreateGroup)
		api.GET("/orders", h.Orders.List)
		api.GET("/orders/:id", h.Orders.Get)
		api.DELETE("/orders/:id", h.Orders.Cancel)

		admin := api.Group("/admin")
		admin.Use(middleware.AdminOnly())
		admin.GET("/orders", h.Orders.AdminList)
	}

	return r
}
