package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/congress-merch/internal/checkout"
	"github.com/safar/congress-merch/internal/config"
	"github.com/safar/congress-merch/internal/database"
	"github.com/safar/congress-merch/internal/handlers"
	"github.com/safar/congress-merch/internal/logger"
	"github.com/safar/congress-merch/internal/mercadopago"
	"github.com/safar/congress-merch/internal/store"
	"github.com/safar/congress-merch/internal/telemetry"
	"go.opentelemetry.io/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	logger.SetLevel(cfg.Server.LogLevel)

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Errorf("shutdown telemetry: %v", err)
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter("checkout"))
	if err != nil {
		logger.Fatalf("init metrics: %v", err)
	}

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatalf("connect to database: %v", err)
	}
	defer db.Close()
	logger.Infof("connected to database")

	repo := store.NewRepository(db)
	gateway := mercadopago.NewClient(cfg.MercadoPago)

	builder := checkout.NewPreferenceBuilder(repo, gateway, checkout.PreferenceSettings{
		NotificationURL:     cfg.MercadoPago.NotificationURL,
		BackURL:             cfg.MercadoPago.BackURL,
		StatementDescriptor: cfg.MercadoPago.StatementDescriptor,
	}, metrics)
	reconciler := checkout.NewReconciler(repo, gateway, cfg.MercadoPago.WebhookSecret, metrics)
	service := checkout.NewOrderService(repo, builder, cfg.MercadoPago.Sandbox)

	if cfg.MercadoPago.WebhookSecret == "" {
		logger.Warnf("MP_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.RouterConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, handlers.Handlers{
		Preferences: handlers.NewPreferenceHandler(builder),
		Webhooks:    handlers.NewWebhookHandler(reconciler),
		Orders:      handlers.NewOrderHandler(service, repo),
		DB:          repo,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("server listening on %s (sandbox=%t)", server.Addr, cfg.MercadoPago.Sandbox)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Infof("server stopped")
}
