package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	checkoutapp "github.com/shop/backend/internal/application/checkout"
	notificationapp "github.com/shop/backend/internal/application/notification"
	reconcileapp "github.com/shop/backend/internal/application/reconcile"
	domainnotification "github.com/shop/backend/internal/domain/notification"
	"github.com/shop/backend/internal/domain/payment"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/infrastructure/auth"
	"github.com/shop/backend/internal/infrastructure/cache"
	"github.com/shop/backend/internal/infrastructure/config"
	"github.com/shop/backend/internal/infrastructure/event"
	"github.com/shop/backend/internal/infrastructure/gateway"
	"github.com/shop/backend/internal/infrastructure/logger"
	notificationinfra "github.com/shop/backend/internal/infrastructure/notification"
	"github.com/shop/backend/internal/infrastructure/persistence"
	"github.com/shop/backend/internal/interfaces/http/handler"
	"github.com/shop/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting shop backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Webhook deduplication, Redis in normal operation, in-process
	// fallback keeps a single instance serviceable without it
	var idempotency shared.IdempotencyStore
	if redisStore, err := cache.NewRedisIdempotencyStore(&cfg.Redis); err != nil {
		log.Warn("Redis unavailable, using in-memory idempotency store", zap.Error(err))
		idempotency = cache.NewMemoryIdempotencyStore()
	} else {
		idempotency = redisStore
	}
	defer func() {
		_ = idempotency.Close()
	}()

	eventBus := event.NewInMemoryEventBus(log)

	var sender domainnotification.Sender
	if cfg.Kafka.Enabled {
		kafkaSender, err := notificationinfra.NewKafkaSender(&cfg.Kafka, log)
		if err != nil {
			log.Fatal("Failed to connect to Kafka", zap.Error(err))
		}
		sender = kafkaSender
	} else {
		sender = notificationinfra.NewLogSender(log)
	}
	defer func() {
		_ = sender.Close()
	}()
	eventBus.Subscribe(notificationapp.NewPaymentEventHandler(sender, log))

	gateways := []payment.Gateway{
		gateway.NewStripeAdapter(&cfg.Stripe, log),
		gateway.NewPayPalAdapter(&cfg.PayPal, log),
		gateway.NewPixAdapter(&cfg.Pix, log),
		gateway.NewBoletoAdapter(&cfg.Boleto, log),
	}

	orderRepo := persistence.NewGormOrderRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	unitOfWork := persistence.NewGormUnitOfWork(db.DB)

	checkoutService := checkoutapp.NewService(orderRepo, paymentRepo, gateways, eventBus, log)
	reconcileService := reconcileapp.NewService(
		gateways, unitOfWork, idempotency, cfg.Webhook.IdempotencyTTL, eventBus, log)

	jwtService := auth.NewJWTService(cfg.JWT)

	engine := router.New(cfg, jwtService, log, router.Handlers{
		System:   handler.NewSystemHandler(db),
		Checkout: handler.NewCheckoutHandler(checkoutService),
		Webhook:  handler.NewWebhookHandler(reconcileService, cfg.Webhook.MaxPayloadBytes),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	log.Info("Server stopped")
}
