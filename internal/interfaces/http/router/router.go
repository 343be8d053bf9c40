package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shop/backend/internal/infrastructure/auth"
	"github.com/shop/backend/internal/infrastructure/config"
	"github.com/shop/backend/internal/interfaces/http/handler"
	"github.com/shop/backend/internal/interfaces/http/middleware"
)

// Handlers groups the handlers wired into the router
type Handlers struct {
	System   *handler.SystemHandler
	Checkout *handler.CheckoutHandler
	Webhook  *handler.WebhookHandler
}

// New builds the gin engine with middleware and all routes registered.
// Webhook routes are signature-authenticated and sit outside the JWT
// protected API group.
func New(cfg *config.Config, jwtService *auth.JWTService, logger *zap.Logger, h Handlers) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(cfg.HTTP.TrustedProxies)
	}

	engine.Use(
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		middleware.Recovery(logger),
		middleware.CORS(cfg.HTTP.CORSAllowOrigins),
	)

	h.System.RegisterRoutes(engine)

	// Provider callbacks, body size is capped inside the handler
	h.Webhook.RegisterRoutes(engine.Group(""))

	api := engine.Group("/api/v1")
	api.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	api.Use(middleware.JWTAuth(jwtService))
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		api.Use(middleware.RateLimit(limiter))
	}
	h.Checkout.RegisterRoutes(api)

	return engine
}
