package handler

import (
	"telegram-wallet-bridge/internal/adapter/http/middleware"
	redisStore "telegram-wallet-bridge/internal/adapter/storage/redis"
	"telegram-wallet-bridge/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	BotSvc            ports.BotService
	FundingSvc        ports.FundingService
	TokenSvc          ports.TokenService
	APITokenSvc       ports.APITokenService
	Notifier          ports.ChatNotifier
	RateLimitStore    *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers    []ports.HealthChecker
	PaystackSecretKey string
	VerifySignature   bool // false = webhook signature check skipped
	Logger            zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Ops surface
	r.GET("/", Root)
	r.GET("/ping", Ping)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Platform webhooks (always acknowledged, never rate limited) ---
	telegramHandler := NewTelegramHandler(deps.BotSvc, deps.Logger)
	r.POST("/webhook", telegramHandler.HandleUpdate)

	paystackHandler := NewPaystackHandler(deps.FundingSvc, deps.Notifier, deps.Logger)
	if deps.VerifySignature {
		r.POST("/paystack-webhook",
			middleware.PaystackSignature(deps.PaystackSecretKey, deps.Logger),
			paystackHandler.HandleWebhook)
	} else {
		r.POST("/paystack-webhook", paystackHandler.HandleWebhook)
	}
	r.GET("/payment-callback", paystackHandler.HandlePaymentCallback)

	// --- JWT-authenticated internal API (profile web service) ---
	jwtAuth := middleware.JWTAuth(deps.APITokenSvc, deps.Logger)
	connectHandler := NewConnectHandler(deps.TokenSvc)

	api := r.Group("/api/telegram", jwtAuth)
	{
		api.POST("/create-token", rl("token_create"), connectHandler.CreateToken)
		api.GET("/connection-status/:userId", rl("connection_status"), connectHandler.ConnectionStatus)
	}

	return r
}
