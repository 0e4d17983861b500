package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-wallet-bridge/config"
	httpHandler "telegram-wallet-bridge/internal/adapter/http/handler"
	"telegram-wallet-bridge/internal/adapter/mailjet"
	"telegram-wallet-bridge/internal/adapter/paystack"
	memStorage "telegram-wallet-bridge/internal/adapter/storage/memory"
	pgStorage "telegram-wallet-bridge/internal/adapter/storage/postgres"
	redisStorage "telegram-wallet-bridge/internal/adapter/storage/redis"
	"telegram-wallet-bridge/internal/adapter/telegram"
	"telegram-wallet-bridge/internal/core/ports"
	"telegram-wallet-bridge/internal/service"
	"telegram-wallet-bridge/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Telegram Wallet Bridge")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client. Redis is an accelerator here, not a source of
	// truth: without it the service still runs, with the ledger index alone
	// guarding duplicates and conversation slots held in process memory.
	var (
		refGuard       ports.ReferenceGuard
		convStore      ports.ConversationStore
		rateLimitStore *redisStorage.RateLimitStore
		healthCheckers = []ports.HealthChecker{pgStorage.NewHealthCheck(pool)}
	)
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running degraded")
		convStore = memStorage.NewConversationStore(cfg.Conversation.TTL)
	} else {
		defer rdb.Close()
		log.Info().Msg("Redis connected")
		refGuard = redisStorage.NewReferenceGuard(rdb)
		convStore = redisStorage.NewConversationStore(rdb, cfg.Conversation.TTL)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	// Initialize repositories
	tokenRepo := pgStorage.NewTokenRepo(pool)
	bindingRepo := pgStorage.NewBindingRepo(pool)
	accountRepo := pgStorage.NewAccountRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	ticketRepo := pgStorage.NewTicketRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize outbound adapters
	bot, err := telegram.NewBot(cfg.Telegram.BotToken, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Telegram")
	}
	notifier := telegram.NewNotifier(bot, log)

	httpClient := &http.Client{Timeout: 15 * time.Second}
	gateway := paystack.NewClient(cfg.Paystack.BaseURL, cfg.Paystack.SecretKey, httpClient, log)

	var mailer ports.Mailer
	if cfg.Mailjet.APIKeyPublic != "" && cfg.Mailjet.APIKeyPrivate != "" {
		mailer = mailjet.NewMailer(
			cfg.Mailjet.APIKeyPublic,
			cfg.Mailjet.APIKeyPrivate,
			cfg.Mailjet.SenderEmail,
			cfg.Mailjet.SenderName,
			cfg.Mailjet.TemplateID,
			httpClient,
			log,
		)
	} else {
		log.Warn().Msg("Mailjet keys not set, transactional email disabled")
	}

	// Initialize services
	apiTokenSvc := service.NewJWTAPITokenService(cfg.API.JWTSecret, cfg.API.JWTExpiry, cfg.API.JWTIssuer)
	tokenSvc := service.NewTokenService(tokenRepo, bindingRepo, accountRepo, transactor, log)
	fundingSvc := service.NewFundingService(
		accountRepo,
		bindingRepo,
		ledgerRepo,
		transactor,
		gateway,
		refGuard,
		mailer,
		cfg.Paystack.CallbackURL,
		log,
	)
	botSvc := service.NewBotService(
		bindingRepo,
		accountRepo,
		ticketRepo,
		tokenSvc,
		fundingSvc,
		convStore,
		notifier,
		cfg.Frontend.ProfileURL,
		cfg.Frontend.BaseURL,
		log,
	)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		BotSvc:            botSvc,
		FundingSvc:        fundingSvc,
		TokenSvc:          tokenSvc,
		APITokenSvc:       apiTokenSvc,
		Notifier:          notifier,
		RateLimitStore:    rateLimitStore,
		HealthCheckers:    healthCheckers,
		PaystackSecretKey: cfg.Paystack.SecretKey,
		VerifySignature:   cfg.Paystack.VerifySignature,
		Logger:            log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
