// Package main is the entry point for the leadbot server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/ai"
	"github.com/adworks/leadbot/internal/bot"
	"github.com/adworks/leadbot/internal/clock"
	"github.com/adworks/leadbot/internal/config"
	"github.com/adworks/leadbot/internal/database"
	"github.com/adworks/leadbot/internal/handler"
	"github.com/adworks/leadbot/internal/logging"
	"github.com/adworks/leadbot/internal/metrics"
	"github.com/adworks/leadbot/internal/middleware"
	"github.com/adworks/leadbot/internal/repository"
	"github.com/adworks/leadbot/internal/service"
	"github.com/adworks/leadbot/internal/shutdown"
	"github.com/adworks/leadbot/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	appLogger, err := logging.New(&logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Server.Environment,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := appLogger.Zap()
	defer func() { _ = logger.Sync() }()

	logger.Info("starting leadbot server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Environment),
	)

	// Initialize database
	ctx := context.Background()
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	// Note: db.Close() is handled by shutdown coordinator

	if cfg.Database.AutoMigrate {
		migrator := database.NewMigrator(db.Pool, logger)
		if err := migrator.Migrate(ctx); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize metrics
	m := metrics.NewMetrics()

	// Initialize repositories
	leadRepo := repository.NewLeadRepository(db.Pool)
	userRepo := repository.NewUserRepository(db.Pool, cfg.Users.ScoreCap)
	interactionRepo := repository.NewInteractionRepository(db.Pool)

	// Initialize the AI responder with whichever providers are configured
	clk := clock.New()
	responder := ai.NewResponder(initAIProviders(cfg, logger), clk, logger, m)

	// Initialize Telegram client
	tgClient, err := telegram.NewClient(cfg.Telegram.Token, logger, m)
	if err != nil {
		logger.Fatal("failed to connect to Telegram", zap.Error(err))
	}

	if cfg.Telegram.WebhookBaseURL != "" {
		if err := tgClient.RegisterWebhook(cfg.WebhookURL()); err != nil {
			logger.Fatal("failed to register webhook", zap.Error(err))
		}
	} else {
		logger.Warn("no webhook base URL configured, updates will not arrive")
	}
	if err := tgClient.RegisterCommands(bot.CommandMenu()); err != nil {
		logger.Warn("failed to register command menu", zap.Error(err))
	}

	// Initialize services
	notifier := service.NewNotifier(tgClient, userRepo, cfg.Telegram.NotifyChatIDs, logger, m)
	leadService := service.NewLeadService(leadRepo, notifier, logger, m)

	var followups *service.FollowupScheduler
	if cfg.Followup.Enabled {
		followups = service.NewFollowupScheduler(cfg.Followup.Delay, tgClient, clk, logger, m)
		logger.Info("follow-up scheduler enabled", zap.Duration("delay", cfg.Followup.Delay))
	}

	// Initialize the bot
	tgBot := bot.New(bot.Deps{
		Sender:       tgClient,
		Users:        userRepo,
		Interactions: interactionRepo,
		Leads:        leadService,
		Notifier:     notifier,
		Responder:    responder,
		Followups:    followups,
		Config:       &cfg.Telegram,
		BotUsername:  tgClient.Username(),
		Logger:       logger,
		Metrics:      m,
	})

	// Initialize shutdown coordinator and readiness probe
	shutdownCoord := shutdown.NewCoordinator(30*time.Second, logger)
	readiness := shutdown.NewReadinessProbe(shutdownCoord)

	// Initialize handlers
	h := handler.New(handler.Config{
		Webhook: handler.NewWebhookHandler(handler.WebhookHandlerConfig{
			LeadService: leadService,
			Bot:         tgBot,
			BotToken:    cfg.Telegram.Token,
			Logger:      logger,
			Metrics:     m,
		}),
		Health: handler.NewHealthHandler(handler.HealthHandlerConfig{
			HealthChecker: db,
			AIStatus:      responder,
			Webhook:       tgClient,
			Ready:         readiness,
			Logger:        logger,
		}),
		Export:       handler.NewExportHandler(leadService, &cfg.Export, logger),
		WebhookAdmin: tgClient,
		WebhookURL:   cfg.WebhookURL(),
		TelegramPath: cfg.TelegramWebhookBasePath(),
		LogLevel:     appLogger,
		Metrics:      m.Handler(),
		Logger:       logger,
	})

	// Initialize middleware
	correlation := middleware.NewRequestCorrelation(logger)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger, m)

	// Initialize router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(correlation.Middleware)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(m.Middleware)
	r.Use(middleware.RateLimit(rateLimiter))

	h.RegisterRoutes(r)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Sample DB pool stats until shutdown
	statsDone := make(chan struct{})
	go func() {
		defer close(statsDone)
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stat := db.Stats()
				m.UpdateDBConnections(int(stat.TotalConns()), int(stat.AcquiredConns()))
			case <-shutdownCoord.ShutdownCh():
				return
			}
		}
	}()

	// Register services for graceful shutdown (in order of shutdown phases)
	shutdownCoord.RegisterFunc(shutdown.PhaseDrain, "telegram-webhook", func(ctx context.Context) error {
		// Stop Telegram from pushing further updates before the server drains.
		return tgClient.DeleteWebhook()
	})
	shutdownCoord.RegisterFunc(shutdown.PhaseDrain, "http-server", func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})
	if followups != nil {
		shutdownCoord.RegisterFunc(shutdown.PhaseShutdown, "followup-scheduler", func(ctx context.Context) error {
			followups.Stop()
			return nil
		})
	}
	shutdownCoord.RegisterFunc(shutdown.PhaseCleanup, "db-stats", func(ctx context.Context) error {
		select {
		case <-statsDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdownCoord.RegisterFunc(shutdown.PhaseCleanup, "database", func(ctx context.Context) error {
		db.Close()
		return nil
	})

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("received shutdown signal")

	if err := shutdownCoord.Shutdown(ctx); err != nil {
		logger.Error("shutdown completed with errors", zap.Error(err))
	}
}

// initAIProviders builds the provider chain in fallback order. Returns an
// empty slice when nothing is configured; the responder then answers with
// its static fallback.
func initAIProviders(cfg *config.Config, logger *zap.Logger) []ai.Provider {
	var providers []ai.Provider

	if cfg.AI.OpenAI.Enabled() {
		providers = append(providers, ai.NewOpenAIClient(&cfg.AI.OpenAI, logger))
		logger.Info("registered OpenAI provider", zap.String("model", cfg.AI.OpenAI.Model))
	}
	if cfg.AI.HuggingFace.Enabled() {
		providers = append(providers, ai.NewHuggingFaceClient(&cfg.AI.HuggingFace, logger))
		logger.Info("registered HuggingFace provider", zap.String("model", cfg.AI.HuggingFace.Model))
	}

	if len(providers) == 0 {
		logger.Warn("no AI providers configured, free-text replies use the static fallback")
	}

	return providers
}
