package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/middleware"
)

// WebhookAdmin re-registers or removes the Telegram webhook.
type WebhookAdmin interface {
	RegisterWebhook(url string) error
	DeleteWebhook() error
}

// Handler holds all HTTP handlers and their dependencies.
type Handler struct {
	webhook      *WebhookHandler
	health       *HealthHandler
	export       *ExportHandler
	webhookAdmin WebhookAdmin
	webhookURL   string
	telegramPath string
	logLevel     http.Handler
	metrics      http.Handler
	startedAt    time.Time
	logger       *zap.Logger
}

// Config holds the dependencies for the HTTP handler set.
type Config struct {
	Webhook      *WebhookHandler
	Health       *HealthHandler
	Export       *ExportHandler
	WebhookAdmin WebhookAdmin
	// WebhookURL is the public Telegram webhook URL, used by the
	// reset endpoint.
	WebhookURL string
	// TelegramPath is the local route Telegram updates arrive on,
	// without the trailing token segment.
	TelegramPath string
	// LogLevel serves runtime log level queries and changes.
	LogLevel http.Handler
	// Metrics serves the Prometheus scrape endpoint.
	Metrics http.Handler
	Logger  *zap.Logger
}

// New creates a new Handler with all dependencies.
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	return &Handler{
		webhook:      cfg.Webhook,
		health:       cfg.Health,
		export:       cfg.Export,
		webhookAdmin: cfg.WebhookAdmin,
		webhookURL:   cfg.WebhookURL,
		telegramPath: cfg.TelegramPath,
		logLevel:     cfg.LogLevel,
		metrics:      cfg.Metrics,
		startedAt:    time.Now(),
		logger:       cfg.Logger,
	}
}

// RegisterRoutes registers all routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleIndex)

	// Webhook routes
	if h.webhook != nil {
		r.With(middleware.BodySizeLimiter(middleware.MaxJSONBodySize)).
			Post("/webhook/lead", h.webhook.HandleLeadWebhook)
		r.With(middleware.BodySizeLimiter(middleware.MaxWebhookBodySize)).
			Post(h.telegramPath+"/{token}", h.webhook.HandleTelegramWebhook)
	}

	if h.export != nil {
		r.Get("/export/leads.csv", h.export.HandleExport)
	}

	// Operational endpoints
	if h.webhookAdmin != nil {
		r.Post("/reset-webhook", h.HandleResetWebhook)
	}
	if h.logLevel != nil {
		r.Handle("/admin/log-level", h.logLevel)
	}
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	// Health and readiness endpoints
	if h.health != nil {
		r.Get("/health", h.health.HandleHealth)
		r.Get("/ready", h.health.HandleReadiness)
		r.Get("/live", h.health.HandleLiveness)
	}
}

// HandleIndex returns a small service banner.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	JSONWithRequest(w, r, http.StatusOK, map[string]interface{}{
		"service": "leadbot",
		"status":  "running",
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// HandleResetWebhook deletes and re-registers the Telegram webhook. Useful
// after the public URL changes or Telegram reports delivery errors.
func (h *Handler) HandleResetWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.webhookAdmin.DeleteWebhook(); err != nil {
		h.logger.Error("failed to delete webhook", zap.Error(err))
		AppError(w, r, err)
		return
	}
	if err := h.webhookAdmin.RegisterWebhook(h.webhookURL); err != nil {
		h.logger.Error("failed to re-register webhook", zap.Error(err))
		AppError(w, r, err)
		return
	}

	h.logger.Info("webhook re-registered")
	JSONWithRequest(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
