package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/circuitbreaker"
)

// HealthChecker defines the interface for checking database health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// AIStatusReporter reports the state of the AI responder.
type AIStatusReporter interface {
	Enabled() bool
	BreakerStats() []circuitbreaker.Stats
}

// WebhookReporter reports the registered Telegram webhook state.
type WebhookReporter interface {
	WebhookInfo() (tgbotapi.WebhookInfo, error)
}

// ReadyChecker reports whether the process is accepting traffic.
type ReadyChecker interface {
	IsReady() bool
}

// HealthHandler handles health check HTTP requests.
type HealthHandler struct {
	healthChecker HealthChecker
	aiStatus      AIStatusReporter
	webhook       WebhookReporter
	ready         ReadyChecker
	logger        *zap.Logger
}

// HealthHandlerConfig holds configuration for HealthHandler.
type HealthHandlerConfig struct {
	HealthChecker HealthChecker
	AIStatus      AIStatusReporter
	Webhook       WebhookReporter
	Ready         ReadyChecker
	Logger        *zap.Logger
}

// NewHealthHandler creates a new HealthHandler with all required dependencies.
func NewHealthHandler(cfg HealthHandlerConfig) *HealthHandler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	return &HealthHandler{
		healthChecker: cfg.HealthChecker,
		aiStatus:      cfg.AIStatus,
		webhook:       cfg.Webhook,
		ready:         cfg.Ready,
		logger:        cfg.Logger,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentHealth `json:"checks,omitempty"`
}

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HandleHealth returns a health check response including all service dependencies.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status: "ok",
		Checks: make(map[string]ComponentHealth),
	}

	hasCriticalFailure := false
	hasDegradation := false

	// Database connectivity is the critical dependency.
	if h.healthChecker != nil {
		if err := h.healthChecker.Ping(ctx); err != nil {
			hasCriticalFailure = true
			response.Checks["database"] = ComponentHealth{
				Status:  "unhealthy",
				Message: err.Error(),
			}
			h.logger.Error("database health check failed", zap.Error(err))
		} else {
			response.Checks["database"] = ComponentHealth{
				Status: "healthy",
			}
		}
	}

	// AI is optional: open breakers degrade service but free-text chat
	// falls back to a static reply.
	if h.aiStatus != nil {
		response.Checks["ai"] = h.aiHealth(&hasDegradation)
	}

	if h.webhook != nil {
		response.Checks["telegram_webhook"] = h.webhookHealth(&hasDegradation)
	}

	if hasCriticalFailure {
		response.Status = "unhealthy"
	} else if hasDegradation {
		response.Status = "degraded"
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	JSONWithRequest(w, r, statusCode, response)
}

func (h *HealthHandler) aiHealth(hasDegradation *bool) ComponentHealth {
	if !h.aiStatus.Enabled() {
		return ComponentHealth{
			Status:  "disabled",
			Message: "no AI providers configured",
		}
	}

	stats := h.aiStatus.BreakerStats()
	open := 0
	for _, s := range stats {
		if s.State == circuitbreaker.StateOpen.String() {
			open++
		}
	}

	if open == len(stats) && len(stats) > 0 {
		*hasDegradation = true
		return ComponentHealth{
			Status:  "degraded",
			Message: "all provider circuit breakers open",
		}
	}
	if open > 0 {
		return ComponentHealth{
			Status:  "healthy",
			Message: fmt.Sprintf("%d of %d providers unavailable", open, len(stats)),
		}
	}
	return ComponentHealth{Status: "healthy"}
}

func (h *HealthHandler) webhookHealth(hasDegradation *bool) ComponentHealth {
	info, err := h.webhook.WebhookInfo()
	if err != nil {
		*hasDegradation = true
		h.logger.Warn("webhook info check failed", zap.Error(err))
		return ComponentHealth{
			Status:  "degraded",
			Message: err.Error(),
		}
	}
	if info.URL == "" {
		*hasDegradation = true
		return ComponentHealth{
			Status:  "degraded",
			Message: "no webhook registered",
		}
	}
	if info.LastErrorDate != 0 {
		return ComponentHealth{
			Status:  "healthy",
			Message: fmt.Sprintf("last delivery error: %s", info.LastErrorMessage),
		}
	}
	return ComponentHealth{Status: "healthy"}
}

// HandleReadiness returns a readiness probe response. It fails while the
// process is draining or when the database is unreachable.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil && !h.ready.IsReady() {
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.healthChecker != nil {
		if err := h.healthChecker.Ping(ctx); err != nil {
			h.logger.Error("readiness check failed", zap.Error(err))
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// HandleLiveness returns a simple liveness probe response.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
