package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/domain"
	apperrors "github.com/adworks/leadbot/internal/errors"
	"github.com/adworks/leadbot/internal/metrics"
	"github.com/adworks/leadbot/internal/middleware"
	"github.com/adworks/leadbot/internal/service"
)

// updateTimeout bounds the background processing of one Telegram update.
const updateTimeout = 60 * time.Second

// UpdateHandler consumes Telegram updates pushed to the webhook.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *tgbotapi.Update)
}

// WebhookHandler handles incoming webhooks: site lead submissions and
// Telegram update pushes.
type WebhookHandler struct {
	leadService *service.LeadService
	bot         UpdateHandler
	botToken    string
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// WebhookHandlerConfig holds configuration for WebhookHandler.
type WebhookHandlerConfig struct {
	LeadService *service.LeadService
	Bot         UpdateHandler
	BotToken    string
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// NewWebhookHandler creates a new WebhookHandler with all required dependencies.
func NewWebhookHandler(cfg WebhookHandlerConfig) *WebhookHandler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	return &WebhookHandler{
		leadService: cfg.LeadService,
		bot:         cfg.Bot,
		botToken:    cfg.BotToken,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// leadRequest is the JSON payload for site lead submissions.
type leadRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Email  string `json:"email"`
	Source string `json:"source"`
	Notes  string `json:"notes"`
}

// HandleLeadWebhook processes a lead submitted by the marketing site.
func (h *WebhookHandler) HandleLeadWebhook(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerWithCorrelation(r.Context(), h.logger)

	var req leadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("malformed lead payload", zap.Error(err))
		AppError(w, r, apperrors.ValidationFailed("invalid JSON body"))
		return
	}

	lead, err := domain.NewLead(req.Name, req.Phone, req.Email, req.Source, req.Notes)
	if err != nil {
		AppError(w, r, err)
		return
	}

	if err := h.leadService.Create(r.Context(), lead); err != nil {
		logger.Error("failed to store webhook lead", zap.Error(err))
		AppError(w, r, err)
		return
	}

	logger.Info("webhook lead captured",
		zap.Int64("lead_id", lead.ID),
		zap.String("source", lead.Source),
	)

	JSONWithRequest(w, r, http.StatusCreated, map[string]interface{}{
		"status":  "ok",
		"lead_id": lead.ID,
	})
}

// HandleTelegramWebhook processes an update pushed by the Telegram bot API.
// It always answers 200 so Telegram does not retry; processing happens in
// the background.
func (h *WebhookHandler) HandleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.botToken)) != 1 {
		h.logger.Warn("telegram webhook called with wrong token")
		APIError(w, r, http.StatusNotFound, "not found")
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn("malformed telegram update", zap.Error(err))
		if h.metrics != nil {
			h.metrics.RecordUpdate("malformed")
		}
		JSONWithRequest(w, r, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	if h.bot != nil {
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					h.logger.Error("update handler panicked",
						zap.Any("panic", rec),
						zap.Int("update_id", update.UpdateID),
						zap.String("stack", string(debug.Stack())),
					)
				}
			}()
			ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
			defer cancel()
			h.bot.HandleUpdate(ctx, &update)
		}()
	}

	JSONWithRequest(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
