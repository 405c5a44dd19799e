package handler

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/adworks/leadbot/internal/config"
	"github.com/adworks/leadbot/internal/service"
)

// ExportHandler serves the passphrase-guarded CSV download of all leads.
type ExportHandler struct {
	leadService *service.LeadService
	cfg         *config.ExportConfig
	logger      *zap.Logger
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(leadService *service.LeadService, cfg *config.ExportConfig, logger *zap.Logger) *ExportHandler {
	if logger == nil {
		panic("logger is required")
	}
	return &ExportHandler{
		leadService: leadService,
		cfg:         cfg,
		logger:      logger,
	}
}

// HandleExport streams the full lead list as a CSV attachment. The endpoint
// pretends not to exist when no passphrase is configured.
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.Enabled() {
		http.NotFound(w, r)
		return
	}

	if !h.passphraseMatches(r.URL.Query().Get("passphrase")) {
		h.logger.Warn("export denied: wrong passphrase",
			zap.String("remote_addr", r.RemoteAddr),
		)
		APIError(w, r, http.StatusForbidden, "forbidden")
		return
	}

	data, err := h.leadService.ExportCSV(r.Context())
	if err != nil {
		h.logger.Error("lead export failed", zap.Error(err))
		AppError(w, r, err)
		return
	}

	filename := fmt.Sprintf("leads_%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// passphraseMatches compares the supplied passphrase against the configured
// one. A configured value starting with "$2" is treated as a bcrypt hash;
// anything else is compared in constant time.
func (h *ExportHandler) passphraseMatches(supplied string) bool {
	if supplied == "" {
		return false
	}
	if strings.HasPrefix(h.cfg.Passphrase, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(h.cfg.Passphrase), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(h.cfg.Passphrase), []byte(supplied)) == 1
}
