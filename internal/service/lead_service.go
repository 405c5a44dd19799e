package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/domain"
	"github.com/adworks/leadbot/internal/metrics"
)

// LeadService persists new leads and fans out the team notification. It is
// the single entry point for both web-form and chat-wizard captures.
type LeadService struct {
	leads    domain.LeadRepository
	notifier *Notifier
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewLeadService creates a LeadService. metrics may be nil.
func NewLeadService(leads domain.LeadRepository, notifier *Notifier, logger *zap.Logger, m *metrics.Metrics) *LeadService {
	return &LeadService{
		leads:    leads,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
	}
}

// Create stores the lead and kicks off the notification fan-out in the
// background. The caller gets its response as soon as the row is written; a
// slow or failing Telegram API never delays lead capture.
func (s *LeadService) Create(ctx context.Context, lead *domain.Lead) error {
	if err := s.leads.Create(ctx, lead); err != nil {
		return err
	}

	s.logger.Info("lead captured",
		zap.Int64("lead_id", lead.ID),
		zap.String("source", lead.Source),
	)
	if s.metrics != nil {
		s.metrics.RecordLeadCreated(lead.Source)
	}

	go s.notify(lead)

	return nil
}

// Recent returns the newest leads.
func (s *LeadService) Recent(ctx context.Context, limit int) ([]*domain.Lead, error) {
	return s.leads.Recent(ctx, limit)
}

// Stats returns aggregate lead counts.
func (s *LeadService) Stats(ctx context.Context) (*domain.LeadStats, error) {
	return s.leads.Stats(ctx)
}

// UpdateStatus moves a lead through the pipeline. Returns false when the
// lead does not exist.
func (s *LeadService) UpdateStatus(ctx context.Context, id int64, status domain.LeadStatus) (bool, error) {
	return s.leads.UpdateStatus(ctx, id, status)
}

// ExportCSV renders every lead as CSV with the fixed header row.
func (s *LeadService) ExportCSV(ctx context.Context) ([]byte, error) {
	rows, err := s.leads.ExportRows(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(domain.ExportHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *LeadService) notify(lead *domain.Lead) {
	if s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var exclude int64
	if lead.AddedBy != nil {
		// The capturing user gets a confirmation from the wizard instead.
		exclude = *lead.AddedBy
	}

	s.notifier.NotifyAll(ctx, newLeadMessage(lead), exclude)
}

func newLeadMessage(lead *domain.Lead) string {
	msg := fmt.Sprintf("📬 *New lead #%d*\n👤 %s\n📞 %s\n🏷 %s", lead.ID, lead.Name, lead.Phone, lead.Source)
	if lead.Email != nil {
		msg += "\n✉️ " + *lead.Email
	}
	if lead.Notes != nil {
		msg += "\n📝 " + *lead.Notes
	}
	return msg
}
