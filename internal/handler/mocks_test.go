package handler

import (
	"context"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/adworks/leadbot/internal/domain"
)

type fakeLeadRepo struct {
	mu     sync.Mutex
	leads  []*domain.Lead
	nextID int64
	err    error
}

func (r *fakeLeadRepo) Create(ctx context.Context, lead *domain.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.nextID++
	lead.ID = r.nextID
	r.leads = append(r.leads, lead)
	return nil
}

func (r *fakeLeadRepo) Recent(ctx context.Context, limit int) ([]*domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]*domain.Lead, 0, len(r.leads))
	for i := len(r.leads) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.leads[i])
	}
	return out, nil
}

func (r *fakeLeadRepo) UpdateStatus(ctx context.Context, id int64, status domain.LeadStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leads {
		if l.ID == id {
			l.Status = status
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeLeadRepo) Stats(ctx context.Context) (*domain.LeadStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &domain.LeadStats{Total: len(r.leads)}, nil
}

func (r *fakeLeadRepo) ExportRows(ctx context.Context) ([][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	rows := make([][]string, 0, len(r.leads))
	for _, l := range r.leads {
		rows = append(rows, []string{
			strconv.FormatInt(l.ID, 10), l.Name, l.Phone, "", l.Source, "", string(l.Status), "", "",
		})
	}
	return rows, nil
}

func (r *fakeLeadRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leads)
}

type fakeUpdateHandler struct {
	updates chan *tgbotapi.Update
}

func newFakeUpdateHandler() *fakeUpdateHandler {
	return &fakeUpdateHandler{updates: make(chan *tgbotapi.Update, 16)}
}

func (f *fakeUpdateHandler) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	f.updates <- update
}

type fakeHealthChecker struct {
	err error
}

func (f *fakeHealthChecker) Ping(ctx context.Context) error { return f.err }

type fakeWebhookAdmin struct {
	mu         sync.Mutex
	deleted    int
	registered []string
	err        error
}

func (f *fakeWebhookAdmin) RegisterWebhook(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.registered = append(f.registered, url)
	return nil
}

func (f *fakeWebhookAdmin) DeleteWebhook() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted++
	return nil
}
