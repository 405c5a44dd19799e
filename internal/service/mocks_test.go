package service

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/adworks/leadbot/internal/domain"
)

var errSendFailed = errors.New("send failed")

// fakeSender records outbound messages and can fail for selected chats.
type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[int64]bool
	// delivered receives one signal per successful send, for tests that
	// wait on asynchronous fan-out.
	delivered chan struct{}
}

type sentMessage struct {
	chatID int64
	text   string
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		failFor:   make(map[int64]bool),
		delivered: make(chan struct{}, 64),
	}
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[chatID] {
		return errSendFailed
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	f.delivered <- struct{}{}
	return nil
}

func (f *fakeSender) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	return f.SendMessage(ctx, chatID, text)
}

func (f *fakeSender) SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) error {
	return f.SendMessage(ctx, chatID, caption)
}

func (f *fakeSender) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	return f.SendMessage(ctx, chatID, caption)
}

func (f *fakeSender) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	return f.SendMessage(ctx, chatID, text)
}

func (f *fakeSender) AnswerCallback(ctx context.Context, callbackID string) error {
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeUserRepo serves a static user list.
type fakeUserRepo struct {
	users  []*domain.RegisteredUser
	allErr error
}

func (f *fakeUserRepo) Register(ctx context.Context, user *domain.RegisteredUser) (*domain.RegisteredUser, bool, error) {
	return user, true, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (*domain.RegisteredUser, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeUserRepo) BumpScore(ctx context.Context, id int64, delta int) error { return nil }

func (f *fakeUserRepo) ReferralCount(ctx context.Context, id int64) (int, error) { return 0, nil }

func (f *fakeUserRepo) DownlineCount(ctx context.Context, id int64) (int, error) { return 0, nil }

func (f *fakeUserRepo) All(ctx context.Context) ([]*domain.RegisteredUser, error) {
	if f.allErr != nil {
		return nil, f.allErr
	}
	return f.users, nil
}

func (f *fakeUserRepo) Count(ctx context.Context) (int, error) { return len(f.users), nil }

// fakeLeadRepo records created leads in memory.
type fakeLeadRepo struct {
	mu        sync.Mutex
	created   []*domain.Lead
	nextID    int64
	createErr error
}

func (f *fakeLeadRepo) Create(ctx context.Context, lead *domain.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	lead.ID = f.nextID
	f.created = append(f.created, lead)
	return nil
}

func (f *fakeLeadRepo) Recent(ctx context.Context, limit int) ([]*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.created)
	out := make([]*domain.Lead, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.created[i])
	}
	return out, nil
}

func (f *fakeLeadRepo) UpdateStatus(ctx context.Context, id int64, status domain.LeadStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.created {
		if l.ID == id {
			l.Status = status
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLeadRepo) Stats(ctx context.Context) (*domain.LeadStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &domain.LeadStats{ByStatus: make(map[domain.LeadStatus]int)}
	for _, l := range f.created {
		stats.Total++
		stats.ByStatus[l.Status]++
	}
	return stats, nil
}

func (f *fakeLeadRepo) ExportRows(ctx context.Context) ([][]string, error) {
	return nil, nil
}
