package bot

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/adworks/leadbot/internal/domain"
	apperrors "github.com/adworks/leadbot/internal/errors"
)

// fakeSender records every outbound message.
type fakeSender struct {
	mu     sync.Mutex
	texts  []sentText
	photos []sentPhoto
	docs   []sentDoc
}

type sentText struct {
	chatID   int64
	text     string
	keyboard bool
}

type sentPhoto struct {
	chatID  int64
	photo   []byte
	caption string
}

type sentDoc struct {
	chatID   int64
	filename string
	data     []byte
	caption  string
}

func newFakeSender() *fakeSender { return &fakeSender{} }

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sentText{chatID: chatID, text: text})
	return nil
}

func (f *fakeSender) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sentText{chatID: chatID, text: text, keyboard: true})
	return nil
}

func (f *fakeSender) SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, sentPhoto{chatID: chatID, photo: photo, caption: caption})
	return nil
}

func (f *fakeSender) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, sentDoc{chatID: chatID, filename: filename, data: data, caption: caption})
	return nil
}

func (f *fakeSender) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	return f.SendMessage(ctx, chatID, text)
}

func (f *fakeSender) AnswerCallback(ctx context.Context, callbackID string) error { return nil }

// textsFor returns the messages delivered to one chat.
func (f *fakeSender) textsFor(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, t := range f.texts {
		if t.chatID == chatID {
			out = append(out, t.text)
		}
	}
	return out
}

func (f *fakeSender) lastTextFor(chatID int64) string {
	msgs := f.textsFor(chatID)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

// fakeUsers is an in-memory domain.UserRepository.
type fakeUsers struct {
	mu       sync.Mutex
	users    map[int64]*domain.RegisteredUser
	scoreCap int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[int64]*domain.RegisteredUser), scoreCap: 100}
}

func (f *fakeUsers) Register(ctx context.Context, user *domain.RegisteredUser) (*domain.RegisteredUser, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.users[user.ID]; ok {
		return existing, false, nil
	}
	f.users[user.ID] = user
	return user, true, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id int64) (*domain.RegisteredUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, apperrors.NotFound("user")
}

func (f *fakeUsers) BumpScore(ctx context.Context, id int64, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.Score += delta
		if u.Score > f.scoreCap {
			u.Score = f.scoreCap
		}
	}
	return nil
}

func (f *fakeUsers) ReferralCount(ctx context.Context, id int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.users {
		if u.ReferrerID != nil && *u.ReferrerID == id {
			n++
		}
	}
	return n, nil
}

func (f *fakeUsers) DownlineCount(ctx context.Context, id int64) (int, error) {
	// Direct referrals only; deep chains are covered by repository tests.
	return f.ReferralCount(ctx, id)
}

func (f *fakeUsers) All(ctx context.Context) ([]*domain.RegisteredUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.RegisteredUser, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsers) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

// fakeInteractions records interaction rows.
type fakeInteractions struct {
	mu      sync.Mutex
	rows    []*domain.Interaction
	nextErr error
}

func (f *fakeInteractions) Create(ctx context.Context, interaction *domain.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nextErr != nil {
		err := f.nextErr
		f.nextErr = nil
		return err
	}
	f.rows = append(f.rows, interaction)
	return nil
}

func (f *fakeInteractions) CountSince(ctx context.Context, hours int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows), nil
}

// fakeLeads is an in-memory domain.LeadRepository.
type fakeLeads struct {
	mu        sync.Mutex
	created   []*domain.Lead
	nextID    int64
	createErr error
}

func (f *fakeLeads) Create(ctx context.Context, lead *domain.Lead) error {
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

func (f *fakeLeads) Recent(ctx context.Context, limit int) ([]*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Lead, 0, limit)
	for i := len(f.created) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.created[i])
	}
	return out, nil
}

func (f *fakeLeads) UpdateStatus(ctx context.Context, id int64, status domain.LeadStatus) (bool, error) {
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

func (f *fakeLeads) Stats(ctx context.Context) (*domain.LeadStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &domain.LeadStats{ByStatus: make(map[domain.LeadStatus]int)}
	for _, l := range f.created {
		stats.Total++
		stats.ByStatus[l.Status]++
	}
	return stats, nil
}

func (f *fakeLeads) ExportRows(ctx context.Context) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows [][]string
	for _, l := range f.created {
		rows = append(rows, []string{l.Name, l.Phone})
	}
	return rows, nil
}

func (f *fakeLeads) all() []*domain.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Lead, len(f.created))
	copy(out, f.created)
	return out
}

var errBoom = errors.New("boom")
