package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/ai"
	"github.com/adworks/leadbot/internal/clock"
	"github.com/adworks/leadbot/internal/config"
	"github.com/adworks/leadbot/internal/metrics"
	"github.com/adworks/leadbot/internal/service"
)

// stubProvider answers every AI prompt with a fixed reply. The second call
// per message is the classify call, which gets the intent reply.
type stubProvider struct {
	reply  string
	intent string
	calls  int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if strings.Contains(prompt, "Classify the customer message") {
		return s.intent, nil
	}
	return s.reply, nil
}

type harness struct {
	bot          *Bot
	sender       *fakeSender
	users        *fakeUsers
	interactions *fakeInteractions
	leadRepo     *fakeLeads
	followups    *service.FollowupScheduler
	clk          *clock.Mock
	metrics      *metrics.Metrics
}

func newHarness(t *testing.T, cfg *config.TelegramConfig, provider ai.Provider) *harness {
	t.Helper()

	if cfg == nil {
		cfg = &config.TelegramConfig{Token: "test-token"}
	}

	sender := newFakeSender()
	users := newFakeUsers()
	interactions := &fakeInteractions{}
	leadRepo := &fakeLeads{}
	logger := zap.NewNop()
	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())

	notifier := service.NewNotifier(sender, users, cfg.NotifyChatIDs, logger, nil)
	leadSvc := service.NewLeadService(leadRepo, notifier, logger, nil)

	var providers []ai.Provider
	if provider != nil {
		providers = append(providers, provider)
	}
	responder := ai.NewResponder(providers, nil, logger, nil)

	mock := clock.NewMock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	followups := service.NewFollowupScheduler(24*time.Hour, sender, mock, logger, nil)
	t.Cleanup(followups.Stop)

	b := New(Deps{
		Sender:       sender,
		Users:        users,
		Interactions: interactions,
		Leads:        leadSvc,
		Notifier:     notifier,
		Responder:    responder,
		Followups:    followups,
		Config:       cfg,
		BotUsername:  "adworks_bot",
		Logger:       logger,
		Metrics:      m,
	})

	return &harness{
		bot:          b,
		sender:       sender,
		users:        users,
		interactions: interactions,
		leadRepo:     leadRepo,
		followups:    followups,
		clk:          mock,
		metrics:      m,
	}
}

func commandUpdate(chatID, userID int64, text string) *tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.IndexAny(text, " \n"); i >= 0 {
		cmdLen = i
	}
	return &tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 1,
			From:      &tgbotapi.User{ID: userID, FirstName: "Test", UserName: "tester"},
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: cmdLen},
			},
		},
	}
}

func textUpdate(chatID, userID int64, text string) *tgbotapi.Update {
	return &tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 1,
			From:      &tgbotapi.User{ID: userID, FirstName: "Test", UserName: "tester"},
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
		},
	}
}

func callbackUpdate(chatID, userID int64, data string) *tgbotapi.Update {
	return &tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-1",
			From: &tgbotapi.User{ID: userID, FirstName: "Test"},
			Data: data,
			Message: &tgbotapi.Message{
				MessageID: 2,
				Chat:      &tgbotapi.Chat{ID: chatID},
			},
		},
	}
}

func TestStart_RegistersAndWelcomes(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, commandUpdate(10, 10, "/start"))

	if n, _ := h.users.Count(ctx); n != 1 {
		t.Errorf("user count = %d, want 1", n)
	}
	last := h.sender.lastTextFor(10)
	if !strings.Contains(last, "Welcome") {
		t.Errorf("expected welcome message, got %q", last)
	}
}

func TestStart_Idempotent(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, commandUpdate(10, 10, "/start"))
	h.bot.HandleUpdate(ctx, commandUpdate(10, 10, "/start"))

	if n, _ := h.users.Count(ctx); n != 1 {
		t.Errorf("user count = %d after two /start, want 1", n)
	}
	if got := testutil.ToFloat64(h.metrics.UsersRegistered); got != 1 {
		t.Errorf("users registered counter = %v after two /start, want 1", got)
	}
}

func TestStart_ReferralPayload(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, commandUpdate(20, 20, "/start 10"))

	user, err := h.users.GetByID(ctx, 20)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if user.ReferrerID == nil || *user.ReferrerID != 10 {
		t.Errorf("ReferrerID = %v, want 10", user.ReferrerID)
	}
}

func TestStart_CampaignPayload(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, commandUpdate(20, 20, "/start summer_promo"))

	user, err := h.users.GetByID(ctx, 20)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if user.Campaign == nil || *user.Campaign != "summer_promo" {
		t.Errorf("Campaign = %v, want summer_promo", user.Campaign)
	}
}

func TestStart_SchedulesFollowup(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.bot.HandleUpdate(context.Background(), commandUpdate(10, 10, "/start"))

	if h.followups.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", h.followups.Pending())
	}
}

func TestActivity_RearmsFollowup(t *testing.T) {
	h := newHarness(t, nil, &stubProvider{reply: "hi", intent: "general"})
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, commandUpdate(10, 10, "/start"))
	h.bot.HandleUpdate(ctx, textUpdate(10, 10, "question"))

	if h.followups.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1 after reschedule", h.followups.Pending())
	}
	timers := h.clk.Timers()
	if len(timers) != 2 {
		t.Fatalf("expected 2 timers, got %d", len(timers))
	}
	if !timers[0].Stopped() {
		t.Error("first timer should be stopped after activity")
	}
}

func TestUnknownCommand_RepliesHelp(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.bot.HandleUpdate(context.Background(), commandUpdate(10, 10, "/bogus"))

	if got := h.sender.lastTextFor(10); got != msgHelp {
		t.Errorf("expected help text, got %q", got)
	}
}

func TestFreeText_AIReplyScoreAndInteraction(t *testing.T) {
	provider := &stubProvider{reply: "We offer full-service campaigns.", intent: "pricing"}
	h := newHarness(t, nil, provider)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, commandUpdate(10, 10, "/start"))
	h.bot.HandleUpdate(ctx, textUpdate(10, 10, "how much does it cost?"))

	if got := h.sender.lastTextFor(10); got != "We offer full-service campaigns." {
		t.Errorf("reply = %q", got)
	}

	user, _ := h.users.GetByID(ctx, 10)
	if user.Score != 2 {
		t.Errorf("score = %d, want 2 (default 1 + bump 1)", user.Score)
	}

	h.interactions.mu.Lock()
	defer h.interactions.mu.Unlock()
	if len(h.interactions.rows) != 1 {
		t.Fatalf("interaction rows = %d, want 1", len(h.interactions.rows))
	}
	row := h.interactions.rows[0]
	if row.Intent != "pricing" || row.Message != "how much does it cost?" {
		t.Errorf("row = %+v", row)
	}
}

func TestFreeText_NoSenderStillReplies(t *testing.T) {
	// Channel posts and anonymous admin messages have no From; the bot
	// must answer without recording a score or an interaction.
	h := newHarness(t, nil, &stubProvider{reply: "hi there", intent: "general"})
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, &tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 1,
			Chat:      &tgbotapi.Chat{ID: 10},
			Text:      "hello",
		},
	})

	if got := h.sender.lastTextFor(10); got != "hi there" {
		t.Errorf("reply = %q, want AI reply", got)
	}
	h.interactions.mu.Lock()
	defer h.interactions.mu.Unlock()
	if len(h.interactions.rows) != 0 {
		t.Errorf("interaction rows = %d, want 0 for anonymous message", len(h.interactions.rows))
	}
}

func TestCommands_NoSenderDoNotPanic(t *testing.T) {
	cfg := &config.TelegramConfig{Token: "t", AdminIDs: []int64{99}}
	h := newHarness(t, cfg, nil)
	ctx := context.Background()

	for _, cmd := range []string{"/myscore", "/qr", "/export", "/broadcast hi"} {
		upd := commandUpdate(10, 0, cmd)
		upd.Message.From = nil
		h.bot.HandleUpdate(ctx, upd)
	}

	if len(h.sender.docs) != 0 {
		t.Error("export served to message without sender")
	}
	if got := h.sender.lastTextFor(1); got != "" {
		t.Errorf("broadcast delivered for message without sender: %q", got)
	}
}

func TestFreeText_NoProvidersStillReplies(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.bot.HandleUpdate(context.Background(), textUpdate(10, 10, "hello?"))

	if got := h.sender.lastTextFor(10); got != ai.FallbackReply {
		t.Errorf("reply = %q, want static fallback", got)
	}
}

func TestExport_NonAdminDenied(t *testing.T) {
	cfg := &config.TelegramConfig{Token: "t", AdminIDs: []int64{99}}
	h := newHarness(t, cfg, nil)

	h.bot.HandleUpdate(context.Background(), commandUpdate(10, 10, "/export"))

	if got := h.sender.lastTextFor(10); got != msgNotAdmin {
		t.Errorf("expected admin denial, got %q", got)
	}
	if len(h.sender.docs) != 0 {
		t.Error("document sent to non-admin")
	}
}

func TestExport_AdminReceivesCSV(t *testing.T) {
	cfg := &config.TelegramConfig{Token: "t", AdminIDs: []int64{99}}
	h := newHarness(t, cfg, nil)

	h.bot.HandleUpdate(context.Background(), commandUpdate(99, 99, "/export"))

	if len(h.sender.docs) != 1 {
		t.Fatalf("docs sent = %d, want 1", len(h.sender.docs))
	}
	doc := h.sender.docs[0]
	if !strings.HasSuffix(doc.filename, ".csv") {
		t.Errorf("filename = %q", doc.filename)
	}
	if !strings.HasPrefix(string(doc.data), "id,name,phone") {
		t.Errorf("csv header missing: %q", string(doc.data))
	}
}

func TestBroadcast_AdminOnly(t *testing.T) {
	cfg := &config.TelegramConfig{Token: "t", AdminIDs: []int64{99}, NotifyChatIDs: []int64{1, 2}}
	h := newHarness(t, cfg, nil)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, commandUpdate(10, 10, "/broadcast hello"))
	if got := h.sender.lastTextFor(10); got != msgNotAdmin {
		t.Errorf("expected admin denial, got %q", got)
	}

	h.bot.HandleUpdate(ctx, commandUpdate(99, 99, "/broadcast hello everyone"))
	if got := h.sender.lastTextFor(99); !strings.Contains(got, "2 recipients") {
		t.Errorf("expected delivery summary, got %q", got)
	}
	if got := h.sender.lastTextFor(1); !strings.Contains(got, "hello everyone") {
		t.Errorf("broadcast not delivered: %q", got)
	}
}

func TestBroadcast_EmptyTextUsage(t *testing.T) {
	cfg := &config.TelegramConfig{Token: "t", AdminIDs: []int64{99}}
	h := newHarness(t, cfg, nil)

	h.bot.HandleUpdate(context.Background(), commandUpdate(99, 99, "/broadcast"))

	if got := h.sender.lastTextFor(99); got != msgBroadcastUsage {
		t.Errorf("expected usage hint, got %q", got)
	}
}

func TestQR_SendsPhotoWithReferralLink(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.bot.HandleUpdate(context.Background(), commandUpdate(10, 10, "/qr"))

	if len(h.sender.photos) != 1 {
		t.Fatalf("photos sent = %d, want 1", len(h.sender.photos))
	}
	photo := h.sender.photos[0]
	if !strings.Contains(photo.caption, "https://t.me/adworks_bot?start=10") {
		t.Errorf("caption = %q", photo.caption)
	}
	if len(photo.photo) == 0 {
		t.Error("empty photo payload")
	}
}

func TestMyScore(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, commandUpdate(10, 10, "/start"))
	h.bot.HandleUpdate(ctx, commandUpdate(20, 20, "/start 10"))
	h.bot.HandleUpdate(ctx, commandUpdate(10, 10, "/myscore"))

	got := h.sender.lastTextFor(10)
	if !strings.Contains(got, "score: 1") {
		t.Errorf("score missing from %q", got)
	}
	if !strings.Contains(got, "Direct referrals: 1") {
		t.Errorf("referral count missing from %q", got)
	}
}

func TestCallback_ViewStats(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.bot.HandleUpdate(context.Background(), callbackUpdate(10, 10, "view_stats"))

	if got := h.sender.lastTextFor(10); !strings.Contains(got, "Lead statistics") {
		t.Errorf("expected stats, got %q", got)
	}
}

func TestStatus_ReportsSystemInfo(t *testing.T) {
	h := newHarness(t, nil, &stubProvider{reply: "x", intent: "general"})

	h.bot.HandleUpdate(context.Background(), commandUpdate(10, 10, "/status"))

	got := h.sender.lastTextFor(10)
	for _, want := range []string{"Uptime", "Registered users", "AI"} {
		if !strings.Contains(got, want) {
			t.Errorf("status %q missing %q", got, want)
		}
	}
}
