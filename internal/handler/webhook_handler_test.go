package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/service"
)

const testBotToken = "123456:test-token"

func newWebhookRouter(t *testing.T, repo *fakeLeadRepo, bot UpdateHandler) chi.Router {
	t.Helper()

	leadService := service.NewLeadService(repo, nil, zap.NewNop(), nil)
	wh := NewWebhookHandler(WebhookHandlerConfig{
		LeadService: leadService,
		Bot:         bot,
		BotToken:    testBotToken,
		Logger:      zap.NewNop(),
	})

	h := New(Config{
		Webhook:      wh,
		TelegramPath: "/webhook/telegram",
		Logger:       zap.NewNop(),
	})

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestHandleLeadWebhook_CreatesLead(t *testing.T) {
	repo := &fakeLeadRepo{}
	router := newWebhookRouter(t, repo, nil)

	body := `{"name":"Alice","phone":"+15551234567","email":"alice@example.com","source":"landing"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/lead", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %v", resp["status"])
	}
	if resp["lead_id"] != float64(1) {
		t.Errorf("expected lead_id 1, got %v", resp["lead_id"])
	}

	if repo.count() != 1 {
		t.Errorf("expected 1 stored lead, got %d", repo.count())
	}
}

func TestHandleLeadWebhook_MissingPhone(t *testing.T) {
	repo := &fakeLeadRepo{}
	router := newWebhookRouter(t, repo, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/lead", strings.NewReader(`{"name":"Alice"}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if repo.count() != 0 {
		t.Errorf("expected no stored leads, got %d", repo.count())
	}
	if !strings.Contains(rr.Body.String(), "phone") {
		t.Errorf("expected error to name the missing field, got %s", rr.Body.String())
	}
}

func TestHandleLeadWebhook_MalformedJSON(t *testing.T) {
	router := newWebhookRouter(t, &fakeLeadRepo{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/lead", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestHandleTelegramWebhook_WrongToken(t *testing.T) {
	router := newWebhookRouter(t, &fakeLeadRepo{}, newFakeUpdateHandler())

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram/wrong-token", strings.NewReader(`{"update_id":1}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestHandleTelegramWebhook_DispatchesUpdate(t *testing.T) {
	bot := newFakeUpdateHandler()
	router := newWebhookRouter(t, &fakeLeadRepo{}, bot)

	body := `{"update_id":42,"message":{"message_id":1,"chat":{"id":7},"text":"hi"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram/"+testBotToken, strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	select {
	case update := <-bot.updates:
		if update.UpdateID != 42 {
			t.Errorf("expected update ID 42, got %d", update.UpdateID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("update was not dispatched to the bot")
	}
}

// panickingUpdateHandler simulates a bot bug that panics mid-update.
type panickingUpdateHandler struct {
	called chan struct{}
}

func (p *panickingUpdateHandler) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	close(p.called)
	panic("update handler bug")
}

func TestHandleTelegramWebhook_SurvivesHandlerPanic(t *testing.T) {
	bot := &panickingUpdateHandler{called: make(chan struct{})}
	router := newWebhookRouter(t, &fakeLeadRepo{}, bot)

	body := `{"update_id":7,"message":{"message_id":1,"chat":{"id":10},"text":"hello"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram/"+testBotToken, strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	select {
	case <-bot.called:
	case <-time.After(2 * time.Second):
		t.Fatal("update was not dispatched to the bot")
	}
	// Give the dispatch goroutine a moment to unwind. Without the recover
	// in place the panic would take down the test binary here.
	time.Sleep(50 * time.Millisecond)
}

func TestHandleTelegramWebhook_MalformedBodyStillOK(t *testing.T) {
	bot := newFakeUpdateHandler()
	router := newWebhookRouter(t, &fakeLeadRepo{}, bot)

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram/"+testBotToken, strings.NewReader("garbage"))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status %d for malformed update, got %d", http.StatusOK, rr.Code)
	}

	select {
	case <-bot.updates:
		t.Error("malformed update should not reach the bot")
	case <-time.After(50 * time.Millisecond):
	}
}
