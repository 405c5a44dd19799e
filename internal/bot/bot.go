// Package bot drives the Telegram conversation: commands, inline keyboard
// callbacks, the lead-capture wizard, and free-text AI replies.
package bot

import (
	"context"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/ai"
	"github.com/adworks/leadbot/internal/config"
	"github.com/adworks/leadbot/internal/domain"
	"github.com/adworks/leadbot/internal/metrics"
	"github.com/adworks/leadbot/internal/service"
	"github.com/adworks/leadbot/internal/telegram"
)

type commandFunc func(ctx context.Context, msg *tgbotapi.Message) error

type callbackFunc func(ctx context.Context, cb *tgbotapi.CallbackQuery) error

type stepFunc func(ctx context.Context, msg *tgbotapi.Message, sess Session) error

// Bot handles decoded Telegram updates.
type Bot struct {
	sender       telegram.Sender
	users        domain.UserRepository
	interactions domain.InteractionRepository
	leads        *service.LeadService
	notifier     *service.Notifier
	responder    *ai.Responder
	followups    *service.FollowupScheduler
	sessions     *SessionStore

	cfg         *config.TelegramConfig
	botUsername string
	startedAt   time.Time

	logger  *zap.Logger
	metrics *metrics.Metrics

	commands  map[string]commandFunc
	callbacks map[string]callbackFunc
	steps     map[State]stepFunc
}

// Deps bundles the bot's collaborators.
type Deps struct {
	Sender       telegram.Sender
	Users        domain.UserRepository
	Interactions domain.InteractionRepository
	Leads        *service.LeadService
	Notifier     *service.Notifier
	Responder    *ai.Responder
	// Followups may be nil when the scheduler is disabled.
	Followups   *service.FollowupScheduler
	Config      *config.TelegramConfig
	BotUsername string
	Logger      *zap.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// New wires a Bot and its dispatch tables.
func New(d Deps) *Bot {
	b := &Bot{
		sender:       d.Sender,
		users:        d.Users,
		interactions: d.Interactions,
		leads:        d.Leads,
		notifier:     d.Notifier,
		responder:    d.Responder,
		followups:    d.Followups,
		sessions:     NewSessionStore(),
		cfg:          d.Config,
		botUsername:  d.BotUsername,
		startedAt:    time.Now(),
		logger:       d.Logger,
		metrics:      d.Metrics,
	}

	b.commands = map[string]commandFunc{
		"start":     b.handleStart,
		"help":      b.handleHelp,
		"newlead":   b.handleNewLead,
		"cancel":    b.handleCancel,
		"leads":     b.handleLeads,
		"stats":     b.handleStats,
		"status":    b.handleStatus,
		"myscore":   b.handleMyScore,
		"qr":        b.handleQR,
		"export":    b.handleExport,
		"broadcast": b.handleBroadcast,
	}

	b.callbacks = map[string]callbackFunc{
		"view_leads":  b.callbackViewLeads,
		"view_stats":  b.callbackViewStats,
		"add_lead":    b.callbackAddLead,
		"system_info": b.callbackSystemInfo,
		"cancel":      b.callbackCancel,
	}

	b.steps = map[State]stepFunc{
		StateAwaitingName:  b.stepName,
		StateAwaitingPhone: b.stepPhone,
		StateAwaitingEmail: b.stepEmail,
	}

	return b
}

// Sessions exposes the session store for health reporting.
func (b *Bot) Sessions() *SessionStore { return b.sessions }

// CommandMenu returns the command list published to the Telegram client.
func CommandMenu() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "start", Description: "Start the bot"},
		{Command: "help", Description: "Show available commands"},
		{Command: "newlead", Description: "Add a new lead"},
		{Command: "leads", Description: "Show latest leads"},
		{Command: "stats", Description: "Lead statistics"},
		{Command: "status", Description: "Service status"},
		{Command: "myscore", Description: "Your score and referrals"},
		{Command: "qr", Description: "Personal referral QR code"},
		{Command: "cancel", Description: "Cancel current operation"},
	}
}

// HandleUpdate routes one decoded update. Errors are logged, never returned
// to the webhook caller.
func (b *Bot) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	var err error

	switch {
	case update.Message != nil && update.Message.IsCommand():
		b.recordUpdate("command")
		err = b.handleCommand(ctx, update.Message)

	case update.Message != nil && update.Message.Text != "":
		b.recordUpdate("message")
		err = b.handleText(ctx, update.Message)

	case update.CallbackQuery != nil:
		b.recordUpdate("callback")
		err = b.handleCallback(ctx, update.CallbackQuery)

	default:
		b.recordUpdate("other")
	}

	if err != nil {
		b.logger.Error("update handling failed",
			zap.Int("update_id", update.UpdateID),
			zap.Error(err),
		)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	cmd := msg.Command()

	handler, ok := b.commands[cmd]
	if !ok {
		// Unknown commands get the help text, never an error.
		return b.sender.SendMessage(ctx, msg.Chat.ID, msgHelp)
	}

	if b.metrics != nil {
		b.metrics.RecordCommand(cmd)
	}

	b.ensureRegistered(ctx, msg)
	b.touch(msg.Chat.ID)

	return handler(ctx, msg)
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) error {
	b.ensureRegistered(ctx, msg)
	b.touch(msg.Chat.ID)

	sess := b.sessions.Get(msg.Chat.ID)
	if step, ok := b.steps[sess.State]; ok {
		return step(ctx, msg, sess)
	}

	return b.handleFreeText(ctx, msg)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if b.metrics != nil {
		b.metrics.RecordCallback()
	}

	// Ack first so the client stops the spinner even if handling fails.
	if err := b.sender.AnswerCallback(ctx, cb.ID); err != nil {
		b.logger.Warn("callback ack failed", zap.Error(err))
	}

	if cb.Message == nil {
		return nil
	}

	b.touch(cb.Message.Chat.ID)

	handler, ok := b.callbacks[cb.Data]
	if !ok {
		return b.sender.SendMessage(ctx, cb.Message.Chat.ID, msgHelp)
	}
	return handler(ctx, cb)
}

// handleFreeText answers an idle-chat message through the AI responder,
// bumps the sender's score, and logs the interaction with an intent label.
func (b *Bot) handleFreeText(ctx context.Context, msg *tgbotapi.Message) error {
	reply := b.responder.Respond(ctx, msg.Text)

	if err := b.sender.SendMessage(ctx, msg.Chat.ID, reply); err != nil {
		return err
	}

	// Channel posts and some service messages carry no sender; the reply
	// above is all we can do for those.
	if msg.From == nil {
		return nil
	}

	userID := msg.From.ID
	if err := b.users.BumpScore(ctx, userID, 1); err != nil {
		b.logger.Warn("score bump failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	intent := b.responder.Classify(ctx, msg.Text)
	interaction := &domain.Interaction{
		UserID:    userID,
		Message:   msg.Text,
		Intent:    intent,
		CreatedAt: time.Now().UTC(),
	}
	if err := b.interactions.Create(ctx, interaction); err != nil {
		b.logger.Warn("interaction log failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	return nil
}

// ensureRegistered upserts the sender into the user registry. Referral and
// campaign payloads are only honored on /start; everywhere else this is a
// plain idempotent insert.
func (b *Bot) ensureRegistered(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	user, err := domain.NewRegisteredUser(msg.From.ID, displayName(msg.From), msg.From.UserName)
	if err != nil {
		return
	}

	if msg.Command() == "start" {
		if payload := msg.CommandArguments(); payload != "" {
			if referrerID, err := strconv.ParseInt(payload, 10, 64); err == nil {
				user.WithReferrer(referrerID)
			} else {
				user.WithCampaign(payload)
			}
		}
	}

	_, created, err := b.users.Register(ctx, user)
	if err != nil {
		b.logger.Warn("user registration failed",
			zap.Int64("user_id", msg.From.ID),
			zap.Error(err),
		)
		return
	}
	if created && b.metrics != nil {
		b.metrics.RecordUserRegistered()
	}
}

// touch re-arms the follow-up timer: any activity resets the 24h countdown.
func (b *Bot) touch(chatID int64) {
	if b.followups != nil {
		b.followups.Schedule(chatID)
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.cfg.IsAdmin(userID)
}

func displayName(u *tgbotapi.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}
