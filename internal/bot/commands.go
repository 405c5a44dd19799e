package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/domain"
	"github.com/adworks/leadbot/internal/qr"
	"github.com/adworks/leadbot/internal/telegram"
)

func mainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 Leads", "view_leads"),
			tgbotapi.NewInlineKeyboardButtonData("📊 Stats", "view_stats"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Add lead", "add_lead"),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ System", "system_info"),
		),
	)
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	return b.sender.SendMessageWithKeyboard(ctx, msg.Chat.ID, msgWelcome, mainMenu())
}

func (b *Bot) handleHelp(ctx context.Context, msg *tgbotapi.Message) error {
	return b.sender.SendMessage(ctx, msg.Chat.ID, msgHelp)
}

func (b *Bot) handleNewLead(ctx context.Context, msg *tgbotapi.Message) error {
	return b.beginWizard(ctx, msg.Chat.ID)
}

func (b *Bot) handleCancel(ctx context.Context, msg *tgbotapi.Message) error {
	sess := b.sessions.Get(msg.Chat.ID)
	if sess.State == StateIdle {
		return b.sender.SendMessage(ctx, msg.Chat.ID, msgNothingToCancel)
	}

	b.sessions.Reset(msg.Chat.ID)
	if b.metrics != nil {
		b.metrics.RecordWizardOutcome("canceled")
	}
	return b.sender.SendMessage(ctx, msg.Chat.ID, msgCanceled)
}

func (b *Bot) handleLeads(ctx context.Context, msg *tgbotapi.Message) error {
	return b.sendRecentLeads(ctx, msg.Chat.ID)
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	return b.sendStats(ctx, msg.Chat.ID)
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) error {
	return b.sendSystemInfo(ctx, msg.Chat.ID)
}

func (b *Bot) handleMyScore(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return b.sender.SendMessage(ctx, msg.Chat.ID, msgHelp)
	}
	userID := msg.From.ID

	user, err := b.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	referrals, err := b.users.ReferralCount(ctx, userID)
	if err != nil {
		return err
	}
	downline, err := b.users.DownlineCount(ctx, userID)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"🏆 *Your score: %d*\n\n👥 Direct referrals: %d\n🌳 Total network: %d\n\nShare your /qr code to grow your network!",
		user.Score, referrals, downline,
	)
	return b.sender.SendMessage(ctx, msg.Chat.ID, text)
}

func (b *Bot) handleQR(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return b.sender.SendMessage(ctx, msg.Chat.ID, msgHelp)
	}
	link := telegram.ReferralLink(b.botUsername, msg.From.ID)

	png, err := qr.Encode(link)
	if err != nil {
		return err
	}

	caption := "Your personal invite link:\n" + link
	return b.sender.SendPhoto(ctx, msg.Chat.ID, png, caption)
}

func (b *Bot) handleExport(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || !b.isAdmin(msg.From.ID) {
		return b.sender.SendMessage(ctx, msg.Chat.ID, msgNotAdmin)
	}

	data, err := b.leads.ExportCSV(ctx)
	if err != nil {
		b.logger.Error("lead export failed", zap.Error(err))
		return b.sender.SendMessage(ctx, msg.Chat.ID, msgLeadSaveFail)
	}

	filename := fmt.Sprintf("leads_%s.csv", time.Now().UTC().Format("2006-01-02"))
	return b.sender.SendDocument(ctx, msg.Chat.ID, filename, data, "Full lead export")
}

func (b *Bot) handleBroadcast(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || !b.isAdmin(msg.From.ID) {
		return b.sender.SendMessage(ctx, msg.Chat.ID, msgNotAdmin)
	}

	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		return b.sender.SendMessage(ctx, msg.Chat.ID, msgBroadcastUsage)
	}

	sent := b.notifier.NotifyAll(ctx, "📣 "+text, msg.From.ID)
	return b.sender.SendMessage(ctx, msg.Chat.ID, fmt.Sprintf("Broadcast delivered to %d recipients.", sent))
}

// Shared renderers used by both commands and callbacks.

func (b *Bot) beginWizard(ctx context.Context, chatID int64) error {
	b.sessions.Set(chatID, Session{State: StateAwaitingName})
	return b.sender.SendMessage(ctx, chatID, msgAskName)
}

func (b *Bot) sendRecentLeads(ctx context.Context, chatID int64) error {
	leads, err := b.leads.Recent(ctx, 10)
	if err != nil {
		return err
	}

	if len(leads) == 0 {
		return b.sender.SendMessage(ctx, chatID, msgNoLeads)
	}

	var sb strings.Builder
	sb.WriteString("📋 *Latest leads*\n")
	for _, l := range leads {
		sb.WriteString(fmt.Sprintf("\n#%d %s — %s [%s] (%s)",
			l.ID, l.Name, l.Phone, l.Status, l.CreatedAt.Format("Jan 2")))
	}
	return b.sender.SendMessage(ctx, chatID, sb.String())
}

func (b *Bot) sendStats(ctx context.Context, chatID int64) error {
	stats, err := b.leads.Stats(ctx)
	if err != nil {
		return err
	}
	userCount, err := b.users.Count(ctx)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("📊 *Lead statistics*\n")
	sb.WriteString(fmt.Sprintf("\nTotal: %d\nToday: %d\nRegistered users: %d\n", stats.Total, stats.Today, userCount))
	for _, status := range []domain.LeadStatus{domain.LeadStatusNew, domain.LeadStatusContacted, domain.LeadStatusConverted, domain.LeadStatusLost} {
		if n := stats.ByStatus[status]; n > 0 {
			sb.WriteString(fmt.Sprintf("\n%s: %d", status, n))
		}
	}
	return b.sender.SendMessage(ctx, chatID, sb.String())
}

func (b *Bot) sendSystemInfo(ctx context.Context, chatID int64) error {
	userCount, err := b.users.Count(ctx)
	if err != nil {
		return err
	}

	recentChats, err := b.interactions.CountSince(ctx, 24)
	if err != nil {
		return err
	}

	aiState := "disabled"
	if b.responder.Enabled() {
		aiState = "enabled"
		for _, s := range b.responder.BreakerStats() {
			aiState += fmt.Sprintf("\n  %s: %s", s.Name, s.State)
		}
	}

	pending := 0
	if b.followups != nil {
		pending = b.followups.Pending()
	}

	text := fmt.Sprintf(
		"ℹ️ *System status*\n\nUptime: %s\nRegistered users: %d\nAI chats (24h): %d\nActive wizards: %d\nPending follow-ups: %d\nAI: %s",
		time.Since(b.startedAt).Round(time.Second), userCount, recentChats, b.sessions.Active(), pending, aiState,
	)
	return b.sender.SendMessage(ctx, chatID, text)
}

func (b *Bot) recordUpdate(kind string) {
	if b.metrics != nil {
		b.metrics.RecordUpdate(kind)
	}
}
