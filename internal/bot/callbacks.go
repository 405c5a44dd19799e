package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) callbackViewLeads(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	return b.sendRecentLeads(ctx, cb.Message.Chat.ID)
}

func (b *Bot) callbackViewStats(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	return b.sendStats(ctx, cb.Message.Chat.ID)
}

func (b *Bot) callbackAddLead(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	return b.beginWizard(ctx, cb.Message.Chat.ID)
}

func (b *Bot) callbackSystemInfo(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	return b.sendSystemInfo(ctx, cb.Message.Chat.ID)
}

func (b *Bot) callbackCancel(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	chatID := cb.Message.Chat.ID
	sess := b.sessions.Get(chatID)
	if sess.State == StateIdle {
		return b.sender.EditMessage(ctx, chatID, cb.Message.MessageID, msgNothingToCancel)
	}

	b.sessions.Reset(chatID)
	if b.metrics != nil {
		b.metrics.RecordWizardOutcome("canceled")
	}
	return b.sender.EditMessage(ctx, chatID, cb.Message.MessageID, msgCanceled)
}
