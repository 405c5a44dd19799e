package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/domain"
)

// Wizard answer validation thresholds.
const (
	minNameLen  = 2
	minPhoneLen = 9
)

func (b *Bot) stepName(ctx context.Context, msg *tgbotapi.Message, sess Session) error {
	name := strings.TrimSpace(msg.Text)
	if len([]rune(name)) < minNameLen {
		// Re-prompt without leaving the state.
		return b.sender.SendMessage(ctx, msg.Chat.ID, msgNameTooShort)
	}

	sess.Draft.Name = name
	sess.State = StateAwaitingPhone
	b.sessions.Set(msg.Chat.ID, sess)

	return b.sender.SendMessage(ctx, msg.Chat.ID, msgAskPhone)
}

func (b *Bot) stepPhone(ctx context.Context, msg *tgbotapi.Message, sess Session) error {
	phone := strings.TrimSpace(msg.Text)
	if len(phone) < minPhoneLen {
		return b.sender.SendMessage(ctx, msg.Chat.ID, msgPhoneTooShort)
	}

	sess.Draft.Phone = phone
	sess.State = StateAwaitingEmail
	b.sessions.Set(msg.Chat.ID, sess)

	return b.sender.SendMessage(ctx, msg.Chat.ID, msgAskEmail)
}

func (b *Bot) stepEmail(ctx context.Context, msg *tgbotapi.Message, sess Session) error {
	email := strings.TrimSpace(msg.Text)
	if strings.EqualFold(email, skipKeyword) {
		email = ""
	}
	sess.Draft.Email = email

	return b.completeWizard(ctx, msg, sess)
}

// completeWizard inserts exactly one lead and returns the chat to idle. The
// session is cleared before the insert so a retry after a storage error
// starts fresh instead of double-inserting.
func (b *Bot) completeWizard(ctx context.Context, msg *tgbotapi.Message, sess Session) error {
	b.sessions.Reset(msg.Chat.ID)

	lead, err := domain.NewLead(sess.Draft.Name, sess.Draft.Phone, sess.Draft.Email, domain.SourceTelegram, "")
	if err != nil {
		b.logger.Error("wizard produced invalid lead", zap.Error(err))
		return b.sender.SendMessage(ctx, msg.Chat.ID, msgLeadSaveFail)
	}
	if msg.From != nil {
		addedBy := msg.From.ID
		lead.AddedBy = &addedBy
	}

	if err := b.leads.Create(ctx, lead); err != nil {
		b.logger.Error("wizard lead insert failed", zap.Error(err))
		return b.sender.SendMessage(ctx, msg.Chat.ID, msgLeadSaveFail)
	}

	if b.metrics != nil {
		b.metrics.RecordWizardOutcome("completed")
	}

	return b.sender.SendMessage(ctx, msg.Chat.ID, msgLeadSaved)
}
