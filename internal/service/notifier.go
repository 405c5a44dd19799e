// Package service contains the application services gluing repositories, the
// Telegram client, and the AI responder together.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/domain"
	"github.com/adworks/leadbot/internal/metrics"
	"github.com/adworks/leadbot/internal/telegram"
)

// Notifier fans a message out to the notification audience: the configured
// notify chats when set, otherwise every registered user.
type Notifier struct {
	sender        telegram.Sender
	users         domain.UserRepository
	notifyChatIDs []int64
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// NewNotifier creates a Notifier. notifyChatIDs may be empty; metrics may be
// nil.
func NewNotifier(sender telegram.Sender, users domain.UserRepository, notifyChatIDs []int64, logger *zap.Logger, m *metrics.Metrics) *Notifier {
	return &Notifier{
		sender:        sender,
		users:         users,
		notifyChatIDs: notifyChatIDs,
		logger:        logger,
		metrics:       m,
	}
}

// NotifyAll sends text to every recipient except exclude (pass 0 to exclude
// nobody) and returns the number of successful deliveries. A failed delivery
// is logged and skipped; it never aborts the fan-out.
func (n *Notifier) NotifyAll(ctx context.Context, text string, exclude int64) int {
	recipients, err := n.recipients(ctx)
	if err != nil {
		n.logger.Error("failed to resolve notification recipients", zap.Error(err))
		return 0
	}

	sent := 0
	for _, chatID := range recipients {
		if chatID == exclude {
			continue
		}
		if err := n.sender.SendMessage(ctx, chatID, text); err != nil {
			n.logger.Warn("notification delivery failed",
				zap.Int64("chat_id", chatID),
				zap.Error(err),
			)
			n.record(false)
			continue
		}
		sent++
		n.record(true)
	}

	n.logger.Info("notification fan-out complete",
		zap.Int("recipients", len(recipients)),
		zap.Int("delivered", sent),
	)
	return sent
}

func (n *Notifier) recipients(ctx context.Context) ([]int64, error) {
	if len(n.notifyChatIDs) > 0 {
		return n.notifyChatIDs, nil
	}

	users, err := n.users.All(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (n *Notifier) record(success bool) {
	if n.metrics != nil {
		n.metrics.RecordNotification(success)
	}
}
