// Package telegram wraps the Bot API client behind a narrow interface the
// rest of the application sends messages through.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	apperrors "github.com/adworks/leadbot/internal/errors"
	"github.com/adworks/leadbot/internal/metrics"
)

// Sender is the outbound surface bot handlers and services depend on.
// Production uses *Client; tests substitute an in-memory fake.
type Sender interface {
	// SendMessage sends a Markdown-formatted text message to a chat.
	SendMessage(ctx context.Context, chatID int64, text string) error

	// SendMessageWithKeyboard sends a text message with an inline keyboard.
	SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error

	// SendPhoto sends PNG bytes as a photo with a caption.
	SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) error

	// SendDocument sends a file attachment with a caption.
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error

	// EditMessage replaces the text of a previously sent message.
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error

	// AnswerCallback acknowledges an inline keyboard callback.
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Client is the production Sender backed by the Telegram Bot API.
type Client struct {
	api     *tgbotapi.BotAPI
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewClient authenticates against the Bot API. metrics may be nil.
func NewClient(token string, logger *zap.Logger, m *metrics.Metrics) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, apperrors.TelegramError("telegram.NewClient", err)
	}

	logger.Info("authenticated with telegram", zap.String("bot_username", api.Self.UserName))

	return &Client{api: api, logger: logger, metrics: m}, nil
}

// Username returns the authenticated bot's username, used to build referral
// links.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// SendMessage sends a Markdown-formatted text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return c.send(ctx, msg)
}

// SendMessageWithKeyboard sends a text message with an inline keyboard.
func (c *Client) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboard
	return c.send(ctx, msg)
}

// SendPhoto sends PNG bytes as a photo with a caption.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) error {
	file := tgbotapi.FileBytes{Name: "qr.png", Bytes: photo}
	msg := tgbotapi.NewPhoto(chatID, file)
	msg.Caption = caption
	return c.send(ctx, msg)
}

// SendDocument sends a file attachment with a caption.
func (c *Client) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	file := tgbotapi.FileBytes{Name: filename, Bytes: data}
	msg := tgbotapi.NewDocument(chatID, file)
	msg.Caption = caption
	return c.send(ctx, msg)
}

// EditMessage replaces the text of a previously sent message, keeping the
// chat tidy when a menu button resolves.
func (c *Client) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	return c.send(ctx, edit)
}

// AnswerCallback acknowledges an inline keyboard callback so the client
// stops showing a spinner.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	callback := tgbotapi.NewCallback(callbackID, "")
	if _, err := c.api.Request(callback); err != nil {
		return apperrors.TelegramError("telegram.AnswerCallback", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, msg tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.api.Send(msg)
	if c.metrics != nil {
		c.metrics.RecordMessageSent(err == nil)
	}
	if err != nil {
		return apperrors.TelegramError("telegram.send", err)
	}
	return nil
}

// RegisterWebhook points the Bot API at our public webhook URL.
func (c *Client) RegisterWebhook(url string) error {
	webhook, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return apperrors.TelegramError("telegram.RegisterWebhook", err)
	}
	if _, err := c.api.Request(webhook); err != nil {
		return apperrors.TelegramError("telegram.RegisterWebhook", err)
	}

	info, err := c.api.GetWebhookInfo()
	if err != nil {
		return apperrors.TelegramError("telegram.RegisterWebhook", err)
	}
	if info.LastErrorDate != 0 {
		c.logger.Warn("webhook reported a delivery error",
			zap.String("last_error", info.LastErrorMessage),
		)
	}

	c.logger.Info("webhook registered", zap.String("url", url))
	return nil
}

// DeleteWebhook removes the registered webhook.
func (c *Client) DeleteWebhook() error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return apperrors.TelegramError("telegram.DeleteWebhook", err)
	}
	return nil
}

// WebhookInfo returns the current webhook status for the health endpoint.
func (c *Client) WebhookInfo() (tgbotapi.WebhookInfo, error) {
	info, err := c.api.GetWebhookInfo()
	if err != nil {
		return tgbotapi.WebhookInfo{}, apperrors.TelegramError("telegram.WebhookInfo", err)
	}
	return info, nil
}

// RegisterCommands publishes the command menu shown in the chat client.
func (c *Client) RegisterCommands(commands []tgbotapi.BotCommand) error {
	setCommands := tgbotapi.NewSetMyCommands(commands...)
	if _, err := c.api.Request(setCommands); err != nil {
		return apperrors.TelegramError("telegram.RegisterCommands", err)
	}
	return nil
}

// ReferralLink builds the deep link that credits user id as referrer.
func ReferralLink(botUsername string, id int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, id)
}
