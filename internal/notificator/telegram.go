package notificator

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/holderrewards/dashboard/pkg/logger"
)

// TelegramNotificator posts operator alerts to the admin chat.
type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot

	adminChatID string
	cancel      context.CancelFunc
}

func NewTelegramNotificator(logger *logger.Logger, token, adminChatID string) (*TelegramNotificator, error) {
	provider := &TelegramNotificator{
		logger:      logger,
		adminChatID: adminChatID,
	}
	opts := []bot.Option{
		bot.WithDefaultHandler(provider.handler),
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	provider.bot = b

	ctx, cancel := context.WithCancel(context.Background())
	provider.cancel = cancel
	go b.Start(ctx)

	return provider, nil
}

func (t *TelegramNotificator) SendAlert(ctx context.Context, message string) error {
	if t.adminChatID == "" {
		return fmt.Errorf("telegram admin chat is not configured")
	}
	params := &bot.SendMessageParams{
		ChatID: t.adminChatID,
		Text:   message,
	}
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// Stop stops polling for updates.
func (t *TelegramNotificator) Stop() {
	t.cancel()
}

// handler answers /start with the chat id so an operator can put it into
// TELEGRAM_ADMIN_CHAT_ID.
func (t *TelegramNotificator) handler(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	t.logger.Debug("Telegram update", "username", update.Message.From.Username, "text", update.Message.Text)
	if update.Message.Text != "/start" {
		return
	}

	chatID := fmt.Sprint(update.Message.Chat.ID)
	text := "This chat id is " + chatID + ". Set it as TELEGRAM_ADMIN_CHAT_ID to receive reward alerts."
	if chatID == t.adminChatID {
		text = "This chat already receives reward alerts."
	}
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		t.logger.Error("Failed to answer telegram command", "error", err, "chat_id", chatID)
	}
}
