package notify

import (
	"context"
	"fmt"
	"net/http"
)

// telegramAPIBase is the production Telegram bot API host.
const telegramAPIBase = "https://api.telegram.org"

// telegramMessage is the sendMessage request body.
type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// TelegramSender delivers alerts to one chat through the Telegram bot API.
// The alert title becomes the bolded first line of the message.
type TelegramSender struct {
	endpoint string
	chatID   string
	client   *http.Client
}

// NewTelegramSender creates a sender for the given bot token and chat ID.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		endpoint: fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, token),
		chatID:   chatID,
		client:   newWebhookClient(),
	}
}

// Send posts one Markdown-formatted message to the configured chat.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	msg := telegramMessage{
		ChatID:    t.chatID,
		Text:      fmt.Sprintf("*%s*\n%s", title, message),
		ParseMode: "Markdown",
	}
	if err := postJSON(ctx, t.client, t.endpoint, msg); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
