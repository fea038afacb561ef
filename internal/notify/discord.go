package notify

import (
	"context"
	"fmt"
	"net/http"
)

// discordMessage is the webhook request body.
type discordMessage struct {
	Content string `json:"content"`
}

// DiscordSender delivers alerts through a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a sender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     newWebhookClient(),
	}
}

// Send posts one message to the webhook, with the title bolded in Discord
// markdown.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	msg := discordMessage{Content: fmt.Sprintf("**%s**\n%s", title, message)}
	if err := postJSON(ctx, d.client, d.webhookURL, msg); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
