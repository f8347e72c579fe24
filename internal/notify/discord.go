package notify

import (
	"context"
	"fmt"
	"net/http"
)

// Embed colours per outcome.
const (
	colorEligible   = 0x2ecc71
	colorIneligible = 0xf1c40f
	colorError      = 0xe74c3c
)

// DiscordSender delivers notifications via a Discord webhook as embeds.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     defaultHTTPClient(),
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Send posts n as a single embed. Discord answers 204 on success.
func (d *DiscordSender) Send(ctx context.Context, n Notification) error {
	payload := map[string]any{
		"embeds": []discordEmbed{{
			Title:       n.Title,
			Description: n.Message,
			Color:       eventColor(n.Event),
		}},
	}
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

func eventColor(event string) int {
	switch event {
	case EventEligible:
		return colorEligible
	case EventIneligible:
		return colorIneligible
	default:
		return colorError
	}
}
