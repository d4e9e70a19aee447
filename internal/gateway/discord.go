package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/store"
)

const discordEmbedColor = 0x5865F2

// DiscordRelay sends notifications to one Discord channel through the REST
// API. The gateway websocket is never opened.
type DiscordRelay struct {
	session *discordgo.Session
	channel string
	logger  *zap.Logger
}

// NewDiscordRelay creates a relay for a bot token and channel id.
func NewDiscordRelay(token, channel string, logger *zap.Logger) (*DiscordRelay, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordRelay{session: session, channel: channel, logger: logger}, nil
}

func (d *DiscordRelay) Name() string { return "discord" }

func (d *DiscordRelay) Deliver(ctx context.Context, n *store.Notification) error {
	msg, err := d.session.ChannelMessageSendComplex(d.channel, discordMessage(n), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	d.logger.Debug("discord message sent", zap.String("channel", d.channel), zap.String("message", msg.ID))
	return nil
}

// discordMessage renders n as a single embed with one field per link.
func discordMessage(n *store.Notification) *discordgo.MessageSend {
	embed := &discordgo.MessageEmbed{
		Title:       clip(n.Title, 256),
		Description: clip(n.Message, 4096),
		Color:       discordEmbedColor,
	}
	if !n.CreatedAt.IsZero() {
		embed.Timestamp = n.CreatedAt.UTC().Format(time.RFC3339)
	}
	for i, l := range n.Links {
		if i == 25 {
			break
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  clip(l.Label, 256),
			Value: clip(l.URL, 1024),
		})
	}
	if n.Excerpt != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: clip(n.Excerpt, 2048)}
	}
	return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
