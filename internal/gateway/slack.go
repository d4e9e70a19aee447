package gateway

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/store"
)

// SlackRelay posts notifications to one Slack channel as the bot user.
type SlackRelay struct {
	client  *slack.Client
	channel string
	logger  *zap.Logger
}

// NewSlackRelay creates a relay using a Bot User OAuth Token (xoxb-...).
// apiURL overrides the Slack Web API base and may be empty.
func NewSlackRelay(botToken, channel, apiURL string, logger *zap.Logger) *SlackRelay {
	opts := []slack.Option{}
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &SlackRelay{
		client:  slack.New(botToken, opts...),
		channel: channel,
		logger:  logger,
	}
}

func (s *SlackRelay) Name() string { return "slack" }

func (s *SlackRelay) Deliver(ctx context.Context, n *store.Notification) error {
	opts := []slack.MsgOption{
		slack.MsgOptionText(render(n), false),
		slack.MsgOptionDisableLinkUnfurl(),
	}
	_, ts, err := s.client.PostMessageContext(ctx, s.channel, opts...)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	s.logger.Debug("slack message sent", zap.String("channel", s.channel), zap.String("ts", ts))
	return nil
}
