// Package notifier posts critical alerts to a Slack channel.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

type messagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier implements service.AlertNotifier.
type SlackNotifier struct {
	api     messagePoster
	channel string
	baseURL string
	logger  *zap.Logger
}

// NewSlackNotifier returns a notifier posting to channel with a bot token.
// baseURL, when set, is used to link alerts back to the dashboard.
func NewSlackNotifier(token, channel, baseURL string, logger *zap.Logger) (*SlackNotifier, error) {
	if token == "" || channel == "" {
		return nil, errors.New("slack token and channel are required")
	}
	return newSlackNotifier(slack.New(token), channel, baseURL, logger), nil
}

func newSlackNotifier(api messagePoster, channel, baseURL string, logger *zap.Logger) *SlackNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackNotifier{api: api, channel: channel, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// NotifyCritical posts one alert.
func (n *SlackNotifier) NotifyCritical(ctx context.Context, alert models.Alert) error {
	_, ts, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(fallbackText(alert), false),
		slack.MsgOptionBlocks(alertBlocks(alert, n.baseURL)...),
	)
	if err != nil {
		return fmt.Errorf("post slack alert: %w", err)
	}
	n.logger.Debug("critical alert posted", zap.String("alert_id", alert.ID), zap.String("ts", ts))
	return nil
}

func fallbackText(alert models.Alert) string {
	return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(alert.Severity)), tutorLabel(alert), alert.Title)
}

func tutorLabel(alert models.Alert) string {
	if alert.TutorName != "" {
		return fmt.Sprintf("%s (%s)", alert.TutorName, alert.TutorID)
	}
	return alert.TutorID
}

func alertBlocks(alert models.Alert, baseURL string) []slack.Block {
	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, ":rotating_light: "+alert.Title, true, false),
	)
	body := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, alert.Message, false, false),
		[]*slack.TextBlockObject{
			slack.NewTextBlockObject(slack.MarkdownType, "*Tutor*\n"+tutorLabel(alert), false, false),
			slack.NewTextBlockObject(slack.MarkdownType, "*Category*\n"+string(alert.Category), false, false),
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*%s*\n%.2f", alert.Metric, alert.MetricValue), false, false),
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Threshold*\n%.2f", alert.Threshold), false, false),
		},
		nil,
	)
	blocks := []slack.Block{header, body}
	if baseURL != "" {
		link := fmt.Sprintf("<%s/alerts/%s|Open alert> · priority %d", baseURL, alert.ID, alert.Priority)
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, link, false, false),
		))
	}
	return blocks
}
