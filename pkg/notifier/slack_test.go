package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

type fakePoster struct {
	calls   int
	channel string
	err     error
}

func (f *fakePoster) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.calls++
	f.channel = channelID
	if f.err != nil {
		return "", "", f.err
	}
	return channelID, "1700000000.0001", nil
}

func criticalAlert() models.Alert {
	return models.Alert{
		ID:          "al-1",
		TutorID:     "T1",
		TutorName:   "Ada",
		Severity:    models.SeverityCritical,
		Category:    models.CategoryChurn,
		Title:       "High churn risk",
		Message:     "Churn probability 0.92 exceeds 0.70",
		Metric:      "churn_probability",
		MetricValue: 0.92,
		Threshold:   0.7,
		Priority:    95,
	}
}

func TestNewSlackNotifierValidates(t *testing.T) {
	_, err := NewSlackNotifier("", "C1", "", nil)
	require.Error(t, err)
	_, err = NewSlackNotifier("xoxb-1", "", "", nil)
	require.Error(t, err)
}

func TestNotifyCritical(t *testing.T) {
	poster := &fakePoster{}
	n := newSlackNotifier(poster, "C-ops", "https://ops.example.com/", nil)

	require.NoError(t, n.NotifyCritical(context.Background(), criticalAlert()))
	assert.Equal(t, 1, poster.calls)
	assert.Equal(t, "C-ops", poster.channel)

	poster.err = errors.New("channel_not_found")
	err := n.NotifyCritical(context.Background(), criticalAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestAlertBlocks(t *testing.T) {
	blocks := alertBlocks(criticalAlert(), "https://ops.example.com")
	require.Len(t, blocks, 3)
	assert.Equal(t, slack.MBTHeader, blocks[0].BlockType())
	assert.Equal(t, slack.MBTContext, blocks[2].BlockType())

	section, ok := blocks[1].(*slack.SectionBlock)
	require.True(t, ok)
	require.Len(t, section.Fields, 4)
	assert.Equal(t, "*Tutor*\nAda (T1)", section.Fields[0].Text)

	assert.Len(t, alertBlocks(criticalAlert(), ""), 2)
	assert.Equal(t, "[CRITICAL] Ada (T1): High churn risk", fallbackText(criticalAlert()))
}
