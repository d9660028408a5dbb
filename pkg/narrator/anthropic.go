// Package narrator writes short prose summaries of statistical findings with
// the Anthropic Messages API.
package narrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

const (
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 300
)

const systemPrompt = `You write one short paragraph (at most three sentences) for a tutor operations team.
Describe the statistical finding you are given in plain language. Mention the direction of the difference,
both group averages and whether it is statistically significant. Do not invent numbers. Do not use lists or headings.`

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicNarrator implements service.Narrator.
type AnthropicNarrator struct {
	messages messageCreator
	model    string
	logger   *zap.Logger
}

// NewAnthropicNarrator builds a narrator. An empty model uses the default.
func NewAnthropicNarrator(apiKey, model string, logger *zap.Logger) (*AnthropicNarrator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic api key is required")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newAnthropicNarrator(&client.Messages, model, logger), nil
}

func newAnthropicNarrator(messages messageCreator, model string, logger *zap.Logger) *AnthropicNarrator {
	if model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnthropicNarrator{messages: messages, model: model, logger: logger}
}

// Describe returns a paragraph describing finding within the given scope.
func (n *AnthropicNarrator) Describe(ctx context.Context, finding models.CohortComparisonResult, scope string) (string, error) {
	message, err := n.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(n.model),
		MaxTokens: defaultMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(finding, scope))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic describe: %w", err)
	}
	for _, block := range message.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			n.logger.Debug("insight narrated",
				zap.String("metric", finding.Metric),
				zap.Int64("tokens_in", message.Usage.InputTokens),
				zap.Int64("tokens_out", message.Usage.OutputTokens),
			)
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", errors.New("no text content in anthropic response")
}

func buildPrompt(f models.CohortComparisonResult, scope string) string {
	label := f.Label
	if label == "" {
		label = f.Metric
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Scope: %s\n", scope)
	fmt.Fprintf(&b, "Metric: %s\n", label)
	fmt.Fprintf(&b, "Group A average: %.3f (n=%d)\n", f.GroupAAvg, f.GroupASize)
	fmt.Fprintf(&b, "Group B average: %.3f (n=%d)\n", f.GroupBAvg, f.GroupBSize)
	fmt.Fprintf(&b, "Difference: %.3f (%.1f%%)\n", f.Difference, f.PercentDifference)
	fmt.Fprintf(&b, "p-value: %.4f, effect size (Cohen's d): %.2f, %s\n", f.PValue, f.EffectSize, f.SignificanceTier)
	if f.LowerIsBetter {
		b.WriteString("Lower values are better for this metric.\n")
	}
	return b.String()
}
