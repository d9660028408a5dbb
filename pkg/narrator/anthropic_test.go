package narrator

import (
	"context"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-insights-api/internal/models"
)

type fakeMessages struct {
	calls  int
	params anthropic.MessageNewParams
	reply  *anthropic.Message
	err    error
}

func (f *fakeMessages) New(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.calls++
	f.params = body
	return f.reply, f.err
}

func finding() models.CohortComparisonResult {
	return models.CohortComparisonResult{
		Metric:            "avg_engagement_score",
		Label:             "Engagement",
		GroupAAvg:         5.1,
		GroupBAvg:         7.4,
		GroupASize:        12,
		GroupBSize:        140,
		Difference:        -2.3,
		PercentDifference: -31.1,
		PValue:            0.002,
		EffectSize:        -1.4,
		SignificanceTier:  models.HighlySignificant,
	}
}

func TestNewAnthropicNarratorRequiresKey(t *testing.T) {
	_, err := NewAnthropicNarrator(" ", "", nil)
	require.Error(t, err)
}

func TestDescribe(t *testing.T) {
	fake := &fakeMessages{reply: &anthropic.Message{Content: []anthropic.ContentBlockUnion{
		{Type: "text", Text: "  Tutors with poor first sessions engage less.  "},
	}}}
	n := newAnthropicNarrator(fake, "", nil)

	text, err := n.Describe(context.Background(), finding(), "12 tutors")
	require.NoError(t, err)
	assert.Equal(t, "Tutors with poor first sessions engage less.", text)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, anthropic.Model(defaultModel), fake.params.Model)
	assert.Equal(t, int64(defaultMaxTokens), fake.params.MaxTokens)
}

func TestDescribeErrors(t *testing.T) {
	fake := &fakeMessages{err: errors.New("overloaded")}
	n := newAnthropicNarrator(fake, "claude-test", nil)
	_, err := n.Describe(context.Background(), finding(), "scope")
	require.Error(t, err)

	fake.err = nil
	fake.reply = &anthropic.Message{}
	_, err = n.Describe(context.Background(), finding(), "scope")
	require.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(finding(), "12 tutors")
	assert.Contains(t, prompt, "Metric: Engagement")
	assert.Contains(t, prompt, "Group A average: 5.100 (n=12)")
	assert.Contains(t, prompt, "p-value: 0.0020")
	assert.NotContains(t, prompt, "Lower values")
}
