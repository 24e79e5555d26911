package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/config"
	"pigeon/pkg/models"
)

func TestCategorizerDetectsMarketing(t *testing.T) {
	c := NewCategorizer()
	require.NoError(t, c.Initialize(context.Background(), nil))

	mods, err := c.Process(context.Background(), models.Message{
		Subject: "Summer sale: 50% discount",
		Body:    "Click to see the offer. Unsubscribe anytime.",
	})
	require.NoError(t, err)
	require.NotNil(t, mods.Category)
	assert.Equal(t, models.CategoryMarketing, *mods.Category)
}

func TestCategorizerDefaultsToPrimary(t *testing.T) {
	c := NewCategorizer()

	mods, err := c.Process(context.Background(), models.Message{
		Subject: "Lunch tomorrow?",
		Body:    "Are you free around noon?",
	})
	require.NoError(t, err)
	require.NotNil(t, mods.Category)
	assert.Equal(t, models.CategoryPrimary, *mods.Category)
}

func TestPrioritizerUrgentKeyword(t *testing.T) {
	p := NewPrioritizer(nil)

	mods, err := p.Process(context.Background(), models.Message{
		Subject:  "URGENT: server down",
		Body:     "Please respond immediately.",
		Priority: models.PriorityNormal,
	})
	require.NoError(t, err)
	require.NotNil(t, mods.Priority)
	assert.Equal(t, models.PriorityUrgent, *mods.Priority)
}

func TestPrioritizerKeepsUrgent(t *testing.T) {
	p := NewPrioritizer(nil)

	mods, err := p.Process(context.Background(), models.Message{
		Subject:  "newsletter",
		Priority: models.PriorityUrgent,
		Category: models.CategoryMarketing,
	})
	require.NoError(t, err)
	assert.Nil(t, mods.Priority)
}

func TestPrioritizerDemotesMarketing(t *testing.T) {
	p := NewPrioritizer(nil)

	mods, err := p.Process(context.Background(), models.Message{
		Subject:  "weekly digest",
		Priority: models.PriorityNormal,
		Category: models.CategoryMarketing,
	})
	require.NoError(t, err)
	require.NotNil(t, mods.Priority)
	assert.Equal(t, models.PriorityLow, *mods.Priority)
}

func TestSpamFilterFlagsSpam(t *testing.T) {
	f := NewSpamFilter(nil)

	mods, err := f.Process(context.Background(), models.Message{
		Subject: "You are a WINNER",
		Body:    "Claim your lottery prize, click here now!",
	})
	require.NoError(t, err)
	require.NotNil(t, mods.Category)
	assert.Equal(t, models.CategorySpam, *mods.Category)
	assert.Contains(t, mods.AddLabels, "spam")
	assert.Greater(t, mods.Metadata["spam_score"].(float64), 0.0)
}

func TestSpamFilterPassesCleanMessage(t *testing.T) {
	f := NewSpamFilter(nil)

	mods, err := f.Process(context.Background(), models.Message{
		Subject: "Quarterly report",
		Body:    "Attached is the Q3 summary.",
	})
	require.NoError(t, err)
	assert.Nil(t, mods.Category)
	assert.Empty(t, mods.AddLabels)
}

func TestSummarizer(t *testing.T) {
	s := NewSummarizer(NewTemplateGenerator())
	require.NoError(t, s.Initialize(context.Background(), nil))

	mods, err := s.Process(context.Background(), models.Message{
		Subject: "Plan",
		Body:    "We ship the new onboarding flow next week.",
	})
	require.NoError(t, err)
	require.NotNil(t, mods.Analysis)
	assert.NotEmpty(t, mods.Analysis.Summary)
}

func TestSummarizerEmptyBody(t *testing.T) {
	s := NewSummarizer(NewTemplateGenerator())

	mods, err := s.Process(context.Background(), models.Message{Subject: "ping"})
	require.NoError(t, err)
	assert.Nil(t, mods.Analysis)
}

type failingGenerator struct{}

func (failingGenerator) GenerateSummary(context.Context, models.Message) (string, error) {
	return "", errors.New("provider unavailable")
}

func (failingGenerator) GenerateReply(context.Context, models.Message) (string, error) {
	return "", errors.New("provider unavailable")
}

func TestSummarizerGeneratorFailure(t *testing.T) {
	s := NewSummarizer(failingGenerator{})

	_, err := s.Process(context.Background(), models.Message{Body: "text"})
	require.Error(t, err)
	assert.Equal(t, int64(1), s.Status().Failures)
	assert.Contains(t, s.Status().LastError, "provider unavailable")
}

func TestResponderSuggestsReply(t *testing.T) {
	r := NewResponder(NewTemplateGenerator())
	require.NoError(t, r.Initialize(context.Background(), nil))

	mods, err := r.Process(context.Background(), models.Message{
		From:    "ana@example.com",
		Subject: "Pricing question",
		Body:    "How much is the team plan?",
	})
	require.NoError(t, err)
	require.NotNil(t, mods.Analysis)
	assert.Contains(t, mods.Analysis.SuggestedReply, "ana")
}

func TestResponderSkipsSpam(t *testing.T) {
	r := NewResponder(NewTemplateGenerator())

	mods, err := r.Process(context.Background(), models.Message{
		Category: models.CategorySpam,
	})
	require.NoError(t, err)
	assert.Nil(t, mods.Analysis)
}

func TestBreakerGeneratorPassesThrough(t *testing.T) {
	g := NewBreakerGenerator(NewTemplateGenerator(), config.CircuitBreakerConfig{})

	summary, err := g.GenerateSummary(context.Background(), models.Message{Body: "short note"})
	require.NoError(t, err)
	assert.Equal(t, "short note", summary)
}

func TestBreakerGeneratorSurfacesFailure(t *testing.T) {
	g := NewBreakerGenerator(failingGenerator{}, config.CircuitBreakerConfig{})

	_, err := g.GenerateReply(context.Background(), models.Message{})
	require.Error(t, err)
}
