package agent

import (
	"context"
	"strings"

	"pigeon/pkg/models"
)

var defaultSpamKeywords = []string{"winner", "lottery", "free money", "click here now", "act now", "viagra"}

// SpamFilter flags likely spam: category is forced to spam and a label
// plus a score are attached. It runs at filter rank so later agents see
// the spam classification.
type SpamFilter struct {
	desc         Descriptor
	spamKeywords []string
	*tracker
}

func NewSpamFilter(spamKeywords []string) *SpamFilter {
	if len(spamKeywords) == 0 {
		spamKeywords = defaultSpamKeywords
	}
	return &SpamFilter{
		desc: Descriptor{
			ID:           "builtin-spam-filter",
			Name:         "Spam Filter",
			Type:         TypeFilter,
			Enabled:      true,
			Priority:     50,
			Capabilities: []string{"filter", "spam-detection"},
		},
		spamKeywords: spamKeywords,
		tracker:      newTracker(),
	}
}

func (f *SpamFilter) Descriptor() Descriptor { return f.desc }

func (f *SpamFilter) Initialize(_ context.Context, _ map[string]interface{}) error {
	f.setState(StateReady)
	return nil
}

func (f *SpamFilter) Process(_ context.Context, msg models.Message) (*models.Modifications, error) {
	text := strings.ToLower(msg.Subject + " " + msg.Body)

	hits := 0
	for _, kw := range f.spamKeywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}

	f.recordSuccess()
	if hits == 0 {
		return &models.Modifications{}, nil
	}

	spam := models.CategorySpam
	score := float64(hits) / float64(len(f.spamKeywords))
	return &models.Modifications{
		Category:  &spam,
		AddLabels: []string{"spam"},
		Metadata:  map[string]interface{}{"spam_score": score},
	}, nil
}

func (f *SpamFilter) Shutdown(_ context.Context) error {
	f.setState(StateStopped)
	return nil
}

func (f *SpamFilter) Status() Status { return f.status() }
