package agent

import (
	"context"
	"fmt"

	"pigeon/pkg/models"
)

// Summarizer attaches a body summary to the message analysis using the
// configured content generator.
type Summarizer struct {
	desc      Descriptor
	generator ContentGenerator
	*tracker
}

func NewSummarizer(generator ContentGenerator) *Summarizer {
	return &Summarizer{
		desc: Descriptor{
			ID:           "builtin-summarizer",
			Name:         "Content Summarizer",
			Type:         TypeSummarizer,
			Enabled:      true,
			Priority:     50,
			Capabilities: []string{"summarize"},
		},
		generator: generator,
		tracker:   newTracker(),
	}
}

func (s *Summarizer) Descriptor() Descriptor { return s.desc }

func (s *Summarizer) Initialize(_ context.Context, _ map[string]interface{}) error {
	if s.generator == nil {
		return fmt.Errorf("summarizer requires a content generator")
	}
	s.setState(StateReady)
	return nil
}

func (s *Summarizer) Process(ctx context.Context, msg models.Message) (*models.Modifications, error) {
	if msg.Body == "" {
		s.recordSuccess()
		return &models.Modifications{}, nil
	}

	summary, err := s.generator.GenerateSummary(ctx, msg)
	if err != nil {
		s.recordFailure(err)
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}

	s.recordSuccess()
	return &models.Modifications{
		Analysis: &models.Analysis{Summary: summary},
	}, nil
}

func (s *Summarizer) Shutdown(_ context.Context) error {
	s.setState(StateStopped)
	return nil
}

func (s *Summarizer) Status() Status { return s.status() }
