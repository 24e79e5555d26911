package agent

import (
	"context"
	"fmt"

	"pigeon/pkg/models"
)

// Responder proposes a suggested reply for non-spam messages. It runs
// late in the pipeline so it sees the final category and priority.
type Responder struct {
	desc      Descriptor
	generator ContentGenerator
	*tracker
}

func NewResponder(generator ContentGenerator) *Responder {
	return &Responder{
		desc: Descriptor{
			ID:           "builtin-responder",
			Name:         "Reply Suggester",
			Type:         TypeResponder,
			Enabled:      true,
			Priority:     50,
			Capabilities: []string{"suggest-reply"},
		},
		generator: generator,
		tracker:   newTracker(),
	}
}

func (r *Responder) Descriptor() Descriptor { return r.desc }

func (r *Responder) Initialize(_ context.Context, _ map[string]interface{}) error {
	if r.generator == nil {
		return fmt.Errorf("responder requires a content generator")
	}
	r.setState(StateReady)
	return nil
}

func (r *Responder) Process(ctx context.Context, msg models.Message) (*models.Modifications, error) {
	if msg.Category == models.CategorySpam || msg.Draft {
		r.recordSuccess()
		return &models.Modifications{}, nil
	}

	reply, err := r.generator.GenerateReply(ctx, msg)
	if err != nil {
		r.recordFailure(err)
		return nil, fmt.Errorf("reply generation failed: %w", err)
	}

	r.recordSuccess()
	return &models.Modifications{
		Analysis: &models.Analysis{SuggestedReply: reply},
	}, nil
}

func (r *Responder) Shutdown(_ context.Context) error {
	r.setState(StateStopped)
	return nil
}

func (r *Responder) Status() Status { return r.status() }
