package agent

import (
	"context"
	"strings"

	"pigeon/pkg/models"
)

var defaultUrgentKeywords = []string{"urgent", "asap", "immediately", "deadline", "action required"}

// Prioritizer raises or lowers a message's priority from keyword and
// category signals. It never downgrades an explicit urgent priority.
type Prioritizer struct {
	desc           Descriptor
	urgentKeywords []string
	*tracker
}

func NewPrioritizer(urgentKeywords []string) *Prioritizer {
	if len(urgentKeywords) == 0 {
		urgentKeywords = defaultUrgentKeywords
	}
	return &Prioritizer{
		desc: Descriptor{
			ID:           "builtin-prioritizer",
			Name:         "Keyword Prioritizer",
			Type:         TypePrioritizer,
			Enabled:      true,
			Priority:     50,
			Capabilities: []string{"prioritize"},
		},
		urgentKeywords: urgentKeywords,
		tracker:        newTracker(),
	}
}

func (p *Prioritizer) Descriptor() Descriptor { return p.desc }

func (p *Prioritizer) Initialize(_ context.Context, _ map[string]interface{}) error {
	p.setState(StateReady)
	return nil
}

func (p *Prioritizer) Process(_ context.Context, msg models.Message) (*models.Modifications, error) {
	if msg.Priority == models.PriorityUrgent {
		p.recordSuccess()
		return &models.Modifications{}, nil
	}

	text := strings.ToLower(msg.Subject + " " + msg.Body)

	priority := msg.Priority
	switch {
	case containsAny(text, p.urgentKeywords):
		priority = models.PriorityUrgent
	case msg.Category == models.CategoryPrimary && msg.Priority.Rank() < models.PriorityHigh.Rank():
		priority = models.PriorityHigh
	case msg.Category == models.CategoryMarketing || msg.Category == models.CategorySpam:
		priority = models.PriorityLow
	case priority == "":
		priority = models.PriorityNormal
	}

	p.recordSuccess()
	if priority == msg.Priority {
		return &models.Modifications{}, nil
	}
	return &models.Modifications{Priority: &priority}, nil
}

func (p *Prioritizer) Shutdown(_ context.Context) error {
	p.setState(StateStopped)
	return nil
}

func (p *Prioritizer) Status() Status { return p.status() }

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
