package agent

import (
	"context"
	"strings"

	"pigeon/pkg/models"
)

// Categorizer assigns a message to one of the closed category labels
// based on subject/body keyword heuristics.
type Categorizer struct {
	desc    Descriptor
	signals map[models.Category][]string
	*tracker
}

func NewCategorizer() *Categorizer {
	return &Categorizer{
		desc: Descriptor{
			ID:           "builtin-categorizer",
			Name:         "Keyword Categorizer",
			Type:         TypeCategorizer,
			Enabled:      true,
			Priority:     50,
			Capabilities: []string{"categorize"},
		},
		signals: map[models.Category][]string{
			models.CategoryMarketing: {"unsubscribe", "discount", "offer", "sale", "promo", "newsletter"},
			models.CategorySocial:    {"friend request", "mentioned you", "followed you", "liked your"},
			models.CategoryUpdates:   {"receipt", "invoice", "order", "shipped", "statement", "confirmation"},
			models.CategoryForums:    {"digest", "thread", "replied to", "mailing list"},
		},
		tracker: newTracker(),
	}
}

func (c *Categorizer) Descriptor() Descriptor { return c.desc }

func (c *Categorizer) Initialize(_ context.Context, _ map[string]interface{}) error {
	c.setState(StateReady)
	return nil
}

func (c *Categorizer) Process(_ context.Context, msg models.Message) (*models.Modifications, error) {
	text := strings.ToLower(msg.Subject + " " + msg.Body)

	category := models.CategoryPrimary
	best := 0
	// Fixed scan order so keyword ties resolve deterministically.
	for _, cat := range []models.Category{
		models.CategoryMarketing,
		models.CategorySocial,
		models.CategoryUpdates,
		models.CategoryForums,
	} {
		hits := 0
		for _, kw := range c.signals[cat] {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > best {
			best = hits
			category = cat
		}
	}

	c.recordSuccess()
	return &models.Modifications{Category: &category}, nil
}

func (c *Categorizer) Shutdown(_ context.Context) error {
	c.setState(StateStopped)
	return nil
}

func (c *Categorizer) Status() Status { return c.status() }
