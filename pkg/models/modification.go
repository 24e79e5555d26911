package models

import "fmt"

// Modifications is the set of field changes an agent proposes for a
// message. Agents never touch the working message directly; the
// executor merges these after a successful Process call.
type Modifications struct {
	Priority  *Priority              `json:"priority,omitempty"`
	Category  *Category              `json:"category,omitempty"`
	AddLabels []string               `json:"add_labels,omitempty"`
	Starred   *bool                  `json:"starred,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Analysis  *Analysis              `json:"analysis,omitempty"`
}

// Validate rejects modifications that would move a message outside its
// closed enumerations.
func (m Modifications) Validate() error {
	if m.Priority != nil && !m.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", *m.Priority)
	}
	if m.Category != nil && !m.Category.Valid() {
		return fmt.Errorf("invalid category %q", *m.Category)
	}
	return nil
}

// Apply merges the modifications into a copy of msg and returns it.
// Labels are deduplicated, metadata keys overwrite, and analysis
// fields merge per field so later agents extend rather than replace
// earlier annotations.
func (m Modifications) Apply(msg Message) Message {
	out := msg.Clone()

	if m.Priority != nil {
		out.Priority = *m.Priority
	}
	if m.Category != nil {
		out.Category = *m.Category
	}
	if m.Starred != nil {
		out.Starred = *m.Starred
	}

	for _, label := range m.AddLabels {
		if !containsString(out.Labels, label) {
			out.Labels = append(out.Labels, label)
		}
	}

	if len(m.Metadata) > 0 {
		if out.Metadata == nil {
			out.Metadata = make(map[string]interface{}, len(m.Metadata))
		}
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}

	if m.Analysis != nil {
		if out.Analysis == nil {
			out.Analysis = &Analysis{}
		}
		if m.Analysis.Sentiment != "" {
			out.Analysis.Sentiment = m.Analysis.Sentiment
		}
		if m.Analysis.Summary != "" {
			out.Analysis.Summary = m.Analysis.Summary
		}
		if len(m.Analysis.Entities) > 0 {
			out.Analysis.Entities = append(out.Analysis.Entities, m.Analysis.Entities...)
		}
		if m.Analysis.UrgencyScore != 0 {
			out.Analysis.UrgencyScore = m.Analysis.UrgencyScore
		}
		if m.Analysis.SuggestedReply != "" {
			out.Analysis.SuggestedReply = m.Analysis.SuggestedReply
		}
	}

	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
