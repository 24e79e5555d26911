package models

import "time"

// Priority orders messages from least to most urgent.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityNormal: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Rank returns the ordinal position of the priority, with unknown
// values ranked below low.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return -1
}

// Category is the closed set of message classifications.
type Category string

const (
	CategoryPrimary       Category = "primary"
	CategoryMarketing     Category = "marketing"
	CategorySocial        Category = "social"
	CategoryUpdates       Category = "updates"
	CategoryForums        Category = "forums"
	CategorySpam          Category = "spam"
	CategoryUncategorized Category = "uncategorized"
)

var validCategories = map[Category]bool{
	CategoryPrimary:       true,
	CategoryMarketing:     true,
	CategorySocial:        true,
	CategoryUpdates:       true,
	CategoryForums:        true,
	CategorySpam:          true,
	CategoryUncategorized: true,
}

func (c Category) Valid() bool {
	return validCategories[c]
}

// Message is the unit the agent pipeline transforms. It is created at
// the inbound/outbound boundary and mutated only by the pipeline
// executor applying agent modifications.
type Message struct {
	ID        string                 `json:"id"`
	From      string                 `json:"from"`
	To        []string               `json:"to"`
	Subject   string                 `json:"subject"`
	Body      string                 `json:"body"`
	Priority  Priority               `json:"priority"`
	Category  Category               `json:"category"`
	Labels    []string               `json:"labels,omitempty"`
	Read      bool                   `json:"read"`
	Starred   bool                   `json:"starred"`
	Draft     bool                   `json:"draft"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Analysis  *Analysis              `json:"analysis,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Analysis holds AI-produced annotations attached by pipeline agents.
type Analysis struct {
	Sentiment      string   `json:"sentiment,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	Entities       []string `json:"entities,omitempty"`
	UrgencyScore   float64  `json:"urgency_score,omitempty"`
	SuggestedReply string   `json:"suggested_reply,omitempty"`
}

// Clone returns a deep copy so agents can never alias the working
// message held by the executor.
func (m Message) Clone() Message {
	out := m
	out.To = append([]string(nil), m.To...)
	out.Labels = append([]string(nil), m.Labels...)
	if m.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	if m.Analysis != nil {
		a := *m.Analysis
		a.Entities = append([]string(nil), m.Analysis.Entities...)
		out.Analysis = &a
	}
	return out
}
