package models

import "time"

// Recipient is a single entry in a campaign audience. Attributes holds
// free-form profile fields (plan, country, lifetime_value, ...) that
// audience filter expressions can reference.
type Recipient struct {
	Email           string                 `json:"email"`
	Name            string                 `json:"name,omitempty"`
	Tags            []string               `json:"tags,omitempty"`
	Attributes      map[string]interface{} `json:"attributes,omitempty"`
	Subscribed      bool                   `json:"subscribed"`
	EngagementScore float64                `json:"engagement_score,omitempty"`
	SubscribedAt    time.Time              `json:"subscribed_at,omitempty"`
}
