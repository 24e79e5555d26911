package draft

import (
	"time"

	"pigeon/pkg/models"
)

// Status is the draft lifecycle state. Approval and rejection are
// terminal: a decided draft never moves back.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusSent            Status = "sent"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusSent:
		return true
	}
	return false
}

// Decidable reports whether the draft can still be approved or
// rejected.
func (s Status) Decidable() bool {
	return s == StatusDraft || s == StatusPendingApproval
}

// PredictedEngagement carries a model's guess at how the draft will
// perform.
type PredictedEngagement struct {
	OpenRate  float64 `json:"open_rate"`
	ClickRate float64 `json:"click_rate"`
}

// Draft is a single generated, approvable message instance tied to a
// recipient and optionally a campaign.
type Draft struct {
	ID              string               `json:"id"`
	CampaignID      string               `json:"campaign_id,omitempty"`
	Status          Status               `json:"status"`
	Recipient       models.Recipient     `json:"recipient"`
	Subject         string               `json:"subject"`
	Content         string               `json:"content"`
	AIGenerated     bool                 `json:"ai_generated"`
	Score           float64              `json:"score,omitempty"`
	Personalization map[string]string    `json:"personalization,omitempty"`
	ScheduledAt     *time.Time           `json:"scheduled_at,omitempty"`
	SentAt          *time.Time           `json:"sent_at,omitempty"`
	Engagement      *PredictedEngagement `json:"engagement,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

type CreateDraftRequest struct {
	CampaignID      string            `json:"campaign_id"`
	Recipient       models.Recipient  `json:"recipient" binding:"required"`
	Subject         string            `json:"subject" binding:"required"`
	Content         string            `json:"content" binding:"required"`
	AIGenerated     bool              `json:"ai_generated"`
	Personalization map[string]string `json:"personalization"`
}

type GenerateDraftsRequest struct {
	CampaignID string `json:"campaign_id" binding:"required"`
}
