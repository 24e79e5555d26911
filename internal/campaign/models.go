package campaign

import (
	"time"

	"pigeon/pkg/models"
)

// Status is the campaign lifecycle state. It is mutated only through
// the state machine in statemachine.go.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusActive, StatusPaused, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the campaign can never leave this state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Type describes the campaign send strategy.
type Type string

const (
	TypeOneTime   Type = "one-time"
	TypeRecurring Type = "recurring"
	TypeDrip      Type = "drip"
	TypeTriggered Type = "triggered"
	TypeABTest    Type = "ab-test"
)

func (t Type) Valid() bool {
	switch t {
	case TypeOneTime, TypeRecurring, TypeDrip, TypeTriggered, TypeABTest:
		return true
	}
	return false
}

// FrequencyType selects how a recurring schedule repeats.
type FrequencyType string

const (
	FrequencyDaily   FrequencyType = "daily"
	FrequencyWeekly  FrequencyType = "weekly"
	FrequencyMonthly FrequencyType = "monthly"
	FrequencyCustom  FrequencyType = "custom"
)

// Frequency describes the repetition of a recurring schedule.
// Expression is only consulted for FrequencyCustom and holds a
// standard five-field cron spec.
type Frequency struct {
	Type       FrequencyType  `json:"type"`
	Interval   int            `json:"interval,omitempty"`
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`
	DayOfMonth int            `json:"day_of_month,omitempty"`
	Expression string         `json:"expression,omitempty"`
}

// Schedule is the declarative send schedule. It is an immutable
// snapshot: replacing it means re-deriving and resubmitting jobs.
type Schedule struct {
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Timezone     string     `json:"timezone,omitempty"`
	SendTime     string     `json:"send_time,omitempty"`
	Frequency    *Frequency `json:"frequency,omitempty"`
	BatchSize    int        `json:"batch_size,omitempty"`
	ThrottleRate float64    `json:"throttle_rate,omitempty"`
}

// Recurring reports whether the schedule repeats.
func (s Schedule) Recurring() bool {
	return s.Frequency != nil
}

// DeliveryConfig names the provider and failure handling for the
// actual send, which is a collaborator concern.
type DeliveryConfig struct {
	Provider          string       `json:"provider"`
	Retry             RetrySpec    `json:"retry"`
	BounceHandling    string       `json:"bounce_handling,omitempty"`
	UnsubscribeLink   bool         `json:"unsubscribe_link"`
	TrackOpensClicks  bool         `json:"track_opens_clicks"`
	SuppressedDomains []string     `json:"suppressed_domains,omitempty"`
}

type RetrySpec struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
}

// Metrics accumulates send results across executions.
type Metrics struct {
	Sent         int64      `json:"sent"`
	Delivered    int64      `json:"delivered"`
	Failed       int64      `json:"failed"`
	Opened       int64      `json:"opened"`
	Clicked      int64      `json:"clicked"`
	Unsubscribed int64      `json:"unsubscribed"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	Runs         int64      `json:"runs"`
}

// Campaign is a configured, schedulable batch of outbound messages.
type Campaign struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Status         Status             `json:"status"`
	Type           Type               `json:"type"`
	AudienceFilter string             `json:"audience_filter,omitempty"`
	Recipients     []models.Recipient `json:"recipients,omitempty"`
	Schedule       *Schedule          `json:"schedule,omitempty"`
	Subject        string             `json:"subject"`
	Content        string             `json:"content"`
	Delivery       DeliveryConfig     `json:"delivery"`
	Metrics        Metrics            `json:"metrics"`
	Approved       bool               `json:"approved"`
	Owner          string             `json:"owner,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type CreateCampaignRequest struct {
	Name           string             `json:"name" binding:"required"`
	Type           Type               `json:"type" binding:"required"`
	AudienceFilter string             `json:"audience_filter"`
	Recipients     []models.Recipient `json:"recipients"`
	Subject        string             `json:"subject"`
	Content        string             `json:"content"`
	Delivery       *DeliveryConfig    `json:"delivery"`
	Owner          string             `json:"owner"`
}

type UpdateCampaignRequest struct {
	Name           *string             `json:"name"`
	AudienceFilter *string             `json:"audience_filter"`
	Recipients     *[]models.Recipient `json:"recipients"`
	Subject        *string             `json:"subject"`
	Content        *string             `json:"content"`
	Delivery       *DeliveryConfig     `json:"delivery"`
	Approved       *bool               `json:"approved"`
}

type ScheduleCampaignRequest struct {
	Schedule Schedule `json:"schedule" binding:"required"`
}
