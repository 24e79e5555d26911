package scheduler

import (
	"time"

	"pigeon/pkg/retry"
)

// JobState is where a job currently lives in the queue.
type JobState string

const (
	// JobDelayed jobs fire once at RunAt.
	JobDelayed JobState = "delayed"
	// JobRecurring jobs fire on every occurrence of Recurrence until
	// EndDate.
	JobRecurring JobState = "recurring"
	// JobFailed jobs exhausted their retry policy and are kept for
	// inspection.
	JobFailed JobState = "failed"
)

// Valid reports whether s names one of the known queue states.
func (s JobState) Valid() bool {
	switch s {
	case JobDelayed, JobRecurring, JobFailed:
		return true
	}
	return false
}

const JobTypeCampaignExecute = "campaign:execute"

// Job is a queued unit of asynchronous work. The retry policy travels
// with the job as data so the worker needs no out-of-band
// configuration to honor it.
type Job struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	CampaignID string                 `json:"campaign_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	State      JobState               `json:"state"`
	RunAt      time.Time              `json:"run_at"`
	Recurrence string                 `json:"recurrence,omitempty"`
	Timezone   string                 `json:"timezone,omitempty"`
	EndDate    *time.Time             `json:"end_date,omitempty"`
	Attempts   int                    `json:"attempts"`
	Retry      retry.Policy           `json:"retry"`
	LastError  string                 `json:"last_error,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Expired reports whether a recurring job has run past its end date.
func (j Job) Expired(now time.Time) bool {
	return j.EndDate != nil && now.After(*j.EndDate)
}
