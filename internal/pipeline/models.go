package pipeline

import (
	"time"

	"pigeon/internal/agent"
)

// TaskStatus tracks an agent task through its lifecycle. Transitions
// are pending -> processing -> {completed | failed}; a finalized task
// is never reopened.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// AgentTask is the durable ledger record of one agent invocation for
// one message.
type AgentTask struct {
	ID          string                 `bson:"_id" json:"id"`
	AgentID     string                 `bson:"agent_id" json:"agent_id"`
	MessageID   string                 `bson:"message_id" json:"message_id"`
	Action      string                 `bson:"action" json:"action"`
	Parameters  map[string]interface{} `bson:"parameters,omitempty" json:"parameters,omitempty"`
	Status      TaskStatus             `bson:"status" json:"status"`
	Result      map[string]interface{} `bson:"result,omitempty" json:"result,omitempty"`
	Error       string                 `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt   time.Time              `bson:"created_at" json:"created_at"`
	CompletedAt *time.Time             `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Outcome is the per-agent result the executor reports for one run.
type Outcome struct {
	AgentID  string        `json:"agent_id"`
	Type     agent.Type    `json:"type"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Result is the full output of one pipeline run.
type Result struct {
	MessageID string             `json:"message_id"`
	Outcomes  map[string]Outcome `json:"outcomes"`
	Elapsed   time.Duration      `json:"elapsed"`
}

// Succeeded reports how many agents completed without error.
func (r Result) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// Failed reports how many agents recorded a failure.
func (r Result) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}
