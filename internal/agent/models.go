package agent

import (
	"time"
)

// Type classifies an agent's capability. Execution order across the
// pipeline is derived from the fixed rank table below, highest first.
type Type string

const (
	TypeSecurity    Type = "security"
	TypeFilter      Type = "filter"
	TypeCategorizer Type = "categorizer"
	TypePrioritizer Type = "prioritizer"
	TypeSummarizer  Type = "summarizer"
	TypeTranslator  Type = "translator"
	TypeResponder   Type = "responder"
	TypeScheduler   Type = "scheduler"
)

var typeRank = map[Type]int{
	TypeSecurity:    8,
	TypeFilter:      7,
	TypeCategorizer: 6,
	TypePrioritizer: 5,
	TypeSummarizer:  4,
	TypeTranslator:  3,
	TypeResponder:   2,
	TypeScheduler:   1,
}

func (t Type) Valid() bool {
	_, ok := typeRank[t]
	return ok
}

// Rank returns the execution rank of the type. Unknown types rank
// below every known one.
func (t Type) Rank() int {
	if r, ok := typeRank[t]; ok {
		return r
	}
	return 0
}

// Descriptor identifies a registered agent. Priority is a tie-break
// hint only: ordering is driven by Type rank, and Priority is consulted
// solely when two agents share a type.
type Descriptor struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         Type     `json:"type"`
	Enabled      bool     `json:"enabled"`
	Priority     int      `json:"priority"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Status is a point-in-time snapshot of an agent's health counters.
type Status struct {
	State       string    `json:"state"`
	Invocations int64     `json:"invocations"`
	Failures    int64     `json:"failures"`
	LastError   string    `json:"last_error,omitempty"`
	LastActive  time.Time `json:"last_active,omitempty"`
}

const (
	StateIdle     = "idle"
	StateReady    = "ready"
	StateStopped  = "stopped"
	StateDegraded = "degraded"
)
