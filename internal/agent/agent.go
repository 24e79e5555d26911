package agent

import (
	"context"
	"sync"
	"time"

	"pigeon/pkg/models"
)

// Agent is the capability contract every processing unit implements.
// Process returns proposed modifications; it never mutates the message
// it receives. Merging is the pipeline executor's job.
type Agent interface {
	Descriptor() Descriptor
	Initialize(ctx context.Context, config map[string]interface{}) error
	Process(ctx context.Context, msg models.Message) (*models.Modifications, error)
	Shutdown(ctx context.Context) error
	Status() Status
}

// tracker is the shared bookkeeping helper embedded by the builtin
// agents: invocation counters, last error, lifecycle state.
type tracker struct {
	mu          sync.Mutex
	state       string
	invocations int64
	failures    int64
	lastError   string
	lastActive  time.Time
}

func newTracker() *tracker {
	return &tracker{state: StateIdle}
}

func (t *tracker) setState(state string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
}

func (t *tracker) recordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invocations++
	t.lastActive = time.Now()
}

func (t *tracker) recordFailure(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invocations++
	t.failures++
	t.lastError = err.Error()
	t.lastActive = time.Now()
}

func (t *tracker) status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		State:       t.state,
		Invocations: t.invocations,
		Failures:    t.failures,
		LastError:   t.lastError,
		LastActive:  t.lastActive,
	}
}
