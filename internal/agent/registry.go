package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pigeon/internal/logger"
	pkgerrors "pigeon/pkg/errors"
	"pigeon/pkg/metrics"
)

// NewDuplicateAgentError reports a registration collision.
func NewDuplicateAgentError(id string) *pkgerrors.Error {
	return pkgerrors.ErrConflict.
		WithMessage("Agent %s already registered", id).
		WithDetail("agent_id", id)
}

// NewAgentNotFoundError reports a lookup miss.
func NewAgentNotFoundError(id string) *pkgerrors.Error {
	return pkgerrors.ErrNotFound.
		WithMessage("Agent %s not found", id).
		WithDetail("agent_id", id)
}

// Registry holds the set of registered agents. Agents are registered
// at process start and unregistered on shutdown; there is no
// intermediate mutation.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
	logger logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		agents: make(map[string]Agent),
		logger: log,
	}
}

func (r *Registry) Register(a Agent) error {
	desc := a.Descriptor()
	if desc.ID == "" {
		return pkgerrors.ErrValidation.WithMessage("agent id is required")
	}
	if !desc.Type.Valid() {
		return pkgerrors.ErrValidation.
			WithMessage("unknown agent type: %s", desc.Type).
			WithDetail("agent_id", desc.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[desc.ID]; exists {
		return NewDuplicateAgentError(desc.ID)
	}

	r.agents[desc.ID] = a
	metrics.ActiveAgents.Set(float64(len(r.agents)))
	r.logger.Infow("Agent registered",
		"agent_id", desc.ID,
		"agent_type", desc.Type,
		"enabled", desc.Enabled,
	)
	return nil
}

func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[id]; !exists {
		return NewAgentNotFoundError(id)
	}

	delete(r.agents, id)
	metrics.ActiveAgents.Set(float64(len(r.agents)))
	r.logger.Infow("Agent unregistered", "agent_id", id)
	return nil
}

func (r *Registry) Get(id string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.agents[id]
	if !exists {
		return nil, NewAgentNotFoundError(id)
	}
	return a, nil
}

// ListActive returns all enabled agents in no particular order.
func (r *Registry) ListActive() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if a.Descriptor().Enabled {
			active = append(active, a)
		}
	}
	return active
}

// OrderedActive returns enabled agents in execution order: type rank
// descending, then numeric priority descending as a tie-break within a
// type, then id for determinism.
func (r *Registry) OrderedActive() []Agent {
	active := r.ListActive()
	sort.Slice(active, func(i, j int) bool {
		di, dj := active[i].Descriptor(), active[j].Descriptor()
		if di.Type.Rank() != dj.Type.Rank() {
			return di.Type.Rank() > dj.Type.Rank()
		}
		if di.Priority != dj.Priority {
			return di.Priority > dj.Priority
		}
		return di.ID < dj.ID
	})
	return active
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Shutdown stops every registered agent and empties the registry.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, a := range r.agents {
		if err := a.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("agent %s shutdown: %w", id, err))
		}
		delete(r.agents, id)
	}
	metrics.ActiveAgents.Set(0)

	if len(errs) > 0 {
		return fmt.Errorf("registry shutdown errors: %v", errs)
	}
	return nil
}
