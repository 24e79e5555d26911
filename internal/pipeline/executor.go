package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pigeon/internal/agent"
	"pigeon/internal/logger"
	"pigeon/pkg/errors"
	"pigeon/pkg/metrics"
	"pigeon/pkg/models"
	"pigeon/pkg/tracing"
)

// Executor runs every active agent over a message in type-priority
// order. Agents execute strictly sequentially within one run so each
// sees the previous agents' modifications; one agent's failure is
// recorded and never aborts the rest of the pipeline.
type Executor struct {
	registry     *agent.Registry
	repo         Repository
	logger       logger.Logger
	agentTimeout time.Duration
}

func NewExecutor(registry *agent.Registry, repo Repository, log logger.Logger, agentTimeout time.Duration) *Executor {
	return &Executor{
		registry:     registry,
		repo:         repo,
		logger:       log,
		agentTimeout: agentTimeout,
	}
}

func (e *Executor) Execute(ctx context.Context, msg models.Message) (models.Message, Result, error) {
	ctx, span := tracing.GetTracer("pipeline-service").Start(ctx, "pipeline.execute")
	defer span.End()

	start := time.Now()
	working := msg.Clone()
	result := Result{
		MessageID: msg.ID,
		Outcomes:  make(map[string]Outcome),
	}

	for _, a := range e.registry.OrderedActive() {
		desc := a.Descriptor()
		outcome := e.runAgent(ctx, a, &working)
		result.Outcomes[desc.ID] = outcome
	}

	result.Elapsed = time.Since(start)

	status := "success"
	if result.Failed() > 0 {
		status = "partial"
	}
	metrics.PipelineMessagesTotal.WithLabelValues(status).Inc()
	metrics.PipelineProcessingDuration.WithLabelValues(status).Observe(float64(result.Elapsed.Milliseconds()))

	e.logger.InfowCtx(ctx, "Pipeline run finished",
		"message_id", msg.ID,
		"agents", len(result.Outcomes),
		"failed", result.Failed(),
		"elapsed_ms", result.Elapsed.Milliseconds(),
	)

	return working, result, nil
}

func (e *Executor) runAgent(ctx context.Context, a agent.Agent, working *models.Message) Outcome {
	desc := a.Descriptor()
	agentStart := time.Now()

	task := AgentTask{
		ID:        uuid.New().String(),
		AgentID:   desc.ID,
		MessageID: working.ID,
		Action:    "process",
		Parameters: map[string]interface{}{
			"agent_type": string(desc.Type),
			"subject":    working.Subject,
		},
		Status:    TaskProcessing,
		CreatedAt: agentStart,
	}
	if err := e.repo.SaveTask(ctx, task); err != nil {
		// The ledger is best-effort; a write failure must not block
		// message delivery.
		e.logger.ErrorwCtx(ctx, "Failed to persist agent task",
			"agent_id", desc.ID,
			"message_id", working.ID,
			"error", err,
		)
	}

	mods, err := e.invoke(ctx, a, *working)
	duration := time.Since(agentStart)
	metrics.AgentProcessingDuration.WithLabelValues(string(desc.Type)).Observe(float64(duration.Milliseconds()))

	if err == nil && mods != nil {
		if vErr := mods.Validate(); vErr != nil {
			err = vErr
		}
	}

	if err != nil {
		metrics.AgentInvocationsTotal.WithLabelValues(string(desc.Type), "failed").Inc()
		e.logger.WarnwCtx(ctx, "Agent failed, continuing pipeline",
			"agent_id", desc.ID,
			"agent_type", desc.Type,
			"message_id", working.ID,
			"error", err,
		)
		if fErr := e.repo.FinalizeTask(ctx, task.ID, TaskFailed, nil, err.Error()); fErr != nil {
			e.logger.ErrorwCtx(ctx, "Failed to finalize agent task", "task_id", task.ID, "error", fErr)
		}
		return Outcome{
			AgentID:  desc.ID,
			Type:     desc.Type,
			Success:  false,
			Error:    err.Error(),
			Duration: duration,
		}
	}

	if mods != nil {
		*working = mods.Apply(*working)
	}

	metrics.AgentInvocationsTotal.WithLabelValues(string(desc.Type), "completed").Inc()
	if fErr := e.repo.FinalizeTask(ctx, task.ID, TaskCompleted, modificationResult(mods), ""); fErr != nil {
		e.logger.ErrorwCtx(ctx, "Failed to finalize agent task", "task_id", task.ID, "error", fErr)
	}

	return Outcome{
		AgentID:  desc.ID,
		Type:     desc.Type,
		Success:  true,
		Duration: duration,
	}
}

// invoke calls the agent with a bounded context and converts panics
// into ordinary errors so a misbehaving agent cannot take down a run.
func (e *Executor) invoke(ctx context.Context, a agent.Agent, msg models.Message) (mods *models.Modifications, err error) {
	if e.agentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.agentTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			mods = nil
			err = errors.RecoverPanic(r)
		}
	}()

	return a.Process(ctx, msg)
}

func modificationResult(mods *models.Modifications) map[string]interface{} {
	if mods == nil {
		return nil
	}

	result := make(map[string]interface{})
	if mods.Priority != nil {
		result["priority"] = string(*mods.Priority)
	}
	if mods.Category != nil {
		result["category"] = string(*mods.Category)
	}
	if len(mods.AddLabels) > 0 {
		result["labels_added"] = mods.AddLabels
	}
	if mods.Starred != nil {
		result["starred"] = *mods.Starred
	}
	if len(mods.Metadata) > 0 {
		result["metadata_keys"] = len(mods.Metadata)
	}
	if mods.Analysis != nil {
		result["analysis"] = true
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
