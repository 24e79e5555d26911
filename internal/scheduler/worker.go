package scheduler

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"pigeon/internal/constants"
	"pigeon/internal/logger"
	"pigeon/pkg/metrics"
	"pigeon/pkg/retry"
)

const dueBatchSize = 100

// Worker polls the job queue and executes due jobs. Each job is retried
// with its own carried policy; a job that exhausts retries moves to the
// failed set and stays there for inspection, without touching any
// campaign status.
type Worker struct {
	queue        JobQueue
	execute      ExecuteFunc
	logger       logger.Logger
	pollInterval time.Duration
	limiter      *rate.Limiter
	now          func() time.Time
}

type WorkerOptions struct {
	PollInterval time.Duration
	// ExecutionsPerSecond throttles how fast due jobs are dispatched.
	// Zero means unthrottled.
	ExecutionsPerSecond float64
}

func NewWorker(queue JobQueue, execute ExecuteFunc, log logger.Logger, opts WorkerOptions) *Worker {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = constants.DefaultSchedulerPollInterval
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.ExecutionsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.ExecutionsPerSecond), 1)
	}

	return &Worker{
		queue:        queue,
		execute:      execute,
		logger:       log,
		pollInterval: interval,
		limiter:      limiter,
		now:          time.Now,
	}
}

// Run polls until the context is cancelled. Delayed and recurring jobs
// are polled concurrently; both loops exit on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return w.pollLoop(ctx, JobDelayed) })
	g.Go(func() error { return w.pollLoop(ctx, JobRecurring) })
	g.Go(func() error { return w.gaugeLoop(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) pollLoop(ctx context.Context, state JobState) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Tick(ctx, state); err != nil {
				w.logger.ErrorwCtx(ctx, "Job poll failed",
					"state", string(state),
					"error", err,
				)
			}
		}
	}
}

// Tick processes one poll iteration for the given queue state. Split
// out from the loop so tests can drive it directly.
func (w *Worker) Tick(ctx context.Context, state JobState) error {
	jobs, err := w.queue.Due(ctx, state, w.now(), dueBatchSize)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		w.runJob(ctx, job)
	}
	return nil
}

func (w *Worker) runJob(ctx context.Context, job *Job) {
	start := w.now()
	err := retry.RetryWithCallback(ctx, job.Retry, func() error {
		job.Attempts++
		return w.execute(ctx, job.CampaignID)
	}, func(attempt int, err error, nextDelay time.Duration) {
		w.logger.WarnwCtx(ctx, "Job execution failed, retrying",
			"job_id", job.ID,
			"campaign_id", job.CampaignID,
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	metrics.ObserveJobExecutionDuration(job.Type, time.Since(start))

	if err != nil {
		metrics.JobsExecutedTotal.WithLabelValues(job.Type, "failure").Inc()
		w.logger.ErrorwCtx(ctx, "Job exhausted retries",
			"job_id", job.ID,
			"campaign_id", job.CampaignID,
			"attempts", job.Attempts,
			"error", err,
		)
		if markErr := w.queue.MarkFailed(ctx, job, err); markErr != nil {
			w.logger.ErrorwCtx(ctx, "Failed to park job in failed set",
				"job_id", job.ID,
				"error", markErr,
			)
		}
		return
	}

	metrics.JobsExecutedTotal.WithLabelValues(job.Type, "success").Inc()
	w.finishJob(ctx, job)
}

// finishJob decides a successful job's fate: one-shot jobs are removed,
// recurring jobs are rescheduled to their next occurrence unless the
// schedule's end date has passed.
func (w *Worker) finishJob(ctx context.Context, job *Job) {
	if job.State != JobRecurring {
		w.removeJob(ctx, job)
		return
	}

	next, err := NextRun(job.Recurrence, job.Timezone, w.now())
	if err != nil {
		w.logger.ErrorwCtx(ctx, "Cannot compute next occurrence, parking job",
			"job_id", job.ID,
			"recurrence", job.Recurrence,
			"error", err,
		)
		if markErr := w.queue.MarkFailed(ctx, job, err); markErr != nil {
			w.logger.ErrorwCtx(ctx, "Failed to park job in failed set",
				"job_id", job.ID,
				"error", markErr,
			)
		}
		return
	}

	if job.Expired(next) {
		w.logger.InfowCtx(ctx, "Recurring job reached its end date",
			"job_id", job.ID,
			"campaign_id", job.CampaignID,
		)
		w.removeJob(ctx, job)
		return
	}

	if err := w.queue.Reschedule(ctx, job, next); err != nil {
		w.logger.ErrorwCtx(ctx, "Failed to reschedule recurring job",
			"job_id", job.ID,
			"error", err,
		)
	}
}

func (w *Worker) removeJob(ctx context.Context, job *Job) {
	if err := w.queue.Remove(ctx, job.ID); err != nil {
		w.logger.ErrorwCtx(ctx, "Failed to remove completed job",
			"job_id", job.ID,
			"error", err,
		)
	}
}

// gaugeLoop periodically publishes queue depth per state.
func (w *Worker) gaugeLoop(ctx context.Context) error {
	ticker := time.NewTicker(10 * w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			counts, err := w.queue.Counts(ctx)
			if err != nil {
				continue
			}
			for state, n := range counts {
				metrics.SetJobsQueued(string(state), int(n))
			}
		}
	}
}
