package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pigeon/internal/campaign"
	"pigeon/internal/logger"
	pkgerrors "pigeon/pkg/errors"
	"pigeon/pkg/retry"
)

// ExecuteFunc runs one campaign execution. It is wired to the campaign
// service at startup; the indirection keeps this package from
// depending on campaign's service type.
type ExecuteFunc func(ctx context.Context, campaignID string) error

// Service derives jobs from campaign schedules and submits them to the
// queue. It implements campaign.JobScheduler.
type Service struct {
	queue   JobQueue
	execute ExecuteFunc
	logger  logger.Logger
	now     func() time.Time
}

func NewService(queue JobQueue, execute ExecuteFunc, log logger.Logger) *Service {
	return &Service{
		queue:   queue,
		execute: execute,
		logger:  log,
		now:     time.Now,
	}
}

// Schedule turns the campaign's stored schedule into queued jobs.
//
// A one-time schedule whose start date is already past is not queued
// at all: the execution callback runs synchronously and immediate is
// returned true, so the caller observes the post-execution status. A
// recurring schedule always queues, with its first occurrence computed
// at or after max(now, start date) in the schedule's timezone.
func (s *Service) Schedule(ctx context.Context, c *campaign.Campaign) (bool, error) {
	if c.Schedule == nil {
		return false, pkgerrors.ErrScheduling.WithMessage("Campaign %s has no schedule", c.ID)
	}

	if !c.Schedule.Recurring() {
		return s.scheduleOneTime(ctx, c)
	}
	return false, s.scheduleRecurring(ctx, c)
}

func (s *Service) scheduleOneTime(ctx context.Context, c *campaign.Campaign) (bool, error) {
	now := s.now()
	if !c.Schedule.StartDate.After(now) {
		s.logger.InfowCtx(ctx, "Start date already passed, executing immediately",
			"campaign_id", c.ID,
			"start_date", c.Schedule.StartDate,
		)
		if err := s.execute(ctx, c.ID); err != nil {
			return false, err
		}
		return true, nil
	}

	job := s.newJob(c, JobDelayed, c.Schedule.StartDate)
	if err := s.queue.Submit(ctx, job); err != nil {
		return false, err
	}

	s.logger.InfowCtx(ctx, "One-time job queued",
		"campaign_id", c.ID,
		"job_id", job.ID,
		"run_at", job.RunAt,
	)
	return false, nil
}

func (s *Service) scheduleRecurring(ctx context.Context, c *campaign.Campaign) error {
	expr, err := DeriveRecurrence(*c.Schedule)
	if err != nil {
		return err
	}

	from := s.now()
	if c.Schedule.StartDate.After(from) {
		from = c.Schedule.StartDate
	}
	first, err := NextRun(expr, c.Schedule.Timezone, from)
	if err != nil {
		return err
	}
	if c.Schedule.EndDate != nil && first.After(*c.Schedule.EndDate) {
		return pkgerrors.ErrScheduling.
			WithMessage("Campaign %s schedule ends before its first occurrence", c.ID)
	}

	job := s.newJob(c, JobRecurring, first)
	job.Recurrence = expr
	job.Timezone = c.Schedule.Timezone
	job.EndDate = c.Schedule.EndDate

	if err := s.queue.Submit(ctx, job); err != nil {
		return err
	}

	s.logger.InfowCtx(ctx, "Recurring job queued",
		"campaign_id", c.ID,
		"job_id", job.ID,
		"recurrence", expr,
		"first_run", first,
	)
	return nil
}

// CancelJobs removes every queued job for the campaign. Removal, not
// failure: pause and delete both drop jobs without a trace in the
// failed set.
func (s *Service) CancelJobs(ctx context.Context, campaignID string) (int, error) {
	removed, err := s.queue.RemoveByCampaign(ctx, campaignID)
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		s.logger.InfowCtx(ctx, "Campaign jobs removed",
			"campaign_id", campaignID,
			"count", removed,
		)
	}
	return removed, nil
}

func (s *Service) newJob(c *campaign.Campaign, state JobState, runAt time.Time) *Job {
	return &Job{
		ID:         uuid.New().String(),
		Type:       JobTypeCampaignExecute,
		CampaignID: c.ID,
		State:      state,
		RunAt:      runAt,
		Retry:      retryPolicyFor(c),
		CreatedAt:  s.now(),
	}
}

// retryPolicyFor carries the campaign's delivery retry settings onto
// the job so the worker needs no access to the campaign record to
// honor them.
func retryPolicyFor(c *campaign.Campaign) retry.Policy {
	policy := retry.DefaultPolicy()
	if c.Delivery.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = c.Delivery.Retry.MaxAttempts
	}
	if c.Delivery.Retry.BaseDelay > 0 {
		policy.InitialInterval = c.Delivery.Retry.BaseDelay
	}
	return policy
}
