package campaign

import (
	"context"
	"time"

	"pigeon/internal/logger"
	"pigeon/pkg/cel"
	pkgerrors "pigeon/pkg/errors"
	"pigeon/pkg/metrics"
	"pigeon/pkg/models"
)

// JobScheduler is the scheduling collaborator the service drives.
// Schedule submits jobs derived from the campaign's stored Schedule;
// when the first-run time is already in the past it synchronously
// invokes the execution callback instead of queuing (immediate=true).
// CancelJobs removes every queued job referencing the campaign id.
type JobScheduler interface {
	Schedule(ctx context.Context, c *Campaign) (immediate bool, err error)
	CancelJobs(ctx context.Context, campaignID string) (int, error)
}

// Sender performs the actual delivery. It is a collaborator: the core
// only records its outcome in the campaign metrics.
type Sender interface {
	Send(ctx context.Context, c *Campaign, recipients []models.Recipient) (sent, failed int64, err error)
}

// LogSender is the default Sender used when no provider is wired. It
// counts every recipient as sent.
type LogSender struct {
	Logger logger.Logger
}

func (s LogSender) Send(ctx context.Context, c *Campaign, recipients []models.Recipient) (int64, int64, error) {
	s.Logger.InfowCtx(ctx, "Campaign batch dispatched",
		"campaign_id", c.ID,
		"provider", c.Delivery.Provider,
		"recipients", len(recipients),
	)
	return int64(len(recipients)), 0, nil
}

type Service struct {
	store     *Store
	evaluator *cel.Evaluator
	scheduler JobScheduler
	sender    Sender
	logger    logger.Logger
}

func NewService(store *Store, evaluator *cel.Evaluator, sender Sender, log logger.Logger) *Service {
	return &Service{
		store:     store,
		evaluator: evaluator,
		sender:    sender,
		logger:    log,
	}
}

// SetScheduler wires the scheduling collaborator. Done after
// construction because the scheduler's execution callback points back
// at this service.
func (s *Service) SetScheduler(js JobScheduler) {
	s.scheduler = js
}

func (s *Service) Create(ctx context.Context, req CreateCampaignRequest) (*Campaign, error) {
	if !req.Type.Valid() {
		return nil, pkgerrors.ErrValidation.WithMessage("unknown campaign type: %s", req.Type)
	}
	if req.AudienceFilter != "" {
		if err := s.evaluator.ValidateAudienceExpression(req.AudienceFilter); err != nil {
			return nil, pkgerrors.ErrValidation.WithCause(err).
				WithMessage("invalid audience filter: %v", err)
		}
	}

	c := &Campaign{
		Name:           req.Name,
		Status:         StatusDraft,
		Type:           req.Type,
		AudienceFilter: req.AudienceFilter,
		Recipients:     req.Recipients,
		Subject:        req.Subject,
		Content:        req.Content,
		Owner:          req.Owner,
	}
	if req.Delivery != nil {
		c.Delivery = *req.Delivery
	}
	if c.Delivery.Provider == "" {
		c.Delivery.Provider = "default"
	}

	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.InfowCtx(ctx, "Campaign created",
		"campaign_id", c.ID,
		"name", c.Name,
		"type", c.Type,
	)
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Campaign, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(_ context.Context, status Status) []Campaign {
	return s.store.List(status)
}

func (s *Service) Update(ctx context.Context, id string, req UpdateCampaignRequest) (*Campaign, error) {
	if req.AudienceFilter != nil && *req.AudienceFilter != "" {
		if err := s.evaluator.ValidateAudienceExpression(*req.AudienceFilter); err != nil {
			return nil, pkgerrors.ErrValidation.WithCause(err).
				WithMessage("invalid audience filter: %v", err)
		}
	}

	return s.store.Mutate(ctx, id, func(c *Campaign) error {
		if c.Status.Terminal() {
			return pkgerrors.ErrInvalidState.
				WithMessage("Campaign %s is %s and cannot be updated", id, c.Status)
		}
		if req.Name != nil {
			c.Name = *req.Name
		}
		if req.AudienceFilter != nil {
			c.AudienceFilter = *req.AudienceFilter
		}
		if req.Recipients != nil {
			c.Recipients = *req.Recipients
		}
		if req.Subject != nil {
			c.Subject = *req.Subject
		}
		if req.Content != nil {
			c.Content = *req.Content
		}
		if req.Delivery != nil {
			c.Delivery = *req.Delivery
		}
		if req.Approved != nil {
			c.Approved = *req.Approved
		}
		return nil
	})
}

// Schedule attaches the schedule snapshot, moves the campaign to
// scheduled and submits jobs. A failed submission rolls the status
// back so the caller sees the prior consistent state.
func (s *Service) Schedule(ctx context.Context, id string, schedule Schedule) (*Campaign, error) {
	if err := validateSchedule(schedule); err != nil {
		return nil, err
	}

	prior, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c, err := s.store.Mutate(ctx, id, func(c *Campaign) error {
		if err := Transition(c, StatusScheduled); err != nil {
			return err
		}
		snapshot := schedule
		c.Schedule = &snapshot
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Incremented before the scheduler call: a past start date makes
	// Schedule run the execution callback synchronously, and its
	// completion decrement must land on a gauge that already counts
	// this campaign.
	metrics.CampaignsActiveGauge.Inc()
	if _, err := s.scheduler.Schedule(ctx, c); err != nil {
		metrics.CampaignsActiveGauge.Dec()
		if _, rbErr := s.store.Mutate(ctx, id, func(c *Campaign) error {
			c.Status = prior.Status
			c.Schedule = prior.Schedule
			return nil
		}); rbErr != nil {
			s.logger.ErrorwCtx(ctx, "Failed to roll back campaign after scheduling error",
				"campaign_id", id, "error", rbErr)
		}
		return nil, pkgerrors.ErrScheduling.WithCause(err).
			WithMessage("failed to schedule campaign %s: %v", id, err)
	}

	// Immediate execution already ran the callback; re-read so the
	// caller sees the post-execution status.
	return s.store.Get(ctx, id)
}

// Pause removes the campaign's queued jobs and parks it. Removed, not
// failed: the failed-job ledger is reserved for real failures, and
// Resume re-derives jobs from the stored Schedule.
func (s *Service) Pause(ctx context.Context, id string) (*Campaign, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(c.Status, StatusPaused) {
		return nil, NewInvalidTransitionError(id, c.Status, StatusPaused)
	}

	removed, err := s.scheduler.CancelJobs(ctx, id)
	if err != nil {
		return nil, pkgerrors.ErrScheduling.WithCause(err).
			WithMessage("failed to cancel jobs for campaign %s: %v", id, err)
	}

	s.logger.InfowCtx(ctx, "Campaign paused", "campaign_id", id, "jobs_removed", removed)
	return s.store.Mutate(ctx, id, func(c *Campaign) error {
		return Transition(c, StatusPaused)
	})
}

// Resume re-derives jobs from the stored Schedule and reactivates the
// campaign. Resuming a campaign that is not paused fails with an
// InvalidStateError.
func (s *Service) Resume(ctx context.Context, id string) (*Campaign, error) {
	prior, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if prior.Status != StatusPaused {
		return nil, NewInvalidTransitionError(id, prior.Status, StatusActive)
	}
	if prior.Schedule == nil {
		return nil, pkgerrors.ErrScheduling.
			WithMessage("Campaign %s has no stored schedule to resume", id)
	}

	c, err := s.store.Mutate(ctx, id, func(c *Campaign) error {
		return Transition(c, StatusActive)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.scheduler.Schedule(ctx, c); err != nil {
		if _, rbErr := s.store.Mutate(ctx, id, func(c *Campaign) error {
			c.Status = StatusPaused
			return nil
		}); rbErr != nil {
			s.logger.ErrorwCtx(ctx, "Failed to roll back campaign after resume error",
				"campaign_id", id, "error", rbErr)
		}
		return nil, pkgerrors.ErrScheduling.WithCause(err).
			WithMessage("failed to resume campaign %s: %v", id, err)
	}

	return s.store.Get(ctx, id)
}

// Delete cancels every queued job referencing the campaign, marks it
// cancelled, then removes it from the store.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	removed, err := s.scheduler.CancelJobs(ctx, id)
	if err != nil {
		return pkgerrors.ErrScheduling.WithCause(err).
			WithMessage("failed to cancel jobs for campaign %s: %v", id, err)
	}
	if removed > 0 {
		s.logger.InfowCtx(ctx, "Cancelled campaign jobs before delete",
			"campaign_id", id, "jobs_removed", removed)
	}

	if !c.Status.Terminal() {
		if _, err := s.store.Mutate(ctx, id, func(c *Campaign) error {
			return Transition(c, StatusCancelled)
		}); err != nil {
			return err
		}
	}
	if c.Status == StatusActive || c.Status == StatusScheduled {
		metrics.CampaignsActiveGauge.Dec()
	}

	return s.store.Delete(ctx, id)
}

// Execute is the campaign execution callback invoked when a scheduled
// job fires. It activates the campaign on first fire, sends to the
// filtered audience, accumulates metrics, and completes one-time
// campaigns.
func (s *Service) Execute(ctx context.Context, id string) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	switch c.Status {
	case StatusPaused, StatusCancelled, StatusCompleted:
		// A job fired across a pause/cancel race; drop it.
		s.logger.WarnwCtx(ctx, "Skipping execution for inactive campaign",
			"campaign_id", id, "status", c.Status)
		return nil
	case StatusScheduled:
		if c, err = s.store.Mutate(ctx, id, func(c *Campaign) error {
			return Transition(c, StatusActive)
		}); err != nil {
			return err
		}
	}

	audience, err := s.evaluator.FilterAudience(ctx, c.AudienceFilter, c.Recipients)
	if err != nil {
		return pkgerrors.ErrInternal.WithCause(err).
			WithMessage("audience filtering failed for campaign %s: %v", id, err)
	}

	sent, failed, err := s.sender.Send(ctx, c, audience)
	if err != nil {
		return err
	}

	recurring := c.Schedule != nil && c.Schedule.Recurring()
	if _, err := s.store.Mutate(ctx, id, func(c *Campaign) error {
		now := time.Now()
		c.Metrics.Sent += sent
		c.Metrics.Failed += failed
		c.Metrics.Runs++
		c.Metrics.LastRunAt = &now
		if !recurring {
			return Transition(c, StatusCompleted)
		}
		return nil
	}); err != nil {
		return err
	}
	if !recurring {
		metrics.CampaignsActiveGauge.Dec()
	}

	s.logger.InfowCtx(ctx, "Campaign executed",
		"campaign_id", id,
		"sent", sent,
		"failed", failed,
	)
	return nil
}

func validateSchedule(schedule Schedule) error {
	if schedule.StartDate.IsZero() {
		return pkgerrors.ErrValidation.WithMessage("schedule start date is required")
	}
	if schedule.EndDate != nil && schedule.EndDate.Before(schedule.StartDate) {
		return pkgerrors.ErrValidation.WithMessage("schedule end date precedes start date")
	}
	if schedule.Timezone != "" {
		if _, err := time.LoadLocation(schedule.Timezone); err != nil {
			return pkgerrors.ErrValidation.WithMessage("unknown timezone: %s", schedule.Timezone)
		}
	}
	if f := schedule.Frequency; f != nil {
		switch f.Type {
		case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		case FrequencyCustom:
			if f.Expression == "" {
				return pkgerrors.ErrScheduling.
					WithMessage("custom frequency requires a recurrence expression")
			}
		default:
			return pkgerrors.ErrScheduling.
				WithMessage("unknown frequency type: %s", f.Type)
		}
	}
	return nil
}
