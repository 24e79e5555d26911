package scheduler

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/campaign"
	"pigeon/internal/logger"
	pkgerrors "pigeon/pkg/errors"
)

// memoryQueue is an in-memory JobQueue for tests, mirroring the Redis
// implementation's semantics.
type memoryQueue struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	submitErr error
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{jobs: make(map[string]*Job)}
}

func (q *memoryQueue) Submit(_ context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.submitErr != nil {
		return q.submitErr
	}
	clone := *job
	q.jobs[job.ID] = &clone
	return nil
}

func (q *memoryQueue) Due(_ context.Context, state JobState, now time.Time, limit int) ([]*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []*Job
	for _, job := range q.jobs {
		if job.State == state && !job.RunAt.After(now) {
			clone := *job
			due = append(due, &clone)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (q *memoryQueue) Reschedule(_ context.Context, job *Job, runAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.RunAt = runAt
	clone := *job
	q.jobs[job.ID] = &clone
	return nil
}

func (q *memoryQueue) MarkFailed(_ context.Context, job *Job, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.State = JobFailed
	if cause != nil {
		job.LastError = cause.Error()
	}
	clone := *job
	q.jobs[job.ID] = &clone
	return nil
}

func (q *memoryQueue) Remove(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.jobs, jobID)
	return nil
}

func (q *memoryQueue) RemoveByCampaign(_ context.Context, campaignID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for id, job := range q.jobs {
		if job.CampaignID == campaignID {
			delete(q.jobs, id)
			removed++
		}
	}
	return removed, nil
}

func (q *memoryQueue) ListByCampaign(_ context.Context, campaignID string) ([]*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var jobs []*Job
	for _, job := range q.jobs {
		if job.CampaignID == campaignID {
			clone := *job
			jobs = append(jobs, &clone)
		}
	}
	return jobs, nil
}

func (q *memoryQueue) ListByState(_ context.Context, state JobState, limit int) ([]*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var jobs []*Job
	for _, job := range q.jobs {
		if job.State == state {
			clone := *job
			jobs = append(jobs, &clone)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].RunAt.Before(jobs[j].RunAt) })
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (q *memoryQueue) Get(_ context.Context, jobID string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return nil, pkgerrors.ErrNotFound.WithMessage("Job %s not found", jobID)
	}
	clone := *job
	return &clone, nil
}

func (q *memoryQueue) Counts(_ context.Context) (map[JobState]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[JobState]int64)
	for _, job := range q.jobs {
		counts[job.State]++
	}
	return counts, nil
}

func (q *memoryQueue) all() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var jobs []*Job
	for _, job := range q.jobs {
		clone := *job
		jobs = append(jobs, &clone)
	}
	return jobs
}

type executeRecorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *executeRecorder) fn(_ context.Context, campaignID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, campaignID)
	return r.err
}

func (r *executeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func frozenClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func oneTimeCampaign(id string, start time.Time) *campaign.Campaign {
	return &campaign.Campaign{
		ID:       id,
		Status:   campaign.StatusScheduled,
		Schedule: &campaign.Schedule{StartDate: start},
	}
}

func TestScheduleOneTimeFutureQueuesDelayedJob(t *testing.T) {
	queue := newMemoryQueue()
	rec := &executeRecorder{}
	svc := NewService(queue, rec.fn, logger.NopLogger())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = frozenClock(now)

	immediate, err := svc.Schedule(context.Background(), oneTimeCampaign("c1", now.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, immediate)
	assert.Zero(t, rec.count())

	jobs := queue.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, JobDelayed, jobs[0].State)
	assert.Equal(t, "c1", jobs[0].CampaignID)
	assert.Equal(t, JobTypeCampaignExecute, jobs[0].Type)
	assert.True(t, jobs[0].RunAt.Equal(now.Add(time.Hour)))
}

func TestScheduleOneTimePastExecutesImmediately(t *testing.T) {
	queue := newMemoryQueue()
	rec := &executeRecorder{}
	svc := NewService(queue, rec.fn, logger.NopLogger())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = frozenClock(now)

	immediate, err := svc.Schedule(context.Background(), oneTimeCampaign("c1", now.Add(-time.Minute)))
	require.NoError(t, err)
	assert.True(t, immediate)
	assert.Equal(t, 1, rec.count())
	assert.Empty(t, queue.all(), "immediate execution must not queue a job")
}

func TestScheduleRecurringQueuesWithDerivedExpression(t *testing.T) {
	queue := newMemoryQueue()
	rec := &executeRecorder{}
	svc := NewService(queue, rec.fn, logger.NopLogger())

	// Sunday noon UTC; first Mon/Wed/Fri 09:00 New York occurrence is
	// Monday 14:00 UTC.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = frozenClock(now)

	c := &campaign.Campaign{
		ID:     "c1",
		Status: campaign.StatusScheduled,
		Schedule: &campaign.Schedule{
			StartDate: now.Add(-24 * time.Hour),
			Timezone:  "America/New_York",
			SendTime:  "09:00",
			Frequency: &campaign.Frequency{
				Type:       campaign.FrequencyWeekly,
				DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
			},
		},
	}

	immediate, err := svc.Schedule(context.Background(), c)
	require.NoError(t, err)
	assert.False(t, immediate)

	jobs := queue.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, JobRecurring, jobs[0].State)
	assert.Equal(t, "0 9 * * 1,3,5", jobs[0].Recurrence)
	assert.Equal(t, "America/New_York", jobs[0].Timezone)
	assert.True(t, jobs[0].RunAt.Equal(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)))
}

func TestScheduleRecurringFirstRunRespectsFutureStartDate(t *testing.T) {
	queue := newMemoryQueue()
	svc := NewService(queue, (&executeRecorder{}).fn, logger.NopLogger())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = frozenClock(now)

	c := &campaign.Campaign{
		ID:     "c1",
		Status: campaign.StatusScheduled,
		Schedule: &campaign.Schedule{
			StartDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			SendTime:  "09:00",
			Frequency: &campaign.Frequency{Type: campaign.FrequencyDaily},
		},
	}

	_, err := svc.Schedule(context.Background(), c)
	require.NoError(t, err)

	jobs := queue.all()
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].RunAt.Equal(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)))
}

func TestScheduleRecurringRejectsEndBeforeFirstOccurrence(t *testing.T) {
	queue := newMemoryQueue()
	svc := NewService(queue, (&executeRecorder{}).fn, logger.NopLogger())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = frozenClock(now)

	end := now.Add(time.Hour) // before tomorrow 09:00
	c := &campaign.Campaign{
		ID:     "c1",
		Status: campaign.StatusScheduled,
		Schedule: &campaign.Schedule{
			StartDate: now,
			EndDate:   &end,
			SendTime:  "09:00",
			Frequency: &campaign.Frequency{Type: campaign.FrequencyDaily},
		},
	}

	_, err := svc.Schedule(context.Background(), c)
	assert.Error(t, err)
	assert.Empty(t, queue.all())
}

func TestScheduleCarriesDeliveryRetryPolicy(t *testing.T) {
	queue := newMemoryQueue()
	svc := NewService(queue, (&executeRecorder{}).fn, logger.NopLogger())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = frozenClock(now)

	c := oneTimeCampaign("c1", now.Add(time.Hour))
	c.Delivery.Retry = campaign.RetrySpec{MaxAttempts: 7, BaseDelay: 42 * time.Second}

	_, err := svc.Schedule(context.Background(), c)
	require.NoError(t, err)

	jobs := queue.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, 7, jobs[0].Retry.MaxAttempts)
	assert.Equal(t, 42*time.Second, jobs[0].Retry.InitialInterval)
}

func TestScheduleWithoutScheduleFails(t *testing.T) {
	svc := NewService(newMemoryQueue(), (&executeRecorder{}).fn, logger.NopLogger())

	_, err := svc.Schedule(context.Background(), &campaign.Campaign{ID: "c1"})
	assert.Error(t, err)
}

func TestScheduleSubmitFailurePropagates(t *testing.T) {
	queue := newMemoryQueue()
	queue.submitErr = pkgerrors.ErrServiceUnavailable.WithMessage("job queue unavailable")
	svc := NewService(queue, (&executeRecorder{}).fn, logger.NopLogger())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = frozenClock(now)

	_, err := svc.Schedule(context.Background(), oneTimeCampaign("c1", now.Add(time.Hour)))
	assert.Error(t, err)
}

func TestCancelJobsRemovesOnlyTheCampaignsJobs(t *testing.T) {
	queue := newMemoryQueue()
	svc := NewService(queue, (&executeRecorder{}).fn, logger.NopLogger())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = frozenClock(now)

	_, err := svc.Schedule(context.Background(), oneTimeCampaign("c1", now.Add(time.Hour)))
	require.NoError(t, err)
	_, err = svc.Schedule(context.Background(), oneTimeCampaign("c2", now.Add(time.Hour)))
	require.NoError(t, err)

	removed, err := svc.CancelJobs(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining := queue.all()
	require.Len(t, remaining, 1)
	assert.Equal(t, "c2", remaining[0].CampaignID)
}
