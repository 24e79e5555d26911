package scheduler

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pigeon/internal/constants"
	"pigeon/pkg/circuitbreaker"
	pkgerrors "pigeon/pkg/errors"
	"pigeon/pkg/metrics"
)

// JobQueue persists scheduled jobs. Delayed and recurring jobs live in
// sorted sets keyed by their next run time; failed jobs are kept for
// inspection and never rescheduled automatically.
type JobQueue interface {
	Submit(ctx context.Context, job *Job) error
	Due(ctx context.Context, state JobState, now time.Time, limit int) ([]*Job, error)
	Reschedule(ctx context.Context, job *Job, runAt time.Time) error
	MarkFailed(ctx context.Context, job *Job, cause error) error
	Remove(ctx context.Context, jobID string) error
	RemoveByCampaign(ctx context.Context, campaignID string) (int, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]*Job, error)
	ListByState(ctx context.Context, state JobState, limit int) ([]*Job, error)
	Get(ctx context.Context, jobID string) (*Job, error)
	Counts(ctx context.Context) (map[JobState]int64, error)
}

// RedisQueue stores each job's document under jobs:data:<id> and keeps
// three membership structures: the delayed and recurring sorted sets
// (score = next run time, unix seconds) and the failed set. A
// per-campaign index set makes cancel-by-campaign a bounded operation.
type RedisQueue struct {
	client  *redis.Client
	breaker *circuitbreaker.Wrapper
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		client:  client,
		breaker: circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("job-queue")),
	}
}

func stateKey(state JobState) string {
	switch state {
	case JobRecurring:
		return constants.JobQueueRecurringKey
	case JobFailed:
		return constants.JobQueueFailedKey
	default:
		return constants.JobQueueDelayedKey
	}
}

func dataKey(jobID string) string {
	return constants.JobQueueDataPrefix + jobID
}

func campaignKey(campaignID string) string {
	return constants.JobQueueCampaignPrefix + campaignID
}

// Submit writes the job document and enrolls it in its state's sorted
// set in a single transaction. The write path is breaker-protected so
// a dead Redis fails fast instead of stalling the campaign API.
func (q *RedisQueue) Submit(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return pkgerrors.ErrInternal.WithCause(err).WithMessage("encode job %s: %v", job.ID, err)
	}

	_, err = q.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		pipe := q.client.TxPipeline()
		pipe.Set(ctx, dataKey(job.ID), data, 0)
		pipe.ZAdd(ctx, stateKey(job.State), redis.Z{
			Score:  float64(job.RunAt.Unix()),
			Member: job.ID,
		})
		if job.CampaignID != "" {
			pipe.SAdd(ctx, campaignKey(job.CampaignID), job.ID)
		}
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	if err != nil {
		return pkgerrors.ErrServiceUnavailable.WithCause(err).
			WithMessage("job queue unavailable: %v", err)
	}

	metrics.JobsSubmittedTotal.WithLabelValues(job.Type, string(job.State)).Inc()
	return nil
}

// Due returns up to limit jobs whose run time is at or before now,
// oldest first. Jobs whose document disappeared (cancelled mid-poll)
// are pruned from the set and skipped.
func (q *RedisQueue) Due(ctx context.Context, state JobState, now time.Time, limit int) ([]*Job, error) {
	ids, err := q.client.ZRangeByScore(ctx, stateKey(state), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   formatScore(now),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithCause(err).
			WithMessage("job queue unavailable: %v", err)
	}

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := q.Get(ctx, id)
		if pkgerrors.IsNotFound(err) {
			q.client.ZRem(ctx, stateKey(state), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Reschedule moves a recurring job's score to its next occurrence and
// persists the updated attempt counters.
func (q *RedisQueue) Reschedule(ctx context.Context, job *Job, runAt time.Time) error {
	job.RunAt = runAt

	data, err := json.Marshal(job)
	if err != nil {
		return pkgerrors.ErrInternal.WithCause(err).WithMessage("encode job %s: %v", job.ID, err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, dataKey(job.ID), data, 0)
	pipe.ZAdd(ctx, stateKey(job.State), redis.Z{
		Score:  float64(runAt.Unix()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return pkgerrors.ErrServiceUnavailable.WithCause(err).
			WithMessage("job queue unavailable: %v", err)
	}
	return nil
}

// MarkFailed moves a job that exhausted its retry policy into the
// failed set. The job document keeps its last error so operators can
// inspect what went wrong. Campaign status is untouched.
func (q *RedisQueue) MarkFailed(ctx context.Context, job *Job, cause error) error {
	fromKey := stateKey(job.State)
	job.State = JobFailed
	if cause != nil {
		job.LastError = cause.Error()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return pkgerrors.ErrInternal.WithCause(err).WithMessage("encode job %s: %v", job.ID, err)
	}

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, fromKey, job.ID)
	pipe.Set(ctx, dataKey(job.ID), data, 0)
	pipe.ZAdd(ctx, constants.JobQueueFailedKey, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return pkgerrors.ErrServiceUnavailable.WithCause(err).
			WithMessage("job queue unavailable: %v", err)
	}
	return nil
}

// Remove deletes a job from every structure it might live in.
func (q *RedisQueue) Remove(ctx context.Context, jobID string) error {
	job, err := q.Get(ctx, jobID)
	if pkgerrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, constants.JobQueueDelayedKey, jobID)
	pipe.ZRem(ctx, constants.JobQueueRecurringKey, jobID)
	pipe.ZRem(ctx, constants.JobQueueFailedKey, jobID)
	pipe.Del(ctx, dataKey(jobID))
	if job.CampaignID != "" {
		pipe.SRem(ctx, campaignKey(job.CampaignID), jobID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return pkgerrors.ErrServiceUnavailable.WithCause(err).
			WithMessage("job queue unavailable: %v", err)
	}
	return nil
}

// RemoveByCampaign drops every queued job belonging to a campaign and
// returns how many were removed. Used by pause and delete, which
// remove jobs rather than failing them.
func (q *RedisQueue) RemoveByCampaign(ctx context.Context, campaignID string) (int, error) {
	ids, err := q.client.SMembers(ctx, campaignKey(campaignID)).Result()
	if err != nil {
		return 0, pkgerrors.ErrServiceUnavailable.WithCause(err).
			WithMessage("job queue unavailable: %v", err)
	}

	removed := 0
	for _, id := range ids {
		if err := q.Remove(ctx, id); err != nil {
			return removed, err
		}
		removed++
	}

	if err := q.client.Del(ctx, campaignKey(campaignID)).Err(); err != nil {
		return removed, pkgerrors.ErrServiceUnavailable.WithCause(err).
			WithMessage("job queue unavailable: %v", err)
	}
	return removed, nil
}

func (q *RedisQueue) ListByCampaign(ctx context.Context, campaignID string) ([]*Job, error) {
	ids, err := q.client.SMembers(ctx, campaignKey(campaignID)).Result()
	if err != nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithCause(err).
			WithMessage("job queue unavailable: %v", err)
	}

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := q.Get(ctx, id)
		if pkgerrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ListByState pages through a state's sorted set in run-time order.
// Backs the job inspection endpoint.
func (q *RedisQueue) ListByState(ctx context.Context, state JobState, limit int) ([]*Job, error) {
	ids, err := q.client.ZRange(ctx, stateKey(state), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithCause(err).
			WithMessage("job queue unavailable: %v", err)
	}

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := q.Get(ctx, id)
		if pkgerrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (q *RedisQueue) Get(ctx context.Context, jobID string) (*Job, error) {
	data, err := q.client.Get(ctx, dataKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, pkgerrors.ErrNotFound.WithMessage("Job %s not found", jobID)
	}
	if err != nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithCause(err).
			WithMessage("job queue unavailable: %v", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, pkgerrors.ErrInternal.WithCause(err).
			WithMessage("decode job %s: %v", jobID, err)
	}
	return &job, nil
}

// Counts reports queue depth per state, feeding the queued-jobs gauge.
func (q *RedisQueue) Counts(ctx context.Context) (map[JobState]int64, error) {
	counts := make(map[JobState]int64, 3)
	for _, state := range []JobState{JobDelayed, JobRecurring, JobFailed} {
		n, err := q.client.ZCard(ctx, stateKey(state)).Result()
		if err != nil {
			return nil, pkgerrors.ErrServiceUnavailable.WithCause(err).
				WithMessage("job queue unavailable: %v", err)
		}
		counts[state] = n
	}
	return counts, nil
}

func formatScore(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
