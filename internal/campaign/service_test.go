package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/logger"
	"pigeon/pkg/cel"
	pkgerrors "pigeon/pkg/errors"
	"pigeon/pkg/metrics"
	"pigeon/pkg/models"
)

// memoryRepository backs the store in tests.
type memoryRepository struct {
	mu        sync.Mutex
	campaigns map[string]Campaign
	failWrite bool
	seq       int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{campaigns: make(map[string]Campaign)}
}

func (m *memoryRepository) Create(_ context.Context, c *Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errors.New("database down")
	}
	if c.ID == "" {
		m.seq++
		c.ID = fmt.Sprintf("campaign-%d", m.seq)
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	m.campaigns[c.ID] = *c
	return nil
}

func (m *memoryRepository) Get(_ context.Context, id string) (*Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, NewCampaignNotFoundError(id)
	}
	return &c, nil
}

func (m *memoryRepository) List(_ context.Context, status Status, limit, offset int) ([]Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Campaign
	for _, c := range m.campaigns {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepository) Update(_ context.Context, c *Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errors.New("database down")
	}
	if _, ok := m.campaigns[c.ID]; !ok {
		return NewCampaignNotFoundError(c.ID)
	}
	c.UpdatedAt = time.Now()
	m.campaigns[c.ID] = *c
	return nil
}

func (m *memoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return NewCampaignNotFoundError(id)
	}
	delete(m.campaigns, id)
	return nil
}

// fakeScheduler records schedule/cancel calls and optionally executes
// immediately like the real scheduler does for past start dates.
type fakeScheduler struct {
	scheduled  []string
	cancelled  []string
	failSubmit bool
	immediate  bool
	execute    func(ctx context.Context, id string) error
}

func (f *fakeScheduler) Schedule(ctx context.Context, c *Campaign) (bool, error) {
	if f.failSubmit {
		return false, errors.New("queue unavailable")
	}
	f.scheduled = append(f.scheduled, c.ID)
	if f.immediate && f.execute != nil {
		return true, f.execute(ctx, c.ID)
	}
	return f.immediate, nil
}

func (f *fakeScheduler) CancelJobs(_ context.Context, campaignID string) (int, error) {
	f.cancelled = append(f.cancelled, campaignID)
	return 1, nil
}

type countingSender struct {
	sent int64
}

func (s *countingSender) Send(_ context.Context, _ *Campaign, recipients []models.Recipient) (int64, int64, error) {
	s.sent += int64(len(recipients))
	return int64(len(recipients)), 0, nil
}

type campaignFixture struct {
	repo      *memoryRepository
	store     *Store
	scheduler *fakeScheduler
	sender    *countingSender
	service   *Service
}

func newCampaignFixture(t *testing.T) *campaignFixture {
	t.Helper()

	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)

	f := &campaignFixture{
		repo:      newMemoryRepository(),
		scheduler: &fakeScheduler{},
		sender:    &countingSender{},
	}
	f.store = NewStore(f.repo, logger.NopLogger())
	f.service = NewService(f.store, evaluator, f.sender, logger.NopLogger())
	f.service.SetScheduler(f.scheduler)
	f.scheduler.execute = f.service.Execute
	return f
}

func (f *campaignFixture) createCampaign(t *testing.T, typ Type) *Campaign {
	t.Helper()
	c, err := f.service.Create(context.Background(), CreateCampaignRequest{
		Name: "Launch",
		Type: typ,
		Recipients: []models.Recipient{
			{Email: "a@example.com", Subscribed: true},
			{Email: "b@example.com", Subscribed: false},
		},
		Subject: "Hello",
		Content: "Body",
	})
	require.NoError(t, err)
	return c
}

func futureSchedule() Schedule {
	return Schedule{StartDate: time.Now().Add(24 * time.Hour), Timezone: "UTC"}
}

func TestCreateCampaignStartsAsDraft(t *testing.T) {
	f := newCampaignFixture(t)

	c := f.createCampaign(t, TypeOneTime)
	assert.Equal(t, StatusDraft, c.Status)
	assert.NotEmpty(t, c.ID)
}

func TestCreateCampaignRejectsBadAudienceFilter(t *testing.T) {
	f := newCampaignFixture(t)

	_, err := f.service.Create(context.Background(), CreateCampaignRequest{
		Name:           "Bad",
		Type:           TypeOneTime,
		AudienceFilter: "not valid syntax !!!",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestScheduleCampaign(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.createCampaign(t, TypeOneTime)

	scheduled, err := f.service.Schedule(context.Background(), c.ID, futureSchedule())
	require.NoError(t, err)

	assert.Equal(t, StatusScheduled, scheduled.Status)
	assert.NotNil(t, scheduled.Schedule)
	assert.Equal(t, []string{c.ID}, f.scheduler.scheduled)
}

func TestScheduleCampaignRollsBackOnSubmitFailure(t *testing.T) {
	f := newCampaignFixture(t)
	f.scheduler.failSubmit = true
	c := f.createCampaign(t, TypeOneTime)

	_, err := f.service.Schedule(context.Background(), c.ID, futureSchedule())
	require.Error(t, err)

	got, err := f.service.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, got.Status)
	assert.Nil(t, got.Schedule)
}

func TestScheduleCampaignPastStartExecutesImmediately(t *testing.T) {
	f := newCampaignFixture(t)
	f.scheduler.immediate = true
	c := f.createCampaign(t, TypeOneTime)

	got, err := f.service.Schedule(context.Background(), c.ID, Schedule{
		StartDate: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	// One-time campaign executed synchronously and completed.
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, int64(2), got.Metrics.Sent)
	assert.Equal(t, int64(1), got.Metrics.Runs)
}

func TestScheduleImmediateKeepsActiveGaugeNonNegative(t *testing.T) {
	f := newCampaignFixture(t)
	f.scheduler.immediate = true

	baseline := testutil.ToFloat64(metrics.CampaignsActiveGauge)
	execute := f.scheduler.execute
	var duringExecute float64
	f.scheduler.execute = func(ctx context.Context, id string) error {
		duringExecute = testutil.ToFloat64(metrics.CampaignsActiveGauge)
		return execute(ctx, id)
	}

	c := f.createCampaign(t, TypeOneTime)
	_, err := f.service.Schedule(context.Background(), c.ID, Schedule{
		StartDate: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	// The completion decrement inside the synchronous execution must
	// land on a gauge that already counts this campaign.
	assert.Equal(t, baseline+1, duringExecute)
	assert.Equal(t, baseline, testutil.ToFloat64(metrics.CampaignsActiveGauge))
}

func TestScheduleFromNonDraftFails(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.createCampaign(t, TypeOneTime)

	_, err := f.service.Schedule(context.Background(), c.ID, futureSchedule())
	require.NoError(t, err)

	_, err = f.service.Schedule(context.Background(), c.ID, futureSchedule())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidState(err))
}

func TestPauseAndResume(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.createCampaign(t, TypeRecurring)

	schedule := futureSchedule()
	schedule.Frequency = &Frequency{Type: FrequencyDaily}
	_, err := f.service.Schedule(context.Background(), c.ID, schedule)
	require.NoError(t, err)

	// Simulate first fire: scheduled -> active.
	require.NoError(t, f.service.Execute(context.Background(), c.ID))

	paused, err := f.service.Pause(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, paused.Status)
	assert.Equal(t, []string{c.ID}, f.scheduler.cancelled)

	resumed, err := f.service.Resume(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, resumed.Status)
	// Initial schedule + resume resubmission.
	assert.Equal(t, []string{c.ID, c.ID}, f.scheduler.scheduled)
}

func TestResumeNonPausedFails(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.createCampaign(t, TypeOneTime)

	_, err := f.service.Resume(context.Background(), c.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidState(err))
}

func TestPauseNonActiveFails(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.createCampaign(t, TypeOneTime)

	_, err := f.service.Pause(context.Background(), c.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidState(err))
	// No jobs touched when the transition is illegal.
	assert.Empty(t, f.scheduler.cancelled)
}

func TestDeleteCancelsJobsFirst(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.createCampaign(t, TypeOneTime)

	_, err := f.service.Schedule(context.Background(), c.ID, futureSchedule())
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(context.Background(), c.ID))
	assert.Equal(t, []string{c.ID}, f.scheduler.cancelled)

	_, err = f.service.Get(context.Background(), c.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "Campaign "+c.ID+" not found")
}

func TestExecuteSkipsPausedCampaign(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.createCampaign(t, TypeRecurring)

	schedule := futureSchedule()
	schedule.Frequency = &Frequency{Type: FrequencyDaily}
	_, err := f.service.Schedule(context.Background(), c.ID, schedule)
	require.NoError(t, err)
	require.NoError(t, f.service.Execute(context.Background(), c.ID))
	_, err = f.service.Pause(context.Background(), c.ID)
	require.NoError(t, err)

	sentBefore := f.sender.sent
	require.NoError(t, f.service.Execute(context.Background(), c.ID))
	assert.Equal(t, sentBefore, f.sender.sent)
}

func TestExecuteFiltersAudience(t *testing.T) {
	f := newCampaignFixture(t)

	c, err := f.service.Create(context.Background(), CreateCampaignRequest{
		Name:           "Filtered",
		Type:           TypeOneTime,
		AudienceFilter: "subscribed",
		Recipients: []models.Recipient{
			{Email: "in@example.com", Subscribed: true},
			{Email: "out@example.com", Subscribed: false},
		},
	})
	require.NoError(t, err)

	_, err = f.service.Schedule(context.Background(), c.ID, futureSchedule())
	require.NoError(t, err)
	require.NoError(t, f.service.Execute(context.Background(), c.ID))

	assert.Equal(t, int64(1), f.sender.sent)
}

func TestUpdateTerminalCampaignFails(t *testing.T) {
	f := newCampaignFixture(t)
	f.scheduler.immediate = true
	c := f.createCampaign(t, TypeOneTime)

	_, err := f.service.Schedule(context.Background(), c.ID, Schedule{StartDate: time.Now().Add(-time.Minute)})
	require.NoError(t, err)

	name := "renamed"
	_, err = f.service.Update(context.Background(), c.ID, UpdateCampaignRequest{Name: &name})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidState(err))
}

func TestOperationsOnUnknownCampaign(t *testing.T) {
	f := newCampaignFixture(t)

	_, err := f.service.Get(context.Background(), "ghost")
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = f.service.Pause(context.Background(), "ghost")
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = f.service.Resume(context.Background(), "ghost")
	assert.True(t, pkgerrors.IsNotFound(err))

	err = f.service.Delete(context.Background(), "ghost")
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "Campaign ghost not found")
}

func TestValidateSchedule(t *testing.T) {
	assert.Error(t, validateSchedule(Schedule{}))

	past := time.Now().Add(-time.Hour)
	end := past.Add(-time.Hour)
	assert.Error(t, validateSchedule(Schedule{StartDate: past, EndDate: &end}))

	assert.Error(t, validateSchedule(Schedule{StartDate: time.Now(), Timezone: "Mars/Olympus"}))

	assert.Error(t, validateSchedule(Schedule{
		StartDate: time.Now(),
		Frequency: &Frequency{Type: FrequencyCustom},
	}))

	assert.NoError(t, validateSchedule(Schedule{
		StartDate: time.Now(),
		Timezone:  "America/New_York",
		Frequency: &Frequency{Type: FrequencyWeekly, DaysOfWeek: []time.Weekday{time.Monday}},
	}))
}
