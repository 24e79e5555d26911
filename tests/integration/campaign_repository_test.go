package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/campaign"
	pkgerrors "pigeon/pkg/errors"
)

func TestCampaignRepositoryRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := campaign.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	c := createTestCampaign("roundtrip")
	c.AudienceFilter = `subscribed && engagement_score > 0.5`
	c.Schedule = &campaign.Schedule{
		StartDate: time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second),
		Timezone:  "Europe/Berlin",
		SendTime:  "10:30",
		Frequency: &campaign.Frequency{
			Type:       campaign.FrequencyWeekly,
			DaysOfWeek: []time.Weekday{time.Tuesday, time.Thursday},
		},
	}

	require.NoError(t, repo.Create(ctx, c))
	require.NotEmpty(t, c.ID)

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)

	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, campaign.StatusDraft, got.Status)
	assert.Equal(t, c.AudienceFilter, got.AudienceFilter)
	assert.Len(t, got.Recipients, 2)
	assert.Equal(t, "alice@example.com", got.Recipients[0].Email)
	require.NotNil(t, got.Schedule)
	assert.Equal(t, "Europe/Berlin", got.Schedule.Timezone)
	require.NotNil(t, got.Schedule.Frequency)
	assert.Equal(t, []time.Weekday{time.Tuesday, time.Thursday}, got.Schedule.Frequency.DaysOfWeek)
}

func TestCampaignRepositoryDuplicateNameConflicts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := campaign.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, createTestCampaign("duplicate")))

	err := repo.Create(ctx, createTestCampaign("duplicate"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestCampaignRepositoryGetUnknownID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := campaign.NewRepository(infra.PostgresDB)

	_, err := repo.Get(context.Background(), "no-such-campaign")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "Campaign no-such-campaign not found")
}

func TestCampaignRepositoryListFiltersByStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := campaign.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	active := createTestCampaign("list-active")
	active.Status = campaign.StatusActive
	require.NoError(t, repo.Create(ctx, active))
	require.NoError(t, repo.Create(ctx, createTestCampaign("list-draft")))

	campaigns, err := repo.List(ctx, campaign.StatusActive, 10, 0)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, "list-active", campaigns[0].Name)

	all, err := repo.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCampaignRepositoryUpdateAndDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := campaign.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	c := createTestCampaign("update-me")
	require.NoError(t, repo.Create(ctx, c))

	c.Status = campaign.StatusScheduled
	c.Metrics.Sent = 42
	require.NoError(t, repo.Update(ctx, c))

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusScheduled, got.Status)
	assert.Equal(t, int64(42), got.Metrics.Sent)

	require.NoError(t, repo.Delete(ctx, c.ID))

	_, err = repo.Get(ctx, c.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
}
