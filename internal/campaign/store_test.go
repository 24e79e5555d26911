package campaign

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/logger"
	pkgerrors "pigeon/pkg/errors"
)

func seedCampaign(t *testing.T, repo *memoryRepository, status Status) *Campaign {
	t.Helper()
	c := &Campaign{Name: "Launch", Type: TypeOneTime, Status: status}
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

// The API and the worker each hold their own store over the shared
// repository. A mutation in one process must not be clobbered when the
// other process mutates its stale cached copy afterwards.
func TestMutateReadsThroughAcrossStores(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	c := seedCampaign(t, repo, StatusScheduled)

	apiStore := NewStore(repo, logger.NopLogger())
	require.NoError(t, apiStore.Load(ctx))
	workerStore := NewStore(repo, logger.NopLogger())
	require.NoError(t, workerStore.Load(ctx))

	// Worker side: the job fired; the campaign completes with metrics.
	now := time.Now()
	_, err := workerStore.Mutate(ctx, c.ID, func(c *Campaign) error {
		c.Status = StatusActive
		if err := Transition(c, StatusCompleted); err != nil {
			return err
		}
		c.Metrics.Sent = 42
		c.Metrics.Runs = 1
		c.Metrics.LastRunAt = &now
		return nil
	})
	require.NoError(t, err)

	// API side: a rename against the still-cached scheduled snapshot.
	renamed, err := apiStore.Mutate(ctx, c.ID, func(c *Campaign) error {
		c.Name = "Launch v2"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, renamed.Status, "mutation must apply to the fresh row")

	row, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch v2", row.Name)
	assert.Equal(t, StatusCompleted, row.Status, "worker's completion must survive the API mutation")
	assert.Equal(t, int64(42), row.Metrics.Sent)
}

func TestMutateFindsCampaignCreatedByAnotherProcess(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()

	store := NewStore(repo, logger.NopLogger())
	require.NoError(t, store.Load(ctx))

	// Created after this store warmed, e.g. through the API while this
	// process is the worker.
	c := seedCampaign(t, repo, StatusDraft)

	mutated, err := store.Mutate(ctx, c.ID, func(c *Campaign) error {
		return Transition(c, StatusScheduled)
	})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, mutated.Status)
}

func TestGetFallsBackToRepositoryOnCacheMiss(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()

	store := NewStore(repo, logger.NopLogger())
	require.NoError(t, store.Load(ctx))

	c := seedCampaign(t, repo, StatusDraft)

	got, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = store.Get(ctx, "ghost")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestMutateEvictsRowDeletedElsewhere(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	c := seedCampaign(t, repo, StatusDraft)

	store := NewStore(repo, logger.NopLogger())
	require.NoError(t, store.Load(ctx))

	// Deleted behind the store's back.
	require.NoError(t, repo.Delete(ctx, c.ID))

	_, err := store.Mutate(ctx, c.ID, func(c *Campaign) error { return nil })
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = store.Get(ctx, c.ID)
	assert.True(t, pkgerrors.IsNotFound(err), "stale cache entry must be evicted")
}
