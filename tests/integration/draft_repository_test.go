package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/campaign"
	"pigeon/internal/draft"
	pkgerrors "pigeon/pkg/errors"
)

func createTestDraft() *draft.Draft {
	return &draft.Draft{
		Status:      draft.StatusPendingApproval,
		Recipient:   createTestRecipient("alice@example.com", "Alice"),
		Subject:     "Hi Alice",
		Content:     "Hello Alice, here is what's new.",
		AIGenerated: true,
		Score:       0.8,
		Personalization: map[string]string{
			"name": "Alice",
		},
	}
}

func TestDraftRepositoryRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := draft.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	d := createTestDraft()
	require.NoError(t, repo.Create(ctx, d))
	require.NotEmpty(t, d.ID)

	got, err := repo.Get(ctx, d.ID)
	require.NoError(t, err)

	assert.Equal(t, draft.StatusPendingApproval, got.Status)
	assert.Equal(t, "alice@example.com", got.Recipient.Email)
	assert.True(t, got.AIGenerated)
	assert.Equal(t, "Alice", got.Personalization["name"])
}

func TestDraftRepositoryGetUnknownID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := draft.NewRepository(infra.PostgresDB)

	_, err := repo.Get(context.Background(), "no-such-draft")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "Draft no-such-draft not found")
}

func TestDraftRepositoryDecidesExactlyOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := draft.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	d := createTestDraft()
	require.NoError(t, repo.Create(ctx, d))

	decided, err := repo.UpdateStatusIfDecidable(ctx, d.ID, draft.StatusApproved)
	require.NoError(t, err)
	assert.True(t, decided)

	// A second decision must be a no-op regardless of direction.
	decided, err = repo.UpdateStatusIfDecidable(ctx, d.ID, draft.StatusRejected)
	require.NoError(t, err)
	assert.False(t, decided)

	got, err := repo.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.StatusApproved, got.Status)
}

func TestDraftRepositoryListByCampaign(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	ctx := context.Background()

	parent := createTestCampaign("drafts-parent")
	require.NoError(t, campaign.NewRepository(infra.PostgresDB).Create(ctx, parent))

	repo := draft.NewRepository(infra.PostgresDB)

	linked := createTestDraft()
	linked.CampaignID = parent.ID
	require.NoError(t, repo.Create(ctx, linked))

	unlinked := createTestDraft()
	require.NoError(t, repo.Create(ctx, unlinked))

	drafts, err := repo.List(ctx, parent.ID, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, linked.ID, drafts[0].ID)
}
