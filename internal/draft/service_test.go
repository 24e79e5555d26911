package draft

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/campaign"
	"pigeon/internal/logger"
	"pigeon/pkg/cel"
	pkgerrors "pigeon/pkg/errors"
	"pigeon/pkg/models"
)

type memoryRepository struct {
	mu     sync.Mutex
	drafts map[string]Draft
	seq    int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{drafts: make(map[string]Draft)}
}

func (m *memoryRepository) Create(_ context.Context, d *Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		m.seq++
		d.ID = fmt.Sprintf("draft-%d", m.seq)
	}
	m.drafts[d.ID] = *d
	return nil
}

func (m *memoryRepository) Get(_ context.Context, id string) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok {
		return nil, NewDraftNotFoundError(id)
	}
	return &d, nil
}

func (m *memoryRepository) List(_ context.Context, campaignID string, status Status, limit, offset int) ([]Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Draft
	for _, d := range m.drafts {
		if campaignID != "" && d.CampaignID != campaignID {
			continue
		}
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *memoryRepository) Update(_ context.Context, d *Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drafts[d.ID]; !ok {
		return NewDraftNotFoundError(d.ID)
	}
	m.drafts[d.ID] = *d
	return nil
}

func (m *memoryRepository) UpdateStatusIfDecidable(_ context.Context, id string, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok {
		return false, nil
	}
	if !d.Status.Decidable() {
		return false, nil
	}
	d.Status = to
	m.drafts[id] = d
	return true, nil
}

type fakeCampaignSource struct {
	campaigns map[string]*campaign.Campaign
}

func (f *fakeCampaignSource) Get(_ context.Context, id string) (*campaign.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, campaign.NewCampaignNotFoundError(id)
	}
	return c, nil
}

func newDraftService(t *testing.T) (*Service, *memoryRepository, *fakeCampaignSource) {
	t.Helper()
	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)

	repo := newMemoryRepository()
	source := &fakeCampaignSource{campaigns: make(map[string]*campaign.Campaign)}
	return NewService(repo, source, evaluator, logger.NopLogger()), repo, source
}

func TestCreateDraft(t *testing.T) {
	svc, _, _ := newDraftService(t)

	d, err := svc.Create(context.Background(), CreateDraftRequest{
		Recipient: models.Recipient{Email: "a@example.com"},
		Subject:   "Hi",
		Content:   "Body",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, d.Status)
	assert.NotEmpty(t, d.ID)
}

func TestCreateDraftRequiresRecipient(t *testing.T) {
	svc, _, _ := newDraftService(t)

	_, err := svc.Create(context.Background(), CreateDraftRequest{Subject: "Hi", Content: "Body"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestApproveDraftOnce(t *testing.T) {
	svc, _, _ := newDraftService(t)

	d, err := svc.Create(context.Background(), CreateDraftRequest{
		Recipient: models.Recipient{Email: "a@example.com"},
		Subject:   "Hi",
		Content:   "Body",
	})
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)

	// Second decision fails and never moves status backward.
	_, err = svc.Approve(context.Background(), d.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidState(err))

	_, err = svc.Reject(context.Background(), d.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidState(err))

	got, err := svc.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
}

func TestRejectPendingApprovalDraft(t *testing.T) {
	svc, repo, _ := newDraftService(t)

	d := Draft{Status: StatusPendingApproval, Recipient: models.Recipient{Email: "a@example.com"}}
	require.NoError(t, repo.Create(context.Background(), &d))

	rejected, err := svc.Reject(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
}

func TestDecideUnknownDraft(t *testing.T) {
	svc, _, _ := newDraftService(t)

	_, err := svc.Approve(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "Draft ghost not found")
}

func TestGenerateForCampaign(t *testing.T) {
	svc, _, source := newDraftService(t)

	source.campaigns["c1"] = &campaign.Campaign{
		ID:             "c1",
		Subject:        "Welcome {{name}}",
		Content:        "Hello {{name}}, your address is {{email}}.",
		AudienceFilter: "subscribed",
		Recipients: []models.Recipient{
			{Email: "ana@example.com", Name: "Ana", Subscribed: true},
			{Email: "bo@example.com", Name: "Bo", Subscribed: false},
		},
	}

	drafts, err := svc.GenerateForCampaign(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	d := drafts[0]
	assert.Equal(t, StatusPendingApproval, d.Status)
	assert.True(t, d.AIGenerated)
	assert.Equal(t, "Welcome Ana", d.Subject)
	assert.Contains(t, d.Content, "Hello Ana")
	assert.Contains(t, d.Content, "ana@example.com")
}

func TestGenerateForUnknownCampaign(t *testing.T) {
	svc, _, _ := newDraftService(t)

	_, err := svc.GenerateForCampaign(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestPersonalizeFallsBackToEmail(t *testing.T) {
	got := personalize("Hi {{name}}", models.Recipient{Email: "x@example.com"})
	assert.Equal(t, "Hi x@example.com", got)
}
