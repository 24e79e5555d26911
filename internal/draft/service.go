package draft

import (
	"context"
	"strings"

	"pigeon/internal/campaign"
	"pigeon/internal/logger"
	"pigeon/pkg/cel"
	pkgerrors "pigeon/pkg/errors"
	"pigeon/pkg/metrics"
	"pigeon/pkg/models"
)

// CampaignSource supplies campaign data for bulk draft generation.
// Implemented by the campaign service.
type CampaignSource interface {
	Get(ctx context.Context, id string) (*campaign.Campaign, error)
}

type Service struct {
	repo      Repository
	campaigns CampaignSource
	evaluator *cel.Evaluator
	logger    logger.Logger
}

func NewService(repo Repository, campaigns CampaignSource, evaluator *cel.Evaluator, log logger.Logger) *Service {
	return &Service{
		repo:      repo,
		campaigns: campaigns,
		evaluator: evaluator,
		logger:    log,
	}
}

func (s *Service) Create(ctx context.Context, req CreateDraftRequest) (*Draft, error) {
	if req.Recipient.Email == "" {
		return nil, pkgerrors.ErrValidation.WithMessage("draft recipient email is required")
	}

	d := &Draft{
		CampaignID:      req.CampaignID,
		Status:          StatusDraft,
		Recipient:       req.Recipient,
		Subject:         req.Subject,
		Content:         req.Content,
		AIGenerated:     req.AIGenerated,
		Personalization: req.Personalization,
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	metrics.DraftsGeneratedTotal.WithLabelValues("manual").Inc()
	return d, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Draft, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, campaignID string, status Status, limit, offset int) ([]Draft, error) {
	if status != "" && !status.Valid() {
		return nil, pkgerrors.ErrValidation.WithMessage("unknown draft status: %s", status)
	}
	return s.repo.List(ctx, campaignID, status, limit, offset)
}

// Approve moves the draft to approved. A draft can be decided only
// once: approving an already-decided draft fails without moving its
// status backward.
func (s *Service) Approve(ctx context.Context, id string) (*Draft, error) {
	return s.decide(ctx, id, StatusApproved)
}

// Reject moves the draft to rejected under the same single-decision
// rule as Approve.
func (s *Service) Reject(ctx context.Context, id string) (*Draft, error) {
	return s.decide(ctx, id, StatusRejected)
}

func (s *Service) decide(ctx context.Context, id string, to Status) (*Draft, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changed, err := s.repo.UpdateStatusIfDecidable(ctx, id, to)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, pkgerrors.ErrInvalidState.
			WithMessage("Draft %s is already %s and cannot be %s", id, current.Status, to).
			WithDetail("draft_id", id)
	}

	s.logger.InfowCtx(ctx, "Draft decided", "draft_id", id, "status", to)
	return s.repo.Get(ctx, id)
}

// GenerateForCampaign creates one draft per recipient in the
// campaign's filtered audience, personalizing the campaign content per
// recipient.
func (s *Service) GenerateForCampaign(ctx context.Context, campaignID string) ([]Draft, error) {
	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	audience, err := s.evaluator.FilterAudience(ctx, c.AudienceFilter, c.Recipients)
	if err != nil {
		return nil, pkgerrors.ErrValidation.WithCause(err).
			WithMessage("audience filtering failed: %v", err)
	}

	drafts := make([]Draft, 0, len(audience))
	for _, recipient := range audience {
		d := Draft{
			CampaignID:  c.ID,
			Status:      StatusPendingApproval,
			Recipient:   recipient,
			Subject:     personalize(c.Subject, recipient),
			Content:     personalize(c.Content, recipient),
			AIGenerated: true,
			Personalization: map[string]string{
				"name":  recipient.Name,
				"email": recipient.Email,
			},
		}
		if err := s.repo.Create(ctx, &d); err != nil {
			return drafts, err
		}
		drafts = append(drafts, d)
	}

	metrics.DraftsGeneratedTotal.WithLabelValues("campaign").Add(float64(len(drafts)))
	s.logger.InfowCtx(ctx, "Drafts generated for campaign",
		"campaign_id", campaignID,
		"drafts", len(drafts),
	)
	return drafts, nil
}

// personalize substitutes {{name}} and {{email}} tokens. Unknown
// tokens are left untouched.
func personalize(text string, r models.Recipient) string {
	name := r.Name
	if name == "" {
		name = r.Email
	}
	replacer := strings.NewReplacer(
		"{{name}}", name,
		"{{email}}", r.Email,
	)
	return replacer.Replace(text)
}
