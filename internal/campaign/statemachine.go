package campaign

import (
	pkgerrors "pigeon/pkg/errors"
)

// NewCampaignNotFoundError reports an operation against an unknown
// campaign id.
func NewCampaignNotFoundError(id string) *pkgerrors.Error {
	return pkgerrors.ErrNotFound.
		WithMessage("Campaign %s not found", id).
		WithDetail("campaign_id", id)
}

// NewInvalidTransitionError reports an illegal status transition.
func NewInvalidTransitionError(id string, from, to Status) *pkgerrors.Error {
	return pkgerrors.ErrInvalidState.
		WithMessage("Campaign %s cannot transition from %s to %s", id, from, to).
		WithDetail("campaign_id", id).
		WithDetail("from", string(from)).
		WithDetail("to", string(to))
}

// legalTransitions is the complete transition table. Cancellation from
// any non-terminal state is handled separately in CanTransition.
var legalTransitions = map[Status][]Status{
	StatusDraft:     {StatusScheduled},
	StatusScheduled: {StatusActive},
	StatusActive:    {StatusPaused, StatusCompleted},
	StatusPaused:    {StatusActive},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		return !from.Terminal()
	}
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition applies a status change to the campaign, or returns an
// InvalidStateError leaving the campaign untouched. This is the only
// code path allowed to set Campaign.Status.
func Transition(c *Campaign, to Status) error {
	if !CanTransition(c.Status, to) {
		return NewInvalidTransitionError(c.ID, c.Status, to)
	}
	c.Status = to
	return nil
}
