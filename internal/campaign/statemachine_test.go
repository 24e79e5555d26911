package campaign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "pigeon/pkg/errors"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusScheduled, true},
		{StatusScheduled, StatusActive, true},
		{StatusActive, StatusPaused, true},
		{StatusActive, StatusCompleted, true},
		{StatusPaused, StatusActive, true},
		{StatusDraft, StatusCancelled, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusActive, StatusCancelled, true},
		{StatusPaused, StatusCancelled, true},

		{StatusDraft, StatusActive, false},
		{StatusDraft, StatusPaused, false},
		{StatusScheduled, StatusPaused, false},
		{StatusPaused, StatusScheduled, false},
		{StatusCompleted, StatusActive, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusDraft, false},
		{StatusCancelled, StatusCancelled, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestTransitionMutatesOnlyWhenLegal(t *testing.T) {
	c := &Campaign{ID: "c1", Status: StatusDraft}

	require.NoError(t, Transition(c, StatusScheduled))
	assert.Equal(t, StatusScheduled, c.Status)

	err := Transition(c, StatusPaused)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidState(err))
	assert.Equal(t, StatusScheduled, c.Status)
	assert.Contains(t, err.Error(), "c1")
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusDraft.Terminal())
	assert.False(t, StatusActive.Terminal())
}
