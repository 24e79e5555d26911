package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/logger"
	pkgerrors "pigeon/pkg/errors"
	"pigeon/pkg/models"
)

type stubAgent struct {
	desc Descriptor
	*tracker
}

func newStubAgent(id string, typ Type, priority int, enabled bool) *stubAgent {
	return &stubAgent{
		desc: Descriptor{
			ID:       id,
			Name:     id,
			Type:     typ,
			Enabled:  enabled,
			Priority: priority,
		},
		tracker: newTracker(),
	}
}

func (s *stubAgent) Descriptor() Descriptor { return s.desc }

func (s *stubAgent) Initialize(_ context.Context, _ map[string]interface{}) error {
	s.setState(StateReady)
	return nil
}

func (s *stubAgent) Process(_ context.Context, _ models.Message) (*models.Modifications, error) {
	s.recordSuccess()
	return &models.Modifications{}, nil
}

func (s *stubAgent) Shutdown(_ context.Context) error {
	s.setState(StateStopped)
	return nil
}

func (s *stubAgent) Status() Status { return s.status() }

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry(logger.NopLogger())

	require.NoError(t, reg.Register(newStubAgent("a1", TypeFilter, 10, true)))
	assert.Equal(t, 1, reg.Count())
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	reg := NewRegistry(logger.NopLogger())

	require.NoError(t, reg.Register(newStubAgent("a1", TypeFilter, 10, true)))

	err := reg.Register(newStubAgent("a1", TypeCategorizer, 20, true))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Contains(t, err.Error(), "a1")
}

func TestRegistryRegisterInvalidType(t *testing.T) {
	reg := NewRegistry(logger.NopLogger())

	err := reg.Register(newStubAgent("a1", Type("mystery"), 10, true))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry(logger.NopLogger())

	require.NoError(t, reg.Register(newStubAgent("a1", TypeFilter, 10, true)))
	require.NoError(t, reg.Unregister("a1"))
	assert.Equal(t, 0, reg.Count())

	err := reg.Unregister("a1")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestRegistryListActiveSkipsDisabled(t *testing.T) {
	reg := NewRegistry(logger.NopLogger())

	require.NoError(t, reg.Register(newStubAgent("on", TypeFilter, 10, true)))
	require.NoError(t, reg.Register(newStubAgent("off", TypeFilter, 10, false)))

	active := reg.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, "on", active[0].Descriptor().ID)
}

func TestRegistryOrderedActiveUsesTypeRank(t *testing.T) {
	reg := NewRegistry(logger.NopLogger())

	// Numeric priorities deliberately disagree with type rank; type
	// rank must win.
	require.NoError(t, reg.Register(newStubAgent("responder", TypeResponder, 99, true)))
	require.NoError(t, reg.Register(newStubAgent("filter", TypeFilter, 1, true)))
	require.NoError(t, reg.Register(newStubAgent("categorizer", TypeCategorizer, 50, true)))

	ordered := reg.OrderedActive()
	require.Len(t, ordered, 3)
	assert.Equal(t, "filter", ordered[0].Descriptor().ID)
	assert.Equal(t, "categorizer", ordered[1].Descriptor().ID)
	assert.Equal(t, "responder", ordered[2].Descriptor().ID)
}

func TestRegistryOrderedActiveTieBreak(t *testing.T) {
	reg := NewRegistry(logger.NopLogger())

	require.NoError(t, reg.Register(newStubAgent("low", TypeFilter, 10, true)))
	require.NoError(t, reg.Register(newStubAgent("high", TypeFilter, 90, true)))

	ordered := reg.OrderedActive()
	require.Len(t, ordered, 2)
	assert.Equal(t, "high", ordered[0].Descriptor().ID)
	assert.Equal(t, "low", ordered[1].Descriptor().ID)
}

func TestRegistryShutdown(t *testing.T) {
	reg := NewRegistry(logger.NopLogger())

	a1 := newStubAgent("a1", TypeFilter, 10, true)
	a2 := newStubAgent("a2", TypeResponder, 10, true)
	require.NoError(t, reg.Register(a1))
	require.NoError(t, reg.Register(a2))

	require.NoError(t, reg.Shutdown(context.Background()))
	assert.Equal(t, 0, reg.Count())
	assert.Equal(t, StateStopped, a1.Status().State)
	assert.Equal(t, StateStopped, a2.Status().State)
}
