package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campe111/turnero/internal/models"
)

func TestValidTransition(t *testing.T) {
	cases := []struct {
		action string
		from   string
		valid  bool
	}{
		{ActionStart, models.StateWaiting, true},
		{ActionStart, models.StateInService, false},
		{ActionStart, models.StateCompleted, false},
		{ActionStart, models.StateCancelled, false},
		{ActionComplete, models.StateInService, true},
		{ActionComplete, models.StateWaiting, false},
		{ActionComplete, models.StateCompleted, false},
		{ActionComplete, models.StateCancelled, false},
		{ActionCancel, models.StateWaiting, true},
		{ActionCancel, models.StateInService, true},
		{ActionCancel, models.StateCompleted, false},
		{ActionCancel, models.StateCancelled, false},
		{"unknown", models.StateWaiting, false},
		{ActionStart, "bogus", false},
	}

	for _, tt := range cases {
		assert.Equalf(t, tt.valid, ValidTransition(tt.action, tt.from), "ValidTransition(%q, %q)", tt.action, tt.from)
	}
}

func TestTerminalStatesRefuseEveryAction(t *testing.T) {
	for _, state := range []string{models.StateCompleted, models.StateCancelled} {
		require.True(t, IsTerminal(state))
		for _, action := range []string{ActionStart, ActionComplete, ActionCancel} {
			_, ok := Next(action, state)
			assert.Falsef(t, ok, "%s from %s", action, state)
		}
		assert.Equal(t, Capabilities{}, CapabilitiesFor(models.Ticket{State: state}))
	}
}

func TestCapabilitiesFor(t *testing.T) {
	assert.Equal(t, Capabilities{CanStart: true, CanCancel: true}, CapabilitiesFor(models.Ticket{State: models.StateWaiting}))
	assert.Equal(t, Capabilities{CanComplete: true, CanCancel: true}, CapabilitiesFor(models.Ticket{State: models.StateInService}))
}

func TestApplyFullPath(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	ticket := models.Ticket{ID: 1, State: models.StateWaiting}

	require.NoError(t, Apply(&ticket, ActionStart, at))
	assert.Equal(t, models.StateInService, ticket.State)
	require.NotNil(t, ticket.StartedAt)
	assert.Nil(t, ticket.CompletedAt)

	require.NoError(t, Apply(&ticket, ActionComplete, at.Add(10*time.Minute)))
	assert.Equal(t, models.StateCompleted, ticket.State)
	require.NotNil(t, ticket.CompletedAt)
	assert.Equal(t, at.Add(10*time.Minute), *ticket.CompletedAt)

	assert.ErrorIs(t, Apply(&ticket, ActionCancel, at), ErrInvalidTransition)
	assert.ErrorIs(t, Apply(&ticket, ActionStart, at), ErrInvalidTransition)
	assert.Equal(t, models.StateCompleted, ticket.State)
}

func TestApplyCancelWaitingLeavesTimestampsUnset(t *testing.T) {
	ticket := models.Ticket{State: models.StateWaiting}
	require.NoError(t, Apply(&ticket, ActionCancel, time.Now()))
	assert.Equal(t, models.StateCancelled, ticket.State)
	assert.Nil(t, ticket.StartedAt)
	assert.Nil(t, ticket.CompletedAt)
	assert.ErrorIs(t, Apply(&ticket, ActionComplete, time.Now()), ErrInvalidTransition)
}

func TestValidState(t *testing.T) {
	assert.True(t, ValidState(models.StateWaiting))
	assert.True(t, ValidState(models.StateCancelled))
	assert.False(t, ValidState("waiting"))
	assert.False(t, ValidState(""))
}
