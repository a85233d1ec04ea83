// Package lifecycle holds the ticket state contract shared with the
// backend. The client never enforces it; presentation code reads the
// capability flags derived here instead of matching estado strings.
package lifecycle

import (
	"errors"
	"time"

	"github.com/campe111/turnero/internal/models"
)

const (
	ActionStart    = "start"
	ActionComplete = "complete"
	ActionCancel   = "cancel"
)

var ErrInvalidTransition = errors.New("ticket state does not allow this action")

var transitionMap = map[string][]string{
	ActionStart:    {models.StateWaiting},
	ActionComplete: {models.StateInService},
	ActionCancel:   {models.StateWaiting, models.StateInService},
}

var targetState = map[string]string{
	ActionStart:    models.StateInService,
	ActionComplete: models.StateCompleted,
	ActionCancel:   models.StateCancelled,
}

func ValidTransition(action, fromState string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, state := range allowed {
		if state == fromState {
			return true
		}
	}
	return false
}

// Next returns the state reached by applying action to fromState.
func Next(action, fromState string) (string, bool) {
	if !ValidTransition(action, fromState) {
		return "", false
	}
	return targetState[action], true
}

func ValidState(state string) bool {
	switch state {
	case models.StateWaiting, models.StateInService, models.StateCompleted, models.StateCancelled:
		return true
	default:
		return false
	}
}

func IsTerminal(state string) bool {
	return state == models.StateCompleted || state == models.StateCancelled
}

type Capabilities struct {
	CanStart    bool `json:"can_start"`
	CanComplete bool `json:"can_complete"`
	CanCancel   bool `json:"can_cancel"`
}

func CapabilitiesFor(ticket models.Ticket) Capabilities {
	return Capabilities{
		CanStart:    ValidTransition(ActionStart, ticket.State),
		CanComplete: ValidTransition(ActionComplete, ticket.State),
		CanCancel:   ValidTransition(ActionCancel, ticket.State),
	}
}

// Apply moves ticket through action, stamping hora_inicio on start and
// hora_fin on completion. The ticket is left untouched on refusal.
func Apply(ticket *models.Ticket, action string, at time.Time) error {
	next, ok := Next(action, ticket.State)
	if !ok {
		return ErrInvalidTransition
	}
	ticket.State = next
	switch action {
	case ActionStart:
		started := at
		ticket.StartedAt = &started
	case ActionComplete:
		completed := at
		ticket.CompletedAt = &completed
	}
	return nil
}
