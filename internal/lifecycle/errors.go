package lifecycle

import (
	"errors"
	"fmt"

	"github.com/helpdesk-io/helpdesk-ce/internal/models"
)

// Sentinel errors for errors.Is checks across package boundaries. The typed
// errors below wrap these, so callers can match the kind without caring about
// the detail.
var (
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrPermissionDenied   = errors.New("permission denied")

	// ErrConcurrentUpdate is returned by Store.ApplyTransition when the
	// ticket's status no longer matches Change.FromStatus, meaning another
	// transition committed after this one was validated.
	ErrConcurrentUpdate = errors.New("ticket changed concurrently")
)

// InvalidTransitionError reports a lifecycle event that is illegal from the
// ticket's current status. The engine never silently ignores such a request.
type InvalidTransitionError struct {
	Event  Event
	Status models.TicketStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("event %s not allowed from status %s", e.Event, e.Status)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// PreconditionError reports a transition request missing a required field.
type PreconditionError struct {
	Event  Event
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("event %s: %s", e.Event, e.Reason)
}

func (e *PreconditionError) Unwrap() error { return ErrPreconditionFailed }

// PermissionError reports an actor lacking the role or ownership required
// for the requested event.
type PermissionError struct {
	Event  Event
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("event %s: %s", e.Event, e.Reason)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }
