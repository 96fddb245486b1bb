// Package lifecycle implements the ticket status state machine. The engine
// validates a requested event against the transition table, then hands the
// complete mutation (field changes, the audit row, the optional owner
// notification) to the store, which applies it as one atomic unit. A failed
// transition never leaves partial state.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/helpdesk-io/helpdesk-ce/internal/metrics"
	"github.com/helpdesk-io/helpdesk-ce/internal/models"
)

// Event is a requested lifecycle operation on a ticket.
type Event string

const (
	EventStartWork     Event = "start_work"
	EventScheduleVisit Event = "schedule_visit"
	EventReject        Event = "reject"
	EventClose         Event = "close"
	EventAddNote       Event = "add_note"
	EventArchive       Event = "archive"
)

// allowedFrom is the transition table: for each event, the statuses it may
// legally be requested from. Initial status is OPEN, ARCHIVED is terminal.
var allowedFrom = map[Event][]models.TicketStatus{
	EventStartWork:     {models.StatusOpen},
	EventScheduleVisit: {models.StatusOpen},
	EventReject:        {models.StatusOpen, models.StatusInProgress},
	EventClose:         {models.StatusInProgress},
	EventAddNote:       {models.StatusClosed},
	EventArchive:       {models.StatusClosed},
}

// Request carries one transition ask: which ticket, who is acting, what
// event, and the event-specific payload. Actor is nil only for system-driven
// archival.
type Request struct {
	TicketID int64
	Actor    *models.User
	Event    Event

	VisitDate *time.Time // schedule_visit
	VisitTime string     // schedule_visit, HH:MM
	Reason    string     // reject
	Note      string     // close, add_note
}

// Change is the complete post-transition state of a ticket's mutable fields
// plus the side-effect rows. The store persists all of it atomically, and
// only while the ticket still sits in FromStatus.
type Change struct {
	FromStatus      models.TicketStatus
	Status          models.TicketStatus
	VisitDate       *time.Time
	VisitTime       *string
	RejectionReason *string
	ClosureNote     *string
	ClosedAt        *time.Time
	UpdatedAt       time.Time

	History      models.TicketHistoryInsert
	Notification *models.NotificationInsert
}

// Store is the persistence port the engine drives. ApplyTransition must
// persist the field update, the history row and the notification in a single
// atomic unit or not at all, and must refuse with ErrConcurrentUpdate when
// the ticket's status no longer matches Change.FromStatus.
type Store interface {
	GetTicket(ctx context.Context, id int64) (*models.Ticket, error)
	ApplyTransition(ctx context.Context, ticketID int64, change Change) (*models.Ticket, error)
}

// Engine validates and executes lifecycle transitions.
type Engine struct {
	store            Store
	archiveAfterDays int
	clock            func() time.Time
	logger           *log.Logger
}

// NewEngine creates a lifecycle engine. archiveAfterDays is the age a closed
// ticket must reach before archival.
func NewEngine(store Store, archiveAfterDays int, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:            store,
		archiveAfterDays: archiveAfterDays,
		clock:            time.Now,
		logger:           logger,
	}
}

// SetClock overrides the engine's time source. Tests use it to pin "now".
func (e *Engine) SetClock(clock func() time.Time) { e.clock = clock }

// Transition validates the request and applies it. On any validation error
// the ticket is untouched and no history or notification is written.
func (e *Engine) Transition(ctx context.Context, req Request) (*models.Ticket, error) {
	ticket, err := e.store.GetTicket(ctx, req.TicketID)
	if err != nil {
		return nil, err
	}

	if !eventAllowed(req.Event, ticket.Status) {
		return nil, &InvalidTransitionError{Event: req.Event, Status: ticket.Status}
	}
	if err := checkPermission(req, ticket); err != nil {
		return nil, err
	}

	now := e.clock().UTC()
	change, err := e.buildChange(req, ticket, now)
	if err != nil {
		return nil, err
	}

	updated, err := e.store.ApplyTransition(ctx, ticket.ID, *change)
	if errors.Is(err, ErrConcurrentUpdate) {
		// Another transition won the race; report against the status it left.
		status := ticket.Status
		if current, gerr := e.store.GetTicket(ctx, ticket.ID); gerr == nil {
			status = current.Status
		}
		return nil, &InvalidTransitionError{Event: req.Event, Status: status}
	}
	if err != nil {
		return nil, fmt.Errorf("apply %s on ticket %s: %w", req.Event, ticket.TN, err)
	}

	metrics.TransitionsTotal.WithLabelValues(string(req.Event)).Inc()
	e.logger.Printf("ticket %s: %s -> %s (%s)", ticket.TN, ticket.Status, updated.Status, req.Event)
	return updated, nil
}

func eventAllowed(event Event, status models.TicketStatus) bool {
	for _, s := range allowedFrom[event] {
		if s == status {
			return true
		}
	}
	return false
}

// checkPermission enforces role/ownership rules. Operator events require a
// technician. Notes on a closed ticket may come from a technician or the
// ticket's owner. Archival is system-driven and accepts a nil actor.
func checkPermission(req Request, ticket *models.Ticket) error {
	switch req.Event {
	case EventStartWork, EventScheduleVisit, EventReject, EventClose:
		if !req.Actor.IsTechnician() {
			return &PermissionError{Event: req.Event, Reason: "technician role required"}
		}
	case EventAddNote:
		if !req.Actor.IsTechnician() && (req.Actor == nil || req.Actor.ID != ticket.UserID) {
			return &PermissionError{Event: req.Event, Reason: "only a technician or the ticket owner may add a note"}
		}
	case EventArchive:
		if req.Actor != nil && !req.Actor.IsTechnician() {
			return &PermissionError{Event: req.Event, Reason: "technician role required"}
		}
	}
	return nil
}

// buildChange checks event preconditions and assembles the full mutation.
// Everything that can fail happens here, before any state is touched.
func (e *Engine) buildChange(req Request, ticket *models.Ticket, now time.Time) (*Change, error) {
	change := &Change{
		FromStatus:      ticket.Status,
		Status:          ticket.Status,
		VisitDate:       ticket.VisitDate,
		VisitTime:       ticket.VisitTime,
		RejectionReason: ticket.RejectionReason,
		ClosureNote:     ticket.ClosureNote,
		ClosedAt:        ticket.ClosedAt,
		UpdatedAt:       now,
	}

	history := models.TicketHistoryInsert{
		TicketID:  ticket.ID,
		UserID:    actorID(req.Actor),
		CreatedAt: now,
	}

	switch req.Event {
	case EventStartWork:
		change.Status = models.StatusInProgress
		history.Action = models.ActionStatusChanged
		history.Comment = fmt.Sprintf("status changed from %s to %s", ticket.Status, models.StatusInProgress)
		change.Notification = ownerNotice(ticket,
			fmt.Sprintf("Ticket %s in progress", ticket.TN),
			fmt.Sprintf("A technician has started working on your ticket %s.", ticket.TN))

	case EventScheduleVisit:
		if req.VisitDate == nil || strings.TrimSpace(req.VisitTime) == "" {
			return nil, &PreconditionError{Event: req.Event, Reason: "visit date and time are required"}
		}
		visitTime := strings.TrimSpace(req.VisitTime)
		change.VisitDate = req.VisitDate
		change.VisitTime = &visitTime
		history.Action = models.ActionVisitScheduled
		history.Comment = fmt.Sprintf("visit scheduled for %s at %s", req.VisitDate.Format("2006-01-02"), visitTime)
		change.Notification = ownerNotice(ticket,
			fmt.Sprintf("Visit scheduled for ticket %s", ticket.TN),
			fmt.Sprintf("A technician visit for ticket %s is scheduled on %s at %s.",
				ticket.TN, req.VisitDate.Format("2006-01-02"), visitTime))

	case EventReject:
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			return nil, &PreconditionError{Event: req.Event, Reason: "rejection reason is required"}
		}
		change.Status = models.StatusRejected
		change.RejectionReason = &reason
		change.ClosedAt = &now
		history.Action = models.ActionRejected
		history.Comment = reason
		change.Notification = ownerNotice(ticket,
			fmt.Sprintf("Ticket %s rejected", ticket.TN),
			fmt.Sprintf("Your ticket %s was rejected: %s", ticket.TN, reason))

	case EventClose:
		note := strings.TrimSpace(req.Note)
		if note == "" {
			return nil, &PreconditionError{Event: req.Event, Reason: "closure note is required"}
		}
		change.Status = models.StatusClosed
		change.ClosureNote = &note
		change.ClosedAt = &now
		history.Action = models.ActionClosed
		history.Comment = note
		change.Notification = ownerNotice(ticket,
			fmt.Sprintf("Ticket %s closed", ticket.TN),
			fmt.Sprintf("Your ticket %s was closed: %s", ticket.TN, note))

	case EventAddNote:
		note := strings.TrimSpace(req.Note)
		if note == "" {
			return nil, &PreconditionError{Event: req.Event, Reason: "note text is required"}
		}
		history.Action = models.ActionNoteAdded
		history.Comment = note

	case EventArchive:
		if ticket.ClosedAt == nil {
			return nil, &PreconditionError{Event: req.Event, Reason: "ticket has no closed_at timestamp"}
		}
		age := now.Sub(ticket.ClosedAt.UTC())
		threshold := time.Duration(e.archiveAfterDays) * 24 * time.Hour
		if age < threshold {
			return nil, &PreconditionError{
				Event:  req.Event,
				Reason: fmt.Sprintf("closed %s ago, archive threshold is %d days", age.Round(time.Hour), e.archiveAfterDays),
			}
		}
		change.Status = models.StatusArchived
		history.Action = models.ActionArchived
		history.Comment = fmt.Sprintf("archived after %d days closed", e.archiveAfterDays)

	default:
		return nil, &InvalidTransitionError{Event: req.Event, Status: ticket.Status}
	}

	change.History = history
	return change, nil
}

func actorID(actor *models.User) *int64 {
	if actor == nil {
		return nil
	}
	id := actor.ID
	return &id
}

func ownerNotice(ticket *models.Ticket, title, message string) *models.NotificationInsert {
	ticketID := ticket.ID
	return &models.NotificationInsert{
		UserID:   ticket.UserID,
		TicketID: &ticketID,
		Title:    title,
		Message:  message,
	}
}
