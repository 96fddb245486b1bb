package models

import "time"

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "OPEN"
	StatusInProgress TicketStatus = "IN_PROGRESS"
	StatusRejected   TicketStatus = "REJECTED"
	StatusClosed     TicketStatus = "CLOSED"
	StatusArchived   TicketStatus = "ARCHIVED"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s TicketStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusRejected, StatusClosed, StatusArchived:
		return true
	}
	return false
}

// Closed reports whether the status carries a closed_at timestamp.
// closed_at is non-null if and only if this returns true.
func (s TicketStatus) Closed() bool {
	return s == StatusRejected || s == StatusClosed || s == StatusArchived
}

// TicketCategory classifies the affected equipment or service.
type TicketCategory string

const (
	CategoryComputer TicketCategory = "COMPUTER"
	CategoryPrinter  TicketCategory = "PRINTER"
	CategorySoftware TicketCategory = "SOFTWARE"
	CategoryNetwork  TicketCategory = "NETWORK"
	CategoryAccount  TicketCategory = "ACCOUNT"
	CategoryOther    TicketCategory = "OTHER"
)

func (c TicketCategory) Valid() bool {
	switch c {
	case CategoryComputer, CategoryPrinter, CategorySoftware, CategoryNetwork, CategoryAccount, CategoryOther:
		return true
	}
	return false
}

// TicketPriority is the urgency assigned by the requester.
type TicketPriority string

const (
	PriorityHigh   TicketPriority = "HIGH"
	PriorityMedium TicketPriority = "MEDIUM"
	PriorityLow    TicketPriority = "LOW"
)

func (p TicketPriority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Ticket is a support request tracked through the status workflow.
type Ticket struct {
	ID                int64          `json:"id" db:"id"`
	TN                string         `json:"tn" db:"tn"` // ticket number, TCK-<year>-<seq>, immutable
	UserID            int64          `json:"user_id" db:"user_id"`
	Description       string         `json:"description" db:"description"`
	Category          TicketCategory `json:"category" db:"category"`
	Priority          TicketPriority `json:"priority" db:"priority"`
	Status            TicketStatus   `json:"status" db:"status"`
	AffectedEquipment string         `json:"affected_equipment" db:"affected_equipment"`
	SerialNumber      *string        `json:"serial_number,omitempty" db:"serial_number"`
	VisitDate         *time.Time     `json:"visit_date,omitempty" db:"visit_date"`
	VisitTime         *string        `json:"visit_time,omitempty" db:"visit_time"` // HH:MM
	RejectionReason   *string        `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ClosureNote       *string        `json:"closure_note,omitempty" db:"closure_note"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
	ClosedAt          *time.Time     `json:"closed_at,omitempty" db:"closed_at"`

	// Joined fields (populated when needed)
	Owner *User `json:"owner,omitempty"`
}

// ShortDescription returns the first 50 characters of the description.
func (t *Ticket) ShortDescription() string {
	if len(t.Description) <= 50 {
		return t.Description
	}
	return t.Description[:50] + "..."
}

// TicketFilter narrows List queries. Zero values mean "any".
type TicketFilter struct {
	Status   TicketStatus
	Category TicketCategory
	Priority TicketPriority
	OwnerID  int64
	Limit    int
	Offset   int
}

// TicketAttachment is an image uploaded against a ticket. The upload policy
// (count, size, MIME type) is enforced by the caller before insertion.
type TicketAttachment struct {
	ID           int64     `json:"id" db:"id"`
	TicketID     int64     `json:"ticket_id" db:"ticket_id"`
	FileName     string    `json:"file_name" db:"file_name"` // stored name on disk
	OriginalName string    `json:"original_name" db:"original_name"`
	ContentType  string    `json:"content_type" db:"content_type"`
	Size         int64     `json:"size" db:"size"`
	UploadedAt   time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// HistoryAction is the kind of event recorded in a ticket's audit trail.
type HistoryAction string

const (
	ActionCreated        HistoryAction = "CREATED"
	ActionStatusChanged  HistoryAction = "STATUS_CHANGED"
	ActionVisitScheduled HistoryAction = "VISIT_SCHEDULED"
	ActionRejected       HistoryAction = "REJECTED"
	ActionClosed         HistoryAction = "CLOSED"
	ActionNoteAdded      HistoryAction = "NOTE_ADDED"
	ActionArchived       HistoryAction = "ARCHIVED"
)

// TicketHistory is one append-only audit row. The actor reference is weak:
// deleting a user nulls UserID but never removes the row.
type TicketHistory struct {
	ID        int64         `json:"id" db:"id"`
	TicketID  int64         `json:"ticket_id" db:"ticket_id"`
	UserID    *int64        `json:"user_id,omitempty" db:"user_id"`
	Action    HistoryAction `json:"action" db:"action"`
	Comment   *string       `json:"comment,omitempty" db:"comment"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// TicketHistoryInsert is the payload for recording a new history row.
type TicketHistoryInsert struct {
	TicketID  int64
	UserID    *int64
	Action    HistoryAction
	Comment   string
	CreatedAt time.Time
}
