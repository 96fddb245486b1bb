package models

import "time"

// Notification is an in-app message addressed to one user, created only as a
// side effect of a ticket lifecycle event. Delivery (email or otherwise) is
// the job of an external dispatcher.
type Notification struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	TicketID  *int64    `json:"ticket_id,omitempty" db:"ticket_id"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NotificationInsert is the payload for creating an unread notification.
type NotificationInsert struct {
	UserID   int64
	TicketID *int64
	Title    string
	Message  string
}
