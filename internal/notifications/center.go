// Package notifications exposes the in-app notification surface: creation as
// a lifecycle side effect, unread listing and recipient-only read marking.
// Actual delivery (email or otherwise) belongs to an external dispatcher
// that consumes these records.
package notifications

import (
	"context"
	"errors"

	"github.com/helpdesk-io/helpdesk-ce/internal/models"
)

// ErrNotAddressee is returned when someone other than the recipient tries to
// mark a notification as read.
var ErrNotAddressee = errors.New("notification addressed to another user")

// Store is the persistence the center needs.
type Store interface {
	InsertNotification(ctx context.Context, n models.NotificationInsert) (*models.Notification, error)
	GetNotification(ctx context.Context, id int64) (*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	ListUnreadNotifications(ctx context.Context, userID int64) ([]models.Notification, error)
}

// Center is the notification service.
type Center struct {
	store      Store
	dispatcher Dispatcher
}

func NewCenter(store Store) *Center {
	return &Center{store: store}
}

// SetDispatcher attaches a delivery collaborator. Dispatch failures are the
// dispatcher's problem; the stored notification is the source of truth.
func (c *Center) SetDispatcher(d Dispatcher) {
	c.dispatcher = d
}

// Notify creates an unread notification for the user, optionally linked to a
// ticket.
func (c *Center) Notify(ctx context.Context, userID int64, ticketID *int64, title, message string) (*models.Notification, error) {
	n, err := c.store.InsertNotification(ctx, models.NotificationInsert{
		UserID:   userID,
		TicketID: ticketID,
		Title:    title,
		Message:  message,
	})
	if err != nil {
		return nil, err
	}
	if c.dispatcher != nil {
		_ = c.dispatcher.Dispatch(ctx, *n)
	}
	return n, nil
}

// MarkRead flips the read flag, but only for the addressee.
func (c *Center) MarkRead(ctx context.Context, notificationID, userID int64) error {
	n, err := c.store.GetNotification(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return ErrNotAddressee
	}
	return c.store.MarkNotificationRead(ctx, notificationID)
}

// ListUnread returns the user's unread notifications, newest first.
func (c *Center) ListUnread(ctx context.Context, userID int64) ([]models.Notification, error) {
	return c.store.ListUnreadNotifications(ctx, userID)
}
