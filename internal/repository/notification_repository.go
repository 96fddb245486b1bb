package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/helpdesk-io/helpdesk-ce/internal/database"
	"github.com/helpdesk-io/helpdesk-ce/internal/models"
)

// NotificationRepository handles database operations for in-app
// notifications.
type NotificationRepository struct {
	db    *sql.DB
	clock func() time.Time
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db, clock: time.Now}
}

// InsertNotification creates an unread notification.
func (r *NotificationRepository) InsertNotification(ctx context.Context, n models.NotificationInsert) (*models.Notification, error) {
	now := r.clock().UTC()
	id, err := database.InsertWithReturning(ctx, r.db, `
		INSERT INTO notification (user_id, ticket_id, title, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING id`,
		n.UserID, n.TicketID, n.Title, n.Message, now,
	)
	if err != nil {
		return nil, err
	}
	return &models.Notification{
		ID:        id,
		UserID:    n.UserID,
		TicketID:  n.TicketID,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    false,
		CreatedAt: now,
	}, nil
}

// GetNotification returns one notification by id.
func (r *NotificationRepository) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	var n models.Notification
	err := r.db.QueryRowContext(ctx, database.ConvertPlaceholders(`
		SELECT id, user_id, ticket_id, title, message, is_read, created_at
		FROM notification WHERE id = $1`), id).Scan(
		&n.ID, &n.UserID, &n.TicketID, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkNotificationRead flips is_read. Addressee checks belong to the caller
// (notifications.Center), which loads the row first.
func (r *NotificationRepository) MarkNotificationRead(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, database.ConvertPlaceholders(
		`UPDATE notification SET is_read = TRUE WHERE id = $1`), id)
	if err != nil {
		return err
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUnreadNotifications returns a user's unread notifications, newest
// first.
func (r *NotificationRepository) ListUnreadNotifications(ctx context.Context, userID int64) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, database.ConvertPlaceholders(`
		SELECT id, user_id, ticket_id, title, message, is_read, created_at
		FROM notification
		WHERE user_id = $1 AND is_read = FALSE
		ORDER BY created_at DESC, id DESC`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.TicketID, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}
