package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/helpdesk-io/helpdesk-ce/internal/database"
	"github.com/helpdesk-io/helpdesk-ce/internal/models"
)

// AttachmentRepository handles database operations for ticket attachments.
// The upload policy (count/size/MIME caps) is enforced by the API layer
// before Insert is reached.
type AttachmentRepository struct {
	db    *sql.DB
	clock func() time.Time
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db, clock: time.Now}
}

// Insert records an uploaded attachment.
func (r *AttachmentRepository) Insert(ctx context.Context, a *models.TicketAttachment) error {
	a.UploadedAt = r.clock().UTC()
	id, err := database.InsertWithReturning(ctx, r.db, `
		INSERT INTO ticket_attachment (ticket_id, file_name, original_name, content_type, size, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		a.TicketID, a.FileName, a.OriginalName, a.ContentType, a.Size, a.UploadedAt,
	)
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// ListByTicket returns a ticket's attachments in upload order.
func (r *AttachmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]models.TicketAttachment, error) {
	rows, err := r.db.QueryContext(ctx, database.ConvertPlaceholders(`
		SELECT id, ticket_id, file_name, original_name, content_type, size, uploaded_at
		FROM ticket_attachment
		WHERE ticket_id = $1
		ORDER BY uploaded_at, id`), ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.TicketAttachment
	for rows.Next() {
		var a models.TicketAttachment
		if err := rows.Scan(&a.ID, &a.TicketID, &a.FileName, &a.OriginalName, &a.ContentType, &a.Size, &a.UploadedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// CountByTicket returns how many attachments a ticket already carries.
func (r *AttachmentRepository) CountByTicket(ctx context.Context, ticketID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, database.ConvertPlaceholders(
		`SELECT COUNT(*) FROM ticket_attachment WHERE ticket_id = $1`), ticketID).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return count, nil
}
