// Package repository persists the help-desk entity set. Queries are written
// PostgreSQL-style and pass through database.ConvertPlaceholders so the same
// code runs on PostgreSQL, MySQL and SQLite.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/helpdesk-io/helpdesk-ce/internal/database"
	"github.com/helpdesk-io/helpdesk-ce/internal/identity"
	"github.com/helpdesk-io/helpdesk-ce/internal/lifecycle"
	"github.com/helpdesk-io/helpdesk-ce/internal/metrics"
	"github.com/helpdesk-io/helpdesk-ce/internal/models"
)

// createRetries bounds regenerate-and-retry on a ticket number collision.
// With the counter store a collision should never happen; the retry exists
// for correctness, not because it is expected to trigger.
const createRetries = 5

// TicketRepository handles database operations for tickets, their history
// and the per-year number sequence.
type TicketRepository struct {
	db        *sql.DB
	generator identity.Generator
	counters  identity.CounterStore
	clock     func() time.Time
	logger    *log.Logger
}

// NewTicketRepository creates a ticket repository backed by the database
// counter store and the year-sequence number generator. An empty prefix
// falls back to identity.DefaultPrefix.
func NewTicketRepository(db *sql.DB, prefix string, logger *log.Logger) *TicketRepository {
	if logger == nil {
		logger = log.Default()
	}
	return &TicketRepository{
		db:        db,
		generator: identity.NewYearSequence(prefix),
		counters:  identity.NewDBCounterStore(db),
		clock:     time.Now,
		logger:    logger,
	}
}

// SetClock overrides the repository's time source for tests.
func (r *TicketRepository) SetClock(clock func() time.Time) { r.clock = clock }

const ticketColumns = `id, tn, user_id, description, category, priority, status,
	affected_equipment, serial_number, visit_date, visit_time,
	rejection_reason, closure_note, created_at, updated_at, closed_at`

// Create assigns a ticket number and inserts the ticket together with its
// CREATED history row in one transaction. A unique violation on the number
// regenerates and retries a bounded number of times.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	if ticket.Status == "" {
		ticket.Status = models.StatusOpen
	}
	if ticket.Priority == "" {
		ticket.Priority = models.PriorityMedium
	}

	for try := 1; ; try++ {
		tn, err := r.generator.Next(ctx, r.counters, r.clock())
		if err != nil {
			return fmt.Errorf("ticket number generation failed: %w", err)
		}
		now := r.clock().UTC()
		ticket.TN = tn
		ticket.CreatedAt = now
		ticket.UpdatedAt = now

		err = r.insert(ctx, ticket)
		if err == nil {
			metrics.TicketsCreatedTotal.Inc()
			return nil
		}

		if database.IsUniqueViolation(err) {
			if try < createRetries {
				r.logger.Printf("ticket number collision on %s (attempt %d), retrying", tn, try)
				continue
			}
			return fmt.Errorf("ticket number conflict after %d attempts: %w", try, ErrCreationFailed)
		}
		return err
	}
}

func (r *TicketRepository) insert(ctx context.Context, ticket *models.Ticket) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	id, err := database.InsertWithReturning(ctx, tx, `
		INSERT INTO ticket (
			tn, user_id, description, category, priority, status,
			affected_equipment, serial_number, visit_date, visit_time,
			rejection_reason, closure_note, created_at, updated_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`,
		ticket.TN, ticket.UserID, ticket.Description, ticket.Category,
		ticket.Priority, ticket.Status, ticket.AffectedEquipment,
		ticket.SerialNumber, ticket.VisitDate, ticket.VisitTime,
		ticket.RejectionReason, ticket.ClosureNote,
		ticket.CreatedAt, ticket.UpdatedAt, ticket.ClosedAt,
	)
	if err != nil {
		return err
	}
	ticket.ID = id

	ownerID := ticket.UserID
	if err = r.addHistory(ctx, tx, models.TicketHistoryInsert{
		TicketID:  ticket.ID,
		UserID:    &ownerID,
		Action:    models.ActionCreated,
		Comment:   ticket.ShortDescription(),
		CreatedAt: ticket.CreatedAt,
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// addHistory appends one audit row. History is append-only; nothing in this
// package updates or deletes ticket_history.
func (r *TicketRepository) addHistory(ctx context.Context, exec database.Execer, entry models.TicketHistoryInsert) error {
	var comment *string
	if entry.Comment != "" {
		comment = &entry.Comment
	}
	_, err := exec.ExecContext(ctx, database.ConvertPlaceholders(`
		INSERT INTO ticket_history (ticket_id, user_id, action, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)`),
		entry.TicketID, entry.UserID, entry.Action, comment, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history row: %w", err)
	}
	return nil
}

// GetTicket implements lifecycle.Store.
func (r *TicketRepository) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	row := r.db.QueryRowContext(ctx, database.ConvertPlaceholders(
		`SELECT `+ticketColumns+` FROM ticket WHERE id = $1`), id)
	return scanTicket(row)
}

// GetByTN returns the ticket carrying the given ticket number.
func (r *TicketRepository) GetByTN(ctx context.Context, tn string) (*models.Ticket, error) {
	row := r.db.QueryRowContext(ctx, database.ConvertPlaceholders(
		`SELECT `+ticketColumns+` FROM ticket WHERE tn = $1`), tn)
	return scanTicket(row)
}

// List returns tickets matching the filter, newest first.
func (r *TicketRepository) List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM ticket`
	var (
		conds []string
		args  []interface{}
	)
	addCond := func(cond string, arg interface{}) {
		conds = append(conds, fmt.Sprintf(cond, len(args)+1))
		args = append(args, arg)
	}
	if filter.Status != "" {
		addCond("status = $%d", filter.Status)
	}
	if filter.Category != "" {
		addCond("category = $%d", filter.Category)
	}
	if filter.Priority != "" {
		addCond("priority = $%d", filter.Priority)
	}
	if filter.OwnerID != 0 {
		addCond("user_id = $%d", filter.OwnerID)
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, database.ConvertPlaceholders(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// ListClosedBefore returns CLOSED tickets whose closed_at is at or before the
// cutoff. The archival sweep uses it to find candidates.
func (r *TicketRepository) ListClosedBefore(ctx context.Context, cutoff time.Time) ([]models.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, database.ConvertPlaceholders(`
		SELECT `+ticketColumns+` FROM ticket
		WHERE status = $1 AND closed_at <= $2
		ORDER BY closed_at`),
		models.StatusClosed, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// ListHistory returns a ticket's audit trail, newest first.
func (r *TicketRepository) ListHistory(ctx context.Context, ticketID int64) ([]models.TicketHistory, error) {
	rows, err := r.db.QueryContext(ctx, database.ConvertPlaceholders(`
		SELECT id, ticket_id, user_id, action, comment, created_at
		FROM ticket_history
		WHERE ticket_id = $1
		ORDER BY created_at DESC, id DESC`), ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.TicketHistory
	for rows.Next() {
		var h models.TicketHistory
		if err := rows.Scan(&h.ID, &h.TicketID, &h.UserID, &h.Action, &h.Comment, &h.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

// ApplyTransition implements lifecycle.Store: the field update, history row
// and optional notification are committed together or not at all.
func (r *TicketRepository) ApplyTransition(ctx context.Context, ticketID int64, change lifecycle.Change) (_ *models.Ticket, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// The status guard keeps validate-then-apply honest: if another
	// transition committed in between, the update matches nothing.
	res, err := tx.ExecContext(ctx, database.ConvertPlaceholders(`
		UPDATE ticket
		SET status = $1, visit_date = $2, visit_time = $3,
		    rejection_reason = $4, closure_note = $5,
		    closed_at = $6, updated_at = $7
		WHERE id = $8 AND status = $9`),
		change.Status, change.VisitDate, change.VisitTime,
		change.RejectionReason, change.ClosureNote,
		change.ClosedAt, change.UpdatedAt, ticketID, change.FromStatus,
	)
	if err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		var status models.TicketStatus
		err = tx.QueryRowContext(ctx, database.ConvertPlaceholders(
			`SELECT status FROM ticket WHERE id = $1`), ticketID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("inspect ticket status: %w", err)
		}
		err = fmt.Errorf("ticket %d is now %s: %w", ticketID, status, lifecycle.ErrConcurrentUpdate)
		return nil, err
	}

	if err = r.addHistory(ctx, tx, change.History); err != nil {
		return nil, err
	}

	if change.Notification != nil {
		if _, err = tx.ExecContext(ctx, database.ConvertPlaceholders(`
			INSERT INTO notification (user_id, ticket_id, title, message, is_read, created_at)
			VALUES ($1, $2, $3, $4, FALSE, $5)`),
			change.Notification.UserID, change.Notification.TicketID,
			change.Notification.Title, change.Notification.Message,
			change.History.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("insert notification: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return r.GetTicket(ctx, ticketID)
}

func scanTicket(row *sql.Row) (*models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(
		&t.ID, &t.TN, &t.UserID, &t.Description, &t.Category, &t.Priority,
		&t.Status, &t.AffectedEquipment, &t.SerialNumber, &t.VisitDate,
		&t.VisitTime, &t.RejectionReason, &t.ClosureNote,
		&t.CreatedAt, &t.UpdatedAt, &t.ClosedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTickets(rows *sql.Rows) ([]models.Ticket, error) {
	var tickets []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(
			&t.ID, &t.TN, &t.UserID, &t.Description, &t.Category, &t.Priority,
			&t.Status, &t.AffectedEquipment, &t.SerialNumber, &t.VisitDate,
			&t.VisitTime, &t.RejectionReason, &t.ClosureNote,
			&t.CreatedAt, &t.UpdatedAt, &t.ClosedAt,
		); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}
