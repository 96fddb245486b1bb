package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-io/helpdesk-ce/internal/database"
	"github.com/helpdesk-io/helpdesk-ce/internal/lifecycle"
	"github.com/helpdesk-io/helpdesk-ce/internal/models"
)

func newMockTicketRepo(t *testing.T) (*TicketRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Queries stay in $N form so the expectations below can match them.
	database.SetDriver("postgres")

	repo := NewTicketRepository(db, "", nil)
	repo.SetClock(func() time.Time {
		return time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	})
	return repo, mock
}

func expectCounterAdd(mock sqlmock.Sqlmock, counter int64) {
	mock.ExpectQuery(`INSERT INTO ticket_sequence`).
		WithArgs(2025, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"counter"}).AddRow(counter))
}

func TestTicketRepositoryCreate(t *testing.T) {
	repo, mock := newMockTicketRepo(t)

	expectCounterAdd(mock, 1)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO ticket`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(`INSERT INTO ticket_history`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ticket := &models.Ticket{
		UserID:            3,
		Description:       "Printer jams on every second page",
		Category:          models.CategoryPrinter,
		Priority:          models.PriorityMedium,
		AffectedEquipment: "HP LaserJet 4200",
	}
	err := repo.Create(context.Background(), ticket)
	require.NoError(t, err)

	assert.Equal(t, int64(7), ticket.ID)
	assert.Equal(t, "TCK-2025-0001", ticket.TN)
	assert.Equal(t, models.StatusOpen, ticket.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepositoryUsesConfiguredPrefix(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	database.SetDriver("postgres")

	repo := NewTicketRepository(db, "HD", nil)
	repo.SetClock(func() time.Time {
		return time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	})

	expectCounterAdd(mock, 1)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO ticket`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO ticket_history`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ticket := &models.Ticket{
		UserID:            3,
		Description:       "Mouse double-clicks",
		Category:          models.CategoryComputer,
		AffectedEquipment: "Logitech M185",
	}
	require.NoError(t, repo.Create(context.Background(), ticket))
	assert.Equal(t, "HD-2025-0001", ticket.TN)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepositoryCreateRetriesOnCollision(t *testing.T) {
	repo, mock := newMockTicketRepo(t)

	// First attempt collides on the number, second goes through.
	expectCounterAdd(mock, 41)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO ticket`).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "ticket_tn_key"`))
	mock.ExpectRollback()

	expectCounterAdd(mock, 42)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO ticket`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))
	mock.ExpectExec(`INSERT INTO ticket_history`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ticket := &models.Ticket{
		UserID:            3,
		Description:       "No network on dock",
		Category:          models.CategoryNetwork,
		AffectedEquipment: "ThinkPad dock",
	}
	err := repo.Create(context.Background(), ticket)
	require.NoError(t, err)

	assert.Equal(t, "TCK-2025-0042", ticket.TN)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepositoryCreateExhaustsRetries(t *testing.T) {
	repo, mock := newMockTicketRepo(t)

	for i := 0; i < createRetries; i++ {
		expectCounterAdd(mock, int64(i+1))
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO ticket`).
			WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "ticket_tn_key"`))
		mock.ExpectRollback()
	}

	ticket := &models.Ticket{
		UserID:            3,
		Description:       "x",
		Category:          models.CategoryOther,
		AffectedEquipment: "x",
	}
	err := repo.Create(context.Background(), ticket)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCreationFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransitionAtomicity(t *testing.T) {
	now := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

	t.Run("update, history and notification share one transaction", func(t *testing.T) {
		repo, mock := newMockTicketRepo(t)

		note := "fixed"
		closedAt := now
		change := lifecycle.Change{
			FromStatus:  models.StatusInProgress,
			Status:      models.StatusClosed,
			ClosureNote: &note,
			ClosedAt:    &closedAt,
			UpdatedAt:   now,
			History: models.TicketHistoryInsert{
				TicketID: 7, Action: models.ActionClosed, Comment: note, CreatedAt: now,
			},
			Notification: &models.NotificationInsert{
				UserID: 3, Title: "Ticket TCK-2025-0001 closed", Message: "done",
			},
		}

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE ticket`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO ticket_history`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(`INSERT INTO notification`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT (.+) FROM ticket WHERE id = \$1`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "tn", "user_id", "description", "category", "priority",
				"status", "affected_equipment", "serial_number", "visit_date",
				"visit_time", "rejection_reason", "closure_note",
				"created_at", "updated_at", "closed_at",
			}).AddRow(
				int64(7), "TCK-2025-0001", int64(3), "desc", "PRINTER", "MEDIUM",
				"CLOSED", "HP", nil, nil, nil, nil, note, now, now, closedAt,
			))

		ticket, err := repo.ApplyTransition(context.Background(), 7, change)
		require.NoError(t, err)
		assert.Equal(t, models.StatusClosed, ticket.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("history failure rolls everything back", func(t *testing.T) {
		repo, mock := newMockTicketRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE ticket`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO ticket_history`).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, err := repo.ApplyTransition(context.Background(), 7, lifecycle.Change{
			FromStatus: models.StatusOpen,
			Status:     models.StatusInProgress,
			UpdatedAt:  now,
			History:    models.TicketHistoryInsert{TicketID: 7, Action: models.ActionStatusChanged, CreatedAt: now},
		})
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing ticket is ErrNotFound", func(t *testing.T) {
		repo, mock := newMockTicketRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE ticket`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT status FROM ticket`).
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.ApplyTransition(context.Background(), 99, lifecycle.Change{
			FromStatus: models.StatusOpen,
			Status:     models.StatusInProgress,
			UpdatedAt:  now,
			History:    models.TicketHistoryInsert{TicketID: 99, Action: models.ActionStatusChanged, CreatedAt: now},
		})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status moved between validation and apply", func(t *testing.T) {
		repo, mock := newMockTicketRepo(t)

		// The guarded update matches nothing because the ticket is no
		// longer OPEN; the store reports the conflict and rolls back.
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE ticket`).
			WithArgs(
				string(models.StatusInProgress), nil, nil, nil, nil, nil, now,
				int64(7), string(models.StatusOpen),
			).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT status FROM ticket`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("REJECTED"))
		mock.ExpectRollback()

		_, err := repo.ApplyTransition(context.Background(), 7, lifecycle.Change{
			FromStatus: models.StatusOpen,
			Status:     models.StatusInProgress,
			UpdatedAt:  now,
			History:    models.TicketHistoryInsert{TicketID: 7, Action: models.ActionStatusChanged, CreatedAt: now},
		})
		assert.ErrorIs(t, err, lifecycle.ErrConcurrentUpdate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListClosedBeforeFiltersStatus(t *testing.T) {
	repo, mock := newMockTicketRepo(t)

	cutoff := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT (.+) FROM ticket`).
		WithArgs(string(models.StatusClosed), cutoff).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tn", "user_id", "description", "category", "priority",
			"status", "affected_equipment", "serial_number", "visit_date",
			"visit_time", "rejection_reason", "closure_note",
			"created_at", "updated_at", "closed_at",
		}))

	tickets, err := repo.ListClosedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.NoError(t, mock.ExpectationsWereMet())
}
