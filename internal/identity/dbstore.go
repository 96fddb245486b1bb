package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/helpdesk-io/helpdesk-ce/internal/database"
)

// DBCounterStore keeps exactly one row per year in ticket_sequence and
// increments it with a dialect-specific atomic UPSERT:
//
//	Postgres: INSERT ... ON CONFLICT(year) DO UPDATE SET counter = ticket_sequence.counter + EXCLUDED.counter RETURNING counter
//	MySQL:    INSERT ... ON DUPLICATE KEY UPDATE counter = LAST_INSERT_ID(counter + VALUES(counter))
//	Other:    transaction with SELECT ... FOR UPDATE
//
// This is what makes concurrent same-year creations race-free: the database
// serializes the increment, so every caller sees a distinct value.
type DBCounterStore struct {
	db *sql.DB
}

func NewDBCounterStore(db *sql.DB) *DBCounterStore {
	return &DBCounterStore{db: db}
}

// Add implements CounterStore.
func (s *DBCounterStore) Add(ctx context.Context, year int, offset int64) (int64, error) {
	if offset < 1 {
		return 0, errors.New("bad offset")
	}

	if database.IsPostgreSQL() || database.IsSQLite() {
		q := `INSERT INTO ticket_sequence (year, counter)
              VALUES ($1, $2)
              ON CONFLICT (year) DO UPDATE SET counter = ticket_sequence.counter + EXCLUDED.counter
              RETURNING counter`
		var c int64
		if err := s.db.QueryRowContext(ctx, database.ConvertPlaceholders(q), year, offset).Scan(&c); err != nil {
			return 0, err
		}
		return c, nil
	}

	if database.IsMySQL() {
		// LAST_INSERT_ID is read from the Exec result so the value comes from
		// the same session even with a pooled connection. The insert path also
		// routes through LAST_INSERT_ID so the first counter of a year is
		// returned correctly.
		q := `INSERT INTO ticket_sequence (year, counter)
              VALUES (?, LAST_INSERT_ID(?))
              ON DUPLICATE KEY UPDATE counter = LAST_INSERT_ID(counter + VALUES(counter))`
		res, err := s.db.ExecContext(ctx, q, year, offset)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}

	return s.addGeneric(ctx, year, offset)
}

// addGeneric emulates the atomic increment with a row lock for drivers
// without a usable UPSERT.
func (s *DBCounterStore) addGeneric(ctx context.Context, year int, offset int64) (newVal int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current int64
	row := tx.QueryRowContext(ctx, database.ConvertPlaceholders(
		`SELECT counter FROM ticket_sequence WHERE year = $1 FOR UPDATE`), year)
	scanErr := row.Scan(&current)
	switch {
	case scanErr == nil:
		newVal = current + offset
		if _, err = tx.ExecContext(ctx, database.ConvertPlaceholders(
			`UPDATE ticket_sequence SET counter = $2 WHERE year = $1`), year, newVal); err != nil {
			return 0, err
		}
	case errors.Is(scanErr, sql.ErrNoRows):
		newVal = offset
		if _, err = tx.ExecContext(ctx, database.ConvertPlaceholders(
			`INSERT INTO ticket_sequence (year, counter) VALUES ($1, $2)`), year, newVal); err != nil {
			return 0, err
		}
	default:
		err = scanErr
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return newVal, nil
}
