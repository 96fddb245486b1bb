package database

import (
	"context"
	"database/sql"
	"regexp"
)

// Execer is the subset of database operations shared by *sql.DB and *sql.Tx.
// Repositories take it so the same helpers run inside or outside a
// transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var returningRe = regexp.MustCompile(`(?i)\s+RETURNING\s+\S+\s*$`)

// InsertWithReturning runs an INSERT written with a PostgreSQL-style
// RETURNING id clause and returns the new row id on any dialect.
// PostgreSQL and modern SQLite support RETURNING natively; for MySQL the
// clause is stripped and LastInsertId is used instead.
func InsertWithReturning(ctx context.Context, exec Execer, query string, args ...interface{}) (int64, error) {
	if IsMySQL() {
		stripped := returningRe.ReplaceAllString(query, "")
		res, err := exec.ExecContext(ctx, ConvertPlaceholders(stripped), args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}

	var id int64
	if err := exec.QueryRowContext(ctx, ConvertPlaceholders(query), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
