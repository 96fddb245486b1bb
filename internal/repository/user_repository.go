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
	"github.com/helpdesk-io/helpdesk-ce/internal/models"
)

// codeRetries bounds regenerate-and-retry on an access code collision. The
// code space is 36^12 so a collision is effectively impossible; the retry
// exists for correctness.
const codeRetries = 5

// UserRepository handles database operations for user accounts.
type UserRepository struct {
	db     *sql.DB
	clock  func() time.Time
	logger *log.Logger
}

func NewUserRepository(db *sql.DB, logger *log.Logger) *UserRepository {
	if logger == nil {
		logger = log.Default()
	}
	return &UserRepository{db: db, clock: time.Now, logger: logger}
}

const userColumns = `id, email, pw, first_name, last_name, role,
	access_code, code_sent_count, is_code_active, created_at, updated_at`

// Create inserts a new user with a freshly generated access code. A unique
// violation on the code regenerates and retries; a violation on the email
// surfaces as ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleRequester
	}

	for try := 1; ; try++ {
		code, err := identity.GenerateAccessCode()
		if err != nil {
			return fmt.Errorf("access code generation failed: %w", err)
		}
		now := r.clock().UTC()
		user.AccessCode = code
		user.CodeSentCount = 0
		user.IsCodeActive = true
		user.CreatedAt = now
		user.UpdatedAt = now

		id, err := database.InsertWithReturning(ctx, r.db, `
			INSERT INTO users (
				email, pw, first_name, last_name, role,
				access_code, code_sent_count, is_code_active, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			user.Email, user.Password, user.FirstName, user.LastName, user.Role,
			user.AccessCode, user.CodeSentCount, user.IsCodeActive,
			user.CreatedAt, user.UpdatedAt,
		)
		if err == nil {
			user.ID = id
			return nil
		}

		if database.IsUniqueViolationOn(err, "email") {
			return fmt.Errorf("user %s: %w", user.Email, ErrDuplicateEmail)
		}
		if database.IsUniqueViolation(err) {
			if try < codeRetries {
				r.logger.Printf("access code collision (attempt %d), regenerating", try)
				continue
			}
			return fmt.Errorf("access code conflict after %d attempts: %w", try, ErrCreationFailed)
		}
		return err
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, database.ConvertPlaceholders(
		`SELECT `+userColumns+` FROM users WHERE id = $1`), id)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, database.ConvertPlaceholders(
		`SELECT `+userColumns+` FROM users WHERE email = $1`), email)
	return scanUser(row)
}

// RegenerateAccessCode issues a fresh code for the user, resets
// code_sent_count to 0 and reactivates the code. Returns the new code.
func (r *UserRepository) RegenerateAccessCode(ctx context.Context, userID int64) (string, error) {
	for try := 1; ; try++ {
		code, err := identity.GenerateAccessCode()
		if err != nil {
			return "", fmt.Errorf("access code generation failed: %w", err)
		}

		res, err := r.db.ExecContext(ctx, database.ConvertPlaceholders(`
			UPDATE users
			SET access_code = $1, code_sent_count = 0, is_code_active = TRUE, updated_at = $2
			WHERE id = $3`),
			code, r.clock().UTC(), userID,
		)
		if err == nil {
			if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
				return "", ErrNotFound
			}
			return code, nil
		}

		if database.IsUniqueViolation(err) && try < codeRetries {
			continue
		}
		if database.IsUniqueViolation(err) {
			return "", fmt.Errorf("access code conflict after %d attempts: %w", try, ErrCreationFailed)
		}
		return "", err
	}
}

// MarkCodeSent bumps code_sent_count after the external dispatcher delivered
// the code to the user.
func (r *UserRepository) MarkCodeSent(ctx context.Context, userID int64) error {
	res, err := r.db.ExecContext(ctx, database.ConvertPlaceholders(`
		UPDATE users SET code_sent_count = code_sent_count + 1, updated_at = $1
		WHERE id = $2`),
		r.clock().UTC(), userID,
	)
	if err != nil {
		return err
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user. The schema cascades owned tickets (and through
// them attachments, history and notifications) while history rows written by
// the user elsewhere keep existing with a null actor.
func (r *UserRepository) Delete(ctx context.Context, userID int64) error {
	res, err := r.db.ExecContext(ctx, database.ConvertPlaceholders(
		`DELETE FROM users WHERE id = $1`), userID)
	if err != nil {
		return err
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName, &u.Role,
		&u.AccessCode, &u.CodeSentCount, &u.IsCodeActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
