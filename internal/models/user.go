package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UserRole identifies which side of the help desk a user sits on.
type UserRole string

const (
	RoleTechnician UserRole = "TECHNICIAN"
	RoleRequester  UserRole = "REQUESTER"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	return r == RoleTechnician || r == RoleRequester
}

// User is an account that can file or work tickets.
type User struct {
	ID            int64     `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"` // institutional email, unique
	Password      string    `json:"-" db:"pw"`        // bcrypt hash, never exposed in JSON
	FirstName     string    `json:"first_name" db:"first_name"`
	LastName      string    `json:"last_name" db:"last_name"`
	Role          UserRole  `json:"role" db:"role"`
	AccessCode    string    `json:"-" db:"access_code"` // unique 12-char credential
	CodeSentCount int       `json:"code_sent_count" db:"code_sent_count"`
	IsCodeActive  bool      `json:"is_code_active" db:"is_code_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

func (u *User) SetPassword(password string) error {
	return u.SetPasswordWithCost(password, bcrypt.DefaultCost)
}

// SetPasswordWithCost hashes with a configured bcrypt cost. bcrypt itself
// falls back to DefaultCost when the cost is below MinCost.
func (u *User) SetPasswordWithCost(password string, cost int) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) IsTechnician() bool {
	return u != nil && u.Role == RoleTechnician
}
