package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserPassword(t *testing.T) {
	u := &User{Email: "a@helpdesk.local"}
	require.NoError(t, u.SetPassword("correct horse battery"))

	assert.NotEqual(t, "correct horse battery", u.Password, "stored value must be a hash")
	assert.True(t, u.CheckPassword("correct horse battery"))
	assert.False(t, u.CheckPassword("wrong"))

	require.NoError(t, u.SetPasswordWithCost("another passphrase", bcrypt.MinCost))
	cost, err := bcrypt.Cost([]byte(u.Password))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
	assert.True(t, u.CheckPassword("another passphrase"))
}

func TestIsTechnician(t *testing.T) {
	var nobody *User
	assert.False(t, nobody.IsTechnician())

	assert.True(t, (&User{Role: RoleTechnician}).IsTechnician())
	assert.False(t, (&User{Role: RoleRequester}).IsTechnician())
}

func TestFullName(t *testing.T) {
	u := &User{FirstName: "Ada", LastName: "Lovelace"}
	assert.Equal(t, "Ada Lovelace", u.FullName())
}
