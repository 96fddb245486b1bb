package notifications_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-io/helpdesk-ce/internal/models"
	"github.com/helpdesk-io/helpdesk-ce/internal/notifications"
	"github.com/helpdesk-io/helpdesk-ce/internal/repository"
)

func TestCenter(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	center := notifications.NewCenter(store)

	alice := &models.User{Email: "alice@helpdesk.local"}
	require.NoError(t, store.CreateUser(ctx, alice))
	bob := &models.User{Email: "bob@helpdesk.local"}
	require.NoError(t, store.CreateUser(ctx, bob))

	t.Run("notify creates an unread notification", func(t *testing.T) {
		n, err := center.Notify(ctx, alice.ID, nil, "Welcome", "Your account is ready")
		require.NoError(t, err)
		assert.False(t, n.IsRead)
		assert.Equal(t, alice.ID, n.UserID)

		unread, err := center.ListUnread(ctx, alice.ID)
		require.NoError(t, err)
		assert.Len(t, unread, 1)
	})

	t.Run("only the addressee can mark read", func(t *testing.T) {
		n, err := center.Notify(ctx, alice.ID, nil, "Second", "msg")
		require.NoError(t, err)

		err = center.MarkRead(ctx, n.ID, bob.ID)
		assert.ErrorIs(t, err, notifications.ErrNotAddressee)

		unread, err := center.ListUnread(ctx, alice.ID)
		require.NoError(t, err)
		assert.Len(t, unread, 2, "failed mark must not flip the flag")

		require.NoError(t, center.MarkRead(ctx, n.ID, alice.ID))
		unread, err = center.ListUnread(ctx, alice.ID)
		require.NoError(t, err)
		assert.Len(t, unread, 1)
	})

	t.Run("unknown notification", func(t *testing.T) {
		err := center.MarkRead(ctx, 999, alice.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("dispatcher sees every new notification", func(t *testing.T) {
		d := &recordingDispatcher{}
		center.SetDispatcher(d)
		defer center.SetDispatcher(nil)

		n, err := center.Notify(ctx, bob.ID, nil, "Third", "msg")
		require.NoError(t, err)
		require.Len(t, d.seen, 1)
		assert.Equal(t, n.ID, d.seen[0].ID)
	})
}

type recordingDispatcher struct {
	seen []models.Notification
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n models.Notification) error {
	d.seen = append(d.seen, n)
	return nil
}
