package sweeper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-io/helpdesk-ce/internal/lifecycle"
	"github.com/helpdesk-io/helpdesk-ce/internal/models"
	"github.com/helpdesk-io/helpdesk-ce/internal/repository"
	"github.com/helpdesk-io/helpdesk-ce/internal/sweeper"
)

const archiveDays = 30

type sweepFixture struct {
	store  *repository.MemoryStore
	engine *lifecycle.Engine
	tech   *models.User
	owner  *models.User
	now    time.Time
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	ctx := context.Background()

	f := &sweepFixture{
		store: repository.NewMemoryStore(),
		now:   time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC),
	}
	f.store.SetClock(func() time.Time { return f.now })
	f.engine = lifecycle.NewEngine(f.store, archiveDays, nil)
	f.engine.SetClock(func() time.Time { return f.now })

	f.tech = &models.User{Email: "tech@helpdesk.local", Role: models.RoleTechnician}
	require.NoError(t, f.store.CreateUser(ctx, f.tech))
	f.owner = &models.User{Email: "owner@helpdesk.local", Role: models.RoleRequester}
	require.NoError(t, f.store.CreateUser(ctx, f.owner))
	return f
}

// closedTicket creates a ticket and closes it at the fixture's current time.
func (f *sweepFixture) closedTicket(t *testing.T) *models.Ticket {
	t.Helper()
	ctx := context.Background()
	ticket := &models.Ticket{
		UserID:            f.owner.ID,
		Description:       "aged ticket",
		Category:          models.CategoryOther,
		AffectedEquipment: "n/a",
	}
	require.NoError(t, f.store.CreateTicket(ctx, ticket))
	_, err := f.engine.Transition(ctx, lifecycle.Request{
		TicketID: ticket.ID, Actor: f.tech, Event: lifecycle.EventStartWork,
	})
	require.NoError(t, err)
	_, err = f.engine.Transition(ctx, lifecycle.Request{
		TicketID: ticket.ID, Actor: f.tech, Event: lifecycle.EventClose, Note: "done",
	})
	require.NoError(t, err)
	return ticket
}

func (f *sweepFixture) newSweeper() *sweeper.Sweeper {
	sw := sweeper.New(f.store, f.engine, archiveDays, nil)
	sw.SetClock(func() time.Time { return f.now })
	return sw
}

func TestSweeperThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t)

	// Closed exactly archiveDays ago: archived.
	aged := f.closedTicket(t)

	// Closed archiveDays-1 days ago: left alone.
	f.now = f.now.Add(24 * time.Hour)
	fresh := f.closedTicket(t)

	f.now = f.now.Add((archiveDays - 1) * 24 * time.Hour)
	report, err := f.newSweeper().Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.ArchivedCount)
	assert.Empty(t, report.FailedTicketIDs)

	got, err := f.store.GetTicket(ctx, aged.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, got.Status)

	got, err = f.store.GetTicket(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, got.Status)
}

func TestSweeperIgnoresOpenAndRejected(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t)

	open := &models.Ticket{
		UserID: f.owner.ID, Description: "open", Category: models.CategoryOther,
		AffectedEquipment: "n/a",
	}
	require.NoError(t, f.store.CreateTicket(ctx, open))

	rejected := &models.Ticket{
		UserID: f.owner.ID, Description: "rejected", Category: models.CategoryOther,
		AffectedEquipment: "n/a",
	}
	require.NoError(t, f.store.CreateTicket(ctx, rejected))
	_, err := f.engine.Transition(ctx, lifecycle.Request{
		TicketID: rejected.ID, Actor: f.tech, Event: lifecycle.EventReject, Reason: "nope",
	})
	require.NoError(t, err)

	f.now = f.now.Add(2 * archiveDays * 24 * time.Hour)
	report, err := f.newSweeper().Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.ArchivedCount)

	got, err := f.store.GetTicket(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
}

// failingLister wraps the store and injects tickets that will fail the
// archive transition.
type failingLister struct {
	store *repository.MemoryStore
	extra []models.Ticket
}

func (l *failingLister) ListClosedBefore(ctx context.Context, cutoff time.Time) ([]models.Ticket, error) {
	out, err := l.store.ListClosedBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return append(out, l.extra...), nil
}

func TestSweeperCollectsPartialFailures(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture(t)

	good := f.closedTicket(t)
	f.now = f.now.Add(archiveDays * 24 * time.Hour)

	// A candidate that no longer exists fails its own archival without
	// aborting the rest.
	lister := &failingLister{
		store: f.store,
		extra: []models.Ticket{{ID: 999, TN: "TCK-2025-9999"}},
	}
	sw := sweeper.New(lister, f.engine, archiveDays, nil)
	sw.SetClock(func() time.Time { return f.now })

	report, err := sw.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.ArchivedCount)
	assert.Equal(t, []int64{999}, report.FailedTicketIDs)

	got, err := f.store.GetTicket(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, got.Status)
}

func TestSweeperListerFailureAborts(t *testing.T) {
	f := newSweepFixture(t)
	sw := sweeper.New(brokenLister{}, f.engine, archiveDays, nil)

	_, err := sw.Run(context.Background())
	assert.Error(t, err)
}

type brokenLister struct{}

func (brokenLister) ListClosedBefore(context.Context, time.Time) ([]models.Ticket, error) {
	return nil, errors.New("database unavailable")
}
