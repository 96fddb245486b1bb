// Package sweeper implements the background pass that archives aged closed
// tickets.
package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/helpdesk-io/helpdesk-ce/internal/lifecycle"
	"github.com/helpdesk-io/helpdesk-ce/internal/metrics"
	"github.com/helpdesk-io/helpdesk-ce/internal/models"
)

// Lister finds archival candidates.
type Lister interface {
	ListClosedBefore(ctx context.Context, cutoff time.Time) ([]models.Ticket, error)
}

// Report summarizes one sweep run.
type Report struct {
	ArchivedCount   int
	FailedTicketIDs []int64
}

// Sweeper walks closed tickets past the archive threshold and drives the
// archive transition for each. Every ticket is its own atomic unit; one
// failure never aborts the rest of the batch.
type Sweeper struct {
	lister           Lister
	engine           *lifecycle.Engine
	archiveAfterDays int
	clock            func() time.Time
	logger           *log.Logger
}

func New(lister Lister, engine *lifecycle.Engine, archiveAfterDays int, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{
		lister:           lister,
		engine:           engine,
		archiveAfterDays: archiveAfterDays,
		clock:            time.Now,
		logger:           logger,
	}
}

// SetClock overrides the sweeper's time source for tests.
func (s *Sweeper) SetClock(clock func() time.Time) { s.clock = clock }

// Run performs one sweep. A ticket closed exactly archiveAfterDays ago is
// archived; one closed a day less than the threshold is left alone.
// Per-ticket failures are collected into the report, not raised.
func (s *Sweeper) Run(ctx context.Context) (*Report, error) {
	cutoff := s.clock().UTC().AddDate(0, 0, -s.archiveAfterDays)
	candidates, err := s.lister.ListClosedBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, ticket := range candidates {
		_, err := s.engine.Transition(ctx, lifecycle.Request{
			TicketID: ticket.ID,
			Event:    lifecycle.EventArchive,
		})
		if err != nil {
			s.logger.Printf("archive failed for ticket %s: %v", ticket.TN, err)
			report.FailedTicketIDs = append(report.FailedTicketIDs, ticket.ID)
			metrics.SweepFailuresTotal.Inc()
			continue
		}
		report.ArchivedCount++
		metrics.SweepArchivedTotal.Inc()
	}

	s.logger.Printf("sweep complete: %d archived, %d failed", report.ArchivedCount, len(report.FailedTicketIDs))
	return report, nil
}
