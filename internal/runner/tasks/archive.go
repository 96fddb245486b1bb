// Package tasks contains the scheduled background tasks.
package tasks

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/helpdesk-io/helpdesk-ce/internal/sweeper"
)

// ArchiveTask periodically archives tickets that have been closed long
// enough.
type ArchiveTask struct {
	sweeper  *sweeper.Sweeper
	schedule string
	logger   *log.Logger
}

func NewArchiveTask(sw *sweeper.Sweeper, schedule string, logger *log.Logger) *ArchiveTask {
	if logger == nil {
		logger = log.New(os.Stdout, "[ARCHIVE] ", log.LstdFlags)
	}
	return &ArchiveTask{
		sweeper:  sw,
		schedule: schedule,
		logger:   logger,
	}
}

func (t *ArchiveTask) Name() string { return "ticket-archive" }

func (t *ArchiveTask) Schedule() string { return t.schedule }

func (t *ArchiveTask) Timeout() time.Duration { return 10 * time.Minute }

func (t *ArchiveTask) Run(ctx context.Context) error {
	report, err := t.sweeper.Run(ctx)
	if err != nil {
		return err
	}
	if len(report.FailedTicketIDs) > 0 {
		t.logger.Printf("archive sweep finished with %d failures: %v",
			len(report.FailedTicketIDs), report.FailedTicketIDs)
	}
	t.logger.Printf("archive sweep archived %d tickets", report.ArchivedCount)
	return nil
}
