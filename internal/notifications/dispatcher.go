package notifications

import (
	"context"
	"log"

	"github.com/helpdesk-io/helpdesk-ce/internal/models"
)

// Dispatcher is the contract for the external delivery collaborator. It
// consumes notification records (typically by polling ListUnread) and
// performs the actual delivery; the core never sends email itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification) error
}

// LogDispatcher writes would-be deliveries to a logger. It is the
// development stand-in for a real email dispatcher.
type LogDispatcher struct {
	logger *log.Logger
}

func NewLogDispatcher(logger *log.Logger) *LogDispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n models.Notification) error {
	d.logger.Printf("notification %d for user %d: %s", n.ID, n.UserID, n.Title)
	return nil
}
