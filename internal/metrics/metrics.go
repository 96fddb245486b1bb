// Package metrics exposes Prometheus counters for the ticket core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicketsCreatedTotal counts successful ticket creations.
	TicketsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helpdesk_tickets_created_total",
		Help: "Number of tickets created",
	})

	// TransitionsTotal counts successful lifecycle transitions by event.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helpdesk_transitions_total",
		Help: "Number of successful lifecycle transitions",
	}, []string{"event"})

	// SweepArchivedTotal counts tickets archived by the sweeper.
	SweepArchivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helpdesk_sweep_archived_total",
		Help: "Number of tickets archived by the background sweep",
	})

	// SweepFailuresTotal counts per-ticket archival failures during sweeps.
	SweepFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helpdesk_sweep_failures_total",
		Help: "Number of tickets that failed to archive during a sweep",
	})
)
