// Package metrics collects and exposes Prometheus metrics for wear tracking
// operations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface services use to record operational events.
type Recorder interface {
	RecordSessionStarted()
	RecordSessionPaused()
	RecordManualEntry()
	RecordMidnightSplit()
	RecordLogDeleted()
}

// Collector records wear tracking metrics in Prometheus counters.
type Collector struct {
	sessionsStarted prometheus.Counter
	sessionsPaused  prometheus.Counter
	manualEntries   prometheus.Counter
	midnightSplits  prometheus.Counter
	logsDeleted     prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with the given
// registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alignertracker_sessions_started_total",
			Help: "Total number of wear sessions started.",
		}),
		sessionsPaused: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alignertracker_sessions_paused_total",
			Help: "Total number of wear sessions paused.",
		}),
		manualEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alignertracker_manual_entries_total",
			Help: "Total number of manually backfilled wear logs.",
		}),
		midnightSplits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alignertracker_midnight_splits_total",
			Help: "Total number of day-boundary splits performed.",
		}),
		logsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alignertracker_logs_deleted_total",
			Help: "Total number of wear logs deleted.",
		}),
	}

	reg.MustRegister(
		c.sessionsStarted,
		c.sessionsPaused,
		c.manualEntries,
		c.midnightSplits,
		c.logsDeleted,
	)

	return c
}

func (c *Collector) RecordSessionStarted() { c.sessionsStarted.Inc() }
func (c *Collector) RecordSessionPaused()  { c.sessionsPaused.Inc() }
func (c *Collector) RecordManualEntry()    { c.manualEntries.Inc() }
func (c *Collector) RecordMidnightSplit()  { c.midnightSplits.Inc() }
func (c *Collector) RecordLogDeleted()     { c.logsDeleted.Inc() }

// Nop is a Recorder that discards every event. Useful in tests.
type Nop struct{}

func (Nop) RecordSessionStarted() {}
func (Nop) RecordSessionPaused()  {}
func (Nop) RecordManualEntry()    {}
func (Nop) RecordMidnightSplit()  {}
func (Nop) RecordLogDeleted()     {}

// Handler returns the HTTP handler serving the /metrics scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
