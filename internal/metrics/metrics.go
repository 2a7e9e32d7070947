// Package metrics holds the store's Prometheus collectors.
//
// Collectors live on a private registry so that several stores in one
// process (tests, tools) never collide. Every method is safe on a nil
// *Metrics, so components can take metrics as an optional dependency.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "metastore"

// Commit outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeNoop      = "noop"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Metrics is the set of collectors for one store.
type Metrics struct {
	registry *prometheus.Registry

	commits            *prometheus.CounterVec
	violations         prometheus.Counter
	commitDuration     prometheus.Histogram
	indexFlushDuration prometheus.Histogram
	indexOps           prometheus.Counter
	indexBatchFailures *prometheus.CounterVec
	logHead            prometheus.Gauge
	replayedEntries    prometheus.Counter
	eventsDropped      prometheus.Counter
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Commit attempts by outcome.",
		}, []string{"outcome"}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_total",
			Help:      "Violations reported by the validation chains.",
		}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Time from commit start to acknowledgement.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		indexFlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "flush_duration_seconds",
			Help:      "Time spent submitting one flush to the search engine.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		indexOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "operations_total",
			Help:      "Field operations submitted to the search engine.",
		}),
		indexBatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "batch_failures_total",
			Help:      "Batches the search engine rejected, by failure policy.",
		}, []string{"policy"}),
		logHead: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "log",
			Name:      "head_sequence",
			Help:      "Highest sequence number in the transaction log.",
		}),
		replayedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recovery",
			Name:      "replayed_entries_total",
			Help:      "Log entries re-applied by recovery.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events not delivered under the optional delivery policy.",
		}),
	}

	m.registry.MustRegister(
		m.commits,
		m.violations,
		m.commitDuration,
		m.indexFlushDuration,
		m.indexOps,
		m.indexBatchFailures,
		m.logHead,
		m.replayedEntries,
		m.eventsDropped,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCommit records one commit attempt.
func (m *Metrics) ObserveCommit(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(outcome).Inc()
	m.commitDuration.Observe(d.Seconds())
}

// AddViolations counts reported violations.
func (m *Metrics) AddViolations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.violations.Add(float64(n))
}

// ObserveFlush records one index flush.
func (m *Metrics) ObserveFlush(d time.Duration, ops int) {
	if m == nil {
		return
	}
	m.indexFlushDuration.Observe(d.Seconds())
	m.indexOps.Add(float64(ops))
}

// IndexBatchFailed counts a rejected batch under policy "required" or "optional".
func (m *Metrics) IndexBatchFailed(policy string) {
	if m == nil {
		return
	}
	m.indexBatchFailures.WithLabelValues(policy).Inc()
}

// SetLogHead records the newest log sequence number.
func (m *Metrics) SetLogHead(seq int64) {
	if m == nil {
		return
	}
	m.logHead.Set(float64(seq))
}

// EntryReplayed counts one entry applied by recovery.
func (m *Metrics) EntryReplayed() {
	if m == nil {
		return
	}
	m.replayedEntries.Inc()
}

// EventDropped counts one undelivered event.
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

// WriteTextfile writes every metric in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
