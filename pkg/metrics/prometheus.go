// Package metrics provides Prometheus metrics for the points ledger service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Manager owns all Prometheus collectors for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Recorder metrics
	eventsRecorded prometheus.Counter
	eventsSkipped  *prometheus.CounterVec
	fanoutTargets  *prometheus.CounterVec

	// Decay metrics
	decayCompensations prometheus.Counter
	ledgersRecomputed  prometheus.Counter

	// Snapshot metrics
	snapshotsWritten prometheus.Counter

	// Ballot metrics
	ballotRacesProcessed prometheus.Counter
	ballotAwards         prometheus.Counter

	// Notification metrics
	publishFailures prometheus.Counter

	// Job lifecycle metrics
	jobRuns     *prometheus.CounterVec
	jobSkips    *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	// State gauges
	ledgerCount prometheus.Gauge
	jobInFlight *prometheus.GaugeVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global manager backed by a custom registry so default Go collectors do
// not leak into scrape output.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager()
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tally",
		subsystem:        "ledger",
		histogramBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	factory := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help}
	}

	m.eventsRecorded = prometheus.NewCounter(factory("events_recorded_total", "Point events committed to the store."))
	m.eventsSkipped = prometheus.NewCounterVec(factory("events_skipped_total", "Point recordings skipped as benign no-ops."), []string{"reason"})
	m.fanoutTargets = prometheus.NewCounterVec(factory("fanout_targets_total", "Reel engagement fan-out targets by outcome."), []string{"outcome"})
	m.decayCompensations = prometheus.NewCounter(factory("decay_compensations_total", "Compensating DECAY events written by the sweeper."))
	m.ledgersRecomputed = prometheus.NewCounter(factory("ledgers_recomputed_total", "Exact ledger recomputations after decay sweeps."))
	m.snapshotsWritten = prometheus.NewCounter(factory("snapshots_written_total", "Daily point snapshots upserted."))
	m.ballotRacesProcessed = prometheus.NewCounter(factory("ballot_races_processed_total", "Ballot races tabulated and marked processed."))
	m.ballotAwards = prometheus.NewCounter(factory("ballot_awards_total", "Point awards realized from ballot tabulation."))
	m.publishFailures = prometheus.NewCounter(factory("publish_failures_total", "Best-effort score change publishes that failed."))
	m.jobRuns = prometheus.NewCounterVec(factory("job_runs_total", "Scheduled job runs by outcome."), []string{"job", "outcome"})
	m.jobSkips = prometheus.NewCounterVec(factory("job_skips_total", "Job ticks dropped by the single-flight guard."), []string{"job"})

	m.jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "job_duration_seconds",
		Help:      "Duration of scheduled job runs.",
		Buckets:   m.histogramBuckets,
	}, []string{"job"})

	m.ledgerCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledgers",
		Help:      "Number of ledgers tracked in the store.",
	})

	m.jobInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "job_in_flight",
		Help:      "Whether a scheduled job run is currently in flight.",
	}, []string{"job"})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.registry.MustRegister(
		m.eventsRecorded, m.eventsSkipped, m.fanoutTargets,
		m.decayCompensations, m.ledgersRecomputed,
		m.snapshotsWritten,
		m.ballotRacesProcessed, m.ballotAwards,
		m.publishFailures,
		m.jobRuns, m.jobSkips, m.jobDuration,
		m.ledgerCount, m.jobInFlight,
		m.httpRequests, m.httpRequestDuration,
	)

	return m
}

// Registry exposes the custom registry for the /metrics handler.
func Registry() *prometheus.Registry {
	return globalManager.registry
}

// Recorder metrics.

// RecordEventRecorded counts one committed point event.
func RecordEventRecorded() { globalManager.eventsRecorded.Inc() }

// RecordEventSkipped counts a benign no-op (self_action, not_competitor,
// unknown_action).
func RecordEventSkipped(reason string) { globalManager.eventsSkipped.WithLabelValues(reason).Inc() }

// RecordFanoutTarget counts one reel engagement fan-out target outcome
// (recorded, skipped or error).
func RecordFanoutTarget(outcome string) { globalManager.fanoutTargets.WithLabelValues(outcome).Inc() }

// Decay metrics.

// RecordDecayCompensations counts compensating events written in a batch.
func RecordDecayCompensations(n int) { globalManager.decayCompensations.Add(float64(n)) }

// RecordLedgerRecomputed counts one exact ledger recomputation.
func RecordLedgerRecomputed() { globalManager.ledgersRecomputed.Inc() }

// Snapshot metrics.

// RecordSnapshotsWritten counts snapshot upserts.
func RecordSnapshotsWritten(n int) { globalManager.snapshotsWritten.Add(float64(n)) }

// Ballot metrics.

// RecordBallotRaceProcessed counts one successfully tabulated race.
func RecordBallotRaceProcessed() { globalManager.ballotRacesProcessed.Inc() }

// RecordBallotAwards counts awards realized from one tabulation.
func RecordBallotAwards(n int) { globalManager.ballotAwards.Add(float64(n)) }

// Notification metrics.

// RecordPublishFailure counts a swallowed sink publish failure.
func RecordPublishFailure() { globalManager.publishFailures.Inc() }

// Job metrics.

// RecordJobRun counts one finished job run with outcome "ok" or "error".
func RecordJobRun(job string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	globalManager.jobRuns.WithLabelValues(job, outcome).Inc()
}

// RecordJobSkip counts a tick dropped because a run was still in flight.
func RecordJobSkip(job string) { globalManager.jobSkips.WithLabelValues(job).Inc() }

// ObserveJobDuration records the duration of one job run.
func ObserveJobDuration(job string, seconds float64) {
	globalManager.jobDuration.WithLabelValues(job).Observe(seconds)
}

// State gauges.

// UpdateLedgerCount sets the tracked ledger gauge.
func UpdateLedgerCount(n int) { globalManager.ledgerCount.Set(float64(n)) }

// SetJobInFlight marks whether a job run is currently executing.
func SetJobInFlight(job string, inFlight bool) {
	v := 0.0
	if inFlight {
		v = 1.0
	}
	globalManager.jobInFlight.WithLabelValues(job).Set(v)
}

// HTTP metrics.

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// ObserveHTTPRequestDuration records request latency in seconds.
func ObserveHTTPRequestDuration(endpoint, method, status string, seconds float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(seconds)
}
