package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	JournalsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "journal_open",
		Help: "Number of journals currently open in this process",
	})

	RecordsAppended = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_records_appended_total",
		Help: "Total number of records durably appended",
	}, []string{"journal"})

	BytesAppended = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_bytes_appended_total",
		Help: "Total framed bytes written to segments",
	}, []string{"journal"})

	AppendFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_append_failures_total",
		Help: "Total number of single-record appends that failed",
	}, []string{"journal"})

	AppendLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "journal_append_latency_seconds",
		Help:    "Time spent writing a record or batch to its segment",
		Buckets: prometheus.DefBuckets,
	}, []string{"journal"})

	SegmentsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_segments_created_total",
		Help: "Total number of segment files created, by kind",
	}, []string{"journal", "kind"})

	OverflowSegments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_overflow_appends_total",
		Help: "Total number of records too large for a normal segment",
	}, []string{"journal"})

	BatchCommits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_batch_commits_total",
		Help: "Total number of batches committed",
	}, []string{"journal"})

	BatchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_batch_failures_total",
		Help: "Total number of batches rolled back",
	}, []string{"journal"})

	RecordsReplayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_records_replayed_total",
		Help: "Total number of records announced during replay",
	}, []string{"journal"})

	ReplayGaps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_replay_gaps_total",
		Help: "Total number of record id gaps found during replay",
	}, []string{"journal"})

	TornSegments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_torn_segments_total",
		Help: "Total number of segments whose scan stopped at a corrupt frame",
	}, []string{"journal"})

	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "journal_queue_depth",
		Help: "Operations waiting for the journal writer",
	}, []string{"journal"})
)

// ObserveAppend records a successful write of n records totalling bytes framed bytes.
func ObserveAppend(journal string, n int, bytes int, elapsed time.Duration) {
	RecordsAppended.WithLabelValues(journal).Add(float64(n))
	BytesAppended.WithLabelValues(journal).Add(float64(bytes))
	AppendLatency.WithLabelValues(journal).Observe(elapsed.Seconds())
}
