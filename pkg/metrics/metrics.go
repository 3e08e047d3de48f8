package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Indexing metrics
	TxAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chronodb_tx_applied_total",
			Help: "Total number of transactions applied to the index",
		},
	)

	TxFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chronodb_tx_failed_total",
			Help: "Total number of transactions recorded as failed (CAS mismatch)",
		},
	)

	DocsIndexedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chronodb_docs_indexed_total",
			Help: "Total number of documents written to the object store and secondary indexes",
		},
	)

	EvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chronodb_evictions_total",
			Help: "Total number of entities evicted",
		},
	)

	PendingTxs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chronodb_pending_txs",
			Help: "Number of consumed transactions waiting on referenced documents",
		},
	)

	ConsumeLoopDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chronodb_consume_loop_duration_seconds",
			Help:    "Time taken by one consume-and-index call",
			Buckets: prometheus.DefBuckets,
		},
	)

	CommitBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chronodb_commit_batch_duration_seconds",
			Help:    "Time taken to commit one KV write batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Log client metrics
	TxTopicOffset = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chronodb_tx_topic_offset",
			Help: "Last consumed tx-topic offset",
		},
	)

	DocTopicOffset = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chronodb_doc_topic_offset",
			Help: "Last consumed doc-topic offset",
		},
	)

	SubmitTxDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chronodb_submit_tx_duration_seconds",
			Help:    "Time taken for submit-tx to resolve",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Query metrics
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chronodb_query_duration_seconds",
			Help:    "Query duration in seconds by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(TxAppliedTotal)
	prometheus.MustRegister(TxFailedTotal)
	prometheus.MustRegister(DocsIndexedTotal)
	prometheus.MustRegister(EvictionsTotal)
	prometheus.MustRegister(PendingTxs)
	prometheus.MustRegister(ConsumeLoopDuration)
	prometheus.MustRegister(CommitBatchDuration)
	prometheus.MustRegister(TxTopicOffset)
	prometheus.MustRegister(DocTopicOffset)
	prometheus.MustRegister(SubmitTxDuration)
	prometheus.MustRegister(QueryDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
