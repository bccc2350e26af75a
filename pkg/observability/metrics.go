package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Classifier metrics
	classificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mindwell_classifications_total",
			Help: "Total number of emotion classifications by modality",
		},
		[]string{"modality", "status"},
	)

	classificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mindwell_classification_duration_seconds",
			Help:    "Emotion classification duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"modality"},
	)

	// Fusion metrics
	fusionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mindwell_fusions_total",
			Help: "Total number of fusion calls",
		},
		[]string{"outcome"},
	)

	// Session metrics
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mindwell_turns_total",
			Help: "Total number of chat turns by reply strategy",
		},
		[]string{"strategy"},
	)

	samplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mindwell_background_samples_total",
			Help: "Total number of background samples by outcome",
		},
		[]string{"status"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mindwell_active_sessions",
			Help: "Number of active monitoring sessions",
		},
	)

	// Generator metrics
	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mindwell_generation_duration_seconds",
			Help:    "Reply generation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	fallbackRepliesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mindwell_fallback_replies_total",
			Help: "Total number of rule-based fallback replies",
		},
	)

	// Risk metrics
	riskScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mindwell_risk_scores",
			Help:    "Distribution of computed risk scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// Storage metrics
	storageWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mindwell_storage_write_failures_total",
			Help: "Total number of tolerated storage write failures",
		},
		[]string{"op"},
	)

	initOnce sync.Once
)

// InitMetrics registers all Prometheus metrics.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			classificationsTotal,
			classificationDuration,
			fusionsTotal,
			turnsTotal,
			samplesTotal,
			activeSessions,
			generationDuration,
			fallbackRepliesTotal,
			riskScores,
			storageWriteFailures,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordClassification records one classification attempt.
func RecordClassification(modality string, ok bool, duration time.Duration) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	classificationsTotal.WithLabelValues(modality, status).Inc()
	classificationDuration.WithLabelValues(modality).Observe(duration.Seconds())
}

// RecordFusion records one fusion call.
func RecordFusion(noSignal bool) {
	outcome := "fused"
	if noSignal {
		outcome = "no_signal"
	}
	fusionsTotal.WithLabelValues(outcome).Inc()
}

// RecordTurn records one completed chat turn and the strategy that replied.
func RecordTurn(strategy string) {
	turnsTotal.WithLabelValues(strategy).Inc()
}

// RecordSample records one background sample outcome: "ok", "dropped" or
// "failed".
func RecordSample(status string) {
	samplesTotal.WithLabelValues(status).Inc()
}

// SetActiveSessions sets the active sessions gauge.
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

// RecordGeneration records one reply generation attempt.
func RecordGeneration(provider string, duration time.Duration) {
	generationDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordFallbackReply records one rule-based fallback reply.
func RecordFallbackReply() {
	fallbackRepliesTotal.Inc()
}

// ObserveRiskScore records a computed risk score.
func ObserveRiskScore(score float64) {
	riskScores.Observe(score)
}

// RecordStorageWriteFailure records a tolerated storage write failure.
func RecordStorageWriteFailure(op string) {
	storageWriteFailures.WithLabelValues(op).Inc()
}
