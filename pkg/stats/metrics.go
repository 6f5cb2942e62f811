// Package stats provides Prometheus metrics for the tool-call parser service.
package stats

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request metrics
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolparser_requests_total",
			Help: "Total number of requests received",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolparser_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	requestPayloadSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolparser_request_payload_bytes",
			Help:    "Request payload size in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		},
		[]string{"method", "path"},
	)

	responsePayloadSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolparser_response_payload_bytes",
			Help:    "Response payload size in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		},
		[]string{"method", "path", "status"},
	)

	// Parse metrics
	parsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolparser_parses_total",
			Help: "Total number of batch parses",
		},
		[]string{"engine", "result"},
	)

	parseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolparser_parse_duration_seconds",
			Help:    "Batch parse duration in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"engine"},
	)

	callsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolparser_calls_extracted_total",
			Help: "Total number of tool calls extracted",
		},
		[]string{"engine"},
	)

	// Streaming metrics
	chunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "toolparser_stream_chunks_total",
			Help: "Total number of incremental parse steps",
		},
	)

	streamedCalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "toolparser_stream_calls_released_total",
			Help: "Total number of tool calls released by incremental parsers",
		},
	)

	streamBuffered = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "toolparser_stream_buffered_bytes",
			Help:    "Bytes retained by an incremental parser after a release",
			Buckets: []float64{64, 256, 1024, 4096, 16384, 65536, 262144},
		},
	)

	// Session metrics
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "toolparser_active_sessions",
			Help: "Current number of streaming sessions",
		},
	)

	sessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "toolparser_sessions_evicted_total",
			Help: "Total number of streaming sessions evicted from the session store",
		},
	)
)

// MetricsRecorder handles recording metrics. It satisfies
// pythonic.Observer so parsers can report to it directly.
type MetricsRecorder struct {
	mu               sync.RWMutex
	lastActivityTime time.Time
}

// NewMetricsRecorder creates a new metrics recorder
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{lastActivityTime: time.Now()}
}

// RecordRequest records a request with its metrics
func (mr *MetricsRecorder) RecordRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	statusStr := strconv.Itoa(status)

	requestsTotal.WithLabelValues(method, path, statusStr).Inc()
	requestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())

	if requestSize > 0 {
		requestPayloadSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		responsePayloadSize.WithLabelValues(method, path, statusStr).Observe(float64(responseSize))
	}
	mr.UpdateActivity()
}

// ObserveParse records one batch parse
func (mr *MetricsRecorder) ObserveParse(engine string, calls int, fallback bool, duration time.Duration) {
	result := "strict"
	switch {
	case fallback:
		result = "fallback"
	case calls == 0:
		result = "empty"
	}

	parsesTotal.WithLabelValues(engine, result).Inc()
	parseDuration.WithLabelValues(engine).Observe(duration.Seconds())
	if calls > 0 {
		callsExtracted.WithLabelValues(engine).Add(float64(calls))
	}
}

// ObserveChunk records calls released by an incremental parser
func (mr *MetricsRecorder) ObserveChunk(released, buffered int) {
	chunksTotal.Inc()
	streamedCalls.Add(float64(released))
	streamBuffered.Observe(float64(buffered))
}

// SessionOpened increments the active sessions gauge
func (mr *MetricsRecorder) SessionOpened() {
	activeSessions.Inc()
}

// SessionClosed decrements the active sessions gauge. Evicted sessions are
// also counted separately.
func (mr *MetricsRecorder) SessionClosed(evicted bool) {
	activeSessions.Dec()
	if evicted {
		sessionsEvicted.Inc()
	}
}

// UpdateActivity updates the last activity time
func (mr *MetricsRecorder) UpdateActivity() {
	mr.mu.Lock()
	mr.lastActivityTime = time.Now()
	mr.mu.Unlock()
}

// LastActivity returns the time of the last recorded request
func (mr *MetricsRecorder) LastActivity() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.lastActivityTime
}
