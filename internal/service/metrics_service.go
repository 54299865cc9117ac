package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/booking-reminders/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for the status API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec
	sweepDuration   prometheus.Histogram
	sweepTotal      *prometheus.CounterVec
	sweepCandidates prometheus.Gauge
	candidateTotal  *prometheus.CounterVec
	dispatchTotal   *prometheus.CounterVec
	lastSweep       prometheus.Gauge

	sweepCount           uint64
	sweepSkippedCount    uint64
	sweepDurationTotal   uint64
	remindersSent        uint64
	dispatchFailures     uint64
	requestCount         uint64
	requestDurationTotal uint64
	dbQueryCount         uint64
	dbQueryDurationTotal uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reminder_sweep_duration_seconds",
		Help:    "Duration of reminder sweeps",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	sweepTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_sweeps_total",
		Help: "Reminder sweeps by result",
	}, []string{"result"})

	sweepCandidates := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reminder_sweep_candidates",
		Help: "Bookings fetched by the most recent sweep",
	})

	candidateTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_candidates_total",
		Help: "Processed reminder candidates by status and reason",
	}, []string{"status", "reason"})

	dispatchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_dispatch_total",
		Help: "Reminder dispatch attempts by recipient, channel and result",
	}, []string{"recipient", "channel", "result"})

	lastSweep := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reminder_last_sweep_timestamp_seconds",
		Help: "Unix time the most recent sweep finished",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, dbQueryDuration, sweepDuration, sweepTotal, sweepCandidates,
		candidateTotal, dispatchTotal, lastSweep, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		dbQueryDuration: dbQueryDuration,
		sweepDuration:   sweepDuration,
		sweepTotal:      sweepTotal,
		sweepCandidates: sweepCandidates,
		candidateTotal:  candidateTotal,
		dispatchTotal:   dispatchTotal,
		lastSweep:       lastSweep,
	}
}

// Registry exposes the private registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveDispatch counts one dispatcher call.
func (m *MetricsService) ObserveDispatch(recipient models.ReminderRecipient, channel models.ReminderChannel, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
		atomic.AddUint64(&m.dispatchFailures, 1)
	} else {
		atomic.AddUint64(&m.remindersSent, 1)
	}
	m.dispatchTotal.WithLabelValues(string(recipient), string(channel), result).Inc()
}

// ObserveSweep records the aggregate of one sweep.
func (m *MetricsService) ObserveSweep(result *models.SweepResult) {
	if m == nil || result == nil {
		return
	}
	atomic.AddUint64(&m.sweepCount, 1)

	label := "completed"
	switch {
	case result.SkippedReason != "":
		label = "skipped"
		atomic.AddUint64(&m.sweepSkippedCount, 1)
	case result.Error != "":
		label = "failed"
	}
	m.sweepTotal.WithLabelValues(label).Inc()

	duration := result.Duration()
	m.sweepDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.sweepDurationTotal, uint64(duration.Nanoseconds()))
	if !result.FinishedAt.IsZero() {
		m.lastSweep.Set(float64(result.FinishedAt.Unix()))
	}
	if label == "skipped" {
		return
	}

	m.sweepCandidates.Set(float64(result.Candidates))
	for _, outcome := range result.Outcomes {
		m.candidateTotal.WithLabelValues(string(outcome.Status), outcome.Reason).Inc()
	}
}

// Snapshot returns aggregated counters for the status endpoint.
func (m *MetricsService) Snapshot() models.ReminderMetricsSnapshot {
	if m == nil {
		return models.ReminderMetricsSnapshot{}
	}
	sweeps := atomic.LoadUint64(&m.sweepCount)
	sweepDuration := atomic.LoadUint64(&m.sweepDurationTotal)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)
	dbDuration := atomic.LoadUint64(&m.dbQueryDurationTotal)

	return models.ReminderMetricsSnapshot{
		SweepsTotal:      sweeps,
		SweepsSkipped:    atomic.LoadUint64(&m.sweepSkippedCount),
		RemindersSent:    atomic.LoadUint64(&m.remindersSent),
		DispatchFailures: atomic.LoadUint64(&m.dispatchFailures),
		AverageSweepMs:   averageMs(sweepDuration, sweeps),
		DBQueryCount:     dbCount,
		AverageDBQueryMs: averageMs(dbDuration, dbCount),
		RequestsTotal:    requests,
		AverageRequestMs: averageMs(reqDuration, requests),
		Goroutines:       runtime.NumGoroutine(),
		GeneratedAt:      time.Now().UTC(),
	}
}

func averageMs(totalNanos, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalNanos) / float64(count) / float64(time.Millisecond)
}
