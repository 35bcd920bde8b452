package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/checkin-sync-agent/internal/models"
)

// MetricsSnapshot is the aggregated view returned by the metrics summary endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	SyncPasses               uint64    `json:"syncPasses"`
	CheckinsSynced           uint64    `json:"checkinsSynced"`
	CheckinsFailed           uint64    `json:"checkinsFailed"`
	PendingCheckins          int64     `json:"pendingCheckins"`
	Connected                bool      `json:"connected"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
// All methods are safe on a nil receiver.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	submitDuration  *prometheus.HistogramVec
	syncPasses      *prometheus.CounterVec
	syncItems       *prometheus.CounterVec
	pendingGauge    prometheus.Gauge
	connectedGauge  prometheus.Gauge
	snapshotWrite   *prometheus.HistogramVec

	requestCount         uint64
	requestDurationTotal uint64
	syncPassCount        uint64
	syncedCount          uint64
	failedCount          uint64
	pendingCount         int64
	connected            int32
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

	submitDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkin_submit_duration_seconds",
		Help:    "Latency of check-in submissions to the backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	syncPasses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_passes_total",
		Help: "Sync passes run, by trigger",
	}, []string{"trigger"})

	syncItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_items_total",
		Help: "Pending entries processed by sync passes, by outcome",
	}, []string{"outcome"})

	pendingGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pending_checkins",
		Help: "Check-ins waiting in the pending queue",
	})

	connectedGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "network_connected",
		Help: "1 when the backend is considered reachable",
	})

	snapshotWrite := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snapshot_write_seconds",
		Help:    "Latency for persisting the state snapshot",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, submitDuration, syncPasses, syncItems, pendingGauge, connectedGauge, snapshotWrite, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		submitDuration:  submitDuration,
		syncPasses:      syncPasses,
		syncItems:       syncItems,
		pendingGauge:    pendingGauge,
		connectedGauge:  connectedGauge,
		snapshotWrite:   snapshotWrite,
	}
}

// Registry exposes the underlying registry for tests.
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

// ObserveSubmit records one backend submission.
func (m *MetricsService) ObserveSubmit(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.submitDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveSyncPass records the outcome of a finished sync pass.
func (m *MetricsService) ObserveSyncPass(result models.SyncResult) {
	if m == nil {
		return
	}
	m.syncPasses.WithLabelValues(string(result.Trigger)).Inc()
	for _, item := range result.Items {
		m.syncItems.WithLabelValues(string(item.Outcome)).Inc()
	}
	atomic.AddUint64(&m.syncPassCount, 1)
	atomic.AddUint64(&m.syncedCount, uint64(result.Synced))
	atomic.AddUint64(&m.failedCount, uint64(result.Failed))
	m.SetPending(result.Remaining)
}

// SetPending updates the pending queue gauge.
func (m *MetricsService) SetPending(n int) {
	if m == nil {
		return
	}
	m.pendingGauge.Set(float64(n))
	atomic.StoreInt64(&m.pendingCount, int64(n))
}

// SetConnected updates the connectivity gauge.
func (m *MetricsService) SetConnected(connected bool) {
	if m == nil {
		return
	}
	var v int32
	if connected {
		v = 1
	}
	m.connectedGauge.Set(float64(v))
	atomic.StoreInt32(&m.connected, v)
}

// ObserveSnapshotWrite tracks the duration of snapshot persistence.
func (m *MetricsService) ObserveSnapshotWrite(driver string, duration time.Duration) {
	if m == nil {
		return
	}
	m.snapshotWrite.WithLabelValues(driver).Observe(duration.Seconds())
}

// Snapshot returns aggregated metrics suitable for the summary endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		SyncPasses:               atomic.LoadUint64(&m.syncPassCount),
		CheckinsSynced:           atomic.LoadUint64(&m.syncedCount),
		CheckinsFailed:           atomic.LoadUint64(&m.failedCount),
		PendingCheckins:          atomic.LoadInt64(&m.pendingCount),
		Connected:                atomic.LoadInt32(&m.connected) == 1,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
