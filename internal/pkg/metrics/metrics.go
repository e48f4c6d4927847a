package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 予約結果のラベル
const (
	BookingSuccess  = "success"
	BookingConflict = "conflict"
	BookingInvalid  = "invalid"
	BookingError    = "error"
)

// 履歴書き込みのラベル
const (
	HistoryPersisted = "persisted"
	HistorySkipped   = "skipped"
	HistoryFailed    = "failed"
	HistoryRetried   = "retried"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約の総数（status: success, conflict, invalid, error）
	BookingsTotal *prometheus.CounterVec

	// 予約履歴の書き込み数（status: persisted, skipped, failed, retried）
	HistoryWritesTotal *prometheus.CounterVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// 再送待ちの予約履歴の件数
	PendingHistoryEntries prometheus.Gauge
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "Total number of booking attempts",
			},
			[]string{"status"},
		),
		HistoryWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "history_writes_total",
				Help: "Total number of booking history writes",
			},
			[]string{"status"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		PendingHistoryEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pending_history_entries",
				Help: "Number of booking history entries waiting for retry",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsTotal,
		m.HistoryWritesTotal,
		m.DistributedLockDuration,
		m.PendingHistoryEntries,
	)

	return m
}

// ObserveBooking は予約結果を記録する（nil でも安全）
func (m *Metrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.BookingsTotal.WithLabelValues(status).Inc()
}

// ObserveHistoryWrite は履歴書き込み結果を記録する（nil でも安全）
func (m *Metrics) ObserveHistoryWrite(status string) {
	if m == nil {
		return
	}
	m.HistoryWritesTotal.WithLabelValues(status).Inc()
}

// ObserveLock は分散ロック操作の時間を記録する（nil でも安全）
func (m *Metrics) ObserveLock(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(seconds)
}

// SetPendingHistory は再送待ち件数を更新する（nil でも安全）
func (m *Metrics) SetPendingHistory(n int) {
	if m == nil {
		return
	}
	m.PendingHistoryEntries.Set(float64(n))
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
