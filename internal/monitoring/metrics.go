// Package monitoring 暴露 Prometheus 监控指标。
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 重命名流程指标
	MetadataUpdates    prometheus.Counter
	DownloadsPrepared  prometheus.Counter
	DownloadsMatched   *prometheus.CounterVec
	DownloadsUnmatched prometheus.Counter
	RegistryPurged     prometheus.Counter
	ActiveSessions     prometheus.Gauge

	// 许可与试用指标
	LicensesActivated prometheus.Counter
	TrialBlocked      *prometheus.CounterVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attachrename_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "attachrename_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		MetadataUpdates: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "attachrename_metadata_updates_total",
				Help: "Total number of email metadata snapshots processed",
			},
		),

		DownloadsPrepared: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "attachrename_downloads_prepared_total",
				Help: "Total number of downloads registered for renaming",
			},
		),

		DownloadsMatched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attachrename_downloads_matched_total",
				Help: "Total number of downloads matched to a pending entry",
			},
			[]string{"method"},
		),

		DownloadsUnmatched: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "attachrename_downloads_unmatched_total",
				Help: "Total number of downloads that kept their original name",
			},
		),

		RegistryPurged: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "attachrename_registry_purged_total",
				Help: "Total number of pending downloads expired unclaimed",
			},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "attachrename_sessions_active",
				Help: "Number of active machine sessions",
			},
		),

		LicensesActivated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "attachrename_licenses_activated_total",
				Help: "Total number of license activations",
			},
		),

		TrialBlocked: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attachrename_trial_blocked_total",
				Help: "Total number of downloads blocked by trial limits",
			},
			[]string{"reason"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attachrename_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "attachrename_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordMetadataUpdate 记录一次元数据快照处理
func (m *Metrics) RecordMetadataUpdate() {
	m.MetadataUpdates.Inc()
}

// RecordDownloadPrepared 记录一次下载登记
func (m *Metrics) RecordDownloadPrepared() {
	m.DownloadsPrepared.Inc()
}

// RecordDownloadMatched 记录一次下载匹配命中
func (m *Metrics) RecordDownloadMatched(method string) {
	m.DownloadsMatched.WithLabelValues(method).Inc()
}

// RecordDownloadUnmatched 记录一次下载未命中
func (m *Metrics) RecordDownloadUnmatched() {
	m.DownloadsUnmatched.Inc()
}

// RecordRegistryPurged 记录后台清理掉的过期条目数
func (m *Metrics) RecordRegistryPurged(count int) {
	m.RegistryPurged.Add(float64(count))
}

// UpdateActiveSessions 更新活跃会话数
func (m *Metrics) UpdateActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordLicenseActivated 记录一次许可激活
func (m *Metrics) RecordLicenseActivated() {
	m.LicensesActivated.Inc()
}

// RecordTrialBlocked 记录一次被试用限制挡下的下载
func (m *Metrics) RecordTrialBlocked(reason string) {
	m.TrialBlocked.WithLabelValues(reason).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus 指标的 HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
