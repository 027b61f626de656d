package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮件生命周期指标
	EmailsCreated   *prometheus.CounterVec // 按初始状态 draft/scheduled 区分
	EmailsSent      prometheus.Counter
	EmailsFailed    prometheus.Counter
	EmailsCancelled prometheus.Counter

	// 投递指标
	DispatchDuration prometheus.Histogram
	DispatchBatch    prometheus.Histogram // 每次轮询到期邮件的数量分布
	ProviderSends    *prometheus.CounterVec

	// 活动事件指标
	ActivitiesRecorded *prometheus.CounterVec

	// 用户指标
	UsersRegistered prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailboard_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailboard_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		EmailsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailboard_emails_created_total",
				Help: "Total number of emails created",
			},
			[]string{"status"},
		),

		EmailsSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailboard_emails_sent_total",
				Help: "Total number of emails sent",
			},
		),

		EmailsFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailboard_emails_failed_total",
				Help: "Total number of emails that failed to send",
			},
		),

		EmailsCancelled: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailboard_emails_cancelled_total",
				Help: "Total number of scheduled emails cancelled",
			},
		),

		DispatchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailboard_dispatch_duration_seconds",
				Help:    "Duration of a single email dispatch in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		DispatchBatch: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailboard_dispatch_batch_size",
				Help:    "Number of due emails picked up per poll",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),

		ProviderSends: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailboard_provider_sends_total",
				Help: "Per-recipient provider send attempts",
			},
			[]string{"provider", "result"},
		),

		ActivitiesRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailboard_activities_recorded_total",
				Help: "Total number of email activity events recorded",
			},
			[]string{"type"},
		),

		UsersRegistered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailboard_users_registered_total",
				Help: "Total number of registered users",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailboard_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailboard_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// Handler 返回 Prometheus 指标的 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
