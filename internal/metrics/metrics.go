// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 面談受付の結果ラベル
const (
	AcceptSuccess   = "success"
	AcceptNeedsAuth = "needs_auth"
	AcceptConflict  = "conflict"
	AcceptError     = "error"
)

// 通知メールの種別ラベル
const (
	NotifyInquiryReceived = "inquiry_received"
	NotifyClient          = "client_confirmation"
	NotifyConsultant      = "consultant_notification"
	NotifyPasswordReset   = "password_reset"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordInquirySubmitted()
	RecordAcceptOutcome(outcome string)
	RecordNotificationFailure(kind string)
	RecordAutosave(err error, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordCleanupPurged(kind string, count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	inquiries       prometheus.Counter
	acceptOutcome   *prometheus.CounterVec
	notifyFail      *prometheus.CounterVec
	autosaveTotal   *prometheus.CounterVec
	autosaveLatency prometheus.Histogram
	httpStatus      *prometheus.CounterVec
	cleanupPurged   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		inquiries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fnadesk_inquiries_total",
			Help: "受け付けた面談申請の合計数",
		}),
		acceptOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fnadesk_accept_total",
			Help: "面談受付処理の結果別の件数",
		}, []string{"outcome"}),
		notifyFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fnadesk_notification_fail_total",
			Help: "通知メール送信失敗の種別ごとの件数",
		}, []string{"kind"}),
		autosaveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fnadesk_autosave_total",
			Help: "FNAスナップショット自動保存の結果別の件数",
		}, []string{"result"}),
		autosaveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fnadesk_autosave_latency_seconds",
			Help:    "FNAスナップショット保存のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fnadesk_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		cleanupPurged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fnadesk_cleanup_purged_total",
			Help: "クリーンアップで削除したレコード数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.inquiries,
		c.acceptOutcome,
		c.notifyFail,
		c.autosaveTotal,
		c.autosaveLatency,
		c.httpStatus,
		c.cleanupPurged,
	)

	return c
}

// RecordInquirySubmitted は申請受付を記録する。
func (c *Collector) RecordInquirySubmitted() {
	c.inquiries.Inc()
}

// RecordAcceptOutcome は面談受付の結果を記録する。
func (c *Collector) RecordAcceptOutcome(outcome string) {
	c.acceptOutcome.WithLabelValues(outcome).Inc()
}

// RecordNotificationFailure は通知メールの送信失敗を記録する。
func (c *Collector) RecordNotificationFailure(kind string) {
	c.notifyFail.WithLabelValues(kind).Inc()
}

// RecordAutosave は自動保存の結果とレイテンシを記録する。
func (c *Collector) RecordAutosave(err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.autosaveTotal.WithLabelValues(result).Inc()
	c.autosaveLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCleanupPurged は削除件数を記録する。
func (c *Collector) RecordCleanupPurged(kind string, count int64) {
	c.cleanupPurged.WithLabelValues(kind).Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。メトリクス未設定時とテストで使用する。
type Nop struct{}

func (Nop) RecordInquirySubmitted()              {}
func (Nop) RecordAcceptOutcome(string)           {}
func (Nop) RecordNotificationFailure(string)     {}
func (Nop) RecordAutosave(error, time.Duration)  {}
func (Nop) RecordHTTPStatus(int)                 {}
func (Nop) RecordCleanupPurged(string, int64)    {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
