// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordAccessDecision(granted bool, reason string)
	RecordCheckoutSuccess(itemCount int, amount float64)
	RecordCheckoutFailure(reason string)
	RecordSyncSuccess()
	RecordSyncFailure(reason string)
	RecordSyncHTTPStatus(statusCode int)
	RecordSyncLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	accessDecisions *prometheus.CounterVec
	checkoutSuccess prometheus.Counter
	checkoutItems   prometheus.Counter
	checkoutAmount  prometheus.Counter
	checkoutFail    *prometheus.CounterVec
	syncSuccess     prometheus.Counter
	syncFail        *prometheus.CounterVec
	syncHTTPStatus  *prometheus.CounterVec
	syncLatency     prometheus.Histogram
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		accessDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kidstore_access_decisions_total",
			Help: "アクセス判定結果の合計数",
		}, []string{"outcome", "reason"}),
		checkoutSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kidstore_checkout_success_total",
			Help: "決済成功の合計数",
		}),
		checkoutItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kidstore_checkout_items_total",
			Help: "決済されたかご明細の合計数",
		}),
		checkoutAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kidstore_checkout_amount_total",
			Help: "決済金額の合計",
		}),
		checkoutFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kidstore_checkout_fail_total",
			Help: "決済失敗の合計数",
		}, []string{"reason"}),
		syncSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kidstore_sync_success_total",
			Help: "リモートスナップショット同期成功の合計数",
		}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kidstore_sync_fail_total",
			Help: "リモートスナップショット同期失敗の合計数",
		}, []string{"reason"}),
		syncHTTPStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kidstore_sync_http_status_total",
			Help: "同期リクエストのHTTPステータスコード別の数",
		}, []string{"status_code"}),
		syncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kidstore_sync_latency_seconds",
			Help:    "リモートスナップショット取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.accessDecisions,
		c.checkoutSuccess,
		c.checkoutItems,
		c.checkoutAmount,
		c.checkoutFail,
		c.syncSuccess,
		c.syncFail,
		c.syncHTTPStatus,
		c.syncLatency,
	)

	return c
}

// RecordAccessDecision はアクセス判定の結果を記録する。
func (c *Collector) RecordAccessDecision(granted bool, reason string) {
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	c.accessDecisions.WithLabelValues(outcome, reason).Inc()
}

// RecordCheckoutSuccess は決済成功を記録する。
func (c *Collector) RecordCheckoutSuccess(itemCount int, amount float64) {
	c.checkoutSuccess.Inc()
	c.checkoutItems.Add(float64(itemCount))
	c.checkoutAmount.Add(amount)
}

// RecordCheckoutFailure は決済失敗を記録する。
func (c *Collector) RecordCheckoutFailure(reason string) {
	c.checkoutFail.WithLabelValues(reason).Inc()
}

// RecordSyncSuccess は同期成功を記録する。
func (c *Collector) RecordSyncSuccess() {
	c.syncSuccess.Inc()
}

// RecordSyncFailure は同期失敗を記録する。
func (c *Collector) RecordSyncFailure(reason string) {
	c.syncFail.WithLabelValues(reason).Inc()
}

// RecordSyncHTTPStatus は同期リクエストのHTTPステータスコードを記録する。
func (c *Collector) RecordSyncHTTPStatus(statusCode int) {
	c.syncHTTPStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSyncLatency はスナップショット取得のレイテンシを記録する。
func (c *Collector) RecordSyncLatency(duration time.Duration) {
	c.syncLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
