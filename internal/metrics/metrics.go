// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// auth.Recorder、platform.Observer、ミドルウェアの記録先として共有される。
type Collector struct {
	sessionResolutions *prometheus.CounterVec
	sessionEvents      *prometheus.CounterVec
	authCallbacks      *prometheus.CounterVec
	guardRedirects     *prometheus.CounterVec
	platformLatency    *prometheus.HistogramVec
	platformErrors     *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	mutations          *prometheus.CounterVec
	uploads            *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_session_resolutions_total",
			Help: "セッション解決の結果別件数",
		}, []string{"result"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_session_events_total",
			Help: "サインイン・サインアウト・トークン更新の件数",
		}, []string{"event"}),
		authCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_auth_callbacks_total",
			Help: "認証コールバックの結果別件数",
		}, []string{"outcome"}),
		guardRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_guard_redirects_total",
			Help: "ルートガードによるリダイレクトの件数",
		}, []string{"rule"}),
		platformLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidshare_platform_request_duration_seconds",
			Help:    "認証基盤へのリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		platformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_platform_request_errors_total",
			Help: "認証基盤へのリクエスト失敗の件数",
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_mutations_total",
			Help: "高評価・購読などの操作の結果別件数",
		}, []string{"kind", "phase"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_uploads_total",
			Help: "ストレージへのアップロードの結果別件数",
		}, []string{"bucket", "outcome"}),
	}

	reg.MustRegister(
		c.sessionResolutions,
		c.sessionEvents,
		c.authCallbacks,
		c.guardRedirects,
		c.platformLatency,
		c.platformErrors,
		c.httpStatus,
		c.mutations,
		c.uploads,
	)

	return c
}

// RecordSessionResolution はセッション解決の結果を記録する。
func (c *Collector) RecordSessionResolution(result string) {
	c.sessionResolutions.WithLabelValues(result).Inc()
}

// RecordSessionEvent はセッションイベントを記録する。
func (c *Collector) RecordSessionEvent(event string) {
	c.sessionEvents.WithLabelValues(event).Inc()
}

// RecordAuthCallback は認証コールバックの結果を記録する。
func (c *Collector) RecordAuthCallback(outcome string) {
	c.authCallbacks.WithLabelValues(outcome).Inc()
}

// RecordGuardRedirect はルートガードのリダイレクトを記録する。
func (c *Collector) RecordGuardRedirect(rule string) {
	c.guardRedirects.WithLabelValues(rule).Inc()
}

// ObservePlatformRequest は認証基盤へのリクエストのレイテンシと失敗を記録する。
func (c *Collector) ObservePlatformRequest(op string, d time.Duration, err error) {
	c.platformLatency.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		c.platformErrors.WithLabelValues(op).Inc()
	}
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordMutation はトグル操作の確定段階を記録する。
func (c *Collector) RecordMutation(kind, phase string) {
	c.mutations.WithLabelValues(kind, phase).Inc()
}

// RecordUpload はアップロード結果を記録する。
func (c *Collector) RecordUpload(bucket, outcome string) {
	c.uploads.WithLabelValues(bucket, outcome).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
