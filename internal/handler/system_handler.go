package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/vidshare/internal/config"
)

// healthCheckTimeout はヘルスチェック時のDB疎通確認の制限時間。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はDBの疎通を確認する。*sql.DB が満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// Setting はデバッグページに表示する設定項目。値そのものは保持しない。
type Setting struct {
	Name    string
	Present bool
}

// SystemHandler は設定エラー・デバッグ・ヘルスチェックのHTTPハンドラー。
type SystemHandler struct {
	configCheck func() error
	settings    func() []Setting
	health      HealthChecker
	renderer    *Renderer
}

// NewSystemHandler はSystemHandlerを生成する。
func NewSystemHandler(configCheck func() error, settings func() []Setting, health HealthChecker, renderer *Renderer) *SystemHandler {
	return &SystemHandler{
		configCheck: configCheck,
		settings:    settings,
		health:      health,
		renderer:    renderer,
	}
}

// ConfigError は認証基盤の接続情報が不足していることを表示する。
// GET /supabase-error
func (h *SystemHandler) ConfigError(w http.ResponseWriter, r *http.Request) {
	var missing []string
	if h.configCheck != nil {
		var cfgErr *config.MissingConfigError
		if err := h.configCheck(); errors.As(err, &cfgErr) {
			missing = cfgErr.Names
		}
	}
	h.renderer.render(w, r, http.StatusOK, pageConfigError, pageData{Title: "Configuration required", Data: missing})
}

// Debug は各設定の有無を表示する。
// GET /debug
func (h *SystemHandler) Debug(w http.ResponseWriter, r *http.Request) {
	var settings []Setting
	if h.settings != nil {
		settings = h.settings()
	}
	h.renderer.render(w, r, http.StatusOK, pageDebug, pageData{Title: "Debug", Data: settings})
}

// Health はDBの疎通を確認して結果を返す。
// GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.health.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
