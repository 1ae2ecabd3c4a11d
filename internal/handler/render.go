package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/vidshare/internal/auth"
	"github.com/hitoshi/vidshare/internal/middleware"
	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/security"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// ページテンプレート名
const (
	pageHome          = "home"
	pageSearch        = "search"
	pageWatch         = "watch"
	pageChannel       = "channel"
	pageHistory       = "history"
	pageSubscriptions = "subscriptions"
	pageLibrary       = "library"
	pageUpload        = "upload"
	pageProfile       = "profile"
	pageSignIn        = "signin"
	pageSignUp        = "signup"
	pageVerifyEmail   = "verify_email"
	pageConfigError   = "config_error"
	pageDebug         = "debug"
	pageError         = "error"
)

var pageNames = []string{
	pageHome, pageSearch, pageWatch, pageChannel, pageHistory, pageSubscriptions,
	pageLibrary, pageUpload, pageProfile, pageSignIn, pageSignUp, pageVerifyEmail,
	pageConfigError, pageDebug, pageError,
}

// pageData はレイアウトと各ページのテンプレートに渡すデータ。
type pageData struct {
	Title     string
	Query     string
	Session   *model.Session
	CSRFToken string
	Data      any
}

// Renderer は埋め込みテンプレートからページを描画する。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer はレイアウトと全ページのテンプレートを解析する。
// 説明文と自己紹介は sanitizer を通して描画する。
func NewRenderer(sanitizer security.ContentSanitizer) (*Renderer, error) {
	funcs := template.FuncMap{
		"richText": sanitizer.RichText,
		"date":     formatDate,
		"views":    formatViews,
		"duration": formatDuration,
		"bytes":    formatBytes,
	}

	base, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.Must(base.Clone()).ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages}, nil
}

// render はページを描画する。テンプレートの実行はバッファに対して行い、
// 失敗した場合は途中までのHTMLを送らずに500を返す。
func (rd *Renderer) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	t, ok := rd.pages[page]
	if !ok {
		slog.Error("unknown page template", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data.Session = auth.SessionFromContext(r.Context())
	data.CSRFToken = middleware.CSRFTokenFromContext(r.Context())

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// renderError はエラーページを描画する。
func (rd *Renderer) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	rd.render(w, r, status, pageError, pageData{Title: http.StatusText(status), Data: message})
}

// staticHandler は埋め込み静的ファイルを /static/ 配下で配信する。
func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

func formatViews(n int64) string {
	switch {
	case n == 1:
		return "1 view"
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM views", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK views", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d views", n)
	}
}

func formatDuration(seconds int) string {
	if seconds >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%d MiB", n>>20)
	case n >= 1<<10:
		return fmt.Sprintf("%d KiB", n>>10)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
