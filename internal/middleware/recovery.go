package middleware

import (
	"html/template"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

var errorBoundaryTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Something went wrong</title></head>
<body>
<main class="error-boundary">
<h1>Something went wrong</h1>
<p>An unexpected error occurred while rendering this page.</p>
<p><a href="{{.Path}}">Reload the page</a> or <a href="/">go back home</a>.</p>
{{if .Stack}}<details open><summary>{{.Panic}}</summary><pre>{{.Stack}}</pre></details>{{end}}
</main>
</body>
</html>`))

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぐミドルウェアを生成する。
// ページには再読み込みリンク付きのエラーページを、/api 配下には統一エラーJSONを返す。
// showStack が true の場合のみエラーページにスタックトレースを表示する。
func NewRecoveryMiddleware(showStack bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				stack := string(debug.Stack())
				slog.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", stack),
				)

				if strings.HasPrefix(r.URL.Path, "/api/") {
					WriteInternalServerError(w)
					return
				}

				data := struct {
					Path  string
					Panic any
					Stack string
				}{Path: pathWithQuery(r)}
				if showStack {
					data.Panic = rec
					data.Stack = stack
				}
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				if err := errorBoundaryTemplate.Execute(w, data); err != nil {
					slog.Error("failed to render error page", slog.String("error", err.Error()))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
