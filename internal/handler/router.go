package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/vidshare/internal/auth"
	"github.com/hitoshi/vidshare/internal/middleware"
	"github.com/hitoshi/vidshare/internal/model"
)

// VideoServiceInterface は動画サービスの全操作。*video.Service が満たす。
type VideoServiceInterface interface {
	VideoPageServiceInterface
	VideoUploadServiceInterface
	VideoActionServiceInterface
}

// UserServiceInterface はチャンネル・購読・プロフィールの全操作。*user.Service が満たす。
type UserServiceInterface interface {
	ChannelServiceInterface
	SubscriptionServiceInterface
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 共通ミドルウェア
	Logger          *slog.Logger
	Debug           bool
	SecurityHeaders middleware.SecurityHeadersConfig
	StatusRecorder  middleware.StatusRecorder
	RateLimiter     *middleware.RateLimiter
	CSRF            middleware.CSRFConfig

	// セッションとルートガード
	SessionResolver middleware.SessionResolver
	GuardRecorder   middleware.GuardRecorder
	Cookies         auth.CookieConfig
	BaseURL         string
	// ConfigCheck は認証基盤の接続情報が揃っているかを検証する。
	ConfigCheck func() error
	// Settings はデバッグページに表示する設定の有無を返す。
	Settings func() []Setting

	CORSAllowedOrigins []string

	// ページ
	Renderer *Renderer

	// 認証
	AuthService      AuthServiceInterface
	AuthCompleter    AuthCompleter
	CallbackRecorder CallbackRecorder

	// ドメインサービス
	VideoService VideoServiceInterface
	UserService  UserServiceInterface

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	全体:   RealIP → RequestID → Logging → Recovery → SecurityHeaders → StatusMetrics
//	/api:   CORS → Session → RateLimit(General) → [RequireSession] → CSRF
//	ページ: Guard → CSRF （認証フォームのPOSTにはRateLimit(Auth)を追加）
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Debug))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.SecurityHeaders))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewStatusMetricsMiddleware(deps.StatusRecorder))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthCompleter, deps.CallbackRecorder, deps.Renderer, AuthHandlerConfig{
		BaseURL: deps.BaseURL,
		Cookies: deps.Cookies,
	})
	pageHandler := NewPageHandler(deps.VideoService, deps.UserService, deps.Renderer, deps.BaseURL)
	uploadHandler := NewUploadHandler(deps.VideoService, deps.Renderer)
	apiHandler := NewAPIHandler(deps.VideoService, deps.UserService)
	systemHandler := NewSystemHandler(deps.ConfigCheck, deps.Settings, deps.HealthChecker, deps.Renderer)

	// --- ミドルウェアチェーンの外に置くルート ---
	r.Get("/health", systemHandler.Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Handle("/static/*", staticHandler())
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// --- JSON API ---
	// 独自に認可する: セッションが無ければ401、状態変更にはCSRFトークンが必要
	apiCSRF := deps.CSRF
	apiCSRF.MaxFormSize = maxJSONBodySize
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver, deps.Cookies))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

		// 再生回数は未ログインでも数える
		r.With(middleware.NewCSRFMiddleware(apiCSRF)).Post("/videos/{id}/view", apiHandler.RecordView)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRequireSessionMiddleware())
			r.Use(middleware.NewCSRFMiddleware(apiCSRF))

			r.Route("/videos/{id}", func(r chi.Router) {
				r.Put("/watch-duration", apiHandler.UpdateWatchDuration)
				r.Put("/like", apiHandler.SetVideoLike)
				r.Put("/watch-later", apiHandler.SetWatchLater)
				r.Post("/comments", apiHandler.AddComment)
			})
			r.Put("/comments/{id}/like", apiHandler.SetCommentLike)
			r.Put("/channels/{id}/subscription", apiHandler.SetSubscription)
		})
	})

	// --- ページ ---
	// ミドルウェアスタック: Guard → CSRF
	pageMiddleware := chi.Chain(
		middleware.NewGuardMiddleware(middleware.GuardConfig{
			BaseURL:     deps.BaseURL,
			ConfigCheck: deps.ConfigCheck,
			Cookies:     deps.Cookies,
		}, deps.SessionResolver, deps.GuardRecorder),
		middleware.NewCSRFMiddleware(deps.CSRF),
	)

	r.Group(func(r chi.Router) {
		r.Use(pageMiddleware...)

		// 認証
		authLimit := deps.RateLimiter.AuthMiddleware()
		for _, path := range []string{"/auth/signin", "/login"} {
			r.Get(path, authHandler.SignInForm)
			r.With(authLimit).Post(path, authHandler.SignIn)
		}
		for _, path := range []string{"/auth/signup", "/register"} {
			r.Get(path, authHandler.SignUpForm)
			r.With(authLimit).Post(path, authHandler.SignUp)
		}
		r.With(authLimit).Post("/auth/resend", authHandler.Resend)
		r.Post("/auth/signout", authHandler.SignOut)
		r.Get("/auth/callback", authHandler.Callback)
		r.Get("/verify-email", authHandler.VerifyEmail)

		// 閲覧
		r.Get("/", pageHandler.Home)
		r.Get("/explore", pageHandler.Explore)
		r.Get("/search", pageHandler.Search)
		r.Get("/video/{id}", pageHandler.Watch)
		r.Get("/channel/me", pageHandler.MyChannel)
		r.Get("/channel/{id}", pageHandler.Channel)

		// ログイン必須（ルートガードの保護対象）
		r.Get("/upload", uploadHandler.Form)
		r.Post("/upload", uploadHandler.Submit)
		r.Get("/your-videos", pageHandler.YourVideos)
		r.Get("/history", pageHandler.History)
		r.Get("/liked-videos", pageHandler.LikedVideos)
		r.Get("/watch-later", pageHandler.WatchLater)
		r.Get("/subscriptions", pageHandler.Subscriptions)
		r.Get("/library", pageHandler.Library)
		r.Get("/profile", pageHandler.ProfileForm)
		r.Post("/profile", pageHandler.UpdateProfile)

		// 設定
		r.Get(middleware.ConfigErrorPath, systemHandler.ConfigError)
		r.Get(middleware.DebugPath, systemHandler.Debug)
	})

	pageNotFound := pageMiddleware.HandlerFunc(pageHandler.NotFound)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError(r.URL.Path))
			return
		}
		pageNotFound.ServeHTTP(w, r)
	})

	return r
}
