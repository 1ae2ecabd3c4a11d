// Package app はアプリケーションの初期化とサブコマンドの実行を提供する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/vidshare/internal/auth"
	"github.com/hitoshi/vidshare/internal/config"
	"github.com/hitoshi/vidshare/internal/database"
	"github.com/hitoshi/vidshare/internal/handler"
	"github.com/hitoshi/vidshare/internal/logger"
	"github.com/hitoshi/vidshare/internal/metrics"
	"github.com/hitoshi/vidshare/internal/middleware"
	"github.com/hitoshi/vidshare/internal/platform"
	"github.com/hitoshi/vidshare/internal/repository"
	"github.com/hitoshi/vidshare/internal/security"
	"github.com/hitoshi/vidshare/internal/storage"
	"github.com/hitoshi/vidshare/internal/user"
	"github.com/hitoshi/vidshare/internal/video"
)

// dbPingTimeout は起動時のDB疎通確認の制限時間。
const dbPingTimeout = 5 * time.Second

// storageEndpointPath は認証基盤のS3互換ストレージAPIのパス。
const storageEndpointPath = "/storage/v1/s3"

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数のConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetDebug(cfg.Debug)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		migrateArgs, err := ParseMigrateArgs(args[1:])
		if err != nil {
			return err
		}
		return runMigrate(cfg, migrateArgs)
	default:
		return runServe(cfg)
	}
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Ping(context.Background(), db, dbPingTimeout); err != nil {
		return err
	}
	slog.Info("database connection established")

	// 2. 依存関係のワイヤリング
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	router, cleanup, err := newRouter(cfg, db, reg)
	if err != nil {
		return err
	}
	defer cleanup()

	// 3. HTTPサーバーの起動
	// 動画アップロードに時間がかかるため書き込みタイムアウトは長めにとる
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("web server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down web server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// newRouter は設定とDB接続から全コンポーネントを組み立ててルーターを返す。
// 返されたcleanupはレートリミッターのクリーンアップを止める。
func newRouter(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) (http.Handler, func(), error) {
	collector := metrics.NewCollector(reg)
	sanitizer := security.NewSanitizer()

	renderer, err := handler.NewRenderer(sanitizer)
	if err != nil {
		return nil, nil, err
	}

	// 1. 認証基盤クライアント
	// 接続情報が不足していても起動し、ページはルートガードが設定エラーページへ誘導する
	creds, credsErr := cfg.Credentials()
	if credsErr != nil {
		slog.Warn("platform credentials are missing, pages will show the configuration error",
			slog.String("error", credsErr.Error()),
		)
	}
	platformClient := platform.NewClient(platform.Config{
		URL:      creds.URL,
		AnonKey:  creds.AnonKey,
		Timeout:  cfg.PlatformTimeout,
		Observer: collector,
	})

	// 2. リポジトリの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	videoRepo := repository.NewPostgresVideoRepo(db)
	subRepo := repository.NewPostgresSubscriptionRepo(db)

	// 3. 認証サービスの初期化
	if cfg.JWTSecret == "" {
		slog.Warn("SUPABASE_JWT_SECRET is not set, access token signatures are not verified locally")
	}
	provisioner := auth.NewProvisioner(profileRepo)
	resolver := auth.NewResolver(platformClient, auth.NewTokenDecoder(cfg.JWTSecret), auth.ResolverConfig{
		RefreshLookahead: cfg.SessionRefreshLookahead,
	}, collector)
	completer := auth.NewCompleter(platformClient, provisioner, collector)
	authService := auth.NewService(platformClient, provisioner, auth.ServiceConfig{
		RequireEmailVerification: cfg.RequireEmailVerification,
	}, collector)

	// 4. ストレージ（未設定の場合はアップロードを無効にする）
	var videoUploader video.Uploader
	var imageUploader user.Uploader
	if cfg.StorageConfigured() {
		client := storage.NewS3Client(storage.ClientConfig{
			Endpoint:        creds.URL + storageEndpointPath,
			Region:          cfg.StorageRegion,
			AccessKeyID:     cfg.StorageAccessKeyID,
			SecretAccessKey: cfg.StorageSecretAccessKey,
		})
		store := storage.NewStore(client, creds.URL, cfg.UploadMaxSize)
		videoUploader = store
		imageUploader = store
	} else {
		slog.Warn("file storage is not configured, uploads are disabled")
	}

	// 5. ドメインサービスの初期化
	videoService := video.NewService(video.Repositories{
		Videos:    videoRepo,
		Comments:  repository.NewPostgresCommentRepo(db),
		Likes:     repository.NewPostgresLikeRepo(db),
		Subs:      subRepo,
		History:   repository.NewPostgresWatchHistoryRepo(db),
		Playlists: repository.NewPostgresPlaylistRepo(db),
	}, videoUploader, sanitizer, collector)
	userService := user.NewService(profileRepo, subRepo, videoRepo, imageUploader, sanitizer, collector)

	// 6. ルーターの構築
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAuth))

	deps := &handler.RouterDeps{
		Logger: slog.Default(),
		Debug:  cfg.Debug,
		SecurityHeaders: middleware.SecurityHeadersConfig{
			HSTS:         cfg.CookieSecure,
			MediaOrigins: []string{creds.URL},
		},
		StatusRecorder: collector,
		RateLimiter:    limiter,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			// アップロードフォームは動画とサムネイルを含むため、CSRF検証時の解析上限もそれに合わせる
			MaxFormSize: 2*cfg.UploadMaxSize + 1<<20,
		},

		SessionResolver: resolver,
		GuardRecorder:   collector,
		Cookies: auth.CookieConfig{
			Domain:           cfg.CookieDomain,
			Secure:           cfg.CookieSecure,
			SessionMaxAge:    cfg.SessionMaxAge,
			ReturnPathMaxAge: cfg.ReturnPathMaxAge,
		},
		BaseURL: cfg.BaseURL,
		ConfigCheck: func() error {
			_, err := cfg.Credentials()
			return err
		},
		Settings: func() []handler.Setting {
			return settings(cfg)
		},
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,

		Renderer: renderer,

		AuthService:      authService,
		AuthCompleter:    completer,
		CallbackRecorder: collector,

		VideoService: videoService,
		UserService:  userService,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),
	}

	return handler.NewRouter(deps), limiter.Stop, nil
}

// settings はデバッグページに表示する設定の有無を返す。値そのものは含めない。
func settings(cfg *config.Config) []handler.Setting {
	creds, _ := cfg.Credentials()
	return []handler.Setting{
		{Name: "NEXT_PUBLIC_SUPABASE_URL", Present: creds.URL != ""},
		{Name: "NEXT_PUBLIC_SUPABASE_ANON_KEY", Present: creds.AnonKey != ""},
		{Name: "SUPABASE_JWT_SECRET", Present: cfg.JWTSecret != ""},
		{Name: "STORAGE_ACCESS_KEY_ID", Present: cfg.StorageAccessKeyID != ""},
		{Name: "STORAGE_SECRET_ACCESS_KEY", Present: cfg.StorageSecretAccessKey != ""},
		{Name: "DATABASE_URL", Present: cfg.DatabaseURL != ""},
	}
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, args MigrateArgs) error {
	slog.Info("running database migrations",
		slog.String("action", string(args.Action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch args.Action {
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL, args.Steps); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("current migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
		return nil
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
