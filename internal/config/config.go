// Package config は環境変数からアプリケーション設定を解決する。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 既定のベースURL。明示設定もデプロイ先ホストも無い場合に使う。
const defaultBaseURL = "http://localhost:3000"

// ErrMissingConfig は認証基盤の接続情報が不足していることを示す。
var ErrMissingConfig = errors.New("missing platform configuration")

// MissingConfigError は未設定の環境変数名を保持する。
// 描画を中断させず、設定エラーページへ誘導するために使う。
type MissingConfigError struct {
	Names []string
}

// Error はerrorインターフェースを実装する。
func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("required environment variables are not set: %v", e.Names)
}

// Is は errors.Is(err, ErrMissingConfig) を成立させる。
func (e *MissingConfigError) Is(target error) bool {
	return target == ErrMissingConfig
}

// Credentials は認証基盤のURLと公開キー。
type Credentials struct {
	URL     string
	AnonKey string
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Platform
	credentials     Credentials
	credentialsErr  error
	JWTSecret       string
	PlatformTimeout time.Duration

	// Session
	SessionMaxAge           int
	ReturnPathMaxAge        int
	SessionRefreshLookahead time.Duration

	// Auth
	RequireEmailVerification bool

	// Storage
	StorageRegion          string
	StorageAccessKeyID     string
	StorageSecretAccessKey string
	UploadMaxSize          int64

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitAuth    int

	// Server
	ServerPort string
	BaseURL    string
	Debug      bool

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigins []string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに .env があれば先に読み込む（既存の環境変数は上書きしない）。
// DATABASE_URL が未設定の場合はエラーを返す。
// 認証基盤の接続情報の不足はエラーにせず、Credentials() で参照できるよう保持する。
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(os.Getenv)
}

// LoadFrom は任意の環境変数参照関数からConfigを読み込む。
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.credentials, cfg.credentialsErr = ResolveCredentials(getenv)
	cfg.BaseURL = ResolveBaseURL(getenv)

	cfg.JWTSecret = getenv("SUPABASE_JWT_SECRET")
	cfg.PlatformTimeout = getEnvDuration(getenv, "PLATFORM_TIMEOUT", 5*time.Second)
	cfg.SessionMaxAge = getEnvInt(getenv, "SESSION_MAX_AGE", 60*60*24*7)
	cfg.ReturnPathMaxAge = getEnvInt(getenv, "RETURN_PATH_MAX_AGE", 60*60)
	cfg.SessionRefreshLookahead = getEnvDuration(getenv, "SESSION_REFRESH_LOOKAHEAD", 10*time.Minute)
	cfg.RequireEmailVerification = getenv("REQUIRE_EMAIL_VERIFICATION") == "true"
	cfg.StorageRegion = getEnvString(getenv, "STORAGE_REGION", "us-east-1")
	cfg.StorageAccessKeyID = getenv("STORAGE_ACCESS_KEY_ID")
	cfg.StorageSecretAccessKey = getenv("STORAGE_SECRET_ACCESS_KEY")
	cfg.UploadMaxSize = getEnvInt64(getenv, "UPLOAD_MAX_SIZE", 512<<20)
	cfg.RateLimitGeneral = getEnvInt(getenv, "RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt(getenv, "RATE_LIMIT_AUTH", 10)
	cfg.ServerPort = getEnvString(getenv, "SERVER_PORT", "8080")
	cfg.Debug = getenv("APP_DEBUG") == "true"
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getenv("COOKIE_DOMAIN")
	cfg.CORSAllowedOrigins = getEnvList(getenv, "CORS_ALLOWED_ORIGINS", []string{cfg.BaseURL})

	return cfg, nil
}

// Credentials は認証基盤の接続情報を返す。
// 必須値が不足している場合は *MissingConfigError を返す。
func (c *Config) Credentials() (Credentials, error) {
	return c.credentials, c.credentialsErr
}

// StorageConfigured はオブジェクトストレージの認証情報が揃っているかを返す。
func (c *Config) StorageConfigured() bool {
	return c.credentialsErr == nil && c.StorageAccessKeyID != "" && c.StorageSecretAccessKey != ""
}

// ResolveBaseURL はアプリケーションの公開ベースURLを解決する。
// 優先順位: NEXT_PUBLIC_BASE_URL（BASE_URL） > VERCEL_URL（https） > http://localhost:3000
func ResolveBaseURL(getenv func(string) string) string {
	if v := firstNonEmpty(getenv, "NEXT_PUBLIC_BASE_URL", "BASE_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	if host := getenv("VERCEL_URL"); host != "" {
		return "https://" + strings.TrimRight(host, "/")
	}
	return defaultBaseURL
}

// ResolveCredentials は認証基盤のURLと公開キーを解決する。
// どちらかが欠けている場合は *MissingConfigError を返す。
func ResolveCredentials(getenv func(string) string) (Credentials, error) {
	creds := Credentials{
		URL:     strings.TrimRight(firstNonEmpty(getenv, "NEXT_PUBLIC_SUPABASE_URL", "SUPABASE_URL"), "/"),
		AnonKey: firstNonEmpty(getenv, "NEXT_PUBLIC_SUPABASE_ANON_KEY", "SUPABASE_ANON_KEY"),
	}

	var missing []string
	if creds.URL == "" {
		missing = append(missing, "NEXT_PUBLIC_SUPABASE_URL")
	}
	if creds.AnonKey == "" {
		missing = append(missing, "NEXT_PUBLIC_SUPABASE_ANON_KEY")
	}
	if len(missing) > 0 {
		return Credentials{}, &MissingConfigError{Names: missing}
	}
	return creds, nil
}

func firstNonEmpty(getenv func(string) string, keys ...string) string {
	for _, k := range keys {
		if v := getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvString(getenv func(string) string, key, defaultVal string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(getenv func(string) string, key string, defaultVal int) int {
	v := getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(getenv func(string) string, key string, defaultVal int64) int64 {
	v := getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(getenv func(string) string, key string, defaultVal time.Duration) time.Duration {
	v := getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの環境変数を読み込む。未設定または空要素のみの場合はデフォルト値を返す。
func getEnvList(getenv func(string) string, key string, defaultVal []string) []string {
	var out []string
	for _, v := range strings.Split(getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
