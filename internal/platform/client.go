// Package platform は認証基盤（GoTrue互換のREST API）へのクライアントを提供する。
// サインアップ、パスワードログイン、認可コード交換、トークン更新、ログアウト、確認メール再送を扱う。
// トークン発行・ユーザー取得・ログアウトはauth-goに委ね、エラー形式とタイムアウトをここで揃える。
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gotrue "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"
)

// defaultTimeout は1回の呼び出しに許す既定の時間。
const defaultTimeout = 5 * time.Second

// transportGrace はHTTPクライアント自体のタイムアウトに上乗せする猶予。
// 呼び出しごとの期限を先に満了させ、タイムアウトを常にcontext.DeadlineExceededとして返す。
const transportGrace = time.Second

// Observer はAPI呼び出しごとの所要時間を受け取る。
type Observer interface {
	ObservePlatformRequest(op string, duration time.Duration, err error)
}

// Config はクライアントの設定。
type Config struct {
	URL     string
	AnonKey string
	// Timeout は1回の呼び出しごとのタイムアウト。0の場合は5秒。
	Timeout    time.Duration
	HTTPClient *http.Client
	Observer   Observer
}

// Client は認証基盤のREST APIクライアント。
type Client struct {
	api        gotrue.Client
	baseURL    string
	anonKey    string
	timeout    time.Duration
	httpClient *http.Client
	observer   Observer
}

// NewClient はClientを生成する。
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := http.Client{}
	if cfg.HTTPClient != nil {
		httpClient = *cfg.HTTPClient
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = cfg.Timeout + transportGrace
	}

	baseURL := strings.TrimRight(cfg.URL, "/") + "/auth/v1"
	return &Client{
		api:        gotrue.New("", cfg.AnonKey).WithCustomAuthURL(baseURL).WithClient(httpClient),
		baseURL:    baseURL,
		anonKey:    cfg.AnonKey,
		timeout:    cfg.Timeout,
		httpClient: &httpClient,
		observer:   cfg.Observer,
	}
}

// SignInWithPassword はパスワードでログインしセッションを取得する。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return c.token(ctx, "sign_in", types.TokenRequest{
		GrantType: "password",
		Email:     email,
		Password:  password,
	})
}

// ExchangeCodeForSession は認可コードとPKCEベリファイアをセッションに交換する。
func (c *Client) ExchangeCodeForSession(ctx context.Context, code, codeVerifier string) (*Session, error) {
	return c.token(ctx, "exchange_code", types.TokenRequest{
		GrantType:    "pkce",
		Code:         code,
		CodeVerifier: codeVerifier,
	})
}

// RefreshSession はリフレッシュトークンで新しいセッションを取得する。
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	return c.token(ctx, "refresh", types.TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
	})
}

// GetUser はアクセストークンを検証し、対応するユーザーを取得する。
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	resp, err := call(ctx, c, "get_user", func(api gotrue.Client) (*types.UserResponse, error) {
		return api.WithToken(accessToken).GetUser()
	})
	if err != nil {
		return nil, err
	}
	var user userResponse
	if err := reencode(resp, &user); err != nil {
		return nil, fmt.Errorf("failed to parse get_user response: %w", err)
	}
	return user.toUser()
}

// SignOut はアクセストークンに紐づくセッションを失効させる。
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, err := call(ctx, c, "sign_out", func(api gotrue.Client) (struct{}, error) {
		return struct{}{}, api.WithToken(accessToken).Logout()
	})
	return err
}

// token は /token エンドポイントを呼び出しセッションを返す。
func (c *Client) token(ctx context.Context, op string, req types.TokenRequest) (*Session, error) {
	resp, err := call(ctx, c, op, func(api gotrue.Client) (*types.TokenResponse, error) {
		return api.Token(req)
	})
	if err != nil {
		return nil, err
	}
	var session sessionResponse
	if err := reencode(resp, &session); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", op, err)
	}
	return session.toSession()
}

// call はauth-goの呼び出しに呼び出しごとのタイムアウトを掛け、所要時間を記録する。
// auth-goはcontextを受け取らないため、期限が来た時点で結果を待たずに戻る。
// 残った呼び出しはHTTPクライアントのタイムアウトで終了する。
func call[T any](ctx context.Context, c *Client, op string, fn func(api gotrue.Client) (T, error)) (result T, err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObservePlatformRequest(op, time.Since(start), err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(c.api)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return result, normalizeError(op, out.err)
		}
		return out.value, nil
	case <-ctx.Done():
		return result, fmt.Errorf("%s request failed: %w", op, ctx.Err())
	}
}

// reencode はauth-goのレスポンスを境界検証用のレスポンス型に詰め替える。
func reencode(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// 以下はauth-goに対応する操作がないため直接呼び出す。
// サインアップは確認メールの戻り先（redirect_to）とPKCEチャレンジを、再送は /resend を必要とする。

// SignUpParams はサインアップの入力。
type SignUpParams struct {
	Email    string
	Password string
	Username string
	// EmailRedirectTo は確認メールのリンク先（/auth/callback）。
	EmailRedirectTo string
	// CodeChallenge はPKCEのS256チャレンジ。空の場合は暗黙フローになる。
	CodeChallenge string
}

// SignUpResult はサインアップの結果。
// メール確認が必要な場合 Session はnilになる。
type SignUpResult struct {
	User    *User
	Session *Session
}

type signUpRequest struct {
	Email               string            `json:"email"`
	Password            string            `json:"password"`
	Data                map[string]string `json:"data,omitempty"`
	CodeChallenge       string            `json:"code_challenge,omitempty"`
	CodeChallengeMethod string            `json:"code_challenge_method,omitempty"`
}

// signUpResponse は自動確認時のセッション形式と、確認待ち時のユーザー形式の両方を受ける。
type signUpResponse struct {
	sessionResponse
	userResponse
}

// SignUp はメールアドレスとパスワードでユーザーを登録する。
func (c *Client) SignUp(ctx context.Context, p SignUpParams) (*SignUpResult, error) {
	body := signUpRequest{
		Email:    p.Email,
		Password: p.Password,
	}
	if p.Username != "" {
		body.Data = map[string]string{"username": p.Username}
	}
	if p.CodeChallenge != "" {
		body.CodeChallenge = p.CodeChallenge
		body.CodeChallengeMethod = "s256"
	}

	query := url.Values{}
	if p.EmailRedirectTo != "" {
		query.Set("redirect_to", p.EmailRedirectTo)
	}

	var resp signUpResponse
	if err := c.do(ctx, "sign_up", http.MethodPost, "/signup", query, body, "", &resp); err != nil {
		return nil, err
	}

	if resp.AccessToken != "" {
		session, err := resp.sessionResponse.toSession()
		if err != nil {
			return nil, err
		}
		return &SignUpResult{User: &session.User, Session: session}, nil
	}

	user, err := resp.userResponse.toUser()
	if err != nil {
		return nil, err
	}
	return &SignUpResult{User: user}, nil
}

// Resend はサインアップ確認メールを再送する。
func (c *Client) Resend(ctx context.Context, email, emailRedirectTo string) error {
	query := url.Values{}
	if emailRedirectTo != "" {
		query.Set("redirect_to", emailRedirectTo)
	}
	body := map[string]string{"type": "signup", "email": email}
	return c.do(ctx, "resend", http.MethodPost, "/resend", query, body, "", nil)
}

// do はAPIを直接呼び出し、成功時はレスポンスをoutにデコードする。
// 呼び出しごとにタイムアウトを設定する。
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, bearer string, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObservePlatformRequest(op, time.Since(start), err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", op, err)
	}
	return nil
}
