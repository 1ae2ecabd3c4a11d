// Package handler はHTTPハンドラーとページの描画を提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/vidshare/internal/auth"
	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/platform"
)

// リダイレクト時にサインインページへ渡すメッセージ
const (
	msgAuthFailed         = "Authentication failed"
	msgSessionNotCreated  = "Session could not be established"
	msgProfileNotCreated  = "Profile could not be created"
	msgCheckEmail         = "Check your email to confirm your account"
	msgConfirmationResent = "Confirmation email sent"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, in auth.SignUpInput) (*auth.SignUpOutcome, error)
	SignOut(ctx context.Context, session *model.Session)
	ResendConfirmation(ctx context.Context, email, emailRedirectTo string) error
}

// AuthCompleter は交換コードからセッションを確立する。*auth.Completer が満たす。
type AuthCompleter interface {
	Complete(ctx context.Context, code, codeVerifier string) (*auth.Completion, error)
}

// CallbackRecorder はコールバックの結果を記録する。
type CallbackRecorder interface {
	RecordAuthCallback(outcome string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL string
	Cookies auth.CookieConfig
}

// AuthHandler はサインイン・サインアップ・コールバックのHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	completer AuthCompleter
	recorder  CallbackRecorder
	renderer  *Renderer
	config    AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。recorderはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, completer AuthCompleter, recorder CallbackRecorder, renderer *Renderer, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:   service,
		completer: completer,
		recorder:  recorder,
		renderer:  renderer,
		config:    config,
	}
}

// signInView はサインインフォームの表示内容。
type signInView struct {
	Error             string
	Message           string
	ReturnURL         string
	Email             string
	NeedsConfirmation bool
}

// signUpView はサインアップフォームの表示内容。
type signUpView struct {
	Error     string
	ReturnURL string
	Email     string
	Username  string
}

// SignInForm はサインインフォームを表示する。
// GET /auth/signin, GET /login
func (h *AuthHandler) SignInForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.renderer.render(w, r, http.StatusOK, pageSignIn, pageData{
		Title: "Sign in",
		Data: signInView{
			Error:     q.Get("error"),
			Message:   q.Get("message"),
			ReturnURL: returnURLParam(q.Get("returnUrl")),
		},
	})
}

// SignIn はパスワードでサインインする。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	view := signInView{
		Email:     r.PostFormValue("email"),
		ReturnURL: returnURLParam(r.PostFormValue("returnUrl")),
	}

	session, err := h.service.SignIn(r.Context(), view.Email, r.PostFormValue("password"))
	if err != nil {
		status := http.StatusUnauthorized
		switch {
		case errors.Is(err, auth.ErrMissingCredentials):
			status = http.StatusBadRequest
			view.Error = "Email and password are required."
		case platform.IsEmailNotConfirmed(err):
			status = http.StatusForbidden
			view.NeedsConfirmation = true
		case platform.IsTransient(err):
			status = http.StatusBadGateway
			view.Error = platform.UserMessage(err)
		default:
			view.Error = platform.UserMessage(err)
		}
		slog.Warn("sign in failed", slog.Int("status", status), slog.String("error", err.Error()))
		h.renderer.render(w, r, status, pageSignIn, pageData{Title: "Sign in", Data: view})
		return
	}

	h.config.Cookies.SetSession(w, session)
	http.Redirect(w, r, h.destination(r, view.ReturnURL), http.StatusSeeOther)
}

// SignUpForm はサインアップフォームを表示する。
// GET /auth/signup, GET /register
func (h *AuthHandler) SignUpForm(w http.ResponseWriter, r *http.Request) {
	h.renderer.render(w, r, http.StatusOK, pageSignUp, pageData{
		Title: "Sign up",
		Data:  signUpView{Error: r.URL.Query().Get("error"), ReturnURL: returnURLParam(r.URL.Query().Get("returnUrl"))},
	})
}

// SignUp はアカウントを作成する。
// メール確認が必要な場合は確認を促すメッセージ付きでサインインページへ戻す。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	view := signUpView{
		Email:     r.PostFormValue("email"),
		Username:  r.PostFormValue("username"),
		ReturnURL: returnURLParam(r.PostFormValue("returnUrl")),
	}
	dest := h.destination(r, view.ReturnURL)

	outcome, err := h.service.SignUp(r.Context(), auth.SignUpInput{
		Email:           view.Email,
		Password:        r.PostFormValue("password"),
		Username:        view.Username,
		EmailRedirectTo: h.callbackURL(dest),
	})
	if err != nil {
		status := http.StatusBadRequest
		view.Error = platform.UserMessage(err)
		if errors.Is(err, auth.ErrMissingCredentials) {
			view.Error = "Email and password are required."
		} else if platform.IsTransient(err) {
			status = http.StatusBadGateway
		}
		slog.Warn("sign up failed", slog.Int("status", status), slog.String("error", err.Error()))
		h.renderer.render(w, r, status, pageSignUp, pageData{Title: "Sign up", Data: view})
		return
	}

	if outcome.ConfirmationRequired {
		h.config.Cookies.SetCodeVerifier(w, outcome.CodeVerifier)
		http.Redirect(w, r, auth.SignInURL(h.config.BaseURL, url.Values{
			"message":   {msgCheckEmail},
			"returnUrl": {dest},
		}), http.StatusSeeOther)
		return
	}

	h.config.Cookies.SetSession(w, outcome.Session)
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// Resend は確認メールを再送する。
// POST /auth/resend
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	view := signInView{
		Email:     r.PostFormValue("email"),
		ReturnURL: returnURLParam(r.PostFormValue("returnUrl")),
	}

	if err := h.service.ResendConfirmation(r.Context(), view.Email, h.callbackURL(h.destination(r, view.ReturnURL))); err != nil {
		slog.Warn("resend confirmation failed", slog.String("error", err.Error()))
		view.Error = platform.UserMessage(err)
		view.NeedsConfirmation = true
		h.renderer.render(w, r, http.StatusBadGateway, pageSignIn, pageData{Title: "Sign in", Data: view})
		return
	}

	http.Redirect(w, r, auth.SignInURL(h.config.BaseURL, url.Values{
		"message":   {msgConfirmationResent},
		"returnUrl": {view.ReturnURL},
	}), http.StatusSeeOther)
}

// SignOut は認証基盤のセッションを失効させ、Cookieを削除する。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.service.SignOut(r.Context(), auth.SessionFromContext(r.Context()))
	h.config.Cookies.ClearSession(w)
	http.Redirect(w, r, h.config.BaseURL+"/", http.StatusSeeOther)
}

// Callback はメール確認リンク等から戻ってきた交換コードをセッションに変換する。
// GET /auth/callback?code=xxx&returnUrl=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		h.recordCallback(auth.CallbackNoCode)
		http.Redirect(w, r, h.destination(r, q.Get("returnUrl")), http.StatusTemporaryRedirect)
		return
	}

	completion, err := h.completer.Complete(r.Context(), code, auth.CookieValue(r, auth.CodeVerifierCookie))
	if err != nil {
		slog.Error("auth callback failed", slog.String("error", err.Error()))
		msg := msgAuthFailed
		switch {
		case errors.Is(err, auth.ErrSessionNotEstablished):
			msg = msgSessionNotCreated
		case errors.Is(err, auth.ErrProfileProvisionFailed):
			msg = msgProfileNotCreated
		}
		http.Redirect(w, r, auth.SignInURL(h.config.BaseURL, url.Values{"error": {msg}}), http.StatusTemporaryRedirect)
		return
	}

	h.config.Cookies.SetSession(w, completion.Session)
	h.config.Cookies.ClearCodeVerifier(w)
	http.Redirect(w, r, h.destination(r, q.Get("returnUrl")), http.StatusTemporaryRedirect)
}

// VerifyEmail はメール確認の案内ページを表示する。
// GET /verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	h.renderer.render(w, r, http.StatusOK, pageVerifyEmail, pageData{Title: "Verify your email"})
}

// destination は認証後の戻り先を決める。
// 明示的な returnUrl、直前の戻り先マーカー、"/" の順に採用し、サイト内パスに限定する。
func (h *AuthHandler) destination(r *http.Request, returnURL string) string {
	if returnURL == "" {
		returnURL = auth.PreviousReturnPath(r.Context())
	}
	return auth.SanitizeReturnURL(returnURL)
}

// callbackURL は確認メールのリンク先を組み立てる。
func (h *AuthHandler) callbackURL(returnURL string) string {
	return h.config.BaseURL + "/auth/callback?" + url.Values{"returnUrl": {returnURL}}.Encode()
}

func (h *AuthHandler) recordCallback(outcome string) {
	if h.recorder != nil {
		h.recorder.RecordAuthCallback(outcome)
	}
}

// returnURLParam は指定があればサイト内パスに限定し、無指定は空のまま返す。
func returnURLParam(raw string) string {
	if raw == "" {
		return ""
	}
	return auth.SanitizeReturnURL(raw)
}
