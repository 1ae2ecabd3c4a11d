package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// Error は認証基盤が返したエラーレスポンス。
type Error struct {
	Status  int
	Code    string
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("platform error %d: %s", e.Status, e.Message)
}

// errorResponse は新旧両方のエラー形式を受ける。
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func parseError(status int, body []byte) *Error {
	e := &Error{Status: status}

	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}

	e.Code = resp.ErrorCode
	if e.Code == "" {
		e.Code = resp.Error
	}
	for _, m := range []string{resp.Msg, resp.ErrorDescription, resp.Message, resp.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// statusErrorPattern はauth-goがHTTPエラーを包む形式（"response status code 400: {...}"）に一致する。
var statusErrorPattern = regexp.MustCompile(`(?s)status code (\d{3})(?::\s?(.*))?$`)

// normalizeError はauth-goのエラーを*Errorに揃える。
// ステータスを含まないエラーは通信障害として包んで返す。
func normalizeError(op string, err error) error {
	m := statusErrorPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	status, _ := strconv.Atoi(m[1])
	return parseError(status, []byte(m[2]))
}

// IsTransient は一時的な障害（ネットワーク、タイムアウト、5xx、429）かどうかを判定する。
// 認証基盤が明示的に拒否した4xxはfalseを返す。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Status >= 500 || perr.Status == http.StatusTooManyRequests
	}
	return true
}

// IsTimeout はタイムアウトによる失敗かどうかを判定する。
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// IsEmailNotConfirmed はメール未確認によるログイン拒否かどうかを判定する。
func IsEmailNotConfirmed(err error) bool {
	var perr *Error
	if !errors.As(err, &perr) {
		return false
	}
	return perr.Code == "email_not_confirmed" || strings.Contains(perr.Message, "Email not confirmed")
}

// UserMessage はユーザーに表示してよいエラーメッセージを返す。
// 一時的な障害の詳細は表示しない。
func UserMessage(err error) string {
	var perr *Error
	if errors.As(err, &perr) && !IsTransient(err) {
		return perr.Message
	}
	return "An error occurred"
}
