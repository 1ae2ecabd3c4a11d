// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, video, storage, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeVideoNotFound      = "VIDEO_NOT_FOUND"
	ErrCodeCommentNotFound    = "COMMENT_NOT_FOUND"
	ErrCodeChannelNotFound    = "CHANNEL_NOT_FOUND"
	ErrCodeInvalidComment     = "INVALID_COMMENT"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeSelfSubscription   = "SELF_SUBSCRIPTION"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeUploadTooLarge     = "UPLOAD_TOO_LARGE"
	ErrCodeUploadFailed       = "UPLOAD_FAILED"
	ErrCodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	ErrCodeMutationFailed     = "MUTATION_FAILED"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewVideoNotFoundError は動画未検出エラーを生成する。
func NewVideoNotFoundError(videoID string) *APIError {
	return &APIError{
		Code:     ErrCodeVideoNotFound,
		Message:  fmt.Sprintf("指定された動画が見つかりません: %s", videoID),
		Category: "video",
		Action:   "動画IDを確認してください。",
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError(commentID string) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("指定されたコメントが見つかりません: %s", commentID),
		Category: "video",
		Action:   "ページを再読み込みしてください。",
	}
}

// NewChannelNotFoundError はチャンネル未検出エラーを生成する。
func NewChannelNotFoundError(channelID string) *APIError {
	return &APIError{
		Code:     ErrCodeChannelNotFound,
		Message:  fmt.Sprintf("指定されたチャンネルが見つかりません: %s", channelID),
		Category: "video",
		Action:   "チャンネルIDを確認してください。",
	}
}

// NewInvalidCommentError はコメント本文が不正な場合のエラーを生成する。
func NewInvalidCommentError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidComment,
		Message:  fmt.Sprintf("コメントを投稿できません: %s", reason),
		Category: "validation",
		Action:   "1文字以上5000文字以内で入力してください。",
	}
}

// NewInvalidInputError は入力値が不正な場合のエラーを生成する。
func NewInvalidInputError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("%s が不正です: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewSelfSubscriptionError は自分のチャンネルを購読しようとした場合のエラーを生成する。
func NewSelfSubscriptionError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfSubscription,
		Message:  "自分のチャンネルは購読できません。",
		Category: "validation",
		Action:   "他のチャンネルを購読してください。",
	}
}

// NewUsernameTakenError はユーザー名が既に使われている場合のエラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("ユーザー名は既に使用されています: %s", username),
		Category: "validation",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewUploadTooLargeError はアップロードサイズ超過エラーを生成する。
func NewUploadTooLargeError(limit int64) *APIError {
	msg := "ファイルサイズが上限を超えています。"
	if limit > 0 {
		msg = fmt.Sprintf("ファイルサイズが上限（%dバイト）を超えています。", limit)
	}
	return &APIError{
		Code:     ErrCodeUploadTooLarge,
		Message:  msg,
		Category: "storage",
		Action:   "ファイルを小さくしてから再度アップロードしてください。",
	}
}

// NewUploadFailedError はアップロード失敗エラーを生成する。
func NewUploadFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUploadFailed,
		Message:  "動画のアップロードに失敗しました。",
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewStorageUnavailableError はストレージが未設定の場合のエラーを生成する。
func NewStorageUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageUnavailable,
		Message:  "ファイルストレージが設定されていません。",
		Category: "system",
		Action:   "管理者に連絡してください。",
	}
}

// NewMutationFailedError は更新操作が失敗しロールバックされた場合のエラーを生成する。
func NewMutationFailedError(what string) *APIError {
	return &APIError{
		Code:     ErrCodeMutationFailed,
		Message:  fmt.Sprintf("%sの更新に失敗しました。", what),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はリクエスト数の上限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNotFoundError は存在しないAPIエンドポイントへのエラーを生成する。
func NewNotFoundError(path string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s は存在しません。", path),
		Category: "system",
		Action:   "URLを確認してください。",
	}
}
