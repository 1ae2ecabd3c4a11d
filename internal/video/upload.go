package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/storage"
)

// タイトルの最大文字数
const maxTitleLength = 100

// アップロード結果（メトリクスのラベル）
const (
	UploadSucceeded = "success"
	UploadFailed    = "failure"
	UploadRejected  = "rejected"
)

// UploadInput は動画アップロードフォームの入力。
type UploadInput struct {
	Title       string
	Description string
	Video       storage.File
	// Thumbnail は任意。nilの場合はサムネイルなしで作成する。
	Thumbnail *storage.File
}

// Upload は動画ファイルと任意のサムネイルを保存し、動画レコードを作成する。
// 動画ファイルの保存失敗はエラーを返し、サムネイルの保存失敗はログに記録してサムネイルなしで続行する。
func (s *Service) Upload(ctx context.Context, userID string, in UploadInput) (*model.Video, error) {
	title := s.sanitizer.PlainText(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title is longer than %d characters", ErrInvalidInput, maxTitleLength)
	}
	if s.uploader == nil {
		return nil, ErrStorageUnavailable
	}

	videoObj, err := s.uploader.Upload(ctx, storage.BucketVideos, userID, in.Video)
	if err != nil {
		s.recorder.RecordUpload(storage.BucketVideos, uploadOutcome(err))
		return nil, err
	}
	s.recorder.RecordUpload(storage.BucketVideos, UploadSucceeded)

	var thumbnailURL string
	if in.Thumbnail != nil {
		thumbObj, err := s.uploader.Upload(ctx, storage.BucketThumbnails, userID, *in.Thumbnail)
		if err != nil {
			s.recorder.RecordUpload(storage.BucketThumbnails, uploadOutcome(err))
			slog.Warn("thumbnail upload failed, continuing without thumbnail",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		} else {
			s.recorder.RecordUpload(storage.BucketThumbnails, UploadSucceeded)
			thumbnailURL = thumbObj.URL
		}
	}

	v, err := s.repos.Videos.Create(ctx, &model.NewVideo{
		ID:           uuid.New().String(),
		UserID:       userID,
		Title:        title,
		Description:  s.sanitizer.PlainText(in.Description),
		VideoURL:     videoObj.URL,
		ThumbnailURL: thumbnailURL,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("video uploaded",
		slog.String("user_id", userID),
		slog.String("video_id", v.ID),
	)
	return v, nil
}

// MaxUploadSize は1ファイルの上限バイト数を返す。ストレージ未設定の場合は0。
func (s *Service) MaxUploadSize() int64 {
	if s.uploader == nil {
		return 0
	}
	return s.uploader.MaxSize()
}

func uploadOutcome(err error) string {
	if errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrEmptyFile) {
		return UploadRejected
	}
	return UploadFailed
}
