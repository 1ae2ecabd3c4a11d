package video

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/vidshare/internal/interaction"
	"github.com/hitoshi/vidshare/internal/model"
)

// コメント本文の最大文字数
const maxCommentLength = 5000

// 操作の種類（メトリクスのラベル）
const (
	MutationVideoLike   = "video_like"
	MutationCommentLike = "comment_like"
	MutationWatchLater  = "watch_later"
)

// ToggleResult はトグル操作の確定結果。
// 永続化に失敗した場合もPhaseがrolled_backの結果を返し、Valueは操作前の値になる。
type ToggleResult struct {
	Phase interaction.Phase
	Value bool
	// Count は確定した値に合わせた件数。件数を持たない操作では0。
	Count int
}

// RecordView は再生回数を1増やし、ログイン中であれば視聴履歴を記録する。
// 視聴履歴の記録失敗は再生回数の更新を取り消さない。
func (s *Service) RecordView(ctx context.Context, videoID, viewerID string) (int64, error) {
	views, found, err := s.repos.Videos.IncrementViews(ctx, videoID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrVideoNotFound
	}

	if viewerID != "" {
		if err := s.repos.History.Record(ctx, viewerID, videoID, s.now()); err != nil {
			slog.Warn("failed to record watch history",
				slog.String("user_id", viewerID),
				slog.String("video_id", videoID),
				slog.String("error", err.Error()),
			)
		}
	}
	return views, nil
}

// UpdateWatchDuration は視聴時間（秒）を記録する。
func (s *Service) UpdateWatchDuration(ctx context.Context, userID, videoID string, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidInput)
	}
	return s.repos.History.UpdateDuration(ctx, userID, videoID, seconds)
}

// SetVideoLike は動画の高評価状態を設定し、確定後の高評価数を返す。
func (s *Service) SetVideoLike(ctx context.Context, userID, videoID string, liked bool) (*ToggleResult, error) {
	if err := s.requireVideo(ctx, videoID); err != nil {
		return nil, err
	}

	previous, err := s.repos.Likes.HasLikedVideo(ctx, userID, videoID)
	if err != nil {
		return nil, err
	}
	count, err := s.repos.Likes.CountForVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	t, err := interaction.Apply(ctx, previous, liked, func(ctx context.Context, value bool) error {
		return s.repos.Likes.SetVideoLike(ctx, userID, videoID, value)
	})
	return s.settle(MutationVideoLike, t, t.AdjustCount(count), err)
}

// SetCommentLike はコメントの高評価状態を設定する。
// 操作前の状態はクライアントが表示していた値（desiredの反対）とみなし、常に永続化する。
func (s *Service) SetCommentLike(ctx context.Context, userID, commentID string, liked bool) (*ToggleResult, error) {
	exists, err := s.repos.Comments.Exists(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCommentNotFound
	}

	t, err := interaction.Apply(ctx, !liked, liked, func(ctx context.Context, value bool) error {
		return s.repos.Likes.SetCommentLike(ctx, userID, commentID, value)
	})
	return s.settle(MutationCommentLike, t, 0, err)
}

// SetWatchLater は「後で見る」への登録状態を設定する。
func (s *Service) SetWatchLater(ctx context.Context, userID, videoID string, add bool) (*ToggleResult, error) {
	if err := s.requireVideo(ctx, videoID); err != nil {
		return nil, err
	}

	playlist, err := s.repos.Playlists.EnsureByTitle(ctx, userID, WatchLaterTitle)
	if err != nil {
		return nil, err
	}
	previous, err := s.repos.Playlists.Contains(ctx, playlist.ID, videoID)
	if err != nil {
		return nil, err
	}

	t, err := interaction.Apply(ctx, previous, add, func(ctx context.Context, value bool) error {
		return s.repos.Playlists.SetVideo(ctx, playlist.ID, videoID, value)
	})
	return s.settle(MutationWatchLater, t, 0, err)
}

// settle はトグルの確定結果を記録して返す。
func (s *Service) settle(kind string, t *interaction.Toggle, count int, err error) (*ToggleResult, error) {
	s.recorder.RecordMutation(kind, string(t.Phase()))
	result := &ToggleResult{Phase: t.Phase(), Value: t.Value(), Count: count}
	if err != nil {
		slog.Error("mutation rolled back",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return result, fmt.Errorf("%sの更新に失敗しました: %w", kind, err)
	}
	return result, nil
}

// AddComment はコメントを投稿し、投稿者情報付きで返す。
// 本文はタグを除去した上で1〜5000文字であることを検証する。
func (s *Service) AddComment(ctx context.Context, userID, videoID, content string) (*model.Comment, error) {
	text := s.sanitizer.PlainText(content)
	if text == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidComment)
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return nil, fmt.Errorf("%w: longer than %d characters", ErrInvalidComment, maxCommentLength)
	}
	if err := s.requireVideo(ctx, videoID); err != nil {
		return nil, err
	}

	return s.repos.Comments.Create(ctx, &model.Comment{
		ID:        uuid.New().String(),
		Content:   text,
		UserID:    userID,
		VideoID:   videoID,
		CreatedAt: s.now(),
	})
}

func (s *Service) requireVideo(ctx context.Context, videoID string) error {
	v, err := s.repos.Videos.FindByID(ctx, videoID)
	if err != nil {
		return err
	}
	if v == nil {
		return ErrVideoNotFound
	}
	return nil
}
