// Package user はチャンネル・購読・プロフィール編集のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/hitoshi/vidshare/internal/interaction"
	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/repository"
	"github.com/hitoshi/vidshare/internal/security"
	"github.com/hitoshi/vidshare/internal/storage"
)

const (
	maxUsernameLength = 50
	maxFullNameLength = 100
	maxBioLength      = 1000
	channelVideoLimit = 24

	// MutationSubscription は購読操作のメトリクスラベル。
	MutationSubscription = "subscription"
)

var (
	// ErrChannelNotFound はチャンネル（プロフィール）が存在しないことを表す。
	ErrChannelNotFound = errors.New("channel not found")
	// ErrSelfSubscription は自分のチャンネルを購読しようとしたことを表す。
	ErrSelfSubscription = errors.New("cannot subscribe to own channel")
	// ErrInvalidProfile はプロフィールの入力値が不正であることを表す。
	ErrInvalidProfile = errors.New("invalid profile")
)

// Uploader はファイルをストレージに保存する。*storage.Store が満たす。
type Uploader interface {
	Upload(ctx context.Context, bucket, userID string, f storage.File) (*storage.Object, error)
}

// Recorder は操作結果を記録する。*metrics.Collector が満たす。
type Recorder interface {
	RecordMutation(kind, phase string)
	RecordUpload(bucket, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordMutation(string, string) {}
func (nopRecorder) RecordUpload(string, string)   {}

// Service はチャンネルとプロフィールのサービス層。
type Service struct {
	profiles  repository.ProfileRepository
	subs      repository.SubscriptionRepository
	videos    repository.VideoRepository
	uploader  Uploader
	sanitizer security.ContentSanitizer
	recorder  Recorder
}

// NewService はServiceの新しいインスタンスを生成する。
// uploaderがnilの場合、アバターとバナーの変更は無視される。
func NewService(
	profiles repository.ProfileRepository,
	subs repository.SubscriptionRepository,
	videos repository.VideoRepository,
	uploader Uploader,
	sanitizer security.ContentSanitizer,
	recorder Recorder,
) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		profiles:  profiles,
		subs:      subs,
		videos:    videos,
		uploader:  uploader,
		sanitizer: sanitizer,
		recorder:  recorder,
	}
}

// ChannelPage はチャンネルページに表示するデータ。
type ChannelPage struct {
	Channel model.Channel
	Videos  []model.Video
	IsOwner bool
}

// Channel はチャンネルのプロフィール、購読者数、閲覧者の購読状態、投稿動画を返す。
func (s *Service) Channel(ctx context.Context, channelID, viewerID string) (*ChannelPage, error) {
	profile, err := s.profiles.FindByID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("チャンネルの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return nil, ErrChannelNotFound
	}

	page := &ChannelPage{
		Channel: model.Channel{Profile: *profile},
		IsOwner: viewerID == channelID,
	}
	if page.Channel.SubscribersCount, err = s.subs.CountSubscribers(ctx, channelID); err != nil {
		return nil, err
	}
	if viewerID != "" && !page.IsOwner {
		subscribed, err := s.subs.IsSubscribed(ctx, viewerID, channelID)
		if err != nil {
			slog.Warn("failed to load subscription state",
				slog.String("user_id", viewerID),
				slog.String("channel_id", channelID),
				slog.String("error", err.Error()),
			)
		}
		page.Channel.UserHasSubscribed = subscribed
	}
	if page.Videos, err = s.videos.ListByUser(ctx, channelID, channelVideoLimit); err != nil {
		return nil, err
	}
	return page, nil
}

// SubscriptionResult は購読操作の確定結果。
type SubscriptionResult struct {
	Phase            interaction.Phase
	Subscribed       bool
	SubscribersCount int
}

// SetSubscription は購読状態を設定し、確定後の購読者数を返す。
// 永続化に失敗した場合はrolled_backの結果とエラーを返す。
func (s *Service) SetSubscription(ctx context.Context, subscriberID, channelID string, subscribed bool) (*SubscriptionResult, error) {
	if subscriberID == channelID {
		return nil, ErrSelfSubscription
	}
	profile, err := s.profiles.FindByID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("チャンネルの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return nil, ErrChannelNotFound
	}

	previous, err := s.subs.IsSubscribed(ctx, subscriberID, channelID)
	if err != nil {
		return nil, err
	}
	count, err := s.subs.CountSubscribers(ctx, channelID)
	if err != nil {
		return nil, err
	}

	t, err := interaction.Apply(ctx, previous, subscribed, func(ctx context.Context, value bool) error {
		return s.subs.SetSubscribed(ctx, subscriberID, channelID, value)
	})
	s.recorder.RecordMutation(MutationSubscription, string(t.Phase()))

	result := &SubscriptionResult{
		Phase:            t.Phase(),
		Subscribed:       t.Value(),
		SubscribersCount: t.AdjustCount(count),
	}
	if err != nil {
		slog.Error("subscription rolled back",
			slog.String("user_id", subscriberID),
			slog.String("channel_id", channelID),
			slog.String("error", err.Error()),
		)
		return result, fmt.Errorf("購読の更新に失敗しました: %w", err)
	}
	return result, nil
}

// SubscriptionsPage は購読ページに表示するデータ。
type SubscriptionsPage struct {
	Channels []model.Profile
	Videos   []model.Video
}

// Subscriptions は購読中のチャンネルとその新着動画を返す。
func (s *Service) Subscriptions(ctx context.Context, userID string) (*SubscriptionsPage, error) {
	channels, err := s.subs.ListChannels(ctx, userID)
	if err != nil {
		return nil, err
	}
	videos, err := s.videos.ListFromSubscriptions(ctx, userID, channelVideoLimit)
	if err != nil {
		return nil, err
	}
	return &SubscriptionsPage{Channels: channels, Videos: videos}, nil
}

// Profile はプロフィールを取得する。存在しない場合はErrChannelNotFoundを返す。
func (s *Service) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, ErrChannelNotFound
	}
	return p, nil
}

// ProfileInput はプロフィール編集フォームの入力。
type ProfileInput struct {
	Username string
	FullName string
	Bio      string
	// Avatar と Banner は任意。nilの場合は既存の画像を維持する。
	Avatar *storage.File
	Banner *storage.File
}

// UpdateProfile はプロフィールを更新する。
// アバターとバナーの保存失敗はログに記録し、既存の画像を維持して続行する。
// ユーザー名の重複はrepository.ErrUsernameTakenを返す。
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*model.Profile, error) {
	update := model.ProfileUpdate{
		Username: s.sanitizer.PlainText(in.Username),
		FullName: s.sanitizer.PlainText(in.FullName),
		Bio:      s.sanitizer.PlainText(in.Bio),
	}
	if update.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidProfile)
	}
	if utf8.RuneCountInString(update.Username) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username is longer than %d characters", ErrInvalidProfile, maxUsernameLength)
	}
	if utf8.RuneCountInString(update.FullName) > maxFullNameLength {
		return nil, fmt.Errorf("%w: full name is longer than %d characters", ErrInvalidProfile, maxFullNameLength)
	}
	if utf8.RuneCountInString(update.Bio) > maxBioLength {
		return nil, fmt.Errorf("%w: bio is longer than %d characters", ErrInvalidProfile, maxBioLength)
	}

	update.AvatarURL = s.uploadImage(ctx, storage.BucketAvatars, userID, in.Avatar)
	update.BannerURL = s.uploadImage(ctx, storage.BucketBanners, userID, in.Banner)

	p, err := s.profiles.Update(ctx, userID, update)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrChannelNotFound
	}

	slog.Info("profile updated", slog.String("user_id", userID))
	return p, nil
}

// uploadImage は任意の画像を保存して公開URLを返す。失敗時と未指定時は空文字列。
func (s *Service) uploadImage(ctx context.Context, bucket, userID string, f *storage.File) string {
	if f == nil || s.uploader == nil {
		return ""
	}
	obj, err := s.uploader.Upload(ctx, bucket, userID, *f)
	if err != nil {
		s.recorder.RecordUpload(bucket, "failure")
		slog.Warn("image upload failed, keeping previous image",
			slog.String("bucket", bucket),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	s.recorder.RecordUpload(bucket, "success")
	return obj.URL
}
