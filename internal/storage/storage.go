// Package storage は動画・サムネイル・アバター等のファイルをS3互換ストレージに保存する。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// バケット名
const (
	BucketVideos     = "videos"
	BucketThumbnails = "thumbnails"
	BucketAvatars    = "avatars"
	BucketBanners    = "banners"
)

var (
	// ErrTooLarge はファイルサイズが上限を超えたことを表す。
	ErrTooLarge = errors.New("file too large")
	// ErrEmptyFile は空のファイルが渡されたことを表す。
	ErrEmptyFile = errors.New("file is empty")
)

// ObjectPutter はオブジェクトのアップロード操作。*s3.Client が満たす。
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ClientConfig はS3互換エンドポイントへの接続設定。
type ClientConfig struct {
	// Endpoint はS3互換APIのURL（例: https://xxx.supabase.co/storage/v1/s3）。
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	HTTPClient      *http.Client
}

// NewS3Client はパススタイルでアクセスするS3クライアントを生成する。
func NewS3Client(cfg ClientConfig) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
				Source:          "vidshare",
			}, nil
		}),
	}
	if cfg.HTTPClient != nil {
		opts.HTTPClient = cfg.HTTPClient
	}
	return s3.New(opts)
}

// File はアップロードするファイル。
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// Object は保存済みオブジェクト。
type Object struct {
	Bucket string
	Key    string
	URL    string
}

// Store はユーザーごとのキーでファイルを保存し、公開URLを返す。
type Store struct {
	client     ObjectPutter
	publicBase string
	maxSize    int64
	now        func() time.Time
}

// NewStore はStoreを生成する。
// publicBaseは公開URLの基点（Supabaseプロジェクトのurl）、maxSizeは1ファイルの上限バイト数。
func NewStore(client ObjectPutter, publicBase string, maxSize int64) *Store {
	return &Store{
		client:     client,
		publicBase: strings.TrimRight(publicBase, "/"),
		maxSize:    maxSize,
		now:        time.Now,
	}
}

// MaxSize は1ファイルの上限バイト数を返す。
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Upload はファイルを <userID>/<unixミリ秒>-<ファイル名> のキーで保存する。
func (s *Store) Upload(ctx context.Context, bucket, userID string, f File) (*Object, error) {
	if f.Size <= 0 {
		return nil, ErrEmptyFile
	}
	if s.maxSize > 0 && f.Size > s.maxSize {
		return nil, ErrTooLarge
	}

	key := ObjectKey(userID, f.Name, s.now())
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f.Body,
		ContentLength: aws.Int64(f.Size),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("max-age=3600"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s/%s: %w", bucket, key, err)
	}

	slog.Info("object uploaded",
		slog.String("bucket", bucket),
		slog.String("key", key),
		slog.Int64("size", f.Size),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return &Object{
		Bucket: bucket,
		Key:    key,
		URL:    PublicURL(s.publicBase, bucket, key),
	}, nil
}

// ObjectKey はオブジェクトキーを組み立てる。
func ObjectKey(userID, name string, now time.Time) string {
	return fmt.Sprintf("%s/%d-%s", userID, now.UnixMilli(), sanitizeName(name))
}

// PublicURL は公開バケットのオブジェクトURLを返す。
func PublicURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/storage/v1/object/public/" + bucket + "/" + key
}

// sanitizeName はファイル名からパス要素と英数字・.-_以外の文字を取り除く。
func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.TrimLeft(b.String(), ".")
	if s == "" {
		return "file"
	}
	return s
}
