package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type mockPutter struct {
	putFn func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	calls []*s3.PutObjectInput
}

func (m *mockPutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.calls = append(m.calls, in)
	if m.putFn != nil {
		return m.putFn(ctx, in)
	}
	return &s3.PutObjectOutput{}, nil
}

func newTestStore(p ObjectPutter, maxSize int64) *Store {
	s := NewStore(p, "https://proj.supabase.co/", maxSize)
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return s
}

func TestStore_Upload(t *testing.T) {
	putter := &mockPutter{}
	store := newTestStore(putter, 1024)

	obj, err := store.Upload(context.Background(), BucketVideos, "user-1", File{
		Name:        "My Clip.mp4",
		ContentType: "video/mp4",
		Size:        5,
		Body:        strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantKey := "user-1/1700000000123-My_Clip.mp4"
	if obj.Key != wantKey {
		t.Errorf("key = %q, want %q", obj.Key, wantKey)
	}
	wantURL := "https://proj.supabase.co/storage/v1/object/public/videos/" + wantKey
	if obj.URL != wantURL {
		t.Errorf("url = %q, want %q", obj.URL, wantURL)
	}

	if len(putter.calls) != 1 {
		t.Fatalf("PutObject calls = %d, want 1", len(putter.calls))
	}
	in := putter.calls[0]
	if aws.ToString(in.Bucket) != BucketVideos || aws.ToString(in.Key) != wantKey {
		t.Errorf("unexpected put target: %s/%s", aws.ToString(in.Bucket), aws.ToString(in.Key))
	}
	if aws.ToString(in.ContentType) != "video/mp4" || aws.ToInt64(in.ContentLength) != 5 {
		t.Errorf("unexpected put headers: %s %d", aws.ToString(in.ContentType), aws.ToInt64(in.ContentLength))
	}
	body, _ := io.ReadAll(in.Body)
	if string(body) != "hello" {
		t.Errorf("body = %q", body)
	}
}

func TestStore_UploadRejectsInvalidSize(t *testing.T) {
	putter := &mockPutter{}
	store := newTestStore(putter, 4)

	_, err := store.Upload(context.Background(), BucketVideos, "user-1", File{Name: "a", Size: 5, Body: strings.NewReader("hello")})
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
	_, err = store.Upload(context.Background(), BucketVideos, "user-1", File{Name: "a", Size: 0, Body: strings.NewReader("")})
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile, got %v", err)
	}
	if len(putter.calls) != 0 {
		t.Error("invalid files must not be uploaded")
	}
}

func TestStore_UploadPropagatesError(t *testing.T) {
	putter := &mockPutter{
		putFn: func(context.Context, *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			return nil, errors.New("bucket not found")
		},
	}
	store := newTestStore(putter, 0)

	_, err := store.Upload(context.Background(), BucketAvatars, "user-1", File{Name: "a.png", Size: 1, Body: strings.NewReader("x")})
	if err == nil || !strings.Contains(err.Error(), "bucket not found") {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "video.mp4", want: "video.mp4"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: `C:\Users\me\clip.mov`, want: "clip.mov"},
		{in: "日本語.mp4", want: "___.mp4"},
		{in: ".hidden", want: "hidden"},
		{in: "", want: "file"},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewS3Client(t *testing.T) {
	client := NewS3Client(ClientConfig{
		Endpoint:        "https://proj.supabase.co/storage/v1/s3",
		Region:          "us-east-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	opts := client.Options()
	if !opts.UsePathStyle {
		t.Error("path style addressing should be enabled")
	}
	if aws.ToString(opts.BaseEndpoint) != "https://proj.supabase.co/storage/v1/s3" {
		t.Errorf("endpoint = %q", aws.ToString(opts.BaseEndpoint))
	}
	creds, err := opts.Credentials.Retrieve(context.Background())
	if err != nil || creds.AccessKeyID != "key" {
		t.Errorf("credentials = %+v, %v", creds, err)
	}
}
