package video

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/security"
	"github.com/hitoshi/vidshare/internal/storage"
)

func testFile(name string) storage.File {
	body := "content of " + name
	return storage.File{Name: name, ContentType: "video/mp4", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestUpload_VideoAndThumbnail(t *testing.T) {
	f := newFixture()
	var created *model.NewVideo
	f.videos.createFn = func(ctx context.Context, v *model.NewVideo) (*model.Video, error) {
		created = v
		return &model.Video{ID: v.ID, VideoURL: v.VideoURL, ThumbnailURL: v.ThumbnailURL}, nil
	}
	thumb := testFile("thumb.png")

	v, err := f.service().Upload(context.Background(), "user-1", UploadInput{
		Title:       " My <i>clip</i> ",
		Description: "desc",
		Video:       testFile("clip.mp4"),
		Thumbnail:   &thumb,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if created.Title != "My clip" {
		t.Errorf("title = %q, want %q", created.Title, "My clip")
	}
	if created.UserID != "user-1" || created.ID == "" {
		t.Errorf("record = %+v", created)
	}
	if v.VideoURL != "https://cdn.example.com/videos/user-1/clip.mp4" {
		t.Errorf("VideoURL = %q", v.VideoURL)
	}
	if v.ThumbnailURL != "https://cdn.example.com/thumbnails/user-1/thumb.png" {
		t.Errorf("ThumbnailURL = %q", v.ThumbnailURL)
	}
	if got := strings.Join(f.recorder.uploads, ","); got != "videos:success,thumbnails:success" {
		t.Errorf("recorded uploads = %s", got)
	}
}

func TestUpload_ThumbnailFailure_IsNonFatal(t *testing.T) {
	f := newFixture()
	f.uploader.uploadFn = func(ctx context.Context, bucket, userID string, file storage.File) (*storage.Object, error) {
		if bucket == storage.BucketThumbnails {
			return nil, errors.New("storage timeout")
		}
		return &storage.Object{Bucket: bucket, URL: "https://cdn.example.com/v"}, nil
	}
	thumb := testFile("thumb.png")

	v, err := f.service().Upload(context.Background(), "user-1", UploadInput{Title: "t", Video: testFile("a.mp4"), Thumbnail: &thumb})
	if err != nil {
		t.Fatalf("thumbnail failure must not fail the upload: %v", err)
	}
	if v.ThumbnailURL != "" {
		t.Errorf("ThumbnailURL = %q, want empty", v.ThumbnailURL)
	}
}

func TestUpload_VideoFailure_IsFatal(t *testing.T) {
	f := newFixture()
	f.uploader.uploadFn = func(ctx context.Context, bucket, userID string, file storage.File) (*storage.Object, error) {
		return nil, errors.New("storage down")
	}
	f.videos.createFn = func(ctx context.Context, v *model.NewVideo) (*model.Video, error) {
		t.Error("no record should be created when the video upload fails")
		return nil, nil
	}
	thumb := testFile("thumb.png")

	if _, err := f.service().Upload(context.Background(), "user-1", UploadInput{Title: "t", Video: testFile("a.mp4"), Thumbnail: &thumb}); err == nil {
		t.Fatal("expected error")
	}
	if len(f.uploader.buckets) != 1 {
		t.Errorf("thumbnail should not be uploaded after the video fails, buckets = %v", f.uploader.buckets)
	}
	if f.recorder.uploads[0] != "videos:failure" {
		t.Errorf("recorded = %v", f.recorder.uploads)
	}
}

func TestUpload_TooLarge_RecordedAsRejected(t *testing.T) {
	f := newFixture()
	f.uploader.uploadFn = func(ctx context.Context, bucket, userID string, file storage.File) (*storage.Object, error) {
		return nil, storage.ErrTooLarge
	}

	_, err := f.service().Upload(context.Background(), "user-1", UploadInput{Title: "t", Video: testFile("a.mp4")})
	if !errors.Is(err, storage.ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
	if f.recorder.uploads[0] != "videos:rejected" {
		t.Errorf("recorded = %v", f.recorder.uploads)
	}
}

func TestUpload_TitleValidation(t *testing.T) {
	for _, title := range []string{"", "   ", "<b></b>", strings.Repeat("x", 101)} {
		f := newFixture()
		_, err := f.service().Upload(context.Background(), "user-1", UploadInput{Title: title, Video: testFile("a.mp4")})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("title %q: err = %v, want ErrInvalidInput", title, err)
		}
		if len(f.uploader.buckets) != 0 {
			t.Errorf("title %q: nothing should be uploaded", title)
		}
	}
}

func TestUpload_NoStorage(t *testing.T) {
	svc := NewService(Repositories{Videos: &mockVideoRepo{}}, nil, security.NewSanitizer(), nil)

	_, err := svc.Upload(context.Background(), "user-1", UploadInput{Title: "t", Video: testFile("a.mp4")})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("err = %v, want ErrStorageUnavailable", err)
	}
	if svc.MaxUploadSize() != 0 {
		t.Errorf("MaxUploadSize = %d, want 0", svc.MaxUploadSize())
	}
}
