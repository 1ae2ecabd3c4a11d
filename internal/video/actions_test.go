package video

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/vidshare/internal/interaction"
	"github.com/hitoshi/vidshare/internal/model"
)

func TestRecordView_SignedIn_RecordsHistory(t *testing.T) {
	f := newFixture()
	f.videos.incrementViewsFn = func(ctx context.Context, id string) (int64, bool, error) { return 42, true, nil }

	views, err := f.service().RecordView(context.Background(), "vid-1", "user-1")
	if err != nil {
		t.Fatalf("RecordView: %v", err)
	}
	if views != 42 {
		t.Errorf("views = %d, want 42", views)
	}
	if len(f.history.recorded) != 1 || f.history.recorded[0] != "user-1:vid-1" {
		t.Errorf("history = %v", f.history.recorded)
	}
}

func TestRecordView_Anonymous_NoHistory(t *testing.T) {
	f := newFixture()

	if _, err := f.service().RecordView(context.Background(), "vid-1", ""); err != nil {
		t.Fatalf("RecordView: %v", err)
	}
	if len(f.history.recorded) != 0 {
		t.Errorf("history should not be recorded for anonymous viewers: %v", f.history.recorded)
	}
}

func TestRecordView_HistoryFailure_StillCountsView(t *testing.T) {
	f := newFixture()
	f.history.recordFn = func(ctx context.Context, userID, videoID string, at time.Time) error {
		return errors.New("db down")
	}

	if _, err := f.service().RecordView(context.Background(), "vid-1", "user-1"); err != nil {
		t.Errorf("history failures must not fail the view: %v", err)
	}
}

func TestRecordView_NotFound(t *testing.T) {
	f := newFixture()
	f.videos.incrementViewsFn = func(ctx context.Context, id string) (int64, bool, error) { return 0, false, nil }

	if _, err := f.service().RecordView(context.Background(), "missing", ""); !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("err = %v, want ErrVideoNotFound", err)
	}
}

func TestUpdateWatchDuration_RejectsNegative(t *testing.T) {
	err := newFixture().service().UpdateWatchDuration(context.Background(), "user-1", "vid-1", -5)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestSetVideoLike_Confirmed(t *testing.T) {
	f := newFixture()
	f.likes.countFn = func(ctx context.Context, videoID string) (int, error) { return 10, nil }

	res, err := f.service().SetVideoLike(context.Background(), "user-1", "vid-1", true)
	if err != nil {
		t.Fatalf("SetVideoLike: %v", err)
	}
	if res.Phase != interaction.PhaseConfirmed || !res.Value || res.Count != 11 {
		t.Errorf("result = %+v, want confirmed/true/11", res)
	}
	if f.recorder.mutations[0] != "video_like:confirmed" {
		t.Errorf("recorded = %v", f.recorder.mutations)
	}
}

func TestSetVideoLike_NoChange_SkipsWrite(t *testing.T) {
	f := newFixture()
	f.likes.hasLikedFn = func(ctx context.Context, userID, videoID string) (bool, error) { return true, nil }
	f.likes.countFn = func(ctx context.Context, videoID string) (int, error) { return 4, nil }

	res, err := f.service().SetVideoLike(context.Background(), "user-1", "vid-1", true)
	if err != nil {
		t.Fatalf("SetVideoLike: %v", err)
	}
	if f.likes.setCalls != 0 {
		t.Errorf("SetVideoLike called %d times, want 0", f.likes.setCalls)
	}
	if res.Count != 4 || !res.Value {
		t.Errorf("result = %+v", res)
	}
}

func TestSetVideoLike_Failure_RollsBack(t *testing.T) {
	f := newFixture()
	f.likes.countFn = func(ctx context.Context, videoID string) (int, error) { return 10, nil }
	f.likes.setVideoLikeFn = func(ctx context.Context, userID, videoID string, liked bool) error {
		return errors.New("write failed")
	}

	res, err := f.service().SetVideoLike(context.Background(), "user-1", "vid-1", true)
	if err == nil {
		t.Fatal("expected error")
	}
	if res == nil {
		t.Fatal("rolled back result should be returned with the error")
	}
	if res.Phase != interaction.PhaseRolledBack || res.Value || res.Count != 10 {
		t.Errorf("result = %+v, want rolled_back/false/10", res)
	}
	if f.recorder.mutations[0] != "video_like:rolled_back" {
		t.Errorf("recorded = %v", f.recorder.mutations)
	}
}

func TestSetVideoLike_VideoNotFound(t *testing.T) {
	res, err := newFixture().service().SetVideoLike(context.Background(), "user-1", "missing", true)
	if !errors.Is(err, ErrVideoNotFound) || res != nil {
		t.Errorf("got %+v, %v; want nil, ErrVideoNotFound", res, err)
	}
}

func TestSetCommentLike_AlwaysPersists(t *testing.T) {
	f := newFixture()
	var got []bool
	f.likes.setCommentLikeFn = func(ctx context.Context, userID, commentID string, liked bool) error {
		got = append(got, liked)
		return nil
	}
	svc := f.service()

	for _, liked := range []bool{true, false} {
		res, err := svc.SetCommentLike(context.Background(), "user-1", "comment-1", liked)
		if err != nil {
			t.Fatalf("SetCommentLike: %v", err)
		}
		if res.Value != liked {
			t.Errorf("Value = %v, want %v", res.Value, liked)
		}
	}
	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Errorf("persisted = %v, want [true false]", got)
	}
}

func TestSetCommentLike_NotFound(t *testing.T) {
	f := newFixture()
	f.comments.existsFn = func(ctx context.Context, id string) (bool, error) { return false, nil }

	if _, err := f.service().SetCommentLike(context.Background(), "user-1", "nope", true); !errors.Is(err, ErrCommentNotFound) {
		t.Errorf("err = %v, want ErrCommentNotFound", err)
	}
}

func TestSetWatchLater_AddAndRemove(t *testing.T) {
	f := newFixture()
	svc := f.service()
	ctx := context.Background()

	res, err := svc.SetWatchLater(ctx, "user-1", "vid-1", true)
	if err != nil || !res.Value {
		t.Fatalf("add: %+v, %v", res, err)
	}
	// 2回目の追加は変化なし
	if res, err = svc.SetWatchLater(ctx, "user-1", "vid-1", true); err != nil || !res.Value {
		t.Fatalf("re-add: %+v, %v", res, err)
	}
	videos, _ := svc.WatchLater(ctx, "user-1")
	if len(videos) != 1 {
		t.Errorf("watch later = %d videos, want 1", len(videos))
	}

	if res, err = svc.SetWatchLater(ctx, "user-1", "vid-1", false); err != nil || res.Value {
		t.Fatalf("remove: %+v, %v", res, err)
	}
	videos, _ = svc.WatchLater(ctx, "user-1")
	if len(videos) != 0 {
		t.Errorf("watch later = %d videos, want 0", len(videos))
	}
}

func TestSetWatchLater_Failure_RollsBack(t *testing.T) {
	f := newFixture()
	f.playlists.setErr = errors.New("write failed")

	res, err := f.service().SetWatchLater(context.Background(), "user-1", "vid-1", true)
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Phase != interaction.PhaseRolledBack || res.Value {
		t.Errorf("result = %+v, want rolled back to false", res)
	}
}

func TestAddComment_SanitizesAndCreates(t *testing.T) {
	f := newFixture()
	var created *model.Comment
	f.comments.createFn = func(ctx context.Context, c *model.Comment) (*model.Comment, error) {
		created = c
		out := *c
		return &out, nil
	}

	c, err := f.service().AddComment(context.Background(), "user-1", "vid-1", "  <b>great</b> video<script>alert(1)</script> ")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if created.Content != "great video" {
		t.Errorf("content = %q, want %q", created.Content, "great video")
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Error("ID and CreatedAt should be set")
	}
	if c.LikesCount != 0 || c.UserHasLiked {
		t.Errorf("new comment should have no likes: %+v", c)
	}
}

func TestAddComment_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"only tags", "<script>x</script>"},
		{"too long", strings.Repeat("あ", 5001)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newFixture().service().AddComment(context.Background(), "user-1", "vid-1", tt.content)
			if !errors.Is(err, ErrInvalidComment) {
				t.Errorf("err = %v, want ErrInvalidComment", err)
			}
		})
	}
}

func TestAddComment_MaxLengthAccepted(t *testing.T) {
	if _, err := newFixture().service().AddComment(context.Background(), "user-1", "vid-1", strings.Repeat("あ", 5000)); err != nil {
		t.Errorf("5000 characters should be accepted: %v", err)
	}
}

func TestAddComment_VideoNotFound(t *testing.T) {
	if _, err := newFixture().service().AddComment(context.Background(), "user-1", "missing", "hi"); !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("err = %v, want ErrVideoNotFound", err)
	}
}
