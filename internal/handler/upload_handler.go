package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/storage"
	"github.com/hitoshi/vidshare/internal/video"
)

// multipartMemory はマルチパートフォームをメモリに保持する上限。超えた分は一時ファイルに書かれる。
const multipartMemory = 32 << 20

// formOverhead はファイル以外のフィールドとマルチパートの境界に許す余裕（バイト）。
const formOverhead = 1 << 20

// VideoUploadServiceInterface は動画アップロードのサービスインターフェース。
type VideoUploadServiceInterface interface {
	Upload(ctx context.Context, userID string, in video.UploadInput) (*model.Video, error)
	MaxUploadSize() int64
}

// UploadHandler は動画アップロードフォームのHTTPハンドラー。
type UploadHandler struct {
	service  VideoUploadServiceInterface
	renderer *Renderer
}

// NewUploadHandler はUploadHandlerを生成する。
func NewUploadHandler(service VideoUploadServiceInterface, renderer *Renderer) *UploadHandler {
	return &UploadHandler{service: service, renderer: renderer}
}

// uploadView はアップロードフォームの表示内容。
type uploadView struct {
	Available   bool
	MaxSize     int64
	Error       string
	Title       string
	Description string
}

// Form はアップロードフォームを表示する。
// GET /upload
func (h *UploadHandler) Form(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, uploadView{})
}

// Submit は動画とサムネイルを受け取り、動画を作成して視聴ページへリダイレクトする。
// POST /upload (multipart/form-data: title, description, video, thumbnail)
func (h *UploadHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := viewerID(r)
	if userID == "" {
		h.renderer.renderError(w, r, http.StatusUnauthorized, "Sign in to upload videos.")
		return
	}

	maxSize := h.service.MaxUploadSize()
	if maxSize <= 0 {
		h.renderForm(w, r, http.StatusServiceUnavailable, uploadView{Error: "File storage is not configured."})
		return
	}
	if err := parseMultipart(w, r, 2*maxSize+formOverhead); err != nil {
		h.renderForm(w, r, formErrorStatus(err), uploadView{Error: formErrorMessage(err)})
		return
	}

	view := uploadView{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
	}

	videoFile, closeVideo, err := formFile(r, "video")
	if err != nil {
		view.Error = formErrorMessage(err)
		h.renderForm(w, r, http.StatusBadRequest, view)
		return
	}
	defer closeVideo()
	if videoFile == nil {
		view.Error = "Choose a video file to upload."
		h.renderForm(w, r, http.StatusBadRequest, view)
		return
	}

	thumbnail, closeThumb, err := formFile(r, "thumbnail")
	if err != nil {
		slog.Warn("thumbnail could not be read, continuing without thumbnail", slog.String("error", err.Error()))
	}
	defer closeThumb()

	v, err := h.service.Upload(r.Context(), userID, video.UploadInput{
		Title:       view.Title,
		Description: view.Description,
		Video:       *videoFile,
		Thumbnail:   thumbnail,
	})
	if err != nil {
		status, _ := classifyError(err, "")
		if status == http.StatusInternalServerError {
			slog.Error("video upload failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			status = http.StatusBadGateway
		}
		view.Error = userMessage(err)
		h.renderForm(w, r, status, view)
		return
	}

	http.Redirect(w, r, "/video/"+v.ID, http.StatusSeeOther)
}

func (h *UploadHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, view uploadView) {
	view.MaxSize = h.service.MaxUploadSize()
	view.Available = view.MaxSize > 0
	h.renderer.render(w, r, status, pageUpload, pageData{Title: "Upload", Data: view})
}

// parseMultipart はボディの上限を設定してマルチパートフォームを解析する。
// CSRFミドルウェアが既に解析済みの場合はそのまま使う。
func parseMultipart(w http.ResponseWriter, r *http.Request, maxSize int64) error {
	if r.MultipartForm != nil {
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	return r.ParseMultipartForm(multipartMemory)
}

// formFile はフォームのファイルフィールドを storage.File に変換する。
// フィールドが無い、またはファイルが選択されていない場合は nil を返す。
func formFile(r *http.Request, field string) (*storage.File, func(), error) {
	noop := func() {}
	f, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}
	if header.Size == 0 && header.Filename == "" {
		f.Close()
		return nil, noop, nil
	}
	return &storage.File{
		Name:        header.Filename,
		ContentType: contentType(header),
		Size:        header.Size,
		Body:        f,
	}, func() { f.Close() }, nil
}

func contentType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func formErrorStatus(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func formErrorMessage(err error) string {
	if formErrorStatus(err) == http.StatusRequestEntityTooLarge {
		return "The file is too large."
	}
	return "The form could not be read."
}
