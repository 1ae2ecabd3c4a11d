package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/user"
)

// maxImageSize はアバター・バナー画像のフォーム上限（バイト）。
const maxImageSize = 10 << 20

// profileView はプロフィール編集フォームの表示内容。
type profileView struct {
	Profile *model.Profile
	Error   string
	Message string
}

// ProfileForm はプロフィール編集フォームを表示する。
// GET /profile
func (h *PageHandler) ProfileForm(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	p, err := h.channels.Profile(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view := profileView{Profile: p}
	if r.URL.Query().Get("updated") != "" {
		view.Message = "Profile updated."
	}
	h.renderer.render(w, r, http.StatusOK, pageProfile, pageData{Title: "Edit profile", Data: view})
}

// UpdateProfile はプロフィールを更新する。画像の保存失敗は既存の画像を維持して続行する。
// POST /profile (multipart/form-data: username, full_name, bio, avatar, banner)
func (h *PageHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	rerender := func(status int, msg string) {
		p, err := h.channels.Profile(r.Context(), userID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		// 入力値を残して再表示する
		p.Username = r.PostFormValue("username")
		p.FullName = r.PostFormValue("full_name")
		p.Bio = r.PostFormValue("bio")
		h.renderer.render(w, r, status, pageProfile, pageData{Title: "Edit profile", Data: profileView{Profile: p, Error: msg}})
	}

	if err := parseMultipart(w, r, 2*maxImageSize+formOverhead); err != nil {
		rerender(formErrorStatus(err), formErrorMessage(err))
		return
	}

	avatar, closeAvatar, err := formFile(r, "avatar")
	if err != nil {
		slog.Warn("avatar could not be read", slog.String("error", err.Error()))
	}
	defer closeAvatar()
	banner, closeBanner, err := formFile(r, "banner")
	if err != nil {
		slog.Warn("banner could not be read", slog.String("error", err.Error()))
	}
	defer closeBanner()

	_, err = h.channels.UpdateProfile(r.Context(), userID, user.ProfileInput{
		Username: r.PostFormValue("username"),
		FullName: r.PostFormValue("full_name"),
		Bio:      r.PostFormValue("bio"),
		Avatar:   avatar,
		Banner:   banner,
	})
	if err != nil {
		status, _ := classifyError(err, r.PostFormValue("username"))
		if status == http.StatusInternalServerError {
			slog.Error("profile update failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		rerender(status, userMessage(err))
		return
	}

	http.Redirect(w, r, "/profile?updated=1", http.StatusSeeOther)
}
