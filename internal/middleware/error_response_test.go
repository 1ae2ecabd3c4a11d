package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/vidshare/internal/model"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestWriteErrorResponse_DomainErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		apiErr   *model.APIError
		code     string
		category string
	}{
		{"Unauthorized", http.StatusUnauthorized, model.NewUnauthorizedError(), model.ErrCodeUnauthorized, "auth"},
		{"VideoNotFound", http.StatusNotFound, model.NewVideoNotFoundError("v-1"), model.ErrCodeVideoNotFound, "video"},
		{"TooLarge", http.StatusRequestEntityTooLarge, model.NewUploadTooLargeError(1 << 20), model.ErrCodeUploadTooLarge, "storage"},
		{"Internal", http.StatusInternalServerError, model.NewInternalError(), model.ErrCodeInternal, "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteErrorResponse(w, tt.status, tt.apiErr)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			body := decodeErrorBody(t, w)
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
			if body.Category != tt.category {
				t.Errorf("category = %q, want %q", body.Category, tt.category)
			}
			if body.Message == "" || body.Action == "" {
				t.Errorf("body = %+v, want message and action", body)
			}
		})
	}
}

func TestWriteErrorResponse_FieldNames(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{Code: "C", Message: "M", Category: "K", Action: "A"})

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	for _, field := range []string{"code", "message", "category", "action"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing field %q in %v", field, raw)
		}
	}
}

func TestWriteInternalServerError_HidesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}

func TestWriteRateLimitError_SetsRetryAfter(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter int
		want       string
	}{
		{"Seconds", 30, "30"},
		{"ClampedToOne", 0, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteRateLimitError(w, tt.retryAfter)

			if w.Code != http.StatusTooManyRequests {
				t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
			}
			if got := w.Header().Get("Retry-After"); got != tt.want {
				t.Errorf("Retry-After = %q, want %q", got, tt.want)
			}
			if body := decodeErrorBody(t, w); body.Code != model.ErrCodeRateLimited {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
			}
		})
	}
}

func TestNewErrorResponseBody_CopiesFields(t *testing.T) {
	body := NewErrorResponseBody(model.NewMutationFailedError("高評価"))

	if body.Code != model.ErrCodeMutationFailed {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeMutationFailed)
	}
	if body.Message == "" || body.Action == "" {
		t.Errorf("body = %+v, want message and action", body)
	}
}

type mockStatusRecorder struct {
	codes []int
}

func (m *mockStatusRecorder) RecordHTTPStatus(statusCode int) {
	m.codes = append(m.codes, statusCode)
}

func TestStatusMetricsMiddleware_RecordsStatus(t *testing.T) {
	rec := &mockStatusRecorder{}
	mw := NewStatusMetricsMiddleware(rec)

	mw(statusHandler(http.StatusNotFound)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(rec.codes) != 2 || rec.codes[0] != http.StatusNotFound || rec.codes[1] != http.StatusOK {
		t.Errorf("recorded = %v, want [404 200]", rec.codes)
	}
}
