package auth

// Recorder は認証イベントのメトリクスを記録する。
type Recorder interface {
	RecordSessionResolution(result string)
	RecordSessionEvent(event string)
	RecordAuthCallback(outcome string)
}

// セッションイベント名
const (
	EventSignedIn       = "signed_in"
	EventSignedOut      = "signed_out"
	EventTokenRefreshed = "token_refreshed"
)

type nopRecorder struct{}

func (nopRecorder) RecordSessionResolution(string) {}
func (nopRecorder) RecordSessionEvent(string)      {}
func (nopRecorder) RecordAuthCallback(string)      {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
