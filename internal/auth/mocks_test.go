package auth

import (
	"context"
	"sync"

	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/platform"
	"github.com/hitoshi/vidshare/internal/repository"
)

// --- モック定義 ---

type mockPlatform struct {
	refreshFn  func(ctx context.Context, refreshToken string) (*platform.Session, error)
	getUserFn  func(ctx context.Context, accessToken string) (*platform.User, error)
	exchangeFn func(ctx context.Context, code, verifier string) (*platform.Session, error)
	signUpFn   func(ctx context.Context, p platform.SignUpParams) (*platform.SignUpResult, error)
	signInFn   func(ctx context.Context, email, password string) (*platform.Session, error)
	signOutFn  func(ctx context.Context, accessToken string) error
	resendFn   func(ctx context.Context, email, redirectTo string) error

	mu           sync.Mutex
	getUserCalls int
	refreshCalls int
}

func (m *mockPlatform) RefreshSession(ctx context.Context, refreshToken string) (*platform.Session, error) {
	m.mu.Lock()
	m.refreshCalls++
	m.mu.Unlock()
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return nil, &platform.Error{Status: 400, Message: "invalid refresh token"}
}

func (m *mockPlatform) GetUser(ctx context.Context, accessToken string) (*platform.User, error) {
	m.mu.Lock()
	m.getUserCalls++
	m.mu.Unlock()
	if m.getUserFn != nil {
		return m.getUserFn(ctx, accessToken)
	}
	return nil, &platform.Error{Status: 401, Message: "invalid JWT"}
}

func (m *mockPlatform) ExchangeCodeForSession(ctx context.Context, code, verifier string) (*platform.Session, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code, verifier)
	}
	return nil, &platform.Error{Status: 400, Message: "invalid flow state"}
}

func (m *mockPlatform) SignUp(ctx context.Context, p platform.SignUpParams) (*platform.SignUpResult, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, p)
	}
	return nil, &platform.Error{Status: 422, Message: "signup disabled"}
}

func (m *mockPlatform) SignInWithPassword(ctx context.Context, email, password string) (*platform.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, &platform.Error{Status: 400, Message: "Invalid login credentials"}
}

func (m *mockPlatform) SignOut(ctx context.Context, accessToken string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, accessToken)
	}
	return nil
}

func (m *mockPlatform) Resend(ctx context.Context, email, redirectTo string) error {
	if m.resendFn != nil {
		return m.resendFn(ctx, email, redirectTo)
	}
	return nil
}

// memProfileRepo はprofilesテーブルの主キーとusername一意制約を再現するインメモリ実装。
type memProfileRepo struct {
	mu       sync.Mutex
	rows     map[string]*model.Profile
	taken    map[string]bool // 他ユーザーが使用中のusername
	inserts  int
	findErr  error
	createFn func(p *model.Profile) (bool, error)
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{rows: map[string]*model.Profile{}, taken: map[string]bool{}}
}

func (m *memProfileRepo) FindByID(_ context.Context, id string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memProfileRepo) CreateIfAbsent(_ context.Context, p *model.Profile) (bool, error) {
	if m.createFn != nil {
		return m.createFn(p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.ID]; ok {
		return false, nil
	}
	if m.taken[p.Username] {
		return false, repository.ErrUsernameTaken
	}
	cp := *p
	m.rows[p.ID] = &cp
	m.taken[p.Username] = true
	m.inserts++
	return true, nil
}

func (m *memProfileRepo) Update(_ context.Context, id string, u model.ProfileUpdate) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	p.Username = u.Username
	cp := *p
	return &cp, nil
}

type recordingRecorder struct {
	mu          sync.Mutex
	resolutions []string
	events      []string
	callbacks   []string
}

func (r *recordingRecorder) RecordSessionResolution(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolutions = append(r.resolutions, result)
}

func (r *recordingRecorder) RecordSessionEvent(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingRecorder) RecordAuthCallback(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, outcome)
}

func sessionFor(userID, accessToken string) *model.Session {
	return &model.Session{UserID: userID, AccessToken: accessToken, RefreshToken: "refresh"}
}
