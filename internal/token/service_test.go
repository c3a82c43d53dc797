package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"user-auth-service/internal/authctx"
	"user-auth-service/internal/clock"
	"user-auth-service/internal/security"
	sessiondomain "user-auth-service/internal/session/domain"
	userdomain "user-auth-service/internal/user/domain"
)

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*sessiondomain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[string]*sessiondomain.Session{}}
}

func (r *memSessionRepo) Save(_ context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) FindByRefreshTokenHash(_ context.Context, hash string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.RefreshTokenHash == hash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) FindByUser(_ context.Context, userID string) ([]*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*sessiondomain.Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSessionRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false, nil
	}
	delete(r.sessions, id)
	return true, nil
}

func (r *memSessionRepo) DeleteAllForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type memUserRepo struct {
	users map[string]*userdomain.User
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*userdomain.User, error) {
	return r.users[id], nil
}

func newTestService(t *testing.T) (*Service, *memSessionRepo, *clock.Manual) {
	t.Helper()
	repo := newMemSessionRepo()
	users := &memUserRepo{users: map[string]*userdomain.User{
		"user-1": {ID: "user-1", Phone: "+15550001111", Role: userdomain.RoleUser},
	}}
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	codec := security.NewCodec(security.StaticKey("0123456789abcdef0123456789abcdef"), 15*time.Minute)
	svc := NewService(repo, users, codec, clk, nil, 30*24*time.Hour, false)
	return svc, repo, clk
}

func TestIssue_ThenValidateAccess(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1", "203.0.113.9", "cli/1.0")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("Issue returned empty tokens")
	}
	if repo.count() != 1 {
		t.Errorf("sessions after issue = %d, want 1", repo.count())
	}

	userID, err := svc.ValidateAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("ValidateAccess userID = %q, want %q", userID, "user-1")
	}
}

func TestIssue_UnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.Issue(context.Background(), "nobody", "203.0.113.9", "cli/1.0"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Issue for unknown user = %v, want ErrUserNotFound", err)
	}
}

func TestIssue_DisabledUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.users.(*memUserRepo).users["user-2"] = &userdomain.User{ID: "user-2", Disabled: true}

	if _, err := svc.Issue(context.Background(), "user-2", "203.0.113.9", "cli/1.0"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Issue for disabled user = %v, want ErrUserNotFound", err)
	}
}

func TestValidateAccess_ExpiresAtBoundary(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1", "203.0.113.9", "cli/1.0")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clk.Advance(15*time.Minute - time.Second)
	if _, err := svc.ValidateAccess(ctx, pair.AccessToken); err != nil {
		t.Errorf("ValidateAccess just before expiry: %v", err)
	}

	clk.Advance(time.Second)
	if _, err := svc.ValidateAccess(ctx, pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("ValidateAccess at expiry = %v, want ErrTokenExpired", err)
	}
}

func TestAuthenticate_CarriesIdentity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1", "203.0.113.9", "cli/1.0")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	authedCtx, ident, err := svc.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ident.UserID != "user-1" {
		t.Errorf("identity UserID = %q, want %q", ident.UserID, "user-1")
	}
	if ident.SessionID != pair.SessionID {
		t.Errorf("identity SessionID = %q, want %q", ident.SessionID, pair.SessionID)
	}
	if ident.Role != userdomain.RoleUser {
		t.Errorf("identity Role = %q, want %q", ident.Role, userdomain.RoleUser)
	}

	if userID, ok := authctx.GetUserID(authedCtx); !ok || userID != "user-1" {
		t.Errorf("context user_id = %q, %v, want %q, true", userID, ok, "user-1")
	}
	if sessionID, ok := authctx.GetSessionID(authedCtx); !ok || sessionID != pair.SessionID {
		t.Errorf("context session_id = %q, %v, want %q, true", sessionID, ok, pair.SessionID)
	}
}

func TestAuthenticate_RejectsExpired(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1", "203.0.113.9", "cli/1.0")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	clk.Advance(15 * time.Minute)

	authedCtx, _, err := svc.Authenticate(ctx, pair.AccessToken)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Authenticate expired token = %v, want ErrTokenExpired", err)
	}
	if _, ok := authctx.GetUserID(authedCtx); ok {
		t.Error("rejected token must not leave identity on the context")
	}
}

func TestValidateAccess_Garbage(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.ValidateAccess(context.Background(), "not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateAccess garbage = %v, want ErrInvalidToken", err)
	}
}

func TestRefresh_RotatesAndInvalidatesOld(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1", "203.0.113.9", "cli/1.0")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	next, err := svc.Refresh(ctx, pair.RefreshToken, "203.0.113.9", "cli/1.0")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Error("Refresh returned the same refresh token")
	}
	if next.UserID != "user-1" {
		t.Errorf("Refresh userID = %q, want %q", next.UserID, "user-1")
	}
	if repo.count() != 1 {
		t.Errorf("sessions after refresh = %d, want 1", repo.count())
	}

	// Replay of the consumed token must fail.
	if _, err := svc.Refresh(ctx, pair.RefreshToken, "203.0.113.9", "cli/1.0"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("replayed refresh = %v, want ErrSessionNotFound", err)
	}
	// The new token still works.
	if _, err := svc.Refresh(ctx, next.RefreshToken, "203.0.113.9", "cli/1.0"); err != nil {
		t.Errorf("refresh with rotated token: %v", err)
	}
}

func TestRefresh_UnknownToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.Refresh(context.Background(), "deadbeef", "203.0.113.9", "cli/1.0"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Refresh unknown token = %v, want ErrSessionNotFound", err)
	}
}

func TestRefresh_ExpiredSession(t *testing.T) {
	svc, repo, clk := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1", "203.0.113.9", "cli/1.0")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clk.Advance(30 * 24 * time.Hour)
	if _, err := svc.Refresh(ctx, pair.RefreshToken, "203.0.113.9", "cli/1.0"); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Refresh after session expiry = %v, want ErrSessionExpired", err)
	}
	if repo.count() != 0 {
		t.Errorf("expired session not cleaned up, %d rows left", repo.count())
	}
}

func TestRefresh_UserDisabledMidSession(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1", "203.0.113.9", "cli/1.0")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	svc.users.(*memUserRepo).users["user-1"].Disabled = true

	if _, err := svc.Refresh(ctx, pair.RefreshToken, "203.0.113.9", "cli/1.0"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Refresh for disabled user = %v, want ErrUserNotFound", err)
	}
	if repo.count() != 0 {
		t.Errorf("disabled user's session not revoked, %d rows left", repo.count())
	}
}

func TestRefresh_RebindsFingerprint(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1", "203.0.113.9", "cli/1.0")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	next, err := svc.Refresh(ctx, pair.RefreshToken, "198.51.100.7", "cli/2.0")
	if err != nil {
		t.Fatalf("Refresh from new device context: %v", err)
	}
	sess, err := repo.FindByRefreshTokenHash(ctx, security.HashRefreshToken(next.RefreshToken))
	if err != nil || sess == nil {
		t.Fatalf("new session not found: %v", err)
	}
	if sess.NetworkAddress != "198.51.100.7" || sess.ClientAgent != "cli/2.0" {
		t.Errorf("new session fingerprint = %q/%q, want rebind to current request", sess.NetworkAddress, sess.ClientAgent)
	}
}

func TestRefresh_StrictFingerprintMismatch(t *testing.T) {
	repo := newMemSessionRepo()
	users := &memUserRepo{users: map[string]*userdomain.User{"user-1": {ID: "user-1"}}}
	codec := security.NewCodec(security.StaticKey("0123456789abcdef0123456789abcdef"), 15*time.Minute)
	strict := NewService(repo, users, codec, clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)), nil, time.Hour, true)
	ctx := context.Background()

	pair, err := strict.Issue(ctx, "user-1", "203.0.113.9", "cli/1.0")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := strict.Refresh(ctx, pair.RefreshToken, "198.51.100.7", "cli/1.0"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("strict refresh from wrong address = %v, want ErrSessionNotFound", err)
	}
	// The session survives a rejected strict refresh; same fingerprint still works.
	if _, err := strict.Refresh(ctx, pair.RefreshToken, "203.0.113.9", "cli/1.0"); err != nil {
		t.Errorf("strict refresh from original fingerprint: %v", err)
	}
}

func TestRefresh_ConcurrentSingleWinner(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1", "203.0.113.9", "cli/1.0")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Refresh(ctx, pair.RefreshToken, "203.0.113.9", "cli/1.0")
		}(i)
	}
	wg.Wait()

	var ok, notFound int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrSessionNotFound):
			notFound++
		default:
			t.Errorf("unexpected refresh error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("concurrent refresh winners = %d, want exactly 1", ok)
	}
	if notFound != callers-1 {
		t.Errorf("concurrent refresh losers = %d, want %d", notFound, callers-1)
	}
	if repo.count() != 1 {
		t.Errorf("sessions after concurrent refresh = %d, want 1", repo.count())
	}
}

func TestRevokeByRefreshToken(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1", "203.0.113.9", "cli/1.0")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.RevokeByRefreshToken(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("RevokeByRefreshToken: %v", err)
	}
	if repo.count() != 0 {
		t.Errorf("sessions after logout = %d, want 0", repo.count())
	}
	if err := svc.RevokeByRefreshToken(ctx, pair.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("double logout = %v, want ErrSessionNotFound", err)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Issue(ctx, "user-1", "203.0.113.9", "cli/1.0"); err != nil {
			t.Fatalf("Issue: %v", err)
		}
	}
	if err := svc.RevokeAllForUser(ctx, "user-1"); err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	if repo.count() != 0 {
		t.Errorf("sessions after revoke-all = %d, want 0", repo.count())
	}
}

func TestListSessions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Issue(ctx, "user-1", "203.0.113.9", "cli/1.0"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Issue(ctx, "user-1", "198.51.100.7", "web/1.0"); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	sessions, err := svc.ListSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("ListSessions len = %d, want 2", len(sessions))
	}
}

func TestSweepExpired(t *testing.T) {
	svc, repo, clk := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Issue(ctx, "user-1", "203.0.113.9", "cli/1.0"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	clk.Advance(31 * 24 * time.Hour)
	n, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("SweepExpired removed %d, want 1", n)
	}
	if repo.count() != 0 {
		t.Errorf("sessions after sweep = %d, want 0", repo.count())
	}
}
