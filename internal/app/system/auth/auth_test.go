package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/globaltrotter/globaltrotter/internal/app/system/auth"
	"go.uber.org/zap"
)

const testSecret = "test-jwt-secret-at-least-32-bytes!!"

func newTestSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(
		"test-session-key-must-be-32-chars-long",
		"test-session",
		"",
		24*time.Hour,
		false,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm.UseTokens(auth.NewTokens(testSecret, 15*time.Minute, time.Hour))
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewSessionManager_EmptyKey(t *testing.T) {
	if _, err := auth.NewSessionManager("", "", "", time.Hour, false, zap.NewNop()); err == nil {
		t.Error("expected error for empty session key")
	}
}

func TestRequireSignedIn_NoUser_Returns401(t *testing.T) {
	sm := newTestSessionManager(t)
	called := false

	req := httptest.NewRequest("GET", "/api/trips", nil)
	rec := httptest.NewRecorder()
	sm.RequireSignedIn(okHandler(&called)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if called {
		t.Error("handler should not run")
	}
}

func TestRequireSignedIn_WithUser_Proceeds(t *testing.T) {
	sm := newTestSessionManager(t)
	called := false

	req := withTestUser(httptest.NewRequest("GET", "/api/trips", nil), "traveler@example.com")
	rec := httptest.NewRecorder()
	sm.RequireSignedIn(okHandler(&called)).ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Errorf("expected handler to run with 200, got called=%v code=%d", called, rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	sm := newTestSessionManager(t)
	sm.SetAdmins([]string{" Admin@Example.com "})

	tests := []struct {
		name  string
		email string
		want  int
	}{
		{"admin", "admin@example.com", http.StatusOK},
		{"admin mixed case", "ADMIN@example.com", http.StatusOK},
		{"non-admin", "traveler@example.com", http.StatusForbidden},
		{"anonymous", "", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest("GET", "/api/admin/trips", nil)
			if tc.email != "" {
				req = withTestUser(req, tc.email)
			}
			rec := httptest.NewRecorder()
			sm.RequireAdmin(okHandler(&called)).ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("expected status %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestLoadSessionUser_Bearer(t *testing.T) {
	sm := newTestSessionManager(t)
	pair, err := auth.NewTokens(testSecret, 15*time.Minute, time.Hour).IssuePair(auth.Subject{
		UserID: "507f1f77bcf86cd799439011", Email: "t@example.com", Username: "traveler",
	})
	if err != nil {
		t.Fatal(err)
	}

	var got *auth.SessionUser
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.Username != "traveler" || got.Email != "t@example.com" {
		t.Fatalf("expected user from bearer token, got %+v", got)
	}

	// A refresh token is not an access credential.
	got = nil
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != nil {
		t.Errorf("refresh token must not authenticate, got %+v", got)
	}
}

func TestSignInSignOut_Cookie(t *testing.T) {
	sm := newTestSessionManager(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	if err := sm.SignIn(rec, req, auth.SessionUser{ID: "abc", Username: "traveler", Email: "t@example.com"}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	var got *auth.SessionUser
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	}))
	req = httptest.NewRequest("GET", "/api/trips", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got == nil || got.ID != "abc" {
		t.Fatalf("expected user from cookie, got %+v", got)
	}

	rec = httptest.NewRecorder()
	if err := sm.SignOut(rec, req); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	out := rec.Result().Cookies()
	if len(out) == 0 || out[0].MaxAge >= 0 {
		t.Errorf("expected an expiring cookie, got %+v", out)
	}
}

func TestCurrentUser_NoUser(t *testing.T) {
	user, ok := auth.CurrentUser(httptest.NewRequest("GET", "/", nil))
	if ok || user != nil {
		t.Error("expected no user in context")
	}
}

// withTestUser injects a SessionUser into the request context for testing.
func withTestUser(r *http.Request, email string) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:       "507f1f77bcf86cd799439011", // Valid ObjectID hex
		Username: "traveler",
		Email:    email,
	})
}

type stubFetcher struct{ user *auth.SessionUser }

func (s stubFetcher) FetchUser(_ context.Context, _ string) *auth.SessionUser { return s.user }

func TestLoadSessionUser_FetcherRefreshesUser(t *testing.T) {
	tests := []struct {
		name    string
		fetched *auth.SessionUser
		want    string
	}{
		{"renamed", &auth.SessionUser{ID: "abc", Username: "renamed", Email: "t@example.com"}, "renamed"},
		{"deleted", nil, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sm := newTestSessionManager(t).UseFetcher(stubFetcher{user: tc.fetched})

			rec := httptest.NewRecorder()
			if err := sm.SignIn(rec, httptest.NewRequest("POST", "/", nil), auth.SessionUser{ID: "abc", Username: "old"}); err != nil {
				t.Fatal(err)
			}

			var got *auth.SessionUser
			h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = auth.CurrentUser(r)
			}))
			req := httptest.NewRequest("GET", "/", nil)
			for _, c := range rec.Result().Cookies() {
				req.AddCookie(c)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			name := ""
			if got != nil {
				name = got.Username
			}
			if name != tc.want {
				t.Errorf("username = %q, want %q", name, tc.want)
			}
		})
	}
}

func TestSessionCookie_SameSiteLax(t *testing.T) {
	for _, secure := range []bool{false, true} {
		sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, secure, zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}
		rec := httptest.NewRecorder()
		if err := sm.SignIn(rec, httptest.NewRequest("POST", "/", nil), auth.SessionUser{ID: "abc", Username: "t"}); err != nil {
			t.Fatal(err)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 {
			t.Fatalf("secure=%v: cookies = %d, want 1", secure, len(cookies))
		}
		c := cookies[0]
		if c.SameSite != http.SameSiteLaxMode {
			t.Errorf("secure=%v: SameSite = %v, want Lax", secure, c.SameSite)
		}
		if c.Secure != secure || !c.HttpOnly {
			t.Errorf("secure=%v: Secure=%v HttpOnly=%v", secure, c.Secure, c.HttpOnly)
		}
	}
}
