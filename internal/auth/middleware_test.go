package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func authTestHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			t.Error("handler reached without a user ID in context")
		}
		w.Write([]byte(userID))
	})
}

func TestRequireAuthBearerHeader(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Mint("user_abc123", time.Hour)
	if err != nil {
		t.Fatalf("Mint() error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	RequireAuth(ts)(authTestHandler(t)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "user_abc123" {
		t.Errorf("user ID = %q, want %q", got, "user_abc123")
	}
}

func TestRequireAuthSessionCookie(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Mint("user_abc123", time.Hour)
	if err != nil {
		t.Fatalf("Mint() error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	rec := httptest.NewRecorder()

	RequireAuth(ts)(authTestHandler(t)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	ts := newTestTokenService(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without credentials")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	rec := httptest.NewRecorder()

	RequireAuth(ts)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
}

func TestRequireAuthRejectsBadToken(t *testing.T) {
	ts := newTestTokenService(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached with an invalid token")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()

	RequireAuth(ts)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
