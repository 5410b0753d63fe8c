package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/plannr/internal/auth"
	"github.com/dukerupert/plannr/internal/database"
	"github.com/dukerupert/plannr/internal/store"
)

func setupAuthMiddleware(t *testing.T) (*auth.Tokens, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return auth.NewTokens("test-secret", time.Hour), store.NewUserStore(db)
}

func TestRequireAuthNoHeader(t *testing.T) {
	tokens, users := setupAuthMiddleware(t)

	handler := RequireAuth(tokens, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	tokens, users := setupAuthMiddleware(t)

	handler := RequireAuth(tokens, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	for _, header := range []string{"Bearer invalid-token", "Basic abc", "Bearer"} {
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%q: status = %d, want %d", header, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestRequireAuthDeletedUser(t *testing.T) {
	tokens, users := setupAuthMiddleware(t)

	token, err := tokens.Issue(999)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	handler := RequireAuth(tokens, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	tokens, users := setupAuthMiddleware(t)

	u, err := users.Create("alice@example.com", "Alice", "hash", "Europe/Berlin")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := tokens.Issue(u.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var got auth.AuthContext
	handler := RequireAuth(tokens, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got.UserID != u.ID || got.Timezone != "Europe/Berlin" {
		t.Errorf("auth context = %+v", got)
	}
}

func TestRequireAuthWebSocketQueryToken(t *testing.T) {
	tokens, users := setupAuthMiddleware(t)

	u, err := users.Create("alice@example.com", "Alice", "hash", "UTC")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, _ := tokens.Issue(u.ID)

	reached := false
	handler := RequireAuth(tokens, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	// Query tokens are ignored outside the WebSocket handshake.
	req := httptest.NewRequest("GET", "/api/me?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if reached || rec.Code != http.StatusUnauthorized {
		t.Fatalf("plain request with query token: reached=%v status=%d", reached, rec.Code)
	}

	req = httptest.NewRequest("GET", "/ws?token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if !reached {
		t.Errorf("upgrade request with query token should pass, status=%d", rec.Code)
	}
}
