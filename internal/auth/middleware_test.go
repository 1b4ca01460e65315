package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func issueToken(t *testing.T, secret []byte, roles ...string) string {
	t.Helper()
	token, err := Issue(secret, Claims{UserID: "u1", Roles: roles}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func TestMiddleware_AcceptsBearerToken(t *testing.T) {
	secret := []byte("test-secret")
	token := issueToken(t, secret, RoleOperator)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims == nil {
			t.Fatalf("expected claims in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/playlists/pl-1/take", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	Middleware(secret)(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMiddleware_RejectsQueryToken(t *testing.T) {
	secret := []byte("test-secret")
	token := issueToken(t, secret, RoleOperator)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/studios?token="+token, nil)
	rr := httptest.NewRecorder()

	Middleware(secret)(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for query token auth, got %d", rr.Code)
	}
}

func TestMiddleware_AcceptsQueryTokenForWebSocketUpgrade(t *testing.T) {
	secret := []byte("test-secret")
	token := issueToken(t, secret, RoleViewer)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			t.Fatalf("expected claims in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, WebSocketPath+"?studio=s1&token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	rr := httptest.NewRecorder()

	Middleware(secret)(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for websocket query token auth, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMiddleware_NoSecretRunsAsAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || !claims.HasRole(RoleOperator) {
			t.Fatalf("expected admin claims without a secret")
		}
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	Middleware(nil)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/studios", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestRequireRole(t *testing.T) {
	secret := []byte("test-secret")
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := Middleware(secret)(RequireRole(RoleOperator)(ok))

	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{"operator", []string{RoleOperator}, http.StatusOK},
		{"admin", []string{RoleAdmin}, http.StatusOK},
		{"viewer", []string{RoleViewer}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/playlists/pl-1/take", nil)
			req.Header.Set("Authorization", "Bearer "+issueToken(t, secret, tt.roles...))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestClaimsFromContext(t *testing.T) {
	if _, ok := ClaimsFromContext(context.Background()); ok {
		t.Fatal("expected no claims on a bare context")
	}
	if _, ok := ClaimsFromContext(withClaims(context.Background(), nil)); ok {
		t.Fatal("expected nil claims to be treated as absent")
	}
	claims, ok := ClaimsFromContext(withClaims(context.Background(), &Claims{UserID: "u1"}))
	if !ok || claims.UserID != "u1" {
		t.Fatalf("got %+v, %v", claims, ok)
	}
}
