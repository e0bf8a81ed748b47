package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reelsync/reelsync/internal/auth"
	"github.com/reelsync/reelsync/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/tasks", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if seen == "" {
		t.Error("no request id attached to context")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Error("response header does not echo the request id")
	}

	// A caller-supplied id is passed through.
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "caller-id" {
		t.Errorf("request id = %q, want caller-id", seen)
	}
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	cfg := config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization"},
		MaxAge:         10 * time.Minute,
	}
	handler := CORSMiddleware(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://console.local")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://console.local" {
		t.Errorf("allow-origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("allow-methods missing on preflight")
	}
	if rec.Header().Get("Access-Control-Max-Age") != "600" {
		t.Errorf("max-age = %q, want 600", rec.Header().Get("Access-Control-Max-Age"))
	}
}

func TestCORSMiddlewareDisallowedOrigin(t *testing.T) {
	cfg := config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"http://console.local"},
	}
	handler := CORSMiddleware(cfg)(okHandler())

	req := httptest.NewRequest("GET", "/api/tasks", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("allow-origin set for a disallowed origin")
	}
}

func TestMaxBodySizeMiddleware(t *testing.T) {
	handler := MaxBodySizeMiddleware(10)(okHandler())

	req := httptest.NewRequest("POST", "/api/tasks", nil)
	req.ContentLength = 100
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func authService(t *testing.T) *auth.Service {
	t.Helper()

	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	return auth.NewService(&config.AuthConfig{
		Enabled:      true,
		PasswordHash: hash,
		JWTSecret:    "test-secret",
		JWTIssuer:    "reelsync",
		TokenTTL:     time.Hour,
	})
}

func TestAuthMiddlewareRejectsWithoutToken(t *testing.T) {
	handler := AuthMiddleware(authService(t))(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/tasks", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddlewareOpenPaths(t *testing.T) {
	handler := AuthMiddleware(authService(t))(okHandler())

	for _, path := range []string{"/", "/health", "/metrics", "/api/auth/login"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("open path %s blocked with %d", path, rec.Code)
		}
	}
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	svc := authService(t)
	handler := AuthMiddleware(svc)(okHandler())

	token, _, err := svc.Login("hunter2")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	// The websocket path passes the token as a query parameter.
	req = httptest.NewRequest("GET", "/api/realtime?token="+token, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("query token status = %d, want 200", rec.Code)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/tasks", "/api/tasks"},
		{"/api/tasks/6f1e9f9a-0b5d-4f0e-9b39-0a2f1c3d4e5f/run", "/api/tasks/:id/run"},
		{"/api/entities/not-a-uuid", "/api/entities/not-a-uuid"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
