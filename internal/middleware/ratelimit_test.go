package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3, nil)

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/items", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status code = %d, want %d", i, rec.Code, http.StatusOK)
		}
	}
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest("GET", "/items", nil)
	first.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status code = %d, want %d", rec.Code, http.StatusOK)
	}

	second := httptest.NewRequest("GET", "/items", nil)
	second.RemoteAddr = "10.0.0.1:6000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status code = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimiter_SeparateCallers(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, addr := range []string{"10.0.0.1:5000", "10.0.0.2:5000"} {
		req := httptest.NewRequest("GET", "/items", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("caller %s: status code = %d, want %d", addr, rec.Code, http.StatusOK)
		}
	}
}

func TestRateLimiter_KeyedByUserID(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Same remote host, distinct authenticated users.
	for _, user := range []string{"user-1", "user-2"} {
		req := httptest.NewRequest("GET", "/items", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		req = req.WithContext(WithUserID(req.Context(), user))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("user %s: status code = %d, want %d", user, rec.Code, http.StatusOK)
		}
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)

	for i := 0; i < 10001; i++ {
		rl.getLimiter(fmt.Sprintf("caller-%d", i))
	}

	rl.Cleanup()

	rl.mu.Lock()
	size := len(rl.limiters)
	rl.mu.Unlock()

	if size != 0 {
		t.Errorf("limiters size after cleanup = %d, want 0", size)
	}
}

func TestRemoteHost(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"10.0.0.1:5000", "10.0.0.1"},
		{"[::1]:5000", "::1"},
		{"not-host-port", "not-host-port"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/items", nil)
		req.RemoteAddr = tt.addr

		if got := remoteHost(req); got != tt.want {
			t.Errorf("remoteHost(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
