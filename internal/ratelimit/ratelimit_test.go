package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sbiochat/dashboard/internal/auth"
)

func TestLimiterBurst(t *testing.T) {
	l := New(1, 3)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("key") {
			t.Fatalf("request %d should be within burst", i+1)
		}
	}
	if l.Allow("key") {
		t.Fatal("request beyond burst should be rejected")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New(1, 1)
	defer l.Stop()

	if !l.Allow("a") {
		t.Fatal("first request for key a should pass")
	}
	if l.Allow("a") {
		t.Fatal("second request for key a should be rejected")
	}
	if !l.Allow("b") {
		t.Fatal("key b has its own bucket")
	}
}

func TestMiddlewareKeysByUser(t *testing.T) {
	l := New(1, 1)
	defer l.Stop()

	handler := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(user string) int {
		r := httptest.NewRequest("GET", "/api/v1/stats/overview", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		if user != "" {
			r = r.WithContext(auth.WithIdentity(r.Context(), &auth.Identity{Username: user}))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}

	if code := send("alice"); code != http.StatusOK {
		t.Fatalf("alice first request: got %d", code)
	}
	if code := send("alice"); code != http.StatusTooManyRequests {
		t.Fatalf("alice second request: got %d, want 429", code)
	}
	// Same IP, different user: separate bucket.
	if code := send("bob"); code != http.StatusOK {
		t.Fatalf("bob first request: got %d", code)
	}
}
