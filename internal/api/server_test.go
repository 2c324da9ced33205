package api

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/sbiochat/dashboard/internal/auth"
	"github.com/sbiochat/dashboard/internal/ratelimit"
	"github.com/sbiochat/dashboard/internal/stats"
)

// newTestServer builds a router with no database behind it. Only routes
// that reject before touching the store can be exercised here; everything
// else is covered by the integration tests.
func newTestServer(t *testing.T, authCfg *auth.Config) http.Handler {
	t.Helper()
	limiter := ratelimit.New(1000, 1000)
	t.Cleanup(limiter.Stop)

	loc := time.FixedZone("UTC+9", 9*3600)
	s := NewServer(nil, stats.NewStore(nil, loc), authCfg, limiter, loc, []string{"*"})
	return s.SetupRoutes()
}

func mockAuth() *auth.Config {
	return &auth.Config{
		Mode:          auth.ModeMock,
		AllowedDomain: "example.com",
		AdminUsers:    []string{"admin"},
	}
}

func doRequest(handler http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	if user != "" {
		r.Header.Set("X-Auth-User", user)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Code
}

func TestAuthenticationRequired(t *testing.T) {
	handler := newTestServer(t, mockAuth())

	w := doRequest(handler, "GET", "/api/v1/stats/overview", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if code := errCode(t, w); code != "unauthorized" {
		t.Errorf("code = %s, want unauthorized", code)
	}
}

func TestAuthenticationForeignDomain(t *testing.T) {
	handler := newTestServer(t, mockAuth())

	w := doRequest(handler, "GET", "/api/v1/stats/overview", "eve@rival.com", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if code := errCode(t, w); code != "forbidden" {
		t.Errorf("code = %s, want forbidden", code)
	}
}

func TestSSOModeNotImplemented(t *testing.T) {
	handler := newTestServer(t, &auth.Config{Mode: auth.ModeSSO})

	w := doRequest(handler, "GET", "/api/v1/stats/overview", "alice", "")
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", w.Code)
	}
	if code := errCode(t, w); code != "not_implemented" {
		t.Errorf("code = %s, want not_implemented", code)
	}
}

func TestMe(t *testing.T) {
	handler := newTestServer(t, mockAuth())

	w := doRequest(handler, "GET", "/api/v1/auth/me", "Admin@example.com", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		IsAdmin  bool   `json:"is_admin"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Username != "admin" || body.Email != "admin@example.com" || !body.IsAdmin {
		t.Errorf("body = %+v", body)
	}
}

func TestPaginationValidation(t *testing.T) {
	handler := newTestServer(t, mockAuth())

	tests := []struct {
		name string
		path string
	}{
		{"zero limit", "/api/v1/stats/workspace-ranking?limit=0"},
		{"limit over cap", "/api/v1/stats/developer-ranking?limit=500"},
		{"negative offset", "/api/v1/stats/group-ranking?offset=-1"},
		{"malformed limit", "/api/v1/stats/workspace-ranking?limit=abc"},
		{"malformed offset", "/api/v1/stats/workspace-ranking?offset=1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(handler, "GET", tt.path, "alice", "")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if code := errCode(t, w); code != "invalid_range" {
				t.Errorf("code = %s, want invalid_range", code)
			}
		})
	}
}

func TestDailyRangeValidation(t *testing.T) {
	handler := newTestServer(t, mockAuth())

	tests := []struct {
		name string
		path string
	}{
		{"malformed from", "/api/v1/stats/daily?from=01-01-2024"},
		{"malformed to", "/api/v1/stats/daily?to=yesterday"},
		{"inverted range", "/api/v1/stats/daily?from=2024-02-01&to=2024-01-01"},
		{"oversized range", "/api/v1/stats/daily?from=2023-01-01&to=2024-06-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(handler, "GET", tt.path, "alice", "")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if code := errCode(t, w); code != "invalid_range" {
				t.Errorf("code = %s, want invalid_range", code)
			}
		})
	}
}

func TestParseDailyRange(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	s := NewServer(nil, stats.NewStore(nil, loc), mockAuth(), nil, loc, nil)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, loc)

	tests := []struct {
		name     string
		query    string
		wantFrom string
		wantTo   string
		wantErr  bool
	}{
		{
			name:     "no parameters uses the trailing window ending today",
			query:    "",
			wantFrom: "2024-02-15",
			wantTo:   "2024-03-15",
		},
		{
			name:     "to alone anchors the window at to, not today",
			query:    "?to=2024-01-01",
			wantFrom: "2023-12-03",
			wantTo:   "2024-01-01",
		},
		{
			name:     "from alone keeps today as the end",
			query:    "?from=2024-03-01",
			wantFrom: "2024-03-01",
			wantTo:   "2024-03-15",
		},
		{
			name:     "both parameters taken as given",
			query:    "?from=2024-01-10&to=2024-01-20",
			wantFrom: "2024-01-10",
			wantTo:   "2024-01-20",
		},
		{
			name:    "inverted range rejected",
			query:   "?from=2024-02-01&to=2024-01-01",
			wantErr: true,
		},
		{
			name:    "malformed to rejected",
			query:   "?to=yesterday",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/v1/stats/daily"+tt.query, nil)
			from, to, err := s.parseDailyRange(r, now)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := from.Format("2006-01-02"); got != tt.wantFrom {
				t.Errorf("from = %s, want %s", got, tt.wantFrom)
			}
			if got := to.Format("2006-01-02"); got != tt.wantTo {
				t.Errorf("to = %s, want %s", got, tt.wantTo)
			}
		})
	}
}

func TestPackageValidation(t *testing.T) {
	handler := newTestServer(t, mockAuth())

	tests := []struct {
		name string
		body string
	}{
		{"empty name", `{"package_name": ""}`},
		{"whitespace only", `{"package_name": "   "}`},
		{"shell metacharacters", `{"package_name": "pandas; rm -rf /"}`},
		{"path traversal", `{"package_name": "../etc/passwd"}`},
		{"not json", `pandas`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(handler, "POST", "/api/v1/packages", "alice", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestPackageBadStatusFilter(t *testing.T) {
	handler := newTestServer(t, mockAuth())

	w := doRequest(handler, "GET", "/api/v1/packages?status=shipped", "alice", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestPackageBadID(t *testing.T) {
	handler := newTestServer(t, mockAuth())

	w := doRequest(handler, "DELETE", "/api/v1/packages/abc", "alice", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	handler := newTestServer(t, mockAuth())

	w := doRequest(handler, "PATCH", "/api/v1/packages/1/status", "alice", `{"status": "installed"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if code := errCode(t, w); code != "forbidden" {
		t.Errorf("code = %s, want forbidden", code)
	}

	w = doRequest(handler, "GET", "/api/v1/packages/audit-log", "alice", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestAdminStatusValidation(t *testing.T) {
	handler := newTestServer(t, mockAuth())

	w := doRequest(handler, "PATCH", "/api/v1/packages/1/status", "admin", `{"status": "shipped"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestNegotiateEncoding(t *testing.T) {
	tests := []struct {
		accept string
		want   string
	}{
		{"", ""},
		{"identity", ""},
		{"gzip", "gzip"},
		{"gzip, deflate", "gzip"},
		{"gzip, deflate, br", "br"},
		{"br;q=1.0, gzip;q=0.8", "br"},
		{"deflate", ""},
	}

	for _, tt := range tests {
		if got := negotiateEncoding(tt.accept); got != tt.want {
			t.Errorf("negotiateEncoding(%q) = %q, want %q", tt.accept, got, tt.want)
		}
	}
}

func TestResponseCompression(t *testing.T) {
	handler := newTestServer(t, mockAuth())

	t.Run("gzip", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		if got := w.Header().Get("Content-Encoding"); got != "gzip" {
			t.Fatalf("Content-Encoding = %q, want gzip", got)
		}
		zr, err := gzip.NewReader(w.Body)
		if err != nil {
			t.Fatalf("failed to create gzip reader: %v", err)
		}
		defer zr.Close()
		assertRootBody(t, zr)
	})

	t.Run("brotli wins over gzip", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Accept-Encoding", "gzip, br")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		if got := w.Header().Get("Content-Encoding"); got != "br" {
			t.Fatalf("Content-Encoding = %q, want br", got)
		}
		assertRootBody(t, brotli.NewReader(w.Body))
	})

	t.Run("identity passthrough", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		if got := w.Header().Get("Content-Encoding"); got != "" {
			t.Fatalf("Content-Encoding = %q, want none", got)
		}
		assertRootBody(t, w.Body)
	})
}

func assertRootBody(t *testing.T, r io.Reader) {
	t.Helper()
	var body struct {
		Service string `json:"service"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Service != "chat-usage-dashboard" {
		t.Errorf("service = %q", body.Service)
	}
}
