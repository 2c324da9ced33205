package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestResolveMockMode(t *testing.T) {
	cfg := &Config{
		Mode:          ModeMock,
		AllowedDomain: "example.com",
		AdminUsers:    []string{"alice"},
	}

	tests := []struct {
		name         string
		header       string
		wantUsername string
		wantEmail    string
		wantAdmin    bool
		wantErr      error
		wantNil      bool
	}{
		{
			name:    "no header",
			header:  "",
			wantNil: true,
		},
		{
			name:         "bare username gets domain appended",
			header:       "bob",
			wantUsername: "bob",
			wantEmail:    "bob@example.com",
		},
		{
			name:         "full email in allowed domain",
			header:       "alice@example.com",
			wantUsername: "alice",
			wantEmail:    "alice@example.com",
			wantAdmin:    true,
		},
		{
			name:         "uppercase login is normalized",
			header:       "Alice@Example.com",
			wantUsername: "alice",
			wantEmail:    "alice@example.com",
			wantAdmin:    true,
		},
		{
			name:    "foreign domain rejected",
			header:  "mallory@evil.com",
			wantErr: ErrDomainNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("X-Auth-User", tt.header)
			}

			id, err := cfg.Resolve(r)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if id != nil {
					t.Fatalf("expected nil identity, got %+v", id)
				}
				return
			}
			if id == nil {
				t.Fatal("expected identity, got nil")
			}
			if id.Username != tt.wantUsername {
				t.Errorf("username = %q, want %q", id.Username, tt.wantUsername)
			}
			if id.Email != tt.wantEmail {
				t.Errorf("email = %q, want %q", id.Email, tt.wantEmail)
			}
			if id.Admin != tt.wantAdmin {
				t.Errorf("admin = %v, want %v", id.Admin, tt.wantAdmin)
			}
		})
	}
}

func TestResolveNoDomainRestriction(t *testing.T) {
	cfg := &Config{Mode: ModeMock}

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Auth-User", "carol@anywhere.org")

	id, err := cfg.Resolve(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Username != "carol" || id.Email != "carol@anywhere.org" {
		t.Errorf("got %+v", id)
	}
}

func TestResolveSSOMode(t *testing.T) {
	cfg := &Config{Mode: ModeSSO}

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Auth-User", "alice")

	if _, err := cfg.Resolve(r); !errors.Is(err, ErrSSONotConfigured) {
		t.Fatalf("expected ErrSSONotConfigured, got %v", err)
	}
}
