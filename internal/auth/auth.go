// Package auth resolves the caller's identity from the incoming request.
//
// Two modes are supported. In mock mode the identity comes from the
// X-Auth-User header, which is what the reverse proxy injects in internal
// deployments. SSO mode is reserved for a future gateway integration and
// rejects all requests until it lands.
package auth

import (
	"context"
	"net/http"
	"strings"
)

const (
	ModeMock = "mock"
	ModeSSO  = "sso"
)

// Config controls identity resolution and authorization.
type Config struct {
	// Mode is "mock" or "sso".
	Mode string
	// AllowedDomain restricts logins to one email domain when non-empty,
	// e.g. "example.com".
	AllowedDomain string
	// AdminUsers lists usernames (the part before the @) with admin rights.
	AdminUsers []string
}

// Identity is the authenticated caller.
type Identity struct {
	// Username is the local part of the login, lowercased.
	Username string
	// Email is the full login address when the domain is known.
	Email string
	// Admin is set when the username is in the admin list.
	Admin bool
}

type contextKey string

const identityKey contextKey = "auth_identity"

// FromContext returns the identity stored by Middleware, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// WithIdentity returns a context carrying the given identity. Exposed for
// tests that call handlers directly.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Resolve extracts the caller's identity from the request headers.
// It returns nil when no credentials are present.
func (c *Config) Resolve(r *http.Request) (*Identity, error) {
	if c.Mode == ModeSSO {
		return nil, ErrSSONotConfigured
	}

	raw := strings.TrimSpace(r.Header.Get("X-Auth-User"))
	if raw == "" {
		return nil, nil
	}

	username := strings.ToLower(raw)
	email := ""
	if at := strings.Index(username, "@"); at >= 0 {
		domain := username[at+1:]
		if c.AllowedDomain != "" && domain != c.AllowedDomain {
			return nil, ErrDomainNotAllowed
		}
		email = username
		username = username[:at]
	} else if c.AllowedDomain != "" {
		email = username + "@" + c.AllowedDomain
	}

	return &Identity{
		Username: username,
		Email:    email,
		Admin:    c.isAdmin(username),
	}, nil
}

func (c *Config) isAdmin(username string) bool {
	for _, admin := range c.AdminUsers {
		if strings.EqualFold(admin, username) {
			return true
		}
	}
	return false
}
