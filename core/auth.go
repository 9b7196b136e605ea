package core

import (
	"context"
	"errors"
)

// Principal is the normalized view of an authenticated identity used by
// authorization decisions. It exists only for a verified credential pair and is
// never persisted outside the session registry.
type Principal struct {
	Username              string   `json:"username"`
	Authorities           []string `json:"authorities"`
	Enabled               bool     `json:"enabled"`
	AccountNonExpired     bool     `json:"account_non_expired"`
	AccountNonLocked      bool     `json:"account_non_locked"`
	CredentialsNonExpired bool     `json:"credentials_non_expired"`
}

// Active reports whether every account status flag permits access.
func (p Principal) Active() bool {
	return p.Enabled && p.AccountNonExpired && p.AccountNonLocked && p.CredentialsNonExpired
}

// HasAuthority reports whether the principal carries the given authority label.
func (p Principal) HasAuthority(name string) bool {
	for _, a := range p.Authorities {
		if a == name {
			return true
		}
	}
	return false
}

var (
	// ErrInvalidCredentials is the single externally visible authentication
	// failure. Callers must not learn whether the username existed.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AuthService defines authentication behaviour.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (Principal, error)
}
