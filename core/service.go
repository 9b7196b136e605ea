package core

import (
	"context"
	"errors"
	"strings"
)

// RepositoryAuthService authenticates against a UserRepository using a Hasher.
type RepositoryAuthService struct {
	users  UserRepository
	hasher Hasher
	// dummyHash is compared against when the username does not exist so the
	// two failure paths cost about the same.
	dummyHash string
}

func NewRepositoryAuthService(users UserRepository, hasher Hasher) *RepositoryAuthService {
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		dummy = ""
	}
	return &RepositoryAuthService{users: users, hasher: hasher, dummyHash: dummy}
}

// Authenticate looks up the username and verifies the password against the
// stored hash. Unknown-user and wrong-password outcomes both surface as
// ErrInvalidCredentials; anything else is a store fault and propagates as-is.
// The plaintext password is never logged.
func (s *RepositoryAuthService) Authenticate(ctx context.Context, username, password string) (Principal, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return Principal{}, ErrInvalidCredentials
	}

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			if s.dummyHash != "" {
				_, _ = s.hasher.Check(password, s.dummyHash)
			}
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, err
	}

	ok, err := s.hasher.Check(password, u.PasswordHash)
	if err != nil {
		return Principal{}, err
	}
	if !ok {
		return Principal{}, ErrInvalidCredentials
	}
	return ToPrincipal(*u), nil
}
