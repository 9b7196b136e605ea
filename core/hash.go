package core

import (
	"errors"
	"fmt"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// HashMethod selects the password hashing algorithm.
type HashMethod string

const (
	HashBcrypt   HashMethod = "bcrypt"
	HashArgon2ID HashMethod = "argon2id"
)

var ErrUnknownHasher = errors.New("unknown hash method")

// Hasher performs one-way salted password hashing with constant-time verification.
type Hasher interface {
	Hash(password string) (string, error)
	Check(password, hash string) (bool, error)
}

// HasherFor returns the Hasher for the configured method.
func HasherFor(method HashMethod, bcryptCost int) (Hasher, error) {
	switch method {
	case HashBcrypt, "":
		return BcryptHasher{Cost: bcryptCost}, nil
	case HashArgon2ID:
		return Argon2IDHasher{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownHasher, method)
	}
}

// BcryptHasher implements Hasher with bcrypt. Zero Cost falls back to DefaultCost.
type BcryptHasher struct {
	Cost int
}

var _ Hasher = BcryptHasher{}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(bytes), nil
}

func (h BcryptHasher) Check(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("bcrypt compare: %w", err)
	}
	return true, nil
}

// Argon2IDHasher implements Hasher with argon2id using the library defaults.
type Argon2IDHasher struct{}

var _ Hasher = Argon2IDHasher{}

func (Argon2IDHasher) Hash(password string) (string, error) {
	s, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("argon2id hash: %w", err)
	}
	return s, nil
}

func (Argon2IDHasher) Check(password, hash string) (bool, error) {
	ok, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return false, fmt.Errorf("argon2id compare: %w", err)
	}
	return ok, nil
}
