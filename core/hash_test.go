package core

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	ok, err := h.Check("secret", hash)
	if err != nil {
		t.Fatalf("check error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match for correct password")
	}

	ok, err = h.Check("wrong", hash)
	if err != nil {
		t.Fatalf("mismatch must not be an error, got: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestArgon2IDHasherRoundTrip(t *testing.T) {
	h := Argon2IDHasher{}
	hash, err := h.Hash("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	ok, err := h.Check("secret", hash)
	if err != nil {
		t.Fatalf("check error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match for correct password")
	}

	ok, err = h.Check("wrong", hash)
	if err != nil {
		t.Fatalf("mismatch must not be an error, got: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestHasherFor(t *testing.T) {
	if _, err := HasherFor(HashBcrypt, 0); err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if _, err := HasherFor(HashArgon2ID, 0); err != nil {
		t.Fatalf("argon2id: %v", err)
	}
	// empty method defaults to bcrypt
	if _, err := HasherFor("", 0); err != nil {
		t.Fatalf("default: %v", err)
	}
	if _, err := HasherFor("md5", 0); !errors.Is(err, ErrUnknownHasher) {
		t.Fatalf("expected ErrUnknownHasher, got: %v", err)
	}
}
