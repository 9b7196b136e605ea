package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBootstrapAdminCreatesInitialAdmin(t *testing.T) {
	repo := newFakeUserRepo()
	hasher := BcryptHasher{Cost: bcrypt.MinCost}
	pwPath := filepath.Join(t.TempDir(), "initial_admin_password.secret")
	cfg := Config{BootstrapAdminEnabled: true, InitialAdminPasswordPath: pwPath}

	if err := BootstrapAdmin(context.Background(), repo, hasher, cfg); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	has, err := repo.HasAdmin(context.Background())
	if err != nil || !has {
		t.Fatalf("admin must exist after bootstrap, has=%v err=%v", has, err)
	}

	raw, err := os.ReadFile(pwPath)
	if err != nil {
		t.Fatalf("read password file: %v", err)
	}
	password := strings.TrimSpace(string(raw))
	if password == "" {
		t.Fatalf("password file is empty")
	}

	// The written password must authenticate the generated admin.
	svc := NewRepositoryAuthService(repo, hasher)
	p, err := svc.Authenticate(context.Background(), "admin", password)
	if err != nil {
		t.Fatalf("authenticate bootstrap admin: %v", err)
	}
	if !p.HasAuthority("role:admin") {
		t.Fatalf("bootstrap admin must carry role:admin, got %v", p.Authorities)
	}
}

func TestBootstrapAdminIdempotent(t *testing.T) {
	repo := newFakeUserRepo()
	hasher := BcryptHasher{Cost: bcrypt.MinCost}
	cfg := Config{BootstrapAdminEnabled: true, InitialAdminPasswordPath: filepath.Join(t.TempDir(), "pw")}

	if err := BootstrapAdmin(context.Background(), repo, hasher, cfg); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	if err := BootstrapAdmin(context.Background(), repo, hasher, cfg); err != nil {
		t.Fatalf("second bootstrap must be a no-op: %v", err)
	}
	if _, total, _ := repo.List(context.Background(), 1, 100); total != 1 {
		t.Fatalf("expected exactly one user, got %d", total)
	}
}

func TestBootstrapAdminDisabled(t *testing.T) {
	repo := newFakeUserRepo()
	cfg := Config{BootstrapAdminEnabled: false}
	if err := BootstrapAdmin(context.Background(), repo, BcryptHasher{Cost: bcrypt.MinCost}, cfg); err != nil {
		t.Fatalf("disabled bootstrap: %v", err)
	}
	if has, _ := repo.HasAdmin(context.Background()); has {
		t.Fatalf("no admin must be created when disabled")
	}
}
