package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// fakeUserRepo is an in-memory UserRepository for tests.
type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[string]UserRecord
	nextID  int64
	findErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]UserRecord{}, nextID: 1}
}

func (r *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) Create(ctx context.Context, username, passwordHash, role string, authorities []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[username]; ok {
		return 0, ErrUsernameTaken
	}
	if authorities == nil {
		authorities = []string{}
	}
	id := r.nextID
	r.nextID++
	r.users[username] = UserRecord{ID: id, Username: username, PasswordHash: passwordHash, Role: role, Authorities: authorities}
	return id, nil
}

func (r *fakeUserRepo) HasAdmin(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Role == "admin" {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) List(ctx context.Context, page, perPage int) ([]AdminUserListItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]AdminUserListItem, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, AdminUserListItem{ID: u.ID, Username: u.Username, Role: u.Role, Authorities: u.Authorities, CreatedAt: u.CreatedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := (page - 1) * perPage
	if start > len(all) {
		start = len(all)
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := BcryptHasher{Cost: bcrypt.MinCost}.Hash(password)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	return hash
}

func TestAuthenticateSuccess(t *testing.T) {
	repo := newFakeUserRepo()
	if _, err := repo.Create(context.Background(), "alice", mustHash(t, "secret"), "user", nil); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	svc := NewRepositoryAuthService(repo, BcryptHasher{Cost: bcrypt.MinCost})

	p, err := svc.Authenticate(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.Username != "alice" {
		t.Fatalf("username = %q", p.Username)
	}
	if !p.Active() {
		t.Fatalf("principal must be active")
	}
	if !p.HasAuthority("role:user") {
		t.Fatalf("expected role:user authority, got %v", p.Authorities)
	}
}

func TestAuthenticateFailuresCollapse(t *testing.T) {
	repo := newFakeUserRepo()
	if _, err := repo.Create(context.Background(), "alice", mustHash(t, "secret"), "user", nil); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	svc := NewRepositoryAuthService(repo, BcryptHasher{Cost: bcrypt.MinCost})

	_, wrongPass := svc.Authenticate(context.Background(), "alice", "not-secret")
	_, unknownUser := svc.Authenticate(context.Background(), "mallory", "whatever")

	if !errors.Is(wrongPass, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", wrongPass)
	}
	if !errors.Is(unknownUser, ErrInvalidCredentials) {
		t.Fatalf("unknown user: got %v", unknownUser)
	}
	// The two failure paths must be indistinguishable to callers.
	if wrongPass.Error() != unknownUser.Error() {
		t.Fatalf("failure errors differ: %q vs %q", wrongPass, unknownUser)
	}
}

func TestAuthenticateEmptyInputs(t *testing.T) {
	svc := NewRepositoryAuthService(newFakeUserRepo(), BcryptHasher{Cost: bcrypt.MinCost})
	if _, err := svc.Authenticate(context.Background(), "", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty username: got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "alice", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty password: got %v", err)
	}
}

func TestAuthenticateStoreFaultPropagates(t *testing.T) {
	repo := newFakeUserRepo()
	repo.findErr = fmt.Errorf("connection refused")
	svc := NewRepositoryAuthService(repo, BcryptHasher{Cost: bcrypt.MinCost})

	_, err := svc.Authenticate(context.Background(), "alice", "secret")
	if err == nil {
		t.Fatalf("store fault must not be swallowed")
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("store fault must not be collapsed into a credential failure: %v", err)
	}
}
