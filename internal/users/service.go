// Package users holds account business logic on top of the store contract.
package users

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ciata/ciata-cms/internal/models"
	"github.com/ciata/ciata-cms/internal/store"
)

// ErrInvalidCredentials is returned for both an unknown username and a
// wrong password; callers must not be able to tell the two apart.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidInput indicates a malformed create request (empty username or
// password, unknown role).
var ErrInvalidInput = errors.New("invalid user input")

// dummyHash keeps the unknown-user path doing a real bcrypt comparison so
// its cost matches the wrong-password path.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("ciata-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// Service encapsulates user-related business logic
type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Create hashes the plaintext password and persists a new user. The store
// appends the paired user.create audit entry atomically with the insert;
// the plaintext never reaches the store or the logs.
func (s *Service) Create(ctx context.Context, username, password string, role models.Role, actingUserID *int64) (*models.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return s.store.CreateUser(ctx, username, string(hash), role, actingUserID)
}

// Authenticate verifies username + password and returns the user on
// success. Unknown user and hash mismatch both return
// ErrInvalidCredentials after comparable work.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// FindByUsername exposes the store lookup for role re-checks.
func (s *Service) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.store.FindUserByUsername(ctx, username)
}
