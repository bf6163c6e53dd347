// Package store defines the persistence contract shared by the flat-file
// and Postgres backends. The active backend is chosen once at startup;
// callers never branch on it.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ciata/ciata-cms/internal/models"
)

// ErrDuplicateUsername indicates a username uniqueness conflict on create.
var ErrDuplicateUsername = errors.New("username already exists")

// ErrUnavailable indicates the storage medium could not be reached. The
// caller should report a server error; no state was changed.
var ErrUnavailable = errors.New("storage unavailable")

// Store captures the persistence operations needed by the handler layer.
//
// Lookup operations return (nil, nil) when the record is absent: an absent
// user or a never-written document is a normal empty case, not an error.
//
// CreateUser, SetDocument and RegisterImage each append their audit entry
// atomically with the mutation they describe: either both persist or
// neither does. actingUserID is nil for system-initiated actions.
type Store interface {
	// FindUserByUsername performs a case-sensitive exact match.
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)

	// CountUsers reports how many users exist. Used by bootstrap to decide
	// whether the seed admin is needed.
	CountUsers(ctx context.Context) (int64, error)

	// CreateUser persists a new user with an already-hashed password and
	// assigns its ID. Fails with ErrDuplicateUsername on conflict.
	CreateUser(ctx context.Context, username, passwordHash string, role models.Role, actingUserID *int64) (*models.User, error)

	// GetDocument returns the page-overrides document, or (nil, nil) if no
	// write has ever occurred.
	GetDocument(ctx context.Context) (*models.Document, error)

	// SetDocument replaces the document content, incrementing the version
	// by exactly one (version 1 on the first write). Concurrent writers
	// never observe or produce the same version.
	SetDocument(ctx context.Context, content json.RawMessage, actingUserID *int64) (*models.Document, error)

	// RegisterImage appends one record for a completed upload.
	RegisterImage(ctx context.Context, url, filename string, actingUserID *int64) (*models.ImageRecord, error)

	// AppendAudit records a system-level action outside any other mutation.
	AppendAudit(ctx context.Context, userID *int64, action string, payload any) error

	// Close releases backend resources.
	Close()
}
