// Package postgres implements the store contract on Postgres via pgx.
//
// SetDocument takes an exclusive row lock (SELECT ... FOR UPDATE) on the
// single store row for the whole read-modify-write, so two concurrent
// writers can never compute the same version. The paired audit entry is
// inserted inside the same transaction: a failed write rolls back both.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ciata/ciata-cms/internal/models"
	"github.com/ciata/ciata-cms/internal/store"
)

// Ensure Store satisfies the store contract at compile time.
var _ store.Store = (*Store)(nil)

// Store is the Postgres backend.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and ensures the schema exists. Schema
// statements are idempotent; running them against an initialized database
// is a no-op.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'editor',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS store (
			key TEXT PRIMARY KEY,
			content JSONB NOT NULL,
			version BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS images (
			id BIGSERIAL PRIMARY KEY,
			url TEXT NOT NULL,
			filename TEXT NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT REFERENCES users(id),
			action TEXT NOT NULL,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", store.ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", store.ErrUnavailable, err)
	}
	return nil
}

func insertAudit(ctx context.Context, tx pgx.Tx, userID *int64, action string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO audit_log (user_id, action, payload) VALUES ($1, $2, $3)`,
		userID, action, b); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE username = $1`,
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, role models.Role, actingUserID *int64) (*models.User, error) {
	var u models.User
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO users (username, password_hash, role)
			 VALUES ($1, $2, $3)
			 RETURNING id, username, password_hash, role, created_at`,
			username, passwordHash, role).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return store.ErrDuplicateUsername
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return insertAudit(ctx, tx, actingUserID, models.AuditUserCreate, map[string]string{"username": username})
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetDocument(ctx context.Context) (*models.Document, error) {
	var d models.Document
	err := s.pool.QueryRow(ctx,
		`SELECT content, version, updated_at FROM store WHERE key = $1`,
		models.DocumentKey).Scan(&d.Content, &d.Version, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &d, nil
}

func (s *Store) SetDocument(ctx context.Context, content json.RawMessage, actingUserID *int64) (*models.Document, error) {
	var d models.Document
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var current int64
		err := tx.QueryRow(ctx,
			`SELECT version FROM store WHERE key = $1 FOR UPDATE`,
			models.DocumentKey).Scan(&current)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			err = tx.QueryRow(ctx,
				`INSERT INTO store (key, content, version, updated_at)
				 VALUES ($1, $2, 1, NOW())
				 RETURNING version, updated_at`,
				models.DocumentKey, content).Scan(&d.Version, &d.UpdatedAt)
		case err != nil:
			return fmt.Errorf("lock document row: %w", err)
		default:
			err = tx.QueryRow(ctx,
				`UPDATE store SET content = $2, version = $3, updated_at = NOW()
				 WHERE key = $1
				 RETURNING version, updated_at`,
				models.DocumentKey, content, current+1).Scan(&d.Version, &d.UpdatedAt)
		}
		if err != nil {
			return fmt.Errorf("write document: %w", err)
		}
		d.Content = content
		return insertAudit(ctx, tx, actingUserID, models.AuditStoreUpdate, map[string]int64{"version": d.Version})
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) RegisterImage(ctx context.Context, url, filename string, actingUserID *int64) (*models.ImageRecord, error) {
	var img models.ImageRecord
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO images (url, filename)
			 VALUES ($1, $2)
			 RETURNING id, url, filename, uploaded_at`,
			url, filename).Scan(&img.ID, &img.URL, &img.Filename, &img.UploadedAt)
		if err != nil {
			return fmt.Errorf("insert image: %w", err)
		}
		return insertAudit(ctx, tx, actingUserID, models.AuditImageUpload, map[string]string{"filename": filename, "url": url})
	})
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (s *Store) AppendAudit(ctx context.Context, userID *int64, action string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (user_id, action, payload) VALUES ($1, $2, $3)`,
		userID, action, b); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// AuditEntries returns the audit log in creation order.
func (s *Store) AuditEntries(ctx context.Context) ([]models.AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, action, payload, created_at FROM audit_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select audit log: %w", err)
	}
	defer rows.Close()
	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
