// Package filestore implements the store contract on top of a single JSON
// file. The on-disk layout (users, store, images, audit_log) is fixed for
// backward compatibility with existing deployments.
//
// All state lives in memory and every mutation rewrites the whole file via
// write-temp-then-rename, so a crash mid-write never leaves a corrupt
// partial file. A single process-wide mutex serializes the entire
// read-modify-write-append sequence; the file backend is not designed for
// multi-process deployment.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ciata/ciata-cms/internal/models"
	"github.com/ciata/ciata-cms/internal/store"
)

// fileData mirrors the literal on-disk schema.
type fileData struct {
	Users    []userRecord    `json:"users"`
	Store    *documentRecord `json:"store"`
	Images   []imageRecord   `json:"images"`
	AuditLog []auditRecord   `json:"audit_log"`
}

type userRecord struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type documentRecord struct {
	Content   json.RawMessage `json:"content"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type imageRecord struct {
	ID         int64     `json:"id"`
	URL        string    `json:"url"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type auditRecord struct {
	ID        int64           `json:"id"`
	UserID    *int64          `json:"user_id"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Ensure FileStore satisfies the store contract at compile time.
var _ store.Store = (*FileStore)(nil)

// FileStore is the flat-file backend.
type FileStore struct {
	path string

	mu   sync.Mutex
	data fileData
}

// Open loads the JSON file at path, initializing it with empty collections
// if it does not exist yet.
func Open(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		s.data = fileData{Users: []userRecord{}, Images: []imageRecord{}, AuditLog: []auditRecord{}}
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err := json.Unmarshal(b, &s.data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, nil
}

// persistLocked rewrites the whole file atomically. Callers must hold mu
// (or be the only goroutine with a reference, as in Open).
func (s *FileStore) persistLocked() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store file: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".store-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", store.ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write temp file: %v", store.ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %v", store.ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace %s: %v", store.ErrUnavailable, s.path, err)
	}
	return nil
}

// appendAuditLocked adds an entry to the in-memory log; the caller persists.
func (s *FileStore) appendAuditLocked(userID *int64, action string, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		raw = b
	}
	s.data.AuditLog = append(s.data.AuditLog, auditRecord{
		ID:        nextID(len(s.data.AuditLog), func(i int) int64 { return s.data.AuditLog[i].ID }),
		UserID:    userID,
		Action:    action,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// nextID returns max existing id + 1 for an append-only collection.
func nextID(n int, id func(i int) int64) int64 {
	var max int64
	for i := 0; i < n; i++ {
		if v := id(i); v > max {
			max = v
		}
	}
	return max + 1
}

func (s *FileStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.data.Users {
		if u.Username == username {
			return u.toModel(), nil
		}
	}
	return nil, nil
}

func (s *FileStore) CountUsers(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.data.Users)), nil
}

func (s *FileStore) CreateUser(ctx context.Context, username, passwordHash string, role models.Role, actingUserID *int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.data.Users {
		if u.Username == username {
			return nil, store.ErrDuplicateUsername
		}
	}
	prev := s.data
	rec := userRecord{
		ID:           nextID(len(s.data.Users), func(i int) int64 { return s.data.Users[i].ID }),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         string(role),
		CreatedAt:    time.Now().UTC(),
	}
	s.data.Users = append(s.data.Users, rec)
	if err := s.appendAuditLocked(actingUserID, models.AuditUserCreate, map[string]string{"username": username}); err != nil {
		s.data = prev
		return nil, err
	}
	if err := s.persistLocked(); err != nil {
		s.data = prev
		return nil, err
	}
	return rec.toModel(), nil
}

func (s *FileStore) GetDocument(ctx context.Context) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Store == nil {
		return nil, nil
	}
	return s.data.Store.toModel(), nil
}

func (s *FileStore) SetDocument(ctx context.Context, content json.RawMessage, actingUserID *int64) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.data
	version := int64(1)
	if s.data.Store != nil {
		version = s.data.Store.Version + 1
	}
	rec := &documentRecord{Content: content, Version: version, UpdatedAt: time.Now().UTC()}
	s.data.Store = rec
	if err := s.appendAuditLocked(actingUserID, models.AuditStoreUpdate, map[string]int64{"version": version}); err != nil {
		s.data = prev
		return nil, err
	}
	if err := s.persistLocked(); err != nil {
		s.data = prev
		return nil, err
	}
	return rec.toModel(), nil
}

func (s *FileStore) RegisterImage(ctx context.Context, url, filename string, actingUserID *int64) (*models.ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.data
	rec := imageRecord{
		ID:         nextID(len(s.data.Images), func(i int) int64 { return s.data.Images[i].ID }),
		URL:        url,
		Filename:   filename,
		UploadedAt: time.Now().UTC(),
	}
	s.data.Images = append(s.data.Images, rec)
	if err := s.appendAuditLocked(actingUserID, models.AuditImageUpload, map[string]string{"filename": filename, "url": url}); err != nil {
		s.data = prev
		return nil, err
	}
	if err := s.persistLocked(); err != nil {
		s.data = prev
		return nil, err
	}
	return rec.toModel(), nil
}

func (s *FileStore) AppendAudit(ctx context.Context, userID *int64, action string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.data
	if err := s.appendAuditLocked(userID, action, payload); err != nil {
		s.data = prev
		return err
	}
	if err := s.persistLocked(); err != nil {
		s.data = prev
		return err
	}
	return nil
}

// AuditEntries returns a copy of the audit log, oldest first. Used by
// export and tests.
func (s *FileStore) AuditEntries(ctx context.Context) ([]models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditEntry, 0, len(s.data.AuditLog))
	for _, a := range s.data.AuditLog {
		out = append(out, models.AuditEntry{ID: a.ID, UserID: a.UserID, Action: a.Action, Payload: a.Payload, CreatedAt: a.CreatedAt})
	}
	return out, nil
}

func (s *FileStore) Close() {}

func (u userRecord) toModel() *models.User {
	return &models.User{ID: u.ID, Username: u.Username, PasswordHash: u.PasswordHash, Role: models.Role(u.Role), CreatedAt: u.CreatedAt}
}

func (d *documentRecord) toModel() *models.Document {
	return &models.Document{Content: d.Content, Version: d.Version, UpdatedAt: d.UpdatedAt}
}

func (i imageRecord) toModel() *models.ImageRecord {
	return &models.ImageRecord{ID: i.ID, URL: i.URL, Filename: i.Filename, UploadedAt: i.UploadedAt}
}
