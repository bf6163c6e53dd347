package models

import (
	"encoding/json"
	"time"
)

// Audit action tags used across the service.
const (
	AuditUserCreate  = "user.create"
	AuditStoreUpdate = "store.update"
	AuditImageUpload = "image.upload"
)

// AuditEntry records one mutating action. UserID is nil for
// system-initiated actions (e.g. the bootstrap seed admin). Entries are
// append-only and ordered by ID.
type AuditEntry struct {
	ID        int64           `json:"id"`
	UserID    *int64          `json:"userId"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
