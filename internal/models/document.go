package models

import (
	"encoding/json"
	"time"
)

// DocumentKey identifies the single page-overrides document. There is
// exactly one document per deployment.
const DocumentKey = "main"

// Document is the stored page-overrides record. Content is opaque to the
// store layer: it is persisted and returned verbatim, never parsed.
// Version starts at 1 on the first write and increases by exactly one on
// every successful write.
type Document struct {
	Content   json.RawMessage `json:"content"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
