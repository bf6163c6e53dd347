package models

import "time"

// ImageRecord is one successfully uploaded image. Records are append-only;
// filenames are not unique (re-uploading the same file yields a new record).
type ImageRecord struct {
	ID         int64     `json:"id"`
	URL        string    `json:"url"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploadedAt"`
}
