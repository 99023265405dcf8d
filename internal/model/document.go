package model

import "time"

// DocumentStatus is the ingestion state of an uploaded document.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusIndexed    DocumentStatus = "indexed"
	StatusFailed     DocumentStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusIndexed, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether a document in this status is done processing.
func (s DocumentStatus) Terminal() bool {
	return s == StatusIndexed || s == StatusFailed
}

// CanTransition reports whether the status machine allows moving from s to
// next. The only edges are pending→processing, processing→indexed and
// processing→failed; re-ingestion resets a terminal document to pending.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusIndexed || next == StatusFailed
	case StatusIndexed, StatusFailed:
		return next == StatusPending
	}
	return false
}

// Document is an uploaded file owned by exactly one session. The raw
// content is kept on the record so the ingestion worker can process it
// without a shared filesystem. Status is mutated only by the ingestion
// pipeline via conditional updates.
type Document struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	SessionID     string         `gorm:"size:36;not null;index" json:"session_id"`
	Filename      string         `gorm:"size:255;not null" json:"filename"`
	MimeType      string         `gorm:"size:100" json:"mime_type"`
	Size          int64          `json:"size"`
	Status        DocumentStatus `gorm:"size:20;not null;default:pending" json:"status"`
	FailureReason string         `gorm:"size:512" json:"failure_reason,omitempty"`
	Content       []byte         `gorm:"type:mediumblob" json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
}
