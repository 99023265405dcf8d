package model

import (
	"encoding/json"
	"time"
)

// Embedding stores one chunk of a document's text together with its vector.
// SessionID is a denormalized copy of the owning document's session, written
// atomically with the record, so similarity queries can filter by session
// without a join. Vector is stored as a JSON array of float32 for
// portability. Records are immutable once written; the auto-increment ID is
// the insertion order used to break similarity ties.
type Embedding struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID string    `gorm:"size:36;not null;index" json:"document_id"`
	SessionID  string    `gorm:"size:36;not null;index" json:"session_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Vector     string    `gorm:"type:text" json:"-"`
	Position   int       `gorm:"not null" json:"position"`
	CreatedAt  time.Time `json:"created_at"`
}

// VectorSlice returns the parsed vector; nil on parse error.
func (e *Embedding) VectorSlice() []float32 {
	if e.Vector == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(e.Vector), &v)
	return v
}

// SetVector stores the vector as JSON.
func (e *Embedding) SetVector(vec []float32) {
	if len(vec) == 0 {
		e.Vector = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	e.Vector = string(b)
}
