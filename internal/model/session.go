package model

import (
	"encoding/json"
	"time"
)

// Session is the isolation boundary: every document, embedding and message
// belongs to exactly one session. The ID is an opaque capability token,
// not a user identity.
type Session struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Metadata  string    `gorm:"type:text" json:"-"` // JSON object
	CreatedAt time.Time `json:"created_at"`
}

// MetadataMap returns the parsed metadata; empty map on parse error.
func (s *Session) MetadataMap() map[string]string {
	if s.Metadata == "" {
		return map[string]string{}
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s.Metadata), &m); err != nil || m == nil {
		return map[string]string{}
	}
	return m
}

// SetMetadata stores the metadata as JSON.
func (s *Session) SetMetadata(m map[string]string) {
	if len(m) == 0 {
		s.Metadata = "{}"
		return
	}
	b, _ := json.Marshal(m)
	s.Metadata = string(b)
}
