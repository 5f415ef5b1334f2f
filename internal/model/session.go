package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// SessionRecord is a chat session as the database collaborator holds it.
// Messages stay in their stored shape until they cross into the client
// state through the normaliser.
type SessionRecord struct {
	ID           string            `json:"id"`
	OwnerID      string            `json:"user_id"`
	Title        string            `json:"title,omitempty"`
	DataSourceID string            `json:"data_source_id,omitempty"`
	Messages     []json.RawMessage `json:"messages"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// SessionSummary is one entry of the session list.
type SessionSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

const UntitledChat = "Untitled Chat"

func (s SessionSummary) DisplayTitle() string {
	if s.Title == "" {
		return UntitledChat
	}
	return s.Title
}

// ExpiresIn renders the nominal validity window. It is display only;
// nothing enforces expiry.
func (s SessionSummary) ExpiresIn(now time.Time, ttl time.Duration) string {
	if s.CreatedAt.IsZero() {
		return ""
	}
	remaining := s.CreatedAt.Add(ttl).Sub(now)
	if remaining <= 0 {
		return "expired"
	}
	hours := int(remaining / time.Hour)
	minutes := int((remaining % time.Hour) / time.Minute)
	return fmt.Sprintf("expires in %dh %dm", hours, minutes)
}
