package model

import "time"

type BackendCreateResponse struct {
	ChatID string `json:"chat_id"`
}

// StateResponse is the snapshot of the client session state served to views.
type StateResponse struct {
	ActiveChatID       string    `json:"active_chat_id"`
	ActiveDataSourceID string    `json:"active_data_source_id"`
	SwitchState        string    `json:"switch_state"`
	PendingDataSource  string    `json:"pending_data_source_id,omitempty"`
	Messages           []Message `json:"messages"`
	TotalMessages      int       `json:"total_messages"`
	HasOlder           bool      `json:"has_older"`
	Loading            bool      `json:"loading"`
}

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresIn string    `json:"expires_in"`
	Active    bool      `json:"active"`
}
