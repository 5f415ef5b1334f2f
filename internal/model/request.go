package model

// Requests accepted by the local HTTP surface.

type CreateSessionRequest struct {
	DataSourceID string `json:"data_source_id"`
	Title        string `json:"title"`
}

type SelectSourceRequest struct {
	DataSourceID string `json:"data_source_id" binding:"required"`
}

type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// Wire shapes sent to the backend collaborator.

type BackendCreateRequest struct {
	UserID string  `json:"user_id"`
	Title  *string `json:"title"`
}

type BackendMessageRequest struct {
	ChatID  string `json:"chat_id"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}
