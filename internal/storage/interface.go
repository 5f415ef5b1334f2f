package storage

import (
	"context"

	"querai-chat/internal/model"
)

// Storage is the session table of the hosted store. Every read and write is
// scoped by owner: a session owned by someone else behaves exactly like a
// missing one.
type Storage interface {
	// InsertSession stores a new session and returns its id. An empty
	// rec.ID is filled with a generated one.
	InsertSession(ctx context.Context, rec *model.SessionRecord) (string, error)
	GetSession(ctx context.Context, ownerID, chatID string) (*model.SessionRecord, error)
	// ListSessions returns the owner's sessions, newest first.
	ListSessions(ctx context.Context, ownerID string) ([]model.SessionSummary, error)
	UpdateTitle(ctx context.Context, ownerID, chatID, title string) error
	BindDataSource(ctx context.Context, ownerID, chatID, dataSourceID string) error
	DeleteSession(ctx context.Context, ownerID, chatID string) error
	DeleteAllSessions(ctx context.Context, ownerID string) (int, error)

	Init() error
	Close() error
}
