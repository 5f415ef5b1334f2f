package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"querai-chat/internal/config"
	"querai-chat/internal/model"
)

// New builds the storage selected by cfg.Type. The caller runs Init.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "disk":
		return NewDiskStorage(cfg.DataDir, cfg.CacheSize), nil
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = filepath.Join(cfg.DataDir, "chats.db")
		}
		return NewSQLiteStorage(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}

// prepareInsert validates a new record and fills the generated fields.
func prepareInsert(rec *model.SessionRecord) (*model.SessionRecord, error) {
	if rec == nil || rec.OwnerID == "" {
		return nil, fmt.Errorf("%w: session owner is required", ErrInvalidData)
	}

	out := cloneRecord(rec)
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = out.CreatedAt
	}
	if out.Messages == nil {
		out.Messages = []json.RawMessage{}
	}
	return out, nil
}

func cloneRecord(rec *model.SessionRecord) *model.SessionRecord {
	out := *rec
	if rec.Messages != nil {
		out.Messages = make([]json.RawMessage, len(rec.Messages))
		for i, m := range rec.Messages {
			out.Messages[i] = append(json.RawMessage(nil), m...)
		}
	}
	return &out
}

func summarize(rec *model.SessionRecord) model.SessionSummary {
	return model.SessionSummary{
		ID:        rec.ID,
		Title:     rec.Title,
		CreatedAt: rec.CreatedAt,
	}
}

func sortNewestFirst(list []model.SessionSummary) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
