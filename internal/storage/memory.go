package storage

import (
	"context"
	"sync"
	"time"

	"querai-chat/internal/model"
)

type MemoryStorage struct {
	sessions map[string]*model.SessionRecord
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*model.SessionRecord),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) InsertSession(_ context.Context, rec *model.SessionRecord) (string, error) {
	session, err := prepareInsert(rec)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = session
	return session.ID, nil
}

func (m *MemoryStorage) GetSession(_ context.Context, ownerID, chatID string) (*model.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, err := m.ownedLocked(ownerID, chatID)
	if err != nil {
		return nil, err
	}
	return cloneRecord(session), nil
}

func (m *MemoryStorage) ListSessions(_ context.Context, ownerID string) ([]model.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]model.SessionSummary, 0)
	for _, session := range m.sessions {
		if session.OwnerID == ownerID {
			list = append(list, summarize(session))
		}
	}
	sortNewestFirst(list)
	return list, nil
}

func (m *MemoryStorage) UpdateTitle(_ context.Context, ownerID, chatID, title string) error {
	return m.update(ownerID, chatID, func(s *model.SessionRecord) { s.Title = title })
}

func (m *MemoryStorage) BindDataSource(_ context.Context, ownerID, chatID, dataSourceID string) error {
	return m.update(ownerID, chatID, func(s *model.SessionRecord) { s.DataSourceID = dataSourceID })
}

func (m *MemoryStorage) update(ownerID, chatID string, apply func(*model.SessionRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.ownedLocked(ownerID, chatID)
	if err != nil {
		return err
	}
	apply(session)
	session.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStorage) DeleteSession(_ context.Context, ownerID, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.ownedLocked(ownerID, chatID); err != nil {
		return err
	}
	delete(m.sessions, chatID)
	return nil
}

func (m *MemoryStorage) DeleteAllSessions(_ context.Context, ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, session := range m.sessions {
		if session.OwnerID == ownerID {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStorage) ownedLocked(ownerID, chatID string) (*model.SessionRecord, error) {
	session, exists := m.sessions[chatID]
	if !exists || session.OwnerID != ownerID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}
