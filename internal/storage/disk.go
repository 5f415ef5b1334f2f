package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"querai-chat/internal/model"
	"querai-chat/pkg/logger"
)

// DiskStorage keeps one JSON file per session plus one per message log,
// and a sessions.json index used for listing. Writes go through a temp
// file and rename.
type DiskStorage struct {
	dataDir   string
	mu        sync.RWMutex
	cache     map[string]*model.SessionRecord
	cacheSize int
}

type SessionIndex struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewDiskStorage(dataDir string, cacheSize int) *DiskStorage {
	if cacheSize <= 0 {
		cacheSize = 100
	}
	return &DiskStorage{
		dataDir:   dataDir,
		cache:     make(map[string]*model.SessionRecord),
		cacheSize: cacheSize,
	}
}

func (d *DiskStorage) Init() error {
	if err := d.createDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	indexPath := filepath.Join(d.dataDir, "sessions.json")
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		if err := d.saveSessionIndex([]*SessionIndex{}); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageInit, err)
		}
	}

	logger.Info("Disk storage initialized successfully")
	return nil
}

func (d *DiskStorage) createDirectories() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, "sessions"),
		filepath.Join(d.dataDir, "messages"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

func (d *DiskStorage) sessionPath(chatID string) string {
	return filepath.Join(d.dataDir, "sessions", chatID+".json")
}

func (d *DiskStorage) messagesPath(chatID string) string {
	return filepath.Join(d.dataDir, "messages", chatID+".json")
}

func (d *DiskStorage) loadSessionFromFile(chatID string) (*model.SessionRecord, error) {
	// Ids are generated or come from the backend; never let one escape the
	// data dir.
	if chatID == "" || filepath.Base(chatID) != chatID {
		return nil, os.ErrNotExist
	}

	data, err := os.ReadFile(d.sessionPath(chatID))
	if err != nil {
		return nil, err
	}

	var session model.SessionRecord
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}

	messages, err := d.loadMessagesFromFile(chatID)
	if err != nil {
		logger.Errorf("Failed to load messages for session %s: %v", chatID, err)
		messages = []json.RawMessage{}
	}

	session.Messages = messages
	return &session, nil
}

func (d *DiskStorage) loadMessagesFromFile(chatID string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(d.messagesPath(chatID))
	if errors.Is(err, os.ErrNotExist) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}

	var messages []json.RawMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

func writeJSONAtomic(path string, v interface{}) error {
	tempPath := path + ".tmp"

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

func (d *DiskStorage) saveSessionIndex(indexes []*SessionIndex) error {
	return writeJSONAtomic(filepath.Join(d.dataDir, "sessions.json"), indexes)
}

func (d *DiskStorage) saveSession(session *model.SessionRecord) error {
	sessionData := *session
	sessionData.Messages = nil

	if err := writeJSONAtomic(d.sessionPath(session.ID), sessionData); err != nil {
		return err
	}
	return writeJSONAtomic(d.messagesPath(session.ID), session.Messages)
}

func (d *DiskStorage) InsertSession(_ context.Context, rec *model.SessionRecord) (string, error) {
	session, err := prepareInsert(rec)
	if err != nil {
		return "", err
	}
	if filepath.Base(session.ID) != session.ID {
		return "", fmt.Errorf("%w: bad session id %q", ErrInvalidData, session.ID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.saveSession(session); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := d.updateSessionIndex(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[session.ID] = session
	d.evictCache()

	return session.ID, nil
}

func (d *DiskStorage) GetSession(_ context.Context, ownerID, chatID string) (*model.SessionRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.ownedLocked(ownerID, chatID)
	if err != nil {
		return nil, err
	}
	return cloneRecord(session), nil
}

// ownedLocked loads a session through the cache and applies the owner
// check. Callers hold d.mu for writing.
func (d *DiskStorage) ownedLocked(ownerID, chatID string) (*model.SessionRecord, error) {
	session, exists := d.cache[chatID]
	if !exists {
		var err error
		session, err = d.loadSessionFromFile(chatID)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrSessionNotFound
			}
			return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
		d.cache[chatID] = session
		d.evictCache()
	}

	if session.OwnerID != ownerID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (d *DiskStorage) UpdateTitle(_ context.Context, ownerID, chatID, title string) error {
	return d.update(ownerID, chatID, func(s *model.SessionRecord) { s.Title = title })
}

func (d *DiskStorage) BindDataSource(_ context.Context, ownerID, chatID, dataSourceID string) error {
	return d.update(ownerID, chatID, func(s *model.SessionRecord) { s.DataSourceID = dataSourceID })
}

func (d *DiskStorage) update(ownerID, chatID string, apply func(*model.SessionRecord)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.ownedLocked(ownerID, chatID)
	if err != nil {
		return err
	}

	updated := cloneRecord(session)
	apply(updated)
	updated.UpdatedAt = time.Now().UTC()

	if err := d.saveSession(updated); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := d.updateSessionIndex(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[chatID] = updated
	return nil
}

func (d *DiskStorage) DeleteSession(_ context.Context, ownerID, chatID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.ownedLocked(ownerID, chatID); err != nil {
		return err
	}

	if err := d.removeLocked(chatID); err != nil {
		return err
	}
	return d.updateSessionIndex()
}

func (d *DiskStorage) removeLocked(chatID string) error {
	if err := os.Remove(d.sessionPath(chatID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := os.Remove(d.messagesPath(chatID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	delete(d.cache, chatID)
	return nil
}

func (d *DiskStorage) DeleteAllSessions(_ context.Context, ownerID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	indexes, err := d.readIndex()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, index := range indexes {
		if index.OwnerID != ownerID {
			continue
		}
		if err := d.removeLocked(index.ID); err != nil {
			logger.Errorf("Failed to delete session %s: %v", index.ID, err)
			continue
		}
		deleted++
	}

	return deleted, d.updateSessionIndex()
}

func (d *DiskStorage) ListSessions(_ context.Context, ownerID string) ([]model.SessionSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	indexes, err := d.readIndex()
	if err != nil {
		return nil, err
	}

	sessions := make([]model.SessionSummary, 0, len(indexes))
	for _, index := range indexes {
		if index.OwnerID != ownerID {
			continue
		}
		sessions = append(sessions, model.SessionSummary{
			ID:        index.ID,
			Title:     index.Title,
			CreatedAt: index.CreatedAt,
		})
	}

	sortNewestFirst(sessions)
	return sessions, nil
}

func (d *DiskStorage) readIndex() ([]*SessionIndex, error) {
	data, err := os.ReadFile(filepath.Join(d.dataDir, "sessions.json"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	var indexes []*SessionIndex
	if err := json.Unmarshal(data, &indexes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return indexes, nil
}

func (d *DiskStorage) updateSessionIndex() error {
	files, err := os.ReadDir(filepath.Join(d.dataDir, "sessions"))
	if err != nil {
		return err
	}

	indexes := make([]*SessionIndex, 0, len(files))
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}

		chatID := file.Name()[:len(file.Name())-5]
		session, err := d.loadSessionFromFile(chatID)
		if err != nil {
			logger.Errorf("Failed to load session %s for index update: %v", chatID, err)
			continue
		}

		indexes = append(indexes, &SessionIndex{
			ID:        session.ID,
			OwnerID:   session.OwnerID,
			Title:     session.Title,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		})
	}

	return d.saveSessionIndex(indexes)
}

func (d *DiskStorage) evictCache() {
	if len(d.cache) <= d.cacheSize {
		return
	}

	type cacheEntry struct {
		id        string
		updatedAt time.Time
	}

	entries := make([]cacheEntry, 0, len(d.cache))
	for id, session := range d.cache {
		entries = append(entries, cacheEntry{
			id:        id,
			updatedAt: session.UpdatedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].updatedAt.Before(entries[j].updatedAt)
	})

	toEvict := len(d.cache) - d.cacheSize
	for i := 0; i < toEvict; i++ {
		delete(d.cache, entries[i].id)
	}
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = make(map[string]*model.SessionRecord)
	return nil
}
