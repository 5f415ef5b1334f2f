// Package pointer persists the identifier of the active chat across restarts.
package pointer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store holds a single key: the active chat id.
type Store interface {
	Load() (string, error)
	Save(chatID string) error
	Clear() error
}

type pointerFile struct {
	CurrentChatID string `yaml:"current_chat_id"`
}

// FileStore keeps the pointer in a small YAML file, written via a temp file
// and rename so a crash never leaves a torn pointer behind.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read pointer: %w", err)
	}

	var p pointerFile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("parse pointer: %w", err)
	}
	return p.CurrentChatID, nil
}

func (f *FileStore) Save(chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create pointer dir: %w", err)
	}

	data, err := yaml.Marshal(pointerFile{CurrentChatID: chatID})
	if err != nil {
		return err
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write pointer: %w", err)
	}
	return os.Rename(tempPath, f.path)
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pointer: %w", err)
	}
	return nil
}

// MemoryStore is a process-local pointer, used when no path is configured.
type MemoryStore struct {
	mu     sync.Mutex
	chatID string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chatID, nil
}

func (m *MemoryStore) Save(chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatID = chatID
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatID = ""
	return nil
}
