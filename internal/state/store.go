// Package state holds the single client-side session state shared by the
// lifecycle manager, the switch coordinator and the exchange driver.
//
// Only the lifecycle manager and the switch coordinator write the active
// chat id, so that pointer persistence is never skipped.
package state

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"querai-chat/internal/model"
	"querai-chat/internal/pointer"
	"querai-chat/pkg/logger"
)

const DefaultPageSize = 50

var ErrDisposed = errors.New("session store disposed")

type Store struct {
	mu       sync.RWMutex
	pointer  pointer.Store
	pageSize int

	activeChatID       string
	activeDataSourceID string
	messages           []model.Message
	visibleWindow      int
	disposed           bool
}

func NewStore(p pointer.Store, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if p == nil {
		p = pointer.NewMemoryStore()
	}
	return &Store{
		pointer:       p,
		pageSize:      pageSize,
		visibleWindow: pageSize,
	}
}

// Init reads the persisted pointer and returns the chat id it references.
// The id is not made active here; the caller must first confirm the session
// still exists.
func (s *Store) Init() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.disposed {
		return "", ErrDisposed
	}
	return s.pointer.Load()
}

// SetActiveChatID switches the active chat and persists the pointer. An
// empty id clears the pointer. Pointer failures are logged, not returned:
// losing the pointer only costs a rehydration on the next start.
func (s *Store) SetActiveChatID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.activeChatID = id
	s.persistLocked(id)
}

func (s *Store) persistLocked(id string) {
	var err error
	if id != "" {
		err = s.pointer.Save(id)
	} else {
		err = s.pointer.Clear()
	}
	if err != nil {
		logger.WithFields(logrus.Fields{"chat_id": id}).Warnf("persist chat pointer: %v", err)
	}
}

func (s *Store) ActiveChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeChatID
}

func (s *Store) SetActiveDataSourceID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.activeDataSourceID = id
}

func (s *Store) ActiveDataSourceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeDataSourceID
}

// SetMessages replaces the whole log, typically after loading a session.
func (s *Store) SetMessages(msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.messages = append(make([]model.Message, 0, len(msgs)), msgs...)
	s.visibleWindow = s.pageSize
}

// AppendMessage adds one message to the end of the log.
func (s *Store) AppendMessage(msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.messages = append(s.messages, msg)
}

// Messages returns a copy of the full log.
func (s *Store) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Message(nil), s.messages...)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// VisibleMessages returns the trailing window of the log that views render.
func (s *Store) VisibleMessages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.messages) - s.visibleWindow
	if start < 0 {
		start = 0
	}
	return append([]model.Message(nil), s.messages[start:]...)
}

func (s *Store) HasOlder() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages) > s.visibleWindow
}

// LoadOlder grows the visible window by one page. The log itself is never
// truncated.
func (s *Store) LoadOlder() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visibleWindow += s.pageSize
	return s.visibleWindow
}

func (s *Store) VisibleWindow() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibleWindow
}

// Reset detaches the active chat: the log, the active id and the persisted
// pointer are cleared together. The data-source selection survives.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.resetLocked()
}

// Clear is Reset plus dropping the data-source selection; used on logout
// and after deleting every session.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.resetLocked()
	s.activeDataSourceID = ""
}

func (s *Store) resetLocked() {
	s.messages = nil
	s.activeChatID = ""
	s.visibleWindow = s.pageSize
	s.persistLocked("")
}

// Dispose makes every later mutation a no-op. The persisted pointer is left
// alone so the next process can rehydrate.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
}
