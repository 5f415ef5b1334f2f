// Package lifecycle creates, opens and deletes chat sessions and keeps the
// session store and its pointer in step with them.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"querai-chat/internal/backend"
	"querai-chat/internal/model"
	"querai-chat/internal/normalize"
	"querai-chat/internal/notify"
	"querai-chat/internal/state"
	"querai-chat/internal/storage"
	"querai-chat/pkg/logger"
)

var (
	// ErrCreateInFlight is returned when another creation has not resolved
	// yet. The suppressed call makes no network request.
	ErrCreateInFlight = errors.New("chat creation already in progress")
	ErrCreateFailed   = errors.New("failed to create chat")
)

const (
	msgCreateFailed = "Could not start a new chat. Please try again."
	msgSessionGone  = "This chat has expired or was deleted."
	msgLoadFailed   = "Could not load chat."
	msgDeleteFailed = "Could not delete chat."
)

// Backend is the part of the backend collaborator the manager uses.
type Backend interface {
	Configured() bool
	CreateChat(ctx context.Context, userID, title string) (string, error)
	DeleteChat(ctx context.Context, chatID, userID string) error
	DeleteAllChats(ctx context.Context, userID string) error
}

type Publisher interface {
	Publish()
}

type Manager struct {
	store    *state.Store
	chats    Backend
	db       storage.Storage
	bus      Publisher
	notifier notify.Notifier
	ownerID  string

	creating atomic.Bool
}

func NewManager(store *state.Store, chats Backend, db storage.Storage, bus Publisher, notifier notify.Notifier, ownerID string) *Manager {
	return &Manager{
		store:    store,
		chats:    chats,
		db:       db,
		bus:      bus,
		notifier: notifier,
		ownerID:  ownerID,
	}
}

func (m *Manager) OwnerID() string {
	return m.ownerID
}

// Creating reports whether a creation is in flight.
func (m *Manager) Creating() bool {
	return m.creating.Load()
}

// CreateSession starts a new chat bound to dataSourceID and makes it the
// active one. The backend is tried first; any failure there falls back to
// inserting the session directly into storage.
func (m *Manager) CreateSession(ctx context.Context, dataSourceID, titleHint string) (string, error) {
	if !m.creating.CompareAndSwap(false, true) {
		return "", ErrCreateInFlight
	}
	defer m.creating.Store(false)

	log := logger.WithFields(logrus.Fields{"owner_id": m.ownerID, "data_source_id": dataSourceID})

	chatID, err := m.createViaBackend(ctx, dataSourceID, titleHint)
	if err != nil {
		if !errors.Is(err, backend.ErrNotConfigured) {
			log.Warnf("backend chat creation failed, inserting directly: %v", err)
		}
		chatID, err = m.db.InsertSession(ctx, &model.SessionRecord{
			OwnerID:      m.ownerID,
			Title:        titleHint,
			DataSourceID: dataSourceID,
		})
		if err != nil {
			log.Errorf("direct session insert failed: %v", err)
			m.notifier.Error(msgCreateFailed)
			return "", fmt.Errorf("%w: %v", ErrCreateFailed, err)
		}
	}

	m.store.SetMessages(nil)
	m.store.SetActiveDataSourceID(dataSourceID)
	m.store.SetActiveChatID(chatID)
	m.bus.Publish()

	log.WithField("chat_id", chatID).Info("chat session created")
	return chatID, nil
}

func (m *Manager) createViaBackend(ctx context.Context, dataSourceID, titleHint string) (string, error) {
	if m.chats == nil || !m.chats.Configured() {
		return "", backend.ErrNotConfigured
	}

	chatID, err := m.chats.CreateChat(ctx, m.ownerID, titleHint)
	if err != nil {
		return "", err
	}

	// The backend create call carries no data source, so bind it afterwards.
	if dataSourceID != "" {
		if err := m.db.BindDataSource(ctx, m.ownerID, chatID, dataSourceID); err != nil {
			logger.WithFields(logrus.Fields{"chat_id": chatID, "data_source_id": dataSourceID}).
				Warnf("follow-up data source bind failed: %v", err)
		}
	}
	return chatID, nil
}

// OpenSession loads a session from storage and makes it active. A session
// that no longer exists resets the store.
func (m *Manager) OpenSession(ctx context.Context, chatID string) (*model.SessionRecord, error) {
	rec, err := m.db.GetSession(ctx, m.ownerID, chatID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			m.store.Reset()
			m.notifier.Error(msgSessionGone)
			m.bus.Publish()
			return nil, err
		}
		logger.WithFields(logrus.Fields{"chat_id": chatID}).Errorf("failed to load session: %v", err)
		m.notifier.Error(msgLoadFailed)
		return nil, err
	}

	m.store.SetMessages(normalize.Records(rec.Messages))
	m.store.SetActiveDataSourceID(rec.DataSourceID)
	m.store.SetActiveChatID(rec.ID)
	return rec, nil
}

// Rehydrate restores the session named by the persisted pointer. It
// returns the restored id, or "" when there was nothing to restore.
func (m *Manager) Rehydrate(ctx context.Context) (string, error) {
	chatID, err := m.store.Init()
	if err != nil {
		return "", err
	}
	if chatID == "" {
		return "", nil
	}

	rec, err := m.OpenSession(ctx, chatID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			logger.WithFields(logrus.Fields{"chat_id": chatID}).Info("persisted chat no longer exists")
			return "", nil
		}
		return "", err
	}
	return rec.ID, nil
}

// DeleteSession removes one session. A refresh is published whatever the
// outcome so the list re-queries authoritative state.
func (m *Manager) DeleteSession(ctx context.Context, chatID string) error {
	defer m.bus.Publish()

	var err error
	if m.chats != nil && m.chats.Configured() {
		err = m.chats.DeleteChat(ctx, chatID, m.ownerID)
	} else {
		err = m.db.DeleteSession(ctx, m.ownerID, chatID)
	}

	gone := err == nil || errors.Is(err, storage.ErrSessionNotFound) || backend.IsNotFound(err)
	if gone && m.store.ActiveChatID() == chatID {
		m.store.Reset()
	}

	if err != nil && !gone {
		logger.WithFields(logrus.Fields{"chat_id": chatID}).Errorf("failed to delete session: %v", err)
		m.notifier.Error(msgDeleteFailed)
		return err
	}
	return nil
}

// DeleteAllSessions removes every session of the owner. The store is
// cleared even when the delete fails.
func (m *Manager) DeleteAllSessions(ctx context.Context) error {
	defer m.bus.Publish()

	var err error
	if m.chats != nil && m.chats.Configured() {
		err = m.chats.DeleteAllChats(ctx, m.ownerID)
	} else {
		var n int
		n, err = m.db.DeleteAllSessions(ctx, m.ownerID)
		if err == nil {
			logger.WithFields(logrus.Fields{"owner_id": m.ownerID}).Infof("deleted %d sessions", n)
		}
	}

	m.store.Clear()

	if err != nil {
		logger.WithFields(logrus.Fields{"owner_id": m.ownerID}).Errorf("failed to delete sessions: %v", err)
		m.notifier.Error(msgDeleteFailed)
		return err
	}
	return nil
}

// Logout forgets the whole client state, pointer included.
func (m *Manager) Logout() {
	m.store.Clear()
	m.bus.Publish()
}
