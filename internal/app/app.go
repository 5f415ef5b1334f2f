// Package app wires the chat core from configuration. Both the HTTP
// surface and the terminal client run on top of an App.
package app

import (
	"context"
	"errors"
	"fmt"

	"querai-chat/internal/backend"
	"querai-chat/internal/bus"
	"querai-chat/internal/config"
	"querai-chat/internal/exchange"
	"querai-chat/internal/lifecycle"
	"querai-chat/internal/model"
	"querai-chat/internal/notify"
	"querai-chat/internal/pointer"
	"querai-chat/internal/sessions"
	"querai-chat/internal/state"
	"querai-chat/internal/storage"
	"querai-chat/internal/switcher"
	"querai-chat/pkg/logger"
)

// ErrNoDataSource is returned when a chat is requested with no data source
// given and none selected.
var ErrNoDataSource = errors.New("no data source selected")

type App struct {
	Config    *config.Config
	Store     *state.Store
	Bus       *bus.Bus
	Storage   storage.Storage
	Backend   *backend.Client
	Notices   *notify.Recorder
	Lifecycle *lifecycle.Manager
	Switcher  *switcher.Coordinator
	Exchange  *exchange.Driver
	Sessions  *sessions.List

	cancel    context.CancelFunc
	watchDone chan struct{}
}

// New builds every component. Storage is initialised here; nothing runs
// until Start.
func New(cfg *config.Config) (*App, error) {
	db, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if err := db.Init(); err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return NewWithStorage(cfg, db), nil
}

// NewWithStorage builds the core around an initialised storage.
func NewWithStorage(cfg *config.Config, db storage.Storage) *App {
	var ptr pointer.Store = pointer.NewMemoryStore()
	if cfg.Pointer.Path != "" {
		ptr = pointer.NewFileStore(cfg.Pointer.Path)
	}

	owner := cfg.Owner.ID
	store := state.NewStore(ptr, cfg.Session.PageSize)
	events := bus.New()
	notices := notify.NewRecorder(notify.LogNotifier{})
	client := backend.NewClient(cfg.Backend)

	manager := lifecycle.NewManager(store, client, db, events, notices, owner)

	return &App{
		Config:    cfg,
		Store:     store,
		Bus:       events,
		Storage:   db,
		Backend:   client,
		Notices:   notices,
		Lifecycle: manager,
		Switcher:  switcher.NewCoordinator(store, manager, events),
		Exchange:  exchange.NewDriver(store, client, db, events, notices, owner),
		Sessions:  sessions.NewList(db, manager, owner, cfg.Session.TTL),
	}
}

// Start rehydrates the persisted chat, loads the session list and keeps it
// current until Close.
func (a *App) Start(ctx context.Context) error {
	if id, err := a.Lifecycle.Rehydrate(ctx); err != nil {
		logger.Warnf("rehydrate failed: %v", err)
	} else if id != "" {
		logger.Infof("restored chat %s", id)
	}

	if err := a.Sessions.Refresh(ctx); err != nil {
		logger.Warnf("initial session list load failed: %v", err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.watchDone = make(chan struct{})
	go func() {
		defer close(a.watchDone)
		a.Sessions.Watch(watchCtx, a.Bus, a.Config.Session.RefreshDebounce)
	}()
	return nil
}

// NewChat starts a chat explicitly, dropping any pending switch. An empty
// dataSourceID means the active one.
func (a *App) NewChat(ctx context.Context, dataSourceID, title string) (string, error) {
	if dataSourceID == "" {
		dataSourceID = a.Store.ActiveDataSourceID()
	}
	if dataSourceID == "" {
		return "", ErrNoDataSource
	}
	id, err := a.Lifecycle.CreateSession(ctx, dataSourceID, title)
	if err == nil {
		a.Switcher.Reset()
	}
	return id, err
}

// OpenChat makes a listed chat active, dropping any pending switch.
func (a *App) OpenChat(ctx context.Context, chatID string) (*model.SessionRecord, error) {
	a.Switcher.Reset()
	return a.Lifecycle.OpenSession(ctx, chatID)
}

// DeleteChat deletes a chat and waits for the list to reflect it.
func (a *App) DeleteChat(ctx context.Context, chatID string) error {
	err := a.Lifecycle.DeleteSession(ctx, chatID)
	if a.Store.ActiveChatID() == "" {
		a.Switcher.Reset()
	}
	if rerr := a.Sessions.Refresh(ctx); rerr != nil && err == nil {
		logger.Warnf("session list refresh failed: %v", rerr)
	}
	return err
}

// DeleteAllChats runs the bulk delete unless the list is empty. It reports
// whether anything was attempted.
func (a *App) DeleteAllChats(ctx context.Context) (bool, error) {
	ran, err := a.Sessions.DeleteAll(ctx)
	if ran {
		a.Switcher.Reset()
		_ = a.Sessions.Refresh(ctx)
	}
	return ran, err
}

// Logout clears the client state.
func (a *App) Logout() {
	a.Switcher.Reset()
	a.Lifecycle.Logout()
}

// Snapshot captures the state shown by views.
func (a *App) Snapshot() model.StateResponse {
	messages := a.Store.VisibleMessages()
	if messages == nil {
		messages = []model.Message{}
	}
	return model.StateResponse{
		ActiveChatID:       a.Store.ActiveChatID(),
		ActiveDataSourceID: a.Store.ActiveDataSourceID(),
		SwitchState:        string(a.Switcher.State()),
		PendingDataSource:  a.Switcher.Pending(),
		Messages:           messages,
		TotalMessages:      a.Store.Len(),
		HasOlder:           a.Store.HasOlder(),
		Loading:            a.Exchange.Loading(),
	}
}

// Close stops background work and releases storage.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
		<-a.watchDone
	}
	a.Exchange.Wait()
	a.Store.Dispose()
	a.Bus.Close()
	return a.Storage.Close()
}
