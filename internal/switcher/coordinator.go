// Package switcher reconciles data-source selection with the active chat.
// A different source never rebinds an existing chat: it always leads to a
// new session once the user confirms.
package switcher

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"querai-chat/internal/state"
	"querai-chat/pkg/logger"
)

type State string

const (
	Unbound       State = "unbound"
	Bound         State = "bound"
	PendingSwitch State = "pending_switch"
)

var ErrNoPendingSwitch = errors.New("no pending data source switch")

// Creator starts a new chat bound to a data source.
type Creator interface {
	CreateSession(ctx context.Context, dataSourceID, titleHint string) (string, error)
}

type Publisher interface {
	Publish()
}

// Outcome describes what a selection did.
type Outcome struct {
	State  State  `json:"state"`
	ChatID string `json:"chat_id,omitempty"`
	// Pending is the data source awaiting confirmation.
	Pending string `json:"pending_data_source_id,omitempty"`
}

type Coordinator struct {
	mu      sync.Mutex
	store   *state.Store
	creator Creator
	bus     Publisher
	pending string
}

func NewCoordinator(store *state.Store, creator Creator, bus Publisher) *Coordinator {
	return &Coordinator{
		store:   store,
		creator: creator,
		bus:     bus,
	}
}

// State derives the current state from the store and the pending request.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Coordinator) stateLocked() State {
	if c.pending != "" {
		return PendingSwitch
	}
	// A chat without a data source cannot answer questions; selecting a
	// source starts a new one.
	if c.store.ActiveChatID() == "" || c.store.ActiveDataSourceID() == "" {
		return Unbound
	}
	return Bound
}

// Pending returns the data source awaiting confirmation, if any.
func (c *Coordinator) Pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Select handles the user picking dataSourceID.
func (c *Coordinator) Select(ctx context.Context, dataSourceID string) (Outcome, error) {
	c.mu.Lock()
	current := c.store.ActiveDataSourceID()
	log := logger.WithFields(logrus.Fields{"data_source_id": dataSourceID, "chat_id": c.store.ActiveChatID()})

	switch c.stateLocked() {
	case Unbound:
		c.mu.Unlock()
		return c.create(ctx, dataSourceID)

	case Bound:
		if dataSourceID == current {
			// Deselect. The chat is detached but stays in storage.
			c.store.SetActiveDataSourceID("")
			c.store.Reset()
			c.mu.Unlock()
			log.Info("data source deselected")
			c.bus.Publish()
			return Outcome{State: Unbound}, nil
		}
		c.pending = dataSourceID
		c.mu.Unlock()
		log.Info("data source switch awaiting confirmation")
		return Outcome{State: PendingSwitch, ChatID: c.store.ActiveChatID(), Pending: dataSourceID}, nil

	default:
		// A new selection replaces the pending one; picking the bound
		// source again drops the request.
		if dataSourceID == current {
			c.pending = ""
			c.mu.Unlock()
			return Outcome{State: Bound, ChatID: c.store.ActiveChatID()}, nil
		}
		c.pending = dataSourceID
		c.mu.Unlock()
		return Outcome{State: PendingSwitch, ChatID: c.store.ActiveChatID(), Pending: dataSourceID}, nil
	}
}

// Confirm creates a new session for the pending data source. The previous
// session is left untouched.
func (c *Coordinator) Confirm(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	target := c.pending
	c.mu.Unlock()
	if target == "" {
		return Outcome{}, ErrNoPendingSwitch
	}

	out, err := c.create(ctx, target)
	if err != nil {
		return Outcome{State: c.State(), ChatID: c.store.ActiveChatID(), Pending: c.Pending()}, err
	}

	c.mu.Lock()
	if c.pending == target {
		c.pending = ""
	}
	c.mu.Unlock()
	out.State = c.State()
	return out, nil
}

// Cancel drops the pending switch and keeps the original session.
func (c *Coordinator) Cancel() (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == "" {
		return Outcome{}, ErrNoPendingSwitch
	}
	c.pending = ""
	return Outcome{State: c.stateLocked(), ChatID: c.store.ActiveChatID()}, nil
}

// Reset forgets any pending switch, for example after the active chat was
// replaced from elsewhere.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = ""
}

func (c *Coordinator) create(ctx context.Context, dataSourceID string) (Outcome, error) {
	chatID, err := c.creator.CreateSession(ctx, dataSourceID, "")
	if err != nil {
		return Outcome{State: c.State()}, err
	}
	return Outcome{State: Bound, ChatID: chatID}, nil
}
