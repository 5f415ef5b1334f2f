// Package sessions is the view model behind the session list: a cached
// copy of the owner's sessions that re-fetches on refresh-bus events.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"querai-chat/internal/bus"
	"querai-chat/internal/model"
	"querai-chat/pkg/logger"
)

const DefaultTTL = 24 * time.Hour

type Lister interface {
	ListSessions(ctx context.Context, ownerID string) ([]model.SessionSummary, error)
}

type BulkDeleter interface {
	DeleteAllSessions(ctx context.Context) error
}

type Subscriber interface {
	Subscribe() (<-chan struct{}, func())
}

type List struct {
	lister  Lister
	deleter BulkDeleter
	ownerID string
	ttl     time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	entries []model.SessionSummary
	loaded  bool
	fetches int
}

func NewList(lister Lister, deleter BulkDeleter, ownerID string, ttl time.Duration) *List {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &List{
		lister:  lister,
		deleter: deleter,
		ownerID: ownerID,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Refresh re-fetches the list. On failure the previous entries are kept.
func (l *List) Refresh(ctx context.Context) error {
	entries, err := l.lister.ListSessions(ctx, l.ownerID)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetches++
	if err != nil {
		logger.WithFields(logrus.Fields{"owner_id": l.ownerID}).Warnf("session list refresh failed: %v", err)
		return err
	}
	l.entries = entries
	l.loaded = true
	return nil
}

// Entries returns the cached list, newest first.
func (l *List) Entries() []model.SessionSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.SessionSummary(nil), l.entries...)
}

// Fetches counts list fetches, successful or not.
func (l *List) Fetches() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fetches
}

// Views renders the cached list for display, marking activeID.
func (l *List) Views(activeID string) []model.SessionResponse {
	now := l.now()
	entries := l.Entries()
	views := make([]model.SessionResponse, 0, len(entries))
	for _, e := range entries {
		views = append(views, model.SessionResponse{
			SessionID: e.ID,
			Title:     e.DisplayTitle(),
			CreatedAt: e.CreatedAt,
			ExpiresIn: e.ExpiresIn(now, l.ttl),
			Active:    e.ID == activeID,
		})
	}
	return views
}

// CanDeleteAll reports whether the bulk delete action is enabled.
func (l *List) CanDeleteAll() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries) > 0
}

// DeleteAll re-fetches the list and runs the bulk delete unless the owner
// has no sessions, in which case it reports false. When the fetch fails the
// delete still runs.
func (l *List) DeleteAll(ctx context.Context) (bool, error) {
	if err := l.Refresh(ctx); err == nil && !l.CanDeleteAll() {
		return false, nil
	}
	if err := l.deleter.DeleteAllSessions(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Watch keeps the list current until ctx is done: every burst of bus
// events within debounce collapses into one re-fetch.
func (l *List) Watch(ctx context.Context, sub Subscriber, debounce time.Duration) {
	events, unsubscribe := sub.Subscribe()
	defer unsubscribe()

	d := bus.NewDebouncer(debounce, func() {
		if ctx.Err() != nil {
			return
		}
		_ = l.Refresh(ctx)
	})
	defer d.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			d.Trigger()
		}
	}
}
