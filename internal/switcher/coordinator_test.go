package switcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querai-chat/internal/bus"
	"querai-chat/internal/lifecycle"
	"querai-chat/internal/model"
	"querai-chat/internal/notify"
	"querai-chat/internal/state"
	"querai-chat/internal/storage"
)

type fixture struct {
	c     *Coordinator
	store *state.Store
	db    *storage.MemoryStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemoryStorage()
	require.NoError(t, db.Init())
	store := state.NewStore(nil, 0)
	b := bus.New()
	t.Cleanup(b.Close)
	m := lifecycle.NewManager(store, nil, db, b, notify.NewRecorder(nil), "alice")
	return &fixture{
		c:     NewCoordinator(store, m, b),
		store: store,
		db:    db,
	}
}

func TestSelectFromUnboundCreatesSession(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, Unbound, f.c.State())

	out, err := f.c.Select(context.Background(), "ds-a")
	require.NoError(t, err)
	assert.Equal(t, Bound, out.State)
	assert.NotEmpty(t, out.ChatID)
	assert.Equal(t, out.ChatID, f.store.ActiveChatID())
	assert.Equal(t, "ds-a", f.store.ActiveDataSourceID())
	assert.Equal(t, Bound, f.c.State())
}

func TestSelectSameSourceDeselects(t *testing.T) {
	f := newFixture(t)
	out, err := f.c.Select(context.Background(), "ds-a")
	require.NoError(t, err)

	again, err := f.c.Select(context.Background(), "ds-a")
	require.NoError(t, err)
	assert.Equal(t, Unbound, again.State)
	assert.Empty(t, f.store.ActiveDataSourceID())
	assert.Empty(t, f.store.ActiveChatID())

	list, err := f.db.ListSessions(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, out.ChatID, list[0].ID, "session stays listed")
}

func TestSwitchConfirmCreatesNewSession(t *testing.T) {
	f := newFixture(t)
	first, err := f.c.Select(context.Background(), "ds-a")
	require.NoError(t, err)
	f.store.AppendMessage(model.UserMessage("how many users?"))

	pending, err := f.c.Select(context.Background(), "ds-b")
	require.NoError(t, err)
	assert.Equal(t, PendingSwitch, pending.State)
	assert.Equal(t, "ds-b", pending.Pending)
	assert.Equal(t, first.ChatID, f.store.ActiveChatID(), "nothing mutated yet")
	assert.Equal(t, "ds-a", f.store.ActiveDataSourceID())
	assert.Equal(t, 1, f.store.Len())

	done, err := f.c.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Bound, done.State)
	assert.NotEqual(t, first.ChatID, done.ChatID)
	assert.Equal(t, done.ChatID, f.store.ActiveChatID())
	assert.Equal(t, "ds-b", f.store.ActiveDataSourceID())
	assert.Empty(t, f.c.Pending())

	list, err := f.db.ListSessions(context.Background(), "alice")
	require.NoError(t, err)
	ids := []string{list[0].ID, list[1].ID}
	assert.Contains(t, ids, first.ChatID)

	orig, err := f.db.GetSession(context.Background(), "alice", first.ChatID)
	require.NoError(t, err)
	assert.Equal(t, "ds-a", orig.DataSourceID, "original binding untouched")
}

func TestSwitchCancel(t *testing.T) {
	f := newFixture(t)
	first, err := f.c.Select(context.Background(), "ds-a")
	require.NoError(t, err)

	_, err = f.c.Select(context.Background(), "ds-b")
	require.NoError(t, err)

	out, err := f.c.Cancel()
	require.NoError(t, err)
	assert.Equal(t, Bound, out.State)
	assert.Equal(t, first.ChatID, out.ChatID)
	assert.Equal(t, "ds-a", f.store.ActiveDataSourceID())

	list, err := f.db.ListSessions(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPendingReselect(t *testing.T) {
	f := newFixture(t)
	_, err := f.c.Select(context.Background(), "ds-a")
	require.NoError(t, err)

	_, err = f.c.Select(context.Background(), "ds-b")
	require.NoError(t, err)
	out, err := f.c.Select(context.Background(), "ds-c")
	require.NoError(t, err)
	assert.Equal(t, "ds-c", out.Pending)

	out, err = f.c.Select(context.Background(), "ds-a")
	require.NoError(t, err)
	assert.Equal(t, Bound, out.State)
	assert.Empty(t, f.c.Pending())
}

func TestConfirmWithoutPending(t *testing.T) {
	f := newFixture(t)
	_, err := f.c.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrNoPendingSwitch)
	_, err = f.c.Cancel()
	assert.ErrorIs(t, err, ErrNoPendingSwitch)
}

type failingCreator struct{}

func (failingCreator) CreateSession(context.Context, string, string) (string, error) {
	return "", errors.New("create failed")
}

func TestConfirmFailureKeepsPending(t *testing.T) {
	store := state.NewStore(nil, 0)
	store.SetActiveDataSourceID("ds-a")
	store.SetActiveChatID("chat-a")
	b := bus.New()
	defer b.Close()
	c := NewCoordinator(store, failingCreator{}, b)

	_, err := c.Select(context.Background(), "ds-b")
	require.NoError(t, err)

	out, err := c.Confirm(context.Background())
	assert.Error(t, err)
	assert.Equal(t, PendingSwitch, out.State)
	assert.Equal(t, "chat-a", store.ActiveChatID())
	assert.Equal(t, "ds-b", c.Pending())
}

func TestChatWithoutSourceIsUnbound(t *testing.T) {
	f := newFixture(t)
	f.store.SetActiveChatID("orphan")
	assert.Equal(t, Unbound, f.c.State())

	out, err := f.c.Select(context.Background(), "ds-a")
	require.NoError(t, err)
	assert.Equal(t, Bound, out.State)
	assert.NotEqual(t, "orphan", out.ChatID)
	assert.Equal(t, "ds-a", f.store.ActiveDataSourceID())
}
