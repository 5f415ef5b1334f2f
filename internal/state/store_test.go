package state

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querai-chat/internal/model"
	"querai-chat/internal/pointer"
)

type failingPointer struct{ pointer.MemoryStore }

func (f *failingPointer) Save(string) error { return errors.New("disk full") }

func TestStore_ActiveChatPersistsPointer(t *testing.T) {
	p := pointer.NewMemoryStore()
	s := NewStore(p, 0)

	s.SetActiveChatID("chat-1")
	assert.Equal(t, "chat-1", s.ActiveChatID())
	saved, _ := p.Load()
	assert.Equal(t, "chat-1", saved)

	s.SetActiveChatID("")
	saved, _ = p.Load()
	assert.Empty(t, saved)
}

func TestStore_Init(t *testing.T) {
	p := pointer.NewMemoryStore()
	require.NoError(t, p.Save("persisted"))

	s := NewStore(p, 0)
	id, err := s.Init()
	require.NoError(t, err)
	assert.Equal(t, "persisted", id)
	assert.Empty(t, s.ActiveChatID(), "init does not activate the chat")
}

func TestStore_PointerFailureDoesNotBlock(t *testing.T) {
	s := NewStore(&failingPointer{}, 0)
	s.SetActiveChatID("chat-1")
	assert.Equal(t, "chat-1", s.ActiveChatID())
}

func TestStore_AppendOnlyLog(t *testing.T) {
	s := NewStore(nil, 0)
	s.AppendMessage(model.UserMessage("q1"))
	s.AppendMessage(model.AssistantMessage(model.AssistantPayload{Explanation: "a1"}))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	msgs[0].Content = "mutated"
	assert.Equal(t, "q1", s.Messages()[0].Content, "callers get a copy")
}

func TestStore_ResetAndClear(t *testing.T) {
	p := pointer.NewMemoryStore()
	s := NewStore(p, 0)
	s.SetActiveChatID("chat-1")
	s.SetActiveDataSourceID("ds-1")
	s.AppendMessage(model.UserMessage("q"))

	s.Reset()
	assert.Empty(t, s.ActiveChatID())
	assert.Zero(t, s.Len())
	assert.Equal(t, "ds-1", s.ActiveDataSourceID())
	saved, _ := p.Load()
	assert.Empty(t, saved)

	s.SetActiveChatID("chat-2")
	s.Clear()
	assert.Empty(t, s.ActiveChatID())
	assert.Empty(t, s.ActiveDataSourceID())
}

func TestStore_VisibleWindow(t *testing.T) {
	s := NewStore(nil, 50)
	msgs := make([]model.Message, 0, 120)
	for i := 0; i < 120; i++ {
		msgs = append(msgs, model.UserMessage(fmt.Sprintf("m%d", i)))
	}
	s.SetMessages(msgs)

	visible := s.VisibleMessages()
	require.Len(t, visible, 50)
	assert.Equal(t, "m70", visible[0].Content)
	assert.True(t, s.HasOlder())

	assert.Equal(t, 100, s.LoadOlder())
	assert.Len(t, s.VisibleMessages(), 100)
	assert.Equal(t, 150, s.LoadOlder())
	assert.Len(t, s.VisibleMessages(), 120)
	assert.False(t, s.HasOlder())
	assert.Equal(t, 120, s.Len(), "the window never truncates the log")

	s.SetMessages(nil)
	assert.Equal(t, 50, s.VisibleWindow(), "loading a session resets the window")
}

func TestStore_Dispose(t *testing.T) {
	p := pointer.NewMemoryStore()
	s := NewStore(p, 0)
	s.SetActiveChatID("chat-1")
	s.Dispose()

	s.SetActiveChatID("chat-2")
	s.AppendMessage(model.UserMessage("late"))
	s.Reset()

	assert.Equal(t, "chat-1", s.ActiveChatID())
	assert.Zero(t, s.Len())
	saved, _ := p.Load()
	assert.Equal(t, "chat-1", saved, "dispose keeps the pointer for the next start")

	_, err := s.Init()
	assert.ErrorIs(t, err, ErrDisposed)
}
