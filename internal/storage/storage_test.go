package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querai-chat/internal/config"
	"querai-chat/internal/model"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	dir := t.TempDir()
	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"disk":   NewDiskStorage(filepath.Join(dir, "disk"), 2),
		"sqlite": NewSQLiteStorage(filepath.Join(dir, "sqlite", "chats.db")),
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Storage)) {
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Init())
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func TestInsertAndGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		id, err := s.InsertSession(ctx, &model.SessionRecord{
			OwnerID:      "alice",
			Title:        "hello",
			DataSourceID: "ds-1",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		rec, err := s.GetSession(ctx, "alice", id)
		require.NoError(t, err)
		assert.Equal(t, id, rec.ID)
		assert.Equal(t, "hello", rec.Title)
		assert.Equal(t, "ds-1", rec.DataSourceID)
		assert.NotNil(t, rec.Messages)
		assert.Empty(t, rec.Messages)
		assert.False(t, rec.CreatedAt.IsZero())
	})
}

func TestInsertKeepsMessages(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		msgs := []json.RawMessage{
			json.RawMessage(`{"role":"user","content":"hi"}`),
			json.RawMessage(`{"role":"assistant","content":"hello"}`),
		}
		id, err := s.InsertSession(ctx, &model.SessionRecord{OwnerID: "alice", Messages: msgs})
		require.NoError(t, err)

		rec, err := s.GetSession(ctx, "alice", id)
		require.NoError(t, err)
		require.Len(t, rec.Messages, 2)
		assert.JSONEq(t, string(msgs[0]), string(rec.Messages[0]))
		assert.JSONEq(t, string(msgs[1]), string(rec.Messages[1]))
	})
}

func TestInsertRequiresOwner(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		_, err := s.InsertSession(context.Background(), &model.SessionRecord{Title: "x"})
		assert.ErrorIs(t, err, ErrInvalidData)
	})
}

func TestOwnerScoping(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		id, err := s.InsertSession(ctx, &model.SessionRecord{OwnerID: "alice"})
		require.NoError(t, err)

		_, err = s.GetSession(ctx, "bob", id)
		assert.ErrorIs(t, err, ErrSessionNotFound)

		assert.ErrorIs(t, s.UpdateTitle(ctx, "bob", id, "stolen"), ErrSessionNotFound)
		assert.ErrorIs(t, s.DeleteSession(ctx, "bob", id), ErrSessionNotFound)

		list, err := s.ListSessions(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, list)

		n, err := s.DeleteAllSessions(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		rec, err := s.GetSession(ctx, "alice", id)
		require.NoError(t, err)
		assert.Empty(t, rec.Title)
	})
}

func TestListNewestFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		for i, title := range []string{"first", "second", "third"} {
			_, err := s.InsertSession(ctx, &model.SessionRecord{
				OwnerID:   "alice",
				Title:     title,
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
		}

		list, err := s.ListSessions(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "third", list[0].Title)
		assert.Equal(t, "second", list[1].Title)
		assert.Equal(t, "first", list[2].Title)
		assert.True(t, list[0].CreatedAt.Equal(base.Add(2*time.Minute)))
	})
}

func TestUpdateTitleAndBind(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		id, err := s.InsertSession(ctx, &model.SessionRecord{OwnerID: "alice"})
		require.NoError(t, err)

		require.NoError(t, s.UpdateTitle(ctx, "alice", id, "Top customers by revenue"))
		require.NoError(t, s.BindDataSource(ctx, "alice", id, "ds-9"))

		rec, err := s.GetSession(ctx, "alice", id)
		require.NoError(t, err)
		assert.Equal(t, "Top customers by revenue", rec.Title)
		assert.Equal(t, "ds-9", rec.DataSourceID)

		list, err := s.ListSessions(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Top customers by revenue", list[0].Title)

		assert.ErrorIs(t, s.UpdateTitle(ctx, "alice", "missing", "x"), ErrSessionNotFound)
		assert.ErrorIs(t, s.BindDataSource(ctx, "alice", "missing", "x"), ErrSessionNotFound)
	})
}

func TestDeleteSession(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		keep, err := s.InsertSession(ctx, &model.SessionRecord{OwnerID: "alice", Title: "keep"})
		require.NoError(t, err)
		drop, err := s.InsertSession(ctx, &model.SessionRecord{OwnerID: "alice", Title: "drop"})
		require.NoError(t, err)

		require.NoError(t, s.DeleteSession(ctx, "alice", drop))

		_, err = s.GetSession(ctx, "alice", drop)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.ErrorIs(t, s.DeleteSession(ctx, "alice", drop), ErrSessionNotFound)

		list, err := s.ListSessions(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, keep, list[0].ID)
	})
}

func TestDeleteAllSessions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			_, err := s.InsertSession(ctx, &model.SessionRecord{OwnerID: "alice"})
			require.NoError(t, err)
		}
		other, err := s.InsertSession(ctx, &model.SessionRecord{OwnerID: "bob"})
		require.NoError(t, err)

		n, err := s.DeleteAllSessions(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		list, err := s.ListSessions(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, list)

		_, err = s.GetSession(ctx, "bob", other)
		assert.NoError(t, err)
	})
}

func TestGetReturnsCopy(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		id, err := s.InsertSession(ctx, &model.SessionRecord{OwnerID: "alice", Title: "orig"})
		require.NoError(t, err)

		rec, err := s.GetSession(ctx, "alice", id)
		require.NoError(t, err)
		rec.Title = "mutated"

		again, err := s.GetSession(ctx, "alice", id)
		require.NoError(t, err)
		assert.Equal(t, "orig", again.Title)
	})
}

func TestDiskStorageSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := NewDiskStorage(dir, 10)
	require.NoError(t, first.Init())
	id, err := first.InsertSession(ctx, &model.SessionRecord{OwnerID: "alice", Title: "persisted"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := NewDiskStorage(dir, 10)
	require.NoError(t, second.Init())
	rec, err := second.GetSession(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, "persisted", rec.Title)
}

func TestDiskStorageRejectsPathIDs(t *testing.T) {
	s := NewDiskStorage(t.TempDir(), 10)
	require.NoError(t, s.Init())

	_, err := s.GetSession(context.Background(), "alice", "../sessions")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = s.InsertSession(context.Background(), &model.SessionRecord{ID: "a/b", OwnerID: "alice"})
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	s, err := New(config.StorageConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = New(config.StorageConfig{Type: "disk", DataDir: dir})
	require.NoError(t, err)
	assert.IsType(t, &DiskStorage{}, s)

	s, err = New(config.StorageConfig{Type: "sqlite", DataDir: dir})
	require.NoError(t, err)
	require.IsType(t, &SQLiteStorage{}, s)
	assert.Equal(t, filepath.Join(dir, "chats.db"), s.(*SQLiteStorage).dsn)

	_, err = New(config.StorageConfig{Type: "redis"})
	assert.ErrorIs(t, err, ErrUnknownType)
}
