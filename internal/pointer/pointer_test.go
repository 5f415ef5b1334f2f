package pointer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "pointer.yaml")
	s := NewFileStore(path)

	id, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, id, "missing file means no pointer")

	require.NoError(t, s.Save("chat-1"))
	require.NoError(t, s.Save("chat-2"))

	reopened := NewFileStore(path)
	id, err = reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, "chat-2", id)

	require.NoError(t, reopened.Clear())
	require.NoError(t, reopened.Clear(), "clearing twice is fine")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pointer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("current_chat_id: [unterminated"), 0644))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Save("chat-1"))
	id, _ := s.Load()
	assert.Equal(t, "chat-1", id)

	require.NoError(t, s.Clear())
	id, _ = s.Load()
	assert.Empty(t, id)
}
