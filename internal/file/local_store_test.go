package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "abc.txt", strings.NewReader("hello"), 5, "text/plain"))

	r, err := store.Open(ctx, "abc.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "hello", string(body))

	require.NoError(t, store.Delete(ctx, "abc.txt"))
	_, err = os.Stat(filepath.Join(dir, "abc.txt"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(ctx, "abc.txt"), "deleting a missing key is a no-op")

	_, err = store.Open(ctx, "abc.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestLocalStoreRejectsPathKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "../escape", "a/b"} {
		assert.Error(t, store.Save(context.Background(), key, strings.NewReader("x"), 1, ""), "key %q", key)
	}
}

func TestLocalStoreStopsOnCancelledContext(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = store.Save(ctx, "abc.txt", strings.NewReader("hello"), 5, "")
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file must be cleaned up")
}
