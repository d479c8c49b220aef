package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	data := []byte("prefix\tlength\tfirst\n\t0\t-1\n")

	w, err := store.Create(ctx, "runs/tdata/cache.tsv")
	require.NoError(t, err)
	n, err := w.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	// Not visible before Close.
	_, err = os.Stat(filepath.Join(tmpDir, "runs", "tdata", "cache.tsv"))
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, w.Close())

	blob, err := store.Open(ctx, "runs/tdata/cache.tsv")
	require.NoError(t, err)
	defer blob.Close()
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 6)
	n, err = blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, "prefix", string(buf))

	rc, err := blob.ReadRange(ctx, 7, 6)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "length", string(got))

	require.NoError(t, store.Put(ctx, "runs/tdata/manifest.json", []byte(`{}`)))
	require.NoError(t, store.Put(ctx, "other/x", []byte("x")))

	names, err := store.List(ctx, "runs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/tdata/cache.tsv", "runs/tdata/manifest.json"}, names)

	all, err := ReadAll(ctx, store, "runs/tdata/cache.tsv")
	require.NoError(t, err)
	assert.Equal(t, data, all)

	require.NoError(t, store.Delete(ctx, "runs/tdata/cache.tsv"))
	require.NoError(t, store.Delete(ctx, "runs/tdata/cache.tsv"))

	_, err = store.Open(ctx, "runs/tdata/cache.tsv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Open(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)

	w, err := store.Create(ctx, "b/1")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, store.Put(ctx, "a", []byte("world")))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b/1"}, names)

	data, err := ReadAll(ctx, store, "b/1")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Put(ctx, "empty", nil))
	data, err = ReadAll(ctx, store, "empty")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestMemoryStore_WriterLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	w, err := store.Create(ctx, "run/dump")
	require.NoError(t, err)
	_, err = w.Write([]byte("1,2\t0.5"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	_, err = store.Open(ctx, "run/dump")
	require.ErrorIs(t, err, ErrNotFound, "nothing is visible before Close")

	require.NoError(t, w.Close())
	assert.Equal(t, int64(7), store.Usage())

	_, err = w.Write([]byte("x"))
	assert.Error(t, err)
	assert.Error(t, w.Close())
	assert.Error(t, w.Sync())

	data, err := ReadAll(ctx, store, "run/dump")
	require.NoError(t, err)
	assert.Equal(t, "1,2\t0.5", string(data))

	require.NoError(t, store.Delete(ctx, "run/dump"))
	assert.Zero(t, store.Usage())
}

func TestMemoryStore_Reads(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	src := []byte("0123456789")
	require.NoError(t, store.Put(ctx, "a", src))
	src[0] = 'x'

	b, err := store.Open(ctx, "a")
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, int64(10), b.Size())

	p := make([]byte, 4)
	n, err := b.ReadAt(ctx, p, 8)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "89", string(p[:n]))

	_, err = b.ReadAt(ctx, p, -1)
	assert.ErrorIs(t, err, io.EOF)

	rc, err := b.ReadRange(ctx, 0, 3)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "012", string(got), "Put stores a copy")

	_, err = b.ReadRange(ctx, -1, 3)
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = b.ReadAt(cancelled, p, 0)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = b.ReadRange(cancelled, 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.Open(cancelled, "a")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.Create(cancelled, "b")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Put(cancelled, "b", nil), context.Canceled)
}
