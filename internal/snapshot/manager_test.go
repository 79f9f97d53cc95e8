package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/r2client"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/storage"
)

type memStore struct {
	objects map[string][]byte
	types   map[string]string
	failPut error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memStore) Upload(_ context.Context, key string, body io.Reader, ct string) (string, error) {
	if s.failPut != nil {
		return "", s.failPut
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.objects[key] = data
	s.types[key] = ct
	return "etag-1", nil
}

func (s *memStore) Download(_ context.Context, key string) (io.ReadCloser, string, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, "", r2client.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "etag-1", nil
}

type failingSource struct{}

func (failingSource) BackupTo(context.Context, string) error { return errors.New("disk full") }

func TestUploadRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := storage.New(ctx, filepath.Join(dir, "live", "eco.db"))
	require.NoError(t, err)
	defer db.Close()
	_, err = db.GetOrCreateProfile(ctx, "U1", "")
	require.NoError(t, err)
	_, err = db.GetOrCreateProfile(ctx, "U2", "")
	require.NoError(t, err)

	store := newMemStore()
	m := New(store, Config{Key: "snapshots/eco.db.zst", TempDir: dir})

	res, err := m.Upload(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "etag-1", res.ETag)
	assert.Positive(t, res.RawBytes)
	assert.Positive(t, res.CompressedSize)
	assert.Equal(t, "application/zstd", store.types["snapshots/eco.db.zst"])

	restored := filepath.Join(dir, "restored", "eco.db")
	etag, err := m.Restore(ctx, restored)
	require.NoError(t, err)
	assert.Equal(t, "etag-1", etag)
	_, err = os.Stat(restored + ".restore")
	assert.True(t, os.IsNotExist(err))

	copyDB, err := storage.New(ctx, restored)
	require.NoError(t, err)
	defer copyDB.Close()
	n, err := copyDB.CountProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	leftovers, err := filepath.Glob(filepath.Join(dir, "snapshot_*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRestore_Empty(t *testing.T) {
	m := New(newMemStore(), Config{Key: "snapshots/eco.db.zst"})

	dst := filepath.Join(t.TempDir(), "eco.db")
	_, err := m.Restore(context.Background(), dst)
	require.ErrorIs(t, err, ErrNotFound)
	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRestore_CorruptKeepsDestination(t *testing.T) {
	store := newMemStore()
	store.objects["k"] = []byte("not zstd at all")
	m := New(store, Config{Key: "k"})

	dst := filepath.Join(t.TempDir(), "eco.db")
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o600))

	_, err := m.Restore(context.Background(), dst)
	require.Error(t, err)
	data, readErr := os.ReadFile(dst)
	require.NoError(t, readErr)
	assert.Equal(t, "old", string(data))
}

func TestUpload_Failures(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := New(newMemStore(), Config{Key: "k", TempDir: dir}).Upload(ctx, failingSource{})
	require.ErrorContains(t, err, "disk full")

	db, err := storage.NewTestDB(ctx)
	require.NoError(t, err)
	defer db.Close()

	store := newMemStore()
	store.failPut = errors.New("403 forbidden")
	_, err = New(store, Config{Key: "k", TempDir: dir}).Upload(ctx, db)
	require.ErrorContains(t, err, "403 forbidden")

	leftovers, err := filepath.Glob(filepath.Join(dir, "snapshot_*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
