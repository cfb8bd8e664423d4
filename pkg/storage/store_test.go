package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "up-1", []byte("PK archive")))
	got, err := s.Get(ctx, "up-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("PK archive"), got)

	require.NoError(t, s.Put(ctx, "up-1", []byte("replaced")))
	got, err = s.Get(ctx, "up-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), got)

	require.NoError(t, s.Delete(ctx, "up-1"))
	_, err = s.Get(ctx, "up-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "up-1"), "deleting twice is fine")

	assert.Error(t, s.Put(ctx, "", []byte("x")))
	assert.Error(t, s.Put(ctx, "../escape", []byte("x")))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	s := NewMemoryStore()
	data := []byte("abc")
	require.NoError(t, s.Put(context.Background(), "id", data))
	data[0] = 'X'

	got, err := s.Get(context.Background(), "id")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestDiskStore(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(Config{Kind: "disk", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &DiskStore{}, s)

	_, err = Open(Config{Kind: "s3"})
	assert.Error(t, err, "s3 needs an endpoint")

	_, err = Open(Config{Kind: "ftp"})
	assert.Error(t, err)
}
