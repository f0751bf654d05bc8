package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageUpsertOverwrites(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(root, "http://localhost:3000/media/")
	require.NoError(t, err)

	ctx := context.Background()
	opts := UploadOptions{ContentType: "image/avif", Upsert: true}

	key, err := s.Upload(ctx, "types/categorie-a.avif", bytes.NewReader([]byte("one")), 3, opts)
	require.NoError(t, err)
	assert.Equal(t, "types/categorie-a.avif", key)

	_, err = s.Upload(ctx, "types/categorie-a.avif", bytes.NewReader([]byte("two")), 3, opts)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(root, "types", "categorie-a.avif"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
	assert.Equal(t, "http://localhost:3000/media/types/categorie-a.avif", s.PublicURL(key))
}

func TestLocalStorageRejectsExistingWithoutUpsert(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "http://x")
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.Upload(ctx, "a.webp", bytes.NewReader([]byte("1")), 1, UploadOptions{})
	require.NoError(t, err)

	_, err = s.Upload(ctx, "a.webp", bytes.NewReader([]byte("2")), 1, UploadOptions{})
	assert.ErrorIs(t, err, ErrObjectExists)
}

func TestLocalStorageLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(root, "http://x")
	require.NoError(t, err)

	_, err = s.Upload(context.Background(), "images/logo.avif", bytes.NewReader([]byte("x")), 1, UploadOptions{Upsert: true})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "images"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "logo.avif", entries[0].Name())
}
