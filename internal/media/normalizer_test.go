package media_test

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ysicing/AutoEcoleMedia/internal/media"
	"github.com/ysicing/AutoEcoleMedia/internal/media/mediatest"
)

func newNormalizer(enc *mediatest.Encoder, store *mediatest.Storage) *media.Normalizer {
	return media.NewNormalizer(media.Options{Encoder: enc, Storage: store, Retry: fastRetry})
}

func writeFile(t *testing.T, dir, rel string, data []byte) string {
	t.Helper()
	abs := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
	require.NoError(t, os.WriteFile(abs, data, 0644))
	return abs
}

func TestProcessFileConvertsAndUploads(t *testing.T) {
	dir := t.TempDir()
	abs := writeFile(t, dir, "types/categorie A.jpg", []byte("jpeg"))

	enc, store := mediatest.NewEncoder(), mediatest.NewStorage()
	res := newNormalizer(enc, store).ProcessFile(context.Background(), abs, "/types/categorie A.jpg")

	require.True(t, res.OK(), "err: %v", res.Err)
	assert.Equal(t, "types/categorie A.jpg", res.LogicalPath)
	assert.Equal(t, "types/categorie-a.avif", res.Key)
	assert.Equal(t, "https://cdn.test/media/types/categorie-a.avif", res.URL)

	uploads := store.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "image/avif", uploads[0].ContentType)
	assert.True(t, uploads[0].Upsert)
}

func TestProcessFilePassthroughKeepsBytes(t *testing.T) {
	dir := t.TempDir()
	abs := writeFile(t, dir, "images/photo.webp", []byte("RIFF....WEBP"))

	enc, store := mediatest.NewEncoder(), mediatest.NewStorage()
	res := newNormalizer(enc, store).ProcessFile(context.Background(), abs, "images/photo.webp")

	require.True(t, res.OK())
	assert.True(t, res.Passthrough)
	uploads := store.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "images/photo.webp", uploads[0].Key)
	assert.Equal(t, "image/webp", uploads[0].ContentType)
	assert.Equal(t, []byte("RIFF....WEBP"), uploads[0].Data)
	assert.Zero(t, enc.Calls(media.FormatAVIF)+enc.Calls(media.FormatWEBP))
}

func TestProcessFileFallbackStoresWEBP(t *testing.T) {
	dir := t.TempDir()
	abs := writeFile(t, dir, "articles/new laws.jpg", []byte("jpeg"))

	enc, store := mediatest.NewEncoder(), mediatest.NewStorage()
	enc.Failures[media.FormatAVIF] = mediatest.Always

	res := newNormalizer(enc, store).ProcessFile(context.Background(), abs, "articles/new laws.jpg")
	require.True(t, res.OK())
	assert.Equal(t, media.FormatWEBP, res.Format)

	uploads := store.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "articles/new-laws.webp", uploads[0].Key)
	assert.Equal(t, "image/webp", uploads[0].ContentType)
}

func TestProcessFileTotalFailureSkipsUpload(t *testing.T) {
	dir := t.TempDir()
	abs := writeFile(t, dir, "a.png", []byte("png"))

	enc, store := mediatest.NewEncoder(), mediatest.NewStorage()
	enc.Failures[media.FormatAVIF] = mediatest.Always
	enc.Failures[media.FormatWEBP] = mediatest.Always

	res := newNormalizer(enc, store).ProcessFile(context.Background(), abs, "a.png")
	assert.False(t, res.OK())
	assert.Equal(t, media.ReasonConvert, res.Reason)
	assert.Empty(t, res.URL)
	assert.Empty(t, store.Uploads())
}

func TestProcessFileEmptyAndMissing(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.png", nil)

	enc, store := mediatest.NewEncoder(), mediatest.NewStorage()
	n := newNormalizer(enc, store)

	res := n.ProcessFile(context.Background(), empty, "empty.png")
	assert.Equal(t, media.ReasonEmptySource, res.Reason)
	assert.ErrorIs(t, res.Err, media.ErrEmptySource)

	res = n.ProcessFile(context.Background(), filepath.Join(dir, "missing.png"), "missing.png")
	assert.Equal(t, media.ReasonUnreadable, res.Reason)

	assert.Zero(t, enc.Calls(media.FormatAVIF))
	assert.Empty(t, store.Uploads())
}

func TestProcessUploadRejected(t *testing.T) {
	enc, store := mediatest.NewEncoder(), mediatest.NewStorage()
	store.Err = mediatest.ErrRejected

	res := newNormalizer(enc, store).ProcessBuffer(context.Background(), []byte("png"), "a.png", "images")
	assert.False(t, res.OK())
	assert.Equal(t, media.ReasonUpload, res.Reason)
	assert.ErrorIs(t, res.Err, mediatest.ErrRejected)
	assert.Empty(t, res.URL)
	assert.Len(t, store.Uploads(), 1)
}

func TestProcessUploadTimeout(t *testing.T) {
	enc, store := mediatest.NewEncoder(), mediatest.NewStorage()
	store.Block = true

	n := media.NewNormalizer(media.Options{
		Encoder:       enc,
		Storage:       store,
		Retry:         fastRetry,
		UploadTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	res := n.ProcessBuffer(context.Background(), []byte("png"), "a.png", "images")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, res.OK())
	assert.Equal(t, media.ReasonUpload, res.Reason)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Empty(t, res.URL)
}

func TestProcessBufferUniqueName(t *testing.T) {
	enc, store := mediatest.NewEncoder(), mediatest.NewStorage()
	n := newNormalizer(enc, store)

	first := n.ProcessBuffer(context.Background(), []byte("png"), "Mon Permis.PNG", "types")
	second := n.ProcessBuffer(context.Background(), []byte("png"), "Mon Permis.PNG", "types")
	require.True(t, first.OK())
	require.True(t, second.OK())

	assert.Regexp(t, regexp.MustCompile(`^types/Mon Permis-\d{13}-[0-9a-f]{7}\.png$`), first.LogicalPath)
	assert.Regexp(t, regexp.MustCompile(`^types/mon-permis-\d{13}-[0-9a-f]{7}\.avif$`), first.Key)
	assert.NotEqual(t, first.Key, second.Key)
}

func TestUniquePathEdgeCases(t *testing.T) {
	n := newNormalizer(mediatest.NewEncoder(), mediatest.NewStorage())

	assert.Regexp(t, `^images/image-\d+-[0-9a-f]{7}$`, n.UniquePath("", "images"))
	assert.Regexp(t, `^images/image-\d+-[0-9a-f]{7}\.jpg$`, n.UniquePath(".jpg", "images"))
	assert.Regexp(t, `^articles/photo-\d+-[0-9a-f]{7}\.webp$`, n.UniquePath(`C:\Users\me\photo.WEBP`, "articles"))
}

func TestProcessBufferPassthroughUsesOriginalExtension(t *testing.T) {
	enc, store := mediatest.NewEncoder(), mediatest.NewStorage()
	res := newNormalizer(enc, store).ProcessBuffer(context.Background(), []byte("avif"), "hero.AVIF", "images")

	require.True(t, res.OK())
	assert.True(t, res.Passthrough)
	assert.Equal(t, media.FormatAVIF, res.Format)
	assert.Equal(t, "image/avif", store.Uploads()[0].ContentType)
}
