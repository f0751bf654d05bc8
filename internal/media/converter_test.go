package media_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ysicing/AutoEcoleMedia/internal/media"
	"github.com/ysicing/AutoEcoleMedia/internal/media/mediatest"
)

var fastRetry = media.RetryPolicy{Attempts: 3, Delay: time.Millisecond}

func newConverter(enc media.Encoder) (*media.Converter, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return media.NewConverter(enc, fastRetry, zap.New(core).Sugar(), nil), logs
}

func TestConvertPassthrough(t *testing.T) {
	for name, want := range map[string]media.Format{
		"photo.webp":        media.FormatWEBP,
		"photo.avif":        media.FormatAVIF,
		"images/PHOTO.WEBP": media.FormatWEBP,
	} {
		enc := mediatest.NewEncoder()
		conv, _ := newConverter(enc)

		src := []byte("already-modern")
		out, err := conv.Convert(context.Background(), src, name)
		require.NoError(t, err, name)

		assert.True(t, out.Passthrough, name)
		assert.Equal(t, want, out.Format, name)
		assert.Equal(t, src, out.Data, name)
		assert.Equal(t, 1, enc.Probes(), name)
		assert.Zero(t, enc.Calls(media.FormatAVIF), name)
		assert.Zero(t, enc.Calls(media.FormatWEBP), name)
	}
}

func TestConvertPassthroughProbeFailureStillUploads(t *testing.T) {
	enc := mediatest.NewEncoder()
	enc.ProbeErr = errors.New("bad header")
	conv, logs := newConverter(enc)

	out, err := conv.Convert(context.Background(), []byte("junk"), "broken.avif")
	require.NoError(t, err)
	assert.Equal(t, media.FormatAVIF, out.Format)
	assert.Equal(t, []byte("junk"), out.Data)
	assert.Equal(t, 1, logs.FilterMessageSnippet("broken.avif").Len())
}

func TestConvertPrefersAVIF(t *testing.T) {
	enc := mediatest.NewEncoder()
	conv, _ := newConverter(enc)

	out, err := conv.Convert(context.Background(), []byte("png-bytes"), "types/categorie A.jpg")
	require.NoError(t, err)
	assert.Equal(t, media.FormatAVIF, out.Format)
	assert.False(t, out.Passthrough)
	assert.Equal(t, "avif:q80:9", string(out.Data))
	assert.Equal(t, 1, enc.Calls(media.FormatAVIF))
	assert.Zero(t, enc.Calls(media.FormatWEBP))
}

func TestConvertRetriesThenSucceedsWithoutFallback(t *testing.T) {
	enc := mediatest.NewEncoder()
	enc.Failures[media.FormatAVIF] = 2
	conv, logs := newConverter(enc)

	out, err := conv.Convert(context.Background(), []byte("x"), "a.png")
	require.NoError(t, err)
	assert.Equal(t, media.FormatAVIF, out.Format)
	assert.Equal(t, 3, enc.Calls(media.FormatAVIF))
	assert.Zero(t, enc.Calls(media.FormatWEBP))
	assert.Equal(t, 1, logs.FilterMessageSnippet("1/3").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("2/3").Len())
}

func TestConvertFallsBackToWEBP(t *testing.T) {
	enc := mediatest.NewEncoder()
	enc.Failures[media.FormatAVIF] = mediatest.Always
	conv, _ := newConverter(enc)

	out, err := conv.Convert(context.Background(), []byte("x"), "a.jpeg")
	require.NoError(t, err)
	assert.Equal(t, media.FormatWEBP, out.Format)
	assert.Equal(t, "webp:q85:1", string(out.Data))
	assert.Equal(t, 3, enc.Calls(media.FormatAVIF))
	assert.Equal(t, 1, enc.Calls(media.FormatWEBP))
}

func TestConvertTotalFailure(t *testing.T) {
	enc := mediatest.NewEncoder()
	enc.Failures[media.FormatAVIF] = mediatest.Always
	enc.Failures[media.FormatWEBP] = mediatest.Always
	conv, _ := newConverter(enc)

	_, err := conv.Convert(context.Background(), []byte("x"), "a.gif")
	assert.ErrorIs(t, err, media.ErrConvertFailed)
	assert.Equal(t, 3, enc.Calls(media.FormatAVIF))
	assert.Equal(t, 3, enc.Calls(media.FormatWEBP))
}

type panicEncoder struct{ mediatest.Encoder }

func (p *panicEncoder) Encode(data []byte, f media.Format, q int) ([]byte, error) {
	panic("cgo blew up")
}

func TestConvertRecoversEncoderPanic(t *testing.T) {
	conv, _ := newConverter(&panicEncoder{})
	_, err := conv.Convert(context.Background(), []byte("x"), "a.png")
	assert.ErrorIs(t, err, media.ErrConvertFailed)
}

func TestConvertStopsOnCancelledContext(t *testing.T) {
	enc := mediatest.NewEncoder()
	enc.Failures[media.FormatAVIF] = mediatest.Always
	conv := media.NewConverter(enc, media.RetryPolicy{Attempts: 3, Delay: time.Hour}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := conv.Convert(ctx, []byte("x"), "a.png")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, enc.Calls(media.FormatAVIF))
	assert.Zero(t, enc.Calls(media.FormatWEBP))
}
