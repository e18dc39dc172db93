package proxy

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/pso2go/internal/capture"
	"github.com/udisondev/pso2go/internal/protocol"
	"github.com/udisondev/pso2go/internal/testutil"
	"github.com/udisondev/pso2go/internal/variant"
)

func TestMultiCaptures_Files(t *testing.T) {
	dirs := []string{t.TempDir(), filepath.Join(t.TempDir(), "nested")}
	open := MultiCaptures(FileCaptures(dirs[0], false), FileCaptures(dirs[1], true))

	info := SessionInfo{
		ID:        7,
		Client:    testutil.TCPAddr("127.0.0.1:50000"),
		StartedAt: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
	}
	sink, err := open(context.Background(), info, variant.NGS)
	require.NoError(t, err)

	ping, err := protocol.Encode(&protocol.ServerPing{}, variant.NGS)
	require.NoError(t, err)
	require.NoError(t, sink.WriteFrame(info.StartedAt, capture.ToClient, ping))
	require.NoError(t, sink.(capture.VariantSetter).SetVariant(variant.JP))
	require.NoError(t, sink.Close())

	for _, dir := range dirs {
		path := filepath.Join(dir, "20240301-123000-000007.ppac")
		require.FileExists(t, path)

		r, err := capture.Open(path)
		require.NoError(t, err)
		assert.Equal(t, variant.JP, r.Variant())
		rec, err := r.NextFrame()
		require.NoError(t, err)
		assert.Equal(t, ping, rec.Data)
		assert.Equal(t, capture.ToClient, rec.Direction)
		require.NoError(t, r.Close())
	}
}

func TestFileCaptures_RawVariant(t *testing.T) {
	dir := t.TempDir()
	_, err := FileCaptures(dir, false)(context.Background(), SessionInfo{ID: 1}, variant.Raw)
	var verr *capture.InvalidVariantError
	assert.ErrorAs(t, err, &verr)
}

func TestMultiCaptures_ClosesOpenedOnError(t *testing.T) {
	first := &bufferSink{closed: make(chan struct{})}
	open := MultiCaptures(
		func(context.Context, SessionInfo, variant.Variant) (CaptureSink, error) { return first, nil },
		func(context.Context, SessionInfo, variant.Variant) (CaptureSink, error) {
			return nil, testutil.ErrSimulated
		},
	)
	_, err := open(context.Background(), SessionInfo{}, variant.NGS)
	assert.ErrorIs(t, err, testutil.ErrSimulated)

	select {
	case <-first.closed:
	default:
		t.Fatal("first sink left open")
	}
}
