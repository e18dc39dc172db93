package main

import (
	"bytes"
	"os"
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

var captureTime = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func encode(t *testing.T, p protocol.Packet) []byte {
	t.Helper()
	b, err := protocol.Encode(p, variant.NGS)
	require.NoError(t, err)
	return b
}

// writeCapture пишет PPAC файл с известным пакетом, неизвестным и битым кадром.
func writeCapture(t *testing.T, path string, compress bool) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	w, err := capture.Create(path, variant.NGS, compress)
	require.NoError(t, err)

	records := []capture.Record{
		{Time: captureTime, Direction: capture.ToClient, Data: encode(t, &protocol.ServerPing{})},
		{Time: captureTime, Direction: capture.ToServer, Data: encode(t, &protocol.Unknown{
			Header: protocol.Header{Category: 0xFE, SubID: 0x77},
			Data:   []byte{1, 2, 3, 4},
		})},
		{Time: captureTime, Direction: capture.ToServer, Data: []byte{0xFF, 0, 0, 0, 1, 2, 3, 4}},
	}
	for _, rec := range records {
		require.NoError(t, w.WriteRecord(rec))
	}
	require.NoError(t, w.Close())
}

func TestDumpFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.ppac")
	writeCapture(t, path, true)
	rawDir := filepath.Join(dir, "raw")

	var out bytes.Buffer
	require.NoError(t, dumpFiles(&out, []string{path}, dumpOptions{rawDir: rawDir}))

	text := out.String()
	assert.Contains(t, text, "PPAC v4, ngs")
	assert.Contains(t, text, "(S -> C) 2024-03-01T12:30:00Z (0x03, 0x0B) ServerPing")
	assert.Contains(t, text, "(C -> S) 2024-03-01T12:30:00Z (0xFE, 0x77) Unknown")
	assert.Contains(t, text, "(C -> S) 2024-03-01T12:30:00Z error:")
	assert.Contains(t, text, "# records: 3, packets: 2, unknown: 1, failed: 1")

	unknown, err := os.ReadFile(filepath.Join(rawDir, "000002_FE_0077.bin"))
	require.NoError(t, err)
	assert.Equal(t, encode(t, &protocol.Unknown{
		Header: protocol.Header{Category: 0xFE, SubID: 0x77},
		Data:   []byte{1, 2, 3, 4},
	}), unknown)
	testutil.AssertFrameLength(t, unknown)
	testutil.AssertNGSHeader(t, unknown, 0xFE, 0x77, 0)
	assert.FileExists(t, filepath.Join(rawDir, "000003_error.bin"))
}

func TestDumpFiles_NotPPAC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	err := dumpFiles(&bytes.Buffer{}, []string{path}, dumpOptions{})
	assert.ErrorIs(t, err, capture.ErrInvalidFile)
}

func TestRepack(t *testing.T) {
	in := t.TempDir()
	writeCapture(t, filepath.Join(in, "a.ppac"), false)
	writeCapture(t, filepath.Join(in, "nested", "b.ppac"), false)
	require.NoError(t, os.WriteFile(filepath.Join(in, "readme.txt"), nil, 0o644))

	files, err := inputs([]string{in})
	require.NoError(t, err)
	assert.Len(t, files, 2)

	out := t.TempDir()
	require.NoError(t, repackAll([]string{in}, out, true))

	for _, name := range []string{"a.ppac", "b.ppac"} {
		data, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err)
		assert.Equal(t, byte(1), data[6], "compression flag of %s", name)

		orig, err := capture.Open(filepath.Join(in, "a.ppac"))
		require.NoError(t, err)
		got, err := capture.Open(filepath.Join(out, name))
		require.NoError(t, err)
		for range 3 {
			want, err := orig.NextFrame()
			require.NoError(t, err)
			rec, err := got.NextFrame()
			require.NoError(t, err)
			assert.Equal(t, want.Data, rec.Data)
			assert.Equal(t, want.Direction, rec.Direction)
			assert.True(t, want.Time.Equal(rec.Time))
		}
		require.NoError(t, orig.Close())
		require.NoError(t, got.Close())
	}

	err = repackAll([]string{filepath.Join(in, "a.ppac")}, in, false)
	assert.Error(t, err)
}
