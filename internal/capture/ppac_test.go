package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/pso2go/internal/protocol"
	"github.com/udisondev/pso2go/internal/variant"
)

var captureTime = time.Unix(1_700_000_000, 123_456_789)

func frame(t *testing.T, p protocol.Packet, v variant.Variant) []byte {
	t.Helper()
	b, err := protocol.Encode(p, v)
	require.NoError(t, err)
	return b
}

func readAll(t *testing.T, src Source) []Record {
	t.Helper()
	var out []Record
	for {
		rec, err := src.NextFrame()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestPPAC_RoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, variant.NGS, compress)
		require.NoError(t, err)

		ping := frame(t, &protocol.ServerPing{}, variant.NGS)
		monitor := frame(t, &protocol.LobbyMonitor{VideoID: 7}, variant.NGS)

		// два фрейма одним вызовом -> две записи
		require.NoError(t, w.WriteFrame(captureTime, ToClient, append(ping, monitor...)))
		require.NoError(t, w.WriteFrame(captureTime.Add(time.Second), ToServer, ping))
		require.NoError(t, w.Close())

		assert.Equal(t, []byte("PPAC"), buf.Bytes()[:4])
		assert.Equal(t, byte(4), buf.Bytes()[4])
		assert.Equal(t, byte(1), buf.Bytes()[5])

		r, err := NewReader(&buf)
		require.NoError(t, err)
		assert.Equal(t, uint8(4), r.Version())
		assert.Equal(t, variant.NGS, r.Variant())

		recs := readAll(t, r)
		require.Len(t, recs, 3, "compress=%v", compress)
		assert.Equal(t, ping, recs[0].Data)
		assert.Equal(t, monitor, recs[1].Data)
		assert.Equal(t, ToClient, recs[1].Direction)
		assert.Equal(t, ToServer, recs[2].Direction)
		assert.True(t, captureTime.Equal(recs[0].Time))
		assert.True(t, captureTime.Add(time.Second).Equal(recs[2].Time))
		require.NoError(t, r.Close())
	}
}

func TestPPAC_NextEntryDecodes(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, variant.Classic, false)
	require.NoError(t, err)
	require.NoError(t, w.WritePacket(captureTime, ToClient, &protocol.LobbyMonitor{VideoID: 3}))
	require.NoError(t, w.WriteRecord(Record{Time: captureTime, Direction: ToServer, Data: []byte{0xFF, 0, 0, 0, 1, 2, 3, 4}}))

	r, err := NewReader(&buf)
	require.NoError(t, err)

	e, err := r.NextEntry()
	require.NoError(t, err)
	require.NoError(t, e.Err)
	assert.Equal(t, variant.Classic, e.Variant)
	require.Len(t, e.Packets, 1)
	assert.Equal(t, &protocol.LobbyMonitor{VideoID: 3}, e.Packets[0])

	// битая запись не останавливает чтение
	e, err = r.NextEntry()
	require.NoError(t, err)
	assert.ErrorIs(t, e.Err, protocol.ErrFrameLength)

	_, err = r.NextEntry()
	assert.ErrorIs(t, err, io.EOF)
}

// oldCapture builds a capture in a pre-v4 layout.
func oldCapture(version uint8, variantCode uint8, ts uint64, dir uint8, data []byte) []byte {
	out := append([]byte("PPAC"), version)
	if version >= 3 {
		out = append(out, variantCode)
	}
	if version >= 2 {
		out = binary.LittleEndian.AppendUint64(out, ts)
		out = binary.LittleEndian.AppendUint64(out, 0)
	} else {
		out = binary.LittleEndian.AppendUint64(out, ts)
	}
	out = append(out, dir)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(data)))
	return append(out, data...)
}

func TestPPAC_OlderVersions(t *testing.T) {
	data := []byte{8, 0, 0, 0, 0x03, 0x0B, 0, 0}

	tests := []struct {
		name    string
		input   []byte
		variant variant.Variant
		time    time.Time
	}{
		{"v1 seconds", oldCapture(1, 0, 1_600_000_000, 1, data), variant.NGS, time.Unix(1_600_000_000, 0)},
		{"v2 nanoseconds", oldCapture(2, 0, 1_600_000_000_000_000_005, 1, data), variant.NGS, time.Unix(1_600_000_000, 5)},
		{"v3 variant", oldCapture(3, 4, 42, 1, data), variant.Vita, time.Unix(0, 42)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReader(bytes.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.variant, r.Variant())

			recs := readAll(t, r)
			require.Len(t, recs, 1)
			assert.Equal(t, data, recs[0].Data)
			assert.Equal(t, ToClient, recs[0].Direction)
			assert.True(t, tt.time.Equal(recs[0].Time), "got %v", recs[0].Time)
		})
	}
}

func TestPPAC_HeaderErrors(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("PCAP\x04")))
	assert.ErrorIs(t, err, ErrInvalidFile)

	_, err = NewReader(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrInvalidFile)

	_, err = NewReader(bytes.NewReader([]byte("PPAC\x05\x01\x00")))
	var verr *UnsupportedVersionError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, uint8(5), verr.Version)

	_, err = NewReader(bytes.NewReader([]byte("PPAC\x04\x09\x00")))
	var vaerr *InvalidVariantError
	require.ErrorAs(t, err, &vaerr)
	assert.Equal(t, uint8(9), vaerr.Code)

	_, err = NewWriter(io.Discard, variant.Raw, false)
	require.ErrorAs(t, err, &vaerr)
	assert.Equal(t, uint8(5), vaerr.Code)
}

func TestPPAC_TruncatedRecord(t *testing.T) {
	full := oldCapture(3, 1, 1, 0, []byte{8, 0, 0, 0, 1, 2, 3, 4})
	r, err := NewReader(bytes.NewReader(full[:len(full)-2]))
	require.NoError(t, err)

	_, err = r.NextFrame()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriter_CorruptedFrame(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, variant.NGS, false)
	require.NoError(t, err)

	good := frame(t, &protocol.ServerPing{}, variant.NGS)
	err = w.WriteFrame(captureTime, ToServer, append(good, 0x40, 0, 0, 0, 1))
	assert.ErrorIs(t, err, ErrCorruptedFrame)

	r, err := NewReader(&buf)
	require.NoError(t, err)
	assert.Len(t, readAll(t, r), 1)
}

func TestWriter_SetVariantRewritesHeader(t *testing.T) {
	for _, compress := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "session.ppac")
		w, err := Create(path, variant.NGS, compress)
		require.NoError(t, err)

		ping := frame(t, &protocol.ServerPing{}, variant.NGS)
		require.NoError(t, w.WriteFrame(captureTime, ToServer, ping))
		require.NoError(t, w.SetVariant(variant.JP))
		assert.Equal(t, variant.JP, w.Variant())
		require.NoError(t, w.WriteFrame(captureTime, ToClient, ping))
		require.NoError(t, w.Close())

		r, err := Open(path)
		require.NoError(t, err)
		assert.Equal(t, variant.JP, r.Variant())
		assert.Len(t, readAll(t, r), 2, "compress=%v", compress)
		require.NoError(t, r.Close())
	}
}

func TestBuffer_CopyToWriter(t *testing.T) {
	var b Buffer
	ping := frame(t, &protocol.ServerPing{}, variant.NGS)
	require.NoError(t, b.WriteFrame(captureTime, ToServer, append(ping, ping...)))
	assert.Equal(t, 2, b.Len())

	var out bytes.Buffer
	w, err := NewWriter(&out, variant.NGS, true)
	require.NoError(t, err)
	n, err := Copy(w, &b)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, w.Close())

	r, err := NewReader(&out)
	require.NoError(t, err)
	got := readAll(t, r)
	want := b.Records()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Data, got[i].Data)
		assert.Equal(t, want[i].Direction, got[i].Direction)
		assert.True(t, want[i].Time.Equal(got[i].Time))
	}
}

func TestDirection_Flip(t *testing.T) {
	assert.Equal(t, ToClient, ToServer.Flip())
	assert.Equal(t, ToServer, ToClient.Flip())
	assert.Equal(t, "to_server", ToServer.String())
}
