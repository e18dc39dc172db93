package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteVarUTF16_Layout(t *testing.T) {
	w := NewWriter(16)
	w.WriteVarUTF16("ab", 0, 0, false)

	// len=3 (two chars + terminator), 6 bytes of content, 2 bytes of padding
	expected := []byte{
		0x03, 0x00, 0x00, 0x00,
		'a', 0x00, 'b', 0x00, 0x00, 0x00,
		0x00, 0x00,
	}
	assert.Equal(t, expected, w.Bytes())
}

func TestWriteVarASCII_Layout(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []byte
	}{
		{
			name:     "fits exactly",
			input:    "abc",
			expected: []byte{0x04, 0x00, 0x00, 0x00, 'a', 'b', 'c', 0x00},
		},
		{
			name:  "needs three padding bytes",
			input: "abcd",
			expected: []byte{
				0x05, 0x00, 0x00, 0x00,
				'a', 'b', 'c', 'd', 0x00,
				0x00, 0x00, 0x00,
			},
		},
		{
			name:     "empty writes only the length",
			input:    "",
			expected: []byte{0x00, 0x00, 0x00, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(16)
			w.WriteVarASCII(tt.input, 0, 0, false)
			assert.Equal(t, tt.expected, w.Bytes())
		})
	}
}

func TestVarStrings_RoundTripWithMagic(t *testing.T) {
	const xor, sub = 0x78F7, 0xA2

	inputs := []string{"", "a", "ab", "abc", "hello world", "ПСО2", "🙂 emoji"}
	for _, s := range inputs {
		w := NewWriter(64)
		w.WriteVarUTF16(s, xor, sub, false)
		w.WriteVarASCII(s, xor, sub, false)
		require.Zero(t, w.Len()%4, "string fields must end 4-aligned: %q", s)

		r := NewReader(w.Bytes())
		got, err := r.ReadVarUTF16(xor, sub, false)
		require.NoError(t, err)
		assert.Equal(t, s, got)

		gotASCII, err := r.ReadVarASCII(xor, sub, false)
		require.NoError(t, err)
		assert.Equal(t, s, gotASCII)
		assert.Zero(t, r.Remaining())
	}
}

func TestFixedString_TruncatesAtNUL(t *testing.T) {
	raw := []byte{'a', 0, 'b', 0, 0, 0, 'x', 0}

	s, err := NewReader(raw).ReadFixedUTF16(4, false)
	require.NoError(t, err)
	assert.Equal(t, "ab", s)

	s, err = NewReader(raw).ReadFixedUTF16(4, true)
	require.NoError(t, err)
	assert.Equal(t, "ab\x00x", s, "verbatim mode keeps content past the terminator")
}

func TestFixedString_WriteKeepsTerminator(t *testing.T) {
	w := NewWriter(8)
	w.WriteFixedUTF16("abcdef", 4, false)

	require.Len(t, w.Bytes(), 8)
	assert.Equal(t, []byte{'a', 0, 'b', 0, 'c', 0, 0, 0}, w.Bytes())

	w.Reset()
	w.WriteFixedASCII("abcdef", 4, true)
	assert.Equal(t, []byte("abcd"), w.Bytes())
}

func TestReadVarString_HugeLength(t *testing.T) {
	w := NewWriter(8)
	w.Magic(0xFFFFFFF0, 0, 0)

	_, err := NewReader(w.Bytes()).ReadVarUTF16(0, 0, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShortBuffer)
}
