package codec

import (
	"errors"
	"math/rand/v2"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/pso2go/internal/variant"
)

type sampleKind uint16

const (
	kindA       sampleKind = 1
	kindB       sampleKind = 2
	kindUnknown sampleKind = 0xFFFF
)

type sampleChild struct {
	X uint32
	S string
}

func (c *sampleChild) Fields() []Field {
	return []Field{
		F("x", U32(&c.X)),
		F("s", ASCII(&c.S)),
	}
}

type sample struct {
	ID          uint32
	Name        string
	Tags        []uint16
	Kind        sampleKind
	Packed      bool
	Moving      bool
	NGSOnly     uint16
	ClassicOnly uint8
	Blob        [6]byte
	Children    []sampleChild
	When        time.Time
	Addr        netip.Addr
	Pos         Float16
}

func (s *sample) Fields() []Field {
	return []Field{
		F("id", U32(&s.ID)),
		F("name", String(&s.Name)).Magic(0x10, 0x20),
		F("tags", Seq(&s.Tags, U16)),
		F("kind", Enum(&s.Kind, kindUnknown, kindA, kindB)).Seek(2),
		F("flags", Bits[uint8](LowFirst, Flag(&s.Packed).Skip(2), Flag(&s.Moving))).SeekAfter(3),
		F("ngs_only", U16(&s.NGSOnly)).OnlyOn(variant.Only(variant.NGS)),
		F("classic_only", U8(&s.ClassicOnly)).NotOn(variant.Only(variant.NGS)),
		F("blob", FixedBytes(s.Blob[:])),
		F("children", Seq(&s.Children, Nested[sampleChild])),
		F("when", WinTime(&s.When)),
		F("addr", IPv4(&s.Addr)),
		F("pos", F16(&s.Pos)),
	}
}

func (s *sample) Magic(variant.Variant) (uint32, uint32) {
	return 0xCAFE, 0x33
}

func newSample() sample {
	return sample{
		ID:      7,
		Name:    "Matoi",
		Tags:    []uint16{1, 2, 3},
		Kind:    kindB,
		Packed:  true,
		Moving:  true,
		NGSOnly: 0xBEEF,
		Blob:    [6]byte{1, 2, 3, 4, 5, 6},
		Children: []sampleChild{
			{X: 1, S: "one"},
			{X: 2, S: ""},
		},
		When: time.Date(2021, 6, 9, 12, 0, 0, 0, time.UTC),
		Addr: netip.MustParseAddr("10.0.0.1"),
		Pos:  Float16From(1.5),
	}
}

func encode(t *testing.T, s Schema, v variant.Variant) []byte {
	t.Helper()
	w := NewWriter(128)
	require.NoError(t, Marshal(w, Context{Variant: v}, s))
	return w.Bytes()
}

func TestSchema_RoundTripPerVariant(t *testing.T) {
	for _, v := range []variant.Variant{variant.NGS, variant.Classic, variant.JP} {
		t.Run(v.String(), func(t *testing.T) {
			in := newSample()
			if v.IsNGS() {
				in.ClassicOnly = 0
			} else {
				in.NGSOnly = 0
				in.ClassicOnly = 9
			}

			data := encode(t, &in, v)

			var out sample
			r := NewReader(data)
			require.NoError(t, Unmarshal(r, Context{Variant: v}, &out))
			assert.Zero(t, r.Remaining())
			assert.Equal(t, in, out)
		})
	}
}

func TestSchema_ConditionalFieldsAreNotOnTheWire(t *testing.T) {
	in := newSample()
	ngs := encode(t, &in, variant.NGS)
	classic := encode(t, &in, variant.Classic)

	// u16 on NGS vs u8 on classic
	assert.Equal(t, len(ngs), len(classic)+1)
}

func TestSchema_AbsentFieldResetsToDefault(t *testing.T) {
	in := newSample()
	in.NGSOnly = 0
	data := encode(t, &in, variant.Classic)

	out := sample{NGSOnly: 0x1234}
	require.NoError(t, Unmarshal(NewReader(data), Context{Variant: variant.Classic}, &out))
	assert.Zero(t, out.NGSOnly)
}

func TestSchema_ErrorNamesField(t *testing.T) {
	in := newSample()
	data := encode(t, &in, variant.NGS)

	var out sample
	err := Unmarshal(NewReader(data[:10]), Context{Variant: variant.NGS}, &out)
	require.Error(t, err)

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "sample", fe.Struct)
	assert.Equal(t, "name", fe.Field)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestSchema_NestedErrorPath(t *testing.T) {
	in := newSample()
	in.Children = []sampleChild{{X: 1, S: "a long string"}}
	data := encode(t, &in, variant.NGS)

	// cut inside the first child's string
	cut := len(data) - 8 - 4 - 2 - 8
	var out sample
	err := Unmarshal(NewReader(data[:cut]), Context{Variant: variant.NGS}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample.children")
	assert.Contains(t, err.Error(), "sampleChild.s")
}

func TestEnum_UnknownDiscriminantFallsBack(t *testing.T) {
	var k sampleKind
	v := Enum(&k, kindUnknown, kindA, kindB)

	require.NoError(t, v.Read(NewReader([]byte{0x7F, 0x00}), Context{}))
	assert.Equal(t, kindUnknown, k)

	require.NoError(t, v.Read(NewReader([]byte{0x01, 0x00}), Context{}))
	assert.Equal(t, kindA, k)

	v.Reset()
	assert.Equal(t, kindUnknown, k)
}

func TestEnum128_UnknownDiscriminantFallsBack(t *testing.T) {
	var k Uint128
	def := Uint128{Lo: 0xFF}
	v := Enum128(&k, def, Uint128From(1))

	raw := make([]byte, 16)
	raw[15] = 1
	require.NoError(t, v.Read(NewReader(raw), Context{}))
	assert.Equal(t, def, k)
}

func TestBits_Positions(t *testing.T) {
	var a, b, c bool
	low := Bits[uint8](LowFirst, Flag(&a).Skip(2), Flag(&b).Skip(1), Flag(&c))

	a, b, c = true, true, true
	assert.Equal(t, uint8(0x04|0x10|0x20), low.Pack())

	high := Bits[uint8](HighFirst, Flag(&a), Flag(&b).Skip(1))
	a, b = true, true
	assert.Equal(t, uint8(0x80|0x20), high.Pack())
}

func TestBits_ReservedBitsSurvive(t *testing.T) {
	var a bool
	var reserved uint8
	v := Bits[uint8](LowFirst, Flag(&a).Skip(2)).Reserved(&reserved)

	v.Unpack(0x05)
	assert.True(t, a)
	assert.Equal(t, uint8(0x01), reserved)
	assert.Equal(t, uint8(0x05), v.Pack())
}

func TestConst_Mismatch(t *testing.T) {
	v := Const[uint16](0xBEEF)

	w := NewWriter(2)
	require.NoError(t, v.Write(w, Context{}))
	require.NoError(t, v.Read(NewReader(w.Bytes()), Context{}))

	err := v.Read(NewReader([]byte{0, 0}), Context{})
	var cm *ConstantMismatchError
	require.ErrorAs(t, err, &cm)
	assert.Equal(t, uint64(0xBEEF), cm.Want)
}

func TestMagic_Inverse(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 10000 {
		v, xor, sub := rng.Uint32(), rng.Uint32(), rng.Uint32()
		require.Equal(t, v, DecodeMagic(EncodeMagic(v, xor, sub), xor, sub))
	}
}

func TestSeq_PaddingInvariant(t *testing.T) {
	for n := range 9 {
		in := make([]uint8, n)

		w := NewWriter(32)
		require.NoError(t, Seq(&in, U8).Write(w, Context{Xor: 0x1234, Sub: 0x56}))
		assert.Zero(t, w.Len()%4, "n=%d", n)

		var out []uint8
		r := NewReader(w.Bytes())
		require.NoError(t, Seq(&out, U8).Read(r, Context{Xor: 0x1234, Sub: 0x56}))
		assert.Zero(t, r.Position()%4, "n=%d", n)
		assert.Len(t, out, n)
	}
}

func TestSeqLen_PlainPrefix(t *testing.T) {
	in := []uint16{0xAAAA}
	w := NewWriter(8)
	require.NoError(t, SeqLen(&in, LenU16, U16).Write(w, Context{}))

	assert.Equal(t, []byte{0x01, 0x00, 0xAA, 0xAA, 0x00, 0x00}, w.Bytes())
}

func TestArray_FixedCount(t *testing.T) {
	in := []uint32{1, 2}
	w := NewWriter(16)
	require.NoError(t, Array(&in, 3, U32).Write(w, Context{}))
	require.Equal(t, 12, w.Len())

	var out []uint32
	require.NoError(t, Array(&out, 3, U32).Read(NewReader(w.Bytes()), Context{}))
	assert.Equal(t, []uint32{1, 2, 0}, out)
}

func TestBytes_Padding(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5}

	w := NewWriter(16)
	require.NoError(t, Bytes(&in).Write(w, Context{}))
	assert.Equal(t, 12, w.Len())

	w.Reset()
	require.NoError(t, BytesNoPadding(&in).Write(w, Context{}))
	assert.Equal(t, 9, w.Len())
}

func TestFloat16_Conversion(t *testing.T) {
	tests := []struct {
		in   float32
		bits Float16
	}{
		{0, 0x0000},
		{1, 0x3C00},
		{-2, 0xC000},
		{0.5, 0x3800},
		{65504, 0x7BFF},
		{5.960464477539063e-08, 0x0001},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.bits, Float16From(tt.in), "%v", tt.in)
		assert.Equal(t, tt.in, tt.bits.Float32(), "0x%04X", uint16(tt.bits))
	}
}

func TestUnixTime_ZeroRoundTrip(t *testing.T) {
	var ts time.Time
	w := NewWriter(4)
	require.NoError(t, UnixTime(&ts).Write(w, Context{}))

	out := time.Now()
	require.NoError(t, UnixTime(&out).Read(NewReader(w.Bytes()), Context{}))
	assert.True(t, out.IsZero())
}
