package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net/netip"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/pso2go/internal/codec"
	"github.com/udisondev/pso2go/internal/metrics"
	"github.com/udisondev/pso2go/internal/variant"
)

var clientVariants = []variant.Variant{variant.NGS, variant.Classic, variant.NA, variant.JP, variant.Vita}

func object(id uint32) ObjectHeader {
	return ObjectHeader{ID: id, Unk: 0, EntityType: EntityPlayer, Unk2: 0}
}

// samplePackets covers every packet of the catalogue with non-default values.
func samplePackets() []Payload {
	ts := time.UnixMilli(1_623_240_000_123).UTC()
	secs := time.Unix(1_623_240_000, 0).UTC()

	return []Payload{
		&InitialLoad{},
		&LoadingScreenTransition{},
		&ServerHello{Unk1: 3, BlockID: 101, Unk2: 0x44},
		&ServerPing{},
		&ServerPong{},
		&FinishLoading{},
		&UnlockControls{},
		&SetPlayerID{PlayerID: 10_000_001, Unk1: 1, Unk2: 2},
		&DealDamage{
			Inflicter: object(1),
			Target:    ObjectHeader{ID: 2, EntityType: EntityObject},
			AttackID:  77,
			Unk2:      1 << 40,
			HitboxID:  5,
			X:         codec.Float16From(1.5),
			Y:         codec.Float16From(-2),
			Z:         codec.Float16From(0.25),
			Unk6:      [0x18]byte{1, 2, 3},
		},
		&ChatMessage{Object: object(3), Area: ChatParty, Unk3: 1, Unk4: 2, Message: "hello"},
		&ChatMessageNGS{Object: object(3), Area: ChatWhisper, Unk5: 7, Unk6: 8, Unk7: "x", Message: "ngs hello"},
		&CharacterListRequest{},
		&StartGame{CharID: 42, Unk1: 1, Unk2: 2},
		&EncryptionRequest{RSAData: []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01}},
		&EncryptionResponse{Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		&ClientPing{Time: ts},
		&ClientPong{ClientTime: ts, ServerTime: ts.Add(time.Second), Unk1: 9},
		&NicknameResponse{Nickname: "Matoi"},
		&NicknameRequest{Error: 1},
		&ClientGoodbye{},
		&SystemInformation{
			CPUInfo:        "Intel",
			VideoInfo:      "GeForce",
			VRAM:           8 << 30,
			TotalRAM:       32 << 30,
			WindowsVersion: "Windows 10",
			WindowSize:     "1920x1080",
			VideoDriver:    "536.23",
			TotalDiskSpace: 1 << 40,
			FreeDiskSpace:  1 << 39,
		},
		&ShipList{
			Ships: []ShipEntry{
				{ID: 1, Name: "Ship01", IP: netip.MustParseAddr("127.0.0.1"), Status: ShipOnline, Order: 1},
				{ID: 2, Name: "Ship02", IP: netip.MustParseAddr("10.0.0.2"), Status: ShipFull, Order: 2},
			},
			Timestamp: secs,
			Unk:       1,
		},
		&NotificationStatus{NewMail: 1, CharCampaigns: 2, Campaigns: 3},
		&LoginHistoryRequest{},
		&LoginHistory{Attempts: []LoginAttempt{
			{IP: netip.MustParseAddr("192.168.1.1"), Status: LoginSuccessful, Timestamp: secs},
			{IP: netip.MustParseAddr("192.168.1.2"), Status: LoginOTPError, Timestamp: secs, Unk: 4},
		}},
		&NicknameError{Unk1: 2, Nickname: "taken"},
		&BannerList{Banners: "banner1;banner2"},
		&SystemMessage{Message: "maintenance", Type: GoldenMessage, Num: 3},
		&LobbyMonitor{VideoID: 12},
		&SettingsRequest{},
		&SaveSettings{Settings: "Ini = {}"},
		&LoadSettings{Settings: "Ini = { Windows = {} }"},
		&MissionListRequest{},
		&MissionList{
			Unk1:         1,
			Missions:     []Mission{{Type: 1, StartDate: 100, EndDate: 200}, {Type: 5, Unk15: 15}},
			DailyUpdate:  10,
			WeeklyUpdate: 20,
			TierUpdate:   30,
		},
	}
}

func TestCatalogue_RoundTripPerVariant(t *testing.T) {
	covered := make(map[string]bool)

	for _, p := range samplePackets() {
		e := byType[reflect.TypeOf(p)]
		require.NotNil(t, e, "%T is not registered", p)
		covered[e.name] = true

		for _, v := range clientVariants {
			if !e.variants.Has(v) {
				continue
			}
			t.Run(e.name+"/"+v.String(), func(t *testing.T) {
				frame, err := Encode(p, v)
				require.NoError(t, err)
				assert.Zero(t, len(frame)%4, "frame must be 4-aligned")
				assert.Equal(t, uint32(len(frame)), binary.LittleEndian.Uint32(frame))

				got, err := Decode(frame, v)
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.Equal(t, Packet(p), got[0])

				again, err := Encode(got[0], v)
				require.NoError(t, err)
				assert.Equal(t, frame, again)
			})
		}
	}

	for _, entries := range byID {
		for _, e := range entries {
			assert.True(t, covered[e.name], "%s has no round trip sample", e.name)
		}
	}
}

func TestHeader_Layouts(t *testing.T) {
	p := &ClientPing{Time: time.UnixMilli(0).UTC()}

	legacy, err := Encode(p, variant.Classic)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x11, 0x0D, 0x00, 0x00}, legacy[4:8])

	ngs, err := Encode(&ShipList{Ships: []ShipEntry{{}}}, variant.NGS)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x11, 0x3D, 0x00}, ngs[4:8])
}

func TestHeader_LegacyRejectsWideSubID(t *testing.T) {
	u := &Unknown{Header: Header{Category: 0x50, SubID: 0x1234}}

	_, err := Encode(u, variant.JP)
	var ue *variant.UnsupportedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, variant.JP, ue.Variant)

	frame, err := Encode(u, variant.NGS)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x50, 0x34, 0x12}, frame[4:8])
}

func TestFlags_Bits(t *testing.T) {
	tests := []struct {
		name  string
		flags Flags
		b     uint8
	}{
		{"packed", Flags{Packed: true}, 0x04},
		{"flag10", Flags{Flag10: true}, 0x10},
		{"full movement", Flags{FullMovement: true}, 0x20},
		{"object related", Flags{ObjectRelated: true}, 0x40},
		{"packed object", Flags{Packed: true, ObjectRelated: true}, 0x44},
		{"reserved kept", Flags{Packed: true, Reserved: 0x83}, 0x87},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.b, tt.flags.Byte())
			assert.Equal(t, tt.flags, FlagsFrom(tt.b))
		})
	}
}

func TestDecode_UnknownRoundTrip(t *testing.T) {
	frame := []byte{
		0x10, 0x00, 0x00, 0x00,
		0x99, 0x01, 0x04, 0x00,
		0xAA, 0xBB, 0xCC, 0xDD, 0x01, 0x02, 0x03, 0x04,
	}

	got, err := Decode(frame, variant.Classic)
	require.NoError(t, err)
	require.Len(t, got, 1)

	u, ok := got[0].(*Unknown)
	require.True(t, ok, "got %T", got[0])
	assert.Equal(t, uint8(0x99), u.Header.Category)
	assert.Equal(t, uint16(0x01), u.Header.SubID)
	assert.True(t, u.Header.Flags.Packed)
	assert.Equal(t, frame[8:], u.Data)
	assert.Equal(t, CategoryUnknown, CategoryOf(u))

	out, err := Encode(u, variant.Classic)
	require.NoError(t, err)
	assert.Equal(t, frame, out)
}

func TestDecode_RawCapturesWholeFrame(t *testing.T) {
	frame, err := Encode(&StartGame{CharID: 1}, variant.NGS)
	require.NoError(t, err)

	got, err := Decode(frame, variant.Raw)
	require.NoError(t, err)
	require.Len(t, got, 1)

	raw, ok := got[0].(*Raw)
	require.True(t, ok, "got %T", got[0])
	assert.Equal(t, frame, raw.Data)

	out, err := Encode(raw, variant.Raw)
	require.NoError(t, err)
	assert.Equal(t, frame, out)
}

func TestDecode_MultipleFrames(t *testing.T) {
	a, err := Encode(&ServerPing{}, variant.NGS)
	require.NoError(t, err)
	b, err := Encode(&LobbyMonitor{VideoID: 3}, variant.NGS)
	require.NoError(t, err)

	buf := append(append(append([]byte{}, a...), b...), 0x01, 0x02, 0x03)

	got, err := Decode(buf, variant.NGS)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.IsType(t, &ServerPing{}, got[0])
	assert.Equal(t, &LobbyMonitor{VideoID: 3}, got[1])
}

func TestDecode_FrameLengthErrors(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"declared longer than buffer", []byte{0x20, 0, 0, 0, 0x03, 0x0B, 0, 0, 0}},
		{"declared shorter than prefix", []byte{0x02, 0, 0, 0, 0x03, 0x0B, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.buf, variant.Classic)
			assert.ErrorIs(t, err, ErrFrameLength)
		})
	}
}

func TestDecode_KeepsPacketsBeforeError(t *testing.T) {
	ok, err := Encode(&ServerPing{}, variant.Classic)
	require.NoError(t, err)
	buf := append(append([]byte{}, ok...), 0x40, 0, 0, 0, 0x11)

	got, err := Decode(buf, variant.Classic)
	require.Error(t, err)
	assert.Len(t, got, 1)
}

func TestDecode_ErrorNamesPacketAndField(t *testing.T) {
	frame, err := Encode(&ShipList{Ships: []ShipEntry{{Name: "Ship01"}}}, variant.NGS)
	require.NoError(t, err)

	// cut inside the first ship entry, then fix up the declared length
	cut := append([]byte{}, frame[:20]...)
	binary.LittleEndian.PutUint32(cut, uint32(len(cut)))

	_, err = Decode(cut, variant.NGS)
	require.Error(t, err)

	var fe *codec.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "ShipList", fe.Struct)
	assert.Equal(t, "ships", fe.Field)
	assert.Contains(t, err.Error(), "ShipEntry.name")
	assert.ErrorIs(t, err, codec.ErrShortBuffer)
}

func TestDispatch_SameIDDifferentVariants(t *testing.T) {
	p, ok := Lookup(0x07, 0x00, variant.NGS)
	require.True(t, ok)
	assert.IsType(t, &ChatMessageNGS{}, p)

	p, ok = Lookup(0x07, 0x00, variant.Vita)
	require.True(t, ok)
	assert.IsType(t, &ChatMessage{}, p)

	_, ok = Lookup(0x07, 0x00, variant.Raw)
	assert.False(t, ok)

	_, ok = Lookup(0x19, 0x01, variant.NGS)
	assert.False(t, ok, "system message is legacy only")
}

func TestEncode_VariantMismatch(t *testing.T) {
	_, err := Encode(&ChatMessageNGS{}, variant.Classic)

	var ue *variant.UnsupportedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "ChatMessageNGS", ue.What)
}

func TestEncode_Empty(t *testing.T) {
	out, err := Encode(Empty{}, variant.NGS)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestEncryptionRequest_WireLayout(t *testing.T) {
	p := &EncryptionRequest{RSAData: []byte{0x01, 0x02, 0x03}}

	frame, err := Encode(p, variant.Classic)
	require.NoError(t, err)
	require.Len(t, frame, 4+4+0x104)

	body := frame[8:]
	assert.Equal(t, []byte{0x03, 0x02, 0x01, 0x00}, body[:4])
	assert.Equal(t, make([]byte, 0x104-3), body[3:])

	got, err := Decode(frame, variant.Classic)
	require.NoError(t, err)
	assert.Equal(t, p, got[0])
}

func TestEncryptionRequest_StripsTrailerAndLeadingZeros(t *testing.T) {
	body := make([]byte, 0x104)
	// blob 0x0A 0x0B stored reversed, then zero fill and a trailer that is dropped
	body[0], body[1] = 0x0B, 0x0A
	copy(body[0x100:], []byte{0xFF, 0xFF, 0xFF, 0xFF})

	frame := append([]byte{0, 0, 0, 0, 0x11, 0x0B, 0x00, 0x00}, body...)
	binary.LittleEndian.PutUint32(frame, uint32(len(frame)))

	got, err := Decode(frame, variant.Classic)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0A, 0x0B}, got[0].(*EncryptionRequest).RSAData)
}

func TestBannerList_NGSOnlyFields(t *testing.T) {
	p := &BannerList{Banners: "a", Unk1: "b", Unk2: "c"}

	ngs, err := Encode(p, variant.NGS)
	require.NoError(t, err)
	classic, err := Encode(p, variant.Classic)
	require.NoError(t, err)
	assert.Greater(t, len(ngs), len(classic))

	got, err := Decode(classic, variant.Classic)
	require.NoError(t, err)
	assert.Equal(t, &BannerList{Banners: "a"}, got[0])

	got, err = Decode(ngs, variant.NGS)
	require.NoError(t, err)
	assert.Equal(t, p, got[0])
}

func TestDecode_TrailingBytesAreCounted(t *testing.T) {
	counter := metrics.Default().TrailingBytes.WithLabelValues("LobbyMonitor")
	before := testutil.ToFloat64(counter)

	frame, err := Encode(&LobbyMonitor{VideoID: 1}, variant.NGS)
	require.NoError(t, err)
	frame = append(frame, 1, 2, 3, 4, 5, 6, 7, 8)
	binary.LittleEndian.PutUint32(frame, uint32(len(frame)))

	got, err := Decode(frame, variant.NGS)
	require.NoError(t, err)
	assert.Equal(t, &LobbyMonitor{VideoID: 1}, got[0])
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestIsPadding(t *testing.T) {
	assert.True(t, isPadding(nil))
	assert.True(t, isPadding([]byte{0, 0, 0}))
	assert.False(t, isPadding([]byte{0, 0, 0, 0}))
	assert.False(t, isPadding([]byte{0, 1}))
}

func TestVerbatim_PreservesBytesAfterTerminator(t *testing.T) {
	frame, err := Encode(&NicknameResponse{Nickname: "abc"}, variant.Classic)
	require.NoError(t, err)
	// a stray code unit after the terminator inside the fixed-width field
	frame[8+10] = 'x'

	got, err := Decode(frame, variant.Classic)
	require.NoError(t, err)
	assert.Equal(t, "abc", got[0].(*NicknameResponse).Nickname)

	got, err = DecodeVerbatim(frame, variant.Classic)
	require.NoError(t, err)
	out, err := EncodeVerbatim(got[0], variant.Classic)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(frame, out), "verbatim re-encode must reproduce the frame")
}

func TestNameAndCategory(t *testing.T) {
	assert.Equal(t, "ShipList", Name(&ShipList{}))
	assert.Equal(t, "Unknown", Name(&Unknown{}))
	assert.Equal(t, "Raw", Name(&Raw{}))
	assert.Equal(t, "Empty", Name(Empty{}))

	assert.Equal(t, CategoryLogin, CategoryOf(&ShipList{}))
	assert.Equal(t, CategoryServer, CategoryOf(&ServerPing{}))
	assert.Equal(t, CategorySettings, CategoryOf(&SaveSettings{}))
	assert.Equal(t, CategoryARKSMissions, CategoryOf(&MissionList{}))
	assert.Equal(t, CategoryUnknown, CategoryOf(&ChatMessage{}))

	h, ok := HeaderOf(&ChatMessage{})
	require.True(t, ok)
	assert.Equal(t, Header{Category: 0x07, SubID: 0x00, Flags: Flags{Packed: true, ObjectRelated: true}}, h)

	_, ok = HeaderOf(&Raw{})
	assert.False(t, ok)
}
