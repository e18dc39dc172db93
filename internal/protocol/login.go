package protocol

import (
	"net/netip"
	"slices"
	"time"

	"github.com/udisondev/pso2go/internal/codec"
	"github.com/udisondev/pso2go/internal/constants"
	"github.com/udisondev/pso2go/internal/variant"
)

// CharacterListRequest (0x11, 0x02): C->S.
type CharacterListRequest struct{}

// StartGame (0x11, 0x04): C->S, the selected character.
type StartGame struct {
	CharID uint32
	Unk1   uint32
	Unk2   uint32
}

func (p *StartGame) Fields() []codec.Field {
	return []codec.Field{
		codec.F("char_id", codec.U32(&p.CharID)),
		codec.F("unk1", codec.U32(&p.Unk1)),
		codec.F("unk2", codec.U32(&p.Unk2)),
	}
}

// EncryptionRequest (0x11, 0x0B): C->S, the RSA encrypted key blob.
//
// On the wire the blob is byte-reversed and zero-filled to constants.RSABlobSize.
// RSAData holds it in big-endian order without leading zeros. After a Conn with a
// private key reads it, RSAData holds the decrypted blob instead.
type EncryptionRequest struct {
	RSAData []byte
}

func (p *EncryptionRequest) Fields() []codec.Field {
	return []codec.Field{
		codec.F("rsa_data", rsaBlob{&p.RSAData}),
	}
}

type rsaBlob struct{ p *[]byte }

func (v rsaBlob) Read(r *codec.Reader, _ codec.Context) error {
	data := r.Rest()
	slices.Reverse(data)
	data = data[min(constants.RSABlobTrailer, len(data)):]
	i := 0
	for i < len(data) && data[i] == 0 {
		i++
	}
	if i == len(data) {
		*v.p = nil
		return nil
	}
	*v.p = data[i:]
	return nil
}

func (v rsaBlob) Write(w *codec.Writer, _ codec.Context) error {
	data := slices.Clone(*v.p)
	slices.Reverse(data)
	if len(data) >= constants.RSABlobSize {
		data = data[:constants.RSABlobSize]
	}
	_, _ = w.Write(data)
	w.Zero(constants.RSABlobSize - len(data))
	return nil
}

func (v rsaBlob) Reset() { *v.p = nil }

// EncryptionResponse (0x11, 0x0C): S->C, the first bytes of the secret
// encrypted with the new cipher.
type EncryptionResponse struct {
	Data []byte
}

func (p *EncryptionResponse) Fields() []codec.Field {
	return []codec.Field{
		codec.F("data", codec.Rest(&p.Data)),
	}
}

// ClientPing (0x11, 0x0D): C->S.
type ClientPing struct {
	Time time.Time
}

func (p *ClientPing) Fields() []codec.Field {
	return []codec.Field{
		codec.F("time", codec.WinTime(&p.Time)),
	}
}

// ClientPong (0x11, 0x0E): S->C.
type ClientPong struct {
	ClientTime time.Time
	ServerTime time.Time
	Unk1       uint32
}

func (p *ClientPong) Fields() []codec.Field {
	return []codec.Field{
		codec.F("client_time", codec.WinTime(&p.ClientTime)),
		codec.F("server_time", codec.WinTime(&p.ServerTime)),
		codec.F("unk1", codec.U32(&p.Unk1)),
	}
}

// NicknameResponse (0x11, 0x1D): C->S, the chosen nickname.
type NicknameResponse struct {
	Nickname string
}

func (p *NicknameResponse) Fields() []codec.Field {
	return []codec.Field{
		codec.F("nickname", codec.FixedString(&p.Nickname, 0x10)).SeekAfter(0x20),
	}
}

// NicknameRequest (0x11, 0x1E): S->C, asks the player to pick a nickname.
type NicknameRequest struct {
	Error uint16
}

func (p *NicknameRequest) Fields() []codec.Field {
	return []codec.Field{
		codec.F("error", codec.U16(&p.Error)).SeekAfter(0x42),
	}
}

// ClientGoodbye (0x11, 0x2B): C->S, the client is closing.
type ClientGoodbye struct{}

// SystemInformation (0x11, 0x2D): C->S, hardware report.
type SystemInformation struct {
	CPUInfo        string
	VideoInfo      string
	VRAM           uint64
	TotalRAM       uint64
	Unk1           uint32
	Unk2           uint32
	WindowsVersion string
	WindowSize     string
	Unk3           string
	Unk4           string
	VideoDriver    string
	TotalDiskSpace uint64
	FreeDiskSpace  uint64
}

func (p *SystemInformation) Fields() []codec.Field {
	return []codec.Field{
		codec.F("cpu_info", codec.ASCII(&p.CPUInfo)),
		codec.F("video_info", codec.ASCII(&p.VideoInfo)),
		codec.F("vram", codec.U64(&p.VRAM)),
		codec.F("total_ram", codec.U64(&p.TotalRAM)),
		codec.F("unk1", codec.U32(&p.Unk1)),
		codec.F("unk2", codec.U32(&p.Unk2)),
		codec.F("windows_version", codec.String(&p.WindowsVersion)),
		codec.F("window_size", codec.ASCII(&p.WindowSize)),
		codec.F("unk3", codec.String(&p.Unk3)),
		codec.F("unk4", codec.String(&p.Unk4)),
		codec.F("video_driver", codec.String(&p.VideoDriver)),
		codec.F("total_disk_space", codec.U64(&p.TotalDiskSpace)),
		codec.F("free_disk_space", codec.U64(&p.FreeDiskSpace)),
	}
}

func (*SystemInformation) Magic(variant.Variant) (uint32, uint32) { return 0x883D, 0x9F }

// ShipStatus is the load of a ship in the ship list.
type ShipStatus uint16

const (
	ShipUnknown ShipStatus = iota
	ShipOnline
	ShipBusy
	ShipFull
	ShipOffline

	ShipUndefined ShipStatus = 0xFFFF
)

// ShipEntry is one ship of the ship list.
type ShipEntry struct {
	ID     uint32
	Name   string
	IP     netip.Addr
	Status ShipStatus
	Order  uint16
}

func (e *ShipEntry) Fields() []codec.Field {
	return []codec.Field{
		codec.F("id", codec.U32(&e.ID)),
		codec.F("name", codec.FixedString(&e.Name, 0x10)),
		codec.F("ip", codec.IPv4(&e.IP)),
		codec.F("status", codec.Enum(&e.Status, ShipUndefined,
			ShipUnknown, ShipOnline, ShipBusy, ShipFull, ShipOffline)).Seek(4),
		codec.F("order", codec.U16(&e.Order)).SeekAfter(4),
	}
}

// ShipList (0x11, 0x3D): S->C, the ships shown on the ship select screen.
// A proxy rewrites the addresses to point the client at itself.
type ShipList struct {
	Ships     []ShipEntry
	Timestamp time.Time
	Unk       uint32
}

func (p *ShipList) Fields() []codec.Field {
	return []codec.Field{
		codec.F("ships", codec.Seq(&p.Ships, codec.Nested[ShipEntry])),
		codec.F("timestamp", codec.UnixTime(&p.Timestamp)),
		codec.F("unk", codec.U32(&p.Unk)),
	}
}

func (*ShipList) Magic(variant.Variant) (uint32, uint32) { return 0xE418, 0x51 }

// NotificationStatus (0x11, 0x71): S->C, unread counters.
type NotificationStatus struct {
	NewMail       uint32
	CharCampaigns uint32
	Campaigns     uint32
	Unk3          uint32
}

func (p *NotificationStatus) Fields() []codec.Field {
	return []codec.Field{
		codec.F("new_mail", codec.U32(&p.NewMail)),
		codec.F("char_campaigns", codec.U32(&p.CharCampaigns)),
		codec.F("campaigns", codec.U32(&p.Campaigns)),
		codec.F("unk3", codec.U32(&p.Unk3)),
	}
}

// LoginHistoryRequest (0x11, 0x86): C->S.
type LoginHistoryRequest struct{}

// LoginResult is the outcome of a recorded login attempt.
type LoginResult uint32

const (
	LoginSuccessful LoginResult = iota
	LoginEmailConfirmed
	LoginError
	LoginEmailAuthError
	LoginAuthEmailSent
	LoginOTPError
	LoginInMaintenance
	LoginGenericError

	LoginUndefined LoginResult = 0xFFFF_FFFF
)

// LoginAttempt is one row of the login history.
type LoginAttempt struct {
	IP        netip.Addr
	Status    LoginResult
	Timestamp time.Time
	Unk       uint32
}

func (a *LoginAttempt) Fields() []codec.Field {
	return []codec.Field{
		codec.F("ip", codec.IPv4(&a.IP)),
		codec.F("status", codec.Enum(&a.Status, LoginUndefined,
			LoginSuccessful, LoginEmailConfirmed, LoginError, LoginEmailAuthError,
			LoginAuthEmailSent, LoginOTPError, LoginInMaintenance, LoginGenericError)),
		codec.F("timestamp", codec.UnixTime(&a.Timestamp)),
		codec.F("unk", codec.U32(&a.Unk)),
	}
}

// LoginHistory (0x11, 0x87): S->C.
type LoginHistory struct {
	Attempts []LoginAttempt
}

func (p *LoginHistory) Fields() []codec.Field {
	return []codec.Field{
		codec.F("attempts", codec.Seq(&p.Attempts, codec.Nested[LoginAttempt])),
	}
}

func (*LoginHistory) Magic(variant.Variant) (uint32, uint32) { return 0x8CEB, 0x08 }

// NicknameError (0x11, 0xEA): S->C, the nickname was rejected.
type NicknameError struct {
	Unk1     uint32
	Nickname string
}

func (p *NicknameError) Fields() []codec.Field {
	return []codec.Field{
		codec.F("unk1", codec.U32(&p.Unk1)),
		codec.F("nickname", codec.String(&p.Nickname)),
	}
}

func (*NicknameError) Magic(variant.Variant) (uint32, uint32) { return 0x4544, 0x14 }

// BannerList (0x11, 0xED): S->C, semicolon separated banner names.
type BannerList struct {
	Banners string
	Unk1    string // NGS only
	Unk2    string // NGS only
}

func (p *BannerList) Fields() []codec.Field {
	return []codec.Field{
		codec.F("banners", codec.ASCII(&p.Banners)),
		codec.F("unk1", codec.ASCII(&p.Unk1)).OnlyOn(ngsOnly),
		codec.F("unk2", codec.ASCII(&p.Unk2)).OnlyOn(ngsOnly),
	}
}

func (*BannerList) Magic(variant.Variant) (uint32, uint32) { return 0xD67D, 0xF5 }

func (*CharacterListRequest) Fields() []codec.Field { return nil }
func (*ClientGoodbye) Fields() []codec.Field        { return nil }
func (*LoginHistoryRequest) Fields() []codec.Field  { return nil }

func (*CharacterListRequest) packet() {}
func (*StartGame) packet()            {}
func (*EncryptionRequest) packet()    {}
func (*EncryptionResponse) packet()   {}
func (*ClientPing) packet()           {}
func (*ClientPong) packet()           {}
func (*NicknameResponse) packet()     {}
func (*NicknameRequest) packet()      {}
func (*ClientGoodbye) packet()        {}
func (*SystemInformation) packet()    {}
func (*ShipList) packet()             {}
func (*NotificationStatus) packet()   {}
func (*LoginHistoryRequest) packet()  {}
func (*LoginHistory) packet()         {}
func (*NicknameError) packet()        {}
func (*BannerList) packet()           {}
