package protocol

import "github.com/udisondev/pso2go/internal/codec"

// MessageType selects how a system message is displayed.
type MessageType uint32

const (
	AdminMessage MessageType = iota + 1
	AdminMessageInstant
	SystemMessageType
	GoldenMessage
	EventInformationYellow
	EventInformationGreen
	ImportantMessage
	PopupMessage

	MessageUndefined MessageType = 0xFFFF_FFFF
)

// SystemMessage (0x19, 0x01): S->C, legacy clients.
type SystemMessage struct {
	Message string
	Unk     string
	Type    MessageType
	Num     uint32
}

func (p *SystemMessage) Fields() []codec.Field {
	return []codec.Field{
		codec.F("message", codec.String(&p.Message)).Magic(0x78F7, 0xA2),
		codec.F("unk", codec.String(&p.Unk)).Magic(0x78F7, 0xA2),
		codec.F("msg_type", codec.Enum(&p.Type, MessageUndefined,
			AdminMessage, AdminMessageInstant, SystemMessageType, GoldenMessage,
			EventInformationYellow, EventInformationGreen, ImportantMessage, PopupMessage)),
		codec.F("msg_num", codec.U32(&p.Num)),
	}
}

// LobbyMonitor (0x19, 0x0F): S->C, the video shown on lobby screens.
type LobbyMonitor struct {
	VideoID uint32
}

func (p *LobbyMonitor) Fields() []codec.Field {
	return []codec.Field{
		codec.F("video_id", codec.U32(&p.VideoID)),
	}
}

func (*SystemMessage) packet() {}
func (*LobbyMonitor) packet()  {}
