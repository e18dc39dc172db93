package protocol

import "github.com/udisondev/pso2go/internal/codec"

// ChatArea is the channel a chat message is sent to.
type ChatArea uint8

const (
	ChatMap ChatArea = iota
	ChatParty
	ChatAlliance
	ChatWhisper
	ChatGroup

	ChatUndefined ChatArea = 0xFF
)

func chatArea(p *ChatArea) codec.Value {
	return codec.Enum(p, ChatUndefined, ChatMap, ChatParty, ChatAlliance, ChatWhisper, ChatGroup)
}

const chatXor, chatSub = 0x9D3F, 0x44

// ChatMessage (0x07, 0x00): both directions, legacy clients.
type ChatMessage struct {
	Object  ObjectHeader
	Area    ChatArea
	Unk3    uint8
	Unk4    uint16
	Unk5    string
	Message string
}

func (p *ChatMessage) Fields() []codec.Field {
	return []codec.Field{
		codec.F("object", codec.Struct(&p.Object)),
		codec.F("area", chatArea(&p.Area)),
		codec.F("unk3", codec.U8(&p.Unk3)),
		codec.F("unk4", codec.U16(&p.Unk4)),
		codec.F("unk5", codec.String(&p.Unk5)).Magic(chatXor, chatSub),
		codec.F("message", codec.String(&p.Message)).Magic(chatXor, chatSub),
	}
}

// ChatMessageNGS (0x07, 0x00): both directions, NGS clients.
type ChatMessageNGS struct {
	Object  ObjectHeader
	Area    ChatArea
	Unk3    uint8
	Unk4    uint16
	Unk5    uint16
	Unk6    uint16
	Unk7    string
	Message string
}

func (p *ChatMessageNGS) Fields() []codec.Field {
	return []codec.Field{
		codec.F("object", codec.Struct(&p.Object)),
		codec.F("area", chatArea(&p.Area)),
		codec.F("unk3", codec.U8(&p.Unk3)),
		codec.F("unk4", codec.U16(&p.Unk4)),
		codec.F("unk5", codec.U16(&p.Unk5)),
		codec.F("unk6", codec.U16(&p.Unk6)),
		codec.F("unk7", codec.String(&p.Unk7)).Magic(chatXor, chatSub),
		codec.F("message", codec.String(&p.Message)).Magic(chatXor, chatSub),
	}
}

func (*ChatMessage) packet()    {}
func (*ChatMessageNGS) packet() {}
