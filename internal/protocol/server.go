package protocol

import "github.com/udisondev/pso2go/internal/codec"

// InitialLoad (0x03, 0x03): S->C, the client may start loading the lobby.
type InitialLoad struct{}

// LoadingScreenTransition (0x03, 0x04): S->C, shows the loading screen.
type LoadingScreenTransition struct{}

// ServerHello (0x03, 0x08): S->C, first packet on a block connection.
// The client answers with an EncryptionRequest.
type ServerHello struct {
	Unk1    uint16
	BlockID uint16
	Unk2    uint32
}

func (p *ServerHello) Fields() []codec.Field {
	return []codec.Field{
		codec.F("unk1", codec.U16(&p.Unk1)),
		codec.F("block_id", codec.U16(&p.BlockID)).SeekAfter(4),
		codec.F("unk2", codec.U32(&p.Unk2)),
	}
}

// ServerPing (0x03, 0x0B): S->C keepalive.
type ServerPing struct{}

// ServerPong (0x03, 0x0C): C->S keepalive answer.
type ServerPong struct{}

// FinishLoading (0x03, 0x23): S->C, hides the loading screen.
type FinishLoading struct{}

// UnlockControls (0x03, 0x2B): S->C.
type UnlockControls struct{}

func (*InitialLoad) Fields() []codec.Field             { return nil }
func (*LoadingScreenTransition) Fields() []codec.Field { return nil }
func (*ServerPing) Fields() []codec.Field              { return nil }
func (*ServerPong) Fields() []codec.Field              { return nil }
func (*FinishLoading) Fields() []codec.Field           { return nil }
func (*UnlockControls) Fields() []codec.Field          { return nil }

func (*InitialLoad) packet()             {}
func (*LoadingScreenTransition) packet() {}
func (*ServerHello) packet()             {}
func (*ServerPing) packet()              {}
func (*ServerPong) packet()              {}
func (*FinishLoading) packet()           {}
func (*UnlockControls) packet()          {}
