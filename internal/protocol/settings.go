package protocol

import "github.com/udisondev/pso2go/internal/codec"

// SettingsRequest (0x2B, 0x00): C->S.
type SettingsRequest struct{}

// SaveSettings (0x2B, 0x01): C->S, the client settings as a lua table.
type SaveSettings struct {
	Settings string
}

func (p *SaveSettings) Fields() []codec.Field {
	return []codec.Field{
		codec.F("settings", codec.ASCII(&p.Settings)).Magic(0xCEF1, 0xB5),
	}
}

// LoadSettings (0x2B, 0x02): S->C, the stored settings.
type LoadSettings struct {
	Settings string
}

func (p *LoadSettings) Fields() []codec.Field {
	return []codec.Field{
		codec.F("settings", codec.ASCII(&p.Settings)).Magic(0x54AF, 0x100),
	}
}

func (*SettingsRequest) Fields() []codec.Field { return nil }

func (*SettingsRequest) packet() {}
func (*SaveSettings) packet()    {}
func (*LoadSettings) packet()    {}
