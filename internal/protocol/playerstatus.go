package protocol

import "github.com/udisondev/pso2go/internal/codec"

// EntityType is the kind of object an ObjectHeader addresses.
type EntityType uint16

const (
	EntityUnknown EntityType = 0
	EntityPlayer  EntityType = 4
	EntityMap     EntityType = 5
	EntityObject  EntityType = 6
	EntityUnk1    EntityType = 7
	EntityUnk2    EntityType = 22

	EntityUndefined EntityType = 0xFFFF
)

// ObjectHeader addresses a game object.
type ObjectHeader struct {
	ID         uint32
	Unk        uint32
	EntityType EntityType
	Unk2       uint16
}

func (h *ObjectHeader) Fields() []codec.Field {
	return []codec.Field{
		codec.F("id", codec.U32(&h.ID)),
		codec.F("unk", codec.U32(&h.Unk)),
		codec.F("entity_type", codec.Enum(&h.EntityType, EntityUndefined,
			EntityUnknown, EntityPlayer, EntityMap, EntityObject, EntityUnk1, EntityUnk2)),
		codec.F("unk2", codec.U16(&h.Unk2)),
	}
}

// SetPlayerID (0x06, 0x00): S->C, the object id of the player.
type SetPlayerID struct {
	PlayerID uint32
	Unk1     uint32
	Unk2     uint32
}

func (p *SetPlayerID) Fields() []codec.Field {
	return []codec.Field{
		codec.F("player_id", codec.U32(&p.PlayerID)),
		codec.F("unk1", codec.U32(&p.Unk1)),
		codec.F("unk2", codec.U32(&p.Unk2)),
	}
}

// DealDamage (0x06, 0x01): C->S, a hit landed on a target.
type DealDamage struct {
	Inflicter ObjectHeader
	Target    ObjectHeader
	AttackID  uint32
	Unk2      uint64
	HitboxID  uint32
	X         codec.Float16
	Y         codec.Float16
	Z         codec.Float16
	Unk4      uint16
	Unk5      uint64
	Unk6      [0x18]byte
}

func (p *DealDamage) Fields() []codec.Field {
	return []codec.Field{
		codec.F("inflicter", codec.Struct(&p.Inflicter)),
		codec.F("target", codec.Struct(&p.Target)),
		codec.F("attack_id", codec.U32(&p.AttackID)),
		codec.F("unk2", codec.U64(&p.Unk2)),
		codec.F("hitbox_id", codec.U32(&p.HitboxID)),
		codec.F("x_pos", codec.F16(&p.X)),
		codec.F("y_pos", codec.F16(&p.Y)),
		codec.F("z_pos", codec.F16(&p.Z)),
		codec.F("unk4", codec.U16(&p.Unk4)),
		codec.F("unk5", codec.U64(&p.Unk5)),
		codec.F("unk6", codec.FixedBytes(p.Unk6[:])),
	}
}

func (*SetPlayerID) packet() {}
func (*DealDamage) packet()  {}
