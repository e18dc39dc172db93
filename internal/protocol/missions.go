package protocol

import "github.com/udisondev/pso2go/internal/codec"

// MissionListRequest (0x4A, 0x00): C->S.
type MissionListRequest struct{}

// Mission is one ARKS mission.
// Type: 1 daily, 2 weekly, 5 main, 7 tier.
type Mission struct {
	Type           uint32
	StartDate      uint32
	EndDate        uint32
	Unk4           uint32
	Unk5           uint32
	CompletionDate uint32
	Unk7           uint32
	Unk8           uint32
	Unk9           uint32
	Unk10          uint32
	Unk11          uint32
	Unk12          uint32
	Unk13          uint32
	Unk14          uint32
	Unk15          uint32
}

func (m *Mission) Fields() []codec.Field {
	return []codec.Field{
		codec.F("mission_type", codec.U32(&m.Type)),
		codec.F("start_date", codec.U32(&m.StartDate)),
		codec.F("end_date", codec.U32(&m.EndDate)),
		codec.F("unk4", codec.U32(&m.Unk4)),
		codec.F("unk5", codec.U32(&m.Unk5)),
		codec.F("completion_date", codec.U32(&m.CompletionDate)),
		codec.F("unk7", codec.U32(&m.Unk7)),
		codec.F("unk8", codec.U32(&m.Unk8)),
		codec.F("unk9", codec.U32(&m.Unk9)),
		codec.F("unk10", codec.U32(&m.Unk10)),
		codec.F("unk11", codec.U32(&m.Unk11)),
		codec.F("unk12", codec.U32(&m.Unk12)),
		codec.F("unk13", codec.U32(&m.Unk13)),
		codec.F("unk14", codec.U32(&m.Unk14)),
		codec.F("unk15", codec.U32(&m.Unk15)),
	}
}

// MissionList (0x4A, 0x01): S->C.
type MissionList struct {
	Unk1         uint32
	Missions     []Mission
	DailyUpdate  uint32
	WeeklyUpdate uint32
	TierUpdate   uint32
}

func (p *MissionList) Fields() []codec.Field {
	return []codec.Field{
		codec.F("unk1", codec.U32(&p.Unk1)),
		codec.F("missions", codec.Seq(&p.Missions, codec.Nested[Mission])).Magic(0xC691, 0x47),
		codec.F("daily_update", codec.U32(&p.DailyUpdate)),
		codec.F("weekly_update", codec.U32(&p.WeeklyUpdate)),
		codec.F("tier_update", codec.U32(&p.TierUpdate)),
	}
}

func (*MissionListRequest) Fields() []codec.Field { return nil }

func (*MissionListRequest) packet() {}
func (*MissionList) packet()        {}
