// Package protocol maps frames to packets and back.
//
// A frame is a little-endian u32 total length (prefix included), a 4-byte Header
// and the packet body. The set of packets is closed: every well-formed frame
// decodes to a known packet of the catalogue, to *Unknown when the table has no
// entry for its header, or to *Raw when the variant is variant.Raw.
package protocol

import (
	"reflect"

	"github.com/udisondev/pso2go/internal/codec"
	"github.com/udisondev/pso2go/internal/variant"
)

// Packet is a decoded frame.
type Packet interface {
	packet()
}

// Payload is a packet with a table entry: its body is described by a field schema.
type Payload interface {
	Packet
	codec.Schema
}

// Unknown is a frame whose header has no table entry for the variant it was read with.
// Re-encoding it emits the same header followed by Data.
type Unknown struct {
	Header Header
	Data   []byte
}

// Raw is a whole frame, length prefix included, captured without interpretation.
type Raw struct {
	Data []byte
}

// Empty is the zero packet. It encodes to nothing.
type Empty struct{}

func (*Unknown) packet() {}
func (*Raw) packet()     {}
func (Empty) packet()    {}

// Name returns the catalogue name of p.
func Name(p Packet) string {
	switch p := p.(type) {
	case *Unknown:
		return "Unknown"
	case *Raw:
		return "Raw"
	case Empty, *Empty:
		return "Empty"
	default:
		if e, ok := byType[reflect.TypeOf(p)]; ok {
			return e.name
		}
		return codec.TypeName(p)
	}
}

// HeaderOf returns the header p is written with. Raw and Empty have none.
func HeaderOf(p Packet) (Header, bool) {
	switch p := p.(type) {
	case *Unknown:
		return p.Header, true
	case Payload:
		e, ok := byType[reflect.TypeOf(p)]
		if !ok {
			return Header{}, false
		}
		return e.header(), true
	default:
		return Header{}, false
	}
}

// Lookup returns a zero packet for (category, subID) on v.
func Lookup(category uint8, subID uint16, v variant.Variant) (Payload, bool) {
	e := lookup(category, subID, v)
	if e == nil {
		return nil, false
	}
	return e.new(), true
}

// Category groups packets by their header category id.
type Category uint8

const (
	CategoryUnknown Category = iota
	CategoryServer
	CategoryObject
	CategorySpawning
	CategoryLogin
	CategoryMail
	CategoryDailyOrders
	CategorySettings
	CategorySymbolArt
	CategoryARKSMissions
	CategoryMissionPass
)

var categoryNames = [...]string{
	CategoryUnknown:      "unknown",
	CategoryServer:       "server",
	CategoryObject:       "object",
	CategorySpawning:     "spawning",
	CategoryLogin:        "login",
	CategoryMail:         "mail",
	CategoryDailyOrders:  "daily_orders",
	CategorySettings:     "settings",
	CategorySymbolArt:    "symbol_art",
	CategoryARKSMissions: "arks_missions",
	CategoryMissionPass:  "mission_pass",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

var categoryByID = map[uint8]Category{
	0x03: CategoryServer,
	0x04: CategoryObject,
	0x08: CategorySpawning,
	0x11: CategoryLogin,
	0x1A: CategoryMail,
	0x1F: CategoryDailyOrders,
	0x2B: CategorySettings,
	0x2F: CategorySymbolArt,
	0x4A: CategoryARKSMissions,
	0x4D: CategoryMissionPass,
}

// CategoryOf returns the category of a known packet.
// Unknown, Raw and Empty packets belong to CategoryUnknown.
func CategoryOf(p Packet) Category {
	pl, ok := p.(Payload)
	if !ok {
		return CategoryUnknown
	}
	e, ok := byType[reflect.TypeOf(pl)]
	if !ok {
		return CategoryUnknown
	}
	return categoryByID[e.category]
}
