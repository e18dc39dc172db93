package protocol

import (
	"fmt"
	"reflect"

	"github.com/udisondev/pso2go/internal/variant"
)

// Таблица известных пакетов. Одна пара (category, sub-id) может соответствовать
// разным типам на разных вариантах клиента, но фильтры вариантов не пересекаются.
type entry struct {
	category uint8
	subID    uint16
	variants variant.Set
	flags    Flags
	name     string
	new      func() Payload
}

func (e *entry) header() Header {
	return Header{Category: e.category, SubID: e.subID, Flags: e.flags}
}

var (
	byID   = make(map[uint32][]*entry)
	byType = make(map[reflect.Type]*entry)
)

func key(category uint8, subID uint16) uint32 {
	return uint32(category)<<16 | uint32(subID)
}

// register adds a packet type to the table. Called from init only.
func register[T any, PT interface {
	*T
	Payload
}](category uint8, subID uint16, variants variant.Set, flags Flags) {
	typ := reflect.TypeFor[PT]()
	if _, dup := byType[typ]; dup {
		panic(fmt.Sprintf("protocol: %s registered twice", typ))
	}
	k := key(category, subID)
	for _, other := range byID[k] {
		if other.variants&variants != 0 {
			panic(fmt.Sprintf("protocol: %s and %s overlap on (0x%02X, 0x%02X)",
				other.name, typ.Elem().Name(), category, subID))
		}
	}

	e := &entry{
		category: category,
		subID:    subID,
		variants: variants,
		flags:    flags,
		name:     typ.Elem().Name(),
		new:      func() Payload { return PT(new(T)) },
	}
	byID[k] = append(byID[k], e)
	byType[typ] = e
}

func lookup(category uint8, subID uint16, v variant.Variant) *entry {
	for _, e := range byID[key(category, subID)] {
		if e.variants.Has(v) {
			return e
		}
	}
	return nil
}

var (
	anyClient = variant.Of(variant.NGS, variant.Classic)
	classic   = variant.ClassicFamily
	ngsOnly   = variant.Only(variant.NGS)
)

func init() {
	// Server [0x03]
	register[InitialLoad](0x03, 0x03, anyClient, Flags{})
	register[LoadingScreenTransition](0x03, 0x04, anyClient, Flags{})
	register[ServerHello](0x03, 0x08, anyClient, Flags{})
	register[ServerPing](0x03, 0x0B, anyClient, Flags{})
	register[ServerPong](0x03, 0x0C, anyClient, Flags{})
	register[FinishLoading](0x03, 0x23, anyClient, Flags{})
	register[UnlockControls](0x03, 0x2B, anyClient, Flags{})

	// Player status [0x06]
	register[SetPlayerID](0x06, 0x00, anyClient, Flags{})
	register[DealDamage](0x06, 0x01, anyClient, Flags{})

	// Chat [0x07]
	register[ChatMessage](0x07, 0x00, classic, Flags{Packed: true, ObjectRelated: true})
	register[ChatMessageNGS](0x07, 0x00, ngsOnly, Flags{Packed: true, ObjectRelated: true})

	// Login [0x11]
	register[CharacterListRequest](0x11, 0x02, anyClient, Flags{})
	register[StartGame](0x11, 0x04, anyClient, Flags{})
	register[EncryptionRequest](0x11, 0x0B, anyClient, Flags{})
	register[EncryptionResponse](0x11, 0x0C, anyClient, Flags{})
	register[ClientPing](0x11, 0x0D, anyClient, Flags{})
	register[ClientPong](0x11, 0x0E, anyClient, Flags{})
	register[NicknameResponse](0x11, 0x1D, anyClient, Flags{})
	register[NicknameRequest](0x11, 0x1E, anyClient, Flags{})
	register[ClientGoodbye](0x11, 0x2B, anyClient, Flags{})
	register[SystemInformation](0x11, 0x2D, anyClient, FlagsPacked)
	register[ShipList](0x11, 0x3D, anyClient, FlagsPacked)
	register[NotificationStatus](0x11, 0x71, anyClient, Flags{})
	register[LoginHistoryRequest](0x11, 0x86, anyClient, Flags{})
	register[LoginHistory](0x11, 0x87, anyClient, FlagsPacked)
	register[NicknameError](0x11, 0xEA, anyClient, FlagsPacked)
	register[BannerList](0x11, 0xED, anyClient, FlagsPacked)

	// System [0x19]
	register[SystemMessage](0x19, 0x01, classic, FlagsPacked)
	register[LobbyMonitor](0x19, 0x0F, anyClient, Flags{})

	// Settings [0x2B]
	register[SettingsRequest](0x2B, 0x00, anyClient, Flags{})
	register[SaveSettings](0x2B, 0x01, anyClient, FlagsPacked)
	register[LoadSettings](0x2B, 0x02, anyClient, FlagsPacked)

	// ARKS missions [0x4A]
	register[MissionListRequest](0x4A, 0x00, anyClient, Flags{})
	register[MissionList](0x4A, 0x01, anyClient, FlagsPacked)
}
