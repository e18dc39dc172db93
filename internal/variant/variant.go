// Package variant describes the client variants the protocol is spoken by.
//
// A Variant is supplied with every encode/decode call: it selects the packet header
// layout, the packet table entries that apply and the fields that are present.
package variant

import (
	"fmt"
	"strings"
)

// Variant identifies a client build family.
type Variant uint8

const (
	// NGS is the newer client (new header layout, NGS-only fields).
	NGS Variant = iota
	// Classic is the base legacy client.
	Classic
	// NA is the north american legacy client.
	NA
	// JP is the japanese legacy client.
	JP
	// Vita is the PS Vita legacy client.
	Vita
	// Raw disables header interpretation: frames pass through verbatim.
	Raw
)

var names = [...]string{
	NGS:     "ngs",
	Classic: "classic",
	NA:      "na",
	JP:      "jp",
	Vita:    "vita",
	Raw:     "raw",
}

// String returns the lower-case variant name.
func (v Variant) String() string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("variant(%d)", uint8(v))
}

// Parse converts a variant name (case-insensitive) to a Variant.
func Parse(s string) (Variant, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, name := range names {
		if name == s {
			return Variant(v), nil
		}
	}
	return 0, fmt.Errorf("unknown client variant %q", s)
}

// IsNGS reports whether v uses the NGS header layout and NGS cipher personality.
func (v Variant) IsNGS() bool {
	return v == NGS
}

// IsClassic reports whether v belongs to the legacy client family.
func (v Variant) IsClassic() bool {
	switch v {
	case Classic, NA, JP, Vita:
		return true
	}
	return false
}

// Set is a bit set of variants used for packet table filters and conditional fields.
type Set uint8

const (
	// ClassicFamily matches every legacy client.
	ClassicFamily = Set(1<<Classic | 1<<NA | 1<<JP | 1<<Vita)
	// Any matches every variant.
	Any = Set(1<<NGS) | ClassicFamily | Set(1<<Raw)
)

// Of builds a Set from individual variants.
// Classic expands to the whole legacy family, mirroring how packet tables tag
// "classic" packets; use Only for an exact match.
func Of(vs ...Variant) Set {
	var s Set
	for _, v := range vs {
		if v == Classic {
			s |= ClassicFamily
			continue
		}
		s |= 1 << v
	}
	return s
}

// Only builds a Set matching exactly the given variants.
func Only(vs ...Variant) Set {
	var s Set
	for _, v := range vs {
		s |= 1 << v
	}
	return s
}

// Has reports whether v is a member of s.
func (s Set) Has(v Variant) bool {
	return s&(1<<v) != 0
}

// UnsupportedError is returned when an operation is not available for a variant
// or a cipher personality is disabled.
type UnsupportedError struct {
	Variant Variant
	What    string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s is not supported for variant %s", e.What, e.Variant)
}
