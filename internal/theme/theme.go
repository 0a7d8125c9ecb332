package theme

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// StorageKey is the key under which the selected scheme is persisted.
const StorageKey = "colorScheme"

var ErrUnknownScheme = errors.New("unknown color scheme")

// Scheme is a named accent colour. Inverted schemes are dark enough that text
// drawn on them has to be light.
type Scheme struct {
	Name     string
	Hex      string // without the leading '#'
	Inverted bool
}

// Schemes is the built-in palette.
var Schemes = []Scheme{
	{"Red", "f44336", true},
	{"Pink", "e91e63", true},
	{"Purple", "9c27b0", true},
	{"Deep Purple", "673ab7", true},
	{"Indigo", "3f51b5", true},
	{"Blue", "2196f3", true},
	{"Light Blue", "03a9f4", false},
	{"Cyan", "00bcd4", false},
	{"Teal", "009688", true},
	{"Green", "4caf50", false},
	{"Light Green", "8bc34a", false},
	{"Lime", "cddc39", false},
	{"Yellow", "ffeb3b", false},
	{"Amber", "ffc107", false},
	{"Orange", "ff9800", false},
	{"Deep Orange", "ff5722", true},
	{"Brown", "795548", true},
	{"Blue Grey", "607d8b", true},
}

// Color returns the scheme colour in #rrggbb form.
func (s Scheme) Color() string {
	return "#" + s.Hex
}

// MarshalJSON encodes the scheme as a [name, hex, inverted] tuple.
func (s Scheme) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Name, s.Hex, s.Inverted})
}

// UnmarshalJSON decodes a [name, hex, inverted] tuple.
func (s *Scheme) UnmarshalJSON(b []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(b, &tuple); err != nil {
		return fmt.Errorf("decode color scheme: %w", err)
	}
	if len(tuple) != 3 {
		return fmt.Errorf("decode color scheme: want 3 elements, got %d", len(tuple))
	}

	var out Scheme
	if err := json.Unmarshal(tuple[0], &out.Name); err != nil {
		return fmt.Errorf("decode color scheme name: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &out.Hex); err != nil {
		return fmt.Errorf("decode color scheme color: %w", err)
	}
	if err := json.Unmarshal(tuple[2], &out.Inverted); err != nil {
		return fmt.Errorf("decode color scheme flag: %w", err)
	}

	*s = out
	return nil
}

// Lookup finds a built-in scheme by name, ignoring case and surrounding space.
func Lookup(name string) (Scheme, error) {
	name = strings.TrimSpace(name)
	for _, s := range Schemes {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return Scheme{}, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
}

// Next returns the scheme following current in the palette, wrapping around.
// An unknown current yields the first scheme.
func Next(current Scheme) Scheme {
	for i, s := range Schemes {
		if s.Name == current.Name {
			return Schemes[(i+1)%len(Schemes)]
		}
	}
	return Schemes[0]
}
