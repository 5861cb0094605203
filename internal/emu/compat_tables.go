package emu

import (
	"strings"

	"github.com/clouddrift/gobomb/internal/cart"
	"github.com/clouddrift/gobomb/internal/ppu"
)

// compatPaletteSetNames names, by index, the entries of compatPaletteSets: a
// handful of four-shade palettes a DMG game can be assigned to, in place of
// the CGB boot ROM's own per-title table.
var compatPaletteSetNames = []string{"Green", "Sepia", "Blue", "Red", "Pastel", "Gray"}

var compatPaletteSets = [][4]ppu.Color{
	{{0xE0, 0xF8, 0xD0}, {0x88, 0xC0, 0x70}, {0x34, 0x68, 0x56}, {0x08, 0x18, 0x20}}, // Green
	{{0xF8, 0xE8, 0xC8}, {0xD0, 0xA0, 0x68}, {0x80, 0x58, 0x38}, {0x30, 0x18, 0x10}}, // Sepia
	{{0xE0, 0xF0, 0xF8}, {0x68, 0x98, 0xD0}, {0x30, 0x50, 0x88}, {0x10, 0x18, 0x38}}, // Blue
	{{0xF8, 0xE0, 0xE0}, {0xD0, 0x70, 0x70}, {0x88, 0x30, 0x30}, {0x38, 0x10, 0x10}}, // Red
	{{0xF8, 0xF0, 0xF8}, {0xD0, 0xB0, 0xD8}, {0x90, 0x70, 0x98}, {0x40, 0x30, 0x48}}, // Pastel
	{{0xF8, 0xF8, 0xF8}, {0xA8, 0xA8, 0xA8}, {0x60, 0x60, 0x60}, {0x10, 0x10, 0x10}}, // Gray
}

// compatTitleExact maps exact, normalized titles to a preferred palette ID.
var compatTitleExact = map[string]int{
	"TETRIS":              2,
	"TETRIS DX":           2,
	"SUPER MARIO LAND":    3,
	"SUPER MARIO LAND 2":  3,
	"DR. MARIO":           4,
	"DONKEY KONG":         1,
	"THE LEGEND OF ZELDA": 0,
	"ZELDA":               0,
	"METROID II":          3,
	"KIRBY'S DREAM LAND":  4,
	"MEGA MAN":            2,
	"MEGAMAN":             2,
	"WARIO LAND":          1,
	"POKEMON YELLOW":      4,
	"POKEMON RED":         4,
	"POKEMON BLUE":        4,
	"POCKET MONSTERS":     4,
}

type containsRule struct {
	substr string
	id     int
}

// compatTitleContains applies broader substring heuristics for families not
// covered by an exact title match.
var compatTitleContains = []containsRule{
	{"TETRIS", 2},
	{"MARIO", 3},
	{"ZELDA", 0},
	{"KIRBY", 4},
	{"DONKEY KONG", 1},
	{"METROID", 3},
	{"MEGA MAN", 2},
	{"MEGAMAN", 2},
	{"WARIO", 1},
	{"POKEMON", 4},
	{"POCKET MONSTERS", 4},
}

// autoCompatPaletteFromHeader picks a DMG compatibility palette using a
// small title table, then a stable fallback keyed on the header checksum for
// Nintendo-published titles so repeated runs of the same unmapped ROM always
// land on the same palette.
func autoCompatPaletteFromHeader(h *cart.Header) (int, bool) {
	if h == nil {
		return 0, false
	}
	t := strings.ToUpper(strings.TrimSpace(h.Title))
	if id, ok := compatTitleExact[t]; ok {
		return id, true
	}
	for _, r := range compatTitleContains {
		if strings.Contains(t, r.substr) {
			return r.id, true
		}
	}
	nintendo := false
	if h.OldLicensee == 0x33 {
		nintendo = strings.ToUpper(h.NewLicensee) == "01"
	} else {
		nintendo = h.OldLicensee == 0x01
	}
	if nintendo {
		return int(h.HeaderChecksum) % len(compatPaletteSets), true
	}
	return 0, true
}
