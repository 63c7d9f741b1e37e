package gamedata

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Template describes one item template known to this seed. Placeholder
// templates are synthetic items injected by the static randomizer; they
// encode the location they occupy and, for items that are real in the local
// game, the template of the real item they stand in for.
type Template struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Placeholder marks a synthetic randomizer item that must never stay
	// visible in the player's inventory.
	Placeholder bool `json:"placeholder,omitempty"`

	// LocationID is the check encoded in a placeholder, 0 otherwise.
	LocationID int64 `json:"locationId,omitempty"`

	// RealTemplateID is the local item a placeholder stands in for. Empty
	// for foreign placeholders, whose real item belongs to another world.
	RealTemplateID string `json:"realTemplateId,omitempty"`

	// ResolvesTo points at the template synthesis should actually produce,
	// used by upgraded shop variants to collapse to their final form.
	ResolvesTo string `json:"resolvesTo,omitempty"`
}

// Location is one server-recognized check. Static, derived from game data,
// never mutated at runtime.
type Location struct {
	CheckID int64  `json:"checkId"`
	Name    string `json:"name"`
	Region  string `json:"region"`
	Hidden  bool   `json:"hidden,omitempty"`
	Shop    bool   `json:"shop,omitempty"`
}

// Table is the lookup table for all templates and locations in one seed.
type Table struct {
	templates map[string]Template
	locations map[int64]Location
}

type tableFile struct {
	Templates []Template `json:"templates"`
	Locations []Location `json:"locations"`
}

// Load reads a game data archive written by the static randomizer. Archives
// with a .zst suffix are zstd-compressed JSON; anything else is plain JSON.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open game data archive: %v", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %v", err)
		}
		defer zr.Close()
		r = zr
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read game data archive: %v", err)
	}

	return Parse(b)
}

// Parse builds a Table from raw archive JSON.
func Parse(b []byte) (*Table, error) {
	file := &tableFile{}
	if err := json.Unmarshal(b, file); err != nil {
		return nil, fmt.Errorf("failed to parse game data archive: %v", err)
	}

	t := &Table{
		templates: make(map[string]Template, len(file.Templates)),
		locations: make(map[int64]Location, len(file.Locations)),
	}
	for _, tmpl := range file.Templates {
		if tmpl.ID == "" {
			return nil, fmt.Errorf("game data archive contains a template without an id")
		}
		if _, ok := t.templates[tmpl.ID]; ok {
			return nil, fmt.Errorf("duplicate template id in game data archive: %s", tmpl.ID)
		}
		t.templates[tmpl.ID] = tmpl
	}
	for _, loc := range file.Locations {
		if _, ok := t.locations[loc.CheckID]; ok {
			return nil, fmt.Errorf("duplicate check id in game data archive: %d", loc.CheckID)
		}
		t.locations[loc.CheckID] = loc
	}

	return t, nil
}

// Template looks up a template by id.
func (t *Table) Template(id string) (Template, bool) {
	tmpl, ok := t.templates[id]
	return tmpl, ok
}

// Location looks up a location by check id.
func (t *Table) Location(checkID int64) (Location, bool) {
	loc, ok := t.locations[checkID]
	return loc, ok
}

// TemplateCount returns the number of templates in the table.
func (t *Table) TemplateCount() int {
	return len(t.templates)
}

// LocationCount returns the number of locations in the table.
func (t *Table) LocationCount() int {
	return len(t.locations)
}

// ResolveFinal follows ResolvesTo links until it reaches the template that
// synthesis should produce. Upgraded purchase variants collapse to a single
// final template this way.
func (t *Table) ResolveFinal(id string) (Template, error) {
	seen := make(map[string]bool)
	current, ok := t.templates[id]
	if !ok {
		return Template{}, fmt.Errorf("unknown item template: %s", id)
	}
	for current.ResolvesTo != "" {
		if seen[current.ID] {
			return Template{}, fmt.Errorf("template resolution cycle at %s", current.ID)
		}
		seen[current.ID] = true
		next, ok := t.templates[current.ResolvesTo]
		if !ok {
			return Template{}, fmt.Errorf("template %s resolves to unknown template %s", current.ID, current.ResolvesTo)
		}
		current = next
	}
	return current, nil
}
