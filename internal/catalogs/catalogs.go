package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sugawarayuuta/sonnet"
)

type Catalogs struct {
	Blocks BlockCatalog
	Items  ItemCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID             string   `json:"id"`
	Solid          bool     `json:"solid"`
	Passable       bool     `json:"passable"`
	Damaging       bool     `json:"damaging,omitempty"`
	NonSuffocating bool     `json:"non_suffocating,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

func (d BlockDef) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"` // "BLOCK","TOOL","MATERIAL","FOOD","MISC"
	DisplayName string `json:"display_name,omitempty"`
}

// Placeholder stands in for item ids that do not resolve.
const Placeholder = "BARRIER"

// Lookup resolves an item id. Ids are upper-case; the caller's casing is ignored.
func (c ItemCatalog) Lookup(id string) (ItemDef, bool) {
	d, ok := c.Defs[strings.ToUpper(strings.TrimSpace(id))]
	return d, ok
}

// MaterialOrPlaceholder returns the canonical id, or Placeholder when id is unknown.
func (c ItemCatalog) MaterialOrPlaceholder(id string) string {
	if d, ok := c.Lookup(id); ok {
		return d.ID
	}
	return Placeholder
}

// Load reads blocks.json and items.json from configDir. A missing file keeps the
// built-in defaults for that catalog.
func Load(configDir string) (*Catalogs, error) {
	c := Defaults()

	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return c, nil
}

// Defaults builds the catalogs compiled into the binary.
func Defaults() *Catalogs {
	var c Catalogs
	if err := buildBlocks(DefaultBlocks(), nil, &c.Blocks); err != nil {
		panic(err)
	}
	buildItems(DefaultItems(), nil, &c.Items)
	return &c
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var defs []BlockDef
	if err := sonnet.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	var next BlockCatalog
	if err := buildBlocks(defs, raw, &next); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	*out = next
	return nil
}

func buildBlocks(defs []BlockDef, raw []byte, out *BlockCatalog) error {
	if raw == nil {
		raw, _ = sonnet.Marshal(defs)
	}
	out.DefsDigest = sha256Hex(raw)
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := sonnet.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var defs []ItemDef
	if err := sonnet.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
	}
	var next ItemCatalog
	buildItems(defs, raw, &next)
	*out = next
	return nil
}

func buildItems(defs []ItemDef, raw []byte, out *ItemCatalog) {
	if raw == nil {
		raw, _ = sonnet.Marshal(defs)
	}
	out.DefsDigest = sha256Hex(raw)
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		d.ID = strings.ToUpper(d.ID)
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := sonnet.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
}

func filterOut(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
