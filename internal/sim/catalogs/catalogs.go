package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// paletteCap bounds both palettes: a voxel's fluid cell packs the fluid id
// into 11 bits, and block ids share the uint16 chunk word layout.
const paletteCap = 2048

type Catalogs struct {
	Blocks   BlockCatalog
	Fluids   FluidCatalog
	Contacts ContactCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID        string       `json:"id"`
	Solid     bool         `json:"solid"`
	Flammable bool         `json:"flammable"`
	Fillable  *FillableDef `json:"fillable,omitempty"`
}

// FillableDef gates fluid crossing the block's faces. Empty side lists mean
// all six sides; empty fluid list means any fluid.
type FillableDef struct {
	In     []string `json:"in,omitempty"`
	Out    []string `json:"out,omitempty"`
	Fluids []string `json:"fluids,omitempty"`
}

type FluidCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]FluidDef
	PaletteDigest string
	DefsDigest    string
}

type FluidDef struct {
	ID             string `json:"id"`
	ViscosityTicks int    `json:"viscosity_ticks"`
	FlowDirection  string `json:"flow_direction,omitempty"` // "DOWN" (default) or "UP"

	// Random-tick terminal transitions; all optional.
	Solidify  *SolidifyRule  `json:"solidify,omitempty"`
	Evaporate *EvaporateRule `json:"evaporate,omitempty"`
	Ignite    *IgniteRule    `json:"ignite,omitempty"`
}

// SolidifyRule hardens a settled cell of at least MinLevel into Block.
type SolidifyRule struct {
	Block    string `json:"block"`
	MinLevel int    `json:"min_level"`
}

// EvaporateRule converts a shallow settled cell over solid ground into a
// Residue block (at most MaxLevel deep).
type EvaporateRule struct {
	Residue  string `json:"residue"`
	MaxLevel int    `json:"max_level"`
}

// IgniteRule converts one flammable neighbor block into Into.
type IgniteRule struct {
	Into string `json:"into"`
}

type ContactCatalog struct {
	Rules  []ContactDef
	Digest string
}

// ContactDef is an ordered reaction: Source flowing into a cell holding
// Target replaces the target cell with Block.
type ContactDef struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Block  string `json:"block"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	if err := loadFluids(filepath.Join(configDir, "fluids.json"), &c.Fluids); err != nil {
		return nil, err
	}
	if err := loadContacts(filepath.Join(configDir, "contacts.json"), &c.Contacts); err != nil {
		return nil, err
	}
	if err := c.validateRefs(); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

var sideNames = map[string]bool{
	"DOWN": true, "UP": true, "NORTH": true, "SOUTH": true, "WEST": true, "EAST": true,
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		if d.Fillable != nil {
			for _, s := range append(append([]string{}, d.Fillable.In...), d.Fillable.Out...) {
				if !sideNames[s] {
					return fmt.Errorf("blocks.json: %s: unknown side %q", d.ID, s)
				}
			}
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
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)
	if len(ids) > paletteCap {
		return fmt.Errorf("blocks.json: palette too large: %d", len(ids))
	}

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadFluids(path string, out *FluidCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []FluidDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("fluids.json: %w", err)
	}
	out.Defs = map[string]FluidDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("fluids.json: empty id")
		}
		if d.ID != "NONE" && d.ViscosityTicks < 1 {
			return fmt.Errorf("fluids.json: %s: viscosity_ticks must be >= 1", d.ID)
		}
		switch d.FlowDirection {
		case "", "DOWN", "UP":
		default:
			return fmt.Errorf("fluids.json: %s: bad flow_direction %q", d.ID, d.FlowDirection)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure NONE exists and is palette id 0 (the empty-fluid sentinel).
	if _, ok := out.Defs["NONE"]; !ok {
		return fmt.Errorf("fluids.json: missing NONE")
	}
	ids = append([]string{"NONE"}, filterOut(ids, "NONE")...)
	if len(ids) > paletteCap {
		return fmt.Errorf("fluids.json: palette too large: %d", len(ids))
	}

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadContacts(path string, out *ContactCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		// A world without contact reactions is legal.
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)
	if err := json.Unmarshal(raw, &out.Rules); err != nil {
		return fmt.Errorf("contacts.json: %w", err)
	}
	return nil
}

// validateRefs cross-checks names between the three catalogs so bad config
// fails at load, not mid-simulation.
func (c *Catalogs) validateRefs() error {
	block := func(ctx, id string) error {
		if _, ok := c.Blocks.Defs[id]; !ok {
			return fmt.Errorf("%s: unknown block %q", ctx, id)
		}
		return nil
	}
	fluid := func(ctx, id string) error {
		if _, ok := c.Fluids.Defs[id]; !ok {
			return fmt.Errorf("%s: unknown fluid %q", ctx, id)
		}
		return nil
	}

	for id, d := range c.Blocks.Defs {
		if d.Fillable == nil {
			continue
		}
		for _, f := range d.Fillable.Fluids {
			if err := fluid(fmt.Sprintf("blocks.json: %s: fillable", id), f); err != nil {
				return err
			}
		}
	}
	for id, d := range c.Fluids.Defs {
		if d.Solidify != nil {
			if err := block(fmt.Sprintf("fluids.json: %s: solidify", id), d.Solidify.Block); err != nil {
				return err
			}
		}
		if d.Evaporate != nil {
			if err := block(fmt.Sprintf("fluids.json: %s: evaporate", id), d.Evaporate.Residue); err != nil {
				return err
			}
		}
		if d.Ignite != nil {
			if err := block(fmt.Sprintf("fluids.json: %s: ignite", id), d.Ignite.Into); err != nil {
				return err
			}
		}
	}
	for i, r := range c.Contacts.Rules {
		ctx := fmt.Sprintf("contacts.json: rule %d", i)
		if err := fluid(ctx, r.Source); err != nil {
			return err
		}
		if err := fluid(ctx, r.Target); err != nil {
			return err
		}
		if r.Source == "NONE" || r.Target == "NONE" || r.Source == r.Target {
			return fmt.Errorf("%s: contact pair must be two distinct real fluids", ctx)
		}
		if err := block(ctx, r.Block); err != nil {
			return err
		}
	}
	return nil
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
