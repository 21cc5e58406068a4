package world

import (
	"fmt"

	"fluidcraft.ai/internal/sim/catalogs"
)

// FluidGrid is the voxel surface the flow engine works against. GetContent
// returns nil outside the loaded/bounded world; writes outside bounds are
// dropped.
type FluidGrid interface {
	GetContent(pos Vec3i) *Content
	SetFluid(inst FluidInstance, pos Vec3i)
	SetBlock(block uint16, pos Vec3i)
	SetDefaultFluid(pos Vec3i)
}

// FluidScheduler queues a future update for the fluid at pos. The delay is
// the scheduler's business (it reads the fluid's viscosity); the engine only
// says "this cell needs another look".
type FluidScheduler interface {
	ScheduleUpdate(pos Vec3i)
}

// Fillable gates fluid movement through the faces of one block kind. Both
// ends of a move are consulted: the source face via CanOutflow and the
// target face via CanInflow.
type Fillable interface {
	CanInflow(g FluidGrid, pos Vec3i, side Side, fluid FluidID) bool
	CanOutflow(g FluidGrid, pos Vec3i, side Side, fluid FluidID) bool
}

// ContactResolver reacts to two different fluids meeting. Returning true
// means the contact consumed the interaction and normal flow must not
// proceed.
type ContactResolver interface {
	HandleContact(g FluidGrid, src FluidInstance, srcPos Vec3i, tgt FluidInstance, tgtPos Vec3i) bool
}

// FluidRules resolves per-block and per-fluid behavior for the engine.
type FluidRules interface {
	// FillableFor returns nil for blocks that admit no fluid at all.
	FillableFor(block uint16) Fillable
	FlowDirection(f FluidID) Side
	ViscosityTicks(f FluidID) int
	// RandomRule returns nil for fluids with no random-tick transitions.
	RandomRule(f FluidID) *FluidRandomRule
	Flammable(block uint16) bool
	Solid(block uint16) bool
}

// FluidRandomRule holds the resolved random-tick transitions of one fluid.
type FluidRandomRule struct {
	Solidify  *SolidifyRule
	Evaporate *EvaporateRule
	Ignite    *IgniteRule
}

// SolidifyRule hardens a deep static fluid into a block.
type SolidifyRule struct {
	Block    uint16
	MinLevel FluidLevel
}

// EvaporateRule dries a shallow static fluid over solid ground into a
// residue block.
type EvaporateRule struct {
	Residue  uint16
	MaxLevel FluidLevel
}

// IgniteRule converts one flammable neighbor per random tick.
type IgniteRule struct {
	Into uint16
}

// SideFillable is the standard Fillable: a per-face gate pair plus an
// optional fluid allowlist.
type SideFillable struct {
	In     [6]bool
	Out    [6]bool
	Fluids map[FluidID]bool // nil allows every fluid
}

// FillableAll admits every fluid through every face. AIR-like blocks use it.
var FillableAll = &SideFillable{
	In:  [6]bool{true, true, true, true, true, true},
	Out: [6]bool{true, true, true, true, true, true},
}

func (s *SideFillable) CanInflow(_ FluidGrid, _ Vec3i, side Side, fluid FluidID) bool {
	if s.Fluids != nil && !s.Fluids[fluid] {
		return false
	}
	return s.In[side]
}

func (s *SideFillable) CanOutflow(_ FluidGrid, _ Vec3i, side Side, fluid FluidID) bool {
	if s.Fluids != nil && !s.Fluids[fluid] {
		return false
	}
	return s.Out[side]
}

type fluidTraits struct {
	down      Side
	viscosity int
	random    *FluidRandomRule
}

// CatalogRules implements FluidRules from the loaded catalogs. All lookups
// are palette-indexed slices resolved once at construction.
type CatalogRules struct {
	fillable  []*SideFillable
	flammable []bool
	solid     []bool
	fluids    []fluidTraits
}

func NewCatalogRules(cats *catalogs.Catalogs) (*CatalogRules, error) {
	r := &CatalogRules{
		fillable:  make([]*SideFillable, len(cats.Blocks.Palette)),
		flammable: make([]bool, len(cats.Blocks.Palette)),
		solid:     make([]bool, len(cats.Blocks.Palette)),
		fluids:    make([]fluidTraits, len(cats.Fluids.Palette)),
	}

	for i, id := range cats.Blocks.Palette {
		def := cats.Blocks.Defs[id]
		r.flammable[i] = def.Flammable
		r.solid[i] = def.Solid
		if def.Fillable == nil {
			continue
		}
		sf, err := buildSideFillable(def.Fillable, cats)
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", id, err)
		}
		r.fillable[i] = sf
	}

	for i, id := range cats.Fluids.Palette {
		def := cats.Fluids.Defs[id]
		t := fluidTraits{down: SideDown, viscosity: def.ViscosityTicks}
		if def.FlowDirection == "UP" {
			t.down = SideUp
		}
		if t.viscosity < 1 {
			t.viscosity = 1
		}
		rr, err := buildRandomRule(def, cats)
		if err != nil {
			return nil, fmt.Errorf("fluid %s: %w", id, err)
		}
		t.random = rr
		r.fluids[i] = t
	}

	return r, nil
}

func buildSideFillable(def *catalogs.FillableDef, cats *catalogs.Catalogs) (*SideFillable, error) {
	sf := &SideFillable{}
	if err := fillSides(&sf.In, def.In); err != nil {
		return nil, err
	}
	if err := fillSides(&sf.Out, def.Out); err != nil {
		return nil, err
	}
	if len(def.Fluids) > 0 {
		sf.Fluids = make(map[FluidID]bool, len(def.Fluids))
		for _, name := range def.Fluids {
			fid, ok := cats.Fluids.Index[name]
			if !ok {
				return nil, fmt.Errorf("unknown fluid %q", name)
			}
			sf.Fluids[FluidID(fid)] = true
		}
	}
	return sf, nil
}

func fillSides(dst *[6]bool, names []string) error {
	if len(names) == 0 {
		for i := range dst {
			dst[i] = true
		}
		return nil
	}
	for _, name := range names {
		s, ok := SideByName(name)
		if !ok {
			return fmt.Errorf("unknown side %q", name)
		}
		dst[s] = true
	}
	return nil
}

func buildRandomRule(def catalogs.FluidDef, cats *catalogs.Catalogs) (*FluidRandomRule, error) {
	if def.Solidify == nil && def.Evaporate == nil && def.Ignite == nil {
		return nil, nil
	}
	rr := &FluidRandomRule{}
	if def.Solidify != nil {
		b, ok := cats.Blocks.Index[def.Solidify.Block]
		if !ok {
			return nil, fmt.Errorf("solidify block %q not in palette", def.Solidify.Block)
		}
		rr.Solidify = &SolidifyRule{Block: b, MinLevel: LevelFromInt(def.Solidify.MinLevel)}
	}
	if def.Evaporate != nil {
		b, ok := cats.Blocks.Index[def.Evaporate.Residue]
		if !ok {
			return nil, fmt.Errorf("evaporate residue %q not in palette", def.Evaporate.Residue)
		}
		rr.Evaporate = &EvaporateRule{Residue: b, MaxLevel: LevelFromInt(def.Evaporate.MaxLevel)}
	}
	if def.Ignite != nil {
		b, ok := cats.Blocks.Index[def.Ignite.Into]
		if !ok {
			return nil, fmt.Errorf("ignite block %q not in palette", def.Ignite.Into)
		}
		rr.Ignite = &IgniteRule{Into: b}
	}
	return rr, nil
}

func (r *CatalogRules) FillableFor(block uint16) Fillable {
	if int(block) >= len(r.fillable) {
		return nil
	}
	// Typed nil must not leak through the interface.
	if sf := r.fillable[block]; sf != nil {
		return sf
	}
	return nil
}

func (r *CatalogRules) FlowDirection(f FluidID) Side {
	if int(f) >= len(r.fluids) {
		return SideDown
	}
	return r.fluids[f].down
}

func (r *CatalogRules) ViscosityTicks(f FluidID) int {
	if int(f) >= len(r.fluids) || r.fluids[f].viscosity < 1 {
		return 1
	}
	return r.fluids[f].viscosity
}

func (r *CatalogRules) RandomRule(f FluidID) *FluidRandomRule {
	if int(f) >= len(r.fluids) {
		return nil
	}
	return r.fluids[f].random
}

func (r *CatalogRules) Flammable(block uint16) bool {
	return int(block) < len(r.flammable) && r.flammable[block]
}

func (r *CatalogRules) Solid(block uint16) bool {
	return int(block) < len(r.solid) && r.solid[block]
}
