package world

import (
	"fluidcraft.ai/internal/sim/catalogs"
)

type contactKey struct {
	src, tgt FluidID
}

// ContactReaction reports one resolved contact, for audit and observer
// event feeds.
type ContactReaction struct {
	Source FluidID
	Target FluidID
	Pos    Vec3i
	Prev   uint16 // block replaced by the reaction
	Block  uint16
}

// ContactManager resolves encounters between two different fluids from the
// ordered rule table in contacts.json. The pair (source, target) is
// directional: water flowing into lava and lava flowing into water may
// produce different blocks.
type ContactManager struct {
	rules      map[contactKey]uint16
	onReaction func(ContactReaction)
}

// NewContactManager resolves the contact catalog against the palettes.
// onReaction may be nil.
func NewContactManager(cats *catalogs.Catalogs, onReaction func(ContactReaction)) *ContactManager {
	m := &ContactManager{
		rules:      make(map[contactKey]uint16, len(cats.Contacts.Rules)),
		onReaction: onReaction,
	}
	for _, def := range cats.Contacts.Rules {
		key := contactKey{
			src: FluidID(cats.Fluids.Index[def.Source]),
			tgt: FluidID(cats.Fluids.Index[def.Target]),
		}
		m.rules[key] = cats.Blocks.Index[def.Block]
	}
	return m
}

// HandleContact converts the target cell into the rule's product block and
// clears its fluid. Without a matching rule the contact is unhandled and
// flow into the target stays blocked.
func (m *ContactManager) HandleContact(g FluidGrid, src FluidInstance, srcPos Vec3i, tgt FluidInstance, tgtPos Vec3i) bool {
	block, ok := m.rules[contactKey{src: src.Fluid, tgt: tgt.Fluid}]
	if !ok {
		return false
	}
	prev := uint16(0)
	if c := g.GetContent(tgtPos); c != nil {
		prev = c.Block
	}
	g.SetBlock(block, tgtPos)
	g.SetDefaultFluid(tgtPos)
	if m.onReaction != nil {
		m.onReaction(ContactReaction{Source: src.Fluid, Target: tgt.Fluid, Pos: tgtPos, Prev: prev, Block: block})
	}
	return true
}
