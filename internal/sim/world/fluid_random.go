package world

// DoRandomUpdate applies a fluid's slow environmental transition at pos, if
// its catalog rules and local state allow one. Random updates never move
// fluid; they only convert cells. level and isStatic describe the instance
// the probe observed.
func (e *FluidEngine) DoRandomUpdate(g FluidGrid, pos Vec3i, level FluidLevel, isStatic bool) {
	c := g.GetContent(pos)
	if c == nil || c.Fluid.IsEmpty() {
		return
	}
	f := c.Fluid.Fluid
	rule := e.rules.RandomRule(f)
	if rule == nil {
		return
	}
	down := e.rules.FlowDirection(f)

	if r := rule.Solidify; r != nil && isStatic && level >= r.MinLevel {
		g.SetBlock(r.Block, pos)
		g.SetDefaultFluid(pos)
		return
	}

	if r := rule.Evaporate; r != nil && isStatic && level <= r.MaxLevel {
		// Only a shallow film over solid ground dries out.
		bc := g.GetContent(pos.Offset(down))
		if bc != nil && e.rules.Solid(bc.Block) {
			g.SetBlock(r.Residue, pos)
			g.SetDefaultFluid(pos)
			return
		}
	}

	if r := rule.Ignite; r != nil {
		for _, s := range SideAll {
			np := pos.Offset(s)
			nc := g.GetContent(np)
			if nc == nil || !e.rules.Flammable(nc.Block) {
				continue
			}
			// One neighbor per probe.
			g.SetBlock(r.Into, np)
			return
		}
	}
}
