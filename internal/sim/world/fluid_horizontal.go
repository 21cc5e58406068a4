package world

// spreadCandidate accumulates the best same-fluid lateral target found while
// scanning sides. An explicit struct keeps the scan loop free of
// closure-captured locals.
type spreadCandidate struct {
	found  bool
	pos    Vec3i
	level  FluidLevel
	static bool
}

// flowHorizontal spreads one unit sideways. The four lateral sides are
// scanned in a per-position deterministic shuffle; empty cells and contacts
// resolve immediately, same-fluid cells compete for the lowest level.
// Sources here hold at least two units.
func (e *FluidEngine) flowHorizontal(g FluidGrid, pos Vec3i, src FluidInstance, down Side) bool {
	var best spreadCandidate

	for _, s := range lateralOrder(e.seed, pos) {
		if !e.canOutflow(g, pos, s, src.Fluid) {
			continue
		}
		tpos := pos.Offset(s)
		tc := g.GetContent(tpos)
		if tc == nil {
			continue
		}
		if !e.canInflow(g, tpos, s.Opposite(), src.Fluid) {
			continue
		}

		tf := tc.Fluid
		if tf.IsEmpty() {
			// Rule 1: an empty ledge with a clear drop below takes the unit
			// diagonally.
			if e.fallThrough(g, tpos, down, src.Fluid) {
				e.debitOne(g, pos, src)
				return true
			}
			// Rule 2: plain empty neighbor takes one unit.
			g.SetFluid(FluidInstance{Fluid: src.Fluid, Level: LevelOne}, tpos)
			e.sched.ScheduleUpdate(tpos)
			e.debitOne(g, pos, src)
			return true
		}
		if tf.Fluid != src.Fluid {
			// Rule 3: different fluid resolves by contact or blocks this side.
			if e.contacts.HandleContact(g, src, pos, tf, tpos) {
				return true
			}
			continue
		}
		// Rule 4: same fluid, strictly lower than source and current best,
		// and the transfer must be productive.
		if tf.Level >= src.Level {
			continue
		}
		if best.found && tf.Level >= best.level {
			continue
		}
		if !e.spreadFair(g, pos, tpos, s, src, tf.Level, down) {
			continue
		}
		best = spreadCandidate{found: true, pos: tpos, level: tf.Level, static: tf.Static}
	}

	if !best.found {
		return false
	}
	g.SetFluid(FluidInstance{Fluid: src.Fluid, Level: best.level.Plus(LevelOne)}, best.pos)
	if best.static {
		e.sched.ScheduleUpdate(best.pos)
	}
	e.debitOne(g, pos, src)
	return true
}

// fallThrough drops one unit into the cell beneath an empty lateral
// neighbor, if that drop is open and gated through. ledge is the empty
// neighbor itself.
func (e *FluidEngine) fallThrough(g FluidGrid, ledge Vec3i, down Side, f FluidID) bool {
	bpos := ledge.Offset(down)
	bc := g.GetContent(bpos)
	if bc == nil || !bc.Fluid.IsEmpty() {
		return false
	}
	if !e.canOutflow(g, ledge, down, f) || !e.canInflow(g, bpos, down.Opposite(), f) {
		return false
	}
	g.SetFluid(FluidInstance{Fluid: f, Level: LevelOne}, bpos)
	e.sched.ScheduleUpdate(bpos)
	return true
}

// spreadFair is the anti-chatter gate on same-fluid lateral transfers.
// Neighbors exactly one unit lower only qualify when the move is known to be
// productive; without this, two nearly level columns trade the same unit
// back and forth forever.
func (e *FluidEngine) spreadFair(g FluidGrid, pos, tpos Vec3i, s Side, src FluidInstance, tLevel FluidLevel, down Side) bool {
	// More than one unit lower.
	if src.Level-tLevel > 1 {
		return true
	}
	// A taller same-fluid column presses on the source.
	up := down.Opposite()
	if e.columnPressure(g, pos, src.Fluid, up) > e.columnPressure(g, tpos, src.Fluid, up) {
		return true
	}
	// The cell one step further along s is lower ground: same fluid exactly
	// two below the source, or no fluid at all.
	fpos := tpos.Offset(s)
	fc := g.GetContent(fpos)
	if fc == nil {
		return false
	}
	if fc.Fluid.IsEmpty() {
		return true
	}
	if fc.Fluid.Fluid == src.Fluid && src.Level >= LevelThree && fc.Fluid.Level == src.Level.Minus(LevelTwo) {
		return true
	}
	return false
}

// columnPressure counts contiguous same-fluid cells stacked against the
// fluid's flow direction, starting one above pos. The world boundary ends
// the column.
func (e *FluidEngine) columnPressure(g FluidGrid, pos Vec3i, f FluidID, up Side) int {
	n := 0
	for p := pos.Offset(up); ; p = p.Offset(up) {
		c := g.GetContent(p)
		if c == nil || c.Fluid.Fluid != f {
			return n
		}
		n++
	}
}

// tryPuddleFlow relocates a lone unit sideways so thin films keep creeping
// along flat ground. The scan uses the fixed lateral order, and the whole
// unit moves to the first neighbor whose footing can take it.
func (e *FluidEngine) tryPuddleFlow(g FluidGrid, pos Vec3i, src FluidInstance, down Side) bool {
	// When the cell under the source holds no fluid, the unit is allowed to
	// drop onto an already full column next door.
	srcBelowEmpty := false
	if bc := g.GetContent(pos.Offset(down)); bc != nil && bc.Fluid.IsEmpty() {
		srcBelowEmpty = true
	}

	for _, s := range SideLateral {
		if !e.canOutflow(g, pos, s, src.Fluid) {
			continue
		}
		tpos := pos.Offset(s)
		tc := g.GetContent(tpos)
		if tc == nil || !tc.Fluid.IsEmpty() {
			continue
		}
		if !e.canInflow(g, tpos, s.Opposite(), src.Fluid) {
			continue
		}
		bc := g.GetContent(tpos.Offset(down))
		if bc == nil {
			continue
		}
		bf := bc.Fluid
		suitable := bf.IsEmpty() ||
			(bf.Fluid == src.Fluid && (!bf.Level.IsFull() || srcBelowEmpty))
		if !suitable {
			continue
		}

		g.SetFluid(FluidInstance{Fluid: src.Fluid, Level: LevelOne}, tpos)
		e.sched.ScheduleUpdate(tpos)
		g.SetDefaultFluid(pos)
		return true
	}
	return false
}
