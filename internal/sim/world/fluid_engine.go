package world

// FluidEngine advances individual fluid voxels. It owns no state beyond its
// collaborators and the shuffle seed; all voxel state lives in the grid, so
// every update re-reads the world instead of trusting stale snapshots.
//
// Not safe for concurrent use. The world loop is the only caller.
type FluidEngine struct {
	seed     int64
	rules    FluidRules
	contacts ContactResolver
	sched    FluidScheduler
}

func NewFluidEngine(seed int64, rules FluidRules, contacts ContactResolver, sched FluidScheduler) *FluidEngine {
	return &FluidEngine{seed: seed, rules: rules, contacts: contacts, sched: sched}
}

// ScheduledUpdate is the per-voxel entry point, fired when a queued update
// for pos comes due. inst is the instance the schedule was armed for; the
// grid is authoritative, and a cell that emptied or changed fluid since
// scheduling is left alone.
func (e *FluidEngine) ScheduledUpdate(g FluidGrid, pos Vec3i, inst FluidInstance) {
	c := g.GetContent(pos)
	if c == nil || c.Fluid.IsEmpty() {
		return
	}
	if inst.Fluid != FluidNone && c.Fluid.Fluid != inst.Fluid {
		return
	}

	if e.rules.FillableFor(c.Block) == nil {
		e.flowDisplaced(g, pos, c.Fluid)
		return
	}
	e.flowAnchored(g, pos, c.Fluid)
}

// flowAnchored moves fluid sitting in a block that can legally hold it.
// Vertical flow first, then lateral, then settle.
func (e *FluidEngine) flowAnchored(g FluidGrid, pos Vec3i, inst FluidInstance) {
	down := e.rules.FlowDirection(inst.Fluid)

	rem, vOK := e.flowVertical(g, pos, inst, down, true)
	if vOK && rem == LevelNone {
		return
	}

	src := FluidInstance{Fluid: inst.Fluid, Level: rem}
	latOK := false
	if rem == LevelOne {
		latOK = e.tryPuddleFlow(g, pos, src, down)
	} else {
		latOK = e.flowHorizontal(g, pos, src, down)
		if !latOK && rem >= LevelThree {
			latOK = e.farFlowHorizontal(g, pos, src)
		}
	}
	if vOK || latOK {
		return
	}

	// Nothing moved. Settle until a neighbor change or random tick wakes us.
	g.SetFluid(inst.AsStatic(), pos)
}

// flowDisplaced evacuates fluid from a block that cannot hold it: down,
// then up, then one unit sideways per accepting neighbor until nothing more
// fits. Whatever remains is destroyed with the cell reset.
func (e *FluidEngine) flowDisplaced(g FluidGrid, pos Vec3i, inst FluidInstance) {
	down := e.rules.FlowDirection(inst.Fluid)

	rem, _ := e.flowVertical(g, pos, inst, down, false)
	if rem != LevelNone {
		rem, _ = e.flowVertical(g, pos, FluidInstance{Fluid: inst.Fluid, Level: rem}, down.Opposite(), false)
	}
	if rem == LevelNone {
		return
	}

	for rem > LevelNone {
		placed := false
		for _, s := range SideLateral {
			if rem == LevelNone {
				break
			}
			if e.fillNeighbor(g, pos, s, inst.Fluid) {
				rem = rem.Minus(LevelOne)
				placed = true
			}
		}
		if !placed {
			break
		}
	}
	g.SetDefaultFluid(pos)
}

// flowVertical tries to move the whole level one step along dir. It returns
// the level left at the source and whether the attempt changed anything.
// The source cell is rewritten (or cleared) here; callers must not assume
// inst still matches the grid afterwards.
func (e *FluidEngine) flowVertical(g FluidGrid, pos Vec3i, inst FluidInstance, dir Side, handleContact bool) (FluidLevel, bool) {
	level := inst.Level
	tpos := pos.Offset(dir)
	tc := g.GetContent(tpos)
	if tc == nil {
		return level, false
	}
	if !e.canOutflow(g, pos, dir, inst.Fluid) || !e.canInflow(g, tpos, dir.Opposite(), inst.Fluid) {
		return level, false
	}

	tf := tc.Fluid
	switch {
	case tf.IsEmpty():
		g.SetFluid(FluidInstance{Fluid: inst.Fluid, Level: level}, tpos)
		g.SetDefaultFluid(pos)
		e.sched.ScheduleUpdate(tpos)
		return LevelNone, true

	case tf.Fluid == inst.Fluid:
		if tf.Level.IsFull() {
			return level, false
		}
		volume := LevelFull.Minus(tf.Level)
		if volume >= level {
			g.SetFluid(FluidInstance{Fluid: inst.Fluid, Level: tf.Level.Plus(level)}, tpos)
			g.SetDefaultFluid(pos)
			if tf.Static {
				e.sched.ScheduleUpdate(tpos)
			}
			return LevelNone, true
		}
		g.SetFluid(FluidInstance{Fluid: inst.Fluid, Level: LevelFull}, tpos)
		rem := level.Minus(volume)
		g.SetFluid(FluidInstance{Fluid: inst.Fluid, Level: rem}, pos)
		e.sched.ScheduleUpdate(pos)
		if tf.Static {
			e.sched.ScheduleUpdate(tpos)
		}
		return rem, true

	default:
		if !handleContact {
			return level, false
		}
		if e.contacts.HandleContact(g, inst, pos, tf, tpos) {
			return level, true
		}
		return level, false
	}
}

// fillNeighbor pushes exactly one unit into the lateral neighbor if it can
// legally take it. Used only by displaced flow, where the source block has
// no outflow gates to consult.
func (e *FluidEngine) fillNeighbor(g FluidGrid, pos Vec3i, s Side, f FluidID) bool {
	npos := pos.Offset(s)
	nc := g.GetContent(npos)
	if nc == nil {
		return false
	}
	if !e.canInflow(g, npos, s.Opposite(), f) {
		return false
	}
	switch {
	case nc.Fluid.IsEmpty():
		g.SetFluid(FluidInstance{Fluid: f, Level: LevelOne}, npos)
	case nc.Fluid.Fluid == f && !nc.Fluid.Level.IsFull():
		g.SetFluid(FluidInstance{Fluid: f, Level: nc.Fluid.Level.Plus(LevelOne)}, npos)
	default:
		return false
	}
	e.sched.ScheduleUpdate(npos)
	return true
}

// debitOne removes one unit from the source after a successful lateral
// transfer. Sources here always held at least two units.
func (e *FluidEngine) debitOne(g FluidGrid, pos Vec3i, src FluidInstance) {
	rem := src.Level.Minus(LevelOne)
	if rem == LevelNone {
		g.SetDefaultFluid(pos)
		return
	}
	g.SetFluid(FluidInstance{Fluid: src.Fluid, Level: rem}, pos)
	e.sched.ScheduleUpdate(pos)
}

func (e *FluidEngine) canInflow(g FluidGrid, pos Vec3i, side Side, f FluidID) bool {
	c := g.GetContent(pos)
	if c == nil {
		return false
	}
	fb := e.rules.FillableFor(c.Block)
	if fb == nil {
		return false
	}
	return fb.CanInflow(g, pos, side, f)
}

func (e *FluidEngine) canOutflow(g FluidGrid, pos Vec3i, side Side, f FluidID) bool {
	c := g.GetContent(pos)
	if c == nil {
		return false
	}
	fb := e.rules.FillableFor(c.Block)
	if fb == nil {
		// Fluid stranded in a non-fillable block may always escape.
		return true
	}
	return fb.CanOutflow(g, pos, side, f)
}
