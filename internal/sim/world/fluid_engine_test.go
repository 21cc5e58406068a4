package world

import "testing"

// Test palette. Ids index the rules tables below.
const (
	tAir      uint16 = 0
	tStone    uint16 = 1
	tGrate    uint16 = 2
	tWood     uint16 = 3
	tBasalt   uint16 = 4
	tSalt     uint16 = 5
	tEmber    uint16 = 6
	tConcrete uint16 = 7
)

const (
	fWater  FluidID = 1
	fLava   FluidID = 2
	fSlurry FluidID = 3
	fBrine  FluidID = 4
	fGas    FluidID = 5
)

func testEngineRules() *CatalogRules {
	grate := &SideFillable{
		In:  [6]bool{SideDown: true, SideUp: true},
		Out: [6]bool{SideDown: true, SideUp: true},
	}
	return &CatalogRules{
		fillable:  []*SideFillable{FillableAll, nil, grate, nil, nil, nil, nil, nil},
		flammable: []bool{false, false, false, true, false, false, false, false},
		solid:     []bool{false, true, true, true, true, true, false, true},
		fluids: []fluidTraits{
			{},
			{down: SideDown, viscosity: 1},
			{down: SideDown, viscosity: 2, random: &FluidRandomRule{Ignite: &IgniteRule{Into: tEmber}}},
			{down: SideDown, viscosity: 3, random: &FluidRandomRule{Solidify: &SolidifyRule{Block: tConcrete, MinLevel: LevelSix}}},
			{down: SideDown, viscosity: 1, random: &FluidRandomRule{Evaporate: &EvaporateRule{Residue: tSalt, MaxLevel: LevelTwo}}},
			{down: SideUp, viscosity: 1},
		},
	}
}

// testGrid is a sparse voxel field with a hard Y range and no lateral
// boundary. Missing cells read as air with no fluid.
type testGrid struct {
	blocks map[Vec3i]uint16
	fluids map[Vec3i]FluidInstance
}

func newTestGrid() *testGrid {
	return &testGrid{
		blocks: map[Vec3i]uint16{},
		fluids: map[Vec3i]FluidInstance{},
	}
}

func (g *testGrid) inBounds(p Vec3i) bool { return p.Y >= 0 && p.Y < 16 }

func (g *testGrid) GetContent(p Vec3i) *Content {
	if !g.inBounds(p) {
		return nil
	}
	return &Content{Block: g.blocks[p], Fluid: g.fluids[p]}
}

func (g *testGrid) SetFluid(fi FluidInstance, p Vec3i) {
	if !g.inBounds(p) {
		return
	}
	if fi.IsEmpty() {
		delete(g.fluids, p)
		return
	}
	g.fluids[p] = fi
}

func (g *testGrid) SetBlock(b uint16, p Vec3i) {
	if !g.inBounds(p) {
		return
	}
	g.blocks[p] = b
}

func (g *testGrid) SetDefaultFluid(p Vec3i) {
	if !g.inBounds(p) {
		return
	}
	delete(g.fluids, p)
}

// floor lays a slab of block at height y covering [-r,r] x [-r,r].
func (g *testGrid) floor(y, r int, block uint16) {
	for x := -r; x <= r; x++ {
		for z := -r; z <= r; z++ {
			g.blocks[Vec3i{X: x, Y: y, Z: z}] = block
		}
	}
}

// box seals pos on all six sides with block.
func (g *testGrid) box(pos Vec3i, block uint16) {
	for _, s := range SideAll {
		g.blocks[pos.Offset(s)] = block
	}
}

func (g *testGrid) totalLevel(f FluidID) int {
	n := 0
	for _, fi := range g.fluids {
		if fi.Fluid == f {
			n += int(fi.Level)
		}
	}
	return n
}

type recordingSched struct {
	scheduled []Vec3i
}

func (r *recordingSched) ScheduleUpdate(pos Vec3i) {
	r.scheduled = append(r.scheduled, pos)
}

func (r *recordingSched) has(pos Vec3i) bool {
	for _, p := range r.scheduled {
		if p == pos {
			return true
		}
	}
	return false
}

func newTestEngine(t *testing.T) (*FluidEngine, *testGrid, *recordingSched) {
	t.Helper()
	g := newTestGrid()
	sched := &recordingSched{}
	contacts := &ContactManager{rules: map[contactKey]uint16{
		{src: fWater, tgt: fLava}: tBasalt,
		{src: fLava, tgt: fWater}: tStone,
	}}
	e := NewFluidEngine(42, testEngineRules(), contacts, sched)
	return e, g, sched
}

func place(g *testGrid, pos Vec3i, f FluidID, level FluidLevel, static bool) FluidInstance {
	fi := FluidInstance{Fluid: f, Level: level, Static: static}
	g.fluids[pos] = fi
	return fi
}

func TestScheduledUpdate_EmptyCellIsNoop(t *testing.T) {
	e, g, sched := newTestEngine(t)
	e.ScheduledUpdate(g, Vec3i{X: 0, Y: 5, Z: 0}, FluidInstance{Fluid: fWater, Level: LevelFour})
	if len(g.fluids) != 0 || len(sched.scheduled) != 0 {
		t.Fatalf("empty cell must stay untouched: fluids=%v sched=%v", g.fluids, sched.scheduled)
	}
}

func TestScheduledUpdate_DifferentFluidIsStale(t *testing.T) {
	e, g, sched := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 5, Z: 0}
	place(g, pos, fLava, LevelFour, false)

	e.ScheduledUpdate(g, pos, FluidInstance{Fluid: fWater, Level: LevelFour})

	if got := g.fluids[pos]; got.Fluid != fLava || got.Level != LevelFour {
		t.Fatalf("stale update must not touch the cell: %+v", got)
	}
	if len(sched.scheduled) != 0 {
		t.Fatalf("stale update must not schedule: %v", sched.scheduled)
	}
}

func TestFlowVertical_WholeLevelFallsIntoEmpty(t *testing.T) {
	e, g, sched := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 5, Z: 0}
	below := pos.Offset(SideDown)
	fi := place(g, pos, fWater, LevelFive, false)

	e.ScheduledUpdate(g, pos, fi)

	if _, ok := g.fluids[pos]; ok {
		t.Fatalf("source should be empty after fall")
	}
	got := g.fluids[below]
	if got.Fluid != fWater || got.Level != LevelFive || got.Static {
		t.Fatalf("below = %+v, want dynamic water 5", got)
	}
	if !sched.has(below) {
		t.Fatalf("fallen cell must be rescheduled")
	}
	if g.totalLevel(fWater) != 5 {
		t.Fatalf("volume not conserved: %d", g.totalLevel(fWater))
	}
}

func TestFlowVertical_TotalMergeWakesStaticTarget(t *testing.T) {
	e, g, sched := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 5, Z: 0}
	below := pos.Offset(SideDown)
	place(g, below, fWater, LevelThree, true)
	fi := place(g, pos, fWater, LevelFour, false)

	e.ScheduledUpdate(g, pos, fi)

	if _, ok := g.fluids[pos]; ok {
		t.Fatalf("source should be empty after total merge")
	}
	if got := g.fluids[below]; got.Level != LevelSeven {
		t.Fatalf("below level = %d, want 7", got.Level)
	}
	if !sched.has(below) {
		t.Fatalf("static target must be woken by the merge")
	}
	if g.totalLevel(fWater) != 7 {
		t.Fatalf("volume not conserved: %d", g.totalLevel(fWater))
	}
}

func TestFlowVertical_PartialMergeKeepsRemainder(t *testing.T) {
	e, g, sched := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 5, Z: 0}
	below := pos.Offset(SideDown)
	// Wall the sides so the remainder cannot spill sideways after the merge.
	for _, s := range SideLateral {
		g.blocks[pos.Offset(s)] = tStone
	}
	place(g, below, fWater, LevelSix, false)
	fi := place(g, pos, fWater, LevelFive, false)

	e.ScheduledUpdate(g, pos, fi)

	if got := g.fluids[below]; !got.Level.IsFull() {
		t.Fatalf("below should be full, got %d", got.Level)
	}
	if got := g.fluids[pos]; got.Level != LevelThree {
		t.Fatalf("source should keep the remainder 3, got %d", got.Level)
	}
	if !sched.has(pos) {
		t.Fatalf("source with remainder must be rescheduled")
	}
	if sched.has(below) {
		t.Fatalf("dynamic target needs no wake")
	}
	if g.totalLevel(fWater) != 11 {
		t.Fatalf("volume not conserved: %d", g.totalLevel(fWater))
	}
}

func TestFlowAnchored_BoxedFluidSettles(t *testing.T) {
	e, g, sched := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 5, Z: 0}
	g.box(pos, tStone)
	fi := place(g, pos, fWater, LevelFour, false)

	e.ScheduledUpdate(g, pos, fi)

	got := g.fluids[pos]
	if !got.Static || got.Level != LevelFour {
		t.Fatalf("boxed fluid should settle in place: %+v", got)
	}
	if len(sched.scheduled) != 0 {
		t.Fatalf("settling must not schedule: %v", sched.scheduled)
	}
}

func TestFlowAnchored_SettledCellStaysUntilWoken(t *testing.T) {
	e, g, _ := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 5, Z: 0}
	g.box(pos, tStone)
	fi := place(g, pos, fWater, LevelFour, false)

	e.ScheduledUpdate(g, pos, fi)
	first := g.fluids[pos]

	// A second update of the settled cell is a no-op.
	e.ScheduledUpdate(g, pos, first)
	if got := g.fluids[pos]; got != first {
		t.Fatalf("settled cell changed without a neighbor change: %+v -> %+v", first, got)
	}
}

func TestContact_VerticalProducesBlockAndStopsFlow(t *testing.T) {
	e, g, sched := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 5, Z: 0}
	g.box(pos, tStone)
	below := pos.Offset(SideDown)
	g.blocks[below] = tAir
	place(g, below, fLava, LevelFull, false)
	fi := place(g, pos, fWater, LevelFive, false)

	e.ScheduledUpdate(g, pos, fi)

	if g.blocks[below] != tBasalt {
		t.Fatalf("contact should write basalt, got block %d", g.blocks[below])
	}
	if _, ok := g.fluids[below]; ok {
		t.Fatalf("reacted cell keeps no fluid")
	}
	// The source is left alone; the handled contact counts as progress.
	if got := g.fluids[pos]; got.Level != LevelFive || got.Static {
		t.Fatalf("source after contact = %+v, want dynamic water 5", got)
	}
	if sched.has(pos) {
		t.Fatalf("contact does not reschedule the source directly")
	}
}

func TestContact_UnhandledPairBlocksAndSettles(t *testing.T) {
	e, g, _ := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 5, Z: 0}
	g.box(pos, tStone)
	// Open only the floor, and fill it with slurry: no contact rule exists
	// for water -> slurry.
	below := pos.Offset(SideDown)
	g.blocks[below] = tAir
	place(g, below, fSlurry, LevelFull, true)
	fi := place(g, pos, fWater, LevelFour, false)

	e.ScheduledUpdate(g, pos, fi)

	if got := g.fluids[pos]; !got.Static || got.Level != LevelFour {
		t.Fatalf("blocked source should settle: %+v", got)
	}
	if got := g.fluids[below]; got.Fluid != fSlurry || got.Level != LevelFull {
		t.Fatalf("unhandled contact must not change the target: %+v", got)
	}
}

func TestContactManager_ReactionCallbackSeesPrevBlock(t *testing.T) {
	g := newTestGrid()
	var got ContactReaction
	m := &ContactManager{
		rules:      map[contactKey]uint16{{src: fWater, tgt: fLava}: tBasalt},
		onReaction: func(r ContactReaction) { got = r },
	}
	tgt := Vec3i{X: 1, Y: 2, Z: 3}
	g.blocks[tgt] = tGrate
	place(g, tgt, fLava, LevelTwo, true)

	handled := m.HandleContact(g, FluidInstance{Fluid: fWater, Level: LevelOne}, Vec3i{X: 1, Y: 3, Z: 3}, g.fluids[tgt], tgt)
	if !handled {
		t.Fatalf("rule exists, contact must be handled")
	}
	if got.Prev != tGrate || got.Block != tBasalt || got.Pos != tgt {
		t.Fatalf("reaction = %+v", got)
	}

	if m.HandleContact(g, FluidInstance{Fluid: fSlurry, Level: LevelOne}, Vec3i{}, FluidInstance{Fluid: fLava, Level: LevelOne}, tgt) {
		t.Fatalf("missing rule must leave the contact unhandled")
	}
}

func TestFlowDisplaced_EscapesDownFirst(t *testing.T) {
	e, g, sched := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 5, Z: 0}
	below := pos.Offset(SideDown)
	g.blocks[pos] = tStone // fluid trapped inside a non-fillable block
	fi := place(g, pos, fWater, LevelSix, false)

	e.ScheduledUpdate(g, pos, fi)

	if _, ok := g.fluids[pos]; ok {
		t.Fatalf("displaced source must end empty")
	}
	if got := g.fluids[below]; got.Fluid != fWater || got.Level != LevelSix {
		t.Fatalf("below = %+v, want water 6", got)
	}
	if !sched.has(below) {
		t.Fatalf("displaced fluid must be scheduled at its new cell")
	}
}

func TestFlowDisplaced_SpreadsOneUnitPerNeighbor(t *testing.T) {
	e, g, _ := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 5, Z: 0}
	g.blocks[pos] = tStone
	g.blocks[pos.Offset(SideDown)] = tStone
	g.blocks[pos.Offset(SideUp)] = tStone
	fi := place(g, pos, fWater, LevelFour, false)

	e.ScheduledUpdate(g, pos, fi)

	if _, ok := g.fluids[pos]; ok {
		t.Fatalf("displaced source must end empty")
	}
	for _, s := range SideLateral {
		got := g.fluids[pos.Offset(s)]
		if got.Fluid != fWater || got.Level != LevelOne {
			t.Fatalf("side %v = %+v, want water 1", s, got)
		}
	}
	if g.totalLevel(fWater) != 4 {
		t.Fatalf("volume not conserved: %d", g.totalLevel(fWater))
	}
}

func TestFlowDisplaced_FullyBoxedFluidIsDestroyed(t *testing.T) {
	e, g, _ := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 5, Z: 0}
	g.blocks[pos] = tStone
	g.box(pos, tStone)
	fi := place(g, pos, fWater, LevelFour, false)

	e.ScheduledUpdate(g, pos, fi)

	if g.totalLevel(fWater) != 0 {
		t.Fatalf("boxed displaced fluid is destroyed, got total %d", g.totalLevel(fWater))
	}
}

func TestFlowDisplaced_IgnoresContacts(t *testing.T) {
	e, g, _ := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 5, Z: 0}
	g.blocks[pos] = tStone
	g.box(pos, tStone)
	below := pos.Offset(SideDown)
	g.blocks[below] = tAir
	place(g, below, fLava, LevelFull, true)
	fi := place(g, pos, fWater, LevelFour, false)

	e.ScheduledUpdate(g, pos, fi)

	// Water cannot merge into lava and displaced flow never reacts; the
	// trapped water is destroyed and the lava is untouched.
	if g.blocks[below] != tAir {
		t.Fatalf("displaced flow must not trigger contact reactions")
	}
	if got := g.fluids[below]; got.Fluid != fLava || got.Level != LevelFull {
		t.Fatalf("lava below changed: %+v", got)
	}
	if g.totalLevel(fWater) != 0 {
		t.Fatalf("trapped water should be gone, total %d", g.totalLevel(fWater))
	}
}

func TestUpwardFluid_RisesIntoEmpty(t *testing.T) {
	e, g, sched := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 5, Z: 0}
	above := pos.Offset(SideUp)
	fi := place(g, pos, fGas, LevelThree, false)

	e.ScheduledUpdate(g, pos, fi)

	if got := g.fluids[above]; got.Fluid != fGas || got.Level != LevelThree {
		t.Fatalf("gas should rise: %+v", got)
	}
	if _, ok := g.fluids[pos]; ok {
		t.Fatalf("source should be empty after rising")
	}
	if !sched.has(above) {
		t.Fatalf("risen cell must be scheduled")
	}
}

func TestGrate_PassesVerticallyBlocksLaterally(t *testing.T) {
	e, g, _ := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 2, Z: 0}
	grate := pos.Offset(SideDown)
	g.blocks[grate] = tGrate
	fi := place(g, pos, fWater, LevelFive, false)

	e.ScheduledUpdate(g, pos, fi)
	if got := g.fluids[grate]; got.Fluid != fWater || got.Level != LevelFive {
		t.Fatalf("water should pass into the grate: %+v", got)
	}

	// From inside the grate the only way on is down.
	e.ScheduledUpdate(g, grate, g.fluids[grate])
	below := grate.Offset(SideDown)
	if got := g.fluids[below]; got.Fluid != fWater || got.Level != LevelFive {
		t.Fatalf("water should pass through the grate: %+v", got)
	}
	for _, s := range SideLateral {
		if _, ok := g.fluids[grate.Offset(s)]; ok {
			t.Fatalf("grate must not leak laterally via %v", s)
		}
	}
}
