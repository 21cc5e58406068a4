package world

import "testing"

func TestFlowHorizontal_SpillsOneUnitOntoFloor(t *testing.T) {
	e, g, sched := newTestEngine(t)
	g.floor(0, 3, tStone)
	pos := Vec3i{X: 0, Y: 1, Z: 0}
	fi := place(g, pos, fWater, LevelFour, false)

	e.ScheduledUpdate(g, pos, fi)

	if got := g.fluids[pos]; got.Level != LevelThree || got.Static {
		t.Fatalf("source = %+v, want dynamic water 3", got)
	}
	spread := 0
	for _, s := range SideLateral {
		if fi, ok := g.fluids[pos.Offset(s)]; ok {
			if fi.Level != LevelOne {
				t.Fatalf("neighbor %v = %+v, want level 1", s, fi)
			}
			spread++
		}
	}
	if spread != 1 {
		t.Fatalf("one update spreads exactly one unit, got %d neighbors", spread)
	}
	if !sched.has(pos) {
		t.Fatalf("debited source must be rescheduled")
	}
	if len(sched.scheduled) != 2 {
		t.Fatalf("want source+target scheduled, got %v", sched.scheduled)
	}
	if g.totalLevel(fWater) != 4 {
		t.Fatalf("volume not conserved: %d", g.totalLevel(fWater))
	}
}

func TestFlowHorizontal_FallsThroughHoleDiagonally(t *testing.T) {
	e, g, sched := newTestEngine(t)
	g.floor(0, 3, tStone)
	pos := Vec3i{X: 0, Y: 1, Z: 0}
	// Only the east side is open, and the floor under it is missing.
	for _, s := range []Side{SideNorth, SideSouth, SideWest} {
		g.blocks[pos.Offset(s)] = tStone
	}
	hole := Vec3i{X: 1, Y: 0, Z: 0}
	g.blocks[hole] = tAir
	fi := place(g, pos, fWater, LevelFour, false)

	e.ScheduledUpdate(g, pos, fi)

	if got := g.fluids[hole]; got.Fluid != fWater || got.Level != LevelOne {
		t.Fatalf("hole = %+v, want water 1", got)
	}
	if _, ok := g.fluids[Vec3i{X: 1, Y: 1, Z: 0}]; ok {
		t.Fatalf("ledge must stay empty when the unit falls through")
	}
	if got := g.fluids[pos]; got.Level != LevelThree {
		t.Fatalf("source = %+v, want water 3", got)
	}
	if !sched.has(hole) || !sched.has(pos) {
		t.Fatalf("hole and source must be scheduled: %v", sched.scheduled)
	}
}

func TestFlowHorizontal_NearLevelColumnsDoNotChatter(t *testing.T) {
	e, g, _ := newTestEngine(t)
	g.floor(0, 4, tStone)
	a := Vec3i{X: 0, Y: 1, Z: 0}
	b := Vec3i{X: 1, Y: 1, Z: 0}
	c := Vec3i{X: 2, Y: 1, Z: 0}
	// A straight channel: walls on both flanks and both ends.
	for x := -1; x <= 3; x++ {
		g.blocks[Vec3i{X: x, Y: 1, Z: -1}] = tStone
		g.blocks[Vec3i{X: x, Y: 1, Z: 1}] = tStone
	}
	g.blocks[Vec3i{X: -1, Y: 1, Z: 0}] = tStone
	g.blocks[Vec3i{X: 3, Y: 1, Z: 0}] = tStone
	fi := place(g, a, fWater, LevelFour, false)
	place(g, b, fWater, LevelThree, false)
	place(g, c, fWater, LevelThree, false)

	e.ScheduledUpdate(g, a, fi)

	if got := g.fluids[a]; !got.Static || got.Level != LevelFour {
		t.Fatalf("a one-unit step with level ground beyond must settle: %+v", got)
	}
	if got := g.fluids[b]; got.Level != LevelThree {
		t.Fatalf("b = %+v, want untouched water 3", got)
	}
	if g.totalLevel(fWater) != 10 {
		t.Fatalf("volume not conserved: %d", g.totalLevel(fWater))
	}
}

func TestFlowHorizontal_ColumnPressureBreaksTheTie(t *testing.T) {
	e, g, sched := newTestEngine(t)
	g.floor(0, 4, tStone)
	a := Vec3i{X: 0, Y: 1, Z: 0}
	b := Vec3i{X: 1, Y: 1, Z: 0}
	c := Vec3i{X: 2, Y: 1, Z: 0}
	for x := -1; x <= 3; x++ {
		g.blocks[Vec3i{X: x, Y: 1, Z: -1}] = tStone
		g.blocks[Vec3i{X: x, Y: 1, Z: 1}] = tStone
	}
	g.blocks[Vec3i{X: -1, Y: 1, Z: 0}] = tStone
	g.blocks[Vec3i{X: 3, Y: 1, Z: 0}] = tStone
	fi := place(g, a, fWater, LevelFour, false)
	place(g, b, fWater, LevelThree, false)
	place(g, c, fWater, LevelThree, false)
	// Same geometry as the no-chatter case, plus weight stacked on the source.
	place(g, a.Offset(SideUp), fWater, LevelFour, false)

	e.ScheduledUpdate(g, a, fi)

	if got := g.fluids[a]; got.Level != LevelThree || got.Static {
		t.Fatalf("pressed source should shed a unit: %+v", got)
	}
	if got := g.fluids[b]; got.Level != LevelFour {
		t.Fatalf("b = %+v, want water 4", got)
	}
	if got := g.fluids[a.Offset(SideUp)]; got.Level != LevelFour {
		t.Fatalf("the stacked cell itself must not move: %+v", got)
	}
	if !sched.has(a) {
		t.Fatalf("debited source must be rescheduled")
	}
	if g.totalLevel(fWater) != 14 {
		t.Fatalf("volume not conserved: %d", g.totalLevel(fWater))
	}
}

func TestFlowHorizontal_StepDownTwoBeyondTargetFlows(t *testing.T) {
	e, g, _ := newTestEngine(t)
	g.floor(0, 4, tStone)
	a := Vec3i{X: 0, Y: 1, Z: 0}
	b := Vec3i{X: 1, Y: 1, Z: 0}
	c := Vec3i{X: 2, Y: 1, Z: 0}
	for x := -1; x <= 3; x++ {
		g.blocks[Vec3i{X: x, Y: 1, Z: -1}] = tStone
		g.blocks[Vec3i{X: x, Y: 1, Z: 1}] = tStone
	}
	g.blocks[Vec3i{X: -1, Y: 1, Z: 0}] = tStone
	g.blocks[Vec3i{X: 3, Y: 1, Z: 0}] = tStone
	fi := place(g, a, fWater, LevelFour, false)
	place(g, b, fWater, LevelThree, false)
	place(g, c, fWater, LevelTwo, false)

	e.ScheduledUpdate(g, a, fi)

	if got := g.fluids[a]; got.Level != LevelThree {
		t.Fatalf("a = %+v, want water 3", got)
	}
	if got := g.fluids[b]; got.Level != LevelFour {
		t.Fatalf("b = %+v, want water 4", got)
	}
	if got := g.fluids[c]; got.Level != LevelTwo {
		t.Fatalf("c = %+v, want untouched water 2", got)
	}
	if g.totalLevel(fWater) != 9 {
		t.Fatalf("volume not conserved: %d", g.totalLevel(fWater))
	}
}

func TestFlowHorizontal_SideContactConsumesTheMove(t *testing.T) {
	e, g, _ := newTestEngine(t)
	g.floor(0, 3, tStone)
	pos := Vec3i{X: 0, Y: 1, Z: 0}
	for _, s := range []Side{SideNorth, SideSouth, SideWest} {
		g.blocks[pos.Offset(s)] = tStone
	}
	east := Vec3i{X: 1, Y: 1, Z: 0}
	place(g, east, fLava, LevelTwo, true)
	fi := place(g, pos, fWater, LevelFour, false)

	e.ScheduledUpdate(g, pos, fi)

	if g.blocks[east] != tBasalt {
		t.Fatalf("side contact should write basalt, got %d", g.blocks[east])
	}
	if _, ok := g.fluids[east]; ok {
		t.Fatalf("reacted cell keeps no fluid")
	}
	// The reaction consumes the move; no unit leaves the source.
	if got := g.fluids[pos]; got.Level != LevelFour || got.Static {
		t.Fatalf("source = %+v, want dynamic water 4", got)
	}
}

func TestPuddle_CreepsAlongFlatGround(t *testing.T) {
	e, g, sched := newTestEngine(t)
	g.floor(0, 3, tStone)
	pos := Vec3i{X: 0, Y: 1, Z: 0}
	fi := place(g, pos, fWater, LevelOne, false)

	e.ScheduledUpdate(g, pos, fi)

	if _, ok := g.fluids[pos]; ok {
		t.Fatalf("the whole unit relocates; source must be empty")
	}
	// The puddle scan is not shuffled; the first open side wins.
	want := pos.Offset(SideLateral[0])
	if got := g.fluids[want]; got.Fluid != fWater || got.Level != LevelOne {
		t.Fatalf("target %v = %+v, want water 1", want, got)
	}
	if !sched.has(want) || len(sched.scheduled) != 1 {
		t.Fatalf("only the target is scheduled, got %v", sched.scheduled)
	}
}

func TestPuddle_LedgeUnitDropsOntoFullColumn(t *testing.T) {
	e, g, _ := newTestEngine(t)
	g.floor(0, 3, tStone)
	pos := Vec3i{X: 0, Y: 1, Z: 0}
	for _, s := range []Side{SideNorth, SideSouth, SideWest} {
		g.blocks[pos.Offset(s)] = tStone
	}
	east := Vec3i{X: 1, Y: 1, Z: 0}
	eastBelow := Vec3i{X: 1, Y: 0, Z: 0}
	g.blocks[eastBelow] = tAir
	place(g, eastBelow, fWater, LevelFull, true)
	fi := place(g, pos, fWater, LevelOne, false)

	e.ScheduledUpdate(g, pos, fi)

	// Dry footing under the source admits a move onto a full column.
	if got := g.fluids[east]; got.Fluid != fWater || got.Level != LevelOne {
		t.Fatalf("east = %+v, want water 1", got)
	}
	if _, ok := g.fluids[pos]; ok {
		t.Fatalf("source must be empty after the move")
	}
}

func TestPuddle_FilmOnFullBodyStaysPut(t *testing.T) {
	e, g, _ := newTestEngine(t)
	g.floor(0, 3, tStone)
	pos := Vec3i{X: 0, Y: 1, Z: 0}
	below := Vec3i{X: 0, Y: 0, Z: 0}
	g.blocks[below] = tAir
	place(g, below, fWater, LevelFull, true)
	east := Vec3i{X: 1, Y: 1, Z: 0}
	eastBelow := Vec3i{X: 1, Y: 0, Z: 0}
	g.blocks[eastBelow] = tAir
	place(g, eastBelow, fWater, LevelFull, true)
	for _, s := range []Side{SideNorth, SideSouth, SideWest} {
		g.blocks[pos.Offset(s)] = tStone
	}
	fi := place(g, pos, fWater, LevelOne, false)

	e.ScheduledUpdate(g, pos, fi)

	if got := g.fluids[pos]; !got.Static || got.Level != LevelOne {
		t.Fatalf("film on a full body should settle, got %+v", got)
	}
	if _, ok := g.fluids[east]; ok {
		t.Fatalf("no creep onto equally full ground")
	}
}

func TestFarFlow_EqualizesAcrossConnectedBody(t *testing.T) {
	e, g, sched := newTestEngine(t)
	g.floor(0, 6, tStone)
	for x := -1; x <= 4; x++ {
		g.blocks[Vec3i{X: x, Y: 1, Z: -1}] = tStone
		g.blocks[Vec3i{X: x, Y: 1, Z: 1}] = tStone
	}
	g.blocks[Vec3i{X: -1, Y: 1, Z: 0}] = tStone
	g.blocks[Vec3i{X: 4, Y: 1, Z: 0}] = tStone

	a := Vec3i{X: 0, Y: 1, Z: 0}
	far := Vec3i{X: 3, Y: 1, Z: 0}
	fi := place(g, a, fWater, LevelFive, false)
	place(g, Vec3i{X: 1, Y: 1, Z: 0}, fWater, LevelFour, false)
	place(g, Vec3i{X: 2, Y: 1, Z: 0}, fWater, LevelFour, false)
	place(g, far, fWater, LevelThree, true)

	e.ScheduledUpdate(g, a, fi)

	if got := g.fluids[a]; got.Level != LevelFour {
		t.Fatalf("a = %+v, want water 4", got)
	}
	if got := g.fluids[far]; got.Level != LevelFour {
		t.Fatalf("far cell = %+v, want water 4", got)
	}
	if !sched.has(far) {
		t.Fatalf("static far target must be woken")
	}
	if g.totalLevel(fWater) != 16 {
		t.Fatalf("volume not conserved: %d", g.totalLevel(fWater))
	}
}

func TestSearchFlowTarget_RangeBound(t *testing.T) {
	e, g, _ := newTestEngine(t)
	g.floor(0, 8, tStone)
	start := Vec3i{X: 0, Y: 1, Z: 0}
	for x := 0; x <= 4; x++ {
		place(g, Vec3i{X: x, Y: 1, Z: 0}, fWater, LevelFour, false)
	}
	inRange := Vec3i{X: 4, Y: 1, Z: 0}
	place(g, inRange, fWater, LevelTwo, false)

	if got, ok := e.searchFlowTarget(g, start, fWater, LevelTwo); !ok || got != inRange {
		t.Fatalf("cell four steps out is reachable, got %v %v", got, ok)
	}

	// Push the low cell one step further and it drops off the horizon.
	place(g, inRange, fWater, LevelFour, false)
	place(g, Vec3i{X: 5, Y: 1, Z: 0}, fWater, LevelTwo, false)
	if _, ok := e.searchFlowTarget(g, start, fWater, LevelTwo); ok {
		t.Fatalf("cell five steps out must be beyond the search range")
	}
}

func TestSearchFlowTarget_WallsAndForeignFluidBlock(t *testing.T) {
	e, g, _ := newTestEngine(t)
	g.floor(0, 6, tStone)
	start := Vec3i{X: 0, Y: 1, Z: 0}
	place(g, start, fWater, LevelFour, false)
	place(g, Vec3i{X: 2, Y: 1, Z: 0}, fWater, LevelTwo, false)
	// Only path runs through x=1; block it with a wall, then with lava.
	for _, z := range []int{-1, 1} {
		for x := -1; x <= 3; x++ {
			g.blocks[Vec3i{X: x, Y: 1, Z: z}] = tStone
		}
	}
	g.blocks[Vec3i{X: -1, Y: 1, Z: 0}] = tStone
	g.blocks[Vec3i{X: 3, Y: 1, Z: 0}] = tStone

	g.blocks[Vec3i{X: 1, Y: 1, Z: 0}] = tStone
	if _, ok := e.searchFlowTarget(g, start, fWater, LevelTwo); ok {
		t.Fatalf("a wall must block the search")
	}

	g.blocks[Vec3i{X: 1, Y: 1, Z: 0}] = tAir
	place(g, Vec3i{X: 1, Y: 1, Z: 0}, fLava, LevelFour, false)
	if _, ok := e.searchFlowTarget(g, start, fWater, LevelTwo); ok {
		t.Fatalf("another fluid is a wall to the search")
	}

	place(g, Vec3i{X: 1, Y: 1, Z: 0}, fWater, LevelFour, false)
	if got, ok := e.searchFlowTarget(g, start, fWater, LevelTwo); !ok || (got != Vec3i{X: 2, Y: 1, Z: 0}) {
		t.Fatalf("open path should reach the low cell, got %v %v", got, ok)
	}
}

func TestLateralOrder_DeterministicShuffle(t *testing.T) {
	pos := Vec3i{X: 3, Y: 7, Z: -2}
	first := lateralOrder(99, pos)
	if lateralOrder(99, pos) != first {
		t.Fatalf("order must be stable for the same seed and position")
	}

	seen := map[Side]bool{}
	for _, s := range first {
		seen[s] = true
	}
	if len(seen) != 4 {
		t.Fatalf("order must be a permutation of the lateral sides: %v", first)
	}

	varies := false
	for y := 0; y < 32 && !varies; y++ {
		if lateralOrder(99, Vec3i{X: 3, Y: y, Z: -2}) != first {
			varies = true
		}
	}
	if !varies {
		t.Fatalf("order should vary across positions")
	}
}
