package world

import "testing"

func TestRandomUpdate_SolidifyNeedsDepthAndRest(t *testing.T) {
	e, g, _ := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 3, Z: 0}

	place(g, pos, fSlurry, LevelSix, true)
	e.DoRandomUpdate(g, pos, LevelSix, true)
	if g.blocks[pos] != tConcrete {
		t.Fatalf("deep static slurry should harden, block = %d", g.blocks[pos])
	}
	if _, ok := g.fluids[pos]; ok {
		t.Fatalf("hardened cell keeps no fluid")
	}

	// Moving slurry never hardens.
	pos2 := Vec3i{X: 1, Y: 3, Z: 0}
	place(g, pos2, fSlurry, LevelSix, false)
	e.DoRandomUpdate(g, pos2, LevelSix, false)
	if g.blocks[pos2] != tAir {
		t.Fatalf("dynamic slurry must not harden")
	}

	// Shallow slurry never hardens.
	pos3 := Vec3i{X: 2, Y: 3, Z: 0}
	place(g, pos3, fSlurry, LevelFive, true)
	e.DoRandomUpdate(g, pos3, LevelFive, true)
	if g.blocks[pos3] != tAir {
		t.Fatalf("slurry below the depth threshold must not harden")
	}
}

func TestRandomUpdate_EvaporateNeedsSolidGround(t *testing.T) {
	e, g, _ := newTestEngine(t)
	g.floor(0, 3, tStone)

	pos := Vec3i{X: 0, Y: 1, Z: 0}
	place(g, pos, fBrine, LevelTwo, true)
	e.DoRandomUpdate(g, pos, LevelTwo, true)
	if g.blocks[pos] != tSalt {
		t.Fatalf("shallow brine over stone should dry to salt, block = %d", g.blocks[pos])
	}
	if _, ok := g.fluids[pos]; ok {
		t.Fatalf("dried cell keeps no fluid")
	}

	// No solid ground below: the film floats over air and stays.
	high := Vec3i{X: 0, Y: 5, Z: 0}
	place(g, high, fBrine, LevelTwo, true)
	e.DoRandomUpdate(g, high, LevelTwo, true)
	if g.blocks[high] != tAir {
		t.Fatalf("brine over air must not dry out")
	}
	if got := g.fluids[high]; got.Level != LevelTwo {
		t.Fatalf("floating film changed: %+v", got)
	}

	// Too deep to dry.
	deep := Vec3i{X: 1, Y: 1, Z: 0}
	place(g, deep, fBrine, LevelThree, true)
	e.DoRandomUpdate(g, deep, LevelThree, true)
	if g.blocks[deep] != tAir {
		t.Fatalf("brine above the dry threshold must stay")
	}
}

func TestRandomUpdate_IgniteConvertsOneNeighborPerProbe(t *testing.T) {
	e, g, _ := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 3, Z: 0}
	place(g, pos, fLava, LevelFour, true)
	below := pos.Offset(SideDown)
	east := pos.Offset(SideEast)
	g.blocks[below] = tWood
	g.blocks[east] = tWood

	e.DoRandomUpdate(g, pos, LevelFour, true)
	if g.blocks[below] != tEmber {
		t.Fatalf("the scan starts below; block = %d", g.blocks[below])
	}
	if g.blocks[east] != tWood {
		t.Fatalf("a probe converts a single neighbor")
	}

	e.DoRandomUpdate(g, pos, LevelFour, true)
	if g.blocks[east] != tEmber {
		t.Fatalf("the next probe takes the next flammable neighbor, block = %d", g.blocks[east])
	}
	if got := g.fluids[pos]; got.Fluid != fLava || got.Level != LevelFour {
		t.Fatalf("ignition must not consume the fluid: %+v", got)
	}
}

func TestRandomUpdate_FluidWithoutRulesIsNoop(t *testing.T) {
	e, g, _ := newTestEngine(t)
	pos := Vec3i{X: 0, Y: 3, Z: 0}
	place(g, pos, fWater, LevelFull, true)
	g.blocks[pos.Offset(SideDown)] = tStone

	e.DoRandomUpdate(g, pos, LevelFull, true)

	if g.blocks[pos] != tAir {
		t.Fatalf("water has no random transitions")
	}
	if got := g.fluids[pos]; got.Level != LevelFull {
		t.Fatalf("water changed: %+v", got)
	}
}
