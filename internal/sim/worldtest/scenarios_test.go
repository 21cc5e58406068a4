package worldtest

import (
	"testing"

	"fluidcraft.ai/internal/protocol"
	world "fluidcraft.ai/internal/sim/world"
)

func scenarioConfig(seed int64) world.WorldConfig {
	return world.WorldConfig{
		ID:               "BASIN",
		TickRateHz:       -1,
		ObsRadius:        4,
		Height:           32,
		FloorY:           4,
		Seed:             seed,
		BoundaryR:        64,
		DigestEveryTicks: 5,
	}
}

// newBasin builds a sealed square container above the generated relief:
// a slab at floorY and two rings of wall on top. Interior is [-(r-1),r-1]^2
// at floorY+1 and floorY+2.
func newBasin(t *testing.T, seed int64, floorY, r int) *Harness {
	t.Helper()
	h := NewHarness(t, scenarioConfig(seed), loadCatalogs(t), "scenario")
	h.Floor(floorY, r, "STONE")
	h.Walls(floorY+1, r, "STONE")
	h.Walls(floorY+2, r, "STONE")
	return h
}

func TestScenario_ClosedBasinConservesWater(t *testing.T) {
	h := newBasin(t, 42, 10, 3)

	ref := h.Ref()
	obs := h.Step([]protocol.InstantReq{{
		ID:    ref,
		Type:  world.InstantTypePlaceFluid,
		Pos:   [3]int{0, 12, 0},
		Fluid: "WATER",
		Level: 8,
	}})
	if code := actionResultCode(obs, ref); code != "" {
		t.Fatalf("place fluid failed: %s", code)
	}

	steps := h.SettleWithin(300)
	t.Logf("settled after %d steps", steps)

	if got := h.TotalFluid("WATER", 10, 13, 4); got != 8 {
		t.Fatalf("total water after settling = %d, want 8", got)
	}
	// Sealed container: nothing lands outside the walls.
	if got := h.TotalFluid("WATER", 4, 9, 6); got != 0 {
		t.Fatalf("water escaped below the basin: %d", got)
	}
}

func TestScenario_DrainedBasinStaysDry(t *testing.T) {
	h := newBasin(t, 7, 10, 3)

	h.PlaceFluid(world.Vec3i{X: 0, Y: 12, Z: 0}, "WATER", 8, false)
	h.SettleWithin(300)

	// Drain every wet interior cell through the public instant path.
	drained := 0
	for y := 11; y <= 12; y++ {
		for z := -2; z <= 2; z++ {
			for x := -2; x <= 2; x++ {
				pos := world.Vec3i{X: x, Y: y, Z: z}
				if h.Content(pos).Fluid.IsEmpty() {
					continue
				}
				ref := h.Ref()
				obs := h.Step([]protocol.InstantReq{{
					ID:   ref,
					Type: world.InstantTypeDrain,
					Pos:  [3]int{x, y, z},
				}})
				if code := actionResultCode(obs, ref); code != "" {
					t.Fatalf("drain %v failed: %s", pos, code)
				}
				drained++
			}
		}
	}
	if drained == 0 {
		t.Fatalf("nothing to drain; water never settled in the basin")
	}

	h.SettleWithin(100)
	if got := h.TotalFluid("WATER", 10, 13, 4); got != 0 {
		t.Fatalf("water left after draining every cell: %d", got)
	}

	// Draining an already dry cell is an error, not a no-op.
	ref := h.Ref()
	obs := h.Step([]protocol.InstantReq{{
		ID:   ref,
		Type: world.InstantTypeDrain,
		Pos:  [3]int{0, 12, 0},
	}})
	if code := actionResultCode(obs, ref); code != "E_EMPTY" {
		t.Fatalf("drain of dry cell = %q, want E_EMPTY", code)
	}
}

func TestScenario_DrainBottomOfColumnRestacks(t *testing.T) {
	h := NewHarness(t, scenarioConfig(11), loadCatalogs(t), "shaft")

	// Sealed 1x1 shaft: slab below, wall rings around y=10..12.
	h.Floor(9, 1, "STONE")
	for y := 10; y <= 12; y++ {
		h.Walls(y, 1, "STONE")
	}
	for y := 10; y <= 12; y++ {
		h.PlaceFluid(world.Vec3i{X: 0, Y: y, Z: 0}, "WATER", 8, true)
	}

	ref := h.Ref()
	obs := h.Step([]protocol.InstantReq{{
		ID:   ref,
		Type: world.InstantTypeDrain,
		Pos:  [3]int{0, 10, 0},
	}})
	if code := actionResultCode(obs, ref); code != "" {
		t.Fatalf("drain failed: %s", code)
	}

	h.SettleWithin(100)

	// The settled cells above the drained one must both fall: 16 units stack
	// from the bottom with no floating remainder.
	if got := h.Content(world.Vec3i{X: 0, Y: 10, Z: 0}).Fluid.Level; got != 8 {
		t.Fatalf("bottom level = %d, want 8", got)
	}
	if got := h.Content(world.Vec3i{X: 0, Y: 11, Z: 0}).Fluid.Level; got != 8 {
		t.Fatalf("middle level = %d, want 8", got)
	}
	if c := h.Content(world.Vec3i{X: 0, Y: 12, Z: 0}); !c.Fluid.IsEmpty() {
		t.Fatalf("top cell still holds fluid: %+v", c.Fluid)
	}
	if got := h.TotalFluid("WATER", 9, 13, 2); got != 16 {
		t.Fatalf("total water = %d, want 16", got)
	}
}

func TestScenario_WaterOntoLavaEmitsContact(t *testing.T) {
	h := newBasin(t, 99, 10, 3)

	// Static lava pool stays put until the water lands on it.
	h.PlaceFluid(world.Vec3i{X: 0, Y: 11, Z: 0}, "LAVA", 8, true)

	ref := h.Ref()
	obs := h.Step([]protocol.InstantReq{{
		ID:    ref,
		Type:  world.InstantTypePlaceFluid,
		Pos:   [3]int{0, 12, 0},
		Fluid: "WATER",
		Level: 8,
	}})
	if code := actionResultCode(obs, ref); code != "" {
		t.Fatalf("place fluid failed: %s", code)
	}

	var contact protocol.Event
	for i := 0; i < 50 && contact == nil; i++ {
		contact = findEvent(h.StepNoop(), "CONTACT")
	}
	if contact == nil {
		t.Fatalf("no CONTACT event within 50 steps")
	}
	if src, _ := contact["source"].(string); src != "WATER" {
		t.Errorf("contact source = %q, want WATER", src)
	}
	if tgt, _ := contact["target"].(string); tgt != "LAVA" {
		t.Errorf("contact target = %q, want LAVA", tgt)
	}
	if blk, _ := contact["block"].(string); blk != "BASALT" {
		t.Errorf("contact block = %q, want BASALT", blk)
	}

	basalt := h.Cats.Blocks.Index["BASALT"]
	if got := h.Content(world.Vec3i{X: 0, Y: 11, Z: 0}).Block; got != basalt {
		t.Fatalf("target cell block = %d, want BASALT (%d)", got, basalt)
	}
}

func TestScenario_DigestOnCadenceTicksOnly(t *testing.T) {
	h := NewHarness(t, scenarioConfig(1), loadCatalogs(t), "digest")

	// Advance so the next step lands exactly on a cadence tick.
	stepUntilTick(t, h, 10)
	obs := h.StepNoop()
	if obs.Tick != 10 {
		t.Fatalf("landed on tick %d, want 10", obs.Tick)
	}
	if obs.Digest == "" {
		t.Fatalf("digest missing on cadence tick %d", obs.Tick)
	}

	next := h.StepNoop()
	if next.Digest != "" {
		t.Fatalf("digest present on off-cadence tick %d", next.Tick)
	}
}
