package world

import (
	"errors"
	"fmt"
)

// ---- Debug/Test Helpers ----
//
// These helpers exist to allow black-box tests in sibling packages (e.g. internal/sim/worldtest)
// to set up deterministic preconditions without reaching into world internals.
//
// They are NOT safe to call concurrently with Run(). Prefer using them only in tests that drive
// the world via StepOnce(), from a single goroutine.

// DebugSetBlock writes a single block directly. It does not audit and does
// not wake neighboring fluids.
func (w *World) DebugSetBlock(pos Vec3i, blockName string) error {
	if w == nil {
		return errors.New("nil world")
	}
	bid, ok := w.catalogs.Blocks.Index[blockName]
	if !ok {
		return fmt.Errorf("unknown block: %q", blockName)
	}
	if !w.chunks.inBounds(pos) {
		return fmt.Errorf("out of bounds: %+v", pos)
	}
	w.chunks.SetBlock(pos, bid)
	return nil
}

// DebugPlaceFluid writes a fluid cell directly. It does not audit and does
// not wake neighbors; a dynamic cell is scheduled so it flows on the next
// due tick.
func (w *World) DebugPlaceFluid(pos Vec3i, fluidName string, level int, static bool) error {
	if w == nil {
		return errors.New("nil world")
	}
	fid, ok := w.catalogs.Fluids.Index[fluidName]
	if !ok || FluidID(fid) == FluidNone {
		return fmt.Errorf("unknown fluid: %q", fluidName)
	}
	if level < 1 || level > int(LevelFull) {
		return fmt.Errorf("level out of range: %d", level)
	}
	if !w.chunks.inBounds(pos) {
		return fmt.Errorf("out of bounds: %+v", pos)
	}
	fi := FluidInstance{Fluid: FluidID(fid), Level: LevelFromInt(level), Static: static}
	w.chunks.SetFluidWord(pos, packFluid(fi))
	if !static {
		w.ScheduleUpdate(pos)
	}
	return nil
}

// DebugDrain clears the fluid at pos without waking neighbors.
func (w *World) DebugDrain(pos Vec3i) error {
	if w == nil {
		return errors.New("nil world")
	}
	if !w.chunks.inBounds(pos) {
		return fmt.Errorf("out of bounds: %+v", pos)
	}
	w.chunks.SetFluidWord(pos, 0)
	return nil
}

func (w *World) DebugGetContent(pos Vec3i) (Content, error) {
	if w == nil {
		return Content{}, errors.New("nil world")
	}
	c := w.GetContent(pos)
	if c == nil {
		return Content{}, fmt.Errorf("out of bounds: %+v", pos)
	}
	return *c, nil
}

// DebugScheduleFluid queues the fluid at pos as if a neighbor change woke it.
func (w *World) DebugScheduleFluid(pos Vec3i) error {
	if w == nil {
		return errors.New("nil world")
	}
	if !w.chunks.inBounds(pos) {
		return fmt.Errorf("out of bounds: %+v", pos)
	}
	w.wakeFluid(pos)
	return nil
}

func (w *World) DebugPendingUpdates() int {
	if w == nil {
		return 0
	}
	return w.queue.pending()
}

// DebugStateDigest returns the current world digest for the given tick label.
// This is intended for black-box determinism tests in sibling packages.
func (w *World) DebugStateDigest(nowTick uint64) string {
	if w == nil {
		return ""
	}
	return w.stateDigest(nowTick)
}
