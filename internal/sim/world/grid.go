package world

import (
	"github.com/zyedidia/generic/mapset"

	"fluidcraft.ai/internal/protocol"
)

// World implements FluidGrid and FluidScheduler for its own engine. All of
// these run on the world loop goroutine.

// GetContent returns the block and fluid at pos, or nil outside the world.
func (w *World) GetContent(pos Vec3i) *Content {
	if !w.chunks.inBounds(pos) {
		return nil
	}
	return &Content{
		Block: w.chunks.GetBlock(pos),
		Fluid: unpackFluid(w.chunks.GetFluidWord(pos)),
	}
}

// SetFluid writes the fluid at pos. A write that removes volume (clears the
// cell or lowers its level) opens space a settled neighbor may be resting on,
// so it wakes all six neighbors the same way SetBlock does on a block swap.
func (w *World) SetFluid(inst FluidInstance, pos Vec3i) {
	if !w.chunks.inBounds(pos) {
		return
	}
	prev := unpackFluid(w.chunks.GetFluidWord(pos))
	w.chunks.SetFluidWord(pos, packFluid(inst))
	if prev.IsEmpty() {
		return
	}
	if inst.IsEmpty() || (inst.Fluid == prev.Fluid && inst.Level < prev.Level) {
		w.wakeNeighbors(pos)
	}
}

// SetDefaultFluid resets pos to its resting fluid state: none.
func (w *World) SetDefaultFluid(pos Vec3i) {
	w.SetFluid(FluidInstance{}, pos)
}

// SetBlock swaps the block at pos and wakes the fluids that might care:
// the cell's own and all six neighbors.
func (w *World) SetBlock(block uint16, pos Vec3i) {
	if !w.chunks.inBounds(pos) {
		return
	}
	if w.chunks.GetBlock(pos) == block {
		return
	}
	w.chunks.SetBlock(pos, block)
	w.wakeFluid(pos)
	w.wakeNeighbors(pos)
}

// ScheduleUpdate queues the fluid at pos after its viscosity delay.
func (w *World) ScheduleUpdate(pos Vec3i) {
	c := w.GetContent(pos)
	if c == nil || c.Fluid.IsEmpty() {
		return
	}
	delay := uint64(w.rules.ViscosityTicks(c.Fluid.Fluid))
	w.queue.schedule(pos, w.tick.Load()+delay)
}

// wakeFluid flips a settled fluid back to dynamic and queues it.
func (w *World) wakeFluid(pos Vec3i) {
	c := w.GetContent(pos)
	if c == nil || c.Fluid.IsEmpty() {
		return
	}
	if c.Fluid.Static {
		w.SetFluid(c.Fluid.AsDynamic(), pos)
	}
	w.ScheduleUpdate(pos)
}

func (w *World) wakeNeighbors(pos Vec3i) {
	for _, s := range SideAll {
		w.wakeFluid(pos.Offset(s))
	}
}

// systemFluids runs the due scheduled updates, capped per tick. Overflow
// stays queued for the next tick.
func (w *World) systemFluids(nowTick uint64) int {
	due := w.queue.popDue(nowTick, w.cfg.MaxUpdatesPerTick)
	for _, pos := range due {
		c := w.GetContent(pos)
		if c == nil || c.Fluid.IsEmpty() {
			continue
		}
		w.engine.ScheduledUpdate(w, pos, c.Fluid)
	}
	return len(due)
}

// systemRandom probes a few loaded voxels per tick for slow transitions
// (solidify, evaporate, ignite). Probe positions derive from seed and tick
// only, so two worlds fed the same inputs probe the same cells.
func (w *World) systemRandom(nowTick uint64) {
	n := w.cfg.RandomProbesPerTick
	if n <= 0 {
		return
	}
	keys := w.chunks.LoadedChunkKeys()
	if len(keys) == 0 {
		return
	}

	seen := mapset.New[Vec3i]()
	for i := 0; i < n; i++ {
		h := hash3(w.cfg.Seed, int(nowTick&0x3fffffff), i, 0)
		k := keys[int(h%uint64(len(keys)))]
		h = mix64(h ^ 0x9e3779b97f4a7c15)
		pos := Vec3i{
			X: k.CX*16 + int(h&15),
			Y: int((h >> 8) % uint64(w.cfg.Height)),
			Z: k.CZ*16 + int((h>>4)&15),
		}
		if seen.Has(pos) {
			continue
		}
		seen.Put(pos)

		c := w.GetContent(pos)
		if c == nil || c.Fluid.IsEmpty() {
			continue
		}
		fluid := c.Fluid.Fluid

		// Conversions land on the probed cell (solidify, evaporate) or on a
		// neighbor (ignite), so diff all seven.
		var before [7]uint16
		before[6] = c.Block
		for j, side := range SideAll {
			if nc := w.GetContent(pos.Offset(side)); nc != nil {
				before[j] = nc.Block
			}
		}

		w.engine.DoRandomUpdate(w, pos, c.Fluid.Level, c.Fluid.Static)

		w.noteRandomChange(nowTick, fluid, pos, before[6])
		for j, side := range SideAll {
			w.noteRandomChange(nowTick, fluid, pos.Offset(side), before[j])
		}
	}
}

func (w *World) noteRandomChange(nowTick uint64, fluid FluidID, pos Vec3i, prev uint16) {
	c := w.GetContent(pos)
	if c == nil || c.Block == prev {
		return
	}
	w.audit(AuditEntry{
		Tick:   nowTick,
		Actor:  "world",
		Action: "RANDOM_TICK",
		Pos:    pos.ToArray(),
		From:   prev,
		To:     c.Block,
		Fluid:  w.fluidName(fluid),
	})
	w.broadcastEvent(protocol.Event{
		"t":     nowTick,
		"type":  "FLUID_TRANSITION",
		"pos":   pos.ToArray(),
		"fluid": w.fluidName(fluid),
		"block": w.blockName(c.Block),
	})
}

// onContactReaction is wired into the engine's contact manager.
func (w *World) onContactReaction(r ContactReaction) {
	nowTick := w.tick.Load()
	w.audit(AuditEntry{
		Tick:   nowTick,
		Actor:  "world",
		Action: "CONTACT",
		Pos:    r.Pos.ToArray(),
		From:   r.Prev,
		To:     r.Block,
		Fluid:  w.fluidName(r.Source),
	})
	w.broadcastEvent(protocol.Event{
		"t":      nowTick,
		"type":   "CONTACT",
		"pos":    r.Pos.ToArray(),
		"source": w.fluidName(r.Source),
		"target": w.fluidName(r.Target),
		"block":  w.blockName(r.Block),
	})
}
