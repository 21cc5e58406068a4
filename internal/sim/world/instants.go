package world

import (
	"fmt"

	"fluidcraft.ai/internal/protocol"
)

// instantRateLimited charges the session's shared mutation budget. View and
// step control never consume it.
func instantRateLimited(w *World, s *Session, ref string, nowTick uint64) bool {
	ok, cd := s.RateLimitAllow(nowTick, uint64(w.cfg.RateLimits.InstantWindowTicks), w.cfg.RateLimits.InstantMax)
	if ok {
		return false
	}
	ev := actionResult(nowTick, ref, false, "E_RATE_LIMIT", "too many instants")
	ev["cooldown_ticks"] = cd
	ev["cooldown_until_tick"] = nowTick + cd
	s.AddEvent(ev)
	return true
}

func handleInstantSetBlock(w *World, s *Session, inst protocol.InstantReq, nowTick uint64) {
	if instantRateLimited(w, s, inst.ID, nowTick) {
		return
	}
	pos := Vec3i{X: inst.Pos[0], Y: inst.Pos[1], Z: inst.Pos[2]}
	c := w.GetContent(pos)
	if c == nil {
		s.AddEvent(actionResult(nowTick, inst.ID, false, "E_OUT_OF_BOUNDS", "pos outside world"))
		return
	}
	id, ok := w.catalogs.Blocks.Index[inst.Block]
	if !ok {
		s.AddEvent(actionResult(nowTick, inst.ID, false, "E_UNKNOWN_BLOCK", inst.Block))
		return
	}
	if c.Block == id {
		s.AddEvent(actionResult(nowTick, inst.ID, true, "", "no change"))
		return
	}
	w.SetBlock(id, pos)
	w.audit(AuditEntry{
		Tick:   nowTick,
		Actor:  s.ID,
		Action: InstantTypeSetBlock,
		Pos:    [3]int{pos.X, pos.Y, pos.Z},
		From:   c.Block,
		To:     id,
	})
	s.AddEvent(actionResult(nowTick, inst.ID, true, "", "ok"))
}

func handleInstantPlaceFluid(w *World, s *Session, inst protocol.InstantReq, nowTick uint64) {
	if instantRateLimited(w, s, inst.ID, nowTick) {
		return
	}
	pos := Vec3i{X: inst.Pos[0], Y: inst.Pos[1], Z: inst.Pos[2]}
	c := w.GetContent(pos)
	if c == nil {
		s.AddEvent(actionResult(nowTick, inst.ID, false, "E_OUT_OF_BOUNDS", "pos outside world"))
		return
	}
	fid, ok := w.catalogs.Fluids.Index[inst.Fluid]
	if !ok || FluidID(fid) == FluidNone {
		s.AddEvent(actionResult(nowTick, inst.ID, false, "E_UNKNOWN_FLUID", inst.Fluid))
		return
	}
	if inst.Level < 1 || inst.Level > int(LevelFull) {
		s.AddEvent(actionResult(nowTick, inst.ID, false, "E_BAD_LEVEL", fmt.Sprintf("level %d out of range", inst.Level)))
		return
	}
	fi := FluidInstance{Fluid: FluidID(fid), Level: LevelFromInt(inst.Level), Static: inst.Static}
	w.SetFluid(fi, pos)
	if !fi.Static {
		w.ScheduleUpdate(pos)
	}
	w.wakeNeighbors(pos)
	w.audit(AuditEntry{
		Tick:   nowTick,
		Actor:  s.ID,
		Action: InstantTypePlaceFluid,
		Pos:    [3]int{pos.X, pos.Y, pos.Z},
		From:   packFluid(c.Fluid),
		To:     packFluid(fi),
		Fluid:  inst.Fluid,
	})
	s.AddEvent(actionResult(nowTick, inst.ID, true, "", "ok"))
}

func handleInstantDrain(w *World, s *Session, inst protocol.InstantReq, nowTick uint64) {
	if instantRateLimited(w, s, inst.ID, nowTick) {
		return
	}
	pos := Vec3i{X: inst.Pos[0], Y: inst.Pos[1], Z: inst.Pos[2]}
	c := w.GetContent(pos)
	if c == nil {
		s.AddEvent(actionResult(nowTick, inst.ID, false, "E_OUT_OF_BOUNDS", "pos outside world"))
		return
	}
	if c.Fluid.IsEmpty() {
		s.AddEvent(actionResult(nowTick, inst.ID, false, "E_EMPTY", "no fluid at pos"))
		return
	}
	w.SetDefaultFluid(pos)
	w.wakeNeighbors(pos)
	w.audit(AuditEntry{
		Tick:   nowTick,
		Actor:  s.ID,
		Action: InstantTypeDrain,
		Pos:    [3]int{pos.X, pos.Y, pos.Z},
		From:   packFluid(c.Fluid),
		To:     0,
		Fluid:  w.fluidName(c.Fluid.Fluid),
	})
	s.AddEvent(actionResult(nowTick, inst.ID, true, "", "ok"))
}

func handleInstantSetView(w *World, s *Session, inst protocol.InstantReq, nowTick uint64) {
	s.View = Vec3i{X: inst.Pos[0], Y: inst.Pos[1], Z: inst.Pos[2]}
	if inst.Radius > 0 {
		r := inst.Radius
		if r > w.cfg.ObsRadius {
			r = w.cfg.ObsRadius
		}
		s.Radius = r
	}
	// Moving the window invalidates the delta baseline.
	s.LastBlocks = nil
	s.LastFluids = nil
	s.AddEvent(actionResult(nowTick, inst.ID, true, "", "ok"))
}

// handleInstantStep acks manual ticking. The run loop performs the actual
// steps when the batch arrives; a free-running world has nothing to step.
func handleInstantStep(w *World, s *Session, inst protocol.InstantReq, nowTick uint64) {
	if w.cfg.TickRateHz > 0 {
		s.AddEvent(actionResult(nowTick, inst.ID, false, "E_BAD_REQUEST", "world is free-running"))
		return
	}
	s.AddEvent(actionResult(nowTick, inst.ID, true, "", "ok"))
}
