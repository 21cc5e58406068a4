package worldtest

import (
	"encoding/json"
	"fmt"
	"testing"

	"fluidcraft.ai/internal/persistence/snapshot"
	"fluidcraft.ai/internal/protocol"
	"fluidcraft.ai/internal/sim/catalogs"
	world "fluidcraft.ai/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Join() issues JoinRequest via StepOnce()
// - Step()/StepFor() issues ACT via StepOnce()
// - Per-session Out channels carry OBS JSON
// - ExportSnapshot/Debug* helpers provide deterministic preconditions
//
// It intentionally avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	DefaultSessionID string

	sessions map[string]*session
	nextRef  int
}

func NewHarness(t *testing.T, cfg world.WorldConfig, cats *catalogs.Catalogs, name string) *Harness {
	t.Helper()

	w, err := world.New(cfg, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}

	h := &Harness{
		T:        t,
		Cats:     cats,
		W:        w,
		sessions: map[string]*session{},
	}
	h.DefaultSessionID = h.Join(name)
	return h
}

// NewHarnessWithWorld is like NewHarness, but uses an already-constructed world instance.
// This is useful for snapshot round-trip tests where the snapshot is imported before join.
func NewHarnessWithWorld(t *testing.T, w *world.World, cats *catalogs.Catalogs, name string) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}

	h := &Harness{
		T:        t,
		Cats:     cats,
		W:        w,
		sessions: map[string]*session{},
	}
	h.DefaultSessionID = h.Join(name)
	return h
}

type session struct {
	SessionID string
	Out       chan []byte
	lastObs   protocol.ObsMsg
}

func (h *Harness) Join(name string) string {
	h.T.Helper()

	out := make(chan []byte, 16)
	resp := make(chan world.JoinResponse, 1)
	_, _ = h.W.StepOnce([]world.JoinRequest{{
		Name:        name,
		DeltaVoxels: false,
		Out:         out,
		Resp:        resp,
	}}, nil, nil)
	jr := <-resp
	if jr.Welcome.SessionID == "" {
		h.T.Fatalf("join returned empty session id")
	}
	s := &session{SessionID: jr.Welcome.SessionID, Out: out}
	h.sessions[s.SessionID] = s
	h.drainAllObs()
	return s.SessionID
}

func (h *Harness) LastObs() protocol.ObsMsg {
	return h.LastObsFor(h.DefaultSessionID)
}

func (h *Harness) LastObsFor(sessionID string) protocol.ObsMsg {
	h.T.Helper()
	s := h.sessions[sessionID]
	if s == nil {
		h.T.Fatalf("unknown session id: %q", sessionID)
	}
	return s.lastObs
}

func (h *Harness) Step(instants []protocol.InstantReq) protocol.ObsMsg {
	return h.StepFor(h.DefaultSessionID, instants)
}

func (h *Harness) StepFor(sessionID string, instants []protocol.InstantReq) protocol.ObsMsg {
	h.T.Helper()
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            h.W.CurrentTick(),
		SessionID:       sessionID,
		Instants:        instants,
	}
	_, _ = h.W.StepOnce(nil, nil, []world.ActionEnvelope{{
		SessionID: sessionID,
		Act:       act,
	}})
	h.drainAllObs()
	return h.LastObsFor(sessionID)
}

func (h *Harness) StepMulti(actions []world.ActionEnvelope) {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, nil, actions)
	h.drainAllObs()
}

func (h *Harness) StepNoop() protocol.ObsMsg {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, nil, nil)
	h.drainAllObs()
	return h.LastObs()
}

// Ref returns a fresh instant id, unique within the harness.
func (h *Harness) Ref() string {
	h.nextRef++
	return fmt.Sprintf("i%d", h.nextRef)
}

func (h *Harness) Snapshot() (tick uint64, snap snapshot.SnapshotV1) {
	h.T.Helper()
	// Keep tick stable: export at currentTick-1 then import would restore to currentTick.
	cur := h.W.CurrentTick()
	if cur == 0 {
		return 0, h.W.ExportSnapshot(0)
	}
	tick = cur - 1
	return tick, h.W.ExportSnapshot(tick)
}

func (h *Harness) SetBlock(pos world.Vec3i, blockName string) {
	h.T.Helper()
	if err := h.W.DebugSetBlock(pos, blockName); err != nil {
		h.T.Fatalf("DebugSetBlock: %v", err)
	}
}

func (h *Harness) PlaceFluid(pos world.Vec3i, fluidName string, level int, static bool) {
	h.T.Helper()
	if err := h.W.DebugPlaceFluid(pos, fluidName, level, static); err != nil {
		h.T.Fatalf("DebugPlaceFluid: %v", err)
	}
}

func (h *Harness) Drain(pos world.Vec3i) {
	h.T.Helper()
	if err := h.W.DebugDrain(pos); err != nil {
		h.T.Fatalf("DebugDrain: %v", err)
	}
}

func (h *Harness) Content(pos world.Vec3i) world.Content {
	h.T.Helper()
	c, err := h.W.DebugGetContent(pos)
	if err != nil {
		h.T.Fatalf("DebugGetContent: %v", err)
	}
	return c
}

func (h *Harness) ScheduleFluid(pos world.Vec3i) {
	h.T.Helper()
	if err := h.W.DebugScheduleFluid(pos); err != nil {
		h.T.Fatalf("DebugScheduleFluid: %v", err)
	}
}

func (h *Harness) PendingUpdates() int {
	return h.W.DebugPendingUpdates()
}

// Floor lays a solid slab at height y covering the square [-r,r]^2, burying
// the generated relief so scenarios start from a known surface.
func (h *Harness) Floor(y, r int, blockName string) {
	h.T.Helper()
	for z := -r; z <= r; z++ {
		for x := -r; x <= r; x++ {
			h.SetBlock(world.Vec3i{X: x, Y: y, Z: z}, blockName)
		}
	}
}

// Walls rings the square [-r,r]^2 at height y, one block thick.
func (h *Harness) Walls(y, r int, blockName string) {
	h.T.Helper()
	for i := -r; i <= r; i++ {
		h.SetBlock(world.Vec3i{X: i, Y: y, Z: -r}, blockName)
		h.SetBlock(world.Vec3i{X: i, Y: y, Z: r}, blockName)
		h.SetBlock(world.Vec3i{X: -r, Y: y, Z: i}, blockName)
		h.SetBlock(world.Vec3i{X: r, Y: y, Z: i}, blockName)
	}
}

// TotalFluid sums the levels of the given fluid over the box [-r,r]^2 at
// heights [y0,y1]. Conservation checks compare this before and after settling.
func (h *Harness) TotalFluid(fluidName string, y0, y1, r int) int {
	h.T.Helper()
	fid, ok := h.Cats.Fluids.Index[fluidName]
	if !ok {
		h.T.Fatalf("unknown fluid: %q", fluidName)
	}
	total := 0
	for y := y0; y <= y1; y++ {
		for z := -r; z <= r; z++ {
			for x := -r; x <= r; x++ {
				c := h.Content(world.Vec3i{X: x, Y: y, Z: z})
				if c.Fluid.Fluid == world.FluidID(fid) {
					total += int(c.Fluid.Level)
				}
			}
		}
	}
	return total
}

// SettleWithin steps until no fluid updates are pending, failing after limit
// steps. It returns the number of steps taken.
func (h *Harness) SettleWithin(limit int) int {
	h.T.Helper()
	for i := 0; i < limit; i++ {
		if h.PendingUpdates() == 0 {
			return i
		}
		h.StepNoop()
	}
	h.T.Fatalf("fluids did not settle within %d steps (pending=%d)", limit, h.PendingUpdates())
	return limit
}

func (h *Harness) drainAllObs() {
	h.T.Helper()
	for _, s := range h.sessions {
		h.drainOneObs(s)
	}
}

func (h *Harness) drainOneObs(s *session) {
	h.T.Helper()
	var last []byte
	for {
		select {
		case b := <-s.Out:
			last = b
			continue
		default:
		}
		break
	}
	if len(last) == 0 {
		return
	}
	var obs protocol.ObsMsg
	if err := json.Unmarshal(last, &obs); err != nil {
		h.T.Fatalf("unmarshal OBS: %v", err)
	}
	s.lastObs = obs
}
