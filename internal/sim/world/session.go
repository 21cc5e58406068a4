package world

import (
	"fluidcraft.ai/internal/protocol"
)

// Session is one attached operator/observer console. Sessions are not part
// of simulated state: they never enter digests or snapshots, and a dropped
// socket keeps the session resumable by token.
type Session struct {
	ID          string
	Name        string
	ResumeToken string

	// View is the center of the region this session observes.
	View   Vec3i
	Radius int

	Out         chan []byte
	DeltaVoxels bool
	LastBlocks  []uint16
	LastFluids  []uint16

	Events []protocol.Event

	rl rateWindow
}

type rateWindow struct {
	StartTick uint64
	Count     int
}

func (s *Session) AddEvent(e protocol.Event) {
	s.Events = append(s.Events, e)
}

func (s *Session) TakeEvents() []protocol.Event {
	ev := s.Events
	s.Events = nil
	return ev
}

// RateLimitAllow is a fixed-window limiter over all instants in a session.
func (s *Session) RateLimitAllow(nowTick uint64, window uint64, max int) (ok bool, cooldownTicks uint64) {
	// A zero window or non-positive max disables limiting.
	if window == 0 || max <= 0 {
		return true, 0
	}
	if nowTick-s.rl.StartTick >= window {
		s.rl.StartTick = nowTick
		s.rl.Count = 0
	}
	s.rl.Count++
	if s.rl.Count <= max {
		return true, 0
	}
	// Remaining ticks until the window resets (next tick >= StartTick+Window).
	return false, (s.rl.StartTick + window) - nowTick
}
