package world

import (
	"fmt"

	"fluidcraft.ai/internal/persistence/snapshot"
)

// ImportSnapshot replaces the current in-memory world state with the snapshot.
// It sets the world's tick to snapshotTick+1 (the next tick to simulate).
//
// This must be called only when the world is stopped or from the world loop goroutine.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != 1 {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}

	// Parameters that define simulated semantics must match the running
	// config; a snapshot from a different world is an error, not a merge.
	if w.cfg.Seed != s.Seed {
		return fmt.Errorf("snapshot seed mismatch: cfg=%d snap=%d", w.cfg.Seed, s.Seed)
	}
	if w.cfg.Height != s.Height {
		return fmt.Errorf("snapshot height mismatch: cfg=%d snap=%d", w.cfg.Height, s.Height)
	}
	if w.cfg.FloorY != s.FloorY {
		return fmt.Errorf("snapshot floor_y mismatch: cfg=%d snap=%d", w.cfg.FloorY, s.FloorY)
	}
	if w.cfg.ObsRadius != s.ObsRadius {
		return fmt.Errorf("snapshot obs_radius mismatch: cfg=%d snap=%d", w.cfg.ObsRadius, s.ObsRadius)
	}
	if w.cfg.BoundaryR != s.BoundaryR {
		return fmt.Errorf("snapshot boundary_r mismatch: cfg=%d snap=%d", w.cfg.BoundaryR, s.BoundaryR)
	}
	if s.BlockPaletteDigest != "" && s.BlockPaletteDigest != w.catalogs.Blocks.PaletteDigest {
		return fmt.Errorf("snapshot block palette mismatch: cfg=%s snap=%s", w.catalogs.Blocks.PaletteDigest, s.BlockPaletteDigest)
	}
	if s.FluidPaletteDigest != "" && s.FluidPaletteDigest != w.catalogs.Fluids.PaletteDigest {
		return fmt.Errorf("snapshot fluid palette mismatch: cfg=%s snap=%s", w.catalogs.Fluids.PaletteDigest, s.FluidPaletteDigest)
	}
	if s.ContactsDigest != "" && s.ContactsDigest != w.catalogs.Contacts.Digest {
		return fmt.Errorf("snapshot contacts mismatch: cfg=%s snap=%s", w.catalogs.Contacts.Digest, s.ContactsDigest)
	}

	// Operational parameters: the snapshot value is authoritative when present.
	if s.MaxUpdatesPerTick > 0 {
		w.cfg.MaxUpdatesPerTick = s.MaxUpdatesPerTick
	}
	if s.RandomProbesPerTick > 0 {
		w.cfg.RandomProbesPerTick = s.RandomProbesPerTick
	}
	if s.SnapshotEveryTicks > 0 {
		w.cfg.SnapshotEveryTicks = s.SnapshotEveryTicks
	}
	if s.RateLimits.InstantWindowTicks > 0 || s.RateLimits.InstantMax > 0 {
		w.cfg.RateLimits = RateLimitConfig{
			InstantWindowTicks: s.RateLimits.InstantWindowTicks,
			InstantMax:         s.RateLimits.InstantMax,
		}
	}

	store := NewChunkStore(w.chunks.gen)
	want := 16 * 16 * w.cfg.Height
	for _, ch := range s.Chunks {
		if ch.Height != w.cfg.Height {
			return fmt.Errorf("snapshot chunk (%d,%d) height mismatch: got %d want %d", ch.CX, ch.CZ, ch.Height, w.cfg.Height)
		}
		if len(ch.Blocks) != want || len(ch.Fluids) != want {
			return fmt.Errorf("snapshot chunk (%d,%d) payload length mismatch: blocks=%d fluids=%d want %d", ch.CX, ch.CZ, len(ch.Blocks), len(ch.Fluids), want)
		}
		blocks := make([]uint16, want)
		copy(blocks, ch.Blocks)
		fluids := make([]uint16, want)
		copy(fluids, ch.Fluids)
		store.adoptChunk(&Chunk{
			CX:     ch.CX,
			CZ:     ch.CZ,
			Blocks: blocks,
			Fluids: fluids,
		})
	}
	w.chunks = store

	entries := make([]QueuedUpdate, 0, len(s.Queue))
	for _, qe := range s.Queue {
		entries = append(entries, QueuedUpdate{Pos: qe.Pos, Due: qe.Due})
	}
	w.queue.restore(entries)

	// Sessions are not restored; observers re-join over the wire.
	w.sessions = map[string]*Session{}
	w.nextSessionNum.Store(s.Counters.NextSession)

	// Resume on the next tick.
	w.tick.Store(s.Header.Tick + 1)

	return nil
}
