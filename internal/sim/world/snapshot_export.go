package world

import "fluidcraft.ai/internal/persistence/snapshot"

func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	// Snapshot must be called from the world loop goroutine.
	keys := w.chunks.LoadedChunkKeys()
	chunks := make([]snapshot.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch := w.chunks.ChunkAt(k)
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		fluids := make([]uint16, len(ch.Fluids))
		copy(fluids, ch.Fluids)
		chunks = append(chunks, snapshot.ChunkV1{
			CX:     k.CX,
			CZ:     k.CZ,
			Height: w.cfg.Height,
			Blocks: blocks,
			Fluids: fluids,
		})
	}

	exported := w.queue.export()
	queue := make([]snapshot.QueuedV1, 0, len(exported))
	for _, e := range exported {
		queue = append(queue, snapshot.QueuedV1{Pos: e.Pos, Due: e.Due})
	}

	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: 1,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		Seed:      w.cfg.Seed,
		TickRate:  w.cfg.TickRateHz,
		ObsRadius: w.cfg.ObsRadius,
		Height:    w.cfg.Height,
		FloorY:    w.cfg.FloorY,
		BoundaryR: w.cfg.BoundaryR,

		MaxUpdatesPerTick:   w.cfg.MaxUpdatesPerTick,
		RandomProbesPerTick: w.cfg.RandomProbesPerTick,
		SnapshotEveryTicks:  w.cfg.SnapshotEveryTicks,
		RateLimits: snapshot.RateLimitsV1{
			InstantWindowTicks: w.cfg.RateLimits.InstantWindowTicks,
			InstantMax:         w.cfg.RateLimits.InstantMax,
		},

		BlockPaletteDigest: w.catalogs.Blocks.PaletteDigest,
		FluidPaletteDigest: w.catalogs.Fluids.PaletteDigest,
		ContactsDigest:     w.catalogs.Contacts.Digest,

		Chunks: chunks,
		Queue:  queue,

		Counters: snapshot.CountersV1{
			NextSession: w.nextSessionNum.Load(),
		},
	}
}
