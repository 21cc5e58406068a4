package world

import (
	"fluidcraft.ai/internal/protocol"
	simenc "fluidcraft.ai/internal/sim/encoding"
)

func (w *World) buildObs(s *Session, nowTick uint64) protocol.ObsMsg {
	events := s.TakeEvents()
	if len(w.worldEvents) > 0 {
		events = append(events, w.worldEvents...)
	}
	if events == nil {
		events = []protocol.Event{}
	}

	return protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		WorldID:         w.cfg.ID,
		Region:          w.buildObsRegion(s),
		Queue:           protocol.QueueObs{Pending: w.queue.pending(), Ran: w.updatesRan},
		Events:          events,
	}
}

// buildObsRegion scans the cube around the session view. Blocks and packed
// fluid words travel as two streams over the same scan order (dy outer, dz
// middle, dx inner) so delta offsets line up across both. Scans peek rather
// than load: observing a region must not change which chunks exist.
func (w *World) buildObsRegion(s *Session) protocol.RegionObs {
	r := s.Radius
	center := s.View
	dim := 2*r + 1
	total := dim * dim * dim
	blocks := make([]uint16, total)
	fluids := make([]uint16, total)

	i := 0
	for dy := -r; dy <= r; dy++ {
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				p := Vec3i{X: center.X + dx, Y: center.Y + dy, Z: center.Z + dz}
				if w.chunks.inBounds(p) {
					blocks[i] = w.chunks.PeekBlock(p)
					fluids[i] = w.chunks.PeekFluidWord(p)
				}
				i++
			}
		}
	}

	region := protocol.RegionObs{
		Center:   [3]int{center.X, center.Y, center.Z},
		Radius:   r,
		Encoding: "RLE",
	}

	if s.DeltaVoxels && len(s.LastBlocks) == total && len(s.LastFluids) == total {
		bops := deltaOps(blocks, s.LastBlocks, r)
		fops := deltaOps(fluids, s.LastFluids, r)
		n := len(bops) + len(fops)
		if n > 0 && n < total/2 {
			region.Encoding = "DELTA"
			region.BlockOps = bops
			region.FluidOps = fops
		} else {
			region.Blocks = simenc.EncodeRLE(blocks)
			region.Fluids = simenc.EncodeRLE(fluids)
		}
	} else {
		region.Blocks = simenc.EncodeRLE(blocks)
		region.Fluids = simenc.EncodeRLE(fluids)
	}

	s.LastBlocks = blocks
	s.LastFluids = fluids
	return region
}

func deltaOps(curr, last []uint16, r int) []protocol.VoxelDeltaOp {
	ops := make([]protocol.VoxelDeltaOp, 0, 64)
	i := 0
	for dy := -r; dy <= r; dy++ {
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				if curr[i] != last[i] {
					ops = append(ops, protocol.VoxelDeltaOp{D: [3]int{dx, dy, dz}, V: curr[i]})
				}
				i++
			}
		}
	}
	return ops
}
