package world

import (
	"github.com/zyedidia/generic/mapset"
)

// farFlowRange bounds the lateral search, in steps from the source.
const farFlowRange = 4

// farFlowHorizontal equalizes across a connected body: when plain spreading
// stalls, a source holding three or more units sends one unit to a connected
// cell sitting exactly two units lower.
func (e *FluidEngine) farFlowHorizontal(g FluidGrid, pos Vec3i, src FluidInstance) bool {
	if src.Level < LevelThree {
		return false
	}
	tpos, ok := e.searchFlowTarget(g, pos, src.Fluid, src.Level.Minus(LevelTwo))
	if !ok {
		return false
	}

	tc := g.GetContent(tpos)
	g.SetFluid(FluidInstance{Fluid: src.Fluid, Level: tc.Fluid.Level.Plus(LevelOne)}, tpos)
	if tc.Fluid.Static {
		e.sched.ScheduleUpdate(tpos)
	}
	e.debitOne(g, pos, src)
	return true
}

// searchFlowTarget walks the connected same-fluid body laterally, breadth
// first, looking for a cell at exactly the wanted level. Cells holding
// anything else are walls, and every crossing respects both fillable gates.
// Expansion follows the fixed lateral order, so the nearest match in that
// order wins deterministically.
func (e *FluidEngine) searchFlowTarget(g FluidGrid, start Vec3i, f FluidID, want FluidLevel) (Vec3i, bool) {
	type node struct {
		pos  Vec3i
		dist int
	}

	visited := mapset.New[Vec3i]()
	visited.Put(start)
	queue := []node{{pos: start}}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.dist >= farFlowRange {
			continue
		}
		for _, s := range SideLateral {
			np := n.pos.Offset(s)
			if visited.Has(np) {
				continue
			}
			if !e.canOutflow(g, n.pos, s, f) {
				continue
			}
			nc := g.GetContent(np)
			if nc == nil || nc.Fluid.Fluid != f {
				continue
			}
			if !e.canInflow(g, np, s.Opposite(), f) {
				continue
			}
			if nc.Fluid.Level == want {
				return np, true
			}
			visited.Put(np)
			queue = append(queue, node{pos: np, dist: n.dist + 1})
		}
	}
	return Vec3i{}, false
}
