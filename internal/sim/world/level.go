package world

import "fmt"

// FluidLevel is a discrete fill amount in eighths of a voxel.
type FluidLevel uint8

const (
	LevelNone  FluidLevel = 0
	LevelOne   FluidLevel = 1
	LevelTwo   FluidLevel = 2
	LevelThree FluidLevel = 3
	LevelFour  FluidLevel = 4
	LevelFive  FluidLevel = 5
	LevelSix   FluidLevel = 6
	LevelSeven FluidLevel = 7
	LevelFull  FluidLevel = 8
)

func (l FluidLevel) IsNone() bool { return l == LevelNone }
func (l FluidLevel) IsFull() bool { return l == LevelFull }

// Plus adds d to l. Callers prove capacity first (the flow engine always
// checks Full-target headroom before adding); leaving [0,8] is a logic
// defect, not a data condition.
func (l FluidLevel) Plus(d FluidLevel) FluidLevel {
	s := uint8(l) + uint8(d)
	if s > uint8(LevelFull) {
		panic(fmt.Sprintf("world: fluid level overflow: %d+%d", l, d))
	}
	return FluidLevel(s)
}

// Minus subtracts d from l. Same contract as Plus.
func (l FluidLevel) Minus(d FluidLevel) FluidLevel {
	if d > l {
		panic(fmt.Sprintf("world: fluid level underflow: %d-%d", l, d))
	}
	return FluidLevel(uint8(l) - uint8(d))
}

func MaxLevel(a, b FluidLevel) FluidLevel {
	if a > b {
		return a
	}
	return b
}

// LevelFromInt clamps an external (config/wire) integer into [0,8].
func LevelFromInt(v int) FluidLevel {
	if v <= 0 {
		return LevelNone
	}
	if v >= int(LevelFull) {
		return LevelFull
	}
	return FluidLevel(v)
}

// Fraction is the filled proportion of the voxel.
func (l FluidLevel) Fraction() float64 { return float64(l) / float64(LevelFull) }

// BlockHeight is the fluid surface height for a voxel of the given extent,
// proportional to the fill fraction.
func (l FluidLevel) BlockHeight(voxelHeight float64) float64 {
	return voxelHeight * l.Fraction()
}
