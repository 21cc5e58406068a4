package world

import "fmt"

// Side identifies one face of a voxel. The enumeration order is part of the
// simulation contract: lateral spread and puddle scans walk SideLateral in
// declaration order, so reordering changes world evolution.
type Side uint8

const (
	SideDown Side = iota
	SideUp
	SideNorth // -Z
	SideSouth // +Z
	SideWest  // -X
	SideEast  // +X
)

// SideAll lists all six faces in canonical order.
var SideAll = [6]Side{SideDown, SideUp, SideNorth, SideSouth, SideWest, SideEast}

// SideLateral lists the four horizontal faces in canonical order.
var SideLateral = [4]Side{SideNorth, SideSouth, SideWest, SideEast}

func (s Side) Delta() Vec3i {
	switch s {
	case SideDown:
		return Vec3i{Y: -1}
	case SideUp:
		return Vec3i{Y: 1}
	case SideNorth:
		return Vec3i{Z: -1}
	case SideSouth:
		return Vec3i{Z: 1}
	case SideWest:
		return Vec3i{X: -1}
	case SideEast:
		return Vec3i{X: 1}
	}
	panic(fmt.Sprintf("world: unknown side %d", uint8(s)))
}

func (s Side) Opposite() Side {
	switch s {
	case SideDown:
		return SideUp
	case SideUp:
		return SideDown
	case SideNorth:
		return SideSouth
	case SideSouth:
		return SideNorth
	case SideWest:
		return SideEast
	case SideEast:
		return SideWest
	}
	panic(fmt.Sprintf("world: unknown side %d", uint8(s)))
}

func (s Side) IsVertical() bool { return s == SideDown || s == SideUp }

func (s Side) String() string {
	switch s {
	case SideDown:
		return "DOWN"
	case SideUp:
		return "UP"
	case SideNorth:
		return "NORTH"
	case SideSouth:
		return "SOUTH"
	case SideWest:
		return "WEST"
	case SideEast:
		return "EAST"
	}
	panic(fmt.Sprintf("world: unknown side %d", uint8(s)))
}

// SideByName resolves a config-file side name. Unknown names return false;
// they are a data error, not a programmer error.
func SideByName(name string) (Side, bool) {
	switch name {
	case "DOWN":
		return SideDown, true
	case "UP":
		return SideUp, true
	case "NORTH":
		return SideNorth, true
	case "SOUTH":
		return SideSouth, true
	case "WEST":
		return SideWest, true
	case "EAST":
		return SideEast, true
	}
	return 0, false
}
