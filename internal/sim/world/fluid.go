package world

// FluidID is an interned handle into the fluid catalog palette. Identity is
// compared by handle, never by def pointer; FluidNone (palette index 0) is
// the distinguished "no fluid" sentinel.
type FluidID uint16

const FluidNone FluidID = 0

// maxFluidID bounds the palette so a fluid cell packs into one uint16.
const maxFluidID = (1 << 11) - 1

// FluidInstance is the immutable fluid snapshot stored per voxel. Grid writes
// replace the whole value; there is no partial mutation.
type FluidInstance struct {
	Fluid  FluidID
	Level  FluidLevel
	Static bool
}

func (fi FluidInstance) IsEmpty() bool { return fi.Fluid == FluidNone || fi.Level == LevelNone }

func (fi FluidInstance) WithLevel(l FluidLevel) FluidInstance {
	fi.Level = l
	return fi
}

func (fi FluidInstance) AsStatic() FluidInstance {
	fi.Static = true
	return fi
}

func (fi FluidInstance) AsDynamic() FluidInstance {
	fi.Static = false
	return fi
}

// Content is the per-voxel aggregate. The flow engine reads Block only to
// resolve its fillable capability and writes only the Fluid half.
type Content struct {
	Block uint16
	Fluid FluidInstance
}

// Fluid cells pack into a uint16 word for chunk storage and wire payloads:
// bits 0     static flag
// bits 1..4  level (0..8)
// bits 5..15 fluid palette id
func packFluid(fi FluidInstance) uint16 {
	if fi.IsEmpty() {
		return 0
	}
	w := uint16(fi.Fluid) << 5
	w |= uint16(fi.Level&0x0f) << 1
	if fi.Static {
		w |= 1
	}
	return w
}

func unpackFluid(w uint16) FluidInstance {
	if w == 0 {
		return FluidInstance{}
	}
	return FluidInstance{
		Fluid:  FluidID(w >> 5),
		Level:  FluidLevel((w >> 1) & 0x0f),
		Static: w&1 == 1,
	}
}
