package world

import "fluidcraft.ai/internal/protocol"

type instantHandler func(*World, *Session, protocol.InstantReq, uint64)

var instantDispatch = map[string]instantHandler{
	InstantTypeSetBlock:   handleInstantSetBlock,
	InstantTypePlaceFluid: handleInstantPlaceFluid,
	InstantTypeDrain:      handleInstantDrain,
	InstantTypeSetView:    handleInstantSetView,
	InstantTypeStep:       handleInstantStep,
}
