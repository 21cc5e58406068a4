package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrVersion         = "E_VERSION"

	// Action layer. Denials are results, not faults: a gated or unhandled
	// flow answers with one of these instead of an exception.
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrOutOfBounds  = "E_OUT_OF_BOUNDS"
	ErrUnknownBlock = "E_UNKNOWN_BLOCK"
	ErrUnknownFluid = "E_UNKNOWN_FLUID"
	ErrBadLevel     = "E_BAD_LEVEL"
	ErrEmpty        = "E_EMPTY"
	ErrRateLimit    = "E_RATE_LIMIT"
	ErrStale        = "E_STALE"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrVersion:         {},
	ErrBadRequest:      {},
	ErrOutOfBounds:     {},
	ErrUnknownBlock:    {},
	ErrUnknownFluid:    {},
	ErrBadLevel:        {},
	ErrEmpty:           {},
	ErrRateLimit:       {},
	ErrStale:           {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
