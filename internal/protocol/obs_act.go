package protocol

type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	SessionID       string `json:"session_id"`
	WorldID         string `json:"world_id"`

	Region RegionObs `json:"region"`
	Queue  QueueObs  `json:"queue"`
	Events []Event   `json:"events"`

	// Digest is only populated on digest cadence ticks.
	Digest string `json:"digest,omitempty"`
}

// RegionObs carries the voxel cube around the session's view center. Blocks
// and fluids travel as separate streams over the same scan order; fluids are
// packed words (id<<5 | level<<1 | static).
type RegionObs struct {
	Center   [3]int `json:"center"`
	Radius   int    `json:"radius"`
	Encoding string `json:"encoding"` // "RLE" or "DELTA"

	Blocks string `json:"blocks,omitempty"`
	Fluids string `json:"fluids,omitempty"`

	BlockOps []VoxelDeltaOp `json:"block_ops,omitempty"`
	FluidOps []VoxelDeltaOp `json:"fluid_ops,omitempty"`
}

type VoxelDeltaOp struct {
	D [3]int `json:"d"` // delta from center (dx,dy,dz)
	V uint16 `json:"v"` // palette id or packed fluid word
}

// QueueObs summarizes scheduler load for the tick.
type QueueObs struct {
	Pending int `json:"pending"`
	Ran     int `json:"ran"`
}

type Event map[string]interface{}

// ACT (client -> server). ActID is the client's batch id; resubmitting the
// same id returns the remembered ACK instead of re-applying the batch.
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	ActID           string       `json:"act_id,omitempty"`
	SessionID       string       `json:"session_id"`
	Instants        []InstantReq `json:"instants,omitempty"`
}

type InstantReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Pos [3]int `json:"pos,omitempty"`

	Block string `json:"block,omitempty"`

	Fluid  string `json:"fluid,omitempty"`
	Level  int    `json:"level,omitempty"`
	Static bool   `json:"static,omitempty"`

	Radius int `json:"radius,omitempty"`
	Ticks  int `json:"ticks,omitempty"`
}
