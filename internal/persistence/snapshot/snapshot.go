package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed      int64 `json:"seed"`
	TickRate  int   `json:"tick_rate_hz"`
	ObsRadius int   `json:"obs_radius"`
	Height    int   `json:"height"`
	FloorY    int   `json:"floor_y"`
	BoundaryR int   `json:"boundary_r"`

	// Operational parameters (captured for deterministic replay/resume).
	MaxUpdatesPerTick   int          `json:"max_updates_per_tick,omitempty"`
	RandomProbesPerTick int          `json:"random_probes_per_tick,omitempty"`
	SnapshotEveryTicks  int          `json:"snapshot_every_ticks,omitempty"`
	RateLimits          RateLimitsV1 `json:"rate_limits,omitempty"`

	// Catalog digests pin the palettes this state was simulated under.
	BlockPaletteDigest string `json:"block_palette_digest,omitempty"`
	FluidPaletteDigest string `json:"fluid_palette_digest,omitempty"`
	ContactsDigest     string `json:"contacts_digest,omitempty"`

	Chunks []ChunkV1  `json:"chunks"`
	Queue  []QueuedV1 `json:"queue"`

	Counters CountersV1 `json:"counters"`
}

type RateLimitsV1 struct {
	InstantWindowTicks int `json:"instant_window_ticks,omitempty"`
	InstantMax         int `json:"instant_max,omitempty"`
}

type CountersV1 struct {
	NextSession uint64 `json:"next_session"`
}

type ChunkV1 struct {
	CX     int      `json:"cx"`
	CZ     int      `json:"cz"`
	Height int      `json:"height"`
	Blocks []uint16 `json:"blocks"`
	Fluids []uint16 `json:"fluids"`
}

// QueuedV1 is one pending scheduler entry.
type QueuedV1 struct {
	Pos [3]int `json:"pos"`
	Due uint64 `json:"due"`
}

type ChunkKeyV1 struct {
	CX int `json:"cx"`
	CZ int `json:"cz"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Read header line (ignore it for now, gob also contains header).
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
