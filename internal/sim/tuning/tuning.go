package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int   `yaml:"tick_rate_hz"`
	Height             int   `yaml:"height"`
	FloorY             int   `yaml:"floor_y"`
	ObsRadius          int   `yaml:"obs_radius"`
	WorldBoundaryR     int   `yaml:"world_boundary_r"`
	SnapshotEveryTicks int   `yaml:"snapshot_every_ticks"`
	DigestEveryTicks   int   `yaml:"digest_every_ticks"`
	Seed               int64 `yaml:"seed"`

	MaxUpdatesPerTick   int `yaml:"max_updates_per_tick"`
	RandomProbesPerTick int `yaml:"random_probes_per_tick"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

type RateLimits struct {
	InstantWindowTicks int `yaml:"instant_window_ticks"`
	InstantMax         int `yaml:"instant_max"`
}

// Load reads tuning.yaml and applies defaults for anything unset. The digest
// covers the raw bytes so replays can pin the exact tuning they ran under.
func Load(path string) (Tuning, string, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, "", err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, "", fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	sum := sha256.Sum256(raw)
	return t, hex.EncodeToString(sum[:]), nil
}

// Default returns the tuning used when no file is given.
func Default() Tuning {
	var t Tuning
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	if t.TickRateHz == 0 {
		t.TickRateHz = 10
	}
	if t.Height <= 0 {
		t.Height = 64
	}
	if t.FloorY <= 0 {
		t.FloorY = 8
	}
	if t.ObsRadius <= 0 {
		t.ObsRadius = 8
	}
	if t.WorldBoundaryR <= 0 {
		t.WorldBoundaryR = 512
	}
	if t.SnapshotEveryTicks <= 0 {
		t.SnapshotEveryTicks = 3000
	}
	if t.DigestEveryTicks <= 0 {
		t.DigestEveryTicks = 10
	}
	if t.Seed == 0 {
		t.Seed = 1337
	}
	if t.MaxUpdatesPerTick <= 0 {
		t.MaxUpdatesPerTick = 4096
	}
	if t.RandomProbesPerTick <= 0 {
		t.RandomProbesPerTick = 16
	}
	if t.RateLimits.InstantWindowTicks <= 0 {
		t.RateLimits.InstantWindowTicks = 50
	}
	if t.RateLimits.InstantMax <= 0 {
		t.RateLimits.InstantMax = 200
	}
}
