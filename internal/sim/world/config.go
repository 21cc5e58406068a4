package world

import "fluidcraft.ai/internal/sim/tuning"

type WorldConfig struct {
	ID         string
	TickRateHz int
	ObsRadius  int
	Height     int
	FloorY     int
	Seed       int64
	BoundaryR  int

	// Operational parameters. These are included in snapshots for
	// deterministic replay/resume.
	MaxUpdatesPerTick   int
	RandomProbesPerTick int
	SnapshotEveryTicks  int
	DigestEveryTicks    int
	RateLimits          RateLimitConfig

	TuningDigest string
}

type RateLimitConfig struct {
	InstantWindowTicks int
	InstantMax         int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "BASIN"
	}
	if c.TickRateHz == 0 {
		c.TickRateHz = 10
	}
	if c.ObsRadius <= 0 {
		c.ObsRadius = 8
	}
	if c.Height <= 0 {
		c.Height = 64
	}
	if c.FloorY <= 0 {
		c.FloorY = 8
	}
	if c.BoundaryR <= 0 {
		c.BoundaryR = 512
	}
	if c.MaxUpdatesPerTick <= 0 {
		c.MaxUpdatesPerTick = 4096
	}
	if c.RandomProbesPerTick <= 0 {
		c.RandomProbesPerTick = 16
	}
	if c.SnapshotEveryTicks <= 0 {
		c.SnapshotEveryTicks = 3000
	}
	if c.DigestEveryTicks <= 0 {
		c.DigestEveryTicks = 10
	}
	c.RateLimits.applyDefaults()
}

func (rl *RateLimitConfig) applyDefaults() {
	if rl.InstantWindowTicks <= 0 {
		rl.InstantWindowTicks = 50
	}
	if rl.InstantMax <= 0 {
		rl.InstantMax = 200
	}
}

// ConfigFromTuning maps the loaded tuning file onto a world config.
func ConfigFromTuning(id string, t tuning.Tuning, digest string) WorldConfig {
	cfg := WorldConfig{
		ID:                  id,
		TickRateHz:          t.TickRateHz,
		ObsRadius:           t.ObsRadius,
		Height:              t.Height,
		FloorY:              t.FloorY,
		Seed:                t.Seed,
		BoundaryR:           t.WorldBoundaryR,
		MaxUpdatesPerTick:   t.MaxUpdatesPerTick,
		RandomProbesPerTick: t.RandomProbesPerTick,
		SnapshotEveryTicks:  t.SnapshotEveryTicks,
		DigestEveryTicks:    t.DigestEveryTicks,
		RateLimits: RateLimitConfig{
			InstantWindowTicks: t.RateLimits.InstantWindowTicks,
			InstantMax:         t.RateLimits.InstantMax,
		},
		TuningDigest: digest,
	}
	cfg.applyDefaults()
	return cfg
}
