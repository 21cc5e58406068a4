package main

import (
	"path/filepath"

	"fluidcraft.ai/internal/persistence/indexdb"
	"fluidcraft.ai/internal/persistence/snapshot"
	"fluidcraft.ai/internal/sim/catalogs"
	"fluidcraft.ai/internal/sim/tuning"
	"fluidcraft.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	world.AuditLogger
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	dbPath := filepath.Join(worldDir, "index", "world.sqlite")
	return indexdb.OpenSQLite(dbPath)
}
