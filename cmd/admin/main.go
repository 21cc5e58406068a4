package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fluidcraft.ai/internal/persistence/snapshot"
	"fluidcraft.ai/internal/sim/catalogs"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// stateCmd prints a snapshot's header, its scheduler load, and the total
// fluid inventory per species (level units summed over every cell).
func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	configDir := fs.String("configs", "./configs", "config directory (for fluid names)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -snapshot")
			os.Exit(2)
		}
		path = latestSnapshot(filepath.Join(*dataDir, "worlds", *worldID))
		if path == "" {
			fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
			os.Exit(2)
		}
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	fluidNames := map[uint16]string{}
	if cats, err := catalogs.Load(*configDir); err == nil {
		for name, id := range cats.Fluids.Index {
			fluidNames[id] = name
		}
	}

	// Packed fluid word layout: id<<5 | level<<1 | static.
	totals := map[uint16]int64{}
	activeCells := 0
	for _, ch := range snap.Chunks {
		for _, word := range ch.Fluids {
			if word == 0 {
				continue
			}
			id := word >> 5
			level := int64((word >> 1) & 0x0F)
			if id == 0 || level == 0 {
				continue
			}
			totals[id] += level
			if word&1 == 0 {
				activeCells++
			}
		}
	}

	out := struct {
		Snapshot string           `json:"snapshot"`
		Header   snapshot.Header  `json:"header"`
		Seed     int64            `json:"seed"`
		Height   int              `json:"height"`
		Chunks   int              `json:"chunks"`
		Pending  int              `json:"pending_updates"`
		Active   int              `json:"active_fluid_cells"`
		Fluids   map[string]int64 `json:"fluid_level_totals"`
	}{
		Snapshot: filepath.Base(path),
		Header:   snap.Header,
		Seed:     snap.Seed,
		Height:   snap.Height,
		Chunks:   len(snap.Chunks),
		Pending:  len(snap.Queue),
		Active:   activeCells,
		Fluids:   map[string]int64{},
	}
	for id, total := range totals {
		name := fluidNames[id]
		if name == "" {
			name = fmt.Sprintf("FLUID_%d", id)
		}
		out.Fluids[name] = total
	}
	printJSON(out)
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
