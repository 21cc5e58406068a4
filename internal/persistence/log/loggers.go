// Package log writes the two append-only streams a world leaves behind:
// the per-tick event log that cmd/replay re-simulates against, and the audit
// trail of cell edits (operator instants, contact reactions, random-tick
// conversions).
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"fluidcraft.ai/internal/sim/world"
)

// rotatingJSONL appends one JSON document per line to hourly zstd files
// (<prefix>-YYYY-MM-DD-HH.jsonl.zst). Hourly boundaries keep replay seeks
// to a wall-clock window cheap without an index.
type rotatingJSONL struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func newRotatingJSONL(baseDir, prefix string) *rotatingJSONL {
	return &rotatingJSONL{baseDir: baseDir, prefix: prefix}
}

func (w *rotatingJSONL) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	// Flush per entry: a crash may lose the zstd frame tail but never a
	// line the buffer already handed to the encoder.
	return w.w.Flush()
}

func (w *rotatingJSONL) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *rotatingJSONL) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	// Append mode: a restart within the hour continues the file with a new
	// zstd frame, which decoders read back to back.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *rotatingJSONL) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err
}

// TickLogger records one entry per simulated tick: the joins, leaves and
// action batches applied plus the resulting state digest. Together with a
// snapshot this is sufficient to re-derive every later tick.
type TickLogger struct{ w *rotatingJSONL }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{w: newRotatingJSONL(filepath.Join(worldDir, "events"), "events")}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.write(v) }
func (l *TickLogger) Close() error                         { return l.w.close() }

// AuditLogger records who changed which cell: operator instants carry the
// session id as actor, engine-driven transitions carry "world".
type AuditLogger struct{ w *rotatingJSONL }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{w: newRotatingJSONL(filepath.Join(worldDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.w.write(v) }
func (l *AuditLogger) Close() error                        { return l.w.close() }
