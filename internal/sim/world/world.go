package world

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"fluidcraft.ai/internal/persistence/snapshot"
	"fluidcraft.ai/internal/protocol"
	"fluidcraft.ai/internal/sim/catalogs"
)

type JoinRequest struct {
	Name        string
	DeltaVoxels bool
	ObsRadius   int
	Out         chan []byte
	Resp        chan JoinResponse
}

type AttachRequest struct {
	ResumeToken string
	DeltaVoxels bool
	Out         chan []byte
	Resp        chan JoinResponse
}

type JoinResponse struct {
	Welcome  protocol.WelcomeMsg
	Catalogs []protocol.CatalogMsg
}

type ActionEnvelope struct {
	SessionID string
	Act       protocol.ActMsg
}

type RecordedJoin struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
}

// World is a single-threaded authoritative fluid simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	rules    *CatalogRules
	engine   *FluidEngine
	queue    *fluidQueue

	tick atomic.Uint64

	chunks *ChunkStore

	sessions map[string]*Session

	inbox  chan ActionEnvelope
	join   chan JoinRequest
	attach chan AttachRequest
	leave  chan string
	stop   chan struct{}

	// ACT batch dedupe; served from the loop goroutine.
	actDedupeReq chan actDedupeReq
	actDedupe    map[actDedupeKey]actDedupeEntry

	nextSessionNum atomic.Uint64

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	// Events produced this tick, broadcast to every session with the next OBS.
	worldEvents []protocol.Event

	// Per-tick counters, reset in step.
	updatesRan int
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick    uint64           `json:"tick"`
	Joins   []RecordedJoin   `json:"joins,omitempty"`
	Leaves  []string         `json:"leaves,omitempty"`
	Actions []RecordedAction `json:"actions,omitempty"`
	Updates int              `json:"updates,omitempty"`
	Pending int              `json:"pending,omitempty"`
	Digest  string           `json:"digest"`
}

type RecordedAction struct {
	SessionID string          `json:"session_id"`
	Act       protocol.ActMsg `json:"act"`
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"` // e.g. "SET_BLOCK", "CONTACT", "RANDOM_TICK"
	Pos    [3]int `json:"pos"`
	From   uint16 `json:"from"`
	To     uint16 `json:"to"`
	Fluid  string `json:"fluid,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	cfg.applyDefaults()

	// Resolve required block ids.
	b := func(id string) (uint16, error) {
		v, ok := cats.Blocks.Index[id]
		if !ok {
			return 0, fmt.Errorf("missing block id in palette: %s", id)
		}
		return v, nil
	}
	air, err := b("AIR")
	if err != nil {
		return nil, err
	}
	bedrock, err := b("BEDROCK")
	if err != nil {
		return nil, err
	}
	stone, err := b("STONE")
	if err != nil {
		return nil, err
	}
	gravel, err := b("GRAVEL")
	if err != nil {
		return nil, err
	}

	rules, err := NewCatalogRules(cats)
	if err != nil {
		return nil, err
	}

	gen := WorldGen{
		Seed:      cfg.Seed,
		Height:    cfg.Height,
		FloorY:    cfg.FloorY,
		BoundaryR: cfg.BoundaryR,
		Air:       air,
		Bedrock:   bedrock,
		Stone:     stone,
		Gravel:    gravel,
	}

	w := &World{
		cfg:          cfg,
		catalogs:     cats,
		rules:        rules,
		queue:        newFluidQueue(),
		chunks:       NewChunkStore(gen),
		sessions:     map[string]*Session{},
		inbox:        make(chan ActionEnvelope, 1024),
		join:         make(chan JoinRequest, 64),
		attach:       make(chan AttachRequest, 64),
		leave:        make(chan string, 64),
		stop:         make(chan struct{}),
		actDedupeReq: make(chan actDedupeReq, 64),
		actDedupe:    map[actDedupeKey]actDedupeEntry{},
	}
	contacts := NewContactManager(cats, w.onContactReaction)
	w.engine = NewFluidEngine(cfg.Seed, rules, contacts, w)
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Attach() chan<- AttachRequest { return w.attach }
func (w *World) Leave() chan<- string         { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Config returns a copy of the effective world configuration, including any
// operational parameters restored from a snapshot.
func (w *World) Config() WorldConfig {
	if w == nil {
		return WorldConfig{}
	}
	return w.cfg
}

// Run owns the world until ctx ends or Stop is called. With a positive tick
// rate the world steps on a wall-clock ticker; with a negative rate it steps
// only when a batch containing a STEP instant arrives, which keeps manual
// debugging sessions deterministic.
func (w *World) Run(ctx context.Context) error {
	var tickC <-chan time.Time
	if w.cfg.TickRateHz > 0 {
		interval := time.Second / time.Duration(w.cfg.TickRateHz)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	stepNow := func() {
		w.step(pendingJoins, pendingLeaves, pendingActions)
		pendingJoins = pendingJoins[:0]
		pendingLeaves = pendingLeaves[:0]
		pendingActions = pendingActions[:0]
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
			if tickC == nil {
				stepNow()
			}
		case req := <-w.attach:
			w.handleAttach(req)
		case req := <-w.actDedupeReq:
			w.handleActDedupeReq(req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
			if tickC == nil {
				for i, n := 0, stepCount(env.Act); i < n; i++ {
					stepNow()
				}
			}
		case <-tickC:
			stepNow()
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// maxManualStepBurst caps how far one STEP batch may advance a paused world.
const maxManualStepBurst = 256

// stepCount totals the manual ticks a batch requests. Each STEP instant
// advances at least one tick.
func stepCount(act protocol.ActMsg) int {
	n := 0
	for _, inst := range act.Instants {
		if inst.Type != InstantTypeStep {
			continue
		}
		if inst.Ticks > 1 {
			n += inst.Ticks
		} else {
			n++
		}
	}
	if n > maxManualStepBurst {
		n = maxManualStepBurst
	}
	return n
}

func (w *World) joinSession(name string, delta bool, radius int, out chan []byte) JoinResponse {
	if name == "" {
		name = "console"
	}
	idNum := w.nextSessionNum.Add(1)
	sessionID := fmt.Sprintf("S%d", idNum)

	if radius <= 0 || radius > w.cfg.ObsRadius {
		radius = w.cfg.ObsRadius
	}

	s := &Session{
		ID:          sessionID,
		Name:        name,
		View:        Vec3i{X: 0, Y: w.cfg.FloorY, Z: 0},
		Radius:      radius,
		Out:         out,
		DeltaVoxels: delta,
	}
	token := fmt.Sprintf("resume_%s_%d", w.cfg.ID, time.Now().UnixNano())
	s.ResumeToken = token
	w.sessions[sessionID] = s

	return JoinResponse{Welcome: w.welcomeFor(s), Catalogs: w.catalogMsgs()}
}

func (w *World) welcomeFor(s *Session) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       s.ID,
		ResumeToken:     s.ResumeToken,
		WorldID:         w.cfg.ID,
		WorldParams: protocol.WorldParams{
			TickRateHz: w.cfg.TickRateHz,
			ChunkSize:  [3]int{16, 16, w.cfg.Height},
			Height:     w.cfg.Height,
			ObsRadius:  w.cfg.ObsRadius,
			Seed:       w.cfg.Seed,
			BoundaryR:  w.cfg.BoundaryR,
		},
		Catalogs: protocol.CatalogDigests{
			BlockPalette:   protocol.DigestRef{Digest: w.catalogs.Blocks.PaletteDigest, Count: len(w.catalogs.Blocks.Palette)},
			FluidPalette:   protocol.DigestRef{Digest: w.catalogs.Fluids.PaletteDigest, Count: len(w.catalogs.Fluids.Palette)},
			ContactsDigest: w.catalogs.Contacts.Digest,
			TuningDigest:   w.cfg.TuningDigest,
		},
	}
}

func (w *World) catalogMsgs() []protocol.CatalogMsg {
	return []protocol.CatalogMsg{
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "block_palette",
			Digest:          w.catalogs.Blocks.PaletteDigest,
			Part:            1,
			TotalParts:      1,
			Data:            w.catalogs.Blocks.Palette,
		},
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "fluid_palette",
			Digest:          w.catalogs.Fluids.PaletteDigest,
			Part:            1,
			TotalParts:      1,
			Data:            w.catalogs.Fluids.Palette,
		},
	}
}

func (w *World) handleJoin(req JoinRequest) {
	resp := w.joinSession(req.Name, req.DeltaVoxels, req.ObsRadius, req.Out)
	if req.Resp != nil {
		req.Resp <- resp
	}
}

func (w *World) handleAttach(req AttachRequest) {
	token := strings.TrimSpace(req.ResumeToken)
	if token == "" || req.Out == nil {
		if req.Resp != nil {
			req.Resp <- JoinResponse{}
		}
		return
	}

	// Find session deterministically by iterating sorted ids.
	ids := make([]string, 0, len(w.sessions))
	for id := range w.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var s *Session
	for _, id := range ids {
		ss := w.sessions[id]
		if ss != nil && ss.ResumeToken == token {
			s = ss
			break
		}
	}
	if s == nil {
		if req.Resp != nil {
			req.Resp <- JoinResponse{}
		}
		return
	}

	// Rebind the socket and drop stale delta baselines.
	s.Out = req.Out
	s.DeltaVoxels = req.DeltaVoxels
	s.LastBlocks = nil
	s.LastFluids = nil

	// Rotate token on successful resume.
	s.ResumeToken = fmt.Sprintf("resume_%s_%d", w.cfg.ID, time.Now().UnixNano())

	if req.Resp != nil {
		req.Resp <- JoinResponse{Welcome: w.welcomeFor(s), Catalogs: w.catalogMsgs()}
	}
}

func (w *World) handleLeave(sessionID string) {
	s := w.sessions[sessionID]
	if s == nil {
		return
	}
	// Keep the session for resume; just unbind the socket.
	s.Out = nil
	s.LastBlocks = nil
	s.LastFluids = nil
}

func (w *World) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	nowTick := w.tick.Load()
	w.worldEvents = w.worldEvents[:0]

	// Apply leaves and joins deterministically at tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := w.sessions[id]; ok {
			w.handleLeave(id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := w.joinSession(req.Name, req.DeltaVoxels, req.ObsRadius, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, RecordedJoin{SessionID: resp.Welcome.SessionID, Name: req.Name})
	}

	// Apply actions in server_receive_order (the inbox order).
	recorded := make([]RecordedAction, 0, len(actions))
	for _, env := range actions {
		s := w.sessions[env.SessionID]
		if s == nil {
			continue
		}
		env.Act.SessionID = env.SessionID // trust session identity
		recorded = append(recorded, RecordedAction{SessionID: env.SessionID, Act: env.Act})
		w.applyAct(s, env.Act, nowTick)
	}

	// Systems: scheduled flow first, then slow random transitions.
	w.updatesRan = w.systemFluids(nowTick)
	w.systemRandom(nowTick)

	// Build + send OBS for each attached session.
	digestTick := w.cfg.DigestEveryTicks > 0 && nowTick%uint64(w.cfg.DigestEveryTicks) == 0
	obsDigest := ""
	if digestTick {
		obsDigest = w.stateDigest(nowTick)
	}
	for id, s := range w.sessions {
		if s == nil || s.Out == nil {
			continue
		}
		obs := w.buildObs(s, nowTick)
		obs.SessionID = id
		obs.Digest = obsDigest
		b, err := json.Marshal(obs)
		if err != nil {
			continue
		}
		sendLatest(s.Out, b)
	}

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:    nowTick,
			Joins:   recordedJoins,
			Leaves:  recordedLeaves,
			Actions: recorded,
			Updates: w.updatesRan,
			Pending: w.queue.pending(),
			Digest:  digest,
		})
	}

	if w.snapshotSink != nil && nowTick != 0 && nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
		snap := w.ExportSnapshot(nowTick)
		select {
		case w.snapshotSink <- snap:
		default:
			// Drop snapshot if sink is backed up.
		}
	}

	w.tick.Add(1)
}

// StepOnce advances the world by a single tick using the same ordering
// semantics as the server. It is primarily intended for deterministic
// replays/tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.step(joins, leaves, actions)
	return tick, w.stateDigest(tick)
}

// stateDigest hashes everything that defines simulated state: the tick, all
// loaded chunks (blocks and fluids), and the pending update queue. Sessions
// are deliberately excluded.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	binary.LittleEndian.PutUint64(tmp[:], nowTick)
	h.Write(tmp[:])

	for _, k := range w.chunks.LoadedChunkKeys() {
		ch := w.chunks.ChunkAt(k)
		if ch == nil {
			continue
		}
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(k.CX)))
		h.Write(tmp[:])
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(k.CZ)))
		h.Write(tmp[:])
		d := ch.Digest()
		h.Write(d[:])
	}

	for _, qe := range w.queue.export() {
		for _, v := range qe.Pos {
			binary.LittleEndian.PutUint64(tmp[:], uint64(int64(v)))
			h.Write(tmp[:])
		}
		binary.LittleEndian.PutUint64(tmp[:], qe.Due)
		h.Write(tmp[:])
	}

	return hex.EncodeToString(h.Sum(nil))
}

func (w *World) audit(e AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(e)
}

// broadcastEvent queues an event for every session's next OBS.
func (w *World) broadcastEvent(ev protocol.Event) {
	w.worldEvents = append(w.worldEvents, ev)
}

func (w *World) blockName(b uint16) string {
	if int(b) < len(w.catalogs.Blocks.Palette) {
		return w.catalogs.Blocks.Palette[b]
	}
	return fmt.Sprintf("UNKNOWN_%d", b)
}

func (w *World) fluidName(f FluidID) string {
	if int(f) < len(w.catalogs.Fluids.Palette) {
		return w.catalogs.Fluids.Palette[f]
	}
	return fmt.Sprintf("UNKNOWN_%d", f)
}

func sendLatest(ch chan []byte, b []byte) {
	if ch == nil {
		return
	}
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
