package world

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
)

type ChunkKey struct {
	CX int
	CZ int
}

// Chunk is a 16x16 column of voxels, height gen.Height. Blocks holds block
// palette ids; Fluids holds packed fluid words (see packFluid).
type Chunk struct {
	CX, CZ int
	Blocks []uint16 // len = 16*16*height
	Fluids []uint16 // len = 16*16*height

	dirty bool
	hash  [32]byte
}

func (c *Chunk) index(x, y, z int) int {
	// x fastest, then z, then y
	return x + z*16 + y*16*16
}

func (c *Chunk) Block(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) SetBlock(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

func (c *Chunk) FluidWord(x, y, z int) uint16 {
	return c.Fluids[c.index(x, y, z)]
}

func (c *Chunk) SetFluidWord(x, y, z int, w uint16) {
	i := c.index(x, y, z)
	if c.Fluids[i] == w {
		return
	}
	c.Fluids[i] = w
	c.dirty = true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		// Hash both raw uint16 slices deterministically.
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		for _, v := range c.Fluids {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

type WorldGen struct {
	Seed      int64
	Height    int
	FloorY    int // top of the generated stone floor
	BoundaryR int // blocks, lateral

	// Palette ids for core blocks.
	Air     uint16
	Bedrock uint16
	Stone   uint16
	Gravel  uint16
}

type ChunkStore struct {
	gen WorldGen
	// Accessed only from the world loop goroutine.
	chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	return &ChunkStore{
		gen:    gen,
		chunks: map[ChunkKey]*Chunk{},
	}
}

func (s *ChunkStore) inBounds(pos Vec3i) bool {
	if pos.Y < 0 || pos.Y >= s.gen.Height {
		return false
	}
	if s.gen.BoundaryR > 0 {
		if pos.X < -s.gen.BoundaryR || pos.X > s.gen.BoundaryR || pos.Z < -s.gen.BoundaryR || pos.Z > s.gen.BoundaryR {
			return false
		}
	}
	return true
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

func (s *ChunkStore) ChunkAt(k ChunkKey) *Chunk { return s.chunks[k] }

// GetBlock must only be called for in-bounds positions; the world-level
// accessor handles the unloaded/out-of-range nil case.
func (s *ChunkStore) GetBlock(pos Vec3i) uint16 {
	ch, lx, lz := s.chunkFor(pos)
	return ch.Block(lx, pos.Y, lz)
}

func (s *ChunkStore) SetBlock(pos Vec3i, b uint16) {
	ch, lx, lz := s.chunkFor(pos)
	ch.SetBlock(lx, pos.Y, lz, b)
}

func (s *ChunkStore) GetFluidWord(pos Vec3i) uint16 {
	ch, lx, lz := s.chunkFor(pos)
	return ch.FluidWord(lx, pos.Y, lz)
}

func (s *ChunkStore) SetFluidWord(pos Vec3i, w uint16) {
	ch, lx, lz := s.chunkFor(pos)
	ch.SetFluidWord(lx, pos.Y, lz, w)
}

func (s *ChunkStore) chunkFor(pos Vec3i) (ch *Chunk, lx, lz int) {
	cx := floorDiv(pos.X, 16)
	cz := floorDiv(pos.Z, 16)
	lx = mod(pos.X, 16)
	lz = mod(pos.Z, 16)
	return s.getOrGenChunk(cx, cz), lx, lz
}

func (s *ChunkStore) getOrGenChunk(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.chunks[k]; ok {
		return ch
	}
	ch := &Chunk{
		CX:     cx,
		CZ:     cz,
		Blocks: make([]uint16, 16*16*s.gen.Height),
		Fluids: make([]uint16, 16*16*s.gen.Height),
	}
	s.generateChunk(ch)
	ch.dirty = true
	_ = ch.Digest() // initialize digest
	s.chunks[k] = ch
	return ch
}

// adoptChunk installs a chunk restored from a snapshot, bypassing generation.
func (s *ChunkStore) adoptChunk(ch *Chunk) {
	ch.dirty = true
	_ = ch.Digest()
	s.chunks[ChunkKey{CX: ch.CX, CZ: ch.CZ}] = ch
}

func (s *ChunkStore) generateChunk(ch *Chunk) {
	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			wx := ch.CX*16 + x
			wz := ch.CZ*16 + z
			for y := 0; y < s.gen.Height; y++ {
				ch.Blocks[ch.index(x, y, z)] = s.genBlockAt(wx, y, wz)
			}
		}
	}
}

// genBlockAt is the per-voxel generation rule: flat floor with small hashed
// relief, dry. generateChunk and PeekBlock must agree exactly.
func (s *ChunkStore) genBlockAt(wx, y, wz int) uint16 {
	relief := int(hash2(s.gen.Seed, wx, wz) % 3)
	top := s.gen.FloorY + relief
	if top >= s.gen.Height {
		top = s.gen.Height - 1
	}
	switch {
	case y == 0:
		return s.gen.Bedrock
	case y < top:
		return s.gen.Stone
	case y == top:
		if hash3(s.gen.Seed, wx, y, wz)%100 < 7 {
			return s.gen.Gravel
		}
		return s.gen.Stone
	}
	return s.gen.Air
}

// PeekBlock reads without forcing generation, so watching a region never
// changes which chunks are loaded. Out-of-bounds callers are expected to
// filter first.
func (s *ChunkStore) PeekBlock(pos Vec3i) uint16 {
	k := ChunkKey{CX: floorDiv(pos.X, 16), CZ: floorDiv(pos.Z, 16)}
	if ch, ok := s.chunks[k]; ok {
		return ch.Block(mod(pos.X, 16), pos.Y, mod(pos.Z, 16))
	}
	return s.genBlockAt(pos.X, pos.Y, pos.Z)
}

// PeekFluidWord mirrors PeekBlock; generated chunks start dry.
func (s *ChunkStore) PeekFluidWord(pos Vec3i) uint16 {
	k := ChunkKey{CX: floorDiv(pos.X, 16), CZ: floorDiv(pos.Z, 16)}
	if ch, ok := s.chunks[k]; ok {
		return ch.FluidWord(mod(pos.X, 16), pos.Y, mod(pos.Z, 16))
	}
	return 0
}

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

func hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}
