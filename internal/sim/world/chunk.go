package world

import (
	"crypto/sha256"

	"blec.dev/internal/sim/world/block"
)

const (
	ChunkSize   = 16
	ChunkVolume = ChunkSize * ChunkSize * ChunkSize
)

type ChunkKey struct {
	CX int
	CY int
	CZ int
}

// Chunk is a 16x16x16 block of the world. Blocks are stored x-fastest, then y, then z.
type Chunk struct {
	CX, CY, CZ int
	Blocks     [ChunkVolume]block.Block

	dirty bool
}

func NewChunk(cx, cy, cz int) *Chunk {
	c := &Chunk{CX: cx, CY: cy, CZ: cz}
	for i := range c.Blocks {
		c.Blocks[i] = block.New(block.Air)
	}
	c.dirty = true
	return c
}

func chunkIndex(x, y, z int) int {
	return x + y*ChunkSize + z*ChunkSize*ChunkSize
}

func inChunk(x, y, z int) bool {
	return x >= 0 && x < ChunkSize && y >= 0 && y < ChunkSize && z >= 0 && z < ChunkSize
}

func (c *Chunk) Position() ChunkKey { return ChunkKey{CX: c.CX, CY: c.CY, CZ: c.CZ} }

// GetBlock returns the live block at local coordinates, or nil when out of range.
func (c *Chunk) GetBlock(x, y, z int) *block.Block {
	if !inChunk(x, y, z) {
		return nil
	}
	return &c.Blocks[chunkIndex(x, y, z)]
}

// SetBlock writes b and marks the chunk dirty. Out of range writes are ignored.
func (c *Chunk) SetBlock(x, y, z int, b block.Block) {
	if !inChunk(x, y, z) {
		return
	}
	c.Blocks[chunkIndex(x, y, z)] = b
	c.dirty = true
}

// Fill resets every block to a fresh block of type t.
func (c *Chunk) Fill(t block.Type) {
	b := block.New(t)
	for i := range c.Blocks {
		c.Blocks[i] = b
	}
	c.dirty = true
}

func (c *Chunk) IsDirty() bool { return c.dirty }
func (c *Chunk) MarkDirty()    { c.dirty = true }
func (c *Chunk) MarkClean()    { c.dirty = false }

// Digest hashes every block field in storage order.
func (c *Chunk) Digest() [32]byte {
	h := sha256.New()
	var buf [7]byte
	for i := range c.Blocks {
		encodeBlock(buf[:], c.Blocks[i])
		h.Write(buf[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func encodeBlock(dst []byte, b block.Block) {
	dst[0] = byte(b.Type)
	dst[1] = boolByte(b.Powered)
	dst[2] = b.PowerLevel
	dst[3] = b.Rotation
	dst[4] = boolByte(b.Active)
	dst[5] = b.TicksRemaining
	dst[6] = b.DelayTicks
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
