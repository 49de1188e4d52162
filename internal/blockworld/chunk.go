package blockworld

import (
	"crypto/sha256"
	"encoding/binary"
)

type ChunkKey struct {
	CX int
	CZ int
}

// slabBit marks a palette cell as a bottom-half slab.
const slabBit uint16 = 1 << 15

// Chunk is a 16x16 column spanning the world's full height. Blocks holds
// palette ids; 0 is AIR.
type Chunk struct {
	CX, CZ int
	Blocks []uint16 // len = 16*16*height

	minY   int
	height int
	dirty  bool
	hash   [32]byte
}

func newChunk(cx, cz, minY, height int) *Chunk {
	return &Chunk{
		CX:     cx,
		CZ:     cz,
		Blocks: make([]uint16, 16*16*height),
		minY:   minY,
		height: height,
		dirty:  true,
	}
}

func (c *Chunk) index(x, y, z int) int {
	// x fastest, then z, then y
	return x + z*16 + (y-c.minY)*256
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}
