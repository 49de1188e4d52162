// Package blockworld keeps the block columns around shops in memory so the
// teleport resolver can inspect them. All access happens on the primary
// context; nothing here is locked.
package blockworld

import (
	"context"
	"fmt"
	"sort"

	"shopscout.ai/internal/catalogs"
	"shopscout.ai/internal/geom"
	"shopscout.ai/internal/persistence/shopdb"
	"shopscout.ai/internal/safeloc"
)

type World struct {
	name   string
	minY   int
	maxY   int
	border geom.Border

	palette []string
	index   map[string]uint16

	chunks map[ChunkKey]*Chunk
	loaded map[ChunkKey]bool
}

func (w *World) Name() string        { return w.name }
func (w *World) MinY() int           { return w.minY }
func (w *World) MaxY() int           { return w.maxY }
func (w *World) Border() geom.Border { return w.border }

func (w *World) ChunkLoaded(cx, cz int) bool {
	return w.loaded[ChunkKey{CX: cx, CZ: cz}]
}

func (w *World) LoadChunk(cx, cz int) {
	w.loaded[ChunkKey{CX: cx, CZ: cz}] = true
}

func (w *World) UnloadChunk(cx, cz int) {
	delete(w.loaded, ChunkKey{CX: cx, CZ: cz})
}

func (w *World) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(w.loaded))
	for k := range w.loaded {
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

// BlockAt reads one cell. Above the build limit is AIR, below it VOID_AIR.
func (w *World) BlockAt(p geom.Vec3i) safeloc.Block {
	if p.Y >= w.maxY {
		return safeloc.Block{Material: "AIR"}
	}
	if p.Y < w.minY {
		return safeloc.Block{Material: "VOID_AIR"}
	}
	cx, cz := geom.ChunkOf(p.X, p.Z)
	ch, ok := w.chunks[ChunkKey{CX: cx, CZ: cz}]
	if !ok {
		return safeloc.Block{Material: "AIR"}
	}
	v := ch.Get(geom.Mod(p.X, 16), p.Y, geom.Mod(p.Z, 16))
	return safeloc.Block{Material: w.palette[v&^slabBit], BottomSlab: v&slabBit != 0}
}

func (w *World) SetBlock(p geom.Vec3i, b safeloc.Block) error {
	if p.Y < w.minY || p.Y >= w.maxY {
		return fmt.Errorf("block %v outside height %d..%d", p, w.minY, w.maxY-1)
	}
	id, ok := w.index[b.Material]
	if !ok {
		return fmt.Errorf("unknown block %q", b.Material)
	}
	if b.BottomSlab {
		id |= slabBit
	}
	cx, cz := geom.ChunkOf(p.X, p.Z)
	k := ChunkKey{CX: cx, CZ: cz}
	ch, ok := w.chunks[k]
	if !ok {
		if id == 0 {
			return nil
		}
		ch = newChunk(cx, cz, w.minY, w.maxY-w.minY)
		w.chunks[k] = ch
	}
	ch.Set(geom.Mod(p.X, 16), p.Y, geom.Mod(p.Z, 16), id)
	return nil
}

// Digest hashes a chunk's blocks; ok is false when the chunk holds no data.
func (w *World) Digest(cx, cz int) (d [32]byte, ok bool) {
	ch, ok := w.chunks[ChunkKey{CX: cx, CZ: cz}]
	if !ok {
		return d, false
	}
	return ch.Digest(), true
}

// Store is the set of worlds, implementing safeloc.Blocks.
type Store struct {
	blocks catalogs.BlockCatalog
	worlds map[string]*World
}

func New(blocks catalogs.BlockCatalog) *Store {
	return &Store{blocks: blocks, worlds: map[string]*World{}}
}

func (s *Store) AddWorld(name string, minY, maxY int, border geom.Border) (*World, error) {
	if maxY <= minY {
		return nil, fmt.Errorf("world %s: max_y %d must exceed min_y %d", name, maxY, minY)
	}
	if len(s.blocks.Palette) == 0 || s.blocks.Palette[0] != "AIR" {
		return nil, fmt.Errorf("block palette must start with AIR")
	}
	w := &World{
		name:    name,
		minY:    minY,
		maxY:    maxY,
		border:  border,
		palette: s.blocks.Palette,
		index:   s.blocks.Index,
		chunks:  map[ChunkKey]*Chunk{},
		loaded:  map[ChunkKey]bool{},
	}
	s.worlds[name] = w
	return w, nil
}

func (s *Store) Get(name string) (*World, bool) {
	w, ok := s.worlds[name]
	return w, ok
}

// Names lists the worlds in name order.
func (s *Store) Names() []string {
	out := make([]string, 0, len(s.worlds))
	for name := range s.worlds {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Store) World(name string) (safeloc.View, bool) {
	w, ok := s.worlds[name]
	if !ok {
		return nil, false
	}
	return w, true
}

// Load builds every world stored in db. Chunks holding blocks are loaded
// along with their eight neighbours.
func Load(ctx context.Context, db *shopdb.Store, blocks catalogs.BlockCatalog) (*Store, error) {
	s := New(blocks)
	worlds, err := db.Worlds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list worlds: %w", err)
	}
	for _, rec := range worlds {
		w, err := s.AddWorld(rec.Name, rec.MinY, rec.MaxY, rec.Border)
		if err != nil {
			return nil, err
		}
		err = db.Blocks(ctx, rec.Name, func(b shopdb.BlockRecord) error {
			if err := w.SetBlock(b.Pos, safeloc.Block{Material: b.Material, BottomSlab: b.BottomSlab}); err != nil {
				return fmt.Errorf("world %s: %w", rec.Name, err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		for k := range w.chunks {
			for dx := -1; dx <= 1; dx++ {
				for dz := -1; dz <= 1; dz++ {
					w.LoadChunk(k.CX+dx, k.CZ+dz)
				}
			}
		}
	}
	return s, nil
}
