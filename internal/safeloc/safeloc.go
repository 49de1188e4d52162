// Package safeloc finds a spot next to a shop where a player can be placed
// without landing inside a block or on something that hurts.
package safeloc

import (
	"sort"

	"shopscout.ai/internal/catalogs"
	"shopscout.ai/internal/config"
	"shopscout.ai/internal/geom"
)

// Block is what a world reports for one cell.
type Block struct {
	Material   string
	BottomSlab bool
}

// View is read access to one world. Reads must happen on the primary context.
type View interface {
	BlockAt(p geom.Vec3i) Block
	ChunkLoaded(cx, cz int) bool
	Border() geom.Border
	MinY() int
	MaxY() int
}

type Blocks interface {
	World(name string) (View, bool)
}

type Options struct {
	Mode        string // config.SafeLocationRadius or config.SafeLocationAdjacent
	MaxDownward int
	MaxUpward   int
	ShopSign    string
}

func OptionsFrom(t config.TeleportSettings) Options {
	return Options{
		Mode:        t.SafeLocationMode,
		MaxDownward: t.MaxDownwardSearch,
		MaxUpward:   t.MaxUpwardSearch,
		ShopSign:    t.ShopSignMaterial,
	}
}

func (o Options) normalized() Options {
	if o.MaxDownward <= 0 {
		o.MaxDownward = 20
	}
	if o.MaxUpward <= 0 {
		o.MaxUpward = 32
	}
	if o.Mode != config.SafeLocationAdjacent {
		o.Mode = config.SafeLocationRadius
	}
	return o
}

type Resolver struct {
	blocks Blocks
	class  catalogs.Classification
}

func New(blocks Blocks, class catalogs.Classification) *Resolver {
	return &Resolver{blocks: blocks, class: class}
}

// Resolve returns a landing location near target facing it, or false when the
// world or chunk is unavailable or nothing safe is in range.
func (r *Resolver) Resolve(target geom.Location, opts Options) (geom.Location, bool) {
	view, ok := r.blocks.World(target.World)
	if !ok {
		return geom.Location{}, false
	}
	origin := target.Block()
	if !loaded(view, origin) {
		return geom.Location{}, false
	}
	opts = opts.normalized()
	s := scan{r: r, view: view, opts: opts}

	var (
		landing geom.Vec3i
		found   bool
	)
	if opts.Mode == config.SafeLocationAdjacent {
		landing, found = s.adjacent(origin)
	} else {
		landing, found = s.radius(origin)
	}
	if !found || !s.safeBody(landing) {
		return geom.Location{}, false
	}
	return geom.Face(geom.CenterOf(target.World, landing), geom.CenterOf(target.World, origin)), true
}

func loaded(view View, p geom.Vec3i) bool {
	return view.ChunkLoaded(geom.ChunkOf(p.X, p.Z))
}

var adjacentOffsets = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

const (
	radiusXZ = 3
	radiusY  = 5
)

// radiusOffsets lists the box around the target nearest first. Built once.
var radiusOffsets = func() []geom.Vec3i {
	out := make([]geom.Vec3i, 0, (2*radiusXZ+1)*(2*radiusXZ+1)*(2*radiusY+1)-1)
	for dx := -radiusXZ; dx <= radiusXZ; dx++ {
		for dy := -radiusY; dy <= radiusY; dy++ {
			for dz := -radiusXZ; dz <= radiusXZ; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out = append(out, geom.Vec3i{X: dx, Y: dy, Z: dz})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return norm2(out[i]) < norm2(out[j]) })
	return out
}()

func norm2(v geom.Vec3i) int { return v.X*v.X + v.Y*v.Y + v.Z*v.Z }

type scan struct {
	r    *Resolver
	view View
	opts Options
}

func (s scan) material(p geom.Vec3i) string { return s.view.BlockAt(p).Material }

func (s scan) inHeight(p geom.Vec3i) bool {
	return p.Y >= s.view.MinY() && p.Y+1 <= s.view.MaxY()
}

func (s scan) adjacent(origin geom.Vec3i) (geom.Vec3i, bool) {
	c := s.r.class
	for _, off := range adjacentOffsets {
		feet := origin.Add(off[0], 0, off[1])
		if !loaded(s.view, feet) || !s.inHeight(feet) {
			continue
		}
		fm := s.material(feet)
		if !c.IsAir(fm) && !c.HasTag(fm, catalogs.TagWallSign) {
			continue
		}
		head := feet.Up()
		if !c.NonSuffocating(s.material(head)) || !s.passable(head) {
			continue
		}
		if landing, ok := s.below(feet); ok {
			return landing, true
		}
	}
	return geom.Vec3i{}, false
}

func (s scan) radius(origin geom.Vec3i) (geom.Vec3i, bool) {
	c := s.r.class
	border := s.view.Border()
	for _, off := range radiusOffsets {
		feet := origin.Add(off.X, off.Y, off.Z)
		if !border.ContainsBlock(feet) || !loaded(s.view, feet) || !s.inHeight(feet) {
			continue
		}
		if !c.NonSuffocating(s.material(feet)) || !c.NonSuffocating(s.material(feet.Up())) {
			continue
		}
		if landing, ok := s.below(feet); ok {
			return landing, true
		}
	}
	return s.upward(origin)
}

// passable treats a bottom slab as blocking head room.
func (s scan) passable(p geom.Vec3i) bool {
	b := s.view.BlockAt(p)
	if s.r.class.HasTag(b.Material, catalogs.TagSlab) {
		return !b.BottomSlab
	}
	return s.r.class.Passable(b.Material)
}

// below walks down from feet past air and shop signs. The first other block
// must be solid and harmless; the landing is the cell above it.
func (s scan) below(feet geom.Vec3i) (geom.Vec3i, bool) {
	c := s.r.class
	minY := s.view.MinY()
	for i := 1; i <= s.opts.MaxDownward; i++ {
		p := feet.Add(0, -i, 0)
		if p.Y < minY {
			break
		}
		m := s.material(p)
		if c.IsAir(m) || (s.opts.ShopSign != "" && m == s.opts.ShopSign) {
			continue
		}
		if c.Solid(m) && !c.Damaging(m) {
			return p.Up(), true
		}
		break
	}
	return geom.Vec3i{}, false
}

// upward looks straight above origin for two free cells over a solid floor.
func (s scan) upward(origin geom.Vec3i) (geom.Vec3i, bool) {
	c := s.r.class
	top := origin.Y + s.opts.MaxUpward
	if maxY := s.view.MaxY() - 1; top > maxY {
		top = maxY
	}
	for y := origin.Y + 1; y <= top; y++ {
		feet := geom.Vec3i{X: origin.X, Y: y, Z: origin.Z}
		floor := s.material(feet.Down())
		if !c.Solid(floor) || c.Damaging(floor) || c.IsAir(floor) {
			continue
		}
		if s.safeBody(feet) {
			return feet, true
		}
	}
	return geom.Vec3i{}, false
}

// safeBody reports whether a player standing at feet is neither hurt nor stuck.
func (s scan) safeBody(feet geom.Vec3i) bool {
	c := s.r.class
	for _, p := range [2]geom.Vec3i{feet, feet.Up()} {
		m := s.material(p)
		if c.Damaging(m) || !c.NonSuffocating(m) {
			return false
		}
	}
	return true
}
