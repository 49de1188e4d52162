package safeloc

import (
	"math"
	"math/rand"
	"testing"

	"shopscout.ai/internal/catalogs"
	"shopscout.ai/internal/config"
	"shopscout.ai/internal/geom"
)

type fakeWorld struct {
	blocks   map[geom.Vec3i]Block
	unloaded map[[2]int]bool
	border   geom.Border
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{blocks: map[geom.Vec3i]Block{}, unloaded: map[[2]int]bool{}}
}

func (w *fakeWorld) set(x, y, z int, m string) {
	w.blocks[geom.Vec3i{X: x, Y: y, Z: z}] = Block{Material: m}
}

func (w *fakeWorld) fill(x0, y0, z0, x1, y1, z1 int, m string) {
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			for z := z0; z <= z1; z++ {
				w.set(x, y, z, m)
			}
		}
	}
}

func (w *fakeWorld) BlockAt(p geom.Vec3i) Block {
	if b, ok := w.blocks[p]; ok {
		return b
	}
	return Block{Material: "AIR"}
}

func (w *fakeWorld) ChunkLoaded(cx, cz int) bool { return !w.unloaded[[2]int{cx, cz}] }
func (w *fakeWorld) Border() geom.Border         { return w.border }
func (w *fakeWorld) MinY() int                   { return -64 }
func (w *fakeWorld) MaxY() int                   { return 320 }

type fakeBlocks map[string]*fakeWorld

func (f fakeBlocks) World(name string) (View, bool) {
	w, ok := f[name]
	if !ok {
		return nil, false
	}
	return w, true
}

func newResolver(w *fakeWorld) *Resolver {
	return New(fakeBlocks{"world": w}, catalogs.Defaults().Blocks.Classification())
}

func adjacent() Options {
	return Options{Mode: config.SafeLocationAdjacent, MaxDownward: 20, MaxUpward: 32, ShopSign: "OAK_WALL_SIGN"}
}

func radius() Options {
	return Options{Mode: config.SafeLocationRadius, MaxDownward: 20, MaxUpward: 32, ShopSign: "OAK_WALL_SIGN"}
}

// shopOnFloor puts a chest at the origin on a stone floor.
func shopOnFloor() *fakeWorld {
	w := newFakeWorld()
	w.fill(-5, 63, -5, 5, 63, 5, "STONE")
	w.set(0, 64, 0, "CHEST")
	return w
}

var shop = geom.Location{World: "world", X: 0, Y: 64, Z: 0}

func wantBlock(t *testing.T, got geom.Location, x, y, z int) {
	t.Helper()
	if got.Block() != (geom.Vec3i{X: x, Y: y, Z: z}) {
		t.Fatalf("landing mismatch: got %v want %d,%d,%d", got.Block(), x, y, z)
	}
	if got.X != float64(x)+0.5 || got.Z != float64(z)+0.5 {
		t.Fatalf("landing not centred: %+v", got)
	}
}

func TestResolve_UnknownWorldOrUnloadedChunk(t *testing.T) {
	w := shopOnFloor()
	r := newResolver(w)
	if _, ok := r.Resolve(geom.Location{World: "nether"}, radius()); ok {
		t.Fatalf("unknown world should be unavailable")
	}
	w.unloaded[[2]int{0, 0}] = true
	if _, ok := r.Resolve(shop, radius()); ok {
		t.Fatalf("unloaded chunk should be unavailable")
	}
}

func TestAdjacent_FirstNeighbourFacingShop(t *testing.T) {
	r := newResolver(shopOnFloor())
	got, ok := r.Resolve(shop, adjacent())
	if !ok {
		t.Fatalf("expected a landing")
	}
	wantBlock(t, got, 1, 64, 0)
	if math.Abs(float64(got.Yaw)-90) > 1e-4 || got.Pitch != 0 {
		t.Fatalf("orientation mismatch: yaw=%v pitch=%v want 90/0", got.Yaw, got.Pitch)
	}
}

func TestAdjacent_SkipsBlockedNeighbours(t *testing.T) {
	w := shopOnFloor()
	// +x feet blocked, -x no head room, +z hot floor.
	w.set(1, 64, 0, "STONE")
	w.blocks[geom.Vec3i{X: -1, Y: 65, Z: 0}] = Block{Material: "OAK_SLAB", BottomSlab: true}
	w.set(0, 63, 1, "MAGMA_BLOCK")
	r := newResolver(w)

	got, ok := r.Resolve(shop, adjacent())
	if !ok {
		t.Fatalf("expected a landing")
	}
	wantBlock(t, got, 0, 64, -1)
	if math.Abs(float64(got.Yaw)-0) > 1e-4 {
		t.Fatalf("yaw mismatch: got %v want 0", got.Yaw)
	}
}

func TestAdjacent_TopSlabLeavesHeadRoom(t *testing.T) {
	w := shopOnFloor()
	w.blocks[geom.Vec3i{X: 1, Y: 65, Z: 0}] = Block{Material: "OAK_SLAB"}
	got, ok := newResolver(w).Resolve(shop, adjacent())
	if !ok {
		t.Fatalf("expected a landing")
	}
	wantBlock(t, got, 1, 64, 0)
}

func TestAdjacent_DropsToFloorPastShopSign(t *testing.T) {
	w := newFakeWorld()
	w.set(0, 64, 0, "CHEST")
	w.set(1, 63, 0, "OAK_WALL_SIGN")
	w.set(1, 60, 0, "STONE")
	got, ok := newResolver(w).Resolve(shop, adjacent())
	if !ok {
		t.Fatalf("expected a landing")
	}
	wantBlock(t, got, 1, 61, 0)
	if got.Pitch >= 0 {
		t.Fatalf("shop is above the landing, pitch should be negative: %v", got.Pitch)
	}
}

func TestAdjacent_NoFloorInRange(t *testing.T) {
	w := newFakeWorld()
	w.set(0, 64, 0, "CHEST")
	w.fill(-2, 30, -2, 2, 30, 2, "STONE")
	if _, ok := newResolver(w).Resolve(shop, adjacent()); ok {
		t.Fatalf("floor 34 blocks down is out of range")
	}
}

func TestAdjacent_LavaFloorRejected(t *testing.T) {
	w := newFakeWorld()
	w.set(0, 64, 0, "CHEST")
	w.fill(-1, 63, -1, 1, 63, 1, "LAVA")
	w.fill(-1, 62, -1, 1, 62, 1, "STONE")
	if got, ok := newResolver(w).Resolve(shop, adjacent()); ok {
		t.Fatalf("lava should stop the column scan, got %v", got.Block())
	}
}

// encased buries the shop in stone from y 58 to 70.
func encased() *fakeWorld {
	w := newFakeWorld()
	w.fill(-6, 58, -6, 6, 70, 6, "STONE")
	w.set(0, 64, 0, "CHEST")
	return w
}

func TestRadius_FindsPocket(t *testing.T) {
	w := encased()
	w.set(2, 65, 1, "AIR")
	w.set(2, 66, 1, "AIR")
	got, ok := newResolver(w).Resolve(shop, radius())
	if !ok {
		t.Fatalf("expected a landing")
	}
	wantBlock(t, got, 2, 65, 1)
}

func TestRadius_NearestPocketFirst(t *testing.T) {
	w := encased()
	for _, p := range [][3]int{{3, 66, 3}, {1, 64, 0}} {
		w.set(p[0], p[1], p[2], "AIR")
		w.set(p[0], p[1]+1, p[2], "AIR")
	}
	got, ok := newResolver(w).Resolve(shop, radius())
	if !ok {
		t.Fatalf("expected a landing")
	}
	wantBlock(t, got, 1, 64, 0)
}

func TestRadius_BorderAndUpwardFallback(t *testing.T) {
	w := encased()
	w.set(3, 64, 0, "AIR")
	w.set(3, 65, 0, "AIR")
	w.border = geom.Border{Radius: 2.5}
	got, ok := newResolver(w).Resolve(shop, radius())
	if !ok {
		t.Fatalf("expected the upward fallback to land on the roof")
	}
	wantBlock(t, got, 0, 71, 0)
}

func TestRadius_DamagingPocketRejected(t *testing.T) {
	w := encased()
	w.set(1, 64, 0, "FIRE")
	w.set(1, 65, 0, "AIR")
	opts := radius()
	opts.MaxUpward = 2
	if got, ok := newResolver(w).Resolve(shop, opts); ok {
		t.Fatalf("fire pocket should be rejected, got %v", got.Block())
	}
}

func TestResolve_NeverUnsafe(t *testing.T) {
	class := catalogs.Defaults().Blocks.Classification()
	palette := []string{"AIR", "AIR", "AIR", "STONE", "STONE", "LAVA", "FIRE", "CACTUS", "MAGMA_BLOCK",
		"OAK_SLAB", "OAK_LEAVES", "CAVE_AIR", "OAK_WALL_SIGN", "WATER", "GLASS", "CHEST"}
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 60; round++ {
		w := newFakeWorld()
		for x := -4; x <= 4; x++ {
			for y := 56; y <= 72; y++ {
				for z := -4; z <= 4; z++ {
					w.blocks[geom.Vec3i{X: x, Y: y, Z: z}] = Block{Material: palette[rng.Intn(len(palette))], BottomSlab: rng.Intn(2) == 0}
				}
			}
		}
		r := New(fakeBlocks{"world": w}, class)
		for _, opts := range []Options{adjacent(), radius()} {
			got, ok := r.Resolve(shop, opts)
			if !ok {
				continue
			}
			feet := got.Block()
			for _, p := range []geom.Vec3i{feet, feet.Up()} {
				m := w.BlockAt(p).Material
				if class.Damaging(m) || !class.NonSuffocating(m) {
					t.Fatalf("round %d mode %s: unsafe landing %v (%s at %v)", round, opts.Mode, feet, m, p)
				}
			}
		}
	}
}

func TestOptionsFrom(t *testing.T) {
	o := OptionsFrom(config.Defaults().Teleport)
	if o.Mode != config.SafeLocationRadius || o.MaxDownward != 20 || o.ShopSign != "OAK_WALL_SIGN" {
		t.Fatalf("options mismatch: %+v", o)
	}
}
