package finder

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"shopscout.ai/internal/blockworld"
	"shopscout.ai/internal/catalogs"
	"shopscout.ai/internal/config"
	"shopscout.ai/internal/geom"
	"shopscout.ai/internal/hidden"
	"shopscout.ai/internal/market"
	"shopscout.ai/internal/persistence/shopdb"
	"shopscout.ai/internal/primary"
	"shopscout.ai/internal/safeloc"
	"shopscout.ai/internal/search"
	"shopscout.ai/internal/warps"
)

var (
	owner  = uuid.MustParse("00000000-0000-0000-0000-0000000000bb")
	player = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
)

type harness struct {
	svc    *Service
	db     *shopdb.Store
	world  *blockworld.World
	live   *config.Live
	engine *search.Engine
	dir    *warps.Directory
	hidden *hidden.FileStore
	tmp    string
}

func newHarness(t *testing.T, mut func(*config.Settings)) *harness {
	t.Helper()
	tmp := t.TempDir()
	db, err := shopdb.Open(filepath.Join(tmp, "shops.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := config.Defaults()
	if mut != nil {
		mut(&s)
	}
	s.Normalize()
	live := config.NewLive(s)
	logger := log.New(io.Discard)
	cats := catalogs.Defaults()

	blocks := blockworld.New(cats.Blocks)
	w, err := blocks.AddWorld("world", -64, 320, geom.Border{})
	if err != nil {
		t.Fatalf("AddWorld: %v", err)
	}

	engine := search.NewEngine(search.Options{Registry: db, Economy: db, Primary: primary.Inline{}, Settings: live, Logger: logger})
	dir := warps.NewDirectory(db, logger)
	hs := &hidden.FileStore{Path: filepath.Join(tmp, "data", "userdata.json")}
	svc, err := New(Deps{
		Settings:    live,
		Catalogs:    cats,
		Registry:    db,
		Economy:     db,
		Engine:      engine,
		Safe:        safeloc.New(blocks, cats.Blocks.Classification()),
		Warps:       dir,
		Hidden:      hidden.NewCache(nil),
		HiddenStore: hs,
		Players:     db,
		Audit:       db,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{svc: svc, db: db, world: w, live: live, engine: engine, dir: dir, hidden: hs, tmp: tmp}
}

func (h *harness) shop(t *testing.T, x, y, z float64, item market.Item, price float64, stock int) market.Shop {
	t.Helper()
	sh := market.Shop{
		Location: geom.Location{World: "world", X: x, Y: y, Z: z},
		Item:     item,
		Price:    price,
		Owner:    owner,
		Selling:  true,
		Loaded:   true,
	}
	id, err := h.db.UpsertShop(context.Background(), shopdb.ShopRecord{Shop: sh, Stock: stock, Space: 0})
	if err != nil {
		t.Fatalf("UpsertShop: %v", err)
	}
	sh.ID = id
	return sh
}

// floor lays stone at y-1 around (x, z) and puts a chest at y.
func (h *harness) floor(t *testing.T, x, y, z int) {
	t.Helper()
	for dx := -2; dx <= 2; dx++ {
		for dz := -2; dz <= 2; dz++ {
			if err := h.world.SetBlock(geom.Vec3i{X: x + dx, Y: y - 1, Z: z + dz}, safeloc.Block{Material: "STONE"}); err != nil {
				t.Fatal(err)
			}
		}
	}
	_ = h.world.SetBlock(geom.Vec3i{X: x, Y: y, Z: z}, safeloc.Block{Material: "CHEST"})
	cx, cz := geom.ChunkOf(x, z)
	h.world.LoadChunk(cx, cz)
}

var diamond = market.Item{Type: "DIAMOND", DisplayName: "Diamond"}

func TestSearch_QueryEntry(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.shop(t, 10, 64, 10, diamond, 3, 5)
	h.shop(t, 20, 64, 10, market.Item{Type: "DIAMOND_SWORD", DisplayName: "§6Excalibur"}, 100, 1)

	if _, err := h.svc.Search(ctx, player, "dia", search.ToBuy); !errors.Is(err, ErrQueryTooShort) {
		t.Fatalf("short query: got %v want ErrQueryTooShort", err)
	}

	res, err := h.svc.Search(ctx, player, "diamond", search.ToBuy)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 1 || res[0].Item.Type != "DIAMOND" || res[0].Remaining != 5 || res[0].Price != 3 {
		t.Fatalf("type query should match only DIAMOND: %+v", res)
	}

	res, err = h.svc.Search(ctx, player, "diamond sword", search.ToBuy)
	if err != nil || len(res) != 1 || res[0].Item.Type != "DIAMOND_SWORD" {
		t.Fatalf("spaced item id should resolve to a type query: %+v err=%v", res, err)
	}

	res, err = h.svc.Search(ctx, player, "excal", search.ToBuy)
	if err != nil || len(res) != 1 {
		t.Fatalf("name query: %+v err=%v", res, err)
	}

	if err := h.db.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestListing_RendersLoreAndSkipsHidden(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) {
		s.Teleport.CostToSearch = 2.5
		s.Listing.Lore = []string{"<price> | <stock> | <location> | <world> | <warp> | <cost>"}
	})
	ctx := context.Background()
	a := h.shop(t, 10, 64, 10, diamond, 1234.5, market.NoLimit)
	h.shop(t, 30, 64, 10, diamond, 1, 2000)

	if err := h.db.UpsertWarp(ctx, warps.Warp{Name: "bazaar", Owner: owner, Location: geom.Location{World: "world", X: 12, Y: 64, Z: 10}}); err != nil {
		t.Fatalf("UpsertWarp: %v", err)
	}
	if err := h.dir.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	res, err := h.svc.Search(ctx, player, "DIAMOND", search.ToBuy)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	entries := h.svc.Listing(res)
	if len(entries) != 2 {
		t.Fatalf("entries: got %d want 2", len(entries))
	}
	var got string
	for _, e := range entries {
		if e.ShopID == a.ID {
			got = e.Lore[0]
		}
	}
	want := "1,234.5 | ∞ | X: 10, Y: 64, Z: 10 | world | bazaar | 2.5"
	if got != want {
		t.Fatalf("lore mismatch:\n got %q\nwant %q", got, want)
	}

	if err := h.svc.Hide(ctx, owner, "world", geom.Vec3i{X: 10, Y: 64, Z: 10}); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	entries = h.svc.Listing(res)
	if len(entries) != 1 || entries[0].ShopID == a.ID {
		t.Fatalf("hidden shop still listed: %+v", entries)
	}
	if !strings.Contains(entries[0].Lore[0], "2,000") {
		t.Fatalf("stock should be humanized: %q", entries[0].Lore[0])
	}
}

func TestListing_OwnerByName(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) {
		s.Listing.Lore = []string{"Owner: <owner>"}
	})
	ctx := context.Background()
	h.shop(t, 10, 64, 10, diamond, 1, 1)

	res, err := h.svc.Search(ctx, player, "DIAMOND", search.ToBuy)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := h.svc.Listing(res)[0].Lore[0]; got != "Owner: "+owner.String() {
		t.Fatalf("unknown owner should render as uuid: %q", got)
	}

	if err := h.svc.PlayerSeen(ctx, owner, "Notch"); err != nil {
		t.Fatalf("PlayerSeen: %v", err)
	}
	h.engine.Reset(time.Hour)
	res, err = h.svc.Search(ctx, player, "DIAMOND", search.ToBuy)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	e := h.svc.Listing(res)[0]
	if e.Lore[0] != "Owner: Notch" || e.OwnerName != "Notch" {
		t.Fatalf("owner name not resolved: %+v", e)
	}
}

func TestHide_OwnershipAndPersistence(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.shop(t, 10, 64, 10, diamond, 1, 1)
	h.shop(t, 11, 64, 10, diamond, 1, 1)

	if err := h.svc.Hide(ctx, owner, "world", geom.Vec3i{X: 0, Y: 64, Z: 0}); !errors.Is(err, ErrNotAShop) {
		t.Fatalf("hide on empty block: got %v want ErrNotAShop", err)
	}
	if err := h.svc.Hide(ctx, player, "world", geom.Vec3i{X: 10, Y: 64, Z: 10}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("hide by stranger: got %v want ErrNotOwner", err)
	}
	n, err := h.svc.HideAll(ctx, owner)
	if err != nil || n != 2 {
		t.Fatalf("HideAll: n=%d err=%v want 2", n, err)
	}
	table, err := h.hidden.Load()
	if err != nil || len(table[owner]) != 2 {
		t.Fatalf("persisted table mismatch: %+v err=%v", table, err)
	}
	if err := h.svc.Unhide(ctx, owner, "world", geom.Vec3i{X: 10, Y: 64, Z: 10}); err != nil {
		t.Fatalf("Unhide: %v", err)
	}
	if n := h.svc.UnhideAll(owner); n != 1 {
		t.Fatalf("UnhideAll: got %d want 1", n)
	}
}

func TestHide_ConcurrentSessionsPersistEveryShop(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	const n = 16
	for i := 0; i < n; i++ {
		h.shop(t, float64(100+i), 64, 10, diamond, 1, 1)
	}

	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- h.svc.Hide(ctx, owner, "world", geom.Vec3i{X: 100 + i, Y: 64, Z: 10})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Hide: %v", err)
		}
	}
	table, err := h.hidden.Load()
	if err != nil {
		t.Fatalf("load hidden file: %v", err)
	}
	if got := len(table[owner]); got != n {
		t.Fatalf("persisted hidden shops: got %d want %d", got, n)
	}
}

func TestTeleport_SafeSpotAndCost(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) {
		s.Teleport.CostToSearch = 5
		s.Teleport.SafeLocationMode = config.SafeLocationAdjacent
	})
	ctx := context.Background()
	h.shop(t, 10, 64, 10, diamond, 1, 1)
	h.floor(t, 10, 64, 10)
	pos := geom.Vec3i{X: 10, Y: 64, Z: 10}

	if _, err := h.svc.Teleport(ctx, player, "world", pos); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("broke player: got %v want ErrInsufficientFunds", err)
	}
	if err := h.db.SetBalance(ctx, player, 7); err != nil {
		t.Fatal(err)
	}
	tp, err := h.svc.Teleport(ctx, player, "world", pos)
	if err != nil {
		t.Fatalf("Teleport: %v", err)
	}
	if tp.Via != ViaSafe || tp.Destination.Block() != (geom.Vec3i{X: 11, Y: 64, Z: 10}) {
		t.Fatalf("teleport mismatch: %+v", tp)
	}
	if bal, _ := h.db.Balance(ctx, player); bal != 2 {
		t.Fatalf("balance after teleport: got %v want 2", bal)
	}
	if _, err := h.svc.Teleport(ctx, player, "world", geom.Vec3i{X: 99, Y: 64, Z: 99}); !errors.Is(err, ErrResultNotFound) {
		t.Fatalf("unknown shop: got %v want ErrResultNotFound", err)
	}
}

func TestTeleport_WarpFallbackAndBan(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.shop(t, 10, 64, 10, diamond, 1, 1)
	// No blocks around the shop: the chunk is not loaded, so no safe spot.
	w := warps.Warp{Name: "bazaar", Owner: owner, Location: geom.Location{World: "world", X: 40, Y: 70, Z: 10}}
	if err := h.db.UpsertWarp(ctx, w); err != nil {
		t.Fatal(err)
	}
	if err := h.dir.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	pos := geom.Vec3i{X: 10, Y: 64, Z: 10}

	tp, err := h.svc.Teleport(ctx, player, "world", pos)
	if err != nil {
		t.Fatalf("Teleport: %v", err)
	}
	if tp.Via != ViaWarp || tp.Warp != "bazaar" || tp.Destination != w.Location {
		t.Fatalf("warp fallback mismatch: %+v", tp)
	}
	ws, err := h.db.ListWarps(ctx)
	if err != nil || len(ws) != 1 || ws[0].Visits != 1 {
		t.Fatalf("visit not recorded: %+v", ws[0])
	}

	if err := h.db.BanFromWarp(ctx, "bazaar", player); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Teleport(ctx, player, "world", pos); !errors.Is(err, ErrWarpBanned) {
		t.Fatalf("banned player: got %v want ErrWarpBanned", err)
	}

	if err := h.db.DeleteWarp(ctx, "bazaar"); err != nil {
		t.Fatal(err)
	}
	h.dir.OnRemove("bazaar")
	tp, err = h.svc.Teleport(ctx, player, "world", pos)
	if err != nil || tp.Via != ViaShop || tp.Destination.Block() != pos {
		t.Fatalf("shop fallback mismatch: %+v err=%v", tp, err)
	}
}

func TestViewAll(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.shop(t, 10, 64, 10, diamond, 1, 1)
	h.shop(t, 11, 64, 10, market.Item{Type: "APPLE"}, 1, 1)
	entries, err := h.svc.ViewAll(ctx, player, search.ToBuy)
	if err != nil {
		t.Fatalf("ViewAll: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "Apple" || entries[1].Name != "Diamond" {
		t.Fatalf("view all order mismatch: %+v", entries)
	}
}

func TestReload_ResetsCachesOnTTLChange(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.shop(t, 10, 64, 10, diamond, 1, 1)

	if _, err := h.svc.Search(ctx, player, "DIAMOND", search.ToBuy); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(h.tmp, "settings.yaml")
	if err := os.WriteFile(path, []byte("search:\n  cache_ttl: 5m\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cur, err := h.svc.Reload(ctx, path)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if cur.Search.CacheTTL != 5*time.Minute || h.engine.TTL() != 5*time.Minute {
		t.Fatalf("ttl: settings %v engine %v", cur.Search.CacheTTL, h.engine.TTL())
	}
	if _, err := h.svc.Search(ctx, player, "DIAMOND", search.ToBuy); err != nil {
		t.Fatal(err)
	}
	if h.engine.Scans() != 2 {
		t.Fatalf("caches should be rebuilt on ttl change: scans=%d", h.engine.Scans())
	}

	if err := os.WriteFile(path, []byte("teleport:\n  safe_location_mode: sideways\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Reload(ctx, path); err == nil {
		t.Fatalf("invalid settings should be rejected")
	}
	if h.svc.Settings().Search.CacheTTL != 5*time.Minute {
		t.Fatalf("failed reload replaced the settings")
	}
}
