package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sugawarayuuta/sonnet"

	"shopscout.ai/internal/catalogs"
	"shopscout.ai/internal/geom"
	"shopscout.ai/internal/market"
	"shopscout.ai/internal/persistence/shopdb"
	"shopscout.ai/internal/warps"
)

func worldCmd(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("world", flag.ContinueOnError)
	open := storeFlags(fs)
	name := fs.String("name", "", "world name")
	minY := fs.Int("min_y", -64, "lowest block y")
	maxY := fs.Int("max_y", 320, "build height (exclusive)")
	cx := fs.Float64("border_x", 0, "border centre x")
	cz := fs.Float64("border_z", 0, "border centre z")
	radius := fs.Float64("border_radius", 0, "border half-width (0: unbounded)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("name", *name); err != nil {
		return err
	}
	if *maxY <= *minY {
		return fmt.Errorf("max_y must exceed min_y")
	}
	db, err := open()
	if err != nil {
		return err
	}
	defer db.Close()
	rec := shopdb.WorldRecord{Name: *name, MinY: *minY, MaxY: *maxY, Border: geom.Border{CenterX: *cx, CenterZ: *cz, Radius: *radius}}
	if err := db.UpsertWorld(ctx, rec); err != nil {
		return err
	}
	fmt.Fprintf(out, "world ok: %s y=[%d,%d) border=%.1f\n", rec.Name, rec.MinY, rec.MaxY, rec.Border.Radius)
	return nil
}

// blocksCmd fills the box between -from and -to with one material. AIR clears.
func blocksCmd(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("blocks", flag.ContinueOnError)
	open := storeFlags(fs)
	configDir := fs.String("configs", "./configs", "catalog directory")
	world := fs.String("world", "", "world name")
	from := fs.String("from", "", "corner x,y,z")
	to := fs.String("to", "", "opposite corner x,y,z (default: -from)")
	material := fs.String("material", "STONE", "block id")
	slab := fs.Bool("bottom_slab", false, "mark slabs as bottom half")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("world", *world); err != nil {
		return err
	}
	a, err := parsePos(*from)
	if err != nil {
		return fmt.Errorf("bad -from: %w", err)
	}
	b := a
	if strings.TrimSpace(*to) != "" {
		if b, err = parsePos(*to); err != nil {
			return fmt.Errorf("bad -to: %w", err)
		}
	}
	cats, err := catalogs.Load(*configDir)
	if err != nil {
		return err
	}
	mat := strings.ToUpper(strings.TrimSpace(*material))
	if _, ok := cats.Blocks.Index[mat]; !ok {
		return fmt.Errorf("unknown block %q", mat)
	}

	lo := geom.Vec3i{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)}
	hi := geom.Vec3i{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)}
	var recs []shopdb.BlockRecord
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				recs = append(recs, shopdb.BlockRecord{Pos: geom.Vec3i{X: x, Y: y, Z: z}, Material: mat, BottomSlab: *slab})
			}
		}
	}

	db, err := open()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.SetBlocks(ctx, *world, recs); err != nil {
		return err
	}
	fmt.Fprintf(out, "blocks ok: world=%s material=%s count=%d\n", *world, mat, len(recs))
	return nil
}

func shopCmd(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("shop", flag.ContinueOnError)
	open := storeFlags(fs)
	configDir := fs.String("configs", "./configs", "catalog directory")
	world := fs.String("world", "", "world name")
	at := fs.String("pos", "", "shop block x,y,z")
	item := fs.String("item", "", "item id")
	name := fs.String("name", "", "display name (default: from catalog)")
	price := fs.Float64("price", 0, "unit price")
	owner := fs.String("owner", "", "owner uuid")
	selling := fs.Bool("sell", true, "shop sells to players")
	buying := fs.Bool("buy", false, "shop buys from players")
	stock := fs.Int("stock", 0, "units in stock (-1: unlimited)")
	space := fs.Int("space", 0, "free slots for units (-1: unlimited)")
	unloaded := fs.Bool("unloaded", false, "shop chunk is not loaded")
	remove := fs.Bool("delete", false, "delete the shop at -pos")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("world", *world); err != nil {
		return err
	}
	pos, err := parsePos(*at)
	if err != nil {
		return fmt.Errorf("bad -pos: %w", err)
	}
	db, err := open()
	if err != nil {
		return err
	}
	defer db.Close()

	if *remove {
		sh, ok, err := db.FindShopAt(ctx, *world, pos)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no shop at %s %s", *world, pos)
		}
		if err := db.DeleteShop(ctx, sh.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "shop deleted: id=%d\n", sh.ID)
		return nil
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		return err
	}
	def, ok := cats.Items.Lookup(*item)
	if !ok {
		return fmt.Errorf("unknown item %q", *item)
	}
	ownerID, err := uuid.Parse(*owner)
	if err != nil {
		return fmt.Errorf("bad -owner: %w", err)
	}
	if *price < 0 {
		return fmt.Errorf("price must be >= 0")
	}
	display := *name
	if display == "" {
		display = def.DisplayName
	}
	rec := shopdb.ShopRecord{
		Shop: market.Shop{
			Location: geom.Location{World: *world, X: float64(pos.X), Y: float64(pos.Y), Z: float64(pos.Z)},
			Item:     market.Item{Type: def.ID, DisplayName: display},
			Price:    *price,
			Owner:    ownerID,
			Selling:  *selling,
			Buying:   *buying,
			Loaded:   !*unloaded,
		},
		Stock: *stock,
		Space: *space,
	}
	id, err := db.UpsertShop(ctx, rec)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "shop ok: id=%d item=%s price=%.2f at %s %s\n", id, def.ID, *price, *world, pos)
	return nil
}

// shopsCmd prints shops as JSON lines.
func shopsCmd(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("shops", flag.ContinueOnError)
	open := storeFlags(fs)
	owner := fs.String("owner", "", "only shops owned by this uuid")
	loaded := fs.Bool("loaded", false, "only loaded shops")
	if err := fs.Parse(args); err != nil {
		return err
	}
	db, err := open()
	if err != nil {
		return err
	}
	defer db.Close()

	var shops []market.Shop
	if strings.TrimSpace(*owner) != "" {
		id, err := uuid.Parse(*owner)
		if err != nil {
			return fmt.Errorf("bad -owner: %w", err)
		}
		shops, err = db.ShopsOwnedBy(ctx, id)
		if err != nil {
			return err
		}
	} else if shops, err = db.ListShops(ctx, *loaded); err != nil {
		return err
	}
	for _, sh := range shops {
		b, err := sonnet.Marshal(sh)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
	}
	return nil
}

func playerCmd(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("player", flag.ContinueOnError)
	open := storeFlags(fs)
	player := fs.String("player", "", "player uuid")
	name := fs.String("name", "", "player name shown in listings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := uuid.Parse(*player)
	if err != nil {
		return fmt.Errorf("bad -player: %w", err)
	}
	if err := required("name", strings.TrimSpace(*name)); err != nil {
		return err
	}
	db, err := open()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.SetPlayerName(ctx, id, strings.TrimSpace(*name)); err != nil {
		return err
	}
	fmt.Fprintf(out, "player ok: %s %s\n", id, strings.TrimSpace(*name))
	return nil
}

func balanceCmd(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	open := storeFlags(fs)
	player := fs.String("player", "", "player uuid")
	set := fs.Float64("set", -1, "new balance (omit to print)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := uuid.Parse(*player)
	if err != nil {
		return fmt.Errorf("bad -player: %w", err)
	}
	db, err := open()
	if err != nil {
		return err
	}
	defer db.Close()
	if *set >= 0 {
		if err := db.SetBalance(ctx, id, *set); err != nil {
			return err
		}
	}
	bal, err := db.Balance(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %.2f\n", id, bal)
	return nil
}

func warpCmd(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("warp", flag.ContinueOnError)
	open := storeFlags(fs)
	name := fs.String("name", "", "warp name")
	owner := fs.String("owner", "", "owner uuid")
	world := fs.String("world", "", "world name")
	at := fs.String("pos", "", "x,y,z")
	yaw := fs.Float64("yaw", 0, "facing yaw")
	locked := fs.Bool("locked", false, "warp is locked")
	remove := fs.Bool("delete", false, "delete the warp")
	notify := fs.String("notify", "http://127.0.0.1:8080", "server base url to notify (empty: skip)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("name", *name); err != nil {
		return err
	}
	db, err := open()
	if err != nil {
		return err
	}
	defer db.Close()
	if *remove {
		if err := db.DeleteWarp(ctx, *name); err != nil {
			return err
		}
		fmt.Fprintf(out, "warp deleted: %s\n", *name)
		notifyServer(ctx, out, *notify, "remove", *name)
		return nil
	}
	if err := required("world", *world); err != nil {
		return err
	}
	loc, err := parseLocation(*world, *at)
	if err != nil {
		return fmt.Errorf("bad -pos: %w", err)
	}
	loc.Yaw = float32(*yaw)
	ownerID, err := uuid.Parse(*owner)
	if err != nil {
		return fmt.Errorf("bad -owner: %w", err)
	}
	w := warps.Warp{Name: *name, Owner: ownerID, Location: loc, Locked: *locked}
	if err := db.UpsertWarp(ctx, w); err != nil {
		return err
	}
	fmt.Fprintf(out, "warp ok: %s at %s %s locked=%v\n", w.Name, loc.World, loc.Block(), w.Locked)
	notifyServer(ctx, out, *notify, "create", w.Name)
	return nil
}

// notifyServer is best effort: the store is the source of truth and a server
// started later reads it on boot.
func notifyServer(ctx context.Context, out io.Writer, baseURL, event, name string) {
	if strings.TrimSpace(baseURL) == "" {
		return
	}
	if err := notifyWarp(ctx, baseURL, event, name); err != nil {
		fmt.Fprintf(out, "server not notified: %v\n", err)
		return
	}
	fmt.Fprintf(out, "server notified: %s %s\n", event, name)
}

func banCmd(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("ban", flag.ContinueOnError)
	open := storeFlags(fs)
	warp := fs.String("warp", "", "warp name")
	player := fs.String("player", "", "player uuid")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required("warp", *warp); err != nil {
		return err
	}
	id, err := uuid.Parse(*player)
	if err != nil {
		return fmt.Errorf("bad -player: %w", err)
	}
	db, err := open()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.BanFromWarp(ctx, *warp, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "ban ok: %s from %s\n", id, *warp)
	return nil
}
