package shopdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sugawarayuuta/sonnet"

	"shopscout.ai/internal/geom"
	"shopscout.ai/internal/market"
)

var (
	_ market.Registry = (*Store)(nil)
	_ market.Economy  = (*Store)(nil)
)

// ShopRecord is a shop plus the inventory figures the registry serves live.
// Stock and Space use market.NoLimit for unbounded.
type ShopRecord struct {
	market.Shop
	Stock int
	Space int
}

const (
	shopColumns = `id,world,x,y,z,item_type,display_name,meta_json,price,owner,selling,buying,loaded,COALESCE(players.name,'')`
	shopsFrom   = `shops LEFT JOIN players ON players.uuid=shops.owner`
)

func scanShop(sc interface{ Scan(...any) error }) (market.Shop, error) {
	var (
		sh                      market.Shop
		meta, owner             string
		selling, buying, loaded int
	)
	if err := sc.Scan(
		&sh.ID,
		&sh.Location.World, &sh.Location.X, &sh.Location.Y, &sh.Location.Z,
		&sh.Item.Type, &sh.Item.DisplayName, &meta,
		&sh.Price, &owner, &selling, &buying, &loaded, &sh.OwnerName,
	); err != nil {
		return market.Shop{}, err
	}
	if meta != "" && meta != "{}" {
		if err := sonnet.Unmarshal([]byte(meta), &sh.Item.Meta); err != nil {
			return market.Shop{}, fmt.Errorf("shop %d meta: %w", sh.ID, err)
		}
	}
	id, err := uuid.Parse(owner)
	if err != nil {
		return market.Shop{}, fmt.Errorf("shop %d owner: %w", sh.ID, err)
	}
	sh.Owner = id
	sh.Selling = selling != 0
	sh.Buying = buying != 0
	sh.Loaded = loaded != 0
	return sh, nil
}

func (s *Store) queryShops(ctx context.Context, where string, args ...any) ([]market.Shop, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+shopColumns+` FROM `+shopsFrom+` `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []market.Shop
	for rows.Next() {
		sh, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (s *Store) ListShops(ctx context.Context, loadedOnly bool) ([]market.Shop, error) {
	if loadedOnly {
		return s.queryShops(ctx, `WHERE loaded=1`)
	}
	return s.queryShops(ctx, ``)
}

func (s *Store) ShopsOwnedBy(ctx context.Context, owner uuid.UUID) ([]market.Shop, error) {
	return s.queryShops(ctx, `WHERE owner=?`, owner.String())
}

func (s *Store) FindShopAt(ctx context.Context, world string, pos geom.Vec3i) (market.Shop, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shopColumns+` FROM `+shopsFrom+` WHERE world=? AND block_x=? AND block_y=? AND block_z=?`,
		world, pos.X, pos.Y, pos.Z)
	sh, err := scanShop(row)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Shop{}, false, nil
	}
	if err != nil {
		return market.Shop{}, false, err
	}
	return sh, true, nil
}

// IsAuthorized allows the owner always and everyone else unless an ACL row
// denies the action.
func (s *Store) IsAuthorized(ctx context.Context, shopID int64, player uuid.UUID, action market.Action) (bool, error) {
	var owner string
	if err := s.db.QueryRowContext(ctx, `SELECT owner FROM shops WHERE id=?`, shopID).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if owner == player.String() {
		return true, nil
	}
	var allowed int
	err := s.db.QueryRowContext(ctx,
		`SELECT allowed FROM shop_acl WHERE shop_id=? AND player=? AND action=?`,
		shopID, player.String(), string(action)).Scan(&allowed)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return allowed != 0, nil
}

func (s *Store) RemainingStock(ctx context.Context, shopID int64) (int, error) {
	return s.capacity(ctx, "stock", shopID)
}

func (s *Store) RemainingSpace(ctx context.Context, shopID int64) (int, error) {
	return s.capacity(ctx, "space", shopID)
}

func (s *Store) capacity(ctx context.Context, col string, shopID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT `+col+` FROM shops WHERE id=?`, shopID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// UpsertShop inserts r or replaces the shop on the same block and returns its id.
func (s *Store) UpsertShop(ctx context.Context, r ShopRecord) (int64, error) {
	meta := "{}"
	if len(r.Item.Meta) > 0 {
		b, err := sonnet.Marshal(r.Item.Meta)
		if err != nil {
			return 0, err
		}
		meta = string(b)
	}
	b := r.Location.Block()
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO shops(world,x,y,z,block_x,block_y,block_z,item_type,display_name,meta_json,price,owner,selling,buying,loaded,stock,space)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(world,block_x,block_y,block_z) DO UPDATE SET
			x=excluded.x, y=excluded.y, z=excluded.z,
			item_type=excluded.item_type, display_name=excluded.display_name, meta_json=excluded.meta_json,
			price=excluded.price, owner=excluded.owner,
			selling=excluded.selling, buying=excluded.buying, loaded=excluded.loaded,
			stock=excluded.stock, space=excluded.space
		RETURNING id`,
		r.Location.World, r.Location.X, r.Location.Y, r.Location.Z, b.X, b.Y, b.Z,
		r.Item.Type, r.Item.DisplayName, meta,
		r.Price, r.Owner.String(),
		boolInt(r.Selling), boolInt(r.Buying), boolInt(r.Loaded),
		r.Stock, r.Space,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert shop: %w", err)
	}
	return id, nil
}

func (s *Store) SetCapacity(ctx context.Context, shopID int64, stock, space int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE shops SET stock=?, space=? WHERE id=?`, stock, space, shopID)
	return err
}

func (s *Store) SetLoaded(ctx context.Context, shopID int64, loaded bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE shops SET loaded=? WHERE id=?`, boolInt(loaded), shopID)
	return err
}

func (s *Store) DeleteShop(ctx context.Context, shopID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM shops WHERE id=?`, shopID)
	return err
}

func (s *Store) SetACL(ctx context.Context, shopID int64, player uuid.UUID, action market.Action, allowed bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO shop_acl(shop_id,player,action,allowed) VALUES(?,?,?,?)`,
		shopID, player.String(), string(action), boolInt(allowed))
	return err
}
