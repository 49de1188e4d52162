package finder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shopscout.ai/internal/geom"
	plog "shopscout.ai/internal/persistence/log"
	"shopscout.ai/internal/persistence/shopdb"
)

const (
	ViaSafe = "safe"
	ViaWarp = "warp"
	ViaShop = "shop"
)

type Teleport struct {
	ShopID      int64         `json:"shop_id"`
	Destination geom.Location `json:"destination"`
	Via         string        `json:"via"`
	Warp        string        `json:"warp,omitempty"`
	Cost        float64       `json:"cost"`
}

// Teleport sends player to the shop on block pos of world: a safe spot next
// to it, else its nearest warp, else the shop block itself. The search cost is
// charged first; a player banned from the nearest warp is refused after paying.
func (s *Service) Teleport(ctx context.Context, player uuid.UUID, world string, pos geom.Vec3i) (Teleport, error) {
	st := s.d.Settings.Load()

	shop, ok, err := s.d.Registry.FindShopAt(ctx, world, pos)
	if err != nil {
		return Teleport{}, fmt.Errorf("find shop: %w", err)
	}
	if !ok {
		return Teleport{}, ErrResultNotFound
	}

	cost := st.Teleport.CostToSearch
	if cost > 0 {
		paid, err := s.d.Economy.Withdraw(ctx, player, cost)
		if err != nil {
			return Teleport{}, fmt.Errorf("charge teleport: %w", err)
		}
		if !paid {
			return Teleport{}, ErrInsufficientFunds
		}
	}

	warp, hasWarp := s.FindNearestWarp(shop.Location, shop.Owner)
	if hasWarp {
		banned, err := s.d.Warps.IsBanned(ctx, warp, player)
		if err != nil {
			return Teleport{}, err
		}
		if banned {
			return Teleport{}, ErrWarpBanned
		}
		if err := s.d.Warps.RecordVisit(ctx, warp, player); err != nil {
			return Teleport{}, err
		}
	}

	tp := Teleport{ShopID: shop.ID, Cost: cost}
	safe, found, err := s.ResolveSafeLocation(ctx, shop.Location)
	if err != nil {
		return Teleport{}, err
	}
	switch {
	case found:
		tp.Destination, tp.Via = safe, ViaSafe
	case hasWarp:
		tp.Destination, tp.Via = warp.Location, ViaWarp
	default:
		tp.Destination, tp.Via = shop.Location, ViaShop
	}
	if hasWarp {
		tp.Warp = warp.Name
	}

	s.log.Info("teleport", "player", player, "shop", shop.ID, "via", tp.Via, "to", tp.Destination.Block())
	s.recordTeleport(player, tp)
	return tp, nil
}

func (s *Service) recordTeleport(player uuid.UUID, tp Teleport) {
	now := time.Now().UTC()
	d := tp.Destination
	if s.d.Audit != nil {
		s.d.Audit.RecordTeleport(shopdb.TeleportRow{
			At: now, Player: player.String(), ShopID: tp.ShopID, Via: tp.Via,
			World: d.World, X: d.X, Y: d.Y, Z: d.Z, Warp: tp.Warp, Cost: tp.Cost,
		})
	}
	if s.d.TeleportLog != nil {
		err := s.d.TeleportLog.WriteTeleport(plog.TeleportEntry{
			At: now, Player: player.String(), ShopID: tp.ShopID, Via: tp.Via,
			World: d.World, X: d.X, Y: d.Y, Z: d.Z, Warp: tp.Warp, Cost: tp.Cost,
		})
		if err != nil {
			s.log.Warn("teleport log write failed", "err", err)
		}
	}
}
