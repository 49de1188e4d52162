package finder

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"shopscout.ai/internal/geom"
	"shopscout.ai/internal/hidden"
	"shopscout.ai/internal/market"
)

// Hide takes the shop on block pos out of every listing. Only its owner may.
func (s *Service) Hide(ctx context.Context, player uuid.UUID, world string, pos geom.Vec3i) error {
	shop, err := s.ownedShopAt(ctx, player, world, pos)
	if err != nil {
		return err
	}
	if s.d.Hidden.Hide(player, hidden.PositionOf(shop.Location)) {
		s.persistHidden()
	}
	return nil
}

func (s *Service) Unhide(ctx context.Context, player uuid.UUID, world string, pos geom.Vec3i) error {
	shop, err := s.ownedShopAt(ctx, player, world, pos)
	if err != nil {
		return err
	}
	if s.d.Hidden.Unhide(player, hidden.PositionOf(shop.Location)) {
		s.persistHidden()
	}
	return nil
}

// HideAll hides every shop player owns and returns how many were newly hidden.
func (s *Service) HideAll(ctx context.Context, player uuid.UUID) (int, error) {
	shops, err := s.d.Registry.ShopsOwnedBy(ctx, player)
	if err != nil {
		return 0, fmt.Errorf("shops owned by %s: %w", player, err)
	}
	ps := make([]hidden.Position, 0, len(shops))
	for _, sh := range shops {
		if sh.Owner == player {
			ps = append(ps, hidden.PositionOf(sh.Location))
		}
	}
	n := s.d.Hidden.HideAll(player, ps)
	if n > 0 {
		s.persistHidden()
	}
	return n, nil
}

func (s *Service) UnhideAll(player uuid.UUID) int {
	n := s.d.Hidden.UnhideAll(player)
	if n > 0 {
		s.persistHidden()
	}
	return n
}

func (s *Service) ownedShopAt(ctx context.Context, player uuid.UUID, world string, pos geom.Vec3i) (market.Shop, error) {
	shop, ok, err := s.d.Registry.FindShopAt(ctx, world, pos)
	if err != nil {
		return market.Shop{}, fmt.Errorf("find shop: %w", err)
	}
	if !ok {
		return market.Shop{}, ErrNotAShop
	}
	if shop.Owner != player {
		return market.Shop{}, ErrNotOwner
	}
	return shop, nil
}

func (s *Service) persistHidden() {
	if s.d.HiddenStore == nil {
		return
	}
	if err := s.d.HiddenStore.Save(s.d.Hidden); err != nil {
		s.log.Error("saving hidden shops failed", "path", s.d.HiddenStore.Path, "err", err)
	}
}

// Close flushes the hidden table.
func (s *Service) Close() error {
	if s.d.HiddenStore == nil {
		return nil
	}
	return s.d.HiddenStore.Save(s.d.Hidden)
}
