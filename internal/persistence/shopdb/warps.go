package shopdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shopscout.ai/internal/warps"
)

var _ warps.Registry = (*Store)(nil)

func (s *Store) ListWarps(ctx context.Context) ([]warps.Warp, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name,owner,world,x,y,z,yaw,pitch,locked,visits FROM warps ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []warps.Warp
	for rows.Next() {
		var (
			w      warps.Warp
			owner  string
			locked int
		)
		if err := rows.Scan(&w.Name, &owner, &w.Location.World, &w.Location.X, &w.Location.Y, &w.Location.Z,
			&w.Location.Yaw, &w.Location.Pitch, &locked, &w.Visits); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(owner)
		if err != nil {
			return nil, fmt.Errorf("warp %s owner: %w", w.Name, err)
		}
		w.Owner = id
		w.Locked = locked != 0
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) IsBanned(ctx context.Context, warp string, player uuid.UUID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM warp_bans WHERE warp=? AND player=?`, warp, player.String()).Scan(&n)
	return n > 0, err
}

// RecordVisit bumps the warp's visit count the first time player arrives.
func (s *Store) RecordVisit(ctx context.Context, warp string, player uuid.UUID) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO warp_visits(warp,player,first_at) VALUES(?,?,?)`,
		warp, player.String(), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, tx.Commit()
	}
	if _, err := tx.ExecContext(ctx, `UPDATE warps SET visits=visits+1 WHERE name=?`, warp); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *Store) UpsertWarp(ctx context.Context, w warps.Warp) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO warps(name,owner,world,x,y,z,yaw,pitch,locked,visits) VALUES(?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET
			owner=excluded.owner, world=excluded.world, x=excluded.x, y=excluded.y, z=excluded.z,
			yaw=excluded.yaw, pitch=excluded.pitch, locked=excluded.locked`,
		w.Name, w.Owner.String(), w.Location.World, w.Location.X, w.Location.Y, w.Location.Z,
		w.Location.Yaw, w.Location.Pitch, boolInt(w.Locked), w.Visits)
	return err
}

func (s *Store) DeleteWarp(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM warps WHERE name=?`, name)
	return err
}

func (s *Store) BanFromWarp(ctx context.Context, warp string, player uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO warp_bans(warp,player) VALUES(?,?)`, warp, player.String())
	return err
}
