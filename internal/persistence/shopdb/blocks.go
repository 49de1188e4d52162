package shopdb

import (
	"context"

	"shopscout.ai/internal/geom"
)

type WorldRecord struct {
	Name   string
	MinY   int
	MaxY   int
	Border geom.Border
}

type BlockRecord struct {
	Pos        geom.Vec3i
	Material   string
	BottomSlab bool
}

func (s *Store) UpsertWorld(ctx context.Context, w WorldRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO worlds(name,min_y,max_y,border_center_x,border_center_z,border_radius) VALUES(?,?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET
			min_y=excluded.min_y, max_y=excluded.max_y,
			border_center_x=excluded.border_center_x, border_center_z=excluded.border_center_z,
			border_radius=excluded.border_radius`,
		w.Name, w.MinY, w.MaxY, w.Border.CenterX, w.Border.CenterZ, w.Border.Radius)
	return err
}

func (s *Store) Worlds(ctx context.Context) ([]WorldRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name,min_y,max_y,border_center_x,border_center_z,border_radius FROM worlds ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WorldRecord
	for rows.Next() {
		var w WorldRecord
		if err := rows.Scan(&w.Name, &w.MinY, &w.MaxY, &w.Border.CenterX, &w.Border.CenterZ, &w.Border.Radius); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// SetBlocks writes bs into world in one transaction. Material "AIR" deletes the cell.
func (s *Store) SetBlocks(ctx context.Context, world string, bs []BlockRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	put, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO blocks(world,x,y,z,material,bottom_slab) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer put.Close()
	del, err := tx.PrepareContext(ctx, `DELETE FROM blocks WHERE world=? AND x=? AND y=? AND z=?`)
	if err != nil {
		return err
	}
	defer del.Close()

	for _, b := range bs {
		if b.Material == "" || b.Material == "AIR" {
			if _, err := del.ExecContext(ctx, world, b.Pos.X, b.Pos.Y, b.Pos.Z); err != nil {
				return err
			}
			continue
		}
		if _, err := put.ExecContext(ctx, world, b.Pos.X, b.Pos.Y, b.Pos.Z, b.Material, boolInt(b.BottomSlab)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Blocks streams every stored block of world to fn. fn must not call back
// into the store: the connection is held until the scan finishes.
func (s *Store) Blocks(ctx context.Context, world string, fn func(BlockRecord) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT x,y,z,material,bottom_slab FROM blocks WHERE world=?`, world)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			b    BlockRecord
			slab int
		)
		if err := rows.Scan(&b.Pos.X, &b.Pos.Y, &b.Pos.Z, &b.Material, &slab); err != nil {
			return err
		}
		b.BottomSlab = slab != 0
		if err := fn(b); err != nil {
			return err
		}
	}
	return rows.Err()
}
