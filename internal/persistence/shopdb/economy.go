package shopdb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

func (s *Store) Balance(ctx context.Context, player uuid.UUID) (float64, error) {
	var v float64
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM balances WHERE player=?`, player.String()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

func (s *Store) HasBalance(ctx context.Context, player uuid.UUID, amount float64) (bool, error) {
	v, err := s.Balance(ctx, player)
	if err != nil {
		return false, err
	}
	return v >= amount, nil
}

// Withdraw takes amount from player's balance if it covers it. Reports false
// and leaves the balance alone otherwise.
func (s *Store) Withdraw(ctx context.Context, player uuid.UUID, amount float64) (bool, error) {
	if amount <= 0 {
		return true, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE balances SET balance=balance-? WHERE player=? AND balance>=?`,
		amount, player.String(), amount)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) SetBalance(ctx context.Context, player uuid.UUID, balance float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO balances(player,balance) VALUES(?,?) ON CONFLICT(player) DO UPDATE SET balance=excluded.balance`,
		player.String(), balance)
	return err
}

// SetPlayerName records the last known name of player. Shop reads resolve
// owner names through it.
func (s *Store) SetPlayerName(ctx context.Context, player uuid.UUID, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players(uuid,name) VALUES(?,?) ON CONFLICT(uuid) DO UPDATE SET name=excluded.name`,
		player.String(), name)
	return err
}

func (s *Store) PlayerName(ctx context.Context, player uuid.UUID) (string, bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM players WHERE uuid=?`, player.String()).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}
