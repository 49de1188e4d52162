// Package shopdb is the SQLite system of record for shops, balances, warps
// and world blocks, plus a buffered audit trail of searches and teleports.
package shopdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sugawarayuuta/sonnet"
	_ "modernc.org/sqlite"

	"shopscout.ai/internal/catalogs"
	"shopscout.ai/internal/config"
)

type Store struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropSearch   atomic.Uint64
	dropTeleport atomic.Uint64
	writeErrors  atomic.Uint64
}

type reqKind int

const (
	reqSearch reqKind = iota + 1
	reqTeleport
	reqSync
)

type req struct {
	kind reqKind

	search   SearchRow
	teleport TeleportRow
	done     chan struct{}
}

// SearchRow is one served search.
type SearchRow struct {
	At        time.Time
	Player    string
	Kind      string
	Query     string
	Direction string
	Results   int
	Took      time.Duration
}

// TeleportRow is one completed teleport.
type TeleportRow struct {
	At      time.Time
	Player  string
	ShopID  int64
	Via     string // safe | warp | shop
	World   string
	X, Y, Z float64
	Warp    string
	Cost    float64
}

type Stats struct {
	DropSearchTotal   uint64
	DropTeleportTotal uint64
	WriteErrorsTotal  uint64
	QueueDepth        int
	QueueCapacity     int
}

const (
	queueSize     = 8192
	commitEvery   = 500
	commitMaxWait = time.Second
)

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db: db,
		ch: make(chan req, queueSize),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS shops (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			world TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			block_x INTEGER NOT NULL,
			block_y INTEGER NOT NULL,
			block_z INTEGER NOT NULL,
			item_type TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			meta_json TEXT NOT NULL DEFAULT '{}',
			price REAL NOT NULL,
			owner TEXT NOT NULL,
			selling INTEGER NOT NULL,
			buying INTEGER NOT NULL,
			loaded INTEGER NOT NULL,
			stock INTEGER NOT NULL,
			space INTEGER NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_shops_block ON shops(world, block_x, block_y, block_z);`,
		`CREATE INDEX IF NOT EXISTS idx_shops_owner ON shops(owner);`,
		`CREATE TABLE IF NOT EXISTS shop_acl (
			shop_id INTEGER NOT NULL REFERENCES shops(id) ON DELETE CASCADE,
			player TEXT NOT NULL,
			action TEXT NOT NULL,
			allowed INTEGER NOT NULL,
			PRIMARY KEY (shop_id, player, action)
		);`,
		`CREATE TABLE IF NOT EXISTS players (
			uuid TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS balances (
			player TEXT PRIMARY KEY,
			balance REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS warps (
			name TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			world TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			yaw REAL NOT NULL DEFAULT 0,
			pitch REAL NOT NULL DEFAULT 0,
			locked INTEGER NOT NULL DEFAULT 0,
			visits INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_warps_world ON warps(world);`,
		`CREATE TABLE IF NOT EXISTS warp_bans (
			warp TEXT NOT NULL REFERENCES warps(name) ON DELETE CASCADE,
			player TEXT NOT NULL,
			PRIMARY KEY (warp, player)
		);`,
		`CREATE TABLE IF NOT EXISTS warp_visits (
			warp TEXT NOT NULL REFERENCES warps(name) ON DELETE CASCADE,
			player TEXT NOT NULL,
			first_at TEXT NOT NULL,
			PRIMARY KEY (warp, player)
		);`,
		`CREATE TABLE IF NOT EXISTS worlds (
			name TEXT PRIMARY KEY,
			min_y INTEGER NOT NULL,
			max_y INTEGER NOT NULL,
			border_center_x REAL NOT NULL DEFAULT 0,
			border_center_z REAL NOT NULL DEFAULT 0,
			border_radius REAL NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS blocks (
			world TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			material TEXT NOT NULL,
			bottom_slab INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (world, x, y, z)
		);`,
		`CREATE TABLE IF NOT EXISTS searches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			player TEXT NOT NULL,
			kind TEXT NOT NULL,
			query TEXT NOT NULL,
			direction TEXT NOT NULL,
			results INTEGER NOT NULL,
			took_us INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_searches_player ON searches(player, at);`,
		`CREATE TABLE IF NOT EXISTS teleports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			player TEXT NOT NULL,
			shop_id INTEGER NOT NULL,
			via TEXT NOT NULL,
			world TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			warp TEXT,
			cost REAL NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordSearch queues an audit row. Rows are dropped when the writer falls
// behind; the JSONL search log stays the complete record.
func (s *Store) RecordSearch(r SearchRow) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSearch, search: r}:
	default:
		s.dropSearch.Add(1)
	}
}

func (s *Store) RecordTeleport(r TeleportRow) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqTeleport, teleport: r}:
	default:
		s.dropTeleport.Add(1)
	}
}

// Sync waits until every audit row queued before it is committed.
func (s *Store) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropSearchTotal:   s.dropSearch.Load(),
		DropTeleportTotal: s.dropTeleport.Load(),
		WriteErrorsTotal:  s.writeErrors.Load(),
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
	}
}

// UpsertCatalogs records the block and item catalogs and the active settings
// so an operator can see what a running server resolved against.
func (s *Store) UpsertCatalogs(ctx context.Context, cats *catalogs.Catalogs, settings config.Settings) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := sonnet.Marshal(cats.Blocks.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cats.Blocks.PaletteDigest, json: b})
	}
	if b, _ := sonnet.Marshal(cats.Items.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "items_palette", digest: cats.Items.PaletteDigest, json: b})
	}
	if b, _ := sonnet.Marshal(settings); len(b) > 0 {
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "settings", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) loop() {
	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	pending := make([]req, 0, commitEvery)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := s.writeBatch(pending); err != nil {
			s.writeErrors.Add(1)
		}
		pending = pending[:0]
	}

	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				flush()
				return
			}
			if r.kind == reqSync {
				flush()
				close(r.done)
				continue
			}
			pending = append(pending, r)
			if len(pending) >= commitEvery {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (s *Store) writeBatch(batch []req) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	insertSearch, err := tx.PrepareContext(ctx, `INSERT INTO searches(at,player,kind,query,direction,results,took_us) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer insertSearch.Close()
	insertTeleport, err := tx.PrepareContext(ctx, `INSERT INTO teleports(at,player,shop_id,via,world,x,y,z,warp,cost) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer insertTeleport.Close()

	for _, r := range batch {
		switch r.kind {
		case reqSearch:
			se := r.search
			if _, err := insertSearch.ExecContext(ctx,
				stamp(se.At),
				se.Player,
				se.Kind,
				se.Query,
				se.Direction,
				se.Results,
				se.Took.Microseconds(),
			); err != nil {
				return err
			}
		case reqTeleport:
			tp := r.teleport
			var warp sql.NullString
			if tp.Warp != "" {
				warp = sql.NullString{String: tp.Warp, Valid: true}
			}
			if _, err := insertTeleport.ExecContext(ctx,
				stamp(tp.At),
				tp.Player,
				tp.ShopID,
				tp.Via,
				tp.World,
				tp.X, tp.Y, tp.Z,
				warp,
				tp.Cost,
			); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
