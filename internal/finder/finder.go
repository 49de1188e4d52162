// Package finder is the service context players talk to: it turns raw query
// text into searches, renders listings and carries out teleports.
package finder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"shopscout.ai/internal/catalogs"
	"shopscout.ai/internal/config"
	"shopscout.ai/internal/geom"
	"shopscout.ai/internal/hidden"
	"shopscout.ai/internal/market"
	plog "shopscout.ai/internal/persistence/log"
	"shopscout.ai/internal/persistence/shopdb"
	"shopscout.ai/internal/primary"
	"shopscout.ai/internal/safeloc"
	"shopscout.ai/internal/search"
	"shopscout.ai/internal/warps"
)

var (
	ErrQueryTooShort     = errors.New("query too short")
	ErrNotAShop          = errors.New("no shop at that location")
	ErrNotOwner          = errors.New("not your shop")
	ErrInsufficientFunds = errors.New("not enough money")
	ErrWarpBanned        = errors.New("banned from the nearest warp")
	ErrResultNotFound    = errors.New("shop not found")
)

// AuditStore receives one row per served search and teleport.
type AuditStore interface {
	RecordSearch(shopdb.SearchRow)
	RecordTeleport(shopdb.TeleportRow)
}

type SearchLog interface {
	WriteSearch(plog.SearchEntry) error
}

type TeleportLog interface {
	WriteTeleport(plog.TeleportEntry) error
}

// PlayerNames records display names so listings can show owners by name.
type PlayerNames interface {
	SetPlayerName(ctx context.Context, player uuid.UUID, name string) error
}

type Deps struct {
	Settings *config.Live
	Catalogs *catalogs.Catalogs
	Registry market.Registry
	Economy  market.Economy
	Primary  primary.Executor
	Engine   *search.Engine
	Safe     *safeloc.Resolver
	Warps    *warps.Directory
	Hidden   *hidden.Cache

	// Optional.
	HiddenStore *hidden.FileStore
	Players     PlayerNames
	Audit       AuditStore
	SearchLog   SearchLog
	TeleportLog TeleportLog
	Logger      *log.Logger
}

type Service struct {
	d   Deps
	log *log.Logger
}

func New(d Deps) (*Service, error) {
	switch {
	case d.Settings == nil:
		return nil, fmt.Errorf("finder: settings required")
	case d.Catalogs == nil:
		return nil, fmt.Errorf("finder: catalogs required")
	case d.Registry == nil || d.Economy == nil:
		return nil, fmt.Errorf("finder: registry and economy required")
	case d.Engine == nil || d.Safe == nil:
		return nil, fmt.Errorf("finder: search engine and safe location resolver required")
	}
	if d.Primary == nil {
		d.Primary = primary.Inline{}
	}
	if d.Hidden == nil {
		d.Hidden = hidden.NewCache(nil)
	}
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	return &Service{d: d, log: d.Logger.WithPrefix("finder")}, nil
}

func (s *Service) Settings() config.Settings { return s.d.Settings.Load() }

// Search resolves text to an item type when it names one and to a display
// name match otherwise.
func (s *Service) Search(ctx context.Context, player uuid.UUID, text string, dir search.Direction) ([]search.Result, error) {
	st := s.d.Settings.Load()
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < st.Search.MinQueryLength {
		return nil, ErrQueryTooShort
	}

	q := search.NameQuery(text, dir, player)
	kind := "name"
	if def, ok := s.d.Catalogs.Items.Lookup(strings.ReplaceAll(text, " ", "_")); ok {
		q = search.TypeQuery(def.ID, dir, player)
		kind = "type"
	}

	start := time.Now()
	res, err := s.d.Engine.Search(ctx, q)
	if err != nil {
		s.log.Error("search failed", "player", player, "query", text, "err", err)
		return nil, err
	}
	took := time.Since(start)
	s.log.Debug("search", "player", player, "kind", kind, "query", q.Key(), "direction", dir, "results", len(res), "took", took)

	if s.d.Audit != nil {
		s.d.Audit.RecordSearch(shopdb.SearchRow{
			At: start, Player: player.String(), Kind: kind, Query: q.Key(),
			Direction: dir.String(), Results: len(res), Took: took,
		})
	}
	if s.d.SearchLog != nil {
		err := s.d.SearchLog.WriteSearch(plog.SearchEntry{
			At: start.UTC(), Player: player.String(), Kind: kind, Query: q.Key(),
			Direction: dir.String(), Results: len(res), Scans: s.d.Engine.Scans(),
			TookMS: float64(took.Microseconds()) / 1000,
		})
		if err != nil {
			s.log.Warn("search log write failed", "err", err)
		}
	}
	return res, nil
}

// PlayerSeen records the name player connected with.
func (s *Service) PlayerSeen(ctx context.Context, player uuid.UUID, name string) error {
	if s.d.Players == nil {
		return nil
	}
	if err := s.d.Players.SetPlayerName(ctx, player, name); err != nil {
		return fmt.Errorf("player name: %w", err)
	}
	return nil
}

// ViewAll lists every shop trading in dir, by item name.
func (s *Service) ViewAll(ctx context.Context, player uuid.UUID, dir search.Direction) ([]Entry, error) {
	res, err := s.d.Engine.ListAll(ctx, player, dir)
	if err != nil {
		return nil, err
	}
	return s.Listing(res), nil
}

// ResolveSafeLocation reads blocks on the primary context.
func (s *Service) ResolveSafeLocation(ctx context.Context, loc geom.Location) (geom.Location, bool, error) {
	opts := safeloc.OptionsFrom(s.d.Settings.Load().Teleport)
	var (
		out geom.Location
		ok  bool
	)
	err := s.d.Primary.Do(ctx, func() error {
		out, ok = s.d.Safe.Resolve(loc, opts)
		return nil
	})
	return out, ok, err
}

func (s *Service) FindNearestWarp(loc geom.Location, owner uuid.UUID) (warps.Warp, bool) {
	st := s.d.Settings.Load()
	if !st.Warps.Enabled || s.d.Warps == nil {
		return warps.Warp{}, false
	}
	return s.d.Warps.FindNearest(loc, owner, warps.OptionsFrom(st.Warps))
}

// Reload re-reads the settings file. On error the old settings stay.
func (s *Service) Reload(ctx context.Context, path string) (config.Settings, error) {
	old := s.d.Settings.Load()
	cur, err := s.d.Settings.Reload(path)
	if err != nil {
		return old, err
	}
	s.SettingsChanged(ctx, old, cur)
	return cur, nil
}

// SettingsChanged applies a settings swap: caches are rebuilt when the TTL
// moves, the warp directory is refreshed when warps are on.
func (s *Service) SettingsChanged(ctx context.Context, old, cur config.Settings) {
	if s.d.Engine.TTL() != cur.Search.CacheTTL {
		s.d.Engine.Reset(cur.Search.CacheTTL)
	}
	if cur.Warps.Enabled && s.d.Warps != nil {
		if err := s.d.Warps.Refresh(ctx); err != nil {
			s.log.Warn("warp refresh failed", "err", err)
		}
	}
	s.log.Info("settings reloaded", "sorting", cur.Search.SortingMethod, "ttl", cur.Search.CacheTTL, "previous_ttl", old.Search.CacheTTL, "safe_location", cur.Teleport.SafeLocationMode)
}
