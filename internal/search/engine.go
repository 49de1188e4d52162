// Package search answers "which shops trade this item" queries against the
// shop registry, caching ranked results per query for a configured TTL.
package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"shopscout.ai/internal/config"
	"shopscout.ai/internal/market"
	"shopscout.ai/internal/primary"
)

var ErrInvalidQuery = errors.New("invalid search query")

// SettingsSource yields the settings snapshot for one query.
type SettingsSource interface {
	Load() config.Settings
}

type Options struct {
	Registry market.Registry
	Economy  market.Economy
	Primary  primary.Executor
	Settings SettingsSource
	Logger   *log.Logger
	Rand     *rand.Rand
}

type Engine struct {
	registry market.Registry
	economy  market.Economy
	primary  primary.Executor
	settings SettingsSource
	log      *log.Logger

	mu     sync.RWMutex
	caches [2][2]*ResultCache // [kind-1][direction-1]

	group singleflight.Group
	scans atomic.Int64

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewEngine(opts Options) *Engine {
	if opts.Primary == nil {
		opts.Primary = primary.Inline{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e := &Engine{
		registry: opts.Registry,
		economy:  opts.Economy,
		primary:  opts.Primary,
		settings: opts.Settings,
		log:      opts.Logger.WithPrefix("search"),
		rng:      opts.Rand,
	}
	e.resetCaches(opts.Settings.Load().Search.CacheTTL)
	return e
}

func (e *Engine) resetCaches(ttl time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k := range e.caches {
		for d := range e.caches[k] {
			e.caches[k][d] = NewResultCache(ttl)
		}
	}
}

func (e *Engine) cacheFor(k Kind, d Direction) *ResultCache {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.caches[k-1][d-1]
}

// Reset drops every cached result and rebuilds the caches with ttl.
func (e *Engine) Reset(ttl time.Duration) {
	e.resetCaches(ttl)
	e.log.Info("result caches reset", "ttl", ttl)
}

// TTL is the lifetime the result caches currently apply.
func (e *Engine) TTL() time.Duration { return e.cacheFor(ByType, ToBuy).TTL() }

// Scans counts registry scans performed so far (cache misses).
func (e *Engine) Scans() int64 { return e.scans.Load() }

// Search returns the ranked shops matching q. A cached list is returned as is;
// callers must not modify the returned slice.
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	if !q.Kind.valid() || !q.Direction.valid() {
		return nil, ErrInvalidQuery
	}
	key := q.Key()
	cache := e.cacheFor(q.Kind, q.Direction)
	if res, ok := cache.Get(key); ok {
		e.log.Debug("cache hit", "kind", q.Kind, "key", key, "direction", q.Direction, "results", len(res))
		return res, nil
	}

	flight := strconv.Itoa(int(q.Kind)) + "|" + strconv.Itoa(int(q.Direction)) + "|" + key
	// The scan outlives any one caller; each caller stops waiting on its own ctx.
	scanCtx := context.WithoutCancel(ctx)
	ch := e.group.DoChan(flight, func() (any, error) {
		if res, ok := cache.Get(key); ok {
			return res, nil
		}
		s := e.settings.Load()
		match := matchType(key)
		if q.Kind == ByName {
			match = matchName(key)
		}
		res, err := e.scan(scanCtx, q.Player, q.Direction, s, match)
		if err != nil {
			return nil, err
		}
		ranked := Rank(res, e.mode(s), e.lockedRand())
		cache.Put(key, ranked)
		e.log.Debug("cache fill", "kind", q.Kind, "key", key, "direction", q.Direction, "results", len(ranked))
		return ranked, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]Result), nil
	}
}

// ListAll returns every admitted shop for dir regardless of item, ordered by
// item display name. Not cached.
func (e *Engine) ListAll(ctx context.Context, player uuid.UUID, dir Direction) ([]Result, error) {
	if !dir.valid() {
		return nil, ErrInvalidQuery
	}
	res, err := e.scan(ctx, player, dir, e.settings.Load(), func(market.Shop) bool { return true })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Item.PlainName() < res[j].Item.PlainName()
	})
	return res, nil
}

func matchType(key string) func(market.Shop) bool {
	return func(s market.Shop) bool { return normalizeType(s.Item.Type) == key }
}

func matchName(key string) func(market.Shop) bool {
	return func(s market.Shop) bool {
		return strings.Contains(normalizeName(s.Item.PlainName()), key)
	}
}

func (e *Engine) mode(s config.Settings) Mode {
	m, err := s.SortingMode()
	if err != nil {
		e.log.Warn("bad sorting method, ranking by price", "err", err)
		return ModePriceAscending
	}
	return Mode(m)
}

func (e *Engine) lockedRand() *rand.Rand {
	e.rngMu.Lock()
	seed := e.rng.Int63()
	e.rngMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

func (e *Engine) scan(ctx context.Context, player uuid.UUID, dir Direction, s config.Settings, match func(market.Shop) bool) ([]Result, error) {
	e.scans.Add(1)

	var shops []market.Shop
	err := e.primary.Do(ctx, func() error {
		var err error
		shops, err = e.registry.ListShops(ctx, s.Search.LoadedShopsOnly)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}

	candidates := make([]market.Shop, 0, len(shops))
	for _, shop := range shops {
		ok, err := e.registry.IsAuthorized(ctx, shop.ID, player, market.ActionSearch)
		if err != nil {
			return nil, fmt.Errorf("authorize shop %d: %w", shop.ID, err)
		}
		if !ok || s.IsBlacklisted(shop.Location.World) || !match(shop) {
			continue
		}
		if dir == ToBuy && !shop.Selling || dir == ToSell && !shop.Buying {
			continue
		}
		candidates = append(candidates, shop)
	}

	capacity := make([]int, len(candidates))
	err = e.primary.Do(ctx, func() error {
		for i, shop := range candidates {
			var err error
			if dir == ToBuy {
				capacity[i], err = e.registry.RemainingStock(ctx, shop.ID)
			} else {
				capacity[i], err = e.registry.RemainingSpace(ctx, shop.ID)
			}
			if err != nil {
				return fmt.Errorf("capacity of shop %d: %w", shop.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(candidates))
	for i, shop := range candidates {
		remaining := MapCapacity(capacity[i])
		if remaining <= 0 {
			continue
		}
		if dir == ToSell {
			ok, err := e.economy.HasBalance(ctx, shop.Owner, shop.Price)
			if err != nil {
				return nil, fmt.Errorf("owner balance for shop %d: %w", shop.ID, err)
			}
			if !ok {
				continue
			}
		}
		results = append(results, newResult(shop, remaining, dir))
	}
	return results, nil
}
