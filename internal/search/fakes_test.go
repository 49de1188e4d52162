package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"shopscout.ai/internal/config"
	"shopscout.ai/internal/geom"
	"shopscout.ai/internal/market"
)

type fakeShop struct {
	market.Shop
	stock  int
	space  int
	denied map[uuid.UUID]bool
}

type fakeRegistry struct {
	mu         sync.Mutex
	shops      []*fakeShop
	listErr    error
	delay      time.Duration
	gate       chan struct{} // when set, ListShops blocks until closed or ctx ends
	listing    chan struct{} // closed on the first ListShops call
	listOnce   sync.Once
	onPrimary  *atomic.Bool
	offPrimary atomic.Int64 // capacity reads seen outside the primary context
}

func (r *fakeRegistry) add(s market.Shop, stock, space int) *fakeShop {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == 0 {
		s.ID = int64(len(r.shops) + 1)
	}
	fs := &fakeShop{Shop: s, stock: stock, space: space}
	r.shops = append(r.shops, fs)
	return fs
}

func (r *fakeRegistry) get(id int64) *fakeShop {
	for _, s := range r.shops {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (r *fakeRegistry) ListShops(ctx context.Context, loadedOnly bool) ([]market.Shop, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.listing != nil {
		r.listOnce.Do(func() { close(r.listing) })
	}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]market.Shop, 0, len(r.shops))
	for _, s := range r.shops {
		if loadedOnly && !s.Loaded {
			continue
		}
		out = append(out, s.Shop)
	}
	return out, nil
}

func (r *fakeRegistry) IsAuthorized(ctx context.Context, shopID int64, player uuid.UUID, action market.Action) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.get(shopID)
	return s != nil && !s.denied[player], nil
}

func (r *fakeRegistry) checkPrimary() {
	if r.onPrimary != nil && !r.onPrimary.Load() {
		r.offPrimary.Add(1)
	}
}

func (r *fakeRegistry) RemainingStock(ctx context.Context, shopID int64) (int, error) {
	r.checkPrimary()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(shopID).stock, nil
}

func (r *fakeRegistry) RemainingSpace(ctx context.Context, shopID int64) (int, error) {
	r.checkPrimary()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(shopID).space, nil
}

func (r *fakeRegistry) FindShopAt(ctx context.Context, world string, pos geom.Vec3i) (market.Shop, bool, error) {
	return market.Shop{}, false, errors.New("not used")
}

func (r *fakeRegistry) ShopsOwnedBy(ctx context.Context, owner uuid.UUID) ([]market.Shop, error) {
	return nil, errors.New("not used")
}

type fakeEconomy struct {
	mu       sync.Mutex
	balances map[uuid.UUID]float64
}

func (e *fakeEconomy) set(p uuid.UUID, v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.balances == nil {
		e.balances = map[uuid.UUID]float64{}
	}
	e.balances[p] = v
}

func (e *fakeEconomy) HasBalance(ctx context.Context, p uuid.UUID, amount float64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[p] >= amount, nil
}

func (e *fakeEconomy) Withdraw(ctx context.Context, p uuid.UUID, amount float64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.balances[p] < amount {
		return false, nil
	}
	e.balances[p] -= amount
	return true, nil
}

// flagExecutor marks the primary context as active while fn runs.
type flagExecutor struct {
	mu     sync.Mutex
	active atomic.Bool
	calls  atomic.Int64
}

func (x *flagExecutor) Do(ctx context.Context, fn func() error) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.calls.Add(1)
	x.active.Store(true)
	defer x.active.Store(false)
	return fn()
}

func testSettings(mut func(*config.Settings)) *config.Live {
	s := config.Defaults()
	if mut != nil {
		mut(&s)
	}
	s.Normalize()
	return config.NewLive(s)
}

func loc(world string, x, y, z float64) geom.Location {
	return geom.Location{World: world, X: x, Y: y, Z: z}
}
