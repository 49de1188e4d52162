package warps

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"shopscout.ai/internal/geom"
)

// Directory is an in-memory copy of the warp registry. Readers get an
// immutable snapshot; writers replace it whole.
type Directory struct {
	reg Registry
	log *log.Logger

	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[[]Warp]
}

func NewDirectory(reg Registry, logger *log.Logger) *Directory {
	if logger == nil {
		logger = log.Default()
	}
	d := &Directory{reg: reg, log: logger.WithPrefix("warps")}
	empty := []Warp{}
	d.snap.Store(&empty)
	return d
}

// Refresh reloads every warp from the registry. Events arriving meanwhile
// wait for it, so they apply on top of the fresh list.
func (d *Directory) Refresh(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ws, err := d.reg.ListWarps(ctx)
	if err != nil {
		return fmt.Errorf("list warps: %w", err)
	}
	cp := append([]Warp(nil), ws...)
	d.snap.Store(&cp)
	d.log.Debug("warps refreshed", "count", len(cp))
	return nil
}

func (d *Directory) Warps() []Warp { return *d.snap.Load() }

// OnCreate adds w, replacing any warp with the same name.
func (d *Directory) OnCreate(w Warp) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := *d.snap.Load()
	next := make([]Warp, 0, len(cur)+1)
	for _, x := range cur {
		if x.Name != w.Name {
			next = append(next, x)
		}
	}
	next = append(next, w)
	d.snap.Store(&next)
}

func (d *Directory) OnRemove(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := *d.snap.Load()
	next := make([]Warp, 0, len(cur))
	for _, x := range cur {
		if x.Name != name {
			next = append(next, x)
		}
	}
	d.snap.Store(&next)
}

func (d *Directory) FindNearest(target geom.Location, owner uuid.UUID, opts Options) (Warp, bool) {
	return Nearest(d.Warps(), target, owner, opts)
}

func (d *Directory) IsBanned(ctx context.Context, w Warp, player uuid.UUID) (bool, error) {
	banned, err := d.reg.IsBanned(ctx, w.Name, player)
	if err != nil {
		return false, fmt.Errorf("warp %s ban list: %w", w.Name, err)
	}
	return banned, nil
}

func (d *Directory) RecordVisit(ctx context.Context, w Warp, player uuid.UUID) error {
	first, err := d.reg.RecordVisit(ctx, w.Name, player)
	if err != nil {
		return fmt.Errorf("warp %s visit: %w", w.Name, err)
	}
	if first {
		d.log.Debug("first visit", "warp", w.Name, "player", player)
	}
	return nil
}
