// Package warps picks the closest usable fast-travel point to a shop.
package warps

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"shopscout.ai/internal/config"
	"shopscout.ai/internal/geom"
)

type Warp struct {
	Name     string        `json:"name"`
	Owner    uuid.UUID     `json:"owner"`
	Location geom.Location `json:"location"`
	Locked   bool          `json:"locked"`
	Visits   int           `json:"visits"`
}

// Registry is the external warp system.
type Registry interface {
	ListWarps(ctx context.Context) ([]Warp, error)
	IsBanned(ctx context.Context, warp string, player uuid.UUID) (bool, error)
	// RecordVisit counts player's first visit to warp; repeat visits are no-ops.
	RecordVisit(ctx context.Context, warp string, player uuid.UUID) (first bool, err error)
}

type Options struct {
	MaxDistance float64
	OwnerFilter string // config.OwnerPreferred or config.OwnerRequired
}

func OptionsFrom(w config.WarpSettings) Options {
	return Options{MaxDistance: w.MaxDistance, OwnerFilter: w.OwnerFilter}
}

// Nearest returns the closest unlocked warp in target's world within
// MaxDistance. When owner is set, that owner's warps are considered first;
// with OwnerPreferred the search falls back to every warp in the world if the
// owner has none there.
func Nearest(all []Warp, target geom.Location, owner uuid.UUID, opts Options) (Warp, bool) {
	if opts.MaxDistance <= 0 {
		opts.MaxDistance = 200
	}
	sameWorld := make([]Warp, 0, len(all))
	for _, w := range all {
		if w.Location.World == target.World {
			sameWorld = append(sameWorld, w)
		}
	}

	candidates := sameWorld
	if owner != uuid.Nil {
		owned := make([]Warp, 0, len(sameWorld))
		for _, w := range sameWorld {
			if w.Owner == owner {
				owned = append(owned, w)
			}
		}
		if len(owned) > 0 || opts.OwnerFilter == config.OwnerRequired {
			candidates = owned
		}
	}

	type ranked struct {
		w    Warp
		dist float64
	}
	rs := make([]ranked, len(candidates))
	for i, w := range candidates {
		rs[i] = ranked{w: w, dist: geom.Distance3D(target, w.Location)}
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].dist < rs[j].dist })

	for _, r := range rs {
		if r.dist > opts.MaxDistance {
			break
		}
		if r.w.Locked {
			continue
		}
		return r.w, true
	}
	return Warp{}, false
}
