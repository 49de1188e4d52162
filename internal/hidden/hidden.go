// Package hidden tracks shops their owners have taken out of search listings.
package hidden

import (
	"sync"

	"github.com/google/uuid"

	"shopscout.ai/internal/geom"
)

// Position identifies a shop by its exact location.
type Position struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	World string  `json:"world"`
}

func PositionOf(l geom.Location) Position {
	return Position{X: l.X, Y: l.Y, Z: l.Z, World: l.World}
}

// Cache holds hidden shop positions keyed by owner.
type Cache struct {
	mu    sync.RWMutex
	byOwn map[uuid.UUID][]Position
}

func NewCache(initial map[uuid.UUID][]Position) *Cache {
	c := &Cache{byOwn: make(map[uuid.UUID][]Position, len(initial))}
	for owner, ps := range initial {
		for _, p := range ps {
			c.hideLocked(owner, p)
		}
	}
	return c
}

func (c *Cache) hideLocked(owner uuid.UUID, p Position) bool {
	for _, x := range c.byOwn[owner] {
		if x == p {
			return false
		}
	}
	c.byOwn[owner] = append(c.byOwn[owner], p)
	return true
}

// Hide reports false when p was already hidden.
func (c *Cache) Hide(owner uuid.UUID, p Position) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hideLocked(owner, p)
}

// Unhide reports false when p was not hidden.
func (c *Cache) Unhide(owner uuid.UUID, p Position) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ps := c.byOwn[owner]
	for i, x := range ps {
		if x != p {
			continue
		}
		next := make([]Position, 0, len(ps)-1)
		next = append(next, ps[:i]...)
		next = append(next, ps[i+1:]...)
		if len(next) == 0 {
			delete(c.byOwn, owner)
		} else {
			c.byOwn[owner] = next
		}
		return true
	}
	return false
}

// HideAll hides every position in ps and returns how many were new.
func (c *Cache) HideAll(owner uuid.UUID, ps []Position) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range ps {
		if c.hideLocked(owner, p) {
			n++
		}
	}
	return n
}

// UnhideAll clears owner's list and returns how many positions it held.
func (c *Cache) UnhideAll(owner uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.byOwn[owner])
	delete(c.byOwn, owner)
	return n
}

func (c *Cache) IsHidden(owner uuid.UUID, p Position) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, x := range c.byOwn[owner] {
		if x == p {
			return true
		}
	}
	return false
}

// Snapshot copies the whole table for persistence.
func (c *Cache) Snapshot() map[uuid.UUID][]Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[uuid.UUID][]Position, len(c.byOwn))
	for owner, ps := range c.byOwn {
		out[owner] = append([]Position(nil), ps...)
	}
	return out
}
