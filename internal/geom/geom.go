// Package geom holds world-qualified coordinates and the small amount of
// vector math shared by the resolvers.
package geom

import (
	"fmt"
	"math"
)

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) Add(dx, dy, dz int) Vec3i {
	return Vec3i{X: v.X + dx, Y: v.Y + dy, Z: v.Z + dz}
}

func (v Vec3i) Up() Vec3i   { return v.Add(0, 1, 0) }
func (v Vec3i) Down() Vec3i { return v.Add(0, -1, 0) }

func (v Vec3i) String() string { return fmt.Sprintf("%d,%d,%d", v.X, v.Y, v.Z) }

// Location is a fractional position in a named world plus a view orientation.
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

// Block floors x and z and rounds y half-up.
func (l Location) Block() Vec3i {
	return Vec3i{
		X: int(math.Floor(l.X)),
		Y: roundHalfUp(l.Y),
		Z: int(math.Floor(l.Z)),
	}
}

// Centered snaps the location to the middle of its block column, keeping the orientation.
func (l Location) Centered() Location {
	b := l.Block()
	out := CenterOf(l.World, b)
	out.Yaw = l.Yaw
	out.Pitch = l.Pitch
	return out
}

func CenterOf(world string, b Vec3i) Location {
	return Location{World: world, X: float64(b.X) + 0.5, Y: float64(b.Y), Z: float64(b.Z) + 0.5}
}

func Distance3D(a, b Location) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dz := b.Z - a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Face returns from with yaw/pitch pointing at target.
// atan2(0, 0) is 0 in Go, so a target straight above or below is fine.
func Face(from, target Location) Location {
	dx := target.X - from.X
	dy := target.Y - from.Y
	dz := target.Z - from.Z
	distXZ := math.Sqrt(dx*dx + dz*dz)

	out := from
	out.Yaw = float32(math.Atan2(dz, dx)*180/math.Pi - 90)
	out.Pitch = float32(-math.Atan2(dy, distXZ) * 180 / math.Pi)
	return out
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Border is a square world border. Radius <= 0 means unbounded.
type Border struct {
	CenterX float64 `json:"center_x" yaml:"center_x"`
	CenterZ float64 `json:"center_z" yaml:"center_z"`
	Radius  float64 `json:"radius" yaml:"radius"`
}

func (b Border) Contains(x, z float64) bool {
	if b.Radius <= 0 {
		return true
	}
	return math.Abs(x-b.CenterX) <= b.Radius && math.Abs(z-b.CenterZ) <= b.Radius
}

// ContainsBlock tests the block's centre.
func (b Border) ContainsBlock(v Vec3i) bool {
	return b.Contains(float64(v.X)+0.5, float64(v.Z)+0.5)
}
