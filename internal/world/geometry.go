package world

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

type Vec3 struct{ X, Y, Z float64 }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) DistanceTo(o Vec3) float64 {
	d := v.Sub(o)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// Axis returns the component for 'x', 'y' or 'z'.
func (v Vec3) Axis(a byte) (float64, bool) {
	switch a {
	case 'x', 'X':
		return v.X, true
	case 'y', 'Y':
		return v.Y, true
	case 'z', 'Z':
		return v.Z, true
	}
	return 0, false
}

func (v Vec3) String() string {
	return fmt.Sprintf("%.3f, %.3f, %.3f", v.X, v.Y, v.Z)
}

// Block returns the block containing v.
func (v Vec3) Block() BlockPos {
	return BlockPos{int(math.Floor(v.X)), int(math.Floor(v.Y)), int(math.Floor(v.Z))}
}

type BlockPos struct{ X, Y, Z int }

// Center is the middle of the block's bottom face.
func (b BlockPos) Center() Vec3 {
	return Vec3{float64(b.X) + 0.5, float64(b.Y), float64(b.Z) + 0.5}
}

// NearestBlocks keeps the blocks within maxDistance of origin that match,
// nearest first, cut to count when count > 0. Ties keep their input order.
func NearestBlocks(origin Vec3, blocks []Block, maxDistance float64, count int, match func(Block) bool) []Block {
	type candidate struct {
		b Block
		d float64
	}
	var cs []candidate
	for _, b := range blocks {
		d := origin.DistanceTo(b.Pos.Center())
		if d > maxDistance {
			continue
		}
		if match != nil && !match(b) {
			continue
		}
		cs = append(cs, candidate{b, d})
	}
	slices.SortStableFunc(cs, func(x, y candidate) int { return cmp.Compare(x.d, y.d) })
	if count > 0 && len(cs) > count {
		cs = cs[:count]
	}
	out := make([]Block, len(cs))
	for i, c := range cs {
		out[i] = c.b
	}
	return out
}

// Direction names accepted by look and move. Yaw is degrees clockwise from
// north (-Z); north is 0, east 90.
var directions = map[string]struct {
	yaw   float64
	delta Vec3
}{
	"north": {0, Vec3{0, 0, -1}},
	"east":  {90, Vec3{1, 0, 0}},
	"south": {180, Vec3{0, 0, 1}},
	"west":  {270, Vec3{-1, 0, 0}},
}

// DirectionYaw returns the yaw of a cardinal direction.
func DirectionYaw(name string) (float64, bool) {
	d, ok := directions[name]
	return d.yaw, ok
}

// DirectionDelta returns the unit step of a cardinal direction.
func DirectionDelta(name string) (Vec3, bool) {
	d, ok := directions[name]
	return d.delta, ok
}

// LookAngles returns yaw and pitch (degrees) that point from eye to target.
// Pitch is positive looking up and clamped to [-90, 90].
func LookAngles(eye, target Vec3) (yaw, pitch float64) {
	d := target.Sub(eye)
	yaw = math.Atan2(d.X, -d.Z) * 180 / math.Pi
	if yaw < 0 {
		yaw += 360
	}
	ground := math.Sqrt(d.X*d.X + d.Z*d.Z)
	pitch = math.Atan2(d.Y, ground) * 180 / math.Pi
	return yaw, math.Max(-90, math.Min(90, pitch))
}
