// Package grid provides integer lattice math for the chunked ship grids:
// flat<->3D index conversion, chunk position masking, and world node index
// packing. Blocks live on a coarse grid, nodes on a grid with twice the
// resolution; both share the same chunk layout.
package grid

// Vec3 is an integer 3D position or offset.
type Vec3 struct {
	X, Y, Z int
}

// V3 constructs a Vec3.
func V3(x, y, z int) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Zero is the origin.
var Zero = Vec3{}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s int) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Neg returns -v.
func (v Vec3) Neg() Vec3 {
	return Vec3{-v.X, -v.Y, -v.Z}
}

// Less orders Vec3 lexicographically by (Z, Y, X), matching index order.
func (v Vec3) Less(o Vec3) bool {
	if v.Z != o.Z {
		return v.Z < o.Z
	}
	if v.Y != o.Y {
		return v.Y < o.Y
	}
	return v.X < o.X
}

// ToIndex converts a position to a flat row-major index for the given
// extents: i = x + y*w + z*w*h.
func ToIndex(pos, ext Vec3) int {
	return pos.X + pos.Y*ext.X + pos.Z*ext.X*ext.Y
}

// FromIndex is the inverse of ToIndex.
func FromIndex(i int, ext Vec3) Vec3 {
	z := i / (ext.X * ext.Y)
	i -= z * ext.X * ext.Y
	y := i / ext.X
	x := i % ext.X
	return Vec3{x, y, z}
}

// InBounds reports whether pos lies in [0, ext) on every axis.
func InBounds(pos, ext Vec3) bool {
	return pos.X >= 0 && pos.Y >= 0 && pos.Z >= 0 &&
		pos.X < ext.X && pos.Y < ext.Y && pos.Z < ext.Z
}
