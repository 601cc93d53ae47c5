package rules

import "github.com/pthm-cable/shipwright/grid"

// NumRots is the number of axis-aligned orientations of a node shape.
const NumRots = 24

// Rot identifies one of the 24 proper axis-aligned rotations. Rot 0 is the
// identity. The value doubles as the rotation bit field in packed node
// identity bits.
type Rot uint8

// RotIdentity is the no-op rotation.
const RotIdentity Rot = 0

// mat3 is a row-major integer rotation matrix: out[i] = sum_j m[i*3+j]*v[j].
type mat3 [9]int

var rotMats [NumRots]mat3
var rotIndex map[mat3]Rot
var rotMulTable [NumRots][NumRots]Rot

func init() {
	perms := [6][3]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}

	n := 0
	rotIndex = make(map[mat3]Rot, NumRots)
	for _, p := range perms {
		for signs := 0; signs < 8; signs++ {
			var m mat3
			det := 1
			for i := 0; i < 3; i++ {
				s := 1
				if signs&(1<<i) != 0 {
					s = -1
				}
				m[i*3+p[i]] = s
				det *= s
			}
			// Permutation parity.
			inv := 0
			for i := 0; i < 3; i++ {
				for j := i + 1; j < 3; j++ {
					if p[i] > p[j] {
						inv++
					}
				}
			}
			if inv%2 == 1 {
				det = -det
			}
			if det != 1 {
				continue
			}
			rotMats[n] = m
			rotIndex[m] = Rot(n)
			n++
		}
	}

	for a := 0; a < NumRots; a++ {
		for b := 0; b < NumRots; b++ {
			rotMulTable[a][b] = rotIndex[mulMat3(rotMats[a], rotMats[b])]
		}
	}
}

func mulMat3(a, b mat3) mat3 {
	var c mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := 0
			for k := 0; k < 3; k++ {
				v += a[i*3+k] * b[k*3+j]
			}
			c[i*3+j] = v
		}
	}
	return c
}

// AllRots lists every rotation in deterministic order.
func AllRots() [NumRots]Rot {
	var out [NumRots]Rot
	for i := range out {
		out[i] = Rot(i)
	}
	return out
}

// Apply rotates an offset vector.
func (r Rot) Apply(v grid.Vec3) grid.Vec3 {
	m := rotMats[r]
	return grid.V3(
		m[0]*v.X+m[1]*v.Y+m[2]*v.Z,
		m[3]*v.X+m[4]*v.Y+m[5]*v.Z,
		m[6]*v.X+m[7]*v.Y+m[8]*v.Z,
	)
}

// Mul composes rotations: (r.Mul(o)).Apply(v) == r.Apply(o.Apply(v)).
func (r Rot) Mul(o Rot) Rot {
	return rotMulTable[r][o]
}

// Valid reports whether r is one of the 24 orientations.
func (r Rot) Valid() bool {
	return r < NumRots
}
