package rules

import (
	"testing"

	"github.com/pthm-cable/shipwright/grid"
)

func TestRotIdentity(t *testing.T) {
	for _, v := range []grid.Vec3{grid.V3(1, 2, 3), grid.V3(-4, 0, 7), grid.Zero} {
		if got := RotIdentity.Apply(v); got != v {
			t.Errorf("identity.Apply(%v) = %v", v, got)
		}
	}
	for _, r := range AllRots() {
		if r.Mul(RotIdentity) != r || RotIdentity.Mul(r) != r {
			t.Errorf("rot %d does not compose cleanly with identity", r)
		}
	}
}

func TestRotsAreDistinct(t *testing.T) {
	// A generic vector separates all 24 orientations.
	v := grid.V3(1, 2, 3)
	seen := make(map[grid.Vec3]Rot)
	for _, r := range AllRots() {
		got := r.Apply(v)
		if prev, ok := seen[got]; ok {
			t.Fatalf("rots %d and %d map %v to the same %v", prev, r, v, got)
		}
		seen[got] = r
	}
}

func TestRotsPreserveLength(t *testing.T) {
	v := grid.V3(1, 2, 3)
	want := v.X*v.X + v.Y*v.Y + v.Z*v.Z
	for _, r := range AllRots() {
		u := r.Apply(v)
		if u.X*u.X+u.Y*u.Y+u.Z*u.Z != want {
			t.Errorf("rot %d does not preserve length: %v -> %v", r, v, u)
		}
	}
}

func TestRotMulMatchesApply(t *testing.T) {
	v := grid.V3(1, 2, 3)
	for _, a := range AllRots() {
		for _, b := range AllRots() {
			if a.Mul(b).Apply(v) != a.Apply(b.Apply(v)) {
				t.Fatalf("composition mismatch for %d*%d", a, b)
			}
		}
	}
}

func TestRotGroupClosure(t *testing.T) {
	for _, a := range AllRots() {
		// Every rotation has an inverse within the 24.
		hasInverse := false
		for _, b := range AllRots() {
			if !a.Mul(b).Valid() {
				t.Fatalf("%d*%d escaped the rotation set", a, b)
			}
			if a.Mul(b) == RotIdentity {
				hasInverse = true
			}
		}
		if !hasInverse {
			t.Errorf("rot %d has no inverse", a)
		}
	}
}

func TestRotValid(t *testing.T) {
	if !Rot(23).Valid() {
		t.Error("rot 23 should be valid")
	}
	if Rot(24).Valid() {
		t.Error("rot 24 should be invalid")
	}
}
