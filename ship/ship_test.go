package ship

import (
	"errors"
	"testing"

	"github.com/pthm-cable/shipwright/grid"
	"github.com/pthm-cable/shipwright/rules"
)

// markerRules builds a minimal library: block "steel" produces a "core" node
// on its own cell and a "corner" node on the cell diagonal to it.
func markerRules(t *testing.T) *rules.Set {
	t.Helper()
	lib := rules.NewLibrary()
	steel, err := lib.AddBlock("steel")
	if err != nil {
		t.Fatal(err)
	}
	core, err := lib.AddShape("core")
	if err != nil {
		t.Fatal(err)
	}
	corner, err := lib.AddShape("corner")
	if err != nil {
		t.Fatal(err)
	}

	lib.AddPattern(rules.Pattern{
		ID:        rules.NodeID{Shape: core},
		Prio:      1,
		BlockReqs: []rules.BlockReq{{Offset: grid.Zero, Block: steel}},
	})
	lib.AddPattern(rules.Pattern{
		ID:        rules.NodeID{Shape: corner},
		Prio:      1,
		BlockReqs: []rules.BlockReq{{Offset: grid.V3(-1, -1, -1), Block: steel}},
	})

	rs, err := lib.Compile()
	if err != nil {
		t.Fatal(err)
	}
	return rs
}

// chainRules adds a node-requirement dependency: a "cap" node forms two
// cells away from a steel block, but only while its neighbor still admits
// the "core" identity.
func chainRules(t *testing.T) *rules.Set {
	t.Helper()
	lib := rules.NewLibrary()
	steel, err := lib.AddBlock("steel")
	if err != nil {
		t.Fatal(err)
	}
	core, err := lib.AddShape("core")
	if err != nil {
		t.Fatal(err)
	}
	capShape, err := lib.AddShape("cap")
	if err != nil {
		t.Fatal(err)
	}

	lib.AddPattern(rules.Pattern{
		ID:        rules.NodeID{Shape: core},
		Prio:      2,
		BlockReqs: []rules.BlockReq{{Offset: grid.Zero, Block: steel}},
	})
	lib.AddPattern(rules.Pattern{
		ID:        rules.NodeID{Shape: capShape},
		Prio:      1,
		BlockReqs: []rules.BlockReq{{Offset: grid.V3(2, 0, 0), Block: steel}},
		NodeReqs: []rules.NodeReq{{
			Offset: grid.V3(2, 0, 0),
			IDs:    []rules.NodeID{{Shape: core}},
		}},
	})

	rs, err := lib.Compile()
	if err != nil {
		t.Fatal(err)
	}
	return rs
}

// drain runs ticks until the ship reports no more work.
func drain(t *testing.T, s *Ship, rs *rules.Set, budget int) []int {
	t.Helper()
	var changed []int
	for i := 0; i < 100000; i++ {
		more, ch := s.Tick(budget, rs)
		for _, c := range ch {
			changed = appendUniqueInt(changed, c)
		}
		if !more {
			return changed
		}
	}
	t.Fatal("solver did not reach a fixed point")
	return nil
}

func nodeBitsAt(s *Ship, pos grid.Vec3) uint32 {
	ci, ok := s.chunkIndexAt(pos)
	if !ok {
		return 0
	}
	return s.Chunk(ci).NodeIDBits[s.Layout().NodeIndex(pos)]
}

func TestPlaceBlockIdempotent(t *testing.T) {
	rs := markerRules(t)
	s, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	steel, _ := rs.BlockByName("steel")

	if err := s.PlaceBlock(grid.V3(2, 2, 2), steel, rs); err != nil {
		t.Fatal(err)
	}
	drain(t, s, rs, 8)

	// Re-placing the same block must not queue anything.
	if err := s.PlaceBlock(grid.V3(2, 2, 2), steel, rs); err != nil {
		t.Fatal(err)
	}
	if s.QueuedWork() != 0 {
		t.Errorf("idempotent place queued %d operations", s.QueuedWork())
	}
	more, changed := s.Tick(16, rs)
	if more || len(changed) != 0 {
		t.Errorf("tick after idempotent place: more=%v changed=%v", more, changed)
	}
}

func TestFixedPoint(t *testing.T) {
	rs := markerRules(t)
	s, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	steel, _ := rs.BlockByName("steel")

	if err := s.PlaceBlock(grid.V3(1, 1, 1), steel, rs); err != nil {
		t.Fatal(err)
	}
	drain(t, s, rs, 4)

	for _, budget := range []int{1, 7, 512} {
		more, changed := s.Tick(budget, rs)
		if more || len(changed) != 0 {
			t.Errorf("tick(%d) at fixed point: more=%v changed=%v", budget, more, changed)
		}
	}
}

func TestResolveAroundBlock(t *testing.T) {
	rs := markerRules(t)
	s, err := New(32)
	if err != nil {
		t.Fatal(err)
	}
	steel, _ := rs.BlockByName("steel")
	core, _ := rs.ShapeByName("core")
	corner, _ := rs.ShapeByName("corner")

	if err := s.PlaceBlock(grid.V3(0, 0, 0), steel, rs); err != nil {
		t.Fatal(err)
	}
	changed := drain(t, s, rs, 4)
	if len(changed) == 0 {
		t.Fatal("no chunks reported changed")
	}

	// The block's own cell carries the core node.
	wantCore := rules.NodeID{Shape: core}.Bits()
	if got := nodeBitsAt(s, grid.V3(0, 0, 0)); got != wantCore {
		t.Errorf("core cell bits = %#x, want %#x", got, wantCore)
	}
	// The diagonal cell carries the corner node.
	wantCorner := rules.NodeID{Shape: corner}.Bits()
	if got := nodeBitsAt(s, grid.V3(1, 1, 1)); got != wantCorner {
		t.Errorf("corner cell bits = %#x, want %#x", got, wantCorner)
	}
	// Occupancy mirrors the resolved cells.
	l := s.Layout()
	chunk := s.Chunk(0)
	if !chunk.RenderOccupancy[l.PaddedNodeIndex(l.NodeIndex(grid.V3(0, 0, 0)))] {
		t.Error("core cell not marked occupied")
	}

	// Cells beyond the affected-by radius stay empty.
	r := rs.MaxRadius()
	far := grid.V3(r+2, r+2, r+2)
	if got := nodeBitsAt(s, far); got != 0 {
		t.Errorf("far cell %v resolved to %#x, want empty", far, got)
	}
}

func TestRevertRestoresBaseline(t *testing.T) {
	rs := markerRules(t)
	s, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	steel, _ := rs.BlockByName("steel")

	baseline := append([]uint32(nil), s.Chunk(0).NodeIDBits...)

	if err := s.PlaceBlock(grid.V3(3, 3, 3), steel, rs); err != nil {
		t.Fatal(err)
	}
	drain(t, s, rs, 4)

	if err := s.PlaceBlock(grid.V3(3, 3, 3), rules.BlockEmpty, rs); err != nil {
		t.Fatal(err)
	}
	drain(t, s, rs, 4)

	for i, want := range baseline {
		if got := s.Chunk(0).NodeIDBits[i]; got != want {
			t.Fatalf("cell %d bits = %#x after revert, baseline %#x", i, got, want)
		}
	}
}

func TestAdmissibleNeverViolatesBlockReqs(t *testing.T) {
	rs := markerRules(t)
	s, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	steel, _ := rs.BlockByName("steel")

	if err := s.FillBox(grid.V3(1, 1, 1), grid.V3(3, 2, 2), steel, rs); err != nil {
		t.Fatal(err)
	}
	drain(t, s, rs, 16)

	l := s.Layout()
	chunk := s.Chunk(0)
	for ni := 0; ni < l.NodeCount(); ni++ {
		cands := chunk.Admissible(ni)
		if cands == nil {
			continue
		}
		pos := chunk.Pos.Add(grid.FromIndex(ni, l.NodesPerChunk))
		for _, cand := range cands {
			for _, p := range rs.Patterns() {
				if p.ID != cand.ID {
					continue
				}
				for _, br := range p.BlockReqs {
					tp := pos.Add(br.Offset)
					if tp.X&1 != 0 || tp.Y&1 != 0 || tp.Z&1 != 0 {
						continue
					}
					have := rules.BlockEmpty
					if ci, ok := s.chunkIndexAt(tp); ok {
						have = s.Chunk(ci).Blocks[l.BlockIndex(tp)]
					}
					if have != br.Block {
						t.Fatalf("cell %v admits %v but block req at %v is violated", pos, cand.ID, tp)
					}
				}
			}
		}
	}
}

func TestDeterministicCollapse(t *testing.T) {
	rs := chainRules(t)
	steel, _ := rs.BlockByName("steel")

	run := func(budget int) []uint32 {
		s, err := New(16)
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range []grid.Vec3{{X: 1, Y: 1, Z: 1}, {X: 2, Y: 1, Z: 1}, {X: 2, Y: 2, Z: 1}} {
			if err := s.PlaceBlock(p, steel, rs); err != nil {
				t.Fatal(err)
			}
		}
		drain(t, s, rs, budget)
		return s.Chunk(0).NodeIDBits
	}

	a := run(1)
	b := run(64)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("cell %d differs between drains: %#x vs %#x", i, a[i], b[i])
		}
	}
}

func TestNodeRequirementCascade(t *testing.T) {
	rs := chainRules(t)
	s, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	steel, _ := rs.BlockByName("steel")
	core, _ := rs.ShapeByName("core")
	capShape, _ := rs.ShapeByName("cap")

	// Block at (1,0,0): core forms at node (2,0,0), cap at node (0,0,0).
	if err := s.PlaceBlock(grid.V3(1, 0, 0), steel, rs); err != nil {
		t.Fatal(err)
	}
	drain(t, s, rs, 4)

	if got := nodeBitsAt(s, grid.V3(2, 0, 0)); got != (rules.NodeID{Shape: core}).Bits() {
		t.Fatalf("core cell bits = %#x", got)
	}
	if got := nodeBitsAt(s, grid.V3(0, 0, 0)); got != (rules.NodeID{Shape: capShape}).Bits() {
		t.Fatalf("cap cell bits = %#x", got)
	}

	// Removing the block cascades both cells back to empty.
	if err := s.PlaceBlock(grid.V3(1, 0, 0), rules.BlockEmpty, rs); err != nil {
		t.Fatal(err)
	}
	drain(t, s, rs, 4)

	if got := nodeBitsAt(s, grid.V3(2, 0, 0)); got != 0 {
		t.Errorf("core cell bits after removal = %#x", got)
	}
	if got := nodeBitsAt(s, grid.V3(0, 0, 0)); got != 0 {
		t.Errorf("cap cell bits after removal = %#x", got)
	}
}

func TestFillAll(t *testing.T) {
	rs := markerRules(t)
	s, err := New(8)
	if err != nil {
		t.Fatal(err)
	}
	steel, _ := rs.BlockByName("steel")

	if err := s.FillAll(steel, rs); err != nil {
		t.Fatal(err)
	}
	drain(t, s, rs, 64)

	ext := s.Layout().BlocksPerChunk
	for z := 0; z < ext.Z; z++ {
		for y := 0; y < ext.Y; y++ {
			for x := 0; x < ext.X; x++ {
				got, err := s.GetBlock(grid.V3(x, y, z))
				if err != nil || got != steel {
					t.Fatalf("GetBlock(%d,%d,%d) = %v, %v", x, y, z, got, err)
				}
			}
		}
	}

	// Clearing drains back to the all-empty lattice.
	if err := s.FillAll(rules.BlockEmpty, rs); err != nil {
		t.Fatal(err)
	}
	drain(t, s, rs, 64)
	for _, bits := range s.Chunk(0).NodeIDBits {
		if bits != 0 {
			t.Fatal("cleared ship still has resolved nodes")
		}
	}
}

func TestGetBlockOutOfBounds(t *testing.T) {
	s, err := New(16)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetBlock(grid.V3(1000, 0, 0)); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("GetBlock far away = %v, want ErrOutOfBounds", err)
	}

	// In-chunk positions are addressable even while empty.
	got, err := s.GetBlock(grid.V3(3, 3, 3))
	if err != nil || got != rules.BlockEmpty {
		t.Errorf("GetBlock in chunk = %v, %v", got, err)
	}
}

func TestChunksCreatedOnDemand(t *testing.T) {
	rs := markerRules(t)
	s, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	steel, _ := rs.BlockByName("steel")

	if len(s.Chunks()) != 1 {
		t.Fatalf("new ship has %d chunks, want 1", len(s.Chunks()))
	}

	// Block (20,0,0) -> node (40,0,0) -> chunk (32,0,0).
	if err := s.PlaceBlock(grid.V3(20, 0, 0), steel, rs); err != nil {
		t.Fatal(err)
	}
	if len(s.Chunks()) != 2 {
		t.Fatalf("ship has %d chunks after remote place, want 2", len(s.Chunks()))
	}
	drain(t, s, rs, 8)

	got, err := s.GetBlock(grid.V3(20, 0, 0))
	if err != nil || got != steel {
		t.Errorf("GetBlock in new chunk = %v, %v", got, err)
	}
}

func TestLateChunkSeesEarlierBlocks(t *testing.T) {
	rs := chainRules(t)
	steel, _ := rs.BlockByName("steel")
	capShape, _ := rs.ShapeByName("cap")

	// The cap candidate for a block at (0,0,0) sits at node (-2,0,0), one
	// chunk over. Whichever edit creates that chunk, the cell must resolve.
	run := func(order []grid.Vec3) uint32 {
		s, err := New(16)
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range order {
			if err := s.PlaceBlock(p, steel, rs); err != nil {
				t.Fatal(err)
			}
		}
		drain(t, s, rs, 8)
		return nodeBitsAt(s, grid.V3(-2, 0, 0))
	}

	want := (rules.NodeID{Shape: capShape}).Bits()
	a := run([]grid.Vec3{{X: 0, Y: 0, Z: 0}, {X: -8, Y: 0, Z: 0}})
	b := run([]grid.Vec3{{X: -8, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 0}})
	if a != want {
		t.Errorf("chunk created after the block: bits = %#x, want %#x", a, want)
	}
	if b != want {
		t.Errorf("chunk created before the block: bits = %#x, want %#x", b, want)
	}
	if a != b {
		t.Errorf("lattice depends on edit order: %#x vs %#x", a, b)
	}
}

func TestOnRulesChangedReconverges(t *testing.T) {
	rs := markerRules(t)
	s, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	steel, _ := rs.BlockByName("steel")

	if err := s.PlaceBlock(grid.V3(2, 2, 2), steel, rs); err != nil {
		t.Fatal(err)
	}
	drain(t, s, rs, 8)
	before := append([]uint32(nil), s.Chunk(0).NodeIDBits...)

	// Same rules: re-propagating everything must land on the same lattice.
	s.OnRulesChanged()
	if s.QueuedWork() == 0 {
		t.Fatal("OnRulesChanged queued no work")
	}
	drain(t, s, rs, 32)

	for i, want := range before {
		if got := s.Chunk(0).NodeIDBits[i]; got != want {
			t.Fatalf("cell %d bits = %#x after rules reload, want %#x", i, got, want)
		}
	}
}

func TestUnconstrainedShipStaysEmpty(t *testing.T) {
	rs := markerRules(t)
	s, err := New(16)
	if err != nil {
		t.Fatal(err)
	}

	more, changed := s.Tick(256, rs)
	if more || len(changed) != 0 {
		t.Errorf("empty ship tick: more=%v changed=%v", more, changed)
	}
	for _, bits := range s.Chunk(0).NodeIDBits {
		if bits != 0 {
			t.Fatal("empty ship resolved a non-empty node")
		}
	}
}
