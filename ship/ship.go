package ship

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/shipwright/grid"
	"github.com/pthm-cable/shipwright/rules"
)

// ErrOutOfBounds reports a direct block query outside any existing chunk.
// Internal requirement evaluation never returns this: out-of-chunk neighbors
// simply read as empty.
var ErrOutOfBounds = errors.New("ship: position outside any chunk")

// Ship is one independently solved structure. All state is owned by the
// engine; callers interact through PlaceBlock, GetBlock, Tick and
// OnRulesChanged, and read chunk output arrays between ticks. A Ship is not
// safe for concurrent use.
type Ship struct {
	layout grid.Layout

	chunks      []*Chunk
	chunkLookup map[grid.Vec3]int

	toReset     IndexQueue
	toPropagate IndexQueue
	toCollapse  IndexQueue

	// wasReset records cells reset since the last edit. It steers neighbor
	// re-queues (reset vs propagate) within one edit epoch and is cleared by
	// the next PlaceBlock.
	wasReset IndexQueue
}

// New creates a ship with a single chunk at the origin. nodesPerAxis is the
// chunk's node extent per axis and must be a power of two; further chunks are
// created on first reference by PlaceBlock.
func New(nodesPerAxis int) (*Ship, error) {
	layout, err := grid.NewLayout(nodesPerAxis)
	if err != nil {
		return nil, fmt.Errorf("ship: %w", err)
	}

	s := &Ship{
		layout:      layout,
		chunkLookup: make(map[grid.Vec3]int),
	}
	s.ensureChunk(grid.Zero, nil)
	return s, nil
}

// Layout returns the ship's grid geometry.
func (s *Ship) Layout() grid.Layout {
	return s.layout
}

// Chunks returns all chunks. The slice only ever grows; indices returned by
// Tick stay valid.
func (s *Ship) Chunks() []*Chunk {
	return s.chunks
}

// Chunk returns the chunk at the given index.
func (s *Ship) Chunk(i int) *Chunk {
	return s.chunks[i]
}

// QueuedWork returns the total number of queued solver operations.
func (s *Ship) QueuedWork() int {
	return s.toReset.Len() + s.toPropagate.Len() + s.toCollapse.Len()
}

func (s *Ship) ensureChunk(chunkPos grid.Vec3, rs *rules.Set) int {
	if i, ok := s.chunkLookup[chunkPos]; ok {
		return i
	}
	s.chunks = append(s.chunks, newChunk(s.layout, chunkPos))
	i := len(s.chunks) - 1
	s.chunkLookup[chunkPos] = i
	if rs != nil {
		s.seedChunk(i, rs)
	}
	return i
}

// seedChunk queues resets for cells of a freshly created chunk that lie in
// the affected neighborhood of blocks already placed in other chunks. Those
// cells were skipped when the blocks were placed, before the chunk existed;
// without the re-seed the lattice would depend on edit order.
func (s *Ship) seedChunk(chunkIndex int, rs *rules.Set) {
	target := s.chunks[chunkIndex]
	for ci, chunk := range s.chunks {
		if ci == chunkIndex || !s.chunksWithinRadius(chunk.Pos, target.Pos, rs.MaxRadius()) {
			continue
		}
		for bi, block := range chunk.Blocks {
			if block == rules.BlockEmpty {
				continue
			}
			pos := chunk.Pos.Add(grid.FromIndex(bi, s.layout.BlocksPerChunk).Scale(2))
			for _, off := range rs.AffectedByBlock(block) {
				affected := pos.Add(off)
				if s.layout.ChunkPos(affected) != target.Pos {
					continue
				}
				s.toReset.Push(s.layout.WorldNodeIndex(chunkIndex, s.layout.NodeIndex(affected)))
			}
		}
	}
}

// chunksWithinRadius reports whether any cell of chunk a lies within r node
// cells (Chebyshev) of chunk b.
func (s *Ship) chunksWithinRadius(a, b grid.Vec3, r int) bool {
	n := s.layout.NodesPerChunk
	return axisGap(a.X, b.X, n.X) <= r &&
		axisGap(a.Y, b.Y, n.Y) <= r &&
		axisGap(a.Z, b.Z, n.Z) <= r
}

// axisGap is the distance between the intervals [a, a+extent) and
// [b, b+extent) on one axis, zero when they touch or overlap.
func axisGap(a, b, extent int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	d -= extent - 1
	if d < 0 {
		return 0
	}
	return d
}

// chunkIndexAt resolves the chunk containing a world node position, without
// creating it.
func (s *Ship) chunkIndexAt(pos grid.Vec3) (int, bool) {
	i, ok := s.chunkLookup[s.layout.ChunkPos(pos)]
	return i, ok
}

func (s *Ship) nodePos(chunkIndex, nodeIndex int) grid.Vec3 {
	return s.chunks[chunkIndex].Pos.Add(grid.FromIndex(nodeIndex, s.layout.NodesPerChunk))
}

// GetBlock returns the block index at a block position. Unlike internal
// requirement evaluation, querying a position outside every chunk is an
// error, not empty.
func (s *Ship) GetBlock(blockPos grid.Vec3) (rules.BlockIndex, error) {
	pos := grid.NodePosFromBlockPos(blockPos)
	ci, ok := s.chunkIndexAt(pos)
	if !ok {
		return rules.BlockEmpty, fmt.Errorf("%w: block %v", ErrOutOfBounds, blockPos)
	}
	return s.chunks[ci].Blocks[s.layout.BlockIndex(pos)], nil
}

// PlaceBlock sets the block at a block position and queues the affected
// neighborhood for re-solving. Placing the block index already present is a
// no-op. The chunk containing the position is created on demand.
func (s *Ship) PlaceBlock(blockPos grid.Vec3, block rules.BlockIndex, rs *rules.Set) error {
	if block < 0 || int(block) >= rs.BlockCount() {
		return fmt.Errorf("ship: unknown block index %d", block)
	}

	pos := grid.NodePosFromBlockPos(blockPos)
	ci := s.ensureChunk(s.layout.ChunkPos(pos), rs)
	bi := s.layout.BlockIndex(pos)

	old := s.chunks[ci].Blocks[bi]
	if old == block {
		return nil
	}

	slog.Debug("place block", "pos", blockPos, "block", block, "old", old)
	s.chunks[ci].Blocks[bi] = block

	s.pushAffectedResets(old, pos, rs)
	s.pushAffectedResets(block, pos, rs)

	// New edit epoch.
	s.wasReset.Clear()
	return nil
}

// pushAffectedResets queues every cell whose admissibility can depend on a
// block of the given index at pos.
func (s *Ship) pushAffectedResets(block rules.BlockIndex, pos grid.Vec3, rs *rules.Set) {
	if block == rules.BlockEmpty {
		return
	}
	for _, off := range rs.AffectedByBlock(block) {
		affected := pos.Add(off)
		ci, ok := s.chunkIndexAt(affected)
		if !ok {
			continue
		}
		s.toReset.Push(s.layout.WorldNodeIndex(ci, s.layout.NodeIndex(affected)))
	}
}

// FillBox places one block index over an inclusive box of block positions.
func (s *Ship) FillBox(min, max grid.Vec3, block rules.BlockIndex, rs *rules.Set) error {
	for z := min.Z; z <= max.Z; z++ {
		for y := min.Y; y <= max.Y; y++ {
			for x := min.X; x <= max.X; x++ {
				if err := s.PlaceBlock(grid.V3(x, y, z), block, rs); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// FillAll places one block index in every block cell of every existing
// chunk. Chunks are not created; the fill covers the ship's current extent.
func (s *Ship) FillAll(block rules.BlockIndex, rs *rules.Set) error {
	ext := s.layout.BlocksPerChunk
	for _, chunk := range s.chunks {
		origin := grid.V3(chunk.Pos.X/2, chunk.Pos.Y/2, chunk.Pos.Z/2)
		for z := 0; z < ext.Z; z++ {
			for y := 0; y < ext.Y; y++ {
				for x := 0; x < ext.X; x++ {
					if err := s.PlaceBlock(origin.Add(grid.V3(x, y, z)), block, rs); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// OnRulesChanged re-queues every cell of every chunk for propagation. Used
// after the rule library is hot-reloaded; the next ticks converge the lattice
// onto the new rules.
func (s *Ship) OnRulesChanged() {
	for ci := range s.chunks {
		for ni := 0; ni < s.layout.NodeCount(); ni++ {
			s.toPropagate.Push(s.layout.WorldNodeIndex(ci, ni))
		}
	}
}

// Tick drains up to budget queue operations in strict priority order: all
// pending resets before any propagation, all propagation before any
// collapse. It returns whether work remains and the indices of chunks that
// received at least one collapse write this call.
func (s *Ship) Tick(budget int, rs *rules.Set) (bool, []int) {
	var changed []int
	for i := 0; i < budget; i++ {
		switch {
		case !s.toReset.Empty():
			s.reset(rs)
		case !s.toPropagate.Empty():
			s.propagate(rs)
		case !s.toCollapse.Empty():
			if ci, wrote := s.collapse(rs); wrote {
				changed = appendUniqueInt(changed, ci)
			}
		default:
			return false, changed
		}
	}
	return s.QueuedWork() > 0, changed
}

// reset recomputes a cell's admissible set from first principles: block
// requirements against the live block grid, node requirements permissively
// (the neighbors may themselves be mid-reset). On change the cell's
// neighbors are re-queued — to reset if they have not been reset this epoch
// yet, otherwise to propagate — and the cell moves on to propagate and
// collapse itself.
func (s *Ship) reset(rs *rules.Set) {
	w, ok := s.toReset.Pop()
	if !ok {
		return
	}
	ci, ni := s.layout.UnpackWorldNodeIndex(w)
	pos := s.nodePos(ci, ni)

	fresh := s.computeAdmissible(pos, rs, true)
	old := s.chunks[ci].cells[ni]

	if !candidatesEqual(old, fresh) {
		requeue := func(id rules.NodeID) {
			for _, off := range rs.AffectedByNode(id) {
				affected := pos.Add(off)
				aci, ok := s.chunkIndexAt(affected)
				if !ok {
					continue
				}
				aw := s.layout.WorldNodeIndex(aci, s.layout.NodeIndex(affected))
				if !s.wasReset.Contains(aw) {
					s.toReset.Push(aw)
				} else {
					s.toPropagate.Push(aw)
				}
			}
		}
		for _, c := range old {
			requeue(c.ID)
		}
		for _, c := range fresh {
			requeue(c.ID)
		}

		// Provisionally empty until collapse settles the cell again.
		s.chunks[ci].NodeIDBits[ni] = 0

		s.wasReset.Push(w)
		s.toPropagate.Push(w)
		s.toCollapse.Push(w)
	}

	if fresh == nil {
		fresh = []Candidate{}
	}
	s.chunks[ci].cells[ni] = fresh
}

// propagate tightens a cell's admissible set against committed neighbor
// state: node requirements are evaluated strictly. Changes re-queue
// neighbors to propagate (no new raw edit happened) and the cell to
// collapse.
func (s *Ship) propagate(rs *rules.Set) {
	w, ok := s.toPropagate.Pop()
	if !ok {
		return
	}
	ci, ni := s.layout.UnpackWorldNodeIndex(w)
	pos := s.nodePos(ci, ni)

	fresh := s.computeAdmissible(pos, rs, false)
	old := s.chunks[ci].cells[ni]

	if !candidatesEqual(old, fresh) {
		requeue := func(id rules.NodeID) {
			for _, off := range rs.AffectedByNode(id) {
				affected := pos.Add(off)
				aci, ok := s.chunkIndexAt(affected)
				if !ok {
					continue
				}
				s.toPropagate.Push(s.layout.WorldNodeIndex(aci, s.layout.NodeIndex(affected)))
			}
		}
		for _, c := range old {
			requeue(c.ID)
		}
		for _, c := range fresh {
			requeue(c.ID)
		}

		s.toCollapse.Push(w)
	}

	if fresh == nil {
		fresh = []Candidate{}
	}
	s.chunks[ci].cells[ni] = fresh
}

// collapse picks the cell's final identity: the admissible candidate with
// the highest priority, ties broken by lowest identity so independent drains
// agree. An empty admissible set resolves to the empty identity. If the
// winner changed, neighbors that depend on either the old or new identity
// are re-queued to collapse.
func (s *Ship) collapse(rs *rules.Set) (chunkIndex int, wrote bool) {
	w, ok := s.toCollapse.Pop()
	if !ok {
		return 0, false
	}
	ci, ni := s.layout.UnpackWorldNodeIndex(w)
	chunk := s.chunks[ci]

	best := Candidate{ID: rules.EmptyNodeID()}
	if cands := chunk.cells[ni]; len(cands) > 0 {
		best = cands[0]
		for _, c := range cands[1:] {
			if c.Prio > best.Prio || (c.Prio == best.Prio && c.ID.Less(best.ID)) {
				best = c
			}
		}
	}

	oldBits := chunk.NodeIDBits[ni]
	newBits := best.ID.Bits()
	chunk.NodeIDBits[ni] = newBits
	chunk.RenderOccupancy[s.layout.PaddedNodeIndex(ni)] = !best.ID.IsEmpty()

	if newBits == oldBits {
		return ci, false
	}

	pos := s.nodePos(ci, ni)
	requeue := func(id rules.NodeID) {
		for _, off := range rs.AffectedByNode(id) {
			affected := pos.Add(off)
			aci, ok := s.chunkIndexAt(affected)
			if !ok {
				continue
			}
			s.toCollapse.Push(s.layout.WorldNodeIndex(aci, s.layout.NodeIndex(affected)))
		}
	}
	requeue(rules.NodeIDFromBits(oldBits))
	requeue(best.ID)

	return ci, true
}

// computeAdmissible evaluates every candidate pattern at a cell. Block
// requirements always read the live block grid; cells outside every chunk
// read as empty. A block requirement participates only when its target
// position is block-aligned, and a pattern with no participating block
// requirement is rejected, which binds patterns to cells of the intended
// parity.
//
// permissive selects reset semantics for node requirements: any in-chunk
// neighbor passes. Strict (propagate) semantics intersect the requirement
// with the neighbor's admissible set; a neighbor not yet computed passes
// only if it was reset this epoch.
func (s *Ship) computeAdmissible(pos grid.Vec3, rs *rules.Set, permissive bool) []Candidate {
	var out []Candidate

patterns:
	for _, p := range rs.Patterns() {
		checked := false
		for _, br := range p.BlockReqs {
			tp := pos.Add(br.Offset)
			if tp.X&1 != 0 || tp.Y&1 != 0 || tp.Z&1 != 0 {
				continue
			}
			checked = true

			have := rules.BlockEmpty
			if ci, ok := s.chunkIndexAt(tp); ok {
				have = s.chunks[ci].Blocks[s.layout.BlockIndex(tp)]
			}
			if have != br.Block {
				continue patterns
			}
		}
		if !checked {
			continue
		}

		for _, nr := range p.NodeReqs {
			tp := pos.Add(nr.Offset)
			ci, ok := s.chunkIndexAt(tp)
			switch {
			case !ok:
				if !nr.AllowsEmpty() {
					continue patterns
				}
			case permissive:
				// Mid-reset neighbors count as satisfying.
			default:
				ni := s.layout.NodeIndex(tp)
				cell := s.chunks[ci].cells[ni]
				if cell == nil {
					if !s.wasReset.Contains(s.layout.WorldNodeIndex(ci, ni)) {
						continue patterns
					}
					break
				}
				found := false
				for _, c := range cell {
					if nr.Allows(c.ID) {
						found = true
						break
					}
				}
				if !found {
					continue patterns
				}
			}
		}

		out = append(out, Candidate{ID: p.ID, Prio: p.Prio})
	}
	return out
}

func appendUniqueInt(s []int, v int) []int {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}
