package ship

import (
	"github.com/pthm-cable/shipwright/grid"
	"github.com/pthm-cable/shipwright/rules"
)

// Candidate is one admissible (identity, priority) pair for a node cell.
type Candidate struct {
	ID   rules.NodeID
	Prio int
}

// Chunk holds one chunk's block grid, the solver's per-cell admissible sets,
// and the derived arrays the mesher reads. NodeIDBits and RenderOccupancy
// always reflect the last collapse; RenderOccupancy carries one cell of
// padding per axis for greedy meshing.
type Chunk struct {
	// Pos is the chunk origin in node coordinates.
	Pos grid.Vec3

	Blocks []rules.BlockIndex

	// cells[i] lists the currently admissible candidates for node cell i.
	// nil means the cell has not been computed since its last reset.
	cells [][]Candidate

	NodeIDBits      []uint32
	RenderOccupancy []bool
}

func newChunk(layout grid.Layout, pos grid.Vec3) *Chunk {
	return &Chunk{
		Pos:             pos,
		Blocks:          make([]rules.BlockIndex, layout.BlockCount()),
		cells:           make([][]Candidate, layout.NodeCount()),
		NodeIDBits:      make([]uint32, layout.NodeCount()),
		RenderOccupancy: make([]bool, layout.PaddedNodeCount()),
	}
}

// NodeID returns the resolved identity of an in-chunk node cell.
func (c *Chunk) NodeID(nodeIndex int) rules.NodeID {
	return rules.NodeIDFromBits(c.NodeIDBits[nodeIndex])
}

// Admissible returns the current admissible set of an in-chunk node cell,
// or nil if the cell has not been computed since its last reset. The
// returned slice is owned by the solver; callers must not mutate it.
func (c *Chunk) Admissible(nodeIndex int) []Candidate {
	return c.cells[nodeIndex]
}

func candidatesEqual(a, b []Candidate) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
