// Package rules holds the compiled rule library the propagation engine
// consumes: node identities, candidate patterns with block and node
// requirements, and precomputed affected-by offset tables. Rule sets are
// immutable once compiled; engines only read them.
package rules

import (
	"github.com/pthm-cable/shipwright/grid"
)

// BlockIndex identifies a block type on the coarse grid.
type BlockIndex int

// BlockEmpty is the reserved index for an empty block cell.
const BlockEmpty BlockIndex = 0

// ShapeIndex identifies a node shape.
type ShapeIndex int

// ShapeEmpty is the reserved index for the empty node shape.
const ShapeEmpty ShapeIndex = 0

// NodeID is a node identity: a shape plus one of its 24 orientations.
type NodeID struct {
	Shape ShapeIndex
	Rot   Rot
}

// EmptyNodeID returns the identity of an empty node cell.
func EmptyNodeID() NodeID {
	return NodeID{Shape: ShapeEmpty, Rot: RotIdentity}
}

// IsEmpty reports whether the identity is the empty node.
func (id NodeID) IsEmpty() bool {
	return id.Shape == ShapeEmpty
}

// Less orders identities by shape, then rotation. Collapse uses this as the
// deterministic tie-break among equal-priority candidates.
func (id NodeID) Less(o NodeID) bool {
	if id.Shape != o.Shape {
		return id.Shape < o.Shape
	}
	return id.Rot < o.Rot
}

// Bits packs the identity for the renderer-facing node bit array: shape index
// in the high bits, rotation in the low 7. Empty packs to 0.
func (id NodeID) Bits() uint32 {
	if id.IsEmpty() {
		return 0
	}
	return uint32(id.Shape)<<7 | uint32(id.Rot)
}

// NodeIDFromBits is the inverse of Bits.
func NodeIDFromBits(bits uint32) NodeID {
	if bits == 0 {
		return EmptyNodeID()
	}
	return NodeID{Shape: ShapeIndex(bits >> 7), Rot: Rot(bits & 0x7f)}
}

// BlockReq requires a specific block index at a node-grid offset. The offset
// must land on a block-aligned (all even) node position to take part in the
// check; requirements at unaligned positions are skipped, which restricts a
// pattern to cells of the matching parity.
type BlockReq struct {
	Offset grid.Vec3
	Block  BlockIndex
}

// NodeReq requires that the cell at Offset still admits (or resolved to) one
// of IDs. Out-of-chunk neighbors count as empty: the requirement holds there
// only if IDs contains the empty identity.
type NodeReq struct {
	Offset grid.Vec3
	IDs    []NodeID
}

// AllowsEmpty reports whether the requirement is satisfied by an empty cell.
func (r NodeReq) AllowsEmpty() bool {
	for _, id := range r.IDs {
		if id.IsEmpty() {
			return true
		}
	}
	return false
}

// Allows reports whether the requirement accepts the given identity.
func (r NodeReq) Allows(id NodeID) bool {
	for _, want := range r.IDs {
		if want == id {
			return true
		}
	}
	return false
}

// Pattern is one candidate: if all its requirements hold around a cell, the
// cell may resolve to ID with the given priority. Higher priority wins.
type Pattern struct {
	ID        NodeID
	Prio      int
	BlockReqs []BlockReq
	NodeReqs  []NodeReq
}

// Set is a compiled, immutable rule library.
type Set struct {
	shapeNames []string
	blockNames []string
	patterns   []Pattern

	// Offsets of cells to re-evaluate when a block of the given index
	// changes, relative to the block's node position.
	affectedByBlock [][]grid.Vec3

	// Offsets of cells to re-evaluate when the given identity enters or
	// leaves a cell's admissible set, indexed by shape*NumRots+rot.
	affectedByNode [][]grid.Vec3

	// Largest affected-by offset magnitude, for callers sizing edit
	// neighborhoods.
	maxRadius int
}

// Patterns returns the candidate patterns in compilation order.
func (s *Set) Patterns() []Pattern {
	return s.patterns
}

// AffectedByBlock returns the offsets whose cells depend on a block of the
// given index. Empty blocks have no affected set.
func (s *Set) AffectedByBlock(b BlockIndex) []grid.Vec3 {
	if int(b) >= len(s.affectedByBlock) {
		return nil
	}
	return s.affectedByBlock[b]
}

// AffectedByNode returns the offsets whose cells depend on the presence of
// the given node identity.
func (s *Set) AffectedByNode(id NodeID) []grid.Vec3 {
	i := int(id.Shape)*NumRots + int(id.Rot)
	if i >= len(s.affectedByNode) {
		return nil
	}
	return s.affectedByNode[i]
}

// BlockCount returns the number of block types, including empty.
func (s *Set) BlockCount() int {
	return len(s.blockNames)
}

// ShapeCount returns the number of node shapes, including empty.
func (s *Set) ShapeCount() int {
	return len(s.shapeNames)
}

// BlockName returns the name of a block index, or "" if unknown.
func (s *Set) BlockName(b BlockIndex) string {
	if b < 0 || int(b) >= len(s.blockNames) {
		return ""
	}
	return s.blockNames[b]
}

// BlockByName finds a block index by name.
func (s *Set) BlockByName(name string) (BlockIndex, bool) {
	for i, n := range s.blockNames {
		if n == name {
			return BlockIndex(i), true
		}
	}
	return BlockEmpty, false
}

// ShapeByName finds a shape index by name.
func (s *Set) ShapeByName(name string) (ShapeIndex, bool) {
	for i, n := range s.shapeNames {
		if n == name {
			return ShapeIndex(i), true
		}
	}
	return ShapeEmpty, false
}

// MaxRadius is the largest Chebyshev distance any affected-by offset spans,
// in node cells. Cells further than this from an edit can never be touched
// by it.
func (s *Set) MaxRadius() int {
	return s.maxRadius
}
