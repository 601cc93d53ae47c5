package grid

import (
	"fmt"
	"math/bits"
)

// Layout captures the fixed geometry of a ship: how many node cells a chunk
// holds per axis, the derived block extents, and the bit widths used to fold
// a chunk index and an in-chunk node index into one world node index.
//
// NodesPerAxis must be a power of two so chunk and in-chunk positions can be
// derived with masks. Negative world positions land in negative chunk
// positions (floor semantics, not truncation).
type Layout struct {
	NodesPerChunk  Vec3
	BlocksPerChunk Vec3

	chunkPosMask   int
	inChunkPosMask int

	nodeIndexBits int
	nodeIndexMask int
}

// NewLayout builds a Layout for chunks of nodesPerAxis node cells per axis.
func NewLayout(nodesPerAxis int) (Layout, error) {
	if nodesPerAxis < 2 || nodesPerAxis&(nodesPerAxis-1) != 0 {
		return Layout{}, fmt.Errorf("grid: nodes per axis must be a power of two >= 2, got %d", nodesPerAxis)
	}

	nodes := V3(nodesPerAxis, nodesPerAxis, nodesPerAxis)
	nodeCount := nodesPerAxis * nodesPerAxis * nodesPerAxis

	return Layout{
		NodesPerChunk:  nodes,
		BlocksPerChunk: V3(nodesPerAxis/2, nodesPerAxis/2, nodesPerAxis/2),

		chunkPosMask:   ^(nodesPerAxis - 1),
		inChunkPosMask: nodesPerAxis - 1,

		nodeIndexBits: bits.TrailingZeros(uint(nodeCount)) + 1,
		nodeIndexMask: nodeCount - 1,
	}, nil
}

// NodeCount returns the number of node cells per chunk.
func (l Layout) NodeCount() int {
	return l.NodesPerChunk.X * l.NodesPerChunk.Y * l.NodesPerChunk.Z
}

// BlockCount returns the number of block cells per chunk.
func (l Layout) BlockCount() int {
	return l.BlocksPerChunk.X * l.BlocksPerChunk.Y * l.BlocksPerChunk.Z
}

// PaddedNodesPerChunk is the node extent plus one cell of padding per side,
// used by the render occupancy array for greedy meshing.
func (l Layout) PaddedNodesPerChunk() Vec3 {
	return l.NodesPerChunk.Add(V3(2, 2, 2))
}

// PaddedNodeCount returns the length of the padded occupancy array.
func (l Layout) PaddedNodeCount() int {
	p := l.PaddedNodesPerChunk()
	return p.X * p.Y * p.Z
}

// NodePosFromBlockPos maps a block position to the node cell at its low
// corner. The node grid samples at twice the block resolution.
func NodePosFromBlockPos(blockPos Vec3) Vec3 {
	return blockPos.Scale(2)
}

// ChunkPos returns the chunk position (in node coordinates) containing the
// world node position. Works for negative positions: the mask already floors
// because nodes per axis is a power of two and Go's & keeps the sign bits.
func (l Layout) ChunkPos(pos Vec3) Vec3 {
	return Vec3{
		X: pos.X & l.chunkPosMask,
		Y: pos.Y & l.chunkPosMask,
		Z: pos.Z & l.chunkPosMask,
	}
}

// InChunkPos returns the node position relative to its chunk origin.
func (l Layout) InChunkPos(pos Vec3) Vec3 {
	return Vec3{
		X: pos.X & l.inChunkPosMask,
		Y: pos.Y & l.inChunkPosMask,
		Z: pos.Z & l.inChunkPosMask,
	}
}

// NodeIndex returns the flat in-chunk index of the node at a world position.
func (l Layout) NodeIndex(pos Vec3) int {
	return ToIndex(l.InChunkPos(pos), l.NodesPerChunk)
}

// BlockIndex returns the flat in-chunk index of the block cell covering a
// world node position.
func (l Layout) BlockIndex(pos Vec3) int {
	in := l.InChunkPos(pos)
	return ToIndex(V3(in.X/2, in.Y/2, in.Z/2), l.BlocksPerChunk)
}

// PaddedNodeIndex converts an in-chunk node index to its index in the padded
// occupancy array.
func (l Layout) PaddedNodeIndex(nodeIndex int) int {
	pos := FromIndex(nodeIndex, l.NodesPerChunk)
	return ToIndex(pos.Add(V3(1, 1, 1)), l.PaddedNodesPerChunk())
}

// WorldNodeIndex folds a chunk index and an in-chunk node index into one
// integer. UnpackWorldNodeIndex is the exact inverse.
func (l Layout) WorldNodeIndex(chunkIndex, nodeIndex int) int {
	return nodeIndex | chunkIndex<<l.nodeIndexBits
}

// UnpackWorldNodeIndex splits a world node index back into chunk index and
// in-chunk node index.
func (l Layout) UnpackWorldNodeIndex(worldIndex int) (chunkIndex, nodeIndex int) {
	return worldIndex >> l.nodeIndexBits, worldIndex & l.nodeIndexMask
}
