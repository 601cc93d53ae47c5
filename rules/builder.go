package rules

import (
	"fmt"
	"sort"

	"github.com/pthm-cable/shipwright/grid"
)

// Library accumulates shapes, blocks and patterns before compilation.
// Index 0 of both name tables is reserved for "empty".
type Library struct {
	shapeNames []string
	blockNames []string
	patterns   []Pattern
}

// NewLibrary creates an empty library with the reserved empty entries.
func NewLibrary() *Library {
	return &Library{
		shapeNames: []string{"empty"},
		blockNames: []string{"empty"},
	}
}

// AddBlock registers a block type and returns its index.
func (l *Library) AddBlock(name string) (BlockIndex, error) {
	for _, n := range l.blockNames {
		if n == name {
			return BlockEmpty, fmt.Errorf("rules: duplicate block %q", name)
		}
	}
	l.blockNames = append(l.blockNames, name)
	return BlockIndex(len(l.blockNames) - 1), nil
}

// AddShape registers a node shape and returns its index.
func (l *Library) AddShape(name string) (ShapeIndex, error) {
	for _, n := range l.shapeNames {
		if n == name {
			return ShapeEmpty, fmt.Errorf("rules: duplicate shape %q", name)
		}
	}
	l.shapeNames = append(l.shapeNames, name)
	return ShapeIndex(len(l.shapeNames) - 1), nil
}

// AddPattern appends a pattern as authored.
func (l *Library) AddPattern(p Pattern) {
	l.patterns = append(l.patterns, p)
}

// AddPatternAllRotations expands a pattern over all 24 orientations,
// dropping duplicates that rotational symmetry produces.
func (l *Library) AddPatternAllRotations(p Pattern) {
	seen := make(map[string]bool, NumRots)
	for _, r := range AllRots() {
		rp := rotatePattern(p, r)
		key := patternKey(rp)
		if seen[key] {
			continue
		}
		seen[key] = true
		l.patterns = append(l.patterns, rp)
	}
}

// rotatePattern applies a rotation to the pattern's identity and every
// requirement offset.
func rotatePattern(p Pattern, r Rot) Pattern {
	out := Pattern{
		ID:   NodeID{Shape: p.ID.Shape, Rot: r.Mul(p.ID.Rot)},
		Prio: p.Prio,
	}
	if p.ID.IsEmpty() {
		out.ID = EmptyNodeID()
	}

	out.BlockReqs = make([]BlockReq, len(p.BlockReqs))
	for i, br := range p.BlockReqs {
		out.BlockReqs[i] = BlockReq{Offset: r.Apply(br.Offset), Block: br.Block}
	}

	out.NodeReqs = make([]NodeReq, len(p.NodeReqs))
	for i, nr := range p.NodeReqs {
		ids := make([]NodeID, len(nr.IDs))
		for j, id := range nr.IDs {
			if id.IsEmpty() {
				ids[j] = EmptyNodeID()
			} else {
				ids[j] = NodeID{Shape: id.Shape, Rot: r.Mul(id.Rot)}
			}
		}
		out.NodeReqs[i] = NodeReq{Offset: r.Apply(nr.Offset), IDs: ids}
	}
	return out
}

// patternKey builds a canonical comparison key: requirement order must not
// distinguish otherwise identical patterns.
func patternKey(p Pattern) string {
	brs := make([]BlockReq, len(p.BlockReqs))
	copy(brs, p.BlockReqs)
	sort.Slice(brs, func(i, j int) bool {
		if brs[i].Offset != brs[j].Offset {
			return brs[i].Offset.Less(brs[j].Offset)
		}
		return brs[i].Block < brs[j].Block
	})

	nrs := make([]NodeReq, len(p.NodeReqs))
	for i, nr := range p.NodeReqs {
		ids := make([]NodeID, len(nr.IDs))
		copy(ids, nr.IDs)
		sort.Slice(ids, func(a, b int) bool { return ids[a].Less(ids[b]) })
		nrs[i] = NodeReq{Offset: nr.Offset, IDs: ids}
	}
	sort.Slice(nrs, func(i, j int) bool { return nrs[i].Offset.Less(nrs[j].Offset) })

	return fmt.Sprintf("%v|%d|%v|%v", p.ID, p.Prio, brs, nrs)
}

// Compile validates the library and builds the affected-by tables.
func (l *Library) Compile() (*Set, error) {
	for i, p := range l.patterns {
		if int(p.ID.Shape) >= len(l.shapeNames) || p.ID.Shape < 0 {
			return nil, fmt.Errorf("rules: pattern %d references unknown shape %d", i, p.ID.Shape)
		}
		if !p.ID.Rot.Valid() {
			return nil, fmt.Errorf("rules: pattern %d has invalid rotation %d", i, p.ID.Rot)
		}
		if len(p.BlockReqs) == 0 {
			return nil, fmt.Errorf("rules: pattern %d has no block requirements", i)
		}
		for _, br := range p.BlockReqs {
			if int(br.Block) >= len(l.blockNames) || br.Block < 0 {
				return nil, fmt.Errorf("rules: pattern %d references unknown block %d", i, br.Block)
			}
		}
		for _, nr := range p.NodeReqs {
			if len(nr.IDs) == 0 {
				return nil, fmt.Errorf("rules: pattern %d has a node requirement with no identities", i)
			}
			for _, id := range nr.IDs {
				if int(id.Shape) >= len(l.shapeNames) || id.Shape < 0 {
					return nil, fmt.Errorf("rules: pattern %d requires unknown shape %d", i, id.Shape)
				}
				if !id.Rot.Valid() {
					return nil, fmt.Errorf("rules: pattern %d requires invalid rotation %d", i, id.Rot)
				}
			}
		}
	}

	s := &Set{
		shapeNames: append([]string(nil), l.shapeNames...),
		blockNames: append([]string(nil), l.blockNames...),
		patterns:   append([]Pattern(nil), l.patterns...),
	}
	s.compileAffectedBy()
	return s, nil
}

// compileAffectedBy derives the reverse dependency tables. A cell evaluating
// a pattern reads block state at pos+offset, so a block changing at p
// affects cells at p-offset. Requirements on the empty block flip whenever
// any real block appears or vanishes, so they contribute to every non-empty
// block's set.
func (s *Set) compileAffectedBy() {
	blockSets := make([]map[grid.Vec3]bool, len(s.blockNames))
	for i := range blockSets {
		blockSets[i] = make(map[grid.Vec3]bool)
	}
	nodeSets := make([]map[grid.Vec3]bool, len(s.shapeNames)*NumRots)

	addNode := func(id NodeID, off grid.Vec3) {
		i := int(id.Shape)*NumRots + int(id.Rot)
		if nodeSets[i] == nil {
			nodeSets[i] = make(map[grid.Vec3]bool)
		}
		nodeSets[i][off] = true
	}

	for _, p := range s.patterns {
		for _, br := range p.BlockReqs {
			back := br.Offset.Neg()
			if br.Block == BlockEmpty {
				for b := 1; b < len(blockSets); b++ {
					blockSets[b][back] = true
				}
			} else {
				blockSets[br.Block][back] = true
			}
		}
		for _, nr := range p.NodeReqs {
			back := nr.Offset.Neg()
			for _, id := range nr.IDs {
				addNode(id, back)
			}
		}
	}

	s.affectedByBlock = make([][]grid.Vec3, len(blockSets))
	for b, set := range blockSets {
		if b == int(BlockEmpty) {
			continue
		}
		s.affectedByBlock[b] = sortedOffsets(set)
		for _, off := range s.affectedByBlock[b] {
			s.maxRadius = maxInt(s.maxRadius, chebyshev(off))
		}
	}

	s.affectedByNode = make([][]grid.Vec3, len(nodeSets))
	for i, set := range nodeSets {
		if set == nil {
			continue
		}
		s.affectedByNode[i] = sortedOffsets(set)
		for _, off := range s.affectedByNode[i] {
			s.maxRadius = maxInt(s.maxRadius, chebyshev(off))
		}
	}
}

func sortedOffsets(set map[grid.Vec3]bool) []grid.Vec3 {
	out := make([]grid.Vec3, 0, len(set))
	for off := range set {
		out = append(out, off)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func chebyshev(v grid.Vec3) int {
	m := absInt(v.X)
	m = maxInt(m, absInt(v.Y))
	m = maxInt(m, absInt(v.Z))
	return m
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
