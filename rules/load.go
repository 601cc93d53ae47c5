package rules

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/shipwright/grid"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ruleFile is the YAML schema of a rule library.
//
// Offsets are node-grid offsets relative to the candidate cell. Block
// requirement offsets must point at block-aligned cells for the parity of
// cells the pattern is meant to occupy; node requirement shapes expand to
// all 24 orientations of the named shape ("empty" stays a single identity).
type ruleFile struct {
	Shapes   []string      `yaml:"shapes"`
	Blocks   []string      `yaml:"blocks"`
	Patterns []rulePattern `yaml:"patterns"`
}

type rulePattern struct {
	Shape     string         `yaml:"shape"`
	Rot       int            `yaml:"rot"`
	Rotations string         `yaml:"rotations"` // "identity" (default) or "all"
	Prio      int            `yaml:"prio"`
	Blocks    []ruleBlockReq `yaml:"block_requirements"`
	Nodes     []ruleNodeReq  `yaml:"node_requirements"`
}

type ruleBlockReq struct {
	Offset [3]int `yaml:"offset"`
	Block  string `yaml:"block"`
}

type ruleNodeReq struct {
	Offset [3]int   `yaml:"offset"`
	Shapes []string `yaml:"shapes"`
}

// Load reads and compiles a rule library from a YAML file. Any malformation
// is fatal to initialization: the engine never sees a partial library.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule library: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rule library %s: %w", path, err)
	}
	return s, nil
}

// Default compiles the embedded default library.
func Default() (*Set, error) {
	return Parse(defaultsYAML)
}

// Parse compiles a rule library from YAML bytes.
func Parse(data []byte) (*Set, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rule library: %w", err)
	}

	lib := NewLibrary()
	shapes := map[string]ShapeIndex{"empty": ShapeEmpty}
	blocks := map[string]BlockIndex{"empty": BlockEmpty}

	for _, name := range f.Shapes {
		idx, err := lib.AddShape(name)
		if err != nil {
			return nil, err
		}
		shapes[name] = idx
	}
	for _, name := range f.Blocks {
		idx, err := lib.AddBlock(name)
		if err != nil {
			return nil, err
		}
		blocks[name] = idx
	}

	for i, fp := range f.Patterns {
		shape, ok := shapes[fp.Shape]
		if !ok {
			return nil, fmt.Errorf("pattern %d: unknown shape %q", i, fp.Shape)
		}
		if fp.Rot < 0 || fp.Rot >= NumRots {
			return nil, fmt.Errorf("pattern %d: rotation %d out of range", i, fp.Rot)
		}
		if len(fp.Blocks) == 0 {
			return nil, fmt.Errorf("pattern %d: no block requirements", i)
		}

		p := Pattern{
			ID:   NodeID{Shape: shape, Rot: Rot(fp.Rot)},
			Prio: fp.Prio,
		}
		for _, br := range fp.Blocks {
			block, ok := blocks[br.Block]
			if !ok {
				return nil, fmt.Errorf("pattern %d: unknown block %q", i, br.Block)
			}
			p.BlockReqs = append(p.BlockReqs, BlockReq{
				Offset: grid.V3(br.Offset[0], br.Offset[1], br.Offset[2]),
				Block:  block,
			})
		}
		for _, nr := range fp.Nodes {
			if len(nr.Shapes) == 0 {
				return nil, fmt.Errorf("pattern %d: node requirement with no shapes", i)
			}
			req := NodeReq{Offset: grid.V3(nr.Offset[0], nr.Offset[1], nr.Offset[2])}
			for _, name := range nr.Shapes {
				reqShape, ok := shapes[name]
				if !ok {
					return nil, fmt.Errorf("pattern %d: unknown required shape %q", i, name)
				}
				if reqShape == ShapeEmpty {
					req.IDs = append(req.IDs, EmptyNodeID())
					continue
				}
				for _, r := range AllRots() {
					req.IDs = append(req.IDs, NodeID{Shape: reqShape, Rot: r})
				}
			}
			p.NodeReqs = append(p.NodeReqs, req)
		}

		switch fp.Rotations {
		case "", "identity":
			lib.AddPattern(p)
		case "all":
			lib.AddPatternAllRotations(p)
		default:
			return nil, fmt.Errorf("pattern %d: unknown rotations mode %q", i, fp.Rotations)
		}
	}

	return lib.Compile()
}
