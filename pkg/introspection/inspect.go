// Package introspection exposes the structure of a compiled state tree
// (declared input kinds, resolved input/target edges, output emission
// sites) so external documentation and diagram tools can walk it without
// re-deriving anything from handler code. Rendering the structure into
// human-readable graphs is those tools' business, not this package's.
package introspection

import (
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/espalier/pkg/catalog"
	"github.com/aretw0/espalier/pkg/domain"
)

// Edge is one declared input→target transition of a state.
type Edge struct {
	Input  string `yaml:"input"`
	Target string `yaml:"target"`
}

// Emission groups the output kinds a state announces from one site.
type Emission struct {
	Site  string   `yaml:"site"`
	Kinds []string `yaml:"kinds"`
}

// StateNode describes one state kind of the tree.
type StateNode struct {
	Kind    string     `yaml:"kind"`
	Parent  string     `yaml:"parent,omitempty"`
	Inputs  []string   `yaml:"inputs,omitempty"`
	Handled []string   `yaml:"handled,omitempty"`
	Edges   []Edge     `yaml:"edges,omitempty"`
	Outputs []Emission `yaml:"outputs,omitempty"`
}

// Graph is the walkable structure of one machine definition.
type Graph struct {
	Definition string      `yaml:"definition"`
	Initial    string      `yaml:"initial,omitempty"`
	States     []StateNode `yaml:"states"`
}

// Describe builds the graph for a compiled catalog. Lists are sorted so
// the output is stable across runs.
func Describe(c *catalog.Catalog) *Graph {
	g := &Graph{Definition: c.Name()}
	if initial := c.Initial(); initial != nil {
		g.Initial = domain.KindName(initial)
	}

	for _, kind := range c.Kinds() {
		node := StateNode{Kind: domain.KindName(kind)}
		if parent := c.Parent(kind); parent != nil {
			node.Parent = domain.KindName(parent)
		}

		node.Inputs = kindNames(c.DeclaredInputs(kind))
		node.Handled = kindNames(c.HandledInputs(kind))

		for _, in := range c.DeclaredInputs(kind) {
			if target, ok := c.Edge(kind, in); ok {
				node.Edges = append(node.Edges, Edge{
					Input:  domain.KindName(in),
					Target: domain.KindName(target),
				})
			}
		}
		sort.Slice(node.Edges, func(i, j int) bool { return node.Edges[i].Input < node.Edges[j].Input })

		for site, kinds := range c.Emissions(kind) {
			node.Outputs = append(node.Outputs, Emission{
				Site:  string(site),
				Kinds: kindNames(kinds),
			})
		}
		sort.Slice(node.Outputs, func(i, j int) bool { return node.Outputs[i].Site < node.Outputs[j].Site })

		g.States = append(g.States, node)
	}

	return g
}

// YAML marshals the graph into its exchange encoding.
func (g *Graph) YAML() ([]byte, error) {
	return yaml.Marshal(g)
}

func kindNames(kinds []domain.Kind) []string {
	if len(kinds) == 0 {
		return nil
	}
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, domain.KindName(k))
	}
	sort.Strings(names)
	return names
}
