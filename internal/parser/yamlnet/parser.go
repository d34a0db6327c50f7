package yamlnet

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/matijazezelj/evroute/internal/graph"
	"github.com/matijazezelj/evroute/internal/parser"
	"github.com/matijazezelj/evroute/pkg/models"
	"gopkg.in/yaml.v3"
)

// networkFile is the top-level structure of a YAML network file.
type networkFile struct {
	Nodes    []yamlNode `yaml:"nodes"`
	Edges    []yamlEdge `yaml:"edges"`
	Stations []nodeID   `yaml:"stations"`
}

// yamlNode accepts either x/y or lon/lat coordinates.
type yamlNode struct {
	ID  nodeID   `yaml:"id"`
	X   *float64 `yaml:"x"`
	Y   *float64 `yaml:"y"`
	Lon *float64 `yaml:"lon"`
	Lat *float64 `yaml:"lat"`
}

type yamlEdge struct {
	From   nodeID   `yaml:"from"`
	To     nodeID   `yaml:"to"`
	Length *float64 `yaml:"length"`
}

// nodeID accepts scalar ids of any type, so `id: 42` and `id: "42"` match.
type nodeID string

func (n *nodeID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: node id must be a scalar", node.Line)
	}
	*n = nodeID(node.Value)
	return nil
}

func (n yamlNode) coords() (x, y float64, ok bool) {
	switch {
	case n.X != nil && n.Y != nil:
		return *n.X, *n.Y, true
	case n.Lon != nil && n.Lat != nil:
		return *n.Lon, *n.Lat, true
	default:
		return 0, 0, false
	}
}

// YAMLParser parses road networks written as YAML node and edge lists.
type YAMLParser struct{}

// NewYAMLParser creates a new YAML network parser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

// Name returns "yaml".
func (p *YAMLParser) Name() string {
	return "yaml"
}

// Supported returns true for existing .yaml and .yml files.
func (p *YAMLParser) Supported(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Parse reads a YAML network file.
func (p *YAMLParser) Parse(ctx context.Context, path string) (*parser.ParseResult, error) {
	path, err := parser.SafeResolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path validated by SafeResolvePath
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var nf networkFile
	if err := yaml.Unmarshal(data, &nf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(nf.Nodes) == 0 {
		return nil, fmt.Errorf("parsing %s: no nodes", path)
	}

	return buildNetwork(nf, path), nil
}

func buildNetwork(nf networkFile, source string) *parser.ParseResult {
	result := &parser.ParseResult{}
	known := make(map[models.NodeID]bool, len(nf.Nodes))

	for i, n := range nf.Nodes {
		id := models.NodeID(n.ID)
		if id == "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("node #%d has no id, skipped", i+1))
			continue
		}
		if known[id] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("duplicate node %q, skipped", id))
			continue
		}
		x, y, ok := n.coords()
		if !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("node %q has no coordinates, skipped", id))
			continue
		}
		known[id] = true
		result.Nodes = append(result.Nodes, models.Node{ID: id, Lon: x, Lat: y, Source: source})
	}

	seq := parser.EdgeSeq{}
	for i, e := range nf.Edges {
		from, to := models.NodeID(e.From), models.NodeID(e.To)
		if !known[from] || !known[to] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("edge #%d %s-%s references an unknown node, skipped", i+1, from, to))
			continue
		}
		if e.Length != nil && (*e.Length < 0 || math.IsNaN(*e.Length) || math.IsInf(*e.Length, 0)) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("edge #%d %s-%s has invalid length %v, skipped", i+1, from, to, *e.Length))
			continue
		}
		result.Edges = append(result.Edges, models.Edge{
			ID:     graph.GenerateEdgeID(from, to, seq.Next(from, to)),
			FromID: from,
			ToID:   to,
			Length: e.Length,
			Source: source,
		})
	}

	for _, s := range nf.Stations {
		id := models.NodeID(s)
		if !known[id] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("station %q is not a node, skipped", id))
			continue
		}
		result.StationNodes = append(result.StationNodes, id)
	}

	return result
}
