package graph

import (
	"fmt"
	"math"
	"sort"

	"github.com/matijazezelj/evroute/internal/geo"
	"github.com/matijazezelj/evroute/pkg/models"
	"github.com/paulmach/orb"
)

// Connection is one road segment between a node pair. Parallel segments
// between the same pair are kept as separate connections.
type Connection struct {
	EdgeID    string
	Length    float64
	HasLength bool
}

// Network is the read-only road graph searched by the router. It is built
// once by a Builder and never mutated afterwards, so any number of searches
// may read it concurrently.
type Network struct {
	metric    geo.Metric
	coords    map[models.NodeID]orb.Point
	adjacency map[models.NodeID]map[models.NodeID][]Connection
	neighbors map[models.NodeID][]models.NodeID
	ids       []models.NodeID
	edgeCount int
}

// Builder accumulates nodes and edges for a Network.
type Builder struct {
	metric    geo.Metric
	coords    map[models.NodeID]orb.Point
	adjacency map[models.NodeID]map[models.NodeID][]Connection
	edgeCount int
}

// NewBuilder returns a Builder whose network measures distances with metric.
func NewBuilder(metric geo.Metric) *Builder {
	if metric == nil {
		metric = geo.Haversine{}
	}
	return &Builder{
		metric:    metric,
		coords:    make(map[models.NodeID]orb.Point),
		adjacency: make(map[models.NodeID]map[models.NodeID][]Connection),
	}
}

// AddNode adds or replaces a node. x is longitude, y latitude for
// geographic networks.
func (b *Builder) AddNode(id models.NodeID, x, y float64) {
	b.coords[id] = orb.Point{x, y}
}

// AddEdge adds an undirected segment. Both endpoints must already exist.
func (b *Builder) AddEdge(e models.Edge) error {
	if _, ok := b.coords[e.FromID]; !ok {
		return fmt.Errorf("edge %s: unknown node %q", e.ID, e.FromID)
	}
	if _, ok := b.coords[e.ToID]; !ok {
		return fmt.Errorf("edge %s: unknown node %q", e.ID, e.ToID)
	}
	c := Connection{EdgeID: e.ID}
	if e.Length != nil {
		if *e.Length < 0 || math.IsNaN(*e.Length) {
			return fmt.Errorf("edge %s: invalid length %v", e.ID, *e.Length)
		}
		c.Length = *e.Length
		c.HasLength = true
	}
	b.link(e.FromID, e.ToID, c)
	if e.FromID != e.ToID {
		b.link(e.ToID, e.FromID, c)
	}
	b.edgeCount++
	return nil
}

func (b *Builder) link(from, to models.NodeID, c Connection) {
	m, ok := b.adjacency[from]
	if !ok {
		m = make(map[models.NodeID][]Connection)
		b.adjacency[from] = m
	}
	m[to] = append(m[to], c)
}

// Build freezes the accumulated data into a Network. The builder must not be
// used afterwards.
func (b *Builder) Build() *Network {
	n := &Network{
		metric:    b.metric,
		coords:    b.coords,
		adjacency: b.adjacency,
		neighbors: make(map[models.NodeID][]models.NodeID, len(b.adjacency)),
		ids:       make([]models.NodeID, 0, len(b.coords)),
		edgeCount: b.edgeCount,
	}
	for id := range b.coords {
		n.ids = append(n.ids, id)
	}
	sort.Slice(n.ids, func(i, j int) bool { return n.ids[i] < n.ids[j] })

	for from, m := range b.adjacency {
		list := make([]models.NodeID, 0, len(m))
		for to := range m {
			if to == from {
				continue
			}
			list = append(list, to)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		n.neighbors[from] = list
	}

	b.coords = nil
	b.adjacency = nil
	return n
}

// Metric returns the distance metric of the network.
func (n *Network) Metric() geo.Metric {
	return n.metric
}

// Nodes returns all node ids in ascending order.
func (n *Network) Nodes() []models.NodeID {
	return n.ids
}

// NodeCount returns the number of nodes.
func (n *Network) NodeCount() int {
	return len(n.ids)
}

// EdgeCount returns the number of segments, parallel ones included.
func (n *Network) EdgeCount() int {
	return n.edgeCount
}

// HasNode reports whether id is part of the network.
func (n *Network) HasNode(id models.NodeID) bool {
	_, ok := n.coords[id]
	return ok
}

// Coord returns the coordinates of id.
func (n *Network) Coord(id models.NodeID) (orb.Point, bool) {
	p, ok := n.coords[id]
	return p, ok
}

// Neighbors returns the nodes adjacent to id in ascending id order.
// The slice is shared and must not be modified.
func (n *Network) Neighbors(id models.NodeID) []models.NodeID {
	return n.neighbors[id]
}

// Connections returns every segment between from and to.
func (n *Network) Connections(from, to models.NodeID) []Connection {
	return n.adjacency[from][to]
}

// Weight returns the effective weight between two adjacent nodes: the
// minimum explicit length over parallel segments, or the metric distance
// when no segment carries a length.
func (n *Network) Weight(from, to models.NodeID) (float64, bool) {
	conns := n.adjacency[from][to]
	if len(conns) == 0 {
		return 0, false
	}
	best := math.Inf(1)
	for _, c := range conns {
		if c.HasLength && c.Length < best {
			best = c.Length
		}
	}
	if math.IsInf(best, 1) {
		return n.Distance(from, to), true
	}
	return best, true
}

// Distance returns the metric distance between two nodes. Both nodes must
// exist; a missing node is a programming error.
func (n *Network) Distance(a, b models.NodeID) float64 {
	pa, ok := n.coords[a]
	if !ok {
		panic(fmt.Sprintf("graph: no coordinates for node %q", a))
	}
	pb, ok := n.coords[b]
	if !ok {
		panic(fmt.Sprintf("graph: no coordinates for node %q", b))
	}
	return n.metric.Distance(pa, pb)
}

// Degree returns the number of distinct neighbours of id.
func (n *Network) Degree(id models.NodeID) int {
	return len(n.neighbors[id])
}
