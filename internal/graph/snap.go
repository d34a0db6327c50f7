package graph

import (
	"fmt"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/matijazezelj/evroute/pkg/models"
	"github.com/paulmach/orb"
)

// snapCandidates is how many raw-coordinate neighbours seed a lookup. The
// tree ranks by raw coordinate distance, which differs from great-circle
// order away from the equator, so the best seed only sets the search radius.
const snapCandidates = 8

// nodeEntry wraps a network node for R-tree storage.
type nodeEntry struct {
	id    models.NodeID
	point orb.Point
}

// Bounds implements rtreego.Spatial.
func (e *nodeEntry) Bounds() rtreego.Rect {
	return rtreego.Point{e.point[0], e.point[1]}.ToRect(1e-9)
}

// NodeIndex answers nearest-node queries over a Network.
type NodeIndex struct {
	network *Network
	tree    *rtreego.Rtree
	size    int
}

// NewNodeIndex builds a spatial index over every node of n.
func NewNodeIndex(n *Network) *NodeIndex {
	objs := make([]rtreego.Spatial, 0, n.NodeCount())
	for _, id := range n.Nodes() {
		p, _ := n.Coord(id)
		objs = append(objs, &nodeEntry{id: id, point: p})
	}
	return &NodeIndex{
		network: n,
		tree:    rtreego.NewTree(2, 25, 50, objs...),
		size:    len(objs),
	}
}

// Nearest returns the node closest to p under the network metric and the
// distance to it. ok is false when the network is empty.
//
// The nearest raw-coordinate candidates give an upper bound on the answer;
// every node inside the metric's bound of that radius is then re-ranked, so
// the result is exact under any metric.
func (ix *NodeIndex) Nearest(p orb.Point) (id models.NodeID, dist float64, ok bool) {
	if ix.size == 0 {
		return "", 0, false
	}

	metric := ix.network.Metric()
	rank := func(items []rtreego.Spatial) {
		for _, item := range items {
			entry, isEntry := item.(*nodeEntry)
			if !isEntry || entry == nil {
				continue
			}
			d := metric.Distance(p, entry.point)
			if !ok || d < dist || (d == dist && entry.id < id) {
				id, dist, ok = entry.id, d, true
			}
		}
	}

	rank(ix.tree.NearestNeighbors(snapCandidates, rtreego.Point{p[0], p[1]}))
	if !ok || ix.size <= snapCandidates {
		return id, dist, ok
	}

	b := metric.Bound(p, dist)
	rect, err := rtreego.NewRectFromPoints(rtreego.Point{b.Min[0], b.Min[1]}, rtreego.Point{b.Max[0], b.Max[1]})
	if err != nil {
		return id, dist, ok
	}
	rank(ix.tree.SearchIntersect(rect))
	return id, dist, ok
}

// SnapStations maps raw station coordinates to their nearest network node.
// Stations farther than maxDistance from any node are skipped with a
// warning; maxDistance <= 0 disables the limit.
func (ix *NodeIndex) SnapStations(raw []models.RawStation, maxDistance float64, source string) ([]models.Station, []string) {
	now := time.Now()
	var stations []models.Station
	var warnings []string

	for _, r := range raw {
		nodeID, dist, ok := ix.Nearest(orb.Point{r.Lon, r.Lat})
		if !ok {
			warnings = append(warnings, "network is empty, no station can be snapped")
			return nil, warnings
		}
		if maxDistance > 0 && dist > maxDistance {
			warnings = append(warnings, fmt.Sprintf("station at (%.6f, %.6f) is %.1f from the nearest node, limit %.1f",
				r.Lat, r.Lon, dist, maxDistance))
			continue
		}
		stations = append(stations, models.Station{
			ID:           GenerateStationID(r.Lon, r.Lat),
			Name:         r.Name,
			NodeID:       nodeID,
			Lon:          r.Lon,
			Lat:          r.Lat,
			SnapDistance: dist,
			Source:       source,
			LastSeen:     now,
		})
	}
	return stations, warnings
}
