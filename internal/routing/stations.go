package routing

import (
	"fmt"
	"sort"

	"github.com/matijazezelj/evroute/pkg/models"
)

// Stations is the set of nodes where the vehicle may recharge. A nil
// *Stations is an empty set.
type Stations struct {
	ids []models.NodeID
	set map[models.NodeID]struct{}
}

// NewStations builds a station set. Every id must exist in net; duplicates
// are collapsed.
func NewStations(net Network, ids []models.NodeID) (*Stations, error) {
	s := &Stations{set: make(map[models.NodeID]struct{}, len(ids))}
	for _, id := range ids {
		if !net.HasNode(id) {
			return nil, fmt.Errorf("%w: station %q", ErrUnknownNode, id)
		}
		if _, dup := s.set[id]; dup {
			continue
		}
		s.set[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
	sort.Slice(s.ids, func(i, j int) bool { return s.ids[i] < s.ids[j] })
	return s, nil
}

// Contains reports whether id is a station.
func (s *Stations) Contains(id models.NodeID) bool {
	if s == nil {
		return false
	}
	_, ok := s.set[id]
	return ok
}

// IDs returns the station ids in ascending order.
func (s *Stations) IDs() []models.NodeID {
	if s == nil {
		return nil
	}
	return s.ids
}

// Len returns the number of stations.
func (s *Stations) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// NearestReachable returns the station other than from that is closest in
// straight-line distance among those reachable with battery. Stations
// without roads are skipped since travel cannot resume from them. ok is
// false when none is affordable.
func NearestReachable(net Network, stations *Stations, from models.NodeID, battery, rate float64) (id models.NodeID, dist float64, ok bool) {
	for _, st := range stations.IDs() {
		if st == from || len(net.Neighbors(st)) == 0 {
			continue
		}
		d := net.Distance(from, st)
		if d*rate > battery {
			continue
		}
		if !ok || d < dist {
			id, dist, ok = st, d, true
		}
	}
	return id, dist, ok
}

// nearestDistance is the straight-line distance from id to the closest
// station, or zero without stations.
func nearestDistance(net Network, stations *Stations, id models.NodeID) float64 {
	best := -1.0
	for _, st := range stations.IDs() {
		if d := net.Distance(id, st); best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		return 0
	}
	return best
}
