package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/matijazezelj/evroute/internal/geo"
	"github.com/matijazezelj/evroute/pkg/models"
)

// Snapshot is a loaded, immutable view of the road network together with
// its charging stations. A new Snapshot replaces the old one on reload;
// existing readers keep the one they started with.
type Snapshot struct {
	Network  *Network
	Index    *NodeIndex
	Stations []models.Station
	LoadedAt time.Time
}

// NewSnapshot indexes n and keeps the stations whose node exists in n.
func NewSnapshot(n *Network, stations []models.Station) *Snapshot {
	kept := make([]models.Station, 0, len(stations))
	for _, st := range stations {
		if n.HasNode(st.NodeID) {
			kept = append(kept, st)
		}
	}
	return &Snapshot{
		Network:  n,
		Index:    NewNodeIndex(n),
		Stations: kept,
		LoadedAt: time.Now(),
	}
}

// StationNodes returns the distinct station node ids in ascending order.
func (s *Snapshot) StationNodes() []models.NodeID {
	seen := make(map[models.NodeID]bool, len(s.Stations))
	ids := make([]models.NodeID, 0, len(s.Stations))
	for _, st := range s.Stations {
		if seen[st.NodeID] {
			continue
		}
		seen[st.NodeID] = true
		ids = append(ids, st.NodeID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Source produces snapshots of the road network.
type Source interface {
	// Name returns the source identifier (e.g., "sqlite", "memgraph").
	Name() string

	// Load reads the network and stations and returns a fresh snapshot.
	Load(ctx context.Context, metric geo.Metric) (*Snapshot, error)
}

// Name returns "sqlite".
func (s *SQLiteStore) Name() string {
	return "sqlite"
}

// Load builds a Snapshot from the tables of the store.
func (s *SQLiteStore) Load(ctx context.Context, metric geo.Metric) (*Snapshot, error) {
	network, err := s.LoadNetwork(ctx, NewBuilder(metric))
	if err != nil {
		return nil, err
	}
	stations, err := s.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stations: %w", err)
	}
	return NewSnapshot(network, stations), nil
}
