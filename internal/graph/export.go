package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matijazezelj/evroute/pkg/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GraphData holds a full network dump for export.
type GraphData struct {
	Nodes    []models.Node    `json:"nodes"`
	Edges    []models.Edge    `json:"edges"`
	Stations []models.Station `json:"stations"`
}

func loadGraphData(ctx context.Context, store Store) (GraphData, error) {
	var data GraphData
	var err error
	if data.Nodes, err = store.ListNodes(ctx, NodeFilter{}); err != nil {
		return data, fmt.Errorf("listing nodes: %w", err)
	}
	if data.Edges, err = store.ListEdges(ctx, EdgeFilter{}); err != nil {
		return data, fmt.Errorf("listing edges: %w", err)
	}
	if data.Stations, err = store.ListStations(ctx); err != nil {
		return data, fmt.Errorf("listing stations: %w", err)
	}
	if data.Nodes == nil {
		data.Nodes = []models.Node{}
	}
	if data.Edges == nil {
		data.Edges = []models.Edge{}
	}
	if data.Stations == nil {
		data.Stations = []models.Station{}
	}
	return data, nil
}

// ExportJSON returns the network as a JSON string.
func ExportJSON(ctx context.Context, store Store) (string, error) {
	data, err := loadGraphData(ctx, store)
	if err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ExportGeoJSON returns the network as a GeoJSON FeatureCollection: one
// LineString per road segment and one Point per charging station.
func ExportGeoJSON(ctx context.Context, store Store) (string, error) {
	data, err := loadGraphData(ctx, store)
	if err != nil {
		return "", err
	}

	coords := make(map[models.NodeID]orb.Point, len(data.Nodes))
	for _, n := range data.Nodes {
		coords[n.ID] = orb.Point{n.Lon, n.Lat}
	}

	fc := geojson.NewFeatureCollection()
	for _, e := range data.Edges {
		f := geojson.NewFeature(orb.LineString{coords[e.FromID], coords[e.ToID]})
		f.ID = e.ID
		f.Properties["kind"] = "road"
		f.Properties["from"] = string(e.FromID)
		f.Properties["to"] = string(e.ToID)
		if e.Length != nil {
			f.Properties["length"] = *e.Length
		}
		fc.Append(f)
	}
	for _, st := range data.Stations {
		f := geojson.NewFeature(orb.Point{st.Lon, st.Lat})
		f.ID = st.ID
		f.Properties["kind"] = "station"
		f.Properties["name"] = st.Name
		f.Properties["node"] = string(st.NodeID)
		f.Properties["snap_distance"] = st.SnapDistance
		fc.Append(f)
	}

	b, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ExportDOT returns the network in Graphviz DOT format. Station nodes are
// filled green.
func ExportDOT(ctx context.Context, store Store) (string, error) {
	data, err := loadGraphData(ctx, store)
	if err != nil {
		return "", err
	}
	stations := stationNames(data.Stations)

	var b strings.Builder
	b.WriteString("graph evroute {\n")
	b.WriteString("  node [shape=circle, style=filled];\n\n")

	for _, n := range data.Nodes {
		color := "#D5D8DC"
		label := string(n.ID)
		if name, ok := stations[n.ID]; ok {
			color = "#82E0AA"
			if name != "" {
				label = fmt.Sprintf("%s\\n(%s)", n.ID, name)
			}
		}
		fmt.Fprintf(&b, "  %q [label=%q, fillcolor=%q];\n", string(n.ID), label, color)
	}

	b.WriteString("\n")

	for _, e := range data.Edges {
		if e.Length != nil {
			fmt.Fprintf(&b, "  %q -- %q [label=%q];\n", string(e.FromID), string(e.ToID), fmt.Sprintf("%g", *e.Length))
			continue
		}
		fmt.Fprintf(&b, "  %q -- %q;\n", string(e.FromID), string(e.ToID))
	}

	b.WriteString("}\n")
	return b.String(), nil
}

// ExportMermaid returns the network in Mermaid format.
func ExportMermaid(ctx context.Context, store Store) (string, error) {
	data, err := loadGraphData(ctx, store)
	if err != nil {
		return "", err
	}
	stations := stationNames(data.Stations)

	var b strings.Builder
	b.WriteString("graph LR\n")

	for _, n := range data.Nodes {
		if _, ok := stations[n.ID]; ok {
			fmt.Fprintf(&b, "  %s[[\"%s\"]]\n", mermaidSafeID(n.ID), n.ID)
			continue
		}
		fmt.Fprintf(&b, "  %s[\"%s\"]\n", mermaidSafeID(n.ID), n.ID)
	}

	for _, e := range data.Edges {
		fmt.Fprintf(&b, "  %s --- %s\n", mermaidSafeID(e.FromID), mermaidSafeID(e.ToID))
	}

	return b.String(), nil
}

func stationNames(stations []models.Station) map[models.NodeID]string {
	m := make(map[models.NodeID]string, len(stations))
	for _, st := range stations {
		if _, ok := m[st.NodeID]; !ok || m[st.NodeID] == "" {
			m[st.NodeID] = st.Name
		}
	}
	return m
}

func mermaidSafeID(id models.NodeID) string {
	r := strings.NewReplacer(":", "_", ".", "_", "-", "_", "/", "_", " ", "_", ",", "_")
	return r.Replace(string(id))
}
