package geojsonnet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/matijazezelj/evroute/pkg/models"
)

func TestParse(t *testing.T) {
	p := NewGeoJSONParser()
	result, err := p.Parse(context.Background(), "testdata/network.geojson")
	if err != nil {
		t.Fatal(err)
	}

	// A, B, 3 plus two new polyline vertices
	if len(result.Nodes) != 5 {
		t.Errorf("nodes = %d, want 5: %+v", len(result.Nodes), result.Nodes)
	}
	ids := make(map[models.NodeID]models.Node)
	for _, n := range result.Nodes {
		ids[n.ID] = n
	}
	if _, ok := ids["3"]; !ok {
		t.Error("numeric feature id should become node 3")
	}
	if _, ok := ids["1.0000000,12.0000000"]; !ok {
		t.Errorf("polyline vertex missing: %v", ids)
	}

	// A-B, B-3, and two polyline segments
	if len(result.Edges) != 4 {
		t.Fatalf("edges = %d, want 4", len(result.Edges))
	}
	if l := result.Edges[1].Length; l == nil || *l != 4.5 {
		t.Errorf("B-3 length = %v", l)
	}
	if result.Edges[0].Length != nil {
		t.Error("A-B should fall back to metric distance")
	}
	// The polyline starts on node 3 and ends on a new vertex.
	if result.Edges[2].FromID != "3" || result.Edges[3].ToID != "0.0000000,14.0000000" {
		t.Errorf("polyline edge = %+v", result.Edges[2])
	}

	if len(result.StationNodes) != 1 || result.StationNodes[0] != "B" {
		t.Errorf("StationNodes = %v", result.StationNodes)
	}

	// unknown X, point without id, polygon
	if len(result.Warnings) != 3 {
		t.Errorf("warnings = %v", result.Warnings)
	}
}

func TestParse_Invalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.geojson")
	if err := os.WriteFile(bad, []byte(`{"type": "FeatureCollection", "features": [`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewGeoJSONParser().Parse(context.Background(), bad); err == nil {
		t.Error("expected error")
	}
}

func TestSupported(t *testing.T) {
	p := NewGeoJSONParser()
	if !p.Supported("testdata/network.geojson") {
		t.Error("geojson file should be supported")
	}
	if p.Supported("testdata") || p.Supported("testdata/nope.json") {
		t.Error("directories and missing files are not supported")
	}
	if p.Name() != "geojson" {
		t.Errorf("Name = %s", p.Name())
	}
}
