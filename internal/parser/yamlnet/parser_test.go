package yamlnet

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matijazezelj/evroute/pkg/models"
)

func TestParse(t *testing.T) {
	p := NewYAMLParser()
	result, err := p.Parse(context.Background(), "testdata/network.yaml")
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Nodes) != 5 {
		t.Errorf("nodes = %d, want 5", len(result.Nodes))
	}
	nodes := make(map[models.NodeID]models.Node)
	for _, n := range result.Nodes {
		nodes[n.ID] = n
	}
	if a := nodes["A"]; a.Lon != 0 || a.Lat != 0 {
		t.Errorf("A = %+v, duplicate should not overwrite", a)
	}
	if d := nodes["D"]; d.Lon != 14 {
		t.Errorf("D from lon/lat = %+v", d)
	}
	if _, ok := nodes["5"]; !ok {
		t.Error("numeric id should be kept as a string")
	}
	if !strings.HasSuffix(nodes["B"].Source, "network.yaml") {
		t.Errorf("source = %q", nodes["B"].Source)
	}

	if len(result.Edges) != 5 {
		t.Fatalf("edges = %d, want 5", len(result.Edges))
	}
	ab := result.Edges[0]
	if ab.FromID != "A" || ab.ToID != "B" || ab.Length != nil {
		t.Errorf("A-B = %+v", ab)
	}
	if l := result.Edges[1].Length; l == nil || *l != 4 {
		t.Errorf("B-C length = %v", l)
	}
	if result.Edges[1].ID == result.Edges[2].ID {
		t.Errorf("parallel edges share id %s", result.Edges[1].ID)
	}

	if len(result.StationNodes) != 1 || result.StationNodes[0] != "B" {
		t.Errorf("StationNodes = %v", result.StationNodes)
	}

	// nocoords, duplicate A, edge to Z, negative length, station Q
	if len(result.Warnings) != 5 {
		t.Errorf("warnings = %d: %v", len(result.Warnings), result.Warnings)
	}
}

func TestParse_Errors(t *testing.T) {
	dir := t.TempDir()
	p := NewYAMLParser()

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("edges: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Parse(context.Background(), empty); err == nil {
		t.Error("expected error for a network without nodes")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("nodes: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Parse(context.Background(), bad); err == nil {
		t.Error("expected error for malformed YAML")
	}

	if _, err := p.Parse(context.Background(), filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestSupported(t *testing.T) {
	p := NewYAMLParser()
	dir := t.TempDir()
	txt := filepath.Join(dir, "stations.txt")
	_ = os.WriteFile(txt, []byte("1 2\n"), 0o600)

	tests := []struct {
		path string
		want bool
	}{
		{"testdata/network.yaml", true},
		{"testdata", false},
		{txt, false},
		{"testdata/missing.yml", false},
	}
	for _, tt := range tests {
		if got := p.Supported(tt.path); got != tt.want {
			t.Errorf("Supported(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
	if p.Name() != "yaml" {
		t.Errorf("Name = %s", p.Name())
	}
}
