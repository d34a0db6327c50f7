package graph

import (
	"math"
	"testing"

	"github.com/matijazezelj/evroute/internal/geo"
	"github.com/matijazezelj/evroute/pkg/models"
)

func buildLine(t *testing.T) *Network {
	t.Helper()
	b := NewBuilder(geo.Planar{})
	b.AddNode("A", 0, 0)
	b.AddNode("B", 6, 0)
	b.AddNode("C", 10, 0)
	b.AddNode("D", 14, 0)
	for i, e := range [][2]models.NodeID{{"A", "B"}, {"B", "C"}, {"C", "D"}} {
		if err := b.AddEdge(models.Edge{ID: GenerateEdgeID(e[0], e[1], i), FromID: e[0], ToID: e[1]}); err != nil {
			t.Fatal(err)
		}
	}
	return b.Build()
}

func TestNetwork_Basics(t *testing.T) {
	n := buildLine(t)

	if n.NodeCount() != 4 {
		t.Errorf("NodeCount = %d, want 4", n.NodeCount())
	}
	if n.EdgeCount() != 3 {
		t.Errorf("EdgeCount = %d, want 3", n.EdgeCount())
	}
	if !n.HasNode("C") || n.HasNode("Z") {
		t.Error("HasNode mismatch")
	}
	ids := n.Nodes()
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("Nodes not sorted: %v", ids)
		}
	}
	if n.Metric().Name() != "planar" {
		t.Errorf("Metric = %s", n.Metric().Name())
	}
}

func TestNetwork_NeighborsSymmetricAndSorted(t *testing.T) {
	n := buildLine(t)

	got := n.Neighbors("B")
	if len(got) != 2 || got[0] != "A" || got[1] != "C" {
		t.Errorf("Neighbors(B) = %v, want [A C]", got)
	}
	if got := n.Neighbors("D"); len(got) != 1 || got[0] != "C" {
		t.Errorf("Neighbors(D) = %v, want [C]", got)
	}
	if n.Degree("A") != 1 {
		t.Errorf("Degree(A) = %d", n.Degree("A"))
	}
	if len(n.Neighbors("Z")) != 0 {
		t.Error("unknown node should have no neighbours")
	}
}

func TestNetwork_WeightFallsBackToMetric(t *testing.T) {
	n := buildLine(t)

	w, ok := n.Weight("A", "B")
	if !ok || w != 6 {
		t.Errorf("Weight(A,B) = %v, %v; want 6, true", w, ok)
	}
	if _, ok := n.Weight("A", "C"); ok {
		t.Error("Weight of non-adjacent pair should not be ok")
	}
	if d := n.Distance("A", "D"); d != 14 {
		t.Errorf("Distance(A,D) = %v", d)
	}
}

func TestNetwork_ParallelEdgesUseMinimumLength(t *testing.T) {
	b := NewBuilder(geo.Planar{})
	b.AddNode("A", 0, 0)
	b.AddNode("B", 3, 4)
	_ = b.AddEdge(models.Edge{ID: "e1", FromID: "A", ToID: "B", Length: models.Float(9)})
	_ = b.AddEdge(models.Edge{ID: "e2", FromID: "B", ToID: "A", Length: models.Float(7)})
	_ = b.AddEdge(models.Edge{ID: "e3", FromID: "A", ToID: "B"})
	n := b.Build()

	w, _ := n.Weight("A", "B")
	if w != 7 {
		t.Errorf("Weight = %v, want 7", w)
	}
	if len(n.Connections("B", "A")) != 3 {
		t.Errorf("Connections = %d, want 3", len(n.Connections("B", "A")))
	}
	if len(n.Neighbors("A")) != 1 {
		t.Errorf("parallel edges should yield one neighbour, got %v", n.Neighbors("A"))
	}
}

func TestNetwork_SelfLoopNotANeighbour(t *testing.T) {
	b := NewBuilder(geo.Planar{})
	b.AddNode("A", 0, 0)
	if err := b.AddEdge(models.Edge{ID: "loop", FromID: "A", ToID: "A"}); err != nil {
		t.Fatal(err)
	}
	n := b.Build()
	if len(n.Neighbors("A")) != 0 {
		t.Errorf("Neighbors(A) = %v", n.Neighbors("A"))
	}
	if n.EdgeCount() != 1 {
		t.Errorf("EdgeCount = %d", n.EdgeCount())
	}
}

func TestBuilder_AddEdgeErrors(t *testing.T) {
	b := NewBuilder(nil)
	b.AddNode("A", 0, 0)
	b.AddNode("B", 1, 1)

	tests := []struct {
		name string
		edge models.Edge
	}{
		{"unknown from", models.Edge{ID: "x", FromID: "Z", ToID: "A"}},
		{"unknown to", models.Edge{ID: "x", FromID: "A", ToID: "Z"}},
		{"negative length", models.Edge{ID: "x", FromID: "A", ToID: "B", Length: models.Float(-1)}},
		{"nan length", models.Edge{ID: "x", FromID: "A", ToID: "B", Length: models.Float(math.NaN())}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := b.AddEdge(tt.edge); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuilder_DefaultMetricIsHaversine(t *testing.T) {
	n := NewBuilder(nil).Build()
	if n.Metric().Name() != "haversine" {
		t.Errorf("Metric = %s", n.Metric().Name())
	}
}

func TestNetwork_DistancePanicsOnUnknownNode(t *testing.T) {
	n := buildLine(t)
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	n.Distance("A", "Z")
}
