package routing

import (
	"testing"

	"github.com/matijazezelj/evroute/pkg/models"
)

func TestNewStations_SortsAndDeduplicates(t *testing.T) {
	net := lineNetwork(t)
	st := mustStations(t, net, "D", "B", "D")

	ids := st.IDs()
	if len(ids) != 2 || ids[0] != "B" || ids[1] != "D" {
		t.Errorf("IDs = %v", ids)
	}
	if st.Len() != 2 || !st.Contains("B") || st.Contains("A") {
		t.Error("membership mismatch")
	}
}

func TestStations_NilIsEmpty(t *testing.T) {
	var st *Stations
	if st.Len() != 0 || st.Contains("A") || st.IDs() != nil {
		t.Error("nil Stations should behave as empty")
	}
}

func TestNearestReachable(t *testing.T) {
	net := lineNetwork(t)
	stations := mustStations(t, net, "A", "B", "D")

	tests := []struct {
		name    string
		from    models.NodeID
		battery float64
		rate    float64
		want    models.NodeID
		dist    float64
		ok      bool
	}{
		{"closest affordable, ties on id", "C", 10, 1, "B", 4, true},
		{"excludes current location", "B", 10, 1, "A", 6, true},
		{"nothing affordable", "C", 3, 1, "", 0, false},
		{"rate scales energy", "C", 7, 2, "", 0, false},
		{"low rate reaches further", "A", 3, 0.5, "B", 6, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, dist, ok := NearestReachable(net, stations, tt.from, tt.battery, tt.rate)
			if id != tt.want || dist != tt.dist || ok != tt.ok {
				t.Errorf("got %s, %v, %v; want %s, %v, %v", id, dist, ok, tt.want, tt.dist, tt.ok)
			}
		})
	}
}

func TestNearestReachable_TieBreaksOnID(t *testing.T) {
	net := planarNetwork(t, map[models.NodeID][2]float64{
		"M": {0, 0}, "east": {2, 0}, "west": {-2, 0},
	}, []testEdge{{"M", "east", 0}, {"M", "west", 0}})
	stations := mustStations(t, net, "west", "east")

	id, _, _ := NearestReachable(net, stations, "M", 10, 1)
	if id != "east" {
		t.Errorf("got %s, want east", id)
	}
}

func TestNearestReachable_SkipsStationsWithoutRoads(t *testing.T) {
	net := planarNetwork(t, map[models.NodeID][2]float64{
		"A": {0, 0}, "B": {9, 0}, "Z": {10, 0}, "S": {12, 0},
	}, []testEdge{{"A", "B", 0}, {"S", "A", 20}})
	stations := mustStations(t, net, "Z", "S")

	id, dist, ok := NearestReachable(net, stations, "B", 5, 1)
	if !ok || id != "S" || dist != 3 {
		t.Errorf("got %s, %v, %v; want S, 3, true", id, dist, ok)
	}

	only := mustStations(t, net, "Z")
	if id, _, ok := NearestReachable(net, only, "B", 5, 1); ok {
		t.Errorf("isolated station %s should not be offered", id)
	}
}

func TestNearestDistance(t *testing.T) {
	net := lineNetwork(t)
	if d := nearestDistance(net, mustStations(t, net, "B", "D"), "C"); d != 4 {
		t.Errorf("nearestDistance = %v, want 4", d)
	}
	if d := nearestDistance(net, nil, "C"); d != 0 {
		t.Errorf("no stations: %v", d)
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		battery float64
		scale   float64
		want    int64
	}{
		{3.14159, 10, 31},
		{3.16, 10, 32},
		{3.14159, 1, 3},
		{0, 100, 0},
	}
	for _, tt := range tests {
		if got := quantize(tt.battery, tt.scale); got != tt.want {
			t.Errorf("quantize(%v, %v) = %d, want %d", tt.battery, tt.scale, got, tt.want)
		}
	}
}
