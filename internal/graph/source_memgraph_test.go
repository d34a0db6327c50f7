package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/matijazezelj/evroute/internal/geo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// memgraphLineSession answers the three load queries with the A-B-C-D line.
func memgraphLineSession() *mockSession {
	return &mockSession{
		runFunc: func(cypher string, _ map[string]any) (resultIterator, error) {
			switch {
			case strings.Contains(cypher, "s:Station"):
				return &mockResult{records: []*neo4j.Record{makeRecord(map[string]any{
					"id": "st1", "name": "Bee", "node_id": "B",
					"lon": 6.0, "lat": 0.0, "snap_distance": int64(0),
				})}}, nil
			case strings.Contains(cypher, "r:ROAD"):
				return &mockResult{records: []*neo4j.Record{
					makeRoadRecord("ab", "A", "B", nil),
					makeRoadRecord("bc", "B", "C", int64(4)),
					makeRoadRecord("cd", "C", "D", 4.0),
				}}, nil
			default:
				return &mockResult{records: []*neo4j.Record{
					makeJunctionRecord("A", 0, 0),
					makeJunctionRecord("B", 6, 0),
					makeJunctionRecord("C", 10, 0),
					makeRecord(map[string]any{"id": "D", "lon": int64(14), "lat": int64(0)}),
				}}, nil
			}
		},
	}
}

func TestMemgraphSource_Load(t *testing.T) {
	sess := memgraphLineSession()
	src := &MemgraphSource{newSession: mockSessionFactory(sess), logger: testLogger()}

	snap, err := src.Load(context.Background(), geo.Planar{})
	if err != nil {
		t.Fatal(err)
	}
	n := snap.Network
	if n.NodeCount() != 4 || n.EdgeCount() != 3 {
		t.Fatalf("network = %d nodes, %d edges", n.NodeCount(), n.EdgeCount())
	}
	if w, _ := n.Weight("A", "B"); w != 6 {
		t.Errorf("Weight(A,B) = %v, want metric 6", w)
	}
	if w, _ := n.Weight("C", "B"); w != 4 {
		t.Errorf("Weight(C,B) = %v, want 4", w)
	}
	if p, _ := n.Coord("D"); p[0] != 14 {
		t.Errorf("Coord(D) = %v", p)
	}
	if len(snap.Stations) != 1 || snap.Stations[0].NodeID != "B" || snap.Stations[0].Name != "Bee" {
		t.Errorf("stations = %+v", snap.Stations)
	}
	if !sess.closed {
		t.Error("session should be closed")
	}
	if len(sess.calls) != 3 {
		t.Errorf("queries = %d, want 3", len(sess.calls))
	}
}

func TestMemgraphSource_FallbackOnError(t *testing.T) {
	store := newTestStore(t)
	seedLine(t, store)

	src := &MemgraphSource{
		newSession: failSessionFactory(errors.New("connection refused")),
		fallback:   store,
		logger:     testLogger(),
	}
	snap, err := src.Load(context.Background(), geo.Planar{})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Network.NodeCount() != 4 {
		t.Errorf("fallback network has %d nodes", snap.Network.NodeCount())
	}
}

func TestMemgraphSource_ErrorWithoutFallback(t *testing.T) {
	src := &MemgraphSource{
		newSession: failSessionFactory(errors.New("boom")),
		logger:     testLogger(),
	}
	if _, err := src.Load(context.Background(), geo.Planar{}); err == nil {
		t.Error("expected error")
	}
}

func TestMemgraphSource_IteratorError(t *testing.T) {
	sess := &mockSession{
		runFunc: func(string, map[string]any) (resultIterator, error) {
			return &mockResult{err: errors.New("stream reset")}, nil
		},
	}
	src := &MemgraphSource{newSession: mockSessionFactory(sess), logger: testLogger()}
	_, err := src.Load(context.Background(), geo.Planar{})
	if err == nil || !strings.Contains(err.Error(), "stream reset") {
		t.Errorf("err = %v", err)
	}
}

func TestMemgraphSource_RoadToUnknownJunction(t *testing.T) {
	sess := &mockSession{
		runFunc: func(cypher string, _ map[string]any) (resultIterator, error) {
			if strings.Contains(cypher, "r:ROAD") {
				return &mockResult{records: []*neo4j.Record{makeRoadRecord("x", "A", "Z", nil)}}, nil
			}
			if strings.Contains(cypher, "s:Station") {
				return &mockResult{}, nil
			}
			return &mockResult{records: []*neo4j.Record{makeJunctionRecord("A", 0, 0)}}, nil
		},
	}
	src := &MemgraphSource{newSession: mockSessionFactory(sess), logger: testLogger()}
	if _, err := src.Load(context.Background(), geo.Planar{}); err == nil {
		t.Error("expected error for dangling road")
	}
}

func TestMemgraphSource_NameAndClose(t *testing.T) {
	d := &mockDriver{}
	src := &MemgraphSource{driver: d}
	if src.Name() != "memgraph" {
		t.Errorf("Name = %s", src.Name())
	}
	if src.Driver() != d {
		t.Error("Driver mismatch")
	}
	if err := src.Close(); err != nil || !d.closed {
		t.Errorf("Close = %v, closed = %v", err, d.closed)
	}
	if err := (&MemgraphSource{}).Close(); err != nil {
		t.Errorf("Close without driver = %v", err)
	}
}

func TestRecordHelpers(t *testing.T) {
	rec := makeRecord(map[string]any{"s": "x", "i": int64(3), "f": 1.5, "n": nil, "b": true})

	if getRecordString(rec, "s") != "x" || getRecordString(rec, "i") != "3" || getRecordString(rec, "missing") != "" {
		t.Error("getRecordString mismatch")
	}
	if v, ok := getRecordFloat(rec, "i"); !ok || v != 3 {
		t.Errorf("int64 = %v, %v", v, ok)
	}
	if v, ok := getRecordFloat(rec, "f"); !ok || v != 1.5 {
		t.Errorf("float = %v, %v", v, ok)
	}
	for _, key := range []string{"n", "b", "missing"} {
		if _, ok := getRecordFloat(rec, key); ok {
			t.Errorf("%s should not be numeric", key)
		}
	}
	if toString(nil) != "" {
		t.Error("toString(nil)")
	}
}
