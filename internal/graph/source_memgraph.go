package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matijazezelj/evroute/internal/geo"
	"github.com/matijazezelj/evroute/pkg/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// resultIterator abstracts the subset of neo4j.ResultWithContext we use.
type resultIterator interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// sessionRunner abstracts the subset of neo4j.SessionWithContext we use.
type sessionRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (resultIterator, error)
	Close(ctx context.Context) error
}

// sessionFactory creates a new sessionRunner for a given context.
type sessionFactory func(ctx context.Context) sessionRunner

type neo4jSessionAdapter struct {
	session neo4j.SessionWithContext
}

func (a *neo4jSessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (resultIterator, error) {
	return a.session.Run(ctx, cypher, params)
}

func (a *neo4jSessionAdapter) Close(ctx context.Context) error {
	return a.session.Close(ctx)
}

func newNeo4jSessionFactory(driver neo4j.DriverWithContext) sessionFactory {
	return func(ctx context.Context) sessionRunner {
		return &neo4jSessionAdapter{session: driver.NewSession(ctx, neo4j.SessionConfig{})}
	}
}

// Cypher used to read the network back. Junctions are (:Junction {id, lon, lat}),
// segments are [:ROAD {id, length}] and stations are (:Station)-[:AT]->(:Junction).
const (
	cypherJunctions = `
		MATCH (n:Junction)
		RETURN n.id AS id, n.lon AS lon, n.lat AS lat
		ORDER BY id
	`
	cypherRoads = `
		MATCH (a:Junction)-[r:ROAD]->(b:Junction)
		RETURN r.id AS id, a.id AS from_id, b.id AS to_id, r.length AS length
		ORDER BY id
	`
	cypherStations = `
		MATCH (s:Station)-[:AT]->(n:Junction)
		RETURN s.id AS id, s.name AS name, n.id AS node_id,
		       s.lon AS lon, s.lat AS lat, s.snap_distance AS snap_distance
		ORDER BY id
	`
)

// MemgraphSource loads the road network from Memgraph over Bolt. Query
// failures fall back to the configured fallback source.
type MemgraphSource struct {
	driver     neo4j.DriverWithContext
	newSession sessionFactory
	fallback   Source
	logger     *slog.Logger
}

// NewMemgraphSource connects to Memgraph and verifies connectivity.
func NewMemgraphSource(uri, username, password string, fallback Source, logger *slog.Logger) (*MemgraphSource, error) {
	driver, err := newMemgraphDriver(uri, username, password)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, fmt.Errorf("memgraph connectivity check failed: %w", err)
	}

	logger.Info("memgraph source initialized", "uri", uri)
	return &MemgraphSource{
		driver:     driver,
		newSession: newNeo4jSessionFactory(driver),
		fallback:   fallback,
		logger:     logger,
	}, nil
}

func newMemgraphDriver(uri, username, password string) (neo4j.DriverWithContext, error) {
	auth := neo4j.NoAuth()
	if username != "" {
		auth = neo4j.BasicAuth(username, password, "")
	}
	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("creating memgraph driver: %w", err)
	}
	return driver, nil
}

// Name returns "memgraph".
func (m *MemgraphSource) Name() string {
	return "memgraph"
}

// Driver returns the underlying neo4j driver for use by SyncedStore.
func (m *MemgraphSource) Driver() neo4j.DriverWithContext {
	return m.driver
}

// Close closes the Memgraph driver connection.
func (m *MemgraphSource) Close() error {
	if m.driver == nil {
		return nil
	}
	return m.driver.Close(context.Background())
}

// Load reads junctions, roads and stations and builds a Snapshot.
func (m *MemgraphSource) Load(ctx context.Context, metric geo.Metric) (*Snapshot, error) {
	snap, err := m.load(ctx, metric)
	if err != nil {
		if m.fallback == nil {
			return nil, err
		}
		m.logger.Warn("memgraph load failed, falling back", "fallback", m.fallback.Name(), "error", err)
		return m.fallback.Load(ctx, metric)
	}
	return snap, nil
}

func (m *MemgraphSource) load(ctx context.Context, metric geo.Metric) (*Snapshot, error) {
	session := m.newSession(ctx)
	defer session.Close(ctx) //nolint:errcheck // best-effort cleanup

	b := NewBuilder(metric)

	junctions, err := session.Run(ctx, cypherJunctions, nil)
	if err != nil {
		return nil, fmt.Errorf("querying junctions: %w", err)
	}
	for junctions.Next(ctx) {
		rec := junctions.Record()
		lon, _ := getRecordFloat(rec, "lon")
		lat, _ := getRecordFloat(rec, "lat")
		b.AddNode(models.NodeID(getRecordString(rec, "id")), lon, lat)
	}
	if err := junctions.Err(); err != nil {
		return nil, fmt.Errorf("reading junctions: %w", err)
	}

	roads, err := session.Run(ctx, cypherRoads, nil)
	if err != nil {
		return nil, fmt.Errorf("querying roads: %w", err)
	}
	for roads.Next(ctx) {
		rec := roads.Record()
		e := models.Edge{
			ID:     getRecordString(rec, "id"),
			FromID: models.NodeID(getRecordString(rec, "from_id")),
			ToID:   models.NodeID(getRecordString(rec, "to_id")),
		}
		if length, ok := getRecordFloat(rec, "length"); ok {
			e.Length = models.Float(length)
		}
		if err := b.AddEdge(e); err != nil {
			return nil, err
		}
	}
	if err := roads.Err(); err != nil {
		return nil, fmt.Errorf("reading roads: %w", err)
	}

	result, err := session.Run(ctx, cypherStations, nil)
	if err != nil {
		return nil, fmt.Errorf("querying stations: %w", err)
	}
	var stations []models.Station
	for result.Next(ctx) {
		stations = append(stations, recordToStation(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("reading stations: %w", err)
	}

	return NewSnapshot(b.Build(), stations), nil
}

func recordToStation(rec *neo4j.Record) models.Station {
	st := models.Station{
		ID:     getRecordString(rec, "id"),
		Name:   getRecordString(rec, "name"),
		NodeID: models.NodeID(getRecordString(rec, "node_id")),
	}
	st.Lon, _ = getRecordFloat(rec, "lon")
	st.Lat, _ = getRecordFloat(rec, "lat")
	st.SnapDistance, _ = getRecordFloat(rec, "snap_distance")
	return st
}

func getRecordString(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	return toString(v)
}

// getRecordFloat reads a numeric value; Bolt returns integers as int64.
func getRecordFloat(record *neo4j.Record, key string) (float64, bool) {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
