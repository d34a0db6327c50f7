package graph

import (
	"context"
	"log/slog"

	"github.com/matijazezelj/evroute/pkg/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// SyncedStore wraps a SQLiteStore and mirrors write operations to Memgraph.
// Memgraph failures are logged but never block the SQLite write.
type SyncedStore struct {
	*SQLiteStore
	driver     neo4j.DriverWithContext
	newSession sessionFactory
	logger     *slog.Logger
}

// NewSyncedStore creates a SyncedStore. If driver is nil, no syncing occurs.
func NewSyncedStore(store *SQLiteStore, driver neo4j.DriverWithContext, logger *slog.Logger) *SyncedStore {
	s := &SyncedStore{
		SQLiteStore: store,
		driver:      driver,
		logger:      logger,
	}
	if driver != nil {
		s.newSession = newNeo4jSessionFactory(driver)
	}
	return s
}

// UpsertNode writes the node to SQLite and mirrors it as a :Junction.
func (s *SyncedStore) UpsertNode(ctx context.Context, node models.Node) error {
	if err := s.SQLiteStore.UpsertNode(ctx, node); err != nil {
		return err
	}
	s.mirror(ctx, "node", string(node.ID), `
		MERGE (n:Junction {id: $id})
		SET n.lon = $lon, n.lat = $lat, n.source = $source
	`, nodeToParams(node))
	return nil
}

// UpsertEdge writes the edge to SQLite and mirrors it as a :ROAD.
func (s *SyncedStore) UpsertEdge(ctx context.Context, edge models.Edge) error {
	if err := s.SQLiteStore.UpsertEdge(ctx, edge); err != nil {
		return err
	}
	s.mirror(ctx, "edge", edge.ID, `
		MATCH (a:Junction {id: $fromID})
		MATCH (b:Junction {id: $toID})
		MERGE (a)-[r:ROAD {id: $id}]->(b)
		SET r.length = $length, r.source = $source
	`, edgeToParams(edge))
	return nil
}

// UpsertStation writes the station to SQLite and links it to its junction.
func (s *SyncedStore) UpsertStation(ctx context.Context, st models.Station) error {
	if err := s.SQLiteStore.UpsertStation(ctx, st); err != nil {
		return err
	}
	s.mirror(ctx, "station", st.ID, `
		MATCH (n:Junction {id: $nodeID})
		MERGE (s:Station {id: $id})
		SET s.name = $name, s.lon = $lon, s.lat = $lat,
		    s.snap_distance = $snapDistance, s.source = $source, s.last_seen = $lastSeen
		MERGE (s)-[:AT]->(n)
	`, stationToParams(st))
	return nil
}

// DeleteNode removes a node from SQLite and Memgraph.
func (s *SyncedStore) DeleteNode(ctx context.Context, id models.NodeID) error {
	if err := s.SQLiteStore.DeleteNode(ctx, id); err != nil {
		return err
	}
	s.mirror(ctx, "node", string(id), `
		MATCH (n:Junction {id: $id})
		OPTIONAL MATCH (s:Station)-[:AT]->(n)
		DETACH DELETE s, n
	`, map[string]any{"id": string(id)})
	return nil
}

// DeleteStations removes the stations of one source from SQLite and Memgraph.
func (s *SyncedStore) DeleteStations(ctx context.Context, source string) error {
	if err := s.SQLiteStore.DeleteStations(ctx, source); err != nil {
		return err
	}
	s.mirror(ctx, "stations", source, `MATCH (s:Station {source: $source}) DETACH DELETE s`,
		map[string]any{"source": source})
	return nil
}

func (s *SyncedStore) mirror(ctx context.Context, kind, id, cypher string, params map[string]any) {
	if s.newSession == nil {
		return
	}
	session := s.newSession(ctx)
	defer session.Close(ctx) //nolint:errcheck // best-effort cleanup

	if _, err := session.Run(ctx, cypher, params); err != nil {
		s.logger.Warn("failed to sync to memgraph", "kind", kind, "id", id, "error", err)
	}
}

// Close closes both the SQLite and Memgraph connections.
func (s *SyncedStore) Close() error {
	sqlErr := s.SQLiteStore.Close()
	if s.driver != nil {
		if mgErr := s.driver.Close(context.Background()); mgErr != nil && sqlErr == nil {
			return mgErr
		}
	}
	return sqlErr
}

// Underlying returns the wrapped SQLiteStore.
func (s *SyncedStore) Underlying() *SQLiteStore {
	return s.SQLiteStore
}

// HasMemgraph returns true if Memgraph syncing is active.
func (s *SyncedStore) HasMemgraph() bool {
	return s.newSession != nil
}
