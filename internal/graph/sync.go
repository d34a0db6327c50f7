package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matijazezelj/evroute/pkg/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const syncBatchSize = 500

// SyncResult reports what a full sync wrote to Memgraph.
type SyncResult struct {
	Nodes    int
	Edges    int
	Stations int
}

// SyncToMemgraph performs a full synchronization from SQLite to Memgraph.
// It clears all Memgraph data and re-inserts everything from SQLite.
func SyncToMemgraph(ctx context.Context, store *SQLiteStore, driver neo4j.DriverWithContext, logger *slog.Logger) (SyncResult, error) {
	return syncWith(ctx, store, newNeo4jSessionFactory(driver)(ctx), logger)
}

func syncWith(ctx context.Context, store *SQLiteStore, session sessionRunner, logger *slog.Logger) (SyncResult, error) {
	defer session.Close(ctx) //nolint:errcheck // best-effort cleanup

	var res SyncResult

	logger.Info("clearing memgraph data")
	if _, err := session.Run(ctx, "MATCH (n) DETACH DELETE n", nil); err != nil {
		return res, fmt.Errorf("clearing memgraph: %w", err)
	}

	logger.Info("creating memgraph indexes")
	for _, cypher := range []string{
		"CREATE INDEX ON :Junction(id)",
		"CREATE INDEX ON :Station(id)",
	} {
		if _, err := session.Run(ctx, cypher, nil); err != nil {
			logger.Warn("creating index (may already exist)", "error", err)
		}
	}

	nodes, err := store.ListNodes(ctx, NodeFilter{})
	if err != nil {
		return res, fmt.Errorf("listing nodes from sqlite: %w", err)
	}
	logger.Info("syncing junctions to memgraph", "count", len(nodes))
	err = runBatches(ctx, session, "nodes", len(nodes), func(i int) map[string]any {
		return nodeToParams(nodes[i])
	}, `
		UNWIND $nodes AS n
		CREATE (:Junction {id: n.id, lon: n.lon, lat: n.lat, source: n.source})
	`)
	if err != nil {
		return res, err
	}
	res.Nodes = len(nodes)

	edges, err := store.ListEdges(ctx, EdgeFilter{})
	if err != nil {
		return res, fmt.Errorf("listing edges from sqlite: %w", err)
	}
	logger.Info("syncing roads to memgraph", "count", len(edges))
	err = runBatches(ctx, session, "edges", len(edges), func(i int) map[string]any {
		return edgeToParams(edges[i])
	}, `
		UNWIND $edges AS e
		MATCH (a:Junction {id: e.fromID})
		MATCH (b:Junction {id: e.toID})
		CREATE (a)-[:ROAD {id: e.id, length: e.length, source: e.source}]->(b)
	`)
	if err != nil {
		return res, err
	}
	res.Edges = len(edges)

	stations, err := store.ListStations(ctx)
	if err != nil {
		return res, fmt.Errorf("listing stations from sqlite: %w", err)
	}
	logger.Info("syncing stations to memgraph", "count", len(stations))
	err = runBatches(ctx, session, "stations", len(stations), func(i int) map[string]any {
		return stationToParams(stations[i])
	}, `
		UNWIND $stations AS s
		MATCH (n:Junction {id: s.nodeID})
		CREATE (:Station {
			id: s.id, name: s.name, lon: s.lon, lat: s.lat,
			snap_distance: s.snapDistance, source: s.source, last_seen: s.lastSeen
		})-[:AT]->(n)
	`)
	if err != nil {
		return res, err
	}
	res.Stations = len(stations)

	logger.Info("memgraph sync complete", "nodes", res.Nodes, "edges", res.Edges, "stations", res.Stations)
	return res, nil
}

// runBatches sends n parameter maps under key in chunks of syncBatchSize.
func runBatches(ctx context.Context, session sessionRunner, key string, n int, param func(int) map[string]any, cypher string) error {
	for i := 0; i < n; i += syncBatchSize {
		end := min(i+syncBatchSize, n)
		batch := make([]map[string]any, 0, end-i)
		for j := i; j < end; j++ {
			batch = append(batch, param(j))
		}
		if _, err := session.Run(ctx, cypher, map[string]any{key: batch}); err != nil {
			return fmt.Errorf("syncing %s batch %d-%d: %w", key, i, end, err)
		}
	}
	return nil
}

func nodeToParams(n models.Node) map[string]any {
	return map[string]any{
		"id":     string(n.ID),
		"lon":    n.Lon,
		"lat":    n.Lat,
		"source": n.Source,
	}
}

func edgeToParams(e models.Edge) map[string]any {
	var length any
	if e.Length != nil {
		length = *e.Length
	}
	return map[string]any{
		"id":     e.ID,
		"fromID": string(e.FromID),
		"toID":   string(e.ToID),
		"length": length,
		"source": e.Source,
	}
}

func stationToParams(s models.Station) map[string]any {
	return map[string]any{
		"id":           s.ID,
		"name":         s.Name,
		"nodeID":       string(s.NodeID),
		"lon":          s.Lon,
		"lat":          s.Lat,
		"snapDistance": s.SnapDistance,
		"source":       s.Source,
		"lastSeen":     s.LastSeen.Format(time.RFC3339),
	}
}
