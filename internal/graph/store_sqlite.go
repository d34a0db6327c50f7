package graph

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matijazezelj/evroute/pkg/models"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
    id        TEXT PRIMARY KEY,
    lon       REAL NOT NULL,
    lat       REAL NOT NULL,
    source    TEXT
);

CREATE TABLE IF NOT EXISTS edges (
    id        TEXT PRIMARY KEY,
    from_id   TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    to_id     TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    length    REAL,
    source    TEXT
);

CREATE TABLE IF NOT EXISTS stations (
    id            TEXT PRIMARY KEY,
    name          TEXT,
    node_id       TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    lon           REAL NOT NULL,
    lat           REAL NOT NULL,
    snap_distance REAL NOT NULL DEFAULT 0,
    source        TEXT,
    last_seen     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nodes_source ON nodes(source);
CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source);
CREATE INDEX IF NOT EXISTS idx_stations_node ON stations(node_id);

CREATE TABLE IF NOT EXISTS imports (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    kind           TEXT NOT NULL,
    source_path    TEXT NOT NULL,
    started_at     DATETIME NOT NULL,
    finished_at    DATETIME,
    nodes_found    INTEGER DEFAULT 0,
    edges_found    INTEGER DEFAULT 0,
    stations_found INTEGER DEFAULT 0,
    status         TEXT DEFAULT 'running'
);
`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Init creates the database schema if it doesn't exist.
func (s *SQLiteStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertNode inserts or updates a node in the store.
func (s *SQLiteStore) UpsertNode(ctx context.Context, node models.Node) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (id, lon, lat, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lon = excluded.lon,
			lat = excluded.lat,
			source = excluded.source
	`, string(node.ID), node.Lon, node.Lat, node.Source)
	return err
}

// UpsertEdge inserts or updates an edge in the store.
func (s *SQLiteStore) UpsertEdge(ctx context.Context, edge models.Edge) error {
	var length sql.NullFloat64
	if edge.Length != nil {
		length = sql.NullFloat64{Float64: *edge.Length, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edges (id, from_id, to_id, length, source)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			from_id = excluded.from_id,
			to_id = excluded.to_id,
			length = excluded.length,
			source = excluded.source
	`, edge.ID, string(edge.FromID), string(edge.ToID), length, edge.Source)
	return err
}

// UpsertStation inserts or updates a charging station.
func (s *SQLiteStore) UpsertStation(ctx context.Context, st models.Station) error {
	lastSeen := st.LastSeen
	if lastSeen.IsZero() {
		lastSeen = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stations (id, name, node_id, lon, lat, snap_distance, source, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			node_id = excluded.node_id,
			lon = excluded.lon,
			lat = excluded.lat,
			snap_distance = excluded.snap_distance,
			source = excluded.source,
			last_seen = excluded.last_seen
	`, st.ID, st.Name, string(st.NodeID), st.Lon, st.Lat, st.SnapDistance, st.Source,
		lastSeen.Format(time.RFC3339))
	return err
}

// GetNode retrieves a single node by ID.
func (s *SQLiteStore) GetNode(ctx context.Context, id models.NodeID) (*models.Node, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, lon, lat, source FROM nodes WHERE id = ?`, string(id))
	return scanNode(row)
}

func scanNode(row interface{ Scan(dest ...any) error }) (*models.Node, error) {
	var n models.Node
	var source sql.NullString

	err := row.Scan(&n.ID, &n.Lon, &n.Lat, &source)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	n.Source = source.String
	return &n, nil
}

// ListNodes returns nodes matching the given filter, ordered by id.
func (s *SQLiteStore) ListNodes(ctx context.Context, filter NodeFilter) ([]models.Node, error) {
	query := `SELECT id, lon, lat, source FROM nodes WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}

	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // best-effort cleanup

	var nodes []models.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// ListEdges returns edges matching the given filter, ordered by id.
func (s *SQLiteStore) ListEdges(ctx context.Context, filter EdgeFilter) ([]models.Edge, error) {
	query := `SELECT id, from_id, to_id, length, source FROM edges WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.NodeID != "" {
		query += ` AND (from_id = ? OR to_id = ?)`
		args = append(args, string(filter.NodeID), string(filter.NodeID))
	}

	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // best-effort cleanup

	var edges []models.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, *e)
	}
	return edges, rows.Err()
}

func scanEdge(row interface{ Scan(dest ...any) error }) (*models.Edge, error) {
	var e models.Edge
	var length sql.NullFloat64
	var source sql.NullString

	err := row.Scan(&e.ID, &e.FromID, &e.ToID, &length, &source)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if length.Valid {
		e.Length = models.Float(length.Float64)
	}
	e.Source = source.String
	return &e, nil
}

// ListStations returns all stations ordered by id.
func (s *SQLiteStore) ListStations(ctx context.Context) ([]models.Station, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, node_id, lon, lat, snap_distance, source, last_seen
		FROM stations ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // best-effort cleanup

	var stations []models.Station
	for rows.Next() {
		var st models.Station
		var name, source sql.NullString
		var lastSeen string
		if err := rows.Scan(&st.ID, &name, &st.NodeID, &st.Lon, &st.Lat, &st.SnapDistance, &source, &lastSeen); err != nil {
			return nil, err
		}
		st.Name = name.String
		st.Source = source.String
		st.LastSeen, _ = time.Parse(time.RFC3339, lastSeen)
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// DeleteNode removes a node and its edges and stations from the store.
func (s *SQLiteStore) DeleteNode(ctx context.Context, id models.NodeID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, string(id))
	return err
}

// DeleteStations removes every station that was imported from source.
func (s *SQLiteStore) DeleteStations(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM stations WHERE source = ?`, source)
	return err
}

// NodeCount returns the total number of nodes.
func (s *SQLiteStore) NodeCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&count)
	return count, err
}

// EdgeCount returns the total number of edges.
func (s *SQLiteStore) EdgeCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&count)
	return count, err
}

// StationCount returns the total number of stations.
func (s *SQLiteStore) StationCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stations`).Scan(&count)
	return count, err
}

// RecordImport inserts a new import record and returns its ID.
func (s *SQLiteStore) RecordImport(ctx context.Context, imp Import) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO imports (kind, source_path, started_at, status) VALUES (?, ?, ?, ?)
	`, imp.Kind, imp.SourcePath, imp.StartedAt.Format(time.RFC3339), imp.Status)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateImport updates an import record with its final status and counts.
func (s *SQLiteStore) UpdateImport(ctx context.Context, id int64, status string, counts ImportCounts) error {
	now := time.Now().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		UPDATE imports SET status = ?, nodes_found = ?, edges_found = ?, stations_found = ?, finished_at = ? WHERE id = ?
	`, status, counts.Nodes, counts.Edges, counts.Stations, now, id)
	return err
}

// ListImports returns the most recent import records, up to limit.
func (s *SQLiteStore) ListImports(ctx context.Context, limit int) ([]Import, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, source_path, started_at, finished_at, nodes_found, edges_found, stations_found, status
		FROM imports ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // best-effort cleanup

	var imports []Import
	for rows.Next() {
		var imp Import
		var finishedAt sql.NullString
		var startedAt string
		if err := rows.Scan(&imp.ID, &imp.Kind, &imp.SourcePath, &startedAt, &finishedAt,
			&imp.Counts.Nodes, &imp.Counts.Edges, &imp.Counts.Stations, &imp.Status); err != nil {
			return nil, err
		}
		imp.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if finishedAt.Valid {
			t, _ := time.Parse(time.RFC3339, finishedAt.String)
			imp.FinishedAt = &t
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// LoadNetwork reads every node and edge and builds an immutable Network.
func (s *SQLiteStore) LoadNetwork(ctx context.Context, b *Builder) (*Network, error) {
	nodes, err := s.ListNodes(ctx, NodeFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	for _, n := range nodes {
		b.AddNode(n.ID, n.Lon, n.Lat)
	}

	edges, err := s.ListEdges(ctx, EdgeFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}
	for _, e := range edges {
		if err := b.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// GenerateEdgeID creates a deterministic edge ID. seq distinguishes
// parallel segments between the same pair.
func GenerateEdgeID(fromID, toID models.NodeID, seq int) string {
	return strings.Join([]string{string(fromID), string(toID), fmt.Sprint(seq)}, "->")
}

// GenerateStationID creates a deterministic station ID from its raw
// coordinates.
func GenerateStationID(lon, lat float64) string {
	return fmt.Sprintf("station:%.6f,%.6f", lat, lon)
}
