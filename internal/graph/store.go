package graph

import (
	"context"
	"time"

	"github.com/matijazezelj/evroute/pkg/models"
)

// Store defines the interface for persisting the road network and its
// charging stations.
type Store interface {
	// Init initializes the store (creates tables, indexes, etc.).
	Init(ctx context.Context) error

	// Close closes the store connection.
	Close() error

	// UpsertNode inserts or updates a node.
	UpsertNode(ctx context.Context, node models.Node) error

	// UpsertEdge inserts or updates an edge.
	UpsertEdge(ctx context.Context, edge models.Edge) error

	// UpsertStation inserts or updates a snapped charging station.
	UpsertStation(ctx context.Context, station models.Station) error

	// GetNode retrieves a node by ID.
	GetNode(ctx context.Context, id models.NodeID) (*models.Node, error)

	// ListNodes returns nodes matching the given filters.
	ListNodes(ctx context.Context, filter NodeFilter) ([]models.Node, error)

	// ListEdges returns edges matching the given filters.
	ListEdges(ctx context.Context, filter EdgeFilter) ([]models.Edge, error)

	// ListStations returns all charging stations.
	ListStations(ctx context.Context) ([]models.Station, error)

	// DeleteNode removes a node and its connected edges and stations.
	DeleteNode(ctx context.Context, id models.NodeID) error

	// DeleteStations removes the stations imported from source.
	DeleteStations(ctx context.Context, source string) error

	// NodeCount returns the total number of nodes.
	NodeCount(ctx context.Context) (int, error)

	// EdgeCount returns the total number of edges.
	EdgeCount(ctx context.Context) (int, error)

	// StationCount returns the total number of stations.
	StationCount(ctx context.Context) (int, error)

	// RecordImport records an import run.
	RecordImport(ctx context.Context, imp Import) (int64, error)

	// UpdateImport updates an import record.
	UpdateImport(ctx context.Context, id int64, status string, counts ImportCounts) error

	// ListImports returns recent import records.
	ListImports(ctx context.Context, limit int) ([]Import, error)
}

// NodeFilter specifies criteria for listing nodes.
type NodeFilter struct {
	Source string
}

// EdgeFilter specifies criteria for listing edges.
type EdgeFilter struct {
	Source string
	NodeID models.NodeID // edges touching this node, either end
}

// ImportCounts holds what an import wrote to the store.
type ImportCounts struct {
	Nodes    int `json:"nodes"`
	Edges    int `json:"edges"`
	Stations int `json:"stations"`
}

// Import represents an import run record.
type Import struct {
	ID         int64        `json:"id"`
	Kind       string       `json:"kind"`
	SourcePath string       `json:"source_path"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Counts     ImportCounts `json:"counts"`
	Status     string       `json:"status"`
}
