package parser

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/matijazezelj/evroute/pkg/models"
)

// SafeResolvePath resolves a user-provided path to an absolute path and ensures
// it doesn't escape the expected root directory via symlinks or ".." components.
func SafeResolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	// EvalSymlinks resolves symlinks and cleans ".." components against the real filesystem.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("evaluating symlinks: %w", err)
	}

	return resolved, nil
}

// Parser reads a road network or a charging-station list from a file.
type Parser interface {
	// Name returns the parser identifier (e.g., "yaml", "geojson", "stations").
	Name() string

	// Parse reads the source at the given path.
	Parse(ctx context.Context, path string) (*ParseResult, error)

	// Supported returns true if this parser can handle the given path.
	Supported(path string) bool
}

// ParseResult contains the output of a parse operation. Network files fill
// Nodes, Edges and StationNodes; station lists fill Stations, which still
// have to be snapped to the network.
type ParseResult struct {
	Nodes        []models.Node
	Edges        []models.Edge
	StationNodes []models.NodeID
	Stations     []models.RawStation
	Warnings     []string
}

// Select returns the first parser that supports path.
func Select(parsers []Parser, path string) (Parser, error) {
	for _, p := range parsers {
		if p.Supported(path) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no parser supports %s", path)
}

// EdgeSeq numbers parallel edges between the same unordered node pair.
type EdgeSeq map[[2]models.NodeID]int

// Next returns the next sequence number for the pair a, b.
func (s EdgeSeq) Next(a, b models.NodeID) int {
	if b < a {
		a, b = b, a
	}
	k := [2]models.NodeID{a, b}
	n := s[k]
	s[k] = n + 1
	return n
}
