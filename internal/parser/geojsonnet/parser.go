package geojsonnet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matijazezelj/evroute/internal/graph"
	"github.com/matijazezelj/evroute/internal/parser"
	"github.com/matijazezelj/evroute/pkg/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSONParser parses road networks from a GeoJSON FeatureCollection.
//
// Point features are nodes, identified by their "id" property or feature
// id; "station": true marks a charging station. LineString features with
// "from" and "to" properties connect two such nodes, with an optional
// "length". A LineString without from/to is a road polyline: consecutive
// vertices are joined, and a vertex becomes a new node unless a point
// feature already sits on it.
type GeoJSONParser struct{}

// NewGeoJSONParser creates a new GeoJSON network parser.
func NewGeoJSONParser() *GeoJSONParser {
	return &GeoJSONParser{}
}

// Name returns "geojson".
func (p *GeoJSONParser) Name() string {
	return "geojson"
}

// Supported returns true for existing .geojson and .json files.
func (p *GeoJSONParser) Supported(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".geojson" || ext == ".json"
}

// Parse reads a GeoJSON network file.
func (p *GeoJSONParser) Parse(ctx context.Context, path string) (*parser.ParseResult, error) {
	path, err := parser.SafeResolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path validated by SafeResolvePath
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return buildNetwork(fc, path), nil
}

type builder struct {
	source  string
	result  *parser.ParseResult
	nodes   map[models.NodeID]orb.Point
	byCoord map[orb.Point]models.NodeID
	seq     parser.EdgeSeq
}

func buildNetwork(fc *geojson.FeatureCollection, source string) *parser.ParseResult {
	b := &builder{
		source:  source,
		result:  &parser.ParseResult{},
		nodes:   make(map[models.NodeID]orb.Point),
		byCoord: make(map[orb.Point]models.NodeID),
		seq:     parser.EdgeSeq{},
	}

	// Points first so that edges may reference nodes declared later.
	for i, f := range fc.Features {
		if p, ok := f.Geometry.(orb.Point); ok {
			b.addPoint(i, f, p)
		}
	}
	for i, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Point:
		case orb.LineString:
			b.addLine(i, f, g)
		default:
			b.warn("feature #%d: unsupported geometry %T, skipped", i+1, f.Geometry)
		}
	}
	return b.result
}

func (b *builder) warn(format string, args ...any) {
	b.result.Warnings = append(b.result.Warnings, fmt.Sprintf(format, args...))
}

func (b *builder) addPoint(i int, f *geojson.Feature, p orb.Point) {
	id := models.NodeID(propString(f.Properties, "id"))
	if id == "" {
		id = models.NodeID(scalarString(f.ID))
	}
	if id == "" {
		b.warn("feature #%d: point without id, skipped", i+1)
		return
	}
	if _, dup := b.nodes[id]; dup {
		b.warn("feature #%d: duplicate node %q, skipped", i+1, id)
		return
	}
	b.addNode(id, p)
	if station, _ := f.Properties["station"].(bool); station {
		b.result.StationNodes = append(b.result.StationNodes, id)
	}
}

func (b *builder) addNode(id models.NodeID, p orb.Point) {
	b.nodes[id] = p
	if _, ok := b.byCoord[p]; !ok {
		b.byCoord[p] = id
	}
	b.result.Nodes = append(b.result.Nodes, models.Node{ID: id, Lon: p[0], Lat: p[1], Source: b.source})
}

func (b *builder) addLine(i int, f *geojson.Feature, line orb.LineString) {
	from := models.NodeID(propString(f.Properties, "from"))
	to := models.NodeID(propString(f.Properties, "to"))

	if from == "" && to == "" {
		b.addPolyline(i, line)
		return
	}
	if _, ok := b.nodes[from]; !ok {
		b.warn("feature #%d: unknown node %q, skipped", i+1, from)
		return
	}
	if _, ok := b.nodes[to]; !ok {
		b.warn("feature #%d: unknown node %q, skipped", i+1, to)
		return
	}

	var length *float64
	if v, ok := f.Properties["length"].(float64); ok {
		if v < 0 {
			b.warn("feature #%d: negative length %v, skipped", i+1, v)
			return
		}
		length = models.Float(v)
	}
	b.addEdge(from, to, length)
}

func (b *builder) addPolyline(i int, line orb.LineString) {
	if len(line) < 2 {
		b.warn("feature #%d: line with fewer than two vertices, skipped", i+1)
		return
	}
	var prev models.NodeID
	for j, p := range line {
		id, ok := b.byCoord[p]
		if !ok {
			id = vertexID(p)
			b.addNode(id, p)
		}
		if j > 0 && id != prev {
			b.addEdge(prev, id, nil)
		}
		prev = id
	}
}

func (b *builder) addEdge(from, to models.NodeID, length *float64) {
	b.result.Edges = append(b.result.Edges, models.Edge{
		ID:     graph.GenerateEdgeID(from, to, b.seq.Next(from, to)),
		FromID: from,
		ToID:   to,
		Length: length,
		Source: b.source,
	})
}

// vertexID names an unlabelled polyline vertex after its coordinates.
func vertexID(p orb.Point) models.NodeID {
	return models.NodeID(fmt.Sprintf("%.7f,%.7f", p[1], p[0]))
}

func propString(props geojson.Properties, key string) string {
	return scalarString(props[key])
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	default:
		return ""
	}
}
