package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/matijazezelj/evroute/internal/config"
	"github.com/matijazezelj/evroute/internal/geo"
	"github.com/matijazezelj/evroute/internal/graph"
	"github.com/matijazezelj/evroute/internal/parser"
	"github.com/matijazezelj/evroute/internal/parser/geojsonnet"
	"github.com/matijazezelj/evroute/internal/parser/stations"
	"github.com/matijazezelj/evroute/internal/parser/yamlnet"
	"github.com/matijazezelj/evroute/pkg/models"
)

// Import kinds.
const (
	KindNetwork  = "network"
	KindStations = "stations"
	KindAll      = "all"
)

// Import statuses recorded in the store.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Store is the persistence the importer writes to. Both *graph.SQLiteStore
// and *graph.SyncedStore satisfy it.
type Store interface {
	graph.Store
	Load(ctx context.Context, metric geo.Metric) (*graph.Snapshot, error)
}

// Request describes an import to execute.
type Request struct {
	Kind  string // "network", "stations" or "all"
	Paths []string

	// MaxSnapDistance limits how far a station may lie from its node.
	// Zero uses routing.max_snap_distance.
	MaxSnapDistance float64
}

// Result is returned after an import completes.
type Result struct {
	ImportID int64
	Counts   graph.ImportCounts
	Warnings []string
	Error    error
}

// Importer loads network and station files into the store.
type Importer struct {
	store    Store
	cfg      *config.Config
	metric   geo.Metric
	logger   *slog.Logger
	networks []parser.Parser
	stations parser.Parser

	mu       sync.Mutex
	running  map[int64]context.CancelFunc
	onChange func(ctx context.Context)
}

// New creates an Importer.
func New(store Store, cfg *config.Config, logger *slog.Logger) *Importer {
	metric, err := geo.ParseMetric(cfg.Routing.Metric)
	if err != nil {
		logger.Warn("falling back to haversine", "metric", cfg.Routing.Metric, "error", err)
		metric = geo.Haversine{}
	}
	return &Importer{
		store:    store,
		cfg:      cfg,
		metric:   metric,
		logger:   logger,
		networks: []parser.Parser{yamlnet.NewYAMLParser(), geojsonnet.NewGeoJSONParser()},
		stations: stations.NewStationParser(),
		running:  make(map[int64]context.CancelFunc),
	}
}

// OnChange registers fn to run after every import that wrote data, e.g. to
// reload the routing snapshot.
func (im *Importer) OnChange(fn func(ctx context.Context)) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.onChange = fn
}

// RunSync executes an import synchronously and returns the result.
func (im *Importer) RunSync(ctx context.Context, req Request) Result {
	if req.Kind == KindAll {
		return merge(0, im.RunAllConfigured(ctx))
	}
	r := im.run(ctx, req)
	if r.Error == nil {
		im.notify(ctx)
	}
	return r
}

// RunAsync launches an import in a goroutine and returns the import ID
// immediately.
func (im *Importer) RunAsync(ctx context.Context, req Request) (int64, error) {
	if err := validKind(req.Kind); err != nil {
		return 0, err
	}
	sourcePath := strings.Join(req.Paths, ", ")
	if req.Kind == KindAll {
		sourcePath = "all-configured"
	}

	importID, err := im.store.RecordImport(ctx, graph.Import{
		Kind:       req.Kind,
		SourcePath: sourcePath,
		StartedAt:  time.Now(),
		Status:     StatusRunning,
	})
	if err != nil {
		return 0, fmt.Errorf("recording import: %w", err)
	}

	asyncCtx, cancel := context.WithCancel(context.Background())
	im.mu.Lock()
	im.running[importID] = cancel
	im.mu.Unlock()

	go func() {
		defer cancel()
		defer func() {
			im.mu.Lock()
			delete(im.running, importID)
			im.mu.Unlock()
		}()

		var r Result
		if req.Kind == KindAll {
			r = merge(importID, im.RunAllConfigured(asyncCtx))
		} else {
			r = im.execute(asyncCtx, req)
			if r.Error == nil {
				im.notify(asyncCtx)
			}
		}

		if r.Error != nil {
			im.logger.Error("async import failed", "importID", importID, "error", r.Error)
			_ = im.store.UpdateImport(asyncCtx, importID, StatusFailed, r.Counts)
			return
		}
		_ = im.store.UpdateImport(asyncCtx, importID, StatusCompleted, r.Counts)
		im.logger.Info("async import completed", "importID", importID,
			"nodes", r.Counts.Nodes, "edges", r.Counts.Edges, "stations", r.Counts.Stations)
	}()

	return importID, nil
}

// RunAllConfigured imports every configured network, then every configured
// station list, and returns one result per file.
func (im *Importer) RunAllConfigured(ctx context.Context) []Result {
	var results []Result
	for _, src := range im.cfg.Sources.Networks {
		if src.Path == "" {
			continue
		}
		results = append(results, im.run(ctx, Request{Kind: KindNetwork, Paths: []string{src.Path}}))
	}
	for _, src := range im.cfg.Sources.Stations {
		if src.Path == "" {
			continue
		}
		results = append(results, im.run(ctx, Request{
			Kind:            KindStations,
			Paths:           []string{src.Path},
			MaxSnapDistance: src.MaxSnapDistance,
		}))
	}

	for _, r := range results {
		if r.Error == nil {
			im.notify(ctx)
			break
		}
	}
	return results
}

// IsRunning returns true if any async import is in progress.
func (im *Importer) IsRunning() bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	return len(im.running) > 0
}

func (im *Importer) notify(ctx context.Context) {
	im.mu.Lock()
	fn := im.onChange
	im.mu.Unlock()
	if fn != nil {
		fn(ctx)
	}
}

// run records an import, executes it and updates the record.
func (im *Importer) run(ctx context.Context, req Request) Result {
	importID, err := im.store.RecordImport(ctx, graph.Import{
		Kind:       req.Kind,
		SourcePath: strings.Join(req.Paths, ", "),
		StartedAt:  time.Now(),
		Status:     StatusRunning,
	})
	if err != nil {
		im.logger.Warn("failed to record import", "error", err)
	}

	r := im.execute(ctx, req)
	r.ImportID = importID
	status := StatusCompleted
	if r.Error != nil {
		status = StatusFailed
	}
	_ = im.store.UpdateImport(ctx, importID, status, r.Counts)
	return r
}

// execute dispatches to the importer for the request kind.
func (im *Importer) execute(ctx context.Context, req Request) Result {
	if err := validKind(req.Kind); err != nil {
		return Result{Error: err}
	}
	if len(req.Paths) == 0 {
		return Result{Error: fmt.Errorf("no paths given for %s import", req.Kind)}
	}
	switch req.Kind {
	case KindNetwork:
		return im.importNetwork(ctx, req)
	case KindStations:
		return im.importStations(ctx, req)
	default:
		return Result{Error: fmt.Errorf("use RunAllConfigured for kind %q", req.Kind)}
	}
}

func validKind(kind string) error {
	switch kind {
	case KindNetwork, KindStations, KindAll:
		return nil
	default:
		return fmt.Errorf("unknown import kind: %s", kind)
	}
}

func (im *Importer) importNetwork(ctx context.Context, req Request) Result {
	var r Result
	for _, path := range req.Paths {
		p, err := parser.Select(im.networks, path)
		if err != nil {
			r.Error = err
			return r
		}
		parsed, err := p.Parse(ctx, path)
		if err != nil {
			r.Error = fmt.Errorf("parsing %s: %w", path, err)
			return r
		}
		r.Warnings = append(r.Warnings, parsed.Warnings...)

		// Store all nodes first, then edges and stations that reference them.
		coords := make(map[models.NodeID]models.Node, len(parsed.Nodes))
		for _, n := range parsed.Nodes {
			coords[n.ID] = n
			if err := im.store.UpsertNode(ctx, n); err != nil {
				im.logger.Warn("failed to store node", "id", n.ID, "error", err)
				continue
			}
			r.Counts.Nodes++
		}
		for _, e := range parsed.Edges {
			if err := im.store.UpsertEdge(ctx, e); err != nil {
				im.logger.Warn("failed to store edge", "id", e.ID, "error", err)
				continue
			}
			r.Counts.Edges++
		}

		if len(parsed.StationNodes) > 0 {
			if err := im.store.DeleteStations(ctx, path); err != nil {
				im.logger.Warn("failed to clear stations", "source", path, "error", err)
			}
		}
		now := time.Now()
		for _, id := range parsed.StationNodes {
			n := coords[id]
			st := models.Station{
				ID:       graph.GenerateStationID(n.Lon, n.Lat),
				NodeID:   id,
				Lon:      n.Lon,
				Lat:      n.Lat,
				Source:   path,
				LastSeen: now,
			}
			if err := im.store.UpsertStation(ctx, st); err != nil {
				im.logger.Warn("failed to store station", "node", id, "error", err)
				continue
			}
			r.Counts.Stations++
		}
	}
	im.logger.Info("network imported", "paths", req.Paths,
		"nodes", r.Counts.Nodes, "edges", r.Counts.Edges, "stations", r.Counts.Stations, "warnings", len(r.Warnings))
	return r
}

func (im *Importer) importStations(ctx context.Context, req Request) Result {
	var r Result

	snap, err := im.store.Load(ctx, im.metric)
	if err != nil {
		r.Error = fmt.Errorf("loading network: %w", err)
		return r
	}
	if snap.Network.NodeCount() == 0 {
		r.Error = fmt.Errorf("network is empty, import a network before stations")
		return r
	}

	maxDist := req.MaxSnapDistance
	if maxDist == 0 {
		maxDist = im.cfg.Routing.MaxSnapDistance
	}

	for _, path := range req.Paths {
		if !im.stations.Supported(path) {
			r.Error = fmt.Errorf("path %q is not a supported station list", path)
			return r
		}
		parsed, err := im.stations.Parse(ctx, path)
		if err != nil {
			r.Error = fmt.Errorf("parsing %s: %w", path, err)
			return r
		}
		r.Warnings = append(r.Warnings, parsed.Warnings...)

		snapped, warnings := snap.Index.SnapStations(parsed.Stations, maxDist, path)
		r.Warnings = append(r.Warnings, warnings...)

		// A re-import replaces what the same file delivered before.
		if err := im.store.DeleteStations(ctx, path); err != nil {
			r.Error = fmt.Errorf("clearing stations of %s: %w", path, err)
			return r
		}
		for _, st := range snapped {
			if err := im.store.UpsertStation(ctx, st); err != nil {
				im.logger.Warn("failed to store station", "id", st.ID, "error", err)
				continue
			}
			r.Counts.Stations++
		}
	}
	im.logger.Info("stations imported", "paths", req.Paths,
		"stations", r.Counts.Stations, "warnings", len(r.Warnings))
	return r
}

// merge folds per-file results into one. The first error wins.
func merge(importID int64, results []Result) Result {
	out := Result{ImportID: importID}
	for _, r := range results {
		out.Counts.Nodes += r.Counts.Nodes
		out.Counts.Edges += r.Counts.Edges
		out.Counts.Stations += r.Counts.Stations
		out.Warnings = append(out.Warnings, r.Warnings...)
		if r.Error != nil && out.Error == nil {
			out.Error = r.Error
		}
	}
	return out
}
