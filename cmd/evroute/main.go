package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matijazezelj/evroute/internal/config"
	"github.com/matijazezelj/evroute/internal/geo"
	"github.com/matijazezelj/evroute/internal/geocode"
	"github.com/matijazezelj/evroute/internal/graph"
	"github.com/matijazezelj/evroute/internal/importer"
	"github.com/matijazezelj/evroute/internal/routing"
	"github.com/matijazezelj/evroute/internal/server"
	"github.com/matijazezelj/evroute/pkg/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	cfgFile   string
	dbPath    string
	logFormat string
	logLevel  string
	logger    *slog.Logger
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "evroute",
		Short: "evroute - battery-aware EV routing",
		Long:  "Road network import, charging station snapping, and battery-constrained route planning.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLogLevel(logLevel)
			if err != nil {
				return err
			}
			opts := &slog.HandlerOptions{Level: level}
			switch logFormat {
			case "json":
				logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
			case "text":
				logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
			default:
				return fmt.Errorf("invalid --log-format %q (use: text, json)", logFormat)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./evroute.yaml)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text, json)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		importCmd(),
		graphCmd(),
		routeCmd(),
		geocodeCmd(),
		dbCmd(),
		serveCmd(),
		versionCmd(),
		completionCmd(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	return cfg, nil
}

func openStore() (*graph.SQLiteStore, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	store, err := graph.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	if err := store.Init(context.Background()); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("initializing database: %w", err)
	}

	return store, cfg, nil
}

// backend bundles the SQLite store with the optional Memgraph mirror.
// writer receives imports and source serves snapshots; both are the plain
// store unless Memgraph is enabled and reachable.
type backend struct {
	cfg    *config.Config
	store  *graph.SQLiteStore
	writer importer.Store
	source graph.Source
	close  func() error
}

func openBackend() (*backend, error) {
	store, cfg, err := openStore()
	if err != nil {
		return nil, err
	}
	b := &backend{cfg: cfg, store: store, writer: store, source: store, close: store.Close}

	if cfg.Storage.Memgraph.Enabled {
		mg, err := graph.NewMemgraphSource(
			cfg.Storage.Memgraph.URI,
			cfg.Storage.Memgraph.Username,
			cfg.Storage.Memgraph.Password,
			store,
			logger,
		)
		if err != nil {
			logger.Warn("memgraph unavailable, using sqlite", "error", err)
		} else {
			synced := graph.NewSyncedStore(store, mg.Driver(), logger)
			b.writer = synced
			b.source = mg
			// SyncedStore closes both the database and the shared driver.
			b.close = synced.Close
			logger.Info("memgraph connected", "uri", cfg.Storage.Memgraph.URI)
		}
	}
	return b, nil
}

func (b *backend) Close() error {
	return b.close()
}

func (b *backend) metric() geo.Metric {
	m, err := geo.ParseMetric(b.cfg.Routing.Metric)
	if err != nil {
		return geo.Haversine{}
	}
	return m
}

// --- import ---

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import road networks and charging stations",
	}
	cmd.AddCommand(importNetworkCmd(), importStationsCmd(), importAllCmd())
	return cmd
}

func importNetworkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "network <path>...",
		Short: "Import road network files (YAML or GeoJSON)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close() //nolint:errcheck // best-effort cleanup

			im := importer.New(b.writer, b.cfg, logger)
			result := im.RunSync(cmd.Context(), importer.Request{Kind: importer.KindNetwork, Paths: args})
			printImportResult(result)
			return result.Error
		},
	}
}

func importStationsCmd() *cobra.Command {
	var maxSnap float64

	cmd := &cobra.Command{
		Use:   "stations <path>...",
		Short: "Import charging stations and snap them to the network",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close() //nolint:errcheck // best-effort cleanup

			im := importer.New(b.writer, b.cfg, logger)
			result := im.RunSync(cmd.Context(), importer.Request{
				Kind:            importer.KindStations,
				Paths:           args,
				MaxSnapDistance: maxSnap,
			})
			printImportResult(result)
			return result.Error
		},
	}

	cmd.Flags().Float64Var(&maxSnap, "max-snap-distance", 0, "skip stations farther than this from any node (default from config)")
	return cmd
}

func importAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Import every source listed in the config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close() //nolint:errcheck // best-effort cleanup

			if len(b.cfg.Sources.Networks)+len(b.cfg.Sources.Stations) == 0 {
				return errors.New("no sources configured (set sources.networks / sources.stations)")
			}

			im := importer.New(b.writer, b.cfg, logger)
			var failed error
			for _, r := range im.RunAllConfigured(cmd.Context()) {
				printImportResult(r)
				if r.Error != nil && failed == nil {
					failed = r.Error
				}
			}
			return failed
		},
	}
}

func printImportResult(r importer.Result) {
	if r.Error != nil {
		fmt.Printf("Import failed: %v\n", r.Error)
		return
	}
	fmt.Printf("Import #%d complete: %d nodes, %d edges, %d stations\n",
		r.ImportID, r.Counts.Nodes, r.Counts.Edges, r.Counts.Stations)
	for _, w := range r.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

// --- graph ---

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect the stored road network",
	}
	cmd.AddCommand(graphShowCmd(), graphNodesCmd(), graphStationsCmd(), graphImportsCmd(), graphExportCmd(), graphSyncCmd())
	return cmd
}

func graphShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print network summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close() //nolint:errcheck // best-effort cleanup

			snap, err := b.source.Load(cmd.Context(), b.metric())
			if err != nil {
				return err
			}

			fmt.Printf("Network Summary (%s, %s)\n", b.source.Name(), b.metric().Name())
			fmt.Printf("  Nodes:         %d\n", snap.Network.NodeCount())
			fmt.Printf("  Edges:         %d\n", snap.Network.EdgeCount())
			fmt.Printf("  Stations:      %d\n", len(snap.Stations))
			fmt.Printf("  Station nodes: %d\n", len(snap.StationNodes()))
			return nil
		},
	}
}

func graphNodesCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List all nodes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup

			nodes, err := store.ListNodes(cmd.Context(), graph.NodeFilter{Source: source})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tLON\tLAT\tSOURCE")
			for _, n := range nodes {
				_, _ = fmt.Fprintf(w, "%s\t%.6f\t%.6f\t%s\n", n.ID, n.Lon, n.Lat, n.Source)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "filter by source file")
	return cmd
}

func graphStationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stations",
		Short: "List charging stations and their snapped nodes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup

			stations, err := store.ListStations(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tNODE\tSNAP\tSOURCE")
			for _, s := range stations {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%s\n", s.ID, s.Name, s.NodeID, s.SnapDistance, s.Source)
			}
			return w.Flush()
		},
	}
}

func graphImportsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "imports",
		Short: "List recent import runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup

			imports, err := store.ListImports(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tKIND\tSTATUS\tNODES\tEDGES\tSTATIONS\tSTARTED\tSOURCE")
			for _, imp := range imports {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					imp.ID, imp.Kind, imp.Status, imp.Counts.Nodes, imp.Counts.Edges, imp.Counts.Stations,
					imp.StartedAt.Format(time.RFC3339), imp.SourcePath)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of imports to show")
	return cmd
}

func graphExportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the network in various formats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup
			ctx := cmd.Context()

			var output string

			switch format {
			case "json":
				output, err = graph.ExportJSON(ctx, store)
			case "geojson":
				output, err = graph.ExportGeoJSON(ctx, store)
			case "dot":
				output, err = graph.ExportDOT(ctx, store)
			case "mermaid":
				output, err = graph.ExportMermaid(ctx, store)
			default:
				return fmt.Errorf("unsupported format %q (use: json, geojson, dot, mermaid)", format)
			}

			if err != nil {
				return err
			}

			fmt.Print(output)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "export format: json, geojson, dot, mermaid")
	return cmd
}

func graphSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the network from SQLite to Memgraph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup

			if !cfg.Storage.Memgraph.Enabled {
				return fmt.Errorf("memgraph is not enabled in configuration (set storage.memgraph.enabled: true)")
			}

			auth := neo4j.NoAuth()
			if cfg.Storage.Memgraph.Username != "" {
				auth = neo4j.BasicAuth(cfg.Storage.Memgraph.Username, cfg.Storage.Memgraph.Password, "")
			}

			driver, err := neo4j.NewDriverWithContext(cfg.Storage.Memgraph.URI, auth)
			if err != nil {
				return fmt.Errorf("connecting to memgraph: %w", err)
			}
			defer driver.Close(context.Background()) //nolint:errcheck // best-effort cleanup

			res, err := graph.SyncToMemgraph(cmd.Context(), store, driver, logger)
			if err != nil {
				return err
			}
			fmt.Printf("Synced %d nodes, %d edges, %d stations to %s\n", res.Nodes, res.Edges, res.Stations, cfg.Storage.Memgraph.URI)
			return nil
		},
	}
}

// --- route ---

func routeCmd() *cobra.Command {
	var costOnly bool
	var battery, rate float64
	var format string

	cmd := &cobra.Command{
		Use:   "route <from> <to>",
		Short: "Plan a battery-feasible route between two nodes or lat,lon points",
		Long: `Plan a route between two endpoints. Each endpoint is either a node id
or a "lat,lon" pair, which is snapped to the nearest node.

The default search is A* guided by straight-line distance; --cost-only runs
a uniform-cost search instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "table", "json", "geojson":
			default:
				return fmt.Errorf("unsupported format %q (use: table, json, geojson)", format)
			}

			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close() //nolint:errcheck // best-effort cleanup
			ctx := cmd.Context()

			snap, err := b.source.Load(ctx, b.metric())
			if err != nil {
				return err
			}
			stations, err := routing.NewStations(snap.Network, snap.StationNodes())
			if err != nil {
				return err
			}

			from, err := resolveEndpoint(snap, args[0])
			if err != nil {
				return fmt.Errorf("from: %w", err)
			}
			to, err := resolveEndpoint(snap, args[1])
			if err != nil {
				return fmt.Errorf("to: %w", err)
			}

			vehicle := b.cfg.Vehicle.Vehicle()
			if battery > 0 {
				vehicle.BatteryCapacity = battery
			}
			if rate > 0 {
				vehicle.ConsumptionRate = rate
			}

			find := routing.FindRoute
			if costOnly {
				find = routing.FindRouteCostOnly
			}
			route, err := find(ctx, snap.Network, from, to, stations, vehicle, b.cfg.Routing.Options())
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return writeJSON(os.Stdout, route)
			case "geojson":
				return writeJSON(os.Stdout, route.GeoJSON())
			default:
				return printRoute(os.Stdout, route)
			}
		},
	}

	cmd.Flags().BoolVar(&costOnly, "cost-only", false, "use uniform-cost search without the distance heuristic")
	cmd.Flags().Float64Var(&battery, "battery", 0, "battery capacity (default from config)")
	cmd.Flags().Float64Var(&rate, "rate", 0, "energy consumed per unit distance (default from config)")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, geojson")
	return cmd
}

// resolveEndpoint accepts a node id or a "lat,lon" pair. A node id wins when
// both readings are possible.
func resolveEndpoint(snap *graph.Snapshot, arg string) (models.NodeID, error) {
	if id := models.NodeID(arg); snap.Network.HasNode(id) {
		return id, nil
	}

	latStr, lonStr, ok := strings.Cut(arg, ",")
	if !ok {
		return "", fmt.Errorf("%w: %q", routing.ErrUnknownNode, arg)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return "", fmt.Errorf("invalid latitude in %q: %w", arg, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return "", fmt.Errorf("invalid longitude in %q: %w", arg, err)
	}

	id, dist, found := snap.Index.Nearest(orb.Point{lon, lat})
	if !found {
		return "", errors.New("network is empty")
	}
	logger.Debug("snapped endpoint", "input", arg, "node", id, "distance", dist)
	return id, nil
}

func printRoute(out io.Writer, r *routing.Route) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tNODE\tACTION\tDISTANCE\tBATTERY\tCHARGED")
	for i, s := range r.Steps {
		charged := ""
		if s.ChargeAmount > 0 {
			charged = fmt.Sprintf("+%.2f", s.ChargeAmount)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.2f\t%s\n", i, s.Node, s.Action, s.Distance, s.Battery, charged)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\nTotal distance %.2f, %d recharge(s), %.2f charged, %d states expanded (%s)\n",
		r.Distance, r.Recharges, r.Charged, r.Expansions, r.Algorithm)
	return err
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- geocode ---

func geocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode <address>",
		Short: "Resolve an address to coordinates and the nearest node",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close() //nolint:errcheck // best-effort cleanup

			g, err := newGeocoder(b.cfg)
			if err != nil {
				return err
			}
			if g == nil {
				return errors.New("geocoding is disabled (set geocode.enabled: true)")
			}

			ctx := cmd.Context()
			loc, err := g.Geocode(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Printf("%s\n  lat %.6f, lon %.6f\n", loc.DisplayName, loc.Lat, loc.Lon)

			snap, err := b.source.Load(ctx, b.metric())
			if err != nil {
				return err
			}
			if id, dist, ok := snap.Index.Nearest(orb.Point{loc.Lon, loc.Lat}); ok {
				fmt.Printf("  nearest node %s (%.1f away)\n", id, dist)
			}
			return nil
		},
	}
}

// newGeocoder returns nil when geocoding is disabled.
func newGeocoder(cfg *config.Config) (*geocode.Nominatim, error) {
	if !cfg.Geocode.Enabled {
		return nil, nil
	}
	var timeout time.Duration
	if cfg.Geocode.Timeout != "" {
		d, err := time.ParseDuration(cfg.Geocode.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid geocode timeout: %w", err)
		}
		timeout = d
	}
	return geocode.NewNominatim(cfg.Geocode.URL, cfg.Geocode.UserAgent, cfg.Geocode.RatePerSecond, timeout), nil
}

// --- serve ---

func serveCmd() *cobra.Command {
	var listen string
	var readOnly bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the routing API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			cfg := b.cfg

			if listen != "" {
				cfg.Server.Listen = listen
			}
			cfg.Server.ReadOnly = readOnly || cfg.Server.ReadOnly

			var geocoder geocode.Geocoder
			g, err := newGeocoder(cfg)
			if err != nil {
				_ = b.Close()
				return err
			}
			if g != nil {
				geocoder = g
			}

			im := importer.New(b.writer, cfg, logger)
			srv := server.New(b.store, b.source, im, geocoder, cfg, logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			if err := srv.Reload(ctx); err != nil {
				_ = b.Close()
				return fmt.Errorf("loading network: %w", err)
			}
			im.OnChange(func(ctx context.Context) {
				if err := srv.Reload(ctx); err != nil {
					logger.Error("reloading network", "error", err)
				}
			})

			// On-startup import
			if cfg.Imports.OnStartup && len(cfg.Sources.Networks)+len(cfg.Sources.Stations) > 0 {
				go func() {
					logger.Info("running startup import")
					for _, r := range im.RunAllConfigured(context.Background()) {
						if r.Error != nil {
							logger.Error("startup import failed", "error", r.Error)
						} else {
							logger.Info("startup import completed", "importID", r.ImportID,
								"nodes", r.Counts.Nodes, "edges", r.Counts.Edges, "stations", r.Counts.Stations)
						}
					}
				}()
			}

			// Scheduled imports
			if cfg.Imports.Schedule != "" {
				sched, err := importer.NewScheduler(im, cfg.Imports.Schedule, logger)
				if err != nil {
					logger.Error("invalid import schedule", "error", err)
				} else {
					sched.Start(ctx)
					defer sched.Stop()
				}
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
				_ = b.Close()
			}()

			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config or :8080)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "disable import triggers via API")
	return cmd
}

// --- db ---

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management",
	}
	cmd.AddCommand(dbStatsCmd(), dbBackupCmd())
	return cmd
}

func dbStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup
			ctx := cmd.Context()

			path := cfg.Storage.Path

			// File size
			info, err := os.Stat(path)
			var sizeStr string
			if err == nil {
				sizeStr = formatBytes(info.Size())
			} else {
				sizeStr = "unknown"
			}

			nodeCount, _ := store.NodeCount(ctx)
			edgeCount, _ := store.EdgeCount(ctx)
			stationCount, _ := store.StationCount(ctx)
			imports, _ := store.ListImports(ctx, 100)

			_, _ = fmt.Fprintf(os.Stdout, "Database: %s (%s)\n\n", path, sizeStr)
			_, _ = fmt.Fprintf(os.Stdout, "Nodes:    %d\n", nodeCount)
			_, _ = fmt.Fprintf(os.Stdout, "Edges:    %d\n", edgeCount)
			_, _ = fmt.Fprintf(os.Stdout, "Stations: %d\n", stationCount)

			// Import summary
			statusCounts := make(map[string]int)
			for _, imp := range imports {
				statusCounts[imp.Status]++
			}
			_, _ = fmt.Fprintf(os.Stdout, "\nImports: %d total\n", len(imports))
			for status, count := range statusCounts {
				_, _ = fmt.Fprintf(os.Stdout, "  %-20s %d\n", status, count)
			}

			return nil
		},
	}
}

func dbBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <output-path>",
		Short: "Copy database file to a backup location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			srcPath := cfg.Storage.Path
			dstPath := args[0]

			// Check if destination exists
			if _, err := os.Stat(dstPath); err == nil {
				_, _ = fmt.Fprintf(os.Stdout, "File %s already exists. Overwrite? [y/N]: ", dstPath)
				reader := bufio.NewReader(cmd.InOrStdin())
				answer, _ := reader.ReadString('\n')
				answer = strings.TrimSpace(strings.ToLower(answer))
				if answer != "y" && answer != "yes" {
					_, _ = fmt.Fprintln(os.Stdout, "Aborted.")
					return nil
				}
			}

			if err := os.MkdirAll(filepath.Dir(dstPath), 0o750); err != nil {
				return fmt.Errorf("creating backup directory: %w", err)
			}

			src, err := os.Open(srcPath) // #nosec G304 -- path from config/flag
			if err != nil {
				return fmt.Errorf("opening source database: %w", err)
			}
			defer src.Close() //nolint:errcheck // best-effort cleanup

			dst, err := os.Create(dstPath) // #nosec G304 -- path from user CLI arg
			if err != nil {
				return fmt.Errorf("creating backup file: %w", err)
			}
			defer dst.Close() //nolint:errcheck // best-effort cleanup

			n, err := io.Copy(dst, src)
			if err != nil {
				return fmt.Errorf("copying database: %w", err)
			}

			_, _ = fmt.Fprintf(os.Stdout, "Backed up %s to %s (%s)\n", srcPath, dstPath, formatBytes(n))
			return nil
		},
	}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// --- version ---

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("evroute %s\n", version)
		},
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid --log-level %q (use: debug, info, warn, error)", s)
	}
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for evroute.

To load completions:

Bash:
  $ source <(evroute completion bash)
  # To load completions for each session, execute once:
  # Linux:
  $ evroute completion bash > /etc/bash_completion.d/evroute
  # macOS:
  $ evroute completion bash > $(brew --prefix)/etc/bash_completion.d/evroute

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  # To load completions for each session, execute once:
  $ evroute completion zsh > "${fpath[1]}/_evroute"
  # You will need to start a new shell for this setup to take effect.

Fish:
  $ evroute completion fish | source
  # To load completions for each session, execute once:
  $ evroute completion fish > ~/.config/fish/completions/evroute.fish

PowerShell:
  PS> evroute completion powershell | Out-String | Invoke-Expression
  # To load completions for every new session, add the output to your profile:
  PS> evroute completion powershell >> $PROFILE
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
