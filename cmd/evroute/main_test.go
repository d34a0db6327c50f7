package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matijazezelj/evroute/internal/geo"
	"github.com/matijazezelj/evroute/internal/graph"
	"github.com/matijazezelj/evroute/internal/importer"
	"github.com/matijazezelj/evroute/internal/routing"
	"github.com/matijazezelj/evroute/pkg/models"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

const lineNetworkYAML = `
nodes:
  - {id: A, x: 0, y: 0}
  - {id: B, x: 6, y: 0}
  - {id: C, x: 10, y: 0}
  - {id: D, x: 14, y: 0}
edges:
  - {from: A, to: B}
  - {from: B, to: C, length: 4}
  - {from: C, to: D}
stations: [B]
`

func TestMain(m *testing.M) {
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	os.Exit(m.Run())
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- buf.String()
	}()

	fn()

	_ = w.Close()
	os.Stdout = old
	return <-done
}

// writeTestConfig writes a planar config with a small battery and returns
// its path and the network file path.
func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	netPath := filepath.Join(dir, "net.yaml")
	if err := os.WriteFile(netPath, []byte(lineNetworkYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := fmt.Sprintf(`storage:
  path: %s
vehicle:
  battery_capacity: 10
  consumption_rate: 1
routing:
  metric: planar
  max_snap_distance: 5
sources:
  networks:
    - path: %s
`, filepath.Join(dir, "evroute.db"), netPath)
	cfgPath := filepath.Join(dir, "evroute.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return cfgPath, netPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	root.SilenceUsage = true
	root.SilenceErrors = true
	var err error
	out := captureStdout(t, func() { err = root.Execute() })
	return out, err
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"DEBUG", slog.LevelDebug, false},
		{"Error", slog.LevelError, false},
		{"invalid", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := parseLogLevel(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseLogLevel(%q) expected error", tt.input)
			}
		} else {
			if err != nil {
				t.Errorf("parseLogLevel(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		got := formatBytes(tt.input)
		if got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	output := captureStdout(t, func() {
		cmd := versionCmd()
		cmd.Run(cmd, nil)
	})

	if !strings.Contains(output, "evroute") {
		t.Errorf("version output should contain 'evroute', got %q", output)
	}
}

func TestCompletionCmd(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			root := &cobra.Command{Use: "evroute"}
			root.AddCommand(completionCmd())
			root.SetArgs([]string{"completion", shell})

			var err error
			output := captureStdout(t, func() { err = root.Execute() })
			if err != nil {
				t.Fatalf("completion %s error: %v", shell, err)
			}
			if output == "" {
				t.Errorf("completion %s produced no output", shell)
			}
		})
	}
}

func TestCompletionCmd_InvalidShell(t *testing.T) {
	root := &cobra.Command{Use: "evroute"}
	root.AddCommand(completionCmd())
	root.SetArgs([]string{"completion", "tcsh"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	if err := root.Execute(); err == nil {
		t.Error("expected error for unsupported shell")
	}
}

func TestPrintImportResult_Success(t *testing.T) {
	output := captureStdout(t, func() {
		printImportResult(importer.Result{
			ImportID: 3,
			Counts:   graph.ImportCounts{Nodes: 10, Edges: 5, Stations: 2},
			Warnings: []string{"station too far"},
		})
	})

	for _, want := range []string{"#3", "10 nodes", "5 edges", "2 stations", "station too far"} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q, got: %s", want, output)
		}
	}
}

func TestPrintImportResult_Error(t *testing.T) {
	output := captureStdout(t, func() {
		printImportResult(importer.Result{Error: errors.New("bad file")})
	})

	if !strings.Contains(output, "failed") || !strings.Contains(output, "bad file") {
		t.Errorf("output should mention failure, got: %s", output)
	}
}

func TestPrintRoute(t *testing.T) {
	r := &routing.Route{
		Algorithm: routing.AlgorithmAStar,
		Steps: []routing.Step{
			{Node: "A", Battery: 10, Action: models.ActionTravel},
			{Node: "B", Battery: 4, Distance: 6, Action: models.ActionTravel},
			{Node: "B", Battery: 10, Distance: 6, Action: models.ActionRecharge, ChargeAmount: 6},
			{Node: "C", Battery: 6, Distance: 10, Action: models.ActionTravel},
		},
		Distance:   10,
		Recharges:  1,
		Charged:    6,
		Expansions: 7,
	}

	var buf bytes.Buffer
	if err := printRoute(&buf, r); err != nil {
		t.Fatal(err)
	}
	output := buf.String()

	for _, want := range []string{"recharge", "+6.00", "Total distance 10.00", "1 recharge(s)", "astar"} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q, got:\n%s", want, output)
		}
	}
	if lines := strings.Count(output, "\n"); lines != 7 {
		t.Errorf("expected 7 lines (header, 4 steps, blank, summary), got %d:\n%s", lines, output)
	}
}

func TestResolveEndpoint(t *testing.T) {
	b := graph.NewBuilder(geo.Planar{})
	b.AddNode("A", 0, 0)
	b.AddNode("B", 6, 0)
	b.AddNode("1,1", 50, 50)
	snap := graph.NewSnapshot(b.Build(), nil)

	tests := []struct {
		arg     string
		want    models.NodeID
		wantErr bool
	}{
		{"A", "A", false},
		{"1,1", "1,1", false}, // node id wins over coordinates
		{"0,5", "B", false},   // lat 0, lon 5
		{" 0 , 0.5 ", "A", false},
		{"Z", "", true},
		{"x,1", "", true},
		{"1,y", "", true},
	}

	for _, tt := range tests {
		got, err := resolveEndpoint(snap, tt.arg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("resolveEndpoint(%q) expected error", tt.arg)
			}
			continue
		}
		if err != nil {
			t.Errorf("resolveEndpoint(%q) unexpected error: %v", tt.arg, err)
			continue
		}
		if got != tt.want {
			t.Errorf("resolveEndpoint(%q) = %q, want %q", tt.arg, got, tt.want)
		}
	}
}

func TestResolveEndpoint_UnknownNode(t *testing.T) {
	snap := graph.NewSnapshot(graph.NewBuilder(geo.Planar{}).Build(), nil)
	_, err := resolveEndpoint(snap, "A")
	if !errors.Is(err, routing.ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode, got %v", err)
	}
}

func TestImportAndRoute(t *testing.T) {
	cfgPath, netPath := writeTestConfig(t)

	out, err := runCLI(t, "--config", cfgPath, "import", "network", netPath)
	if err != nil {
		t.Fatalf("import network: %v", err)
	}
	if !strings.Contains(out, "4 nodes, 3 edges, 1 stations") {
		t.Errorf("unexpected import output: %s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "route", "A", "D", "--format", "json")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	var route routing.Route
	if err := json.Unmarshal([]byte(out), &route); err != nil {
		t.Fatalf("decoding route output %q: %v", out, err)
	}
	if route.Distance != 14 {
		t.Errorf("distance = %v, want 14", route.Distance)
	}
	if route.Recharges != 1 {
		t.Errorf("recharges = %d, want 1", route.Recharges)
	}
	if route.Algorithm != routing.AlgorithmAStar {
		t.Errorf("algorithm = %q, want %q", route.Algorithm, routing.AlgorithmAStar)
	}

	out, err = runCLI(t, "--config", cfgPath, "route", "A", "D", "--cost-only")
	if err != nil {
		t.Fatalf("route --cost-only: %v", err)
	}
	if !strings.Contains(out, "Total distance 14.00") || !strings.Contains(out, routing.AlgorithmCostOnly) {
		t.Errorf("unexpected cost-only output:\n%s", out)
	}
}

func TestRoute_BatteryOverrideTooSmall(t *testing.T) {
	cfgPath, netPath := writeTestConfig(t)
	if _, err := runCLI(t, "--config", cfgPath, "import", "network", netPath); err != nil {
		t.Fatal(err)
	}

	// A 5-unit battery cannot cover the 6-unit first segment.
	_, err := runCLI(t, "--config", cfgPath, "route", "A", "D", "--battery", "5")
	if !errors.Is(err, routing.ErrNoRoute) {
		t.Errorf("expected ErrNoRoute, got %v", err)
	}
}

func TestRoute_InvalidFormat(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	if _, err := runCLI(t, "--config", cfgPath, "route", "A", "D", "--format", "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestImportAll(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)

	out, err := runCLI(t, "--config", cfgPath, "import", "all")
	if err != nil {
		t.Fatalf("import all: %v", err)
	}
	if !strings.Contains(out, "4 nodes") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = runCLI(t, "--config", cfgPath, "graph", "imports")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "completed") {
		t.Errorf("imports listing should show a completed run, got:\n%s", out)
	}
}

func TestGraphCommands(t *testing.T) {
	cfgPath, netPath := writeTestConfig(t)
	if _, err := runCLI(t, "--config", cfgPath, "import", "network", netPath); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"graph", "show"}, "Nodes:         4"},
		{[]string{"graph", "nodes"}, "LON"},
		{[]string{"graph", "stations"}, "B"},
		{[]string{"graph", "export", "--format", "dot"}, "graph evroute {"},
		{[]string{"graph", "export", "--format", "mermaid"}, "graph"},
		{[]string{"graph", "export", "--format", "geojson"}, "FeatureCollection"},
		{[]string{"db", "stats"}, "Stations: 1"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := runCLI(t, append([]string{"--config", cfgPath}, tt.args...)...)
			if err != nil {
				t.Fatalf("%v: %v", tt.args, err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("%v output should contain %q, got:\n%s", tt.args, tt.want, out)
			}
		})
	}
}

func TestGraphExport_UnsupportedFormat(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	if _, err := runCLI(t, "--config", cfgPath, "graph", "export", "--format", "png"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestGraphSync_MemgraphDisabled(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	_, err := runCLI(t, "--config", cfgPath, "graph", "sync")
	if err == nil || !strings.Contains(err.Error(), "not enabled") {
		t.Errorf("expected memgraph disabled error, got %v", err)
	}
}

func TestGeocode_Disabled(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	_, err := runCLI(t, "--config", cfgPath, "geocode", "Main Street")
	if err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Errorf("expected geocoding disabled error, got %v", err)
	}
}

func TestDBOverride(t *testing.T) {
	cfgPath, netPath := writeTestConfig(t)
	other := filepath.Join(t.TempDir(), "other.db")

	if _, err := runCLI(t, "--config", cfgPath, "--db", other, "import", "network", netPath); err != nil {
		t.Fatal(err)
	}

	store, err := graph.NewSQLiteStore(other)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close() //nolint:errcheck // best-effort cleanup
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.NodeCount(ctx); n != 4 {
		t.Errorf("expected 4 nodes in overridden database, got %d", n)
	}
}

func TestDBBackup(t *testing.T) {
	cfgPath, netPath := writeTestConfig(t)
	if _, err := runCLI(t, "--config", cfgPath, "import", "network", netPath); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(t.TempDir(), "backups", "copy.db")
	out, err := runCLI(t, "--config", cfgPath, "db", "backup", dst)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if !strings.Contains(out, "Backed up") {
		t.Errorf("unexpected output: %s", out)
	}
	if info, err := os.Stat(dst); err != nil || info.Size() == 0 {
		t.Errorf("backup file missing or empty: %v", err)
	}
}

func TestInvalidLogFormat(t *testing.T) {
	if _, err := runCLI(t, "--log-format", "xml", "version"); err == nil {
		t.Error("expected error for invalid log format")
	}
}
