package stations

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matijazezelj/evroute/internal/parser"
	"github.com/matijazezelj/evroute/pkg/models"
	"go.yaml.in/yaml/v3"
)

// StationParser reads charging-station coordinates. Text files hold one
// station per line as "lat lon [name]" separated by whitespace or commas;
// lines starting with # are comments. YAML files hold a list of
// {lat, lon, name} entries, optionally under a top-level "stations" key.
type StationParser struct{}

// NewStationParser creates a new station list parser.
func NewStationParser() *StationParser {
	return &StationParser{}
}

// Name returns "stations".
func (p *StationParser) Name() string {
	return "stations"
}

var supportedExts = map[string]bool{
	".txt":  true,
	".csv":  true,
	".yaml": true,
	".yml":  true,
}

// Supported returns true for existing text, CSV and YAML files.
func (p *StationParser) Supported(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return supportedExts[strings.ToLower(filepath.Ext(path))]
}

// Parse reads a station list.
func (p *StationParser) Parse(ctx context.Context, path string) (*parser.ParseResult, error) {
	path, err := parser.SafeResolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path validated by SafeResolvePath
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(data, path)
	default:
		return parseText(data), nil
	}
}

func parseText(data []byte) *parser.ParseResult {
	result := &parser.ParseResult{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == ';'
		})
		if len(fields) < 2 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("line %d: expected \"lat lon\"", line))
			continue
		}
		lat, errLat := strconv.ParseFloat(fields[0], 64)
		lon, errLon := strconv.ParseFloat(fields[1], 64)
		if errLat != nil || errLon != nil {
			// Header rows such as "lat,lon,name" end up here.
			result.Warnings = append(result.Warnings, fmt.Sprintf("line %d: invalid coordinates %q", line, text))
			continue
		}
		st := models.RawStation{Lat: lat, Lon: lon, Name: strings.Join(fields[2:], " ")}
		if w := validate(st); w != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("line %d: %s", line, w))
			continue
		}
		result.Stations = append(result.Stations, st)
	}
	if err := scanner.Err(); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("reading: %v", err))
	}
	return result
}

type yamlStation struct {
	Name string   `yaml:"name"`
	Lat  *float64 `yaml:"lat"`
	Lon  *float64 `yaml:"lon"`
}

type yamlStations []yamlStation

// UnmarshalYAML accepts a bare list or a mapping with a "stations" list.
func (s *yamlStations) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []yamlStation
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	case yaml.MappingNode:
		var wrapped struct {
			Stations []yamlStation `yaml:"stations"`
		}
		if err := node.Decode(&wrapped); err != nil {
			return err
		}
		*s = wrapped.Stations
		return nil
	default:
		return fmt.Errorf("unsupported station list type: %v", node.Kind)
	}
}

func parseYAML(data []byte, path string) (*parser.ParseResult, error) {
	var list yamlStations
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	result := &parser.ParseResult{}
	for i, ys := range list {
		if ys.Lat == nil || ys.Lon == nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("station #%d: missing lat or lon", i+1))
			continue
		}
		st := models.RawStation{Name: ys.Name, Lat: *ys.Lat, Lon: *ys.Lon}
		if w := validate(st); w != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("station #%d: %s", i+1, w))
			continue
		}
		result.Stations = append(result.Stations, st)
	}
	return result, nil
}

func validate(st models.RawStation) string {
	switch {
	case math.IsNaN(st.Lat) || math.IsNaN(st.Lon):
		return "coordinates are NaN"
	case st.Lat < -90 || st.Lat > 90:
		return fmt.Sprintf("latitude %v out of range", st.Lat)
	case st.Lon < -180 || st.Lon > 180:
		return fmt.Sprintf("longitude %v out of range", st.Lon)
	}
	return ""
}
