package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matijazezelj/evroute/internal/geocode"
	"github.com/matijazezelj/evroute/internal/graph"
	"github.com/matijazezelj/evroute/internal/importer"
	"github.com/matijazezelj/evroute/internal/routing"
	"github.com/matijazezelj/evroute/pkg/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// current returns the active view or answers 503 when none is loaded.
func (s *Server) current(w http.ResponseWriter) (*view, bool) {
	v := s.active.Load()
	if v == nil {
		writeError(w, http.StatusServiceUnavailable, "no network loaded")
		return nil, false
	}
	return v, true
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if s.active.Load() == nil {
		status = "loading"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// endpoint names a route end either by node id or by coordinates, which
// are snapped to the nearest node.
type endpoint struct {
	Node string   `json:"node,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
}

// routeRequest is the JSON body for the route endpoints. Start and End are
// [lat, lon] pairs as posted by map clients; From and To take precedence.
type routeRequest struct {
	From            endpoint  `json:"from"`
	To              endpoint  `json:"to"`
	Start           []float64 `json:"start,omitempty"`
	End             []float64 `json:"end,omitempty"`
	BatteryCapacity *float64  `json:"battery_capacity,omitempty"`
	ConsumptionRate *float64  `json:"consumption_rate,omitempty"`
	Format          string    `json:"format,omitempty"`
}

type snapped struct {
	Node         models.NodeID `json:"node"`
	SnapDistance float64       `json:"snap_distance"`
}

type routeResponse struct {
	*routing.Route
	From snapped `json:"from"`
	To   snapped `json:"to"`
	// Path holds [lat, lon] per visited node.
	Path [][2]float64 `json:"route"`
}

type finder func(ctx context.Context, net routing.Network, start, goal models.NodeID,
	stations *routing.Stations, v routing.Vehicle, opts routing.Options) (*routing.Route, error)

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	s.route(w, r, routing.FindRoute)
}

func (s *Server) handleRouteCostOnly(w http.ResponseWriter, r *http.Request) {
	s.route(w, r, routing.FindRouteCostOnly)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request, find finder) {
	v, ok := s.current(w)
	if !ok {
		return
	}

	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Format != "" && req.Format != "json" && req.Format != "geojson" {
		writeError(w, http.StatusBadRequest, "format must be json or geojson")
		return
	}

	from, err := resolve(v, req.From, req.Start, "from")
	if err != nil {
		writeError(w, routeStatus(err), err.Error())
		return
	}
	to, err := resolve(v, req.To, req.End, "to")
	if err != nil {
		writeError(w, routeStatus(err), err.Error())
		return
	}

	vehicle := s.vehicle
	if req.BatteryCapacity != nil {
		vehicle.BatteryCapacity = *req.BatteryCapacity
	}
	if req.ConsumptionRate != nil {
		vehicle.ConsumptionRate = *req.ConsumptionRate
	}

	route, err := find(r.Context(), v.snap.Network, from.Node, to.Node, v.stations, vehicle, s.options)
	if err != nil {
		status := routeStatus(err)
		if status == statusClientClosedRequest || status == http.StatusGatewayTimeout {
			s.logger.Debug("route search abandoned", "from", from.Node, "to", to.Node, "error", err)
			writeError(w, status, err.Error())
			return
		}
		if status == http.StatusInternalServerError {
			s.logger.Error("route search", "from", from.Node, "to", to.Node, "error", err)
			writeError(w, status, "internal error")
			return
		}
		writeError(w, status, err.Error())
		return
	}
	s.logger.Debug("route found", "algorithm", route.Algorithm, "from", from.Node, "to", to.Node,
		"distance", route.Distance, "recharges", route.Recharges, "expansions", route.Expansions)

	if req.Format == "geojson" {
		writeJSON(w, http.StatusOK, route.GeoJSON())
		return
	}

	resp := routeResponse{Route: route, From: from, To: to, Path: [][2]float64{}}
	for _, id := range route.Nodes() {
		p, _ := v.snap.Network.Coord(id)
		resp.Path = append(resp.Path, [2]float64{p.Lat(), p.Lon()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func resolve(v *view, e endpoint, pair []float64, name string) (snapped, error) {
	switch {
	case e.Node != "":
		id := models.NodeID(e.Node)
		if !v.snap.Network.HasNode(id) {
			return snapped{}, fmt.Errorf("%w: %s node %q", routing.ErrUnknownNode, name, id)
		}
		return snapped{Node: id}, nil
	case e.Lat != nil && e.Lon != nil:
		return snapTo(v, *e.Lat, *e.Lon, name)
	case len(pair) == 2:
		return snapTo(v, pair[0], pair[1], name)
	default:
		return snapped{}, fmt.Errorf("%w: %s needs a node or lat/lon", errBadRequest, name)
	}
}

func snapTo(v *view, lat, lon float64, name string) (snapped, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return snapped{}, fmt.Errorf("%w: %s coordinates out of range", errBadRequest, name)
	}
	id, dist, ok := v.snap.Index.Nearest(orb.Point{lon, lat})
	if !ok {
		return snapped{}, fmt.Errorf("%w: network is empty", routing.ErrUnknownNode)
	}
	return snapped{Node: id, SnapDistance: dist}, nil
}

// statusClientClosedRequest reports a search stopped because the client went
// away. There is no standard code for it; 499 is the one proxies use.
const statusClientClosedRequest = 499

// routeStatus maps search errors to HTTP status codes.
func routeStatus(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errBadRequest),
		errors.Is(err, routing.ErrUnknownNode),
		errors.Is(err, routing.ErrInvalidVehicle),
		errors.Is(err, routing.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, routing.ErrNoRoute):
		return http.StatusNotFound
	case errors.Is(err, routing.ErrSearchLimit):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	v, ok := s.current(w)
	if !ok {
		return
	}
	if r.URL.Query().Get("format") == "geojson" {
		fc := geojson.NewFeatureCollection()
		for _, st := range v.snap.Stations {
			f := geojson.NewFeature(orb.Point{st.Lon, st.Lat})
			f.Properties["id"] = st.ID
			f.Properties["name"] = st.Name
			f.Properties["node"] = string(st.NodeID)
			fc.Append(f)
		}
		writeJSON(w, http.StatusOK, fc)
		return
	}
	stations := v.snap.Stations
	if stations == nil {
		stations = []models.Station{}
	}
	writeJSON(w, http.StatusOK, stations)
}

type geocodeRequest struct {
	Address string `json:"address"`
}

type geocodeResponse struct {
	geocode.Location
	Node         models.NodeID `json:"node,omitempty"`
	SnapDistance float64       `json:"snap_distance,omitempty"`
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		writeError(w, http.StatusServiceUnavailable, "geocoding disabled")
		return
	}

	var req geocodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "address required")
		return
	}

	loc, err := s.geocoder.Geocode(r.Context(), req.Address)
	if errors.Is(err, geocode.ErrNotFound) {
		writeError(w, http.StatusNotFound, "address not found")
		return
	}
	if err != nil {
		s.logger.Error("geocoding", "error", err)
		writeError(w, http.StatusBadGateway, "geocoding failed")
		return
	}

	resp := geocodeResponse{Location: loc}
	if v := s.active.Load(); v != nil {
		if id, dist, ok := v.snap.Index.Nearest(orb.Point{loc.Lon, loc.Lat}); ok {
			resp.Node, resp.SnapDistance = id, dist
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	v, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":         s.source.Name(),
		"metric":         s.metric.Name(),
		"nodes":          v.snap.Network.NodeCount(),
		"edges":          v.snap.Network.EdgeCount(),
		"stations":       len(v.snap.Stations),
		"station_nodes":  v.stations.Len(),
		"loaded_at":      v.snap.LoadedAt,
		"import_running": s.importer != nil && s.importer.IsRunning(),
	})
}

func (s *Server) handleNodeByID(w http.ResponseWriter, r *http.Request) {
	v, ok := s.current(w)
	if !ok {
		return
	}
	id := models.NodeID(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "node id required")
		return
	}
	p, found := v.snap.Network.Coord(id)
	if !found {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	neighbors := v.snap.Network.Neighbors(id)
	if neighbors == nil {
		neighbors = []models.NodeID{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        id,
		"lon":       p.Lon(),
		"lat":       p.Lat(),
		"station":   v.stations.Contains(id),
		"neighbors": neighbors,
	})
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	v, ok := s.current(w)
	if !ok {
		return
	}
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon query parameters required")
		return
	}
	sn, err := snapTo(v, lat, lon, "point")
	if err != nil {
		writeError(w, routeStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sn)
}

func (s *Server) handleImports(w http.ResponseWriter, r *http.Request) {
	imports, err := s.store.ListImports(r.Context(), 50)
	if err != nil {
		s.logger.Error("listing imports", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if imports == nil {
		imports = []graph.Import{}
	}
	writeJSON(w, http.StatusOK, imports)
}

func (s *Server) handleImportStatus(w http.ResponseWriter, _ *http.Request) {
	running := s.importer != nil && s.importer.IsRunning()
	writeJSON(w, http.StatusOK, map[string]any{"running": running})
}

// importTriggerRequest is the JSON body for POST /api/v1/imports.
type importTriggerRequest struct {
	Kind            string   `json:"kind"`
	Paths           []string `json:"paths,omitempty"`
	MaxSnapDistance float64  `json:"max_snap_distance,omitempty"`
}

// validatePath checks a single file path for traversal and requires absolute paths.
func validatePath(p string) error {
	cleaned := filepath.Clean(p)
	if strings.Contains(cleaned, "..") {
		return fmt.Errorf("path %q contains directory traversal", p)
	}
	if !filepath.IsAbs(cleaned) {
		return fmt.Errorf("path %q must be absolute", p)
	}
	return nil
}

// validateImportRequest checks kind, paths and the snap limit.
func validateImportRequest(req importTriggerRequest) error {
	switch req.Kind {
	case importer.KindNetwork, importer.KindStations:
		if len(req.Paths) == 0 {
			return fmt.Errorf("paths required for %s imports", req.Kind)
		}
	case importer.KindAll:
	default:
		return fmt.Errorf("kind must be one of: network, stations, all")
	}
	for _, p := range req.Paths {
		if err := validatePath(p); err != nil {
			return err
		}
	}
	if req.MaxSnapDistance < 0 {
		return fmt.Errorf("max_snap_distance must not be negative")
	}
	return nil
}

func (s *Server) handleTriggerImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "importer not configured")
		return
	}

	var req importTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateImportRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	importID, err := s.importer.RunAsync(r.Context(), importer.Request{
		Kind:            req.Kind,
		Paths:           req.Paths,
		MaxSnapDistance: req.MaxSnapDistance,
	})
	if err != nil {
		s.logger.Error("triggering import", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start import")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":    "import triggered",
		"import_id": importID,
	})
}

type exporter func(ctx context.Context, store graph.Store) (string, error)

func (s *Server) export(w http.ResponseWriter, r *http.Request, name, contentType, filename string, fn exporter) {
	out, err := fn(r.Context(), s.store)
	if err != nil {
		s.logger.Error("export "+name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "json", "application/json", "evroute-graph.json", graph.ExportJSON)
}

func (s *Server) handleExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "geojson", "application/geo+json", "evroute-graph.geojson", graph.ExportGeoJSON)
}

func (s *Server) handleExportDOT(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "dot", "text/vnd.graphviz", "evroute-graph.dot", graph.ExportDOT)
}

func (s *Server) handleExportMermaid(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "mermaid", "text/plain", "evroute-graph.mmd", graph.ExportMermaid)
}
