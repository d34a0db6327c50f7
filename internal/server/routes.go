package server

import "net/http"

// RegisterRoutes registers all API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /api/v1/route", s.handleRoute)
	mux.HandleFunc("POST /api/v1/route/cost-only", s.handleRouteCostOnly)
	mux.HandleFunc("GET /api/v1/stations", s.handleStations)
	mux.HandleFunc("POST /api/v1/geocode", s.handleGeocode)
	mux.HandleFunc("GET /api/v1/graph/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/graph/nodes/{id...}", s.handleNodeByID)
	mux.HandleFunc("GET /api/v1/graph/nearest", s.handleNearest)
	mux.HandleFunc("GET /api/v1/imports", s.handleImports)
	mux.HandleFunc("GET /api/v1/imports/status", s.handleImportStatus)

	mux.HandleFunc("GET /api/v1/export/json", s.handleExportJSON)
	mux.HandleFunc("GET /api/v1/export/geojson", s.handleExportGeoJSON)
	mux.HandleFunc("GET /api/v1/export/dot", s.handleExportDOT)
	mux.HandleFunc("GET /api/v1/export/mermaid", s.handleExportMermaid)

	if !s.readOnly {
		mux.HandleFunc("POST /api/v1/imports", s.handleTriggerImport)
	}
}
