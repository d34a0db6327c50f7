// Package geocode resolves free-text addresses to coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrNotFound is returned when the service knows no match for the address.
var ErrNotFound = errors.New("address not found")

// Location is a geocoding match.
type Location struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name,omitempty"`
}

// Geocoder resolves an address to its best match.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Location, error)
}

// Nominatim queries a Nominatim-compatible search endpoint. Requests are
// paced by a shared limiter because the public instance allows one request
// per second.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewNominatim creates a client for baseURL. perSecond <= 0 disables pacing.
func NewNominatim(baseURL, userAgent string, perSecond float64, timeout time.Duration) *Nominatim {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the first match for address.
func (n *Nominatim) Geocode(ctx context.Context, address string) (Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Location{}, errors.New("address is empty")
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return Location{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return Location{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("querying geocoder: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort cleanup

	if resp.StatusCode >= 400 {
		return Location{}, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Location{}, fmt.Errorf("decoding geocoder response: %w", err)
	}
	if len(results) == 0 {
		return Location{}, ErrNotFound
	}

	lat, errLat := strconv.ParseFloat(results[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(results[0].Lon, 64)
	if errLat != nil || errLon != nil {
		return Location{}, fmt.Errorf("geocoder returned invalid coordinates %q, %q", results[0].Lat, results[0].Lon)
	}
	return Location{Lat: lat, Lon: lon, DisplayName: results[0].DisplayName}, nil
}
