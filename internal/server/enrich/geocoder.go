// Package enrich resolves shift coordinates to human-readable site names
// after the fact. Everything here is best effort: a failed lookup leaves
// the site at its "Resolving..." placeholder and never affects sync.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Geocoder turns a coordinate pair into a display name.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// HTTPGeocoder calls a LocationIQ-compatible reverse endpoint.
type HTTPGeocoder struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPGeocoder(endpoint, apiKey string) *HTTPGeocoder {
	return &HTTPGeocoder{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *HTTPGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("key", g.apiKey)
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	if body.DisplayName == "" {
		return "", fmt.Errorf("reverse geocode: empty display name")
	}
	return body.DisplayName, nil
}

var _ Geocoder = (*HTTPGeocoder)(nil)
