package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const nominatimBaseURL = "https://nominatim.openstreetmap.org"

// GeocodeResult is a human-readable label for coordinates.
type GeocodeResult struct {
	Label string
}

// Geocoder abstraction for reverse address lookup
type Geocoder interface {
	Geocode(ctx context.Context, lat, lng float64) (*GeocodeResult, error)
}

// NominatimGeocoder implements Geocoder using OSM Nominatim
// CAUTION: Requires User-Agent and has strict rate limits (1 req/sec)
type NominatimGeocoder struct {
	UserAgent string
	Client    *http.Client
	BaseURL   string
	mu        sync.Mutex
	lastCall  time.Time
}

type nominatimAddress struct {
	Road    string `json:"road"`
	Suburb  string `json:"suburb"`
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	State   string `json:"state"`
	Country string `json:"country"`
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, lat, lng float64) (*GeocodeResult, error) {
	g.mu.Lock()
	elapsed := time.Since(g.lastCall)
	if elapsed < time.Second {
		time.Sleep(time.Second - elapsed)
	}
	g.lastCall = time.Now()
	g.mu.Unlock()

	base := g.BaseURL
	if base == "" {
		base = nominatimBaseURL
	}
	u := fmt.Sprintf("%s/reverse?format=json&lat=%f&lon=%f&addressdetails=1", base, lat, lng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &GeocodingError{Err: err}
	}
	req.Header.Set("User-Agent", g.UserAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, &GeocodingError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &GeocodingError{Err: fmt.Errorf("nominatim status %d", resp.StatusCode)}
	}

	var data struct {
		Address     nominatimAddress `json:"address"`
		DisplayName string           `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &GeocodingError{Err: err}
	}

	label := composePlaceLabel(data.Address, data.DisplayName)
	if label == "" {
		return nil, &GeocodingError{Err: fmt.Errorf("empty address in response")}
	}
	return &GeocodeResult{Label: label}, nil
}

// composePlaceLabel joins the non-empty address segments in display
// order: road, suburb, city (or town or village), state, country. An
// empty composition falls back to the service's own display string.
func composePlaceLabel(addr nominatimAddress, displayName string) string {
	parts := make([]string, 0, 5)
	push := func(value string) {
		if strings.TrimSpace(value) != "" {
			parts = append(parts, value)
		}
	}
	push(addr.Road)
	push(addr.Suburb)
	city := addr.City
	if city == "" {
		city = addr.Town
	}
	if city == "" {
		city = addr.Village
	}
	push(city)
	push(addr.State)
	push(addr.Country)

	if len(parts) == 0 {
		return displayName
	}
	return strings.Join(parts, ", ")
}

// coordinateLabel is the terminal fallback when no address is available.
func coordinateLabel(lat, lng float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lng)
}
