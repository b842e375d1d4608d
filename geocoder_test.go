package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestComposePlaceLabel_JoinsSegmentsInDisplayOrder(t *testing.T) {
	addr := nominatimAddress{
		Road:    "Lodhi Road",
		Suburb:  "Lodhi Colony",
		City:    "Delhi",
		State:   "Delhi",
		Country: "India",
	}
	got := composePlaceLabel(addr, "ignored")
	want := "Lodhi Road, Lodhi Colony, Delhi, Delhi, India"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestComposePlaceLabel_CityAndCountryOnly(t *testing.T) {
	got := composePlaceLabel(nominatimAddress{City: "Delhi", Country: "India"}, "ignored")
	if got != "Delhi, India" {
		t.Fatalf("expected %q, got %q", "Delhi, India", got)
	}
}

func TestComposePlaceLabel_TownAndVillageSubstituteForCity(t *testing.T) {
	got := composePlaceLabel(nominatimAddress{Town: "Alibag", State: "Maharashtra", Country: "India"}, "")
	if got != "Alibag, Maharashtra, India" {
		t.Fatalf("town substitution failed: %q", got)
	}

	got = composePlaceLabel(nominatimAddress{Village: "Khonoma", State: "Nagaland", Country: "India"}, "")
	if got != "Khonoma, Nagaland, India" {
		t.Fatalf("village substitution failed: %q", got)
	}
}

func TestComposePlaceLabel_EmptyAddressFallsBackToDisplayName(t *testing.T) {
	got := composePlaceLabel(nominatimAddress{}, "Somewhere on Earth")
	if got != "Somewhere on Earth" {
		t.Fatalf("expected display_name fallback, got %q", got)
	}
}

func TestNominatimGeocode_BuildsLabelFromResponse(t *testing.T) {
	var capturedUA, capturedLang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUA = r.Header.Get("User-Agent")
		capturedLang = r.Header.Get("Accept-Language")
		if r.URL.Query().Get("addressdetails") != "1" {
			t.Errorf("expected addressdetails=1, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"display_name":"full name","address":{"suburb":"Hauz Khas","city":"Delhi","state":"Delhi","country":"India"}}`))
	}))
	defer server.Close()

	geocoder := &NominatimGeocoder{UserAgent: geocoderUserAgent, Client: server.Client(), BaseURL: server.URL}
	result, err := geocoder.Geocode(context.Background(), 28.5494, 77.2001)
	if err != nil {
		t.Fatalf("geocode failed: %v", err)
	}
	if result.Label != "Hauz Khas, Delhi, Delhi, India" {
		t.Fatalf("unexpected label %q", result.Label)
	}
	if capturedUA != geocoderUserAgent {
		t.Fatalf("expected identifying User-Agent, got %q", capturedUA)
	}
	if capturedLang != "en" {
		t.Fatalf("expected Accept-Language en, got %q", capturedLang)
	}
}

func TestNominatimGeocode_NonOKStatusIsGeocodingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	geocoder := &NominatimGeocoder{UserAgent: geocoderUserAgent, Client: server.Client(), BaseURL: server.URL}
	_, err := geocoder.Geocode(context.Background(), 1, 2)

	var gErr *GeocodingError
	if !errors.As(err, &gErr) {
		t.Fatalf("expected GeocodingError, got %T", err)
	}
}

func TestNominatimGeocode_EmptyAddressIsGeocodingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"address":{}}`))
	}))
	defer server.Close()

	geocoder := &NominatimGeocoder{UserAgent: geocoderUserAgent, Client: server.Client(), BaseURL: server.URL}
	_, err := geocoder.Geocode(context.Background(), 1, 2)

	var gErr *GeocodingError
	if !errors.As(err, &gErr) {
		t.Fatalf("expected GeocodingError, got %T", err)
	}
}

func TestCoordinateLabel_FixedPrecision(t *testing.T) {
	if got := coordinateLabel(28.6139, 77.209); got != "28.613900, 77.209000" {
		t.Fatalf("unexpected coordinate label %q", got)
	}
	if got := coordinateLabel(-33.8688, 151.2093); got != "-33.868800, 151.209300" {
		t.Fatalf("unexpected coordinate label %q", got)
	}
}
