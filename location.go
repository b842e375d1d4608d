package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Position is a single fix from a location capability.
type Position struct {
	Lat        float64
	Lng        float64
	ObservedAt time.Time
}

// LocationProvider abstracts the platform geolocation capability so
// the resolver can be exercised without a real device.
type LocationProvider interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// ResolutionState tracks how (and whether) coordinates were attached
// to the current draft.
type ResolutionState int

const (
	Unresolved ResolutionState = iota
	DeviceResolved
	ManualPending
	ManualResolved
)

// LocationResolution is the outcome of the fallback chain: device
// geolocation, then reverse geocoding for the label, then manual entry.
type LocationResolution struct {
	State ResolutionState
	Lat   float64
	Lng   float64
	Label string
}

// LocationResolver owns the location state for one compose-submit
// cycle. Device resolution, when present, suppresses manual entry.
type LocationResolver struct {
	provider  LocationProvider
	geocoder  Geocoder
	log       *slog.Logger
	timeout   time.Duration
	maxFixAge time.Duration

	resolution LocationResolution
}

func NewLocationResolver(provider LocationProvider, geocoder Geocoder, logger *slog.Logger) *LocationResolver {
	return &LocationResolver{
		provider:  provider,
		geocoder:  geocoder,
		log:       logger,
		timeout:   deviceLocationTimeout,
		maxFixAge: maxDeviceFixAge,
	}
}

// ResolveByDevice asks the platform capability for a fix with a bounded
// wait, then attaches a reverse-geocoded label. Any failure hands
// control to manual entry and is reported as a GeolocationError.
func (r *LocationResolver) ResolveByDevice(ctx context.Context) error {
	if r.provider == nil {
		r.resolution = LocationResolution{State: ManualPending}
		return &GeolocationError{Message: "Geolocation is not supported on this device."}
	}

	fixCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pos, err := r.provider.CurrentPosition(fixCtx)
	if err != nil {
		r.resolution = LocationResolution{State: ManualPending}
		return &GeolocationError{Message: fmt.Sprintf("Could not determine location: %v", err)}
	}
	if !pos.ObservedAt.IsZero() && time.Since(pos.ObservedAt) > r.maxFixAge {
		r.resolution = LocationResolution{State: ManualPending}
		return &GeolocationError{Message: "Cached location fix is too old."}
	}

	r.resolution = LocationResolution{
		State: DeviceResolved,
		Lat:   pos.Lat,
		Lng:   pos.Lng,
		Label: r.lookupLabel(ctx, pos.Lat, pos.Lng),
	}
	return nil
}

// lookupLabel is best-effort: a geocoder failure degrades the label to
// the fixed-precision coordinate string, never the resolution itself.
func (r *LocationResolver) lookupLabel(ctx context.Context, lat, lng float64) string {
	if r.geocoder == nil {
		return coordinateLabel(lat, lng)
	}
	result, err := r.geocoder.Geocode(ctx, lat, lng)
	if err != nil || result == nil || result.Label == "" {
		if err != nil && r.log != nil {
			r.log.Warn("reverse geocoding failed", "lat", lat, "lng", lng, "err", err)
		}
		return coordinateLabel(lat, lng)
	}
	return result.Label
}

// SetManual accepts user-typed coordinates. Rejected while a device
// resolution is present; Clear first.
func (r *LocationResolver) SetManual(lat, lng float64) error {
	if r.resolution.State == DeviceResolved {
		return &ValidationError{Message: "Device location already resolved; clear it before entering coordinates manually."}
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return &ValidationError{Message: "Coordinates are out of range."}
	}
	r.resolution = LocationResolution{
		State: ManualResolved,
		Lat:   lat,
		Lng:   lng,
		Label: coordinateLabel(lat, lng),
	}
	return nil
}

// SetLabel overrides the display label of a resolved location, e.g.
// when the browser already reverse-geocoded the fix.
func (r *LocationResolver) SetLabel(label string) {
	if r.Resolved() && label != "" {
		r.resolution.Label = label
	}
}

// Clear resets the cycle to Unresolved.
func (r *LocationResolver) Clear() {
	r.resolution = LocationResolution{}
}

// Resolution returns the current resolution value.
func (r *LocationResolver) Resolution() LocationResolution {
	return r.resolution
}

// Resolved reports whether effective coordinates exist: device-resolved
// if present, else manual.
func (r *LocationResolver) Resolved() bool {
	return r.resolution.State == DeviceResolved || r.resolution.State == ManualResolved
}
