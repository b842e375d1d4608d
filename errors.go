package main

import "fmt"

// Domain error taxonomy. Every failure at a network or capability
// boundary is converted into one of these and rendered as user-visible
// state; nothing escapes as an uncaught failure.

// ValidationError blocks a submission before any network call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// GeolocationError means the device location capability is missing,
// denied or timed out. Recoverable: control passes to manual entry.
type GeolocationError struct {
	Message string
}

func (e *GeolocationError) Error() string { return e.Message }

// GeocodingError is a failed reverse-geocode lookup. Best-effort only:
// callers swallow it into a numeric coordinate label.
type GeocodingError struct {
	Err error
}

func (e *GeocodingError) Error() string { return fmt.Sprintf("reverse geocoding failed: %v", e.Err) }
func (e *GeocodingError) Unwrap() error { return e.Err }

// SubmissionErrorKind separates local controller refusals from
// upstream failures so HTTP mapping never inspects message text.
type SubmissionErrorKind int

const (
	// SubmissionUpstream: the rescue API rejected the request or was
	// unreachable. StatusCode carries the upstream status when known.
	SubmissionUpstream SubmissionErrorKind = iota
	// SubmissionInFlight: another submission is already running on this
	// controller. No network call was made.
	SubmissionInFlight
)

// SubmissionError means the create request was refused, either locally
// or by the rescue API. Not retried automatically.
type SubmissionError struct {
	Kind       SubmissionErrorKind
	StatusCode int
	Message    string
}

func (e *SubmissionError) Error() string { return e.Message }

// LoadError means the report list could not be fetched. The cache is
// cleared and the caller shows a retry affordance.
type LoadError struct {
	Message string
}

func (e *LoadError) Error() string { return e.Message }

// StatusUpdateKind identifies where a status advance was refused.
type StatusUpdateKind int

const (
	// StatusUpdateUpstream: the rescue API refused or the request
	// failed in transit.
	StatusUpdateUpstream StatusUpdateKind = iota
	// StatusUpdateBadTransition: the cached entry shows the requested
	// transition would move status backwards or skip a step.
	StatusUpdateBadTransition
	// StatusUpdateUnknownStatus: the requested status is not one of the
	// lifecycle values.
	StatusUpdateUnknownStatus
)

// StatusUpdateError means a status advance was refused or failed. The
// cache is left untouched.
type StatusUpdateError struct {
	Kind       StatusUpdateKind
	StatusCode int
	Message    string
}

func (e *StatusUpdateError) Error() string { return e.Message }
