package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SubmissionState is the controller's lifecycle position:
// Idle -> Validating -> Submitting -> Succeeded/Failed -> Idle.
type SubmissionState int

const (
	SubmissionIdle SubmissionState = iota
	SubmissionValidating
	SubmissionSubmitting
	SubmissionSucceeded
	SubmissionFailed
)

// SubmissionResult is what the UI shows after a successful create.
type SubmissionResult struct {
	Report      CreateReportResult
	UserMessage string
}

// SubmissionController owns the report draft and the create-request
// lifecycle. Exactly one submission may be in flight per instance;
// re-entrant submits are rejected. Failures are terminal for the
// attempt and must be re-triggered explicitly.
type SubmissionController struct {
	log *slog.Logger

	mu             sync.Mutex
	state          SubmissionState
	draft          ReportDraft
	idempotencyKey string

	onSubmitted []func(CreateReportResult)

	// test hook, defaults to the rescue client's method
	createReport func(ctx context.Context, draft ReportDraft, loc LocationResolution, idempotencyKey string) (*CreateReportResult, error)
}

func NewSubmissionController(client *RescueClient, logger *slog.Logger) *SubmissionController {
	s := &SubmissionController{log: logger}
	if client != nil {
		s.createReport = client.CreateReport
	}
	return s
}

// OnSubmitted registers an observer notified after every successful
// create. Observers run synchronously, in registration order.
func (s *SubmissionController) OnSubmitted(fn func(CreateReportResult)) {
	s.onSubmitted = append(s.onSubmitted, fn)
}

// State returns the current lifecycle state.
func (s *SubmissionController) State() SubmissionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Draft returns the draft of the current (or last) compose cycle.
func (s *SubmissionController) Draft() ReportDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// validateDraft applies the submission preconditions. Coordinates are
// mandatory: drafts without a resolved location are rejected before any
// network call.
func validateDraft(draft ReportDraft, resolver *LocationResolver) error {
	if strings.TrimSpace(draft.Description) == "" ||
		strings.TrimSpace(draft.ReporterName) == "" ||
		strings.TrimSpace(draft.ReporterPhone) == "" {
		return &ValidationError{Message: "Please fill description, name, and phone."}
	}
	if resolver == nil || !resolver.Resolved() {
		return &ValidationError{Message: "Location is mandatory. Use your current location or enter coordinates manually."}
	}
	if len(strings.TrimSpace(draft.ReporterPhone)) < minPhoneLength {
		return &ValidationError{Message: "Please enter a valid phone number."}
	}
	return nil
}

// Submit validates the draft and performs the create against the rescue
// API. On success the draft and location resolution are reset and
// onSubmitted observers fire.
func (s *SubmissionController) Submit(ctx context.Context, draft ReportDraft, resolver *LocationResolver) (*SubmissionResult, error) {
	s.mu.Lock()
	if s.state == SubmissionSubmitting {
		s.mu.Unlock()
		return nil, &SubmissionError{Kind: SubmissionInFlight, Message: "A submission is already in progress."}
	}
	s.state = SubmissionValidating
	s.draft = draft

	if err := validateDraft(draft, resolver); err != nil {
		s.state = SubmissionFailed
		s.mu.Unlock()
		return nil, err
	}

	// The key survives a failed attempt so an explicit retry of the
	// same draft stays idempotent on the server.
	if s.idempotencyKey == "" {
		s.idempotencyKey = uuid.NewString()
	}
	key := s.idempotencyKey
	s.state = SubmissionSubmitting
	s.mu.Unlock()

	resolution := resolver.Resolution()
	created, err := s.createReport(ctx, draft, resolution, key)

	s.mu.Lock()
	if err != nil {
		s.state = SubmissionFailed
		s.mu.Unlock()
		if s.log != nil {
			s.log.Error("report submission failed", "err", err)
		}
		return nil, err
	}
	s.state = SubmissionSucceeded
	s.draft = ReportDraft{}
	s.idempotencyKey = ""
	observers := append([]func(CreateReportResult){}, s.onSubmitted...)
	s.mu.Unlock()

	resolver.Clear()
	if s.log != nil {
		s.log.Info("report created", "id", created.ID, "location", resolution.Label)
	}
	for _, fn := range observers {
		fn(*created)
	}

	return &SubmissionResult{
		Report:      *created,
		UserMessage: composeSuccessMessage(*created),
	}, nil
}

// composeSuccessMessage appends the optional assignment details to the
// server's message: "assigned to X (Y km away)" only when present.
func composeSuccessMessage(created CreateReportResult) string {
	msg := created.Message
	if created.AssignedNGO != nil && *created.AssignedNGO != "" {
		msg += fmt.Sprintf("\nAssigned to: %s", *created.AssignedNGO)
		if created.DistanceKM != nil {
			msg += fmt.Sprintf(" (%s km away)", strconv.FormatFloat(*created.DistanceKM, 'f', -1, 64))
		}
	}
	return msg
}
