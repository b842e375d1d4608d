package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func resolvedLocationResolver(t *testing.T) *LocationResolver {
	t.Helper()
	resolver := NewLocationResolver(nil, nil, nil)
	if err := resolver.SetManual(28.6139, 77.209); err != nil {
		t.Fatalf("manual resolution failed: %v", err)
	}
	return resolver
}

func validTestDraft() ReportDraft {
	return ReportDraft{
		Description:   "Injured dog near the market",
		ReporterName:  "Asha",
		ReporterPhone: "9876543210",
	}
}

func TestSubmit_ValidationRejectsBeforeAnyNetworkCall(t *testing.T) {
	cases := []struct {
		name     string
		draft    ReportDraft
		resolver *LocationResolver
		message  string
	}{
		{
			name:     "blank description",
			draft:    ReportDraft{ReporterName: "Asha", ReporterPhone: "9876543210"},
			resolver: resolvedLocationResolver(t),
			message:  "Please fill description, name, and phone.",
		},
		{
			name:     "whitespace-only name",
			draft:    ReportDraft{Description: "hurt cat", ReporterName: "   ", ReporterPhone: "9876543210"},
			resolver: resolvedLocationResolver(t),
			message:  "Please fill description, name, and phone.",
		},
		{
			name:     "unresolved location",
			draft:    validTestDraft(),
			resolver: NewLocationResolver(nil, nil, nil),
			message:  "Location is mandatory. Use your current location or enter coordinates manually.",
		},
		{
			name:     "short phone",
			draft:    ReportDraft{Description: "hurt cat", ReporterName: "Asha", ReporterPhone: "12345"},
			resolver: resolvedLocationResolver(t),
			message:  "Please enter a valid phone number.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			controller := NewSubmissionController(nil, nil)
			called := false
			controller.createReport = func(ctx context.Context, draft ReportDraft, loc LocationResolution, key string) (*CreateReportResult, error) {
				called = true
				return &CreateReportResult{ID: 1}, nil
			}

			_, err := controller.Submit(context.Background(), tc.draft, tc.resolver)

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T (%v)", err, err)
			}
			if vErr.Message != tc.message {
				t.Fatalf("expected %q, got %q", tc.message, vErr.Message)
			}
			if called {
				t.Fatal("validation failure must not reach the network")
			}
			if controller.State() != SubmissionFailed {
				t.Fatalf("expected SubmissionFailed, got %v", controller.State())
			}
		})
	}
}

func TestSubmit_SuccessResetsDraftAndNotifiesObservers(t *testing.T) {
	controller := NewSubmissionController(nil, nil)
	controller.createReport = func(ctx context.Context, draft ReportDraft, loc LocationResolution, key string) (*CreateReportResult, error) {
		return &CreateReportResult{ID: 42, Message: "Report submitted successfully!"}, nil
	}

	notified := 0
	controller.OnSubmitted(func(created CreateReportResult) {
		notified++
		if created.ID != 42 {
			t.Errorf("observer saw id %d", created.ID)
		}
	})

	resolver := resolvedLocationResolver(t)
	result, err := controller.Submit(context.Background(), validTestDraft(), resolver)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if result.UserMessage != "Report submitted successfully!" {
		t.Fatalf("unexpected user message %q", result.UserMessage)
	}
	if notified != 1 {
		t.Fatalf("expected exactly one observer call, got %d", notified)
	}
	if controller.Draft() != (ReportDraft{}) {
		t.Fatal("draft must reset after success")
	}
	if resolver.Resolved() {
		t.Fatal("location resolution must reset after success")
	}
	if controller.State() != SubmissionSucceeded {
		t.Fatalf("expected SubmissionSucceeded, got %v", controller.State())
	}
}

func TestSubmit_SuccessMessageIncludesAssignment(t *testing.T) {
	ngo := "Friendicoes"
	distance := 2.5
	controller := NewSubmissionController(nil, nil)
	controller.createReport = func(ctx context.Context, draft ReportDraft, loc LocationResolution, key string) (*CreateReportResult, error) {
		return &CreateReportResult{ID: 7, Message: "Report submitted successfully!", AssignedNGO: &ngo, DistanceKM: &distance}, nil
	}

	result, err := controller.Submit(context.Background(), validTestDraft(), resolvedLocationResolver(t))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	want := "Report submitted successfully!\nAssigned to: Friendicoes (2.5 km away)"
	if result.UserMessage != want {
		t.Fatalf("expected %q, got %q", want, result.UserMessage)
	}
}

func TestSubmit_RejectsConcurrentSubmission(t *testing.T) {
	controller := NewSubmissionController(nil, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	controller.createReport = func(ctx context.Context, draft ReportDraft, loc LocationResolution, key string) (*CreateReportResult, error) {
		close(started)
		<-release
		return &CreateReportResult{ID: 1, Message: "ok"}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := controller.Submit(context.Background(), validTestDraft(), resolvedLocationResolver(t)); err != nil {
			t.Errorf("first submit failed: %v", err)
		}
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first submit never started")
	}

	_, err := controller.Submit(context.Background(), validTestDraft(), resolvedLocationResolver(t))
	var sErr *SubmissionError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected SubmissionError, got %T", err)
	}
	if sErr.Message != "A submission is already in progress." {
		t.Fatalf("unexpected message %q", sErr.Message)
	}

	close(release)
	wg.Wait()
}

func TestSubmit_IdempotencyKeySurvivesFailedAttempt(t *testing.T) {
	controller := NewSubmissionController(nil, nil)
	var keys []string
	fail := true
	controller.createReport = func(ctx context.Context, draft ReportDraft, loc LocationResolution, key string) (*CreateReportResult, error) {
		keys = append(keys, key)
		if fail {
			return nil, &SubmissionError{StatusCode: 503, Message: "HTTP 503"}
		}
		return &CreateReportResult{ID: 9, Message: "ok"}, nil
	}

	if _, err := controller.Submit(context.Background(), validTestDraft(), resolvedLocationResolver(t)); err == nil {
		t.Fatal("expected first attempt to fail")
	}
	if controller.State() != SubmissionFailed {
		t.Fatalf("expected SubmissionFailed, got %v", controller.State())
	}

	fail = false
	if _, err := controller.Submit(context.Background(), validTestDraft(), resolvedLocationResolver(t)); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	if len(keys) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(keys))
	}
	if keys[0] == "" {
		t.Fatal("expected a non-empty idempotency key")
	}
	if keys[0] != keys[1] {
		t.Fatalf("retry must reuse the key: %q vs %q", keys[0], keys[1])
	}

	// a fresh draft after success gets a fresh key
	if _, err := controller.Submit(context.Background(), validTestDraft(), resolvedLocationResolver(t)); err != nil {
		t.Fatalf("third submit failed: %v", err)
	}
	if keys[2] == keys[0] {
		t.Fatal("a new draft must not reuse the previous key")
	}
}

func TestSubmit_UpstreamErrorMessageSurfacesToCaller(t *testing.T) {
	controller := NewSubmissionController(nil, nil)
	controller.createReport = func(ctx context.Context, draft ReportDraft, loc LocationResolution, key string) (*CreateReportResult, error) {
		return nil, &SubmissionError{StatusCode: 422, Message: "Phone number is invalid"}
	}

	_, err := controller.Submit(context.Background(), validTestDraft(), resolvedLocationResolver(t))
	var sErr *SubmissionError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected SubmissionError, got %T", err)
	}
	if sErr.Message != "Phone number is invalid" || sErr.StatusCode != 422 {
		t.Fatalf("upstream error not preserved: %+v", sErr)
	}
}
