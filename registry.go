package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// ReportsFilter selects which reports the registry holds: everything,
// only open reports, or a single exact status.
type ReportsFilter string

const (
	FilterAll  ReportsFilter = "all"
	FilterOpen ReportsFilter = "open"
)

func validReportsFilter(filter ReportsFilter) bool {
	switch filter {
	case FilterAll, FilterOpen:
		return true
	}
	return containsString(reportStatuses, string(filter))
}

// onlyOpenQuery reports whether the server-side open filter applies.
// Resolved reports are excluded from the open set, so that filter (and
// "all") must fetch the full list.
func onlyOpenQuery(filter ReportsFilter) bool {
	switch filter {
	case FilterOpen, ReportsFilter(StatusPending), ReportsFilter(StatusOnTheWay):
		return true
	}
	return false
}

// ReportsRegistry maintains the locally cached, filterable view of
// reports and reconciles status changes against the server. The cache
// is a disposable projection; the server stays the source of truth and
// nothing else writes the cache.
type ReportsRegistry struct {
	log *slog.Logger

	mu     sync.Mutex
	cache  []Report
	filter ReportsFilter
	epoch  uint64

	// test hooks, default to the rescue client's methods
	listReports  func(ctx context.Context, onlyOpen bool) ([]Report, error)
	updateStatus func(ctx context.Context, id int, status string) error
}

func NewReportsRegistry(client *RescueClient, logger *slog.Logger) *ReportsRegistry {
	r := &ReportsRegistry{log: logger, filter: FilterAll}
	if client != nil {
		r.listReports = client.ListReports
		r.updateStatus = client.UpdateReportStatus
	}
	return r
}

// Reports returns a snapshot of the cache in server order.
func (r *ReportsRegistry) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Report{}, r.cache...)
}

// Filter returns the active filter.
func (r *ReportsRegistry) Filter() ReportsFilter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter
}

// Refresh fetches reports for the given filter and replaces the cache
// wholesale. Each call opens a new epoch; a fetch that completes after
// a newer refresh started is discarded, so rapid filter changes cannot
// install stale data. On failure the cache is cleared and a LoadError
// returned.
func (r *ReportsRegistry) Refresh(ctx context.Context, filter ReportsFilter) ([]Report, error) {
	if !validReportsFilter(filter) {
		return nil, &LoadError{Message: fmt.Sprintf("unknown filter %q", filter)}
	}

	r.mu.Lock()
	r.epoch++
	epoch := r.epoch
	r.filter = filter
	r.mu.Unlock()

	reports, err := r.listReports(ctx, onlyOpenQuery(filter))
	if err != nil {
		r.mu.Lock()
		if epoch == r.epoch {
			r.cache = nil
		}
		r.mu.Unlock()
		if r.log != nil {
			r.log.Error("failed to load reports", "filter", filter, "err", err)
		}
		return nil, err
	}

	if containsString(reportStatuses, string(filter)) {
		filtered := make([]Report, 0, len(reports))
		for _, report := range reports {
			if report.Status == string(filter) {
				filtered = append(filtered, report)
			}
		}
		reports = filtered
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if epoch != r.epoch {
		if r.log != nil {
			r.log.Warn("stale refresh discarded", "filter", filter)
		}
		return append([]Report{}, r.cache...), nil
	}
	r.cache = reports
	return append([]Report{}, r.cache...), nil
}

// RefreshCurrent re-fetches with the active filter. Used for the
// onSubmitted signal and explicit retries.
func (r *ReportsRegistry) RefreshCurrent(ctx context.Context) ([]Report, error) {
	return r.Refresh(ctx, r.Filter())
}

// UpdateStatus advances a single report. The transition is pre-checked
// against the cached entry so the client never proposes a regression;
// the server remains the authority. Only after the server acknowledges
// is the matching cache entry mutated in place — order is preserved and
// no other entry changes. On failure the cache is left untouched.
func (r *ReportsRegistry) UpdateStatus(ctx context.Context, id int, newStatus string) error {
	if !containsString(reportStatuses, newStatus) {
		return &StatusUpdateError{Kind: StatusUpdateUnknownStatus, Message: fmt.Sprintf("unknown status %q", newStatus)}
	}

	r.mu.Lock()
	for _, report := range r.cache {
		if report.ID != id {
			continue
		}
		if !containsString(statusTransitions[report.Status], newStatus) {
			r.mu.Unlock()
			return &StatusUpdateError{Kind: StatusUpdateBadTransition, Message: fmt.Sprintf("Cannot transition from %s to %s", report.Status, newStatus)}
		}
		break
	}
	r.mu.Unlock()

	if err := r.updateStatus(ctx, id, newStatus); err != nil {
		if r.log != nil {
			r.log.Error("status update failed", "id", id, "status", newStatus, "err", err)
		}
		return err
	}

	r.mu.Lock()
	for i := range r.cache {
		if r.cache[i].ID == id {
			r.cache[i].Status = newStatus
			break
		}
	}
	r.mu.Unlock()

	if r.log != nil {
		r.log.Info("report status updated", "id", id, "status", newStatus)
	}
	return nil
}
