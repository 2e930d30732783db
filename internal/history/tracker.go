package history

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/logger"
	"github.com/spigell/job-rotator/internal/platform"
)

// Counts are outcome totals.
type Counts struct {
	Applied int
	Failed  int
	Skipped int
}

func (c *Counts) Add(o platform.Outcome) {
	switch o {
	case platform.Applied:
		c.Applied++
	case platform.Failed:
		c.Failed++
	case platform.Skipped:
		c.Skipped++
	}
}

// Total is the number of counted outcomes.
func (c Counts) Total() int { return c.Applied + c.Failed + c.Skipped }

// SuccessRate is applied/(applied+failed) in percent. Skips do not count.
func (c Counts) SuccessRate() float64 {
	attempted := c.Applied + c.Failed
	if attempted == 0 {
		return 0
	}
	return float64(c.Applied) / float64(attempted) * 100
}

// Stats aggregate a set of outcomes.
type Stats struct {
	Counts
	ByPlatform map[string]Counts
	// Companies is the number of distinct companies applied to.
	Companies int
}

// Summarize aggregates records.
func Summarize(records []Record) Stats {
	s := Stats{ByPlatform: make(map[string]Counts)}
	companies := make(map[string]struct{})
	for _, r := range records {
		s.Add(r.Outcome)
		per := s.ByPlatform[r.Platform]
		per.Add(r.Outcome)
		s.ByPlatform[r.Platform] = per
		if r.Outcome == platform.Applied && r.Company != "" {
			companies[r.Company] = struct{}{}
		}
	}
	s.Companies = len(companies)
	return s
}

// Platforms returns the platform names in s in order.
func (s Stats) Platforms() []string {
	names := make([]string, 0, len(s.ByPlatform))
	for name := range s.ByPlatform {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Observer is notified about every recorded outcome.
type Observer interface {
	ObserveOutcome(platform string, outcome platform.Outcome)
}

// Tracker records outcomes of the current run. Records that could not be
// appended are kept and retried by Flush.
type Tracker struct {
	store    Store
	observer Observer
	logger   *zap.Logger

	mu      sync.Mutex
	records []Record
	pending []Record
}

func NewTracker(store Store, observer Observer, log *zap.Logger) *Tracker {
	return &Tracker{store: store, observer: observer, logger: logger.OrNop(log)}
}

// RecordOutcome appends r. The outcome counts in this run's statistics
// even when the append fails.
func (t *Tracker) RecordOutcome(ctx context.Context, r Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = append(t.records, r)
	if t.observer != nil {
		t.observer.ObserveOutcome(r.Platform, r.Outcome)
	}

	if err := t.store.Append(ctx, r); err != nil {
		t.pending = append(t.pending, r)
		return fmt.Errorf("append outcome %s/%s: %w", r.Platform, r.JobID, err)
	}
	return nil
}

// Aggregate returns the statistics of this run.
func (t *Tracker) Aggregate() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Summarize(t.records)
}

// Pending is the number of records not yet persisted.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Flush retries every pending append in order.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs error
	remaining := t.pending[:0]
	for _, r := range t.pending {
		if err := t.store.Append(ctx, r); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("append outcome %s/%s: %w", r.Platform, r.JobID, err))
			remaining = append(remaining, r)
		}
	}
	t.pending = remaining
	return errs
}

func (t *Tracker) Close() error {
	return t.store.Close()
}

// Baseline loads previously applied ids keyed by platform. Unreadable
// history yields an empty baseline.
func (t *Tracker) Baseline(ctx context.Context) map[string][]string {
	records, err := t.store.Load(ctx)
	if err != nil {
		t.logger.Warn("history is unreadable, previously applied jobs are unknown",
			zap.String("reason", err.Error()),
		)
		return map[string][]string{}
	}

	applied := make(map[string][]string)
	for _, r := range records {
		if r.Outcome == platform.Applied {
			applied[r.Platform] = append(applied[r.Platform], r.JobID)
		}
	}
	t.logger.Info("history loaded", zap.Int("records", len(records)), zap.Int("platforms", len(applied)))
	return applied
}
