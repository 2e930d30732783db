package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/platform"
)

// save persists the quota state of s. A failure is logged and retried at
// shutdown.
func (o *Orchestrator) save(ctx context.Context, s *session) {
	if err := o.deps.Quota.Save(context.WithoutCancel(ctx), s.name, s.state); err != nil {
		s.dirty = true
		o.logger.Warn("persisting quota failed", zap.String("platform", s.name), zap.String("reason", err.Error()))
	} else {
		s.dirty = false
	}
	o.observeQuota(s)
}

// terminate re-saves every platform state, dirty ones first, and flushes
// pending history.
func (o *Orchestrator) terminate(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	sessions := make([]*session, len(o.sessions))
	copy(sessions, o.sessions)
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].dirty && !sessions[j].dirty })

	var errs error
	for _, s := range sessions {
		if err := o.deps.Quota.Save(ctx, s.name, s.state); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("save quota of %s: %w", s.name, err))
			continue
		}
		s.dirty = false
	}
	if err := o.deps.Tracker.Flush(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}

	for _, s := range o.sessions {
		closer, ok := s.Adapter.(platform.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			o.logger.Warn("closing platform failed", zap.String("platform", s.name), zap.String("reason", err.Error()))
		}
	}

	stats := o.deps.Tracker.Aggregate()
	o.logger.Info("run finished",
		zap.Int("cycles", o.cycle),
		zap.Int("applied", stats.Applied),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("companies", stats.Companies),
		zap.Float64("success_rate", stats.SuccessRate()),
	)
	for _, name := range stats.Platforms() {
		c := stats.ByPlatform[name]
		o.logger.Info("platform totals",
			zap.String("platform", name),
			zap.Int("applied", c.Applied),
			zap.Int("failed", c.Failed),
			zap.Int("skipped", c.Skipped),
		)
	}
	o.deps.Validator.LogSummary()

	if errs != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, errs)
	}
	return nil
}

func (o *Orchestrator) observeAbandoned(name, reason string) {
	if o.deps.Observer != nil {
		o.deps.Observer.ObserveAbandoned(name, reason)
	}
}
