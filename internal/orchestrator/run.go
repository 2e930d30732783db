package orchestrator

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/filtering"
	"github.com/spigell/job-rotator/internal/history"
	"github.com/spigell/job-rotator/internal/logger"
	"github.com/spigell/job-rotator/internal/platform"
	"github.com/spigell/job-rotator/internal/retry"
)

// signal tells callers inside a platform run how to continue.
type signal int

const (
	proceed signal = iota
	// limitReached stops the platform until its quota resets.
	limitReached
	// abandoned stops the platform for the rest of the cycle.
	abandoned
	// stopped means the run was cancelled.
	stopped
)

type run struct {
	o         *Orchestrator
	s         *session
	logger    *zap.Logger
	malformed int
}

func (o *Orchestrator) runPlatform(ctx context.Context) State {
	s := o.sessions[o.current]
	r := &run{o: o, s: s, logger: logger.ForPlatform(o.logger, s.name)}

	daily, weekly := o.deps.Limiter.Remaining(s.state, s.Limits)
	r.logger.Info("running platform", zap.Int("daily_remaining", daily), zap.Int("weekly_remaining", weekly))

	if err := s.Adapter.Authenticate(context.WithoutCancel(ctx), s.Credentials); err != nil {
		r.abandon("authentication failed", err)
		return SelectingPlatform
	}

	for _, keyword := range o.cfg.Keywords {
		if r.keyword(ctx, keyword) != proceed {
			break
		}
	}
	return SelectingPlatform
}

func (r *run) keyword(ctx context.Context, keyword string) signal {
	if sig := r.quotaLeft(ctx); sig != proceed {
		return sig
	}

	log := r.logger.With(zap.String("keyword", keyword))
	if err := r.s.Adapter.Search(context.WithoutCancel(ctx), keyword, r.o.cfg.Location); err != nil {
		if sig := r.classify(ctx, err); sig != proceed {
			return sig
		}
		log.Warn("search failed", zap.String("reason", err.Error()))
		return proceed
	}

	for page := 1; ; page++ {
		if sig := r.quotaLeft(ctx); sig != proceed {
			return sig
		}

		var candidates []*platform.Candidate
		err := r.perform(ctx, "list_candidates", func(ctx context.Context) error {
			var err error
			candidates, err = r.s.Adapter.ListCandidates(ctx)
			return err
		})
		if err != nil {
			if sig := r.classify(ctx, err); sig != proceed {
				return sig
			}
			log.Warn("listing candidates failed", zap.Int("page", page), zap.String("reason", err.Error()))
			return proceed
		}
		log.Debug("page listed", zap.Int("page", page), zap.Int("candidates", len(candidates)))
		if len(candidates) == 0 {
			return proceed
		}

		if sig := r.page(ctx, candidates); sig != proceed {
			return sig
		}

		var more bool
		err = r.perform(ctx, "next_page", func(ctx context.Context) error {
			var err error
			more, err = r.s.Adapter.NextPage(ctx)
			return err
		})
		if err != nil {
			if sig := r.classify(ctx, err); sig != proceed {
				return sig
			}
			log.Warn("advancing page failed", zap.Int("page", page), zap.String("reason", err.Error()))
			return proceed
		}
		if !more {
			return proceed
		}
	}
}

func (r *run) page(ctx context.Context, candidates []*platform.Candidate) signal {
	if !r.o.cfg.RankPage {
		for _, c := range candidates {
			if sig := r.quotaLeft(ctx); sig != proceed {
				return sig
			}
			accepted, sig := r.screen(ctx, c)
			if sig != proceed {
				return sig
			}
			if accepted == nil {
				continue
			}
			if sig := r.act(ctx, accepted); sig != proceed {
				return sig
			}
		}
		return proceed
	}

	var accepted []*platform.Candidate
	for _, c := range candidates {
		if ctx.Err() != nil {
			return stopped
		}
		d, sig := r.screen(ctx, c)
		if sig != proceed {
			return sig
		}
		if d != nil {
			accepted = append(accepted, d)
		}
	}

	sort.SliceStable(accepted, func(i, j int) bool { return accepted[i].Score > accepted[j].Score })
	for _, c := range accepted {
		if sig := r.act(ctx, c); sig != proceed {
			return sig
		}
	}
	return proceed
}

// screen fetches details of c and validates them. It returns nil when the
// candidate should not be acted on.
func (r *run) screen(ctx context.Context, c *platform.Candidate) (*platform.Candidate, signal) {
	if c != nil && c.Platform == "" {
		c.Platform = r.s.name
	}
	if err := c.Validate(); err != nil {
		r.logger.Warn("malformed candidate", zap.String("reason", err.Error()))
		return nil, r.malformedCandidate()
	}

	if r.o.deps.Exclusions.Processed(c.Platform, c.ID) {
		r.logger.Debug("candidate already processed", logger.CandidateFields(c.Platform, c.ID, c.Company)...)
		return nil, proceed
	}

	var detailed *platform.Candidate
	err := r.perform(ctx, "fetch_details", func(ctx context.Context) error {
		var err error
		detailed, err = r.s.Adapter.FetchDetails(ctx, c)
		return err
	})
	if err == nil {
		if detailed == nil {
			detailed = c
		}
		if detailed.Platform == "" {
			detailed.Platform = r.s.name
		}
		err = detailed.Validate()
	}
	if err != nil {
		if sig := r.classify(ctx, err); sig != proceed {
			return nil, sig
		}
		r.logger.Warn("fetching details failed",
			append(logger.CandidateFields(c.Platform, c.ID, c.Company), zap.String("reason", err.Error()))...,
		)
		r.record(ctx, c, platform.Failed, "fetching details failed: "+err.Error())
		r.o.deps.Exclusions.MarkRejected(c.Platform, c.ID)
		return nil, r.malformedCandidate()
	}
	r.malformed = 0

	verdict := r.o.deps.Validator.Validate(context.WithoutCancel(ctx), detailed, r.o.deps.Exclusions)
	if !verdict.Accept {
		r.record(ctx, detailed, platform.Skipped, verdict.Reason)
		return nil, proceed
	}

	detailed.Score = filtering.Score(detailed, r.o.deps.Filter)
	return detailed, proceed
}

func (r *run) act(ctx context.Context, c *platform.Candidate) signal {
	if sig := r.ready(ctx); sig != proceed {
		return sig
	}

	fields := logger.CandidateFields(c.Platform, c.ID, c.Company)
	var outcome platform.Outcome
	err := r.o.deps.Retry.Perform(context.WithoutCancel(ctx), retry.Action{
		Name: "act",
		Kind: retry.Submit,
		Do: func(ctx context.Context, s retry.Strategy) error {
			out, err := r.s.Adapter.Act(ctx, c, s)
			if err != nil {
				return err
			}
			outcome = out
			return nil
		},
	})

	switch {
	case errors.Is(err, platform.ErrQuotaExceeded), errors.Is(err, platform.ErrAuthentication):
		return r.classify(ctx, err)
	case err != nil:
		r.logger.Warn("action failed", append(fields, zap.String("reason", err.Error()))...)
		r.o.deps.Validator.Commit(r.o.deps.Exclusions, c, platform.Failed)
		r.record(ctx, c, platform.Failed, err.Error())
		return proceed
	}

	switch outcome {
	case platform.Applied:
		r.s.state = r.o.deps.Limiter.Record(r.o.deps.Limiter.ResetIfNeeded(r.s.state))
		r.o.save(ctx, r.s)
		r.logger.Info("applied", append(fields,
			zap.String("title", c.Title),
			zap.Float64("score", c.Score),
			zap.Int("daily_count", r.s.state.DailyCount),
		)...)
		r.o.deps.Validator.Commit(r.o.deps.Exclusions, c, platform.Applied)
		r.record(ctx, c, platform.Applied, "")
	case platform.Skipped:
		r.logger.Info("platform skipped candidate", fields...)
		r.o.deps.Validator.Commit(r.o.deps.Exclusions, c, platform.Skipped)
		r.record(ctx, c, platform.Skipped, "not applicable on platform")
	default:
		r.logger.Warn("action did not succeed", append(fields, zap.String("outcome", string(outcome)))...)
		r.o.deps.Validator.Commit(r.o.deps.Exclusions, c, platform.Failed)
		r.record(ctx, c, platform.Failed, "platform rejected the action")
	}
	return proceed
}

// quotaLeft stops the platform once a quota is exhausted.
func (r *run) quotaLeft(ctx context.Context) signal {
	if ctx.Err() != nil {
		return stopped
	}
	r.s.state = r.o.deps.Limiter.ResetIfNeeded(r.s.state)
	v := r.o.deps.Limiter.Check(r.s.state, r.s.Limits)
	if v.Exhausted() {
		r.logger.Info("platform quota reached", zap.Stringer("reason", v.Reason))
		return limitReached
	}
	return proceed
}

// ready waits out the cooldown and reports whether an action may be taken now.
func (r *run) ready(ctx context.Context) signal {
	for {
		if sig := r.quotaLeft(ctx); sig != proceed {
			return sig
		}
		wait := r.o.deps.Limiter.WaitTimeRemaining(r.s.state)
		if wait <= 0 {
			return proceed
		}
		r.logger.Debug("waiting for cooldown", zap.Duration("wait", wait))
		if err := r.o.deps.Sleep(ctx, wait); err != nil {
			return stopped
		}
	}
}

func (r *run) perform(ctx context.Context, name string, do func(ctx context.Context) error) error {
	return r.o.deps.Retry.Perform(context.WithoutCancel(ctx), retry.Action{
		Name: name,
		Kind: retry.Idempotent,
		Do: func(ctx context.Context, s retry.Strategy) error {
			if s != retry.Direct {
				return retry.ErrUnsupportedStrategy
			}
			return do(ctx)
		},
	})
}

// classify maps platform-level failures to a signal. A limit reported by
// the platform exhausts the local daily counter until the next reset.
func (r *run) classify(ctx context.Context, err error) signal {
	switch {
	case errors.Is(err, platform.ErrQuotaExceeded):
		r.logger.Info("platform reported its limit", zap.String("reason", err.Error()))
		r.s.state.DailyCount = max(r.s.state.DailyCount, r.s.Limits.Daily)
		r.o.save(ctx, r.s)
		r.o.observeAbandoned(r.s.name, "platform limit reached")
		return limitReached
	case errors.Is(err, platform.ErrAuthentication):
		return r.abandon("authentication lost", err)
	}
	return proceed
}

func (r *run) malformedCandidate() signal {
	r.malformed++
	if r.malformed >= r.o.cfg.MaxMalformed {
		return r.abandon("too many malformed candidates", nil)
	}
	return proceed
}

func (r *run) abandon(reason string, err error) signal {
	fields := []zap.Field{zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	r.logger.Warn("platform abandoned for this cycle", fields...)
	r.o.observeAbandoned(r.s.name, reason)
	return abandoned
}

func (r *run) record(ctx context.Context, c *platform.Candidate, outcome platform.Outcome, reason string) {
	rec := history.NewRecord(c, outcome, reason, r.s.Resume, r.o.cfg.RunID, r.o.deps.Limiter.Now())
	r.o.counts.Add(outcome)
	if err := r.o.deps.Tracker.RecordOutcome(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Warn("recording outcome failed", zap.String("reason", err.Error()))
	}
}
