// Package orchestrator runs application cycles across platforms: it picks
// an eligible platform in rotation, drives its adapter through searches and
// pages, and persists quota and history as outcomes happen.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/filtering"
	"github.com/spigell/job-rotator/internal/history"
	"github.com/spigell/job-rotator/internal/logger"
	"github.com/spigell/job-rotator/internal/platform"
	"github.com/spigell/job-rotator/internal/quota"
	"github.com/spigell/job-rotator/internal/retry"
	"github.com/spigell/job-rotator/internal/utils"
)

const (
	DefaultCycleDelay       = 10 * time.Minute
	DefaultExhaustedBackoff = time.Hour
	DefaultMaxMalformed     = 3
)

// ErrPersistence is returned by Run when state could still not be saved
// at shutdown.
var ErrPersistence = errors.New("persisting state failed")

// State is a state of the orchestration state machine.
type State int

const (
	Idle State = iota
	SelectingPlatform
	RunningPlatform
	Cooling
	Terminal
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SelectingPlatform:
		return "selecting_platform"
	case RunningPlatform:
		return "running_platform"
	case Cooling:
		return "cooling"
	case Terminal:
		return "terminal"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Platform is one configured platform.
type Platform struct {
	Adapter     platform.Adapter
	Credentials platform.Credentials
	Limits      quota.Limits
	// Resume is recorded in history as the resume used.
	Resume string
}

type Config struct {
	Keywords         []string
	Location         string
	Continuous       bool
	CycleDelay       time.Duration
	ExhaustedBackoff time.Duration
	MaxMalformed     int
	RankPage         bool
	RunID            string
}

// Observer receives orchestration events.
type Observer interface {
	ObserveQuota(platform string, s quota.State)
	ObserveCycle()
	ObserveAbandoned(platform, reason string)
}

type Deps struct {
	Quota      quota.Store
	Limiter    *quota.Limiter
	Retry      *retry.Engine
	Validator  *filtering.Validator
	Filter     *filtering.Config
	Exclusions *filtering.Exclusions
	Tracker    *history.Tracker
	Observer   Observer
	Logger     *zap.Logger
	// Sleep waits for d unless ctx is done. Defaults to utils.WaitFor.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Summary describes a finished run.
type Summary struct {
	Cycles int
	Stats  history.Stats
}

type session struct {
	Platform
	name  string
	state quota.State
	// dirty is set while the latest state is not persisted.
	dirty bool
}

type Orchestrator struct {
	cfg      Config
	deps     Deps
	logger   *zap.Logger
	sessions []*session

	state   State
	last    int
	current int
	visited map[int]bool
	cycle   int
	started bool
	counts  history.Counts
}

func New(cfg Config, deps Deps, platforms []Platform) (*Orchestrator, error) {
	if len(platforms) == 0 {
		return nil, errors.New("no platforms configured")
	}
	if len(cfg.Keywords) == 0 {
		return nil, errors.New("no search keywords configured")
	}
	if deps.Quota == nil || deps.Limiter == nil || deps.Retry == nil ||
		deps.Validator == nil || deps.Exclusions == nil || deps.Tracker == nil {
		return nil, errors.New("orchestrator dependencies are incomplete")
	}

	if cfg.CycleDelay <= 0 {
		cfg.CycleDelay = DefaultCycleDelay
	}
	if cfg.ExhaustedBackoff <= 0 {
		cfg.ExhaustedBackoff = DefaultExhaustedBackoff
	}
	if cfg.MaxMalformed <= 0 {
		cfg.MaxMalformed = DefaultMaxMalformed
	}
	if deps.Sleep == nil {
		deps.Sleep = utils.WaitFor
	}
	if deps.Filter == nil {
		deps.Filter = &filtering.Config{CurrentExperience: filtering.ExperienceUnset, Weights: filtering.DefaultWeights()}
	}

	seen := make(map[string]bool, len(platforms))
	sessions := make([]*session, 0, len(platforms))
	for _, p := range platforms {
		if p.Adapter == nil {
			return nil, errors.New("platform without adapter")
		}
		name := p.Adapter.Name()
		if seen[name] {
			return nil, fmt.Errorf("platform %q configured twice", name)
		}
		if p.Limits.Daily <= 0 {
			return nil, fmt.Errorf("platform %q: daily limit must be positive", name)
		}
		seen[name] = true
		sessions = append(sessions, &session{Platform: p, name: name})
	}

	return &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		logger:   logger.OrNop(deps.Logger),
		sessions: sessions,
		state:    Idle,
		last:     -1,
		current:  -1,
		visited:  make(map[int]bool),
	}, nil
}

// State returns the current state.
func (o *Orchestrator) State() State { return o.state }

// Summary returns the cycle count and statistics of the run so far.
func (o *Orchestrator) Summary() Summary {
	return Summary{Cycles: o.cycle, Stats: o.deps.Tracker.Aggregate()}
}

// Run drives the state machine until Terminal. Cancelling ctx stops the
// run at the next loop boundary; the action in flight completes first.
// A nil error means Terminal was reached and all state was persisted.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.prepare(ctx)

	next := SelectingPlatform
	for next != Terminal {
		o.transition(next)
		switch next {
		case SelectingPlatform:
			next = o.selectPlatform(ctx)
		case RunningPlatform:
			next = o.runPlatform(ctx)
		case Cooling:
			next = o.cool(ctx)
		default:
			next = Terminal
		}
	}
	o.transition(Terminal)

	return o.terminate(ctx)
}

func (o *Orchestrator) transition(to State) {
	if o.state == to {
		return
	}
	o.logger.Debug("state transition", zap.Stringer("from", o.state), zap.Stringer("to", to))
	o.state = to
}

// prepare loads quota state and merges previous history into the exclusions.
func (o *Orchestrator) prepare(ctx context.Context) {
	for _, s := range o.sessions {
		s.state = o.deps.Limiter.ResetIfNeeded(o.deps.Quota.Load(ctx, s.name))
		o.observeQuota(s)
		daily, weekly := o.deps.Limiter.Remaining(s.state, s.Limits)
		o.logger.Info("platform loaded",
			zap.String("platform", s.name),
			zap.Int("daily_count", s.state.DailyCount),
			zap.Int("weekly_count", s.state.WeeklyCount),
			zap.Int("daily_remaining", daily),
			zap.Int("weekly_remaining", weekly),
		)
	}
	o.deps.Exclusions.Merge(o.deps.Tracker.Baseline(ctx))
	applied, _, _ := o.deps.Exclusions.Len()
	o.logger.Info("exclusions restored from history", zap.Int("applied", applied))
}

// selectPlatform picks the next unvisited eligible platform in rotation
// order, starting just after the last used one.
func (o *Orchestrator) selectPlatform(ctx context.Context) State {
	if ctx.Err() != nil {
		return Terminal
	}
	if !o.started {
		o.started = true
		o.cycle++
		o.counts = history.Counts{}
		clear(o.visited)
		o.logger.Info("cycle started", zap.Int("cycle", o.cycle))
	}

	n := len(o.sessions)
	for i := 1; i <= n; i++ {
		idx := (o.last + i) % n
		if o.visited[idx] {
			continue
		}
		s := o.sessions[idx]
		s.state = o.deps.Limiter.ResetIfNeeded(s.state)
		if v := o.deps.Limiter.Check(s.state, s.Limits); v.Exhausted() {
			o.logger.Debug("platform not eligible", zap.String("platform", s.name), zap.Stringer("reason", v.Reason))
			continue
		}

		o.visited[idx] = true
		o.current = idx
		o.last = idx
		return RunningPlatform
	}

	if len(o.visited) > 0 {
		return Cooling
	}

	if !o.cfg.Continuous {
		o.logger.Info("no platform has quota left", zap.String("reason", "all platforms exhausted"))
		o.finishCycle()
		return Terminal
	}

	o.logger.Info("all platforms exhausted, waiting", zap.Duration("backoff", o.cfg.ExhaustedBackoff))
	if err := o.deps.Sleep(ctx, o.cfg.ExhaustedBackoff); err != nil {
		return Terminal
	}
	return SelectingPlatform
}

func (o *Orchestrator) cool(ctx context.Context) State {
	o.finishCycle()

	if !o.cfg.Continuous || ctx.Err() != nil {
		return Terminal
	}

	o.logger.Info("cooling down before next cycle", zap.Duration("delay", o.cfg.CycleDelay))
	if err := o.deps.Sleep(ctx, o.cfg.CycleDelay); err != nil {
		return Terminal
	}
	return SelectingPlatform
}

func (o *Orchestrator) finishCycle() {
	if !o.started {
		return
	}
	o.started = false
	o.logger.Info("cycle finished",
		zap.Int("cycle", o.cycle),
		zap.Int("platforms", len(o.visited)),
		zap.Int("applied", o.counts.Applied),
		zap.Int("failed", o.counts.Failed),
		zap.Int("skipped", o.counts.Skipped),
	)
	if o.deps.Observer != nil {
		o.deps.Observer.ObserveCycle()
	}
}

func (o *Orchestrator) observeQuota(s *session) {
	if o.deps.Observer != nil {
		o.deps.Observer.ObserveQuota(s.name, s.state)
	}
}
