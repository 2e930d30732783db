// Package retry wraps fragile actions against external systems with a
// bounded retry protocol: exponential backoff on transient failures and
// alternative interaction strategies on the final attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	goretry "github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/logger"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second

	maxAlternatives = 2
)

// Strategy selects how an interaction is issued.
type Strategy int

const (
	// Direct is the ordinary interaction and always the primary strategy.
	Direct Strategy = iota
	// Pointer simulates pointer movement onto the target before interacting.
	Pointer
	// Forced issues the interaction at the lowest level available.
	Forced
)

func (s Strategy) String() string {
	switch s {
	case Direct:
		return "direct"
	case Pointer:
		return "pointer"
	case Forced:
		return "forced"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// DefaultAlternatives are tried in order on the final attempt.
var DefaultAlternatives = []Strategy{Pointer, Forced}

// Kind tells the engine whether re-running the primary strategy is safe.
type Kind int

const (
	// Idempotent actions are re-issued with backoff up to MaxAttempts.
	Idempotent Kind = iota
	// Submit actions are issued once; a transient failure only falls back to
	// alternative strategies on the same element.
	Submit
)

// Action is a single logical interaction.
type Action struct {
	Name         string
	Kind         Kind
	Do           func(ctx context.Context, s Strategy) error
	Alternatives []Strategy
}

// Observer is notified about every invocation of an action.
type Observer interface {
	ObserveAttempt(action string, s Strategy, err error)
}

// Config controls the retry budget.
type Config struct {
	MaxAttempts int           `mapstructure:"max-attempts"`
	BaseDelay   time.Duration `mapstructure:"base-delay"`
}

// Engine performs actions with the configured retry budget.
type Engine struct {
	maxAttempts int
	baseDelay   time.Duration
	observer    Observer
	logger      *zap.Logger
}

// New returns an engine. Non-positive values fall back to the defaults.
func New(cfg Config, observer Observer, log *zap.Logger) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	return &Engine{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		observer:    observer,
		logger:      logger.OrNop(log),
	}
}

// Perform runs the action. It returns nil on success, the failure itself
// when it is not transient (including one raised by an alternative
// strategy), and an error wrapping ErrExhausted when every primary attempt
// and alternative strategy failed.
//
// The primary strategy waits baseDelay*2^i after the i-th transient
// failure. On the final attempt up to two alternative strategies are tried
// without further waiting.
func (e *Engine) Perform(ctx context.Context, a Action) error {
	attempts := e.maxAttempts
	if a.Kind == Submit {
		attempts = 1
	}

	backoff := goretry.WithMaxRetries(uint64(attempts-1), goretry.NewExponential(e.baseDelay))

	attempt := 0
	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		err := e.invoke(ctx, a, Direct)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}

		if attempt < attempts {
			e.logger.Debug("transient failure, retrying",
				zap.String("action", a.Name),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Error(err),
			)
			return goretry.RetryableError(err)
		}

		altErr := e.alternatives(ctx, a)
		if altErr == nil {
			return nil
		}
		if !IsTransient(altErr) && !errors.Is(altErr, ErrUnsupportedStrategy) {
			return altErr
		}

		return fmt.Errorf("%w: %s after %d attempts: %w", ErrExhausted, a.Name, attempts, err)
	})
}

func (e *Engine) alternatives(ctx context.Context, a Action) error {
	strategies := a.Alternatives
	if strategies == nil {
		strategies = DefaultAlternatives
	}

	lastErr := ErrUnsupportedStrategy
	tried := 0
	for _, s := range strategies {
		if s == Direct {
			continue
		}
		if tried == maxAlternatives {
			break
		}
		tried++

		err := e.invoke(ctx, a, s)
		if err == nil {
			e.logger.Debug("alternative strategy succeeded",
				zap.String("action", a.Name),
				zap.Stringer("strategy", s),
			)
			return nil
		}
		if !IsTransient(err) && !errors.Is(err, ErrUnsupportedStrategy) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (e *Engine) invoke(ctx context.Context, a Action, s Strategy) error {
	err := a.Do(ctx, s)
	if e.observer != nil {
		e.observer.ObserveAttempt(a.Name, s, err)
	}
	return err
}
