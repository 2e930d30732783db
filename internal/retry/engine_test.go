package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type invocation struct {
	strategy Strategy
	err      error
}

type recorder struct {
	calls []invocation
}

func (r *recorder) ObserveAttempt(_ string, s Strategy, err error) {
	r.calls = append(r.calls, invocation{strategy: s, err: err})
}

func (r *recorder) count(s Strategy) int {
	n := 0
	for _, c := range r.calls {
		if c.strategy == s {
			n++
		}
	}
	return n
}

func newTestEngine(obs Observer) *Engine {
	return New(Config{MaxAttempts: 3, BaseDelay: time.Millisecond}, obs, nil)
}

func TestPerformSucceedsFirstTry(t *testing.T) {
	obs := &recorder{}
	err := newTestEngine(obs).Perform(context.Background(), Action{
		Name: "click",
		Do:   func(context.Context, Strategy) error { return nil },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs.calls) != 1 {
		t.Fatalf("expected one invocation, got %d", len(obs.calls))
	}
}

func TestPerformRetriesTransientFailures(t *testing.T) {
	obs := &recorder{}
	calls := 0
	err := newTestEngine(obs).Perform(context.Background(), Action{
		Name: "click",
		Do: func(context.Context, Strategy) error {
			calls++
			if calls < 3 {
				return ErrStale
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.count(Direct) != 3 || obs.count(Pointer) != 0 {
		t.Fatalf("expected three direct attempts, got %+v", obs.calls)
	}
}

func TestPerformTerminates(t *testing.T) {
	obs := &recorder{}
	start := time.Now()

	err := newTestEngine(obs).Perform(context.Background(), Action{
		Name:         "click",
		Alternatives: []Strategy{Pointer, Forced, Pointer, Forced},
		Do: func(context.Context, Strategy) error {
			return ErrIntercepted
		},
	})

	if !errors.Is(err, ErrExhausted) || !errors.Is(err, ErrIntercepted) {
		t.Fatalf("expected exhausted error wrapping the cause, got %v", err)
	}
	if obs.count(Direct) != 3 {
		t.Fatalf("expected 3 primary attempts, got %d", obs.count(Direct))
	}
	if alt := obs.count(Pointer) + obs.count(Forced); alt != 2 {
		t.Fatalf("expected at most 2 alternatives, got %d", alt)
	}
	// Waits of 1ms and 2ms between the primary attempts.
	if elapsed := time.Since(start); elapsed < 3*time.Millisecond {
		t.Fatalf("expected exponential backoff waits, finished in %s", elapsed)
	}
}

func TestAlternativesOnlyOnFinalAttempt(t *testing.T) {
	obs := &recorder{}
	_ = newTestEngine(obs).Perform(context.Background(), Action{
		Name: "click",
		Do:   func(context.Context, Strategy) error { return ErrUnavailable },
	})

	for i, c := range obs.calls[:3] {
		if c.strategy != Direct {
			t.Fatalf("invocation %d used %s before the primary attempts were spent", i, c.strategy)
		}
	}
	if obs.calls[3].strategy != Pointer || obs.calls[4].strategy != Forced {
		t.Fatalf("unexpected alternative order: %+v", obs.calls[3:])
	}
}

func TestPerformSucceedsViaAlternative(t *testing.T) {
	obs := &recorder{}
	err := newTestEngine(obs).Perform(context.Background(), Action{
		Name: "click",
		Do: func(_ context.Context, s Strategy) error {
			if s == Forced {
				return nil
			}
			return ErrIntercepted
		},
	})
	if err != nil {
		t.Fatalf("expected forced strategy to succeed, got %v", err)
	}
	if len(obs.calls) != 5 {
		t.Fatalf("expected 5 invocations, got %d", len(obs.calls))
	}
}

func TestNonTransientShortCircuits(t *testing.T) {
	obs := &recorder{}
	absent := fmt.Errorf("easy apply button: %w", ErrNotFound)

	err := newTestEngine(obs).Perform(context.Background(), Action{
		Name: "click",
		Do:   func(context.Context, Strategy) error { return absent },
	})

	if !errors.Is(err, ErrNotFound) || errors.Is(err, ErrExhausted) {
		t.Fatalf("expected the not-found error as-is, got %v", err)
	}
	if len(obs.calls) != 1 {
		t.Fatalf("expected a single invocation, got %d", len(obs.calls))
	}
}

func TestSubmitIsNotReissued(t *testing.T) {
	obs := &recorder{}
	err := newTestEngine(obs).Perform(context.Background(), Action{
		Name: "submit",
		Kind: Submit,
		Do:   func(context.Context, Strategy) error { return ErrIntercepted },
	})

	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if obs.count(Direct) != 1 {
		t.Fatalf("submission must be issued once with the primary strategy, got %d", obs.count(Direct))
	}
	if obs.count(Pointer) != 1 || obs.count(Forced) != 1 {
		t.Fatalf("expected both alternatives to be tried, got %+v", obs.calls)
	}
}

func TestUnsupportedAlternatives(t *testing.T) {
	err := newTestEngine(nil).Perform(context.Background(), Action{
		Name: "submit",
		Kind: Submit,
		Do: func(_ context.Context, s Strategy) error {
			if s != Direct {
				return ErrUnsupportedStrategy
			}
			return MarkTransient(errors.New("503 service unavailable"))
		},
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
}

func TestPerformHonorsCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	engine := New(Config{MaxAttempts: 3, BaseDelay: time.Hour}, nil, nil)

	calls := 0
	err := engine.Perform(ctx, Action{
		Name: "click",
		Do: func(context.Context, Strategy) error {
			calls++
			cancel()
			return ErrStale
		},
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one attempt before cancellation, got %d", calls)
	}
}

type temporaryErr struct{}

func (temporaryErr) Error() string   { return "temporary" }
func (temporaryErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "stale", err: fmt.Errorf("apply: %w", ErrStale), want: true},
		{name: "intercepted", err: ErrIntercepted, want: true},
		{name: "unavailable", err: ErrUnavailable, want: true},
		{name: "marked", err: MarkTransient(errors.New("429")), want: true},
		{name: "temporary interface", err: temporaryErr{}, want: true},
		{name: "not found wins over marking", err: MarkTransient(ErrNotFound), want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsTransient(tt.err); got != tt.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestAlternativeNonTransientFailureStops(t *testing.T) {
	obs := &recorder{}
	limit := errors.New("daily limit reached")

	err := newTestEngine(obs).Perform(context.Background(), Action{
		Name: "act",
		Kind: Submit,
		Do: func(_ context.Context, s Strategy) error {
			if s == Direct {
				return ErrIntercepted
			}
			return fmt.Errorf("submit: %w", limit)
		},
	})

	if !errors.Is(err, limit) || errors.Is(err, ErrExhausted) {
		t.Fatalf("expected the alternative's failure as-is, got %v", err)
	}
	if obs.count(Pointer) != 1 || obs.count(Forced) != 0 {
		t.Fatalf("expected the engine to stop after the pointer strategy, got %+v", obs.calls)
	}
}
