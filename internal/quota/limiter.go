package quota

import (
	"fmt"
	"time"
)

// DefaultCooldown is the minimum gap between two actions on one platform.
const DefaultCooldown = 30 * time.Second

// Reason names what blocks a platform from acting.
type Reason int

const (
	Allowed Reason = iota
	DailyLimit
	WeeklyLimit
	Cooldown
)

func (r Reason) String() string {
	switch r {
	case Allowed:
		return "allowed"
	case DailyLimit:
		return "daily limit reached"
	case WeeklyLimit:
		return "weekly limit reached"
	case Cooldown:
		return "cooling down"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Verdict is the result of a quota check.
type Verdict struct {
	Reason Reason
	// Wait is the remaining cooldown when Reason is Cooldown.
	Wait time.Duration
}

func (v Verdict) Allowed() bool { return v.Reason == Allowed }

// Exhausted reports whether the platform is blocked by a quota rather than
// by the cooldown.
func (v Verdict) Exhausted() bool {
	return v.Reason == DailyLimit || v.Reason == WeeklyLimit
}

// Limiter applies reset, quota and cooldown rules to a State. It holds no
// per-platform state itself; callers thread State values through it.
//
// Resets are computed lazily from the clock on every check, so the result
// does not depend on how long the process has been idle.
type Limiter struct {
	cooldown time.Duration
	now      func() time.Time
}

// NewLimiter returns a limiter with the given cooldown. now defaults to time.Now.
func NewLimiter(cooldown time.Duration, now func() time.Time) *Limiter {
	if cooldown < 0 {
		cooldown = 0
	}
	return &Limiter{cooldown: cooldown, now: clockOrNow(now)}
}

func (l *Limiter) Now() time.Time { return l.now() }

func (l *Limiter) Cooldown() time.Duration { return l.cooldown }

// ResetIfNeeded zeroes the daily counter when the calendar day has changed
// since LastResetDate, and the weekly counter when a week start (Monday)
// lies after LastResetDate. Calling it again on the same day is a no-op.
func (l *Limiter) ResetIfNeeded(s State) State {
	now := l.now()
	today := dateOf(now)

	if s.LastResetDate.IsZero() {
		s.LastResetDate = today
		return s
	}

	last := dateOf(s.LastResetDate.In(now.Location()))
	if !today.After(last) {
		return s
	}

	s.DailyCount = 0
	if weekStart(today).After(last) {
		s.WeeklyCount = 0
	}
	s.LastResetDate = today

	return s
}

// Check evaluates s against lim after applying any pending reset.
func (l *Limiter) Check(s State, lim Limits) Verdict {
	s = l.ResetIfNeeded(s)

	if s.DailyCount >= lim.Daily {
		return Verdict{Reason: DailyLimit}
	}
	if lim.Weekly > 0 && s.WeeklyCount >= lim.Weekly {
		return Verdict{Reason: WeeklyLimit}
	}
	if wait := l.WaitTimeRemaining(s); wait > 0 {
		return Verdict{Reason: Cooldown, Wait: wait}
	}

	return Verdict{Reason: Allowed}
}

// CanAct reports whether an action may be performed right now.
func (l *Limiter) CanAct(s State, lim Limits) bool {
	return l.Check(s, lim).Allowed()
}

// Eligible reports whether the platform has quota left, ignoring the cooldown.
func (l *Limiter) Eligible(s State, lim Limits) bool {
	return !l.Check(s, lim).Exhausted()
}

// WaitTimeRemaining returns how long until the cooldown since the last
// action has elapsed. A last action in the future (clock moved backwards)
// is treated as having just happened.
func (l *Limiter) WaitTimeRemaining(s State) time.Duration {
	if s.LastActionTime.IsZero() || l.cooldown == 0 {
		return 0
	}

	elapsed := l.now().Sub(s.LastActionTime)
	if elapsed < 0 {
		return l.cooldown
	}
	if elapsed >= l.cooldown {
		return 0
	}
	return l.cooldown - elapsed
}

// Record accounts for one successful action. It must be called once per
// action that succeeded, never per attempt.
func (l *Limiter) Record(s State) State {
	s.DailyCount++
	s.WeeklyCount++
	s.LastActionTime = l.now()
	return s
}

// Remaining returns the daily and weekly allowance left. weekly is -1 when
// there is no weekly cap.
func (l *Limiter) Remaining(s State, lim Limits) (daily, weekly int) {
	s = l.ResetIfNeeded(s)

	daily = max(0, lim.Daily-s.DailyCount)
	weekly = -1
	if lim.Weekly > 0 {
		weekly = max(0, lim.Weekly-s.WeeklyCount)
	}
	return daily, weekly
}
