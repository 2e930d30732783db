// Package metrics exposes run instrumentation to Prometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/spigell/job-rotator/internal/platform"
	"github.com/spigell/job-rotator/internal/quota"
	"github.com/spigell/job-rotator/internal/retry"
)

const namespace = "job_rotator"

// Metrics holds the collectors of one process on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Outcomes tracks candidate outcomes per platform
	Outcomes *prometheus.CounterVec
	// Attempts tracks retry engine invocations per action and strategy
	Attempts *prometheus.CounterVec
	// DailyCount tracks the persisted daily counter per platform
	DailyCount *prometheus.GaugeVec
	// WeeklyCount tracks the persisted weekly counter per platform
	WeeklyCount *prometheus.GaugeVec
	// Cycles tracks completed orchestrator cycles
	Cycles prometheus.Counter
	// Abandoned tracks platforms abandoned for a cycle
	Abandoned *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outcomes_total",
				Help:      "Total number of candidate outcomes",
			},
			[]string{"platform", "outcome"},
		),
		Attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_attempts_total",
				Help:      "Total number of external action invocations",
			},
			[]string{"action", "strategy", "result"},
		),
		DailyCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "quota_daily_count",
				Help:      "Actions recorded today per platform",
			},
			[]string{"platform"},
		),
		WeeklyCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "quota_weekly_count",
				Help:      "Actions recorded this week per platform",
			},
			[]string{"platform"},
		),
		Cycles: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Total number of completed cycles",
			},
		),
		Abandoned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "platforms_abandoned_total",
				Help:      "Total number of platforms abandoned for a cycle",
			},
			[]string{"platform", "reason"},
		),
	}
}

func (m *Metrics) ObserveOutcome(platformName string, outcome platform.Outcome) {
	m.Outcomes.WithLabelValues(platformName, string(outcome)).Inc()
}

func (m *Metrics) ObserveAttempt(action string, s retry.Strategy, err error) {
	m.Attempts.WithLabelValues(action, s.String(), attemptResult(err)).Inc()
}

func (m *Metrics) ObserveQuota(platformName string, s quota.State) {
	m.DailyCount.WithLabelValues(platformName).Set(float64(s.DailyCount))
	m.WeeklyCount.WithLabelValues(platformName).Set(float64(s.WeeklyCount))
}

func (m *Metrics) ObserveCycle() {
	m.Cycles.Inc()
}

func (m *Metrics) ObserveAbandoned(platformName, reason string) {
	m.Abandoned.WithLabelValues(platformName, reason).Inc()
}

func attemptResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, retry.ErrUnsupportedStrategy):
		return "unsupported"
	case retry.IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}
