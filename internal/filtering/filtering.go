package filtering

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/logger"
	"github.com/spigell/job-rotator/internal/platform"
)

// ExperienceUnset disables the experience rule.
const ExperienceUnset = -1

// Rule represents a single screening step applied to a candidate.
type Rule interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	// Check returns a non-empty reason when the candidate must be rejected.
	Check(ctx context.Context, c *platform.Candidate, ex *Exclusions) string
}

// Config contains the settings consumed by the rules and by Score.
type Config struct {
	BadWords            []string `mapstructure:"bad-words"`
	CompanyBadWords     []string `mapstructure:"company-bad-words"`
	CompanyGoodWords    []string `mapstructure:"company-good-words"`
	AllowClearance      bool     `mapstructure:"allow-clearance"`
	CurrentExperience   int      `mapstructure:"current-experience"`
	AdvancedDegree      bool     `mapstructure:"advanced-degree"`
	PreferredTitles     []string `mapstructure:"preferred-titles"`
	ExcludedTitles      []string `mapstructure:"excluded-titles"`
	PreferredLocations  []string `mapstructure:"preferred-locations"`
	PreferredWorkStyles []string `mapstructure:"preferred-work-styles"`
	Weights             Weights  `mapstructure:"weights"`

	// DisabledRules names rules switched off for the run. The dedup rule
	// cannot be disabled.
	DisabledRules []string `mapstructure:"disabled-rules"`
}

var disableable = map[string]bool{
	RuleBlacklist:   true,
	RuleCompany:     true,
	RuleDescription: true,
	RuleClearance:   true,
	RuleExperience:  true,
	RuleAIFit:       true,
}

// ValidateDisabledRules reports names in DisabledRules that are unknown or
// cannot be disabled.
func (c *Config) ValidateDisabledRules() error {
	for _, name := range c.DisabledRules {
		if !disableable[name] {
			return fmt.Errorf("rule %q cannot be disabled", name)
		}
	}
	return nil
}

// Weights are the Score contributions of each sub-check.
type Weights struct {
	Title      float64 `mapstructure:"title"`
	Location   float64 `mapstructure:"location"`
	WorkStyle  float64 `mapstructure:"work-style"`
	Experience float64 `mapstructure:"experience"`
}

// DefaultWeights returns the stock score weights.
func DefaultWeights() Weights {
	return Weights{Title: 0.3, Location: 0.2, WorkStyle: 0.2, Experience: 0.3}
}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"title": w.Title, "location": w.Location, "work-style": w.WorkStyle, "experience": w.Experience,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative", name)
		}
	}
	sum := w.Title + w.Location + w.WorkStyle + w.Experience
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// EffectiveExperience is the experience compared against requirements.
// It returns false when the experience rule is disabled.
func (c *Config) EffectiveExperience() (int, bool) {
	if c == nil || c.CurrentExperience <= ExperienceUnset {
		return 0, false
	}
	years := c.CurrentExperience
	if c.AdvancedDegree {
		years += 2
	}
	return years, true
}

// Verdict is the result of validating one candidate.
type Verdict struct {
	Accept bool
	Rule   string
	Reason string
}

// Step counts what a rule has seen.
type Step struct {
	Checked  int
	Rejected int
}

// Status represents runtime information about a rule.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
	Step    Step
}

// statusProvider is implemented by rules that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Validator runs rules in order and stops at the first rejection.
type Validator struct {
	rules  []Rule
	logger *zap.Logger

	mu    sync.Mutex
	steps map[string]*Step
}

// NewValidator returns a validator with the default rule order followed by
// any extra rules.
func NewValidator(cfg *Config, log *zap.Logger, extra ...Rule) *Validator {
	if cfg == nil {
		cfg = &Config{CurrentExperience: ExperienceUnset}
	}
	rules := append(DefaultRules(cfg), extra...)
	v := NewValidatorWithRules(log, rules...)
	for _, name := range cfg.DisabledRules {
		v.DisableByName(name, "disabled by configuration")
	}
	return v
}

func NewValidatorWithRules(log *zap.Logger, rules ...Rule) *Validator {
	steps := make(map[string]*Step, len(rules))
	for _, r := range rules {
		steps[r.Name()] = &Step{}
	}
	return &Validator{rules: rules, logger: logger.OrNop(log), steps: steps}
}

// DisableByName marks a rule with the provided name as disabled while keeping it in the list.
func (v *Validator) DisableByName(name, reason string) {
	for _, r := range v.rules {
		if r.Name() == name {
			r.Disable(reason)
		}
	}
}

// Validate evaluates the candidate against every enabled rule. Rejections
// are added to the rejected set so the candidate is not reconsidered.
func (v *Validator) Validate(ctx context.Context, c *platform.Candidate, ex *Exclusions) Verdict {
	for _, r := range v.rules {
		if !r.IsEnabled() {
			continue
		}

		reason := r.Check(ctx, c, ex)
		v.count(r.Name(), reason != "")
		if reason == "" {
			continue
		}

		ex.MarkRejected(c.Platform, c.ID)
		v.logger.Info("candidate rejected",
			append(logger.CandidateFields(c.Platform, c.ID, c.Company),
				zap.String("rule", r.Name()),
				zap.String("reason", reason),
			)...,
		)
		return Verdict{Accept: false, Rule: r.Name(), Reason: reason}
	}
	return Verdict{Accept: true}
}

// Commit records the final outcome of an accepted candidate.
func (v *Validator) Commit(ex *Exclusions, c *platform.Candidate, outcome platform.Outcome) {
	if outcome == platform.Applied {
		ex.MarkApplied(c.Platform, c.ID)
		return
	}
	ex.MarkRejected(c.Platform, c.ID)
}

func (v *Validator) count(name string, rejected bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	s, ok := v.steps[name]
	if !ok {
		s = &Step{}
		v.steps[name] = s
	}
	s.Checked++
	if rejected {
		s.Rejected++
	}
}

// Describe returns status entries for the configured rules.
func (v *Validator) Describe() []Status {
	v.mu.Lock()
	defer v.mu.Unlock()

	statuses := make([]Status, 0, len(v.rules))
	for _, r := range v.rules {
		st := Status{Name: r.Name(), Enabled: r.IsEnabled()}
		if d, ok := r.(interface{ DisabledReason() string }); ok {
			st.Reason = d.DisabledReason()
		}
		if reporter, ok := r.(statusProvider); ok {
			st = reporter.Status()
		}
		if s, ok := v.steps[r.Name()]; ok {
			st.Step = *s
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// LogSummary writes one line per rule with its counters.
func (v *Validator) LogSummary() {
	for _, st := range v.Describe() {
		if !st.Enabled {
			v.logger.Info("rule disabled", zap.String("name", st.Name), zap.String("reason", st.Reason))
			continue
		}
		fields := []zap.Field{
			zap.String("name", st.Name),
			zap.Int("checked", st.Step.Checked),
			zap.Int("rejected", st.Step.Rejected),
		}
		if len(st.Details) > 0 {
			fields = append(fields, zap.Any("details", st.Details))
		}
		v.logger.Info("rule summary", fields...)
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
