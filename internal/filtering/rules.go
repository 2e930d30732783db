package filtering

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/job-rotator/internal/platform"
)

const (
	RuleDedup       = "dedup"
	RuleBlacklist   = "company_blacklist"
	RuleCompany     = "company_screening"
	RuleDescription = "description_screening"
	RuleClearance   = "clearance"
	RuleExperience  = "experience"

	ReasonProcessed   = "already processed"
	ReasonBlacklisted = "company blacklisted"
)

// ClearanceTerms are matched against descriptions unless clearance work is allowed.
var ClearanceTerms = []string{"clearance", "polygraph", "secret"}

// DefaultRules returns the built-in rules in evaluation order.
func DefaultRules(cfg *Config) []Rule {
	return []Rule{
		&dedupRule{},
		&blacklistRule{},
		&companyRule{bad: cfg.CompanyBadWords, good: cfg.CompanyGoodWords},
		&descriptionRule{bad: cfg.BadWords},
		&clearanceRule{base: base{disabled: cfg.AllowClearance, reason: disabledReason(cfg.AllowClearance, "clearance allowed")}},
		newExperienceRule(cfg),
	}
}

func disabledReason(disabled bool, reason string) string {
	if disabled {
		return reason
	}
	return ""
}

type base struct {
	disabled bool
	reason   string
}

func (b *base) Disable(reason string) {
	b.disabled = true
	b.reason = reason
}

func (b *base) IsEnabled() bool { return !b.disabled }

func (b *base) DisabledReason() string { return b.reason }

// findTerm returns the first term contained in text, case-insensitively.
func findTerm(text string, terms []string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		if strings.Contains(lower, t) {
			return term, true
		}
	}
	return "", false
}

type dedupRule struct{ base }

func (r *dedupRule) Name() string { return RuleDedup }

func (r *dedupRule) Check(_ context.Context, c *platform.Candidate, ex *Exclusions) string {
	if ex.Processed(c.Platform, c.ID) {
		return ReasonProcessed
	}
	return ""
}

type blacklistRule struct{ base }

func (r *blacklistRule) Name() string { return RuleBlacklist }

func (r *blacklistRule) Check(_ context.Context, c *platform.Candidate, ex *Exclusions) string {
	if ex.Blacklisted(c.Company) {
		return ReasonBlacklisted
	}
	return ""
}

// companyRule rejects on a bad term in the company info unless a good term
// is present too. Rejected companies are blacklisted for the rest of the run.
type companyRule struct {
	base
	bad  []string
	good []string
}

func (r *companyRule) Name() string { return RuleCompany }

func (r *companyRule) Check(_ context.Context, c *platform.Candidate, ex *Exclusions) string {
	term, found := findTerm(c.CompanyInfo, r.bad)
	if !found {
		return ""
	}
	if _, override := findTerm(c.CompanyInfo, r.good); override {
		return ""
	}
	ex.Blacklist(c.Company)
	return fmt.Sprintf("company info contains %q", term)
}

func (r *companyRule) Status() Status {
	return Status{
		Name:    r.Name(),
		Enabled: r.IsEnabled(),
		Reason:  r.reason,
		Details: map[string]string{
			"bad_words":  strings.Join(r.bad, ","),
			"good_words": strings.Join(r.good, ","),
		},
	}
}

type descriptionRule struct {
	base
	bad []string
}

func (r *descriptionRule) Name() string { return RuleDescription }

func (r *descriptionRule) Check(_ context.Context, c *platform.Candidate, _ *Exclusions) string {
	if term, found := findTerm(c.Description, r.bad); found {
		return fmt.Sprintf("description contains %q", term)
	}
	return ""
}

type clearanceRule struct{ base }

func (r *clearanceRule) Name() string { return RuleClearance }

func (r *clearanceRule) Check(_ context.Context, c *platform.Candidate, _ *Exclusions) string {
	if term, found := findTerm(c.Description, ClearanceTerms); found {
		return fmt.Sprintf("security clearance required (%q)", term)
	}
	return ""
}

type experienceRule struct {
	base
	effective int
}

func newExperienceRule(cfg *Config) *experienceRule {
	years, ok := cfg.EffectiveExperience()
	r := &experienceRule{effective: years}
	if !ok {
		r.Disable("current experience is not set")
	}
	return r
}

func (r *experienceRule) Name() string { return RuleExperience }

func (r *experienceRule) Check(_ context.Context, c *platform.Candidate, _ *Exclusions) string {
	if c.ExperienceRequired == nil {
		return ""
	}
	if required := *c.ExperienceRequired; required > r.effective {
		return fmt.Sprintf("required experience %d years exceeds effective experience %d years", required, r.effective)
	}
	return ""
}

func (r *experienceRule) Status() Status {
	details := map[string]string{}
	if r.IsEnabled() {
		details["effective_experience"] = itoa(r.effective)
	}
	return Status{Name: r.Name(), Enabled: r.IsEnabled(), Reason: r.reason, Details: details}
}
