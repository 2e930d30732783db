package filtering

import (
	"strings"

	"github.com/spigell/job-rotator/internal/platform"
)

// Score weighs title, location, work style and experience fit into [0,1].
// It is used for ranking only.
func Score(c *platform.Candidate, cfg *Config) float64 {
	if c == nil || cfg == nil {
		return 0
	}
	w := cfg.Weights
	var score float64
	if titleMatches(c.Title, cfg.PreferredTitles, cfg.ExcludedTitles) {
		score += w.Title
	}
	if preferenceMatches(c.Location, cfg.PreferredLocations) {
		score += w.Location
	}
	if preferenceMatches(c.WorkStyle, cfg.PreferredWorkStyles) {
		score += w.WorkStyle
	}
	if experienceFits(c, cfg) {
		score += w.Experience
	}
	return clamp(score)
}

func titleMatches(title string, preferred, excluded []string) bool {
	if _, bad := findTerm(title, excluded); bad {
		return false
	}
	if len(preferred) == 0 {
		return true
	}
	_, ok := findTerm(title, preferred)
	return ok
}

func preferenceMatches(value string, preferred []string) bool {
	if len(preferred) == 0 {
		return true
	}
	if strings.TrimSpace(value) == "" {
		return false
	}
	_, ok := findTerm(value, preferred)
	return ok
}

func experienceFits(c *platform.Candidate, cfg *Config) bool {
	years, enabled := cfg.EffectiveExperience()
	if !enabled || c.ExperienceRequired == nil {
		return true
	}
	return *c.ExperienceRequired <= years
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
