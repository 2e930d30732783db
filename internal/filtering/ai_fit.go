package filtering

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/ai"
	"github.com/spigell/job-rotator/internal/logger"
	"github.com/spigell/job-rotator/internal/platform"
)

const RuleAIFit = "ai_fit"

// AIConfig stores AI-related configuration used by the AI rule.
type AIConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Provider        string        `mapstructure:"provider"`
	MinimumFitScore float64       `mapstructure:"minimum-fit-score"`
	ProfileFile     string        `mapstructure:"profile-file"`
	Gemini          *GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig stores Gemini provider configuration.
type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

// Validate checks the settings the AI rule needs when enabled.
func (c *AIConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if p := strings.TrimSpace(c.Provider); p != "" && p != "gemini" {
		return fmt.Errorf("unsupported ai provider %q", c.Provider)
	}
	if c.Gemini == nil {
		return fmt.Errorf("gemini configuration is required when ai filter is enabled")
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		return fmt.Errorf("gemini model is required when ai filter is enabled")
	}
	return nil
}

// aiFitRule asks the matcher about each candidate. Evaluation errors do
// not reject the candidate.
type aiFitRule struct {
	base
	matcher ai.Matcher
	profile string
	config  *AIConfig
	logger  *zap.Logger

	mu       sync.Mutex
	assessed int
	approved int
	failed   int
}

// NewAIFit creates the AI-based screening rule.
func NewAIFit(matcher ai.Matcher, profile string, cfg *AIConfig, log *zap.Logger) Rule {
	r := &aiFitRule{
		matcher: matcher,
		profile: profile,
		config:  cfg,
		logger:  logger.OrNop(log),
	}
	if matcher == nil {
		r.Disable("ai matcher is not configured")
	}
	return r
}

func (r *aiFitRule) Name() string { return RuleAIFit }

func (r *aiFitRule) Check(ctx context.Context, c *platform.Candidate, _ *Exclusions) string {
	fields := logger.CandidateFields(c.Platform, c.ID, c.Company)

	assessment, err := r.matcher.Evaluate(ctx, r.profile, c)
	if err != nil || assessment == nil {
		r.mu.Lock()
		r.failed++
		r.mu.Unlock()
		r.logger.Warn("AI evaluation failed", append(fields, zap.Error(err))...)
		return ""
	}

	r.mu.Lock()
	r.assessed++
	if assessment.Fit {
		r.approved++
	}
	r.mu.Unlock()

	if !assessment.Fit {
		reason := strings.TrimSpace(assessment.Reason)
		if reason == "" {
			reason = fmt.Sprintf("score %.2f", assessment.Score)
		}
		return "ai: " + reason
	}

	r.logger.Info("candidate approved by AI", append(fields, zap.Float64("ai_score", assessment.Score))...)
	if msg := strings.TrimSpace(assessment.Message); msg != "" {
		c.CoverLetter = msg
	}
	return ""
}

func (r *aiFitRule) Status() Status {
	r.mu.Lock()
	details := map[string]string{
		"assessed": itoa(r.assessed),
		"approved": itoa(r.approved),
		"failed":   itoa(r.failed),
	}
	r.mu.Unlock()
	if r.config != nil {
		details["minimum_fit_score"] = fmt.Sprintf("%.2f", r.config.MinimumFitScore)
		if r.config.Gemini != nil {
			details["model"] = r.config.Gemini.Model
		}
	}
	return Status{Name: r.Name(), Enabled: r.IsEnabled(), Reason: r.reason, Details: details}
}
