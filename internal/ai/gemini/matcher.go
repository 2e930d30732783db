package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/ai"
	"github.com/spigell/job-rotator/internal/logger"
	"github.com/spigell/job-rotator/internal/platform"
	"github.com/spigell/job-rotator/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// PromptOverrides are operator supplied additions to the prompt template.
type PromptOverrides struct {
	ExtraCriteria    string `mapstructure:"extra-criteria"`
	DealBreakers     string `mapstructure:"deal-breakers"`
	Tone             string `mapstructure:"tone"`
	UserInstructions string `mapstructure:"user-instructions"`
}

type Matcher struct {
	generator contentGenerator
	minScore  float64
	logger    *zap.Logger
	maxLogLen int
	overrides PromptOverrides
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength     = 200
	defaultTone             = "Friendly"
	maxUserInstructionRunes = 500
	maxDescriptionRunes     = 6000
)

var _ ai.Matcher = (*Matcher)(nil)

func NewMatcher(generator contentGenerator, minScore float64, maxLogLength int, log *zap.Logger) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Matcher{
		generator: generator,
		minScore:  minScore,
		logger:    logger.OrNop(log),
		maxLogLen: maxLogLength,
	}
}

func (m *Matcher) SetPromptOverrides(o PromptOverrides) {
	m.overrides = o
}

// candidatePayload is what the model sees of a listing.
type candidatePayload struct {
	ID                 string `json:"id"`
	Platform           string `json:"platform"`
	Title              string `json:"title"`
	Company            string `json:"company"`
	Location           string `json:"location,omitempty"`
	WorkStyle          string `json:"workStyle,omitempty"`
	ExperienceRequired *int   `json:"experienceRequiredYears,omitempty"`
	Description        string `json:"description"`
	CompanyInfo        string `json:"companyInfo,omitempty"`
}

func (m *Matcher) Evaluate(ctx context.Context, profile string, c *platform.Candidate) (*ai.FitAssessment, error) {
	if strings.TrimSpace(profile) == "" {
		return nil, fmt.Errorf("applicant profile is required")
	}
	if c == nil {
		return nil, fmt.Errorf("candidate is required")
	}

	payload := candidatePayload{
		ID:                 c.ID,
		Platform:           c.Platform,
		Title:              c.Title,
		Company:            c.Company,
		Location:           c.Location,
		WorkStyle:          c.WorkStyle,
		ExperienceRequired: c.ExperienceRequired,
		Description:        truncateRunes(c.Description, maxDescriptionRunes),
		CompanyInfo:        truncateRunes(c.CompanyInfo, maxDescriptionRunes),
	}
	candidateJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal candidate payload: %w", err)
	}

	prompt := m.buildPrompt(strings.TrimSpace(profile), string(candidateJSON))
	fields := append(logger.CandidateFields(c.Platform, c.ID, c.Company), logger.AIFields("gemini", m.generator.Model())...)

	m.logger.Debug("gemini generate content request", append(fields,
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, m.maxLogLen)),
	)...)

	raw, err := m.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("gemini generate content response", append(fields,
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)...)

	assessment, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	if m.minScore > 0 && assessment.Score < m.minScore {
		m.logger.Debug("set fit to false by score threshold", append(fields,
			zap.Float64("score", assessment.Score),
			zap.Float64("threshold", m.minScore),
		)...)
		assessment.Fit = false
	}

	assessment.Raw = raw
	return assessment, nil
}

func (m *Matcher) buildPrompt(profile, candidateJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Profile:\n{{PROFILE}}\n\nListing:\n{{CANDIDATE_JSON}}\n\nJSON Response:"
	}

	tone := sanitizeLine(m.overrides.Tone)
	if tone == "" {
		tone = defaultTone
	}

	r := strings.NewReplacer(
		"{{EXTRA_CRITERIA}}", orNone(sanitizeLine(m.overrides.ExtraCriteria)),
		"{{DEAL_BREAKERS}}", orNone(sanitizeLine(m.overrides.DealBreakers)),
		"{{TONE}}", tone,
		"{{USER_INSTRUCTIONS}}", userInstructionsBlock(m.overrides.UserInstructions),
		"{{PROFILE}}", profile,
		"{{CANDIDATE_JSON}}", candidateJSON,
	)
	return r.Replace(template)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// sanitizeLine collapses whitespace and replaces square brackets so the
// value cannot open a new prompt section.
func sanitizeLine(s string) string {
	s = neutralizeBrackets(s)
	return strings.Join(strings.Fields(s), " ")
}

func neutralizeBrackets(s string) string {
	return strings.NewReplacer("[", "(", "]", ")").Replace(s)
}

func userInstructionsBlock(raw string) string {
	raw = truncateRunes(strings.TrimSpace(raw), maxUserInstructionRunes)
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = sanitizeLine(line)
		if line == "" {
			continue
		}
		lines = append(lines, "  - "+line)
	}
	if len(lines) == 0 {
		return "  - none"
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func parseResponse(raw string) (*ai.FitAssessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		score = 0
	}

	return &ai.FitAssessment{
		Fit:     coerceBool(data["fit"]),
		Score:   score,
		Reason:  coerceString(data["reason"]),
		Message: coerceString(data["message"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
