// Package ai defines the fit screening contract implemented by AI providers.
package ai

import (
	"context"

	"github.com/spigell/job-rotator/internal/platform"
)

type FitAssessment struct {
	Fit     bool
	Score   float64
	Reason  string
	Message string
	Raw     string
}

// Matcher judges whether a candidate suits the applicant profile.
type Matcher interface {
	Evaluate(ctx context.Context, profile string, c *platform.Candidate) (*FitAssessment, error)
}
