// Package platform defines the contract every job-site integration fulfils.
// The orchestration core depends on this package only and never inspects
// which concrete adapter it holds.
package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/job-rotator/internal/retry"
)

var (
	// ErrQuotaExceeded is the site's own "daily limit reached" signal.
	ErrQuotaExceeded = errors.New("platform quota exceeded")
	// ErrAuthentication means the credentials were rejected.
	ErrAuthentication = errors.New("authentication failed")
	// ErrMalformedCandidate means the adapter produced a candidate that
	// cannot be processed.
	ErrMalformedCandidate = errors.New("malformed candidate")
)

// Outcome is the terminal disposition of a candidate.
type Outcome string

const (
	Applied Outcome = "applied"
	Failed  Outcome = "failed"
	Skipped Outcome = "skipped"
)

func (o Outcome) Valid() bool {
	switch o {
	case Applied, Failed, Skipped:
		return true
	default:
		return false
	}
}

// Credentials are handed to Authenticate. Token is used by API based
// adapters, Username/Password by form based ones.
type Credentials struct {
	Username string
	Password string
	Token    string
}

func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.Token) == "" &&
		(strings.TrimSpace(c.Username) == "" || strings.TrimSpace(c.Password) == "")
}

// Candidate is a job listing discovered during a search.
type Candidate struct {
	ID        string
	Platform  string
	Title     string
	Company   string
	Location  string
	WorkStyle string

	// Filled by FetchDetails.
	Description string
	CompanyInfo string
	// ExperienceRequired is nil when the listing states no requirement.
	ExperienceRequired *int

	HRName       string
	HRLink       string
	DatePosted   string
	JobLink      string
	ExternalLink string

	Score float64
	// CoverLetter overrides the configured application message when set.
	CoverLetter string
}

// Validate checks the fields the core relies on.
func (c *Candidate) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil candidate", ErrMalformedCandidate)
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrMalformedCandidate)
	}
	if c.ExperienceRequired != nil && *c.ExperienceRequired < 0 {
		return fmt.Errorf("%w: negative experience requirement for %s", ErrMalformedCandidate, c.ID)
	}
	return nil
}

// Adapter is the capability set of one platform integration.
//
// ListCandidates returns the current page only; calling it again re-reads
// the same page. Act may return an error wrapping ErrQuotaExceeded, in
// which case the caller stops working on the platform. Act receives the
// interaction strategy chosen by the retry engine; adapters that cannot
// vary how they act return retry.ErrUnsupportedStrategy for anything but
// retry.Direct.
type Adapter interface {
	Name() string
	Authenticate(ctx context.Context, creds Credentials) error
	Search(ctx context.Context, keyword, location string) error
	ListCandidates(ctx context.Context) ([]*Candidate, error)
	FetchDetails(ctx context.Context, c *Candidate) (*Candidate, error)
	Act(ctx context.Context, c *Candidate, s retry.Strategy) (Outcome, error)
	NextPage(ctx context.Context) (bool, error)
}

// Closer is implemented by adapters holding resources.
type Closer interface {
	Close() error
}
