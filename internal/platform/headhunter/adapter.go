package headhunter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/logger"
	"github.com/spigell/job-rotator/internal/platform"
	"github.com/spigell/job-rotator/internal/retry"
)

// Kind is the registry name of this adapter.
const Kind = "headhunter"

// Adapter drives one hh.ru account.
type Adapter struct {
	name        string
	client      *Client
	resumeTitle string
	message     string
	areas       []int
	logger      *zap.Logger

	mu       sync.Mutex
	resume   *Resume
	params   *SearchParams
	page     int
	pages    int
	listings map[string]*Vacancy
}

var _ platform.Adapter = (*Adapter)(nil)

// New is the platform.Factory for hh.ru.
func New(opts platform.Options) (platform.Adapter, error) {
	return NewAdapter(NewClient(opts.Logger, opts.RequestsPerSecond), opts), nil
}

// Register adds the adapter to r.
func Register(r *platform.Registry) error {
	return r.Register(Kind, New)
}

func NewAdapter(client *Client, opts platform.Options) *Adapter {
	name := opts.Name
	if name == "" {
		name = Kind
	}
	return &Adapter{
		name:        name,
		client:      client,
		resumeTitle: opts.Resume,
		message:     opts.Message,
		areas:       opts.Areas,
		logger:      logger.ForPlatform(opts.Logger, name),
		listings:    make(map[string]*Vacancy),
	}
}

func (a *Adapter) Name() string { return a.name }

// Authenticate verifies the token and resolves the resume used for applying.
func (a *Adapter) Authenticate(ctx context.Context, creds platform.Credentials) error {
	token := strings.TrimSpace(creds.Token)
	if token == "" {
		return fmt.Errorf("%w: hh token is empty", platform.ErrAuthentication)
	}
	a.client.SetToken(token)

	if err := a.client.Me(ctx); err != nil {
		if apiErr, ok := asAPIError(err); ok && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w: %w", platform.ErrAuthentication, err)
		}
		return fmt.Errorf("check token: %w", err)
	}

	resumes, err := a.client.GetMineResumes(ctx)
	if err != nil {
		return fmt.Errorf("get my resumes: %w", err)
	}
	resume, err := resumes.Pick(a.resumeTitle)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.resume = resume
	a.mu.Unlock()

	a.logger.Info("authenticated", zap.String("resume", resume.Title))
	return nil
}

// Search resets paging to the first page of the new query.
func (a *Adapter) Search(_ context.Context, keyword, location string) error {
	text := strings.TrimSpace(keyword)
	if text == "" {
		return errors.New("search keyword is empty")
	}
	if loc := strings.TrimSpace(location); loc != "" && len(a.areas) == 0 {
		text = fmt.Sprintf("%s %s", text, loc)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.params = &SearchParams{
		Text:    text,
		Areas:   a.areas,
		OrderBy: "publication_time",
		PerPage: perPage,
	}
	a.page = 0
	a.pages = 0
	return nil
}

func (a *Adapter) ListCandidates(ctx context.Context) ([]*platform.Candidate, error) {
	a.mu.Lock()
	params, page := a.params, a.page
	a.mu.Unlock()

	if params == nil {
		return nil, errors.New("search was not started")
	}

	vacancies, resp, err := a.client.SearchVacancies(ctx, params, page)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages = resp.Pages

	candidates := make([]*platform.Candidate, 0, len(vacancies))
	for _, v := range vacancies {
		if v == nil {
			continue
		}
		a.listings[v.ID] = v
		candidates = append(candidates, v.toCandidate(a.name))
	}
	return candidates, nil
}

func (a *Adapter) FetchDetails(ctx context.Context, c *platform.Candidate) (*platform.Candidate, error) {
	v, err := a.client.GetVacancy(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("get vacancy %s: %w", c.ID, err)
	}

	a.mu.Lock()
	a.listings[v.ID] = v
	a.mu.Unlock()

	detailed := v.toCandidate(a.name)
	v.enrich(detailed)

	if v.Employer.ID != "" {
		employer, err := a.client.GetEmployer(ctx, v.Employer.ID)
		if err != nil {
			// Screening can still run on the vacancy text.
			a.logger.Warn("fetching employer failed",
				append(logger.CandidateFields(a.name, c.ID, v.Employer.Name), zap.Error(err))...,
			)
		} else {
			detailed.CompanyInfo = employer.Info()
		}
	}
	return detailed, nil
}

// Act posts a negotiation for the candidate. Only the direct strategy
// exists for a REST API.
func (a *Adapter) Act(ctx context.Context, c *platform.Candidate, s retry.Strategy) (platform.Outcome, error) {
	if s != retry.Direct {
		return platform.Failed, retry.ErrUnsupportedStrategy
	}

	a.mu.Lock()
	resume, v := a.resume, a.listings[c.ID]
	a.mu.Unlock()

	if resume == nil {
		return platform.Failed, fmt.Errorf("%w: not authenticated", platform.ErrAuthentication)
	}
	if v != nil && (v.HasTest || v.Archived) {
		a.logger.Info("vacancy can not be applied via API",
			zap.String("candidate_id", c.ID),
			zap.Bool("has_test", v.HasTest),
			zap.Bool("archived", v.Archived),
		)
		return platform.Skipped, nil
	}

	message := a.message
	if c.CoverLetter != "" {
		message = c.CoverLetter
	}

	err := a.client.PostNegotiation(ctx, resume.ID, c.ID, message)
	if err == nil {
		return platform.Applied, nil
	}

	if apiErr, ok := asAPIError(err); ok {
		switch {
		case apiErr.HasValue(valueLimitExceeded):
			return platform.Failed, fmt.Errorf("negotiation for %s: %w", c.ID, err)
		case apiErr.HasValue(valueAlreadyApplied), apiErr.HasValue(valueTestRequired), apiErr.HasValue(valueArchived):
			a.logger.Info("negotiation refused", zap.String("candidate_id", c.ID), zap.Error(err))
			return platform.Skipped, nil
		}
	}
	return platform.Failed, fmt.Errorf("negotiation for %s: %w", c.ID, err)
}

// NextPage advances to the next result page when the API reported one.
func (a *Adapter) NextPage(_ context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.page+1 >= a.pages {
		return false, nil
	}
	a.page++
	clear(a.listings)
	return true, nil
}
