package headhunter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spigell/job-rotator/internal/filtering"
	"github.com/spigell/job-rotator/internal/platform"
)

const (
	SearchPath = "/vacancies"
)

type IDName struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type VacancyEmployer struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	URL          string `json:"url,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	Trusted      bool   `json:"trusted,omitempty"`
}

type Vacancy struct {
	ID                string          `json:"id,omitempty"`
	Name              string          `json:"name,omitempty"`
	Area              IDName          `json:"area,omitempty"`
	HasTest           bool            `json:"has_test,omitempty"`
	Archived          bool            `json:"archived,omitempty"`
	Experience        IDName          `json:"experience,omitempty"`
	Schedule          IDName          `json:"schedule,omitempty"`
	Employment        IDName          `json:"employment,omitempty"`
	Employer          VacancyEmployer `json:"employer,omitempty"`
	AlternateURL      string          `json:"alternate_url,omitempty"`
	ApplyAlternateURL string          `json:"apply_alternate_url,omitempty"`
	Description       string          `json:"description,omitempty"`
	PublishedAt       string          `json:"published_at,omitempty"`
	Contacts          *struct {
		Name  string `json:"name,omitempty"`
		Email string `json:"email,omitempty"`
	} `json:"contacts,omitempty"`
	Snippet struct {
		Requirement    string `json:"requirement,omitempty"`
		Responsibility string `json:"responsibility,omitempty"`
	} `json:"snippet,omitempty"`
}

// experienceBrackets maps hh experience ids onto the lower bound in years.
var experienceBrackets = map[string]int{
	"noExperience": 0,
	"between1And3": 1,
	"between3And6": 3,
	"moreThan6":    6,
}

// workStyles maps hh schedule ids onto platform independent work styles.
var workStyles = map[string]string{
	"remote":      "remote",
	"flexible":    "hybrid",
	"fullDay":     "onsite",
	"shift":       "onsite",
	"flyInFlyOut": "onsite",
}

// toCandidate converts a listing. Description fields are only filled when
// the vacancy came from the details endpoint.
func (v *Vacancy) toCandidate(platformName string) *platform.Candidate {
	c := &platform.Candidate{
		ID:           v.ID,
		Platform:     platformName,
		Title:        v.Name,
		Company:      v.Employer.Name,
		Location:     v.Area.Name,
		WorkStyle:    workStyles[v.Schedule.ID],
		JobLink:      v.AlternateURL,
		ExternalLink: v.ApplyAlternateURL,
		HRLink:       v.Employer.AlternateURL,
		DatePosted:   v.PublishedAt,
	}
	if v.Contacts != nil {
		c.HRName = v.Contacts.Name
	}
	if years, ok := experienceBrackets[v.Experience.ID]; ok {
		c.ExperienceRequired = &years
	}
	return c
}

// enrich fills the detail fields of c from a full vacancy.
func (v *Vacancy) enrich(c *platform.Candidate) {
	c.Description = htmlToText(v.Description)
	if v.Contacts != nil && v.Contacts.Name != "" {
		c.HRName = v.Contacts.Name
	}

	// The description usually states the requirement more precisely than
	// the bracket; take whichever is larger.
	if years, ok := filtering.ExtractExperience(c.Description); ok {
		if c.ExperienceRequired == nil || years > *c.ExperienceRequired {
			c.ExperienceRequired = &years
		}
	}
}

func (c *Client) SearchVacancies(ctx context.Context, params *SearchParams, page int) ([]*Vacancy, *ItemResponse, error) {
	q := buildParams(params)
	q.Set("page", strconv.Itoa(page))

	var vacancies []*Vacancy
	resp, err := c.getPage(ctx, SearchPath, q, &vacancies)
	if err != nil {
		return nil, nil, err
	}
	return vacancies, resp, nil
}

func (c *Client) GetVacancy(ctx context.Context, id string) (*Vacancy, error) {
	if id == "" {
		return nil, fmt.Errorf("vacancy id is required")
	}
	var v Vacancy
	if err := c.getJSON(ctx, SearchPath+"/"+url.PathEscape(id), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
