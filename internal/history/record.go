// Package history keeps the append-only log of candidate outcomes and the
// statistics derived from it.
package history

import (
	"context"
	"strconv"
	"time"

	"github.com/spigell/job-rotator/internal/platform"
)

const dateActedLayout = "2006-01-02 15:04:05"

// Columns is the tabular header in storage order.
var Columns = []string{
	"jobId", "title", "company", "location", "workStyle", "description",
	"experienceRequired", "hrName", "hrLink", "resumeUsed", "datePosted",
	"dateActed", "jobLink", "externalLink", "outcome", "reason", "timestamp",
	"platform", "runId",
}

// Record is one immutable outcome.
type Record struct {
	JobID              string
	Title              string
	Company            string
	Location           string
	WorkStyle          string
	Description        string
	ExperienceRequired string
	HRName             string
	HRLink             string
	ResumeUsed         string
	DatePosted         string
	DateActed          string
	JobLink            string
	ExternalLink       string
	Outcome            platform.Outcome
	Reason             string
	Timestamp          time.Time
	Platform           string
	RunID              string
}

// NewRecord builds the record of an outcome for c.
func NewRecord(c *platform.Candidate, outcome platform.Outcome, reason, resume, runID string, now time.Time) Record {
	r := Record{
		JobID:        c.ID,
		Title:        c.Title,
		Company:      c.Company,
		Location:     c.Location,
		WorkStyle:    c.WorkStyle,
		Description:  c.Description,
		HRName:       c.HRName,
		HRLink:       c.HRLink,
		ResumeUsed:   resume,
		DatePosted:   c.DatePosted,
		DateActed:    now.Format(dateActedLayout),
		JobLink:      c.JobLink,
		ExternalLink: c.ExternalLink,
		Outcome:      outcome,
		Reason:       reason,
		Timestamp:    now,
		Platform:     c.Platform,
		RunID:        runID,
	}
	if c.ExperienceRequired != nil {
		r.ExperienceRequired = strconv.Itoa(*c.ExperienceRequired)
	}
	return r
}

func (r Record) row() []string {
	return []string{
		r.JobID, r.Title, r.Company, r.Location, r.WorkStyle, r.Description,
		r.ExperienceRequired, r.HRName, r.HRLink, r.ResumeUsed, r.DatePosted,
		r.DateActed, r.JobLink, r.ExternalLink, string(r.Outcome), r.Reason,
		r.Timestamp.UTC().Format(time.RFC3339), r.Platform, r.RunID,
	}
}

// Store is append-only outcome storage.
type Store interface {
	Append(ctx context.Context, r Record) error
	Load(ctx context.Context) ([]Record, error)
	Close() error
}
