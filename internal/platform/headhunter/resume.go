package headhunter

import (
	"context"
	"fmt"
)

type Resumes struct {
	Items []*Resume
}

type Resume struct {
	Title string `json:"title"`
	ID    string `json:"id,omitempty"`
}

func (c *Client) GetMineResumes(ctx context.Context) (*Resumes, error) {
	var resumes []*Resume
	if _, err := c.getPage(ctx, "/resumes/"+mineResumID, nil, &resumes); err != nil {
		return nil, err
	}
	return &Resumes{Items: resumes}, nil
}

// Me checks the token.
func (c *Client) Me(ctx context.Context) error {
	return c.getJSON(ctx, "/me", nil, nil)
}

func (r *Resumes) Len() int {
	return len(r.Items)
}

func (r *Resumes) Titles() []string {
	titles := make([]string, 0, len(r.Items))

	for _, v := range r.Items {
		titles = append(titles, v.Title)
	}

	return titles
}

func (r *Resumes) FindByTitle(title string) *Resume {
	for _, resume := range r.Items {
		if resume.Title == title {
			return resume
		}
	}

	return nil
}

// Pick returns the resume with the title, or the only resume when title is empty.
func (r *Resumes) Pick(title string) (*Resume, error) {
	if title == "" {
		if r.Len() == 1 {
			return r.Items[0], nil
		}
		return nil, fmt.Errorf("resume title is required, available: %v", r.Titles())
	}
	if resume := r.FindByTitle(title); resume != nil {
		return resume, nil
	}
	return nil, fmt.Errorf("resume %q not found, available: %v", title, r.Titles())
}
