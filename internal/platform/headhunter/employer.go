package headhunter

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type Employer struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Description  string `json:"description"`
	SiteURL      string `json:"site_url"`
	AlternateURL string `json:"alternate_url"`
}

func (c *Client) GetEmployer(ctx context.Context, id string) (*Employer, error) {
	if id == "" {
		return nil, fmt.Errorf("employer id is required")
	}
	var e Employer
	if err := c.getJSON(ctx, "/employers/"+url.PathEscape(id), nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Info is the text screened by company rules.
func (e *Employer) Info() string {
	parts := []string{e.Name}
	if e.Type == "agency" {
		// hh marks recruiting agencies explicitly.
		parts = append(parts, "recruitment agency")
	}
	if d := htmlToText(e.Description); d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, "\n")
}
