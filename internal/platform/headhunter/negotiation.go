package headhunter

import (
	"context"
)

const (
	apiNegotiataionPath = "/negotiations"
)

func (c *Client) PostNegotiation(ctx context.Context, resume, vacancy, message string) error {
	data := map[string]string{
		"resume_id":  resume,
		"vacancy_id": vacancy,
	}
	if message != "" {
		data["message"] = message
	}

	return c.postFormData(ctx, apiNegotiataionPath, data)
}
