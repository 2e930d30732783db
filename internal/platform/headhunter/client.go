// Package headhunter implements the platform adapter for the hh.ru REST API.
package headhunter

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/job-rotator/internal/logger"
)

const (
	apiURL      = "https://api.hh.ru"
	mineResumID = "mine"
	userAgent   = "spigell/job-rotator (spigelly@gmail.com)"
	// Max value for search per page.
	perPage = 100

	defaultRequestsPerSecond = 2
)

type Client struct {
	token      string
	logger     *zap.Logger
	limiter    *rate.Limiter
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

// NewClient returns a client throttled to rps requests per second.
func NewClient(log *zap.Logger, rps float64) *Client {
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	return &Client{
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		logger:    logger.OrNop(log),
		UserAgent: userAgent,
	}
}

func (c *Client) SetToken(token string) {
	c.token = token
}
