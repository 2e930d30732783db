package headhunter

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/platform"
	"github.com/spigell/job-rotator/internal/retry"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"

	valueLimitExceeded  = "limit_exceeded"
	valueAlreadyApplied = "already_applied"
	valueTestRequired   = "test_required"
	valueArchived       = "archived"
)

// ItemResponse is one page of a paged listing.
type ItemResponse struct {
	Items   []Item
	Found   int
	Pages   int
	Page    int
	PerPage int `json:"per_page"`
}

type Item any

// APIError is a non-success response from the API.
type APIError struct {
	Method      string
	StatusCode  int
	Description string `json:"description"`
	Errors      []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"errors"`
}

func (e *APIError) Error() string {
	values := make([]string, 0, len(e.Errors))
	for _, v := range e.Errors {
		values = append(values, v.Type+":"+v.Value)
	}
	msg := fmt.Sprintf("hh api %s: status %d", e.Method, e.StatusCode)
	if len(values) > 0 {
		msg += " (" + strings.Join(values, ", ") + ")"
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

// HasValue reports whether the response carries the given error value.
func (e *APIError) HasValue(value string) bool {
	for _, v := range e.Errors {
		if v.Value == value {
			return true
		}
	}
	return false
}

// Temporary is true for throttling and for server failures of reads.
// A failed POST may have been processed, so it is never temporary.
func (e *APIError) Temporary() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode >= http.StatusInternalServerError && e.Method == http.MethodGet
}

// Unwrap maps the response onto the platform and retry error classes.
func (e *APIError) Unwrap() error {
	switch {
	case e.HasValue(valueLimitExceeded):
		return platform.ErrQuotaExceeded
	case e.StatusCode == http.StatusUnauthorized:
		return platform.ErrAuthentication
	case e.StatusCode == http.StatusForbidden && e.hasType("oauth"):
		return platform.ErrAuthentication
	case e.StatusCode == http.StatusNotFound:
		return retry.ErrNotFound
	default:
		return nil
	}
}

func (e *APIError) hasType(t string) bool {
	for _, v := range e.Errors {
		if v.Type == t {
			return true
		}
	}
	return false
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.APIURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, nil, err
	}

	c.logger.Debug("make request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, nil, err
		}
		if req.Method == http.MethodGet {
			return nil, nil, retry.MarkTransient(err)
		}
		return nil, nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, nil, err
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: req.Method, StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return resp, data, apiErr
	}
	return resp, data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, target any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	_, data, err := c.do(req)
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// getPage fetches one page of a listing and decodes its items into target.
func (c *Client) getPage(ctx context.Context, path string, q url.Values, target any) (*ItemResponse, error) {
	var response ItemResponse
	if err := c.getJSON(ctx, path, q, &response); err != nil {
		return nil, err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "json",
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(response.Items); err != nil {
		return nil, fmt.Errorf("%w: decode %s items: %w", platform.ErrMalformedCandidate, path, err)
	}

	c.logger.Debug("got response from HH.ru",
		zap.Int("page", response.Page),
		zap.Int("pages", response.Pages),
		zap.Int("found", response.Found),
	)
	return &response, nil
}

func (c *Client) postFormData(ctx context.Context, path string, data map[string]string) error {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	for key, val := range data {
		if err := w.WriteField(key, val); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, nil, &b)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, _, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	return nil
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
