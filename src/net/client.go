package net

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout is the per-request timeout applied to every query.
	DefaultTimeout = 2000 * time.Millisecond

	maxResponseBytes = 50e6
	maxErrorBytes    = 512
)

// HTTPError is generated when a peer answers with a non-2xx status.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

// Error formats an error string.
func (e HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: HTTP %s", e.URL, e.Status)
	}
	return fmt.Sprintf("GET %s: HTTP %s: %s", e.URL, e.Status, e.Body)
}

// Client is a Transport over net/http.
type Client struct {
	client *http.Client
	logger *logrus.Entry
}

// NewClient creates a Client whose requests time out after timeout. A zero
// timeout selects DefaultTimeout.
func NewClient(timeout time.Duration, logger *logrus.Entry) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.client.Timeout
}

// Get implements the Transport interface.
func (c *Client) Get(ctx context.Context, rawURL string, params interface{}, out interface{}) (int, error) {
	reqURL, err := url.Parse(rawURL)
	if err != nil {
		return 0, err
	}

	if params != nil {
		v, err := query.Values(params)
		if err != nil {
			return 0, err
		}
		reqURL.RawQuery = mergeRawQueries(reqURL.RawQuery, v.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}

	// Ensure response isn't too large
	resp.Body = http.MaxBytesReader(nil, resp.Body, maxResponseBytes)
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"url":      reqURL.String(),
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("GET")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return resp.StatusCode, HTTPError{
			URL:        reqURL.String(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	if out == nil {
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding %s: %w", reqURL.String(), err)
	}

	return resp.StatusCode, nil
}

// mergeRawQueries merges two raw queries, appending an "&" if both are non-empty
func mergeRawQueries(q1, q2 string) string {
	if q1 == "" || q2 == "" {
		return q1 + q2
	}
	return q1 + "&" + q2
}
