package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint.
	DefaultBaseURL = "https://api.github.com"

	defaultTimeout = 30 * time.Second
	maxRetries     = 3
)

// Client talks to the GitHub REST API. A single Client is shared by every game in a
// library; it is safe for concurrent use.
type Client struct {
	HTTP      *http.Client
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration // applied to API calls, not to downloads
	Backoff   time.Duration // first retry delay, doubled on every attempt
	Limiter   *RateLimiter  // optional download bandwidth limit
}

// New returns a Client for baseURL (DefaultBaseURL when empty).
func New(baseURL, token, version string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if version == "" {
		version = "dev"
	}
	return &Client{
		HTTP:      &http.Client{},
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Token:     token,
		UserAgent: "rkl/" + version,
		Timeout:   defaultTimeout,
		Backoff:   time.Second,
	}
}

// WithToken returns a shallow copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.Token = token
	return &cp
}

func (c *Client) createRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create request")
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.UserAgent)
	if c.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	}
	return req, nil
}

// sendRequest performs req, retrying transport failures and 5xx responses with a
// doubling backoff. Any response that is returned has a status below 500.
func (c *Client) sendRequest(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error
	backoff := c.Backoff

	for i := 0; i < maxRetries; i++ {
		resp, err = c.HTTP.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if err != nil {
			log.Warn().Err(err).Int("attempt", i+1).Int("max_attempts", maxRetries).Msg("Request failed, retrying...")
		} else {
			log.Warn().Int("status", resp.StatusCode).Int("attempt", i+1).Int("max_attempts", maxRetries).Msg("Server error, retrying...")
			closeResponseBody(resp)
			err = fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		if i == maxRetries-1 {
			break
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	log.Error().Err(err).Str("url", req.URL.String()).Msg("Failed to send request after multiple retries")
	return nil, err
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read response body")
		return nil, err
	}
	return body, nil
}

func closeResponseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, resp.Body, 1024*1024)
	_ = resp.Body.Close()
}
