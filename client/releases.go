package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/recompkit/rkl/pkg/gameerr"
	"github.com/rs/zerolog/log"
)

// LatestRelease fetches the latest published release of repository ("owner/name").
// Errors carry a gameerr kind: Network, RateLimited, NotFound, Malformed or Validation.
func (c *Client) LatestRelease(ctx context.Context, repository string) (*Release, error) {
	ctx, cancel := c.apiContext(ctx)
	defer cancel()

	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.BaseURL, repository)
	body, err := c.getJSON(ctx, url)
	if err != nil {
		return nil, err
	}

	var rel Release
	if err := json.Unmarshal(body, &rel); err != nil {
		log.Error().Err(err).Str("repository", repository).Msg("Failed to parse release JSON")
		return nil, gameerr.New(gameerr.Malformed, "invalid release response", err)
	}
	if strings.TrimSpace(rel.TagName) == "" {
		return nil, gameerr.Newf(gameerr.Malformed, "release for %s has no tag", repository)
	}
	log.Debug().Str("repository", repository).Str("tag", rel.TagName).Int("assets", len(rel.Assets)).Msg("Fetched latest release")
	return &rel, nil
}

// RateLimit reports the core API quota of the client's credentials. It doubles as a
// token check: a rejected token yields a Validation error.
func (c *Client) RateLimit(ctx context.Context) (*RateLimitStatus, error) {
	ctx, cancel := c.apiContext(ctx)
	defer cancel()

	body, err := c.getJSON(ctx, c.BaseURL+"/rate_limit")
	if err != nil {
		return nil, err
	}
	var payload struct {
		Resources struct {
			Core RateLimitStatus `json:"core"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, gameerr.New(gameerr.Malformed, "invalid rate limit response", err)
	}
	status := payload.Resources.Core
	status.Reset = time.Unix(status.ResetUnix, 0)
	return &status, nil
}

func (c *Client) apiContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

func (c *Client) getJSON(ctx context.Context, url string) ([]byte, error) {
	req, err := c.createRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, gameerr.New(gameerr.Internal, "build request", err)
	}
	resp, err := c.sendRequest(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, gameerr.New(gameerr.Network, "request failed", err)
	}
	defer closeResponseBody(resp)

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, gameerr.New(gameerr.Network, "read response", err)
	}
	return body, nil
}

// classifyStatus maps a non-2xx response onto an engine error.
func classifyStatus(resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}
	url := resp.Request.URL.String()
	switch {
	case code == http.StatusNotFound:
		return gameerr.Newf(gameerr.NotFound, "not found: %s", url)
	case code == http.StatusTooManyRequests,
		code == http.StatusForbidden && (resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.Header.Get("Retry-After") != ""):
		msg := "GitHub API rate limit exceeded"
		if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
			msg = fmt.Sprintf("%s (resets at unix %s)", msg, reset)
		}
		return gameerr.New(gameerr.RateLimited, msg, nil)
	case code == http.StatusUnauthorized:
		return gameerr.New(gameerr.Validation, "GitHub rejected the access token", nil)
	default:
		return gameerr.Newf(gameerr.Network, "unexpected HTTP status %d from %s", code, url)
	}
}
